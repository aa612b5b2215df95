package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/models"
)

// collectBusyIntervals gathers every window in which the artist is
// occupied inside [from, to): held/confirmed bookings, planned or
// confirmed sessions, and holds that have not expired yet. Each source
// interval is widened by the buffer on both sides before inclusion.
//
// The result is advisory. Write paths never trust it; they re-check
// overlap inside their own transaction.
func (s *Service) collectBusyIntervals(ctx context.Context, staffID string, from, to time.Time, bufferMin int) ([]models.BusyInterval, error) {
	const op = "service.collectBusyIntervals"

	buffer := time.Duration(bufferMin) * time.Minute

	bookings, err := s.store.ListBusyBookings(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	sessions, err := s.store.ListBusySessions(ctx, staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	holds, err := s.store.ListActiveHolds(ctx, staffID, from, to, s.now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	busy := make([]models.BusyInterval, 0, len(bookings)+len(sessions)+len(holds))

	for _, b := range bookings {
		busy = append(busy, models.BusyInterval{
			Start: b.Start.Add(-buffer),
			End:   b.End.Add(buffer),
		})
	}

	for _, sess := range sessions {
		busy = append(busy, models.BusyInterval{
			Start: sess.Start.Add(-buffer),
			End:   sess.End.Add(buffer),
		})
	}

	for _, h := range holds {
		busy = append(busy, models.BusyInterval{
			Start: h.Start.Add(-buffer),
			End:   h.End.Add(buffer),
		})
	}

	return busy, nil
}
