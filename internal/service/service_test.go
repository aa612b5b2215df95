package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/api"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/config"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/models"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/schedule"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/storage"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"
)

type fakeTx struct {
	committed  bool
	rolledBack bool
}

func (t *fakeTx) Commit() error   { t.committed = true; return nil }
func (t *fakeTx) Rollback() error { t.rolledBack = true; return nil }

type fakeLocker struct {
	denied bool
	keys   []string
}

func (l *fakeLocker) Lock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return !l.denied, nil
}

func (l *fakeLocker) Unlock(ctx context.Context, key string) error { return nil }

// fakeStore is an in-memory Store. Transactions are no-ops: every
// mutation applies immediately, which is enough for single-goroutine
// behavior tests.
type fakeStore struct {
	rules    []models.WorkingRule
	bookings []models.Booking
	sessions []models.Session
	holds    []models.Hold

	reads int
}

func (f *fakeStore) BeginTx(ctx context.Context) (storage.Tx, error) {
	return &fakeTx{}, nil
}

func (f *fakeStore) CreateWorkingRule(ctx context.Context, rule *models.WorkingRule) (string, error) {
	r := *rule
	r.ID = fmt.Sprintf("rule-%d", len(f.rules)+1)
	f.rules = append(f.rules, r)
	return r.ID, nil
}

func (f *fakeStore) GetWorkingRule(ctx context.Context, id string) (*models.WorkingRule, error) {
	for i := range f.rules {
		if f.rules[i].ID == id {
			r := f.rules[i]
			return &r, nil
		}
	}
	return nil, response.ErrNotFound
}

func (f *fakeStore) ListWorkingRules(ctx context.Context, staffID string) ([]models.WorkingRule, error) {
	f.reads++
	var out []models.WorkingRule
	for _, r := range f.rules {
		if r.StaffID == staffID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeStore) UpdateWorkingRule(ctx context.Context, rule *models.WorkingRule) error {
	for i := range f.rules {
		if f.rules[i].ID == rule.ID {
			f.rules[i] = *rule
			return nil
		}
	}
	return response.ErrNotFound
}

func (f *fakeStore) DeleteWorkingRule(ctx context.Context, id string) error {
	for i := range f.rules {
		if f.rules[i].ID == id {
			f.rules = append(f.rules[:i], f.rules[i+1:]...)
			return nil
		}
	}
	return response.ErrNotFound
}

func (f *fakeStore) ListBusyBookings(ctx context.Context, staffID string, from, to time.Time) ([]models.Booking, error) {
	f.reads++
	var out []models.Booking
	for _, b := range f.bookings {
		if b.StaffID != staffID {
			continue
		}
		if b.Status != models.BookingHeld && b.Status != models.BookingConfirmed {
			continue
		}
		if schedule.Overlaps(b.Start, b.End, from, to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) ListBusySessions(ctx context.Context, staffID string, from, to time.Time) ([]models.Session, error) {
	f.reads++
	var out []models.Session
	for _, s := range f.sessions {
		if s.StaffID != staffID {
			continue
		}
		if s.Status != models.SessionPlanned && s.Status != models.SessionConfirmed {
			continue
		}
		if schedule.Overlaps(s.Start, s.End, from, to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListActiveHolds(ctx context.Context, staffID string, from, to, now time.Time) ([]models.Hold, error) {
	f.reads++
	var out []models.Hold
	for _, h := range f.holds {
		if h.StaffID != staffID || !h.ExpiresAt.After(now) {
			continue
		}
		if schedule.Overlaps(h.Start, h.End, from, to) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (f *fakeStore) OverlapExists(ctx context.Context, tx storage.Tx, staffID string, start, end time.Time, includeHolds bool, now time.Time) (bool, error) {
	for _, b := range f.bookings {
		if b.StaffID != staffID {
			continue
		}
		if b.Status != models.BookingHeld && b.Status != models.BookingConfirmed {
			continue
		}
		if schedule.Overlaps(start, end, b.Start, b.End) {
			return true, nil
		}
	}
	for _, s := range f.sessions {
		if s.StaffID != staffID {
			continue
		}
		if s.Status != models.SessionPlanned && s.Status != models.SessionConfirmed {
			continue
		}
		if schedule.Overlaps(start, end, s.Start, s.End) {
			return true, nil
		}
	}
	if includeHolds {
		for _, h := range f.holds {
			if h.StaffID == staffID && h.ExpiresAt.After(now) && schedule.Overlaps(start, end, h.Start, h.End) {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *fakeStore) InsertHold(ctx context.Context, tx storage.Tx, hold *models.Hold) error {
	f.holds = append(f.holds, *hold)
	return nil
}

func (f *fakeStore) FindHoldByToken(ctx context.Context, token string) (*models.Hold, error) {
	for i := range f.holds {
		if f.holds[i].Token == token {
			h := f.holds[i]
			return &h, nil
		}
	}
	return nil, response.ErrHoldNotFound
}

func (f *fakeStore) GetHoldByToken(ctx context.Context, tx storage.Tx, token string) (*models.Hold, error) {
	for i := range f.holds {
		if f.holds[i].Token == token {
			h := f.holds[i]
			return &h, nil
		}
	}
	return nil, response.ErrHoldNotFound
}

func (f *fakeStore) DeleteHold(ctx context.Context, tx storage.Tx, id string) error {
	for i := range f.holds {
		if f.holds[i].ID == id {
			f.holds = append(f.holds[:i], f.holds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteHoldByToken(ctx context.Context, token string) error {
	for i := range f.holds {
		if f.holds[i].Token == token {
			f.holds = append(f.holds[:i], f.holds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakeStore) DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	var kept []models.Hold
	var n int64
	for _, h := range f.holds {
		if h.ExpiresAt.After(now) {
			kept = append(kept, h)
		} else {
			n++
		}
	}
	f.holds = kept
	return n, nil
}

func (f *fakeStore) InsertBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	f.bookings = append(f.bookings, *booking)
	return booking.ID, nil
}

func (f *fakeStore) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	for i := range f.bookings {
		if f.bookings[i].ID == id {
			b := f.bookings[i]
			return &b, nil
		}
	}
	return nil, response.ErrNotFound
}

func (f *fakeStore) UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	for i := range f.bookings {
		if f.bookings[i].ID == bookingID {
			f.bookings[i].Status = status
			return nil
		}
	}
	return response.ErrNotFound
}

func (f *fakeStore) CreateSession(ctx context.Context, sess *models.Session) (string, error) {
	s := *sess
	s.ID = fmt.Sprintf("session-%d", len(f.sessions)+1)
	f.sessions = append(f.sessions, s)
	return s.ID, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, response.ErrNotFound
}

func (f *fakeStore) UpdateSession(ctx context.Context, sess *models.Session) error {
	for i := range f.sessions {
		if f.sessions[i].ID == sess.ID {
			f.sessions[i] = *sess
			return nil
		}
	}
	return response.ErrNotFound
}

func (f *fakeStore) DeleteSession(ctx context.Context, id string) error {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			f.sessions = append(f.sessions[:i], f.sessions[i+1:]...)
			return nil
		}
	}
	return response.ErrNotFound
}

func newTestService(t *testing.T, store *fakeStore, locker *fakeLocker, now time.Time) *Service {
	t.Helper()

	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	svc := NewService(store, locker, loc, config.Booking{
		Timezone:       "Europe/Rome",
		DefaultHoldTTL: 600 * time.Second,
		MaxHoldTTL:     3600 * time.Second,
		LockTTL:        10 * time.Second,
	})
	svc.now = func() time.Time { return now }

	return svc
}

func holdRequest(start, end time.Time) *api.HoldRequest {
	return &api.HoldRequest{
		StaffID:  "artist-1",
		ClientID: "client-1",
		Start:    start.Format(time.RFC3339),
		End:      end.Format(time.RFC3339),
	}
}

func TestCreateHoldSuccess(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{}, now)

	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	resp, err := svc.CreateHold(context.Background(), holdRequest(start, start.Add(time.Hour)))
	if err != nil {
		t.Fatalf("CreateHold: %v", err)
	}

	if len(resp.Token) != 64 {
		t.Errorf("token length %d, want 64", len(resp.Token))
	}
	if len(store.holds) != 1 {
		t.Fatalf("expected 1 hold, got %d", len(store.holds))
	}
	if !store.holds[0].ExpiresAt.Equal(now.Add(600 * time.Second)) {
		t.Errorf("expires_at %s, want now+600s", store.holds[0].ExpiresAt)
	}
}

func TestCreateHoldSecondOverlappingRejected(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{}, now)

	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	req := holdRequest(start, start.Add(time.Hour))

	if _, err := svc.CreateHold(context.Background(), req); err != nil {
		t.Fatalf("first CreateHold: %v", err)
	}

	_, err := svc.CreateHold(context.Background(), req)
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("second CreateHold err = %v, want ErrSlotNotAvailable", err)
	}
	if len(store.holds) != 1 {
		t.Errorf("expected 1 hold after rejected retry, got %d", len(store.holds))
	}
}

func TestCreateHoldIgnoresExpiredHold(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-old",
		StaffID:   "artist-1",
		ClientID:  "client-9",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(-time.Minute),
		Token:     "stale",
	}}}
	svc := newTestService(t, store, &fakeLocker{}, now)

	if _, err := svc.CreateHold(context.Background(), holdRequest(start, start.Add(time.Hour))); err != nil {
		t.Fatalf("CreateHold over expired hold: %v", err)
	}
}

func TestCreateHoldLocked(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{denied: true}, now)

	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)
	_, err := svc.CreateHold(context.Background(), holdRequest(start, start.Add(time.Hour)))
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
}

func TestCreateHoldInputErrors(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{}, now)

	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	cases := []struct {
		name string
		req  *api.HoldRequest
	}{
		{"end before start", holdRequest(start, start.Add(-time.Hour))},
		{"zero-length window", holdRequest(start, start)},
		{"missing staff_id", func() *api.HoldRequest {
			r := holdRequest(start, start.Add(time.Hour))
			r.StaffID = ""
			return r
		}()},
		{"missing client_id", func() *api.HoldRequest {
			r := holdRequest(start, start.Add(time.Hour))
			r.ClientID = ""
			return r
		}()},
		{"ttl above max", func() *api.HoldRequest {
			r := holdRequest(start, start.Add(time.Hour))
			r.TTLSeconds = 7200
			return r
		}()},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.CreateHold(context.Background(), c.req)
			if !errors.Is(err, response.ErrBadRequest) {
				t.Fatalf("err = %v, want ErrBadRequest", err)
			}
		})
	}

	if len(store.holds) != 0 {
		t.Errorf("no hold should be written on input errors, got %d", len(store.holds))
	}
}

func TestConfirmSuccessConsumesHold(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		ClientID:  "client-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(5 * time.Minute),
		Token:     "tok-1",
	}}}
	locker := &fakeLocker{}
	svc := newTestService(t, store, locker, now)

	resp, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1", Notes: "sleeve session"})
	if err != nil {
		t.Fatalf("ConfirmHold: %v", err)
	}
	if resp.Status != "confirmed" {
		t.Errorf("status = %s, want confirmed", resp.Status)
	}

	if len(locker.keys) != 1 || locker.keys[0] != "staff:artist-1" {
		t.Errorf("confirm must serialize on the staff calendar lock, got %v", locker.keys)
	}

	if len(store.holds) != 0 {
		t.Errorf("hold should be consumed, %d left", len(store.holds))
	}
	if len(store.bookings) != 1 {
		t.Fatalf("expected 1 booking, got %d", len(store.bookings))
	}

	b := store.bookings[0]
	if b.DurationMinutes != 60 {
		t.Errorf("duration = %d, want 60", b.DurationMinutes)
	}
	if b.Status != models.BookingConfirmed {
		t.Errorf("status = %s, want confirmed", b.Status)
	}
	if b.Notes != "sleeve session" {
		t.Errorf("notes = %q", b.Notes)
	}

	// Same token again: the hold is gone.
	_, err = svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"})
	if !errors.Is(err, response.ErrHoldNotFound) {
		t.Fatalf("second confirm err = %v, want ErrHoldNotFound", err)
	}
	if len(store.bookings) != 1 {
		t.Errorf("second confirm must not duplicate the booking")
	}
}

func TestConfirmLocked(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		ClientID:  "client-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(5 * time.Minute),
		Token:     "tok-1",
	}}}
	svc := newTestService(t, store, &fakeLocker{denied: true}, now)

	_, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"})
	if !errors.Is(err, response.ErrLocked) {
		t.Fatalf("err = %v, want ErrLocked", err)
	}
	if len(store.bookings) != 0 {
		t.Errorf("denied lock must not create a booking")
	}
	if len(store.holds) != 1 {
		t.Errorf("denied lock must leave the hold alone")
	}
}

// A confirm that wins the staff lock just before the hold expires
// leaves a committed booking behind; a later hold over the same
// window must see it and reject, not double-book.
func TestConfirmAtExpiryBoundaryThenHoldRejected(t *testing.T) {
	expiresAt := time.Date(2026, 2, 17, 9, 10, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		ClientID:  "client-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: expiresAt,
		Token:     "tok-1",
	}}}
	svc := newTestService(t, store, &fakeLocker{}, expiresAt.Add(-time.Second))

	if _, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"}); err != nil {
		t.Fatalf("confirm just before expiry: %v", err)
	}

	// Next writer runs after expiry; the hold is gone but the booking
	// it became must still block the window.
	svc.now = func() time.Time { return expiresAt.Add(time.Second) }

	_, err := svc.CreateHold(context.Background(), &api.HoldRequest{
		StaffID:  "artist-1",
		ClientID: "client-2",
		Start:    start.Format(time.RFC3339),
		End:      start.Add(time.Hour).Format(time.RFC3339),
	})
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("err = %v, want ErrSlotNotAvailable", err)
	}
	if len(store.bookings) != 1 {
		t.Fatalf("expected exactly 1 booking, got %d", len(store.bookings))
	}
}

func TestConfirmExpiredHold(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		ClientID:  "client-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(-time.Second),
		Token:     "tok-1",
	}}}
	svc := newTestService(t, store, &fakeLocker{}, now)

	_, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"})
	if !errors.Is(err, response.ErrHoldExpired) {
		t.Fatalf("err = %v, want ErrHoldExpired", err)
	}
	if len(store.bookings) != 0 {
		t.Errorf("expired confirm must not create a booking")
	}
}

func TestConfirmUnknownToken(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{}, now)

	_, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "nope"})
	if !errors.Is(err, response.ErrHoldNotFound) {
		t.Fatalf("err = %v, want ErrHoldNotFound", err)
	}
}

func TestConfirmHoldMissingClient(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(5 * time.Minute),
		Token:     "tok-1",
	}}}
	svc := newTestService(t, store, &fakeLocker{}, now)

	_, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"})
	if !errors.Is(err, response.ErrHoldMissingClient) {
		t.Fatalf("err = %v, want ErrHoldMissingClient", err)
	}
}

func TestConfirmSlotTakenByBooking(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{
		holds: []models.Hold{{
			ID:        "hold-1",
			StaffID:   "artist-1",
			ClientID:  "client-1",
			Start:     start,
			End:       start.Add(time.Hour),
			ExpiresAt: now.Add(5 * time.Minute),
			Token:     "tok-1",
		}},
		bookings: []models.Booking{{
			ID:      "booking-1",
			StaffID: "artist-1",
			Start:   start.Add(30 * time.Minute),
			End:     start.Add(90 * time.Minute),
			Status:  models.BookingConfirmed,
		}},
	}
	svc := newTestService(t, store, &fakeLocker{}, now)

	_, err := svc.ConfirmHold(context.Background(), &api.ConfirmRequest{Token: "tok-1"})
	if !errors.Is(err, response.ErrSlotNotAvailable) {
		t.Fatalf("err = %v, want ErrSlotNotAvailable", err)
	}
}

func TestReleaseHoldIdempotent(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{{
		ID:        "hold-1",
		StaffID:   "artist-1",
		ClientID:  "client-1",
		Start:     start,
		End:       start.Add(time.Hour),
		ExpiresAt: now.Add(5 * time.Minute),
		Token:     "tok-1",
	}}}
	svc := newTestService(t, store, &fakeLocker{}, now)

	if err := svc.ReleaseHold(context.Background(), "tok-1"); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if err := svc.ReleaseHold(context.Background(), "tok-1"); err != nil {
		t.Fatalf("second release must be idempotent: %v", err)
	}
	if len(store.holds) != 0 {
		t.Errorf("hold not deleted")
	}
}

func TestGetAvailabilityInputErrorsBeforeStorage(t *testing.T) {
	store := &fakeStore{}
	now := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
	svc := newTestService(t, store, &fakeLocker{}, now)

	cases := []struct {
		name                 string
		from, to             string
		duration, step, buff int
	}{
		{"to equals from", "2026-02-16", "2026-02-16", 60, 30, 0},
		{"to before from", "2026-02-17", "2026-02-16", 60, 30, 0},
		{"zero duration", "2026-02-16", "2026-02-17", 0, 30, 0},
		{"zero step", "2026-02-16", "2026-02-17", 60, 0, 0},
		{"negative buffer", "2026-02-16", "2026-02-17", 60, 30, -5},
		{"bad date", "16-02-2026", "2026-02-17", 60, 30, 0},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			_, err := svc.GetAvailability(context.Background(), "artist-1", c.from, c.to, c.duration, c.step, c.buff)
			if !errors.Is(err, response.ErrBadRequest) {
				t.Fatalf("err = %v, want ErrBadRequest", err)
			}
		})
	}

	if store.reads != 0 {
		t.Errorf("input errors must be raised before any storage read, got %d reads", store.reads)
	}
}

func TestGetAvailabilityWithBusySources(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, loc)

	store := &fakeStore{
		rules: []models.WorkingRule{{
			ID:          "rule-1",
			StaffID:     "artist-1",
			Weekday:     1,
			StartMinute: 540,
			EndMinute:   780,
			Timezone:    "Europe/Rome",
		}},
		bookings: []models.Booking{{
			ID:      "booking-1",
			StaffID: "artist-1",
			Start:   time.Date(2026, 2, 16, 10, 0, 0, 0, loc),
			End:     time.Date(2026, 2, 16, 11, 0, 0, 0, loc),
			Status:  models.BookingConfirmed,
		}},
	}
	svc := newTestService(t, store, &fakeLocker{}, now)

	resp, err := svc.GetAvailability(context.Background(), "artist-1", "2026-02-16", "2026-02-17", 60, 30, 0)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}

	if resp.Timezone != "Europe/Rome" {
		t.Errorf("timezone = %s", resp.Timezone)
	}
	if len(resp.Days) != 1 {
		t.Fatalf("expected 1 day, got %d", len(resp.Days))
	}
	if resp.Days[0].Date != "2026-02-16" {
		t.Errorf("date = %s", resp.Days[0].Date)
	}

	wantStarts := []string{"09:00", "11:00", "11:30", "12:00"}
	if len(resp.Days[0].Slots) != len(wantStarts) {
		t.Fatalf("expected %d slots, got %d", len(wantStarts), len(resp.Days[0].Slots))
	}
	for i, slot := range resp.Days[0].Slots {
		st, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			t.Fatalf("slot %d start %q: %v", i, slot.Start, err)
		}
		if got := st.In(loc).Format("15:04"); got != wantStarts[i] {
			t.Errorf("slot %d starts %s, want %s", i, got, wantStarts[i])
		}
	}
}

func TestGetAvailabilityAppliesBuffer(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, loc)

	store := &fakeStore{
		rules: []models.WorkingRule{{
			ID:          "rule-1",
			StaffID:     "artist-1",
			Weekday:     1,
			StartMinute: 540,
			EndMinute:   780,
			Timezone:    "Europe/Rome",
		}},
		bookings: []models.Booking{{
			ID:      "booking-1",
			StaffID: "artist-1",
			Start:   time.Date(2026, 2, 16, 10, 0, 0, 0, loc),
			End:     time.Date(2026, 2, 16, 11, 0, 0, 0, loc),
			Status:  models.BookingConfirmed,
		}},
	}
	svc := newTestService(t, store, &fakeLocker{}, now)

	// Buffer 15 pads the 10:00-11:00 booking to 09:45-11:15, so every
	// slot touching that window drops out, including the 09:00 and
	// 11:00 starts that survive with buffer 0.
	resp, err := svc.GetAvailability(context.Background(), "artist-1", "2026-02-16", "2026-02-17", 60, 30, 15)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}

	wantStarts := []string{"11:30", "12:00"}
	if len(resp.Days[0].Slots) != len(wantStarts) {
		t.Fatalf("expected %d slots, got %d", len(wantStarts), len(resp.Days[0].Slots))
	}
	for i, slot := range resp.Days[0].Slots {
		st, err := time.Parse(time.RFC3339, slot.Start)
		if err != nil {
			t.Fatalf("slot %d start %q: %v", i, slot.Start, err)
		}
		if got := st.In(loc).Format("15:04"); got != wantStarts[i] {
			t.Errorf("slot %d starts %s, want %s", i, got, wantStarts[i])
		}
	}
}

func TestGetAvailabilityExcludesUnexpiredHold(t *testing.T) {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}

	now := time.Date(2026, 2, 15, 12, 0, 0, 0, loc)

	store := &fakeStore{
		rules: []models.WorkingRule{{
			ID:          "rule-1",
			StaffID:     "artist-1",
			Weekday:     1,
			StartMinute: 540,
			EndMinute:   780,
			Timezone:    "Europe/Rome",
		}},
		holds: []models.Hold{{
			ID:        "hold-1",
			StaffID:   "artist-1",
			ClientID:  "client-2",
			Start:     time.Date(2026, 2, 16, 9, 0, 0, 0, loc),
			End:       time.Date(2026, 2, 16, 10, 0, 0, 0, loc),
			ExpiresAt: now.Add(10 * time.Minute),
			Token:     "tok-other",
		}},
	}
	svc := newTestService(t, store, &fakeLocker{}, now)

	resp, err := svc.GetAvailability(context.Background(), "artist-1", "2026-02-16", "2026-02-17", 60, 30, 0)
	if err != nil {
		t.Fatalf("GetAvailability: %v", err)
	}

	for _, slot := range resp.Days[0].Slots {
		st, _ := time.Parse(time.RFC3339, slot.Start)
		hhmm := st.In(loc).Format("15:04")
		if hhmm == "09:00" || hhmm == "09:30" {
			t.Errorf("slot %s overlaps the unexpired hold", hhmm)
		}
	}
}

func TestSweepExpiredHolds(t *testing.T) {
	now := time.Date(2026, 2, 17, 9, 0, 0, 0, time.UTC)
	start := time.Date(2026, 2, 18, 10, 0, 0, 0, time.UTC)

	store := &fakeStore{holds: []models.Hold{
		{ID: "h1", StaffID: "artist-1", Start: start, End: start.Add(time.Hour), ExpiresAt: now.Add(-time.Minute), Token: "t1"},
		{ID: "h2", StaffID: "artist-1", Start: start.Add(2 * time.Hour), End: start.Add(3 * time.Hour), ExpiresAt: now.Add(time.Minute), Token: "t2"},
	}}
	svc := newTestService(t, store, &fakeLocker{}, now)

	n, err := svc.SweepExpiredHolds(context.Background())
	if err != nil {
		t.Fatalf("SweepExpiredHolds: %v", err)
	}
	if n != 1 {
		t.Errorf("swept %d holds, want 1", n)
	}
	if len(store.holds) != 1 || store.holds[0].ID != "h2" {
		t.Errorf("surviving holds wrong: %+v", store.holds)
	}
}
