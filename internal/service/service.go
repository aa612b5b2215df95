package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/api"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/config"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/lock"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/models"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/schedule"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/storage"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/token"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"

	"github.com/google/uuid"
)

type Service struct {
	store  Store
	locker lock.Locker
	loc    *time.Location

	defaultHoldTTL time.Duration
	maxHoldTTL     time.Duration
	lockTTL        time.Duration

	now func() time.Time
}

func NewService(store Store, locker lock.Locker, loc *time.Location, cfg config.Booking) *Service {
	return &Service{
		store:          store,
		locker:         locker,
		loc:            loc,
		defaultHoldTTL: cfg.DefaultHoldTTL,
		maxHoldTTL:     cfg.MaxHoldTTL,
		lockTTL:        cfg.LockTTL,
		now:            time.Now,
	}
}

type Store interface {
	BeginTx(ctx context.Context) (storage.Tx, error)

	// Working Rules
	CreateWorkingRule(ctx context.Context, rule *models.WorkingRule) (string, error)
	GetWorkingRule(ctx context.Context, id string) (*models.WorkingRule, error)
	ListWorkingRules(ctx context.Context, staffID string) ([]models.WorkingRule, error)
	UpdateWorkingRule(ctx context.Context, rule *models.WorkingRule) error
	DeleteWorkingRule(ctx context.Context, id string) error

	// Busy sources
	ListBusyBookings(ctx context.Context, staffID string, from, to time.Time) ([]models.Booking, error)
	ListBusySessions(ctx context.Context, staffID string, from, to time.Time) ([]models.Session, error)
	ListActiveHolds(ctx context.Context, staffID string, from, to, now time.Time) ([]models.Hold, error)
	OverlapExists(ctx context.Context, tx storage.Tx, staffID string, start, end time.Time, includeHolds bool, now time.Time) (bool, error)

	// Holds
	InsertHold(ctx context.Context, tx storage.Tx, hold *models.Hold) error
	FindHoldByToken(ctx context.Context, token string) (*models.Hold, error)
	GetHoldByToken(ctx context.Context, tx storage.Tx, token string) (*models.Hold, error)
	DeleteHold(ctx context.Context, tx storage.Tx, id string) error
	DeleteHoldByToken(ctx context.Context, token string) error
	DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error)

	// Bookings
	InsertBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error)
	GetBooking(ctx context.Context, id string) (*models.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error

	// Sessions
	CreateSession(ctx context.Context, sess *models.Session) (string, error)
	GetSession(ctx context.Context, id string) (*models.Session, error)
	UpdateSession(ctx context.Context, sess *models.Session) error
	DeleteSession(ctx context.Context, id string) error
}

// Availability

func (s *Service) GetAvailability(ctx context.Context, staffID, fromDate, toDate string, durationMin, stepMin, bufferMin int) (*api.AvailabilityResponse, error) {
	const op = "service.GetAvailability"

	if staffID == "" {
		return nil, fmt.Errorf("%s: staff_id is required: %w", op, response.ErrBadRequest)
	}

	from, err := time.ParseInLocation("2006-01-02", fromDate, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid from: %w", op, response.ErrBadRequest)
	}

	to, err := time.ParseInLocation("2006-01-02", toDate, s.loc)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid to: %w", op, response.ErrBadRequest)
	}

	if !to.After(from) {
		return nil, fmt.Errorf("%s: to must be after from: %w", op, response.ErrBadRequest)
	}

	if durationMin <= 0 || stepMin <= 0 || bufferMin < 0 {
		return nil, fmt.Errorf("%s: invalid duration/step/buffer: %w", op, response.ErrBadRequest)
	}

	rules, err := s.store.ListWorkingRules(ctx, staffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	busy, err := s.collectBusyIntervals(ctx, staffID, from, to, bufferMin)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	days := schedule.PlanDays(rules, busy, from, to, durationMin, stepMin, s.now(), s.loc)

	resp := &api.AvailabilityResponse{
		Timezone:        s.loc.String(),
		StaffID:         staffID,
		DurationMinutes: durationMin,
		StepMinutes:     stepMin,
		Days:            make([]api.DaySlotsDTO, 0, len(days)),
	}

	for _, day := range days {
		dto := api.DaySlotsDTO{
			Date:  day.Date.Format("2006-01-02"),
			Slots: make([]api.SlotDTO, 0, len(day.Slots)),
		}
		for _, slot := range day.Slots {
			dto.Slots = append(dto.Slots, api.SlotDTO{
				Start: slot.Start.Format(time.RFC3339),
				End:   slot.End.Format(time.RFC3339),
			})
		}
		resp.Days = append(resp.Days, dto)
	}

	return resp, nil
}

// Holds

func (s *Service) CreateHold(ctx context.Context, req *api.HoldRequest) (*api.HoldResponse, error) {
	const op = "service.CreateHold"

	if req.StaffID == "" {
		return nil, fmt.Errorf("%s: staff_id is required: %w", op, response.ErrBadRequest)
	}

	// A hold without a client could never be confirmed; reject it here
	// rather than trusting transport-level validation.
	if req.ClientID == "" {
		return nil, fmt.Errorf("%s: client_id is required: %w", op, response.ErrBadRequest)
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrBadRequest)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrBadRequest)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end must be after start: %w", op, response.ErrBadRequest)
	}

	ttl := s.defaultHoldTTL
	if req.TTLSeconds != 0 {
		ttl = time.Duration(req.TTLSeconds) * time.Second
	}
	if ttl <= 0 || ttl > s.maxHoldTTL {
		return nil, fmt.Errorf("%s: ttl out of range: %w", op, response.ErrBadRequest)
	}

	lockKey := fmt.Sprintf("staff:%s", req.StaffID)

	locked, err := s.locker.Lock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := s.now()

	// Hold-time check is exact: no buffer, all three busy sources.
	busy, err := s.store.OverlapExists(ctx, tx, req.StaffID, start, end, true, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if busy {
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	tok, err := token.New()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	hold := &models.Hold{
		ID:        uuid.NewString(),
		StaffID:   req.StaffID,
		ClientID:  req.ClientID,
		Start:     start,
		End:       end,
		ExpiresAt: now.Add(ttl),
		Token:     tok,
	}

	if err := s.store.InsertHold(ctx, tx, hold); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return &api.HoldResponse{
		Token:     hold.Token,
		ExpiresAt: hold.ExpiresAt.In(s.loc).Format(time.RFC3339),
	}, nil
}

func (s *Service) ReleaseHold(ctx context.Context, holdToken string) error {
	const op = "service.ReleaseHold"

	if holdToken == "" {
		return fmt.Errorf("%s: token is required: %w", op, response.ErrBadRequest)
	}

	if err := s.store.DeleteHoldByToken(ctx, holdToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ConfirmHold promotes a live hold into a confirmed booking. It takes
// the same staff advisory lock as CreateHold, so a confirm racing a
// fresh hold over the same window on an expiring hold serializes:
// whichever side runs second sees the other's write and rejects.
// Within the lock, lookup, expiry check, overlap re-check, booking
// insert, and hold deletion run inside one transaction; the row lock
// taken by the token lookup serializes racing confirms for the same
// hold.
func (s *Service) ConfirmHold(ctx context.Context, req *api.ConfirmRequest) (*api.ConfirmResponse, error) {
	const op = "service.ConfirmHold"

	// Unlocked peek, only to learn which staff calendar to serialize
	// on. The authoritative read happens under the lock, in the tx.
	peek, err := s.store.FindHoldByToken(ctx, req.Token)
	if err != nil {
		if errors.Is(err, response.ErrHoldNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrHoldNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	lockKey := fmt.Sprintf("staff:%s", peek.StaffID)

	locked, err := s.locker.Lock(ctx, lockKey, s.lockTTL)
	if err != nil {
		return nil, fmt.Errorf("%s: lock error: %w", op, err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", op, response.ErrLocked)
	}
	defer func() {
		_ = s.locker.Unlock(ctx, lockKey)
	}()

	tx, err := s.store.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	hold, err := s.store.GetHoldByToken(ctx, tx, req.Token)
	if err != nil {
		if errors.Is(err, response.ErrHoldNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrHoldNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if hold.ClientID == "" {
		return nil, fmt.Errorf("%s: %w", op, response.ErrHoldMissingClient)
	}

	// Sampled after the lock: an expiry decided here stays decided for
	// every later writer on this staff calendar.
	now := s.now()
	if !hold.ExpiresAt.After(now) {
		return nil, fmt.Errorf("%s: %w", op, response.ErrHoldExpired)
	}

	// Bookings and sessions only: the hold itself is the reservation,
	// other unexpired holds were already excluded when it was created.
	busy, err := s.store.OverlapExists(ctx, tx, hold.StaffID, hold.Start, hold.End, false, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if busy {
		return nil, fmt.Errorf("%s: %w", op, response.ErrSlotNotAvailable)
	}

	booking := &models.Booking{
		ID:              uuid.NewString(),
		StaffID:         hold.StaffID,
		ClientID:        hold.ClientID,
		Start:           hold.Start,
		End:             hold.End,
		DurationMinutes: int(hold.End.Sub(hold.Start) / time.Minute),
		Status:          models.BookingConfirmed,
		Notes:           req.Notes,
	}

	bookingID, err := s.store.InsertBooking(ctx, tx, booking)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := s.store.DeleteHold(ctx, tx, hold.ID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%s: commit: %w", op, err)
	}

	return &api.ConfirmResponse{
		BookingID: bookingID,
		Status:    string(models.BookingConfirmed),
	}, nil
}

func (s *Service) SweepExpiredHolds(ctx context.Context) (int64, error) {
	const op = "service.SweepExpiredHolds"

	n, err := s.store.DeleteExpiredHolds(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// Bookings

func (s *Service) GetBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.GetBooking"

	booking, err := s.store.GetBooking(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return bookingResponse(booking, s.loc), nil
}

func (s *Service) CancelBooking(ctx context.Context, id string) (*api.BookingResponse, error) {
	const op = "service.CancelBooking"

	err := s.store.UpdateBookingStatus(ctx, id, models.BookingCancelled)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetBooking(ctx, id)
}

func bookingResponse(b *models.Booking, loc *time.Location) *api.BookingResponse {
	return &api.BookingResponse{
		ID:              b.ID,
		StaffID:         b.StaffID,
		ClientID:        b.ClientID,
		Start:           b.Start.In(loc).Format(time.RFC3339),
		End:             b.End.In(loc).Format(time.RFC3339),
		DurationMinutes: b.DurationMinutes,
		BufferMinutes:   b.BufferMinutes,
		Status:          string(b.Status),
		Notes:           b.Notes,
	}
}

// Working Rules

func (s *Service) CreateWorkingRule(ctx context.Context, req *api.WorkingRuleRequest) (*api.WorkingRuleResponse, error) {
	const op = "service.CreateWorkingRule"

	startMin := schedule.MinutesOfDay(req.StartTime)
	endMin := schedule.MinutesOfDay(req.EndTime)
	if endMin <= startMin {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrBadRequest)
	}

	rule := &models.WorkingRule{
		StaffID:     req.StaffID,
		Weekday:     req.Weekday,
		StartMinute: startMin,
		EndMinute:   endMin,
		Timezone:    s.loc.String(),
	}

	id, err := s.store.CreateWorkingRule(ctx, rule)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetWorkingRule(ctx, id)
}

func (s *Service) GetWorkingRule(ctx context.Context, id string) (*api.WorkingRuleResponse, error) {
	const op = "service.GetWorkingRule"

	rule, err := s.store.GetWorkingRule(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return workingRuleResponse(rule), nil
}

func (s *Service) UpdateWorkingRule(ctx context.Context, id string, req *api.WorkingRuleRequest) (*api.WorkingRuleResponse, error) {
	const op = "service.UpdateWorkingRule"

	rule, err := s.store.GetWorkingRule(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	startMin := schedule.MinutesOfDay(req.StartTime)
	endMin := schedule.MinutesOfDay(req.EndTime)
	if endMin <= startMin {
		return nil, fmt.Errorf("%s: end_time must be after start_time: %w", op, response.ErrBadRequest)
	}

	rule.StaffID = req.StaffID
	rule.Weekday = req.Weekday
	rule.StartMinute = startMin
	rule.EndMinute = endMin

	if err := s.store.UpdateWorkingRule(ctx, rule); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetWorkingRule(ctx, id)
}

func (s *Service) DeleteWorkingRule(ctx context.Context, id string) error {
	const op = "service.DeleteWorkingRule"

	err := s.store.DeleteWorkingRule(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func workingRuleResponse(rule *models.WorkingRule) *api.WorkingRuleResponse {
	return &api.WorkingRuleResponse{
		ID:        rule.ID,
		StaffID:   rule.StaffID,
		Weekday:   rule.Weekday,
		StartTime: fmt.Sprintf("%02d:%02d", rule.StartMinute/60, rule.StartMinute%60),
		EndTime:   fmt.Sprintf("%02d:%02d", rule.EndMinute/60, rule.EndMinute%60),
		Timezone:  rule.Timezone,
	}
}

// Sessions

func (s *Service) CreateSession(ctx context.Context, req *api.SessionRequest) (*api.SessionResponse, error) {
	const op = "service.CreateSession"

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrBadRequest)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrBadRequest)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end must be after start: %w", op, response.ErrBadRequest)
	}

	status := models.SessionStatus(req.Status)
	if status != models.SessionPlanned && status != models.SessionConfirmed && status != models.SessionCancelled {
		return nil, fmt.Errorf("%s: invalid status: %w", op, response.ErrBadRequest)
	}

	sess := &models.Session{
		StaffID: req.StaffID,
		Start:   start,
		End:     end,
		Reason:  req.Reason,
		Status:  status,
	}

	id, err := s.store.CreateSession(ctx, sess)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetSession(ctx, id)
}

func (s *Service) GetSession(ctx context.Context, id string) (*api.SessionResponse, error) {
	const op = "service.GetSession"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return sessionResponse(sess, s.loc), nil
}

func (s *Service) UpdateSession(ctx context.Context, id string, req *api.SessionRequest) (*api.SessionResponse, error) {
	const op = "service.UpdateSession"

	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start, err := time.Parse(time.RFC3339, req.Start)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid start: %w", op, response.ErrBadRequest)
	}

	end, err := time.Parse(time.RFC3339, req.End)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid end: %w", op, response.ErrBadRequest)
	}

	if !end.After(start) {
		return nil, fmt.Errorf("%s: end must be after start: %w", op, response.ErrBadRequest)
	}

	status := models.SessionStatus(req.Status)
	if status != models.SessionPlanned && status != models.SessionConfirmed && status != models.SessionCancelled {
		return nil, fmt.Errorf("%s: invalid status: %w", op, response.ErrBadRequest)
	}

	sess.StaffID = req.StaffID
	sess.Start = start
	sess.End = end
	sess.Reason = req.Reason
	sess.Status = status

	if err := s.store.UpdateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return s.GetSession(ctx, id)
}

func (s *Service) DeleteSession(ctx context.Context, id string) error {
	const op = "service.DeleteSession"

	err := s.store.DeleteSession(ctx, id)
	if err != nil {
		if errors.Is(err, response.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func sessionResponse(sess *models.Session, loc *time.Location) *api.SessionResponse {
	return &api.SessionResponse{
		ID:      sess.ID,
		StaffID: sess.StaffID,
		Start:   sess.Start.In(loc).Format(time.RFC3339),
		End:     sess.End.In(loc).Format(time.RFC3339),
		Reason:  sess.Reason,
		Status:  string(sess.Status),
	}
}
