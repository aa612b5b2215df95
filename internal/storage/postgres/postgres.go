package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/models"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/internal/storage"
	"github.com/ValhallaWebApp/rebis-tattoo-sub001/pkg/response"

	"github.com/lib/pq"
)

type Storage struct {
	db *sql.DB
}

func New(storagePath string) (*Storage, error) {
	const op = "storage.postgres.New"

	db, err := sql.Open("postgres", storagePath)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Storage{db: db}, nil
}

func (s *Storage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}

	return s.db.Close()
}

func (s *Storage) BeginTx(ctx context.Context) (storage.Tx, error) {
	return s.db.BeginTx(ctx, nil)
}

func sqlTx(tx storage.Tx) (*sql.Tx, error) {
	t, ok := tx.(*sql.Tx)
	if !ok {
		return nil, fmt.Errorf("storage.postgres: unexpected tx type %T", tx)
	}

	return t, nil
}

// #### working rules ####

func (s *Storage) CreateWorkingRule(ctx context.Context, rule *models.WorkingRule) (string, error) {
	const op = "storage.postgres.CreateWorkingRule"

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO working_rules
		(staff_id, weekday, start_minute, end_minute, timezone)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		rule.StaffID,
		rule.Weekday,
		rule.StartMinute,
		rule.EndMinute,
		rule.Timezone,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetWorkingRule(ctx context.Context, id string) (*models.WorkingRule, error) {
	const op = "storage.postgres.GetWorkingRule"

	var rule models.WorkingRule

	err := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, weekday, start_minute, end_minute, timezone
		FROM working_rules WHERE id=$1`, id).
		Scan(
			&rule.ID,
			&rule.StaffID,
			&rule.Weekday,
			&rule.StartMinute,
			&rule.EndMinute,
			&rule.Timezone,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &rule, nil
}

func (s *Storage) ListWorkingRules(ctx context.Context, staffID string) ([]models.WorkingRule, error) {
	const op = "storage.postgres.ListWorkingRules"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, staff_id, weekday, start_minute, end_minute, timezone
		FROM working_rules WHERE staff_id=$1`, staffID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var rules []models.WorkingRule
	for rows.Next() {
		var rule models.WorkingRule
		err := rows.Scan(
			&rule.ID,
			&rule.StaffID,
			&rule.Weekday,
			&rule.StartMinute,
			&rule.EndMinute,
			&rule.Timezone,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		rules = append(rules, rule)
	}

	return rules, nil
}

func (s *Storage) UpdateWorkingRule(ctx context.Context, rule *models.WorkingRule) error {
	const op = "storage.postgres.UpdateWorkingRule"

	res, err := s.db.ExecContext(ctx,
		`UPDATE working_rules
		SET staff_id=$1, weekday=$2, start_minute=$3, end_minute=$4, timezone=$5
		WHERE id=$6`,
		rule.StaffID,
		rule.Weekday,
		rule.StartMinute,
		rule.EndMinute,
		rule.Timezone,
		rule.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteWorkingRule(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteWorkingRule"

	res, err := s.db.ExecContext(ctx, `DELETE FROM working_rules WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### busy sources ####

func (s *Storage) ListBusyBookings(ctx context.Context, staffID string, from, to time.Time) ([]models.Booking, error) {
	const op = "storage.postgres.ListBusyBookings"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, staff_id, client_id, start_at, end_at, duration_minutes, buffer_minutes, status, COALESCE(notes, '')
		FROM bookings
		WHERE staff_id=$1
		AND status IN ('held', 'confirmed')
		AND start_at < $3 AND end_at > $2`,
		staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var bookings []models.Booking
	for rows.Next() {
		var b models.Booking
		err := rows.Scan(
			&b.ID,
			&b.StaffID,
			&b.ClientID,
			&b.Start,
			&b.End,
			&b.DurationMinutes,
			&b.BufferMinutes,
			&b.Status,
			&b.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		bookings = append(bookings, b)
	}

	return bookings, nil
}

func (s *Storage) ListBusySessions(ctx context.Context, staffID string, from, to time.Time) ([]models.Session, error) {
	const op = "storage.postgres.ListBusySessions"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, staff_id, start_at, end_at, COALESCE(reason, ''), status
		FROM sessions
		WHERE staff_id=$1
		AND status IN ('planned', 'confirmed')
		AND start_at < $3 AND end_at > $2`,
		staffID, from, to)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		err := rows.Scan(
			&sess.ID,
			&sess.StaffID,
			&sess.Start,
			&sess.End,
			&sess.Reason,
			&sess.Status,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		sessions = append(sessions, sess)
	}

	return sessions, nil
}

func (s *Storage) ListActiveHolds(ctx context.Context, staffID string, from, to, now time.Time) ([]models.Hold, error) {
	const op = "storage.postgres.ListActiveHolds"

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, staff_id, client_id, start_at, end_at, expires_at, token
		FROM holds
		WHERE staff_id=$1
		AND expires_at > $4
		AND start_at < $3 AND end_at > $2`,
		staffID, from, to, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	defer rows.Close()

	var holds []models.Hold
	for rows.Next() {
		var h models.Hold
		err := rows.Scan(
			&h.ID,
			&h.StaffID,
			&h.ClientID,
			&h.Start,
			&h.End,
			&h.ExpiresAt,
			&h.Token,
		)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		holds = append(holds, h)
	}

	return holds, nil
}

// OverlapExists re-checks the exact window inside the caller's
// transaction. The advisory lock in the service layer keeps two
// checkers for the same staff calendar from interleaving.
func (s *Storage) OverlapExists(ctx context.Context, tx storage.Tx, staffID string, start, end time.Time, includeHolds bool, now time.Time) (bool, error) {
	const op = "storage.postgres.OverlapExists"

	t, err := sqlTx(tx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	var busy bool
	err = t.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM bookings
			WHERE staff_id=$1
			AND status IN ('held', 'confirmed')
			AND start_at < $3 AND end_at > $2
		) OR EXISTS (
			SELECT 1 FROM sessions
			WHERE staff_id=$1
			AND status IN ('planned', 'confirmed')
			AND start_at < $3 AND end_at > $2
		)`,
		staffID, start, end).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	if busy {
		return true, nil
	}

	if !includeHolds {
		return false, nil
	}

	err = t.QueryRowContext(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM holds
			WHERE staff_id=$1
			AND expires_at > $4
			AND start_at < $3 AND end_at > $2
		)`,
		staffID, start, end, now).Scan(&busy)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}

	return busy, nil
}

// #### holds ####

func (s *Storage) InsertHold(ctx context.Context, tx storage.Tx, hold *models.Hold) error {
	const op = "storage.postgres.InsertHold"

	t, err := sqlTx(tx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = t.ExecContext(ctx,
		`INSERT INTO holds
		(id, staff_id, client_id, start_at, end_at, expires_at, token)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		hold.ID,
		hold.StaffID,
		hold.ClientID,
		hold.Start,
		hold.End,
		hold.ExpiresAt,
		hold.Token,
	)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return fmt.Errorf("%s: %w", op, response.ErrConflict)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// FindHoldByToken reads a hold outside any transaction, without a row
// lock. Callers that go on to mutate must re-fetch with GetHoldByToken
// inside their transaction.
func (s *Storage) FindHoldByToken(ctx context.Context, token string) (*models.Hold, error) {
	const op = "storage.postgres.FindHoldByToken"

	var hold models.Hold
	err := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, COALESCE(client_id, ''), start_at, end_at, expires_at, token
		FROM holds WHERE token=$1`, token).
		Scan(
			&hold.ID,
			&hold.StaffID,
			&hold.ClientID,
			&hold.Start,
			&hold.End,
			&hold.ExpiresAt,
			&hold.Token,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrHoldNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &hold, nil
}

func (s *Storage) GetHoldByToken(ctx context.Context, tx storage.Tx, token string) (*models.Hold, error) {
	const op = "storage.postgres.GetHoldByToken"

	t, err := sqlTx(tx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var hold models.Hold
	err = t.QueryRowContext(ctx,
		`SELECT id, staff_id, COALESCE(client_id, ''), start_at, end_at, expires_at, token
		FROM holds WHERE token=$1
		FOR UPDATE`, token).
		Scan(
			&hold.ID,
			&hold.StaffID,
			&hold.ClientID,
			&hold.Start,
			&hold.End,
			&hold.ExpiresAt,
			&hold.Token,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrHoldNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &hold, nil
}

func (s *Storage) DeleteHold(ctx context.Context, tx storage.Tx, id string) error {
	const op = "storage.postgres.DeleteHold"

	t, err := sqlTx(tx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	_, err = t.ExecContext(ctx, `DELETE FROM holds WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// DeleteHoldByToken is the release path. Absence is not an error.
func (s *Storage) DeleteHoldByToken(ctx context.Context, token string) error {
	const op = "storage.postgres.DeleteHoldByToken"

	_, err := s.db.ExecContext(ctx, `DELETE FROM holds WHERE token=$1`, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Storage) DeleteExpiredHolds(ctx context.Context, now time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredHolds"

	res, err := s.db.ExecContext(ctx, `DELETE FROM holds WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return n, nil
}

// #### bookings ####

func (s *Storage) InsertBooking(ctx context.Context, tx storage.Tx, booking *models.Booking) (string, error) {
	const op = "storage.postgres.InsertBooking"

	t, err := sqlTx(tx)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	var id string
	err = t.QueryRowContext(ctx,
		`INSERT INTO bookings
		(id, staff_id, client_id, start_at, end_at, duration_minutes, buffer_minutes, status, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		booking.ID,
		booking.StaffID,
		booking.ClientID,
		booking.Start,
		booking.End,
		booking.DurationMinutes,
		booking.BufferMinutes,
		booking.Status,
		booking.Notes,
	).Scan(&id)
	if err != nil {
		sqlErr, ok := err.(*pq.Error)
		if ok && sqlErr.Code == "23505" {
			return "", fmt.Errorf("%s: %w", op, response.ErrConflict)
		}

		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetBooking(ctx context.Context, id string) (*models.Booking, error) {
	const op = "storage.postgres.GetBooking"

	var b models.Booking
	err := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, client_id, start_at, end_at, duration_minutes, buffer_minutes, status, COALESCE(notes, '')
		FROM bookings WHERE id=$1`, id).
		Scan(
			&b.ID,
			&b.StaffID,
			&b.ClientID,
			&b.Start,
			&b.End,
			&b.DurationMinutes,
			&b.BufferMinutes,
			&b.Status,
			&b.Notes,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &b, nil
}

func (s *Storage) UpdateBookingStatus(ctx context.Context, bookingID string, status models.BookingStatus) error {
	const op = "storage.postgres.UpdateBookingStatus"

	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status=$1 WHERE id=$2`, string(status), bookingID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

// #### sessions ####

func (s *Storage) CreateSession(ctx context.Context, sess *models.Session) (string, error) {
	const op = "storage.postgres.CreateSession"

	var id string
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO sessions
		(staff_id, start_at, end_at, reason, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		sess.StaffID,
		sess.Start,
		sess.End,
		sess.Reason,
		sess.Status,
	).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (s *Storage) GetSession(ctx context.Context, id string) (*models.Session, error) {
	const op = "storage.postgres.GetSession"

	var sess models.Session
	err := s.db.QueryRowContext(ctx,
		`SELECT id, staff_id, start_at, end_at, COALESCE(reason, ''), status
		FROM sessions WHERE id=$1`, id).
		Scan(
			&sess.ID,
			&sess.StaffID,
			&sess.Start,
			&sess.End,
			&sess.Reason,
			&sess.Status,
		)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%s: %w", op, response.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &sess, nil
}

func (s *Storage) UpdateSession(ctx context.Context, sess *models.Session) error {
	const op = "storage.postgres.UpdateSession"

	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		SET staff_id=$1, start_at=$2, end_at=$3, reason=$4, status=$5
		WHERE id=$6`,
		sess.StaffID,
		sess.Start,
		sess.End,
		sess.Reason,
		sess.Status,
		sess.ID,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}

func (s *Storage) DeleteSession(ctx context.Context, id string) error {
	const op = "storage.postgres.DeleteSession"

	res, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id=$1`, id)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, response.ErrNotFound)
	}

	return nil
}
