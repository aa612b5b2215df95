package models

import "time"

type BookingStatus string

const (
	BookingHeld      BookingStatus = "held"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

type SessionStatus string

const (
	SessionPlanned   SessionStatus = "planned"
	SessionConfirmed SessionStatus = "confirmed"
	SessionCancelled SessionStatus = "cancelled"
)

// WorkingRule is a recurring weekly availability window for one artist.
// Weekday is ISO numbered, Monday=1..Sunday=7. StartMinute and EndMinute
// are minutes of day in the studio timezone.
type WorkingRule struct {
	ID          string `db:"id"`
	StaffID     string `db:"staff_id"`
	Weekday     int    `db:"weekday"`
	StartMinute int    `db:"start_minute"`
	EndMinute   int    `db:"end_minute"`
	Timezone    string `db:"timezone"`
}

type Booking struct {
	ID              string        `db:"id"`
	StaffID         string        `db:"staff_id"`
	ClientID        string        `db:"client_id"`
	Start           time.Time     `db:"start_at"`
	End             time.Time     `db:"end_at"`
	DurationMinutes int           `db:"duration_minutes"`
	BufferMinutes   int           `db:"buffer_minutes"`
	Status          BookingStatus `db:"status"`
	Notes           string        `db:"notes"`
}

// Session is studio work that occupies the artist outside the booking
// flow (walk-ins, touch-ups, guest spots).
type Session struct {
	ID      string        `db:"id"`
	StaffID string        `db:"staff_id"`
	Start   time.Time     `db:"start_at"`
	End     time.Time     `db:"end_at"`
	Reason  string        `db:"reason"`
	Status  SessionStatus `db:"status"`
}

// Hold is a time-boxed soft reservation. Token is the public handle, a
// bearer credential. An expired hold is inert: readers skip it, confirm
// rejects it, the sweep eventually deletes the row.
type Hold struct {
	ID        string    `db:"id"`
	StaffID   string    `db:"staff_id"`
	ClientID  string    `db:"client_id"`
	Start     time.Time `db:"start_at"`
	End       time.Time `db:"end_at"`
	ExpiresAt time.Time `db:"expires_at"`
	Token     string    `db:"token"`
}

// BusyInterval is one occupied window, already padded by any buffer.
// Derived per query, never persisted.
type BusyInterval struct {
	Start time.Time
	End   time.Time
}
