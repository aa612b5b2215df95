package api

type SlotDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type DaySlotsDTO struct {
	Date  string    `json:"date"`
	Slots []SlotDTO `json:"slots"`
}

type AvailabilityResponse struct {
	Timezone        string        `json:"timezone"`
	StaffID         string        `json:"staff_id"`
	DurationMinutes int           `json:"duration_minutes"`
	StepMinutes     int           `json:"step_minutes"`
	Days            []DaySlotsDTO `json:"days"`
}

type HoldRequest struct {
	StaffID    string `json:"staff_id" validate:"required"`
	ClientID   string `json:"client_id" validate:"required"`
	Start      string `json:"start" validate:"required"`
	End        string `json:"end" validate:"required"`
	TTLSeconds int    `json:"ttl_seconds" validate:"omitempty,gt=0,max=3600"`
}

type HoldResponse struct {
	Token     string `json:"token"`
	ExpiresAt string `json:"expires_at"`
}

type ConfirmRequest struct {
	Token string `json:"token" validate:"required"`
	Notes string `json:"notes"`
}

type ConfirmResponse struct {
	BookingID string `json:"booking_id"`
	Status    string `json:"status"`
}

type BookingResponse struct {
	ID              string `json:"id"`
	StaffID         string `json:"staff_id"`
	ClientID        string `json:"client_id"`
	Start           string `json:"start"`
	End             string `json:"end"`
	DurationMinutes int    `json:"duration_minutes"`
	BufferMinutes   int    `json:"buffer_minutes"`
	Status          string `json:"status"`
	Notes           string `json:"notes,omitempty"`
}

type WorkingRuleRequest struct {
	StaffID   string `json:"staff_id" validate:"required"`
	Weekday   int    `json:"weekday" validate:"required,min=1,max=7"`
	StartTime string `json:"start_time" validate:"required"`
	EndTime   string `json:"end_time" validate:"required"`
}

type WorkingRuleResponse struct {
	ID        string `json:"id"`
	StaffID   string `json:"staff_id"`
	Weekday   int    `json:"weekday"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Timezone  string `json:"timezone"`
}

type SessionRequest struct {
	StaffID string `json:"staff_id" validate:"required"`
	Start   string `json:"start" validate:"required"`
	End     string `json:"end" validate:"required"`
	Reason  string `json:"reason"`
	Status  string `json:"status" validate:"required,oneof=planned confirmed cancelled"`
}

type SessionResponse struct {
	ID      string `json:"id"`
	StaffID string `json:"staff_id"`
	Start   string `json:"start"`
	End     string `json:"end"`
	Reason  string `json:"reason,omitempty"`
	Status  string `json:"status"`
}
