package models

import (
	"time"
)

const (
	BookingPending   = "pending"
	BookingApproved  = "approved"
	BookingCompleted = "completed"
	BookingCancelled = "cancelled"
)

// BookingPhase tracks where one session's booking flow currently stands.
type BookingPhase string

const (
	PhaseIdle            BookingPhase = "idle"
	PhaseQuoting         BookingPhase = "quoting"
	PhaseQuoted          BookingPhase = "quoted"
	PhaseCreating        BookingPhase = "creating"
	PhaseAwaitingPayment BookingPhase = "awaiting_external_payment"
	PhaseVerifying       BookingPhase = "verifying"
	PhaseConfirmed       BookingPhase = "confirmed"
	PhaseFailed          BookingPhase = "failed"
)

type SlotRef struct {
	ID        string    `json:"id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}

type Quote struct {
	Slots      []SlotRef `json:"slots"`
	TotalHours float64   `json:"total_hours"`
	Price      float64   `json:"price"`
	Currency   string    `json:"currency"`
}

type Booking struct {
	ID              string     `json:"booking_id"`
	AvailabilityIDs []string   `json:"availability_ids"`
	PriceID         int        `json:"price_id"`
	TeacherName     string     `json:"teacher_name,omitempty"`
	Subject         string     `json:"subject,omitempty"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         time.Time  `json:"end_time"`
	Status          string     `json:"status"`
	Price           float64    `json:"price"`
	Currency        string     `json:"currency,omitempty"`
	ProposedStart   *time.Time `json:"proposed_start_time,omitempty"`
	ProposedEnd     *time.Time `json:"proposed_end_time,omitempty"`
}

// BookingPreview is the snapshot stashed before handing the browser to the
// external checkout page. The app is torn down across that redirect, so this
// is the only client-visible record of what was being bought until the
// upstream verify call answers. It lives one round trip: read once, deleted.
type BookingPreview struct {
	CheckoutSessionID string    `json:"checkout_session_id"`
	TeacherName       string    `json:"teacher_name"`
	Subject           string    `json:"subject"`
	Slots             []SlotRef `json:"slots"`
	TotalHours        float64   `json:"total_hours"`
	Price             float64   `json:"price"`
	CreatedAt         time.Time `json:"created_at"`
}

// Confirmation is what the user sees after returning from checkout. Source
// records which fallback tier produced it: "detail" (booking fetched by id),
// "preview" (the stashed BookingPreview), or "generic".
type Confirmation struct {
	Phase         BookingPhase    `json:"phase"`
	PaymentStatus string          `json:"payment_status"`
	Source        string          `json:"source"`
	Booking       *Booking        `json:"booking,omitempty"`
	Preview       *BookingPreview `json:"preview,omitempty"`
	Message       string          `json:"message"`
	FallbackRoute string          `json:"fallback_route,omitempty"`
}
