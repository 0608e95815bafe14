package model

import (
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/pkg/clock"
)

type BookingStatus string

const (
	BookingStatusScheduled BookingStatus = "scheduled"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// Valid reports whether s is a member of the closed status set.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingStatusScheduled, BookingStatusConfirmed, BookingStatusCompleted,
		BookingStatusCancelled, BookingStatusNoShow:
		return true
	}
	return false
}

type BookingPriority string

const (
	PriorityNormal BookingPriority = "normal"
	PriorityHigh   BookingPriority = "high"
)

type BookingType string

const (
	TypeConsultation     BookingType = "consultation"
	TypeFollowUp         BookingType = "follow_up"
	TypeTeleconsultation BookingType = "teleconsultation"
	TypeProcedure        BookingType = "procedure"
)

// Booking is a persisted appointment owned by the remote service. The
// client only ever holds cached read-copies.
type Booking struct {
	ID              uuid.UUID       `json:"id"`
	ClinicianID     uuid.UUID       `json:"clinician_id"`
	ClinicianName   string          `json:"clinician_name"`
	PatientID       uuid.UUID       `json:"patient_id"`
	PatientName     string          `json:"patient_name"`
	Date            string          `json:"date"`
	StartTime       string          `json:"start_time"`
	DurationMinutes int             `json:"duration_minutes"`
	Type            BookingType     `json:"type"`
	Priority        BookingPriority `json:"priority"`
	Status          BookingStatus   `json:"status"`
	Reason          string          `json:"reason,omitempty"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Interval returns the booking's wall-clock interval. Bookings with an
// unparsable start time report a zero interval, which overlaps nothing.
func (b *Booking) Interval() clock.Interval {
	start, err := clock.Parse(b.StartTime)
	if err != nil {
		return clock.Interval{}
	}
	return clock.NewInterval(start, b.DurationMinutes)
}

// Occupies reports whether the booking blocks clinician time, i.e. it
// is not cancelled.
func (b *Booking) Occupies() bool {
	return b.Status != BookingStatusCancelled
}

// BookingDraft accumulates the compose form. Required fields gate the
// submit transition.
type BookingDraft struct {
	PatientID       uuid.UUID       `json:"patient_id" validate:"required"`
	ClinicianID     uuid.UUID       `json:"clinician_id" validate:"required"`
	Type            BookingType     `json:"type" validate:"required,oneof=consultation follow_up teleconsultation procedure"`
	Date            string          `json:"date" validate:"required,datetime=2006-01-02"`
	StartTime       string          `json:"start_time" validate:"required"`
	DurationMinutes int             `json:"duration_minutes" validate:"required,gt=0"`
	Priority        BookingPriority `json:"priority" validate:"omitempty,oneof=normal high"`
	Reason          string          `json:"reason" validate:"max=500"`
	Notes           string          `json:"notes" validate:"max=1000"`
	Force           bool            `json:"force,omitempty"`

	// RescheduleID is set when the draft edits an existing booking
	// instead of creating a new one.
	RescheduleID uuid.UUID `json:"-"`
}

// IsReschedule reports whether the draft targets an existing booking.
func (d *BookingDraft) IsReschedule() bool {
	return d.RescheduleID != uuid.Nil
}

// Stats is the appointment statistics summary served by the API.
type Stats struct {
	Total           int                   `json:"total"`
	Today           int                   `json:"today"`
	Upcoming        int                   `json:"upcoming"`
	StatusHistogram map[BookingStatus]int `json:"status_histogram"`
}

// CompletionRate returns completed/total as an integer percentage,
// zero when there are no bookings.
func (s *Stats) CompletionRate() int {
	if s.Total == 0 {
		return 0
	}
	completed := s.StatusHistogram[BookingStatusCompleted]
	return int(float64(completed)/float64(s.Total)*100 + 0.5)
}
