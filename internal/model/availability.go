package model

import (
	"time"

	"github.com/google/uuid"
)

// Window is a working interval within a day, in wall-clock strings as
// delivered by the API, with the slot stride used inside it.
type Window struct {
	Start               string `json:"start"`
	End                 string `json:"end"`
	SlotDurationMinutes int    `json:"slot_duration_minutes"`
}

// AvailabilityRule is the weekday-recurring working schedule of a
// clinician. Weekday follows time.Weekday numbering (Sunday = 0).
type AvailabilityRule struct {
	ClinicianID uuid.UUID    `json:"clinician_id"`
	Weekday     time.Weekday `json:"weekday"`
	Windows     []Window     `json:"windows"`
}

type ExceptionKind string

const (
	ExceptionUnavailable   ExceptionKind = "unavailable"
	ExceptionCustomWindows ExceptionKind = "custom_windows"
)

// AvailabilityException overrides the weekday rule for a single date.
// A custom_windows exception fully replaces the rule's windows; an
// unavailable exception closes the day.
type AvailabilityException struct {
	ClinicianID uuid.UUID     `json:"clinician_id"`
	Date        string        `json:"date"`
	Kind        ExceptionKind `json:"kind"`
	Windows     []Window      `json:"windows,omitempty"`
}

// Slot is a derived candidate booking window. Never persisted; always
// recomputed from rules, exceptions and bookings.
type Slot struct {
	ClinicianID     uuid.UUID `json:"clinician_id"`
	Date            string    `json:"date"`
	StartTime       string    `json:"start_time"`
	DurationMinutes int       `json:"duration_minutes"`
	Available       bool      `json:"available"`
}

// DayAvailability is the calendar bundle served by the availability
// endpoint for one clinician and day.
type DayAvailability struct {
	Rules      []AvailabilityRule      `json:"rules"`
	Exceptions []AvailabilityException `json:"exceptions"`
	Bookings   []Booking               `json:"bookings"`
}
