package errors

import (
	"errors"
	"fmt"
)

// Kind classifies an API error into the client's error taxonomy.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindAlreadyBooked
	KindNotFound
	KindUnauthorized
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAlreadyBooked:
		return "already_booked"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Occupant summarises the booking that occupies a conflicting slot.
type Occupant struct {
	Start           string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	PatientName     string `json:"patient_name"`
	Type            string `json:"type"`
}

// AppError is the tagged error returned by the gateway. Validation
// errors carry a field-level message map; conflicts carry the occupying
// bookings.
type AppError struct {
	Kind      Kind
	Message   string
	Fields    map[string]string
	Occupants []Occupant
	Err       error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient. Only transport
// failures qualify; mutations are never auto-retried regardless.
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransport
}

func Validation(fields map[string]string) *AppError {
	return &AppError{
		Kind:    KindValidation,
		Message: "request failed validation",
		Fields:  fields,
	}
}

func AlreadyBooked(occupants []Occupant) *AppError {
	return &AppError{
		Kind:      KindAlreadyBooked,
		Message:   "requested time is already booked",
		Occupants: occupants,
	}
}

func NotFound(resource string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Message: fmt.Sprintf("%s not found", resource),
	}
}

func Unauthorized(err error) *AppError {
	return &AppError{
		Kind:    KindUnauthorized,
		Message: "unauthorized",
		Err:     err,
	}
}

func Transport(err error) *AppError {
	return &AppError{
		Kind:    KindTransport,
		Message: "request failed in transit",
		Err:     err,
	}
}

func Unknown(message string, err error) *AppError {
	if message == "" {
		message = "unexpected error"
	}
	return &AppError{
		Kind:    KindUnknown,
		Message: message,
		Err:     err,
	}
}

// KindOf extracts the taxonomy kind from any error. Errors that are not
// AppErrors report KindUnknown.
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// As unwraps err into an *AppError when possible.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return KindOf(err) == kind
}
