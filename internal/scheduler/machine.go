// Package scheduler drives the create/reschedule flow: composing a
// draft, preflighting it for conflicts, submitting it, and reconciling
// the server's verdict.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/availability"
	"github.com/medisched/scheduling-client/internal/conflict"
	"github.com/medisched/scheduling-client/internal/ledger"
	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/clock"
	"github.com/medisched/scheduling-client/pkg/errors"
	"github.com/medisched/scheduling-client/pkg/logger"
	"github.com/medisched/scheduling-client/pkg/metrics"
)

// State is the user-visible phase of the scheduling flow.
type State string

const (
	StateIdle              State = "idle"
	StateComposing         State = "composing"
	StatePreflightChecking State = "preflight_checking"
	StateConflictPresented State = "conflict_presented"
	StateSubmitting        State = "submitting"
	StateSucceeded         State = "succeeded"
	StateFailed            State = "failed"
)

// Gateway is the slice of the API client the machine needs.
type Gateway interface {
	Create(ctx context.Context, draft *model.BookingDraft) (*model.Booking, error)
	Reschedule(ctx context.Context, id uuid.UUID, date, start string, durationMinutes int, force bool) (*model.Booking, error)
	Availability(ctx context.Context, clinicianID uuid.UUID, date string) (*model.DayAvailability, error)
}

// Machine is the scheduling state machine. It is cooperative: all
// methods run on the UI event loop, suspending only at gateway I/O.
// Each submission carries a monotonically increasing attempt token;
// results arriving for a superseded token are discarded.
type Machine struct {
	gw       Gateway
	detector *conflict.Detector
	bus      *ledger.Bus
	validate *validator.Validate
	logger   *logger.Logger
	metrics  *metrics.Metrics

	state       State
	actor       model.Actor
	draft       model.BookingDraft
	slots       []model.Slot
	fieldErrors map[string]string
	conflict    *conflict.Report
	failureMsg  string
	result      *model.Booking
	attempt     uint64
}

// NewMachine wires the scheduling flow. Metrics may be nil; bus may be
// nil when no ledger is listening.
func NewMachine(gw Gateway, detector *conflict.Detector, bus *ledger.Bus, log *logger.Logger, m *metrics.Metrics) *Machine {
	if log == nil {
		log = logger.Nop()
	}
	return &Machine{
		gw:       gw,
		detector: detector,
		bus:      bus,
		validate: validator.New(),
		logger:   log.WithComponent("scheduler"),
		metrics:  m,
		state:    StateIdle,
	}
}

// State returns the current phase.
func (m *Machine) State() State { return m.state }

// Draft returns a copy of the compose form.
func (m *Machine) Draft() model.BookingDraft { return m.draft }

// Slots returns the candidate slots for the drafted clinician and day.
func (m *Machine) Slots() []model.Slot { return m.slots }

// FieldErrors returns the field-level validation messages, if any.
func (m *Machine) FieldErrors() map[string]string { return m.fieldErrors }

// Conflict returns the presented conflict report, if any.
func (m *Machine) Conflict() *conflict.Report { return m.conflict }

// FailureMessage returns the terminal failure message, if any.
func (m *Machine) FailureMessage() string { return m.failureMsg }

// Result returns the booking produced by a successful submission.
func (m *Machine) Result() *model.Booking { return m.result }

// BeginCompose opens a fresh draft. Clinician callers compose against
// their own calendar.
func (m *Machine) BeginCompose(actor model.Actor) {
	m.actor = actor
	m.draft = model.BookingDraft{Priority: model.PriorityNormal}
	if actor.Role == model.RoleClinician {
		m.draft.ClinicianID = actor.ID
	}
	m.slots = nil
	m.fieldErrors = nil
	m.conflict = nil
	m.failureMsg = ""
	m.result = nil
	m.state = StateComposing
}

// BeginReschedule opens a draft seeded from an existing booking.
func (m *Machine) BeginReschedule(actor model.Actor, booking *model.Booking) {
	m.BeginCompose(actor)
	m.draft = model.BookingDraft{
		PatientID:       booking.PatientID,
		ClinicianID:     booking.ClinicianID,
		Type:            booking.Type,
		Date:            booking.Date,
		StartTime:       booking.StartTime,
		DurationMinutes: booking.DurationMinutes,
		Priority:        booking.Priority,
		Reason:          booking.Reason,
		Notes:           booking.Notes,
		RescheduleID:    booking.ID,
	}
}

// SetPatient records the patient selection.
func (m *Machine) SetPatient(id uuid.UUID) {
	m.draft.PatientID = id
}

// SetClinician records the clinician selection and refreshes slots.
// Clinician callers cannot move off their own calendar.
func (m *Machine) SetClinician(ctx context.Context, id uuid.UUID) error {
	if m.actor.Role == model.RoleClinician && id != m.actor.ID {
		return fmt.Errorf("clinician callers book against their own calendar")
	}
	m.draft.ClinicianID = id
	return m.RefreshSlots(ctx)
}

// SetDate records the chosen day and refreshes slots.
func (m *Machine) SetDate(ctx context.Context, date string) error {
	if _, err := clock.ParseDate(date); err != nil {
		return err
	}
	m.draft.Date = date
	return m.RefreshSlots(ctx)
}

// SetTime picks a start time. The duration is pinned to the matching
// slot's duration; it is not independently editable.
func (m *Machine) SetTime(start string) {
	m.draft.StartTime = start
	for _, s := range m.slots {
		if s.StartTime == start {
			m.draft.DurationMinutes = s.DurationMinutes
			return
		}
	}
}

// SetType records the appointment type.
func (m *Machine) SetType(t model.BookingType) { m.draft.Type = t }

// SetPriority records the priority.
func (m *Machine) SetPriority(p model.BookingPriority) { m.draft.Priority = p }

// SetReason records the visit reason.
func (m *Machine) SetReason(reason string) { m.draft.Reason = reason }

// SetNotes records free-form notes.
func (m *Machine) SetNotes(notes string) { m.draft.Notes = notes }

// RefreshSlots recomputes the candidate slots from the published
// calendar. A draft without both clinician and date has no slots yet.
func (m *Machine) RefreshSlots(ctx context.Context) error {
	m.slots = nil
	if m.draft.ClinicianID == uuid.Nil || m.draft.Date == "" {
		return nil
	}

	day, err := m.gw.Availability(ctx, m.draft.ClinicianID, m.draft.Date)
	if err != nil {
		return err
	}
	date, err := clock.ParseDate(m.draft.Date)
	if err != nil {
		return err
	}

	m.slots = availability.Resolve(day.Rules, day.Exceptions, day.Bookings, m.draft.ClinicianID, date, 0)
	m.pinDuration()
	return nil
}

// pinDuration keeps the draft's duration in lockstep with the rule's
// slot duration for the selected (or first) slot.
func (m *Machine) pinDuration() {
	if len(m.slots) == 0 {
		return
	}
	for _, s := range m.slots {
		if s.StartTime == m.draft.StartTime {
			m.draft.DurationMinutes = s.DurationMinutes
			return
		}
	}
	m.draft.DurationMinutes = m.slots[0].DurationMinutes
}

// Submit validates the draft, preflights it, and submits it. Invalid
// drafts stay in Composing with field errors; detected conflicts move
// to ConflictPresented; preflight transport failures degrade straight
// to submission and let the server re-check.
func (m *Machine) Submit(ctx context.Context) error {
	if m.state != StateComposing && m.state != StateConflictPresented {
		return fmt.Errorf("cannot submit from state %s", m.state)
	}

	if errs := m.validateDraft(); len(errs) > 0 {
		m.fieldErrors = errs
		m.state = StateComposing
		return nil
	}
	m.fieldErrors = nil

	m.attempt++
	token := m.attempt
	m.state = StatePreflightChecking

	report, err := m.detector.Check(ctx, m.draft.ClinicianID, m.draft.Date, m.draft.StartTime, m.draft.DurationMinutes)
	if m.stale(token) {
		return nil
	}
	if err != nil {
		// The server re-checks on write, so a broken preflight only
		// costs the early warning.
		m.logger.Warn("preflight failed, submitting anyway", "error", err.Error())
		return m.doSubmit(ctx, token)
	}
	if report.HasConflict && !m.draft.Force {
		m.presentConflict(report)
		return nil
	}

	return m.doSubmit(ctx, token)
}

// ChooseAlternative adopts an offered slot and re-submits.
func (m *Machine) ChooseAlternative(ctx context.Context, slot model.Slot) error {
	if m.state != StateConflictPresented {
		return fmt.Errorf("no conflict to resolve in state %s", m.state)
	}
	m.conflict = nil
	m.draft.StartTime = slot.StartTime
	m.draft.DurationMinutes = slot.DurationMinutes
	m.draft.Force = false
	m.state = StateComposing
	return m.Submit(ctx)
}

// Override bypasses the detected conflict and submits with force set.
func (m *Machine) Override(ctx context.Context) error {
	if m.state != StateConflictPresented {
		return fmt.Errorf("no conflict to override in state %s", m.state)
	}
	m.conflict = nil
	m.draft.Force = true
	m.attempt++
	return m.doSubmit(ctx, m.attempt)
}

// Cancel abandons any in-flight preflight or submission and returns to
// Composing without losing the draft.
func (m *Machine) Cancel() {
	m.attempt++
	m.conflict = nil
	m.failureMsg = ""
	m.state = StateComposing
}

// Retry returns from Failed to Composing so the user can resubmit.
func (m *Machine) Retry() {
	if m.state == StateFailed {
		m.failureMsg = ""
		m.state = StateComposing
	}
}

func (m *Machine) doSubmit(ctx context.Context, token uint64) error {
	m.state = StateSubmitting

	var booking *model.Booking
	var err error
	if m.draft.IsReschedule() {
		booking, err = m.gw.Reschedule(ctx, m.draft.RescheduleID, m.draft.Date, m.draft.StartTime, m.draft.DurationMinutes, m.draft.Force)
	} else {
		booking, err = m.gw.Create(ctx, &m.draft)
	}

	if m.stale(token) {
		return nil
	}

	if err != nil {
		return m.handleSubmitError(err)
	}

	m.result = booking
	m.state = StateSucceeded
	m.countSubmit("succeeded")

	if m.bus != nil {
		kind := ledger.EventCreated
		if m.draft.IsReschedule() {
			kind = ledger.EventRescheduled
		}
		m.bus.Publish(ledger.Event{Kind: kind, Booking: booking})
	}

	m.resetAfterSuccess()
	return nil
}

func (m *Machine) handleSubmitError(err error) error {
	if report, ok := conflict.FromError(err, m.draft.StartTime, m.draft.DurationMinutes); ok {
		m.presentConflict(report)
		return nil
	}

	appErr, _ := errors.As(err)
	switch errors.KindOf(err) {
	case errors.KindValidation:
		m.fieldErrors = map[string]string{}
		if appErr != nil {
			m.fieldErrors = appErr.Fields
		}
		m.state = StateComposing
		m.countSubmit("validation")
		return nil
	case errors.KindUnauthorized:
		// Auth is an external collaborator's problem; re-raise and let
		// the host decide. The draft survives for a later retry.
		m.state = StateComposing
		m.countSubmit("unauthorized")
		return err
	default:
		m.failureMsg = err.Error()
		m.state = StateFailed
		m.countSubmit("failed")
		return nil
	}
}

func (m *Machine) presentConflict(report *conflict.Report) {
	m.conflict = report
	m.state = StateConflictPresented
	if m.metrics != nil {
		m.metrics.ConflictsPresented.Inc()
	}
}

// resetAfterSuccess clears the form for the next booking, keeping the
// clinician selection when the caller is a clinician.
func (m *Machine) resetAfterSuccess() {
	clinicianID := uuid.Nil
	if m.actor.Role == model.RoleClinician {
		clinicianID = m.actor.ID
	}
	m.draft = model.BookingDraft{
		ClinicianID: clinicianID,
		Priority:    model.PriorityNormal,
	}
	m.slots = nil
	m.conflict = nil
	m.fieldErrors = nil
}

// stale reports whether a result belongs to a superseded attempt.
func (m *Machine) stale(token uint64) bool {
	if token != m.attempt {
		if m.metrics != nil {
			m.metrics.StaleResultsDropped.Inc()
		}
		m.logger.Debug("dropping stale result", "token", token)
		return true
	}
	return false
}

func (m *Machine) countSubmit(outcome string) {
	if m.metrics != nil {
		m.metrics.SubmitAttempts.WithLabelValues(outcome).Inc()
	}
}

// validateDraft maps struct validation failures onto field names the
// form understands.
func (m *Machine) validateDraft() map[string]string {
	err := m.validate.Struct(&m.draft)
	if err == nil {
		return nil
	}

	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return map[string]string{"draft": err.Error()}
	}

	out := make(map[string]string, len(fieldErrs))
	for _, fe := range fieldErrs {
		name := jsonFieldName(fe.Field())
		switch fe.Tag() {
		case "required":
			out[name] = "is required"
		case "oneof":
			out[name] = "has an unsupported value"
		case "datetime":
			out[name] = "must be a YYYY-MM-DD date"
		case "gt":
			out[name] = "must be positive"
		case "max":
			out[name] = "is too long"
		default:
			out[name] = "is invalid"
		}
	}
	return out
}

var draftFieldNames = map[string]string{
	"PatientID":       "patient_id",
	"ClinicianID":     "clinician_id",
	"Type":            "type",
	"Date":            "date",
	"StartTime":       "start_time",
	"DurationMinutes": "duration_minutes",
	"Priority":        "priority",
	"Reason":          "reason",
	"Notes":           "notes",
}

func jsonFieldName(structField string) string {
	if name, ok := draftFieldNames[structField]; ok {
		return name
	}
	return structField
}

// Deadline returns a context bounded by the standard per-call timeout,
// for hosts that do not manage their own deadlines.
func Deadline(parent context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(parent, d)
}
