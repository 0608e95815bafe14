package stubserver

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/errors"
)

func seededStore(t *testing.T) (*Store, model.Clinician, model.Patient) {
	t.Helper()
	s := NewStore()
	clinician := model.Clinician{ID: uuid.New(), Name: "Dr. Roe", Active: true}
	patient := model.Patient{ID: uuid.New(), Name: "Pat Doe"}
	s.AddClinician(clinician)
	s.AddPatient(patient)
	return s, clinician, patient
}

func draftFor(clinician model.Clinician, patient model.Patient, date, start string) model.BookingDraft {
	return model.BookingDraft{
		PatientID:       patient.ID,
		ClinicianID:     clinician.ID,
		Type:            model.TypeConsultation,
		Date:            date,
		StartTime:       start,
		DurationMinutes: 30,
	}
}

func TestCreateRejectsOverlap(t *testing.T) {
	s, clinician, patient := seededStore(t)

	first := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&first)
	require.Nil(t, appErr)

	second := draftFor(clinician, patient, "2026-09-07", "09:15")
	_, appErr = s.Create(&second)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.KindAlreadyBooked, appErr.Kind)
	require.Len(t, appErr.Occupants, 1)
	assert.Equal(t, "09:00", appErr.Occupants[0].Start)
	assert.Equal(t, "Pat Doe", appErr.Occupants[0].PatientName)
}

func TestCreateForceBypassesOverlap(t *testing.T) {
	s, clinician, patient := seededStore(t)

	first := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&first)
	require.Nil(t, appErr)

	second := draftFor(clinician, patient, "2026-09-07", "09:15")
	second.Force = true
	booking, appErr := s.Create(&second)
	require.Nil(t, appErr)
	assert.Equal(t, model.BookingStatusScheduled, booking.Status)
}

func TestCreateAllowsAbuttingBooking(t *testing.T) {
	s, clinician, patient := seededStore(t)

	first := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&first)
	require.Nil(t, appErr)

	adjacent := draftFor(clinician, patient, "2026-09-07", "09:30")
	_, appErr = s.Create(&adjacent)
	assert.Nil(t, appErr)
}

func TestCreateIgnoresCancelledBookings(t *testing.T) {
	s, clinician, patient := seededStore(t)

	first := draftFor(clinician, patient, "2026-09-07", "09:00")
	booking, appErr := s.Create(&first)
	require.Nil(t, appErr)
	_, appErr = s.UpdateStatus(booking.ID, model.BookingStatusCancelled)
	require.Nil(t, appErr)

	retry := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr = s.Create(&retry)
	assert.Nil(t, appErr)
}

func TestCreateValidation(t *testing.T) {
	s, _, _ := seededStore(t)

	_, appErr := s.Create(&model.BookingDraft{})
	require.NotNil(t, appErr)
	assert.Equal(t, errors.KindValidation, appErr.Kind)
	for _, field := range []string{"patient_id", "clinician_id", "type", "date", "start_time", "duration_minutes"} {
		assert.Contains(t, appErr.Fields, field)
	}
}

func TestNoShowRequiresEndedBooking(t *testing.T) {
	s, clinician, patient := seededStore(t)
	s.now = func() time.Time { return time.Date(2026, 9, 7, 9, 0, 0, 0, time.UTC) }

	draft := draftFor(clinician, patient, "2026-09-07", "10:00")
	booking, appErr := s.Create(&draft)
	require.Nil(t, appErr)

	// Still in the future.
	_, appErr = s.UpdateStatus(booking.ID, model.BookingStatusNoShow)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.KindValidation, appErr.Kind)

	s.now = func() time.Time { return time.Date(2026, 9, 7, 11, 0, 0, 0, time.UTC) }
	updated, appErr := s.UpdateStatus(booking.ID, model.BookingStatusNoShow)
	require.Nil(t, appErr)
	assert.Equal(t, model.BookingStatusNoShow, updated.Status)
}

func TestNoShowOnlyFromScheduledOrConfirmed(t *testing.T) {
	s, clinician, patient := seededStore(t)
	s.now = func() time.Time { return time.Date(2026, 9, 8, 0, 0, 0, 0, time.UTC) }

	draft := draftFor(clinician, patient, "2026-09-07", "10:00")
	booking, appErr := s.Create(&draft)
	require.Nil(t, appErr)

	_, appErr = s.UpdateStatus(booking.ID, model.BookingStatusCompleted)
	require.Nil(t, appErr)

	_, appErr = s.UpdateStatus(booking.ID, model.BookingStatusNoShow)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.KindValidation, appErr.Kind)
}

func TestRescheduleExcludesSelfFromOverlap(t *testing.T) {
	s, clinician, patient := seededStore(t)

	draft := draftFor(clinician, patient, "2026-09-07", "09:00")
	booking, appErr := s.Create(&draft)
	require.Nil(t, appErr)

	// Shifting within its own original window is not a conflict.
	moved, appErr := s.Reschedule(booking.ID, "2026-09-07", "09:15", 30, false)
	require.Nil(t, appErr)
	assert.Equal(t, "09:15", moved.StartTime)
}

func TestRescheduleRejectsOverlapWithOthers(t *testing.T) {
	s, clinician, patient := seededStore(t)

	first := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&first)
	require.Nil(t, appErr)

	second := draftFor(clinician, patient, "2026-09-07", "10:00")
	booking, appErr := s.Create(&second)
	require.Nil(t, appErr)

	_, appErr = s.Reschedule(booking.ID, "2026-09-07", "09:15", 30, false)
	require.NotNil(t, appErr)
	assert.Equal(t, errors.KindAlreadyBooked, appErr.Kind)

	moved, appErr := s.Reschedule(booking.ID, "2026-09-07", "09:15", 30, true)
	require.Nil(t, appErr)
	assert.Equal(t, "09:15", moved.StartTime)
}

func TestListFiltersAndPaginates(t *testing.T) {
	s, clinician, patient := seededStore(t)
	for i, start := range []string{"09:00", "10:00", "11:00"} {
		draft := draftFor(clinician, patient, "2026-09-07", start)
		if i == 2 {
			draft.Type = model.TypeFollowUp
		}
		_, appErr := s.Create(&draft)
		require.Nil(t, appErr)
	}

	items, total := s.List(ListFilters{}, 1, 2)
	assert.Equal(t, 3, total)
	require.Len(t, items, 2)
	assert.Equal(t, "09:00", items[0].StartTime)

	items, total = s.List(ListFilters{Type: model.TypeFollowUp}, 1, 10)
	assert.Equal(t, 1, total)
	require.Len(t, items, 1)
	assert.Equal(t, "11:00", items[0].StartTime)
}

func TestStats(t *testing.T) {
	s, clinician, patient := seededStore(t)
	s.now = func() time.Time { return time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC) }

	today := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&today)
	require.Nil(t, appErr)

	upcoming := draftFor(clinician, patient, "2026-09-08", "09:00")
	_, appErr = s.Create(&upcoming)
	require.Nil(t, appErr)

	cancelled := draftFor(clinician, patient, "2026-09-09", "09:00")
	c, appErr := s.Create(&cancelled)
	require.Nil(t, appErr)
	_, appErr = s.UpdateStatus(c.ID, model.BookingStatusCancelled)
	require.Nil(t, appErr)

	stats := s.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Today)
	assert.Equal(t, 1, stats.Upcoming, "cancelled bookings are not upcoming")
	assert.Equal(t, 2, stats.StatusHistogram[model.BookingStatusScheduled])
	assert.Equal(t, 1, stats.StatusHistogram[model.BookingStatusCancelled])
}

func TestConflictCheck(t *testing.T) {
	s, clinician, patient := seededStore(t)

	draft := draftFor(clinician, patient, "2026-09-07", "09:00")
	_, appErr := s.Create(&draft)
	require.Nil(t, appErr)

	occupants := s.ConflictCheck(clinician.ID, "2026-09-07", "09:15", 30)
	require.Len(t, occupants, 1)

	occupants = s.ConflictCheck(clinician.ID, "2026-09-07", "09:30", 30)
	assert.Empty(t, occupants)
}
