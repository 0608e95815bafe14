package availability

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/clock"
)

// 2026-09-07 is a Monday.
var monday = time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)

func rulesFor(clinicianID uuid.UUID, windows ...model.Window) []model.AvailabilityRule {
	return []model.AvailabilityRule{{
		ClinicianID: clinicianID,
		Weekday:     time.Monday,
		Windows:     windows,
	}}
}

func booking(clinicianID uuid.UUID, date, start string, minutes int, status model.BookingStatus) model.Booking {
	return model.Booking{
		ID:              uuid.New(),
		ClinicianID:     clinicianID,
		Date:            date,
		StartTime:       start,
		DurationMinutes: minutes,
		Status:          status,
	}
}

func TestResolveNoRules(t *testing.T) {
	slots := Resolve(nil, nil, nil, uuid.New(), monday, 30)
	assert.Empty(t, slots)
}

func TestResolveNoRuleForWeekday(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "12:00", SlotDurationMinutes: 30})

	tuesday := monday.AddDate(0, 0, 1)
	slots := Resolve(rules, nil, nil, clinicianID, tuesday, 0)
	assert.Empty(t, slots)
}

func TestResolveSimpleDay(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:30", SlotDurationMinutes: 30})

	slots := Resolve(rules, nil, nil, clinicianID, monday, 0)

	require.Len(t, slots, 3)
	starts := []string{slots[0].StartTime, slots[1].StartTime, slots[2].StartTime}
	assert.Equal(t, []string{"09:00", "09:30", "10:00"}, starts)
	for _, s := range slots {
		assert.True(t, s.Available)
		assert.Equal(t, 30, s.DurationMinutes)
		assert.Equal(t, "2026-09-07", s.Date)
	}
}

func TestResolveCollision(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:30", SlotDurationMinutes: 30})
	bookings := []model.Booking{
		booking(clinicianID, "2026-09-07", "09:30", 30, model.BookingStatusScheduled),
	}

	slots := Resolve(rules, nil, bookings, clinicianID, monday, 0)

	require.Len(t, slots, 3)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)
	assert.True(t, slots[2].Available)
}

func TestResolveCancelledBookingFreesSlot(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:00", SlotDurationMinutes: 30})
	bookings := []model.Booking{
		booking(clinicianID, "2026-09-07", "09:00", 30, model.BookingStatusCancelled),
	}

	slots := Resolve(rules, nil, bookings, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	assert.True(t, slots[0].Available)
}

func TestResolveAbuttingBookingStaysAvailable(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:00", SlotDurationMinutes: 30})
	// Ends exactly at 09:00; half-open intervals do not collide.
	bookings := []model.Booking{
		booking(clinicianID, "2026-09-07", "08:30", 30, model.BookingStatusScheduled),
	}

	slots := Resolve(rules, nil, bookings, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	assert.True(t, slots[0].Available)
	assert.True(t, slots[1].Available)
}

func TestResolveUnavailableException(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "17:00", SlotDurationMinutes: 30})
	exceptions := []model.AvailabilityException{{
		ClinicianID: clinicianID,
		Date:        "2026-09-07",
		Kind:        model.ExceptionUnavailable,
	}}

	slots := Resolve(rules, exceptions, nil, clinicianID, monday, 0)
	assert.Empty(t, slots)
}

func TestResolveCustomWindowsException(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "17:00", SlotDurationMinutes: 30})
	exceptions := []model.AvailabilityException{{
		ClinicianID: clinicianID,
		Date:        "2026-09-07",
		Kind:        model.ExceptionCustomWindows,
		Windows:     []model.Window{{Start: "14:00", End: "15:00", SlotDurationMinutes: 30}},
	}}

	slots := Resolve(rules, exceptions, nil, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	assert.Equal(t, "14:00", slots[0].StartTime)
	assert.Equal(t, "14:30", slots[1].StartTime)
}

func TestResolveDiscardsTrailingRemainder(t *testing.T) {
	clinicianID := uuid.New()
	// 09:00-10:15 at a 30-minute stride yields 09:00 and 09:30 only;
	// a 10:00 slot would spill past the window end.
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:15", SlotDurationMinutes: 30})

	slots := Resolve(rules, nil, nil, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	assert.Equal(t, "09:30", slots[1].StartTime)
}

func TestResolveExplicitDurationOverridesWindows(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:00", SlotDurationMinutes: 30})

	slots := Resolve(rules, nil, nil, clinicianID, monday, 20)

	require.Len(t, slots, 3)
	for _, s := range slots {
		assert.Equal(t, 20, s.DurationMinutes)
	}
}

func TestResolveIgnoresOtherCliniciansAndDates(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "10:00", SlotDurationMinutes: 30})
	bookings := []model.Booking{
		booking(uuid.New(), "2026-09-07", "09:00", 30, model.BookingStatusScheduled),
		booking(clinicianID, "2026-09-08", "09:00", 30, model.BookingStatusScheduled),
	}

	slots := Resolve(rules, nil, bookings, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	for _, s := range slots {
		assert.True(t, s.Available)
	}
}

func TestResolveMultipleWindowsOrdered(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID,
		model.Window{Start: "13:00", End: "14:00", SlotDurationMinutes: 60},
		model.Window{Start: "09:00", End: "10:00", SlotDurationMinutes: 60},
	)

	slots := Resolve(rules, nil, nil, clinicianID, monday, 0)

	require.Len(t, slots, 2)
	assert.Equal(t, "09:00", slots[0].StartTime)
	assert.Equal(t, "13:00", slots[1].StartTime)
}

func TestResolveNoSlotOverlapsOccupiedInterval(t *testing.T) {
	clinicianID := uuid.New()
	rules := rulesFor(clinicianID, model.Window{Start: "09:00", End: "12:00", SlotDurationMinutes: 15})
	bookings := []model.Booking{
		booking(clinicianID, "2026-09-07", "09:20", 50, model.BookingStatusConfirmed),
	}

	slots := Resolve(rules, nil, bookings, clinicianID, monday, 0)

	occupied := clock.NewInterval(clock.MustParse("09:20"), 50)
	for _, s := range slots {
		iv := clock.NewInterval(clock.MustParse(s.StartTime), s.DurationMinutes)
		if s.Available {
			assert.False(t, iv.Overlaps(occupied), "available slot %s overlaps a booking", s.StartTime)
		}
	}
}
