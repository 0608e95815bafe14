// Package availability derives bookable time slots from a clinician's
// published calendar. Resolution is pure: the same rules, exceptions
// and bookings always yield the same slot sequence.
package availability

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/clock"
)

// Resolve computes the ordered candidate slots for one clinician day.
//
// The effective windows for the date are the exception's windows when
// an exception exists (an unavailable exception closes the day),
// otherwise the weekday rule's. Slots are generated at slotDuration
// stride from each window start; a trailing slot that would spill past
// the window end is discarded. A slot is unavailable iff a non-cancelled
// booking on the same date overlaps it; bookings that merely touch a
// slot's endpoints leave it available.
//
// When slotDuration is zero, each window uses its own slot duration.
func Resolve(
	rules []model.AvailabilityRule,
	exceptions []model.AvailabilityException,
	bookings []model.Booking,
	clinicianID uuid.UUID,
	date time.Time,
	slotDuration int,
) []model.Slot {
	windows, open := effectiveWindows(rules, exceptions, clinicianID, date)
	if !open || len(windows) == 0 {
		return nil
	}

	dateStr := clock.FormatDate(date)
	occupied := occupiedIntervals(bookings, clinicianID, dateStr)

	var slots []model.Slot
	for _, w := range windows {
		start, err := clock.Parse(w.Start)
		if err != nil {
			continue
		}
		end, err := clock.Parse(w.End)
		if err != nil || end <= start {
			continue
		}

		stride := slotDuration
		if stride <= 0 {
			stride = w.SlotDurationMinutes
		}
		if stride <= 0 {
			continue
		}

		for t := start; t.Add(stride) <= end; t = t.Add(stride) {
			iv := clock.NewInterval(t, stride)
			slots = append(slots, model.Slot{
				ClinicianID:     clinicianID,
				Date:            dateStr,
				StartTime:       t.String(),
				DurationMinutes: stride,
				Available:       !overlapsAny(iv, occupied),
			})
		}
	}

	sort.SliceStable(slots, func(i, j int) bool {
		return slots[i].StartTime < slots[j].StartTime
	})
	return slots
}

// effectiveWindows selects the windows governing the given date. The
// second return is false when an exception closes the day outright.
func effectiveWindows(
	rules []model.AvailabilityRule,
	exceptions []model.AvailabilityException,
	clinicianID uuid.UUID,
	date time.Time,
) ([]model.Window, bool) {
	dateStr := clock.FormatDate(date)
	for _, ex := range exceptions {
		if ex.ClinicianID != clinicianID || ex.Date != dateStr {
			continue
		}
		if ex.Kind == model.ExceptionUnavailable {
			return nil, false
		}
		return ex.Windows, true
	}

	for _, r := range rules {
		if r.ClinicianID == clinicianID && r.Weekday == date.Weekday() {
			return r.Windows, true
		}
	}
	return nil, true
}

func occupiedIntervals(bookings []model.Booking, clinicianID uuid.UUID, date string) []clock.Interval {
	var out []clock.Interval
	for i := range bookings {
		b := &bookings[i]
		if b.ClinicianID != clinicianID || b.Date != date || !b.Occupies() {
			continue
		}
		iv := b.Interval()
		if iv.Minutes() > 0 {
			out = append(out, iv)
		}
	}
	return out
}

func overlapsAny(iv clock.Interval, occupied []clock.Interval) bool {
	for _, o := range occupied {
		if iv.Overlaps(o) {
			return true
		}
	}
	return false
}
