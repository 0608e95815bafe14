package stubserver

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/clock"
	"github.com/medisched/scheduling-client/pkg/errors"
)

// Store is the in-memory state behind the stub API. A single mutex
// guards everything; the stub exists for development and tests, not
// for load.
type Store struct {
	mu         sync.RWMutex
	clinicians map[uuid.UUID]model.Clinician
	patients   map[uuid.UUID]model.Patient
	rules      []model.AvailabilityRule
	exceptions []model.AvailabilityException
	bookings   map[uuid.UUID]model.Booking
	now        func() time.Time
}

func NewStore() *Store {
	return &Store{
		clinicians: make(map[uuid.UUID]model.Clinician),
		patients:   make(map[uuid.UUID]model.Patient),
		bookings:   make(map[uuid.UUID]model.Booking),
		now:        time.Now,
	}
}

// ListFilters narrows the booking list.
type ListFilters struct {
	Status      model.BookingStatus
	Type        model.BookingType
	Date        string
	ClinicianID uuid.UUID
}

func (s *Store) AddClinician(c model.Clinician) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clinicians[c.ID] = c
}

func (s *Store) AddPatient(p model.Patient) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patients[p.ID] = p
}

func (s *Store) AddRule(r model.AvailabilityRule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

func (s *Store) AddException(e model.AvailabilityException) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exceptions = append(s.exceptions, e)
}

func (s *Store) Clinicians() []model.Clinician {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Clinician, 0, len(s.clinicians))
	for _, c := range s.clinicians {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) Patients() []model.Patient {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Patient, 0, len(s.patients))
	for _, p := range s.patients {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// List returns one page of bookings plus the unpaged total.
func (s *Store) List(filters ListFilters, page, pageSize int) ([]model.Booking, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var all []model.Booking
	for _, b := range s.bookings {
		if filters.Status != "" && b.Status != filters.Status {
			continue
		}
		if filters.Type != "" && b.Type != filters.Type {
			continue
		}
		if filters.Date != "" && b.Date != filters.Date {
			continue
		}
		if filters.ClinicianID != uuid.Nil && b.ClinicianID != filters.ClinicianID {
			continue
		}
		all = append(all, b)
	}

	sort.Slice(all, func(i, j int) bool {
		if all[i].Date != all[j].Date {
			return all[i].Date < all[j].Date
		}
		if all[i].StartTime != all[j].StartTime {
			return all[i].StartTime < all[j].StartTime
		}
		return all[i].ID.String() < all[j].ID.String()
	})

	total := len(all)
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total
}

// Create books an appointment, rejecting overlaps with non-cancelled
// bookings unless force is set.
func (s *Store) Create(draft *model.BookingDraft) (*model.Booking, *errors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if fields := s.validateDraft(draft); len(fields) > 0 {
		return nil, errors.Validation(fields)
	}

	if !draft.Force {
		if occupants := s.overlapping(draft.ClinicianID, draft.Date, draft.StartTime, draft.DurationMinutes, uuid.Nil); len(occupants) > 0 {
			return nil, errors.AlreadyBooked(occupants)
		}
	}

	now := s.now()
	priority := draft.Priority
	if priority == "" {
		priority = model.PriorityNormal
	}
	booking := model.Booking{
		ID:              uuid.New(),
		ClinicianID:     draft.ClinicianID,
		ClinicianName:   s.clinicians[draft.ClinicianID].Name,
		PatientID:       draft.PatientID,
		PatientName:     s.patients[draft.PatientID].Name,
		Date:            draft.Date,
		StartTime:       draft.StartTime,
		DurationMinutes: draft.DurationMinutes,
		Type:            draft.Type,
		Priority:        priority,
		Status:          model.BookingStatusScheduled,
		Reason:          draft.Reason,
		Notes:           draft.Notes,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	s.bookings[booking.ID] = booking
	return &booking, nil
}

// UpdateStatus applies a status transition, enforcing that no_show is
// only reachable from scheduled or confirmed and after the booking's
// end time.
func (s *Store) UpdateStatus(id uuid.UUID, status model.BookingStatus) (*model.Booking, *errors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}
	if !status.Valid() {
		return nil, errors.Validation(map[string]string{"status": "has an unsupported value"})
	}
	if status == model.BookingStatusNoShow {
		if booking.Status != model.BookingStatusScheduled && booking.Status != model.BookingStatusConfirmed {
			return nil, errors.Validation(map[string]string{"status": "no_show requires a scheduled or confirmed booking"})
		}
		if !s.pastEnd(&booking) {
			return nil, errors.Validation(map[string]string{"status": "no_show requires the booking to have ended"})
		}
	}

	booking.Status = status
	booking.UpdatedAt = s.now()
	s.bookings[id] = booking
	return &booking, nil
}

// Reschedule moves a booking, rejecting overlaps unless force is set.
func (s *Store) Reschedule(id uuid.UUID, date, start string, durationMinutes int, force bool) (*model.Booking, *errors.AppError) {
	s.mu.Lock()
	defer s.mu.Unlock()

	booking, ok := s.bookings[id]
	if !ok {
		return nil, errors.NotFound("appointment")
	}

	fields := map[string]string{}
	if _, err := clock.ParseDate(date); err != nil {
		fields["date"] = "must be a YYYY-MM-DD date"
	}
	if _, err := clock.Parse(start); err != nil {
		fields["start_time"] = "must be an HH:MM time"
	}
	if durationMinutes <= 0 {
		fields["duration_minutes"] = "must be positive"
	}
	if len(fields) > 0 {
		return nil, errors.Validation(fields)
	}

	if !force {
		if occupants := s.overlapping(booking.ClinicianID, date, start, durationMinutes, id); len(occupants) > 0 {
			return nil, errors.AlreadyBooked(occupants)
		}
	}

	booking.Date = date
	booking.StartTime = start
	booking.DurationMinutes = durationMinutes
	booking.UpdatedAt = s.now()
	s.bookings[id] = booking
	return &booking, nil
}

func (s *Store) Delete(id uuid.UUID) *errors.AppError {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bookings[id]; !ok {
		return errors.NotFound("appointment")
	}
	delete(s.bookings, id)
	return nil
}

// Stats summarises the booking population.
func (s *Store) Stats() model.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	today := clock.FormatDate(s.now())
	stats := model.Stats{
		StatusHistogram: make(map[model.BookingStatus]int),
	}
	for _, b := range s.bookings {
		stats.Total++
		stats.StatusHistogram[b.Status]++
		if b.Date == today {
			stats.Today++
		}
		if b.Date > today && b.Occupies() {
			stats.Upcoming++
		}
	}
	return stats
}

// ConflictCheck reports the occupants overlapping a candidate time.
func (s *Store) ConflictCheck(clinicianID uuid.UUID, date, start string, durationMinutes int) []errors.Occupant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlapping(clinicianID, date, start, durationMinutes, uuid.Nil)
}

// Availability bundles the calendar inputs for one clinician day.
func (s *Store) Availability(clinicianID uuid.UUID, date string) model.DayAvailability {
	s.mu.RLock()
	defer s.mu.RUnlock()

	day := model.DayAvailability{}
	for _, r := range s.rules {
		if r.ClinicianID == clinicianID {
			day.Rules = append(day.Rules, r)
		}
	}
	for _, e := range s.exceptions {
		if e.ClinicianID == clinicianID && e.Date == date {
			day.Exceptions = append(day.Exceptions, e)
		}
	}
	for _, b := range s.bookings {
		if b.ClinicianID == clinicianID && b.Date == date {
			day.Bookings = append(day.Bookings, b)
		}
	}
	sort.Slice(day.Bookings, func(i, j int) bool {
		return day.Bookings[i].StartTime < day.Bookings[j].StartTime
	})
	return day
}

// overlapping lists non-cancelled bookings colliding with the candidate
// interval, earliest first. The excluded ID skips the booking being
// rescheduled. Callers hold the lock.
func (s *Store) overlapping(clinicianID uuid.UUID, date, start string, durationMinutes int, exclude uuid.UUID) []errors.Occupant {
	startWC, err := clock.Parse(start)
	if err != nil {
		return nil
	}
	candidate := clock.NewInterval(startWC, durationMinutes)

	var hits []model.Booking
	for _, b := range s.bookings {
		if b.ID == exclude || b.ClinicianID != clinicianID || b.Date != date || !b.Occupies() {
			continue
		}
		if candidate.Overlaps(b.Interval()) {
			hits = append(hits, b)
		}
	}
	sort.Slice(hits, func(i, j int) bool { return hits[i].StartTime < hits[j].StartTime })

	occupants := make([]errors.Occupant, 0, len(hits))
	for _, b := range hits {
		occupants = append(occupants, errors.Occupant{
			Start:           b.StartTime,
			DurationMinutes: b.DurationMinutes,
			PatientName:     b.PatientName,
			Type:            string(b.Type),
		})
	}
	return occupants
}

func (s *Store) validateDraft(draft *model.BookingDraft) map[string]string {
	fields := map[string]string{}
	if draft.PatientID == uuid.Nil {
		fields["patient_id"] = "is required"
	} else if _, ok := s.patients[draft.PatientID]; !ok {
		fields["patient_id"] = "unknown patient"
	}
	if draft.ClinicianID == uuid.Nil {
		fields["clinician_id"] = "is required"
	} else if _, ok := s.clinicians[draft.ClinicianID]; !ok {
		fields["clinician_id"] = "unknown clinician"
	}
	if draft.Type == "" {
		fields["type"] = "is required"
	}
	if _, err := clock.ParseDate(draft.Date); err != nil {
		fields["date"] = "must be a YYYY-MM-DD date"
	}
	if _, err := clock.Parse(draft.StartTime); err != nil {
		fields["start_time"] = "must be an HH:MM time"
	}
	if draft.DurationMinutes <= 0 {
		fields["duration_minutes"] = "must be positive"
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

func (s *Store) pastEnd(b *model.Booking) bool {
	date, err := clock.ParseDate(b.Date)
	if err != nil {
		return false
	}
	start, err := clock.Parse(b.StartTime)
	if err != nil {
		return false
	}
	end := date.Add(time.Duration(int(start)+b.DurationMinutes) * time.Minute)
	return s.now().After(end)
}
