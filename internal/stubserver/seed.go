package stubserver

import (
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/model"
	"github.com/medisched/scheduling-client/pkg/clock"
)

var seedSpecialties = []string{
	"General Practice", "Cardiology", "Dermatology", "Pediatrics", "Orthopedics",
}

// Seed populates the store with fake clinicians, patients, weekday
// rules and a handful of bookings so the client has something to chew
// on out of the box.
func Seed(store *Store, clinicianCount, patientCount int) {
	faker := gofakeit.New(0)

	clinicians := make([]model.Clinician, 0, clinicianCount)
	for i := 0; i < clinicianCount; i++ {
		c := model.Clinician{
			ID:        uuid.New(),
			Name:      "Dr. " + faker.Name(),
			Specialty: seedSpecialties[i%len(seedSpecialties)],
			Active:    true,
		}
		clinicians = append(clinicians, c)
		store.AddClinician(c)

		// Weekday mornings and afternoons, 30-minute slots.
		for wd := time.Monday; wd <= time.Friday; wd++ {
			store.AddRule(model.AvailabilityRule{
				ClinicianID: c.ID,
				Weekday:     wd,
				Windows: []model.Window{
					{Start: "09:00", End: "12:00", SlotDurationMinutes: 30},
					{Start: "13:00", End: "17:00", SlotDurationMinutes: 30},
				},
			})
		}
	}

	patients := make([]model.Patient, 0, patientCount)
	for i := 0; i < patientCount; i++ {
		p := model.Patient{
			ID:      uuid.New(),
			Name:    faker.Name(),
			Contact: faker.Phone(),
		}
		patients = append(patients, p)
		store.AddPatient(p)
	}

	if len(clinicians) == 0 || len(patients) == 0 {
		return
	}

	// A sprinkle of bookings across the coming week.
	times := []string{"09:00", "10:00", "11:00", "13:30", "15:00"}
	types := []model.BookingType{
		model.TypeConsultation, model.TypeFollowUp, model.TypeTeleconsultation,
	}
	for i := 0; i < len(patients) && i < 15; i++ {
		date := clock.FormatDate(time.Now().AddDate(0, 0, i%7+1))
		draft := model.BookingDraft{
			PatientID:       patients[i].ID,
			ClinicianID:     clinicians[i%len(clinicians)].ID,
			Type:            types[i%len(types)],
			Date:            date,
			StartTime:       times[i%len(times)],
			DurationMinutes: 30,
			Priority:        model.PriorityNormal,
			Reason:          faker.Sentence(4),
		}
		store.Create(&draft)
	}
}
