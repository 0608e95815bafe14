// Package rolebind restricts clinician selection for clinician callers.
// All other role policy lives server-side.
package rolebind

import (
	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/model"
)

// Binding describes how the clinician field of the compose form behaves
// for the current caller.
type Binding struct {
	// ClinicianID is the pre-selected clinician, if any.
	ClinicianID uuid.UUID
	// Locked means the selection cannot be changed.
	Locked bool
	// ShowPicker controls the clinician picker and specialty filter.
	ShowPicker bool
	// Choices are the selectable clinicians when the picker is shown.
	Choices []model.Clinician
}

// For computes the clinician binding for the given caller. Clinicians
// book against their own calendar only; everyone else picks from the
// active clinician list.
func For(actor model.Actor, clinicians []model.Clinician) Binding {
	if actor.Role == model.RoleClinician {
		return Binding{
			ClinicianID: actor.ID,
			Locked:      true,
			ShowPicker:  false,
		}
	}

	active := make([]model.Clinician, 0, len(clinicians))
	for _, c := range clinicians {
		if c.Active {
			active = append(active, c)
		}
	}
	return Binding{
		ShowPicker: true,
		Choices:    active,
	}
}
