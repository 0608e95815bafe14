// Package conflict decides whether a candidate appointment time is
// free, either by asking the API up front or by reading the structured
// payload of a failed mutation.
package conflict

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/medisched/scheduling-client/internal/gateway"
	"github.com/medisched/scheduling-client/pkg/errors"
	"github.com/medisched/scheduling-client/pkg/logger"
)

// PreflightClient is the slice of the gateway the detector needs.
type PreflightClient interface {
	Conflicts(ctx context.Context, clinicianID uuid.UUID, date, start string, durationMinutes int) (*gateway.ConflictReport, error)
}

// Report is the detector's verdict. Occupants are ordered by start
// time, earliest first.
type Report struct {
	HasConflict bool
	Occupants   []errors.Occupant
}

// Detector wraps the preflight endpoint and the post-hoc error path.
type Detector struct {
	client PreflightClient
	logger *logger.Logger
}

func NewDetector(client PreflightClient, log *logger.Logger) *Detector {
	if log == nil {
		log = logger.Nop()
	}
	return &Detector{client: client, logger: log.WithComponent("conflict")}
}

// Check queries the conflicts endpoint and accepts its verdict.
func (d *Detector) Check(ctx context.Context, clinicianID uuid.UUID, date, start string, durationMinutes int) (*Report, error) {
	resp, err := d.client.Conflicts(ctx, clinicianID, date, start, durationMinutes)
	if err != nil {
		return nil, err
	}
	occupants := sortOccupants(resp.Conflicts)
	return &Report{
		HasConflict: resp.HasConflicts,
		Occupants:   occupants,
	}, nil
}

// FromError extracts conflict detail from a failed create/reschedule.
// When the server's payload carries no occupants, a generic occupant at
// the attempted time is synthesised so the user still sees what was
// blocked.
func FromError(err error, attemptedStart string, attemptedDuration int) (*Report, bool) {
	appErr, ok := errors.As(err)
	if !ok || appErr.Kind != errors.KindAlreadyBooked {
		return nil, false
	}

	occupants := sortOccupants(appErr.Occupants)
	if len(occupants) == 0 {
		occupants = []errors.Occupant{{
			Start:           attemptedStart,
			DurationMinutes: attemptedDuration,
			PatientName:     "another patient",
			Type:            "appointment",
		}}
	}
	return &Report{HasConflict: true, Occupants: occupants}, true
}

// sortOccupants orders occupants earliest-first so the nearest blocker
// is surfaced ahead of later ones.
func sortOccupants(in []errors.Occupant) []errors.Occupant {
	out := make([]errors.Occupant, len(in))
	copy(out, in)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Start < out[j].Start
	})
	return out
}
