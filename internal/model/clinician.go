package model

import (
	"github.com/google/uuid"
)

// Clinician is a read-only copy of the server-owned clinician record.
type Clinician struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Specialty string    `json:"specialty"`
	Active    bool      `json:"active"`
}

// Patient is a read-only copy of the server-owned patient record.
type Patient struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Contact string    `json:"contact"`
}

// Role identifies the kind of caller driving the scheduling flow.
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleReceptionist Role = "receptionist"
	RoleClinician    Role = "clinician"
)

// Actor is the authenticated caller, passed explicitly to the
// components that need role-aware behaviour.
type Actor struct {
	ID   uuid.UUID
	Name string
	Role Role
}
