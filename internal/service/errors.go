package service

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrForbidden = errors.New("forbidden: insufficient permissions")

type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Fields, "; ")
}

// Caller is the authenticated identity attached to a request by the
// external identity service. PatientID is set for patient-role callers and
// scopes what they may see and cancel.
type Caller struct {
	UserID    uuid.UUID
	Role      string
	PatientID *int64
	IP        string
}

func (c Caller) IsPatient() bool {
	return c.Role == "patient"
}

// OwnsPatient reports whether a patient-role caller owns the given patient id.
func (c Caller) OwnsPatient(patientID int64) bool {
	return c.PatientID != nil && *c.PatientID == patientID
}
