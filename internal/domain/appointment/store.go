package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ActorKind scopes a conflict check to one side of the booking.
type ActorKind string

const (
	ActorDoctor  ActorKind = "doctor"
	ActorPatient ActorKind = "patient"
)

type Store interface {
	Create(ctx context.Context, a *Appointment) error
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	Update(ctx context.Context, a *Appointment) error

	// UpdateStatus persists a status change together with its
	// cancellation/completion side fields.
	UpdateStatus(ctx context.Context, a *Appointment) error

	List(ctx context.Context, q *ListQuery) (*PagedAppointments, error)

	// FindActiveByDoctor returns the doctor's non-cancelled appointments
	// whose occupied interval overlaps [from, to).
	FindActiveByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*Appointment, error)

	// FindActiveByPatient is the patient-side counterpart of FindActiveByDoctor.
	FindActiveByPatient(ctx context.Context, patientID int64, from, to time.Time) ([]*Appointment, error)

	// FindUpcoming returns still-active appointments starting within the
	// given window — used by the reminder sweep.
	FindUpcoming(ctx context.Context, within time.Duration) ([]*Appointment, error)

	// InTransaction runs fn as one atomic unit of work while holding a
	// per-actor serialization point for the given doctor and patient, so
	// that a conflict read and the subsequent write cannot interleave with
	// another booking for the same actor. fn receives a Store bound to the
	// transaction.
	InTransaction(ctx context.Context, doctorID, patientID int64, fn func(tx Store) error) error
}
