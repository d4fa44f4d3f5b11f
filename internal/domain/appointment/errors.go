package appointment

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound             = errors.New("appointment not found")
	ErrScheduledInPast      = errors.New("cannot schedule appointment in the past")
	ErrInvalidDuration      = errors.New("appointment duration must be between 15 and 480 minutes")
	ErrOutsideBusinessHours = errors.New("appointment must fall within business hours")
	ErrReasonTooLong        = errors.New("reason exceeds 500 characters")
	ErrNotesTooLong         = errors.New("notes exceed 1000 characters")
)

// ConflictError reports that a candidate interval collides with existing
// non-cancelled appointments. The colliding appointments are carried so
// callers can propose alternatives.
type ConflictError struct {
	Conflicts []*Appointment
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("time slot conflicts with %d existing appointment(s)", len(e.Conflicts))
}

// InvalidTransitionError reports a status change the lifecycle table does
// not permit. The appointment is left untouched on failure.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition from %s to %s", e.From, e.To)
}
