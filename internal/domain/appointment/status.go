package appointment

// Status is the lifecycle state of an appointment.
type Status string

const (
	StatusPending     Status = "pending"
	StatusConfirmed   Status = "confirmed"
	StatusRescheduled Status = "rescheduled"
	StatusInProgress  Status = "in_progress"
	StatusCompleted   Status = "completed"
	StatusCancelled   Status = "cancelled"
	StatusNoShow      Status = "no_show"
	StatusPostponed   Status = "postponed"
)

func (s Status) IsValid() bool {
	_, ok := transitions[s]
	return ok
}

// transitions is the adjacency table of the appointment lifecycle.
// Terminal states map to an empty target set.
var transitions = map[Status][]Status{
	StatusPending:     {StatusConfirmed, StatusCancelled, StatusRescheduled},
	StatusConfirmed:   {StatusInProgress, StatusCancelled, StatusRescheduled, StatusNoShow},
	StatusRescheduled: {StatusConfirmed, StatusCancelled},
	StatusInProgress:  {StatusCompleted, StatusPostponed},
	StatusPostponed:   {StatusConfirmed, StatusCancelled},
	StatusCompleted:   {},
	StatusCancelled:   {},
	StatusNoShow:      {},
}

// CanTransition reports whether the lifecycle permits moving from one
// status to another. Unknown statuses permit nothing.
func CanTransition(from, to Status) bool {
	for _, t := range transitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// PossibleTransitions returns the allowed targets from the given status.
func PossibleTransitions(from Status) []Status {
	targets := transitions[from]
	out := make([]Status, len(targets))
	copy(out, targets)
	return out
}

// IsModifiable reports whether an appointment in this status may still be
// rescheduled or have its details edited.
func (s Status) IsModifiable() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusRescheduled:
		return true
	}
	return false
}

// IsCancellable reports whether an appointment in this status may be cancelled.
func (s Status) IsCancellable() bool {
	return s.IsModifiable()
}

// IsFinal reports whether the status has no outgoing transitions.
func (s Status) IsFinal() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}
