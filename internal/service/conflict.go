package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
)

// ConflictChecker answers whether a candidate interval collides with an
// actor's existing non-cancelled appointments. It is a pure query: absence
// of data means no conflict.
type ConflictChecker struct {
	store appointment.Store
}

func NewConflictChecker(store appointment.Store) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// WithStore rebinds the checker to another store, typically the
// transaction-bound view inside InTransaction.
func (c *ConflictChecker) WithStore(store appointment.Store) *ConflictChecker {
	return &ConflictChecker{store: store}
}

// Conflicts returns every appointment of the actor overlapping the
// candidate interval, excluding excludeID when moving an existing
// appointment (an appointment never conflicts with itself).
func (c *ConflictChecker) Conflicts(ctx context.Context, kind appointment.ActorKind, actorID int64, candidate appointment.Interval, excludeID *uuid.UUID) ([]*appointment.Appointment, error) {
	var (
		existing []*appointment.Appointment
		err      error
	)
	switch kind {
	case appointment.ActorDoctor:
		existing, err = c.store.FindActiveByDoctor(ctx, actorID, candidate.Start, candidate.End)
	case appointment.ActorPatient:
		existing, err = c.store.FindActiveByPatient(ctx, actorID, candidate.Start, candidate.End)
	default:
		return nil, fmt.Errorf("unknown actor kind %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("fetching %s appointments: %w", kind, err)
	}

	var conflicts []*appointment.Appointment
	for _, a := range existing {
		if excludeID != nil && a.ID == *excludeID {
			continue
		}
		if a.Status == appointment.StatusCancelled {
			continue
		}
		if candidate.Overlaps(a.Interval()) {
			conflicts = append(conflicts, a)
		}
	}
	return conflicts, nil
}

// HasConflict is the short-circuit variant of Conflicts.
func (c *ConflictChecker) HasConflict(ctx context.Context, kind appointment.ActorKind, actorID int64, candidate appointment.Interval, excludeID *uuid.UUID) (bool, error) {
	conflicts, err := c.Conflicts(ctx, kind, actorID, candidate, excludeID)
	if err != nil {
		return false, err
	}
	return len(conflicts) > 0, nil
}
