package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/config"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"github.com/medicab/scheduler/internal/domain/audit"
	"github.com/medicab/scheduler/internal/domain/schedule"
	"github.com/medicab/scheduler/internal/notify"
	"go.uber.org/zap"
)

// AppointmentService is the sequencing authority over the status machine,
// the conflict checker and the availability calculator. All mutations of
// the appointment set go through its validated operations.
type AppointmentService struct {
	store    appointment.Store
	timeOff  schedule.TimeOffStore
	checker  *ConflictChecker
	auditSvc *AuditService
	notifier notify.Notifier
	cfg      config.ScheduleConfig
	hours    schedule.WeeklyHours
	loc      *time.Location
	log      *zap.Logger
}

func NewAppointmentService(
	store appointment.Store,
	timeOff schedule.TimeOffStore,
	auditSvc *AuditService,
	notifier notify.Notifier,
	cfg config.ScheduleConfig,
	log *zap.Logger,
) (*AppointmentService, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving schedule timezone: %w", err)
	}
	return &AppointmentService{
		store:    store,
		timeOff:  timeOff,
		checker:  NewConflictChecker(store),
		auditSvc: auditSvc,
		notifier: notifier,
		cfg:      cfg,
		hours:    schedule.DefaultWeeklyHours(cfg.OpeningTime, cfg.ClosingTime),
		loc:      loc,
		log:      log,
	}, nil
}

func (s *AppointmentService) initialStatus() appointment.Status {
	if s.cfg.InitialStatus == "pending" {
		return appointment.StatusPending
	}
	return appointment.StatusConfirmed
}

// Create books a new appointment. The conflict read and the insert run
// inside one transactional unit holding per-actor locks, so two concurrent
// bookings for the same doctor or patient cannot both pass the check.
func (s *AppointmentService) Create(ctx context.Context, cmd *appointment.CreateCommand, caller Caller) (*appointment.Appointment, error) {
	if err := validateActors(cmd.DoctorID, cmd.PatientID); err != nil {
		return nil, err
	}
	if cmd.DurationMins == 0 {
		cmd.DurationMins = appointment.DefaultDurationMins
	}
	if cmd.DurationMins < appointment.MinDurationMins || cmd.DurationMins > appointment.MaxDurationMins {
		return nil, appointment.ErrInvalidDuration
	}
	if len(cmd.Reason) > appointment.MaxReasonLen {
		return nil, appointment.ErrReasonTooLong
	}
	if len(cmd.Notes) > appointment.MaxNotesLen {
		return nil, appointment.ErrNotesTooLong
	}
	if !cmd.StartAt.After(time.Now()) {
		return nil, appointment.ErrScheduledInPast
	}

	candidate := appointment.NewInterval(cmd.StartAt, time.Duration(cmd.DurationMins)*time.Minute)
	if !s.hours.Contains(candidate, s.loc) {
		return nil, appointment.ErrOutsideBusinessHours
	}

	if caller.IsPatient() && !caller.OwnsPatient(cmd.PatientID) {
		return nil, ErrForbidden
	}

	a := &appointment.Appointment{
		PatientID:    cmd.PatientID,
		DoctorID:     cmd.DoctorID,
		StartAt:      cmd.StartAt,
		DurationMins: cmd.DurationMins,
		Status:       s.initialStatus(),
		Reason:       cmd.Reason,
		Notes:        cmd.Notes,
		CreatedBy:    cmd.CreatedBy,
	}

	err := s.store.InTransaction(ctx, cmd.DoctorID, cmd.PatientID, func(tx appointment.Store) error {
		conflicts, err := s.bothSideConflicts(ctx, tx, cmd.DoctorID, cmd.PatientID, candidate, nil)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &appointment.ConflictError{Conflicts: conflicts}
		}
		return tx.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.UserID,
		UserRole:   caller.Role,
		Action:     audit.ActionCreate,
		ResourceID: a.ID.String(),
		IPAddress:  caller.IP,
	})
	s.notifier.Publish(ctx, notify.NewMessage(notify.EventBooked, a))

	return a, nil
}

// Reschedule moves an appointment to a new start (and optionally a new
// duration), excluding the appointment itself from its own conflict check.
// Past starts are allowed so the back office can correct old records.
func (s *AppointmentService) Reschedule(ctx context.Context, id uuid.UUID, cmd *appointment.RescheduleCommand, caller Caller) (*appointment.Appointment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsPatient() && !caller.OwnsPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	if !a.Status.IsModifiable() {
		return nil, &appointment.InvalidTransitionError{From: a.Status, To: appointment.StatusRescheduled}
	}

	durationMins := a.DurationMins
	if cmd.DurationMins != nil {
		durationMins = *cmd.DurationMins
		if durationMins < appointment.MinDurationMins || durationMins > appointment.MaxDurationMins {
			return nil, appointment.ErrInvalidDuration
		}
	}

	candidate := appointment.NewInterval(cmd.StartAt, time.Duration(durationMins)*time.Minute)
	if !s.hours.Contains(candidate, s.loc) {
		return nil, appointment.ErrOutsideBusinessHours
	}

	err = s.store.InTransaction(ctx, a.DoctorID, a.PatientID, func(tx appointment.Store) error {
		conflicts, err := s.bothSideConflicts(ctx, tx, a.DoctorID, a.PatientID, candidate, &a.ID)
		if err != nil {
			return err
		}
		if len(conflicts) > 0 {
			return &appointment.ConflictError{Conflicts: conflicts}
		}

		a.StartAt = cmd.StartAt
		a.DurationMins = durationMins
		if s.cfg.RescheduleReconfirm && appointment.CanTransition(a.Status, appointment.StatusRescheduled) {
			a.Status = appointment.StatusRescheduled
		}
		return tx.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.UserID,
		UserRole:   caller.Role,
		Action:     audit.ActionReschedule,
		ResourceID: a.ID.String(),
		IPAddress:  caller.IP,
		Changes:    fmt.Sprintf(`{"start_at":%q,"duration_mins":%d}`, a.StartAt.Format(time.RFC3339), a.DurationMins),
	})
	s.notifier.Publish(ctx, notify.NewMessage(notify.EventRescheduled, a))

	return a, nil
}

// Cancel marks an appointment cancelled. The row is never removed: the
// original start and duration stay behind for audit.
func (s *AppointmentService) Cancel(ctx context.Context, id uuid.UUID, cmd *appointment.CancelCommand, caller Caller) (*appointment.Appointment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsPatient() && !caller.OwnsPatient(a.PatientID) {
		return nil, ErrForbidden
	}
	if !a.Status.IsCancellable() {
		return nil, &appointment.InvalidTransitionError{From: a.Status, To: appointment.StatusCancelled}
	}

	now := time.Now()
	a.Status = appointment.StatusCancelled
	a.CancelledAt = &now
	a.CancellationReason = cmd.Reason
	a.CancelledBy = &cmd.CancelledBy

	if err := s.store.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.UserID,
		UserRole:   caller.Role,
		Action:     audit.ActionCancel,
		ResourceID: a.ID.String(),
		IPAddress:  caller.IP,
		Changes:    fmt.Sprintf(`{"status":"cancelled","reason":%q}`, cmd.Reason),
	})
	s.notifier.Publish(ctx, notify.NewMessage(notify.EventCancelled, a))

	return a, nil
}

// TransitionStatus applies a lifecycle transition. Disallowed edges fail
// without mutating the appointment.
func (s *AppointmentService) TransitionStatus(ctx context.Context, id uuid.UUID, target appointment.Status, caller Caller) (*appointment.Appointment, error) {
	if caller.IsPatient() {
		return nil, ErrForbidden
	}

	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !appointment.CanTransition(a.Status, target) {
		return nil, &appointment.InvalidTransitionError{From: a.Status, To: target}
	}

	now := time.Now()
	a.Status = target
	switch target {
	case appointment.StatusCompleted:
		a.CompletedAt = &now
	case appointment.StatusCancelled:
		a.CancelledAt = &now
		a.CancelledBy = &caller.UserID
	}

	if err := s.store.UpdateStatus(ctx, a); err != nil {
		return nil, fmt.Errorf("updating appointment status: %w", err)
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.UserID,
		UserRole:   caller.Role,
		Action:     audit.ActionTransition,
		ResourceID: a.ID.String(),
		IPAddress:  caller.IP,
		Changes:    fmt.Sprintf(`{"status":%q}`, target),
	})
	s.notifier.Publish(ctx, notify.NewMessage(notify.EventStatusChanged, a))

	return a, nil
}

func (s *AppointmentService) Get(ctx context.Context, id uuid.UUID, caller Caller) (*appointment.Appointment, error) {
	a, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if caller.IsPatient() && !caller.OwnsPatient(a.PatientID) {
		return nil, ErrForbidden
	}

	s.auditSvc.LogAsync(ctx, AuditEntry{
		UserID:     caller.UserID,
		UserRole:   caller.Role,
		Action:     audit.ActionRead,
		ResourceID: a.ID.String(),
		IPAddress:  caller.IP,
	})

	return a, nil
}

func (s *AppointmentService) List(ctx context.Context, q *appointment.ListQuery, caller Caller) (*appointment.PagedAppointments, error) {
	// Patients can only see their own appointments.
	if caller.IsPatient() {
		q.PatientID = caller.PatientID
	}
	if q.PageSize <= 0 || q.PageSize > 100 {
		q.PageSize = 20
	}
	if q.Page <= 0 {
		q.Page = 1
	}
	return s.store.List(ctx, q)
}

// AvailableSlots computes the doctor's free/occupied slot sequence for one
// date. Time-off records are folded in as busy intervals, so a blocked day
// comes back all-unavailable.
func (s *AppointmentService) AvailableSlots(ctx context.Context, doctorID int64, date time.Time, slotDuration time.Duration) ([]schedule.Slot, error) {
	if slotDuration <= 0 {
		slotDuration = time.Duration(s.cfg.SlotDurationMins) * time.Minute
	}

	d := date.In(s.loc)
	dayStart := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, s.loc)
	dayEnd := dayStart.AddDate(0, 0, 1)

	booked, err := s.store.FindActiveByDoctor(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("fetching doctor appointments: %w", err)
	}
	blocked, err := s.timeOff.FindForDoctor(ctx, doctorID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("fetching doctor time off: %w", err)
	}

	busy := make([]appointment.Interval, 0, len(booked)+len(blocked))
	for _, a := range booked {
		if a.Status == appointment.StatusCancelled {
			continue
		}
		busy = append(busy, a.Interval())
	}
	for _, t := range blocked {
		busy = append(busy, t.Interval())
	}

	return schedule.Slots(date, s.hours, slotDuration, busy, s.loc)
}

// SuggestAlternatives proposes the next free slots on or after the given
// instant, scanning forward day by day.
func (s *AppointmentService) SuggestAlternatives(ctx context.Context, doctorID int64, from time.Time, slotDuration time.Duration, limit int) ([]schedule.Slot, error) {
	if limit <= 0 {
		limit = s.cfg.SuggestionLimit
	}

	var suggestions []schedule.Slot
	for day := 0; day <= s.cfg.SuggestionDays && len(suggestions) < limit; day++ {
		date := from.In(s.loc).AddDate(0, 0, day)
		slots, err := s.AvailableSlots(ctx, doctorID, date, slotDuration)
		if err != nil {
			return nil, err
		}

		notBefore := time.Time{}
		if day == 0 {
			notBefore = from
		}
		for _, free := range schedule.FreeSlots(slots, notBefore) {
			suggestions = append(suggestions, free)
			if len(suggestions) >= limit {
				break
			}
		}
	}
	return suggestions, nil
}

// ConflictCheckResult is the answer to a dry-run booking probe.
type ConflictCheckResult struct {
	HasConflicts bool
	Conflicting  []*appointment.Appointment
	Suggested    []schedule.Slot
}

// CheckConflicts probes a candidate booking without writing anything and,
// when it collides, proposes alternatives.
func (s *AppointmentService) CheckConflicts(ctx context.Context, doctorID, patientID int64, startAt time.Time, durationMins int) (*ConflictCheckResult, error) {
	if err := validateActors(doctorID, patientID); err != nil {
		return nil, err
	}
	if durationMins == 0 {
		durationMins = appointment.DefaultDurationMins
	}
	if durationMins < appointment.MinDurationMins || durationMins > appointment.MaxDurationMins {
		return nil, appointment.ErrInvalidDuration
	}

	duration := time.Duration(durationMins) * time.Minute
	candidate := appointment.NewInterval(startAt, duration)

	conflicts, err := s.bothSideConflicts(ctx, s.store, doctorID, patientID, candidate, nil)
	if err != nil {
		return nil, err
	}

	result := &ConflictCheckResult{
		HasConflicts: len(conflicts) > 0,
		Conflicting:  conflicts,
	}
	if result.HasConflicts {
		result.Suggested, err = s.SuggestAlternatives(ctx, doctorID, startAt, duration, 0)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

// validateActors rejects actor ids the identity service would never
// issue. Collected as fields so the caller sees every problem at once.
func validateActors(doctorID, patientID int64) error {
	var fields []string
	if doctorID <= 0 {
		fields = append(fields, "doctor_id must be positive")
	}
	if patientID <= 0 {
		fields = append(fields, "patient_id must be positive")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// bothSideConflicts runs the doctor-side and patient-side checks
// independently and merges the hits, deduplicated by appointment id.
func (s *AppointmentService) bothSideConflicts(ctx context.Context, store appointment.Store, doctorID, patientID int64, candidate appointment.Interval, excludeID *uuid.UUID) ([]*appointment.Appointment, error) {
	checker := s.checker.WithStore(store)

	doctorSide, err := checker.Conflicts(ctx, appointment.ActorDoctor, doctorID, candidate, excludeID)
	if err != nil {
		return nil, err
	}
	patientSide, err := checker.Conflicts(ctx, appointment.ActorPatient, patientID, candidate, excludeID)
	if err != nil {
		return nil, err
	}

	seen := make(map[uuid.UUID]struct{}, len(doctorSide))
	merged := make([]*appointment.Appointment, 0, len(doctorSide)+len(patientSide))
	for _, a := range doctorSide {
		seen[a.ID] = struct{}{}
		merged = append(merged, a)
	}
	for _, a := range patientSide {
		if _, dup := seen[a.ID]; !dup {
			merged = append(merged, a)
		}
	}
	return merged, nil
}
