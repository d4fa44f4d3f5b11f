package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/medicab/scheduler/internal/domain/appointment"
	"gorm.io/gorm"
)

// AppointmentStore is the gorm-backed implementation of appointment.Store.
type AppointmentStore struct {
	db *gorm.DB
}

func NewAppointmentStore(db *gorm.DB) *AppointmentStore {
	return &AppointmentStore{db: db}
}

func (r *AppointmentStore) Create(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Create(a).Error; err != nil {
		if isOverlapViolation(err) {
			// The exclusion constraint is the transactional backstop for
			// the conflict check: a violation means another booking won.
			return &appointment.ConflictError{}
		}
		return fmt.Errorf("inserting appointment: %w", err)
	}
	return nil
}

func (r *AppointmentStore) GetByID(ctx context.Context, id uuid.UUID) (*appointment.Appointment, error) {
	var a appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&a).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, appointment.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fetching appointment: %w", err)
	}
	return &a, nil
}

func (r *AppointmentStore) Update(ctx context.Context, a *appointment.Appointment) error {
	if err := r.db.WithContext(ctx).Save(a).Error; err != nil {
		if isOverlapViolation(err) {
			return &appointment.ConflictError{}
		}
		return fmt.Errorf("updating appointment: %w", err)
	}
	return nil
}

func (r *AppointmentStore) UpdateStatus(ctx context.Context, a *appointment.Appointment) error {
	res := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("id = ? AND deleted_at IS NULL", a.ID).
		Updates(map[string]any{
			"status":              a.Status,
			"cancelled_at":        a.CancelledAt,
			"cancellation_reason": a.CancellationReason,
			"cancelled_by":        a.CancelledBy,
			"completed_at":        a.CompletedAt,
		})
	if res.Error != nil {
		return fmt.Errorf("updating appointment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return appointment.ErrNotFound
	}
	return nil
}

func (r *AppointmentStore) List(ctx context.Context, q *appointment.ListQuery) (*appointment.PagedAppointments, error) {
	query := r.db.WithContext(ctx).
		Model(&appointment.Appointment{}).
		Where("deleted_at IS NULL")

	if q.PatientID != nil {
		query = query.Where("patient_id = ?", *q.PatientID)
	}
	if q.DoctorID != nil {
		query = query.Where("doctor_id = ?", *q.DoctorID)
	}
	if q.Status != nil {
		query = query.Where("status = ?", *q.Status)
	}
	if q.DateFrom != nil {
		query = query.Where("start_at >= ?", *q.DateFrom)
	}
	if q.DateTo != nil {
		query = query.Where("start_at < ?", *q.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, fmt.Errorf("counting appointments: %w", err)
	}

	var appointments []*appointment.Appointment
	err := query.
		Order("start_at ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("listing appointments: %w", err)
	}

	totalPages := int((total + int64(q.PageSize) - 1) / int64(q.PageSize))
	return &appointment.PagedAppointments{
		Appointments: appointments,
		TotalCount:   total,
		Page:         q.Page,
		PageSize:     q.PageSize,
		TotalPages:   totalPages,
	}, nil
}

func (r *AppointmentStore) FindActiveByDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	return r.findActive(ctx, "doctor_id", doctorID, from, to)
}

func (r *AppointmentStore) FindActiveByPatient(ctx context.Context, patientID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	return r.findActive(ctx, "patient_id", patientID, from, to)
}

func (r *AppointmentStore) findActive(ctx context.Context, actorColumn string, actorID int64, from, to time.Time) ([]*appointment.Appointment, error) {
	var appointments []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where(actorColumn+" = ? AND status <> ? AND deleted_at IS NULL", actorID, appointment.StatusCancelled).
		Where("start_at < ? AND start_at + make_interval(mins => duration_mins) > ?", to, from).
		Order("start_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("fetching active appointments: %w", err)
	}
	return appointments, nil
}

func (r *AppointmentStore) FindUpcoming(ctx context.Context, within time.Duration) ([]*appointment.Appointment, error) {
	now := time.Now()
	var appointments []*appointment.Appointment
	err := r.db.WithContext(ctx).
		Where("start_at > ? AND start_at <= ? AND deleted_at IS NULL", now, now.Add(within)).
		Where("status IN ?", []appointment.Status{
			appointment.StatusPending,
			appointment.StatusConfirmed,
			appointment.StatusRescheduled,
		}).
		Order("start_at ASC").
		Find(&appointments).Error
	if err != nil {
		return nil, fmt.Errorf("fetching upcoming appointments: %w", err)
	}
	return appointments, nil
}

// InTransaction serializes the conflict read and the subsequent write per
// actor: both advisory locks are taken in key order inside the transaction
// so two bookings for the same doctor or patient cannot interleave, and
// differently ordered actor pairs cannot deadlock.
func (r *AppointmentStore) InTransaction(ctx context.Context, doctorID, patientID int64, fn func(tx appointment.Store) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Exec(
			`SELECT pg_advisory_xact_lock(k)
			 FROM (SELECT unnest(ARRAY[
			         hashtextextended('doctor:' || ?::text, 0),
			         hashtextextended('patient:' || ?::text, 0)
			       ]) AS k ORDER BY k) keys`,
			doctorID, patientID,
		).Error
		if err != nil {
			return fmt.Errorf("acquiring actor locks: %w", err)
		}
		return fn(&AppointmentStore{db: tx})
	})
}

// isOverlapViolation matches postgres exclusion (23P01) and unique (23505)
// violations raised by the appointments overlap constraints.
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23P01" || pgErr.Code == "23505"
	}
	return false
}
