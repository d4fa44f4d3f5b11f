package appointment

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinDurationMins     = 15
	MaxDurationMins     = 480
	DefaultDurationMins = 30

	MaxReasonLen = 500
	MaxNotesLen  = 1000
)

type Appointment struct {
	ID        uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time  `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	PatientID int64 `gorm:"column:patient_id;not null;index" json:"patient_id"`
	DoctorID  int64 `gorm:"column:doctor_id;not null;index" json:"doctor_id"`

	StartAt      time.Time `gorm:"column:start_at;not null;index" json:"start_at"`
	DurationMins int       `gorm:"column:duration_mins;not null;default:30" json:"duration_mins"`
	Status       Status    `gorm:"column:status;type:varchar(30);not null;default:'confirmed';index" json:"status"`

	Reason string `gorm:"column:reason;type:varchar(500)" json:"reason,omitempty"`
	Notes  string `gorm:"column:notes;type:text" json:"notes,omitempty"`

	// Cancellation tracking. Start and duration are retained for audit.
	CancelledAt        *time.Time `gorm:"column:cancelled_at" json:"cancelled_at,omitempty"`
	CancellationReason string     `gorm:"column:cancellation_reason;type:text" json:"cancellation_reason,omitempty"`
	CancelledBy        *uuid.UUID `gorm:"column:cancelled_by;type:uuid" json:"cancelled_by,omitempty"`

	CompletedAt *time.Time `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (Appointment) TableName() string {
	return "scheduling.appointments"
}

func (a *Appointment) EndsAt() time.Time {
	return a.StartAt.Add(time.Duration(a.DurationMins) * time.Minute)
}

// Interval returns the occupied [start, end) range.
func (a *Appointment) Interval() Interval {
	return Interval{Start: a.StartAt, End: a.EndsAt()}
}

// The methods below are derived fields, never stored: they are recomputed
// from start, duration and status at the read boundary.

func (a *Appointment) IsUpcoming() bool {
	return a.StartAt.After(time.Now())
}

func (a *Appointment) IsToday() bool {
	now := time.Now().In(a.StartAt.Location())
	y1, m1, d1 := a.StartAt.Date()
	y2, m2, d2 := now.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

func (a *Appointment) IsModifiable() bool {
	return a.Status.IsModifiable() && a.IsUpcoming()
}

func (a *Appointment) IsCancellable() bool {
	return a.Status.IsCancellable() && a.IsUpcoming()
}

// IsOverdue reports an appointment whose start has passed without the
// lifecycle reaching a final state or being started.
func (a *Appointment) IsOverdue() bool {
	return a.StartAt.Before(time.Now()) && !a.Status.IsFinal() && a.Status != StatusInProgress
}

type CreateCommand struct {
	PatientID    int64
	DoctorID     int64
	StartAt      time.Time
	DurationMins int
	Reason       string
	Notes        string
	CreatedBy    uuid.UUID
}

type RescheduleCommand struct {
	StartAt      time.Time
	DurationMins *int
	UpdatedBy    uuid.UUID
}

type CancelCommand struct {
	Reason      string
	CancelledBy uuid.UUID
}

type ListQuery struct {
	PatientID *int64
	DoctorID  *int64
	Status    *Status
	DateFrom  *time.Time
	DateTo    *time.Time
	Page      int
	PageSize  int
}

type PagedAppointments struct {
	Appointments []*Appointment
	TotalCount   int64
	Page         int
	PageSize     int
	TotalPages   int
}
