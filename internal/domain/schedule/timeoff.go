package schedule

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/appointment"
)

// TimeOff blocks a doctor's calendar for a whole window (vacation,
// conference, closed day). Availability folds these in as busy intervals.
type TimeOff struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`

	DoctorID int64     `gorm:"column:doctor_id;not null;index" json:"doctor_id"`
	StartAt  time.Time `gorm:"column:start_at;not null;index" json:"start_at"`
	EndAt    time.Time `gorm:"column:end_at;not null" json:"end_at"`
	Reason   string    `gorm:"column:reason;type:varchar(255)" json:"reason,omitempty"`

	CreatedBy uuid.UUID `gorm:"column:created_by;type:uuid;not null" json:"created_by"`
}

func (TimeOff) TableName() string {
	return "scheduling.doctor_time_off"
}

func (t *TimeOff) Interval() appointment.Interval {
	return appointment.Interval{Start: t.StartAt, End: t.EndAt}
}

type TimeOffStore interface {
	Add(ctx context.Context, t *TimeOff) error

	// FindForDoctor returns time-off records overlapping [from, to).
	FindForDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*TimeOff, error)
}
