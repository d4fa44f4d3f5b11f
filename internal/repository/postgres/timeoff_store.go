package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/medicab/scheduler/internal/domain/schedule"
	"gorm.io/gorm"
)

type TimeOffStore struct {
	db *gorm.DB
}

func NewTimeOffStore(db *gorm.DB) *TimeOffStore {
	return &TimeOffStore{db: db}
}

func (r *TimeOffStore) Add(ctx context.Context, t *schedule.TimeOff) error {
	if err := r.db.WithContext(ctx).Create(t).Error; err != nil {
		return fmt.Errorf("inserting time off: %w", err)
	}
	return nil
}

func (r *TimeOffStore) FindForDoctor(ctx context.Context, doctorID int64, from, to time.Time) ([]*schedule.TimeOff, error) {
	var records []*schedule.TimeOff
	err := r.db.WithContext(ctx).
		Where("doctor_id = ? AND start_at < ? AND end_at > ?", doctorID, to, from).
		Order("start_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("fetching time off: %w", err)
	}
	return records, nil
}
