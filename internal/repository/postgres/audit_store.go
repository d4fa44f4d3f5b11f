package postgres

import (
	"context"
	"fmt"

	"github.com/medicab/scheduler/internal/domain/audit"
	"gorm.io/gorm"
)

type AuditStore struct {
	db *gorm.DB
}

func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (r *AuditStore) Create(ctx context.Context, entry *audit.Log) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("inserting audit log: %w", err)
	}
	return nil
}
