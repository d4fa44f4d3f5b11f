package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Action string

const (
	ActionCreate     Action = "create"
	ActionRead       Action = "read"
	ActionReschedule Action = "reschedule"
	ActionCancel     Action = "cancel"
	ActionTransition Action = "transition"
)

type Log struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OccurredAt time.Time `gorm:"autoCreateTime;index"`

	// Who
	UserID    uuid.UUID `gorm:"column:user_id;type:uuid;not null;index"`
	UserRole  string    `gorm:"column:user_role;type:varchar(30);not null"`
	IPAddress string    `gorm:"column:ip_address;type:varchar(45)"` // Supports IPv6

	// What
	Action       Action `gorm:"column:action;type:varchar(20);not null;index"`
	ResourceType string `gorm:"column:resource_type;type:varchar(50);not null;index"`
	ResourceID   string `gorm:"column:resource_id;type:varchar(50);index"`

	RequestID string `gorm:"column:request_id;type:varchar(50);index"`
	Changes   string `gorm:"column:changes;type:jsonb"`
}

func (Log) TableName() string {
	return "audit.logs"
}

type Repository interface {
	Create(ctx context.Context, entry *Log) error
}
