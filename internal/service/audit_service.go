package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/medicab/scheduler/internal/domain/audit"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

type AuditEntry struct {
	UserID     uuid.UUID
	UserRole   string
	Action     audit.Action
	ResourceID string
	IPAddress  string
	RequestID  string
	Changes    string
}

type AuditService struct {
	repo    audit.Repository
	log     *zap.Logger
	dropped prometheus.Counter
	entries chan *audit.Log
	done    chan struct{}
}

const auditBufferSize = 10_000

func NewAuditService(repo audit.Repository, dropped prometheus.Counter, log *zap.Logger) *AuditService {
	svc := &AuditService{
		repo:    repo,
		log:     log,
		dropped: dropped,
		entries: make(chan *audit.Log, auditBufferSize),
		done:    make(chan struct{}),
	}
	go svc.worker()
	return svc
}

// LogAsync enqueues an audit entry for async persistence.
// If the buffer is full, the entry is dropped and a warning is emitted.
func (s *AuditService) LogAsync(_ context.Context, entry AuditEntry) {
	al := &audit.Log{
		UserID:       entry.UserID,
		UserRole:     entry.UserRole,
		Action:       entry.Action,
		ResourceType: "appointment",
		ResourceID:   entry.ResourceID,
		IPAddress:    entry.IPAddress,
		RequestID:    entry.RequestID,
		Changes:      entry.Changes,
	}

	select {
	case s.entries <- al:
	default:
		if s.dropped != nil {
			s.dropped.Inc()
		}
		s.log.Warn("audit log buffer full, dropping entry",
			zap.String("action", string(entry.Action)),
			zap.String("resource_id", entry.ResourceID),
		)
	}
}

func (s *AuditService) Shutdown() {
	close(s.entries)
	select {
	case <-s.done:
	case <-time.After(10 * time.Second):
		s.log.Warn("audit service shutdown timed out; some entries may be lost")
	}
}

func (s *AuditService) worker() {
	defer close(s.done)
	for entry := range s.entries {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.repo.Create(ctx, entry); err != nil {
			s.log.Error("failed to persist audit log", zap.Error(err))
		}
		cancel()
	}
}
