package service

import (
	"context"
	"time"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/event"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// AuditService appends to and reads a record's audit trail
type AuditService interface {
	// Log appends an entry. Failures are logged and reported in the
	// returned SideEffect, never as an error.
	Log(ctx context.Context, entry *entity.AuditLogEntry) SideEffect
	GetAuditTrail(ctx context.Context, recordID int64, filter entity.AuditFilter) ([]*entity.AuditLogEntry, error)
}

type auditServiceImpl struct {
	auditRepo port.AuditRepository
	logger    Logger
}

// NewAuditService creates a new AuditService
func NewAuditService(auditRepo port.AuditRepository, logger Logger) AuditService {
	return &auditServiceImpl{
		auditRepo: auditRepo,
		logger:    logger,
	}
}

func (s *auditServiceImpl) Log(ctx context.Context, entry *entity.AuditLogEntry) SideEffect {
	effect := SideEffect{Name: "audit:" + string(entry.Action)}

	if entry.CorrelationID == "" {
		entry.CorrelationID = event.NewCorrelationID()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := s.auditRepo.Create(ctx, entry); err != nil {
		s.logger.Error("Failed to write audit entry",
			"error", err,
			"record_id", entry.RecordID,
			"action", entry.Action,
			"correlation_id", entry.CorrelationID,
		)
		effect.Err = err
	}
	return effect
}

func (s *auditServiceImpl) GetAuditTrail(ctx context.Context, recordID int64, filter entity.AuditFilter) ([]*entity.AuditLogEntry, error) {
	entries, err := s.auditRepo.ListByRecord(ctx, recordID, filter)
	if err != nil {
		s.logger.Error("Failed to read audit trail", "error", err, "record_id", recordID)
		return nil, workflow.WrapStore("list audit trail", err)
	}
	return entries, nil
}
