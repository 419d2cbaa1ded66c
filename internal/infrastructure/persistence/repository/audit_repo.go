package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit log repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Create appends an audit entry
func (r *AuditRepository) Create(ctx context.Context, entry *entity.AuditLogEntry) error {
	metadata := "{}"
	if len(entry.Metadata) > 0 {
		data, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode audit metadata: %w", err)
		}
		metadata = string(data)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO audit_log (
			record_id, approval_id, request_id, actor_id, action,
			previous_status, new_status, comment, metadata, correlation_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		entry.RecordID,
		nullInt64(entry.ApprovalID),
		nullInt64(entry.RequestID),
		entry.ActorID,
		string(entry.Action),
		entry.PreviousStatus,
		entry.NewStatus,
		entry.Comment,
		metadata,
		entry.CorrelationID,
		entry.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to create audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	entry.ID = id
	return nil
}

// ListByRecord returns a record's audit trail in chronological order
func (r *AuditRepository) ListByRecord(ctx context.Context, recordID int64, filter entity.AuditFilter) ([]*entity.AuditLogEntry, error) {
	where := []string{"record_id = ?"}
	args := []interface{}{recordID}

	if len(filter.Actions) > 0 {
		where = append(where, "action IN ("+placeholders(len(filter.Actions))+")")
		for _, a := range filter.Actions {
			args = append(args, string(a))
		}
	}
	if filter.ActorID != nil {
		where = append(where, "actor_id = ?")
		args = append(args, *filter.ActorID)
	}
	if filter.Since != nil {
		where = append(where, "created_at >= ?")
		args = append(args, filter.Since.UTC())
	}
	if filter.Until != nil {
		where = append(where, "created_at <= ?")
		args = append(args, filter.Until.UTC())
	}

	query := `
		SELECT id, record_id, approval_id, request_id, actor_id, action,
			previous_status, new_status, comment, metadata, correlation_id, created_at
		FROM audit_log
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []*entity.AuditLogEntry
	for rows.Next() {
		var (
			e                     entity.AuditLogEntry
			approvalID, requestID sql.NullInt64
			action, metadata      string
		)
		if err := rows.Scan(
			&e.ID,
			&e.RecordID,
			&approvalID,
			&requestID,
			&e.ActorID,
			&action,
			&e.PreviousStatus,
			&e.NewStatus,
			&e.Comment,
			&metadata,
			&e.CorrelationID,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}

		e.Action = entity.AuditAction(action)
		e.ApprovalID = int64Ptr(approvalID)
		e.RequestID = int64Ptr(requestID)
		if metadata != "" && metadata != "{}" {
			if err := json.Unmarshal([]byte(metadata), &e.Metadata); err != nil {
				r.logger.Error("Skipping malformed audit metadata", zap.Int64("id", e.ID), zap.Error(err))
			}
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ port.AuditRepository = (*AuditRepository)(nil)
