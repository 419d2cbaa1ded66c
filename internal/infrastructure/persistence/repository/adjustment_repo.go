package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
)

const adjustmentColumns = `
	id, record_id, requester_id, reviewer_id, current_amount, requested_amount,
	hours_to_remove, reason, status, approver_id, approved_at, rejected_at,
	approval_comment, rejection_reason, created_at, updated_at`

// AdjustmentRepository implements port.AdjustmentRepository
type AdjustmentRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAdjustmentRepository creates a new adjustment request repository
func NewAdjustmentRepository(db *sql.DB, logger *zap.Logger) *AdjustmentRepository {
	return &AdjustmentRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an adjustment request
func (r *AdjustmentRepository) Create(ctx context.Context, req *entity.AdjustmentRequest) error {
	now := time.Now()
	req.CreatedAt = now
	req.UpdatedAt = now

	query := `
		INSERT INTO adjustment_requests (
			record_id, requester_id, reviewer_id, current_amount, requested_amount,
			hours_to_remove, reason, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		req.RecordID,
		req.RequesterID,
		nullInt64(req.ReviewerID),
		req.CurrentAmount,
		req.RequestedAmount,
		req.HoursToRemove,
		req.Reason,
		req.Status,
		req.CreatedAt,
		req.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create adjustment request", zap.Int64("record_id", req.RecordID), zap.Error(err))
		return fmt.Errorf("failed to create adjustment request: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	req.ID = id
	return nil
}

// GetByID retrieves an adjustment request by ID
func (r *AdjustmentRepository) GetByID(ctx context.Context, id int64) (*entity.AdjustmentRequest, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustment_requests WHERE id = ?`

	req, err := scanAdjustment(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get adjustment request", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get adjustment request: %w", err)
	}
	return req, nil
}

// ListByRecord returns a record's adjustment requests, oldest first
func (r *AdjustmentRepository) ListByRecord(ctx context.Context, recordID int64) ([]*entity.AdjustmentRequest, error) {
	query := `SELECT ` + adjustmentColumns + ` FROM adjustment_requests WHERE record_id = ? ORDER BY id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to list adjustment requests", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list adjustment requests: %w", err)
	}
	defer rows.Close()

	var reqs []*entity.AdjustmentRequest
	for rows.Next() {
		req, err := scanAdjustment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan adjustment request: %w", err)
		}
		reqs = append(reqs, req)
	}
	return reqs, rows.Err()
}

// ExistsForRecord reports whether any request row, in any status, exists for the record
func (r *AdjustmentRepository) ExistsForRecord(ctx context.Context, recordID int64) (bool, error) {
	var exists bool
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM adjustment_requests WHERE record_id = ?)`, recordID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check adjustment requests: %w", err)
	}
	return exists, nil
}

// Update writes the request's decision fields if it is still in expectedStatus
func (r *AdjustmentRepository) Update(ctx context.Context, req *entity.AdjustmentRequest, expectedStatus string) error {
	aliases := aliasesOf(adjustmentStatusAliases, expectedStatus)
	query := `
		UPDATE adjustment_requests
		SET status = ?, reviewer_id = ?, approver_id = ?, approved_at = ?, rejected_at = ?,
			approval_comment = ?, rejection_reason = ?, updated_at = ?
		WHERE id = ? AND lower(trim(status)) IN (` + placeholders(len(aliases)) + `)
	`

	args := []interface{}{
		req.Status,
		nullInt64(req.ReviewerID),
		nullInt64(req.ApproverID),
		nullTime(req.ApprovedAt),
		nullTime(req.RejectedAt),
		req.ApprovalComment,
		req.RejectionReason,
		req.UpdatedAt,
		req.ID,
	}
	for _, a := range aliases {
		args = append(args, a)
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to update adjustment request", zap.Int64("id", req.ID), zap.Error(err))
		return fmt.Errorf("failed to update adjustment request: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("adjustment request %d is no longer %s: %w", req.ID, expectedStatus, workflow.ErrConflict))
}

// Delete removes an adjustment request
func (r *AdjustmentRepository) Delete(ctx context.Context, id int64) error {
	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM adjustment_requests WHERE id = ?`, id)
	if err != nil {
		r.logger.Error("Failed to delete adjustment request", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to delete adjustment request: %w", err)
	}
	return expectOneRow(result, workflow.ErrRequestNotFound)
}

func scanAdjustment(row rowScanner) (*entity.AdjustmentRequest, error) {
	var (
		req                    entity.AdjustmentRequest
		reviewerID, approverID sql.NullInt64
		approvedAt, rejectedAt sql.NullTime
	)

	err := row.Scan(
		&req.ID,
		&req.RecordID,
		&req.RequesterID,
		&reviewerID,
		&req.CurrentAmount,
		&req.RequestedAmount,
		&req.HoursToRemove,
		&req.Reason,
		&req.Status,
		&approverID,
		&approvedAt,
		&rejectedAt,
		&req.ApprovalComment,
		&req.RejectionReason,
		&req.CreatedAt,
		&req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	req.Status = NormalizeAdjustmentStatus(req.Status)
	req.ReviewerID = int64Ptr(reviewerID)
	req.ApproverID = int64Ptr(approverID)
	req.ApprovedAt = timePtr(approvedAt)
	req.RejectedAt = timePtr(rejectedAt)
	return &req, nil
}

var _ port.AdjustmentRepository = (*AdjustmentRepository)(nil)
