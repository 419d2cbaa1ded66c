package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
)

const approvalColumns = `
	id, record_id, stage_name, stage_order, status, actor_id, comment,
	approved_at, rejected_at, skipped_at, version, created_at, updated_at`

// ApprovalRepository implements port.ApprovalRepository
type ApprovalRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewApprovalRepository creates a new approval repository
func NewApprovalRepository(db *sql.DB, logger *zap.Logger) *ApprovalRepository {
	return &ApprovalRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts an approval row
func (r *ApprovalRepository) Create(ctx context.Context, approval *entity.ApprovalRecord) error {
	now := time.Now()
	approval.CreatedAt = now
	approval.UpdatedAt = now
	if approval.Version == 0 {
		approval.Version = 1
	}

	query := `
		INSERT INTO approvals (
			record_id, stage_name, stage_order, status, actor_id, comment,
			approved_at, rejected_at, skipped_at, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		approval.RecordID,
		approval.StageName,
		approval.StageOrder,
		approval.Status,
		nullInt64(approval.ActorID),
		approval.Comment,
		nullTime(approval.ApprovedAt),
		nullTime(approval.RejectedAt),
		nullTime(approval.SkippedAt),
		approval.Version,
		approval.CreatedAt,
		approval.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: record %d already has stage %q", workflow.ErrWorkflowAlreadyExists, approval.RecordID, approval.StageName)
	}
	if err != nil {
		r.logger.Error("Failed to create approval",
			zap.Int64("record_id", approval.RecordID),
			zap.String("stage", approval.StageName),
			zap.Error(err))
		return fmt.Errorf("failed to create approval: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	approval.ID = id
	return nil
}

// GetByID retrieves an approval by ID
func (r *ApprovalRepository) GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE id = ?`

	approval, err := scanApproval(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get approval by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get approval: %w", err)
	}
	return approval, nil
}

// ListByRecord returns a record's approvals in stage order
func (r *ApprovalRepository) ListByRecord(ctx context.Context, recordID int64) ([]*entity.ApprovalRecord, error) {
	query := `SELECT ` + approvalColumns + ` FROM approvals WHERE record_id = ? ORDER BY stage_order, id`

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, recordID)
	if err != nil {
		r.logger.Error("Failed to list approvals", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list approvals: %w", err)
	}
	defer rows.Close()

	var approvals []*entity.ApprovalRecord
	for rows.Next() {
		approval, err := scanApproval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan approval: %w", err)
		}
		approvals = append(approvals, approval)
	}
	return approvals, rows.Err()
}

// CountByRecord returns how many approval rows a record has
func (r *ApprovalRepository) CountByRecord(ctx context.Context, recordID int64) (int, error) {
	var n int
	err := sqlite.Conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM approvals WHERE record_id = ?`, recordID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count approvals: %w", err)
	}
	return n, nil
}

// ApplyDecision writes a terminal decision if the row is still in
// expectedStatus. Legacy spellings of expectedStatus also match.
func (r *ApprovalRepository) ApplyDecision(ctx context.Context, id int64, expectedStatus string, d entity.ApprovalDecision) error {
	var approvedAt, rejectedAt, skippedAt interface{}
	switch d.Status {
	case entity.ApprovalStatusApproved:
		approvedAt = d.At
	case entity.ApprovalStatusRejected:
		rejectedAt = d.At
	case entity.ApprovalStatusSkipped:
		skippedAt = d.At
	default:
		return fmt.Errorf("%w: %q is not a terminal approval status", workflow.ErrInvalidTransition, d.Status)
	}

	aliases := aliasesOf(approvalStatusAliases, expectedStatus)
	query := `
		UPDATE approvals
		SET status = ?, actor_id = ?, comment = ?,
			approved_at = ?, rejected_at = ?, skipped_at = ?,
			version = version + 1, updated_at = ?
		WHERE id = ? AND lower(trim(status)) IN (` + placeholders(len(aliases)) + `)
	`

	args := []interface{}{d.Status, d.ActorID, d.Comment, approvedAt, rejectedAt, skippedAt, d.At, id}
	for _, a := range aliases {
		args = append(args, a)
	}

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to apply approval decision", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to apply approval decision: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("approval %d is no longer %s: %w", id, expectedStatus, workflow.ErrConflict))
}

func scanApproval(row rowScanner) (*entity.ApprovalRecord, error) {
	var (
		a                                 entity.ApprovalRecord
		actorID                           sql.NullInt64
		approvedAt, rejectedAt, skippedAt sql.NullTime
	)

	err := row.Scan(
		&a.ID,
		&a.RecordID,
		&a.StageName,
		&a.StageOrder,
		&a.Status,
		&actorID,
		&a.Comment,
		&approvedAt,
		&rejectedAt,
		&skippedAt,
		&a.Version,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.Status = NormalizeApprovalStatus(a.Status)
	a.ActorID = int64Ptr(actorID)
	a.ApprovedAt = timePtr(approvedAt)
	a.RejectedAt = timePtr(rejectedAt)
	a.SkippedAt = timePtr(skippedAt)
	return &a, nil
}

// aliasesOf lists every stored spelling that normalizes to status
func aliasesOf(aliases map[string]string, status string) []string {
	out := []string{status}
	for raw, canon := range aliases {
		if canon == status && raw != status {
			out = append(out, raw)
		}
	}
	return out
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

var _ port.ApprovalRepository = (*ApprovalRepository)(nil)
