package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
)

const recordColumns = `
	id, title, client, pricing, content, status, allocated_hours,
	requirement_disabled, hours_removed, disabled_at, disabled_by,
	custom_fields, hidden, version, owner_id, created_by, updated_by,
	created_at, updated_at`

// RecordRepository implements port.RecordRepository
type RecordRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewRecordRepository creates a new record repository
func NewRecordRepository(db *sql.DB, logger *zap.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a record and fills in its id
func (r *RecordRepository) Create(ctx context.Context, record *entity.Record) error {
	custom, err := encodeCustomFields(record.CustomFields)
	if err != nil {
		return err
	}

	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	if record.Version == 0 {
		record.Version = 1
	}
	if record.Status == "" {
		record.Status = entity.RecordStatusDraft
	}

	query := `
		INSERT INTO records (
			title, client, pricing, content, status, allocated_hours,
			requirement_disabled, hours_removed, disabled_at, disabled_by,
			custom_fields, hidden, version, owner_id, created_by, updated_by,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		record.Title,
		record.Client,
		record.Pricing,
		record.Content,
		record.Status,
		record.AllocatedHours,
		record.RequirementDisabled,
		record.HoursRemoved,
		nullTime(record.DisabledAt),
		nullInt64(record.DisabledBy),
		custom,
		record.Hidden,
		record.Version,
		record.OwnerID,
		record.CreatedBy,
		record.UpdatedBy,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create record", zap.Error(err))
		return fmt.Errorf("failed to create record: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}

	record.ID = id
	return nil
}

// GetByID retrieves a record by ID
func (r *RecordRepository) GetByID(ctx context.Context, id int64) (*entity.Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE id = ?`

	record, err := scanRecord(sqlite.Conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.Error("Failed to get record by ID", zap.Int64("id", id), zap.Error(err))
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

// List returns records matching the filter, newest first
func (r *RecordRepository) List(ctx context.Context, filter port.RecordFilter) ([]*entity.Record, error) {
	var (
		where []string
		args  []interface{}
	)
	if !filter.IncludeHidden {
		where = append(where, "hidden = 0")
	}
	if filter.Status != "" {
		where = append(where, "status = ?")
		args = append(args, filter.Status)
	}

	query := `SELECT ` + recordColumns + ` FROM records`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list records", zap.Error(err))
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []*entity.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Update writes the editable fields, conditional on expectedVersion.
// allocated_hours is left alone while the requirement is disabled.
func (r *RecordRepository) Update(ctx context.Context, record *entity.Record, expectedVersion int) error {
	custom, err := encodeCustomFields(record.CustomFields)
	if err != nil {
		return err
	}

	record.UpdatedAt = time.Now()
	query := `
		UPDATE records
		SET title = ?, client = ?, pricing = ?, content = ?,
			allocated_hours = CASE WHEN requirement_disabled THEN allocated_hours ELSE ? END,
			custom_fields = ?, version = ?, updated_by = ?, updated_at = ?
		WHERE id = ? AND version = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		record.Title,
		record.Client,
		record.Pricing,
		record.Content,
		record.AllocatedHours,
		custom,
		record.Version,
		record.UpdatedBy,
		record.UpdatedAt,
		record.ID,
		expectedVersion,
	)
	if err != nil {
		r.logger.Error("Failed to update record", zap.Int64("id", record.ID), zap.Error(err))
		return fmt.Errorf("failed to update record: %w", err)
	}
	return expectOneRow(result, fmt.Errorf("record %d version %d: %w", record.ID, expectedVersion, workflow.ErrConflict))
}

// UpdateStatus sets the record's workflow status
func (r *RecordRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	query := `UPDATE records SET status = ?, updated_at = ? WHERE id = ?`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update record status", zap.Int64("id", id), zap.String("status", status), zap.Error(err))
		return fmt.Errorf("failed to update record status: %w", err)
	}
	return expectOneRow(result, workflow.ErrRecordNotFound)
}

// UpdateAllocation writes the fields owned by the adjustment workflow and
// bumps the version so edits loaded before it fail their version check
func (r *RecordRepository) UpdateAllocation(ctx context.Context, id int64, change entity.AllocationChange) error {
	query := `
		UPDATE records
		SET allocated_hours = ?, requirement_disabled = ?, hours_removed = ?,
			disabled_at = ?, disabled_by = ?, version = version + 1, updated_at = ?
		WHERE id = ?
	`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query,
		change.AllocatedHours,
		change.RequirementDisabled,
		change.HoursRemoved,
		nullTime(change.DisabledAt),
		nullInt64(change.DisabledBy),
		time.Now(),
		id,
	)
	if err != nil {
		r.logger.Error("Failed to update record allocation", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update record allocation: %w", err)
	}
	return expectOneRow(result, workflow.ErrRecordNotFound)
}

// SetHidden retires or restores a record
func (r *RecordRepository) SetHidden(ctx context.Context, id int64, hidden bool) error {
	query := `UPDATE records SET hidden = ?, updated_at = ? WHERE id = ?`

	result, err := sqlite.Conn(ctx, r.db).ExecContext(ctx, query, hidden, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update record visibility", zap.Int64("id", id), zap.Error(err))
		return fmt.Errorf("failed to update record visibility: %w", err)
	}
	return expectOneRow(result, workflow.ErrRecordNotFound)
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*entity.Record, error) {
	var (
		record     entity.Record
		disabledAt sql.NullTime
		disabledBy sql.NullInt64
		custom     string
	)

	err := row.Scan(
		&record.ID,
		&record.Title,
		&record.Client,
		&record.Pricing,
		&record.Content,
		&record.Status,
		&record.AllocatedHours,
		&record.RequirementDisabled,
		&record.HoursRemoved,
		&disabledAt,
		&disabledBy,
		&custom,
		&record.Hidden,
		&record.Version,
		&record.OwnerID,
		&record.CreatedBy,
		&record.UpdatedBy,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	record.Status = NormalizeRecordStatus(record.Status)
	record.DisabledAt = timePtr(disabledAt)
	record.DisabledBy = int64Ptr(disabledBy)
	if custom != "" && custom != "{}" {
		if err := json.Unmarshal([]byte(custom), &record.CustomFields); err != nil {
			return nil, fmt.Errorf("failed to decode custom fields: %w", err)
		}
	}
	return &record, nil
}

func encodeCustomFields(fields map[string]string) (string, error) {
	if len(fields) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode custom fields: %w", err)
	}
	return string(data), nil
}

// expectOneRow returns notMatched when an update touched no rows
func expectOneRow(result sql.Result, notMatched error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notMatched
	}
	return nil
}

var _ port.RecordRepository = (*RecordRepository)(nil)
