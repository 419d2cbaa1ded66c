package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/infrastructure/persistence/sqlite"
)

// ChangelogRepository implements port.ChangelogRepository
type ChangelogRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewChangelogRepository creates a new changelog repository
func NewChangelogRepository(db *sql.DB, logger *zap.Logger) *ChangelogRepository {
	return &ChangelogRepository{
		db:     db,
		logger: logger,
	}
}

// CreateBatch inserts entries with a single prepared statement. Callers
// wanting all-or-nothing semantics run it inside a transaction.
func (r *ChangelogRepository) CreateBatch(ctx context.Context, entries []*entity.ChangelogEntry) error {
	if len(entries) == 0 {
		return nil
	}

	query := `
		INSERT INTO changelog_entries (
			record_id, actor_id, field_name, previous_value, new_value,
			category, summary, version, parent_version, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	now := time.Now()
	conn := sqlite.Conn(ctx, r.db)
	for _, e := range entries {
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		var parent interface{}
		if e.ParentVersion != nil {
			parent = *e.ParentVersion
		}

		result, err := conn.ExecContext(ctx, query,
			e.RecordID,
			e.ActorID,
			e.FieldName,
			e.PreviousValue,
			e.NewValue,
			e.Category,
			e.Summary,
			e.Version,
			parent,
			e.CreatedAt.UTC(),
		)
		if err != nil {
			r.logger.Error("Failed to create changelog entry",
				zap.Int64("record_id", e.RecordID),
				zap.String("field", e.FieldName),
				zap.Error(err))
			return fmt.Errorf("failed to create changelog entry: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		e.ID = id
	}
	return nil
}

// ListByRecord returns a record's changelog in chronological order
func (r *ChangelogRepository) ListByRecord(ctx context.Context, recordID int64, filter entity.ChangelogFilter) ([]*entity.ChangelogEntry, error) {
	where := []string{"record_id = ?"}
	args := []interface{}{recordID}

	if filter.FieldName != "" {
		where = append(where, "field_name = ?")
		args = append(args, filter.FieldName)
	}
	if filter.Category != "" {
		where = append(where, "category = ?")
		args = append(args, filter.Category)
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
		SELECT id, record_id, actor_id, field_name, previous_value, new_value,
			category, summary, version, parent_version, created_at
		FROM changelog_entries
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_at, id`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := sqlite.Conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list changelog", zap.Int64("record_id", recordID), zap.Error(err))
		return nil, fmt.Errorf("failed to list changelog: %w", err)
	}
	defer rows.Close()

	var entries []*entity.ChangelogEntry
	for rows.Next() {
		var (
			e      entity.ChangelogEntry
			parent sql.NullInt64
		)
		if err := rows.Scan(
			&e.ID,
			&e.RecordID,
			&e.ActorID,
			&e.FieldName,
			&e.PreviousValue,
			&e.NewValue,
			&e.Category,
			&e.Summary,
			&e.Version,
			&parent,
			&e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan changelog entry: %w", err)
		}
		if parent.Valid {
			v := int(parent.Int64)
			e.ParentVersion = &v
		}
		entries = append(entries, &e)
	}
	return entries, rows.Err()
}

var _ port.ChangelogRepository = (*ChangelogRepository)(nil)
