package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"path"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/entity"
)

const (
	auditSheet     = "Audit Trail"
	changelogSheet = "Changelog"
)

var (
	auditColumns = []string{
		"timestamp", "action", "actor_id", "approval_id", "request_id",
		"previous_status", "new_status", "comment", "correlation_id", "metadata",
	}
	changelogColumns = []string{
		"timestamp", "field", "previous_value", "new_value", "category",
		"summary", "version", "parent_version", "actor_id",
	}
)

// ArchiveResult lists the files written by ArchiveExports
type ArchiveResult struct {
	Files []string `json:"files"`
}

// ExportService renders a record's audit trail and changelog as files
type ExportService interface {
	ExportAuditTrailCSV(ctx context.Context, recordID int64) ([]byte, error)
	ExportAuditTrailXLSX(ctx context.Context, recordID int64) ([]byte, error)
	ExportChangelogCSV(ctx context.Context, recordID int64) ([]byte, error)
	ExportChangelogXLSX(ctx context.Context, recordID int64) ([]byte, error)
	// ArchiveExports writes every export of the record under record-<id>/
	ArchiveExports(ctx context.Context, recordID int64) (*ArchiveResult, error)
}

type exportServiceImpl struct {
	audit     AuditService
	changelog ChangelogService
	storage   port.FileStorage
	logger    Logger
}

// NewExportService creates a new ExportService. storage may be nil when
// archiving is not configured.
func NewExportService(audit AuditService, changelog ChangelogService, storage port.FileStorage, logger Logger) ExportService {
	return &exportServiceImpl{
		audit:     audit,
		changelog: changelog,
		storage:   storage,
		logger:    logger,
	}
}

func (s *exportServiceImpl) ExportAuditTrailCSV(ctx context.Context, recordID int64) ([]byte, error) {
	rows, err := s.auditRows(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return writeCSV(auditColumns, rows)
}

func (s *exportServiceImpl) ExportAuditTrailXLSX(ctx context.Context, recordID int64) ([]byte, error) {
	rows, err := s.auditRows(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return writeXLSX(auditSheet, auditColumns, rows)
}

func (s *exportServiceImpl) ExportChangelogCSV(ctx context.Context, recordID int64) ([]byte, error) {
	rows, err := s.changelogRows(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return writeCSV(changelogColumns, rows)
}

func (s *exportServiceImpl) ExportChangelogXLSX(ctx context.Context, recordID int64) ([]byte, error) {
	rows, err := s.changelogRows(ctx, recordID)
	if err != nil {
		return nil, err
	}
	return writeXLSX(changelogSheet, changelogColumns, rows)
}

func (s *exportServiceImpl) ArchiveExports(ctx context.Context, recordID int64) (*ArchiveResult, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("export storage is not configured")
	}

	exports := []struct {
		name   string
		render func(context.Context, int64) ([]byte, error)
	}{
		{"audit_trail.csv", s.ExportAuditTrailCSV},
		{"audit_trail.xlsx", s.ExportAuditTrailXLSX},
		{"changelog.csv", s.ExportChangelogCSV},
		{"changelog.xlsx", s.ExportChangelogXLSX},
	}

	dir := fmt.Sprintf("record-%d", recordID)
	result := &ArchiveResult{}
	for _, e := range exports {
		content, err := e.render(ctx, recordID)
		if err != nil {
			return nil, err
		}
		p := path.Join(dir, e.name)
		if err := s.storage.Save(ctx, p, content); err != nil {
			s.logger.Error("Failed to archive export", "error", err, "record_id", recordID, "file", p)
			return nil, fmt.Errorf("failed to archive %s: %w", e.name, err)
		}
		result.Files = append(result.Files, s.storage.GetFullPath(p))
	}

	s.logger.Info("Exports archived", "record_id", recordID, "files", len(result.Files))
	return result, nil
}

func (s *exportServiceImpl) auditRows(ctx context.Context, recordID int64) ([][]string, error) {
	entries, err := s.audit.GetAuditTrail(ctx, recordID, entity.AuditFilter{})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		metadata := ""
		if len(e.Metadata) > 0 {
			b, err := json.Marshal(e.Metadata)
			if err != nil {
				return nil, fmt.Errorf("failed to encode metadata of audit entry %d: %w", e.ID, err)
			}
			metadata = string(b)
		}
		rows = append(rows, []string{
			formatTime(e.CreatedAt),
			string(e.Action),
			strconv.FormatInt(e.ActorID, 10),
			formatOptionalID(e.ApprovalID),
			formatOptionalID(e.RequestID),
			e.PreviousStatus,
			e.NewStatus,
			e.Comment,
			e.CorrelationID,
			metadata,
		})
	}
	return rows, nil
}

func (s *exportServiceImpl) changelogRows(ctx context.Context, recordID int64) ([][]string, error) {
	entries, err := s.changelog.GetChangelog(ctx, recordID, entity.ChangelogFilter{})
	if err != nil {
		return nil, err
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		parent := ""
		if e.ParentVersion != nil {
			parent = strconv.Itoa(*e.ParentVersion)
		}
		rows = append(rows, []string{
			formatTime(e.CreatedAt),
			e.FieldName,
			e.PreviousValue,
			e.NewValue,
			e.Category,
			e.Summary,
			strconv.Itoa(e.Version),
			parent,
			strconv.FormatInt(e.ActorID, 10),
		})
	}
	return rows, nil
}

func writeCSV(header []string, rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("failed to write csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

func writeXLSX(sheet string, header []string, rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), sheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	if err := setRow(f, sheet, 1, header); err != nil {
		return nil, err
	}
	for i, row := range rows {
		if err := setRow(f, sheet, i+2, row); err != nil {
			return nil, err
		}
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve column: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", last, 20); err != nil {
		return nil, fmt.Errorf("failed to set column width: %w", err)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return fmt.Errorf("failed to resolve cell: %w", err)
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
		return fmt.Errorf("failed to write row %d: %w", row, err)
	}
	return nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatOptionalID(id *int64) string {
	if id == nil {
		return ""
	}
	return strconv.FormatInt(*id, 10)
}
