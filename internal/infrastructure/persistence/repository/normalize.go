package repository

import (
	"database/sql"
	"strings"
	"time"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

// Rows written by older clients carry free-form status spellings. They are
// mapped to canonical values here so nothing above the store sees them.

var approvalStatusAliases = map[string]string{
	"pending":  entity.ApprovalStatusPending,
	"":         entity.ApprovalStatusPending,
	"approved": entity.ApprovalStatusApproved,
	"approve":  entity.ApprovalStatusApproved,
	"rejected": entity.ApprovalStatusRejected,
	"reject":   entity.ApprovalStatusRejected,
	"skipped":  entity.ApprovalStatusSkipped,
	"skip":     entity.ApprovalStatusSkipped,
}

var recordStatusAliases = map[string]string{
	"draft":     entity.RecordStatusDraft,
	"":          entity.RecordStatusDraft,
	"in_review": entity.RecordStatusInReview,
	"in review": entity.RecordStatusInReview,
	"in-review": entity.RecordStatusInReview,
	"inreview":  entity.RecordStatusInReview,
	"approved":  entity.RecordStatusApproved,
	"rejected":  entity.RecordStatusRejected,
}

var adjustmentStatusAliases = map[string]string{
	"pending":  entity.AdjustmentStatusPending,
	"":         entity.AdjustmentStatusPending,
	"approved": entity.AdjustmentStatusApproved,
	"approve":  entity.AdjustmentStatusApproved,
	"rejected": entity.AdjustmentStatusRejected,
	"reject":   entity.AdjustmentStatusRejected,
}

func canonical(aliases map[string]string, raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	if v, ok := aliases[key]; ok {
		return v
	}
	return key
}

// NormalizeApprovalStatus maps legacy approval status spellings to canonical values
func NormalizeApprovalStatus(raw string) string {
	return canonical(approvalStatusAliases, raw)
}

// NormalizeRecordStatus maps legacy record status spellings to canonical values
func NormalizeRecordStatus(raw string) string {
	return canonical(recordStatusAliases, raw)
}

// NormalizeAdjustmentStatus maps legacy request status spellings to canonical values
func NormalizeAdjustmentStatus(raw string) string {
	return canonical(adjustmentStatusAliases, raw)
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func int64Ptr(n sql.NullInt64) *int64 {
	if !n.Valid {
		return nil
	}
	v := n.Int64
	return &v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func nullInt64(n *int64) interface{} {
	if n == nil {
		return nil
	}
	return *n
}
