package port

import (
	"context"

	"github.com/garyjia/proposal-review/internal/domain/entity"
)

// RecordFilter narrows a record listing
type RecordFilter struct {
	Status        string
	IncludeHidden bool
	Limit         int
	Offset        int
}

// RecordRepository defines persistence operations for Record.
// Getters return nil, nil when the row does not exist.
type RecordRepository interface {
	Create(ctx context.Context, record *entity.Record) error
	GetByID(ctx context.Context, id int64) (*entity.Record, error)
	List(ctx context.Context, filter RecordFilter) ([]*entity.Record, error)

	// Update writes editable fields and the new version, conditional on the
	// stored version still being expectedVersion (workflow.ErrConflict otherwise)
	Update(ctx context.Context, record *entity.Record, expectedVersion int) error

	UpdateStatus(ctx context.Context, id int64, status string) error
	UpdateAllocation(ctx context.Context, id int64, change entity.AllocationChange) error
	SetHidden(ctx context.Context, id int64, hidden bool) error
}

// ApprovalRepository defines persistence operations for ApprovalRecord
type ApprovalRepository interface {
	Create(ctx context.Context, approval *entity.ApprovalRecord) error
	GetByID(ctx context.Context, id int64) (*entity.ApprovalRecord, error)

	// ListByRecord returns approvals ordered by stage order
	ListByRecord(ctx context.Context, recordID int64) ([]*entity.ApprovalRecord, error)
	CountByRecord(ctx context.Context, recordID int64) (int, error)

	// ApplyDecision moves an approval out of expectedStatus. It returns
	// workflow.ErrConflict when the row is no longer in expectedStatus.
	ApplyDecision(ctx context.Context, id int64, expectedStatus string, decision entity.ApprovalDecision) error
}

// AdjustmentRepository defines persistence operations for AdjustmentRequest
type AdjustmentRepository interface {
	Create(ctx context.Context, req *entity.AdjustmentRequest) error
	GetByID(ctx context.Context, id int64) (*entity.AdjustmentRequest, error)
	ListByRecord(ctx context.Context, recordID int64) ([]*entity.AdjustmentRequest, error)
	ExistsForRecord(ctx context.Context, recordID int64) (bool, error)

	// Update persists decision fields conditional on the stored status
	// being expectedStatus (workflow.ErrConflict otherwise)
	Update(ctx context.Context, req *entity.AdjustmentRequest, expectedStatus string) error
	Delete(ctx context.Context, id int64) error
}

// AuditRepository defines persistence operations for AuditLogEntry
type AuditRepository interface {
	Create(ctx context.Context, entry *entity.AuditLogEntry) error
	ListByRecord(ctx context.Context, recordID int64, filter entity.AuditFilter) ([]*entity.AuditLogEntry, error)
}

// ChangelogRepository defines persistence operations for ChangelogEntry
type ChangelogRepository interface {
	CreateBatch(ctx context.Context, entries []*entity.ChangelogEntry) error
	ListByRecord(ctx context.Context, recordID int64, filter entity.ChangelogFilter) ([]*entity.ChangelogEntry, error)
}

// Directory resolves actors
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*entity.User, error)
	GetByID(ctx context.Context, id int64) (*entity.User, error)
	ListByRole(ctx context.Context, role string) ([]*entity.User, error)
}

// UserRepository is the directory plus provisioning
type UserRepository interface {
	Directory
	Create(ctx context.Context, user *entity.User) error
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
