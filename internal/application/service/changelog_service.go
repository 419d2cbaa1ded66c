package service

import (
	"context"
	"time"

	"github.com/garyjia/proposal-review/internal/application/port"
	"github.com/garyjia/proposal-review/internal/domain/changelog"
	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/internal/domain/workflow"
)

// ChangelogService records field-level history of records
type ChangelogService interface {
	// LogFieldChanges diffs two snapshots and writes every change in one batch
	LogFieldChanges(ctx context.Context, recordID int64, previous, current entity.Snapshot, actorID int64) ([]*entity.ChangelogEntry, error)
	LogVersionCreated(ctx context.Context, recordID, actorID int64, version int, parentVersion *int) error
	GetChangelog(ctx context.Context, recordID int64, filter entity.ChangelogFilter) ([]*entity.ChangelogEntry, error)
}

type changelogServiceImpl struct {
	changelogRepo port.ChangelogRepository
	txManager     port.TransactionManager
	logger        Logger
}

// NewChangelogService creates a new ChangelogService
func NewChangelogService(changelogRepo port.ChangelogRepository, txManager port.TransactionManager, logger Logger) ChangelogService {
	return &changelogServiceImpl{
		changelogRepo: changelogRepo,
		txManager:     txManager,
		logger:        logger,
	}
}

func (s *changelogServiceImpl) LogFieldChanges(ctx context.Context, recordID int64, previous, current entity.Snapshot, actorID int64) ([]*entity.ChangelogEntry, error) {
	changes := changelog.Diff(previous, current)
	if len(changes) == 0 {
		return nil, nil
	}

	version := snapshotVersion(current)
	var parent *int
	if pv := snapshotVersion(previous); pv > 0 && pv != version {
		parent = &pv
	}

	now := time.Now()
	entries := make([]*entity.ChangelogEntry, 0, len(changes))
	for _, c := range changes {
		entries = append(entries, &entity.ChangelogEntry{
			RecordID:      recordID,
			ActorID:       actorID,
			FieldName:     c.Field,
			PreviousValue: c.Previous,
			NewValue:      c.Current,
			Category:      c.Category,
			Summary:       c.Summary,
			Version:       version,
			ParentVersion: parent,
			CreatedAt:     now,
		})
	}

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		return s.changelogRepo.CreateBatch(txCtx, entries)
	})
	if err != nil {
		s.logger.Error("Failed to write changelog", "error", err, "record_id", recordID, "changes", len(entries))
		return nil, workflow.WrapStore("write changelog", err)
	}

	s.logger.Info("Changelog written", "record_id", recordID, "version", version, "changes", len(entries))
	return entries, nil
}

func (s *changelogServiceImpl) LogVersionCreated(ctx context.Context, recordID, actorID int64, version int, parentVersion *int) error {
	summary := "Version created"
	if parentVersion != nil {
		summary = "Version created from version " + changelog.Stringify(*parentVersion)
	}

	entry := &entity.ChangelogEntry{
		RecordID:      recordID,
		ActorID:       actorID,
		FieldName:     "version",
		NewValue:      changelog.Stringify(version),
		Category:      entity.ChangeVersionCreate,
		Summary:       summary,
		Version:       version,
		ParentVersion: parentVersion,
		CreatedAt:     time.Now(),
	}
	if parentVersion != nil {
		entry.PreviousValue = changelog.Stringify(*parentVersion)
	}

	if err := s.changelogRepo.CreateBatch(ctx, []*entity.ChangelogEntry{entry}); err != nil {
		s.logger.Error("Failed to write version entry", "error", err, "record_id", recordID, "version", version)
		return workflow.WrapStore("write changelog", err)
	}
	return nil
}

func (s *changelogServiceImpl) GetChangelog(ctx context.Context, recordID int64, filter entity.ChangelogFilter) ([]*entity.ChangelogEntry, error) {
	entries, err := s.changelogRepo.ListByRecord(ctx, recordID, filter)
	if err != nil {
		s.logger.Error("Failed to read changelog", "error", err, "record_id", recordID)
		return nil, workflow.WrapStore("list changelog", err)
	}
	return entries, nil
}

func snapshotVersion(s entity.Snapshot) int {
	switch v := s["version"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return 0
}
