package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/proposal-review/internal/domain/entity"
	"github.com/garyjia/proposal-review/pkg/database"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	logger := zap.NewNop()
	db, err := database.New(database.Config{Path: filepath.Join(t.TempDir(), "test.db")}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, database.NewMigrator(db, logger).RunMigrations(""))
	return db.DB
}

func createTestRecord(t *testing.T, repo *RecordRepository, hours float64) *entity.Record {
	t.Helper()

	record := &entity.Record{
		Title:          "Website Redesign",
		Client:         "Acme",
		Pricing:        12000,
		AllocatedHours: hours,
		OwnerID:        1,
		CreatedBy:      1,
		UpdatedBy:      1,
	}
	require.NoError(t, repo.Create(context.Background(), record))
	return record
}
