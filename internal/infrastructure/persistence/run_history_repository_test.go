package persistence

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/persistence/models"
)

func setupRunHistoryTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(&models.RunHistoryModel{})
	require.NoError(t, err)

	return db
}

func newRun(t *testing.T, runID string, module migration.EntityKind) *migration.RunHistory {
	t.Helper()
	h, err := migration.NewRunHistory(runID, module)
	require.NoError(t, err)
	return h
}

func TestRunHistoryRepository_SaveAndFind(t *testing.T) {
	repo := NewGormRunHistoryRepository(setupRunHistoryTestDB(t))
	ctx := context.Background()

	h := newRun(t, "run-1", migration.EntityLabels)
	require.NoError(t, repo.Save(ctx, h))

	require.NoError(t, h.StartProcessing(5))
	require.NoError(t, h.Complete(migration.RunCounts{Success: 3, Skipped: 1, Failed: 1}))
	require.NoError(t, repo.Save(ctx, h))

	found, err := repo.FindByID(ctx, h.ID)
	require.NoError(t, err)
	assert.Equal(t, h.ID, found.ID)
	assert.Equal(t, migration.RunStatusCompleted, found.Status)
	assert.Equal(t, 5, found.TotalItems)
	assert.Equal(t, 3, found.SuccessItems)
	assert.Equal(t, 1, found.SkippedItems)
	assert.Equal(t, 1, found.FailedItems)
	assert.Equal(t, h.Version, found.Version)
	require.NotNil(t, found.CompletedAt)

	_, err = repo.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, migration.ErrRunNotFound)
}

func TestRunHistoryRepository_FindAll(t *testing.T) {
	repo := NewGormRunHistoryRepository(setupRunHistoryTestDB(t))
	ctx := context.Background()

	base := time.Now().Add(-time.Hour)
	for i, tc := range []struct {
		run    string
		module migration.EntityKind
		fail   bool
	}{
		{"run-1", migration.EntityEnvironments, false},
		{"run-1", migration.EntityLabels, true},
		{"run-2", migration.EntityEnvironments, false},
	} {
		h := newRun(t, tc.run, tc.module)
		h.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, h.StartProcessing(1))
		if tc.fail {
			require.NoError(t, h.Fail(migration.RunCounts{}, "export unreadable"))
		} else {
			require.NoError(t, h.Complete(migration.RunCounts{Success: 1}))
		}
		require.NoError(t, repo.Save(ctx, h))
	}

	t.Run("all, newest first", func(t *testing.T) {
		res, err := repo.FindAll(ctx, migration.RunHistoryFilter{}, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.TotalCount)
		require.Len(t, res.Items, 3)
		assert.Equal(t, "run-2", res.Items[0].RunID)
	})

	t.Run("by run", func(t *testing.T) {
		res, err := repo.FindAll(ctx, migration.RunHistoryFilter{RunID: "run-1"}, 1, 10)
		require.NoError(t, err)
		assert.Equal(t, int64(2), res.TotalCount)
	})

	t.Run("by module and status", func(t *testing.T) {
		module := migration.EntityLabels
		status := migration.RunStatusFailed
		res, err := repo.FindAll(ctx, migration.RunHistoryFilter{Module: &module, Status: &status}, 1, 10)
		require.NoError(t, err)
		require.Len(t, res.Items, 1)
		assert.Equal(t, "export unreadable", res.Items[0].ErrorMessage)
	})

	t.Run("pagination", func(t *testing.T) {
		res, err := repo.FindAll(ctx, migration.RunHistoryFilter{}, 2, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), res.TotalCount)
		require.Len(t, res.Items, 1)
		assert.Equal(t, migration.EntityEnvironments, res.Items[0].Module)
		assert.Equal(t, "run-1", res.Items[0].RunID)
	})

	t.Run("latest per module", func(t *testing.T) {
		latest, err := repo.FindLatest(ctx, migration.EntityEnvironments)
		require.NoError(t, err)
		assert.Equal(t, "run-2", latest.RunID)

		_, err = repo.FindLatest(ctx, migration.EntityWorkflows)
		assert.ErrorIs(t, err, migration.ErrRunNotFound)
	})
}

// newMockRunHistoryRepository creates a repository on the postgres dialect with a mocked SQL connection
func newMockRunHistoryRepository(t *testing.T) (*GormRunHistoryRepository, sqlmock.Sqlmock, *sql.DB) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	dialector := postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormRunHistoryRepository(gormDB), mock, mockDB
}

func TestRunHistoryRepository_Postgres(t *testing.T) {
	t.Run("find by id", func(t *testing.T) {
		repo, mock, mockDB := newMockRunHistoryRepository(t)
		defer mockDB.Close()

		id := uuid.New()
		rows := sqlmock.NewRows([]string{"id", "run_id", "module", "status", "total_items", "success_items"}).
			AddRow(id, "run-9", "webhooks", "completed", 4, 4)

		mock.ExpectQuery(`SELECT \* FROM "run_histories" WHERE id = \$1 ORDER BY .* LIMIT .*`).
			WithArgs(id, 1).
			WillReturnRows(rows)

		h, err := repo.FindByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, "run-9", h.RunID)
		assert.Equal(t, migration.EntityWebhooks, h.Module)
		assert.Equal(t, 4, h.SuccessItems)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("latest not found", func(t *testing.T) {
		repo, mock, mockDB := newMockRunHistoryRepository(t)
		defer mockDB.Close()

		mock.ExpectQuery(`SELECT \* FROM "run_histories" WHERE module = \$1 ORDER BY created_at DESC.* LIMIT .*`).
			WithArgs("labels", 1).
			WillReturnError(gorm.ErrRecordNotFound)

		_, err := repo.FindLatest(context.Background(), migration.EntityLabels)
		assert.ErrorIs(t, err, migration.ErrRunNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
