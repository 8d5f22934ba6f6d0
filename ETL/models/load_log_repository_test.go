package models

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func newSQLiteRepo(t *testing.T) *SQLLoadLogRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := NewSQLLoadLogRepository(db, "sqlite")
	require.NoError(t, repo.EnsureTable(context.Background()))
	return repo
}

func TestLoadLog_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	last, err := repo.GetLastRun(ctx)
	require.NoError(t, err)
	assert.Nil(t, last)

	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	id, err := repo.CreateLogEntry(ctx, start, "a.xlsx")
	require.NoError(t, err)

	last, err = repo.GetLastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, StatusInProgress, last.Status)
	assert.True(t, last.EndTime.IsZero())

	require.NoError(t, repo.UpdateLogEntrySuccess(ctx, id, start.Add(90*time.Second), 42))

	last, err = repo.GetLastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, last.Status)
	assert.Equal(t, 42, last.RecordsLoaded)
	assert.Equal(t, "a.xlsx", last.Files)
	assert.InDelta(t, 90.0, last.ExecutionTimeSeconds, 1e-6)
	assert.True(t, last.StartTime.Equal(start))
}

func TestLoadLog_Failure(t *testing.T) {
	ctx := context.Background()
	repo := newSQLiteRepo(t)

	start := time.Now()
	id, err := repo.CreateLogEntry(ctx, start, "b.xlsx")
	require.NoError(t, err)
	require.NoError(t, repo.UpdateLogEntryFailure(ctx, id, start.Add(time.Second), "нет файла"))

	last, err := repo.GetLastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, last.Status)
	assert.Equal(t, "нет файла", last.ErrorMessage)
}

func TestLoadLog_MySQLErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := NewSQLLoadLogRepository(db, "mysql")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS load_run_log").WillReturnError(errors.New("denied"))
	assert.Error(t, repo.EnsureTable(context.Background()))

	mock.ExpectExec("INSERT INTO load_run_log").WillReturnResult(sqlmock.NewResult(7, 1))
	id, err := repo.CreateLogEntry(context.Background(), time.Now(), "x.xlsx")
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	mock.ExpectQuery("SELECT start_time FROM load_run_log").WithArgs(7).WillReturnError(sql.ErrConnDone)
	assert.Error(t, repo.UpdateLogEntrySuccess(context.Background(), 7, time.Now(), 1))

	require.NoError(t, mock.ExpectationsWereMet())
}
