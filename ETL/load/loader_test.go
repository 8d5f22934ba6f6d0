package load

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

type fakeExtractor struct {
	records []models.SalesRecord
	err     error
	entered chan struct{}
	block   chan struct{}
	paths   []string
}

func (f *fakeExtractor) Extract(ctx context.Context, paths ...string) ([]models.SalesRecord, error) {
	f.paths = paths
	if f.entered != nil {
		close(f.entered)
	}
	if f.block != nil {
		<-f.block
	}
	return f.records, f.err
}

type fakeStore struct {
	mu      sync.Mutex
	records []models.SalesRecord
	err     error
}

func (s *fakeStore) ReplaceAll(ctx context.Context, records []models.SalesRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.records = records
	return nil
}

func newLogRepo(t *testing.T) *models.SQLLoadLogRepository {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	repo := models.NewSQLLoadLogRepository(db, "sqlite")
	require.NoError(t, repo.EnsureTable(context.Background()))
	return repo
}

func TestLoader_Success(t *testing.T) {
	ctx := context.Background()
	extractor := &fakeExtractor{records: []models.SalesRecord{{MaterialName: "A"}, {MaterialName: "B"}}}
	store := &fakeStore{}
	repo := newLogRepo(t)
	loader := NewLoader(extractor, store, repo, utils.NewNopLogger(), []string{"a.xlsx", "b.xlsx"})

	n, err := loader.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"a.xlsx", "b.xlsx"}, extractor.paths)
	assert.Len(t, store.records, 2)

	run, err := loader.LastRun(ctx)
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.Equal(t, 2, run.RecordsLoaded)
	assert.Equal(t, "a.xlsx,b.xlsx", run.Files)
}

func TestLoader_ExtractFailure(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{}
	loader := NewLoader(&fakeExtractor{err: errors.New("файл поврежден")}, store, newLogRepo(t), utils.NewNopLogger(), []string{"a.xlsx"})

	_, err := loader.Load(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "файл поврежден")
	assert.Nil(t, store.records)

	run, err := loader.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "файл поврежден")
}

func TestLoader_StoreFailure(t *testing.T) {
	loader := NewLoader(&fakeExtractor{}, &fakeStore{err: errors.New("нет соединения")}, newLogRepo(t), utils.NewNopLogger(), []string{"a.xlsx"})

	_, err := loader.Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "нет соединения")
}

func TestLoader_NoFiles(t *testing.T) {
	loader := NewLoader(&fakeExtractor{}, &fakeStore{}, newLogRepo(t), utils.NewNopLogger(), nil)
	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}

func TestLoader_RejectsConcurrentLoad(t *testing.T) {
	extractor := &fakeExtractor{entered: make(chan struct{}), block: make(chan struct{})}
	loader := NewLoader(extractor, &fakeStore{}, newLogRepo(t), utils.NewNopLogger(), []string{"a.xlsx"})

	done := make(chan error, 1)
	go func() {
		_, err := loader.Load(context.Background())
		done <- err
	}()

	<-extractor.entered
	_, err := loader.Load(context.Background())
	assert.True(t, errors.Is(err, ErrLoadInProgress))

	close(extractor.block)
	require.NoError(t, <-done)
}

func TestLoadManager_RunsImmediately(t *testing.T) {
	loader := NewLoader(&fakeExtractor{records: []models.SalesRecord{{}}}, &fakeStore{}, newLogRepo(t), utils.NewNopLogger(), []string{"a.xlsx"})

	loaded := make(chan int, 1)
	manager := NewLoadManager(loader, utils.NewNopLogger(), time.Hour, func(records int, err error) {
		if err == nil {
			loaded <- records
		}
	})
	require.NoError(t, manager.Start(context.Background()))
	defer manager.Stop()

	select {
	case n := <-loaded:
		assert.Equal(t, 1, n)
	case <-time.After(5 * time.Second):
		t.Fatal("запланированная загрузка не выполнилась")
	}

	assert.Error(t, manager.Start(context.Background()))
}

func TestLoadManager_InvalidInterval(t *testing.T) {
	manager := NewLoadManager(nil, utils.NewNopLogger(), 0, nil)
	assert.Error(t, manager.Start(context.Background()))
}
