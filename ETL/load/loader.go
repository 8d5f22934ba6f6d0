package load

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

// ErrLoadInProgress возвращается, если загрузка уже выполняется
var ErrLoadInProgress = errors.New("загрузка данных уже выполняется")

// Extractor читает строки продаж из книг Excel
type Extractor interface {
	Extract(ctx context.Context, paths ...string) ([]models.SalesRecord, error)
}

// SalesStore - хранилище строк продаж
type SalesStore interface {
	ReplaceAll(ctx context.Context, records []models.SalesRecord) error
}

// Loader выполняет стадию загрузки: книги Excel -> таблица продаж.
// Каждый запуск записывается в журнал загрузок.
type Loader struct {
	extractor Extractor
	store     SalesStore
	logRepo   models.LoadLogRepository
	logger    *utils.Logger
	files     []string

	mu sync.Mutex
}

// NewLoader создает новый экземпляр Loader
func NewLoader(extractor Extractor, store SalesStore, logRepo models.LoadLogRepository, logger *utils.Logger, files []string) *Loader {
	return &Loader{
		extractor: extractor,
		store:     store,
		logRepo:   logRepo,
		logger:    logger,
		files:     files,
	}
}

// Load перечитывает настроенные книги и заменяет содержимое таблицы продаж.
// Возвращает количество загруженных строк.
func (l *Loader) Load(ctx context.Context) (int, error) {
	if !l.mu.TryLock() {
		return 0, ErrLoadInProgress
	}
	defer l.mu.Unlock()

	startTime := time.Now()
	l.logger.LogStageStart(models.StageLoad)

	runID, err := l.logRepo.CreateLogEntry(ctx, startTime, strings.Join(l.files, ","))
	if err != nil {
		l.logger.Error("Ошибка при создании записи журнала загрузок: %v", err)
		return 0, fmt.Errorf("ошибка при создании записи журнала загрузок: %w", err)
	}

	records, err := l.run(ctx)
	if err != nil {
		l.logger.Error("Ошибка загрузки данных: %v", err)
		// журнал обновляется и после отмены контекста запроса
		if logErr := l.logRepo.UpdateLogEntryFailure(context.WithoutCancel(ctx), runID, time.Now(), err.Error()); logErr != nil {
			l.logger.Error("Ошибка при обновлении журнала загрузок: %v", logErr)
		}
		return 0, err
	}

	if err := l.logRepo.UpdateLogEntrySuccess(ctx, runID, time.Now(), records); err != nil {
		l.logger.Error("Ошибка при обновлении журнала загрузок: %v", err)
		return records, fmt.Errorf("ошибка при обновлении журнала загрузок: %w", err)
	}

	l.logger.LogStageComplete(models.StageLoad, records, time.Since(startTime))
	return records, nil
}

func (l *Loader) run(ctx context.Context) (int, error) {
	if len(l.files) == 0 {
		return 0, errors.New("не заданы файлы для загрузки")
	}

	l.logger.Info("Чтение книг Excel: %s", strings.Join(l.files, ", "))
	records, err := l.extractor.Extract(ctx, l.files...)
	if err != nil {
		return 0, fmt.Errorf("ошибка при чтении книг Excel: %w", err)
	}

	l.logger.Debug("Запись %d строк в таблицу продаж", len(records))
	if err := l.store.ReplaceAll(ctx, records); err != nil {
		return 0, fmt.Errorf("ошибка при сохранении строк продаж: %w", err)
	}
	return len(records), nil
}

// LastRun возвращает последнюю запись журнала загрузок или nil
func (l *Loader) LastRun(ctx context.Context) (*models.LoadRun, error) {
	return l.logRepo.GetLastRun(ctx)
}
