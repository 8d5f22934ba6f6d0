package models

import (
	"context"
	"time"
)

// Статусы запуска загрузки
const (
	StatusInProgress = "in_progress"
	StatusSuccess    = "success"
	StatusFailed     = "failed"
)

// LoadRun представляет запись о запуске загрузки данных
type LoadRun struct {
	ID                   int       `json:"id"`
	StartTime            time.Time `json:"start_time"`
	EndTime              time.Time `json:"end_time"`
	Status               string    `json:"status"` // "success", "failed", "in_progress"
	Files                string    `json:"files"`
	RecordsLoaded        int       `json:"records_loaded"`
	ErrorMessage         string    `json:"error_message,omitempty"`
	ExecutionTimeSeconds float64   `json:"execution_time_seconds"`
}

// LoadLogRepository представляет репозиторий журнала загрузок
type LoadLogRepository interface {
	// EnsureTable создает таблицу журнала, если она еще не существует
	EnsureTable(ctx context.Context) error

	// CreateLogEntry создает новую запись о запуске загрузки
	CreateLogEntry(ctx context.Context, startTime time.Time, files string) (int, error)

	// UpdateLogEntrySuccess обновляет запись при успешном завершении
	UpdateLogEntrySuccess(ctx context.Context, id int, endTime time.Time, recordsLoaded int) error

	// UpdateLogEntryFailure обновляет запись при неудачном завершении
	UpdateLogEntryFailure(ctx context.Context, id int, endTime time.Time, errorMessage string) error

	// GetLastRun получает последнюю запись журнала
	GetLastRun(ctx context.Context) (*LoadRun, error)
}
