package models

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLLoadLogRepository реализация LoadLogRepository для MySQL и SQLite
type SQLLoadLogRepository struct {
	db     *sql.DB
	driver string
}

// NewSQLLoadLogRepository создает новый экземпляр SQLLoadLogRepository
func NewSQLLoadLogRepository(db *sql.DB, driver string) *SQLLoadLogRepository {
	return &SQLLoadLogRepository{
		db:     db,
		driver: driver,
	}
}

// EnsureTable создает таблицу журнала загрузок, если она не существует
func (r *SQLLoadLogRepository) EnsureTable(ctx context.Context) error {
	idColumn := "id INT AUTO_INCREMENT PRIMARY KEY"
	if r.driver == "sqlite" {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	query := `
	CREATE TABLE IF NOT EXISTS load_run_log (
		` + idColumn + `,
		start_time VARCHAR(40) NOT NULL,
		end_time VARCHAR(40) NULL,
		status VARCHAR(16) NOT NULL DEFAULT 'in_progress',
		files TEXT,
		records_loaded INT DEFAULT 0,
		error_message TEXT,
		execution_time_seconds DOUBLE DEFAULT 0
	)`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ошибка при создании таблицы load_run_log: %w", err)
	}
	return nil
}

// CreateLogEntry создает новую запись о запуске загрузки
func (r *SQLLoadLogRepository) CreateLogEntry(ctx context.Context, startTime time.Time, files string) (int, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO load_run_log (start_time, status, files) VALUES (?, ?, ?)`,
		startTime.UTC().Format(timeLayout), StatusInProgress, files)
	if err != nil {
		return 0, fmt.Errorf("ошибка при создании записи о запуске загрузки: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении ID созданной записи: %w", err)
	}
	return int(id), nil
}

// UpdateLogEntrySuccess обновляет запись при успешном завершении
func (r *SQLLoadLogRepository) UpdateLogEntrySuccess(ctx context.Context, id int, endTime time.Time, recordsLoaded int) error {
	executionTime, err := r.executionTime(ctx, id, endTime)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
	UPDATE load_run_log
	SET end_time = ?, status = ?, records_loaded = ?, execution_time_seconds = ?
	WHERE id = ?`,
		endTime.UTC().Format(timeLayout), StatusSuccess, recordsLoaded, executionTime, id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске загрузки: %w", err)
	}
	return nil
}

// UpdateLogEntryFailure обновляет запись при неудачном завершении
func (r *SQLLoadLogRepository) UpdateLogEntryFailure(ctx context.Context, id int, endTime time.Time, errorMessage string) error {
	executionTime, err := r.executionTime(ctx, id, endTime)
	if err != nil {
		return err
	}

	_, err = r.db.ExecContext(ctx, `
	UPDATE load_run_log
	SET end_time = ?, status = ?, error_message = ?, execution_time_seconds = ?
	WHERE id = ?`,
		endTime.UTC().Format(timeLayout), StatusFailed, errorMessage, executionTime, id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении записи о запуске загрузки: %w", err)
	}
	return nil
}

// executionTime рассчитывает время выполнения в секундах
func (r *SQLLoadLogRepository) executionTime(ctx context.Context, id int, endTime time.Time) (float64, error) {
	var start string
	err := r.db.QueryRowContext(ctx, "SELECT start_time FROM load_run_log WHERE id = ?", id).Scan(&start)
	if err != nil {
		return 0, fmt.Errorf("ошибка при получении времени начала загрузки: %w", err)
	}
	startTime, err := time.Parse(timeLayout, start)
	if err != nil {
		return 0, fmt.Errorf("неверное время начала загрузки %q: %w", start, err)
	}
	return endTime.Sub(startTime).Seconds(), nil
}

// GetLastRun получает последнюю запись журнала. Возвращает nil, если записей нет.
func (r *SQLLoadLogRepository) GetLastRun(ctx context.Context) (*LoadRun, error) {
	query := `
	SELECT
		id, start_time, COALESCE(end_time, ''), status, COALESCE(files, ''),
		COALESCE(records_loaded, 0), COALESCE(error_message, ''), COALESCE(execution_time_seconds, 0)
	FROM load_run_log
	ORDER BY id DESC
	LIMIT 1`

	var (
		run        LoadRun
		start, end string
	)
	err := r.db.QueryRowContext(ctx, query).Scan(
		&run.ID, &start, &end, &run.Status, &run.Files,
		&run.RecordsLoaded, &run.ErrorMessage, &run.ExecutionTimeSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Нет запусков
		}
		return nil, fmt.Errorf("ошибка при получении последнего запуска загрузки: %w", err)
	}

	if run.StartTime, err = time.Parse(timeLayout, start); err != nil {
		return nil, fmt.Errorf("неверное время начала загрузки %q: %w", start, err)
	}
	if end != "" {
		if run.EndTime, err = time.Parse(timeLayout, end); err != nil {
			return nil, fmt.Errorf("неверное время окончания загрузки %q: %w", end, err)
		}
	}
	return &run, nil
}
