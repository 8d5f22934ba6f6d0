package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// createdLayout имеет фиксированную ширину, чтобы строки сравнивались как время
const createdLayout = "2006-01-02T15:04:05.000000000Z07:00"

// ForecastRepository хранит историю прогнозов
type ForecastRepository struct {
	db     *sql.DB
	driver string
}

// NewForecastRepository создает новый репозиторий прогнозов
func NewForecastRepository(db *sql.DB, driver string) *ForecastRepository {
	return &ForecastRepository{
		db:     db,
		driver: driver,
	}
}

// EnsureTableExists проверяет наличие таблицы и создает ее при необходимости
func (r *ForecastRepository) EnsureTableExists(ctx context.Context) error {
	idColumn := "id INT AUTO_INCREMENT PRIMARY KEY"
	if r.driver == "sqlite" {
		idColumn = "id INTEGER PRIMARY KEY AUTOINCREMENT"
	}

	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS forecast_runs (
		`+idColumn+`,
		material_name VARCHAR(255) NOT NULL,
		method VARCHAR(32) NOT NULL,
		forecast_date VARCHAR(10) NOT NULL,
		shelved DOUBLE NOT NULL,
		expired DOUBLE NOT NULL,
		net DOUBLE NOT NULL,
		image_url VARCHAR(255),
		created_at VARCHAR(40) NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ошибка при создании таблицы forecast_runs: %w", err)
	}
	return nil
}

// SaveForecast сохраняет все точки прогноза в одной транзакции
func (r *ForecastRepository) SaveForecast(ctx context.Context, materialName string, result models.ForecastResult, createdAt time.Time) error {
	if len(result.ForecastedNet) != len(result.ForecastedShelved) || len(result.ForecastedNet) != len(result.ForecastedExpired) {
		return fmt.Errorf("несогласованная длина рядов прогноза")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO forecast_runs
		(material_name, method, forecast_date, shelved, expired, net, image_url, created_at)
	VALUES
		(?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("не удалось подготовить запрос: %w", err)
	}
	defer stmt.Close()

	created := createdAt.UTC().Format(createdLayout)
	for i, net := range result.ForecastedNet {
		_, err := stmt.ExecContext(ctx,
			materialName,
			result.Method,
			net.Date.String(),
			result.ForecastedShelved[i].Value,
			result.ForecastedExpired[i].Value,
			net.Value,
			result.ImageURL,
			created,
		)
		if err != nil {
			return fmt.Errorf("не удалось выполнить запрос: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}
	return nil
}

// GetForecasts получает сохраненные прогнозы материала, новые первыми
func (r *ForecastRepository) GetForecasts(ctx context.Context, materialName string, limit int) ([]models.ForecastRun, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
	SELECT id, material_name, method, forecast_date, shelved, expired, net, COALESCE(image_url, ''), created_at
	FROM forecast_runs
	WHERE material_name = ?
	ORDER BY created_at DESC, forecast_date ASC
	LIMIT ?`, materialName, limit)
	if err != nil {
		return nil, fmt.Errorf("ошибка при выполнении запроса: %w", err)
	}
	defer rows.Close()

	runs := make([]models.ForecastRun, 0)
	for rows.Next() {
		var (
			run           models.ForecastRun
			date, created string
		)
		if err := rows.Scan(&run.ID, &run.MaterialName, &run.Method, &date,
			&run.Shelved, &run.Expired, &run.Net, &run.ImageURL, &created); err != nil {
			return nil, fmt.Errorf("ошибка при чтении данных: %w", err)
		}
		day, err := time.Parse(models.DayLayout, date)
		if err != nil {
			return nil, fmt.Errorf("неверная дата прогноза %q: %w", date, err)
		}
		run.ForecastDate = models.NewDay(day)
		if run.CreatedAt, err = time.Parse(createdLayout, created); err != nil {
			return nil, fmt.Errorf("неверное время создания прогноза %q: %w", created, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по результатам: %w", err)
	}
	return runs, nil
}

// DeleteOldForecasts удаляет прогнозы, созданные раньше olderThan
func (r *ForecastRepository) DeleteOldForecasts(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, "DELETE FROM forecast_runs WHERE created_at < ?",
		olderThan.UTC().Format(createdLayout))
	if err != nil {
		return 0, fmt.Errorf("ошибка при удалении устаревших прогнозов: %w", err)
	}
	return res.RowsAffected()
}
