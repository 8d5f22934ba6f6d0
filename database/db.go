// database/db.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// DefaultBatchSize - размер пакета вставки по умолчанию
const DefaultBatchSize = 1000

const salesColumns = `seq, material, material_name, base_unit, billing_document_type,
	billing_date, net_sales, plant, quantity, region, sold_to_party`

// SalesRepository хранит строки продаж в MySQL или SQLite
type SalesRepository struct {
	db        *sql.DB
	batchSize int
}

// NewSalesRepository создает новый репозиторий продаж
func NewSalesRepository(db *sql.DB, batchSize int) *SalesRepository {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &SalesRepository{
		db:        db,
		batchSize: batchSize,
	}
}

// EnsureSchema создает таблицу продаж, если она не существует
func (r *SalesRepository) EnsureSchema(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS sales (
		seq INT NOT NULL,
		material VARCHAR(64),
		material_name VARCHAR(255) NOT NULL,
		base_unit VARCHAR(32),
		billing_document_type VARCHAR(32),
		billing_date VARCHAR(10) NOT NULL,
		net_sales DOUBLE,
		plant VARCHAR(32),
		quantity DOUBLE NOT NULL,
		region VARCHAR(64),
		sold_to_party BIGINT NOT NULL
	)`)
	if err != nil {
		return fmt.Errorf("ошибка при создании таблицы sales: %w", err)
	}
	return nil
}

// ReplaceAll заменяет содержимое таблицы продаж одной транзакцией.
// Строки вставляются пакетами по batchSize.
func (r *SalesRepository) ReplaceAll(ctx context.Context, records []models.SalesRecord) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("не удалось начать транзакцию: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM sales"); err != nil {
		return fmt.Errorf("ошибка при очистке таблицы sales: %w", err)
	}

	for start := 0; start < len(records); start += r.batchSize {
		end := start + r.batchSize
		if end > len(records) {
			end = len(records)
		}
		if err := insertBatch(ctx, tx, records[start:end]); err != nil {
			return fmt.Errorf("ошибка при вставке пакета %d: %w", start/r.batchSize+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("не удалось зафиксировать транзакцию: %w", err)
	}
	return nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, batch []models.SalesRecord) error {
	placeholders := make([]string, 0, len(batch))
	args := make([]interface{}, 0, len(batch)*11)
	for _, rec := range batch {
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			rec.Seq,
			rec.Material,
			rec.MaterialName,
			rec.BaseUnit,
			rec.BillingDocumentType,
			rec.BillingDate.Format(models.DayLayout),
			rec.NetSales,
			rec.Plant,
			rec.QuantityInBaseUnit,
			rec.Region,
			rec.SoldToParty,
		)
	}

	query := "INSERT INTO sales (" + salesColumns + ") VALUES " + strings.Join(placeholders, ", ")
	_, err := tx.ExecContext(ctx, query, args...)
	return err
}

// Filter возвращает строки с точным совпадением материала и покупателя в порядке файла
func (r *SalesRepository) Filter(ctx context.Context, materialName string, soldToParty int64) ([]models.SalesRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
	SELECT `+salesColumns+`
	FROM sales
	WHERE material_name = ? AND sold_to_party = ?
	ORDER BY seq`, materialName, soldToParty)
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе продаж: %w", err)
	}
	defer rows.Close()

	records := make([]models.SalesRecord, 0)
	for rows.Next() {
		var (
			rec  models.SalesRecord
			date string
		)
		if err := rows.Scan(
			&rec.Seq,
			&rec.Material,
			&rec.MaterialName,
			&rec.BaseUnit,
			&rec.BillingDocumentType,
			&date,
			&rec.NetSales,
			&rec.Plant,
			&rec.QuantityInBaseUnit,
			&rec.Region,
			&rec.SoldToParty,
		); err != nil {
			return nil, fmt.Errorf("ошибка при чтении строки продаж: %w", err)
		}
		t, err := time.Parse(models.DayLayout, date)
		if err != nil {
			return nil, fmt.Errorf("неверная дата в таблице sales %q: %w", date, err)
		}
		rec.BillingDate = models.NewBillingTime(t)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка при итерации по продажам: %w", err)
	}
	return records, nil
}

// Materials возвращает отсортированный список уникальных материалов
func (r *SalesRepository) Materials(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT material_name FROM sales ORDER BY material_name")
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе материалов: %w", err)
	}
	defer rows.Close()

	materials := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("ошибка при чтении материала: %w", err)
		}
		materials = append(materials, name)
	}
	return materials, rows.Err()
}

// Vendors возвращает отсортированный список уникальных покупателей
func (r *SalesRepository) Vendors(ctx context.Context) ([]int64, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT DISTINCT sold_to_party FROM sales ORDER BY sold_to_party")
	if err != nil {
		return nil, fmt.Errorf("ошибка при запросе покупателей: %w", err)
	}
	defer rows.Close()

	vendors := make([]int64, 0)
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("ошибка при чтении покупателя: %w", err)
		}
		vendors = append(vendors, id)
	}
	return vendors, rows.Err()
}

// Count возвращает количество строк продаж
func (r *SalesRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sales").Scan(&n); err != nil {
		return 0, fmt.Errorf("ошибка при подсчете продаж: %w", err)
	}
	return n, nil
}
