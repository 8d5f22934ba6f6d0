package extractors

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/sync/errgroup"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

// Названия колонок исходных книг
const (
	colMaterial            = "Material"
	colMaterialName        = "MaterialName"
	colBaseUnit            = "BaseUnit"
	colBillingDocumentType = "BillingDocumentType"
	colBillingDate         = "BillingDate"
	colNetSales            = "Net Sales"
	colPlant               = "Plant"
	colQuantity            = "QuantityInBaseUnit"
	colRegion              = "Region"
	colSoldToParty         = "SoldToParty"
)

// Обязательные колонки. Остальные могут отсутствовать.
var requiredColumns = []string{colMaterialName, colBillingDate, colQuantity, colSoldToParty}

// ExcelExtractor извлекает строки продаж из книг Excel
type ExcelExtractor struct {
	logger *utils.Logger
}

// NewExcelExtractor создает новый экземпляр ExcelExtractor
func NewExcelExtractor(logger *utils.Logger) *ExcelExtractor {
	return &ExcelExtractor{logger: logger}
}

// Extract читает все листы всех книг и объединяет строки в порядке файлов
func (e *ExcelExtractor) Extract(ctx context.Context, paths ...string) ([]models.SalesRecord, error) {
	startTime := time.Now()
	e.logger.LogStageStart(models.StageLoad)

	// Книги читаются параллельно, порядок результатов сохраняется
	perFile := make([][]models.SalesRecord, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			records, err := e.ExtractFile(gctx, path)
			if err != nil {
				return err
			}
			perFile[i] = records
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var records []models.SalesRecord
	for _, part := range perFile {
		for _, r := range part {
			r.Seq = len(records)
			records = append(records, r)
		}
	}

	e.logger.LogStageComplete(models.StageLoad, len(records), time.Since(startTime))
	return records, nil
}

// ExtractFile читает одну книгу с диска
func (e *ExcelExtractor) ExtractFile(ctx context.Context, path string) ([]models.SalesRecord, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("ошибка открытия книги %s: %w", path, err)
	}
	defer f.Close()

	records, err := e.extractWorkbook(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("книга %s: %w", path, err)
	}
	e.logger.Debug("Из книги %s извлечено %d строк", path, len(records))
	return records, nil
}

// ExtractReader читает книгу из потока
func (e *ExcelExtractor) ExtractReader(ctx context.Context, r io.Reader) ([]models.SalesRecord, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения книги: %w", err)
	}
	defer f.Close()

	records, err := e.extractWorkbook(ctx, f)
	if err != nil {
		return nil, err
	}
	for i := range records {
		records[i].Seq = i
	}
	return records, nil
}

func (e *ExcelExtractor) extractWorkbook(ctx context.Context, f *excelize.File) ([]models.SalesRecord, error) {
	var records []models.SalesRecord
	for _, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("ошибка чтения листа %s: %w", sheet, err)
		}
		sheetRecords, err := parseSheet(sheet, rows)
		if err != nil {
			return nil, err
		}
		records = append(records, sheetRecords...)
	}
	return records, nil
}

// parseSheet разбирает строки листа. Первая строка - заголовок.
func parseSheet(sheet string, rows [][]string) ([]models.SalesRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	index := make(map[string]int, len(rows[0]))
	for i, name := range rows[0] {
		index[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("лист %s: отсутствует колонка %q", sheet, col)
		}
	}

	cell := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := make([]models.SalesRecord, 0, len(rows)-1)
	for n, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		line := n + 2 // номер строки в Excel

		date, err := parseSourceDate(cell(row, colBillingDate))
		if err != nil {
			return nil, fmt.Errorf("лист %s, строка %d: %w", sheet, line, err)
		}
		quantity, err := parseNumber(cell(row, colQuantity))
		if err != nil {
			return nil, fmt.Errorf("лист %s, строка %d: %s: %w", sheet, line, colQuantity, err)
		}
		soldTo, err := parseID(cell(row, colSoldToParty))
		if err != nil {
			return nil, fmt.Errorf("лист %s, строка %d: %s: %w", sheet, line, colSoldToParty, err)
		}
		netSales, err := parseOptionalNumber(cell(row, colNetSales))
		if err != nil {
			return nil, fmt.Errorf("лист %s, строка %d: %s: %w", sheet, line, colNetSales, err)
		}

		records = append(records, models.SalesRecord{
			Material:            trimNumeric(cell(row, colMaterial)),
			MaterialName:        cell(row, colMaterialName),
			BaseUnit:            cell(row, colBaseUnit),
			BillingDocumentType: cell(row, colBillingDocumentType),
			BillingDate:         models.NewBillingTime(date),
			NetSales:            netSales,
			Plant:               trimNumeric(cell(row, colPlant)),
			QuantityInBaseUnit:  quantity,
			Region:              cell(row, colRegion),
			SoldToParty:         soldTo,
		})
	}
	return records, nil
}

// parseSourceDate разбирает дату формата YYYYMMDD, в том числе записанную как число
func parseSourceDate(value string) (time.Time, error) {
	value = trimNumeric(value)
	t, err := time.Parse(models.SourceDateLayout, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("неверная BillingDate %q", value)
	}
	return t, nil
}

func parseNumber(value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("пустое значение")
	}
	return strconv.ParseFloat(strings.ReplaceAll(value, ",", ""), 64)
}

// parseID разбирает целочисленный идентификатор. Дробные значения и
// значения вне диапазона int64 считаются ошибкой.
func parseID(value string) (int64, error) {
	if value == "" {
		return 0, fmt.Errorf("пустое значение")
	}
	id, err := strconv.ParseInt(strings.ReplaceAll(trimNumeric(value), ",", ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("неверный идентификатор %q", value)
	}
	return id, nil
}

func parseOptionalNumber(value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return parseNumber(value)
}

// trimNumeric убирает дробную часть ".0" у чисел, сохраненных как float
func trimNumeric(value string) string {
	if strings.HasSuffix(value, ".0") {
		if _, err := strconv.ParseFloat(value, 64); err == nil {
			return strings.TrimSuffix(value, ".0")
		}
	}
	return value
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
