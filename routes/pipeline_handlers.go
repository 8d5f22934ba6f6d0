// routes/pipeline_handlers.go
package routes

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/LilVoxy/expiry_forecast/ETL/forecast"
	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/transform"
	"github.com/LilVoxy/expiry_forecast/storage"
)

// ErrPathOutsideDataDir возвращается, если file_path указывает за пределы каталога данных
var ErrPathOutsideDataDir = errors.New("путь к файлу вне каталога данных")

// FilterDataHandler отбирает строки продаж по материалу и покупателю.
// Если указан file_path, книга читается напрямую.
func (h *handler) FilterDataHandler(w http.ResponseWriter, r *http.Request) {
	var req models.FilterRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(req.MaterialName) == "" || req.SoldToParty == 0 {
		h.respondError(w, http.StatusBadRequest, errors.New("обязательны поля material_name и sold_to_party"))
		return
	}

	var (
		filtered []models.SalesRecord
		err      error
		status   = http.StatusInternalServerError
	)
	if req.FilePath != "" {
		var path string
		path, err = resolveDataPath(h.Config.DataDir, req.FilePath)
		if err != nil {
			status = http.StatusBadRequest
		} else {
			var records []models.SalesRecord
			records, err = h.Extractor.ExtractFile(r.Context(), path)
			if err != nil {
				status = http.StatusBadRequest
			}
			filtered = transform.Filter(records, req.MaterialName, req.SoldToParty)
		}
	} else {
		filtered, err = h.Sales.Filter(r.Context(), req.MaterialName, req.SoldToParty)
	}

	h.publishStage(models.StageFilter, len(filtered), err)
	if err != nil {
		h.Logger.Error("Ошибка фильтрации: %v", err)
		h.respondError(w, status, err)
		return
	}

	h.respond(w, http.StatusOK, filtered)
	h.Logger.Info("Отобрано %d строк для %q / %d", len(filtered), req.MaterialName, req.SoldToParty)
}

// resolveDataPath приводит путь к абсолютному и проверяет, что он внутри dataDir.
// Относительные пути считаются от dataDir.
func resolveDataPath(dataDir, path string) (string, error) {
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", fmt.Errorf("неверный каталог данных: %w", err)
	}
	if base, err = filepath.EvalSymlinks(base); err != nil {
		return "", fmt.Errorf("неверный каталог данных: %w", err)
	}

	if !filepath.IsAbs(path) {
		path = filepath.Join(base, path)
	}
	resolved, err := filepath.EvalSymlinks(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("файл не найден: %s", filepath.Base(path))
		}
		return "", fmt.Errorf("неверный путь к файлу: %w", err)
	}

	rel, err := filepath.Rel(base, resolved)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrPathOutsideDataDir
	}
	return resolved, nil
}

// TransformDataHandler разделяет количество и агрегирует по дню и материалу
func (h *handler) TransformDataHandler(w http.ResponseWriter, r *http.Request) {
	var req models.TransformRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.FilteredData == nil {
		h.respondError(w, http.StatusBadRequest, errors.New("обязательно поле filtered_data"))
		return
	}

	aggregated := transform.Transform(req.FilteredData)
	h.publishStage(models.StageTransform, len(aggregated), nil)
	h.respond(w, http.StatusOK, aggregated)
	h.Logger.Info("Агрегировано %d строк в %d групп", len(req.FilteredData), len(aggregated))
}

// ForecastHandler сдвигает просрочку, строит прогноз и сохраняет график
func (h *handler) ForecastHandler(w http.ResponseWriter, r *http.Request) {
	var req models.ForecastRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.AggregatedData == nil {
		h.respondError(w, http.StatusBadRequest, errors.New("обязательно поле aggregated_data"))
		return
	}

	shift := h.Config.Forecast.ShiftOffset
	if req.ShiftOffset != nil {
		shift = *req.ShiftOffset
	}
	opts := forecast.Options{
		Days:   h.Config.Forecast.ForecastDays,
		Period: h.Config.Forecast.SeasonalPeriod,
		Method: h.Config.Forecast.Method,
	}
	if req.ForecastDays != nil {
		opts.Days = *req.ForecastDays
	}
	if req.SeasonalPeriod != nil {
		opts.Period = *req.SeasonalPeriod
	}
	if req.Method != "" {
		opts.Method = req.Method
	}

	result, err := h.runForecast(r.Context(), req.AggregatedData, shift, opts)
	h.publishStage(models.StageForecast, forecastRows(result), err)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, forecast.ErrInvalidOptions):
			status = http.StatusBadRequest
		case errors.Is(err, forecast.ErrInsufficientData):
			status = http.StatusUnprocessableEntity
		}
		h.Logger.Error("Ошибка прогноза: %v", err)
		h.respondError(w, status, err)
		return
	}

	h.respond(w, http.StatusOK, result)
}

func forecastRows(result *models.ForecastResult) int {
	if result == nil {
		return 0
	}
	return len(result.ForecastedNet)
}

func (h *handler) runForecast(ctx context.Context, aggregated []models.AggregatedRecord, shift int, opts forecast.Options) (*models.ForecastResult, error) {
	processed := transform.OffsetAndRecalculate(aggregated, shift)

	result, err := h.Forecaster.Forecast(ctx, processed, opts)
	if err != nil {
		return nil, err
	}

	material := materialLabel(aggregated)
	png, err := forecast.RenderChart(material, processed, result)
	if err != nil {
		return nil, fmt.Errorf("ошибка построения графика: %w", err)
	}
	key := storage.NewKey()
	if err := h.Images.Put(ctx, key, png, forecast.ChartContentType); err != nil {
		return nil, fmt.Errorf("ошибка сохранения графика: %w", err)
	}
	result.ImageURL = "/images/" + key

	// история не влияет на ответ
	if err := h.Forecasts.SaveForecast(ctx, material, *result, time.Now()); err != nil {
		h.Logger.Warn("Не удалось сохранить историю прогноза: %v", err)
	}
	return result, nil
}

// materialLabel возвращает названия материалов ряда через запятую
func materialLabel(aggregated []models.AggregatedRecord) string {
	seen := make(map[string]struct{})
	var names []string
	for _, a := range aggregated {
		if _, ok := seen[a.MaterialName]; ok || a.MaterialName == "" {
			continue
		}
		seen[a.MaterialName] = struct{}{}
		names = append(names, a.MaterialName)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
