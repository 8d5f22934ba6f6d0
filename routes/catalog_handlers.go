// routes/catalog_handlers.go
package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/LilVoxy/expiry_forecast/ETL/load"
	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// GetMaterialsHandler возвращает отсортированный список материалов
func (h *handler) GetMaterialsHandler(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Sales.Materials(r.Context())
	if err != nil {
		h.Logger.Error("Ошибка при получении списка материалов: %v", err)
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, materials)
	h.Logger.Debug("Отправлен список из %d материалов", len(materials))
}

// GetVendorsHandler возвращает отсортированный список покупателей
func (h *handler) GetVendorsHandler(w http.ResponseWriter, r *http.Request) {
	vendors, err := h.Sales.Vendors(r.Context())
	if err != nil {
		h.Logger.Error("Ошибка при получении списка покупателей: %v", err)
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, vendors)
	h.Logger.Debug("Отправлен список из %d покупателей", len(vendors))
}

// LoadDataHandler перечитывает книги Excel в таблицу продаж
func (h *handler) LoadDataHandler(w http.ResponseWriter, r *http.Request) {
	records, err := h.Loader.Load(r.Context())
	h.publishStage(models.StageLoad, records, err)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, load.ErrLoadInProgress) {
			status = http.StatusConflict
		}
		h.respond(w, status, models.LoadStatus{Status: false, Error: err.Error()})
		return
	}
	h.respond(w, http.StatusOK, models.LoadStatus{Status: true, Records: records})
	h.Logger.Info("Загружено %d строк продаж", records)
}

// LoadStatusHandler возвращает последнюю запись журнала загрузок
func (h *handler) LoadStatusHandler(w http.ResponseWriter, r *http.Request) {
	run, err := h.Loader.LastRun(r.Context())
	if err != nil {
		h.Logger.Error("Ошибка при получении журнала загрузок: %v", err)
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	if run == nil {
		h.respondError(w, http.StatusNotFound, errors.New("данные еще не загружались"))
		return
	}
	h.respond(w, http.StatusOK, run)
}

// ForecastHistoryHandler возвращает сохраненные прогнозы материала
func (h *handler) ForecastHistoryHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	material := query.Get("material_name")
	if material == "" {
		h.respondError(w, http.StatusBadRequest, errors.New("отсутствует обязательный параметр material_name"))
		return
	}

	limit := 100
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			h.respondError(w, http.StatusBadRequest, errors.New("неверный параметр limit"))
			return
		}
		limit = n
	}

	runs, err := h.Forecasts.GetForecasts(r.Context(), material, limit)
	if err != nil {
		h.Logger.Error("Ошибка при получении истории прогнозов: %v", err)
		h.respondError(w, http.StatusInternalServerError, err)
		return
	}
	h.respond(w, http.StatusOK, runs)
}
