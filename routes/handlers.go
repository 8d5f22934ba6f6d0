// routes/handlers.go
package routes

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/middleware"
	"github.com/LilVoxy/expiry_forecast/websocket"
)

// maxBodyBytes ограничивает размер тела запроса
const maxBodyBytes = 32 << 20

type handler struct {
	Dependencies
}

func newHandler(deps Dependencies) *handler {
	return &handler{Dependencies: deps}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func (h *handler) respond(w http.ResponseWriter, status int, v interface{}) {
	if err := writeJSON(w, status, v); err != nil {
		h.Logger.Error("Ошибка при кодировании JSON: %v", err)
	}
}

func (h *handler) respondError(w http.ResponseWriter, status int, err error) {
	h.respond(w, status, models.ErrorResponse{Error: err.Error()})
}

// decodeBody разбирает JSON-тело запроса
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("пустое тело запроса")
		}
		return fmt.Errorf("неверный JSON: %w", err)
	}
	return nil
}

// publishStage рассылает событие стадии и обновляет метрики
func (h *handler) publishStage(stage string, rows int, err error) {
	PublishStage(h.Hub, h.Metrics, stage, rows, err)
}

// PublishStage рассылает событие стадии подписчикам hub и учитывает его в метриках
func PublishStage(hub *websocket.Manager, metrics *middleware.Metrics, stage string, rows int, err error) {
	event := models.StageEvent{Type: "stage", Stage: stage, Status: "success", Rows: rows}
	if err != nil {
		event.Status = "failed"
		event.Rows = 0
		event.Error = err.Error()
	}
	hub.Publish(event)
	metrics.ObserveStage(stage, event.Status, event.Rows)
}
