// routes/image_handlers.go
package routes

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/LilVoxy/expiry_forecast/storage"
)

// GetImageHandler отдает сохраненный график прогноза
func (h *handler) GetImageHandler(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	data, contentType, err := h.Images.Get(r.Context(), key)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidKey):
			h.respondError(w, http.StatusBadRequest, err)
		case errors.Is(err, storage.ErrImageNotFound):
			h.respondError(w, http.StatusNotFound, err)
		default:
			h.Logger.Error("Ошибка при чтении графика %s: %v", key, err)
			h.respondError(w, http.StatusInternalServerError, err)
		}
		return
	}

	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.Logger.Warn("Ошибка при отправке графика %s: %v", key, err)
	}
}
