// websocket/status.go
package websocket

import (
	"encoding/json"
	"net/http"
)

// HubStatus - состояние менеджера событий
type HubStatus struct {
	Clients int   `json:"clients"`
	Dropped int64 `json:"dropped_events"`
}

// HandleStatus возвращает количество подписчиков и отброшенных событий
func (manager *Manager) HandleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(HubStatus{
		Clients: manager.ClientCount(),
		Dropped: manager.dropped.Load(),
	}); err != nil {
		manager.logger.Error("Ошибка при кодировании статуса: %v", err)
	}
}
