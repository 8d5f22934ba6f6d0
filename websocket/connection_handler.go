// websocket/connection_handler.go
package websocket

import (
	"net/http"
)

// HandleConnections обновляет соединение до WebSocket и подписывает
// клиента на события стадий
func (manager *Manager) HandleConnections(w http.ResponseWriter, r *http.Request) {
	select {
	case <-manager.done:
		http.Error(w, "Сервер останавливается", http.StatusServiceUnavailable)
		return
	default:
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		manager.logger.Error("Ошибка при установке WebSocket-соединения: %v", err)
		return
	}

	client := &Client{
		ID:     manager.nextID.Add(1),
		Socket: conn,
		Send:   make(chan []byte, sendBufferSize),
	}

	select {
	case manager.register <- client:
	case <-manager.done:
		conn.Close()
		return
	}

	manager.logger.Info("Установлено WebSocket-соединение %d с %s", client.ID, r.RemoteAddr)

	go client.writePump()
	go client.readPump(manager)
}
