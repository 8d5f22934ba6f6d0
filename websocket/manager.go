// websocket/manager.go
package websocket

import (
	"context"
	"encoding/json"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

// NewManager создает новый менеджер WebSocket-соединений
func NewManager(logger *utils.Logger) *Manager {
	return &Manager{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, broadcastBufferSize),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run обслуживает регистрацию клиентов и рассылку до отмены контекста.
// При остановке все клиенты отключаются.
func (manager *Manager) Run(ctx context.Context) {
	defer close(manager.done)

	for {
		select {
		case client := <-manager.register:
			manager.clients[client] = struct{}{}
			manager.count.Add(1)
			manager.logger.Debug("Клиент %d подписался на события", client.ID)

		case client := <-manager.unregister:
			manager.remove(client)

		case message := <-manager.broadcast:
			manager.send(message)

		case <-ctx.Done():
			for client := range manager.clients {
				manager.remove(client)
			}
			manager.logger.Info("Менеджер WebSocket остановлен")
			return
		}
	}
}

func (manager *Manager) remove(client *Client) {
	if _, ok := manager.clients[client]; !ok {
		return
	}
	delete(manager.clients, client)
	close(client.Send)
	manager.count.Add(-1)
	manager.logger.Debug("Клиент %d отключился", client.ID)
}

// send отправляет сообщение всем клиентам. Клиент с переполненной
// очередью отключается.
func (manager *Manager) send(message []byte) {
	for client := range manager.clients {
		select {
		case client.Send <- message:
		default:
			manager.logger.Warn("Клиент %d не успевает читать события, отключаем", client.ID)
			manager.remove(client)
		}
	}
}

// Publish ставит событие стадии в очередь рассылки без блокировки
func (manager *Manager) Publish(event models.StageEvent) {
	if event.Type == "" {
		event.Type = "stage"
	}
	data, err := json.Marshal(event)
	if err != nil {
		manager.logger.Error("Ошибка кодирования события: %v", err)
		return
	}

	select {
	case <-manager.done:
		return
	default:
	}

	select {
	case manager.broadcast <- data:
	default:
		manager.dropped.Add(1)
		manager.logger.Warn("Очередь событий переполнена, событие %s/%s отброшено", event.Stage, event.Status)
	}
}

// ClientCount возвращает количество подключенных клиентов
func (manager *Manager) ClientCount() int {
	return int(manager.count.Load())
}
