// websocket/read_pump.go
package websocket

import (
	"time"

	"github.com/gorilla/websocket"
)

// readPump читает входящие кадры, чтобы обрабатывать pong и обнаруживать
// отключение. Содержимое сообщений клиента игнорируется.
func (c *Client) readPump(manager *Manager) {
	defer func() {
		select {
		case manager.unregister <- c:
		case <-manager.done:
		}
		c.Socket.Close()
	}()

	c.Socket.SetReadLimit(maxMessageSize)
	c.Socket.SetReadDeadline(time.Now().Add(pongWait))
	c.Socket.SetPongHandler(func(string) error {
		c.Socket.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.Socket.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				manager.logger.Warn("Ошибка чтения клиента %d: %v", c.ID, err)
			}
			return
		}
	}
}
