package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
)

// EventHandler обрабатывает событие стадии конвейера
type EventHandler func(models.StageEvent)

// WatchURL возвращает адрес WebSocket-канала событий
func (c *Client) WatchURL() string {
	url := c.baseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return url + "/ws"
}

// Watch подписывается на события стадий и вызывает handler для каждого события.
// Возвращает nil после отмены ctx или штатного закрытия соединения сервером.
func (c *Client) Watch(ctx context.Context, handler EventHandler) error {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, c.WatchURL(), nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("ошибка подключения к %s: %w", c.WatchURL(), err)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()
	defer conn.Close()

	for {
		var event models.StageEvent
		if err := conn.ReadJSON(&event); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("ошибка чтения события: %w", err)
		}
		handler(event)
	}
}
