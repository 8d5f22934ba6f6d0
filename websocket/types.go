// websocket/types.go
package websocket

import (
	"net/http"
	"sync/atomic"

	"github.com/gorilla/websocket"

	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

// Client - подписчик на события стадий
type Client struct {
	ID     uint64
	Socket *websocket.Conn
	Send   chan []byte
}

// Manager рассылает события стадий всем подключенным клиентам
type Manager struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	logger     *utils.Logger

	nextID  atomic.Uint64
	count   atomic.Int64
	dropped atomic.Int64
}

// Конфигурация WebSocket-соединения
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // дашборд может открываться с любого источника
	},
}
