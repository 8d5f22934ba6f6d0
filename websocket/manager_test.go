package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/LilVoxy/expiry_forecast/ETL/models"
	"github.com/LilVoxy/expiry_forecast/ETL/utils"
)

func startHub(t *testing.T) (*Manager, *httptest.Server, context.CancelFunc, chan struct{}) {
	t.Helper()
	manager := NewManager(utils.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(stopped)
	}()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", manager.HandleConnections)
	mux.HandleFunc("/ws/status", manager.HandleStatus)
	return manager, httptest.NewServer(mux), cancel, stopped
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	resp.Body.Close()
	return conn
}

func TestManager_BroadcastsStageEvents(t *testing.T) {
	defer goleak.VerifyNone(t)

	manager, srv, cancel, stopped := startHub(t)
	defer srv.Close()

	first := dial(t, srv)
	second := dial(t, srv)
	require.Eventually(t, func() bool { return manager.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	manager.Publish(models.StageEvent{Stage: models.StageFilter, Status: "success", Rows: 12})

	for _, conn := range []*websocket.Conn{first, second} {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		var event models.StageEvent
		require.NoError(t, conn.ReadJSON(&event))
		assert.Equal(t, models.StageEvent{Type: "stage", Stage: models.StageFilter, Status: "success", Rows: 12}, event)
	}

	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	// остановка менеджера закрывает оставшиеся соединения
	cancel()
	<-stopped
	require.NoError(t, second.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := second.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
	second.Close()

	// после остановки публикация не блокируется
	manager.Publish(models.StageEvent{Stage: models.StageLoad, Status: "success"})
}

func TestManager_Status(t *testing.T) {
	defer goleak.VerifyNone(t)

	manager, srv, cancel, stopped := startHub(t)
	defer func() {
		cancel()
		<-stopped
		srv.Close()
	}()

	conn := dial(t, srv)
	defer conn.Close()
	require.Eventually(t, func() bool { return manager.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get(srv.URL + "/ws/status")
	require.NoError(t, err)
	defer resp.Body.Close()

	var status HubStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	assert.Equal(t, 1, status.Clients)
}

func TestManager_RejectsAfterStop(t *testing.T) {
	manager, srv, cancel, stopped := startHub(t)
	defer srv.Close()
	cancel()
	<-stopped

	rec := httptest.NewRecorder()
	manager.HandleConnections(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
