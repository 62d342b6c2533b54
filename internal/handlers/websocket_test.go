package handlers

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
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finreview/internal/common"
	"github.com/ternarybob/finreview/internal/interfaces"
	"github.com/ternarybob/finreview/internal/services/events"
)

func dialTestSocket(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestWebSocketBroadcastLog(t *testing.T) {
	handler, err := NewWebSocketHandler(nil, common.WebSocketConfig{}, arbor.NewLogger())
	require.NoError(t, err)

	conn := dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	handler.BroadcastLog(LogEntry{Timestamp: "10:30:00", Level: "info", Message: "报告生成完成"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "log", msg.Type)

	payload, err := json.Marshal(msg.Payload)
	require.NoError(t, err)
	var entry LogEntry
	require.NoError(t, json.Unmarshal(payload, &entry))
	assert.Equal(t, "报告生成完成", entry.Message)
}

func TestWebSocketForwardsAllowedEvents(t *testing.T) {
	logger := arbor.NewLogger()
	bus := events.NewService(logger)

	handler, err := NewWebSocketHandler(bus, common.WebSocketConfig{
		AllowedEvents: []string{string(interfaces.EventReportCompleted)},
	}, logger)
	require.NoError(t, err)

	conn := dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, bus.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventReportCompleted,
		Payload: map[string]string{"report_id": "601360_2024-09-30"},
	}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, string(interfaces.EventReportCompleted), msg.Type)
}

func TestWebSocketThrottlesEventType(t *testing.T) {
	handler, err := NewWebSocketHandler(nil, common.WebSocketConfig{
		ThrottleIntervals: map[string]string{
			string(interfaces.EventWorkflowProgress): "1m",
		},
	}, arbor.NewLogger())
	require.NoError(t, err)

	conn := dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	event := interfaces.Event{Type: interfaces.EventWorkflowProgress, Payload: "step"}
	require.NoError(t, handler.handleEvent(context.Background(), event))
	require.NoError(t, handler.handleEvent(context.Background(), event))
	handler.BroadcastLog(LogEntry{Level: "info", Message: "marker"})

	// Only the first progress event passes the limiter; the marker log
	// arrives right after it.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var first, second wsMessage
	require.NoError(t, conn.ReadJSON(&first))
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, string(interfaces.EventWorkflowProgress), first.Type)
	assert.Equal(t, "log", second.Type)
}

func TestWebSocketIgnoresUnlistedEvents(t *testing.T) {
	handler, err := NewWebSocketHandler(nil, common.WebSocketConfig{
		AllowedEvents: []string{string(interfaces.EventReportCompleted)},
	}, arbor.NewLogger())
	require.NoError(t, err)

	conn := dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, handler.handleEvent(context.Background(), interfaces.Event{Type: interfaces.EventHealthChanged}))
	handler.BroadcastLog(LogEntry{Level: "info", Message: "marker"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "log", msg.Type)
}

func TestWebSocketInvalidThrottleInterval(t *testing.T) {
	_, err := NewWebSocketHandler(nil, common.WebSocketConfig{
		ThrottleIntervals: map[string]string{"workflow_progress": "soon"},
	}, arbor.NewLogger())
	assert.Equal(t, common.KindInvalidInput, common.KindOf(err))
}

func TestWebSocketClose(t *testing.T) {
	handler, err := NewWebSocketHandler(nil, common.WebSocketConfig{}, arbor.NewLogger())
	require.NoError(t, err)

	dialTestSocket(t, handler)
	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, handler.Close())
	assert.Equal(t, 0, handler.ClientCount())
}
