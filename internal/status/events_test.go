package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/ecconf/internal/config"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func TestEventFeed(t *testing.T) {
	counters := &Counters{}
	lm := &fakeLifecycle{counters: counters}
	logger := zaptest.NewLogger(t)

	hub := NewHub(lm, logger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := NewServer(&config.Config{}, lm, counters, hub, logger)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	first := readMessage(t, conn)
	assert.Equal(t, MessageTypeStatus, first.Type)
	snapshot, ok := first.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "COMPILING", snapshot["state"])

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	hub.Broadcast(NewStateMessage("ERROR", "COMPILING", errors.New("boom")))
	msg := readMessage(t, conn)
	assert.Equal(t, MessageTypeState, msg.Type)
	data, ok := msg.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ERROR", data["state"])
	assert.Equal(t, "COMPILING", data["previous_state"])
	assert.Equal(t, "boom", data["error"])

	cancel()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.Error(t, err, "hub shutdown closes the feed")
}

func TestEventFeedDisabledWithoutHub(t *testing.T) {
	srv, _ := newTestServer(t)
	w := get(t, srv.Handler(), "/api/v1/ws/events")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
