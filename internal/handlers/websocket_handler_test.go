package handlers_test

import (
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/handlers"
	"github.com/senyabanana/tender-orchestrator/internal/socket"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestServeWs_RegistersProvider(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	hub := socket.NewHub(logger)
	h := &handlers.WebSocketHandler{Hub: hub, Logger: logger}

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWs))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?providerId=acme"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	require.Eventually(t, func() bool { return hub.IsOnline("acme") }, time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Send("acme", []byte(`{"event":"StatusChanged"}`)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.JSONEq(t, `{"event":"StatusChanged"}`, string(msg))

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return !hub.IsOnline("acme") }, time.Second, 10*time.Millisecond)
}

func TestServeWs_RequiresProvider(t *testing.T) {
	logger := log.New(io.Discard, "", 0)
	h := &handlers.WebSocketHandler{Hub: socket.NewHub(logger), Logger: logger}

	req := httptest.NewRequest(http.MethodGet, "/api/ws", nil)
	rr := httptest.NewRecorder()
	h.ServeWs(rr, req)

	require.Equal(t, http.StatusBadRequest, rr.Code)
}
