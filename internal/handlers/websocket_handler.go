package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/senyabanana/tender-orchestrator/internal/socket"
	"github.com/senyabanana/tender-orchestrator/internal/utils"

	"github.com/gorilla/websocket"
)

// Максимальное время ожидания сообщения от клиента.
const pongWait = 60 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler подключает поставщиков к realtime каналу уведомлений.
type WebSocketHandler struct {
	Hub    *socket.Hub
	Logger *log.Logger
}

// ServeWs обрабатывает запросы на подключение по websocket.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	providerId := r.URL.Query().Get("providerId")
	if providerId == "" {
		utils.SendErrorResponse(w, http.StatusBadRequest, "providerId is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Logger.Printf("failed to upgrade connection: %v", err)
		return
	}

	h.Hub.Register(providerId, conn)
	defer func() {
		h.Hub.Unregister(providerId, conn)
		conn.Close()
	}()

	// Клиент шлет PING, в ответ продлеваем срок чтения. PONG отправляет gorilla.
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(data string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Printf("unexpected websocket close: provider=%s err=%v", providerId, err)
			}
			break
		}
	}
}
