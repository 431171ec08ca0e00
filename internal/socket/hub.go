package socket

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Conn - минимальный интерфейс соединения, нужный хабу.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type client struct {
	conn Conn
	mu   sync.Mutex
}

// Hub управляет websocket клиентами поставщиков.
// Подключенный клиент считается маркером присутствия.
type Hub struct {
	// clients хранит соединения по идентификатору поставщика.
	clients map[string]*client
	mu      sync.RWMutex
	logger  *log.Logger
}

// NewHub создает новый Hub.
func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*client),
		logger:  logger,
	}
}

// Register добавляет клиента. Предыдущее соединение того же поставщика закрывается.
func (h *Hub) Register(providerId string, conn Conn) {
	h.mu.Lock()
	prev, ok := h.clients[providerId]
	h.clients[providerId] = &client{conn: conn}
	h.mu.Unlock()

	if ok && prev.conn != conn {
		prev.conn.Close()
	}
	h.logger.Printf("websocket client registered: provider=%s", providerId)
}

// Unregister удаляет клиента, если он все еще владеет записью.
func (h *Hub) Unregister(providerId string, conn Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.clients[providerId]; ok && c.conn == conn {
		delete(h.clients, providerId)
		h.logger.Printf("websocket client unregistered: provider=%s", providerId)
	}
}

// IsOnline сообщает, есть ли у поставщика активное соединение.
func (h *Hub) IsOnline(providerId string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[providerId]
	return ok
}

// Online возвращает число подключенных поставщиков.
func (h *Hub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ErrOffline - поставщик отключился до доставки.
var ErrOffline = errors.New("websocket client offline")

// Send отправляет сообщение поставщику.
func (h *Hub) Send(providerId string, message []byte) error {
	h.mu.RLock()
	c, ok := h.clients[providerId]
	h.mu.RUnlock()
	if !ok {
		return ErrOffline
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		h.Unregister(providerId, c.conn)
		return err
	}
	return nil
}
