package kds

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/yeremiapane/food-checkout/utils"
)

const writeWait = 5 * time.Second

type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Owned is implemented by payloads that belong to a single user.
type Owned interface {
	OwnerID() uint
}

type client struct {
	role   string
	userID uint
}

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Hub menampung semua client websocket dan mengirim event ke mereka.
// Staff dan admin menerima semua event, customer hanya event miliknya.
type Hub struct {
	clients map[Conn]client
	mutex   sync.Mutex
}

func NewHub() *Hub {
	return &Hub{clients: make(map[Conn]client)}
}

// RegisterClient -> menambahkan connection dengan role dan user
func (h *Hub) RegisterClient(conn Conn, role string, userID uint) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.clients[conn] = client{role: role, userID: userID}
}

// UnregisterClient -> melepaskan connection
func (h *Hub) UnregisterClient(conn Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// Publish implements services.EventPublisher.
func (h *Hub) Publish(_ context.Context, event string, data interface{}) error {
	h.broadcast(Message{Event: event, Data: data})
	return nil
}

// broadcast -> mengirim pesan ke client yang berhak. Koneksi yang gagal ditulis dilepas.
func (h *Hub) broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.WithError(err).Error("failed to marshal hub message")
		return
	}

	owner, owned := uint(0), false
	if o, ok := msg.Data.(Owned); ok {
		owner, owned = o.OwnerID(), true
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for conn, c := range h.clients {
		if !c.allowed(owner, owned) {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{"role": c.role, "user_id": c.userID}).WithError(err).Error("failed to send hub message")
			delete(h.clients, conn)
			conn.Close()
		}
	}
}

func (c client) allowed(owner uint, owned bool) bool {
	switch c.role {
	case "staff", "admin":
		return true
	}
	return owned && owner == c.userID
}
