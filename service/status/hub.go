package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/khaledhikmat/fsd-go/service/lgr"
)

type EventType string

const (
	EventState EventType = "state"
	EventError EventType = "error"
	EventInfo  EventType = "info"
)

type Event struct {
	Type      EventType `json:"type"`
	Source    string    `json:"source"`
	State     string    `json:"state,omitempty"`
	Session   string    `json:"session,omitempty"`
	Message   string    `json:"message,omitempty"`
	Timestamp int64     `json:"timestamp"`
}

// Hub fans status events out to every connected websocket client.
type Hub struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan Event
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	mutex      sync.RWMutex
	upgrader   websocket.Upgrader
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan Event, 64),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
	}
}

// Run serves the hub until canx is cancelled, then closes every client.
func (h *Hub) Run(canx context.Context) {
	defer h.closeAll()

	for {
		select {
		case <-canx.Done():
			lgr.Logger.Info("status hub context cancelled")
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Debug("status client connected", slog.Int("clients", count))

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			lgr.Logger.Debug("status client disconnected", slog.Int("clients", count))

		case event := <-h.broadcast:
			message, err := json.Marshal(event)
			if err != nil {
				lgr.Logger.Error("error marshaling status event", slog.Any("error", err))
				continue
			}

			h.mutex.Lock()
			for client := range h.clients {
				if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
					lgr.Logger.Warn("error sending status event", slog.Any("error", err))
					delete(h.clients, client)
					client.Close()
				}
			}
			h.mutex.Unlock()
		}
	}
}

// Publish never blocks the caller; events are dropped when the hub is
// backed up.
func (h *Hub) Publish(event Event) {
	if event.Timestamp == 0 {
		event.Timestamp = time.Now().Unix()
	}

	select {
	case h.broadcast <- event:
	default:
		lgr.Logger.Warn("status stream full, dropping event",
			slog.String("type", string(event.Type)),
			slog.String("message", event.Message),
		)
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and keeps the client registered until it
// goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		lgr.Logger.Warn("error upgrading status connection", slog.Any("error", err))
		return
	}

	select {
	case h.register <- conn:
	case <-r.Context().Done():
		conn.Close()
		return
	}

	// Clients never send anything meaningful, read only to notice closes.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			select {
			case h.unregister <- conn:
			case <-r.Context().Done():
			}
			return
		}
	}
}

func (h *Hub) closeAll() {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.Close()
		delete(h.clients, client)
	}
}
