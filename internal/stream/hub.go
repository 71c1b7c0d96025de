package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"

	"rcx-service/internal/models"
)

type broadcast struct {
	deviceID string
	data     []byte
}

// Hub pushes fault rows to websocket subscribers. A client may restrict
// itself to one device with ?device=<id>.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	broadcast  chan broadcast
	done       chan struct{}

	mu  sync.RWMutex
	log *slog.Logger

	upgrader websocket.Upgrader
}

func NewHub(log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		broadcast:  make(chan broadcast, 256),
		done:       make(chan struct{}),
		log:        log.With(slog.String("component", "ws_hub")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

// Run owns the client set until ctx is cancelled, then closes every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				delete(h.clients, c)
				close(c.send)
			}
			h.mu.Unlock()
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Info("client_connected", slog.String("client", c.id), slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
				h.log.Info("client_disconnected", slog.String("client", c.id), slog.Int("clients", len(h.clients)))
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.Lock()
			for c := range h.clients {
				if c.deviceID != "" && c.deviceID != msg.deviceID {
					continue
				}
				select {
				case c.send <- msg.data:
				default:
					// slow consumer
					delete(h.clients, c)
					close(c.send)
					h.log.Warn("client_dropped", slog.String("client", c.id))
				}
			}
			h.mu.Unlock()
		}
	}
}

// InsertRow queues rec for every matching subscriber. It never blocks the
// caller; rows are dropped when the hub is saturated or stopped.
func (h *Hub) InsertRow(_ context.Context, _ string, rec models.FaultRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode fault %s: %w", rec.ID, err)
	}
	select {
	case h.broadcast <- broadcast{deviceID: rec.DeviceID, data: data}:
	case <-h.done:
	default:
		h.log.Warn("broadcast_dropped", slog.String("device_id", rec.DeviceID))
	}
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeWS upgrades the request and registers the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("upgrade_err", slog.Any("err", err))
		return
	}
	c := newClient(h, conn, r.URL.Query().Get("device"))
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}
	go c.writePump()
	go c.readPump()
}
