package live

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/domain"
	"github.com/AchilleasB/smart-waste/reporting-service/internal/core/ports"
)

const broadcastBuffer = 64

// Message is pushed to every connected client after a report mutation. Clients treat it as a hint
// and re-query their lists.
type Message struct {
	Type  string             `json:"type"`
	Event domain.ReportEvent `json:"event"`
}

// Hub fans report events out to connected websocket clients.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	mu         sync.RWMutex
	log        *zap.SugaredLogger
}

var _ ports.ReportEventPublisher = (*Hub)(nil)

func NewHub(log *zap.SugaredLogger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
		log:        log,
	}
}

// Run serves registrations and broadcasts until ctx is cancelled, then disconnects every client.
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
			h.clients[c] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("live client connected", "subject", c.subjectID, "total", total)

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				close(c.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			h.log.Debugw("live client disconnected", "subject", c.subjectID, "total", total)

		case data := <-h.broadcast:
			h.mu.RLock()
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.log.Warnw("live client too slow, dropping message", "subject", c.subjectID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Clients returns the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishReportEvent queues a refresh hint. It never blocks on slow clients; when the queue is
// full the hint is dropped and clients catch up on their next query.
func (h *Hub) PublishReportEvent(ctx context.Context, evt domain.ReportEvent) error {
	data, err := json.Marshal(Message{Type: "refresh", Event: evt})
	if err != nil {
		return err
	}
	select {
	case h.broadcast <- data:
	case <-h.done:
	default:
		h.log.Warnw("live broadcast queue full, dropping refresh", "event_id", evt.ID)
	}
	return nil
}

func (h *Hub) join(c *Client) bool {
	select {
	case h.register <- c:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) leave(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}
