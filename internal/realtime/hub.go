package realtime

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Kcheesee/StarCitiSalesAgent/internal/platform/logger"
)

const outboundBuffer = 16

type Client struct {
	ID       uuid.UUID
	Channel  string
	Outbound chan Event
	done     chan struct{}
	once     sync.Once
}

// Hub fans bus events out to streaming HTTP clients in this process.
type Hub struct {
	mu            sync.RWMutex
	log           *logger.Logger
	subscriptions map[string]map[*Client]bool
	heartbeat     time.Duration
}

func NewHub(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.Nop()
	}
	return &Hub{
		log:           log.With("component", "EventHub"),
		subscriptions: make(map[string]map[*Client]bool),
		heartbeat:     15 * time.Second,
	}
}

func (h *Hub) Subscribe(channel string) *Client {
	c := &Client{
		ID:       uuid.New(),
		Channel:  strings.TrimSpace(channel),
		Outbound: make(chan Event, outboundBuffer),
		done:     make(chan struct{}),
	}
	if c.Channel == "" {
		return c
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	clients, ok := h.subscriptions[c.Channel]
	if !ok {
		clients = make(map[*Client]bool)
		h.subscriptions[c.Channel] = clients
	}
	clients[c] = true
	h.log.Debug("event client subscribed", "client_id", c.ID, "channel", c.Channel)
	return c
}

// Unsubscribe detaches c and closes it. Safe to call more than once.
func (h *Hub) Unsubscribe(c *Client) {
	if c == nil {
		return
	}
	c.once.Do(func() {
		h.mu.Lock()
		if clients, ok := h.subscriptions[c.Channel]; ok {
			delete(clients, c)
			if len(clients) == 0 {
				delete(h.subscriptions, c.Channel)
			}
		}
		h.mu.Unlock()
		close(c.done)
	})
}

// Subscribers reports how many clients listen on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscriptions[channel])
}

// Broadcast never blocks; clients with a full buffer miss the event.
func (h *Hub) Broadcast(ev Event) {
	if ev.Channel == "" {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.subscriptions[ev.Channel] {
		select {
		case c.Outbound <- ev:
		default:
			h.log.Warn("dropping event; outbound buffer full", "client_id", c.ID, "event", ev.Type)
		}
	}
}

// Stream writes events for c as server-sent events until the request ends.
func (h *Hub) Stream(w http.ResponseWriter, r *http.Request, c *Client) {
	defer h.Unsubscribe(c)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-heartbeat.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev := <-c.Outbound:
			raw, err := json.Marshal(ev)
			if err != nil {
				h.log.Warn("marshal event failed", "error", err)
				continue
			}
			_, _ = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, raw)
			flusher.Flush()
		}
	}
}
