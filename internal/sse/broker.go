// Package sse implements a Server-Sent Events broker for catalog updates and
// user status messages.
package sse

import (
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
)

// Event types.
const (
	EventCatalogUpdated = "catalog.updated"
	EventCatalogCleared = "catalog.cleared"
	EventViewsUpdated   = "views.updated"
	EventStatus         = "status"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// CatalogChange describes a published or cleared catalog.
type CatalogChange struct {
	Version uint64 `json:"version"`
	Count   int    `json:"count"`
	RunID   string `json:"run_id,omitempty"`
}

type catalogEventReq struct {
	cleared bool
	change  CatalogChange
}

// DefaultHeartbeat is how often idle streams get a comment line so proxies
// keep the connection open.
const DefaultHeartbeat = 15 * time.Second

// Broker manages SSE client connections and broadcasts events.
//
// A single internal event loop owns mutable state (clients, the frame
// sequence, the last catalog state and the views throttle timestamp).
// Public methods talk to the loop through channels. New subscribers first
// receive the last catalog event so they start from the current version.
type Broker struct {
	viewsMin  time.Duration
	heartbeat time.Duration

	subscribeCh    chan chan []byte
	unsubscribeCh  chan chan []byte
	publishCh      chan Event
	catalogEventCh chan catalogEventReq
	countReqCh     chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// BrokerOption configures a Broker.
type BrokerOption func(*Broker)

// WithHeartbeat sets the idle keep-alive interval for ServeHTTP.
func WithHeartbeat(d time.Duration) BrokerOption {
	return func(b *Broker) {
		if d > 0 {
			b.heartbeat = d
		}
	}
}

// NewBroker creates a broker that emits views.updated at most once per
// viewsThrottle.
func NewBroker(viewsThrottle time.Duration, opts ...BrokerOption) *Broker {
	if viewsThrottle <= 0 {
		viewsThrottle = 2 * time.Second
	}

	b := &Broker{
		viewsMin:       viewsThrottle,
		heartbeat:      DefaultHeartbeat,
		subscribeCh:    make(chan chan []byte),
		unsubscribeCh:  make(chan chan []byte),
		publishCh:      make(chan Event, 256),
		catalogEventCh: make(chan catalogEventReq, 256),
		countReqCh:     make(chan chan int),
		stopCh:         make(chan struct{}),
		stopped:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	clients := make(map[chan []byte]struct{})
	var (
		lastViews   time.Time
		seq         uint64
		lastCatalog []byte
	)

	frame := func(event Event) []byte {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return nil
		}
		seq++
		return []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))
	}

	broadcast := func(event Event) []byte {
		raw := frame(event)
		if raw == nil {
			return nil
		}
		for ch := range clients {
			select {
			case ch <- raw:
			default:
				// Client buffer full; skip to avoid blocking broker loop.
			}
		}
		return raw
	}

	for {
		select {
		case <-b.stopCh:
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if lastCatalog != nil {
				ch <- lastCatalog
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.catalogEventCh:
			typ := EventCatalogUpdated
			if req.cleared {
				typ = EventCatalogCleared
			}
			if raw := broadcast(Event{Type: typ, Data: req.change}); raw != nil {
				lastCatalog = raw
			}

			now := time.Now()
			if now.Sub(lastViews) >= b.viewsMin {
				lastViews = now
				broadcast(Event{Type: EventViewsUpdated, Data: map[string]uint64{"version": req.change.Version}})
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close gracefully stops broker loop and closes all client channels.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, 64)
	if b.closed.Load() {
		close(ch)
		return ch
	}

	select {
	case b.subscribeCh <- ch:
	case <-b.stopped:
		close(ch)
	}

	return ch
}

// Unsubscribe removes a client and closes its channel.
func (b *Broker) Unsubscribe(ch chan []byte) {
	if b.closed.Load() {
		return
	}
	select {
	case b.unsubscribeCh <- ch:
	case <-b.stopped:
	}
}

// ClientCount returns the number of connected clients.
func (b *Broker) ClientCount() int {
	if b.closed.Load() {
		return 0
	}

	resp := make(chan int, 1)
	select {
	case b.countReqCh <- resp:
	case <-b.stopped:
		return 0
	}

	select {
	case n := <-resp:
		return n
	case <-b.stopped:
		return 0
	}
}

// Publish sends an event to all connected clients.
func (b *Broker) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	select {
	case b.publishCh <- event:
	case <-b.stopped:
	}
}

// Notify publishes a transient status message.
func (b *Broker) Notify(message string) {
	b.Publish(Event{Type: EventStatus, Data: map[string]string{"message": message}})
}

// PublishCatalogEvent publishes a catalog change and a throttled
// views.updated event.
func (b *Broker) PublishCatalogEvent(cleared bool, change CatalogChange) {
	if b.closed.Load() {
		return
	}
	select {
	case b.catalogEventCh <- catalogEventReq{cleared: cleared, change: change}:
	case <-b.stopped:
	}
}

// ServeHTTP is the SSE endpoint handler (GET /api/events).
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	ticker := time.NewTicker(b.heartbeat)
	defer ticker.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case msg, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write(msg)
			flusher.Flush()
		}
	}
}
