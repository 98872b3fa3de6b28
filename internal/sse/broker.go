// Package sse implements a Server-Sent Events broker that pushes vault and
// editing-session changes to browsers.
package sse

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Note event kinds accepted by PublishNoteEvent. KindChanged carries no note
// of its own and only nudges clients to refresh the library.
const (
	KindCreated = "created"
	KindUpdated = "updated"
	KindDeleted = "deleted"
	KindSaved   = "saved"
	KindChanged = "changed"
)

// LibraryUpdated is emitted, throttled, after any note event.
const LibraryUpdated = "library.updated"

const (
	defaultThrottle   = 2 * time.Second
	defaultKeepAlive  = 30 * time.Second
	defaultBufferSize = 64
)

// Option configures a Broker.
type Option func(*Broker)

// WithThrottle sets the minimum gap between library.updated events.
func WithThrottle(d time.Duration) Option {
	return func(b *Broker) {
		if d > 0 {
			b.libraryMin = d
		}
	}
}

// WithKeepAlive sets how often idle streams get a comment line so proxies
// keep them open. Zero disables keep-alives.
func WithKeepAlive(d time.Duration) Option {
	return func(b *Broker) { b.keepAlive = d }
}

// WithBufferSize sets the per-client queue length.
func WithBufferSize(n int) Option {
	return func(b *Broker) {
		if n > 0 {
			b.bufSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(b *Broker) { b.logger = l }
}

type noteEventReq struct {
	kind string
	path string
}

// Broker manages SSE client connections and broadcasts events.
//
// A single event loop goroutine owns the client set, the event sequence and
// the library throttle timestamp; public methods talk to it over channels.
type Broker struct {
	libraryMin time.Duration
	keepAlive  time.Duration
	bufSize    int
	logger     *slog.Logger

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	noteEventCh   chan noteEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker and starts its event loop. Call Close to stop it.
func NewBroker(opts ...Option) *Broker {
	b := &Broker{
		libraryMin: defaultThrottle,
		keepAlive:  defaultKeepAlive,
		bufSize:    defaultBufferSize,
		logger:     slog.Default(),

		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		noteEventCh:   make(chan noteEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}
	for _, o := range opts {
		o(b)
	}

	go b.run()
	return b
}

// hub is the state owned by the event loop.
type hub struct {
	clients     map[chan []byte]struct{}
	seq         uint64
	lastLibrary time.Time
	logger      *slog.Logger
}

// frame encodes one event in the text/event-stream format with an id line.
func (h *hub) frame(event Event) ([]byte, error) {
	payload, err := json.Marshal(event.Data)
	if err != nil {
		return nil, err
	}
	h.seq++
	return fmt.Appendf(nil, "id: %d\nevent: %s\ndata: %s\n\n", h.seq, event.Type, payload), nil
}

func (h *hub) broadcast(event Event) {
	raw, err := h.frame(event)
	if err != nil {
		h.logger.Warn("sse: encode event", slog.String("type", event.Type), slog.String("error", err.Error()))
		return
	}
	for ch := range h.clients {
		select {
		case ch <- raw:
		default:
			// Slow client; dropping keeps the loop responsive.
			h.logger.Debug("sse: client queue full, event dropped", slog.String("type", event.Type))
		}
	}
}

// noteEvent maps a vault change to note.<kind> and, at most once per
// throttle window, library.updated.
func (h *hub) noteEvent(req noteEventReq, throttle time.Duration, now time.Time) {
	switch req.kind {
	case KindCreated, KindUpdated, KindDeleted, KindSaved:
		h.broadcast(Event{Type: "note." + req.kind, Data: map[string]string{"path": req.path}})
	case KindChanged:
	default:
		return
	}
	if now.Sub(h.lastLibrary) >= throttle {
		h.lastLibrary = now
		h.broadcast(Event{Type: LibraryUpdated, Data: map[string]string{}})
	}
}

func (b *Broker) run() {
	defer close(b.stopped)

	h := &hub{clients: make(map[chan []byte]struct{}), logger: b.logger}
	for {
		select {
		case <-b.stopCh:
			for ch := range h.clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			h.clients[ch] = struct{}{}

		case ch := <-b.unsubscribeCh:
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			h.broadcast(event)

		case req := <-b.noteEventCh:
			h.noteEvent(req, b.libraryMin, time.Now())

		case resp := <-b.countReqCh:
			resp <- len(h.clients)
		}
	}
}

// Close stops the event loop and closes all client channels. It is safe to
// call more than once.
func (b *Broker) Close() {
	if b.closed.CompareAndSwap(false, true) {
		close(b.stopCh)
	}
	<-b.stopped
}

// Subscribe adds a new client and returns its channel. After Close the
// returned channel is already closed.
func (b *Broker) Subscribe() chan []byte {
	ch := make(chan []byte, b.bufSize)
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

// PublishNoteEvent publishes note.<kind> for a note and a throttled
// library.updated. Unknown kinds are ignored.
func (b *Broker) PublishNoteEvent(kind, path string) {
	if b.closed.Load() {
		return
	}
	select {
	case b.noteEventCh <- noteEventReq{kind: kind, path: path}:
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
	// Reconnect delay hint for EventSource, in milliseconds.
	_, _ = w.Write([]byte("retry: " + strconv.Itoa(int(b.libraryMin.Milliseconds())) + "\n\n"))
	flusher.Flush()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	var ping <-chan time.Time
	if b.keepAlive > 0 {
		t := time.NewTicker(b.keepAlive)
		defer t.Stop()
		ping = t.C
	}

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ping:
			_, _ = w.Write([]byte(": ping\n\n"))
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
