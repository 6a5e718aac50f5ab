// Package sse implements a Server-Sent Events broker for mapping progress.
package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/starford/wikimapper/internal/models"
)

// Event types.
const (
	TypeSourceMapped      = "source.mapped"
	TypeSourceFailed      = "source.failed"
	TypeStatisticsUpdated = "statistics.updated"
)

// Event represents an SSE event to broadcast.
type Event struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// SourceEvent is the payload of source.mapped / source.failed.
type SourceEvent struct {
	Source     string `json:"source"`
	Resources  int    `json:"resources"`
	Properties int    `json:"properties"`
	Classes    int    `json:"classes"`
	Error      string `json:"error,omitempty"`
}

type sourceEventReq struct {
	ev     SourceEvent
	totals models.Statistics
}

// Broker fans events out to connected SSE clients.
//
// A single event loop owns the client set, the event sequence and the
// statistics throttle; public methods talk to it over channels. Totals that
// arrive inside a throttle window are held and sent when it closes, so the
// last statistics.updated always carries the final totals. A new client first
// receives the latest statistics.updated frame.
type Broker struct {
	statsMin  time.Duration
	heartbeat time.Duration

	subscribeCh   chan chan []byte
	unsubscribeCh chan chan []byte
	publishCh     chan Event
	sourceCh      chan sourceEventReq
	countReqCh    chan chan int

	stopCh  chan struct{}
	stopped chan struct{}
	closed  atomic.Bool
}

// NewBroker creates a broker that emits statistics.updated at most once per
// statsThrottle.
func NewBroker(statsThrottle time.Duration) *Broker {
	if statsThrottle <= 0 {
		statsThrottle = 2 * time.Second
	}

	b := &Broker{
		statsMin:      statsThrottle,
		heartbeat:     15 * time.Second,
		subscribeCh:   make(chan chan []byte),
		unsubscribeCh: make(chan chan []byte),
		publishCh:     make(chan Event, 256),
		sourceCh:      make(chan sourceEventReq, 256),
		countReqCh:    make(chan chan int),
		stopCh:        make(chan struct{}),
		stopped:       make(chan struct{}),
	}

	go b.run()
	return b
}

func (b *Broker) run() {
	defer close(b.stopped)

	var (
		clients   = make(map[chan []byte]struct{})
		seq       uint64
		lastStats time.Time
		snapshot  []byte
		pending   *models.Statistics
		timer     *time.Timer
		flush     <-chan time.Time
	)

	broadcast := func(event Event) []byte {
		payload, err := json.Marshal(event.Data)
		if err != nil {
			return nil
		}
		seq++
		frame := []byte(fmt.Sprintf("id: %d\nevent: %s\ndata: %s\n\n", seq, event.Type, payload))

		for ch := range clients {
			select {
			case ch <- frame:
			default:
				// slow client, drop
			}
		}
		return frame
	}

	emitStats := func(totals models.Statistics) {
		lastStats = time.Now()
		if frame := broadcast(Event{Type: TypeStatisticsUpdated, Data: totals}); frame != nil {
			snapshot = frame
		}
	}

	for {
		select {
		case <-b.stopCh:
			if timer != nil {
				timer.Stop()
			}
			for ch := range clients {
				close(ch)
			}
			return

		case ch := <-b.subscribeCh:
			clients[ch] = struct{}{}
			if snapshot != nil {
				ch <- snapshot
			}

		case ch := <-b.unsubscribeCh:
			if _, ok := clients[ch]; ok {
				delete(clients, ch)
				close(ch)
			}

		case event := <-b.publishCh:
			broadcast(event)

		case req := <-b.sourceCh:
			typ := TypeSourceMapped
			if req.ev.Error != "" {
				typ = TypeSourceFailed
			}
			broadcast(Event{Type: typ, Data: req.ev})

			wait := b.statsMin - time.Since(lastStats)
			if wait <= 0 && flush == nil {
				emitStats(req.totals)
				continue
			}
			totals := req.totals
			pending = &totals
			if flush == nil {
				timer = time.NewTimer(wait)
				flush = timer.C
			}

		case <-flush:
			flush = nil
			if pending != nil {
				emitStats(*pending)
				pending = nil
			}

		case resp := <-b.countReqCh:
			resp <- len(clients)
		}
	}
}

// Close stops the event loop and closes all client channels.
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

// PublishSourceEvent announces a finished Source and, throttled, the running
// totals of its run.
func (b *Broker) PublishSourceEvent(ev SourceEvent, totals models.Statistics) {
	if b.closed.Load() {
		return
	}
	select {
	case b.sourceCh <- sourceEventReq{ev: ev, totals: totals}:
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
			_, _ = w.Write([]byte(": keepalive\n\n"))
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
