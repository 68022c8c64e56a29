package plugins

import (
	"context"
	"encoding/hex"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linht/nrf24-manager/nrf24"
)

// Event types
const (
	EventPacket = "packet"
	EventSend   = "send"
)

// subscriberBuffer is the number of events a slow subscriber may lag
// behind before events are dropped for it.
const subscriberBuffer = 64

// Event is pushed to stream subscribers and packet sinks.
type Event struct {
	Type   string    `json:"type"`
	Pipe   *int      `json:"pipe,omitempty"`
	Data   string    `json:"data,omitempty"`
	Length int       `json:"length,omitempty"`
	Result string    `json:"result,omitempty"`
	IDs    []string  `json:"ids,omitempty"`
	Time   time.Time `json:"time"`
}

func packetEvent(p *nrf24.Payload) Event {
	pipe := p.Pipe
	return Event{
		Type:   EventPacket,
		Pipe:   &pipe,
		Data:   hex.EncodeToString(p.Bytes()),
		Length: p.Len(),
		Time:   time.Now(),
	}
}

func sendEvent(out SendOutcome) Event {
	return Event{
		Type:   EventSend,
		Result: out.Result,
		IDs:    out.IDs,
		Time:   time.Now(),
	}
}

// eventHub fans events out to subscribers. Publishing never blocks.
type eventHub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

func newEventHub() *eventHub {
	return &eventHub{subs: make(map[string]chan Event)}
}

func (h *eventHub) subscribe() (string, <-chan Event) {
	id := uuid.New().String()
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()

	slog.Debug("Stream subscriber added", "id", id)
	return id, ch
}

func (h *eventHub) unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
		slog.Debug("Stream subscriber removed", "id", id)
	}
}

func (h *eventHub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			slog.Warn("Stream subscriber lagging, event dropped", "id", id, "type", ev.Type)
		}
	}
}

func (h *eventHub) count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *eventHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		close(ch)
		delete(h.subs, id)
	}
}

// pump services the radio every interval while anyone listens: it
// drains the RX FIFO in RX mode and settles pending packets in TX mode.
type pump struct {
	ctrl     *RadioController
	hub      *eventHub
	sink     PacketSink
	interval time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *pump) start() {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.run(ctx)
}

func (p *pump) stop() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
}

func (p *pump) run(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.step(ctx)
		}
	}
}

func (p *pump) step(ctx context.Context) {
	if p.hub.count() == 0 && p.sink == nil {
		return
	}

	events, err := p.ctrl.service()
	for _, ev := range events {
		p.hub.publish(ev)
		if p.sink != nil {
			if err := p.sink.Store(ctx, ev); err != nil {
				slog.Warn("Packet sink store failed", "error", err, "type", ev.Type)
			}
		}
	}
	if err != nil && !errors.Is(err, ErrRadioClosed) {
		slog.Warn("Radio service failed", "error", err)
	}
}
