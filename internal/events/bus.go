package events

import (
	"sync"

	"github.com/JJVergara/evasystem-sub001/internal/models"
	"github.com/sirupsen/logrus"
)

// Bus is a fire-and-forget domain event channel. Publishers never block:
// when the consumer falls behind the event is dropped and logged, matching
// the notification layer's best-effort contract.
type Bus struct {
	mu     sync.RWMutex
	ch     chan models.Event
	closed bool
}

// NewBus creates a bus with the given buffer size.
func NewBus(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{ch: make(chan models.Event, buffer)}
}

// Publish delivers an event without blocking the pipeline. Events published
// during shutdown are dropped.
func (b *Bus) Publish(event models.Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		logrus.Debugf("Event bus closed, dropped %s event for org %s", event.Type, event.OrganizationID)
		return
	}

	select {
	case b.ch <- event:
	default:
		logrus.Warnf("Event bus full, dropped %s event for org %s", event.Type, event.OrganizationID)
	}
}

// Events returns the consumer side of the bus. The channel is closed by
// Close, so consumers drain buffered events and then terminate.
func (b *Bus) Events() <-chan models.Event {
	return b.ch
}

// Close shuts the bus down. Idempotent; later Publish calls become no-ops.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.ch)
}
