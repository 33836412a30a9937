package broadcast

import (
	"context"
	"sync"

	log "github.com/sirupsen/logrus"
)

// Bus is an in-process broadcast channel with the same fire-and-forget
// semantics as the Kafka topic. It serves single-node runs and tests.
type Bus struct {
	mu   sync.Mutex
	subs map[int]chan Event
	next int
}

func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a listener and returns its event channel together with
// an unsubscribe function.
func (b *Bus) Subscribe(buf int) (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, buf)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if ch, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(ch)
		}
	}

	return ch, cancel
}

// Publish delivers the event to every subscriber. A subscriber with a full
// buffer misses the event: delivery is not guaranteed, a stale view lasts
// only until the next event.
func (b *Bus) Publish(ctx context.Context, senderID, tag string) error {
	ev, err := NewEvent(senderID, tag)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			log.Warnf("[broadcast] subscriber %d is not keeping up, event %s dropped", id, ev.ID)
		}
	}

	return nil
}
