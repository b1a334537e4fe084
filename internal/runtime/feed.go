package runtime

import (
	"sync"

	"nft-stake-vault/internal/domain"
	"nft-stake-vault/internal/observability"
)

// feedBuffer is the per-subscriber channel capacity. Events for a
// subscriber whose buffer is full are dropped.
const feedBuffer = 64

// Feed fans committed stake events out to subscribers.
type Feed struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan domain.StakeEvent
}

// NewFeed creates an empty feed.
func NewFeed() *Feed {
	return &Feed{subs: make(map[int]chan domain.StakeEvent)}
}

// Subscribe registers a subscriber. The returned cancel func closes the
// channel and must be called once.
func (f *Feed) Subscribe() (<-chan domain.StakeEvent, func()) {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	ch := make(chan domain.StakeEvent, feedBuffer)
	f.subs[id] = ch
	n := len(f.subs)
	f.mu.Unlock()
	observability.UpdateEventSubscribers(n)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			f.mu.Lock()
			delete(f.subs, id)
			close(ch)
			n := len(f.subs)
			f.mu.Unlock()
			observability.UpdateEventSubscribers(n)
		})
	}
}

// Publish delivers ev to every subscriber without blocking.
// It returns the number of subscribers that missed the event.
func (f *Feed) Publish(ev domain.StakeEvent) int {
	f.mu.RLock()
	defer f.mu.RUnlock()

	dropped := 0
	for _, ch := range f.subs {
		select {
		case ch <- ev:
		default:
			dropped++
		}
	}
	return dropped
}

// Len returns the number of subscribers.
func (f *Feed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}
