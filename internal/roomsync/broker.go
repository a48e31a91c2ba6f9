package roomsync

import (
	"context"
	"sync"
)

const (
	CollectionItems        = "items"
	CollectionPrices       = "prices"
	CollectionSupermarkets = "supermarkets"
)

// Topic names the records of one collection within one room. Supermarkets
// are shared across rooms and use an empty RoomID.
type Topic struct {
	Collection string
	RoomID     string
}

// Notifier signals that records under a topic changed. The returned channel
// is closed when the underlying change stream stops; stop releases the watch
// and returns once it is released.
type Notifier interface {
	Watch(ctx context.Context, topic Topic) (changes <-chan struct{}, stop func(), err error)
}

// Publisher announces a change made through this process.
type Publisher interface {
	Publish(topic Topic)
}

// Broker is the in-process Notifier for backends without their own change
// stream. Signals are coalesced: a watcher that has not consumed the last
// signal does not queue another.
type Broker struct {
	mu       sync.Mutex
	watchers map[Topic]map[chan struct{}]struct{}
}

func NewBroker() *Broker {
	return &Broker{
		watchers: make(map[Topic]map[chan struct{}]struct{}),
	}
}

func (b *Broker) Watch(_ context.Context, topic Topic) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)

	b.mu.Lock()
	set, ok := b.watchers[topic]
	if !ok {
		set = make(map[chan struct{}]struct{})
		b.watchers[topic] = set
	}
	set[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if set := b.watchers[topic]; set != nil {
				delete(set, ch)
				if len(set) == 0 {
					delete(b.watchers, topic)
				}
			}
			close(ch)
		})
	}
	return ch, stop, nil
}

func (b *Broker) Publish(topic Topic) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.watchers[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// WatcherCount returns the number of live watchers for a topic.
func (b *Broker) WatcherCount(topic Topic) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.watchers[topic])
}
