package firebase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/roomsync"
)

// Notifier turns Firestore query listeners into change signals. Every query
// snapshot, including the first, produces one signal.
type Notifier struct {
	fs     *firestore.Client
	logger *slog.Logger
}

func (n *Notifier) query(topic roomsync.Topic) (firestore.Query, error) {
	switch topic.Collection {
	case roomsync.CollectionItems:
		return n.fs.Collection(collectionItems).Where("roomId", "==", topic.RoomID), nil
	case roomsync.CollectionPrices:
		return n.fs.Collection(collectionPrices).Where("roomId", "==", topic.RoomID), nil
	case roomsync.CollectionSupermarkets:
		return n.fs.Collection(collectionSupermarkets).Query, nil
	default:
		return firestore.Query{}, fmt.Errorf("unknown collection %q", topic.Collection)
	}
}

// Watch listens on the topic's query until stop is called or ctx ends. The
// returned channel is closed when the listener fails.
func (n *Notifier) Watch(ctx context.Context, topic roomsync.Topic) (<-chan struct{}, func(), error) {
	q, err := n.query(topic)
	if err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	it := q.Snapshots(ctx)
	ch := make(chan struct{}, 1)
	done := make(chan struct{})

	go func() {
		defer close(done)
		defer close(ch)
		defer it.Stop()
		for {
			if _, err := it.Next(); err != nil {
				if ctx.Err() == nil {
					n.logger.Warn("listener ended", "collection", topic.Collection, "room", topic.RoomID, "error", err)
				}
				return
			}
			select {
			case ch <- struct{}{}:
			default:
			}
		}
	}()

	var once sync.Once
	stop := func() {
		once.Do(func() {
			cancel()
			<-done
		})
	}
	return ch, stop, nil
}
