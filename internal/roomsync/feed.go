package roomsync

import (
	"context"
	"log/slog"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/metrics"
)

// ListFunc reads the full, ordered record set of a room.
type ListFunc[T any] func(ctx context.Context, roomID string) ([]T, error)

// Feed turns a ListFunc and a Notifier into live room snapshots.
type Feed[T any] struct {
	collection string
	list       ListFunc[T]
	notifier   Notifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

func NewFeed[T any](collection string, list ListFunc[T], notifier Notifier, logger *slog.Logger, m *metrics.Metrics) *Feed[T] {
	return &Feed[T]{
		collection: collection,
		list:       list,
		notifier:   notifier,
		logger:     logger.With("component", "feed", "collection", collection),
		metrics:    m,
	}
}

func (f *Feed[T]) Collection() string {
	return f.collection
}

// Snapshot performs a single read with the same ordering as subscriptions.
func (f *Feed[T]) Snapshot(ctx context.Context, roomID string) ([]T, error) {
	records, err := f.list(ctx, roomID)
	if err != nil {
		return nil, apperror.Unavailable(err)
	}
	if records == nil {
		records = []T{}
	}
	return records, nil
}

// Subscription is a standing query. C receives a full snapshot first and
// again after every change; Errs receives read failures without ending the
// subscription. Both channels close once the subscription ends.
type Subscription[T any] struct {
	C    <-chan []T
	Errs <-chan error

	cancel context.CancelFunc
	done   chan struct{}
}

// Cancel ends the subscription. When it returns no further snapshot will be
// delivered and the change watch has been released.
func (s *Subscription[T]) Cancel() {
	s.cancel()
	<-s.done
}

// Done is closed when the subscription has ended.
func (s *Subscription[T]) Done() <-chan struct{} {
	return s.done
}

func (f *Feed[T]) Subscribe(ctx context.Context, roomID string) *Subscription[T] {
	ctx, cancel := context.WithCancel(ctx)
	out := make(chan []T)
	errs := make(chan error, 1)
	sub := &Subscription[T]{C: out, Errs: errs, cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(sub.done)
		defer close(errs)
		defer close(out)
		f.run(ctx, roomID, out, errs)
	}()

	return sub
}

func (f *Feed[T]) run(ctx context.Context, roomID string, out chan<- []T, errs chan<- error) {
	topic := Topic{Collection: f.collection, RoomID: roomID}
	changes, stop, err := f.notifier.Watch(ctx, topic)
	if err != nil {
		f.fail(errs, apperror.Unavailable(err))
		return
	}
	defer stop()

	f.metrics.SubscriptionStarted(f.collection)
	defer f.metrics.SubscriptionEnded(f.collection)

	for {
		records, err := f.Snapshot(ctx, roomID)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			f.logger.Warn("snapshot read failed", "room", roomID, "error", err)
			f.fail(errs, err)
		} else {
			select {
			case out <- records:
				f.metrics.SnapshotDelivered(f.collection)
			case <-ctx.Done():
				return
			}
		}

		select {
		case <-ctx.Done():
			return
		case _, ok := <-changes:
			if !ok {
				if ctx.Err() == nil {
					f.fail(errs, apperror.ErrBackendUnavailable.WithMessage("change stream ended"))
				}
				return
			}
		}
	}
}

// fail reports err without blocking; a pending unread error is kept.
func (f *Feed[T]) fail(errs chan<- error, err error) {
	select {
	case errs <- err:
	default:
	}
}

// Stream runs a subscription until ctx ends, passing every snapshot with its
// record count, or an error, to emit. It is the shape the websocket transport
// consumes.
func (f *Feed[T]) Stream(ctx context.Context, roomID string, emit func(records any, count int, err error)) {
	sub := f.Subscribe(ctx, roomID)
	defer sub.Cancel()

	errs := sub.Errs
	for {
		select {
		case records, ok := <-sub.C:
			if !ok {
				if errs != nil {
					if err, ok := <-errs; ok {
						emit(nil, 0, err)
					}
				}
				return
			}
			emit(records, len(records), nil)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			emit(nil, 0, err)
		}
	}
}
