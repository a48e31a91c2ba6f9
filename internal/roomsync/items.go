// Package roomsync serves room-scoped records as live snapshots and applies
// mutations on behalf of a room.
package roomsync

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/metrics"
	"github.com/dukerupert/listacompra/internal/model"
)

type ItemRepository interface {
	ListItems(ctx context.Context, roomID string) ([]model.Item, error)
	GetItem(ctx context.Context, roomID, id string) (*model.Item, error)
	CreateItem(ctx context.Context, roomID, name string) (*model.Item, error)
	UpdateItem(ctx context.Context, roomID, id string, patch model.ItemPatch) error
	DeleteItem(ctx context.Context, roomID, id string) error
}

type Items struct {
	repo    ItemRepository
	pub     Publisher
	feed    *Feed[model.Item]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewItems wires the item service. pub may be nil when the backend reports
// its own changes through notifier.
func NewItems(repo ItemRepository, notifier Notifier, pub Publisher, logger *slog.Logger, m *metrics.Metrics) *Items {
	return &Items{
		repo:    repo,
		pub:     pub,
		feed:    NewFeed[model.Item](CollectionItems, repo.ListItems, notifier, logger, m),
		logger:  logger.With("component", "items"),
		metrics: m,
	}
}

func (s *Items) Feed() *Feed[model.Item] {
	return s.feed
}

func (s *Items) Subscribe(ctx context.Context, roomID string) *Subscription[model.Item] {
	return s.feed.Subscribe(ctx, roomID)
}

func (s *Items) Snapshot(ctx context.Context, roomID string) ([]model.Item, error) {
	return s.feed.Snapshot(ctx, roomID)
}

func (s *Items) Create(ctx context.Context, roomID, name string) (*model.Item, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperror.Validation("item name is required")
	}

	item, err := s.repo.CreateItem(ctx, roomID, name)
	s.done(roomID, "create", err)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("create item: %w", err))
	}
	return item, nil
}

// Update merges the patch into the item and returns the result.
func (s *Items) Update(ctx context.Context, roomID, id string, patch model.ItemPatch) (*model.Item, error) {
	if patch.Name != nil {
		name := strings.TrimSpace(*patch.Name)
		if name == "" {
			return nil, apperror.Validation("item name is required")
		}
		patch.Name = &name
	}
	if patch.Empty() {
		return nil, apperror.Validation("nothing to update")
	}

	err := s.repo.UpdateItem(ctx, roomID, id, patch)
	s.done(roomID, "update", err)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("update item: %w", err))
	}
	return s.get(ctx, roomID, id)
}

// Toggle flips the completed flag and leaves every other field unchanged.
func (s *Items) Toggle(ctx context.Context, roomID, id string) (*model.Item, error) {
	item, err := s.get(ctx, roomID, id)
	if err != nil {
		return nil, err
	}

	completed := !item.Completed
	err = s.repo.UpdateItem(ctx, roomID, id, model.ItemPatch{Completed: &completed})
	s.done(roomID, "toggle", err)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("toggle item: %w", err))
	}
	item.Completed = completed
	return item, nil
}

// Delete removes the item. Deleting an absent item succeeds.
func (s *Items) Delete(ctx context.Context, roomID, id string) error {
	err := s.repo.DeleteItem(ctx, roomID, id)
	s.done(roomID, "delete", err)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("delete item: %w", err))
	}
	return nil
}

func (s *Items) get(ctx context.Context, roomID, id string) (*model.Item, error) {
	item, err := s.repo.GetItem(ctx, roomID, id)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("get item: %w", err))
	}
	if item == nil {
		return nil, apperror.ErrRecordNotFound
	}
	return item, nil
}

func (s *Items) done(roomID, op string, err error) {
	s.metrics.Mutation(CollectionItems, op, err)
	if err != nil {
		s.logger.Error("item mutation failed", "room", roomID, "op", op, "error", err)
		return
	}
	if s.pub != nil {
		s.pub.Publish(Topic{Collection: CollectionItems, RoomID: roomID})
	}
}
