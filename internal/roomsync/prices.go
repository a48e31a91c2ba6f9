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

type PriceRepository interface {
	ListPrices(ctx context.Context, roomID string) ([]model.PriceEntry, error)
	GetPrice(ctx context.Context, roomID, id string) (*model.PriceEntry, error)
	FindPriceByProduct(ctx context.Context, roomID, product string) (*model.PriceEntry, error)
	CreatePrice(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, error)
	UpdatePrice(ctx context.Context, roomID, id string, patch model.PricePatch) error
	DeletePrice(ctx context.Context, roomID, id string) error
}

// PriceUpserter is implemented by backends that can look up and write a
// price entry atomically.
type PriceUpserter interface {
	UpsertPrice(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, bool, error)
}

var errPriceExists = apperror.ErrConflict.WithMessage("a price for this product already exists")

type Prices struct {
	repo    PriceRepository
	items   *Items
	pub     Publisher
	feed    *Feed[model.PriceEntry]
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func NewPrices(repo PriceRepository, items *Items, notifier Notifier, pub Publisher, logger *slog.Logger, m *metrics.Metrics) *Prices {
	return &Prices{
		repo:    repo,
		items:   items,
		pub:     pub,
		feed:    NewFeed[model.PriceEntry](CollectionPrices, repo.ListPrices, notifier, logger, m),
		logger:  logger.With("component", "prices"),
		metrics: m,
	}
}

func (s *Prices) Feed() *Feed[model.PriceEntry] {
	return s.feed
}

func (s *Prices) Subscribe(ctx context.Context, roomID string) *Subscription[model.PriceEntry] {
	return s.feed.Subscribe(ctx, roomID)
}

func (s *Prices) Snapshot(ctx context.Context, roomID string) ([]model.PriceEntry, error) {
	return s.feed.Snapshot(ctx, roomID)
}

// Upsert records a price for a product. An existing entry for the same
// product in the room gets the new price and supermarket; otherwise a new
// entry is created. The bool reports whether an entry was created.
func (s *Prices) Upsert(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, bool, error) {
	in.Product = strings.TrimSpace(in.Product)
	if in.Product == "" {
		return nil, false, apperror.Validation("product is required")
	}
	if !in.Price.IsPositive() {
		return nil, false, apperror.Validation(model.ErrPriceNotPositive.Error())
	}
	in.Supermarket = model.NormalizeSupermarket(in.Supermarket)

	entry, created, err := s.upsert(ctx, roomID, in)
	s.done(roomID, "upsert", err)
	if err != nil {
		return nil, false, apperror.Unavailable(fmt.Errorf("upsert price: %w", err))
	}
	return entry, created, nil
}

func (s *Prices) upsert(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, bool, error) {
	if u, ok := s.repo.(PriceUpserter); ok {
		return u.UpsertPrice(ctx, roomID, in)
	}

	existing, err := s.repo.FindPriceByProduct(ctx, roomID, in.Product)
	if err != nil {
		return nil, false, err
	}
	if existing == nil {
		entry, err := s.repo.CreatePrice(ctx, roomID, in)
		return entry, true, err
	}

	patch := model.PricePatch{Price: &in.Price, Supermarket: in.Supermarket, ClearSupermarket: in.Supermarket == nil}
	if err := s.repo.UpdatePrice(ctx, roomID, existing.ID, patch); err != nil {
		return nil, false, err
	}
	entry, err := s.repo.GetPrice(ctx, roomID, existing.ID)
	return entry, false, err
}

func (s *Prices) Update(ctx context.Context, roomID, id string, patch model.PricePatch) (*model.PriceEntry, error) {
	if patch.Product != nil {
		product := strings.TrimSpace(*patch.Product)
		if product == "" {
			return nil, apperror.Validation("product is required")
		}
		patch.Product = &product
	}
	if patch.Price != nil && !patch.Price.IsPositive() {
		return nil, apperror.Validation(model.ErrPriceNotPositive.Error())
	}
	if patch.Supermarket != nil {
		patch.Supermarket = model.NormalizeSupermarket(patch.Supermarket)
		if patch.Supermarket == nil {
			patch.ClearSupermarket = true
		}
	}
	if patch.Empty() {
		return nil, apperror.Validation("nothing to update")
	}
	if patch.Product != nil {
		other, err := s.repo.FindPriceByProduct(ctx, roomID, *patch.Product)
		if err != nil {
			return nil, apperror.Unavailable(fmt.Errorf("update price: %w", err))
		}
		if other != nil && other.ID != id {
			return nil, errPriceExists
		}
	}

	err := s.repo.UpdatePrice(ctx, roomID, id, patch)
	s.done(roomID, "update", err)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("update price: %w", err))
	}
	return s.get(ctx, roomID, id)
}

// Delete removes the entry. Deleting an absent entry succeeds.
func (s *Prices) Delete(ctx context.Context, roomID, id string) error {
	err := s.repo.DeletePrice(ctx, roomID, id)
	s.done(roomID, "delete", err)
	if err != nil {
		return apperror.Unavailable(fmt.Errorf("delete price: %w", err))
	}
	return nil
}

// AddToList copies the entry's product name into a new shopping list item.
// The item keeps no link to the price entry.
func (s *Prices) AddToList(ctx context.Context, roomID, id string) (*model.Item, error) {
	entry, err := s.get(ctx, roomID, id)
	if err != nil {
		return nil, err
	}
	return s.items.Create(ctx, roomID, entry.Product)
}

func (s *Prices) get(ctx context.Context, roomID, id string) (*model.PriceEntry, error) {
	entry, err := s.repo.GetPrice(ctx, roomID, id)
	if err != nil {
		return nil, apperror.Unavailable(fmt.Errorf("get price: %w", err))
	}
	if entry == nil {
		return nil, apperror.ErrRecordNotFound
	}
	return entry, nil
}

func (s *Prices) done(roomID, op string, err error) {
	s.metrics.Mutation(CollectionPrices, op, err)
	if err != nil {
		s.logger.Error("price mutation failed", "room", roomID, "op", op, "error", err)
		return
	}
	if s.pub != nil {
		s.pub.Publish(Topic{Collection: CollectionPrices, RoomID: roomID})
	}
}
