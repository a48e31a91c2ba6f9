package roomsync

import (
	"context"
	"log/slog"

	"github.com/dukerupert/listacompra/internal/metrics"
	"github.com/dukerupert/listacompra/internal/model"
)

type SupermarketRepository interface {
	ListSupermarkets(ctx context.Context) ([]model.Supermarket, error)
}

// Supermarkets serves the shared reference list, falling back to the
// built-in names when the collection is empty or unreadable.
type Supermarkets struct {
	repo   SupermarketRepository
	feed   *Feed[model.Supermarket]
	logger *slog.Logger
}

func NewSupermarkets(repo SupermarketRepository, notifier Notifier, logger *slog.Logger, m *metrics.Metrics) *Supermarkets {
	s := &Supermarkets{
		repo:   repo,
		logger: logger.With("component", "supermarkets"),
	}
	s.feed = NewFeed[model.Supermarket](CollectionSupermarkets, func(ctx context.Context, _ string) ([]model.Supermarket, error) {
		return s.List(ctx), nil
	}, notifier, logger, m)
	return s
}

func (s *Supermarkets) Feed() *Feed[model.Supermarket] {
	return s.feed
}

func (s *Supermarkets) List(ctx context.Context) []model.Supermarket {
	markets, err := s.repo.ListSupermarkets(ctx)
	if err != nil {
		s.logger.Warn("load supermarkets, using defaults", "error", err)
		return defaults()
	}
	if len(markets) == 0 {
		return defaults()
	}
	return markets
}

func defaults() []model.Supermarket {
	out := make([]model.Supermarket, len(model.DefaultSupermarkets))
	copy(out, model.DefaultSupermarkets)
	return out
}
