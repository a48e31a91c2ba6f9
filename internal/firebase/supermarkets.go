package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/model"
	"google.golang.org/api/iterator"
)

type SupermarketStore struct {
	fs *firestore.Client
}

// ListSupermarkets returns named supermarkets ordered by name.
func (s *SupermarketStore) ListSupermarkets(ctx context.Context) ([]model.Supermarket, error) {
	iter := s.fs.Collection(collectionSupermarkets).OrderBy("name", firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var markets []model.Supermarket
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list supermarkets: %w", err)
		}
		var d supermarketDoc
		if err := snap.DataTo(&d); err != nil {
			return nil, fmt.Errorf("decode supermarket %s: %w", snap.Ref.ID, err)
		}
		if d.Name == "" {
			continue
		}
		markets = append(markets, model.Supermarket{ID: snap.Ref.ID, Name: d.Name})
	}
	return markets, nil
}

func (s *SupermarketStore) CreateSupermarket(ctx context.Context, name string) (*model.Supermarket, error) {
	ref, _, err := s.fs.Collection(collectionSupermarkets).Add(ctx, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("insert supermarket: %w", err)
	}
	return &model.Supermarket{ID: ref.ID, Name: name}, nil
}
