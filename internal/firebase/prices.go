package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
	"google.golang.org/api/iterator"
)

// PriceStore has no transactional upsert: the lookup and the write of an
// upsert are separate calls.
type PriceStore struct {
	fs *firestore.Client
}

func (s *PriceStore) collect(iter *firestore.DocumentIterator) ([]model.PriceEntry, error) {
	defer iter.Stop()
	var prices []model.PriceEntry
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		p, err := decodePrice(snap)
		if err != nil {
			return nil, fmt.Errorf("decode price %s: %w", snap.Ref.ID, err)
		}
		prices = append(prices, *p)
	}
	return prices, nil
}

// ListPrices returns the room's price entries, newest first.
func (s *PriceStore) ListPrices(ctx context.Context, roomID string) ([]model.PriceEntry, error) {
	q := s.fs.Collection(collectionPrices).Where("roomId", "==", roomID).OrderBy("createdAt", firestore.Desc)
	prices, err := s.collect(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	return prices, nil
}

func (s *PriceStore) GetPrice(ctx context.Context, roomID, id string) (*model.PriceEntry, error) {
	snap, err := s.fs.Collection(collectionPrices).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	p, err := decodePrice(snap)
	if err != nil {
		return nil, fmt.Errorf("decode price: %w", err)
	}
	if p.RoomID != roomID {
		return nil, nil
	}
	return p, nil
}

// FindPriceByProduct returns the oldest entry with exactly this product name.
func (s *PriceStore) FindPriceByProduct(ctx context.Context, roomID, product string) (*model.PriceEntry, error) {
	q := s.fs.Collection(collectionPrices).
		Where("roomId", "==", roomID).
		Where("product", "==", product).
		OrderBy("createdAt", firestore.Asc).
		Limit(1)
	prices, err := s.collect(q.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("find price: %w", err)
	}
	if len(prices) == 0 {
		return nil, nil
	}
	return &prices[0], nil
}

func (s *PriceStore) CreatePrice(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, error) {
	ref, _, err := s.fs.Collection(collectionPrices).Add(ctx, map[string]any{
		"product":     in.Product,
		"price":       priceValue(in.Price),
		"supermarket": supermarketValue(in.Supermarket),
		"roomId":      roomID,
		"createdAt":   firestore.ServerTimestamp,
	})
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload price: %w", err)
	}
	return decodePrice(snap)
}

func (s *PriceStore) UpdatePrice(ctx context.Context, roomID, id string, patch model.PricePatch) error {
	existing, err := s.GetPrice(ctx, roomID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update price %s: %w", id, apperror.ErrRecordNotFound)
	}
	if patch.Product != nil {
		other, err := s.FindPriceByProduct(ctx, roomID, *patch.Product)
		if err != nil {
			return err
		}
		if other != nil && other.ID != id {
			return fmt.Errorf("rename price %s to %q: %w", id, *patch.Product, apperror.ErrConflict)
		}
	}

	updates := []firestore.Update{{Path: "updatedAt", Value: firestore.ServerTimestamp}}
	if patch.Product != nil {
		updates = append(updates, firestore.Update{Path: "product", Value: *patch.Product})
	}
	if patch.Price != nil {
		updates = append(updates, firestore.Update{Path: "price", Value: priceValue(*patch.Price)})
	}
	switch {
	case patch.ClearSupermarket:
		updates = append(updates, firestore.Update{Path: "supermarket", Value: nil})
	case patch.Supermarket != nil:
		updates = append(updates, firestore.Update{Path: "supermarket", Value: *patch.Supermarket})
	}

	if _, err := s.fs.Collection(collectionPrices).Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("update price %s: %w", id, apperror.ErrRecordNotFound)
		}
		return fmt.Errorf("update price: %w", err)
	}
	return nil
}

func (s *PriceStore) DeletePrice(ctx context.Context, roomID, id string) error {
	existing, err := s.GetPrice(ctx, roomID, id)
	if err != nil || existing == nil {
		return err
	}
	if _, err := s.fs.Collection(collectionPrices).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete price: %w", err)
	}
	return nil
}
