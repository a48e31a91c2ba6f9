package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
	"google.golang.org/api/iterator"
)

type ItemStore struct {
	fs *firestore.Client
}

func (s *ItemStore) roomQuery(roomID string) firestore.Query {
	return s.fs.Collection(collectionItems).Where("roomId", "==", roomID)
}

// ListItems returns the room's items, newest first.
func (s *ItemStore) ListItems(ctx context.Context, roomID string) ([]model.Item, error) {
	iter := s.roomQuery(roomID).OrderBy("createdAt", firestore.Desc).Documents(ctx)
	defer iter.Stop()

	var items []model.Item
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		item, err := decodeItem(snap)
		if err != nil {
			return nil, fmt.Errorf("decode item %s: %w", snap.Ref.ID, err)
		}
		items = append(items, *item)
	}
	return items, nil
}

// GetItem returns nil when the item does not exist in the room.
func (s *ItemStore) GetItem(ctx context.Context, roomID, id string) (*model.Item, error) {
	snap, err := s.fs.Collection(collectionItems).Doc(id).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	item, err := decodeItem(snap)
	if err != nil {
		return nil, fmt.Errorf("decode item: %w", err)
	}
	if item.RoomID != roomID {
		return nil, nil
	}
	return item, nil
}

func (s *ItemStore) CreateItem(ctx context.Context, roomID, name string) (*model.Item, error) {
	ref, _, err := s.fs.Collection(collectionItems).Add(ctx, map[string]any{
		"name":      name,
		"completed": false,
		"createdAt": firestore.ServerTimestamp,
		"roomId":    roomID,
	})
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	snap, err := ref.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reload item: %w", err)
	}
	return decodeItem(snap)
}

func (s *ItemStore) UpdateItem(ctx context.Context, roomID, id string, patch model.ItemPatch) error {
	existing, err := s.GetItem(ctx, roomID, id)
	if err != nil {
		return err
	}
	if existing == nil {
		return fmt.Errorf("update item %s: %w", id, apperror.ErrRecordNotFound)
	}

	var updates []firestore.Update
	if patch.Name != nil {
		updates = append(updates, firestore.Update{Path: "name", Value: *patch.Name})
	}
	if patch.Completed != nil {
		updates = append(updates, firestore.Update{Path: "completed", Value: *patch.Completed})
	}
	if len(updates) == 0 {
		return nil
	}
	if _, err := s.fs.Collection(collectionItems).Doc(id).Update(ctx, updates); err != nil {
		if isNotFound(err) {
			return fmt.Errorf("update item %s: %w", id, apperror.ErrRecordNotFound)
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// DeleteItem removes the item if it belongs to the room.
func (s *ItemStore) DeleteItem(ctx context.Context, roomID, id string) error {
	existing, err := s.GetItem(ctx, roomID, id)
	if err != nil || existing == nil {
		return err
	}
	if _, err := s.fs.Collection(collectionItems).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
