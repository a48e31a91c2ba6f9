package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/google/uuid"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(s scanner) (*model.Item, error) {
	var item model.Item
	var completed int
	var createdAt int64
	if err := s.Scan(&item.ID, &item.RoomID, &item.Name, &completed, &createdAt); err != nil {
		return nil, err
	}
	item.Completed = completed != 0
	item.CreatedAt = decodeTime(createdAt)
	return &item, nil
}

const itemCols = `id, room_id, name, completed, created_at`

// ListItems returns the room's items, newest first.
func (s *ItemStore) ListItems(ctx context.Context, roomID string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM items WHERE room_id = ? ORDER BY created_at DESC, rowid DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	return items, rows.Err()
}

func (s *ItemStore) GetItem(ctx context.Context, roomID, id string) (*model.Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemCols+` FROM items WHERE id = ? AND room_id = ?`, id, roomID)
	item, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

func (s *ItemStore) CreateItem(ctx context.Context, roomID, name string) (*model.Item, error) {
	item := model.Item{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now(),
		RoomID:    roomID,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO items (id, room_id, name, completed, created_at) VALUES (?, ?, ?, 0, ?)`,
		item.ID, item.RoomID, item.Name, encodeTime(item.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	return &item, nil
}

// UpdateItem merges the non-nil patch fields into the item.
func (s *ItemStore) UpdateItem(ctx context.Context, roomID, id string, patch model.ItemPatch) error {
	var sets []string
	var args []any
	if patch.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *patch.Name)
	}
	if patch.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, boolInt(*patch.Completed))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id, roomID)

	result, err := s.db.ExecContext(ctx,
		`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ? AND room_id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update item: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update item %s: %w", id, apperror.ErrRecordNotFound)
	}
	return nil
}

// DeleteItem removes the item; deleting an absent item is not an error.
func (s *ItemStore) DeleteItem(ctx context.Context, roomID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND room_id = ?`, id, roomID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
