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

type PriceStore struct {
	db *sql.DB
}

func NewPriceStore(db *sql.DB) *PriceStore {
	return &PriceStore{db: db}
}

func scanPrice(s scanner) (*model.PriceEntry, error) {
	var p model.PriceEntry
	var supermarket sql.NullString
	var createdAt int64
	var updatedAt sql.NullInt64
	if err := s.Scan(&p.ID, &p.RoomID, &p.Product, &p.Price, &supermarket, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Supermarket = stringPtr(supermarket)
	p.CreatedAt = decodeTime(createdAt)
	p.UpdatedAt = decodeNullTime(updatedAt)
	return &p, nil
}

const priceCols = `id, room_id, product, price, supermarket, created_at, updated_at`

// ListPrices returns the room's price entries, newest first.
func (s *PriceStore) ListPrices(ctx context.Context, roomID string) ([]model.PriceEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+priceCols+` FROM prices WHERE room_id = ? ORDER BY created_at DESC, rowid DESC`,
		roomID,
	)
	if err != nil {
		return nil, fmt.Errorf("list prices: %w", err)
	}
	defer rows.Close()

	var prices []model.PriceEntry
	for rows.Next() {
		p, err := scanPrice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan price: %w", err)
		}
		prices = append(prices, *p)
	}
	return prices, rows.Err()
}

func (s *PriceStore) GetPrice(ctx context.Context, roomID, id string) (*model.PriceEntry, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+priceCols+` FROM prices WHERE id = ? AND room_id = ?`, id, roomID)
	p, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get price: %w", err)
	}
	return p, nil
}

// FindPriceByProduct returns the first entry whose product matches exactly.
func (s *PriceStore) FindPriceByProduct(ctx context.Context, roomID, product string) (*model.PriceEntry, error) {
	return findPriceByProduct(ctx, s.db, roomID, product)
}

func findPriceByProduct(ctx context.Context, q querier, roomID, product string) (*model.PriceEntry, error) {
	row := q.QueryRowContext(ctx,
		`SELECT `+priceCols+` FROM prices WHERE room_id = ? AND product = ? ORDER BY created_at ASC, rowid ASC LIMIT 1`,
		roomID, product,
	)
	p, err := scanPrice(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find price by product: %w", err)
	}
	return p, nil
}

func (s *PriceStore) CreatePrice(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, error) {
	return createPrice(ctx, s.db, roomID, in)
}

func createPrice(ctx context.Context, q querier, roomID string, in model.PriceInput) (*model.PriceEntry, error) {
	p := model.PriceEntry{
		ID:          uuid.NewString(),
		Product:     in.Product,
		Price:       in.Price,
		Supermarket: in.Supermarket,
		RoomID:      roomID,
		CreatedAt:   now(),
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO prices (id, room_id, product, price, supermarket, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.RoomID, p.Product, p.Price.String(), nullString(p.Supermarket), encodeTime(p.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert price: %w", err)
	}
	return &p, nil
}

// UpdatePrice merges the patch into the entry and stamps updated_at. Renaming
// onto a product another entry in the room already holds is a conflict; the
// lookup and write share a transaction.
func (s *PriceStore) UpdatePrice(ctx context.Context, roomID, id string, patch model.PricePatch) error {
	if patch.Product == nil {
		return updatePrice(ctx, s.db, roomID, id, patch)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := findPriceByProduct(ctx, tx, roomID, *patch.Product)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != id {
		return fmt.Errorf("rename price %s to %q: %w", id, *patch.Product, apperror.ErrConflict)
	}
	if err := updatePrice(ctx, tx, roomID, id, patch); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func updatePrice(ctx context.Context, q querier, roomID, id string, patch model.PricePatch) error {
	sets := []string{"updated_at = ?"}
	args := []any{encodeTime(now())}
	if patch.Product != nil {
		sets = append(sets, "product = ?")
		args = append(args, *patch.Product)
	}
	if patch.Price != nil {
		sets = append(sets, "price = ?")
		args = append(args, patch.Price.String())
	}
	switch {
	case patch.ClearSupermarket:
		sets = append(sets, "supermarket = NULL")
	case patch.Supermarket != nil:
		sets = append(sets, "supermarket = ?")
		args = append(args, *patch.Supermarket)
	}
	args = append(args, id, roomID)

	result, err := q.ExecContext(ctx,
		`UPDATE prices SET `+strings.Join(sets, ", ")+` WHERE id = ? AND room_id = ?`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("update price: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update price %s: %w", id, apperror.ErrRecordNotFound)
	}
	return nil
}

// UpsertPrice updates the entry for the same product in the room, or creates
// one when none exists. Lookup and write share a transaction.
func (s *PriceStore) UpsertPrice(ctx context.Context, roomID string, in model.PriceInput) (*model.PriceEntry, bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	existing, err := findPriceByProduct(ctx, tx, roomID, in.Product)
	if err != nil {
		return nil, false, err
	}

	if existing == nil {
		p, err := createPrice(ctx, tx, roomID, in)
		if err != nil {
			return nil, false, err
		}
		if err := tx.Commit(); err != nil {
			return nil, false, fmt.Errorf("commit: %w", err)
		}
		return p, true, nil
	}

	patch := model.PricePatch{Price: &in.Price, Supermarket: in.Supermarket, ClearSupermarket: in.Supermarket == nil}
	if err := updatePrice(ctx, tx, roomID, existing.ID, patch); err != nil {
		return nil, false, err
	}
	updated, err := scanPrice(tx.QueryRowContext(ctx, `SELECT `+priceCols+` FROM prices WHERE id = ?`, existing.ID))
	if err != nil {
		return nil, false, fmt.Errorf("reload price: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}
	return updated, false, nil
}

// DeletePrice removes the entry; deleting an absent entry is not an error.
func (s *PriceStore) DeletePrice(ctx context.Context, roomID, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM prices WHERE id = ? AND room_id = ?`, id, roomID); err != nil {
		return fmt.Errorf("delete price: %w", err)
	}
	return nil
}
