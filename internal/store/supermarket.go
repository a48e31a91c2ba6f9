package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/listacompra/internal/model"
	"github.com/google/uuid"
)

type SupermarketStore struct {
	db *sql.DB
}

func NewSupermarketStore(db *sql.DB) *SupermarketStore {
	return &SupermarketStore{db: db}
}

func (s *SupermarketStore) ListSupermarkets(ctx context.Context) ([]model.Supermarket, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM supermarkets WHERE name <> '' ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list supermarkets: %w", err)
	}
	defer rows.Close()

	var markets []model.Supermarket
	for rows.Next() {
		var m model.Supermarket
		if err := rows.Scan(&m.ID, &m.Name); err != nil {
			return nil, fmt.Errorf("scan supermarket: %w", err)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

func (s *SupermarketStore) CreateSupermarket(ctx context.Context, name string) (*model.Supermarket, error) {
	m := model.Supermarket{ID: uuid.NewString(), Name: name}
	if _, err := s.db.ExecContext(ctx, `INSERT INTO supermarkets (id, name) VALUES (?, ?)`, m.ID, m.Name); err != nil {
		return nil, fmt.Errorf("insert supermarket: %w", err)
	}
	return &m, nil
}
