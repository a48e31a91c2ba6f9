package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
)

type CodeStore struct {
	db *sql.DB
}

func NewCodeStore(db *sql.DB) *CodeStore {
	return &CodeStore{db: db}
}

func scanCode(s scanner) (*model.AccessCode, error) {
	var c model.AccessCode
	var active sql.NullInt64
	var lastActive sql.NullInt64
	if err := s.Scan(&c.Code, &active, &lastActive); err != nil {
		return nil, err
	}
	if active.Valid {
		v := active.Int64 != 0
		c.Active = &v
	}
	c.LastActive = decodeNullTime(lastActive)
	return &c, nil
}

const codeCols = `code, active, last_active`

// GetCode returns the code record, or nil if it does not exist.
func (s *CodeStore) GetCode(ctx context.Context, code string) (*model.AccessCode, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+codeCols+` FROM codes WHERE code = ?`, code)
	c, err := scanCode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	return c, nil
}

// TouchCode refreshes last_active and defaults a missing active flag to true.
func (s *CodeStore) TouchCode(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE codes SET last_active = ?, active = COALESCE(active, 1) WHERE code = ?`,
		encodeTime(now()), code,
	)
	if err != nil {
		return fmt.Errorf("touch code: %w", err)
	}
	return nil
}

func (s *CodeStore) CreateCode(ctx context.Context, code string, active bool) (*model.AccessCode, error) {
	_, err := s.db.ExecContext(ctx, `INSERT INTO codes (code, active) VALUES (?, ?)`, code, boolInt(active))
	if err != nil {
		return nil, fmt.Errorf("insert code: %w", err)
	}
	return s.GetCode(ctx, code)
}

func (s *CodeStore) SetCodeActive(ctx context.Context, code string, active bool) error {
	result, err := s.db.ExecContext(ctx, `UPDATE codes SET active = ? WHERE code = ?`, boolInt(active), code)
	if err != nil {
		return fmt.Errorf("set code active: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set code active: %w", apperror.ErrCodeNotFound)
	}
	return nil
}

func (s *CodeStore) ListCodes(ctx context.Context) ([]model.AccessCode, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+codeCols+` FROM codes ORDER BY code ASC`)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()

	var codes []model.AccessCode
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan code: %w", err)
		}
		codes = append(codes, *c)
	}
	return codes, rows.Err()
}
