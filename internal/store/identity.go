package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/listacompra/internal/model"
	"github.com/google/uuid"
)

// IdentityStore is the local anonymous identity provider.
type IdentityStore struct {
	db *sql.DB
}

func NewIdentityStore(db *sql.DB) *IdentityStore {
	return &IdentityStore{db: db}
}

func (s *IdentityStore) SignInAnonymously(ctx context.Context) (*model.Identity, error) {
	id := model.Identity{UID: uuid.NewString(), CreatedAt: now()}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO identities (uid, created_at) VALUES (?, ?)`,
		id.UID, encodeTime(id.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert identity: %w", err)
	}
	return &id, nil
}

func (s *IdentityStore) SignOut(ctx context.Context, uid string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM identities WHERE uid = ?`, uid); err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	return nil
}

// GetIdentity returns the identity, or nil once it has been signed out.
func (s *IdentityStore) GetIdentity(ctx context.Context, uid string) (*model.Identity, error) {
	var id model.Identity
	var createdAt int64
	err := s.db.QueryRowContext(ctx, `SELECT uid, created_at FROM identities WHERE uid = ?`, uid).
		Scan(&id.UID, &createdAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get identity: %w", err)
	}
	id.CreatedAt = decodeTime(createdAt)
	return &id, nil
}
