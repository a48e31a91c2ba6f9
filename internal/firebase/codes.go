package firebase

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CodeStore keeps access codes as documents keyed by the code itself.
type CodeStore struct {
	fs *firestore.Client
}

func (s *CodeStore) GetCode(ctx context.Context, code string) (*model.AccessCode, error) {
	snap, err := s.fs.Collection(collectionCodes).Doc(code).Get(ctx)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get code: %w", err)
	}
	c, err := decodeCode(snap)
	if err != nil {
		return nil, fmt.Errorf("decode code: %w", err)
	}
	return c, nil
}

// TouchCode refreshes lastActive and defaults a missing active flag to true.
// A code that does not exist is left absent.
func (s *CodeStore) TouchCode(ctx context.Context, code string) error {
	ref := s.fs.Collection(collectionCodes).Doc(code)
	err := s.fs.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if isNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		c, err := decodeCode(snap)
		if err != nil {
			return err
		}
		return tx.Set(ref, map[string]any{
			"lastActive": firestore.ServerTimestamp,
			"active":     c.IsActive(),
		}, firestore.MergeAll)
	})
	if err != nil {
		return fmt.Errorf("touch code: %w", err)
	}
	return nil
}

func (s *CodeStore) CreateCode(ctx context.Context, code string, active bool) (*model.AccessCode, error) {
	_, err := s.fs.Collection(collectionCodes).Doc(code).Create(ctx, map[string]any{"active": active})
	if status.Code(err) == codes.AlreadyExists {
		return nil, fmt.Errorf("create code: %w", apperror.ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("create code: %w", err)
	}
	return s.GetCode(ctx, code)
}

func (s *CodeStore) SetCodeActive(ctx context.Context, code string, active bool) error {
	_, err := s.fs.Collection(collectionCodes).Doc(code).Update(ctx, []firestore.Update{
		{Path: "active", Value: active},
	})
	if isNotFound(err) {
		return fmt.Errorf("set code active: %w", apperror.ErrCodeNotFound)
	}
	if err != nil {
		return fmt.Errorf("set code active: %w", err)
	}
	return nil
}

func (s *CodeStore) ListCodes(ctx context.Context) ([]model.AccessCode, error) {
	iter := s.fs.Collection(collectionCodes).OrderBy(firestore.DocumentID, firestore.Asc).Documents(ctx)
	defer iter.Stop()

	var out []model.AccessCode
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list codes: %w", err)
		}
		c, err := decodeCode(snap)
		if err != nil {
			return nil, fmt.Errorf("decode code %s: %w", snap.Ref.ID, err)
		}
		out = append(out, *c)
	}
	return out, nil
}
