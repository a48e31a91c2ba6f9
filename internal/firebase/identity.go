package firebase

import (
	"context"
	"fmt"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/dukerupert/listacompra/internal/model"
)

// IdentityProvider issues anonymous Firebase Auth users: accounts without
// email, phone or password.
type IdentityProvider struct {
	auth *auth.Client
}

func (p *IdentityProvider) SignInAnonymously(ctx context.Context) (*model.Identity, error) {
	u, err := p.auth.CreateUser(ctx, &auth.UserToCreate{})
	if err != nil {
		return nil, fmt.Errorf("create anonymous user: %w", err)
	}
	created := time.Now().UTC()
	if u.UserMetadata != nil && u.UserMetadata.CreationTimestamp > 0 {
		created = time.UnixMilli(u.UserMetadata.CreationTimestamp).UTC()
	}
	return &model.Identity{UID: u.UID, CreatedAt: created}, nil
}

// SignOut deletes the anonymous user. A user that is already gone is not an error.
func (p *IdentityProvider) SignOut(ctx context.Context, uid string) error {
	if err := p.auth.DeleteUser(ctx, uid); err != nil && !auth.IsUserNotFound(err) {
		return fmt.Errorf("delete anonymous user: %w", err)
	}
	return nil
}
