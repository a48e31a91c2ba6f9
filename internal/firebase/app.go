// Package firebase runs the service on Cloud Firestore and Firebase Auth.
// Collections are codes, items, prices and supermarkets; room records carry
// their room id in the roomId field.
package firebase

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/firestore"
	fb "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/auth"
	"github.com/dukerupert/listacompra/internal/config"
	"google.golang.org/api/option"
)

const (
	collectionCodes        = "codes"
	collectionItems        = "items"
	collectionPrices       = "prices"
	collectionSupermarkets = "supermarkets"
)

// Client holds the Firestore and Auth clients of one Firebase project.
type Client struct {
	fs     *firestore.Client
	auth   *auth.Client
	logger *slog.Logger
}

// New initializes the Firebase app. An empty credentials file falls back to
// application default credentials.
func New(ctx context.Context, cfg config.FirebaseConfig, logger *slog.Logger) (*Client, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	app, err := fb.NewApp(ctx, &fb.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	fs, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("get firestore client: %w", err)
	}
	authClient, err := app.Auth(ctx)
	if err != nil {
		fs.Close()
		return nil, fmt.Errorf("get auth client: %w", err)
	}

	return &Client{fs: fs, auth: authClient, logger: logger}, nil
}

func (c *Client) Close() error {
	return c.fs.Close()
}

func (c *Client) Codes() *CodeStore {
	return &CodeStore{fs: c.fs}
}

func (c *Client) Items() *ItemStore {
	return &ItemStore{fs: c.fs}
}

func (c *Client) Prices() *PriceStore {
	return &PriceStore{fs: c.fs}
}

func (c *Client) Supermarkets() *SupermarketStore {
	return &SupermarketStore{fs: c.fs}
}

func (c *Client) Identities() *IdentityProvider {
	return &IdentityProvider{auth: c.auth}
}

func (c *Client) Notifier() *Notifier {
	return &Notifier{fs: c.fs, logger: c.logger.With("component", "firestore_watch")}
}

// Ping reads a single code document to check connectivity.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.fs.Collection(collectionCodes).Limit(1).Documents(ctx).GetAll()
	return err
}
