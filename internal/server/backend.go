package server

import (
	"database/sql"

	"github.com/dukerupert/listacompra/internal/config"
	"github.com/dukerupert/listacompra/internal/roomsync"
	"github.com/dukerupert/listacompra/internal/store"
)

// SQLiteBackend runs the server on a local database. Mutations publish to an
// in-process broker that wakes the room's subscriptions.
func SQLiteBackend(db *sql.DB) Backend {
	broker := roomsync.NewBroker()
	return Backend{
		Name:         config.BackendSQLite,
		Codes:        store.NewCodeStore(db),
		Identities:   store.NewIdentityStore(db),
		Items:        store.NewItemStore(db),
		Prices:       store.NewPriceStore(db),
		Supermarkets: store.NewSupermarketStore(db),
		Notifier:     broker,
		Publisher:    broker,
		Ping:         db.PingContext,
	}
}
