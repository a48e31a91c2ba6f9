package firebase

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type codeDoc struct {
	Active     *bool      `firestore:"active"`
	LastActive *time.Time `firestore:"lastActive"`
}

type itemDoc struct {
	Name      string    `firestore:"name"`
	Completed bool      `firestore:"completed"`
	CreatedAt time.Time `firestore:"createdAt"`
	RoomID    string    `firestore:"roomId"`
}

type priceDoc struct {
	Product     string     `firestore:"product"`
	Price       float64    `firestore:"price"`
	Supermarket *string    `firestore:"supermarket"`
	RoomID      string     `firestore:"roomId"`
	CreatedAt   time.Time  `firestore:"createdAt"`
	UpdatedAt   *time.Time `firestore:"updatedAt"`
}

type supermarketDoc struct {
	Name string `firestore:"name"`
}

func isNotFound(err error) bool {
	return status.Code(err) == codes.NotFound
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func decodeCode(snap *firestore.DocumentSnapshot) (*model.AccessCode, error) {
	var d codeDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return codeFromDoc(snap.Ref.ID, d), nil
}

func codeFromDoc(id string, d codeDoc) *model.AccessCode {
	return &model.AccessCode{Code: id, Active: d.Active, LastActive: utcPtr(d.LastActive)}
}

func decodeItem(snap *firestore.DocumentSnapshot) (*model.Item, error) {
	var d itemDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return itemFromDoc(snap.Ref.ID, d), nil
}

func itemFromDoc(id string, d itemDoc) *model.Item {
	return &model.Item{
		ID:        id,
		Name:      d.Name,
		Completed: d.Completed,
		CreatedAt: d.CreatedAt.UTC(),
		RoomID:    d.RoomID,
	}
}

func decodePrice(snap *firestore.DocumentSnapshot) (*model.PriceEntry, error) {
	var d priceDoc
	if err := snap.DataTo(&d); err != nil {
		return nil, err
	}
	return priceFromDoc(snap.Ref.ID, d), nil
}

func priceFromDoc(id string, d priceDoc) *model.PriceEntry {
	return &model.PriceEntry{
		ID:          id,
		Product:     d.Product,
		Price:       decimal.NewFromFloat(d.Price),
		Supermarket: model.NormalizeSupermarket(d.Supermarket),
		RoomID:      d.RoomID,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   utcPtr(d.UpdatedAt),
	}
}

func priceValue(d decimal.Decimal) float64 {
	return d.InexactFloat64()
}

func supermarketValue(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}
