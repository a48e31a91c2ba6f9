package firebase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dukerupert/listacompra/internal/roomsync"
	"github.com/shopspring/decimal"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestCodeFromDoc(t *testing.T) {
	local := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	c := codeFromDoc("1234", codeDoc{LastActive: &local})
	if c.Code != "1234" {
		t.Errorf("code = %q, want 1234", c.Code)
	}
	if !c.IsActive() {
		t.Error("missing active flag should count as active")
	}
	if c.LastActive.Location() != time.UTC || !c.LastActive.Equal(local) {
		t.Errorf("last active = %v, want %v in UTC", c.LastActive, local)
	}

	inactive := false
	if codeFromDoc("1234", codeDoc{Active: &inactive}).IsActive() {
		t.Error("explicit false should be inactive")
	}
}

func TestItemFromDoc(t *testing.T) {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.FixedZone("CET", 3600))
	item := itemFromDoc("abc", itemDoc{Name: "Pan", Completed: true, CreatedAt: created, RoomID: "1234"})
	if item.ID != "abc" || item.Name != "Pan" || !item.Completed || item.RoomID != "1234" {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.CreatedAt.Location() != time.UTC {
		t.Error("expected UTC timestamp")
	}
}

func TestPriceFromDoc(t *testing.T) {
	blank := "  "
	p := priceFromDoc("p1", priceDoc{Product: "Aceite", Price: 4.25, Supermarket: &blank, RoomID: "1234"})
	if !p.Price.Equal(decimal.RequireFromString("4.25")) {
		t.Errorf("price = %s, want 4.25", p.Price)
	}
	if p.Supermarket != nil {
		t.Errorf("blank supermarket should decode as nil, got %q", *p.Supermarket)
	}
	if p.UpdatedAt != nil {
		t.Error("missing updatedAt should decode as nil")
	}

	zero := time.Time{}
	if priceFromDoc("p1", priceDoc{UpdatedAt: &zero}).UpdatedAt != nil {
		t.Error("zero updatedAt should decode as nil")
	}
}

func TestPriceValueRoundTrip(t *testing.T) {
	for _, s := range []string{"0.99", "2.5", "1234.56"} {
		d := decimal.RequireFromString(s)
		got := priceFromDoc("x", priceDoc{Price: priceValue(d)}).Price
		if !got.Equal(d) {
			t.Errorf("round trip %s = %s", s, got)
		}
	}
}

func TestSupermarketValue(t *testing.T) {
	if supermarketValue(nil) != nil {
		t.Error("nil supermarket should be stored as null")
	}
	dia := "Dia"
	if supermarketValue(&dia) != "Dia" {
		t.Error("expected plain string")
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(status.Error(codes.NotFound, "missing")) {
		t.Error("expected NotFound to match")
	}
	if isNotFound(status.Error(codes.Unavailable, "down")) {
		t.Error("Unavailable should not match")
	}
	if isNotFound(errors.New("plain")) {
		t.Error("plain error should not match")
	}
}

func TestWatchUnknownCollection(t *testing.T) {
	n := &Notifier{}
	_, _, err := n.Watch(context.Background(), roomsync.Topic{Collection: "chores", RoomID: "1234"})
	if err == nil {
		t.Error("expected error for unknown collection")
	}
}
