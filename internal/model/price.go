package model

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers, not strings.
	decimal.MarshalJSONWithoutQuotes = true
}

var (
	ErrPriceInvalid     = errors.New("price is not a number")
	ErrPriceNotPositive = errors.New("price must be greater than zero")
)

type PriceEntry struct {
	ID          string          `json:"id"`
	Product     string          `json:"product"`
	Price       decimal.Decimal `json:"price"`
	Supermarket *string         `json:"supermarket"`
	RoomID      string          `json:"room_id"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   *time.Time      `json:"updated_at"`
}

// PriceInput is what a user submits from the price form.
type PriceInput struct {
	Product     string
	Price       decimal.Decimal
	Supermarket *string
}

// PricePatch is a partial update. ClearSupermarket sets the supermarket to null.
type PricePatch struct {
	Product          *string
	Price            *decimal.Decimal
	Supermarket      *string
	ClearSupermarket bool
}

func (p PricePatch) Empty() bool {
	return p.Product == nil && p.Price == nil && p.Supermarket == nil && !p.ClearSupermarket
}

// ParsePrice accepts both comma and dot as the decimal separator.
func ParsePrice(raw string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(strings.Replace(raw, ",", ".", 1))
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, ErrPriceInvalid
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrPriceNotPositive
	}
	return d, nil
}

// NormalizeSupermarket turns blank input into null.
func NormalizeSupermarket(s *string) *string {
	if s == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*s)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
