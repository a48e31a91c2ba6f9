package model

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
		err  error
	}{
		{raw: "1.25", want: "1.25"},
		{raw: "1,25", want: "1.25"},
		{raw: " 3 ", want: "3"},
		{raw: "abc", err: ErrPriceInvalid},
		{raw: "", err: ErrPriceInvalid},
		{raw: "0", err: ErrPriceNotPositive},
		{raw: "-2,5", err: ErrPriceNotPositive},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("ParsePrice(%q) err = %v, want %v", tt.raw, err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParsePrice(%q): %v", tt.raw, err)
			}
			if !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("ParsePrice(%q) = %s, want %s", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeSupermarket(t *testing.T) {
	blank := "   "
	if got := NormalizeSupermarket(&blank); got != nil {
		t.Errorf("blank supermarket = %q, want nil", *got)
	}
	if got := NormalizeSupermarket(nil); got != nil {
		t.Error("nil supermarket should stay nil")
	}
	name := " Aldi "
	got := NormalizeSupermarket(&name)
	if got == nil || *got != "Aldi" {
		t.Errorf("supermarket = %v, want Aldi", got)
	}
}

func TestPriceEntryJSONNumber(t *testing.T) {
	e := PriceEntry{ID: "p1", Product: "Milk", Price: decimal.RequireFromString("1.05")}
	data, err := json.Marshal(e)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if _, ok := raw["price"].(float64); !ok {
		t.Errorf("price should be a JSON number, got %T", raw["price"])
	}
}

func TestAccessCodeIsActive(t *testing.T) {
	yes, no := true, false
	if !(&AccessCode{}).IsActive() {
		t.Error("missing active flag should count as active")
	}
	if !(&AccessCode{Active: &yes}).IsActive() {
		t.Error("active=true should be active")
	}
	if (&AccessCode{Active: &no}).IsActive() {
		t.Error("active=false should not be active")
	}
}
