package handler

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/auth"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/dukerupert/listacompra/internal/roomsync"
	"github.com/shopspring/decimal"
)

type PriceHandler struct {
	prices *roomsync.Prices
}

func NewPriceHandler(prices *roomsync.Prices) *PriceHandler {
	return &PriceHandler{prices: prices}
}

// priceValue accepts a price sent either as a JSON number or as a string
// typed by the user, with a comma or a dot as decimal separator.
type priceValue struct {
	raw string
	set bool
}

func (p *priceValue) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		s = string(data)
	}
	p.raw, p.set = s, true
	return nil
}

func (p priceValue) decimal() (decimal.Decimal, error) {
	d, err := model.ParsePrice(p.raw)
	if err != nil {
		return decimal.Zero, apperror.Validation(err.Error())
	}
	return d, nil
}

type upsertPriceRequest struct {
	Product     string     `json:"product" validate:"required"`
	Price       priceValue `json:"price"`
	Supermarket *string    `json:"supermarket"`
}

type updatePriceRequest struct {
	Product     *string    `json:"product"`
	Price       priceValue `json:"price"`
	Supermarket *string    `json:"supermarket"`
}

func (h *PriceHandler) List(w http.ResponseWriter, r *http.Request) {
	prices, err := h.prices.Snapshot(r.Context(), auth.RoomID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prices)
}

// Upsert answers 201 when a new entry was created and 200 when the existing
// entry for the product was updated.
func (h *PriceHandler) Upsert(w http.ResponseWriter, r *http.Request) {
	var req upsertPriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if !req.Price.set {
		writeError(w, apperror.Validation("price is required"))
		return
	}
	price, err := req.Price.decimal()
	if err != nil {
		writeError(w, err)
		return
	}

	entry, created, err := h.prices.Upsert(r.Context(), auth.RoomID(r.Context()), model.PriceInput{
		Product:     req.Product,
		Price:       price,
		Supermarket: req.Supermarket,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, entry)
}

func (h *PriceHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updatePriceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	patch := model.PricePatch{Product: req.Product, Supermarket: req.Supermarket}
	if req.Price.set {
		price, err := req.Price.decimal()
		if err != nil {
			writeError(w, err)
			return
		}
		patch.Price = &price
	}

	entry, err := h.prices.Update(r.Context(), auth.RoomID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (h *PriceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.prices.Delete(r.Context(), auth.RoomID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PriceHandler) AddToList(w http.ResponseWriter, r *http.Request) {
	item, err := h.prices.AddToList(r.Context(), auth.RoomID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}
