package handler

import (
	"net/http"

	"github.com/dukerupert/listacompra/internal/roomsync"
)

type SupermarketHandler struct {
	supermarkets *roomsync.Supermarkets
}

func NewSupermarketHandler(s *roomsync.Supermarkets) *SupermarketHandler {
	return &SupermarketHandler{supermarkets: s}
}

// List never fails: an empty or unreadable collection yields the built-in list.
func (h *SupermarketHandler) List(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.supermarkets.List(r.Context()))
}
