package handler

import (
	"net/http"

	"github.com/dukerupert/listacompra/internal/auth"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/dukerupert/listacompra/internal/roomsync"
)

type ItemHandler struct {
	items *roomsync.Items
}

func NewItemHandler(items *roomsync.Items) *ItemHandler {
	return &ItemHandler{items: items}
}

type createItemRequest struct {
	Name string `json:"name" validate:"required"`
}

func (h *ItemHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.items.Snapshot(r.Context(), auth.RoomID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ItemHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.items.Create(r.Context(), auth.RoomID(r.Context()), req.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

func (h *ItemHandler) Update(w http.ResponseWriter, r *http.Request) {
	var patch model.ItemPatch
	if err := decodeJSON(r, &patch); err != nil {
		writeError(w, err)
		return
	}
	item, err := h.items.Update(r.Context(), auth.RoomID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	item, err := h.items.Toggle(r.Context(), auth.RoomID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *ItemHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.items.Delete(r.Context(), auth.RoomID(r.Context()), r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
