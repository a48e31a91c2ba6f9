package handler

import (
	"context"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/dukerupert/listacompra/internal/websocket"
)

// CodeAdmin manages access codes out of band.
type CodeAdmin interface {
	GetCode(ctx context.Context, code string) (*model.AccessCode, error)
	CreateCode(ctx context.Context, code string, active bool) (*model.AccessCode, error)
	SetCodeActive(ctx context.Context, code string, active bool) error
	ListCodes(ctx context.Context) ([]model.AccessCode, error)
}

var codePattern = regexp.MustCompile(`^[0-9]{4}$`)

type AdminHandler struct {
	codes  CodeAdmin
	hub    *websocket.Hub
	logger *slog.Logger
}

func NewAdminHandler(codes CodeAdmin, hub *websocket.Hub, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{codes: codes, hub: hub, logger: logger}
}

type createCodeRequest struct {
	Code   string `json:"code" validate:"required,len=4,numeric"`
	Active *bool  `json:"active"`
}

type setActiveRequest struct {
	Active *bool `json:"active" validate:"required"`
}

func (h *AdminHandler) ListCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := h.codes.ListCodes(r.Context())
	if err != nil {
		h.logger.Error("list codes", "error", err)
		writeError(w, apperror.Unavailable(err))
		return
	}
	if codes == nil {
		codes = []model.AccessCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

func (h *AdminHandler) CreateCode(w http.ResponseWriter, r *http.Request) {
	var req createCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	existing, err := h.codes.GetCode(r.Context(), req.Code)
	if err != nil {
		writeError(w, apperror.Unavailable(err))
		return
	}
	if existing != nil {
		writeError(w, apperror.ErrConflict.WithMessage("access code already exists"))
		return
	}

	active := req.Active == nil || *req.Active
	code, err := h.codes.CreateCode(r.Context(), req.Code, active)
	if err != nil {
		h.logger.Error("create code", "error", err)
		writeError(w, apperror.Unavailable(err))
		return
	}
	h.logger.Info("access code created", "code", code.Code, "active", active)
	writeJSON(w, http.StatusCreated, code)
}

// SetActive flips a code's active flag. Deactivating a code tells every
// client connected to the room; open sessions are left to expire.
func (h *AdminHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")
	if !codePattern.MatchString(code) {
		writeError(w, apperror.Validation("code must be 4 digits"))
		return
	}
	var req setActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.codes.SetCodeActive(r.Context(), code, *req.Active); err != nil {
		writeError(w, apperror.Unavailable(err))
		return
	}
	h.logger.Info("access code updated", "code", code, "active", *req.Active)
	if !*req.Active && h.hub != nil {
		h.hub.BroadcastRoom(code, websocket.NewMessage(websocket.TypeRoomDeactivated, code, nil))
	}

	updated, err := h.codes.GetCode(r.Context(), code)
	if err != nil {
		writeError(w, apperror.Unavailable(err))
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
