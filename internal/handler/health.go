package handler

import (
	"context"
	"net/http"
	"time"
)

type HealthHandler struct {
	backend string
	ping    func(context.Context) error
}

// NewHealthHandler reports the backend in use. ping may be nil.
func NewHealthHandler(backend string, ping func(context.Context) error) *HealthHandler {
	return &HealthHandler{backend: backend, ping: ping}
}

func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	if h.ping != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "backend": h.backend})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "backend": h.backend})
}
