package websocket

import (
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"
	"github.com/dukerupert/listacompra/internal/auth"
)

// HandleWebSocket upgrades an authenticated request and streams the room's
// collections to it until the connection closes.
func HandleWebSocket(hub *Hub, logger *slog.Logger, originPatterns []string, sources ...Source) http.HandlerFunc {
	logger = logger.With("component", "websocket")
	return func(w http.ResponseWriter, r *http.Request) {
		roomID := auth.RoomID(r.Context())
		if roomID == "" {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			logger.Warn("accept", "error", err)
			return
		}
		defer conn.CloseNow()

		client := NewClient(hub, conn, roomID, logger, sources...)
		client.Run(r.Context())
		conn.Close(ws.StatusNormalClosure, "")
	}
}
