package server

import (
	"context"
	"crypto/rand"
	"log/slog"
	"net/http"

	"github.com/dukerupert/listacompra/internal/config"
	"github.com/dukerupert/listacompra/internal/handler"
	"github.com/dukerupert/listacompra/internal/metrics"
	"github.com/dukerupert/listacompra/internal/middleware"
	"github.com/dukerupert/listacompra/internal/roomsync"
	"github.com/dukerupert/listacompra/internal/session"
	ws "github.com/dukerupert/listacompra/internal/websocket"
)

// CodeStore is what the server needs from the access code backend: the
// login lookup plus the admin operations.
type CodeStore interface {
	session.CodeLookup
	handler.CodeAdmin
}

// Backend bundles the document store, identity provider and change feed a
// server runs on. Publisher is nil when the store pushes its own changes.
type Backend struct {
	Name         string
	Codes        CodeStore
	Identities   session.IdentityProvider
	Items        roomsync.ItemRepository
	Prices       roomsync.PriceRepository
	Supermarkets roomsync.SupermarketRepository
	Notifier     roomsync.Notifier
	Publisher    roomsync.Publisher
	Ping         func(context.Context) error
}

type Server struct {
	cfg           *config.Config
	hub           *ws.Hub
	authenticator *session.Authenticator
	registry      *session.Registry
	rateLimiter   *middleware.RateLimiter
	metrics       *metrics.Metrics
	items         *roomsync.Items
	prices        *roomsync.Prices
	supermarkets  *roomsync.Supermarkets
	sessionH      *handler.SessionHandler
	itemH         *handler.ItemHandler
	priceH        *handler.PriceHandler
	supermarketH  *handler.SupermarketHandler
	adminH        *handler.AdminHandler
	healthH       *handler.HealthHandler
	logger        *slog.Logger
}

func New(cfg *config.Config, backend Backend, m *metrics.Metrics, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"), m)

	syncLogger := logger.With("component", "roomsync")
	items := roomsync.NewItems(backend.Items, backend.Notifier, backend.Publisher, syncLogger, m)
	prices := roomsync.NewPrices(backend.Prices, items, backend.Notifier, backend.Publisher, syncLogger, m)
	supermarkets := roomsync.NewSupermarkets(backend.Supermarkets, backend.Notifier, syncLogger, m)

	authenticator := session.NewAuthenticator(backend.Codes, backend.Identities, logger.With("component", "session"), session.Options{
		RevalidateOnRestore: cfg.Session.RevalidateOnRestore,
		Metrics:             m,
	})
	registry := session.NewRegistry(cfg.Session.TTL)

	secret := cfg.Session.Secret
	if secret == "" {
		secret = rand.Text()
		logger.Warn("session.secret not set, room markers will not survive a restart")
	}

	s := &Server{
		cfg:           cfg,
		hub:           hub,
		authenticator: authenticator,
		registry:      registry,
		rateLimiter:   middleware.NewRateLimiter(),
		metrics:       m,
		items:         items,
		prices:        prices,
		supermarkets:  supermarkets,
		sessionH:      handler.NewSessionHandler(authenticator, registry, session.NewMarkerSigner(secret), cfg.Session.SecureCookies, logger.With("component", "session_handler")),
		itemH:         handler.NewItemHandler(items),
		priceH:        handler.NewPriceHandler(prices),
		supermarketH:  handler.NewSupermarketHandler(supermarkets),
		adminH:        handler.NewAdminHandler(backend.Codes, hub, logger.With("component", "admin")),
		healthH:       handler.NewHealthHandler(backend.Name, backend.Ping),
		logger:        logger,
	}
	s.sessionH.LimitRestore(middleware.RateLimit(s.rateLimiter, restoreKey, cfg.RateLimit.Logins, cfg.RateLimit.Window))
	return s
}

// restoreKey gives marker restores their own budget so they cannot lock an
// address out of logging in.
func restoreKey(r *http.Request) string {
	return "restore:" + middleware.RealIP(r)
}

// ExpireSessions drops expired sessions and revokes their identities. It
// reports how many were dropped.
func (s *Server) ExpireSessions(ctx context.Context) int {
	expired := s.registry.Cleanup()
	for _, sess := range expired {
		s.authenticator.End(ctx, sess)
	}
	return len(expired)
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Hub() *ws.Hub {
	return s.hub
}

// Wait blocks until background session work has finished.
func (s *Server) Wait() {
	s.authenticator.Wait()
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("GET /health", s.healthH.Check)
	if s.metrics != nil {
		outerMux.Handle("GET /metrics", s.metrics.Handler())
	}
	outerMux.HandleFunc("GET /api/session", s.sessionH.Get)
	outerMux.HandleFunc("POST /api/session", s.rateLimitedHandler(s.sessionH.Login))
	outerMux.HandleFunc("DELETE /api/session", s.sessionH.Logout)

	// Room routes
	roomMux := http.NewServeMux()
	s.registerRoomRoutes(roomMux)
	requireRoom := middleware.RequireRoom(s.registry)
	outerMux.Handle("/api/", requireRoom(roomMux))
	outerMux.Handle("GET /ws", requireRoom(ws.HandleWebSocket(s.hub, s.logger, s.cfg.Websocket.OriginPatterns,
		s.items.Feed(), s.prices.Feed(), s.supermarkets.Feed())))

	// Admin routes
	adminMux := http.NewServeMux()
	adminMux.HandleFunc("GET /admin/codes", s.adminH.ListCodes)
	adminMux.HandleFunc("POST /admin/codes", s.adminH.CreateCode)
	adminMux.HandleFunc("PUT /admin/codes/{code}/active", s.adminH.SetActive)
	outerMux.Handle("/admin/", middleware.RequireAdmin(s.cfg.Admin.Username, s.cfg.Admin.PasswordHash)(adminMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, s.cfg.RateLimit.Logins, s.cfg.RateLimit.Window)
	return rl(h).ServeHTTP
}

func (s *Server) registerRoomRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/items", s.itemH.List)
	mux.HandleFunc("POST /api/items", s.itemH.Create)
	mux.HandleFunc("PATCH /api/items/{id}", s.itemH.Update)
	mux.HandleFunc("DELETE /api/items/{id}", s.itemH.Delete)
	mux.HandleFunc("POST /api/items/{id}/toggle", s.itemH.Toggle)

	mux.HandleFunc("GET /api/prices", s.priceH.List)
	mux.HandleFunc("POST /api/prices", s.priceH.Upsert)
	mux.HandleFunc("PATCH /api/prices/{id}", s.priceH.Update)
	mux.HandleFunc("DELETE /api/prices/{id}", s.priceH.Delete)
	mux.HandleFunc("POST /api/prices/{id}/add-to-list", s.priceH.AddToList)

	mux.HandleFunc("GET /api/supermarkets", s.supermarketH.List)
}
