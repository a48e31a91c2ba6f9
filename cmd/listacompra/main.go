package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/dukerupert/listacompra/internal/config"
	"github.com/dukerupert/listacompra/internal/database"
	"github.com/dukerupert/listacompra/internal/firebase"
	"github.com/dukerupert/listacompra/internal/logging"
	"github.com/dukerupert/listacompra/internal/metrics"
	"github.com/dukerupert/listacompra/internal/server"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	logger := logging.Setup(cfg.Log.Level, cfg.Log.Format)

	backend, closeBackend, err := openBackend(context.Background(), cfg, logger)
	if err != nil {
		slog.Error("failed to open backend", "backend", cfg.Backend, "error", err)
		os.Exit(1)
	}
	defer closeBackend()

	srv := server.New(cfg, backend, metrics.New(), logger)

	addr := ":" + strconv.Itoa(cfg.Port)
	// No WriteTimeout: websocket connections stay open for the whole session.
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// Background cleanup goroutine
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := srv.ExpireSessions(cleanupCtx); n > 0 {
					slog.Info("cleaned up expired sessions", "count", n)
				}
				srv.RateLimiter().Cleanup()
			case <-cleanupCtx.Done():
				return
			}
		}
	}()

	go func() {
		slog.Info("listacompra starting", "addr", addr, "backend", backend.Name)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down")
	cleanupCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	srv.Wait()
}

func openBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger) (server.Backend, func(), error) {
	switch cfg.Backend {
	case config.BackendFirestore:
		client, err := firebase.New(ctx, cfg.Firebase, logger)
		if err != nil {
			return server.Backend{}, nil, err
		}
		backend := server.Backend{
			Name:         config.BackendFirestore,
			Codes:        client.Codes(),
			Identities:   client.Identities(),
			Items:        client.Items(),
			Prices:       client.Prices(),
			Supermarkets: client.Supermarkets(),
			Notifier:     client.Notifier(),
			Ping:         client.Ping,
		}
		return backend, func() { client.Close() }, nil
	default:
		db, err := database.Open(cfg.DB.Path)
		if err != nil {
			return server.Backend{}, nil, err
		}
		return server.SQLiteBackend(db), func() { db.Close() }, nil
	}
}
