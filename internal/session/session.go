// Package session turns a 4-digit access code into an authenticated room
// session backed by an anonymous identity.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/metrics"
	"github.com/dukerupert/listacompra/internal/model"
)

type State string

const (
	StateLoggedOut      State = "logged_out"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
)

type Session struct {
	Token     string    `json:"-"`
	State     State     `json:"state"`
	RoomID    string    `json:"room_id"`
	UID       string    `json:"uid"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// CodeLookup reads and refreshes access codes.
type CodeLookup interface {
	GetCode(ctx context.Context, code string) (*model.AccessCode, error)
	TouchCode(ctx context.Context, code string) error
}

type IdentityProvider interface {
	SignInAnonymously(ctx context.Context) (*model.Identity, error)
	SignOut(ctx context.Context, uid string) error
}

// Marker is the client-local record of the last room, kept across restarts.
type Marker interface {
	RoomID() (string, bool)
	Set(roomID string)
	Clear()
}

type Options struct {
	// RevalidateOnRestore checks the code again when a session is restored
	// from a marker.
	RevalidateOnRestore bool
	Metrics             *metrics.Metrics
}

type Authenticator struct {
	codes   CodeLookup
	ids     IdentityProvider
	logger  *slog.Logger
	opts    Options
	touches sync.WaitGroup
}

func NewAuthenticator(codes CodeLookup, ids IdentityProvider, logger *slog.Logger, opts Options) *Authenticator {
	return &Authenticator{
		codes:  codes,
		ids:    ids,
		logger: logger.With("component", "session"),
		opts:   opts,
	}
}

// InitialState is the state a client starts in before restore runs.
func InitialState(marker Marker) State {
	if _, ok := marker.RoomID(); ok {
		return StateAuthenticating
	}
	return StateLoggedOut
}

// Login exchanges an access code for a session. On any failure the anonymous
// identity is revoked and no session is produced.
func (a *Authenticator) Login(ctx context.Context, code string, marker Marker) (*Session, error) {
	code = strings.TrimSpace(code)

	id, err := a.ids.SignInAnonymously(ctx)
	if err != nil {
		a.opts.Metrics.Login("backend_unavailable")
		return nil, apperror.Unavailable(fmt.Errorf("sign in anonymously: %w", err))
	}

	rec, err := a.codes.GetCode(ctx, code)
	if err != nil {
		a.revoke(ctx, id.UID)
		a.opts.Metrics.Login("backend_unavailable")
		return nil, apperror.Unavailable(fmt.Errorf("look up code: %w", err))
	}
	if rec == nil {
		a.revoke(ctx, id.UID)
		a.opts.Metrics.Login("code_not_found")
		return nil, apperror.ErrCodeNotFound
	}
	if !rec.IsActive() {
		a.revoke(ctx, id.UID)
		a.opts.Metrics.Login("code_deactivated")
		return nil, apperror.ErrCodeDeactivated
	}

	marker.Set(code)
	a.touch(ctx, code)
	a.opts.Metrics.Login("success")
	a.logger.Info("room login", "room", code, "uid", id.UID)

	return &Session{
		State:     StateAuthenticated,
		RoomID:    code,
		UID:       id.UID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Restore re-establishes a session from the marker. It returns (nil, nil)
// when there is no marker to restore from.
func (a *Authenticator) Restore(ctx context.Context, marker Marker) (*Session, error) {
	roomID, ok := marker.RoomID()
	if !ok {
		return nil, nil
	}

	id, err := a.ids.SignInAnonymously(ctx)
	if err != nil {
		marker.Clear()
		return nil, apperror.Unavailable(fmt.Errorf("sign in anonymously: %w", err))
	}

	if a.opts.RevalidateOnRestore {
		rec, err := a.codes.GetCode(ctx, roomID)
		if err != nil {
			a.revoke(ctx, id.UID)
			return nil, apperror.Unavailable(fmt.Errorf("look up code: %w", err))
		}
		if rec == nil || !rec.IsActive() {
			a.revoke(ctx, id.UID)
			marker.Clear()
			if rec == nil {
				return nil, apperror.ErrCodeNotFound
			}
			return nil, apperror.ErrCodeDeactivated
		}
	}

	a.logger.Debug("session restored", "room", roomID, "uid", id.UID)
	return &Session{
		State:     StateAuthenticated,
		RoomID:    roomID,
		UID:       id.UID,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// Logout revokes the identity, ends the session and clears the marker.
// Revocation failures are logged, never returned.
func (a *Authenticator) Logout(ctx context.Context, s *Session, marker Marker) {
	if s != nil {
		if s.UID != "" {
			a.revoke(ctx, s.UID)
		}
		s.State = StateLoggedOut
		s.RoomID = ""
		s.UID = ""
	}
	marker.Clear()
}

// End revokes the identity of a session that was replaced or expired. The
// marker is left alone.
func (a *Authenticator) End(ctx context.Context, s Session) {
	if s.UID != "" {
		a.revoke(ctx, s.UID)
	}
}

// Wait blocks until pending last-active refreshes have finished.
func (a *Authenticator) Wait() {
	a.touches.Wait()
}

func (a *Authenticator) revoke(ctx context.Context, uid string) {
	if err := a.ids.SignOut(ctx, uid); err != nil {
		a.logger.Warn("revoke identity", "uid", uid, "error", err)
	}
}

func (a *Authenticator) touch(ctx context.Context, code string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	a.touches.Add(1)
	go func() {
		defer a.touches.Done()
		defer cancel()
		if err := a.codes.TouchCode(ctx, code); err != nil {
			a.logger.Warn("refresh last active", "room", code, "error", err)
		}
	}()
}
