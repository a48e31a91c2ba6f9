package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// Registry holds live sessions in memory, keyed by an opaque token.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      time.Now,
	}
}

// Add stores the session under a fresh crypto-random token and sets its expiry.
func (r *Registry) Add(s *Session) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	stored := *s
	stored.Token = token
	stored.ExpiresAt = r.now().UTC().Add(r.ttl)

	r.mu.Lock()
	r.sessions[token] = &stored
	r.mu.Unlock()

	s.Token = token
	s.ExpiresAt = stored.ExpiresAt
	return token, nil
}

// Get returns a copy of the session for token, or false if missing or expired.
func (r *Registry) Get(token string) (Session, bool) {
	r.mu.RLock()
	s, ok := r.sessions[token]
	r.mu.RUnlock()
	if !ok || !r.now().Before(s.ExpiresAt) {
		return Session{}, false
	}
	return *s, true
}

func (r *Registry) Remove(token string) {
	r.mu.Lock()
	delete(r.sessions, token)
	r.mu.Unlock()
}

// Cleanup removes expired sessions and returns them so their identities
// can be revoked.
func (r *Registry) Cleanup() []Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	var expired []Session
	for token, s := range r.sessions {
		if !now.Before(s.ExpiresAt) {
			delete(r.sessions, token)
			expired = append(expired, *s)
		}
	}
	return expired
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
