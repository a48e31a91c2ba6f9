package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry(time.Hour)

	s := &Session{State: StateAuthenticated, RoomID: "1234", UID: "u1"}
	token, err := r.Add(s)
	require.NoError(t, err)
	assert.Len(t, token, 64)
	assert.Equal(t, token, s.Token)

	got, ok := r.Get(token)
	require.True(t, ok)
	assert.Equal(t, "1234", got.RoomID)

	r.Remove(token)
	_, ok = r.Get(token)
	assert.False(t, ok)
}

func TestRegistryExpiry(t *testing.T) {
	r := NewRegistry(time.Minute)
	now := time.Now()
	r.now = func() time.Time { return now }

	token, err := r.Add(&Session{RoomID: "1234", UID: "u1"})
	require.NoError(t, err)
	r.Add(&Session{RoomID: "9999", UID: "u2"})

	now = now.Add(2 * time.Minute)
	_, ok := r.Get(token)
	assert.False(t, ok, "expired session must not be returned")

	expired := r.Cleanup()
	require.Len(t, expired, 2)
	uids := []string{expired[0].UID, expired[1].UID}
	assert.ElementsMatch(t, []string{"u1", "u2"}, uids)
	assert.Zero(t, r.Len())
	assert.Empty(t, r.Cleanup())
}
