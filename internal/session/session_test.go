package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/listacompra/internal/apperror"
	"github.com/dukerupert/listacompra/internal/database"
	"github.com/dukerupert/listacompra/internal/model"
	"github.com/dukerupert/listacompra/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memMarker struct {
	mu     sync.Mutex
	roomID string
	set    bool
}

func (m *memMarker) RoomID() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomID, m.set
}

func (m *memMarker) Set(roomID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomID, m.set = roomID, true
}

func (m *memMarker) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roomID, m.set = "", false
}

// countingCodes records lookups made against the wrapped store.
type countingCodes struct {
	CodeLookup
	mu      sync.Mutex
	lookups int
}

func (c *countingCodes) GetCode(ctx context.Context, code string) (*model.AccessCode, error) {
	c.mu.Lock()
	c.lookups++
	c.mu.Unlock()
	return c.CodeLookup.GetCode(ctx, code)
}

func (c *countingCodes) Lookups() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lookups
}

type failingCodes struct{}

func (failingCodes) GetCode(context.Context, string) (*model.AccessCode, error) {
	return nil, errors.New("connection refused")
}

func (failingCodes) TouchCode(context.Context, string) error {
	return errors.New("connection refused")
}

type failingIdentities struct{}

func (failingIdentities) SignInAnonymously(context.Context) (*model.Identity, error) {
	return nil, errors.New("auth offline")
}

func (failingIdentities) SignOut(context.Context, string) error { return nil }

type fixture struct {
	codes *store.CodeStore
	ids   *store.IdentityStore
}

func setup(t *testing.T) fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return fixture{codes: store.NewCodeStore(db), ids: store.NewIdentityStore(db)}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func identityExists(t *testing.T, ids *store.IdentityStore, uid string) bool {
	t.Helper()
	got, err := ids.GetIdentity(context.Background(), uid)
	require.NoError(t, err)
	return got != nil
}

func TestLoginUnknownCode(t *testing.T) {
	f := setup(t)
	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}

	for _, code := range []string{"0000", "1234", "9999", ""} {
		s, err := a.Login(context.Background(), code, marker)
		assert.Nil(t, s, "code %q", code)
		assert.ErrorIs(t, err, apperror.ErrCodeNotFound, "code %q", code)
	}
	_, ok := marker.RoomID()
	assert.False(t, ok, "marker must not be set on failure")
}

func TestLoginDeactivatedCodeRevokesIdentity(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.codes.CreateCode(ctx, "5555", false)
	require.NoError(t, err)

	var signedIn []string
	ids := &recordingIdentities{IdentityProvider: f.ids, onSignIn: func(uid string) { signedIn = append(signedIn, uid) }}
	a := NewAuthenticator(f.codes, ids, testLogger(), Options{})

	s, err := a.Login(ctx, "5555", &memMarker{})
	assert.Nil(t, s)
	require.ErrorIs(t, err, apperror.ErrCodeDeactivated)

	require.Len(t, signedIn, 1)
	assert.False(t, identityExists(t, f.ids, signedIn[0]), "identity should be revoked")
}

func TestLoginActiveCode(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	_, err := f.codes.CreateCode(ctx, "1234", true)
	require.NoError(t, err)

	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}

	s, err := a.Login(ctx, "1234", marker)
	require.NoError(t, err)
	assert.Equal(t, StateAuthenticated, s.State)
	assert.Equal(t, "1234", s.RoomID)
	assert.NotEmpty(t, s.UID)
	assert.True(t, identityExists(t, f.ids, s.UID))

	room, ok := marker.RoomID()
	assert.True(t, ok)
	assert.Equal(t, "1234", room)

	require.Eventually(t, func() bool {
		c, err := f.codes.GetCode(ctx, "1234")
		return err == nil && c != nil && c.LastActive != nil
	}, 2*time.Second, 10*time.Millisecond)
	a.Wait()
}

func TestLoginDefaultsMissingActiveFlag(t *testing.T) {
	db, err := database.Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec(`INSERT INTO codes (code) VALUES ('7777')`)
	require.NoError(t, err)

	codes := store.NewCodeStore(db)
	a := NewAuthenticator(codes, store.NewIdentityStore(db), testLogger(), Options{})

	s, err := a.Login(context.Background(), "7777", &memMarker{})
	require.NoError(t, err)
	assert.Equal(t, "7777", s.RoomID)

	a.Wait()
	c, err := codes.GetCode(context.Background(), "7777")
	require.NoError(t, err)
	require.NotNil(t, c.Active)
	assert.True(t, *c.Active)
}

func TestLoginTouchFailureDoesNotFailLogin(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.codes.CreateCode(ctx, "1234", true)

	codes := &touchFailingCodes{CodeLookup: f.codes}
	a := NewAuthenticator(codes, f.ids, testLogger(), Options{})

	s, err := a.Login(ctx, "1234", &memMarker{})
	require.NoError(t, err)
	assert.Equal(t, "1234", s.RoomID)
	a.Wait()
}

func TestLoginLookupFailure(t *testing.T) {
	f := setup(t)
	var signedIn []string
	ids := &recordingIdentities{IdentityProvider: f.ids, onSignIn: func(uid string) { signedIn = append(signedIn, uid) }}
	a := NewAuthenticator(failingCodes{}, ids, testLogger(), Options{})

	s, err := a.Login(context.Background(), "1234", &memMarker{})
	assert.Nil(t, s)
	require.ErrorIs(t, err, apperror.ErrBackendUnavailable)
	require.Len(t, signedIn, 1)
	assert.False(t, identityExists(t, f.ids, signedIn[0]))
}

func TestLoginSignInFailure(t *testing.T) {
	f := setup(t)
	f.codes.CreateCode(context.Background(), "1234", true)
	a := NewAuthenticator(f.codes, failingIdentities{}, testLogger(), Options{})

	s, err := a.Login(context.Background(), "1234", &memMarker{})
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperror.ErrBackendUnavailable)
}

func TestRestoreSkipsCodeLookup(t *testing.T) {
	f := setup(t)
	codes := &countingCodes{CodeLookup: f.codes}
	a := NewAuthenticator(codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}
	marker.Set("1234")

	require.Equal(t, StateAuthenticating, InitialState(marker))

	s, err := a.Restore(context.Background(), marker)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, StateAuthenticated, s.State)
	assert.Equal(t, "1234", s.RoomID)
	assert.Zero(t, codes.Lookups(), "restore must not consult the code store")
}

func TestRestoreWithoutMarker(t *testing.T) {
	f := setup(t)
	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}

	assert.Equal(t, StateLoggedOut, InitialState(marker))
	s, err := a.Restore(context.Background(), marker)
	assert.NoError(t, err)
	assert.Nil(t, s)
}

func TestRestoreSignInFailureClearsMarker(t *testing.T) {
	f := setup(t)
	a := NewAuthenticator(f.codes, failingIdentities{}, testLogger(), Options{})
	marker := &memMarker{}
	marker.Set("1234")

	s, err := a.Restore(context.Background(), marker)
	assert.Nil(t, s)
	assert.Error(t, err)
	_, ok := marker.RoomID()
	assert.False(t, ok)
}

func TestRestoreRevalidates(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.codes.CreateCode(ctx, "1234", true)
	f.codes.SetCodeActive(ctx, "1234", false)

	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{RevalidateOnRestore: true})
	marker := &memMarker{}
	marker.Set("1234")

	s, err := a.Restore(ctx, marker)
	assert.Nil(t, s)
	assert.ErrorIs(t, err, apperror.ErrCodeDeactivated)
	_, ok := marker.RoomID()
	assert.False(t, ok)
}

func TestLogout(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.codes.CreateCode(ctx, "1234", true)
	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}

	s, err := a.Login(ctx, "1234", marker)
	require.NoError(t, err)
	uid := s.UID

	a.Logout(ctx, s, marker)
	assert.Equal(t, StateLoggedOut, s.State)
	assert.Empty(t, s.RoomID)
	assert.False(t, identityExists(t, f.ids, uid))
	_, ok := marker.RoomID()
	assert.False(t, ok)
	assert.Equal(t, StateLoggedOut, InitialState(marker))
	a.Wait()
}

func TestEndRevokesIdentityKeepsMarker(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.codes.CreateCode(ctx, "1234", true)
	a := NewAuthenticator(f.codes, f.ids, testLogger(), Options{})
	marker := &memMarker{}

	s, err := a.Login(ctx, "1234", marker)
	require.NoError(t, err)

	a.End(ctx, *s)
	assert.False(t, identityExists(t, f.ids, s.UID))
	roomID, ok := marker.RoomID()
	assert.True(t, ok)
	assert.Equal(t, "1234", roomID)
	a.Wait()
}

type recordingIdentities struct {
	IdentityProvider
	onSignIn func(uid string)
}

func (r *recordingIdentities) SignInAnonymously(ctx context.Context) (*model.Identity, error) {
	id, err := r.IdentityProvider.SignInAnonymously(ctx)
	if err == nil {
		r.onSignIn(id.UID)
	}
	return id, err
}

type touchFailingCodes struct {
	CodeLookup
}

func (touchFailingCodes) TouchCode(context.Context, string) error {
	return errors.New("write rejected")
}
