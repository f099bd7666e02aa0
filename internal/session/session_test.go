package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/kvstore"
	"github.com/pawhub/feedsync/internal/remote"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "viewer",
		ExpiresAt: jwt.NewNumericDate(exp),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestTokenMissingIsNotAuthenticated(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))
	_, err := m.Token()
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
}

func TestOpaqueTokenPassesThrough(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))
	m.SetToken("opaque-session-token")

	tok, err := m.Token()
	require.NoError(t, err)
	assert.Equal(t, "opaque-session-token", tok)
}

func TestValidJWTPassesPrecheck(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))
	m.SetToken(signedToken(t, time.Now().Add(time.Hour)))

	_, err := m.Token()
	assert.NoError(t, err)
}

func TestExpiredJWTIsNotAuthenticated(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))
	m.SetToken(signedToken(t, time.Now().Add(-time.Minute)))

	_, err := m.Token()
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
}

func TestCurrentUserRoundTrip(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))

	_, ok := m.CurrentUser()
	assert.False(t, ok)
	assert.Empty(t, m.ViewerID())

	m.SetCurrentUser(&domain.User{ID: "viewer", Username: "rex"})
	u, ok := m.CurrentUser()
	require.True(t, ok)
	assert.Equal(t, "rex", u.Username)
	assert.Equal(t, "viewer", m.ViewerID())
}

func TestSnapshotSurvivesInSharedStore(t *testing.T) {
	store := kvstore.OpenMemory(nil)
	NewManager(store).SetCurrentUser(&domain.User{ID: "viewer"})

	// A second manager over the same store sees the snapshot, mirroring
	// a process restart over the durable cache.
	assert.Equal(t, "viewer", NewManager(store).ViewerID())
}

func TestClearRemovesTokenAndSnapshot(t *testing.T) {
	m := NewManager(kvstore.OpenMemory(nil))
	m.SetToken("tok")
	m.SetCurrentUser(&domain.User{ID: "viewer"})

	m.Clear()

	_, err := m.Token()
	assert.ErrorIs(t, err, remote.ErrNotAuthenticated)
	_, ok := m.CurrentUser()
	assert.False(t, ok)
}
