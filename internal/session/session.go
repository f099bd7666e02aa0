package session

import (
	"encoding/json"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/kvstore"
	"github.com/pawhub/feedsync/internal/remote"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

const (
	tokenKeyID = "token"
	userKeyID  = "user"
)

// Manager owns the durable auth token and current-user snapshot. Both
// live in the shared cache namespace under the session kind; token
// acquisition itself belongs to the authentication collaborator.
type Manager struct {
	store kvstore.Store
}

// NewManager creates a session manager over the shared store.
func NewManager(store kvstore.Store) *Manager {
	return &Manager{store: store}
}

// Token returns the bearer token for authenticated calls. A missing or
// expired token yields remote.ErrNotAuthenticated so mutations abort
// before any network IO with a distinct "not authenticated" condition.
func (m *Manager) Token() (string, error) {
	tok, ok := m.store.Get(kvstore.NewKey(kvstore.KindSession, tokenKeyID))
	if !ok || tok == "" {
		return "", remote.ErrNotAuthenticated
	}

	// Expiry precheck is best-effort: the client holds no verification
	// key, and opaque tokens pass through untouched.
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tok, claims); err != nil {
		pkglog.L().Debug().Err(err).Msg("bearer token is not a parseable JWT, passing through")
		return tok, nil
	}
	exp, err := claims.GetExpirationTime()
	if err == nil && exp != nil && exp.Before(time.Now()) {
		return "", remote.ErrNotAuthenticated
	}

	return tok, nil
}

// SetToken stores the bearer token durably.
func (m *Manager) SetToken(token string) {
	m.store.Set(kvstore.NewKey(kvstore.KindSession, tokenKeyID), token)
}

// CurrentUser returns the durable current-user snapshot, if any.
func (m *Manager) CurrentUser() (*domain.User, bool) {
	raw, ok := m.store.Get(kvstore.NewKey(kvstore.KindSession, userKeyID))
	if !ok || raw == "" {
		return nil, false
	}
	var u domain.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		pkglog.L().Warn().Err(err).Msg("corrupt current-user snapshot, ignoring")
		return nil, false
	}
	return &u, true
}

// SetCurrentUser stores the current-user snapshot durably.
func (m *Manager) SetCurrentUser(u *domain.User) {
	data, err := json.Marshal(u)
	if err != nil {
		pkglog.L().Warn().Err(err).Msg("failed to marshal current-user snapshot")
		return
	}
	m.store.Set(kvstore.NewKey(kvstore.KindSession, userKeyID), string(data))
}

// ViewerID returns the current user's id, or "" when logged out.
func (m *Manager) ViewerID() string {
	u, ok := m.CurrentUser()
	if !ok {
		return ""
	}
	return u.ID
}

// Clear removes the token and snapshot (logout).
func (m *Manager) Clear() {
	m.store.Delete(kvstore.NewKey(kvstore.KindSession, tokenKeyID))
	m.store.Delete(kvstore.NewKey(kvstore.KindSession, userKeyID))
}

// Ensure the manager can serve as the remote client's token source.
var _ remote.TokenSource = (*Manager)(nil)
