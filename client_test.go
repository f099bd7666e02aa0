package feedsync

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/config"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/follow"
)

func writeEnvelope(w http.ResponseWriter, data interface{}) {
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "data": data})
}

// handleFunc registers a "METHOD /path" pattern in a way that also works on
// Go 1.21, whose ServeMux does not yet support method patterns.
func handleFunc(mux *http.ServeMux, pattern string, h http.HandlerFunc) {
	method, path, ok := strings.Cut(pattern, " ")
	if !ok {
		mux.HandleFunc(pattern, h)
		return
	}
	mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	})
}

// newTestAuthority serves just enough of the REST contract for the
// facade to operate.
func newTestAuthority(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	handleFunc(mux, "GET /posts", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []domain.Post{{ID: "p1", AuthorID: "alice", LikeCount: 3}})
	})
	handleFunc(mux, "GET /saved-posts/user/viewer", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []domain.SavedPostEdge{})
	})
	handleFunc(mux, "GET /users/alice", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, domain.User{ID: "alice", Username: "alice", Img: "avatars/alice.png"})
	})
	handleFunc(mux, "GET /users/viewer/follows", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, []domain.FollowEdge{})
	})
	handleFunc(mux, "POST /posts/p1/like", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success": false,
			"error":   map[string]string{"code": "already_liked", "message": "already liked"},
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := New(&config.Config{
		API:    config.APIConfig{BaseURL: baseURL, Timeout: 2 * time.Second},
		Avatar: config.AvatarConfig{AssetBase: "https://cdn.pawhub.example", DefaultPath: "/img/default-avatar.png"},
		Store:  config.StoreConfig{Memory: true},
	})
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })

	c.SetToken("opaque-test-token")
	c.SetCurrentUser(&domain.User{ID: "viewer", Username: "rex"})
	return c
}

func TestClientLoadFeedAndResolveAvatar(t *testing.T) {
	srv := newTestAuthority(t)
	c := newTestClient(t, srv.URL)

	require.NoError(t, c.LoadFeed(context.Background()))
	posts := c.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)

	got := c.ResolveAvatar("alice")
	assert.Equal(t, "https://cdn.pawhub.example/avatars/alice.png", got)
}

func TestClientReportsMutationFailures(t *testing.T) {
	srv := newTestAuthority(t)
	c := newTestClient(t, srv.URL)
	require.NoError(t, c.LoadFeed(context.Background()))

	c.ToggleLike("p1")

	select {
	case se := <-c.Errors():
		assert.Equal(t, "toggle_like", se.Op)
		assert.Equal(t, "p1", se.EntityID)
	case <-time.After(2 * time.Second):
		t.Fatal("expected a sync error")
	}

	// Rolled back: the optimistic bump is gone.
	p := c.Posts()[0]
	assert.Equal(t, 3, p.LikeCount)
	assert.False(t, p.ViewerHasLiked)
}

func TestClientSelfFollowReportedNotSent(t *testing.T) {
	srv := newTestAuthority(t)
	c := newTestClient(t, srv.URL)

	c.Follow("viewer")

	select {
	case se := <-c.Errors():
		assert.Equal(t, "follow", se.Op)
		assert.True(t, errors.Is(se.Err, follow.ErrSelfFollow))
	case <-time.After(2 * time.Second):
		t.Fatal("expected a sync error")
	}
}

func TestClientFollowStatusServesLocalFirst(t *testing.T) {
	srv := newTestAuthority(t)
	c := newTestClient(t, srv.URL)

	var changes []bus.FollowChanged
	sub := c.SubscribeToFollowChange(func(e bus.FollowChanged) { changes = append(changes, e) })
	defer sub.Cancel()

	assert.False(t, c.GetFollowStatus("alice"))
}
