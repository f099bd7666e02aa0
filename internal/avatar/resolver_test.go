package avatar

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/kvstore"
	"github.com/pawhub/feedsync/internal/remote"
)

// fakeUserAPI scripts the two lookups and counts outbound calls.
type fakeUserAPI struct {
	userCalls    atomic.Int64
	profileCalls atomic.Int64
	delay        time.Duration

	mu      sync.Mutex
	user    *domain.User
	userErr error
	profile *domain.Profile
	profErr error
}

func (f *fakeUserAPI) GetUser(context.Context, string) (*domain.User, error) {
	f.userCalls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.user, f.userErr
}

func (f *fakeUserAPI) GetProfile(context.Context, string) (*domain.Profile, error) {
	f.profileCalls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profile, f.profErr
}

func (f *fakeUserAPI) script(u *domain.User, uerr error, p *domain.Profile, perr error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.user, f.userErr, f.profile, f.profErr = u, uerr, p, perr
}

func newTestResolver(api UserAPI) (*Resolver, *kvstore.GormStore, *bus.Bus) {
	b := bus.New()
	store := kvstore.OpenMemory(bus.StoreNotifier{Bus: b})
	r := NewResolver(store, b, api, Config{
		AssetBase:   "https://cdn.pawhub.example/",
		DefaultPath: "/img/default-avatar.png",
	})
	return r, store, b
}

func TestResolveCachesConfirmedPath(t *testing.T) {
	api := &fakeUserAPI{}
	api.script(&domain.User{ID: "42", Img: "avatars/42.png"}, nil, nil, nil)
	r, store, _ := newTestResolver(api)

	got := r.Resolve(context.Background(), "42")
	assert.Equal(t, "https://cdn.pawhub.example/avatars/42.png", got)

	cached, ok := store.Get(kvstore.NewKey(kvstore.KindAvatar, "42"))
	require.True(t, ok)
	assert.Equal(t, "https://cdn.pawhub.example/avatars/42.png", cached)
}

func TestResolveCacheHitServesImmediately(t *testing.T) {
	api := &fakeUserAPI{}
	api.script(&domain.User{ID: "42", Img: "avatars/new.png"}, nil, nil, nil)
	r, store, _ := newTestResolver(api)

	store.Set(kvstore.NewKey(kvstore.KindAvatar, "42"), "https://cdn.pawhub.example/avatars/old.png")

	// Stale value is returned synchronously; the revalidation happens in
	// the background.
	got := r.Resolve(context.Background(), "42")
	assert.Equal(t, "https://cdn.pawhub.example/avatars/old.png", got)

	require.Eventually(t, func() bool {
		v, _ := store.Get(kvstore.NewKey(kvstore.KindAvatar, "42"))
		return v == "https://cdn.pawhub.example/avatars/new.png"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestConcurrentResolveSharesOneFetch(t *testing.T) {
	api := &fakeUserAPI{delay: 50 * time.Millisecond}
	api.script(&domain.User{ID: "7", Img: "avatars/7.png"}, nil, nil, nil)
	r, _, _ := newTestResolver(api)

	var wg sync.WaitGroup
	results := make([]string, 10)
	for i := 0; i < 10; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = r.Resolve(context.Background(), "7")
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, api.userCalls.Load())
	for _, got := range results {
		assert.Equal(t, "https://cdn.pawhub.example/avatars/7.png", got)
	}
}

func TestFallbackChainToProfile(t *testing.T) {
	api := &fakeUserAPI{}
	api.script(nil, &remote.StatusError{Code: 404}, &domain.Profile{UserID: "42", Img: "profiles/42.png"}, nil)
	r, _, _ := newTestResolver(api)

	got := r.Resolve(context.Background(), "42")
	assert.Equal(t, "https://cdn.pawhub.example/profiles/42.png", got)
	assert.EqualValues(t, 1, api.profileCalls.Load())
}

func TestUnresolvableCachesSentinel(t *testing.T) {
	api := &fakeUserAPI{}
	api.script(nil, &remote.StatusError{Code: 404}, &domain.Profile{UserID: "42"}, nil)
	r, store, _ := newTestResolver(api)

	got := r.Resolve(context.Background(), "42")
	assert.Equal(t, "/img/default-avatar.png", got)

	cached, ok := store.Get(kvstore.NewKey(kvstore.KindAvatar, "42"))
	require.True(t, ok)
	assert.Equal(t, FallbackSentinel, cached)

	// Re-mounting the same widget must not go back to the network.
	got = r.Resolve(context.Background(), "42")
	assert.Equal(t, "/img/default-avatar.png", got)
	assert.EqualValues(t, 1, api.userCalls.Load())
	assert.EqualValues(t, 1, api.profileCalls.Load())
}

func TestForceRefreshBypassesSentinel(t *testing.T) {
	api := &fakeUserAPI{}
	api.script(nil, &remote.StatusError{Code: 500}, nil, &remote.StatusError{Code: 500})
	r, store, _ := newTestResolver(api)

	assert.Equal(t, "/img/default-avatar.png", r.Resolve(context.Background(), "42"))

	// The avatar came back; a user-triggered retry picks it up.
	api.script(&domain.User{ID: "42", Img: "avatars/42.png"}, nil, nil, nil)
	got := r.ForceRefresh(context.Background(), "42")
	assert.Equal(t, "https://cdn.pawhub.example/avatars/42.png", got)

	cached, _ := store.Get(kvstore.NewKey(kvstore.KindAvatar, "42"))
	assert.Equal(t, "https://cdn.pawhub.example/avatars/42.png", cached)
}

func TestSubscribeTranslatesSentinel(t *testing.T) {
	api := &fakeUserAPI{}
	r, store, _ := newTestResolver(api)

	var got []string
	sub := r.SubscribeAvatar("42", func(path string) { got = append(got, path) })
	defer sub.Cancel()

	store.Set(kvstore.NewKey(kvstore.KindAvatar, "42"), "https://cdn.pawhub.example/avatars/42.png")
	store.Set(kvstore.NewKey(kvstore.KindAvatar, "42"), FallbackSentinel)

	require.Len(t, got, 2)
	assert.Equal(t, "https://cdn.pawhub.example/avatars/42.png", got[0])
	assert.Equal(t, "/img/default-avatar.png", got[1])
}

func TestNormalize(t *testing.T) {
	r, _, _ := newTestResolver(&fakeUserAPI{})

	assert.Equal(t, "https://elsewhere.example/a.png", r.normalize("https://elsewhere.example/a.png"))
	assert.Equal(t, "http://elsewhere.example/a.png", r.normalize("http://elsewhere.example/a.png"))
	assert.Equal(t, "https://cdn.pawhub.example/a.png", r.normalize("/a.png"))
	assert.Equal(t, "https://cdn.pawhub.example/a.png", r.normalize("a.png"))
}

func TestDisplayable(t *testing.T) {
	r, _, _ := newTestResolver(&fakeUserAPI{})

	assert.Equal(t, "/img/default-avatar.png", r.Displayable(""))
	assert.Equal(t, "/img/default-avatar.png", r.Displayable(FallbackSentinel))
	assert.Equal(t, "/x.png", r.Displayable("/x.png"))
}
