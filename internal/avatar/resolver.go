package avatar

import (
	"context"
	"strings"
	"sync"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/kvstore"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// FallbackSentinel is the cached marker for "resolution failed, use the
// default avatar". It is distinguishable from a confirmed path so a
// manual retry can force re-resolution, while ordinary mounts do not
// re-trigger fetches.
const FallbackSentinel = "__default__"

// UserAPI is the slice of the remote client the resolver needs.
type UserAPI interface {
	GetUser(ctx context.Context, userID string) (*domain.User, error)
	GetProfile(ctx context.Context, userID string) (*domain.Profile, error)
}

// Config holds the resolver's path settings.
type Config struct {
	AssetBase   string `mapstructure:"asset_base"`
	DefaultPath string `mapstructure:"default_path"`
}

// Resolver maps a user id to a displayable avatar URL: cache first,
// remote authority on miss, static default as the last resort.
// Confirmed values are written back to the cache, which fans the change
// out to every subscribed view.
type Resolver struct {
	store       kvstore.Store
	bus         *bus.Bus
	api         UserAPI
	assetBase   string
	defaultPath string

	mu       sync.Mutex
	inflight map[string]*flight
}

// flight is one outstanding resolution shared by all concurrent callers
// for the same user id.
type flight struct {
	done chan struct{}
	path string
}

// NewResolver creates a resolver over the shared store and bus.
func NewResolver(store kvstore.Store, b *bus.Bus, api UserAPI, cfg Config) *Resolver {
	return &Resolver{
		store:       store,
		bus:         b,
		api:         api,
		assetBase:   strings.TrimRight(cfg.AssetBase, "/"),
		defaultPath: cfg.DefaultPath,
		inflight:    make(map[string]*flight),
	}
}

// Resolve returns a displayable avatar URL for userID. It never fails:
// a cache hit is served immediately (while a revalidation fetch runs in
// the background unless one is already in flight); a cold miss waits for
// the fetch; the default path covers everything else.
func (r *Resolver) Resolve(ctx context.Context, userID string) string {
	key := kvstore.NewKey(kvstore.KindAvatar, userID)

	if cached, ok := r.store.Get(key); ok && cached != "" {
		if cached == FallbackSentinel {
			// A failed resolution is already cached; do not refetch on
			// every mount. ForceRefresh is the way back.
			return r.defaultPath
		}
		r.beginRefresh(userID)
		return cached
	}

	f := r.beginRefresh(userID)
	select {
	case <-f.done:
		return f.path
	case <-ctx.Done():
		return r.defaultPath
	}
}

// ForceRefresh bypasses the cached sentinel and re-resolves, for
// user-triggered retries.
func (r *Resolver) ForceRefresh(ctx context.Context, userID string) string {
	f := r.beginRefresh(userID)
	select {
	case <-f.done:
		return f.path
	case <-ctx.Done():
		return r.defaultPath
	}
}

// SubscribeAvatar delivers displayable paths for one user's avatar as
// they are confirmed. The sentinel is translated to the default path
// before it reaches the view.
func (r *Resolver) SubscribeAvatar(userID string, fn func(path string)) *bus.Subscription {
	return r.bus.Subscribe(bus.AvatarTopic(userID), func(e bus.Event) {
		changed, ok := e.(bus.AvatarChanged)
		if !ok {
			return
		}
		fn(r.Displayable(changed.Path))
	})
}

// Displayable maps a cached avatar value to something a view can render.
func (r *Resolver) Displayable(value string) string {
	if value == "" || value == FallbackSentinel {
		return r.defaultPath
	}
	return value
}

// beginRefresh starts a resolution for userID, or joins the one already
// in flight so concurrent callers share a single outbound fetch.
func (r *Resolver) beginRefresh(userID string) *flight {
	r.mu.Lock()
	if f, ok := r.inflight[userID]; ok {
		r.mu.Unlock()
		return f
	}
	f := &flight{done: make(chan struct{})}
	r.inflight[userID] = f
	r.mu.Unlock()

	go func() {
		f.path = r.fetch(context.Background(), userID)
		r.mu.Lock()
		delete(r.inflight, userID)
		r.mu.Unlock()
		close(f.done)
	}()
	return f
}

// fetch runs the fallback chain: user lookup, then profile detail, then
// the default sentinel. Whatever it learns is written to the cache,
// which emits the invalidation for all mounted subscribers.
func (r *Resolver) fetch(ctx context.Context, userID string) string {
	key := kvstore.NewKey(kvstore.KindAvatar, userID)
	l := pkglog.L().With().Str(pkglog.FieldUserID, userID).Logger()

	u, err := r.api.GetUser(ctx, userID)
	if err == nil && u.Img != "" {
		path := r.normalize(u.Img)
		r.store.Set(key, path)
		return path
	}
	if err != nil {
		l.Debug().Err(err).Msg("user lookup failed, trying profile detail")
	}

	p, perr := r.api.GetProfile(ctx, userID)
	if perr == nil && p.Img != "" {
		path := r.normalize(p.Img)
		r.store.Set(key, path)
		return path
	}
	if perr != nil {
		l.Debug().Err(perr).Msg("profile detail lookup failed")
	}

	// Both lookups failed or returned no image: remember that so
	// repeated mounts stop hitting the network.
	l.Info().Msg("avatar unresolved, caching default sentinel")
	r.store.Set(key, FallbackSentinel)
	return r.defaultPath
}

// normalize passes absolute URLs through and prefixes relative paths
// with the configured asset base.
func (r *Resolver) normalize(img string) string {
	if strings.HasPrefix(img, "http://") || strings.HasPrefix(img, "https://") {
		return img
	}
	return r.assetBase + "/" + strings.TrimLeft(img, "/")
}
