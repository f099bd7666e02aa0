package follow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/kvstore"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// ErrSelfFollow rejects follow controls for the viewer's own id. Views
// must never render one, but the coordinator enforces it regardless.
var ErrSelfFollow = errors.New("cannot follow yourself")

// EdgeAPI is the slice of the remote client the coordinator needs.
type EdgeAPI interface {
	ListFollows(ctx context.Context, userID string) ([]domain.FollowEdge, error)
	CreateFollow(ctx context.Context, userID, targetID string) (*domain.FollowEdge, error)
	DeleteFollow(ctx context.Context, userID, targetID string) error
}

// Coordinator owns the "A follows B" state for every widget that
// renders it. The backend only exposes "list edges for user", so the
// per-viewer edge list is the unit of caching and invalidation: one
// follow or unfollow anywhere invalidates the whole list.
type Coordinator struct {
	store kvstore.Store
	bus   *bus.Bus
	api   EdgeAPI

	mu     sync.Mutex
	edges  map[string][]domain.FollowEdge
	loaded map[string]bool
}

// NewCoordinator creates a coordinator over the shared store and bus.
func NewCoordinator(store kvstore.Store, b *bus.Bus, api EdgeAPI) *Coordinator {
	return &Coordinator{
		store:  store,
		bus:    b,
		api:    api,
		edges:  make(map[string][]domain.FollowEdge),
		loaded: make(map[string]bool),
	}
}

// CheckStatus fetches the viewer's full edge set from the authority and
// derives membership by scanning for the target. A network failure
// degrades to the last cached list, and to NOT_FOLLOWING when there is
// none: showing "Follow" on an already-followed user is the safer
// failure, and the user's retry is idempotent.
func (c *Coordinator) CheckStatus(ctx context.Context, viewerID, targetID string) bool {
	if viewerID == targetID || viewerID == "" {
		return false
	}

	edges, err := c.api.ListFollows(ctx, viewerID)
	if err != nil {
		pkglog.Ctx(ctx).Warn().Err(err).
			Str(pkglog.FieldViewerID, viewerID).
			Msg("follow list fetch failed, serving cached state")
		return c.Status(viewerID, targetID)
	}

	c.mu.Lock()
	c.edges[viewerID] = edges
	c.loaded[viewerID] = true
	c.mu.Unlock()
	c.persist(viewerID, edges)

	return contains(edges, targetID)
}

// Status answers from local state only: the in-memory working set, then
// the durable cache. It never touches the network.
func (c *Coordinator) Status(viewerID, targetID string) bool {
	if viewerID == targetID || viewerID == "" {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked(viewerID)
	return contains(c.edges[viewerID], targetID)
}

// Edges returns the viewer's current edge list from local state,
// loading the durable snapshot on first use.
func (c *Coordinator) Edges(viewerID string) []domain.FollowEdge {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureLoadedLocked(viewerID)
	return snapshot(c.edges[viewerID])
}

// Follow optimistically transitions to FOLLOWING, then confirms with
// the authority. On success the confirmed edge (server-assigned id) is
// spliced into the cached list so other widgets see it without a
// network round trip; on failure the optimistic edge is removed and the
// reversal re-broadcast.
func (c *Coordinator) Follow(ctx context.Context, viewerID, targetID string) error {
	if viewerID == targetID {
		return ErrSelfFollow
	}

	c.mu.Lock()
	c.ensureLoadedLocked(viewerID)
	c.edges[viewerID] = append(c.edges[viewerID], domain.FollowEdge{
		FollowerID: viewerID,
		FollowedID: targetID,
	})
	c.mu.Unlock()

	edge, err := c.api.CreateFollow(ctx, viewerID, targetID)

	// Reconcile against the CURRENT list, touching only this target's
	// placeholder. Mutations for other targets that completed while the
	// call was in flight keep their own outcome.
	c.mu.Lock()
	if err != nil {
		c.edges[viewerID] = dropPlaceholder(c.edges[viewerID], targetID)
	} else {
		c.edges[viewerID] = append(dropPlaceholder(c.edges[viewerID], targetID), *edge)
	}
	current := snapshot(c.edges[viewerID])
	c.mu.Unlock()

	c.persist(viewerID, current)
	if err != nil {
		c.bus.Publish(bus.FollowChanged{FollowerID: viewerID, TargetID: targetID, Following: false})
		return fmt.Errorf("follow %s: %w", targetID, err)
	}
	c.bus.Publish(bus.FollowChanged{FollowerID: viewerID, TargetID: targetID, Following: true})
	return nil
}

// Unfollow is symmetric to Follow. The broadcast carries the target id
// so feed, suggestion, and friends-list widgets can drop the entry from
// their own derived views without re-querying the server.
func (c *Coordinator) Unfollow(ctx context.Context, viewerID, targetID string) error {
	if viewerID == targetID {
		return ErrSelfFollow
	}

	c.mu.Lock()
	c.ensureLoadedLocked(viewerID)
	removed := edgesFor(c.edges[viewerID], targetID)
	c.edges[viewerID] = remove(c.edges[viewerID], targetID)
	c.mu.Unlock()

	err := c.api.DeleteFollow(ctx, viewerID, targetID)

	c.mu.Lock()
	if err != nil {
		// Put back only this target's edges.
		c.edges[viewerID] = append(remove(c.edges[viewerID], targetID), removed...)
	}
	current := snapshot(c.edges[viewerID])
	c.mu.Unlock()

	c.persist(viewerID, current)
	if err != nil {
		c.bus.Publish(bus.FollowChanged{FollowerID: viewerID, TargetID: targetID, Following: true})
		return fmt.Errorf("unfollow %s: %w", targetID, err)
	}
	c.bus.Publish(bus.FollowChanged{FollowerID: viewerID, TargetID: targetID, Following: false})
	return nil
}

// ensureLoadedLocked hydrates the working set from the durable cache
// once per viewer. Callers hold the lock.
func (c *Coordinator) ensureLoadedLocked(viewerID string) {
	if c.loaded[viewerID] {
		return
	}
	c.loaded[viewerID] = true

	raw, ok := c.store.Get(kvstore.NewKey(kvstore.KindFollows, viewerID))
	if !ok || raw == "" {
		return
	}
	var edges []domain.FollowEdge
	if err := json.Unmarshal([]byte(raw), &edges); err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldViewerID, viewerID).Msg("corrupt follow snapshot, ignoring")
		return
	}
	c.edges[viewerID] = edges
}

// persist writes the viewer's whole edge list to the durable cache.
// Never called with the lock held: the store emits its invalidation
// synchronously and subscribers may call back into the coordinator.
func (c *Coordinator) persist(viewerID string, edges []domain.FollowEdge) {
	data, err := json.Marshal(edges)
	if err != nil {
		pkglog.L().Warn().Err(err).Str(pkglog.FieldViewerID, viewerID).Msg("failed to marshal follow snapshot")
		return
	}
	c.store.Set(kvstore.NewKey(kvstore.KindFollows, viewerID), string(data))
}

func contains(edges []domain.FollowEdge, targetID string) bool {
	for _, e := range edges {
		if e.FollowedID == targetID {
			return true
		}
	}
	return false
}

// dropPlaceholder removes the optimistic edge for targetID, the one
// without a server-assigned id. Confirmed edges are untouched.
func dropPlaceholder(edges []domain.FollowEdge, targetID string) []domain.FollowEdge {
	out := make([]domain.FollowEdge, 0, len(edges))
	for _, e := range edges {
		if e.FollowedID == targetID && e.ID == "" {
			continue
		}
		out = append(out, e)
	}
	return out
}

func edgesFor(edges []domain.FollowEdge, targetID string) []domain.FollowEdge {
	var out []domain.FollowEdge
	for _, e := range edges {
		if e.FollowedID == targetID {
			out = append(out, e)
		}
	}
	return out
}

func remove(edges []domain.FollowEdge, targetID string) []domain.FollowEdge {
	out := make([]domain.FollowEdge, 0, len(edges))
	for _, e := range edges {
		if e.FollowedID != targetID {
			out = append(out, e)
		}
	}
	return out
}

func snapshot(edges []domain.FollowEdge) []domain.FollowEdge {
	out := make([]domain.FollowEdge, len(edges))
	copy(out, edges)
	return out
}
