package feedsync

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/pawhub/feedsync/internal/avatar"
	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/config"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/feed"
	"github.com/pawhub/feedsync/internal/follow"
	"github.com/pawhub/feedsync/internal/kvstore"
	"github.com/pawhub/feedsync/internal/remote"
	"github.com/pawhub/feedsync/internal/session"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// SyncError is the structured failure delivered on the client's error
// channel. By the time a view receives one, the shared state is already
// back to its pre-mutation or confirmed post-mutation form, never an
// intermediate one.
type SyncError struct {
	Op       string
	EntityID string
	Err      error
}

func (e SyncError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.EntityID, e.Err)
}

func (e SyncError) Unwrap() error { return e.Err }

// Client assembles the sync core. It is safe for concurrent use by any
// number of mounted views.
type Client struct {
	store   *kvstore.GormStore
	bus     *bus.Bus
	session *session.Manager
	api     *remote.Client

	Avatars *avatar.Resolver
	Follows *follow.Coordinator
	Feed    *feed.Reconciler

	bridge bus.Bridge
	cancel context.CancelFunc
	errs   chan SyncError
}

// New wires the sync core from configuration. The cross-session bridge
// is optional: without it the bus is same-process only.
func New(cfg *config.Config) (*Client, error) {
	b := bus.New()

	var store *kvstore.GormStore
	if cfg.Store.Memory {
		store = kvstore.OpenMemory(bus.StoreNotifier{Bus: b})
	} else {
		store = kvstore.Open(cfg.Store.FilePath, bus.StoreNotifier{Bus: b})
	}

	sess := session.NewManager(store)
	api := remote.NewClient(remote.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	}, sess)

	c := &Client{
		store:   store,
		bus:     b,
		session: sess,
		api:     api,
		Avatars: avatar.NewResolver(store, b, api, avatar.Config{
			AssetBase:   cfg.Avatar.AssetBase,
			DefaultPath: cfg.Avatar.DefaultPath,
		}),
		Follows: follow.NewCoordinator(store, b, api),
		errs:    make(chan SyncError, 32),
	}
	c.Feed = feed.NewReconciler(api, b, sess)

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	if cfg.Bridge.Enabled {
		sessionID := cfg.Bridge.SessionID
		if sessionID == "" {
			sessionID = "default"
		}
		bridge, err := bus.NewRedisBridge(cfg.Bridge.Redis, sessionID)
		if err != nil {
			// The bridge is an enhancement: same-process consistency
			// works without it.
			pkglog.L().Warn().Err(err).Msg("cross-session bridge unavailable")
		} else if err := b.AttachBridge(ctx, bridge, uuid.New().String()); err != nil {
			pkglog.L().Warn().Err(err).Msg("failed to attach cross-session bridge")
			bridge.Close()
		} else {
			c.bridge = bridge
		}
	}

	go c.forwardFeedErrors(ctx)

	return c, nil
}

// Errors delivers mutation failures from all fire-and-forget
// operations. Views drain it to show inline feedback with a manual
// retry affordance.
func (c *Client) Errors() <-chan SyncError {
	return c.errs
}

// Close tears down the bridge and the durable store.
func (c *Client) Close() error {
	c.cancel()
	if c.bridge != nil {
		c.bridge.Close()
	}
	return c.store.Close()
}

// ---- session ----

// SetToken stores the bearer token obtained by the authentication
// collaborator.
func (c *Client) SetToken(token string) { c.session.SetToken(token) }

// SetCurrentUser stores the current-user snapshot.
func (c *Client) SetCurrentUser(u *domain.User) { c.session.SetCurrentUser(u) }

// CurrentUser returns the durable current-user snapshot.
func (c *Client) CurrentUser() (*domain.User, bool) { return c.session.CurrentUser() }

// Logout clears the token and snapshot.
func (c *Client) Logout() { c.session.Clear() }

// ---- avatars ----

// ResolveAvatar returns a displayable avatar URL immediately; the
// confirmed value arrives via SubscribeToAvatar when it differs.
func (c *Client) ResolveAvatar(userID string) string {
	return c.Avatars.Resolve(context.Background(), userID)
}

// RetryAvatar forces re-resolution past a cached failure.
func (c *Client) RetryAvatar(userID string) string {
	return c.Avatars.ForceRefresh(context.Background(), userID)
}

// SubscribeToAvatar delivers confirmed avatar paths for one user.
func (c *Client) SubscribeToAvatar(userID string, fn func(path string)) *bus.Subscription {
	return c.Avatars.SubscribeAvatar(userID, fn)
}

// ---- follows ----

// GetFollowStatus answers from local state immediately and refreshes
// from the authority in the background; subscribers observe any
// correction.
func (c *Client) GetFollowStatus(targetID string) bool {
	viewerID := c.session.ViewerID()
	status := c.Follows.Status(viewerID, targetID)
	go c.Follows.CheckStatus(context.Background(), viewerID, targetID)
	return status
}

// SubscribeToFollowChange delivers every follow/unfollow with the
// target id, so widgets maintaining derived views (suggestions, friend
// lists) can react without re-querying the server.
func (c *Client) SubscribeToFollowChange(fn func(bus.FollowChanged)) *bus.Subscription {
	return c.bus.Subscribe(bus.TopicFollowChanged, func(e bus.Event) {
		if changed, ok := e.(bus.FollowChanged); ok {
			fn(changed)
		}
	})
}

// Follow starts following the target. Fire-and-forget; failures arrive
// on Errors().
func (c *Client) Follow(targetID string) {
	viewerID := c.session.ViewerID()
	go func() {
		if err := c.Follows.Follow(context.Background(), viewerID, targetID); err != nil {
			c.report("follow", targetID, err)
		}
	}()
}

// Unfollow stops following the target. Fire-and-forget.
func (c *Client) Unfollow(targetID string) {
	viewerID := c.session.ViewerID()
	go func() {
		if err := c.Follows.Unfollow(context.Background(), viewerID, targetID); err != nil {
			c.report("unfollow", targetID, err)
		}
	}()
}

// ---- feed ----

// LoadFeed populates the reconciler's post list.
func (c *Client) LoadFeed(ctx context.Context) error {
	return c.Feed.LoadFeed(ctx)
}

// Posts returns the current feed.
func (c *Client) Posts() []domain.Post { return c.Feed.Posts() }

// ToggleLike flips the viewer's like on a post. Fire-and-forget.
func (c *Client) ToggleLike(postID string) {
	go func() { _ = c.Feed.ToggleLike(context.Background(), postID) }()
}

// ToggleSaved flips the viewer's bookmark on a post. Fire-and-forget.
func (c *Client) ToggleSaved(postID string) {
	go func() { _ = c.Feed.ToggleSaved(context.Background(), postID) }()
}

// SubmitComment appends a comment to a post's thread. Fire-and-forget.
func (c *Client) SubmitComment(postID, content string) {
	go func() { _ = c.Feed.SubmitComment(context.Background(), postID, content) }()
}

// DeleteOwnPost removes the viewer's post. Fire-and-forget.
func (c *Client) DeleteOwnPost(postID string) {
	go func() { _ = c.Feed.DeleteOwnPost(context.Background(), postID) }()
}

// forwardFeedErrors republishes reconciler failures on the client's
// channel so views have a single place to drain.
func (c *Client) forwardFeedErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case me, ok := <-c.Feed.Errors():
			if !ok {
				return
			}
			c.report(string(me.Op), me.PostID, me.Err)
		}
	}
}

func (c *Client) report(op, entityID string, err error) {
	se := SyncError{Op: op, EntityID: entityID, Err: err}
	select {
	case c.errs <- se:
	default:
		pkglog.L().Warn().Str("op", op).Err(err).Msg("error channel full, dropping sync error")
	}
}
