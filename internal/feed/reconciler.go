package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/domain"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// ErrUnknownPost is returned for interactions on a post the reconciler
// does not hold.
var ErrUnknownPost = errors.New("unknown post")

// PostAPI is the slice of the remote client the reconciler needs.
type PostAPI interface {
	ListPosts(ctx context.Context) ([]domain.Post, error)
	DeletePost(ctx context.Context, postID string) error
	Like(ctx context.Context, postID string) error
	Unlike(ctx context.Context, postID string) error
	ListComments(ctx context.Context, postID string) ([]domain.Comment, error)
	CreateComment(ctx context.Context, postID, content string) (*domain.Comment, error)
	ListSavedPosts(ctx context.Context, userID string) ([]domain.SavedPostEdge, error)
	CreateSavedPost(ctx context.Context, userID, postID string) (*domain.SavedPostEdge, error)
	DeleteSavedPost(ctx context.Context, edgeID string) error
}

// Viewer supplies the current user's id.
type Viewer interface {
	ViewerID() string
}

// Reconciler owns the session's feed and every per-post interaction
// flag and counter. No other code path mutates these fields: optimistic
// apply and rollback stay centralized here.
type Reconciler struct {
	api    PostAPI
	bus    *bus.Bus
	viewer Viewer

	mu      sync.Mutex
	posts   map[string]*domain.Post
	order   []string
	threads map[string][]domain.Comment

	errs chan MutationError
}

// NewReconciler creates a reconciler over the shared bus.
func NewReconciler(api PostAPI, b *bus.Bus, viewer Viewer) *Reconciler {
	return &Reconciler{
		api:     api,
		bus:     b,
		viewer:  viewer,
		posts:   make(map[string]*domain.Post),
		order:   make([]string, 0),
		threads: make(map[string][]domain.Comment),
		errs:    make(chan MutationError, 16),
	}
}

// Errors is the channel mutation failures are reported on. Callers are
// fire-and-forget; views drain this to show inline feedback.
func (r *Reconciler) Errors() <-chan MutationError {
	return r.errs
}

// LoadFeed fetches the feed and the viewer's bookmark edges, deriving
// the per-viewer saved flags. Like flags arrive on the post payload.
func (r *Reconciler) LoadFeed(ctx context.Context) error {
	posts, err := r.api.ListPosts(ctx)
	if err != nil {
		return fmt.Errorf("load feed: %w", err)
	}

	saved := make(map[string]bool)
	viewerID := r.viewer.ViewerID()
	if viewerID != "" {
		edges, err := r.api.ListSavedPosts(ctx, viewerID)
		if err != nil {
			// Saved flags degrade to the last known values; the feed
			// itself still renders.
			pkglog.Ctx(ctx).Warn().Err(err).Msg("saved-post edges unavailable, keeping stale flags")
			saved = nil
		} else {
			for _, e := range edges {
				saved[e.PostID] = true
			}
		}
	}

	r.mu.Lock()
	r.order = r.order[:0]
	seen := make(map[string]bool, len(posts))
	for i := range posts {
		p := posts[i]
		if saved != nil {
			p.ViewerHasSaved = saved[p.ID]
		} else if prev, ok := r.posts[p.ID]; ok {
			p.ViewerHasSaved = prev.ViewerHasSaved
		}
		r.posts[p.ID] = &p
		r.order = append(r.order, p.ID)
		seen[p.ID] = true
	}
	// Posts that left the feed take their cached threads with them.
	for id := range r.posts {
		if !seen[id] {
			delete(r.posts, id)
			delete(r.threads, id)
		}
	}
	r.mu.Unlock()

	r.bus.Publish(bus.EntryChanged{Key: feedKey(viewerID)})
	return nil
}

// Posts returns the current feed in order.
func (r *Reconciler) Posts() []domain.Post {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Post, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.posts[id]; ok {
			out = append(out, *p)
		}
	}
	return out
}

// Post returns a single post by id.
func (r *Reconciler) Post(postID string) (domain.Post, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.posts[postID]
	if !ok {
		return domain.Post{}, false
	}
	return *p, true
}

// Comments returns the locally held thread for a post.
func (r *Reconciler) Comments(postID string) []domain.Comment {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Comment, len(r.threads[postID]))
	copy(out, r.threads[postID])
	return out
}

// ToggleLike optimistically flips the viewer's like flag and applies a
// ±1 delta to the counter before the network call. A rejection reverts
// both fields exactly; there is no automatic retry.
func (r *Reconciler) ToggleLike(ctx context.Context, postID string) error {
	r.mu.Lock()
	p, ok := r.posts[postID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownPost
	}
	liking := !p.ViewerHasLiked
	m := likeMutation(p, liking)
	m.apply(p)
	r.mu.Unlock()
	r.bus.Publish(bus.EntryChanged{Key: postKey(postID)})

	var err error
	if liking {
		err = r.api.Like(ctx, postID)
	} else {
		err = r.api.Unlike(ctx, postID)
	}
	if err != nil {
		r.rollback(postID, m)
		r.report(OpToggleLike, postID, err)
		return err
	}
	return nil
}

// SubmitComment increments the displayed counter immediately but never
// inserts the comment text optimistically: the server owns comment ids,
// so the visible thread is re-fetched after confirmation.
func (r *Reconciler) SubmitComment(ctx context.Context, postID, content string) error {
	r.mu.Lock()
	p, ok := r.posts[postID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownPost
	}
	m := commentCountMutation(p)
	m.apply(p)
	r.mu.Unlock()
	r.bus.Publish(bus.EntryChanged{Key: postKey(postID)})

	if _, err := r.api.CreateComment(ctx, postID, content); err != nil {
		r.rollback(postID, m)
		r.report(OpSubmitComment, postID, err)
		return err
	}

	r.refreshThread(ctx, postID)
	return nil
}

// RefreshThread re-fetches a post's comment thread and reconciles the
// counter with the authoritative length.
func (r *Reconciler) RefreshThread(ctx context.Context, postID string) {
	r.refreshThread(ctx, postID)
}

func (r *Reconciler) refreshThread(ctx context.Context, postID string) {
	comments, err := r.api.ListComments(ctx, postID)
	if err != nil {
		pkglog.Ctx(ctx).Warn().Err(err).Str(pkglog.FieldPostID, postID).Msg("comment thread refresh failed")
		return
	}

	r.mu.Lock()
	r.threads[postID] = comments
	if p, ok := r.posts[postID]; ok {
		p.CommentCount = len(comments)
	}
	r.mu.Unlock()

	r.bus.Publish(bus.EntryChanged{Key: threadKey(postID)})
	r.bus.Publish(bus.EntryChanged{Key: postKey(postID)})
}

// ToggleSaved flips the bookmark flag optimistically. Unsaving needs
// the specific edge id, so it lists the viewer's saved edges first and
// deletes by edge id; no local edge-id cache is kept across the two
// calls.
func (r *Reconciler) ToggleSaved(ctx context.Context, postID string) error {
	viewerID := r.viewer.ViewerID()

	r.mu.Lock()
	p, ok := r.posts[postID]
	if !ok {
		r.mu.Unlock()
		return ErrUnknownPost
	}
	saving := !p.ViewerHasSaved
	m := savedMutation(p, saving)
	m.apply(p)
	r.mu.Unlock()
	r.bus.Publish(bus.EntryChanged{Key: postKey(postID)})

	err := r.confirmSaved(ctx, viewerID, postID, saving)
	if err != nil {
		r.rollback(postID, m)
		r.report(OpToggleSaved, postID, err)
		return err
	}

	r.bus.Publish(bus.SavedChanged{UserID: viewerID, PostID: postID, Saved: saving})
	return nil
}

func (r *Reconciler) confirmSaved(ctx context.Context, viewerID, postID string, saving bool) error {
	if saving {
		_, err := r.api.CreateSavedPost(ctx, viewerID, postID)
		return err
	}

	edges, err := r.api.ListSavedPosts(ctx, viewerID)
	if err != nil {
		return fmt.Errorf("lookup saved edge: %w", err)
	}
	for _, e := range edges {
		if e.PostID == postID {
			return r.api.DeleteSavedPost(ctx, e.ID)
		}
	}
	// No edge server-side: the unsaved state is already confirmed.
	return nil
}

// DeleteOwnPost removes the post from the local feed only after server
// confirmation. Deletion is irreversible from the viewer's side, so it
// is never applied optimistically.
func (r *Reconciler) DeleteOwnPost(ctx context.Context, postID string) error {
	if err := r.api.DeletePost(ctx, postID); err != nil {
		r.report(OpDeletePost, postID, err)
		return err
	}

	r.mu.Lock()
	delete(r.posts, postID)
	delete(r.threads, postID)
	for i, id := range r.order {
		if id == postID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()

	r.bus.Publish(bus.EntryChanged{Key: feedKey(r.viewer.ViewerID())})
	return nil
}

// rollback re-applies a mutation's inverse under the lock and
// re-broadcasts the post.
func (r *Reconciler) rollback(postID string, m mutation) {
	r.mu.Lock()
	if p, ok := r.posts[postID]; ok {
		m.rollback(p)
	}
	r.mu.Unlock()
	r.bus.Publish(bus.EntryChanged{Key: postKey(postID)})
}

func (r *Reconciler) report(op Op, postID string, err error) {
	me := MutationError{Op: op, PostID: postID, Err: err}
	select {
	case r.errs <- me:
	default:
		pkglog.L().Warn().Str(pkglog.FieldPostID, postID).Err(err).Msg("error channel full, dropping mutation error")
	}
}

func postKey(postID string) string   { return "post:" + postID }
func threadKey(postID string) string { return "comments:" + postID }
func feedKey(viewerID string) string { return "feed:" + viewerID }
