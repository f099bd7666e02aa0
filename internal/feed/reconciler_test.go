package feed

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pawhub/feedsync/internal/bus"
	"github.com/pawhub/feedsync/internal/domain"
	"github.com/pawhub/feedsync/internal/remote"
)

type staticViewer string

func (v staticViewer) ViewerID() string { return string(v) }

// fakePostAPI scripts the authority's feed and interaction endpoints.
type fakePostAPI struct {
	posts    []domain.Post
	comments map[string][]domain.Comment
	saved    []domain.SavedPostEdge

	likeErr    error
	unlikeErr  error
	commentErr error
	savedErr   error
	deleteErr  error
	listErr    error
	savedLsErr error

	likeCalls    int
	unlikeCalls  int
	savedLsCalls int
	savedCrCalls int
	savedDelIDs  []string
	deletedPosts []string
}

func (f *fakePostAPI) ListPosts(context.Context) ([]domain.Post, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]domain.Post, len(f.posts))
	copy(out, f.posts)
	return out, nil
}

func (f *fakePostAPI) DeletePost(_ context.Context, postID string) error {
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletedPosts = append(f.deletedPosts, postID)
	return nil
}

func (f *fakePostAPI) Like(_ context.Context, postID string) error {
	f.likeCalls++
	return f.likeErr
}

func (f *fakePostAPI) Unlike(_ context.Context, postID string) error {
	f.unlikeCalls++
	return f.unlikeErr
}

func (f *fakePostAPI) ListComments(_ context.Context, postID string) ([]domain.Comment, error) {
	return f.comments[postID], nil
}

func (f *fakePostAPI) CreateComment(_ context.Context, postID, content string) (*domain.Comment, error) {
	if f.commentErr != nil {
		return nil, f.commentErr
	}
	c := domain.Comment{ID: "server-c1", PostID: postID, Content: content}
	if f.comments == nil {
		f.comments = make(map[string][]domain.Comment)
	}
	f.comments[postID] = append(f.comments[postID], c)
	return &c, nil
}

func (f *fakePostAPI) ListSavedPosts(_ context.Context, _ string) ([]domain.SavedPostEdge, error) {
	f.savedLsCalls++
	if f.savedLsErr != nil {
		return nil, f.savedLsErr
	}
	out := make([]domain.SavedPostEdge, len(f.saved))
	copy(out, f.saved)
	return out, nil
}

func (f *fakePostAPI) CreateSavedPost(_ context.Context, userID, postID string) (*domain.SavedPostEdge, error) {
	f.savedCrCalls++
	if f.savedErr != nil {
		return nil, f.savedErr
	}
	edge := domain.SavedPostEdge{ID: "edge-1", UserID: userID, PostID: postID}
	f.saved = append(f.saved, edge)
	return &edge, nil
}

func (f *fakePostAPI) DeleteSavedPost(_ context.Context, edgeID string) error {
	if f.savedErr != nil {
		return f.savedErr
	}
	f.savedDelIDs = append(f.savedDelIDs, edgeID)
	out := f.saved[:0]
	for _, e := range f.saved {
		if e.ID != edgeID {
			out = append(out, e)
		}
	}
	f.saved = out
	return nil
}

func newTestReconciler(api *fakePostAPI) (*Reconciler, *bus.Bus) {
	b := bus.New()
	return NewReconciler(api, b, staticViewer("viewer")), b
}

func loadedReconciler(t *testing.T, api *fakePostAPI) (*Reconciler, *bus.Bus) {
	t.Helper()
	r, b := newTestReconciler(api)
	require.NoError(t, r.LoadFeed(context.Background()))
	return r, b
}

func TestLoadFeedDerivesSavedFlags(t *testing.T) {
	api := &fakePostAPI{
		posts: []domain.Post{
			{ID: "p1", AuthorID: "alice", LikeCount: 3},
			{ID: "p2", AuthorID: "bob"},
		},
		saved: []domain.SavedPostEdge{{ID: "e1", UserID: "viewer", PostID: "p2"}},
	}
	r, _ := loadedReconciler(t, api)

	posts := r.Posts()
	require.Len(t, posts, 2)
	assert.False(t, posts[0].ViewerHasSaved)
	assert.True(t, posts[1].ViewerHasSaved)
}

func TestLoadFeedKeepsStaleSavedFlagsOnEdgeFailure(t *testing.T) {
	api := &fakePostAPI{
		posts: []domain.Post{{ID: "p1", AuthorID: "alice"}},
		saved: []domain.SavedPostEdge{{ID: "e1", UserID: "viewer", PostID: "p1"}},
	}
	r, _ := loadedReconciler(t, api)
	p, _ := r.Post("p1")
	require.True(t, p.ViewerHasSaved)

	// The feed still reloads when the edge list is unavailable; the
	// previous flags survive.
	api.savedLsErr = errors.New("connection refused")
	require.NoError(t, r.LoadFeed(context.Background()))
	p, ok := r.Post("p1")
	require.True(t, ok)
	assert.True(t, p.ViewerHasSaved)
}

func TestLoadFeedDropsDepartedPosts(t *testing.T) {
	api := &fakePostAPI{
		posts: []domain.Post{
			{ID: "p1", AuthorID: "alice"},
			{ID: "p2", AuthorID: "bob", CommentCount: 1},
		},
		comments: map[string][]domain.Comment{
			"p2": {{ID: "c1", PostID: "p2", Content: "woof"}},
		},
	}
	r, _ := loadedReconciler(t, api)
	require.NoError(t, r.SubmitComment(context.Background(), "p2", "good dog"))
	require.NotEmpty(t, r.Comments("p2"))

	// p2 leaves the feed; the reload must not keep it reachable by id.
	api.posts = api.posts[:1]
	require.NoError(t, r.LoadFeed(context.Background()))

	_, ok := r.Post("p2")
	assert.False(t, ok)
	assert.Empty(t, r.Comments("p2"))
	posts := r.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, "p1", posts[0].ID)
}

func TestToggleLikeOptimisticThenConfirmed(t *testing.T) {
	api := &fakePostAPI{posts: []domain.Post{{ID: "p1", LikeCount: 3}}}
	r, b := loadedReconciler(t, api)

	var updates []int
	b.Subscribe(bus.EntryTopic("post:p1"), func(bus.Event) {
		p, _ := r.Post("p1")
		updates = append(updates, p.LikeCount)
	})

	require.NoError(t, r.ToggleLike(context.Background(), "p1"))

	p, _ := r.Post("p1")
	assert.True(t, p.ViewerHasLiked)
	assert.Equal(t, 4, p.LikeCount)
	assert.Equal(t, []int{4}, updates)
	assert.Equal(t, 1, api.likeCalls)

	require.NoError(t, r.ToggleLike(context.Background(), "p1"))
	p, _ = r.Post("p1")
	assert.False(t, p.ViewerHasLiked)
	assert.Equal(t, 3, p.LikeCount)
	assert.Equal(t, 1, api.unlikeCalls)
}

func TestToggleLikeRejectionRollsBackExactly(t *testing.T) {
	api := &fakePostAPI{
		posts:   []domain.Post{{ID: "p1", LikeCount: 3}},
		likeErr: &remote.StatusError{Code: 422},
	}
	r, _ := loadedReconciler(t, api)

	err := r.ToggleLike(context.Background(), "p1")
	require.Error(t, err)

	p, _ := r.Post("p1")
	assert.False(t, p.ViewerHasLiked)
	assert.Equal(t, 3, p.LikeCount)

	select {
	case me := <-r.Errors():
		assert.Equal(t, OpToggleLike, me.Op)
		assert.Equal(t, "p1", me.PostID)
		assert.True(t, remote.IsRejection(me.Err))
	default:
		t.Fatal("expected a mutation error on the channel")
	}
}

func TestToggleLikeUnknownPost(t *testing.T) {
	r, _ := newTestReconciler(&fakePostAPI{})
	assert.ErrorIs(t, r.ToggleLike(context.Background(), "ghost"), ErrUnknownPost)
}

func TestSubmitCommentCounterOptimisticContentPessimistic(t *testing.T) {
	api := &fakePostAPI{posts: []domain.Post{{ID: "p1", CommentCount: 2}}}
	r, _ := loadedReconciler(t, api)

	require.NoError(t, r.SubmitComment(context.Background(), "p1", "good dog"))

	// The confirmed thread holds only server-issued comments, and the
	// counter is reconciled with its authoritative length.
	comments := r.Comments("p1")
	require.Len(t, comments, 1)
	assert.Equal(t, "server-c1", comments[0].ID)

	p, _ := r.Post("p1")
	assert.Equal(t, 1, p.CommentCount)
}

func TestSubmitCommentRejectionRevertsCounter(t *testing.T) {
	api := &fakePostAPI{
		posts:      []domain.Post{{ID: "p1", CommentCount: 2}},
		commentErr: &remote.StatusError{Code: 400},
	}
	r, _ := loadedReconciler(t, api)

	require.Error(t, r.SubmitComment(context.Background(), "p1", "x"))
	p, _ := r.Post("p1")
	assert.Equal(t, 2, p.CommentCount)
	assert.Empty(t, r.Comments("p1"))
}

func TestToggleSavedCreatesEdge(t *testing.T) {
	api := &fakePostAPI{posts: []domain.Post{{ID: "p1"}}}
	r, b := loadedReconciler(t, api)

	var events []bus.SavedChanged
	b.Subscribe(bus.TopicSavedChanged, func(e bus.Event) {
		events = append(events, e.(bus.SavedChanged))
	})

	require.NoError(t, r.ToggleSaved(context.Background(), "p1"))

	p, _ := r.Post("p1")
	assert.True(t, p.ViewerHasSaved)
	assert.Equal(t, 1, api.savedCrCalls)
	require.Len(t, events, 1)
	assert.Equal(t, bus.SavedChanged{UserID: "viewer", PostID: "p1", Saved: true}, events[0])
}

func TestUnsaveLooksUpEdgeThenDeletesByID(t *testing.T) {
	api := &fakePostAPI{
		posts: []domain.Post{{ID: "p1"}},
		saved: []domain.SavedPostEdge{{ID: "edge-7", UserID: "viewer", PostID: "p1"}},
	}
	r, _ := loadedReconciler(t, api)
	lookupsAfterLoad := api.savedLsCalls

	require.NoError(t, r.ToggleSaved(context.Background(), "p1"))

	p, _ := r.Post("p1")
	assert.False(t, p.ViewerHasSaved)
	assert.Equal(t, []string{"edge-7"}, api.savedDelIDs)
	assert.Equal(t, lookupsAfterLoad+1, api.savedLsCalls)
}

func TestUnsaveMissingEdgeAlreadyConfirmed(t *testing.T) {
	api := &fakePostAPI{
		posts: []domain.Post{{ID: "p1"}},
		saved: []domain.SavedPostEdge{{ID: "edge-7", UserID: "viewer", PostID: "p1"}},
	}
	r, _ := loadedReconciler(t, api)

	// Another session already removed the edge.
	api.saved = nil
	require.NoError(t, r.ToggleSaved(context.Background(), "p1"))

	p, _ := r.Post("p1")
	assert.False(t, p.ViewerHasSaved)
	assert.Empty(t, api.savedDelIDs)
}

func TestToggleSavedFailureRollsBackFlag(t *testing.T) {
	api := &fakePostAPI{
		posts:    []domain.Post{{ID: "p1"}},
		savedErr: errors.New("connection refused"),
	}
	r, _ := loadedReconciler(t, api)

	require.Error(t, r.ToggleSaved(context.Background(), "p1"))
	p, _ := r.Post("p1")
	assert.False(t, p.ViewerHasSaved)

	me := <-r.Errors()
	assert.Equal(t, OpToggleSaved, me.Op)
}

func TestDeleteOwnPostIsNotOptimistic(t *testing.T) {
	api := &fakePostAPI{
		posts:     []domain.Post{{ID: "p1", AuthorID: "viewer"}},
		deleteErr: errors.New("connection refused"),
	}
	r, _ := loadedReconciler(t, api)

	// Failure leaves the post in place.
	require.Error(t, r.DeleteOwnPost(context.Background(), "p1"))
	_, ok := r.Post("p1")
	assert.True(t, ok)

	// Confirmation removes it from the feed and its thread.
	api.deleteErr = nil
	require.NoError(t, r.DeleteOwnPost(context.Background(), "p1"))
	_, ok = r.Post("p1")
	assert.False(t, ok)
	assert.Empty(t, r.Posts())
	assert.Equal(t, []string{"p1"}, api.deletedPosts)
}

func TestMutationErrorUnwraps(t *testing.T) {
	cause := &remote.StatusError{Code: 409}
	me := MutationError{Op: OpToggleLike, PostID: "p1", Err: cause}
	assert.True(t, remote.IsRejection(me))
	assert.Contains(t, me.Error(), "p1")
}
