package feed

import (
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// Op names the mutating operation for error reporting.
type Op string

const (
	OpToggleLike    Op = "toggle_like"
	OpToggleSaved   Op = "toggle_saved"
	OpSubmitComment Op = "submit_comment"
	OpDeletePost    Op = "delete_post"
)

// MutationError is the structured failure delivered on the error
// channel. The shared state is already back to its pre-mutation form by
// the time it is sent.
type MutationError struct {
	Op     Op
	PostID string
	Err    error
}

func (e MutationError) Error() string {
	return fmt.Sprintf("%s on post %s: %v", e.Op, e.PostID, e.Err)
}

func (e MutationError) Unwrap() error { return e.Err }

// mutation captures one optimistic change as an apply/rollback pair
// over the prior state, so failure handling is uniform regardless of
// which fields the operation touches.
type mutation struct {
	apply    func(p *domain.Post)
	rollback func(p *domain.Post)
}

// likeMutation flips the like flag and applies the ±1 counter delta.
// The rollback restores the exact pre-mutation values.
func likeMutation(prior *domain.Post, liking bool) mutation {
	priorLiked := prior.ViewerHasLiked
	priorCount := prior.LikeCount

	delta := 1
	if !liking {
		delta = -1
	}
	return mutation{
		apply: func(p *domain.Post) {
			p.ViewerHasLiked = liking
			p.LikeCount = priorCount + delta
		},
		rollback: func(p *domain.Post) {
			p.ViewerHasLiked = priorLiked
			p.LikeCount = priorCount
		},
	}
}

// commentCountMutation bumps only the displayed counter; the thread
// content is reconciled pessimistically after server confirmation.
func commentCountMutation(prior *domain.Post) mutation {
	priorCount := prior.CommentCount
	return mutation{
		apply: func(p *domain.Post) {
			p.CommentCount = priorCount + 1
		},
		rollback: func(p *domain.Post) {
			p.CommentCount = priorCount
		},
	}
}

// savedMutation flips the bookmark flag.
func savedMutation(prior *domain.Post, saving bool) mutation {
	priorSaved := prior.ViewerHasSaved
	return mutation{
		apply: func(p *domain.Post) {
			p.ViewerHasSaved = saving
		},
		rollback: func(p *domain.Post) {
			p.ViewerHasSaved = priorSaved
		},
	}
}
