package remote

import (
	"context"
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// ListSavedPosts returns all bookmark edges for a user. Unsaving
// requires the specific edge id, which only this list provides.
func (c *Client) ListSavedPosts(ctx context.Context, userID string) ([]domain.SavedPostEdge, error) {
	var edges []domain.SavedPostEdge
	if err := c.do(ctx, "GET", fmt.Sprintf("/saved-posts/user/%s", userID), nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

type createSavedPostRequest struct {
	UserID string `json:"user_id"`
	PostID string `json:"post_id"`
}

// CreateSavedPost bookmarks a post for a user.
func (c *Client) CreateSavedPost(ctx context.Context, userID, postID string) (*domain.SavedPostEdge, error) {
	var edge domain.SavedPostEdge
	err := c.do(ctx, "POST", "/saved-posts", createSavedPostRequest{UserID: userID, PostID: postID}, &edge)
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// DeleteSavedPost removes a bookmark by its edge id.
func (c *Client) DeleteSavedPost(ctx context.Context, edgeID string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/saved-posts/%s", edgeID), nil, nil)
}
