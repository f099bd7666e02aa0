package remote

import (
	"context"
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// ListComments fetches the full comment thread for a post.
func (c *Client) ListComments(ctx context.Context, postID string) ([]domain.Comment, error) {
	var comments []domain.Comment
	if err := c.do(ctx, "GET", fmt.Sprintf("/posts/%s/comments", postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

type createCommentRequest struct {
	Content string `json:"content"`
}

// CreateComment appends a comment to a post's thread. The server
// assigns the comment id; the client never fabricates one.
func (c *Client) CreateComment(ctx context.Context, postID, content string) (*domain.Comment, error) {
	var cm domain.Comment
	err := c.do(ctx, "POST", fmt.Sprintf("/posts/%s/comments", postID), createCommentRequest{Content: content}, &cm)
	if err != nil {
		return nil, err
	}
	return &cm, nil
}
