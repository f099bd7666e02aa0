package remote

import (
	"context"
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// ListPosts fetches the feed.
func (c *Client) ListPosts(ctx context.Context) ([]domain.Post, error) {
	var posts []domain.Post
	if err := c.do(ctx, "GET", "/posts", nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

type createPostRequest struct {
	Content string `json:"content"`
	Image   string `json:"image,omitempty"`
}

// CreatePost publishes a new post and returns it with its server id.
func (c *Client) CreatePost(ctx context.Context, content, image string) (*domain.Post, error) {
	var p domain.Post
	if err := c.do(ctx, "POST", "/posts", createPostRequest{Content: content, Image: image}, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// DeletePost removes a post owned by the viewer.
func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/posts/%s", postID), nil, nil)
}

// Like records the viewer's like on a post.
func (c *Client) Like(ctx context.Context, postID string) error {
	return c.do(ctx, "POST", fmt.Sprintf("/posts/%s/like", postID), nil, nil)
}

// Unlike removes the viewer's like from a post.
func (c *Client) Unlike(ctx context.Context, postID string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/posts/%s/like", postID), nil, nil)
}
