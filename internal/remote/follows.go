package remote

import (
	"context"
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// ListFollows returns the full follow-edge set for a user. The backend
// exposes no single "is A following B" endpoint; membership is always
// derived from this list.
func (c *Client) ListFollows(ctx context.Context, userID string) ([]domain.FollowEdge, error) {
	var edges []domain.FollowEdge
	if err := c.do(ctx, "GET", fmt.Sprintf("/users/%s/follows", userID), nil, &edges); err != nil {
		return nil, err
	}
	return edges, nil
}

type createFollowRequest struct {
	TargetID string `json:"target_id"`
}

// CreateFollow creates a follow edge from userID to targetID and
// returns the edge with its server-assigned id.
func (c *Client) CreateFollow(ctx context.Context, userID, targetID string) (*domain.FollowEdge, error) {
	var edge domain.FollowEdge
	err := c.do(ctx, "POST", fmt.Sprintf("/users/%s/follows", userID), createFollowRequest{TargetID: targetID}, &edge)
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

// DeleteFollow removes the follow edge from userID to targetID.
func (c *Client) DeleteFollow(ctx context.Context, userID, targetID string) error {
	return c.do(ctx, "DELETE", fmt.Sprintf("/users/%s/follows/%s", userID, targetID), nil, nil)
}
