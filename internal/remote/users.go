package remote

import (
	"context"
	"fmt"

	"github.com/pawhub/feedsync/internal/domain"
)

// GetUser fetches a user by id.
func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var u domain.User
	if err := c.do(ctx, "GET", fmt.Sprintf("/users/%s", userID), nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetProfile fetches the extended profile for a user. The avatar
// resolver uses it as the secondary lookup when GetUser fails.
func (c *Client) GetProfile(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	if err := c.do(ctx, "GET", fmt.Sprintf("/users/%s/profile", userID), nil, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
