package domain

import "time"

// User represents a member of the community.
type User struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Img         string    `json:"img,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Profile carries the extended profile fields returned by the
// secondary profile endpoint. It duplicates the avatar path so the
// avatar resolver can fall back to it when the user lookup fails.
type Profile struct {
	UserID string `json:"user_id"`
	Img    string `json:"img,omitempty"`
	Bio    string `json:"bio,omitempty"`
	City   string `json:"city,omitempty"`
}

// FollowEdge is a directed follow relationship with its own identity.
// The boolean "is following" is always derived from edge presence,
// never stored on its own.
type FollowEdge struct {
	ID         string    `json:"id"`
	FollowerID string    `json:"follower_id"`
	FollowedID string    `json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a feed item. LikeCount and CommentCount are server-owned;
// the client only ever applies a ±1 delta optimistically.
// ViewerHasLiked and ViewerHasSaved are per-viewer derived flags, not
// part of the canonical server-side post.
type Post struct {
	ID             string    `json:"id"`
	AuthorID       string    `json:"author_id"`
	Content        string    `json:"content"`
	Image          string    `json:"image,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	LikeCount      int       `json:"like_count"`
	CommentCount   int       `json:"comment_count"`
	ViewerHasLiked bool      `json:"viewer_has_liked"`
	ViewerHasSaved bool      `json:"viewer_has_saved"`
}

// Comment belongs to a post. Append-only within a session.
type Comment struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	AuthorID  string    `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// SavedPostEdge is a bookmark relationship, same shape and lifecycle
// as FollowEdge.
type SavedPostEdge struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	PostID    string    `json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
