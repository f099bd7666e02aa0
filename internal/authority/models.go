package authority

import (
	"time"

	"github.com/pawhub/feedsync/internal/domain"
)

// UserModel is the GORM model for the users table.
type UserModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	Username     string    `gorm:"uniqueIndex;type:varchar(64);not null"`
	DisplayName  string    `gorm:"type:varchar(128)"`
	PasswordHash string    `gorm:"not null"`
	Img          string    `gorm:"type:varchar(512)"`
	Bio          string    `gorm:"type:varchar(512)"`
	City         string    `gorm:"type:varchar(128)"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (UserModel) TableName() string { return "users" }

func (m UserModel) ToUser() domain.User {
	return domain.User{
		ID:          m.ID,
		Username:    m.Username,
		DisplayName: m.DisplayName,
		Img:         m.Img,
		CreatedAt:   m.CreatedAt,
	}
}

func (m UserModel) ToProfile() domain.Profile {
	return domain.Profile{
		UserID: m.ID,
		Img:    m.Img,
		Bio:    m.Bio,
		City:   m.City,
	}
}

// FollowEdgeModel is the GORM model for the follow_edges table.
type FollowEdgeModel struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	FollowerID string    `gorm:"index:idx_follow_pair,unique;type:varchar(36);not null"`
	FollowedID string    `gorm:"index:idx_follow_pair,unique;type:varchar(36);not null"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

func (FollowEdgeModel) TableName() string { return "follow_edges" }

func (m FollowEdgeModel) ToEdge() domain.FollowEdge {
	return domain.FollowEdge{
		ID:         m.ID,
		FollowerID: m.FollowerID,
		FollowedID: m.FollowedID,
		CreatedAt:  m.CreatedAt,
	}
}

// PostModel is the GORM model for the posts table.
type PostModel struct {
	ID           string    `gorm:"primaryKey;type:varchar(36)"`
	AuthorID     string    `gorm:"index;type:varchar(36);not null"`
	Content      string    `gorm:"not null"`
	Image        string    `gorm:"type:varchar(512)"`
	LikeCount    int       `gorm:"not null;default:0"`
	CommentCount int       `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (PostModel) TableName() string { return "posts" }

// LikeModel records one user's like on one post.
type LikeModel struct {
	ID     string `gorm:"primaryKey;type:varchar(36)"`
	PostID string `gorm:"index:idx_like_pair,unique;type:varchar(36);not null"`
	UserID string `gorm:"index:idx_like_pair,unique;type:varchar(36);not null"`
}

func (LikeModel) TableName() string { return "likes" }

// CommentModel is the GORM model for the comments table.
type CommentModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	PostID    string    `gorm:"index;type:varchar(36);not null"`
	AuthorID  string    `gorm:"type:varchar(36);not null"`
	Content   string    `gorm:"not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (CommentModel) TableName() string { return "comments" }

func (m CommentModel) ToComment() domain.Comment {
	return domain.Comment{
		ID:        m.ID,
		PostID:    m.PostID,
		AuthorID:  m.AuthorID,
		Content:   m.Content,
		CreatedAt: m.CreatedAt,
	}
}

// SavedPostEdgeModel is the GORM model for the saved_posts table.
type SavedPostEdgeModel struct {
	ID        string    `gorm:"primaryKey;type:varchar(36)"`
	UserID    string    `gorm:"index:idx_saved_pair,unique;type:varchar(36);not null"`
	PostID    string    `gorm:"index:idx_saved_pair,unique;type:varchar(36);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (SavedPostEdgeModel) TableName() string { return "saved_posts" }

func (m SavedPostEdgeModel) ToEdge() domain.SavedPostEdge {
	return domain.SavedPostEdge{
		ID:        m.ID,
		UserID:    m.UserID,
		PostID:    m.PostID,
		CreatedAt: m.CreatedAt,
	}
}

// Models lists every table for auto-migration.
func Models() []interface{} {
	return []interface{}{
		&UserModel{},
		&FollowEdgeModel{},
		&PostModel{},
		&LikeModel{},
		&CommentModel{},
		&SavedPostEdgeModel{},
	}
}
