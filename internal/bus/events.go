package bus

import "strings"

// Event is a change notification. The set of variants is closed:
// subscribers match on topic, publishers construct one of the concrete
// types below. No stringly-typed event names cross package boundaries.
type Event interface {
	// Topic returns the subscription key this event is delivered on.
	Topic() string
}

// Topic constants for the fixed (non-parameterized) topics and the
// per-kind wildcards.
const (
	TopicFollowChanged = "follows"
	TopicSavedChanged  = "saved"
	TopicAnyAvatar     = "avatar:*"
	TopicAnyEntry      = "entry:*"
)

// AvatarTopic returns the per-user avatar topic.
func AvatarTopic(userID string) string {
	return "avatar:" + userID
}

// EntryTopic returns the per-key generic invalidation topic.
func EntryTopic(cacheKey string) string {
	return "entry:" + cacheKey
}

// AvatarChanged signals that a user's resolved avatar path changed.
type AvatarChanged struct {
	UserID string `json:"user_id"`
	Path   string `json:"path"`
}

func (e AvatarChanged) Topic() string { return AvatarTopic(e.UserID) }

// FollowChanged signals that the follower's edge set changed with
// respect to the target. Suggestion and friends-list widgets react to
// it without re-querying the server.
type FollowChanged struct {
	FollowerID string `json:"follower_id"`
	TargetID   string `json:"target_id"`
	Following  bool   `json:"following"`
}

func (e FollowChanged) Topic() string { return TopicFollowChanged }

// SavedChanged signals that the viewer's bookmark flag for a post
// changed.
type SavedChanged struct {
	UserID string `json:"user_id"`
	PostID string `json:"post_id"`
	Saved  bool   `json:"saved"`
}

func (e SavedChanged) Topic() string { return TopicSavedChanged }

// EntryChanged is the generic invalidation for cache keys that have no
// dedicated variant (session snapshot, comment threads, feed list).
type EntryChanged struct {
	Key   string `json:"key"`
	Value string `json:"value,omitempty"`
}

func (e EntryChanged) Topic() string { return EntryTopic(e.Key) }

// wildcardOf maps a concrete topic to its per-kind wildcard, or ""
// when the topic has no parameterized part.
func wildcardOf(topic string) string {
	kind, _, ok := strings.Cut(topic, ":")
	if !ok {
		return ""
	}
	return kind + ":*"
}
