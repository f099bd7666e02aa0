package kvstore

import "strings"

// Kind identifies the type of cached fact.
type Kind string

const (
	KindAvatar  Kind = "avatar"
	KindFollows Kind = "follows"
	KindSession Kind = "session"
)

// Key identifies a single cacheable fact: at most one entry exists per key.
type Key struct {
	Kind Kind
	ID   string
}

// NewKey builds a key from its parts.
func NewKey(kind Kind, id string) Key {
	return Key{Kind: kind, ID: id}
}

// String renders the key in its durable "kind:id" form.
func (k Key) String() string {
	return string(k.Kind) + ":" + k.ID
}

// ParseKey is the inverse of String. Unknown shapes parse as a key with
// an empty kind so callers can detect them.
func ParseKey(s string) Key {
	kind, id, ok := strings.Cut(s, ":")
	if !ok {
		return Key{ID: s}
	}
	return Key{Kind: Kind(kind), ID: id}
}
