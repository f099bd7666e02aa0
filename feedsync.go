// Package feedsync is the shared-state synchronization core of the
// pet-community client: a persistent key-value cache, a typed event
// bus with cross-session propagation, and the coordination services
// that keep independently rendered widgets (navigation bar, sidebars,
// feed items, profile pages, friend lists) converging on the same
// avatars, follow relationships, bookmark flags, and counters.
//
// Views talk to the Client facade only. The durable store is a private
// implementation detail: all writes flow through the avatar resolver,
// the follow coordinator, or the feed reconciler so invalidation
// semantics stay consistent.
package feedsync
