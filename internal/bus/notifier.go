package bus

import "github.com/pawhub/feedsync/internal/kvstore"

// StoreNotifier adapts the bus to the cache's write hook: every durable
// write becomes an invalidation event. Avatar keys map to the dedicated
// AvatarChanged variant; everything else is a generic EntryChanged.
type StoreNotifier struct {
	Bus *Bus
}

// KeyChanged implements kvstore.Notifier.
func (n StoreNotifier) KeyChanged(key kvstore.Key, value string) {
	switch key.Kind {
	case kvstore.KindAvatar:
		n.Bus.Publish(AvatarChanged{UserID: key.ID, Path: value})
	default:
		n.Bus.Publish(EntryChanged{Key: key.String(), Value: value})
	}
}

// Ensure the adapter satisfies the store hook at compile time.
var _ kvstore.Notifier = StoreNotifier{}
