package kvstore

import "time"

// Entry is a single key-value pair for batch writes.
type Entry struct {
	Key   Key
	Value string
}

// Notifier receives a synchronous callback after each durable write.
// The event bus adapter implements it; the store itself knows nothing
// about topics.
type Notifier interface {
	KeyChanged(key Key, value string)
}

// Store is the process-wide persistent cache. Reads are synchronous and
// never fail; writes are last-writer-wins and emit one invalidation per
// changed key.
type Store interface {
	// Get returns the cached value for key. Never blocks on IO.
	Get(key Key) (string, bool)
	// Set overwrites the value for key and emits an invalidation.
	Set(key Key, value string)
	// MergeBatch applies all entries as one durable update, emitting one
	// invalidation per key in entry order.
	MergeBatch(entries []Entry)
	// Delete removes the entry for key, emitting an invalidation with an
	// empty value.
	Delete(key Key)
	// Degraded reports whether durable writes are currently unavailable
	// and the store is operating memory-only.
	Degraded() bool
	Close() error
}

// cacheEntry is the GORM model backing the durable namespace.
type cacheEntry struct {
	K         string    `gorm:"column:k;primaryKey;type:varchar(191)"`
	V         string    `gorm:"column:v"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (cacheEntry) TableName() string { return "cache_entries" }
