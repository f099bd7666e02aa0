package kvstore

import (
	"sync"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pawhub/feedsync/pkg/database"
	pkglog "github.com/pawhub/feedsync/pkg/log"
)

// GormStore implements Store on top of a GORM-managed table, fronted by
// an in-memory map so reads never touch the database. When the durable
// layer is unavailable the store degrades to memory-only instead of
// failing writes.
type GormStore struct {
	notifier Notifier

	mu       sync.RWMutex
	mem      map[string]string
	db       *gorm.DB
	degraded bool
}

// Open opens (or creates) the durable namespace at path using sqlite.
// It never returns an error for an unusable path: the store comes up
// degraded and reads/writes keep working within the process lifetime.
func Open(path string, notifier Notifier) *GormStore {
	s := &GormStore{
		notifier: notifier,
		mem:      make(map[string]string),
	}

	db, err := database.New(&database.Config{Driver: "sqlite", FilePath: path})
	if err != nil {
		pkglog.L().Warn().Err(err).Str("path", path).Msg("cache store unavailable, running memory-only")
		s.degraded = true
		return s
	}
	if err := database.AutoMigrate(db, &cacheEntry{}); err != nil {
		pkglog.L().Warn().Err(err).Msg("cache store migration failed, running memory-only")
		s.degraded = true
		return s
	}

	s.db = db
	s.warm()
	return s
}

// OpenMemory returns a store with no durable layer. Used by tests and
// as the explicit in-memory mode.
func OpenMemory(notifier Notifier) *GormStore {
	return &GormStore{
		notifier: notifier,
		mem:      make(map[string]string),
		degraded: true,
	}
}

// warm loads all durable entries into the in-memory map so Get can stay
// synchronous.
func (s *GormStore) warm() {
	var rows []cacheEntry
	if err := s.db.Find(&rows).Error; err != nil {
		pkglog.L().Warn().Err(err).Msg("cache warm-up read failed")
		return
	}
	for _, row := range rows {
		s.mem[row.K] = row.V
	}
}

// Get returns the cached value for key. It never blocks on IO and never
// fails.
func (s *GormStore) Get(key Key) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.mem[key.String()]
	return v, ok
}

// Set overwrites the value for key. The durable write happens first;
// the invalidation is emitted synchronously after it succeeds (or after
// the store falls back to memory-only).
func (s *GormStore) Set(key Key, value string) {
	s.mu.Lock()
	s.mem[key.String()] = value
	s.persist([]Entry{{Key: key, Value: value}})
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.KeyChanged(key, value)
	}
}

// MergeBatch applies all entries as a single durable update, then emits
// one invalidation per key, preserving entry order.
func (s *GormStore) MergeBatch(entries []Entry) {
	if len(entries) == 0 {
		return
	}

	s.mu.Lock()
	for _, e := range entries {
		s.mem[e.Key.String()] = e.Value
	}
	s.persist(entries)
	s.mu.Unlock()

	if s.notifier != nil {
		for _, e := range entries {
			s.notifier.KeyChanged(e.Key, e.Value)
		}
	}
}

// Delete removes the entry for key and emits an invalidation carrying
// an empty value.
func (s *GormStore) Delete(key Key) {
	s.mu.Lock()
	delete(s.mem, key.String())
	if s.db != nil && !s.degraded {
		if err := s.db.Delete(&cacheEntry{}, "k = ?", key.String()).Error; err != nil {
			s.fallback(err)
		}
	}
	s.mu.Unlock()

	if s.notifier != nil {
		s.notifier.KeyChanged(key, "")
	}
}

// Degraded reports whether the store is operating memory-only.
func (s *GormStore) Degraded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.degraded
}

// Close releases the underlying database connection.
func (s *GormStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// persist upserts the entries inside one transaction. Callers hold the
// write lock.
func (s *GormStore) persist(entries []Entry) {
	if s.db == nil || s.degraded {
		return
	}

	rows := make([]cacheEntry, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, cacheEntry{K: e.Key.String(), V: e.Value})
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "k"}},
		DoUpdates: clause.AssignmentColumns([]string{"v", "updated_at"}),
	}).Create(&rows).Error
	if err != nil {
		s.fallback(err)
	}
}

// fallback flips the store into memory-only mode after a durable write
// failure. Callers hold the write lock.
func (s *GormStore) fallback(err error) {
	s.degraded = true
	pkglog.L().Warn().Err(err).Msg("durable cache write failed, degrading to memory-only")
}

// Ensure interface is satisfied at compile time.
var _ Store = (*GormStore)(nil)
