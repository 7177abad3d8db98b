package catalog

import (
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"animehub/pkg/models"
)

// Cache memoizes LoadFile per path. An entry is reused while the file's
// modification time and size are unchanged and it is younger than the TTL.
// A zero TTL disables expiry. Safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]cacheEntry
	logger  *zap.Logger

	now  func() time.Time
	load func(string) ([]models.CatalogEntry, error)
}

type cacheEntry struct {
	modTime  time.Time
	size     int64
	loadedAt time.Time
	rows     []models.CatalogEntry
}

func NewCache(ttl time.Duration, logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		ttl:     ttl,
		entries: make(map[string]cacheEntry),
		logger:  logger,
		now:     time.Now,
		load:    LoadFile,
	}
}

// Get returns the catalog at path, loading it when the cached copy is
// missing, stale or expired. Callers must treat the result as read-only.
func (c *Cache) Get(path string) ([]models.CatalogEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		c.Invalidate(path)
		return nil, openFailed(path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if ent, ok := c.entries[path]; ok && c.fresh(ent, info, now) {
		return ent.rows, nil
	}

	rows, err := c.load(path)
	if err != nil {
		delete(c.entries, path)
		return nil, err
	}
	c.entries[path] = cacheEntry{
		modTime:  info.ModTime(),
		size:     info.Size(),
		loadedAt: now,
		rows:     rows,
	}
	c.logger.Info("catalog loaded", zap.String("path", path), zap.Int("rows", len(rows)))
	return rows, nil
}

func (c *Cache) fresh(ent cacheEntry, info os.FileInfo, now time.Time) bool {
	if !ent.modTime.Equal(info.ModTime()) || ent.size != info.Size() {
		return false
	}
	return c.ttl <= 0 || now.Sub(ent.loadedAt) < c.ttl
}

// Invalidate drops the cached copy of path.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	_, had := c.entries[path]
	delete(c.entries, path)
	c.mu.Unlock()
	if had {
		c.logger.Debug("catalog cache invalidated", zap.String("path", path))
	}
}

// InvalidateAll empties the cache.
func (c *Cache) InvalidateAll() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}
