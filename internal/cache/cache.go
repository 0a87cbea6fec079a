// Package cache holds the last fetched collection of every entity type for a
// screen. It is not authoritative: a failed fetch leaves the previous snapshot
// readable.
package cache

import (
	"sync"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"campus-admin/internal/entity"
)

// Cache is an in-memory, per-entity-type store. It is safe for concurrent use.
type Cache struct {
	// mu serializes read-modify-write sequences; go-cache only locks single calls.
	mu     sync.Mutex
	items  *gocache.Cache
	logger *zap.Logger
}

// New creates an empty cache. Entries never expire: a collection lives until
// it is replaced, cleared, or the owning screen is discarded.
func New(logger *zap.Logger) *Cache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Cache{
		items:  gocache.New(gocache.NoExpiration, 0),
		logger: logger,
	}
}

// ReplaceAll overwrites the collection for t.
func (c *Cache) ReplaceAll(t entity.Type, items []entity.Doc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items.Set(string(t), entity.CloneAll(items), gocache.NoExpiration)
	c.logger.Debug("collection replaced", zap.String("type", string(t)), zap.Int("count", len(items)))
}

// Get returns a copy of the collection for t, or an empty slice if it was
// never populated.
func (c *Cache) Get(t entity.Type) []entity.Doc {
	c.mu.Lock()
	defer c.mu.Unlock()

	return entity.CloneAll(c.load(t))
}

// Populated reports whether t has been filled at least once.
func (c *Cache) Populated(t entity.Type) bool {
	_, found := c.items.Get(string(t))
	return found
}

// UpsertOne replaces the item with the same id or appends it.
func (c *Cache) UpsertOne(t entity.Type, item entity.Doc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.load(t)
	next := make([]entity.Doc, 0, len(current)+1)
	id := item.ID()
	replaced := false
	for _, existing := range current {
		if id != "" && existing.ID() == id {
			next = append(next, item.Clone())
			replaced = true
			continue
		}
		next = append(next, existing)
	}
	if !replaced {
		next = append(next, item.Clone())
	}
	c.items.Set(string(t), next, gocache.NoExpiration)
	c.logger.Debug("item upserted", zap.String("type", string(t)), zap.String("id", id), zap.Bool("replaced", replaced))
}

// RemoveOne drops the item with the given id. It reports whether one was found.
func (c *Cache) RemoveOne(t entity.Type, id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.load(t)
	next := make([]entity.Doc, 0, len(current))
	removed := false
	for _, existing := range current {
		if existing.ID() == id {
			removed = true
			continue
		}
		next = append(next, existing)
	}
	if removed {
		c.items.Set(string(t), next, gocache.NoExpiration)
		c.logger.Debug("item removed", zap.String("type", string(t)), zap.String("id", id))
	}
	return removed
}

// Modify applies fn to a copy of the item with the given id and stores the
// result. It reports whether the item was found.
func (c *Cache) Modify(t entity.Type, id string, fn func(entity.Doc)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	current := c.load(t)
	for i, existing := range current {
		if existing.ID() != id {
			continue
		}
		next := make([]entity.Doc, len(current))
		copy(next, current)
		item := existing.Clone()
		fn(item)
		next[i] = item
		c.items.Set(string(t), next, gocache.NoExpiration)
		return true
	}
	return false
}

// Clear empties every collection.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Flush()
}

func (c *Cache) load(t entity.Type) []entity.Doc {
	v, found := c.items.Get(string(t))
	if !found {
		return []entity.Doc{}
	}
	return v.([]entity.Doc)
}
