package service

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/smartcity/fleet-tracker/internal/domain"
)

// DefaultLabelCacheSize bounds the number of cached coordinate labels
const DefaultLabelCacheSize = 10000

// LabelCache is a fixed-capacity LRU of resolved labels with a staleness window
type LabelCache struct {
	entries *lru.Cache[domain.GeoKey, domain.GeoLabelCacheEntry]
	ttl     time.Duration
	now     func() time.Time
}

// NewLabelCache creates a cache holding at most size labels, each fresh for ttl
func NewLabelCache(size int, ttl time.Duration) (*LabelCache, error) {
	if size <= 0 {
		size = DefaultLabelCacheSize
	}
	if ttl <= 0 {
		ttl = domain.LabelTTL
	}
	entries, err := lru.New[domain.GeoKey, domain.GeoLabelCacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("label_cache: failed to create lru: %w", err)
	}
	return &LabelCache{entries: entries, ttl: ttl, now: time.Now}, nil
}

// Get returns the entry for key if it exists and is still fresh
func (c *LabelCache) Get(key domain.GeoKey) (domain.GeoLabelCacheEntry, bool) {
	entry, ok := c.entries.Get(key)
	if !ok || !entry.Fresh(c.now(), c.ttl) {
		return domain.GeoLabelCacheEntry{}, false
	}
	return entry, true
}

// Put stores label under key stamped with the current time
func (c *LabelCache) Put(key domain.GeoKey, label, source string) domain.GeoLabelCacheEntry {
	entry := domain.GeoLabelCacheEntry{
		Key:            key,
		Label:          label,
		Source:         source,
		CachedAtMillis: c.now().UnixMilli(),
	}
	c.entries.Add(key, entry)
	return entry
}

// Load stores a previously resolved entry keeping its original timestamp.
// Stale entries are ignored.
func (c *LabelCache) Load(entry domain.GeoLabelCacheEntry) bool {
	if !entry.Fresh(c.now(), c.ttl) {
		return false
	}
	c.entries.Add(entry.Key, entry)
	return true
}

// Len returns the number of cached entries, fresh or stale
func (c *LabelCache) Len() int {
	return c.entries.Len()
}
