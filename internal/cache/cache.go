// Package cache provides caching for parsed documents and built diagram graphs.
package cache

import (
	"container/list"
	"strings"
	"sync"
	"time"

	"github.com/axonops/openapi-diagram/internal/diagram"
	"github.com/axonops/openapi-diagram/internal/openapi"
)

// Cache is an in-memory LRU cache with per-entry expiry.
// A capacity of zero means unlimited; a ttl of zero means entries never expire.
type Cache[V any] struct {
	capacity int
	ttl      time.Duration
	now      func() time.Time

	mu     sync.Mutex
	items  map[string]*list.Element
	order  *list.List // front is most recently used
	hits   uint64
	misses uint64
}

type entry[V any] struct {
	key       string
	value     V
	expiresAt time.Time
}

// New creates a new cache with the specified capacity and TTL.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	return &Cache[V]{
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
		items:    make(map[string]*list.Element),
		order:    list.New(),
	}
}

// Get retrieves an item from the cache.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.misses++
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.expired(e) {
		c.remove(el)
		c.misses++
		return zero, false
	}

	c.order.MoveToFront(el)
	c.hits++
	return e.value, true
}

// Set stores an item in the cache, evicting the least recently used one when full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.expiresAt = c.expiry()
		c.order.MoveToFront(el)
		return
	}

	if c.capacity > 0 && len(c.items) >= c.capacity {
		if oldest := c.order.Back(); oldest != nil {
			c.remove(oldest)
		}
	}
	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expiresAt: c.expiry()})
}

// Delete removes an item from the cache.
func (c *Cache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		c.remove(el)
	}
}

// DeleteFunc removes every item whose key matches fn and returns how many were removed.
func (c *Cache[V]) DeleteFunc(fn func(key string) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, el := range c.items {
		if fn(key) {
			c.remove(el)
			removed++
		}
	}
	return removed
}

// Clear removes all items from the cache.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.order.Init()
}

// Size returns the number of items in the cache.
func (c *Cache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// CleanupExpired removes all expired items from the cache.
func (c *Cache[V]) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, el := range c.items {
		if c.expired(el.Value.(*entry[V])) {
			c.remove(el)
			removed++
		}
	}
	return removed
}

// Stats returns cache statistics.
type Stats struct {
	Size     int
	Capacity int
	Hits     uint64
	Misses   uint64
}

// Stats returns the current cache statistics.
func (c *Cache[V]) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Size:     len(c.items),
		Capacity: c.capacity,
		Hits:     c.hits,
		Misses:   c.misses,
	}
}

func (c *Cache[V]) expiry() time.Time {
	if c.ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(c.ttl)
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *Cache[V]) remove(el *list.Element) {
	c.order.Remove(el)
	delete(c.items, el.Value.(*entry[V]).key)
}

// GraphCache caches built graphs by document fingerprint and scope.
type GraphCache struct {
	cache *Cache[*diagram.Graph]
}

// NewGraphCache creates a new graph cache.
func NewGraphCache(capacity int, ttl time.Duration) *GraphCache {
	return &GraphCache{
		cache: New[*diagram.Graph](capacity, ttl),
	}
}

func graphKey(fingerprint string, scope diagram.Scope) string {
	return fingerprint + "#" + scope.String()
}

// Get retrieves a built graph from the cache.
func (c *GraphCache) Get(fingerprint string, scope diagram.Scope) (*diagram.Graph, bool) {
	return c.cache.Get(graphKey(fingerprint, scope))
}

// Set stores a built graph in the cache.
func (c *GraphCache) Set(fingerprint string, scope diagram.Scope, g *diagram.Graph) {
	c.cache.Set(graphKey(fingerprint, scope), g)
}

// Invalidate drops every graph built from the document with the given fingerprint.
func (c *GraphCache) Invalidate(fingerprint string) int {
	prefix := fingerprint + "#"
	return c.cache.DeleteFunc(func(key string) bool {
		return strings.HasPrefix(key, prefix)
	})
}

// CleanupExpired removes expired graphs.
func (c *GraphCache) CleanupExpired() int {
	return c.cache.CleanupExpired()
}

// Stats returns the cache statistics.
func (c *GraphCache) Stats() Stats {
	return c.cache.Stats()
}

// Clear clears the cache.
func (c *GraphCache) Clear() {
	c.cache.Clear()
}

// DocumentCache caches normalized documents by raw fingerprint.
type DocumentCache struct {
	cache *Cache[*openapi.Document]
}

// NewDocumentCache creates a new document cache.
func NewDocumentCache(capacity int, ttl time.Duration) *DocumentCache {
	return &DocumentCache{
		cache: New[*openapi.Document](capacity, ttl),
	}
}

// Get retrieves a normalized document from the cache.
func (c *DocumentCache) Get(fingerprint string) (*openapi.Document, bool) {
	return c.cache.Get(fingerprint)
}

// Set stores a normalized document in the cache.
func (c *DocumentCache) Set(fingerprint string, doc *openapi.Document) {
	c.cache.Set(fingerprint, doc)
}

// Delete removes a document from the cache.
func (c *DocumentCache) Delete(fingerprint string) {
	c.cache.Delete(fingerprint)
}

// CleanupExpired removes expired documents.
func (c *DocumentCache) CleanupExpired() int {
	return c.cache.CleanupExpired()
}

// Size returns the cache size.
func (c *DocumentCache) Size() int {
	return c.cache.Size()
}
