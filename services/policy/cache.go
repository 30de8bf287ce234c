package policy

import (
	"container/list"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Hycient195/academia-pro-access/models"
)

// CacheKey identifies one candidate set: the relevant policy types for a
// context shape. Candidate sets are shared across principals because
// scope and window filtering happen after the fetch.
type CacheKey struct {
	Types []models.PolicyType
}

// String returns a canonical representation of the cache key
func (k CacheKey) String() string {
	names := make([]string, len(k.Types))
	for i, t := range k.Types {
		names[i] = string(t)
	}
	sort.Strings(names)
	return strings.Join(names, ",")
}

// cacheEntry is a single cached candidate set with its insertion time
type cacheEntry struct {
	key        string
	policies   []*models.Policy
	insertedAt time.Time
	element    *list.Element
}

func (e *cacheEntry) isExpired(ttl time.Duration) bool {
	return time.Since(e.insertedAt) > ttl
}

// CandidateCache is an in-memory LRU cache with TTL for policy candidate
// sets. The TTL bounds how stale a snapshot an evaluation may observe;
// administrative mutations invalidate eagerly but concurrent evaluations
// may still finish against the older snapshot.
type CandidateCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	lruList *list.List
	maxSize int
	ttl     time.Duration
	hits    uint64
	misses  uint64
}

// NewCandidateCache creates a CandidateCache with the given capacity and TTL
func NewCandidateCache(maxSize int, ttl time.Duration) *CandidateCache {
	return &CandidateCache{
		entries: make(map[string]*cacheEntry),
		lruList: list.New(),
		maxSize: maxSize,
		ttl:     ttl,
	}
}

// Get retrieves a cached candidate set, or nil on miss or expiry
func (c *CandidateCache) Get(key CacheKey) []*models.Policy {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()
	entry, exists := c.entries[keyStr]
	if !exists || entry.isExpired(c.ttl) {
		c.misses++
		if exists {
			c.removeLocked(keyStr)
		}
		return nil
	}

	c.lruList.MoveToFront(entry.element)
	c.hits++
	return entry.policies
}

// Set stores a candidate set, evicting the least recently used entry
// once the cache is full
func (c *CandidateCache) Set(key CacheKey, policies []*models.Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()

	keyStr := key.String()
	if entry, exists := c.entries[keyStr]; exists {
		entry.policies = policies
		entry.insertedAt = time.Now()
		c.lruList.MoveToFront(entry.element)
		return
	}

	for len(c.entries) >= c.maxSize {
		oldest := c.lruList.Back()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*cacheEntry).key)
	}

	entry := &cacheEntry{
		key:        keyStr,
		policies:   policies,
		insertedAt: time.Now(),
	}
	entry.element = c.lruList.PushFront(entry)
	c.entries[keyStr] = entry
}

// Purge drops every cached candidate set. Called after any policy mutation
// because one policy can belong to many candidate sets.
func (c *CandidateCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*cacheEntry)
	c.lruList.Init()
}

// Stats reports cache hit/miss counters and current size
func (c *CandidateCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return CacheStats{
		Size:   len(c.entries),
		Hits:   c.hits,
		Misses: c.misses,
	}
}

// CacheStats represents cache statistics
type CacheStats struct {
	Size   int    `json:"size"`
	Hits   uint64 `json:"hits"`
	Misses uint64 `json:"misses"`
}

// StartCleanupWorker evicts expired entries on the given interval until
// stopCh closes
func (c *CandidateCache) StartCleanupWorker(interval time.Duration, stopCh <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				c.evictExpired()
			case <-stopCh:
				return
			}
		}
	}()
}

func (c *CandidateCache) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, entry := range c.entries {
		if entry.isExpired(c.ttl) {
			c.removeLocked(key)
		}
	}
}

// removeLocked removes an entry; caller must hold the mutex
func (c *CandidateCache) removeLocked(key string) {
	if entry, exists := c.entries[key]; exists {
		c.lruList.Remove(entry.element)
		delete(c.entries, key)
	}
}
