package parse

import (
	"container/list"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sync"

	"github.com/codescope/codescope/internal/lang"
)

// Cache memoizes parsed trees keyed by path, validated by content hash.
// Entries are reference counted: a leased tree is never evicted, and an
// update never mutates an entry in place. Superseded entries stay
// accounted against the budget until their last lease is released.
type Cache struct {
	pool   *Pool
	budget int64

	mu      sync.Mutex
	used    int64
	entries map[string]*cacheEntry
	lru     *list.List // reclaimable entries only, front = most recent

	hits   uint64
	misses uint64
}

type cacheEntry struct {
	path       string
	hash       string
	tree       *Tree
	size       int64
	refs       int
	superseded bool
	elem       *list.Element // non-nil only while reclaimable
}

// Lease is a borrowed cache entry. Release must be called exactly once.
type Lease struct {
	Tree *Tree

	once  sync.Once
	cache *Cache
	entry *cacheEntry
}

// Release returns the lease, making the entry evictable again.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.cache != nil {
			l.cache.release(l.entry)
		}
	})
}

// NewCache creates an AST cache over the given parser pool with a byte
// budget. Budget <= 0 disables caching (every call parses).
func NewCache(pool *Pool, budget int64) *Cache {
	return &Cache{
		pool:    pool,
		budget:  budget,
		entries: make(map[string]*cacheEntry),
		lru:     list.New(),
	}
}

// HashContent returns the content hash used for staleness checks.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// GetOrParse returns the cached tree for path when the content hash
// matches, otherwise parses content and inserts the result. The caller
// must Release the lease when done with the tree.
func (c *Cache) GetOrParse(ctx context.Context, path string, content []byte, l *lang.Language) (*Lease, error) {
	hash := HashContent(content)

	c.mu.Lock()
	if e, ok := c.entries[path]; ok && e.hash == hash {
		c.hits++
		c.borrowLocked(e)
		c.mu.Unlock()
		return &Lease{Tree: e.tree, cache: c, entry: e}, nil
	}
	c.misses++
	c.mu.Unlock()

	tree, err := c.pool.Parse(ctx, content, l)
	if err != nil {
		return nil, err
	}

	e := &cacheEntry{
		path: path,
		hash: hash,
		tree: tree,
		size: tree.sizeBytes(),
		refs: 1,
	}

	c.mu.Lock()
	// A racing parse for the same path may have inserted meanwhile; the
	// newer insert supersedes it either way.
	if old, ok := c.entries[path]; ok {
		c.supersedeLocked(old)
	}
	if c.budget > 0 {
		c.entries[path] = e
		c.used += e.size
		c.evictLocked()
	} else {
		e.superseded = true
		e.size = 0
	}
	c.mu.Unlock()

	return &Lease{Tree: tree, cache: c, entry: e}, nil
}

// Invalidate drops the entry for path, if any. In-flight leases remain
// valid until released.
func (c *Cache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[path]; ok {
		c.supersedeLocked(e)
	}
}

// Stats returns hit and miss counts plus current byte usage.
func (c *Cache) Stats() (hits, misses uint64, usedBytes int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hits, c.misses, c.used
}

// borrowLocked marks an entry as leased, pulling it out of the
// reclaimable set so eviction cannot touch it.
func (c *Cache) borrowLocked(e *cacheEntry) {
	e.refs++
	if e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
	}
}

func (c *Cache) release(e *cacheEntry) {
	if e == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e.refs--
	if e.refs > 0 {
		return
	}
	if e.superseded {
		c.used -= e.size
		return
	}
	e.elem = c.lru.PushFront(e)
	c.evictLocked()
}

// supersedeLocked unlinks an entry from the map and LRU. Its bytes are
// freed immediately when unreferenced, otherwise at last release.
func (c *Cache) supersedeLocked(e *cacheEntry) {
	if e.superseded {
		return
	}
	e.superseded = true
	delete(c.entries, e.path)
	if e.elem != nil {
		c.lru.Remove(e.elem)
		e.elem = nil
	}
	if e.refs == 0 {
		c.used -= e.size
	}
}

// evictLocked removes least-recently-used reclaimable entries until the
// budget is satisfied. Leased entries are not in the LRU and survive.
func (c *Cache) evictLocked() {
	for c.used > c.budget {
		back := c.lru.Back()
		if back == nil {
			return
		}
		e := back.Value.(*cacheEntry)
		c.lru.Remove(back)
		e.elem = nil
		e.superseded = true
		delete(c.entries, e.path)
		c.used -= e.size
	}
}
