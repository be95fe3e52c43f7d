package loader

import (
	"container/list"
	"sync"
	"time"

	"github.com/philipparndt/gomesh/pkg/mesh"
)

// Key identifies one parse result. A file that changes on disk gets a
// new modification time and therefore a new key.
type Key struct {
	Path    string
	ModTime time.Time
}

// Cache stores parsed models. Implementations must be safe for concurrent
// use.
type Cache interface {
	Get(key Key) (*mesh.Model, bool)
	Put(key Key, model *mesh.Model)
	// Invalidate drops every entry for path regardless of its mtime
	Invalidate(path string)
	Len() int
}

// EvictionPolicy decides which entries leave a MemoryCache. The cache
// calls it under its own lock.
type EvictionPolicy interface {
	Added(key Key, model *mesh.Model)
	Accessed(key Key)
	Removed(key Key)
	// Victims returns the keys to evict after an insertion
	Victims() []Key
}

// MemoryCache is an in-process Cache whose eviction is delegated to a
// host supplied policy
type MemoryCache struct {
	mu      sync.Mutex
	entries map[Key]*mesh.Model
	policy  EvictionPolicy
}

// NewMemoryCache creates a cache. A nil policy never evicts.
func NewMemoryCache(policy EvictionPolicy) *MemoryCache {
	if policy == nil {
		policy = noEviction{}
	}
	return &MemoryCache{
		entries: map[Key]*mesh.Model{},
		policy:  policy,
	}
}

// Get implements Cache
func (c *MemoryCache) Get(key Key) (*mesh.Model, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	m, ok := c.entries[key]
	if ok {
		c.policy.Accessed(key)
	}
	return m, ok
}

// Put implements Cache. Older entries for the same path are replaced.
func (c *MemoryCache) Put(key Key, model *mesh.Model) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.Path == key.Path && k != key {
			c.remove(k)
		}
	}
	if _, ok := c.entries[key]; ok {
		c.remove(key)
	}
	c.entries[key] = model
	c.policy.Added(key, model)

	for _, victim := range c.policy.Victims() {
		c.remove(victim)
	}
}

// Invalidate implements Cache
func (c *MemoryCache) Invalidate(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k := range c.entries {
		if k.Path == path {
			c.remove(k)
		}
	}
}

// Len implements Cache
func (c *MemoryCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *MemoryCache) remove(key Key) {
	if _, ok := c.entries[key]; !ok {
		return
	}
	delete(c.entries, key)
	c.policy.Removed(key)
}

type noEviction struct{}

func (noEviction) Added(Key, *mesh.Model) {}
func (noEviction) Accessed(Key)           {}
func (noEviction) Removed(Key)            {}
func (noEviction) Victims() []Key         { return nil }

// LRUPolicy evicts the least recently used entries once either limit is
// exceeded. A zero limit is unbounded. The most recent entry is never
// evicted, even if it alone exceeds MaxTriangles.
type LRUPolicy struct {
	MaxEntries   int
	MaxTriangles int

	order     *list.List
	elements  map[Key]*list.Element
	triangles map[Key]int
	total     int
}

// NewLRUPolicy creates an LRU policy with the given limits
func NewLRUPolicy(maxEntries, maxTriangles int) *LRUPolicy {
	return &LRUPolicy{
		MaxEntries:   maxEntries,
		MaxTriangles: maxTriangles,
		order:        list.New(),
		elements:     map[Key]*list.Element{},
		triangles:    map[Key]int{},
	}
}

// Added implements EvictionPolicy
func (p *LRUPolicy) Added(key Key, model *mesh.Model) {
	p.elements[key] = p.order.PushFront(key)
	n := model.TriangleCount()
	p.triangles[key] = n
	p.total += n
}

// Accessed implements EvictionPolicy
func (p *LRUPolicy) Accessed(key Key) {
	if e, ok := p.elements[key]; ok {
		p.order.MoveToFront(e)
	}
}

// Removed implements EvictionPolicy
func (p *LRUPolicy) Removed(key Key) {
	e, ok := p.elements[key]
	if !ok {
		return
	}
	p.order.Remove(e)
	delete(p.elements, key)
	p.total -= p.triangles[key]
	delete(p.triangles, key)
}

// Victims implements EvictionPolicy
func (p *LRUPolicy) Victims() []Key {
	var victims []Key
	count := p.order.Len()
	total := p.total

	for e := p.order.Back(); e != nil && count > 1; e = e.Prev() {
		overEntries := p.MaxEntries > 0 && count > p.MaxEntries
		overTriangles := p.MaxTriangles > 0 && total > p.MaxTriangles
		if !overEntries && !overTriangles {
			break
		}
		key := e.Value.(Key)
		victims = append(victims, key)
		count--
		total -= p.triangles[key]
	}
	return victims
}
