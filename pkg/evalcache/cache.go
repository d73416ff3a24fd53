// Package evalcache memoizes expression results per evaluation namespace.
// Namespaces never share entries: the same expression text evaluated for
// visibility and for validation has different freshness requirements, so each
// namespace carries its own default TTL. Entries are dropped two ways — lazy
// time-based expiry on read, and dependency-triggered eviction when an
// element's value changes. Entries are pure derived data, always safe to drop
// and recompute.
package evalcache

import (
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/goliatone/go-formengine/pkg/form"
)

// Reference TTLs per namespace: short for fast-changing results, long for
// expensive-but-stable ones.
const (
	DefaultValidationTTL = 1 * time.Second
	DefaultVisibilityTTL = 5 * time.Second
	DefaultEnablementTTL = 5 * time.Second
	DefaultBindingTTL    = 30 * time.Second
	DefaultChoicesTTL    = 60 * time.Second

	// maxValidationTTL caps validation overrides so a stale validation
	// result cannot persist across a user-visible interaction.
	maxValidationTTL = 2 * time.Second
)

// Key identifies one cached evaluation. Element scopes the entry for
// dependency-triggered eviction; Context carries optional evaluation context
// that participates in identity (an iteration index, a locale, ...).
type Key struct {
	Expression string
	Element    string
	Context    string
}

func (k Key) id() string {
	// 0x1f keeps concatenated parts unambiguous.
	return k.Expression + "\x1f" + k.Element + "\x1f" + k.Context
}

// Options configures a Cache.
type Options struct {
	// TTLOverrides replaces the default TTL for the listed namespaces.
	// Validation overrides are clamped to two seconds.
	TTLOverrides map[form.Namespace]time.Duration

	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Stats is a point-in-time counter snapshot.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

type entry struct {
	value     any
	element   string
	expiresAt time.Time
}

// Cache is a namespace-partitioned memoization store. Safe for concurrent
// use; the cache guards its own mutation independently of the dependency
// graph and the form snapshot.
type Cache struct {
	mu         sync.Mutex
	namespaces map[form.Namespace]map[string]entry
	ttls       map[form.Namespace]time.Duration
	now        func() time.Time
	flight     singleflight.Group

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New builds a cache with the reference TTLs, applying any overrides.
func New(opts Options) *Cache {
	ttls := map[form.Namespace]time.Duration{
		form.NamespaceValidation: DefaultValidationTTL,
		form.NamespaceVisibility: DefaultVisibilityTTL,
		form.NamespaceEnablement: DefaultEnablementTTL,
		form.NamespaceBinding:    DefaultBindingTTL,
		form.NamespaceChoices:    DefaultChoicesTTL,
	}
	for ns, ttl := range opts.TTLOverrides {
		if ttl <= 0 {
			continue
		}
		if ns == form.NamespaceValidation && ttl > maxValidationTTL {
			ttl = maxValidationTTL
		}
		ttls[ns] = ttl
	}

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Cache{
		namespaces: map[form.Namespace]map[string]entry{},
		ttls:       ttls,
		now:        now,
	}
	for _, ns := range form.Namespaces() {
		c.namespaces[ns] = map[string]entry{}
	}
	return c
}

// TTL reports the effective TTL for a namespace.
func (c *Cache) TTL(ns form.Namespace) time.Duration {
	if ttl, ok := c.ttls[ns]; ok {
		return ttl
	}
	return DefaultValidationTTL
}

// Get returns a result only if present and unexpired. Expired entries are
// evicted on the way out.
func (c *Cache) Get(ns form.Namespace, key Key) (any, bool) {
	id := key.id()

	c.mu.Lock()
	bucket := c.namespaces[ns]
	if bucket == nil {
		c.mu.Unlock()
		c.misses.Add(1)
		return nil, false
	}
	ent, ok := bucket[id]
	if ok && c.now().After(ent.expiresAt) {
		delete(bucket, id)
		c.evictions.Add(1)
		ok = false
	}
	c.mu.Unlock()

	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return ent.value, true
}

// Put stores a result under the namespace's TTL.
func (c *Cache) Put(ns form.Namespace, key Key, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	bucket := c.namespaces[ns]
	if bucket == nil {
		bucket = map[string]entry{}
		c.namespaces[ns] = bucket
	}
	bucket[key.id()] = entry{
		value:     value,
		element:   key.Element,
		expiresAt: c.now().Add(c.TTL(ns)),
	}
}

// GetOrCompute returns the cached result or computes and stores it.
// Concurrent callers computing the same (namespace, key) share one compute
// call. Compute errors are returned and never cached.
func (c *Cache) GetOrCompute(ns form.Namespace, key Key, compute func() (any, error)) (any, error) {
	if value, ok := c.Get(ns, key); ok {
		return value, nil
	}
	value, err, _ := c.flight.Do(string(ns)+"\x1f"+key.id(), func() (any, error) {
		if value, ok := c.Get(ns, key); ok {
			return value, nil
		}
		value, err := compute()
		if err != nil {
			return nil, err
		}
		c.Put(ns, key, value)
		return value, nil
	})
	return value, err
}

// EvictElement removes every entry referencing the element across all
// namespaces — the dependency-triggered invalidation path, distinct from
// time-based expiry. Returns the number of entries removed.
func (c *Cache) EvictElement(element string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for _, bucket := range c.namespaces {
		removed += evictFrom(bucket, element)
	}
	c.evictions.Add(int64(removed))
	return removed
}

// EvictElementNamespace removes the element's entries from one namespace.
func (c *Cache) EvictElementNamespace(element string, ns form.Namespace) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := evictFrom(c.namespaces[ns], element)
	c.evictions.Add(int64(removed))
	return removed
}

func evictFrom(bucket map[string]entry, element string) int {
	removed := 0
	for id, ent := range bucket {
		if ent.element == element {
			delete(bucket, id)
			removed++
		}
	}
	return removed
}

// CleanupExpired sweeps expired entries, bounding memory growth between
// reads. Lazy expiry on Get already guarantees correctness; the sweep is an
// optional periodic maintenance call.
func (c *Cache) CleanupExpired() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	removed := 0
	for _, bucket := range c.namespaces {
		for id, ent := range bucket {
			if now.After(ent.expiresAt) {
				delete(bucket, id)
				removed++
			}
		}
	}
	c.evictions.Add(int64(removed))
	return removed
}

// Purge drops everything.
func (c *Cache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for ns, bucket := range c.namespaces {
		removed += len(bucket)
		c.namespaces[ns] = map[string]entry{}
	}
	c.evictions.Add(int64(removed))
}

// Stats returns current counters plus the live entry count.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := 0
	for _, bucket := range c.namespaces {
		entries += len(bucket)
	}
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}
