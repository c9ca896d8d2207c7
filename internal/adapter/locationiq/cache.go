package locationiq

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/trip-link-parser/internal/domain"
	"github.com/couchcryptid/trip-link-parser/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache whose entries
// expire after a fixed TTL.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around a geocoder. A ttl <= 0
// keeps entries until they are evicted.
func NewCachedGeocoder(inner domain.Geocoder, maxEntries int, ttl time.Duration, clock clockwork.Clock, metrics *observability.Metrics) *CachedGeocoder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries, ttl, clock),
		metrics: metrics,
	}
}

// Search serves repeated queries from memory. Only non-empty results are
// cached so transient "not found" responses can be retried.
func (c *CachedGeocoder) Search(ctx context.Context, q domain.GeocodeQuery) ([]domain.GeocodeCandidate, error) {
	key := cacheKey(q)
	if result, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("memory", "hit").Inc()
		return result, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("memory", "miss").Inc()

	result, err := c.inner.Search(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(result) > 0 {
		c.cache.put(key, result)
	}
	return result, nil
}

// cacheKey normalizes a query so differently spaced or cased text shares an entry.
func cacheKey(q domain.GeocodeQuery) string {
	text := strings.ToLower(strings.Join(strings.Fields(q.Text), " "))
	return fmt.Sprintf("search:%s|%d|%s|%s", text, q.Limit,
		strings.ToLower(strings.TrimSpace(q.CountryCodes)),
		strings.ToLower(strings.TrimSpace(q.Language)))
}

// lruCache is a simple thread-safe LRU cache of search results.
type lruCache struct {
	maxEntries int
	ttl        time.Duration
	clock      clockwork.Clock
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key       string
	value     []domain.GeocodeCandidate
	expiresAt time.Time
	prev      *entry
	next      *entry
}

func newLRUCache(maxEntries int, ttl time.Duration, clock clockwork.Clock) *lruCache {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &lruCache{
		maxEntries: maxEntries,
		ttl:        ttl,
		clock:      clock,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) ([]domain.GeocodeCandidate, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.expired(e) {
		delete(c.entries, key)
		c.remove(e)
		return nil, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value []domain.GeocodeCandidate) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.clock.Now().Add(c.ttl)
	}

	if e, ok := c.entries[key]; ok {
		e.value = value
		e.expiresAt = expiresAt
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value, expiresAt: expiresAt}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) expired(e *entry) bool {
	return !e.expiresAt.IsZero() && !c.clock.Now().Before(e.expiresAt)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
	e.prev, e.next = nil, nil
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
