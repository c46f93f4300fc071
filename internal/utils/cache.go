package utils

import (
	"math"
	"reflect"
	"sync"
	"time"
)

const floatEpsilon = 1e-9

// ValueCache is a simple in-memory TTL cache of the last value seen per key.
// It is thread-safe and designed for small hot-path usage (e.g., measurement dedup).
type ValueCache struct {
	mu   sync.Mutex
	ttl  time.Duration
	now  func() time.Time
	data map[string]entry
}

type entry struct {
	v  any
	at time.Time
}

// NewValueCache creates a new cache with the given TTL. If ttl <= 0, it defaults to 1h.
func NewValueCache(ttl time.Duration) *ValueCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ValueCache{ttl: ttl, now: time.Now, data: make(map[string]entry, 64)}
}

// GetValue returns the cached value if it exists and hasn't expired.
func (c *ValueCache) GetValue(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.data[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.at) > c.ttl {
		delete(c.data, key)
		return nil, false
	}
	return e.v, true
}

// SetValue stores the value with the current timestamp.
func (c *ValueCache) SetValue(key string, v any) {
	c.mu.Lock()
	c.data[key] = entry{v: v, at: c.now()}
	c.mu.Unlock()
}

// Changed reports whether v differs from the cached value of key and, if
// so, stores it. An expired entry counts as changed so values are re-sent
// at least once per TTL.
func (c *ValueCache) Changed(key string, v any) bool {
	if old, ok := c.GetValue(key); ok && ValuesEqual(old, v) {
		return false
	}
	c.SetValue(key, v)
	return true
}

// Forget drops key.
func (c *ValueCache) Forget(key string) {
	c.mu.Lock()
	delete(c.data, key)
	c.mu.Unlock()
}

// SetTTL updates the cache TTL for subsequent get checks.
func (c *ValueCache) SetTTL(ttl time.Duration) {
	if ttl <= 0 {
		ttl = time.Hour
	}
	c.mu.Lock()
	c.ttl = ttl
	c.mu.Unlock()
}

// FloatsEqual compares with a small absolute tolerance. NaN equals NaN.
func FloatsEqual(a, b float64) bool {
	if math.IsNaN(a) || math.IsNaN(b) {
		return math.IsNaN(a) && math.IsNaN(b)
	}
	return math.Abs(a-b) <= floatEpsilon
}

// ValuesEqual compares cached values, using FloatsEqual for float64 pairs
// and deep equality for everything else.
func ValuesEqual(a, b any) bool {
	fa, okA := a.(float64)
	fb, okB := b.(float64)
	if okA && okB {
		return FloatsEqual(fa, fb)
	}
	if okA != okB {
		return false
	}
	return reflect.DeepEqual(a, b)
}
