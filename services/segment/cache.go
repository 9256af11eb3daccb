package segment

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/singleflight"

	"adserve-engine/pkg/predicate"
)

var (
	cacheHits = prometheus.NewCounter(prometheus.CounterOpts{Name: "segment_compile_cache_hits_total"})
	cacheMiss = prometheus.NewCounter(prometheus.CounterOpts{Name: "segment_compile_cache_miss_total"})
)

func init() {
	prometheus.DefaultRegisterer.MustRegister(cacheHits, cacheMiss)
}

// CompiledSegment is the cached output of compiling one segment's criteria.
type CompiledSegment struct {
	SegmentID string
	Criteria  []Criterion
	Predicate *predicate.Predicate
	Skips     []Skip
	UpdatedAt time.Time
}

// Cache holds compiled segments with a TTL. Concurrent misses for the same
// segment share one compile through singleflight.
type Cache struct {
	mu    sync.RWMutex
	items map[string]*CompiledSegment
	ttl   time.Duration
	group singleflight.Group
}

func NewCache(ttl time.Duration) *Cache {
	return &Cache{
		items: make(map[string]*CompiledSegment),
		ttl:   ttl,
	}
}

func (c *Cache) get(segmentID string) (*CompiledSegment, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.items[segmentID]
	if !ok || (c.ttl > 0 && time.Since(v.UpdatedAt) > c.ttl) {
		return nil, false
	}
	return v, true
}

func (c *Cache) set(segmentID string, v *CompiledSegment) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[segmentID] = v
}

// GetOrCompile returns the cached compilation or runs loader once per
// segment, however many goroutines miss at the same time.
func (c *Cache) GetOrCompile(segmentID string, loader func() (*CompiledSegment, error)) (*CompiledSegment, error) {
	if v, ok := c.get(segmentID); ok {
		cacheHits.Inc()
		return v, nil
	}
	cacheMiss.Inc()

	v, err, _ := c.group.Do(segmentID, func() (any, error) {
		if v, ok := c.get(segmentID); ok {
			return v, nil
		}
		compiled, err := loader()
		if err != nil {
			return nil, err
		}
		compiled.UpdatedAt = time.Now()
		c.set(segmentID, compiled)
		return compiled, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*CompiledSegment), nil
}

func (c *Cache) Invalidate(segmentID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, segmentID)
}
