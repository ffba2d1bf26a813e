package simulator

import (
	"fmt"
	"math"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"

	"github.com/yourusername/baseline-edge/internal/metrics"
	"github.com/yourusername/baseline-edge/internal/scoring"
)

// CacheKey identifies a closed-form match probability. Probabilities are rounded to
// six decimals so near-identical profiles share an entry.
type CacheKey struct {
	PA     float64
	PB     float64
	Format scoring.MatchFormat
}

// String returns string representation of cache key
func (k CacheKey) String() string {
	return fmt.Sprintf("%.6f:%.6f:%d:%d-%d:%d-%d", k.PA, k.PB, k.Format.BestOf,
		k.Format.Set.GamesToWin, k.Format.Set.TiebreakPoints,
		k.Format.FinalSet.GamesToWin, k.Format.FinalSet.TiebreakPoints)
}

// ClosedFormCache memoises closed-form match win probabilities
type ClosedFormCache struct {
	cache     *cache.Cache
	ttl       time.Duration
	maxSize   int
	mu        sync.RWMutex
	hitCount  uint64
	missCount uint64
}

// NewClosedFormCache creates a new closed-form cache
func NewClosedFormCache(ttl time.Duration, maxSize int) *ClosedFormCache {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &ClosedFormCache{
		cache:   cache.New(ttl, ttl*2),
		ttl:     ttl,
		maxSize: maxSize,
	}
}

// MatchWinProbability returns the cached probability or computes and stores it.
// Inputs are rounded before computing so a key always maps to the same value.
func (c *ClosedFormCache) MatchWinProbability(pa, pb float64, format scoring.MatchFormat) (float64, error) {
	pa, pb = roundProbability(pa), roundProbability(pb)
	key := CacheKey{PA: pa, PB: pb, Format: format}.String()

	c.mu.Lock()
	if v, found := c.cache.Get(key); found {
		c.hitCount++
		c.mu.Unlock()
		c.updateMetrics()
		return v.(float64), nil
	}
	c.missCount++
	c.mu.Unlock()

	p, err := scoring.MatchWinProbability(pa, pb, format)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	if c.maxSize > 0 && c.cache.ItemCount() >= c.maxSize {
		c.cache.DeleteExpired()
	}
	c.cache.Set(key, p, c.ttl)
	c.mu.Unlock()

	c.updateMetrics()
	return p, nil
}

// Clear flushes the entire cache
func (c *ClosedFormCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cache.Flush()
	c.hitCount = 0
	c.missCount = 0
}

// Stats returns cache statistics
func (c *ClosedFormCache) Stats() (hits, misses uint64, ratio float64) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	hits = c.hitCount
	misses = c.missCount
	total := hits + misses
	if total > 0 {
		ratio = float64(hits) / float64(total)
	}
	return
}

// ItemCount returns the number of items in cache
func (c *ClosedFormCache) ItemCount() int {
	return c.cache.ItemCount()
}

func roundProbability(p float64) float64 {
	return math.Round(p*1e6) / 1e6
}

func (c *ClosedFormCache) updateMetrics() {
	_, _, ratio := c.Stats()
	metrics.UpdateCacheHitRatio(ratio)
}
