package related

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"quill/metrics"
	"quill/types"

	"go.uber.org/zap"
)

const (
	// TagWeight is the score contributed by each shared tag
	TagWeight = 3.0
	// CategoryWeight is the score contributed by each shared category
	CategoryWeight = 1.0
	// RecencyWindowDays is the age at which the recency bonus reaches zero
	RecencyWindowDays = 30
	// CacheTTL is how long a computed result stays cached
	CacheTTL = time.Hour
)

// ClearLimits are the limits invalidated by ClearCache
var ClearLimits = []int{3, 4, 5, 6}

// Cache is the key-value store results are cached in.
// A missing key is reported as (nil, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// Engine ranks related content by tag/category overlap and recency
type Engine struct {
	cache        Cache
	ttl          time.Duration
	defaultLimit int
	now          func() time.Time
	logger       *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithCache enables result caching. A nil cache disables it.
func WithCache(c Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithTTL overrides CacheTTL
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) {
		if ttl > 0 {
			e.ttl = ttl
		}
	}
}

// WithDefaultLimit adds a limit to the set cleared by ClearCache
func WithDefaultLimit(limit int) Option {
	return func(e *Engine) { e.defaultLimit = limit }
}

// WithClock overrides time.Now
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine creates an engine. Without WithCache every call computes.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		ttl:    CacheTTL,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CacheKey returns the cache key for an item and limit
func CacheKey(itemID string, limit int) string {
	return fmt.Sprintf("related:%s:%d", itemID, limit)
}

type scored struct {
	item  types.ContentItem
	score float64
}

// Related returns up to limit items related to item, drawn from pool.
// Scored matches come first, followed by the most recent remaining items.
func (e *Engine) Related(ctx context.Context, item types.ContentItem, pool []types.ContentItem, limit int, useCache bool) []types.ContentItem {
	if limit <= 0 || len(pool) == 0 {
		return []types.ContentItem{}
	}

	useCache = useCache && e.cache != nil
	key := CacheKey(item.ID, limit)
	if useCache {
		if ids, ok := e.cached(ctx, key); ok {
			result := hydrate(ids, pool, item.ID, e.now())
			if len(result) > limit {
				result = result[:limit]
			}
			return result
		}
	}

	result := e.compute(item, pool, limit)

	if useCache {
		e.store(ctx, key, result)
	}
	return result
}

func (e *Engine) compute(item types.ContentItem, pool []types.ContentItem, limit int) []types.ContentItem {
	now := e.now()
	tags := toSet(item.TagIDs)
	categories := toSet(item.CategoryIDs)

	eligible := make([]types.ContentItem, 0, len(pool))
	seen := make(map[string]struct{}, len(pool))
	for _, candidate := range pool {
		if candidate.ID == item.ID || !candidate.IsPublishedAt(now) {
			continue
		}
		if _, dup := seen[candidate.ID]; dup {
			continue
		}
		seen[candidate.ID] = struct{}{}
		eligible = append(eligible, candidate)
	}

	matches := make([]scored, 0, len(eligible))
	for _, candidate := range eligible {
		sharedTags := countShared(candidate.TagIDs, tags)
		sharedCategories := countShared(candidate.CategoryIDs, categories)
		if sharedTags == 0 && sharedCategories == 0 {
			continue
		}
		base := float64(sharedTags)*TagWeight + float64(sharedCategories)*CategoryWeight
		matches = append(matches, scored{item: candidate, score: base + recencyBonus(candidate.PublishedAt, now)})
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return publishedAfter(matches[i].item, matches[j].item)
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}

	result := make([]types.ContentItem, 0, limit)
	selected := make(map[string]struct{}, limit)
	for _, m := range matches {
		result = append(result, m.item)
		selected[m.item.ID] = struct{}{}
	}
	if len(result) >= limit {
		return result
	}

	fallback := make([]types.ContentItem, 0, len(eligible))
	for _, candidate := range eligible {
		if _, ok := selected[candidate.ID]; !ok {
			fallback = append(fallback, candidate)
		}
	}
	sort.SliceStable(fallback, func(i, j int) bool {
		return publishedAfter(fallback[i], fallback[j])
	})

	filled := 0
	for _, candidate := range fallback {
		if len(result) >= limit {
			break
		}
		result = append(result, candidate)
		filled++
	}
	if filled > 0 {
		metrics.RelatedFallbackTotal.Add(float64(filled))
	}
	return result
}

// Score computes the relevance of candidate to item at the engine's current time
func (e *Engine) Score(item, candidate types.ContentItem) types.RelevanceScore {
	sharedTags := countShared(candidate.TagIDs, toSet(item.TagIDs))
	sharedCategories := countShared(candidate.CategoryIDs, toSet(item.CategoryIDs))
	score := float64(sharedTags)*TagWeight + float64(sharedCategories)*CategoryWeight +
		recencyBonus(candidate.PublishedAt, e.now())
	return types.RelevanceScore{ItemID: candidate.ID, Score: score}
}

// ClearCache drops cached results for itemID across the commonly used limits
func (e *Engine) ClearCache(ctx context.Context, itemID string) error {
	if e.cache == nil {
		return nil
	}
	keys := make([]string, 0, len(ClearLimits)+1)
	for _, limit := range e.clearLimits() {
		keys = append(keys, CacheKey(itemID, limit))
	}
	if err := e.cache.Delete(ctx, keys...); err != nil {
		return fmt.Errorf("failed to clear related cache for %s: %w", itemID, err)
	}
	return nil
}

// Clearable reports whether ClearCache invalidates results cached for limit.
// Callers taking arbitrary limits should only cache clearable ones.
func (e *Engine) Clearable(limit int) bool {
	return containsInt(e.clearLimits(), limit)
}

func (e *Engine) clearLimits() []int {
	if e.defaultLimit <= 0 || containsInt(ClearLimits, e.defaultLimit) {
		return ClearLimits
	}
	return append(append([]int(nil), ClearLimits...), e.defaultLimit)
}

func (e *Engine) cached(ctx context.Context, key string) ([]string, bool) {
	raw, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		metrics.RelatedCacheTotal.WithLabelValues("error").Inc()
		e.logger.Warn("related cache read failed", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	if !ok {
		metrics.RelatedCacheTotal.WithLabelValues("miss").Inc()
		return nil, false
	}

	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		metrics.RelatedCacheTotal.WithLabelValues("error").Inc()
		e.logger.Warn("discarding malformed related cache entry", zap.String("key", key), zap.Error(err))
		return nil, false
	}
	metrics.RelatedCacheTotal.WithLabelValues("hit").Inc()
	return ids, true
}

func (e *Engine) store(ctx context.Context, key string, result []types.ContentItem) {
	ids := make([]string, len(result))
	for i, item := range result {
		ids[i] = item.ID
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return
	}
	if err := e.cache.Set(ctx, key, raw, e.ttl); err != nil {
		metrics.RelatedCacheTotal.WithLabelValues("error").Inc()
		e.logger.Warn("related cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// hydrate maps cached IDs back onto pool items, skipping any that have left
// the pool or are no longer published at now
func hydrate(ids []string, pool []types.ContentItem, selfID string, now time.Time) []types.ContentItem {
	byID := make(map[string]types.ContentItem, len(pool))
	for _, item := range pool {
		if _, ok := byID[item.ID]; !ok {
			byID[item.ID] = item
		}
	}
	result := make([]types.ContentItem, 0, len(ids))
	for _, id := range ids {
		if id == selfID {
			continue
		}
		if item, ok := byID[id]; ok && item.IsPublishedAt(now) {
			result = append(result, item)
		}
	}
	return result
}

// recencyBonus decays linearly from 1.0 on the publish day to 0 at RecencyWindowDays
func recencyBonus(publishedAt *time.Time, now time.Time) float64 {
	if publishedAt == nil {
		return 0
	}
	age := int(now.Sub(*publishedAt).Hours() / 24)
	if age < 0 {
		age = 0
	}
	if age >= RecencyWindowDays {
		return 0
	}
	return 1.0 - float64(age)/RecencyWindowDays
}

func publishedAfter(a, b types.ContentItem) bool {
	switch {
	case a.PublishedAt == nil:
		return false
	case b.PublishedAt == nil:
		return true
	default:
		return a.PublishedAt.After(*b.PublishedAt)
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

// countShared counts distinct ids present in set
func countShared(ids []string, set map[string]struct{}) int {
	if len(set) == 0 {
		return 0
	}
	counted := make(map[string]struct{}, len(ids))
	n := 0
	for _, id := range ids {
		if _, ok := set[id]; !ok {
			continue
		}
		if _, dup := counted[id]; dup {
			continue
		}
		counted[id] = struct{}{}
		n++
	}
	return n
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
