package related

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"quill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC)

func daysAgo(n int) *time.Time {
	t := testNow.Add(-time.Duration(n) * 24 * time.Hour)
	return &t
}

func post(id string, published *time.Time, tags, categories []string) types.ContentItem {
	return types.ContentItem{ID: id, PublishedAt: published, TagIDs: tags, CategoryIDs: categories}
}

func ids(items []types.ContentItem) []string {
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = item.ID
	}
	return out
}

type fakeCache struct {
	data    map[string][]byte
	ttls    map[string]time.Duration
	deleted []string
	getErr  error
	gets    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.gets++
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.data[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeCache) Delete(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
		f.deleted = append(f.deleted, k)
	}
	return nil
}

func newTestEngine(opts ...Option) *Engine {
	return NewEngine(append([]Option{WithClock(func() time.Time { return testNow })}, opts...)...)
}

func TestRelated_ExampleScenario(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(1), []string{"t1"}, []string{"c1"})
	p1 := post("p1", daysAgo(0), []string{"t1"}, nil)
	p2 := post("p2", daysAgo(5), nil, []string{"c1"})

	got := e.Related(context.Background(), item, []types.ContentItem{p1, p2}, 2, false)
	assert.Equal(t, []string{"p1", "p2"}, ids(got))

	assert.InDelta(t, 4.0, e.Score(item, p1).Score, 1e-9)
	assert.InDelta(t, 1.0+(1.0-5.0/30.0), e.Score(item, p2).Score, 1e-9)
}

func TestRelated_TagOutweighsCategory(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(0), []string{"t1"}, []string{"c1"})
	byCategory := post("cat", daysAgo(3), nil, []string{"c1"})
	byTag := post("tag", daysAgo(3), []string{"t1"}, nil)

	got := e.Related(context.Background(), item, []types.ContentItem{byCategory, byTag}, 2, false)
	assert.Equal(t, []string{"tag", "cat"}, ids(got))
}

func TestRelated_ExcludesSelfAndUnpublished(t *testing.T) {
	e := newTestEngine()
	future := testNow.Add(48 * time.Hour)
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		item,
		post("draft", nil, []string{"t1"}, nil),
		post("scheduled", &future, []string{"t1"}, nil),
		post("ok", daysAgo(2), []string{"t1"}, nil),
	}

	got := e.Related(context.Background(), item, pool, 5, false)
	assert.Equal(t, []string{"ok"}, ids(got))
}

func TestRelated_LimitRespected(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		post("a", daysAgo(1), []string{"t1"}, nil),
		post("b", daysAgo(2), []string{"t1"}, nil),
		post("c", daysAgo(3), nil, nil),
		post("d", daysAgo(4), nil, nil),
	}

	for _, limit := range []int{-1, 0, 1, 2, 3, 4, 10} {
		got := e.Related(context.Background(), item, pool, limit, false)
		want := limit
		if want < 0 {
			want = 0
		}
		if want > len(pool) {
			want = len(pool)
		}
		assert.Len(t, got, want, "limit %d", limit)
	}
}

func TestRelated_EmptyPool(t *testing.T) {
	e := newTestEngine()
	got := e.Related(context.Background(), post("subject", daysAgo(0), []string{"t1"}, nil), nil, 4, false)
	assert.Empty(t, got)
}

func TestRelated_FallbackFill(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		post("old-unrelated", daysAgo(40), nil, nil),
		post("match", daysAgo(60), []string{"t1"}, nil),
		post("new-unrelated", daysAgo(1), []string{"t9"}, nil),
		post("mid-unrelated", daysAgo(10), nil, []string{"c9"}),
	}

	got := e.Related(context.Background(), item, pool, 3, false)
	// the scored match stays first even though it is the oldest item
	assert.Equal(t, []string{"match", "new-unrelated", "mid-unrelated"}, ids(got))
}

func TestRelated_NoTaxonomyIsAllFallback(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(0), nil, nil)
	pool := []types.ContentItem{
		post("b", daysAgo(5), []string{"t1"}, nil),
		post("a", daysAgo(1), nil, []string{"c1"}),
		post("c", daysAgo(9), nil, nil),
	}

	got := e.Related(context.Background(), item, pool, 2, false)
	assert.Equal(t, []string{"a", "b"}, ids(got))
}

func TestRelated_TiesBrokenByRecencyThenInputOrder(t *testing.T) {
	e := newTestEngine()
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	// 40 and 50 days old: no recency bonus, identical base score
	pool := []types.ContentItem{
		post("older", daysAgo(50), []string{"t1"}, nil),
		post("newer", daysAgo(40), []string{"t1"}, nil),
		post("twin-a", daysAgo(45), []string{"t1"}, nil),
		post("twin-b", daysAgo(45), []string{"t1"}, nil),
	}

	first := e.Related(context.Background(), item, pool, 4, false)
	assert.Equal(t, []string{"newer", "twin-a", "twin-b", "older"}, ids(first))
	for i := 0; i < 5; i++ {
		assert.Equal(t, ids(first), ids(e.Related(context.Background(), item, pool, 4, false)))
	}
}

func TestRecencyBonus(t *testing.T) {
	cases := []struct {
		name string
		at   *time.Time
		want float64
	}{
		{"unset", nil, 0},
		{"today", daysAgo(0), 1},
		{"fifteen days", daysAgo(15), 0.5},
		{"partial day rounds down", func() *time.Time { t := testNow.Add(-36 * time.Hour); return &t }(), 1 - 1.0/30},
		{"exactly thirty", daysAgo(30), 0},
		{"older", daysAgo(90), 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.InDelta(t, c.want, recencyBonus(c.at, testNow), 1e-9)
		})
	}
}

func TestRelated_CachesIDsUnderKey(t *testing.T) {
	cache := newFakeCache()
	e := newTestEngine(WithCache(cache))
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		post("a", daysAgo(1), []string{"t1"}, nil),
		post("b", daysAgo(2), nil, nil),
	}

	got := e.Related(context.Background(), item, pool, 4, true)
	require.Equal(t, []string{"a", "b"}, ids(got))

	raw, ok := cache.data["related:subject:4"]
	require.True(t, ok)
	var cached []string
	require.NoError(t, json.Unmarshal(raw, &cached))
	assert.Equal(t, []string{"a", "b"}, cached)
	assert.Equal(t, time.Hour, cache.ttls["related:subject:4"])
}

func TestRelated_CacheHitShortCircuits(t *testing.T) {
	cache := newFakeCache()
	cache.data["related:subject:2"] = []byte(`["b","gone","a"]`)
	e := newTestEngine(WithCache(cache))
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		post("a", daysAgo(1), []string{"t1"}, nil),
		post("b", daysAgo(2), nil, nil),
	}

	got := e.Related(context.Background(), item, pool, 2, true)
	assert.Equal(t, []string{"b", "a"}, ids(got))
}

func TestRelated_CacheHitSkipsUnpublished(t *testing.T) {
	cache := newFakeCache()
	cache.data["related:subject:3"] = []byte(`["draft","a","scheduled"]`)
	e := newTestEngine(WithCache(cache))
	future := testNow.Add(24 * time.Hour)
	item := post("subject", daysAgo(0), []string{"t1"}, nil)
	pool := []types.ContentItem{
		post("draft", nil, []string{"t1"}, nil),
		post("a", daysAgo(1), []string{"t1"}, nil),
		post("scheduled", &future, []string{"t1"}, nil),
	}

	got := e.Related(context.Background(), item, pool, 3, true)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestRelated_CacheBypassedWhenDisabled(t *testing.T) {
	cache := newFakeCache()
	e := newTestEngine(WithCache(cache))
	item := post("subject", daysAgo(0), []string{"t1"}, nil)

	e.Related(context.Background(), item, []types.ContentItem{post("a", daysAgo(1), nil, nil)}, 3, false)
	assert.Zero(t, cache.gets)
	assert.Empty(t, cache.data)
}

func TestRelated_CacheErrorFallsBackToCompute(t *testing.T) {
	cache := newFakeCache()
	cache.getErr = errors.New("connection refused")
	e := newTestEngine(WithCache(cache))
	item := post("subject", daysAgo(0), []string{"t1"}, nil)

	got := e.Related(context.Background(), item, []types.ContentItem{post("a", daysAgo(1), []string{"t1"}, nil)}, 3, true)
	assert.Equal(t, []string{"a"}, ids(got))
}

func TestClearCache(t *testing.T) {
	cache := newFakeCache()
	e := newTestEngine(WithCache(cache), WithDefaultLimit(8))
	for _, limit := range []int{3, 4, 5, 6, 8} {
		cache.data[CacheKey("p1", limit)] = []byte(`[]`)
	}
	cache.data[CacheKey("p2", 4)] = []byte(`[]`)

	require.NoError(t, e.ClearCache(context.Background(), "p1"))
	assert.Equal(t, []string{
		"related:p1:3", "related:p1:4", "related:p1:5", "related:p1:6", "related:p1:8",
	}, cache.deleted)
	assert.Contains(t, cache.data, "related:p2:4")
	assert.Len(t, cache.data, 1)
}

func TestClearable(t *testing.T) {
	e := newTestEngine(WithDefaultLimit(8))
	for _, limit := range []int{3, 4, 5, 6, 8} {
		assert.True(t, e.Clearable(limit), "limit %d", limit)
	}
	for _, limit := range []int{0, 2, 7, 50} {
		assert.False(t, e.Clearable(limit), "limit %d", limit)
	}
	assert.False(t, newTestEngine().Clearable(8))
}

func TestClearCache_NoCache(t *testing.T) {
	assert.NoError(t, newTestEngine().ClearCache(context.Background(), "p1"))
}
