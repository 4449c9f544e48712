package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"quill/related"
	"quill/store"
	"quill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSource struct {
	snap types.Snapshot
	err  error
}

func (m *memSource) Load(context.Context) (types.Snapshot, error) { return m.snap, m.err }
func (m *memSource) Save(_ context.Context, s types.Snapshot) error {
	m.snap = s
	return nil
}
func (m *memSource) String() string { return "mem" }

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (m *mapCache) Get(_ context.Context, k string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.data[k]
	return v, ok, nil
}
func (m *mapCache) Set(_ context.Context, k string, v []byte, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[k] = v
	return nil
}
func (m *mapCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

func ago(d time.Duration) *time.Time {
	t := time.Now().Add(-d)
	return &t
}

func TestRefresher_RunOnce(t *testing.T) {
	src := &memSource{snap: types.Snapshot{
		Items: []types.ContentItem{
			{ID: "a", PublishedAt: ago(time.Hour), TagIDs: []string{"go"}},
			{ID: "b", PublishedAt: ago(2 * time.Hour), TagIDs: []string{"go"}},
			{ID: "c", PublishedAt: ago(72 * time.Hour)},
		},
		Rules: []types.RewriteRule{{SourcePath: "/x", TargetPath: "/y", IsActive: true}},
	}}
	cache := &mapCache{data: map[string][]byte{"related:a:3": []byte(`["stale"]`)}}
	st := store.New()
	engine := related.NewEngine(related.WithCache(cache))

	r := NewRefresher(RefresherConfig{Source: src, Store: st, Engine: engine, WarmItems: 2, Limit: 3})
	require.NoError(t, r.RunOnce(context.Background()))

	assert.Len(t, st.PublishedItems(time.Now()), 3)
	assert.Len(t, st.ActiveRules(), 1)
	assert.False(t, r.LastRun().IsZero())

	assert.Equal(t, `["b","c"]`, string(cache.data["related:a:3"]))
	assert.Equal(t, `["a","c"]`, string(cache.data["related:b:3"]))
	assert.NotContains(t, cache.data, "related:c:3")
}

func TestRefresher_LoadError(t *testing.T) {
	src := &memSource{err: errors.New("bucket missing")}
	st := store.New()
	st.Replace(types.Snapshot{Items: []types.ContentItem{{ID: "keep"}}})

	r := NewRefresher(RefresherConfig{Source: src, Store: st})
	assert.Error(t, r.RunOnce(context.Background()))

	_, err := st.Item("keep")
	assert.NoError(t, err, "failed loads keep the previous snapshot")
	assert.True(t, r.LastRun().IsZero())
}

func TestScheduler_InvalidSchedule(t *testing.T) {
	s := NewScheduler(NewRefresher(RefresherConfig{Source: &memSource{}, Store: store.New()}), nil)
	assert.Error(t, s.Start("not a schedule"))
}
