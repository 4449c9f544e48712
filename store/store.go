package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"quill/metrics"
	"quill/redirects"
	"quill/types"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when an item or rule is not in the snapshot
	ErrNotFound = errors.New("not found")
	// ErrSourceTaken is returned when another active rule already redirects the same source
	ErrSourceTaken = errors.New("source path already has an active rule")
)

// Invalidator is told about items whose related results may have changed
type Invalidator interface {
	ClearCache(ctx context.Context, itemID string) error
}

// Store holds the current content snapshot with thread-safe access
type Store struct {
	mu          sync.RWMutex
	items       []types.ContentItem
	index       map[string]int
	rules       []types.RewriteRule
	generatedAt time.Time

	invalidator Invalidator
}

// New creates an empty store
func New() *Store {
	return &Store{index: make(map[string]int)}
}

// SetInvalidator registers the component cleared on item mutations
func (s *Store) SetInvalidator(inv Invalidator) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidator = inv
}

// Replace swaps in a new snapshot
func (s *Store) Replace(snap types.Snapshot) {
	items := make([]types.ContentItem, 0, len(snap.Items))
	index := make(map[string]int, len(snap.Items))
	for _, item := range snap.Items {
		if i, ok := index[item.ID]; ok {
			items[i] = item
			continue
		}
		index[item.ID] = len(items)
		items = append(items, item)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = items
	s.index = index
	s.rules = append([]types.RewriteRule(nil), snap.Rules...)
	s.generatedAt = snap.GeneratedAt
	metrics.SnapshotItems.Set(float64(len(items)))
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() types.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.Snapshot{
		GeneratedAt: s.generatedAt,
		Items:       append([]types.ContentItem(nil), s.items...),
		Rules:       append([]types.RewriteRule(nil), s.rules...),
	}
}

// Item returns the item with id
func (s *Store) Item(id string) (types.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, ok := s.index[id]
	if !ok {
		return types.ContentItem{}, ErrNotFound
	}
	return s.items[i], nil
}

// PublishedItems returns items published at or before now, in snapshot order
func (s *Store) PublishedItems(now time.Time) []types.ContentItem {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.ContentItem, 0, len(s.items))
	for _, item := range s.items {
		if item.IsPublishedAt(now) {
			out = append(out, item)
		}
	}
	return out
}

// RecentItems returns up to n published items, newest first
func (s *Store) RecentItems(now time.Time, n int) []types.ContentItem {
	items := s.PublishedItems(now)
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.After(*items[j].PublishedAt)
	})
	if n >= 0 && len(items) > n {
		items = items[:n]
	}
	return items
}

// ActiveRules returns the active rewrite rules
func (s *Store) ActiveRules() []types.RewriteRule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.RewriteRule, 0, len(s.rules))
	for _, r := range s.rules {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out
}

// UpsertItem stores item and invalidates cached results for it
func (s *Store) UpsertItem(ctx context.Context, item types.ContentItem) error {
	s.mu.Lock()
	if i, ok := s.index[item.ID]; ok {
		s.items[i] = item
	} else {
		s.index[item.ID] = len(s.items)
		s.items = append(s.items, item)
	}
	inv := s.invalidator
	metrics.SnapshotItems.Set(float64(len(s.items)))
	s.mu.Unlock()

	return invalidate(ctx, inv, item.ID)
}

// DeleteItem removes the item with id and invalidates cached results for it
func (s *Store) DeleteItem(ctx context.Context, id string) error {
	s.mu.Lock()
	i, ok := s.index[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.index = make(map[string]int, len(s.items))
	for j, item := range s.items {
		s.index[item.ID] = j
	}
	inv := s.invalidator
	metrics.SnapshotItems.Set(float64(len(s.items)))
	s.mu.Unlock()

	return invalidate(ctx, inv, id)
}

// UpsertRule stores rule, replacing any rule with the same ID. Paths are
// stored normalized and a rule without an ID is given one. An active rule
// whose source belongs to a different active rule is rejected with
// ErrSourceTaken.
func (s *Store) UpsertRule(rule types.RewriteRule) (types.RewriteRule, error) {
	rule.SourcePath = redirects.NormalizePath(rule.SourcePath)
	rule.TargetPath = redirects.NormalizePath(rule.TargetPath)
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing := -1
	for i, r := range s.rules {
		if r.ID == rule.ID {
			existing = i
			continue
		}
		if rule.IsActive && r.IsActive && redirects.NormalizePath(r.SourcePath) == rule.SourcePath {
			return types.RewriteRule{}, fmt.Errorf("%s: %w (rule %s)", rule.SourcePath, ErrSourceTaken, r.ID)
		}
	}
	if existing >= 0 {
		s.rules[existing] = rule
		return rule, nil
	}
	s.rules = append(s.rules, rule)
	return rule, nil
}

func invalidate(ctx context.Context, inv Invalidator, id string) error {
	if inv == nil {
		return nil
	}
	return inv.ClearCache(ctx, id)
}
