package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"quill/related"
	"quill/store"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// warmConcurrency bounds parallel cache warmups
const warmConcurrency = 4

// Refresher reloads the content snapshot and re-warms related results
type Refresher struct {
	source    store.Source
	store     *store.Store
	engine    *related.Engine
	warmItems int
	limit     int
	now       func() time.Time
	logger    *zap.Logger

	mu      sync.Mutex // serializes runs
	lastRun time.Time
}

// RefresherConfig wires a Refresher
type RefresherConfig struct {
	Source    store.Source
	Store     *store.Store
	Engine    *related.Engine
	WarmItems int // most recent items to warm, 0 disables warming
	Limit     int // related limit to warm
	Logger    *zap.Logger
}

// NewRefresher creates a refresher
func NewRefresher(cfg RefresherConfig) *Refresher {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Refresher{
		source:    cfg.Source,
		store:     cfg.Store,
		engine:    cfg.Engine,
		warmItems: cfg.WarmItems,
		limit:     cfg.Limit,
		now:       time.Now,
		logger:    logger,
	}
}

// RunOnce executes a single cycle: load snapshot, swap it in, clear and warm
// cached results for the most recent items.
func (r *Refresher) RunOnce(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := r.now()
	snap, err := r.source.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load snapshot from %s: %w", r.source, err)
	}
	r.store.Replace(snap)
	r.logger.Info("snapshot loaded",
		zap.String("source", r.source.String()),
		zap.Int("items", len(snap.Items)),
		zap.Int("rules", len(snap.Rules)))

	if r.engine != nil && r.warmItems > 0 && r.limit > 0 {
		warmed, err := r.warm(ctx)
		if err != nil {
			return err
		}
		r.logger.Info("related cache warmed", zap.Int("items", warmed))
	}

	r.lastRun = start
	r.logger.Info("refresh complete", zap.Duration("took", r.now().Sub(start)))
	return nil
}

func (r *Refresher) warm(ctx context.Context) (int, error) {
	now := r.now()
	pool := r.store.PublishedItems(now)
	recent := r.store.RecentItems(now, r.warmItems)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(warmConcurrency)
	for _, item := range recent {
		item := item // per-iteration copy; module targets go 1.21 loop semantics
		g.Go(func() error {
			if err := r.engine.ClearCache(gctx, item.ID); err != nil {
				// a stale entry expires on its own; keep warming the rest
				r.logger.Warn("failed to clear related cache", zap.String("item_id", item.ID), zap.Error(err))
			}
			r.engine.Related(gctx, item, pool, r.limit, true)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return 0, fmt.Errorf("cache warmup interrupted: %w", err)
	}
	return len(recent), nil
}

// LastRun returns the start time of the last successful run
func (r *Refresher) LastRun() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastRun
}

// Scheduler runs the refresher on a cron schedule
type Scheduler struct {
	cron      *cron.Cron
	refresher *Refresher
	logger    *zap.Logger
}

// NewScheduler creates a scheduler for refresher
func NewScheduler(refresher *Refresher, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{cron: cron.New(), refresher: refresher, logger: logger}
}

// Start adds the refresh job and starts the cron runner
func (s *Scheduler) Start(schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if err := s.refresher.RunOnce(ctx); err != nil {
			s.logger.Error("scheduled refresh failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}
	s.cron.Start()
	s.logger.Info("refresh schedule started", zap.String("schedule", schedule))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
