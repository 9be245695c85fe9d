// Package gc reclaims orphaned payloads.
//
// A payload becomes an orphan when its node is gone but the payload delete
// did not happen: a failed delete after a metadata commit, a crash between
// the two, or an upload whose metadata insert was rejected and whose
// cleanup failed as well.
//
// Orphans are found by set difference: refs stored in the content store
// minus refs referenced by any node. An upload writes its payload before
// the node exists, so a fresh ref is only collected once it has stayed
// unreferenced for GracePeriod.
package gc

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/pkg/metrics"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// Collector performs periodic garbage collection on the content store.
//
// Thread Safety: Safe for concurrent use. Runs are serialized.
type Collector struct {
	metadataStore metadata.MetadataStore
	contentStore  content.GarbageCollectableStore
	config        Config
	limiter       *ratelimiter.RateLimiter
	metrics       metrics.GCMetrics

	// runMu serializes runs and guards firstSeen
	runMu     sync.Mutex
	firstSeen map[string]time.Time

	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   atomic.Bool
}

// Config contains configuration for the garbage collector.
type Config struct {
	// Enabled controls whether periodic collection runs (default: false)
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run garbage collection (default: 24h)
	Interval time.Duration `mapstructure:"interval"`

	// BatchSize is how many orphans are deleted per batch (default: 1000).
	// S3 accepts up to 1000 keys per DeleteObjects call.
	BatchSize int `mapstructure:"batch_size" validate:"omitempty,min=1,max=1000"`

	// DryRun logs what would be deleted without deleting anything
	DryRun bool `mapstructure:"dry_run"`

	// DeletesPerSecond paces payload deletes. Zero means unlimited.
	DeletesPerSecond uint `mapstructure:"deletes_per_second"`

	// GracePeriod is how long an unreferenced payload must stay
	// unreferenced before it is collected. Zero collects immediately, which
	// is only safe while no uploads are in flight.
	GracePeriod time.Duration `mapstructure:"grace_period"`

	// Metrics receives run statistics. Nil disables instrumentation.
	Metrics metrics.GCMetrics `mapstructure:"-" json:"-"`
}

// NewCollector creates a collector in a stopped state. Call Start to begin
// periodic collection.
func NewCollector(
	metadataStore metadata.MetadataStore,
	contentStore content.ContentStore,
	config Config,
) (*Collector, error) {
	gcStore, ok := contentStore.(content.GarbageCollectableStore)
	if !ok {
		return nil, fmt.Errorf("content store does not implement GarbageCollectableStore interface")
	}

	if config.Interval <= 0 {
		config.Interval = 24 * time.Hour
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 1000
	}
	m := config.Metrics
	if m == nil {
		m = metrics.NewNoopGCMetrics()
	}

	return &Collector{
		metadataStore: metadataStore,
		contentStore:  gcStore,
		config:        config,
		limiter:       ratelimiter.New(config.DeletesPerSecond, uint(config.BatchSize)),
		metrics:       m,
		firstSeen:     make(map[string]time.Time),
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}, nil
}

// Start begins background collection. Subsequent calls are no-ops.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Garbage collection disabled")
		return
	}

	c.startOnce.Do(func() {
		c.started.Store(true)
		logger.Info("Starting garbage collector: interval=%s batch_size=%d dry_run=%v grace=%s",
			c.config.Interval, c.config.BatchSize, c.config.DryRun, c.config.GracePeriod)
		go c.worker()
	})
}

// Stop signals the worker and waits for any in-progress run to finish, or
// for ctx to expire. Safe to call more than once.
func (c *Collector) Stop(ctx context.Context) error {
	c.stopOnce.Do(func() { close(c.stopCh) })

	if !c.started.Load() {
		return nil
	}

	select {
	case <-c.doneCh:
		logger.Info("Garbage collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Garbage collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow runs one collection and blocks until it completes or ctx is
// cancelled.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running garbage collection (manual trigger)")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-c.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			stats, err := c.collect(ctx)
			if err != nil {
				logger.Error("Garbage collection failed: %v", err)
			} else {
				logger.Info("Garbage collection completed: %s", stats.Summary())
			}
		case <-c.stopCh:
			return
		}
	}
}

// collect performs a single run:
//  1. collect every ref referenced by a node
//  2. list every ref in the content store
//  3. orphaned = existing - referenced, minus refs still within the grace period
//  4. delete orphans in rate-limited batches
func (c *Collector) collect(ctx context.Context) (stats *Stats, err error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats = &Stats{StartTime: time.Now()}
	defer func() {
		stats.EndTime = time.Now()
		c.metrics.RecordRun(metrics.GCStats{
			Scanned:  stats.ExistingCount,
			Orphaned: stats.OrphanedCount,
			Deleted:  stats.DeletedCount,
			Failed:   stats.FailedCount,
		}, stats.Duration(), err)
	}()

	var referenced []string
	err = c.metadataStore.View(ctx, func(tx metadata.Transaction) error {
		var err error
		referenced, err = tx.ListContentRefs()
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("failed to get referenced content: %w", err)
	}
	stats.ReferencedCount = len(referenced)
	logger.Debug("GC: %d referenced payloads", stats.ReferencedCount)

	existing, err := c.contentStore.ListAllContent(ctx)
	if err != nil {
		return stats, fmt.Errorf("failed to list content: %w", err)
	}
	stats.ExistingCount = len(existing)
	logger.Debug("GC: %d stored payloads", stats.ExistingCount)

	unreferenced := lo.Without(existing, referenced...)
	orphaned := c.matured(unreferenced, stats.StartTime)
	stats.OrphanedCount = len(orphaned)
	stats.PendingCount = len(unreferenced) - len(orphaned)

	if len(orphaned) == 0 {
		logger.Debug("GC: no orphaned content (%d within grace period)", stats.PendingCount)
		return stats, nil
	}

	if c.config.DryRun {
		logger.Info("GC: DRY RUN - would delete %d payloads", stats.OrphanedCount)
		for _, ref := range lo.Slice(orphaned, 0, 10) {
			logger.Info("  - %s", ref)
		}
		if len(orphaned) > 10 {
			logger.Info("  ... and %d more", len(orphaned)-10)
		}
		return stats, nil
	}

	for _, batch := range lo.Chunk(orphaned, c.config.BatchSize) {
		if err = c.limiter.WaitN(ctx, len(batch)); err != nil {
			return stats, err
		}

		failures, batchErr := c.contentStore.DeleteBatch(ctx, batch)
		if batchErr != nil && len(failures) == 0 {
			logger.Warn("GC: batch delete failed: %v", batchErr)
			stats.FailedCount += len(batch)
			continue
		}

		stats.DeletedCount += len(batch) - len(failures)
		stats.FailedCount += len(failures)
		for _, ref := range batch {
			if ferr, failed := failures[ref]; failed {
				logger.Debug("GC: failed to delete %s: %v", ref, ferr)
				continue
			}
			delete(c.firstSeen, ref)
		}

		if err = ctx.Err(); err != nil {
			return stats, err
		}
	}

	logger.Info("GC: deleted %d payloads, %d failed, duration=%s",
		stats.DeletedCount, stats.FailedCount, stats.Duration())
	return stats, nil
}

// matured records when each unreferenced ref was first seen and returns the
// ones unreferenced for at least GracePeriod. Refs that got referenced (or
// vanished) since the previous run are forgotten.
func (c *Collector) matured(unreferenced []string, now time.Time) []string {
	current := make(map[string]time.Time, len(unreferenced))
	for _, ref := range unreferenced {
		seen, ok := c.firstSeen[ref]
		if !ok {
			seen = now
		}
		current[ref] = seen
	}
	c.firstSeen = current

	return lo.Filter(unreferenced, func(ref string, _ int) bool {
		return now.Sub(current[ref]) >= c.config.GracePeriod
	})
}

// Stats contains statistics from a garbage collection run.
type Stats struct {
	StartTime       time.Time
	EndTime         time.Time
	ReferencedCount int // refs referenced by nodes
	ExistingCount   int // refs present in the content store
	OrphanedCount   int // orphans eligible for deletion
	PendingCount    int // unreferenced refs still within the grace period
	DeletedCount    int
	FailedCount     int
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("referenced=%d existing=%d orphaned=%d pending=%d deleted=%d failed=%d duration=%s",
		s.ReferencedCount, s.ExistingCount, s.OrphanedCount, s.PendingCount,
		s.DeletedCount, s.FailedCount, s.Duration())
}
