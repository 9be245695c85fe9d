// Package retention periodically prunes notifications and audit entries
// past their maximum age.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
)

const (
	DefaultInterval           = 24 * time.Hour
	DefaultNotificationMaxAge = 30 * 24 * time.Hour
	DefaultAuditMaxAge        = 90 * 24 * time.Hour
)

// NotificationPruner deletes notifications older than age.
// *notify.Service satisfies it.
type NotificationPruner interface {
	DeleteOlderThan(ctx context.Context, age time.Duration) (int, error)
}

// AuditPruner deletes audit entries older than age.
// *audit.Logger satisfies it.
type AuditPruner interface {
	Prune(ctx context.Context, olderThan time.Duration) (int, error)
}

// Config contains configuration for the pruner.
type Config struct {
	// Enabled controls whether periodic pruning runs (default: false)
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to prune (default: 24h)
	Interval time.Duration `mapstructure:"interval"`

	// NotificationMaxAge is the age past which notifications are removed
	// (default: 720h)
	NotificationMaxAge time.Duration `mapstructure:"notification_max_age"`

	// AuditMaxAge is the age past which audit entries are removed
	// (default: 2160h)
	AuditMaxAge time.Duration `mapstructure:"audit_max_age"`
}

// Stats reports one pruning run.
type Stats struct {
	Notifications int
	AuditEntries  int
	Duration      time.Duration
}

// Pruner runs retention on a schedule. Safe for concurrent use.
type Pruner struct {
	notifications NotificationPruner
	audit         AuditPruner
	config        Config

	runMu     sync.Mutex
	startOnce sync.Once
	stopOnce  sync.Once
	stopCh    chan struct{}
	doneCh    chan struct{}
	started   atomic.Bool
}

// New creates a pruner in a stopped state.
func New(notifications NotificationPruner, audit AuditPruner, config Config) *Pruner {
	if config.Interval <= 0 {
		config.Interval = DefaultInterval
	}
	if config.NotificationMaxAge <= 0 {
		config.NotificationMaxAge = DefaultNotificationMaxAge
	}
	if config.AuditMaxAge <= 0 {
		config.AuditMaxAge = DefaultAuditMaxAge
	}
	return &Pruner{
		notifications: notifications,
		audit:         audit,
		config:        config,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start begins periodic pruning. Subsequent calls are no-ops.
func (p *Pruner) Start() {
	if !p.config.Enabled {
		logger.Info("Retention pruning disabled")
		return
	}
	p.startOnce.Do(func() {
		p.started.Store(true)
		logger.Info("Starting retention pruner: interval=%s notifications=%s audit=%s",
			p.config.Interval, p.config.NotificationMaxAge, p.config.AuditMaxAge)
		go p.worker()
	})
}

// Stop signals the worker and waits for it, or for ctx to expire.
func (p *Pruner) Stop(ctx context.Context) error {
	p.stopOnce.Do(func() { close(p.stopCh) })
	if !p.started.Load() {
		return nil
	}

	select {
	case <-p.doneCh:
		logger.Info("Retention pruner stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Retention pruner shutdown timeout")
		return ctx.Err()
	}
}

// RunNow prunes once. Both prunes are attempted even if the first fails.
func (p *Pruner) RunNow(ctx context.Context) (*Stats, error) {
	p.runMu.Lock()
	defer p.runMu.Unlock()

	start := time.Now()
	stats := &Stats{}

	var errs []error
	n, err := p.notifications.DeleteOlderThan(ctx, p.config.NotificationMaxAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to prune notifications: %w", err))
	}
	stats.Notifications = n

	n, err = p.audit.Prune(ctx, p.config.AuditMaxAge)
	if err != nil {
		errs = append(errs, fmt.Errorf("failed to prune audit log: %w", err))
	}
	stats.AuditEntries = n

	stats.Duration = time.Since(start)
	logger.Debug("Retention: removed %d notifications, %d audit entries in %s",
		stats.Notifications, stats.AuditEntries, stats.Duration)
	return stats, errors.Join(errs...)
}

func (p *Pruner) worker() {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.Interval)
	defer ticker.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		select {
		case <-p.stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ticker.C:
			stats, err := p.RunNow(ctx)
			if err != nil {
				logger.Error("Retention run failed: %v", err)
				continue
			}
			if stats.Notifications > 0 || stats.AuditEntries > 0 {
				logger.Info("Retention: removed %d notifications, %d audit entries",
					stats.Notifications, stats.AuditEntries)
			}
		case <-p.stopCh:
			return
		}
	}
}
