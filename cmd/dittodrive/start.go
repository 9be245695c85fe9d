package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/audit"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/gc"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/retention"
	"github.com/marmos91/dittodrive/pkg/server"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// stores opens both stores described by cfg. The caller closes them.
func stores(ctx context.Context, cfg *config.Config, m *config.MetricsResult) (metadata.MetadataStore, content.ContentStore, error) {
	metadataStore, err := config.CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, nil, err
	}

	contentStore, err := config.CreateContentStore(ctx, &cfg.Content, m.Content)
	if err != nil {
		_ = metadataStore.Close()
		return nil, nil, err
	}

	logger.Info("Stores ready: metadata=%s content=%s", cfg.Metadata.Type, cfg.Content.Type)
	return metadataStore, contentStore, nil
}

func driveOptions(cfg *config.Config, m *config.MetricsResult) server.DriveOptions {
	return server.DriveOptions{
		DefaultQuota:            cfg.Drive.DefaultQuota,
		NotifyOnUpload:          cfg.Drive.NotifyOnUpload,
		MinSearchLength:         cfg.Drive.MinSearchLength,
		AccountDeletesPerSecond: cfg.Drive.AccountDeletesPerSecond,
		Metrics:                 m.Drive,
	}
}

func runStart(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("start", flag.ExitOnError)
	path := configFlag(fs)
	_ = fs.Parse(args)

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The payload store wrapper needs the metrics, so /healthz binds the
	// metadata store late
	var metadataStore metadata.MetadataStore
	m := config.InitializeMetrics(cfg, func(ctx context.Context) error {
		if metadataStore == nil {
			return errors.New("metadata store not ready")
		}
		return metadataStore.Healthcheck(ctx)
	})

	metadataStore, contentStore, err := stores(ctx, cfg, m)
	if err != nil {
		return err
	}

	drive := server.NewDrive(metadataStore, contentStore, driveOptions(cfg, m))
	srv := server.New(metadataStore, contentStore, drive)
	srv.StopTimeout = cfg.Server.ShutdownTimeout

	if m.Server != nil {
		if err := srv.AddComponent(server.MetricsComponent(m.Server)); err != nil {
			return err
		}
	}

	gcConfig := cfg.GC
	gcConfig.Metrics = m.GC
	collector, err := gc.NewCollector(metadataStore, contentStore, gcConfig)
	if err != nil {
		logger.Warn("Orphan collection unavailable: %v", err)
	} else if err := srv.AddComponent(server.WorkerComponent("gc", collector)); err != nil {
		return err
	}

	pruner := retention.New(notify.New(metadataStore), audit.New(metadataStore), cfg.Retention)
	if err := srv.AddComponent(server.WorkerComponent("retention", pruner)); err != nil {
		return err
	}

	fmt.Println("DittoDrive is running. Press Ctrl+C to stop.")
	if err := srv.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
