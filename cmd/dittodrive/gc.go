package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/audit"
	"github.com/marmos91/dittodrive/pkg/config"
	"github.com/marmos91/dittodrive/pkg/gc"
)

func runGC(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("gc", flag.ExitOnError)
	path := configFlag(fs)
	dryRun := fs.Bool("dry-run", false, "Report orphans without deleting them")
	_ = fs.Parse(args)

	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}

	m := config.InitializeMetrics(&config.Config{}, nil)
	metadataStore, contentStore, err := stores(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer func() {
		_ = contentStore.Close()
		_ = metadataStore.Close()
	}()

	// A one-shot run owns the stores, so no upload can be in flight
	gcConfig := cfg.GC
	gcConfig.DryRun = gcConfig.DryRun || *dryRun
	gcConfig.GracePeriod = 0

	collector, err := gc.NewCollector(metadataStore, contentStore, gcConfig)
	if err != nil {
		return err
	}

	stats, err := collector.RunNow(ctx)
	if err != nil {
		return err
	}

	if !gcConfig.DryRun {
		_ = audit.New(metadataStore).Log(ctx, nil, audit.ActionGC, stats.Summary(), "cli")
	}
	fmt.Println(stats.Summary())
	return nil
}
