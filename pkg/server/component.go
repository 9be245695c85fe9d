package server

import (
	"context"

	"github.com/marmos91/dittodrive/pkg/metrics"
)

// Component is a long-running part of the daemon managed by DriveServer:
// the metrics endpoint and the background workers.
//
// Lifecycle:
//  1. Serve starts the component and blocks until ctx is cancelled or an
//     unrecoverable error occurs
//  2. Stop initiates graceful shutdown and may be called concurrently with
//     Serve
//
// If Serve returns an error before ctx is cancelled, DriveServer treats it
// as fatal and stops every other component.
type Component interface {
	// Name identifies the component in logs and must be unique per server
	Name() string

	Serve(ctx context.Context) error

	Stop(ctx context.Context) error
}

// Worker is a background job with non-blocking Start and a blocking Stop.
// *gc.Collector and *retention.Pruner satisfy it.
type Worker interface {
	Start()
	Stop(ctx context.Context) error
}

// WorkerComponent runs w as a Component named name.
func WorkerComponent(name string, w Worker) Component {
	return &workerComponent{name: name, worker: w}
}

type workerComponent struct {
	name   string
	worker Worker
}

func (c *workerComponent) Name() string { return c.name }

func (c *workerComponent) Serve(ctx context.Context) error {
	c.worker.Start()
	<-ctx.Done()
	return ctx.Err()
}

func (c *workerComponent) Stop(ctx context.Context) error {
	return c.worker.Stop(ctx)
}

// MetricsComponent runs the metrics HTTP server as a Component.
func MetricsComponent(s *metrics.Server) Component {
	return &metricsComponent{server: s}
}

type metricsComponent struct {
	server *metrics.Server
}

func (c *metricsComponent) Name() string { return "metrics" }

func (c *metricsComponent) Serve(ctx context.Context) error {
	return c.server.Start(ctx)
}

func (c *metricsComponent) Stop(ctx context.Context) error {
	return c.server.Stop(ctx)
}
