package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// DefaultStopTimeout bounds how long Serve waits for components to stop.
const DefaultStopTimeout = 30 * time.Second

// DriveServer manages the lifecycle of the daemon's components around a
// shared pair of stores.
//
// Lifecycle:
//  1. Creation: New() with stores
//  2. Registration: AddComponent() for the metrics endpoint and each worker
//  3. Startup: Serve() starts all components concurrently
//  4. Shutdown: context cancellation stops every component in reverse
//     registration order, then the stores are closed
//
// Thread safety:
// AddComponent() may be called concurrently before Serve(). Serve() may only
// be called once.
type DriveServer struct {
	metadata metadata.MetadataStore
	content  content.ContentStore
	drive    *Drive

	// StopTimeout bounds component shutdown (default: 30s)
	StopTimeout time.Duration

	mu         sync.RWMutex
	components []Component
	served     bool
}

// New creates a DriveServer over the given stores. drive is exposed to
// callers through Drive(); it may be nil for servers that only run workers.
//
// Panics if either store is nil (programmer error).
func New(metadataStore metadata.MetadataStore, contentStore content.ContentStore, drive *Drive) *DriveServer {
	if metadataStore == nil {
		panic("metadata store cannot be nil")
	}
	if contentStore == nil {
		panic("content store cannot be nil")
	}

	return &DriveServer{
		metadata:    metadataStore,
		content:     contentStore,
		drive:       drive,
		StopTimeout: DefaultStopTimeout,
		components:  make([]Component, 0, 3),
	}
}

// Drive returns the engines bound to this server's stores.
func (s *DriveServer) Drive() *Drive {
	return s.drive
}

// AddComponent registers c to be started by Serve.
//
// Returns an error if a component with the same name is already registered
// or Serve has already been called.
func (s *DriveServer) AddComponent(c Component) error {
	if c == nil {
		panic("component cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		return fmt.Errorf("cannot add component %s after Serve() has been called", c.Name())
	}
	for _, existing := range s.components {
		if existing.Name() == c.Name() {
			return fmt.Errorf("component %s already registered", c.Name())
		}
	}

	s.components = append(s.components, c)
	logger.Debug("Registered %s component", c.Name())
	return nil
}

// Components returns a snapshot of the registered components.
func (s *DriveServer) Components() []Component {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Component, len(s.components))
	copy(out, s.components)
	return out
}

// Serve starts every component and blocks until ctx is cancelled or a
// component fails. Components are then stopped in reverse registration
// order and the stores are closed.
//
// Returns ctx.Err() after a requested shutdown, or the first component
// failure.
func (s *DriveServer) Serve(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("server has already been served")
	}
	s.served = true
	components := make([]Component, len(s.components))
	copy(components, s.components)
	s.mu.Unlock()

	logger.Info("Starting DriveServer with %d component(s)", len(components))

	// Buffered so failing components never block
	errChan := make(chan componentError, len(components))

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, c := range components {
		wg.Add(1)
		go func(c Component) {
			defer wg.Done()

			if err := c.Serve(runCtx); err != nil && runCtx.Err() == nil {
				logger.Error("%s component failed: %v", c.Name(), err)
				errChan <- componentError{name: c.Name(), err: err}
				return
			}
			logger.Debug("%s component stopped", c.Name())
		}(c)
	}

	var shutdownErr error
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received (reason: %v)", ctx.Err())
		shutdownErr = ctx.Err()
	case failed := <-errChan:
		logger.Error("Component %s failed: %v - initiating shutdown", failed.name, failed.err)
		shutdownErr = fmt.Errorf("%s component error: %w", failed.name, failed.err)
	}

	cancel()
	s.stopAll(components)
	wg.Wait()

	if err := s.closeStores(); err != nil {
		logger.Error("Error closing stores: %v", err)
	}

	logger.Info("DriveServer stopped")
	return shutdownErr
}

type componentError struct {
	name string
	err  error
}

// stopAll stops components in reverse registration order under one shared
// deadline. Errors are logged and do not stop the remaining components.
func (s *DriveServer) stopAll(components []Component) {
	timeout := s.StopTimeout
	if timeout <= 0 {
		timeout = DefaultStopTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for i := len(components) - 1; i >= 0; i-- {
		c := components[i]
		if err := c.Stop(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Error stopping %s component: %v", c.Name(), err)
		}
	}
}

func (s *DriveServer) closeStores() error {
	return errors.Join(s.content.Close(), s.metadata.Close())
}
