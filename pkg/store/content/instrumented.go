package content

import (
	"context"
	"io"
	"time"

	"github.com/marmos91/dittodrive/pkg/metrics"
)

// Instrument wraps store so every operation is reported to m.
// When store is garbage collectable the wrapper is too.
func Instrument(store ContentStore, m metrics.ContentMetrics) ContentStore {
	if m == nil {
		return store
	}
	base := &instrumentedStore{store: store, metrics: m}
	if gc, ok := store.(GarbageCollectableStore); ok {
		return &instrumentedGCStore{instrumentedStore: base, gc: gc}
	}
	return base
}

type instrumentedStore struct {
	store   ContentStore
	metrics metrics.ContentMetrics
}

func (s *instrumentedStore) WriteContent(ctx context.Context, r io.Reader) (string, int64, error) {
	start := time.Now()
	ref, n, err := s.store.WriteContent(ctx, r)
	s.metrics.RecordOperation("write", time.Since(start), err)
	if err == nil {
		s.metrics.RecordBytes("write", n)
	}
	return ref, n, err
}

func (s *instrumentedStore) ReadContent(ctx context.Context, ref string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.store.ReadContent(ctx, ref)
	s.metrics.RecordOperation("read", time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return &countingReadCloser{ReadCloser: rc, metrics: s.metrics}, nil
}

func (s *instrumentedStore) Delete(ctx context.Context, ref string) error {
	start := time.Now()
	err := s.store.Delete(ctx, ref)
	s.metrics.RecordOperation("delete", time.Since(start), err)
	return err
}

func (s *instrumentedStore) GetContentSize(ctx context.Context, ref string) (int64, error) {
	start := time.Now()
	size, err := s.store.GetContentSize(ctx, ref)
	s.metrics.RecordOperation("size", time.Since(start), err)
	return size, err
}

func (s *instrumentedStore) ContentExists(ctx context.Context, ref string) (bool, error) {
	start := time.Now()
	ok, err := s.store.ContentExists(ctx, ref)
	s.metrics.RecordOperation("exists", time.Since(start), err)
	return ok, err
}

func (s *instrumentedStore) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	return s.store.GetStorageStats(ctx)
}

func (s *instrumentedStore) Close() error {
	return s.store.Close()
}

type instrumentedGCStore struct {
	*instrumentedStore
	gc GarbageCollectableStore
}

func (s *instrumentedGCStore) ListAllContent(ctx context.Context) ([]string, error) {
	start := time.Now()
	refs, err := s.gc.ListAllContent(ctx)
	s.metrics.RecordOperation("list", time.Since(start), err)
	return refs, err
}

func (s *instrumentedGCStore) DeleteBatch(ctx context.Context, refs []string) (map[string]error, error) {
	start := time.Now()
	failures, err := s.gc.DeleteBatch(ctx, refs)
	s.metrics.RecordOperation("delete_batch", time.Since(start), err)
	return failures, err
}

// countingReadCloser reports bytes as the caller consumes them.
type countingReadCloser struct {
	io.ReadCloser
	metrics metrics.ContentMetrics
	n       int64
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	c.n += int64(n)
	return n, err
}

func (c *countingReadCloser) Close() error {
	c.metrics.RecordBytes("read", c.n)
	return c.ReadCloser.Close()
}
