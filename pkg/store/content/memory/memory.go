package memory

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/content"
)

// MemoryContentStore keeps payloads in a map.
//
// Payloads are copied on the way in and served from an immutable slice on the
// way out, so callers never share buffers with the store. Intended for tests
// and development; everything is lost on exit.
type MemoryContentStore struct {
	mu   sync.RWMutex
	data map[string][]byte
}

var _ content.GarbageCollectableStore = (*MemoryContentStore)(nil)

// NewMemoryContentStore creates an empty in-memory content store.
func NewMemoryContentStore() *MemoryContentStore {
	return &MemoryContentStore{data: make(map[string][]byte)}
}

func (s *MemoryContentStore) WriteContent(ctx context.Context, r io.Reader) (string, int64, error) {
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, r)
	if err != nil {
		return "", 0, fmt.Errorf("failed to read payload: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return "", 0, err
	}

	ref := uuid.NewString()

	s.mu.Lock()
	s.data[ref] = buf.Bytes()
	s.mu.Unlock()

	return ref, n, nil
}

func (s *MemoryContentStore) ReadContent(ctx context.Context, ref string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[ref]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, ref string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, ref)
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) GetContentSize(ctx context.Context, ref string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	data, ok := s.data[ref]
	s.mu.RUnlock()

	if !ok {
		return 0, fmt.Errorf("content %s: %w", ref, content.ErrContentNotFound)
	}
	return int64(len(data)), nil
}

func (s *MemoryContentStore) ContentExists(ctx context.Context, ref string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.data[ref]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryContentStore) GetStorageStats(ctx context.Context) (*content.StorageStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var used int64
	for _, data := range s.data {
		used += int64(len(data))
	}
	return content.NewStorageStats(int64(len(s.data)), used), nil
}

func (s *MemoryContentStore) ListAllContent(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	refs := make([]string, 0, len(s.data))
	for ref := range s.data {
		refs = append(refs, ref)
	}
	return refs, nil
}

func (s *MemoryContentStore) DeleteBatch(ctx context.Context, refs []string) (map[string]error, error) {
	failures := make(map[string]error)
	if err := ctx.Err(); err != nil {
		for _, ref := range refs {
			failures[ref] = err
		}
		return failures, err
	}

	s.mu.Lock()
	for _, ref := range refs {
		delete(s.data, ref)
	}
	s.mu.Unlock()

	return failures, nil
}

func (s *MemoryContentStore) Close() error {
	return nil
}
