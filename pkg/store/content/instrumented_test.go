package content_test

import (
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/content/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingMetrics struct {
	mu    sync.Mutex
	ops   []string
	bytes map[string]int64
}

func (r *recordingMetrics) RecordOperation(op string, _ time.Duration, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *recordingMetrics) RecordBytes(direction string, n int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bytes[direction] += n
}

func TestInstrument(t *testing.T) {
	rec := &recordingMetrics{bytes: map[string]int64{}}
	store := content.Instrument(memory.NewMemoryContentStore(), rec)

	_, isGC := store.(content.GarbageCollectableStore)
	assert.True(t, isGC, "wrapper should keep GC capability")

	ref, _, err := store.WriteContent(t.Context(), strings.NewReader("hello"))
	require.NoError(t, err)

	rc, err := store.ReadContent(t.Context(), ref)
	require.NoError(t, err)
	_, err = io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	require.NoError(t, store.Delete(t.Context(), ref))

	assert.Equal(t, []string{"write", "read", "delete"}, rec.ops)
	assert.Equal(t, int64(5), rec.bytes["write"])
	assert.Equal(t, int64(5), rec.bytes["read"])
}

func TestInstrument_NilMetrics(t *testing.T) {
	inner := memory.NewMemoryContentStore()
	assert.Same(t, inner, content.Instrument(inner, nil))
}
