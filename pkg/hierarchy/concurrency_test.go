package hierarchy_test

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/badger"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata/sqldb"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// backends opens a fresh store per call for each metadata backend. Each one
// serializes writers differently: memory holds a lock, badger retries on
// conflict and sqldb runs on a single sqlite connection.
var backends = []struct {
	name string
	open func(t *testing.T) metadata.MetadataStore
}{
	{"memory", func(t *testing.T) metadata.MetadataStore {
		return memory.NewMemoryMetadataStoreWithDefaults()
	}},
	{"badger", func(t *testing.T) metadata.MetadataStore {
		store, err := badger.NewBadgerMetadataStore(t.Context(), badger.BadgerMetadataStoreConfig{
			InMemory:           true,
			MaxConflictRetries: 200,
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}},
	{"sqlite", func(t *testing.T) metadata.MetadataStore {
		store, err := sqldb.NewSQLMetadataStore(t.Context(), sqldb.SQLMetadataStoreConfig{
			Dialect: sqldb.DialectSQLite,
			DSN:     filepath.Join(t.TempDir(), "meta.db"),
		})
		require.NoError(t, err)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}},
}

func TestUpload_ConcurrentUploadsRespectQuota(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			e := newEnvWithStore(t, b.open(t), hierarchy.Config{})
			alice, _ := e.user("alice", 100)

			// Any three fit, the fourth never does
			const uploads = 10
			var (
				wg   sync.WaitGroup
				errs = make([]error, uploads)
			)
			for i := range uploads {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, errs[i] = e.engine.Upload(t.Context(), alice.ID, uuid.Nil,
						"part.bin", "application/octet-stream", strings.NewReader(strings.Repeat("x", 30)))
				}()
			}
			wg.Wait()

			accepted := 0
			for _, err := range errs {
				if err == nil {
					accepted++
					continue
				}
				storetest.AssertErrorCode(t, metadata.ErrQuotaExceeded, err)
			}

			assert.Equal(t, 3, accepted)
			assert.Equal(t, int64(90), e.used(alice))
			assert.Equal(t, 3, e.payloadCount())
		})
	}
}

func TestMoveAndDelete_ConcurrentOnSameNode(t *testing.T) {
	for _, b := range backends {
		t.Run(b.name, func(t *testing.T) {
			for round := range 10 {
				e := newEnvWithStore(t, b.open(t), hierarchy.Config{})
				alice, actor := e.user("alice", 1000)

				a := e.folder(alice.ID, uuid.Nil, "A")
				dest := e.folder(alice.ID, uuid.Nil, "B")
				x := e.folder(alice.ID, a.ID, "X")
				e.upload(alice.ID, x.ID, "f.txt", "hello")

				var (
					wg              sync.WaitGroup
					moveErr, delErr error
				)
				wg.Add(2)
				go func() {
					defer wg.Done()
					_, moveErr = e.engine.Move(t.Context(), actor, x.ID, dest.ID)
				}()
				go func() {
					defer wg.Done()
					_, delErr = e.engine.Delete(t.Context(), actor, a.ID)
				}()
				wg.Wait()

				require.NoError(t, delErr, "round %d", round)
				_, err := e.node(a.ID)
				storetest.AssertErrorCode(t, metadata.ErrNotFound, err)

				// Either the move won and X lives on under B, or the delete
				// removed X first and the move saw it gone
				moved, err := e.node(x.ID)
				if moveErr == nil {
					require.NoError(t, err, "round %d", round)
					assert.Equal(t, dest.ID, moved.ParentID)
				} else {
					storetest.AssertErrorCode(t, metadata.ErrNotFound, moveErr)
					storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
				}

				assertConsistentTree(t, e, alice)
			}
		})
	}
}

// assertConsistentTree checks that every node of user hangs off an existing
// folder and that StorageUsed matches the remaining file sizes.
func assertConsistentTree(t *testing.T, e *env, user *metadata.User) {
	t.Helper()

	var nodes []*metadata.Node
	require.NoError(t, e.store.View(t.Context(), func(tx metadata.Transaction) error {
		var err error
		nodes, err = tx.ListNodesByOwner(user.ID)
		return err
	}))

	folders := make(map[uuid.UUID]bool)
	var total int64
	for _, n := range nodes {
		if n.IsFolder {
			folders[n.ID] = true
		} else {
			total += n.Size
		}
	}
	for _, n := range nodes {
		if n.ParentID != uuid.Nil {
			assert.True(t, folders[n.ParentID], "node %s has a dangling parent", n.Name)
		}
	}
	assert.Equal(t, total, e.used(user))
}
