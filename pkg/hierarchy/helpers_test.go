package hierarchy_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/store/content"
	contentmemory "github.com/marmos91/dittodrive/pkg/store/content/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/require"
)

type env struct {
	t        *testing.T
	store    metadata.MetadataStore
	payloads *flakyPayloads
	engine   *hierarchy.Engine
}

func newEnv(t *testing.T, config hierarchy.Config) *env {
	t.Helper()
	return newEnvWithStore(t, memory.NewMemoryMetadataStoreWithDefaults(), config)
}

func newEnvWithStore(t *testing.T, store metadata.MetadataStore, config hierarchy.Config) *env {
	t.Helper()
	payloads := &flakyPayloads{MemoryContentStore: contentmemory.NewMemoryContentStore()}
	return &env{
		t:        t,
		store:    store,
		payloads: payloads,
		engine:   hierarchy.New(store, payloads, config),
	}
}

func (e *env) user(name string, quota int64) (*metadata.User, access.Actor) {
	e.t.Helper()
	u := storetest.SeedUser(e.t, e.store, name, quota)
	return u, access.Actor{ID: u.ID, Role: u.Role}
}

func (e *env) admin(name string) access.Actor {
	e.t.Helper()
	u := storetest.SeedAdmin(e.t, e.store, name)
	return access.Actor{ID: u.ID, Role: u.Role}
}

func (e *env) folder(owner, parent uuid.UUID, name string) *metadata.Node {
	e.t.Helper()
	n, err := e.engine.CreateFolder(e.t.Context(), owner, parent, name)
	require.NoError(e.t, err)
	return n
}

func (e *env) upload(owner, parent uuid.UUID, name string, body string) *metadata.Node {
	e.t.Helper()
	n, err := e.engine.Upload(e.t.Context(), owner, parent, name, "text/plain", strings.NewReader(body))
	require.NoError(e.t, err)
	return n
}

func (e *env) used(u *metadata.User) int64 {
	e.t.Helper()
	return storetest.LoadUser(e.t, e.store, u).StorageUsed
}

func (e *env) node(id uuid.UUID) (*metadata.Node, error) {
	var n *metadata.Node
	err := e.store.View(e.t.Context(), func(tx metadata.Transaction) error {
		var err error
		n, err = tx.GetNode(id)
		return err
	})
	return n, err
}

func (e *env) share(node *metadata.Node, recipient access.Actor, perm metadata.Permission) {
	e.t.Helper()
	require.NoError(e.t, e.store.Update(e.t.Context(), func(tx metadata.Transaction) error {
		if g, err := tx.FindGrant(node.ID, recipient.ID); err == nil {
			g.Permission = perm
			return tx.PutGrant(g)
		}
		return tx.CreateGrant(&metadata.ShareGrant{
			ID: uuid.New(), NodeID: node.ID, OwnerID: node.OwnerID,
			RecipientID: recipient.ID, Permission: perm,
		})
	}))
}

func (e *env) grantCount(nodeID uuid.UUID) int {
	e.t.Helper()
	var n int
	require.NoError(e.t, e.store.View(e.t.Context(), func(tx metadata.Transaction) error {
		grants, err := tx.ListGrantsByNode(nodeID)
		n = len(grants)
		return err
	}))
	return n
}

func (e *env) payloadCount() int {
	e.t.Helper()
	refs, err := e.payloads.ListAllContent(e.t.Context())
	require.NoError(e.t, err)
	return len(refs)
}

func readAll(t *testing.T, rc io.ReadCloser) string {
	t.Helper()
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(data)
}

// flakyPayloads is a memory content store whose deletes can be made to fail.
type flakyPayloads struct {
	*contentmemory.MemoryContentStore
	failDeletes bool
}

var _ content.ContentStore = (*flakyPayloads)(nil)

func (f *flakyPayloads) Delete(ctx context.Context, ref string) error {
	if f.failDeletes {
		return errors.New("storage unavailable")
	}
	return f.MemoryContentStore.Delete(ctx, ref)
}
