package accounts_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/accounts"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/sharing"
	contentmemory "github.com/marmos91/dittodrive/pkg/store/content/memory"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// brokenDeletes fails every delete of the listed refs.
type brokenDeletes struct {
	*contentmemory.MemoryContentStore
	refs map[string]bool
}

func (b *brokenDeletes) Delete(ctx context.Context, ref string) error {
	if b.refs[ref] {
		return errors.New("bucket unavailable")
	}
	return b.MemoryContentStore.Delete(ctx, ref)
}

type env struct {
	store    metadata.MetadataStore
	payloads *brokenDeletes
	accounts *accounts.Service
	drive    *hierarchy.Engine
}

func newEnv(config accounts.Config) *env {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	payloads := &brokenDeletes{MemoryContentStore: contentmemory.NewMemoryContentStore(), refs: map[string]bool{}}
	return &env{
		store:    store,
		payloads: payloads,
		accounts: accounts.New(store, payloads, config),
		drive:    hierarchy.New(store, payloads, hierarchy.Config{}),
	}
}

func adminActor(t *testing.T, e *env) access.Actor {
	t.Helper()
	u := storetest.SeedAdmin(t, e.store, "root")
	return access.Actor{ID: u.ID, Role: u.Role}
}

func TestRegister(t *testing.T) {
	e := newEnv(accounts.Config{})

	user, err := e.accounts.Register(t.Context(), accounts.Registration{
		Username: "alice",
		Email:    "  Alice@Example.COM ",
	})
	require.NoError(t, err)

	assert.Equal(t, "alice@example.com", user.Email)
	assert.Equal(t, metadata.RoleBasic, user.Role)
	assert.Equal(t, metadata.SubscriptionFree, user.Subscription)
	assert.Equal(t, int64(metadata.DefaultStorageQuota), user.StorageQuota)
	assert.Zero(t, user.StorageUsed)

	got, err := e.accounts.Get(t.Context(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Username, got.Username)

	byName, err := e.accounts.GetByUsername(t.Context(), "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byName.ID)

	_, err = e.accounts.GetByUsername(t.Context(), "nobody")
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}

func TestRegister_CustomDefaultQuota(t *testing.T) {
	e := newEnv(accounts.Config{DefaultQuota: 1 << 30})

	user, err := e.accounts.Register(t.Context(), accounts.Registration{Username: "bob", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Equal(t, int64(1<<30), user.StorageQuota)
}

func TestRegister_Invalid(t *testing.T) {
	tests := []struct {
		name string
		reg  accounts.Registration
	}{
		{"short username", accounts.Registration{Username: "al", Email: "al@example.com"}},
		{"bad characters", accounts.Registration{Username: "al ice", Email: "alice@example.com"}},
		{"missing email", accounts.Registration{Username: "alice"}},
		{"malformed email", accounts.Registration{Username: "alice", Email: "not-an-email"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(accounts.Config{})
			_, err := e.accounts.Register(t.Context(), tt.reg)
			storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
		})
	}
}

func TestRegister_Duplicates(t *testing.T) {
	e := newEnv(accounts.Config{})
	_, err := e.accounts.Register(t.Context(), accounts.Registration{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)

	_, err = e.accounts.Register(t.Context(), accounts.Registration{Username: "alice", Email: "other@example.com"})
	storetest.AssertErrorCode(t, metadata.ErrAlreadyExists, err)

	_, err = e.accounts.Register(t.Context(), accounts.Registration{Username: "alice2", Email: "ALICE@example.com"})
	storetest.AssertErrorCode(t, metadata.ErrAlreadyExists, err)
}

func TestList_NewestFirst(t *testing.T) {
	e := newEnv(accounts.Config{})
	for _, name := range []string{"first", "second", "third"} {
		_, err := e.accounts.Register(t.Context(), accounts.Registration{Username: name, Email: name + "@example.com"})
		require.NoError(t, err)
	}

	users, err := e.accounts.List(t.Context())
	require.NoError(t, err)
	require.Len(t, users, 3)
	for i := 1; i < len(users); i++ {
		assert.False(t, users[i].CreatedAt.After(users[i-1].CreatedAt))
	}
}

func TestSearch(t *testing.T) {
	e := newEnv(accounts.Config{})
	me := storetest.SeedUser(t, e.store, "martin", 100)
	storetest.SeedUser(t, e.store, "marta", 100)
	storetest.SeedUser(t, e.store, "omar", 100)
	storetest.SeedUser(t, e.store, "zoe", 100)

	got, err := e.accounts.Search(t.Context(), "MAR", me.ID, 0)
	require.NoError(t, err)
	names := make([]string, 0, len(got))
	for _, u := range got {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"marta", "omar"}, names)

	// Emails match too
	got, err = e.accounts.Search(t.Context(), "zoe@exa", me.ID, 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "zoe", got[0].Username)

	got, err = e.accounts.Search(t.Context(), "example", uuid.Nil, 2)
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = e.accounts.Search(t.Context(), " m ", me.ID, 0)
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func TestUpdate(t *testing.T) {
	e := newEnv(accounts.Config{})
	admin := adminActor(t, e)
	target := storetest.SeedUser(t, e.store, "alice", 100)

	role := metadata.RolePremium
	sub := metadata.SubscriptionEnterprise
	quota := int64(5000)
	email := "New@Example.com"
	updated, err := e.accounts.Update(t.Context(), admin, target.ID, accounts.UserUpdate{
		Email:        &email,
		Role:         &role,
		Subscription: &sub,
		StorageQuota: &quota,
	})
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", updated.Email)
	assert.Equal(t, metadata.RolePremium, updated.Role)
	assert.Equal(t, metadata.SubscriptionEnterprise, updated.Subscription)
	assert.Equal(t, int64(5000), updated.StorageQuota)

	stored := storetest.LoadUser(t, e.store, target)
	assert.Equal(t, updated.StorageQuota, stored.StorageQuota)
	assert.Equal(t, updated.Role, stored.Role)
}

func TestUpdate_Rejections(t *testing.T) {
	e := newEnv(accounts.Config{})
	admin := adminActor(t, e)
	target := storetest.SeedUser(t, e.store, "alice", 100)
	basic := access.Actor{ID: target.ID, Role: metadata.RoleBasic}

	role := metadata.RoleAdmin
	_, err := e.accounts.Update(t.Context(), basic, target.ID, accounts.UserUpdate{Role: &role})
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	_, err = e.accounts.Update(t.Context(), admin, target.ID, accounts.UserUpdate{})
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)

	bogus := metadata.Role("superuser")
	_, err = e.accounts.Update(t.Context(), admin, target.ID, accounts.UserUpdate{Role: &bogus})
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)

	negative := int64(-1)
	_, err = e.accounts.Update(t.Context(), admin, target.ID, accounts.UserUpdate{StorageQuota: &negative})
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)

	_, err = e.accounts.Update(t.Context(), admin, uuid.New(), accounts.UserUpdate{Role: &role})
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)

	// Nothing leaked from the rejected edits
	stored := storetest.LoadUser(t, e.store, target)
	assert.Equal(t, metadata.RoleBasic, stored.Role)
	assert.Equal(t, int64(100), stored.StorageQuota)
}

func TestDelete_Cascade(t *testing.T) {
	e := newEnv(accounts.Config{})
	admin := adminActor(t, e)
	alice := storetest.SeedUser(t, e.store, "alice", 1000)
	bob := storetest.SeedUser(t, e.store, "bob", 1000)

	docs, err := e.drive.CreateFolder(t.Context(), alice.ID, uuid.Nil, "Docs")
	require.NoError(t, err)
	a, err := e.drive.Upload(t.Context(), alice.ID, docs.ID, "a.txt", "text/plain", strings.NewReader("aaaa"))
	require.NoError(t, err)
	_, err = e.drive.Upload(t.Context(), alice.ID, uuid.Nil, "b.txt", "text/plain", strings.NewReader("bb"))
	require.NoError(t, err)
	kept, err := e.drive.Upload(t.Context(), bob.ID, uuid.Nil, "bob.txt", "text/plain", strings.NewReader("b"))
	require.NoError(t, err)

	_, err = sharing.New(e.store).Grant(t.Context(), alice.ID, a.ID, "bob", metadata.PermissionRead)
	require.NoError(t, err)

	result, err := e.accounts.Delete(t.Context(), admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Nodes)
	assert.Equal(t, 2, result.Payloads)
	assert.Empty(t, result.PayloadErrors)

	_, err = e.accounts.Get(t.Context(), alice.ID)
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)

	refs, err := e.payloads.ListAllContent(t.Context())
	require.NoError(t, err)
	assert.Equal(t, []string{kept.ContentRef}, refs)

	require.NoError(t, e.store.View(t.Context(), func(tx metadata.Transaction) error {
		grants, err := tx.ListGrantsByRecipient(bob.ID)
		require.NoError(t, err)
		assert.Empty(t, grants)
		return nil
	}))
}

func TestDelete_PayloadFailuresReported(t *testing.T) {
	e := newEnv(accounts.Config{DeletesPerSecond: 1000})
	admin := adminActor(t, e)
	alice := storetest.SeedUser(t, e.store, "alice", 1000)

	stuck, err := e.drive.Upload(t.Context(), alice.ID, uuid.Nil, "stuck.txt", "text/plain", strings.NewReader("x"))
	require.NoError(t, err)
	_, err = e.drive.Upload(t.Context(), alice.ID, uuid.Nil, "fine.txt", "text/plain", strings.NewReader("y"))
	require.NoError(t, err)
	e.payloads.refs[stuck.ContentRef] = true

	result, err := e.accounts.Delete(t.Context(), admin, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Payloads)
	require.Contains(t, result.PayloadErrors, stuck.ContentRef)

	// The account is gone regardless
	_, err = e.accounts.Get(t.Context(), alice.ID)
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}

func TestDelete_Rejections(t *testing.T) {
	e := newEnv(accounts.Config{})
	admin := adminActor(t, e)
	alice := storetest.SeedUser(t, e.store, "alice", 1000)

	_, err := e.accounts.Delete(t.Context(), access.Actor{ID: alice.ID, Role: metadata.RoleBasic}, admin.ID)
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	_, err = e.accounts.Delete(t.Context(), admin, admin.ID)
	storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)

	_, err = e.accounts.Delete(t.Context(), admin, uuid.New())
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}
