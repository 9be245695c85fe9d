package audit_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/audit"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCategory_Matches(t *testing.T) {
	assert.True(t, audit.CategoryAll.Matches(audit.ActionLogin))
	assert.True(t, audit.CategoryAuth.Matches(audit.ActionLogin))
	assert.False(t, audit.CategoryAuth.Matches(audit.ActionUpload))
	assert.True(t, audit.CategoryAdmin.Matches(audit.ActionUserDelete))
	// Prefix must end at the dot
	assert.False(t, audit.CategoryFile.Matches("filesystem.check"))
}

func TestLogger_LogAndList(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	log := audit.New(store)
	alice := storetest.SeedUser(t, store, "alice", 100)
	bob := storetest.SeedUser(t, store, "bob", 100)

	require.NoError(t, log.Log(t.Context(), &alice.ID, audit.ActionLogin, "login ok", "10.0.0.1"))
	require.NoError(t, log.Log(t.Context(), &alice.ID, audit.ActionUpload, "report.pdf", "10.0.0.1"))
	require.NoError(t, log.Log(t.Context(), &bob.ID, audit.ActionShareGrant, "report.pdf -> carol", "10.0.0.2"))
	require.NoError(t, log.Log(t.Context(), nil, audit.ActionGC, "3 orphans", ""))

	all, err := log.List(t.Context(), audit.Query{})
	require.NoError(t, err)
	require.Len(t, all, 4)
	assert.Equal(t, audit.ActionGC, all[0].Action)
	assert.Empty(t, all[0].Username)
	assert.Equal(t, audit.ActionLogin, all[3].Action)
	assert.Equal(t, "alice", all[3].Username)

	files, err := log.List(t.Context(), audit.Query{Category: audit.CategoryFile})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.pdf", files[0].Detail)

	mine, err := log.List(t.Context(), audit.Query{ActorID: &alice.ID, Limit: 1})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, audit.ActionUpload, mine[0].Action)

	_, err = log.List(t.Context(), audit.Query{Category: "billing"})
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func TestLogger_DeletedActorKeepsEntry(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	log := audit.New(store)
	alice := storetest.SeedUser(t, store, "alice", 100)

	require.NoError(t, log.Log(t.Context(), &alice.ID, audit.ActionLogin, "", ""))
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.DeleteUser(alice.ID)
	}))

	all, err := log.List(t.Context(), audit.Query{})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Nil(t, all[0].ActorID)
	assert.Empty(t, all[0].Username)
}

func TestLogger_Prune(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	log := audit.New(store)

	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		return tx.AppendAudit(&metadata.AuditEntry{
			ID: uuid.New(), Action: audit.ActionLogin, CreatedAt: time.Now().Add(-100 * 24 * time.Hour),
		})
	}))
	require.NoError(t, log.Log(t.Context(), nil, audit.ActionGC, "", ""))

	removed, err := log.Prune(t.Context(), 90*24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	all, err := log.List(t.Context(), audit.Query{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestLogger_LimitBounds(t *testing.T) {
	store := memory.NewMemoryMetadataStoreWithDefaults()
	log := audit.New(store)
	for range audit.DefaultListLimit + 5 {
		require.NoError(t, log.Log(t.Context(), nil, audit.ActionGC, "", ""))
	}

	def, err := log.List(t.Context(), audit.Query{})
	require.NoError(t, err)
	assert.Len(t, def, audit.DefaultListLimit)

	big, err := log.List(t.Context(), audit.Query{Limit: 5000})
	require.NoError(t, err)
	assert.Len(t, big, audit.DefaultListLimit+5)
}
