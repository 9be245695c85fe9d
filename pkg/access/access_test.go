package access_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/marmos91/dittodrive/pkg/store/metadata/memory"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	store    metadata.MetadataStore
	resolver *access.Resolver
	owner    access.Actor
	reader   access.Actor
	writer   access.Actor
	stranger access.Actor
	admin    access.Actor
	file     *metadata.Node
}

func actorOf(u *metadata.User) access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role}
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewMemoryMetadataStoreWithDefaults()

	f := &fixture{
		store:    store,
		resolver: access.New(store),
		owner:    actorOf(storetest.SeedUser(t, store, "owner", metadata.DefaultStorageQuota)),
		reader:   actorOf(storetest.SeedUser(t, store, "reader", metadata.DefaultStorageQuota)),
		writer:   actorOf(storetest.SeedUser(t, store, "writer", metadata.DefaultStorageQuota)),
		stranger: actorOf(storetest.SeedUser(t, store, "stranger", metadata.DefaultStorageQuota)),
		admin:    actorOf(storetest.SeedAdmin(t, store, "root")),
	}
	f.file = &metadata.Node{ID: uuid.New(), OwnerID: f.owner.ID, Name: "report.pdf", Size: 10, ContentRef: "ref"}

	now := time.Now()
	require.NoError(t, store.Update(t.Context(), func(tx metadata.Transaction) error {
		if err := tx.CreateNode(f.file); err != nil {
			return err
		}
		for _, g := range []struct {
			who  access.Actor
			perm metadata.Permission
		}{{f.reader, metadata.PermissionRead}, {f.writer, metadata.PermissionWrite}} {
			err := tx.CreateGrant(&metadata.ShareGrant{
				ID: uuid.New(), NodeID: f.file.ID, OwnerID: f.owner.ID, RecipientID: g.who.ID,
				Permission: g.perm, CreatedAt: now, UpdatedAt: now,
			})
			if err != nil {
				return err
			}
		}
		return nil
	}))
	return f
}

func TestResolve(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name       string
		actor      access.Actor
		required   metadata.Permission
		wantType   access.Type
		wantPerm   metadata.Permission
		wantErr    bool
		wantCode   metadata.ErrorCode
		wantsGrant bool
	}{
		{name: "owner_write", actor: f.owner, required: metadata.PermissionWrite, wantType: access.TypeOwner, wantPerm: metadata.PermissionWrite},
		{name: "admin_write", actor: f.admin, required: metadata.PermissionWrite, wantType: access.TypeAdminOverride, wantPerm: metadata.PermissionWrite},
		{name: "reader_read", actor: f.reader, required: metadata.PermissionRead, wantType: access.TypeShared, wantPerm: metadata.PermissionRead, wantsGrant: true},
		{name: "reader_write", actor: f.reader, required: metadata.PermissionWrite, wantErr: true, wantCode: metadata.ErrPermissionDenied},
		{name: "writer_read", actor: f.writer, required: metadata.PermissionRead, wantType: access.TypeShared, wantPerm: metadata.PermissionWrite, wantsGrant: true},
		{name: "writer_write", actor: f.writer, required: metadata.PermissionWrite, wantType: access.TypeShared, wantPerm: metadata.PermissionWrite, wantsGrant: true},
		{name: "stranger_read", actor: f.stranger, required: metadata.PermissionRead, wantErr: true, wantCode: metadata.ErrPermissionDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := f.resolver.Resolve(t.Context(), tt.actor, f.file.ID, tt.required)
			if tt.wantErr {
				storetest.AssertErrorCode(t, tt.wantCode, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantType, d.AccessType)
			assert.Equal(t, tt.wantPerm, d.Permission)
			assert.Equal(t, f.file.ID, d.Node.ID)
			assert.Equal(t, tt.wantsGrant, d.Grant != nil)
		})
	}
}

func TestResolve_MissingNode(t *testing.T) {
	f := newFixture(t)

	// Missing node wins over admin override
	_, err := f.resolver.Resolve(t.Context(), f.admin, uuid.New(), metadata.PermissionRead)
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}

func TestResolve_InvalidPermission(t *testing.T) {
	f := newFixture(t)
	_, err := f.resolver.Resolve(t.Context(), f.owner, f.file.ID, metadata.Permission("admin"))
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func TestRequireOwnerOrAdmin(t *testing.T) {
	f := newFixture(t)

	check := func(actor access.Actor) error {
		return f.store.View(t.Context(), func(tx metadata.Transaction) error {
			_, err := access.RequireOwnerOrAdmin(tx, actor, f.file.ID)
			return err
		})
	}

	assert.NoError(t, check(f.owner))
	assert.NoError(t, check(f.admin))
	// A write share does not allow restructuring
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, check(f.writer))
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, check(f.reader))
}
