package hierarchy_test

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/hierarchy"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	storetest "github.com/marmos91/dittodrive/pkg/store/metadata/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(nodes []*metadata.Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name
	}
	return out
}

// ============================================================================
// Create / Upload
// ============================================================================

func TestCreateNode_Validation(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	bob, _ := e.user("bob", 1000)
	file := e.upload(alice.ID, uuid.Nil, "notes.txt", "hello")
	bobsFolder := e.folder(bob.ID, uuid.Nil, "bob")

	tests := []struct {
		name string
		spec hierarchy.NodeSpec
		code metadata.ErrorCode
	}{
		{"empty_name", hierarchy.NodeSpec{Name: "", IsFolder: true}, metadata.ErrInvalidArgument},
		{"slash_in_name", hierarchy.NodeSpec{Name: "a/b", IsFolder: true}, metadata.ErrInvalidArgument},
		{"missing_parent", hierarchy.NodeSpec{Name: "x", IsFolder: true, ParentID: uuid.New()}, metadata.ErrNotFound},
		{"file_as_parent", hierarchy.NodeSpec{Name: "x", IsFolder: true, ParentID: file.ID}, metadata.ErrNotFound},
		{"foreign_parent", hierarchy.NodeSpec{Name: "x", IsFolder: true, ParentID: bobsFolder.ID}, metadata.ErrNotFound},
		{"negative_size", hierarchy.NodeSpec{Name: "x", Size: -1}, metadata.ErrInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.engine.CreateNode(t.Context(), alice.ID, tt.spec)
			storetest.AssertErrorCode(t, tt.code, err)
		})
	}
}

func TestCreateFolder_DuplicateName(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)

	e.folder(alice.ID, uuid.Nil, "Docs")
	_, err := e.engine.CreateFolder(t.Context(), alice.ID, uuid.Nil, "Docs")
	storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)

	// Case-sensitive, and files do not collide with folders
	e.folder(alice.ID, uuid.Nil, "docs")
	e.upload(alice.ID, uuid.Nil, "Docs", "file named like a folder")
}

func TestUpload_QuotaScenario(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 100_000_000)

	big := strings.Repeat("a", 60_000_000)
	_, err := e.engine.Upload(t.Context(), alice.ID, uuid.Nil, "big.bin", "", strings.NewReader(big))
	require.NoError(t, err)
	assert.Equal(t, int64(60_000_000), e.used(alice))

	_, err = e.engine.Upload(t.Context(), alice.ID, uuid.Nil, "bigger.bin", "", strings.NewReader(strings.Repeat("b", 50_000_000)))
	storetest.AssertErrorCode(t, metadata.ErrQuotaExceeded, err)
	assert.Equal(t, int64(60_000_000), e.used(alice))

	// The rejected payload was discarded
	assert.Equal(t, 1, e.payloadCount())
}

func TestUpload_DiscardsPayloadOnMissingParent(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)

	_, err := e.engine.Upload(t.Context(), alice.ID, uuid.New(), "f.txt", "", strings.NewReader("data"))
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
	assert.Zero(t, e.payloadCount())
	assert.Zero(t, e.used(alice))
}

func TestUpload_Notifies(t *testing.T) {
	e := newEnv(t, hierarchy.Config{NotifyOnUpload: true})
	alice, _ := e.user("alice", 1000)

	n := e.upload(alice.ID, uuid.Nil, "f.txt", "data")

	list, err := notify.New(e.store).List(t.Context(), alice.ID, notify.ListOptions{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, metadata.NotificationUploadComplete, list[0].Type)
	assert.Equal(t, n.ID.String(), list[0].Metadata["fileId"])
}

// ============================================================================
// Listing, path, search
// ============================================================================

func TestListChildren_Order(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	bob, _ := e.user("bob", 1000)

	e.upload(alice.ID, uuid.Nil, "b.txt", "1")
	e.folder(alice.ID, uuid.Nil, "Zeta")
	e.upload(alice.ID, uuid.Nil, "a.txt", "1")
	e.folder(alice.ID, uuid.Nil, "Alpha")
	e.folder(bob.ID, uuid.Nil, "Bob's")

	children, err := e.engine.ListChildren(t.Context(), alice.ID, uuid.Nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alpha", "Zeta", "a.txt", "b.txt"}, names(children))

	_, err = e.engine.ListChildren(t.Context(), alice.ID, uuid.New())
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}

func TestDocsScenario(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 1000)
	_, bob := e.user("bob", 1000)

	docs := e.folder(alice.ID, uuid.Nil, "Docs")
	year := e.folder(alice.ID, docs.ID, "2024")
	report := e.upload(alice.ID, year.ID, "report.pdf", "pdf-bytes")
	keep := e.upload(alice.ID, uuid.Nil, "keep.txt", "keep")
	e.share(report, bob, metadata.PermissionRead)
	e.share(docs, bob, metadata.PermissionRead)
	require.Equal(t, int64(13), e.used(alice))

	path, err := e.engine.ResolvePath(t.Context(), report.ID)
	require.NoError(t, err)
	assert.Equal(t, []hierarchy.PathElement{
		{ID: docs.ID, Name: "Docs"},
		{ID: year.ID, Name: "2024"},
		{ID: report.ID, Name: "report.pdf"},
	}, path)

	result, err := e.engine.Delete(t.Context(), owner, docs.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, result.DeletedNodes)
	assert.Equal(t, int64(9), result.FreedBytes)
	assert.Empty(t, result.PayloadErrors)

	for _, id := range []uuid.UUID{docs.ID, year.ID, report.ID} {
		_, err := e.node(id)
		storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
		assert.Zero(t, e.grantCount(id))
	}
	assert.Equal(t, int64(4), e.used(alice))
	assert.Equal(t, 1, e.payloadCount())

	_, err = e.node(keep.ID)
	assert.NoError(t, err)
}

func TestSearch(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	bob, _ := e.user("bob", 1000)

	reports := e.folder(alice.ID, uuid.Nil, "Reports")
	e.upload(alice.ID, reports.ID, "q1-report.pdf", "x")
	e.upload(alice.ID, uuid.Nil, "photo.jpg", "x")
	e.upload(bob.ID, uuid.Nil, "report.txt", "x")

	found, err := e.engine.Search(t.Context(), alice.ID, "REPORT")
	require.NoError(t, err)
	assert.Equal(t, []string{"Reports", "q1-report.pdf"}, names(found))

	_, err = e.engine.Search(t.Context(), alice.ID, " r ")
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)
}

func TestResolvePath_DetectsCycle(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	a := e.folder(alice.ID, uuid.Nil, "a")
	b := e.folder(alice.ID, a.ID, "b")

	// Corrupt the tree behind the engine's back
	require.NoError(t, e.store.Update(t.Context(), func(tx metadata.Transaction) error {
		a.ParentID = b.ID
		return tx.PutNode(a)
	}))

	_, err := e.engine.ResolvePath(t.Context(), b.ID)
	storetest.AssertErrorCode(t, metadata.ErrCorruptState, err)
}

// ============================================================================
// Rename / Move
// ============================================================================

func TestRename(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 1000)
	admin := e.admin("root")

	e.folder(alice.ID, uuid.Nil, "Taken")
	dir := e.folder(alice.ID, uuid.Nil, "Draft")
	file := e.upload(alice.ID, uuid.Nil, "a.txt", "abc")

	renamed, err := e.engine.Rename(t.Context(), owner, file.ID, "b.txt")
	require.NoError(t, err)
	assert.Equal(t, "b.txt", renamed.Name)
	assert.Equal(t, file.ContentRef, renamed.ContentRef)

	_, err = e.engine.Rename(t.Context(), owner, dir.ID, "Taken")
	storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)

	_, err = e.engine.Rename(t.Context(), owner, dir.ID, "..")
	storetest.AssertErrorCode(t, metadata.ErrInvalidArgument, err)

	_, err = e.engine.Rename(t.Context(), admin, dir.ID, "Final")
	require.NoError(t, err)
}

func TestRenameWithShareScenario(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	_, bob := e.user("bob", 1000)
	dir := e.folder(alice.ID, uuid.Nil, "dir")
	f := e.upload(alice.ID, uuid.Nil, "F", "content")

	e.share(f, bob, metadata.PermissionRead)
	_, err := e.engine.Rename(t.Context(), bob, f.ID, "mine")
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)
	_, rc, err := e.engine.Open(t.Context(), bob, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "content", readAll(t, rc))

	e.share(f, bob, metadata.PermissionWrite)
	_, err = e.engine.Rename(t.Context(), bob, f.ID, "mine")
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)
	_, err = e.engine.Move(t.Context(), bob, f.ID, dir.ID)
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)
	_, err = e.engine.Delete(t.Context(), bob, f.ID)
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	_, rc, err = e.engine.Open(t.Context(), bob, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "content", readAll(t, rc))

	// The owner's view is unchanged
	n, err := e.node(f.ID)
	require.NoError(t, err)
	assert.Equal(t, "F", n.Name)
	assert.True(t, n.IsRoot())
}

func TestMove(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 1000)
	bob, _ := e.user("bob", 1000)

	a := e.folder(alice.ID, uuid.Nil, "a")
	b := e.folder(alice.ID, a.ID, "b")
	c := e.folder(alice.ID, b.ID, "c")
	other := e.folder(alice.ID, uuid.Nil, "other")
	e.folder(alice.ID, other.ID, "b")
	bobs := e.folder(bob.ID, uuid.Nil, "bobs")
	file := e.upload(alice.ID, c.ID, "f.txt", "x")

	t.Run("into_itself", func(t *testing.T) {
		_, err := e.engine.Move(t.Context(), owner, a.ID, a.ID)
		storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)
	})

	t.Run("into_descendant_leaves_tree_unchanged", func(t *testing.T) {
		_, err := e.engine.Move(t.Context(), owner, a.ID, c.ID)
		storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)
		n, err := e.node(a.ID)
		require.NoError(t, err)
		assert.Equal(t, uuid.Nil, n.ParentID)
	})

	t.Run("foreign_destination", func(t *testing.T) {
		_, err := e.engine.Move(t.Context(), owner, file.ID, bobs.ID)
		storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
	})

	t.Run("file_destination", func(t *testing.T) {
		_, err := e.engine.Move(t.Context(), owner, c.ID, file.ID)
		storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
	})

	t.Run("name_clash", func(t *testing.T) {
		_, err := e.engine.Move(t.Context(), owner, b.ID, other.ID)
		storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)
	})

	t.Run("to_root_and_back", func(t *testing.T) {
		moved, err := e.engine.Move(t.Context(), owner, c.ID, uuid.Nil)
		require.NoError(t, err)
		assert.True(t, moved.IsRoot())

		path, err := e.engine.ResolvePath(t.Context(), file.ID)
		require.NoError(t, err)
		assert.Len(t, path, 2)

		_, err = e.engine.Move(t.Context(), owner, c.ID, b.ID)
		require.NoError(t, err)
		path, err = e.engine.ResolvePath(t.Context(), file.ID)
		require.NoError(t, err)
		assert.Len(t, path, 4)
	})

	// Quota is untouched by moves
	assert.Equal(t, int64(1), e.used(alice))
}

// ============================================================================
// Delete
// ============================================================================

func TestDelete_PayloadFailureDoesNotBlockMetadata(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 1000)
	dir := e.folder(alice.ID, uuid.Nil, "dir")
	f1 := e.upload(alice.ID, dir.ID, "1.txt", "one")
	e.upload(alice.ID, dir.ID, "2.txt", "two!")

	e.payloads.failDeletes = true
	result, err := e.engine.Delete(t.Context(), owner, dir.ID)
	require.NoError(t, err)

	assert.Equal(t, 3, result.DeletedNodes)
	assert.Equal(t, int64(7), result.FreedBytes)
	assert.Len(t, result.PayloadErrors, 2)
	assert.Contains(t, result.PayloadErrors, f1.ContentRef)
	assert.Zero(t, e.used(alice))

	// Orphans remain for the collector
	assert.Equal(t, 2, e.payloadCount())
}

func TestDelete_Resumable(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 1000)
	dir := e.folder(alice.ID, uuid.Nil, "dir")
	sub := e.folder(alice.ID, dir.ID, "sub")
	f := e.upload(alice.ID, sub.ID, "f.txt", "12345")

	// Simulate a crash after the leaf was removed
	require.NoError(t, e.store.Update(t.Context(), func(tx metadata.Transaction) error {
		if err := tx.DeleteNode(f.ID); err != nil {
			return err
		}
		user, err := tx.GetUser(alice.ID)
		if err != nil {
			return err
		}
		user.StorageUsed -= f.Size
		return tx.PutUser(user)
	}))

	result, err := e.engine.Delete(t.Context(), owner, dir.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, result.DeletedNodes)
	assert.Zero(t, e.used(alice))
}

func TestDelete_MissingAndForeign(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	_, mallory := e.user("mallory", 1000)
	f := e.upload(alice.ID, uuid.Nil, "f", "x")

	_, err := e.engine.Delete(t.Context(), mallory, f.ID)
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	_, err = e.engine.Delete(t.Context(), mallory, uuid.New())
	storetest.AssertErrorCode(t, metadata.ErrNotFound, err)
}

func TestDelete_AdminOverride(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, _ := e.user("alice", 1000)
	admin := e.admin("root")
	f := e.upload(alice.ID, uuid.Nil, "f", "abc")

	result, err := e.engine.Delete(t.Context(), admin, f.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.DeletedNodes)
	// Bytes go back to the owner, not the admin
	assert.Zero(t, e.used(alice))
}

func TestQuotaMatchesFileSizes(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 10_000)

	sum := func() int64 {
		var total int64
		require.NoError(t, e.store.View(t.Context(), func(tx metadata.Transaction) error {
			nodes, err := tx.ListNodesByOwner(alice.ID)
			for _, n := range nodes {
				if !n.IsFolder {
					total += n.Size
				}
			}
			return err
		}))
		return total
	}

	root := e.folder(alice.ID, uuid.Nil, "root")
	var files []*metadata.Node
	for i := range 10 {
		parent := root.ID
		if i%3 == 0 {
			parent = e.folder(alice.ID, root.ID, strings.Repeat("d", i+1)).ID
		}
		files = append(files, e.upload(alice.ID, parent, strings.Repeat("f", i+1), strings.Repeat("x", (i+1)*37)))
		assert.Equal(t, sum(), e.used(alice))
	}

	for i, f := range files {
		if i%2 == 0 {
			_, err := e.engine.Delete(t.Context(), owner, f.ID)
			require.NoError(t, err)
			assert.Equal(t, sum(), e.used(alice))
		}
	}

	_, err := e.engine.Delete(t.Context(), owner, root.ID)
	require.NoError(t, err)
	assert.Zero(t, e.used(alice))
	assert.Zero(t, sum())
}

// ============================================================================
// Stat / Open / Overwrite
// ============================================================================

func TestOverwrite(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 20)
	_, reader := e.user("reader", 20)
	_, writer := e.user("writer", 20)
	f := e.upload(alice.ID, uuid.Nil, "f.txt", "0123456789")
	e.share(f, reader, metadata.PermissionRead)
	e.share(f, writer, metadata.PermissionWrite)

	_, err := e.engine.Overwrite(t.Context(), reader, f.ID, strings.NewReader("nope"))
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	// A write share allows content edits; the owner is charged
	updated, err := e.engine.Overwrite(t.Context(), writer, f.ID, strings.NewReader("short"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), updated.Size)
	assert.NotEqual(t, f.ContentRef, updated.ContentRef)
	assert.Equal(t, int64(5), e.used(alice))
	assert.Equal(t, 1, e.payloadCount())

	_, err = e.engine.Overwrite(t.Context(), owner, f.ID, strings.NewReader(strings.Repeat("x", 21)))
	storetest.AssertErrorCode(t, metadata.ErrQuotaExceeded, err)
	assert.Equal(t, int64(5), e.used(alice))
	assert.Equal(t, 1, e.payloadCount())

	_, rc, err := e.engine.Open(t.Context(), reader, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "short", readAll(t, rc))
}

func TestOpenAndStat(t *testing.T) {
	e := newEnv(t, hierarchy.Config{})
	alice, owner := e.user("alice", 100)
	_, stranger := e.user("stranger", 100)
	dir := e.folder(alice.ID, uuid.Nil, "dir")
	f := e.upload(alice.ID, dir.ID, "f", "x")

	_, _, err := e.engine.Open(t.Context(), owner, dir.ID)
	storetest.AssertErrorCode(t, metadata.ErrInvalidOperation, err)

	_, _, err = e.engine.Open(t.Context(), stranger, f.ID)
	storetest.AssertErrorCode(t, metadata.ErrPermissionDenied, err)

	d, err := e.engine.Stat(t.Context(), owner, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "f", d.Node.Name)
	assert.Equal(t, metadata.PermissionWrite, d.Permission)
}
