package hierarchy

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/validation"
	"github.com/marmos91/dittodrive/pkg/notify"
	"github.com/marmos91/dittodrive/pkg/quota"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// NodeSpec describes a node to create.
type NodeSpec struct {
	ParentID uuid.UUID
	Name     string
	IsFolder bool

	// Size and ContentRef describe the already-stored payload of a file.
	Size       int64
	ContentRef string
	MimeType   string
}

// CreateNode inserts a node for ownerID.
//
// Files reserve their size against the owner's quota in the same
// transaction; on ErrQuotaExceeded nothing is persisted. Folders may not
// share a name with a sibling folder.
func (e *Engine) CreateNode(ctx context.Context, ownerID uuid.UUID, spec NodeSpec) (node *metadata.Node, err error) {
	defer func(start time.Time) { e.observe("create", start, err) }(time.Now())

	if err := validation.NodeName(spec.Name); err != nil {
		return nil, err
	}

	id := uuid.New()
	err = e.store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		node, err = createNodeTx(tx, id, ownerID, spec)
		return err
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Created %s %q (%s) for user %s", kindOf(node), node.Name, node.ID, ownerID)
	return node, nil
}

// CreateFolder creates a folder named name under parentID.
func (e *Engine) CreateFolder(ctx context.Context, ownerID, parentID uuid.UUID, name string) (*metadata.Node, error) {
	return e.CreateNode(ctx, ownerID, NodeSpec{ParentID: parentID, Name: name, IsFolder: true})
}

func createNodeTx(tx metadata.Transaction, id, ownerID uuid.UUID, spec NodeSpec) (*metadata.Node, error) {
	if err := validation.NodeName(spec.Name); err != nil {
		return nil, err
	}
	if spec.Size < 0 {
		return nil, metadata.NewInvalidArgumentError("negative size", strconv.FormatInt(spec.Size, 10))
	}
	if _, err := tx.GetUser(ownerID); err != nil {
		return nil, err
	}
	if _, err := loadParent(tx, ownerID, spec.ParentID); err != nil {
		return nil, err
	}

	now := time.Now()
	node := &metadata.Node{
		ID:        id,
		OwnerID:   ownerID,
		Name:      spec.Name,
		IsFolder:  spec.IsFolder,
		ParentID:  spec.ParentID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if spec.IsFolder {
		if err := checkFolderName(tx, ownerID, spec.ParentID, spec.Name, uuid.Nil); err != nil {
			return nil, err
		}
	} else {
		if err := quota.Reserve(tx, ownerID, spec.Size); err != nil {
			return nil, err
		}
		node.Size = spec.Size
		node.ContentRef = spec.ContentRef
		node.MimeType = spec.MimeType
	}

	if err := tx.CreateNode(node); err != nil {
		return nil, err
	}
	return node, nil
}

// Upload stores r as a new file named name under parentID.
//
// The payload is written first. If the metadata commit then fails (quota,
// missing parent, bad name) the payload is discarded and the metadata error
// returned.
func (e *Engine) Upload(
	ctx context.Context,
	ownerID, parentID uuid.UUID,
	name, mimeType string,
	r io.Reader,
) (node *metadata.Node, err error) {
	defer func(start time.Time) { e.observe("upload", start, err) }(time.Now())

	if err := validation.NodeName(name); err != nil {
		return nil, err
	}

	ref, size, err := e.payloads.WriteContent(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("failed to store payload: %w", err)
	}

	id := uuid.New()
	spec := NodeSpec{ParentID: parentID, Name: name, Size: size, ContentRef: ref, MimeType: mimeType}
	err = e.store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		node, err = createNodeTx(tx, id, ownerID, spec)
		if err != nil {
			return err
		}
		if !e.config.NotifyOnUpload {
			return nil
		}
		return notify.Emit(tx, ownerID, metadata.NotificationUploadComplete,
			"Upload complete",
			fmt.Sprintf("%s was uploaded successfully", name),
			map[string]any{"fileId": id.String(), "size": size})
	})
	if err != nil {
		e.discardPayload(ctx, ref)
		return nil, err
	}

	e.config.Metrics.RecordPayloadBytes("upload", size)
	logger.Debug("Uploaded %q (%s, %d bytes) for user %s", name, id, size, ownerID)
	return node, nil
}

// discardPayload removes a payload whose metadata never committed. A failure
// leaves an orphan for the collector.
func (e *Engine) discardPayload(ctx context.Context, ref string) {
	if err := e.payloads.Delete(context.WithoutCancel(ctx), ref); err != nil {
		logger.Warn("Failed to discard uncommitted payload %s: %v", ref, err)
	}
}

func kindOf(n *metadata.Node) string {
	if n.IsFolder {
		return "folder"
	}
	return "file"
}
