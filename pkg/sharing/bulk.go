package sharing

import (
	"context"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// BulkItem reports the outcome for one (node, recipient) pair.
type BulkItem struct {
	NodeID    uuid.UUID
	Recipient string
	Outcome   *GrantOutcome
	Err       error
}

// BulkResult collects per-pair outcomes of BulkGrant.
type BulkResult struct {
	Items     []BulkItem
	Succeeded int
	Failed    int
}

// BulkGrant shares every node with every recipient. Each pair runs in its
// own transaction; a failing pair is reported in the result and does not
// stop the others. Duplicate inputs are collapsed.
func (l *Ledger) BulkGrant(
	ctx context.Context,
	ownerID uuid.UUID,
	nodeIDs []uuid.UUID,
	recipients []string,
	permission metadata.Permission,
) (*BulkResult, error) {
	if !permission.Valid() {
		return nil, metadata.NewInvalidArgumentError("invalid permission", string(permission))
	}

	nodeIDs = lo.Uniq(nodeIDs)
	recipients = lo.Uniq(lo.Compact(recipients))

	result := &BulkResult{Items: make([]BulkItem, 0, len(nodeIDs)*len(recipients))}
	for _, nodeID := range nodeIDs {
		for _, recipient := range recipients {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			outcome, err := l.Grant(ctx, ownerID, nodeID, recipient, permission)
			result.Items = append(result.Items, BulkItem{
				NodeID:    nodeID,
				Recipient: recipient,
				Outcome:   outcome,
				Err:       err,
			})
		}
	}

	result.Failed = lo.CountBy(result.Items, func(item BulkItem) bool { return item.Err != nil })
	result.Succeeded = len(result.Items) - result.Failed

	if result.Failed > 0 {
		logger.Debug("Bulk share by %s: %d succeeded, %d failed", ownerID, result.Succeeded, result.Failed)
	}
	return result, nil
}
