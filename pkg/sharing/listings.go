package sharing

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Party identifies the other side of a grant.
type Party struct {
	ID       uuid.UUID
	Username string
	Email    string
}

// GrantView is a grant joined with the identities a listing needs.
type GrantView struct {
	ID         uuid.UUID
	NodeID     uuid.UUID
	NodeName   string
	IsFolder   bool
	Permission metadata.Permission
	CreatedAt  time.Time
	UpdatedAt  time.Time

	// Owner is set for ListSharedWithMe, Recipient for the owner listings
	Owner     *Party
	Recipient *Party
}

func partyOf(u *metadata.User) *Party {
	return &Party{ID: u.ID, Username: u.Username, Email: u.Email}
}

// ListGrantsForNode returns every grant on nodeID. Owner only.
func (l *Ledger) ListGrantsForNode(ctx context.Context, ownerID, nodeID uuid.UUID) ([]*GrantView, error) {
	var views []*GrantView
	err := l.store.View(ctx, func(tx metadata.Transaction) error {
		node, err := tx.GetNode(nodeID)
		if err != nil {
			return err
		}
		if node.OwnerID != ownerID {
			return metadata.NewPermissionDeniedError("only the owner may list shares", nodeID.String())
		}
		grants, err := tx.ListGrantsByNode(nodeID)
		if err != nil {
			return err
		}
		views, err = buildViews(tx, grants, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ListGrantsByOwner returns every grant ownerID created, newest first.
func (l *Ledger) ListGrantsByOwner(ctx context.Context, ownerID uuid.UUID) ([]*GrantView, error) {
	var views []*GrantView
	err := l.store.View(ctx, func(tx metadata.Transaction) error {
		grants, err := tx.ListGrantsByOwner(ownerID)
		if err != nil {
			return err
		}
		views, err = buildViews(tx, grants, false)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// ListSharedWithMe returns every grant addressed to recipientID, newest
// first, with the owner's identity.
func (l *Ledger) ListSharedWithMe(ctx context.Context, recipientID uuid.UUID) ([]*GrantView, error) {
	var views []*GrantView
	err := l.store.View(ctx, func(tx metadata.Transaction) error {
		grants, err := tx.ListGrantsByRecipient(recipientID)
		if err != nil {
			return err
		}
		views, err = buildViews(tx, grants, true)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// buildViews joins grants with their node and counterpart. Grants whose
// node or user vanished are dropped.
func buildViews(tx metadata.Transaction, grants []*metadata.ShareGrant, withOwner bool) ([]*GrantView, error) {
	users := make(map[uuid.UUID]*metadata.User)
	loadUser := func(id uuid.UUID) (*metadata.User, error) {
		if u, ok := users[id]; ok {
			return u, nil
		}
		u, err := tx.GetUser(id)
		if err != nil {
			return nil, err
		}
		users[id] = u
		return u, nil
	}

	views := make([]*GrantView, 0, len(grants))
	for _, g := range grants {
		node, err := tx.GetNode(g.NodeID)
		if err != nil {
			if metadata.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		partyID := g.RecipientID
		if withOwner {
			partyID = g.OwnerID
		}
		party, err := loadUser(partyID)
		if err != nil {
			if metadata.IsNotFound(err) {
				continue
			}
			return nil, err
		}

		v := &GrantView{
			ID:         g.ID,
			NodeID:     g.NodeID,
			NodeName:   node.Name,
			IsFolder:   node.IsFolder,
			Permission: g.Permission,
			CreatedAt:  g.CreatedAt,
			UpdatedAt:  g.UpdatedAt,
		}
		if withOwner {
			v.Owner = partyOf(party)
		} else {
			v.Recipient = partyOf(party)
		}
		views = append(views, v)
	}

	slices.SortStableFunc(views, func(a, b *GrantView) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return views, nil
}
