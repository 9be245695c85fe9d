// Package quota maintains per-user storage accounting.
//
// User.StorageUsed is a denormalized sum of the sizes of the user's file
// nodes. The functions in this package are the only writers of that field
// and are meant to be called inside the same store transaction that creates,
// removes or resizes the node, so the counter and the node set can never
// disagree after a commit.
package quota

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// Reserve charges bytes against userID's quota.
//
// Fails with ErrQuotaExceeded (and changes nothing) when used+bytes would
// exceed the quota. Must be called inside an Update transaction.
func Reserve(tx metadata.Transaction, userID uuid.UUID, bytes int64) error {
	if bytes < 0 {
		return metadata.NewInvalidArgumentError("negative reservation", strconv.FormatInt(bytes, 10))
	}

	user, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}
	// Both sides are non-negative, so the subtraction cannot overflow
	if bytes > user.StorageQuota-user.StorageUsed {
		return metadata.NewQuotaExceededError(userID.String(), user.StorageUsed, bytes, user.StorageQuota)
	}

	user.StorageUsed += bytes
	user.UpdatedAt = time.Now()
	return tx.PutUser(user)
}

// Release returns bytes to userID's quota. Usage never drops below zero.
func Release(tx metadata.Transaction, userID uuid.UUID, bytes int64) error {
	if bytes < 0 {
		return metadata.NewInvalidArgumentError("negative release", strconv.FormatInt(bytes, 10))
	}

	user, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	if bytes == 0 {
		return nil
	}

	user.StorageUsed = max(user.StorageUsed-bytes, 0)
	user.UpdatedAt = time.Now()
	return tx.PutUser(user)
}

// Adjust applies a signed size change: positive deltas reserve, negative
// deltas release.
func Adjust(tx metadata.Transaction, userID uuid.UUID, delta int64) error {
	if delta < 0 {
		return Release(tx, userID, -delta)
	}
	return Reserve(tx, userID, delta)
}

// SetQuota changes userID's quota. Only admins may do this.
//
// The new quota is not enforced retroactively: a user already above it
// keeps their files but cannot reserve more until usage drops.
func SetQuota(tx metadata.Transaction, actorRole metadata.Role, userID uuid.UUID, quota int64) error {
	if actorRole != metadata.RoleAdmin {
		return metadata.NewPermissionDeniedError("only admins may change quotas", userID.String())
	}
	if quota < 0 {
		return metadata.NewInvalidArgumentError("negative quota", strconv.FormatInt(quota, 10))
	}

	user, err := tx.GetUser(userID)
	if err != nil {
		return err
	}
	user.StorageQuota = quota
	user.UpdatedAt = time.Now()
	return tx.PutUser(user)
}

// Usage is a point-in-time view of a user's storage.
type Usage struct {
	Used      int64
	Quota     int64
	Available int64

	// Percent is Used/Quota in [0, 100+]. Zero quota with usage reports 100.
	Percent float64
}

func usageOf(user *metadata.User) Usage {
	u := Usage{
		Used:      user.StorageUsed,
		Quota:     user.StorageQuota,
		Available: max(user.StorageQuota-user.StorageUsed, 0),
	}
	switch {
	case user.StorageQuota > 0:
		u.Percent = float64(user.StorageUsed) / float64(user.StorageQuota) * 100
	case user.StorageUsed > 0:
		u.Percent = 100
	}
	return u
}

// Ledger runs the quota primitives in their own store transactions.
type Ledger struct {
	store metadata.MetadataStore
}

// New creates a Ledger over store.
func New(store metadata.MetadataStore) *Ledger {
	return &Ledger{store: store}
}

// Usage returns userID's current storage usage.
func (l *Ledger) Usage(ctx context.Context, userID uuid.UUID) (Usage, error) {
	var usage Usage
	err := l.store.View(ctx, func(tx metadata.Transaction) error {
		user, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		usage = usageOf(user)
		return nil
	})
	return usage, err
}

// SetQuota changes userID's quota in its own transaction.
func (l *Ledger) SetQuota(ctx context.Context, actorRole metadata.Role, userID uuid.UUID, quota int64) error {
	return l.store.Update(ctx, func(tx metadata.Transaction) error {
		return SetQuota(tx, actorRole, userID, quota)
	})
}

// Reconcile recomputes StorageUsed from the user's file nodes and returns
// the drift that was corrected (recomputed minus stored). A zero drift means
// the counter was already consistent.
func (l *Ledger) Reconcile(ctx context.Context, userID uuid.UUID) (int64, error) {
	var drift int64
	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		user, err := tx.GetUser(userID)
		if err != nil {
			return err
		}
		nodes, err := tx.ListNodesByOwner(userID)
		if err != nil {
			return fmt.Errorf("failed to list nodes: %w", err)
		}

		var actual int64
		for _, n := range nodes {
			if !n.IsFolder {
				actual += n.Size
			}
		}

		drift = actual - user.StorageUsed
		if drift == 0 {
			return nil
		}
		user.StorageUsed = actual
		user.UpdatedAt = time.Now()
		return tx.PutUser(user)
	})
	if err != nil {
		return 0, err
	}
	if drift != 0 {
		logger.Warn("Quota drift corrected for user %s: %+d bytes", userID, drift)
	}
	return drift, nil
}
