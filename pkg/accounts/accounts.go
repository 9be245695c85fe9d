// Package accounts manages user records: registration, admin edits, user
// search for share-recipient lookup, and account deletion with its payload
// cleanup.
//
// Credentials are not handled here. The auth collaborator owns passwords
// and tokens and refers to accounts by ID.
package accounts

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/internal/ratelimiter"
	"github.com/marmos91/dittodrive/internal/validation"
	"github.com/marmos91/dittodrive/pkg/access"
	"github.com/marmos91/dittodrive/pkg/quota"
	"github.com/marmos91/dittodrive/pkg/store/content"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

const (
	// MinSearchLength is the shortest accepted user search query
	MinSearchLength = 2

	// DefaultSearchLimit caps search results when no limit is given
	DefaultSearchLimit = 10
)

// Config tunes the service.
type Config struct {
	// DefaultQuota is assigned to new accounts (default: 100 MiB)
	DefaultQuota int64

	// DeletesPerSecond paces payload removal when an account is deleted.
	// Zero means unlimited.
	DeletesPerSecond uint
}

// Service is the accounts API. It is safe for concurrent use.
type Service struct {
	store    metadata.MetadataStore
	payloads content.ContentStore
	limiter  *ratelimiter.RateLimiter
	config   Config
}

// New creates a Service. payloads receives the deletes of removed accounts'
// files.
func New(store metadata.MetadataStore, payloads content.ContentStore, config Config) *Service {
	if config.DefaultQuota <= 0 {
		config.DefaultQuota = metadata.DefaultStorageQuota
	}
	return &Service{
		store:    store,
		payloads: payloads,
		limiter:  ratelimiter.New(config.DeletesPerSecond, config.DeletesPerSecond),
		config:   config,
	}
}

// Registration is the input of Register.
type Registration struct {
	Username string `validate:"required,username"`
	Email    string `validate:"required,email,max=254"`
}

// Register creates a basic, free-tier account with the default quota.
// Username and email must be unused (ErrAlreadyExists otherwise).
func (s *Service) Register(ctx context.Context, reg Registration) (*metadata.User, error) {
	reg.Username = strings.TrimSpace(reg.Username)
	reg.Email = strings.ToLower(strings.TrimSpace(reg.Email))
	if err := validation.Struct(reg); err != nil {
		return nil, err
	}

	now := time.Now()
	user := &metadata.User{
		ID:           uuid.New(),
		Username:     reg.Username,
		Email:        reg.Email,
		Role:         metadata.RoleBasic,
		Subscription: metadata.SubscriptionFree,
		StorageQuota: s.config.DefaultQuota,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.CreateUser(user)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Registered user %s (%s)", user.Username, user.ID)
	return user, nil
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*metadata.User, error) {
	var user *metadata.User
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		user, err = tx.GetUser(id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// GetByUsername returns the account with the exact username.
func (s *Service) GetByUsername(ctx context.Context, username string) (*metadata.User, error) {
	var user *metadata.User
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		user, err = tx.GetUserByUsername(strings.TrimSpace(username))
		return err
	})
	if err != nil {
		return nil, err
	}
	return user, nil
}

// List returns every account, newest first.
func (s *Service) List(ctx context.Context) ([]*metadata.User, error) {
	var users []*metadata.User
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		users, err = tx.ListUsers()
		return err
	})
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(users, func(a, b *metadata.User) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.Username, b.Username)
	})
	return users, nil
}

// Search finds accounts whose username or email contains query,
// case-insensitively, excluding excludeID (usually the caller). Results are
// ordered by username and capped at limit (default 10).
func (s *Service) Search(ctx context.Context, query string, excludeID uuid.UUID, limit int) ([]*metadata.User, error) {
	query = strings.TrimSpace(query)
	if utf8.RuneCountInString(query) < MinSearchLength {
		return nil, metadata.NewInvalidArgumentError("search query too short", query)
	}
	if limit <= 0 {
		limit = DefaultSearchLimit
	}
	needle := strings.ToLower(query)

	var users []*metadata.User
	err := s.store.View(ctx, func(tx metadata.Transaction) error {
		var err error
		users, err = tx.ListUsers()
		return err
	})
	if err != nil {
		return nil, err
	}

	matches := lo.Filter(users, func(u *metadata.User, _ int) bool {
		if u.ID == excludeID {
			return false
		}
		return strings.Contains(strings.ToLower(u.Username), needle) ||
			strings.Contains(strings.ToLower(u.Email), needle)
	})
	slices.SortFunc(matches, func(a, b *metadata.User) int { return cmp.Compare(a.Username, b.Username) })
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// UserUpdate lists the fields an admin may change. Nil fields are left
// untouched.
type UserUpdate struct {
	Email        *string                `validate:"omitempty,email,max=254"`
	Role         *metadata.Role         `validate:"omitempty,oneof=admin premium basic"`
	Subscription *metadata.Subscription `validate:"omitempty,oneof=free premium enterprise"`
	StorageQuota *int64                 `validate:"omitempty,gte=0"`
}

func (u UserUpdate) empty() bool {
	return u.Email == nil && u.Role == nil && u.Subscription == nil && u.StorageQuota == nil
}

// Update applies an admin edit to account id. Quota changes go through the
// quota ledger and are not enforced retroactively.
func (s *Service) Update(ctx context.Context, actor access.Actor, id uuid.UUID, update UserUpdate) (*metadata.User, error) {
	if !actor.IsAdmin() {
		return nil, metadata.NewPermissionDeniedError("only admins may edit accounts", id.String())
	}
	if update.empty() {
		return nil, metadata.NewInvalidArgumentError("no changes", id.String())
	}
	if err := validation.Struct(update); err != nil {
		return nil, err
	}

	var updated *metadata.User
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		if update.StorageQuota != nil {
			if err := quota.SetQuota(tx, actor.Role, id, *update.StorageQuota); err != nil {
				return err
			}
		}

		user, err := tx.GetUser(id)
		if err != nil {
			return err
		}
		if update.Email != nil {
			user.Email = strings.ToLower(strings.TrimSpace(*update.Email))
		}
		if update.Role != nil {
			user.Role = *update.Role
		}
		if update.Subscription != nil {
			user.Subscription = *update.Subscription
		}
		user.UpdatedAt = time.Now()
		if err := tx.PutUser(user); err != nil {
			return err
		}
		updated = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Account %s updated by %s", id, actor.ID)
	return updated, nil
}

// DeleteResult reports what an account deletion removed.
type DeleteResult struct {
	Nodes    int
	Payloads int

	// PayloadErrors maps refs that could not be removed; the orphan
	// collector reclaims them later.
	PayloadErrors map[string]error
}

// Delete removes account id and everything it owns. Admin only, and an
// admin cannot delete their own account.
//
// The metadata cascade (nodes, grants, notifications) commits first; the
// owned payloads are removed afterwards, paced by the configured rate.
func (s *Service) Delete(ctx context.Context, actor access.Actor, id uuid.UUID) (*DeleteResult, error) {
	if !actor.IsAdmin() {
		return nil, metadata.NewPermissionDeniedError("only admins may delete accounts", id.String())
	}
	if actor.ID == id {
		return nil, metadata.NewInvalidOperationError("cannot delete your own account", id.String())
	}

	var (
		refs  []string
		nodes int
	)
	err := s.store.Update(ctx, func(tx metadata.Transaction) error {
		if _, err := tx.GetUser(id); err != nil {
			return err
		}
		owned, err := tx.ListNodesByOwner(id)
		if err != nil {
			return err
		}
		nodes = len(owned)
		refs = lo.FilterMap(owned, func(n *metadata.Node, _ int) (string, bool) {
			return n.ContentRef, !n.IsFolder && n.ContentRef != ""
		})
		return tx.DeleteUser(id)
	})
	if err != nil {
		return nil, err
	}

	result := &DeleteResult{Nodes: nodes, PayloadErrors: make(map[string]error)}
	for i, ref := range refs {
		if err := s.limiter.Wait(ctx); err != nil {
			// Metadata is gone already; what is left becomes orphans
			for _, rest := range refs[i:] {
				result.PayloadErrors[rest] = err
			}
			break
		}
		if err := s.payloads.Delete(ctx, ref); err != nil {
			logger.Warn("Failed to delete payload %s of deleted user %s: %v", ref, id, err)
			result.PayloadErrors[ref] = err
			continue
		}
		result.Payloads++
	}

	logger.Info("Deleted user %s: %d nodes, %d payloads removed, %d payload errors",
		id, result.Nodes, result.Payloads, len(result.PayloadErrors))
	return result, nil
}
