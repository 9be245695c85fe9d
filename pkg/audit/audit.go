// Package audit records the append-only activity log.
//
// Boundary handlers call Logger.Log after an operation succeeds; the core
// engines never write audit entries themselves. Actions are dotted
// "<category>.<verb>" strings so listings can filter by category prefix.
package audit

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"github.com/samber/lo"
)

// Well-known actions.
const (
	ActionLogin    = "auth.login"
	ActionRegister = "auth.register"

	ActionUpload   = "file.upload"
	ActionDownload = "file.download"
	ActionRename   = "file.rename"
	ActionMove     = "file.move"
	ActionDelete   = "file.delete"

	ActionShareGrant  = "share.grant"
	ActionShareBulk   = "share.bulk"
	ActionShareUpdate = "share.update"
	ActionShareRevoke = "share.revoke"

	ActionUserUpdate         = "admin.user_update"
	ActionUserDelete         = "admin.user_delete"
	ActionAnnouncement       = "admin.announcement"
	ActionAnnouncementDelete = "admin.announcement_delete"
	ActionGC                 = "admin.gc"
)

// Category groups actions for filtering.
type Category string

const (
	CategoryAll   Category = "all"
	CategoryAuth  Category = "auth"
	CategoryFile  Category = "file"
	CategoryShare Category = "share"
	CategoryAdmin Category = "admin"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryAll, CategoryAuth, CategoryFile, CategoryShare, CategoryAdmin:
		return true
	}
	return false
}

// Matches reports whether action belongs to c.
func (c Category) Matches(action string) bool {
	if c == CategoryAll || c == "" {
		return true
	}
	return strings.HasPrefix(action, string(c)+".")
}

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// Query filters a listing. Zero values mean "no filter" and the default
// limit.
type Query struct {
	Category Category
	ActorID  *uuid.UUID
	Limit    int
}

// Entry is an audit record joined with its actor's username. Username is
// empty for system actions and deleted actors.
type Entry struct {
	*metadata.AuditEntry
	Username string
}

// Logger writes and reads the audit log.
type Logger struct {
	store metadata.MetadataStore
}

// New creates a Logger over store.
func New(store metadata.MetadataStore) *Logger {
	return &Logger{store: store}
}

// Log appends an entry. actorID is nil for system actions.
//
// Failures are logged and returned; the operation being audited has already
// succeeded so callers usually ignore the error.
func (l *Logger) Log(ctx context.Context, actorID *uuid.UUID, action, detail, origin string) error {
	entry := &metadata.AuditEntry{
		ID:        uuid.New(),
		Action:    action,
		Detail:    detail,
		Origin:    origin,
		CreatedAt: time.Now(),
	}
	if actorID != nil {
		id := *actorID
		entry.ActorID = &id
	}

	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		return tx.AppendAudit(entry)
	})
	if err != nil {
		logger.Warn("Failed to record audit entry %s: %v", action, err)
		return err
	}
	return nil
}

// List returns entries matching q, newest first.
func (l *Logger) List(ctx context.Context, q Query) ([]Entry, error) {
	if q.Category != "" && !q.Category.Valid() {
		return nil, metadata.NewInvalidArgumentError("unknown audit category", string(q.Category))
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	limit = min(limit, MaxListLimit)

	var result []Entry
	err := l.store.View(ctx, func(tx metadata.Transaction) error {
		all, err := tx.ListAudit()
		if err != nil {
			return err
		}

		matched := lo.Filter(all, func(e *metadata.AuditEntry, _ int) bool {
			if !q.Category.Matches(e.Action) {
				return false
			}
			return q.ActorID == nil || (e.ActorID != nil && *e.ActorID == *q.ActorID)
		})
		slices.SortStableFunc(matched, func(a, b *metadata.AuditEntry) int {
			if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
				return c
			}
			return cmp.Compare(a.ID.String(), b.ID.String())
		})
		if len(matched) > limit {
			matched = matched[:limit]
		}

		usernames := make(map[uuid.UUID]string)
		result = make([]Entry, 0, len(matched))
		for _, e := range matched {
			entry := Entry{AuditEntry: e}
			if e.ActorID != nil {
				name, ok := usernames[*e.ActorID]
				if !ok {
					if u, err := tx.GetUser(*e.ActorID); err == nil {
						name = u.Username
					} else if !metadata.IsNotFound(err) {
						return err
					}
					usernames[*e.ActorID] = name
				}
				entry.Username = name
			}
			result = append(result, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Prune removes entries older than olderThan and returns how many were
// removed.
func (l *Logger) Prune(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := time.Now().Add(-olderThan)
	var removed int
	err := l.store.Update(ctx, func(tx metadata.Transaction) error {
		var err error
		removed, err = tx.DeleteAuditBefore(cutoff)
		return err
	})
	if err != nil {
		return 0, err
	}
	return removed, nil
}
