package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// MemoryMetadataStoreConfig contains configuration for the in-memory store.
type MemoryMetadataStoreConfig struct {
	// MaxNodes caps the number of nodes held in memory (0 = unlimited).
	// CreateNode fails with ErrInvalidOperation once the cap is reached.
	MaxNodes int `mapstructure:"max_nodes"`
}

// grantKey is the (node, recipient) uniqueness key of a share grant.
type grantKey struct {
	node      uuid.UUID
	recipient uuid.UUID
}

// MemoryMetadataStore implements metadata.MetadataStore with in-process maps.
//
// Concurrency model:
// A single RWMutex guards all state. View holds the read lock for the whole
// callback, Update holds the write lock, so Update transactions are fully
// serialized. That trivially satisfies per-user quota atomicity and
// per-node critical sections.
//
// Rollback:
// Every mutation performed inside Update appends an inverse operation to the
// transaction's undo log. If the callback returns an error (or panics), the
// log is replayed in reverse, restoring the exact prior state.
//
// Data is lost on process exit. Intended for tests and single-process
// development setups.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	// users is the primary user table
	users map[uuid.UUID]*metadata.User

	// usernames and emails are uniqueness indexes into users
	usernames map[string]uuid.UUID
	emails    map[string]uuid.UUID

	nodes map[uuid.UUID]*metadata.Node

	grants     map[uuid.UUID]*metadata.ShareGrant
	grantIndex map[grantKey]uuid.UUID

	notifications map[uuid.UUID]*metadata.Notification
	audit         map[uuid.UUID]*metadata.AuditEntry
	announcements map[uuid.UUID]*metadata.Announcement

	config MemoryMetadataStoreConfig
	closed bool
}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore(config MemoryMetadataStoreConfig) *MemoryMetadataStore {
	return &MemoryMetadataStore{
		users:         make(map[uuid.UUID]*metadata.User),
		usernames:     make(map[string]uuid.UUID),
		emails:        make(map[string]uuid.UUID),
		nodes:         make(map[uuid.UUID]*metadata.Node),
		grants:        make(map[uuid.UUID]*metadata.ShareGrant),
		grantIndex:    make(map[grantKey]uuid.UUID),
		notifications: make(map[uuid.UUID]*metadata.Notification),
		audit:         make(map[uuid.UUID]*metadata.AuditEntry),
		announcements: make(map[uuid.UUID]*metadata.Announcement),
		config:        config,
	}
}

// NewMemoryMetadataStoreWithDefaults creates a store with no node cap.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(MemoryMetadataStoreConfig{})
}

// View implements metadata.MetadataStore.
func (s *MemoryMetadataStore) View(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory metadata store is closed")
	}

	tx := &memoryTx{store: s, writable: false}
	defer tx.invalidate()
	return fn(tx)
}

// Update implements metadata.MetadataStore.
func (s *MemoryMetadataStore) Update(ctx context.Context, fn func(tx metadata.Transaction) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("memory metadata store is closed")
	}

	tx := &memoryTx{store: s, writable: true}
	defer tx.invalidate()

	committed := false
	defer func() {
		if !committed {
			tx.rollback()
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	committed = true
	return nil
}

// Healthcheck implements metadata.MetadataStore.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("memory metadata store is closed")
	}
	return nil
}

// Close implements metadata.MetadataStore.
func (s *MemoryMetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// ============================================================================
// Transaction plumbing
// ============================================================================

// memoryTx is the Transaction handed to View and Update callbacks.
// The owning store lock is held for its entire lifetime.
type memoryTx struct {
	store    *MemoryMetadataStore
	writable bool
	done     bool
	undo     []func()
}

var _ metadata.Transaction = (*memoryTx)(nil)

func (tx *memoryTx) invalidate() {
	tx.done = true
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

// checkWrite guards every mutating method.
func (tx *memoryTx) checkWrite(op string) error {
	if tx.done {
		return fmt.Errorf("transaction used after completion: %s", op)
	}
	if !tx.writable {
		return metadata.ErrReadOnlyTransaction(op)
	}
	return nil
}

// setEntry writes m[k] = v and records how to undo it.
func setEntry[K comparable, V any](tx *memoryTx, m map[K]V, k K, v V) {
	old, had := m[k]
	tx.undo = append(tx.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// deleteEntry removes m[k] (if present) and records how to undo it.
func deleteEntry[K comparable, V any](tx *memoryTx, m map[K]V, k K) {
	old, had := m[k]
	if !had {
		return
	}
	tx.undo = append(tx.undo, func() { m[k] = old })
	delete(m, k)
}
