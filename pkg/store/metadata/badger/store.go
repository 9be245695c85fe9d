package badger

import (
	"context"
	"errors"
	"fmt"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/internal/logger"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// BadgerMetadataStore implements metadata.MetadataStore on BadgerDB.
//
// Persistence:
// All records are JSON documents under prefixed keys (see keys.go). Secondary
// indexes are maintained in the same Badger transaction as the record they
// point to, so an index never outlives or predates its record.
//
// Concurrency model:
// Badger provides serializable snapshot isolation with optimistic conflict
// detection: every key read inside an update transaction is tracked, and the
// commit fails with ErrConflict if another transaction committed a write to
// any of those keys in the meantime. Update retries the whole callback on
// conflict (up to MaxConflictRetries), which turns read-check-write sequences
// such as quota reservation or cycle-checked moves into atomic operations
// without explicit locks.
//
// Thread Safety:
// Safe for concurrent use by multiple goroutines.
type BadgerMetadataStore struct {
	db     *badgerdb.DB
	config BadgerMetadataStoreConfig
}

// BadgerMetadataStoreConfig contains configuration for the BadgerDB store.
type BadgerMetadataStoreConfig struct {
	// DBPath is the directory where BadgerDB stores its files
	DBPath string `mapstructure:"db_path"`

	// InMemory runs Badger without touching disk (tests, ephemeral setups).
	// DBPath is ignored when set.
	InMemory bool `mapstructure:"in_memory"`

	// MaxConflictRetries bounds how often Update re-runs a callback after a
	// write conflict (default: 16)
	MaxConflictRetries int `mapstructure:"max_conflict_retries"`

	// BlockCacheSizeMB is BadgerDB's block cache size in MB (default: 64)
	BlockCacheSizeMB int64 `mapstructure:"block_cache_size_mb"`

	// IndexCacheSizeMB is BadgerDB's index cache size in MB (default: 32)
	IndexCacheSizeMB int64 `mapstructure:"index_cache_size_mb"`
}

// NewBadgerMetadataStore opens (or creates) a BadgerDB database.
//
// The context is only checked before opening; Badger itself does not take a
// context.
func NewBadgerMetadataStore(ctx context.Context, config BadgerMetadataStoreConfig) (*BadgerMetadataStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !config.InMemory && config.DBPath == "" {
		return nil, fmt.Errorf("badger db_path is required")
	}
	if config.MaxConflictRetries <= 0 {
		config.MaxConflictRetries = 16
	}
	if config.BlockCacheSizeMB <= 0 {
		config.BlockCacheSizeMB = 64
	}
	if config.IndexCacheSizeMB <= 0 {
		config.IndexCacheSizeMB = 32
	}

	var opts badgerdb.Options
	if config.InMemory {
		opts = badgerdb.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badgerdb.DefaultOptions(config.DBPath)
	}

	// Records are small JSON documents; compression is not worth the CPU
	opts = opts.WithLoggingLevel(badgerdb.WARNING)
	opts = opts.WithCompression(options.None)
	opts = opts.WithBlockCacheSize(config.BlockCacheSizeMB << 20)
	opts = opts.WithIndexCacheSize(config.IndexCacheSizeMB << 20)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}

	logger.Debug("Opened badger metadata store (path=%q, in_memory=%v)", config.DBPath, config.InMemory)

	return &BadgerMetadataStore{db: db, config: config}, nil
}

// View implements metadata.MetadataStore.
func (s *BadgerMetadataStore) View(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badgerdb.Txn) error {
		return fn(&badgerTx{txn: txn, writable: false})
	})
}

// Update implements metadata.MetadataStore.
//
// The callback is re-run from scratch on badger.ErrConflict, with a short
// linear backoff between attempts.
func (s *BadgerMetadataStore) Update(ctx context.Context, fn func(tx metadata.Transaction) error) error {
	var lastErr error

	for attempt := 0; attempt <= s.config.MaxConflictRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badgerdb.Txn) error {
			return fn(&badgerTx{txn: txn, writable: true})
		})
		if !errors.Is(err, badgerdb.ErrConflict) {
			return translateError(err)
		}

		lastErr = err
		logger.Debug("badger update conflict, retrying (attempt %d)", attempt+1)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * time.Millisecond):
		}
	}

	return fmt.Errorf("badger update failed after %d conflict retries: %w", s.config.MaxConflictRetries, lastErr)
}

// Healthcheck implements metadata.MetadataStore.
func (s *BadgerMetadataStore) Healthcheck(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return fmt.Errorf("badger database is closed")
	}
	return s.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(keyUser(uuid.Nil))
		if err != nil && !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("badger read failed: %w", err)
		}
		return nil
	})
}

// Close implements metadata.MetadataStore.
func (s *BadgerMetadataStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}
	return nil
}

// translateError maps oversized transactions to a domain error and passes
// everything else through.
func translateError(err error) error {
	if errors.Is(err, badgerdb.ErrTxnTooBig) {
		return metadata.NewInvalidOperationError("transaction too large", err.Error())
	}
	return err
}
