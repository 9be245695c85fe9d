package badger

import (
	"encoding/json"
	"errors"
	"fmt"

	badgerdb "github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/marmos91/dittodrive/pkg/store/metadata"
)

// badgerTx adapts a Badger transaction to metadata.Transaction.
type badgerTx struct {
	txn      *badgerdb.Txn
	writable bool
}

var _ metadata.Transaction = (*badgerTx)(nil)

func (tx *badgerTx) checkWrite(op string) error {
	if !tx.writable {
		return metadata.ErrReadOnlyTransaction(op)
	}
	return nil
}

// getJSON loads and decodes the record stored at key.
// Returns found == false (and no error) when the key does not exist.
func getJSON[T any](tx *badgerTx, key []byte) (*T, bool, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}

	var out T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &out)
	}); err != nil {
		return nil, false, fmt.Errorf("failed to decode %q: %w", key, err)
	}
	return &out, true, nil
}

func putJSON(tx *badgerTx, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %q: %w", key, err)
	}
	if err := tx.txn.Set(key, data); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (tx *badgerTx) exists(key []byte) (bool, error) {
	_, err := tx.txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to get %q: %w", key, err)
	}
	return true, nil
}

func (tx *badgerTx) getID(key []byte) (uuid.UUID, bool, error) {
	item, err := tx.txn.Get(key)
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to get %q: %w", key, err)
	}

	var id uuid.UUID
	err = item.Value(func(val []byte) error {
		var perr error
		id, perr = uuid.FromBytes(val)
		return perr
	})
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to decode id at %q: %w", key, err)
	}
	return id, true, nil
}

func (tx *badgerTx) setID(key []byte, id uuid.UUID) error {
	if err := tx.txn.Set(key, id[:]); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (tx *badgerTx) setMarker(key []byte) error {
	if err := tx.txn.Set(key, nil); err != nil {
		return fmt.Errorf("failed to set %q: %w", key, err)
	}
	return nil
}

func (tx *badgerTx) del(key []byte) error {
	if err := tx.txn.Delete(key); err != nil {
		return fmt.Errorf("failed to delete %q: %w", key, err)
	}
	return nil
}

// scanIDs returns the trailing IDs of every index key under prefix.
// The iterator is closed before returning so callers may mutate freely.
func (tx *badgerTx) scanIDs(prefix []byte) ([]uuid.UUID, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.PrefetchValues = false
	opts.Prefix = prefix

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var ids []uuid.UUID
	for it.Rewind(); it.Valid(); it.Next() {
		id, err := lastIDSegment(it.Item().KeyCopy(nil))
		if err != nil {
			return nil, fmt.Errorf("malformed index key under %q: %w", prefix, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// scanJSON decodes every record under prefix.
func scanJSON[T any](tx *badgerTx, prefix []byte) ([]*T, error) {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = prefix

	it := tx.txn.NewIterator(opts)
	defer it.Close()

	var out []*T
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var v T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("failed to decode %q: %w", item.Key(), err)
		}
		out = append(out, &v)
	}
	return out, nil
}

// loadAll resolves ids to records via their primary keys, skipping dangling
// index entries.
func loadAll[T any](tx *badgerTx, ids []uuid.UUID, key func(uuid.UUID) []byte) ([]*T, error) {
	out := make([]*T, 0, len(ids))
	for _, id := range ids {
		v, found, err := getJSON[T](tx, key(id))
		if err != nil {
			return nil, err
		}
		if found {
			out = append(out, v)
		}
	}
	return out, nil
}
