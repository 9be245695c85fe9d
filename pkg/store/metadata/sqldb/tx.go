package sqldb

import (
	"errors"
	"fmt"

	"github.com/marmos91/dittodrive/pkg/store/metadata"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sqlTx adapts a gorm transaction to metadata.Transaction.
type sqlTx struct {
	db       *gorm.DB
	writable bool
	lockRows bool
}

var _ metadata.Transaction = (*sqlTx)(nil)

func (tx *sqlTx) checkWrite(op string) error {
	if !tx.writable {
		return metadata.ErrReadOnlyTransaction(op)
	}
	return nil
}

// reader returns the handle for single-record reads. Inside Update on
// dialects with row locks the row stays locked until commit.
func (tx *sqlTx) reader() *gorm.DB {
	if tx.writable && tx.lockRows {
		return tx.db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx.db
}

// first loads one row matching the conditions into dest.
// Returns found == false (and no error) when no row matches.
func (tx *sqlTx) first(dest any, query string, args ...any) (bool, error) {
	err := tx.reader().Where(query, args...).Take(dest).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query failed: %w", err)
	}
	return true, nil
}

// exists reports whether any row of model matches the conditions.
func (tx *sqlTx) exists(model any, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.db.Model(model).Where(query, args...).Count(&count).Error; err != nil {
		return false, fmt.Errorf("count failed: %w", err)
	}
	return count > 0, nil
}
