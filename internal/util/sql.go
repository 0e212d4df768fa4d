package util

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
)

type TransactionCallback func(*sqlx.Tx) error

// Transaction runs cb in a transaction, committing if cb returns nil and
// rolling back otherwise.
func Transaction(ctx context.Context, db *sqlx.DB, opts *sql.TxOptions, cb TransactionCallback) error {
	tx, err := db.BeginTxx(ctx, opts)
	if err != nil {
		return err
	}

	if err := cb(tx); err != nil {
		if err2 := tx.Rollback(); err2 != nil {
			return fmt.Errorf("rollback error: %s\noriginal error: %w", err2, err)
		}

		return err
	}

	return tx.Commit()
}

// ReadOnly are the options for transactions that only read.
var ReadOnly = &sql.TxOptions{ReadOnly: true} // nolint:gochecknoglobals

// IsSerializationFailure returns true if err means the database could not
// order the transaction against a concurrent one and it can be retried as a
// whole.
func IsSerializationFailure(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrBusy || liteErr.Code == sqlite3.ErrLocked
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", // serialization_failure
			"40P01", // deadlock_detected
			"55P03": // lock_not_available
			return true
		}
	}

	return false
}
