package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "modernc.org/sqlite"
)

const (
	driverName = "sqlite"

	// MemoryPath opens a private in-memory database.
	MemoryPath = ":memory:"

	busyRetryLimit = 5
	busyRetryDelay = 50 * time.Millisecond
)

type txStructContextKey struct{}

var (
	ErrAlreadyInTx = errors.New("already executing in existing db tx")
	ErrNotInTx     = errors.New("not executing in existing db tx")
)

// Open opens the SQLite database at path, creating parent directories as
// needed. The pool is capped at a single connection so in-memory databases
// stay shared and writers never contend within the process.
func Open(path string) (*sqlx.DB, error) {
	dsn := path
	if path != MemoryPath {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "failed to create database directory %q", dir)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sqlx.Open(driverName, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database %q", path)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to ping database")
	}
	return db, nil
}

// ExecuteRetryable retries non-transactional operations that fail because the
// database file is locked by another process.
func ExecuteRetryable(fn func() error) error {
	var err error
	for i := 0; i < busyRetryLimit; i++ {
		err = fn()
		if !IsBusy(err) {
			return err
		}
		time.Sleep(busyRetryDelay * time.Duration(i+1))
	}
	return err
}

// ExecuteTxWithinCtx executes a DB transaction that's scoped to a call to fn. The transaction
// is passed along with the context. Once fn is complete, commit/rollback is called based
// on whether an error is returned.
func ExecuteTxWithinCtx(ctx context.Context, db *sqlx.DB, fn func(context.Context) error) error {
	if ctx.Value(txStructContextKey{}) != nil {
		return ErrAlreadyInTx
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}

	err = fn(context.WithValue(ctx, txStructContextKey{}, tx))
	if err != nil {
		if rollbackErr := tx.Rollback(); rollbackErr != nil {
			return errors.Wrap(rollbackErr, "failed to rollback transaction")
		}
		return err
	}
	return tx.Commit()
}

// ExecuteInTx runs fn within the transaction carried by ctx, or within a new
// one that it commits or rolls back itself.
func ExecuteInTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := getTxFromCtx(ctx)
	if err != nil && err != ErrNotInTx {
		return err
	}

	startedNewTx := err == ErrNotInTx
	if startedNewTx {
		tx, err = db.BeginTxx(ctx, &sql.TxOptions{})
		if err != nil {
			return err
		}
	}

	err = fn(tx)
	if err != nil {
		if startedNewTx {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				return errors.Wrap(rollbackErr, "failed to rollback transaction")
			}
		}
		return err
	}
	if startedNewTx {
		return tx.Commit()
	}
	return nil
}

func getTxFromCtx(ctx context.Context) (*sqlx.Tx, error) {
	txFromCtx := ctx.Value(txStructContextKey{})
	if txFromCtx == nil {
		return nil, ErrNotInTx
	}

	tx, ok := txFromCtx.(*sqlx.Tx)
	if !ok {
		return nil, errors.New("invalid type for tx")
	}
	return tx, nil
}
