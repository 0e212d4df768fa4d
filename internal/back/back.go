package back

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
	"net/url"
	"strings"
	"time"

	"facerank/internal/config"
	"facerank/internal/util"

	"github.com/jmoiron/sqlx"
)

// Back is the ranking engine: it owns the photo ratings, the vote ledger and
// every operation reading or writing them.
type Back struct {
	// db serves reads, writeDB every transaction that writes. They are the
	// same pool except on SQLite where writes get their own single
	// connection that takes the write lock at BEGIN.
	db, writeDB *sqlx.DB

	config config.Config
	locks  *photoLocks

	// randomIndex returns an uniformly distributed int in [0,n), it must be
	// safe for concurrent use.
	randomIndex func(n int) int

	readOptions *sql.TxOptions
	lockSuffix  string
}

func New(cfg config.Config) (*Back, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Why even bother converting names? A single greppable string across all
	// your source code is better than any odd conversion scheme you could ever
	// come up with.
	// HACK: This is global but putting this in init() makes test ugly.
	sqlx.NameMapper = func(v string) string { return v }

	b := &Back{
		config:      cfg,
		locks:       newPhotoLocks(),
		randomIndex: rand.IntN,
	}

	switch cfg.SQLDriver {
	case "sqlite3":
		if err := b.openSQLite(cfg.SQLDSN); err != nil {
			return nil, err
		}
	case "postgres":
		db, err := sqlx.Connect("postgres", cfg.SQLDSN)
		if err != nil {
			return nil, err
		}
		// Postgres folds unquoted identifiers to lowercase.
		db.MapperFunc(strings.ToLower)

		b.db, b.writeDB = db, db
		b.readOptions = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
		b.lockSuffix = "FOR UPDATE"
	}

	return b, nil
}

func (b *Back) openSQLite(dsn string) error {
	params := map[string]string{
		"_journal_mode": "WAL",
		"_busy_timeout": "5000",
		"_foreign_keys": "1",
	}

	readDSN, err := sqliteDSN(dsn, params)
	if err != nil {
		return err
	}
	params["_txlock"] = "immediate"
	writeDSN, err := sqliteDSN(dsn, params)
	if err != nil {
		return err
	}

	db, err := sqlx.Connect("sqlite3", readDSN)
	if err != nil {
		return err
	}

	writeDB, err := sqlx.Connect("sqlite3", writeDSN)
	if err != nil {
		db.Close()
		return err
	}
	// SQLite has a single writer anyway, waiting on the pool is cheaper than
	// waiting on the busy handler.
	writeDB.SetMaxOpenConns(1)

	b.db, b.writeDB = db, writeDB
	b.readOptions = util.ReadOnly

	return nil
}

// sqliteDSN adds the given connection parameters to dsn, parameters already
// present in dsn keep their value.
func sqliteDSN(dsn string, params map[string]string) (string, error) {
	path, rawQuery, _ := strings.Cut(dsn, "?")
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return "", fmt.Errorf("invalid SQLite DSN parameters: %w", err)
	}

	for k, v := range params {
		if !q.Has(k) {
			q.Set(k, v)
		}
	}

	return path + "?" + q.Encode(), nil
}

func (b *Back) Close() error {
	if b.db == b.writeDB {
		return b.db.Close()
	}

	return errors.Join(b.db.Close(), b.writeDB.Close())
}

// Config returns the configuration the engine was created with.
func (b *Back) Config() config.Config {
	return b.config
}

// SetRandomIndex replaces the random source used to pick pairs.
func (b *Back) SetRandomIndex(fn func(n int) int) {
	b.randomIndex = fn
}

func (b *Back) transaction(ctx context.Context, cb util.TransactionCallback) error {
	return util.Transaction(ctx, b.writeDB, nil, cb)
}

// retryTransaction runs cb in a write transaction, from scratch again each
// time the database could not serialize it, up to MaxCommitRetries times.
// what names the operation in logs.
func (b *Back) retryTransaction(ctx context.Context, what string, cb util.TransactionCallback) error {
	for attempt := 0; ; attempt++ {
		err := b.transaction(ctx, cb)
		if err == nil || !util.IsSerializationFailure(err) {
			return err
		}

		if attempt >= b.config.MaxCommitRetries {
			log.Printf("warning: %s dropped after %d retries: %s", what, attempt, err)
			return ErrConcurrencyConflict
		}

		log.Printf("debug: retrying %s (%d): %s", what, attempt+1, err)
		commitRetriesTotal.Inc()

		select {
		case <-time.After(retryBackoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func retryBackoff(attempt int) time.Duration {
	if attempt > 6 {
		attempt = 6
	}

	return (5 * time.Millisecond) << attempt
}

// readTransaction gives cb a consistent snapshot across all its queries.
func (b *Back) readTransaction(ctx context.Context, cb util.TransactionCallback) error {
	return util.Transaction(ctx, b.db, b.readOptions, cb)
}

// Ping checks the database can still be reached.
func (b *Back) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}
