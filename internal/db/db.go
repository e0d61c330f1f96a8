package db

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	_ "modernc.org/sqlite"

	"recall/claims/internal/ngram"
)

// Options configures a DB
type Options struct {
	Logger       *zap.Logger
	NGramWidth   int
	Params       ngram.Params
	AvgDLTTL     time.Duration // how long a computed average document length is reused
	RebuildBatch int           // documents per transaction during RebuildIndex
	Clock        func() time.Time
}

// DefaultOptions returns options matching the config defaults
func DefaultOptions() Options {
	return Options{
		Logger:       zap.NewNop(),
		NGramWidth:   3,
		Params:       ngram.DefaultParams,
		AvgDLTTL:     5 * time.Minute,
		RebuildBatch: 500,
		Clock:        time.Now,
	}
}

// DB wraps a SQLite database connection together with the identity map and
// derived-data caches that belong to it. Everything is torn down by Close.
type DB struct {
	conn *sql.DB
	Path string

	cache  *Cache
	memo   *gocache.Cache
	flight singleflight.Group
	log    *zap.Logger
	opts   Options

	loads atomic.Int64 // row fetches made to populate cache entries
}

// querier is satisfied by both *sql.DB and *sql.Tx
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// OpenDB opens a SQLite database with WAL mode and foreign keys enabled and
// makes sure the schema exists.
//
// The pool is limited to one connection, so the store serializes writers
// and ":memory:" databases behave as a single database.
func OpenDB(path string, opts Options) (*DB, error) {
	opts = withDefaults(opts)

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Enable WAL mode for concurrent reads
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	d := &DB{
		conn:  conn,
		Path:  path,
		cache: NewCache(),
		// no janitor goroutine: entries are checked for expiry on read
		memo: gocache.New(gocache.NoExpiration, 0),
		log:  opts.Logger,
		opts: opts,
	}

	if err := d.EnsureSchema(context.Background()); err != nil {
		conn.Close()
		return nil, err
	}
	return d, nil
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.Logger == nil {
		opts.Logger = def.Logger
	}
	if opts.NGramWidth < 1 {
		opts.NGramWidth = def.NGramWidth
	}
	if opts.Params == (ngram.Params{}) {
		opts.Params = def.Params
	}
	if opts.AvgDLTTL <= 0 {
		opts.AvgDLTTL = def.AvgDLTTL
	}
	if opts.RebuildBatch < 1 {
		opts.RebuildBatch = def.RebuildBatch
	}
	if opts.Clock == nil {
		opts.Clock = def.Clock
	}
	return opts
}

// Close drops the identity map and closes the database connection
func (d *DB) Close() error {
	d.cache.Reset()
	d.memo.Flush()
	return d.conn.Close()
}

// Conn returns the underlying sql.DB for custom queries
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Cache returns the identity map owned by this DB
func (d *DB) Cache() *Cache {
	return d.cache
}

func (d *DB) nowMillis() int64 {
	return d.opts.Clock().UnixMilli()
}

// withTx runs fn inside a transaction. fn must use only the tx: the pool
// holds a single connection.
func (d *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}
