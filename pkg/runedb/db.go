// Package runedb provides the main API for embedded RuneDB usage.
//
// A DB bundles the content-addressed store, the schema catalog, the
// write-ahead log and the transaction manager behind one handle. Queries
// are Cypher text; each auto-transaction commits on success and rolls
// back on any error, so a failed query never leaves partial writes.
//
// Example Usage:
//
//	db, err := runedb.Open("./data", nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer db.Close()
//
//	_, err = db.ExecuteQuery(ctx, "CREATE (p:Person {name: 'Odin'})", nil)
//	result, err := db.ExecuteQuery(ctx,
//		"MATCH (p:Person) WHERE p.name = $name RETURN p.name, p.age",
//		map[string]any{"name": "Odin"})
//
// Storage Modes:
//
// With a data directory the block store is BadgerDB and every commit is
// WAL-logged before it applies; reopening the same directory replays
// committed segments. With an empty directory (or InMemory config) the
// database lives in process memory and nothing persists.
//
// Thread Safety:
//
// All methods are safe for concurrent use. Isolation between concurrent
// transactions follows the configured level (read_committed by default).
package runedb

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/orneryd/runedb/pkg/config"
	"github.com/orneryd/runedb/pkg/cypher"
	"github.com/orneryd/runedb/pkg/storage"
)

// ErrClosed is returned by operations on a closed DB.
var ErrClosed = errors.New("runedb: database is closed")

// DB is an open RuneDB database.
type DB struct {
	cfg     *config.Config
	store   *storage.Store
	catalog *storage.Catalog
	wal     *storage.WAL
	manager *storage.TxManager

	mu     sync.RWMutex
	closed bool

	queriesExecuted atomic.Uint64
	txBegun         atomic.Uint64
	txCommitted     atomic.Uint64
}

// Open opens or creates a database.
//
// dir overrides cfg.Database.DataDir when non-empty; an empty dir with
// no configured data directory opens an in-memory database. A nil cfg
// uses config.Default().
//
// Opening a persistent database replays the write-ahead log: committed
// segments beyond the stored state are re-applied, an uncommitted tail
// is discarded, and a corrupted committed record fails the open with
// storage.ErrRecoveryFailed.
func Open(dir string, cfg *config.Config) (*DB, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if dir != "" {
		cfg.Database.DataDir = dir
	}
	inMemory := cfg.Database.InMemory || cfg.Database.DataDir == ""

	var (
		blocks storage.BlockStore
		wal    *storage.WAL
		err    error
	)
	if inMemory {
		blocks = storage.NewMemoryBlockStore()
	} else {
		dataDir := cfg.Database.DataDir
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("runedb: create data dir: %w", err)
		}
		blocks, err = storage.OpenBadgerBlockStore(filepath.Join(dataDir, "blocks"))
		if err != nil {
			return nil, fmt.Errorf("runedb: open block store: %w", err)
		}
	}

	store := storage.NewStore(blocks)

	if !inMemory {
		walDir := filepath.Join(cfg.Database.DataDir, "wal")
		segments, err := storage.ReadCommittedSegments(walDir)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		if err := storage.Replay(store, segments); err != nil {
			_ = store.Close()
			return nil, err
		}
		wal, err = storage.NewWAL(walDir, &storage.WALConfig{
			SyncMode:          cfg.Database.WALSyncMode,
			BatchSyncInterval: cfg.Database.WALSyncInterval,
		})
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("runedb: open wal: %w", err)
		}
	}

	catalog := storage.NewCatalog()
	return &DB{
		cfg:     cfg,
		store:   store,
		catalog: catalog,
		wal:     wal,
		manager: storage.NewTxManager(store, catalog, wal),
	}, nil
}

// Close releases the write-ahead log and the block store. Active
// transactions fail on their next operation.
func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	var errs []error
	if db.wal != nil {
		if err := db.wal.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := db.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (db *DB) checkOpen() error {
	db.mu.RLock()
	defer db.mu.RUnlock()
	if db.closed {
		return ErrClosed
	}
	return db.manager.Fatal()
}

// Result is a fully materialized query result.
type Result struct {
	Columns []string
	Rows    [][]any
}

// ExecuteQuery runs one Cypher query in its own transaction at the
// configured default isolation level. Write queries commit on success;
// any error (including a runtime type error halfway through) rolls the
// transaction back, so no partial writes survive.
func (db *DB) ExecuteQuery(ctx context.Context, query string, params map[string]any) (*Result, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if db.cfg.Query.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, db.cfg.Query.Timeout)
		defer cancel()
	}

	tx, err := db.manager.Begin(ctx, storage.IsolationLevel(db.cfg.Database.DefaultIsolation))
	if err != nil {
		return nil, err
	}
	db.txBegun.Add(1)

	result, readOnly, err := db.runInTx(ctx, tx, query, params)
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if readOnly {
		_ = tx.Rollback()
	} else {
		if err := tx.Commit(); err != nil {
			return nil, err
		}
		db.txCommitted.Add(1)
	}
	db.queriesExecuted.Add(1)
	return result, nil
}

func (db *DB) runInTx(ctx context.Context, tx *storage.Tx, query string, params map[string]any) (*Result, bool, error) {
	q, err := cypher.Parse(query)
	if err != nil {
		return nil, false, err
	}
	plan, err := cypher.Compile(q)
	if err != nil {
		return nil, false, err
	}
	stream, err := cypher.Execute(ctx, plan, tx, params)
	if err != nil {
		return nil, false, err
	}

	maxRows := db.cfg.Query.MaxRows
	result := &Result{Columns: plan.Columns}
	for {
		row, ok, err := stream.Next()
		if err != nil {
			return nil, false, err
		}
		if !ok {
			break
		}
		// Plans without a RETURN produce no visible rows.
		if len(plan.Columns) == 0 {
			continue
		}
		values := make([]any, len(row))
		for i, v := range row {
			values[i] = v.ToAny()
		}
		result.Rows = append(result.Rows, values)
		if maxRows > 0 && len(result.Rows) >= maxRows {
			break
		}
	}
	return result, plan.ReadOnly, nil
}

// =============================================================================
// EXPLICIT TRANSACTIONS
// =============================================================================

// Tx is an explicit transaction. Queries run through it join its
// snapshot and its buffered writes; nothing is visible to other
// transactions until Commit.
type Tx struct {
	db     *DB
	inner  *storage.Tx
	cancel context.CancelFunc
}

// BeginTx starts an explicit transaction. An empty isolation string uses
// the configured default. The configured transaction timeout applies:
// an expired transaction rolls back cleanly on its next operation.
func (db *DB) BeginTx(ctx context.Context, isolation string) (*Tx, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	if isolation == "" {
		isolation = db.cfg.Database.DefaultIsolation
	}
	cancel := context.CancelFunc(func() {})
	if db.cfg.Database.TransactionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, db.cfg.Database.TransactionTimeout)
	}
	inner, err := db.manager.Begin(ctx, storage.IsolationLevel(isolation))
	if err != nil {
		cancel()
		return nil, err
	}
	db.txBegun.Add(1)
	return &Tx{db: db, inner: inner, cancel: cancel}, nil
}

// Run executes one query inside this transaction. Errors do not roll
// the transaction back automatically; the caller decides.
func (tx *Tx) Run(ctx context.Context, query string, params map[string]any) (*Result, error) {
	result, _, err := tx.db.runInTx(ctx, tx.inner, query, params)
	if err != nil {
		return nil, err
	}
	tx.db.queriesExecuted.Add(1)
	return result, nil
}

// Commit makes the transaction's writes durable and visible.
func (tx *Tx) Commit() error {
	defer tx.cancel()
	if err := tx.inner.Commit(); err != nil {
		return err
	}
	tx.db.txCommitted.Add(1)
	return nil
}

// Rollback discards the transaction's writes.
func (tx *Tx) Rollback() error {
	defer tx.cancel()
	return tx.inner.Rollback()
}

// ID returns the transaction's unique identifier.
func (tx *Tx) ID() string { return tx.inner.ID() }

// Isolation returns the transaction's isolation level.
func (tx *Tx) Isolation() string { return string(tx.inner.Isolation()) }

// =============================================================================
// STATS
// =============================================================================

// Stats is a point-in-time snapshot of database counters.
type Stats struct {
	Nodes           int64
	Edges           int64
	Labels          int
	QueriesExecuted uint64
	TxBegun         uint64
	TxCommitted     uint64
}

// Stats returns current counters. Counts reflect the latest committed
// state.
func (db *DB) Stats() (*Stats, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	nodes, err := db.store.NodeCount(storage.SeqHead)
	if err != nil {
		return nil, err
	}
	edges, err := db.store.EdgeCount(storage.SeqHead)
	if err != nil {
		return nil, err
	}
	labels, err := db.store.Labels(storage.SeqHead)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Nodes:           nodes,
		Edges:           edges,
		Labels:          len(labels),
		QueriesExecuted: db.queriesExecuted.Load(),
		TxBegun:         db.txBegun.Load(),
		TxCommitted:     db.txCommitted.Load(),
	}, nil
}
