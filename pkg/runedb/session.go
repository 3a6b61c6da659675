package runedb

import (
	"context"

	"github.com/orneryd/runedb/pkg/storage"
)

// Session is a lightweight query surface over a DB, shaped like a
// driver session: each Run returns a stream of named-column records.
// Sessions hold no state of their own; transactions are per-Run unless
// the session was opened inside an explicit transaction.
type Session struct {
	db *DB
	tx *Tx // nil for auto-commit sessions
}

// Session opens an auto-commit session: every Run executes in its own
// transaction.
func (db *DB) Session() *Session {
	return &Session{db: db}
}

// Session opens a session bound to this transaction: every Run joins
// the transaction's snapshot and write buffer.
func (tx *Tx) Session() *Session {
	return &Session{db: tx.db, tx: tx}
}

// Record is one result row with its column names.
type Record struct {
	Keys   []string
	Values []any
}

// Get returns the value of a named column.
func (r *Record) Get(key string) (any, bool) {
	for i, k := range r.Keys {
		if k == key {
			return r.Values[i], true
		}
	}
	return nil, false
}

// RecordStream iterates the records of one Run. NULLs come through as
// nil and nested lists/maps keep their structure.
type RecordStream struct {
	keys    []string
	records []*Record
	pos     int
}

// Keys returns the column names.
func (s *RecordStream) Keys() []string { return s.keys }

// Next returns the next record, or nil when the stream is exhausted.
func (s *RecordStream) Next() *Record {
	if s.pos >= len(s.records) {
		return nil
	}
	r := s.records[s.pos]
	s.pos++
	return r
}

// Collect drains the stream.
func (s *RecordStream) Collect() []*Record {
	out := s.records[s.pos:]
	s.pos = len(s.records)
	return out
}

// Run executes one query and returns its records.
func (s *Session) Run(ctx context.Context, query string, params map[string]any) (*RecordStream, error) {
	var (
		result *Result
		err    error
	)
	if s.tx != nil {
		result, err = s.tx.Run(ctx, query, params)
	} else {
		result, err = s.db.ExecuteQuery(ctx, query, params)
	}
	if err != nil {
		return nil, err
	}
	stream := &RecordStream{keys: result.Columns}
	for _, row := range result.Rows {
		stream.records = append(stream.records, &Record{Keys: result.Columns, Values: row})
	}
	return stream, nil
}

// =============================================================================
// STREAMING READS
// =============================================================================

// StreamNodes calls fn for every node in the latest committed state, in
// stable ID order. Returning an error from fn stops the stream and
// propagates the error.
func (db *DB) StreamNodes(ctx context.Context, fn func(*storage.Node) error) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	nodes, err := db.store.AllNodes(storage.SeqHead)
	if err != nil {
		return err
	}
	for _, n := range nodes {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

// StreamEdges calls fn for every relationship in the latest committed
// state, in stable ID order.
func (db *DB) StreamEdges(ctx context.Context, fn func(*storage.Edge) error) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	edges, err := db.store.AllEdges(storage.SeqHead)
	if err != nil {
		return err
	}
	for _, e := range edges {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// Labels returns all labels in use, sorted.
func (db *DB) Labels() ([]string, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.store.Labels(storage.SeqHead)
}

// RelationshipTypes returns all relationship types in use, sorted.
func (db *DB) RelationshipTypes() ([]string, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	return db.store.RelationshipTypes(storage.SeqHead)
}
