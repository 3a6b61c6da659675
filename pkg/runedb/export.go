package runedb

import (
	"context"
	"encoding/json"
	"io"

	"github.com/orneryd/runedb/pkg/storage"
)

// Export is the JSON graph exchange format: the full committed node and
// relationship sets, in stable ID order.
type Export struct {
	Nodes []*storage.Node `json:"nodes"`
	Edges []*storage.Edge `json:"edges"`
}

// ToExport snapshots the committed graph.
func (db *DB) ToExport(ctx context.Context) (*Export, error) {
	ex := &Export{}
	if err := db.StreamNodes(ctx, func(n *storage.Node) error {
		ex.Nodes = append(ex.Nodes, n)
		return nil
	}); err != nil {
		return nil, err
	}
	if err := db.StreamEdges(ctx, func(e *storage.Edge) error {
		ex.Edges = append(ex.Edges, e)
		return nil
	}); err != nil {
		return nil, err
	}
	return ex, nil
}

// LoadExport bulk-creates an exported graph in one transaction. Nodes
// load before relationships so endpoints resolve; any failure (a
// duplicate ID, a constraint violation) rolls the whole load back.
func (db *DB) LoadExport(ctx context.Context, ex *Export) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	tx, err := db.manager.Begin(ctx, storage.IsolationLevel(db.cfg.Database.DefaultIsolation))
	if err != nil {
		return err
	}
	db.txBegun.Add(1)
	for _, n := range ex.Nodes {
		if err := tx.CreateNode(n); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	for _, e := range ex.Edges {
		if err := tx.CreateEdge(e); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	db.txCommitted.Add(1)
	return nil
}

// WriteExport streams the committed graph as JSON.
func (db *DB) WriteExport(ctx context.Context, w io.Writer) error {
	ex, err := db.ToExport(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(ex)
}

// ReadExport loads a JSON export stream into the database.
func (db *DB) ReadExport(ctx context.Context, r io.Reader) error {
	var ex Export
	if err := json.NewDecoder(r).Decode(&ex); err != nil {
		return err
	}
	return db.LoadExport(ctx, &ex)
}
