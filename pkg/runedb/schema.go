package runedb

import (
	"github.com/orneryd/runedb/pkg/storage"
)

// IndexInfo describes one declared index.
type IndexInfo struct {
	Name       string
	Kind       storage.IndexKind
	Label      string
	Properties []string
}

// ConstraintInfo describes one declared constraint.
type ConstraintInfo struct {
	Name     string
	Kind     storage.ConstraintKind
	Label    string
	Property string
}

// CreateIndex declares an index and backfills it over the committed
// graph before it becomes active. Index kinds: RANGE, COMPOSITE,
// FULLTEXT, POINT, VECTOR (VECTOR requires opts.Dimensions).
func (db *DB) CreateIndex(name string, kind storage.IndexKind, label string, props []string, opts storage.IndexOptions) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	existing, err := db.store.AllNodes(storage.SeqHead)
	if err != nil {
		return err
	}
	return db.catalog.CreateIndex(name, kind, label, props, opts, existing)
}

// DropIndex removes a declared index.
func (db *DB) DropIndex(name string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.catalog.DropIndex(name)
}

// CreateConstraint declares a constraint and validates it against the
// committed graph first: a backfill violation (say, pre-existing
// duplicates under UNIQUE) rejects the declaration and nothing is
// enforced.
func (db *DB) CreateConstraint(con *storage.Constraint) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	existing, err := db.store.AllNodes(storage.SeqHead)
	if err != nil {
		return err
	}
	return db.catalog.CreateConstraint(con, existing)
}

// DropConstraint removes a declared constraint.
func (db *DB) DropConstraint(name string) error {
	if err := db.checkOpen(); err != nil {
		return err
	}
	return db.catalog.DropConstraint(name)
}

// ShowIndexes lists declared indexes.
func (db *DB) ShowIndexes() ([]IndexInfo, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	var out []IndexInfo
	for _, idx := range db.catalog.Indexes() {
		out = append(out, IndexInfo{
			Name:       idx.Name(),
			Kind:       idx.Kind(),
			Label:      idx.Label(),
			Properties: idx.Properties(),
		})
	}
	return out, nil
}

// ShowConstraints lists declared constraints.
func (db *DB) ShowConstraints() ([]ConstraintInfo, error) {
	if err := db.checkOpen(); err != nil {
		return nil, err
	}
	var out []ConstraintInfo
	for _, con := range db.catalog.Constraints() {
		out = append(out, ConstraintInfo{
			Name:     con.Name,
			Kind:     con.Kind,
			Label:    con.Label,
			Property: con.Property,
		})
	}
	return out, nil
}
