// Content-addressed block encoding for committed entity states.
//
// Every committed node/edge version is encoded to a canonical JSON record
// and stored as an immutable block whose address is the BLAKE2b-256 hash
// of its bytes. Blocks are never overwritten or deleted; the Store's
// version chains reference them by address, which gives free history and
// makes torn writes detectable (address mismatch = corruption).
package storage

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"golang.org/x/crypto/blake2b"
)

// BlockAddr is the BLAKE2b-256 content hash of a block, hex-encoded.
type BlockAddr string

// BlockStore holds immutable content-addressed blocks.
//
// Put is idempotent: storing the same bytes twice yields the same address
// and no second copy. Get verifies the content hash on read and returns
// ErrCorrupted on mismatch.
type BlockStore interface {
	Put(data []byte) (BlockAddr, error)
	Get(addr BlockAddr) ([]byte, error)
	Has(addr BlockAddr) (bool, error)
	Close() error
}

// AddrOf computes the content address for a block without storing it.
func AddrOf(data []byte) BlockAddr {
	sum := blake2b.Sum256(data)
	return BlockAddr(hex.EncodeToString(sum[:]))
}

// =============================================================================
// BLOCK RECORDS
// =============================================================================

const (
	blockKindNode = "node"
	blockKindEdge = "edge"
)

// blockRecord is the canonical on-disk form of one entity version.
// encoding/json sorts map keys, so identical states always produce
// identical bytes and therefore identical addresses.
type blockRecord struct {
	Kind       string         `json:"kind"`
	ID         string         `json:"id"`
	Labels     []string       `json:"labels,omitempty"`
	Type       string         `json:"type,omitempty"`
	StartNode  string         `json:"startNode,omitempty"`
	EndNode    string         `json:"endNode,omitempty"`
	Properties map[string]any `json:"properties"`
	CreatedAt  int64          `json:"createdAt"`
	UpdatedAt  int64          `json:"updatedAt"`
}

// EncodeNode renders a node to its canonical block bytes.
func EncodeNode(n *Node) ([]byte, error) {
	if n == nil || n.ID == "" {
		return nil, ErrInvalidData
	}
	rec := blockRecord{
		Kind:       blockKindNode,
		ID:         string(n.ID),
		Labels:     n.Labels,
		Properties: encodeProps(n.Properties),
		CreatedAt:  n.CreatedAt.UnixNano(),
		UpdatedAt:  n.UpdatedAt.UnixNano(),
	}
	return json.Marshal(&rec)
}

// EncodeEdge renders an edge to its canonical block bytes.
func EncodeEdge(e *Edge) ([]byte, error) {
	if e == nil || e.ID == "" {
		return nil, ErrInvalidData
	}
	rec := blockRecord{
		Kind:       blockKindEdge,
		ID:         string(e.ID),
		Type:       e.Type,
		StartNode:  string(e.StartNode),
		EndNode:    string(e.EndNode),
		Properties: encodeProps(e.Properties),
		CreatedAt:  e.CreatedAt.UnixNano(),
		UpdatedAt:  e.UpdatedAt.UnixNano(),
	}
	return json.Marshal(&rec)
}

// DecodeNode parses canonical block bytes back into a node.
func DecodeNode(data []byte) (*Node, error) {
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.Kind != blockKindNode {
		return nil, fmt.Errorf("%w: expected node block, got %q", ErrCorrupted, rec.Kind)
	}
	return &Node{
		ID:         NodeID(rec.ID),
		Labels:     rec.Labels,
		Properties: decodeProps(rec.Properties),
		CreatedAt:  time.Unix(0, rec.CreatedAt),
		UpdatedAt:  time.Unix(0, rec.UpdatedAt),
	}, nil
}

// DecodeEdge parses canonical block bytes back into an edge.
func DecodeEdge(data []byte) (*Edge, error) {
	rec, err := decodeRecord(data)
	if err != nil {
		return nil, err
	}
	if rec.Kind != blockKindEdge {
		return nil, fmt.Errorf("%w: expected edge block, got %q", ErrCorrupted, rec.Kind)
	}
	return &Edge{
		ID:         EdgeID(rec.ID),
		StartNode:  NodeID(rec.StartNode),
		EndNode:    NodeID(rec.EndNode),
		Type:       rec.Type,
		Properties: decodeProps(rec.Properties),
		CreatedAt:  time.Unix(0, rec.CreatedAt),
		UpdatedAt:  time.Unix(0, rec.UpdatedAt),
	}, nil
}

func decodeRecord(data []byte) (*blockRecord, error) {
	var rec blockRecord
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupted, err)
	}
	return &rec, nil
}

// encodeProps tags the property value types JSON cannot represent
// natively so decoding restores them exactly. Points become
// {"$point": {...}}, temporals {"$time": "RFC3339Nano"}.
func encodeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = encodePropValue(v)
	}
	return out
}

func encodePropValue(v any) any {
	switch t := v.(type) {
	case Point:
		return map[string]any{"$point": map[string]any{"x": t.X, "y": t.Y}}
	case *Point:
		return map[string]any{"$point": map[string]any{"x": t.X, "y": t.Y}}
	case time.Time:
		return map[string]any{"$time": t.Format(time.RFC3339Nano)}
	case int:
		return int64(t)
	case int32:
		return int64(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = encodePropValue(e)
		}
		return out
	case map[string]any:
		return encodeProps(t)
	default:
		return v
	}
}

func decodeProps(props map[string]any) map[string]any {
	out := make(map[string]any, len(props))
	for k, v := range props {
		out[k] = decodePropValue(v)
	}
	return out
}

func decodePropValue(v any) any {
	switch t := v.(type) {
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		f, _ := t.Float64()
		return f
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = decodePropValue(e)
		}
		return out
	case map[string]any:
		if len(t) == 1 {
			if p, ok := t["$point"]; ok {
				if pm, ok := p.(map[string]any); ok {
					return Point{
						X: numToFloat(pm["x"]),
						Y: numToFloat(pm["y"]),
					}
				}
			}
			if ts, ok := t["$time"]; ok {
				if s, ok := ts.(string); ok {
					if parsed, err := time.Parse(time.RFC3339Nano, s); err == nil {
						return parsed
					}
				}
			}
		}
		return decodeProps(t)
	default:
		return v
	}
}

func numToFloat(v any) float64 {
	switch t := v.(type) {
	case json.Number:
		f, _ := t.Float64()
		return f
	case float64:
		return t
	case int64:
		return float64(t)
	}
	return 0
}

// =============================================================================
// MEMORY BLOCK STORE
// =============================================================================

// MemoryBlockStore keeps blocks in a map. Used for tests and for purely
// in-memory databases.
type MemoryBlockStore struct {
	mu     sync.RWMutex
	blocks map[BlockAddr][]byte
	closed bool
}

// NewMemoryBlockStore creates an empty in-memory block store.
func NewMemoryBlockStore() *MemoryBlockStore {
	return &MemoryBlockStore{blocks: make(map[BlockAddr][]byte)}
}

// Put stores a block, returning its content address.
func (m *MemoryBlockStore) Put(data []byte) (BlockAddr, error) {
	addr := AddrOf(data)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return "", ErrStorageClosed
	}
	if _, exists := m.blocks[addr]; !exists {
		stored := make([]byte, len(data))
		copy(stored, data)
		m.blocks[addr] = stored
	}
	return addr, nil
}

// Get returns the block bytes, verifying the address.
func (m *MemoryBlockStore) Get(addr BlockAddr) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return nil, ErrStorageClosed
	}
	data, ok := m.blocks[addr]
	if !ok {
		return nil, ErrNotFound
	}
	if AddrOf(data) != addr {
		return nil, ErrCorrupted
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Has reports whether the block exists.
func (m *MemoryBlockStore) Has(addr BlockAddr) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrStorageClosed
	}
	_, ok := m.blocks[addr]
	return ok, nil
}

// Len returns the number of stored blocks.
func (m *MemoryBlockStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.blocks)
}

// Close releases the store.
func (m *MemoryBlockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.blocks = nil
	return nil
}

// =============================================================================
// BADGER BLOCK STORE
// =============================================================================

// badger key prefix for blocks. Addresses are already unique; the prefix
// leaves room for other key families in the same badger directory.
var blockKeyPrefix = []byte("blk:")

// BadgerBlockStore persists blocks in a badger LSM tree.
type BadgerBlockStore struct {
	db *badger.DB
}

// OpenBadgerBlockStore opens (or creates) a badger-backed block store at dir.
func OpenBadgerBlockStore(dir string) (*BadgerBlockStore, error) {
	opts := badger.DefaultOptions(dir)
	opts.Logger = nil // badger's default logger is too chatty for a library
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("storage: open badger: %w", err)
	}
	return &BadgerBlockStore{db: db}, nil
}

func blockKey(addr BlockAddr) []byte {
	key := make([]byte, 0, len(blockKeyPrefix)+len(addr))
	key = append(key, blockKeyPrefix...)
	key = append(key, addr...)
	return key
}

// Put stores a block, returning its content address.
func (b *BadgerBlockStore) Put(data []byte) (BlockAddr, error) {
	addr := AddrOf(data)
	err := b.db.Update(func(txn *badger.Txn) error {
		key := blockKey(addr)
		if _, err := txn.Get(key); err == nil {
			return nil // already stored, content-addressed writes are idempotent
		}
		return txn.Set(key, data)
	})
	if err != nil {
		return "", fmt.Errorf("storage: put block: %w", err)
	}
	return addr, nil
}

// Get returns the block bytes, verifying the address.
func (b *BadgerBlockStore) Get(addr BlockAddr) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(blockKey(addr))
		if err != nil {
			if err == badger.ErrKeyNotFound {
				return ErrNotFound
			}
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if err != nil {
		return nil, err
	}
	if AddrOf(data) != addr {
		return nil, ErrCorrupted
	}
	return data, nil
}

// Has reports whether the block exists.
func (b *BadgerBlockStore) Has(addr BlockAddr) (bool, error) {
	found := false
	err := b.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(blockKey(addr))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	return found, err
}

// Close closes the underlying badger database.
func (b *BadgerBlockStore) Close() error {
	return b.db.Close()
}

var (
	_ BlockStore = (*MemoryBlockStore)(nil)
	_ BlockStore = (*BadgerBlockStore)(nil)
)
