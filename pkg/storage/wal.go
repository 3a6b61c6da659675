// Write-ahead logging.
//
// Every commit appends one segment to the log: a begin marker, the
// transaction's operations, and a commit marker carrying the assigned
// commit sequence. The segment is flushed (and fsynced, per sync mode)
// before the store applies it, so a crash can lose at most unacknowledged
// transactions, never acknowledged ones.
//
// Recovery reads the log front to back. Segments with a commit marker are
// replayed in commit order; a trailing segment without its marker is a
// torn write and is discarded; a checksum failure inside a committed
// segment is corruption and fails the open. The database refuses to
// serve rather than risk inconsistent reads.
package storage

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// Common WAL errors
var (
	ErrWALClosed    = errors.New("wal: closed")
	ErrWALCorrupted = errors.New("wal: corrupted entry")
)

// walRecordType marks the role of a record inside a segment.
type walRecordType string

const (
	walTxBegin  walRecordType = "tx_begin"
	walTxOp     walRecordType = "tx_op"
	walTxCommit walRecordType = "tx_commit"
)

// walRecord is one JSON line in the log.
type walRecord struct {
	Seq       uint64        `json:"seq"` // record sequence, monotonic
	Type      walRecordType `json:"type"`
	TxID      string        `json:"txId"`
	CommitSeq uint64        `json:"commitSeq,omitempty"` // set on commit markers
	Timestamp time.Time     `json:"ts"`
	Data      []byte        `json:"data,omitempty"` // JSON-encoded Op for tx_op
	Checksum  uint32        `json:"crc"`            // CRC-32 of Data
}

// WALConfig configures durability behavior.
type WALConfig struct {
	Dir string

	// SyncMode controls when commits reach the disk:
	//   "immediate": fsync every commit (safest)
	//   "batch":     flush every commit, fsync on an interval
	//   "none":      rely on the OS (fastest, test-only)
	SyncMode string

	// BatchSyncInterval for "batch" mode.
	BatchSyncInterval time.Duration
}

// DefaultWALConfig returns sensible defaults.
func DefaultWALConfig() *WALConfig {
	return &WALConfig{
		SyncMode:          "immediate",
		BatchSyncInterval: 100 * time.Millisecond,
	}
}

// WAL is the append side of the log. Thread-safe.
type WAL struct {
	mu      sync.Mutex
	config  *WALConfig
	file    *os.File
	writer  *bufio.Writer
	encoder *json.Encoder

	sequence atomic.Uint64
	closed   atomic.Bool

	syncTicker *time.Ticker
	stopSync   chan struct{}
}

const walFileName = "wal.log"

// NewWAL opens (or creates) the log under dir.
func NewWAL(dir string, cfg *WALConfig) (*WAL, error) {
	if cfg == nil {
		cfg = DefaultWALConfig()
	}
	if dir != "" {
		cfg.Dir = dir
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("wal: create directory: %w", err)
	}

	path := filepath.Join(cfg.Dir, walFileName)
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open file: %w", err)
	}

	w := &WAL{
		config:   cfg,
		file:     file,
		writer:   bufio.NewWriterSize(file, 64*1024),
		stopSync: make(chan struct{}),
	}
	w.encoder = json.NewEncoder(w.writer)

	if seq, err := lastSequence(path); err == nil {
		w.sequence.Store(seq)
	}

	if cfg.SyncMode == "batch" && cfg.BatchSyncInterval > 0 {
		w.syncTicker = time.NewTicker(cfg.BatchSyncInterval)
		go w.batchSyncLoop()
	}

	return w, nil
}

func lastSequence(path string) (uint64, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer file.Close()

	var last uint64
	dec := json.NewDecoder(file)
	for {
		var rec walRecord
		if err := dec.Decode(&rec); err != nil {
			break
		}
		last = rec.Seq
	}
	return last, nil
}

func (w *WAL) batchSyncLoop() {
	for {
		select {
		case <-w.syncTicker.C:
			w.Sync()
		case <-w.stopSync:
			return
		}
	}
}

// AppendCommit durably logs one transaction's segment: begin, every op,
// then the commit marker with the assigned commit sequence. Returns only
// after the segment reached the disk according to the sync mode.
func (w *WAL) AppendCommit(txID string, commitSeq uint64, ops []Op) error {
	if w.closed.Load() {
		return ErrWALClosed
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writeLocked(walRecord{
		Seq:       w.sequence.Add(1),
		Type:      walTxBegin,
		TxID:      txID,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	for i := range ops {
		data, err := json.Marshal(&ops[i])
		if err != nil {
			return fmt.Errorf("wal: marshal op: %w", err)
		}
		if err := w.writeLocked(walRecord{
			Seq:       w.sequence.Add(1),
			Type:      walTxOp,
			TxID:      txID,
			Timestamp: time.Now(),
			Data:      data,
			Checksum:  crc32.ChecksumIEEE(data),
		}); err != nil {
			return err
		}
	}

	if err := w.writeLocked(walRecord{
		Seq:       w.sequence.Add(1),
		Type:      walTxCommit,
		TxID:      txID,
		CommitSeq: commitSeq,
		Timestamp: time.Now(),
	}); err != nil {
		return err
	}

	// The commit marker must be on disk before the store applies the
	// batch; anything less and an acknowledged commit could vanish.
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if w.config.SyncMode == "immediate" {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

func (w *WAL) writeLocked(rec walRecord) error {
	if err := w.encoder.Encode(&rec); err != nil {
		return fmt.Errorf("wal: write record: %w", err)
	}
	return nil
}

// Sync flushes buffered records and fsyncs the file.
func (w *WAL) Sync() error {
	if w.closed.Load() {
		return ErrWALClosed
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if w.config.SyncMode != "none" {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("wal: sync: %w", err)
		}
	}
	return nil
}

// Sequence returns the last written record sequence.
func (w *WAL) Sequence() uint64 {
	return w.sequence.Load()
}

// Close flushes and closes the log.
func (w *WAL) Close() error {
	if w.closed.Swap(true) {
		return nil
	}
	if w.syncTicker != nil {
		w.syncTicker.Stop()
		close(w.stopSync)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	_ = w.writer.Flush()
	_ = w.file.Sync()
	return w.file.Close()
}

// =============================================================================
// RECOVERY
// =============================================================================

// CommittedSegment is one fully committed transaction read back from the
// log, ready to replay.
type CommittedSegment struct {
	TxID      string
	CommitSeq uint64
	Ops       []Op
}

// ReadCommittedSegments reads the log under dir and returns every
// committed segment in commit order. A markerless tail is silently
// discarded (torn write at crash time); corruption inside a committed
// segment returns ErrRecoveryFailed.
func ReadCommittedSegments(dir string) ([]CommittedSegment, error) {
	path := filepath.Join(dir, walFileName)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("wal: open for recovery: %w", err)
	}
	defer file.Close()

	// Decode records until EOF or the first malformed line. Everything
	// after a malformed line is unreachable torn tail.
	var records []walRecord
	dec := json.NewDecoder(file)
	for {
		var rec walRecord
		if err := dec.Decode(&rec); err != nil {
			if err == io.EOF {
				break
			}
			break // torn tail
		}
		records = append(records, rec)
	}

	open := make(map[string][]Op)    // txID -> ops seen so far
	began := make(map[string]bool)   // txID has a begin marker
	var committed []CommittedSegment

	for _, rec := range records {
		switch rec.Type {
		case walTxBegin:
			began[rec.TxID] = true
			open[rec.TxID] = nil

		case walTxOp:
			if !began[rec.TxID] {
				return nil, fmt.Errorf("%w: op for unknown transaction %s", ErrRecoveryFailed, rec.TxID)
			}
			if crc32.ChecksumIEEE(rec.Data) != rec.Checksum {
				return nil, fmt.Errorf("%w: %v (tx %s, seq %d)", ErrRecoveryFailed, ErrWALCorrupted, rec.TxID, rec.Seq)
			}
			var op Op
			if err := json.Unmarshal(rec.Data, &op); err != nil {
				return nil, fmt.Errorf("%w: decode op: %v", ErrRecoveryFailed, err)
			}
			open[rec.TxID] = append(open[rec.TxID], op)

		case walTxCommit:
			if !began[rec.TxID] {
				return nil, fmt.Errorf("%w: commit for unknown transaction %s", ErrRecoveryFailed, rec.TxID)
			}
			committed = append(committed, CommittedSegment{
				TxID:      rec.TxID,
				CommitSeq: rec.CommitSeq,
				Ops:       open[rec.TxID],
			})
			delete(open, rec.TxID)
			delete(began, rec.TxID)
		}
	}

	// Anything left in open lacks its commit marker: discarded.
	return committed, nil
}

// Replay applies committed segments to a fresh store in commit order.
func Replay(store *Store, segments []CommittedSegment) error {
	for _, seg := range segments {
		if err := store.ApplyCommit(seg.CommitSeq, seg.Ops); err != nil {
			return fmt.Errorf("%w: replay tx %s: %v", ErrRecoveryFailed, seg.TxID, err)
		}
	}
	return nil
}
