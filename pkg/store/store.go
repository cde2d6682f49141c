// Package store is the durable, bounded-capacity rule store: the only
// mutation path that accepts an uncompiled rule document (put attempts
// compilation; a rule that fails to compile or would exceed capacity is
// rejected with no visible side effect). Ported from the original
// automation_store.c's lock-then-mutate-then-persist discipline, adapted
// from NVS-blob storage to write-to-temp-file + atomic rename.
package store

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/nyxgw/gwcore/pkg/automation"
)

const (
	blobMagic   uint32 = 0x4155544f // 'AUTO'
	blobVersion uint16 = 1

	// Per-entry static limits a compiled rule must fit within to be
	// accepted by put; chosen to comfortably cover realistic rule
	// documents while keeping one store blob bounded in size.
	MaxTriggers   = 16
	MaxConditions = 16
	MaxActions    = 16
	MaxStrtab     = 4096
)

// Entry is one stored automation: its compiled form plus the metadata
// callers most often need without re-resolving string-table offsets.
type Entry struct {
	ID       string
	Name     string
	Enabled  bool
	Compiled *automation.Compiled
}

// Store is a bounded, single-lock in-memory collection of compiled
// automations, durably mirrored to a blob file on every mutation.
type Store struct {
	mu       sync.Mutex
	path     string
	capacity int
	entries  []Entry
}

// Open loads path if it exists and is a valid blob, or starts empty if it
// doesn't exist or fails validation — a corrupt/truncated blob never
// blocks startup, it just means an empty store (matching spec's
// crash-safety property: a subsequent successful Put persists and
// reloads).
func Open(path string, capacity int) (*Store, error) {
	s := &Store{path: path, capacity: capacity}
	buf, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return s, nil // unreadable blob: start empty, matching crash-safety
	}
	entries, err := decodeBlob(buf, capacity)
	if err != nil {
		return s, nil // corrupt blob: start empty
	}
	s.entries = entries
	return s, nil
}

// List returns a snapshot (value copy of the slice header; entries share
// their Compiled pointee, which is never mutated in place) of every
// stored automation.
func (s *Store) List() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Get returns the stored entry with the given id.
func (s *Store) Get(id string) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.findLocked(id)
	if idx < 0 {
		return Entry{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return s.entries[idx], nil
}

// Put compiles doc and inserts or replaces the entry with the compiled
// rule's id. It fails without mutating the store if compilation fails,
// the compiled rule exceeds the per-entry static limits, or — for a new
// id — the store is already at capacity.
func (s *Store) Put(doc map[string]any) (Entry, error) {
	c, err := automation.Compile(doc)
	if err != nil {
		return Entry{}, err
	}
	if len(c.Triggers) > MaxTriggers || len(c.Conditions) > MaxConditions ||
		len(c.Actions) > MaxActions || len(c.Strings) > MaxStrtab {
		return Entry{}, fmt.Errorf("%w: compiled rule exceeds per-entry limits", automation.ErrCapacityExceeded)
	}

	entry := Entry{
		ID:       c.String(c.Automation.IDOff),
		Name:     c.String(c.Automation.NameOff),
		Enabled:  c.Automation.Enabled != 0,
		Compiled: c,
	}

	s.mu.Lock()
	idx := s.findLocked(entry.ID)
	var snapshot []Entry
	if idx >= 0 {
		s.entries[idx] = entry
		snapshot = append(snapshot, s.entries...)
	} else {
		if len(s.entries) >= s.capacity {
			s.mu.Unlock()
			return Entry{}, fmt.Errorf("%w: store at capacity (%d)", ErrCapacityExceeded, s.capacity)
		}
		s.entries = append(s.entries, entry)
		snapshot = append(snapshot, s.entries...)
	}
	s.mu.Unlock()

	if err := persist(s.path, snapshot); err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return entry, nil
}

// Remove deletes the entry with the given id.
func (s *Store) Remove(id string) error {
	s.mu.Lock()
	idx := s.findLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.entries = append(s.entries[:idx], s.entries[idx+1:]...)
	snapshot := append([]Entry(nil), s.entries...)
	s.mu.Unlock()

	if err := persist(s.path, snapshot); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

// SetEnabled flips the enabled flag on the stored entry with the given id.
func (s *Store) SetEnabled(id string, enabled bool) error {
	s.mu.Lock()
	idx := s.findLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	s.entries[idx].Enabled = enabled
	compiled := *s.entries[idx].Compiled
	compiled.Automation.Enabled = boolToU8(enabled)
	s.entries[idx].Compiled = &compiled
	snapshot := append([]Entry(nil), s.entries...)
	s.mu.Unlock()

	if err := persist(s.path, snapshot); err != nil {
		return fmt.Errorf("%w: %v", ErrStorageError, err)
	}
	return nil
}

func (s *Store) findLocked(id string) int {
	for i, e := range s.entries {
		if e.ID == id {
			return i
		}
	}
	return -1
}

func boolToU8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}

// persist writes the given snapshot to a temp file in the same directory
// as path, then renames it over path — atomic on POSIX filesystems, so a
// crash mid-write never leaves a half-written blob in place. Called
// outside the in-memory lock: durable I/O is not serialized by it.
func persist(path string, entries []Entry) error {
	if path == "" {
		return nil // in-memory-only store (used in tests)
	}
	buf, err := encodeBlob(entries)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".store-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(buf); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return os.Rename(tmpPath, path)
}

// encodeBlob lays out {magic, version, count, [len-prefixed compiled
// blob]*count}. Each entry's length-prefixed Serialize() output stands in
// for the original's fixed-size array slot: the invariant it preserves is
// "one bounded entry per slot, whole-blob corruption detectable up
// front," not byte-identical layout.
func encodeBlob(entries []Entry) ([]byte, error) {
	var out []byte
	header := make([]byte, 8)
	binary.LittleEndian.PutUint32(header[0:4], blobMagic)
	binary.LittleEndian.PutUint16(header[4:6], blobVersion)
	binary.LittleEndian.PutUint16(header[6:8], uint16(len(entries)))
	out = append(out, header...)

	for _, e := range entries {
		payload, err := e.Compiled.Serialize()
		if err != nil {
			return nil, err
		}
		lenBuf := make([]byte, 4)
		binary.LittleEndian.PutUint32(lenBuf, uint32(len(payload)))
		out = append(out, lenBuf...)
		out = append(out, payload...)
	}
	return out, nil
}

func decodeBlob(buf []byte, capacity int) ([]Entry, error) {
	if len(buf) < 8 {
		return nil, fmt.Errorf("%w: blob shorter than header", ErrStorageError)
	}
	magic := binary.LittleEndian.Uint32(buf[0:4])
	version := binary.LittleEndian.Uint16(buf[4:6])
	count := binary.LittleEndian.Uint16(buf[6:8])
	if magic != blobMagic || version != blobVersion {
		return nil, fmt.Errorf("%w: bad blob magic/version", ErrStorageError)
	}
	if int(count) > capacity {
		return nil, fmt.Errorf("%w: blob count %d exceeds capacity %d", ErrStorageError, count, capacity)
	}

	entries := make([]Entry, 0, count)
	off := 8
	for i := 0; i < int(count); i++ {
		if off+4 > len(buf) {
			return nil, fmt.Errorf("%w: truncated entry length", ErrStorageError)
		}
		n := int(binary.LittleEndian.Uint32(buf[off : off+4]))
		off += 4
		if n < 0 || off+n > len(buf) {
			return nil, fmt.Errorf("%w: truncated entry payload", ErrStorageError)
		}
		c, err := automation.Deserialize(buf[off : off+n])
		if err != nil {
			return nil, err
		}
		off += n
		entries = append(entries, Entry{
			ID:       c.String(c.Automation.IDOff),
			Name:     c.String(c.Automation.NameOff),
			Enabled:  c.Automation.Enabled != 0,
			Compiled: c,
		})
	}
	return entries, nil
}
