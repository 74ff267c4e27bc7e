package substrate

import (
	"context"
	"sync"
)

// MemorySubstrate is an in-process Substrate backed by a map. It is the
// default backend for tests and single-binary deployments.
type MemorySubstrate struct {
	mu      sync.RWMutex
	records map[Key]Record
}

// NewMemory creates an empty in-memory substrate.
func NewMemory() *MemorySubstrate {
	return &MemorySubstrate{records: make(map[Key]Record)}
}

// Get returns the record for key, ErrNotFound if absent.
func (m *MemorySubstrate) Get(ctx context.Context, key Key) (Record, error) {
	if err := ctx.Err(); err != nil {
		return Record{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return copyRecord(rec), nil
}

// Put creates a record, failing with ErrExists if the key is taken.
// The existence check and insert happen under one lock, so two concurrent
// Puts for the same key resolve with exactly one success.
func (m *MemorySubstrate) Put(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.records[rec.Key]; ok {
		return ErrExists
	}
	m.records[rec.Key] = copyRecord(rec)
	return nil
}

// CompareAndSwap replaces the record only if the stored version matches.
func (m *MemorySubstrate) CompareAndSwap(ctx context.Context, rec Record, expected int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	cur, ok := m.records[rec.Key]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != expected {
		return ErrVersionMismatch
	}
	m.records[rec.Key] = copyRecord(rec)
	return nil
}

// Scan visits every record under a read lock snapshot. Records are copied
// before the callback runs, so fn never observes a torn document.
func (m *MemorySubstrate) Scan(ctx context.Context, scope string, fn func(Record) error) error {
	m.mu.RLock()
	snapshot := make([]Record, 0, len(m.records))
	for key, rec := range m.records {
		if scope != "" && key.Scope != scope {
			continue
		}
		snapshot = append(snapshot, copyRecord(rec))
	}
	m.mu.RUnlock()

	for _, rec := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
	return nil
}

// Close does nothing for the in-memory substrate.
func (m *MemorySubstrate) Close() error { return nil }

func copyRecord(rec Record) Record {
	out := rec
	out.Data = make([]byte, len(rec.Data))
	copy(out.Data, rec.Data)
	return out
}

// Ensure MemorySubstrate implements Substrate.
var _ Substrate = (*MemorySubstrate)(nil)
