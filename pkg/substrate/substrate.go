// Package substrate defines the persistence contract the node store runs on.
//
// A substrate stores opaque JSON documents keyed by (scope, id) and provides
// the three primitives the store's concurrency discipline needs: atomic
// create (Put), versioned compare-and-swap, and snapshot iteration. Backends:
//
//   - memory: in-process maps, the default for tests and single binaries
//   - redis: key-per-node documents with per-scope membership sets
//   - mongo: one collection with a unique (scope, id) key
//
// Substrate errors are sentinels; the store maps them onto the typed error
// taxonomy callers see.
package substrate

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for substrate operations.
var (
	// ErrNotFound is returned when no record exists for a key.
	ErrNotFound = errors.New("record not found")

	// ErrExists is returned by Put when the key is already taken,
	// tombstones included.
	ErrExists = errors.New("record already exists")

	// ErrVersionMismatch is returned by CompareAndSwap when the stored
	// version does not equal the expected version.
	ErrVersionMismatch = errors.New("version mismatch")
)

// Key identifies a record. Scope and ID together form the unique key.
type Key struct {
	Scope string
	ID    string
}

// Record is an opaque stored document. Version is duplicated outside Data so
// compare-and-swap never has to decode the payload.
type Record struct {
	Key     Key
	Version int
	Data    []byte
}

// Substrate is the persistence contract consumed by the node store.
//
// All methods honor ctx cancellation and deadlines. Put and CompareAndSwap
// are atomic on the key: two concurrent Puts for the same key resolve with
// exactly one success and one ErrExists, and two concurrent swaps against
// the same version resolve with exactly one success.
type Substrate interface {
	// Get returns the record for key, ErrNotFound if absent.
	Get(ctx context.Context, key Key) (Record, error)

	// Put creates a record. Returns ErrExists if the key is taken.
	Put(ctx context.Context, rec Record) error

	// CompareAndSwap replaces the record only if the stored version equals
	// expected. Returns ErrNotFound if the key is absent and
	// ErrVersionMismatch on a stale expected version.
	CompareAndSwap(ctx context.Context, rec Record, expected int) error

	// Scan visits every record, optionally restricted to one scope
	// (scope == "" visits all). Iteration observes a consistent per-record
	// snapshot; fn returning an error stops the scan.
	Scan(ctx context.Context, scope string, fn func(Record) error) error

	// Close releases backend resources.
	Close() error
}

// WithTimeout wraps sub so every call runs under a deadline of d. A zero or
// negative d returns sub unchanged.
func WithTimeout(sub Substrate, d time.Duration) Substrate {
	if d <= 0 {
		return sub
	}
	return &timeoutSubstrate{inner: sub, d: d}
}

type timeoutSubstrate struct {
	inner Substrate
	d     time.Duration
}

func (t *timeoutSubstrate) Get(ctx context.Context, key Key) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Get(ctx, key)
}

func (t *timeoutSubstrate) Put(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Put(ctx, rec)
}

func (t *timeoutSubstrate) CompareAndSwap(ctx context.Context, rec Record, expected int) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.CompareAndSwap(ctx, rec, expected)
}

func (t *timeoutSubstrate) Scan(ctx context.Context, scope string, fn func(Record) error) error {
	ctx, cancel := context.WithTimeout(ctx, t.d)
	defer cancel()
	return t.inner.Scan(ctx, scope, fn)
}

func (t *timeoutSubstrate) Close() error { return t.inner.Close() }
