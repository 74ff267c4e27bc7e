package memory

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"sync"

	"github.com/google/uuid"

	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/observability"
	"github.com/graphmem/graphmem/pkg/substrate"
)

// Default store limits.
const (
	// DefaultMaxAttributeBytes bounds the JSON-encoded size of a single
	// attribute value.
	DefaultMaxAttributeBytes = 64 * 1024

	// maxIDAttempts bounds the collision-checked ID generator. UUID
	// collisions are vanishingly rare; the cap exists so a broken substrate
	// cannot spin the generator forever.
	maxIDAttempts = 5

	// maxMergeRetries bounds the unconditional-update retry loop when a
	// concurrent writer wins the compare-and-swap.
	maxMergeRetries = 5
)

// StoreConfig tunes store behavior. The zero value is usable; zero fields
// fall back to defaults.
type StoreConfig struct {
	// MaxAttributeBytes bounds the encoded size of any single attribute
	// value. Defaults to DefaultMaxAttributeBytes.
	MaxAttributeBytes int
}

// WriteListener observes successful mutations. The relationship index
// registers one to invalidate its cache; listeners run synchronously after
// the substrate write commits and must not block.
type WriteListener func(scope Scope, id string)

// Store is the node store: durable keyed storage of versioned, scoped nodes.
//
// Mutations are compare-and-swap on the node version, so two concurrent
// updates to the same (scope, id) can never both succeed without one of them
// observing a version conflict. Reads observe a consistent per-node snapshot.
type Store struct {
	sub substrate.Substrate
	clk clock.Clock
	cfg StoreConfig

	mu        sync.RWMutex
	listeners []WriteListener
}

// NewStore creates a store over the given substrate and clock.
func NewStore(sub substrate.Substrate, clk clock.Clock, cfg StoreConfig) *Store {
	if cfg.MaxAttributeBytes <= 0 {
		cfg.MaxAttributeBytes = DefaultMaxAttributeBytes
	}
	return &Store{sub: sub, clk: clk, cfg: cfg}
}

// OnWrite registers a listener notified after every successful mutation.
func (s *Store) OnWrite(fn WriteListener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(scope Scope, id string) {
	s.mu.RLock()
	listeners := s.listeners
	s.mu.RUnlock()
	for _, fn := range listeners {
		fn(scope, id)
	}
}

// Create stores a new node. The node must carry a non-empty type and a known
// scope; version and timestamps are assigned by the store. A missing ID is
// generated with a collision check. Returns a Conflict outcome if the
// (scope, id) key is taken, tombstones included.
func (s *Store) Create(ctx context.Context, node GraphNode) MemoryOpResult {
	if node.Type == "" {
		return s.mutationResult(ctx, "create", node.Scope, node.ID,
			errors.New(errors.ErrCodeInvalidType, "node type must not be empty"))
	}
	if !node.Scope.Valid() {
		return s.mutationResult(ctx, "create", node.Scope, node.ID,
			errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", node.Scope))
	}
	if err := s.validateAttributes(node.Attributes); err != nil {
		return s.mutationResult(ctx, "create", node.Scope, node.ID, err)
	}

	if node.ID == "" {
		id, err := s.generateID(ctx, node.Scope)
		if err != nil {
			return s.mutationResult(ctx, "create", node.Scope, "", err)
		}
		node.ID = id
	}

	now := s.clk.Now()
	node.Version = 1
	node.CreatedAt = now
	node.UpdatedAt = now
	node.Deleted = false

	if err := s.put(ctx, node); err != nil {
		return s.mutationResult(ctx, "create", node.Scope, node.ID, err)
	}
	s.notify(node.Scope, node.ID)
	observability.Store().OnMutation(ctx, "create", string(node.Scope), node.ID, nil)
	return opSuccess(node.ID)
}

// Get returns the node at (scope, id). Tombstoned and absent nodes both
// yield NotFound.
func (s *Store) Get(ctx context.Context, scope Scope, id string) (GraphNode, error) {
	if !scope.Valid() {
		return GraphNode{}, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", scope)
	}
	node, err := s.fetch(ctx, scope, id)
	if err != nil {
		return GraphNode{}, err
	}
	if node.Deleted {
		return GraphNode{}, errors.New(errors.ErrCodeNotFound, "node %s/%s not found", scope, id)
	}
	return node, nil
}

// Resolve finds a node by ID. An empty scope probes every scope in canonical
// order and returns the first live match.
func (s *Store) Resolve(ctx context.Context, scope Scope, id string) (GraphNode, error) {
	if scope != "" {
		return s.Get(ctx, scope, id)
	}
	for _, sc := range AllScopes() {
		node, err := s.Get(ctx, sc, id)
		if err == nil {
			return node, nil
		}
		if !errors.Is(err, errors.ErrCodeNotFound) {
			return GraphNode{}, err
		}
	}
	return GraphNode{}, errors.New(errors.ErrCodeNotFound, "node %s not found in any scope", id)
}

// Update merges partial attributes into the node: new keys are added,
// existing keys overwritten, no deep merge. If expectedVersion is non-nil it
// must equal the current version or the update fails with VersionConflict
// and no mutation occurs. An empty scope resolves the ID across all scopes.
func (s *Store) Update(ctx context.Context, scope Scope, id string, partial map[string]any, expectedVersion *int) MemoryOpResult {
	if err := s.validateAttributes(partial); err != nil {
		return s.mutationResult(ctx, "update", scope, id, err)
	}

	for attempt := 0; ; attempt++ {
		cur, err := s.Resolve(ctx, scope, id)
		if err != nil {
			return s.mutationResult(ctx, "update", scope, id, err)
		}
		if expectedVersion != nil && *expectedVersion != cur.Version {
			return s.mutationResult(ctx, "update", cur.Scope, id,
				errors.New(errors.ErrCodeVersionConflict,
					"node %s/%s is at version %d, expected %d", cur.Scope, id, cur.Version, *expectedVersion))
		}

		next := cur.Clone()
		if next.Attributes == nil {
			next.Attributes = make(map[string]any, len(partial))
		}
		for k, v := range partial {
			next.Attributes[k] = v
		}
		next.Version = cur.Version + 1
		next.UpdatedAt = s.clk.Now()

		err = s.swap(ctx, next, cur.Version)
		if err == nil {
			s.notify(next.Scope, next.ID)
			observability.Store().OnMutation(ctx, "update", string(next.Scope), next.ID, nil)
			return opSuccess(next.ID)
		}
		if errors.Is(err, errors.ErrCodeVersionConflict) {
			if expectedVersion != nil {
				return s.mutationResult(ctx, "update", cur.Scope, id, err)
			}
			// Unconditional merge lost a race; re-read and retry.
			if attempt < maxMergeRetries {
				continue
			}
		}
		return s.mutationResult(ctx, "update", cur.Scope, id, err)
	}
}

// Delete writes a tombstone: attributes are cleared, the version increments
// once more, and the ID stays reserved. Deleting an already-tombstoned node
// fails with NotFound to surface caller bugs, not as a silent success.
func (s *Store) Delete(ctx context.Context, scope Scope, id string) MemoryOpResult {
	cur, err := s.Resolve(ctx, scope, id)
	if err != nil {
		return s.mutationResult(ctx, "delete", scope, id, err)
	}

	tomb := cur
	tomb.Attributes = nil
	tomb.Deleted = true
	tomb.Version = cur.Version + 1
	tomb.UpdatedAt = s.clk.Now()

	if err := s.swap(ctx, tomb, cur.Version); err != nil {
		return s.mutationResult(ctx, "delete", cur.Scope, id, err)
	}
	s.notify(tomb.Scope, tomb.ID)
	observability.Store().OnMutation(ctx, "delete", string(tomb.Scope), tomb.ID, nil)
	return opSuccess(tomb.ID)
}

// ListOptions filters List.
type ListOptions struct {
	// Scope restricts listing to one scope; empty lists every scope.
	Scope Scope
	// Type restricts listing to one node type; empty matches all.
	Type string
	// IncludeDeleted includes tombstones. Off by default.
	IncludeDeleted bool
}

// List returns nodes matching opts. This is the read path the query engine
// and relationship index build on.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]GraphNode, error) {
	if opts.Scope != "" && !opts.Scope.Valid() {
		return nil, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", opts.Scope)
	}
	var nodes []GraphNode
	err := s.sub.Scan(ctx, string(opts.Scope), func(rec substrate.Record) error {
		node, err := decodeNode(rec)
		if err != nil {
			return err
		}
		if node.Deleted && !opts.IncludeDeleted {
			return nil
		}
		if opts.Type != "" && node.Type != opts.Type {
			return nil
		}
		nodes = append(nodes, node)
		return nil
	})
	if err != nil {
		return nil, s.mapSubstrateErr(err, opts.Scope, "")
	}
	return nodes, nil
}

// =============================================================================
// Internal Helpers
// =============================================================================

func (s *Store) validateAttributes(attrs map[string]any) error {
	for key, value := range attrs {
		data, err := json.Marshal(value)
		if err != nil {
			return errors.Wrap(errors.ErrCodeValidation, err,
				"attribute %q is not JSON-serializable", key)
		}
		if len(data) > s.cfg.MaxAttributeBytes {
			return errors.New(errors.ErrCodeOversized,
				"attribute %q is %d bytes, limit %d", key, len(data), s.cfg.MaxAttributeBytes)
		}
	}
	return nil
}

// generateID returns a fresh UUID verified to be unused in the scope.
func (s *Store) generateID(ctx context.Context, scope Scope) (string, error) {
	for i := 0; i < maxIDAttempts; i++ {
		id := uuid.NewString()
		_, err := s.sub.Get(ctx, substrate.Key{Scope: string(scope), ID: id})
		if stderrors.Is(err, substrate.ErrNotFound) {
			return id, nil
		}
		if err != nil {
			return "", s.mapSubstrateErr(err, scope, id)
		}
	}
	return "", errors.New(errors.ErrCodeInternal, "could not generate a unique node ID")
}

func (s *Store) fetch(ctx context.Context, scope Scope, id string) (GraphNode, error) {
	rec, err := s.sub.Get(ctx, substrate.Key{Scope: string(scope), ID: id})
	if err != nil {
		return GraphNode{}, s.mapSubstrateErr(err, scope, id)
	}
	return decodeNode(rec)
}

func (s *Store) put(ctx context.Context, node GraphNode) error {
	rec, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := s.sub.Put(ctx, rec); err != nil {
		return s.mapSubstrateErr(err, node.Scope, node.ID)
	}
	return nil
}

func (s *Store) swap(ctx context.Context, node GraphNode, expected int) error {
	rec, err := encodeNode(node)
	if err != nil {
		return err
	}
	if err := s.sub.CompareAndSwap(ctx, rec, expected); err != nil {
		return s.mapSubstrateErr(err, node.Scope, node.ID)
	}
	return nil
}

// mapSubstrateErr translates substrate sentinels and context deadline errors
// into the typed taxonomy.
func (s *Store) mapSubstrateErr(err error, scope Scope, id string) error {
	switch {
	case stderrors.Is(err, substrate.ErrNotFound):
		return errors.New(errors.ErrCodeNotFound, "node %s/%s not found", scope, id)
	case stderrors.Is(err, substrate.ErrExists):
		return errors.New(errors.ErrCodeConflict, "node %s/%s already exists", scope, id)
	case stderrors.Is(err, substrate.ErrVersionMismatch):
		return errors.New(errors.ErrCodeVersionConflict, "node %s/%s was modified concurrently", scope, id)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(errors.ErrCodeTimeout, err, "substrate deadline exceeded for %s/%s", scope, id)
	default:
		return errors.Wrap(errors.ErrCodeUnavailable, err, "substrate failure for %s/%s", scope, id)
	}
}

func (s *Store) mutationResult(ctx context.Context, op string, scope Scope, id string, err error) MemoryOpResult {
	observability.Store().OnMutation(ctx, op, string(scope), id, err)
	return opFailure(id, err)
}

func encodeNode(node GraphNode) (substrate.Record, error) {
	data, err := json.Marshal(node)
	if err != nil {
		return substrate.Record{}, errors.Wrap(errors.ErrCodeInternal, err, "encode node %s", node.ID)
	}
	return substrate.Record{
		Key:     substrate.Key{Scope: string(node.Scope), ID: node.ID},
		Version: node.Version,
		Data:    data,
	}, nil
}

func decodeNode(rec substrate.Record) (GraphNode, error) {
	var node GraphNode
	if err := json.Unmarshal(rec.Data, &node); err != nil {
		return GraphNode{}, errors.Wrap(errors.ErrCodeInternal, err,
			"decode node %s/%s", rec.Key.Scope, rec.Key.ID)
	}
	return node, nil
}
