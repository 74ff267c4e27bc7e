// Package memory defines the graphmem data model and the node store.
//
// Nodes are typed, versioned records partitioned into access scopes. The
// store owns creation, versioned mutation, and tombstone deletion; it talks
// to a pluggable persistence substrate and an injected clock, and exposes
// the listing hook the relationship index derives edges from.
package memory

import (
	"encoding/json"
	"slices"
	"time"
)

// Scope partitions the node namespace. An ID is unique only within its scope.
type Scope string

// The closed set of scopes.
const (
	ScopeLocal       Scope = "local"
	ScopeIdentity    Scope = "identity"
	ScopeEnvironment Scope = "environment"
	ScopeCommunity   Scope = "community"
)

// AllScopes returns every scope in canonical order. The order is load-bearing:
// ID lookups without an explicit scope probe scopes in this order and return
// the first match.
func AllScopes() []Scope {
	return []Scope{ScopeLocal, ScopeIdentity, ScopeEnvironment, ScopeCommunity}
}

// Valid reports whether s is one of the known scopes.
func (s Scope) Valid() bool {
	return slices.Contains(AllScopes(), s)
}

// ParseScope validates a scope string. Empty input is returned as-is so
// callers can treat "" as "all scopes".
func ParseScope(s string) (Scope, bool) {
	if s == "" {
		return "", true
	}
	sc := Scope(s)
	return sc, sc.Valid()
}

// GraphNode is a stored memory node.
//
// Version starts at 1 on creation and increments by exactly 1 on every
// successful mutation, including the tombstone write. CreatedAt is immutable;
// UpdatedAt is refreshed on every successful mutation.
type GraphNode struct {
	ID         string         `json:"id" bson:"id"`
	Type       string         `json:"type" bson:"type"`
	Scope      Scope          `json:"scope" bson:"scope"`
	Attributes map[string]any `json:"attributes,omitempty" bson:"attributes,omitempty"`
	Version    int            `json:"version" bson:"version"`
	CreatedAt  time.Time      `json:"created_at" bson:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at" bson:"updated_at"`

	// Deleted marks a tombstone. Tombstones keep their ID reserved so it can
	// never be reused for a new node in the same scope.
	Deleted bool `json:"deleted,omitempty" bson:"deleted,omitempty"`
}

// Clone returns a deep copy of the node. Attribute values are copied through
// JSON so callers can never mutate stored state through a returned node.
func (n GraphNode) Clone() GraphNode {
	out := n
	out.Attributes = cloneAttributes(n.Attributes)
	return out
}

func cloneAttributes(attrs map[string]any) map[string]any {
	if attrs == nil {
		return nil
	}
	data, err := json.Marshal(attrs)
	if err != nil {
		// Attributes are JSON-like by contract; a marshal failure means the
		// caller handed us something non-serializable and validation rejects
		// it before storage.
		return map[string]any{}
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return map[string]any{}
	}
	return out
}

// RelationshipEdge is a derived relationship between two nodes. Edges are not
// persisted separately: the index recomputes them from node attributes, so
// they can never drift from the store.
type RelationshipEdge struct {
	SourceID         string  `json:"source_id" bson:"source_id"`
	TargetID         string  `json:"target_id" bson:"target_id"`
	RelationshipType string  `json:"relationship_type" bson:"relationship_type"`
	Weight           float64 `json:"weight" bson:"weight"`

	// CrossScope flags edges whose endpoints live in different scopes.
	// They are permitted but surfaced for callers that care.
	CrossScope bool `json:"cross_scope,omitempty" bson:"cross_scope,omitempty"`
}

// MemoryOpResult is returned by every mutating store operation. Expected
// failure modes (not found, conflicts, validation, timeouts) are carried in
// Error as a *errors.Error; they are outcomes, not faults.
type MemoryOpResult struct {
	Success bool   `json:"success"`
	NodeID  string `json:"node_id"`
	Error   error  `json:"-"`
}

func opFailure(nodeID string, err error) MemoryOpResult {
	return MemoryOpResult{Success: false, NodeID: nodeID, Error: err}
}

func opSuccess(nodeID string) MemoryOpResult {
	return MemoryOpResult{Success: true, NodeID: nodeID}
}
