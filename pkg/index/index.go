// Package index derives relationships and time-bucketed aggregates from the
// node store.
//
// The index is a rebuildable view, never a second source of truth: edges are
// recomputed from node attributes on demand, cached with a TTL, and the cache
// is invalidated whenever either endpoint of an edge could have changed.
// A stale read is permitted briefly; a torn read is not.
package index

import (
	"cmp"
	"context"
	"encoding/json"
	"slices"
	"time"

	"github.com/graphmem/graphmem/pkg/cache"
	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/memory"
)

// DefaultCacheTTL bounds how stale a cached edge set may be served.
const DefaultCacheTTL = 30 * time.Second

// edgeSetKey is the cache key for the derived edge set. Any node write
// invalidates the whole set; edges are cheap to rebuild and correctness
// beats granularity here.
var edgeSetKey = cache.Key("edges")

// Config tunes the index.
type Config struct {
	// CacheTTL bounds cache staleness. Zero falls back to DefaultCacheTTL;
	// negative disables caching.
	CacheTTL time.Duration
}

// Index derives relationship edges and timelines from the store.
type Index struct {
	store *memory.Store
	cache cache.Cache
	clk   clock.Clock
	ttl   time.Duration
}

// New creates an index over the store. A nil c disables caching. The index
// registers itself for write invalidation on the store.
func New(store *memory.Store, c cache.Cache, clk clock.Clock, cfg Config) *Index {
	if c == nil {
		c = cache.NewNullCache()
	}
	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = DefaultCacheTTL
	}
	idx := &Index{store: store, cache: c, clk: clk, ttl: ttl}
	store.OnWrite(func(scope memory.Scope, id string) {
		// Invalidation must never block the write path; a failed delete just
		// means the entry ages out at its TTL.
		_ = c.Delete(context.Background(), edgeSetKey)
	})
	return idx
}

// Edges returns the derived relationship edges for the whole store, in
// deterministic (source, target, type) order.
//
// Derivation rule: an attribute value that exactly equals another existing
// node's ID produces an edge from the holding node to the referenced node,
// typed by the attribute key, weight 1.0. String elements of top-level array
// values participate too. Edges whose endpoints live in different scopes are
// flagged CrossScope.
func (ix *Index) Edges(ctx context.Context) ([]memory.RelationshipEdge, error) {
	if ix.ttl > 0 {
		if data, hit, err := ix.cache.Get(ctx, edgeSetKey); err == nil && hit {
			var edges []memory.RelationshipEdge
			if err := json.Unmarshal(data, &edges); err == nil {
				return edges, nil
			}
			// Corrupt entry: drop it and rebuild.
			_ = ix.cache.Delete(ctx, edgeSetKey)
		}
	}

	edges, err := ix.derive(ctx)
	if err != nil {
		return nil, err
	}

	if ix.ttl > 0 {
		if data, err := json.Marshal(edges); err == nil {
			_ = ix.cache.Set(ctx, edgeSetKey, data, ix.ttl)
		}
	}
	return edges, nil
}

func (ix *Index) derive(ctx context.Context) ([]memory.RelationshipEdge, error) {
	nodes, err := ix.store.List(ctx, memory.ListOptions{})
	if err != nil {
		return nil, err
	}

	// IDs are unique per scope, not globally; when the same ID exists in two
	// scopes the canonical scope order decides which node a reference hits,
	// matching how ID lookups resolve.
	byID := make(map[string]memory.GraphNode, len(nodes))
	rank := func(s memory.Scope) int {
		return slices.Index(memory.AllScopes(), s)
	}
	for _, n := range nodes {
		if prev, ok := byID[n.ID]; !ok || rank(n.Scope) < rank(prev.Scope) {
			byID[n.ID] = n
		}
	}

	var edges []memory.RelationshipEdge
	for _, n := range nodes {
		for key, value := range n.Attributes {
			for _, ref := range referencedIDs(value) {
				target, ok := byID[ref]
				if !ok || ref == n.ID {
					continue
				}
				edges = append(edges, memory.RelationshipEdge{
					SourceID:         n.ID,
					TargetID:         target.ID,
					RelationshipType: key,
					Weight:           1.0,
					CrossScope:       n.Scope != target.Scope,
				})
			}
		}
	}

	slices.SortFunc(edges, func(a, b memory.RelationshipEdge) int {
		if c := cmp.Compare(a.SourceID, b.SourceID); c != 0 {
			return c
		}
		if c := cmp.Compare(a.TargetID, b.TargetID); c != 0 {
			return c
		}
		return cmp.Compare(a.RelationshipType, b.RelationshipType)
	})
	return edges, nil
}

// referencedIDs extracts candidate reference strings from an attribute value:
// the value itself when it is a string, or string elements of an array.
func referencedIDs(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, el := range v {
			if s, ok := el.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Related returns the edges touching id in either direction, optionally
// filtered by relationship type, ordered by weight descending then by the
// far endpoint's ID ascending, truncated to limit (limit <= 0 means all).
func (ix *Index) Related(ctx context.Context, id, relationshipType string, limit int) ([]memory.RelationshipEdge, error) {
	all, err := ix.Edges(ctx)
	if err != nil {
		return nil, err
	}

	var touching []memory.RelationshipEdge
	for _, e := range all {
		if e.SourceID != id && e.TargetID != id {
			continue
		}
		if relationshipType != "" && e.RelationshipType != relationshipType {
			continue
		}
		touching = append(touching, e)
	}

	slices.SortFunc(touching, func(a, b memory.RelationshipEdge) int {
		if a.Weight != b.Weight {
			// Heavier edges first.
			return cmp.Compare(b.Weight, a.Weight)
		}
		return cmp.Compare(OtherEnd(a, id), OtherEnd(b, id))
	})

	if limit > 0 && len(touching) > limit {
		touching = touching[:limit]
	}
	return touching, nil
}

// OtherEnd returns the endpoint of e that is not id. Traversal treats edges
// as undirected; source/target orientation is retained for display only.
func OtherEnd(e memory.RelationshipEdge, id string) string {
	if e.SourceID == id {
		return e.TargetID
	}
	return e.SourceID
}
