package query

import (
	"context"
	"testing"
	"time"

	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/index"
	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/substrate"
)

func newTestEngine(t *testing.T) (*Engine, *memory.Store, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC))
	store := memory.NewStore(substrate.NewMemory(), clk, memory.StoreConfig{})
	ix := index.New(store, nil, clk, index.Config{})
	return New(store, ix, clk, Config{}), store, clk
}

func seed(t *testing.T, store *memory.Store, node memory.GraphNode) {
	t.Helper()
	if res := store.Create(context.Background(), node); !res.Success {
		t.Fatalf("seed %s failed: %v", node.ID, res.Error)
	}
}

func ids(nodes []memory.GraphNode) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.ID
	}
	return out
}

func TestQueryExactID(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{
		ID: "metric_cpu_1699999999", Type: "metric", Scope: memory.ScopeLocal,
	})

	nodes, err := e.Query(ctx, "metric_cpu_1699999999", Options{})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "metric_cpu_1699999999" {
		t.Errorf("Query() = %v", ids(nodes))
	}

	// A missing ID probe is an empty result, not an error.
	nodes, err = e.Query(ctx, "metric_missing_1699999999", Options{})
	if err != nil {
		t.Fatalf("Query(missing) err = %v", err)
	}
	if len(nodes) != 0 {
		t.Errorf("Query(missing) = %v, want empty", ids(nodes))
	}
}

func TestQueryWildcard(t *testing.T) {
	e, store, clk := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		seed(t, store, memory.GraphNode{ID: id, Type: "concept", Scope: memory.ScopeLocal})
		clk.Advance(time.Minute)
	}

	nodes, err := e.Query(ctx, "*", Options{})
	if err != nil {
		t.Fatalf("Query(*) err = %v", err)
	}
	if len(nodes) != 3 {
		t.Fatalf("Query(*) = %d nodes, want 3", len(nodes))
	}

	// Default ordering is created_at descending.
	got := ids(nodes)
	want := []string{"c", "b", "a"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Query(*) order = %v, want %v", got, want)
		}
	}
}

func TestQueryContentSearch(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{
		ID: "note1", Type: "observation", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"content": "heavy rain in the north"},
	})
	seed(t, store, memory.GraphNode{
		ID: "note2", Type: "observation", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"content": "clear skies everywhere"},
	})

	nodes, err := e.Query(ctx, "rain", Options{})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "note1" {
		t.Errorf("Query(rain) = %v, want [note1]", ids(nodes))
	}
}

func TestQueryAttributeKeyPrefix(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{
		ID: "cfg", Type: "config", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"retention_days": 30},
	})
	seed(t, store, memory.GraphNode{
		ID: "other", Type: "config", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"timeout": 5},
	})

	nodes, err := e.Query(ctx, "retention", Options{})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "cfg" {
		t.Errorf("Query(retention) = %v, want [cfg]", ids(nodes))
	}
}

func TestQueryPagination(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d", "e"} {
		seed(t, store, memory.GraphNode{ID: id, Type: "concept", Scope: memory.ScopeLocal})
	}

	// Same timestamps, so the ID tie-break fully determines the order and
	// adjacent pages are disjoint and contiguous.
	page1, err := e.Query(ctx, "*", Options{Limit: 2, Offset: 0})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	page2, err := e.Query(ctx, "*", Options{Limit: 2, Offset: 2})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	all, err := e.Query(ctx, "*", Options{Limit: 4})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}

	combined := append(ids(page1), ids(page2)...)
	for i, id := range ids(all) {
		if combined[i] != id {
			t.Fatalf("pages %v do not concatenate to %v", combined, ids(all))
		}
	}

	// Offset past the end is empty, not an error.
	empty, err := e.Query(ctx, "*", Options{Offset: 100})
	if err != nil {
		t.Fatalf("Query() err = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Query(offset past end) = %v", ids(empty))
	}
}

func TestQueryOptionValidation(t *testing.T) {
	e, _, _ := newTestEngine(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{
			name: "bad order by",
			opts: Options{OrderBy: "alphabetical"},
			code: errors.ErrCodeInvalidOrderBy,
		},
		{
			name: "bad order",
			opts: Options{Order: "sideways"},
			code: errors.ErrCodeValidation,
		},
		{
			name: "bad scope",
			opts: Options{Scope: "galactic"},
			code: errors.ErrCodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Query(ctx, "anything", tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("Query() err = %v, want code %s", err, tt.code)
			}
		})
	}
}

func TestSearchThreshold(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{
		ID: "full", Type: "observation", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"content": "alpha beta"},
	})
	seed(t, store, memory.GraphNode{
		ID: "partial", Type: "observation", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"content": "alpha only"},
	})

	nodes, err := e.Search(ctx, "alpha beta", SearchOptions{Threshold: 0.75})
	if err != nil {
		t.Fatalf("Search() err = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "full" {
		t.Errorf("Search() = %v, want [full]", ids(nodes))
	}

	// Without a threshold both match, best first.
	nodes, err = e.Search(ctx, "alpha beta", SearchOptions{})
	if err != nil {
		t.Fatalf("Search() err = %v", err)
	}
	if len(nodes) != 2 || nodes[0].ID != "full" {
		t.Errorf("Search() = %v, want [full partial]", ids(nodes))
	}
}

func TestRelated(t *testing.T) {
	e, store, _ := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{ID: "alice", Type: "person", Scope: memory.ScopeLocal})
	seed(t, store, memory.GraphNode{ID: "bob", Type: "person", Scope: memory.ScopeLocal})
	seed(t, store, memory.GraphNode{
		ID: "meeting", Type: "event", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"attendees": []any{"alice", "bob"}},
	})

	nodes, err := e.Related(ctx, "meeting", RelatedOptions{})
	if err != nil {
		t.Fatalf("Related() err = %v", err)
	}
	got := ids(nodes)
	if len(got) != 2 || got[0] != "alice" || got[1] != "bob" {
		t.Errorf("Related(meeting) = %v, want [alice bob]", got)
	}

	// Traversal is undirected: the referenced side sees the edge too.
	nodes, err = e.Related(ctx, "alice", RelatedOptions{})
	if err != nil {
		t.Fatalf("Related() err = %v", err)
	}
	if len(nodes) != 1 || nodes[0].ID != "meeting" {
		t.Errorf("Related(alice) = %v, want [meeting]", ids(nodes))
	}
}

func TestTimelineBucketKeys(t *testing.T) {
	e, store, clk := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{ID: "a", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(24 * time.Hour)
	seed(t, store, memory.GraphNode{ID: "b", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(time.Hour)

	res, err := e.Timeline(ctx, TimelineOptions{BucketSize: "1d"})
	if err != nil {
		t.Fatalf("Timeline() err = %v", err)
	}
	if res.Total != 2 || len(res.Memories) != 2 {
		t.Fatalf("Total = %d, Memories = %d, want 2/2", res.Total, len(res.Memories))
	}

	sum := 0
	for key, count := range res.Buckets {
		if _, err := time.Parse(time.RFC3339, key); err != nil {
			t.Errorf("bucket key %q is not RFC 3339", key)
		}
		sum += count
	}
	if sum != res.Total {
		t.Errorf("bucket sum = %d, want %d", sum, res.Total)
	}

	if _, err := e.Timeline(ctx, TimelineOptions{BucketSize: "fortnight"}); !errors.Is(err, errors.ErrCodeInvalidBucket) {
		t.Errorf("Timeline(bad bucket) err = %v", err)
	}
}

func TestStatsFor(t *testing.T) {
	e, store, clk := newTestEngine(t)
	ctx := context.Background()

	seed(t, store, memory.GraphNode{ID: "old", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(48 * time.Hour)
	seed(t, store, memory.GraphNode{ID: "fresh", Type: "observation", Scope: memory.ScopeIdentity})

	stats, err := e.StatsFor(ctx, "")
	if err != nil {
		t.Fatalf("StatsFor() err = %v", err)
	}
	if stats.TotalNodes != 2 {
		t.Errorf("TotalNodes = %d, want 2", stats.TotalNodes)
	}
	if stats.Recent24h != 1 {
		t.Errorf("Recent24h = %d, want 1", stats.Recent24h)
	}
	if stats.NodesByType["concept"] != 1 || stats.NodesByType["observation"] != 1 {
		t.Errorf("NodesByType = %v", stats.NodesByType)
	}
	if stats.NodesByScope["local"] != 1 || stats.NodesByScope["identity"] != 1 {
		t.Errorf("NodesByScope = %v", stats.NodesByScope)
	}
	if !stats.OldestNode.Before(stats.NewestNode) {
		t.Errorf("date bounds: oldest %v, newest %v", stats.OldestNode, stats.NewestNode)
	}
}
