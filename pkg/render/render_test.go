package render

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/index"
	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/substrate"
)

func newTestRenderer(t *testing.T) (*Renderer, *memory.Store, *clock.Fake) {
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

func TestRenderValidationBeforeWork(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		opts Options
		code errors.Code
	}{
		{
			name: "unknown layout",
			opts: Options{Layout: "radial", Width: 640, Height: 480},
			code: errors.ErrCodeInvalidLayout,
		},
		{
			name: "zero width",
			opts: Options{Width: 0, Height: 480},
			code: errors.ErrCodeValidation,
		},
		{
			name: "zero height",
			opts: Options{Width: 640, Height: 0},
			code: errors.ErrCodeValidation,
		},
		{
			name: "negative width",
			opts: Options{Width: -10, Height: 480},
			code: errors.ErrCodeValidation,
		},
		{
			name: "negative height",
			opts: Options{Width: 640, Height: -1},
			code: errors.ErrCodeValidation,
		},
		{
			name: "unknown scope",
			opts: Options{Scope: "galactic", Width: 640, Height: 480},
			code: errors.ErrCodeInvalidScope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Render(ctx, tt.opts)
			if !errors.Is(err, tt.code) {
				t.Errorf("Render() err = %v, want code %s", err, tt.code)
			}
		})
	}
}

// canvasOpts returns valid options at the default canvas size without a
// node cap.
func canvasOpts() Options {
	return Options{Width: DefaultWidth, Height: DefaultHeight, Limit: -1}
}

func TestRenderEmptyGraph(t *testing.T) {
	r, _, _ := newTestRenderer(t)

	svg, err := r.Render(context.Background(), canvasOpts())
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	doc := string(svg)
	if !strings.HasPrefix(doc, "<svg ") {
		t.Errorf("output does not start with an svg tag: %.60s", doc)
	}
	if !strings.Contains(doc, `width="1200" height="800"`) {
		t.Errorf("canvas dimensions missing: %.120s", doc)
	}
	if strings.Contains(doc, "<circle") {
		t.Error("empty graph rendered nodes")
	}
}

func TestRenderZeroLimitEmptyCanvas(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	seed(t, store, memory.GraphNode{ID: "n1", Type: "concept", Scope: memory.ScopeLocal})

	svg, err := r.Render(context.Background(), Options{Width: 640, Height: 480, Limit: 0})
	if err != nil {
		t.Fatalf("Render(limit=0) err = %v", err)
	}
	doc := string(svg)
	if !strings.HasPrefix(doc, "<svg ") {
		t.Errorf("output does not start with an svg tag: %.60s", doc)
	}
	if strings.Contains(doc, "<circle") {
		t.Error("limit 0 still rendered nodes")
	}
}

func TestRenderNegativeLimitDisablesCap(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	for _, id := range []string{"a", "b", "c"} {
		seed(t, store, memory.GraphNode{ID: id, Type: "concept", Scope: memory.ScopeLocal})
	}

	svg, err := r.Render(context.Background(), Options{Width: 640, Height: 480, Limit: -1})
	if err != nil {
		t.Fatalf("Render(limit=-1) err = %v", err)
	}
	if got := strings.Count(string(svg), "<circle"); got != 3 {
		t.Errorf("negative limit rendered %d nodes, want 3", got)
	}
}

func TestRenderDimensionsHonored(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	seed(t, store, memory.GraphNode{ID: "n1", Type: "concept", Scope: memory.ScopeLocal})

	svg, err := r.Render(context.Background(), Options{Width: 640, Height: 480, Limit: -1})
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	if !strings.Contains(string(svg), `viewBox="0 0 640 480" width="640" height="480"`) {
		t.Errorf("requested dimensions missing: %.120s", svg)
	}
}

func TestRenderAllLayouts(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	seed(t, store, memory.GraphNode{ID: "a", Type: "person", Scope: memory.ScopeLocal})
	seed(t, store, memory.GraphNode{
		ID: "b", Type: "event", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"host": "a"},
	})

	for _, layout := range []Layout{LayoutForce, LayoutTimeline, LayoutHierarchical} {
		t.Run(string(layout), func(t *testing.T) {
			opts := canvasOpts()
			opts.Layout = layout
			svg, err := r.Render(context.Background(), opts)
			if err != nil {
				t.Fatalf("Render(%s) err = %v", layout, err)
			}
			doc := string(svg)
			if strings.Count(doc, "<circle") != 2 {
				t.Errorf("node count in SVG = %d, want 2", strings.Count(doc, "<circle"))
			}
			if strings.Count(doc, "<line") != 1 {
				t.Errorf("edge count in SVG = %d, want 1", strings.Count(doc, "<line"))
			}
		})
	}
}

func TestRenderDeterministic(t *testing.T) {
	r, store, _ := newTestRenderer(t)
	for _, id := range []string{"a", "b", "c", "d"} {
		seed(t, store, memory.GraphNode{ID: id, Type: "concept", Scope: memory.ScopeLocal})
	}
	seed(t, store, memory.GraphNode{
		ID: "hub", Type: "event", Scope: memory.ScopeLocal,
		Attributes: map[string]any{"links": []any{"a", "b", "c"}},
	})

	opts := canvasOpts()
	opts.Layout = LayoutForce
	first, err := r.Render(context.Background(), opts)
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	second, err := r.Render(context.Background(), opts)
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("force layout output varies between runs on identical input")
	}
}

func TestRenderHoursWindow(t *testing.T) {
	r, store, clk := newTestRenderer(t)

	seed(t, store, memory.GraphNode{ID: "stale", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(48 * time.Hour)
	seed(t, store, memory.GraphNode{ID: "fresh", Type: "concept", Scope: memory.ScopeLocal})

	svg, err := r.Render(context.Background(), canvasOpts())
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	doc := string(svg)
	if !strings.Contains(doc, "fresh") || strings.Contains(doc, "stale") {
		t.Errorf("default 24h window not applied: %.300s", doc)
	}

	// Negative hours disables the window.
	opts := canvasOpts()
	opts.Hours = -1
	svg, err = r.Render(context.Background(), opts)
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	if got := strings.Count(string(svg), "<circle"); got != 2 {
		t.Errorf("Hours=-1 rendered %d nodes, want 2", got)
	}
}

func TestRenderLimitKeepsNewest(t *testing.T) {
	r, store, clk := newTestRenderer(t)

	seed(t, store, memory.GraphNode{ID: "older", Type: "concept", Scope: memory.ScopeLocal})
	clk.Advance(time.Minute)
	seed(t, store, memory.GraphNode{ID: "newer", Type: "concept", Scope: memory.ScopeLocal})

	svg, err := r.Render(context.Background(), Options{Width: 640, Height: 480, Limit: 1})
	if err != nil {
		t.Fatalf("Render() err = %v", err)
	}
	doc := string(svg)
	if !strings.Contains(doc, "newer") || strings.Contains(doc, "older") {
		t.Errorf("limit did not keep the newest node: %.300s", doc)
	}
}

func TestTimelineLayoutLanes(t *testing.T) {
	clkBase := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	nodes := []memory.GraphNode{
		{ID: "a1", Type: "alpha", CreatedAt: clkBase},
		{ID: "a2", Type: "alpha", CreatedAt: clkBase.Add(time.Hour)},
		{ID: "b1", Type: "beta", CreatedAt: clkBase.Add(30 * time.Minute)},
	}

	pos := timelineLayout(nodes, 1000, 600)

	if pos["a1"].Y != pos["a2"].Y {
		t.Errorf("same-type nodes on different lanes: %v vs %v", pos["a1"].Y, pos["a2"].Y)
	}
	if pos["a1"].Y == pos["b1"].Y {
		t.Error("different types share a lane")
	}
	if !(pos["a1"].X < pos["b1"].X && pos["b1"].X < pos["a2"].X) {
		t.Errorf("x order does not follow creation time: %v %v %v",
			pos["a1"].X, pos["b1"].X, pos["a2"].X)
	}
}

func TestHierarchicalLayoutDepths(t *testing.T) {
	nodes := []memory.GraphNode{
		{ID: "root", Type: "t"},
		{ID: "mid", Type: "t"},
		{ID: "leaf", Type: "t"},
	}
	edges := []memory.RelationshipEdge{
		{SourceID: "root", TargetID: "mid", Weight: 1},
		{SourceID: "mid", TargetID: "leaf", Weight: 1},
	}

	pos := hierarchicalLayout(nodes, edges, 800, 600)

	if !(pos["root"].Y < pos["mid"].Y && pos["mid"].Y < pos["leaf"].Y) {
		t.Errorf("depth layering broken: root %v, mid %v, leaf %v",
			pos["root"].Y, pos["mid"].Y, pos["leaf"].Y)
	}
}

func TestForceLayoutClampsToCanvas(t *testing.T) {
	nodes := make([]memory.GraphNode, 0, 8)
	for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
		nodes = append(nodes, memory.GraphNode{ID: id, Type: "t"})
	}

	pos, err := forceLayout(context.Background(), nodes, nil, 400, 300, 50)
	if err != nil {
		t.Fatalf("forceLayout() err = %v", err)
	}
	for id, p := range pos {
		if p.X < margin || p.X > 400-margin || p.Y < margin || p.Y > 300-margin {
			t.Errorf("node %s at %v escaped the canvas margins", id, p)
		}
	}
}

func TestForceLayoutCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	nodes := []memory.GraphNode{{ID: "a", Type: "t"}, {ID: "b", Type: "t"}}
	_, err := forceLayout(ctx, nodes, nil, 400, 300, 100)
	if !errors.Is(err, errors.ErrCodeTimeout) {
		t.Errorf("cancelled layout err = %v, want TIMEOUT", err)
	}
}

func TestToDOT(t *testing.T) {
	nodes := []memory.GraphNode{
		{ID: "a", Type: "person", Scope: memory.ScopeLocal},
		{ID: "b", Type: "event", Scope: memory.ScopeIdentity},
	}
	edges := []memory.RelationshipEdge{
		{SourceID: "b", TargetID: "a", RelationshipType: "host", Weight: 1},
	}

	dot := ToDOT(nodes, edges)
	for _, want := range []string{"digraph memory", `"a"`, `"b"`, `"b" -> "a" [label="host"]`} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT missing %q:\n%s", want, dot)
		}
	}
}

func TestWrapHTML(t *testing.T) {
	svg := []byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`)
	html := string(WrapHTML(svg, "my <graph>"))

	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("missing doctype")
	}
	if !strings.Contains(html, "my &lt;graph&gt;") {
		t.Error("title not escaped")
	}
	if !strings.Contains(html, string(svg)) {
		t.Error("svg body missing")
	}
}

func TestSVGEscapesLabels(t *testing.T) {
	nodes := []memory.GraphNode{{ID: "a<b>", Type: "t", Scope: memory.ScopeLocal}}
	pos := map[string]Point{"a<b>": {X: 100, Y: 100}}

	svg := string(writeSVG(nodes, nil, pos, 400, 300))
	if strings.Contains(svg, "a<b>") {
		t.Error("node ID not escaped in SVG output")
	}
	if !strings.Contains(svg, "a&lt;b&gt;") {
		t.Error("escaped node ID missing")
	}
}
