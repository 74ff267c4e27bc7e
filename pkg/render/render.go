// Package render produces SVG visualizations of the memory graph.
//
// Rendering is read-only over the store and index: a subgraph is selected by
// filter, positioned by one of the layout algorithms, and written as a
// self-contained SVG document sized exactly to the requested dimensions.
// Options are validated before any store access, and an empty selection is a
// valid render that yields an empty canvas.
package render

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/graphmem/graphmem/pkg/clock"
	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/index"
	"github.com/graphmem/graphmem/pkg/memory"
	"github.com/graphmem/graphmem/pkg/observability"
)

// Layout selects the positioning algorithm.
type Layout string

// Supported layouts.
const (
	// LayoutForce places nodes with a deterministic force simulation.
	LayoutForce Layout = "force"
	// LayoutTimeline places nodes on a time axis with one lane per type.
	LayoutTimeline Layout = "timeline"
	// LayoutHierarchical layers nodes by graph depth from the roots.
	LayoutHierarchical Layout = "hierarchical"
)

// Rendering defaults, applied at the flag layer rather than inside Render:
// an explicit zero width or limit keeps its literal meaning there.
const (
	DefaultWidth  = 1200
	DefaultHeight = 800
	DefaultHours  = 24
	DefaultLimit  = 100

	// DefaultMaxIterations caps the force simulation.
	DefaultMaxIterations = 200
)

// Options selects and sizes a render.
type Options struct {
	// NodeType and Scope filter the subgraph. Empty matches everything.
	NodeType string
	Scope    memory.Scope

	// Hours restricts nodes to those created within the window ending now.
	// Zero defaults to DefaultHours; negative disables the window.
	Hours int

	// Layout defaults to force.
	Layout Layout

	// Width and Height size the SVG canvas. Both must be positive.
	Width  int
	Height int

	// Limit caps the number of rendered nodes, newest updates first. Zero
	// selects no nodes and yields an empty canvas; negative disables the cap.
	Limit int
}

// Config tunes the renderer.
type Config struct {
	// MaxIterations caps the force simulation. Zero falls back to
	// DefaultMaxIterations.
	MaxIterations int
}

// Renderer draws subgraphs of the store as SVG.
type Renderer struct {
	store   *memory.Store
	index   *index.Index
	clk     clock.Clock
	maxIter int
}

// New creates a renderer over the store and index.
func New(store *memory.Store, ix *index.Index, clk clock.Clock, cfg Config) *Renderer {
	maxIter := cfg.MaxIterations
	if maxIter <= 0 {
		maxIter = DefaultMaxIterations
	}
	return &Renderer{store: store, index: ix, clk: clk, maxIter: maxIter}
}

// Render selects the subgraph matching opts, lays it out, and returns the
// SVG document.
func (r *Renderer) Render(ctx context.Context, opts Options) ([]byte, error) {
	opts, err := normalize(opts)
	if err != nil {
		return nil, err
	}
	started := time.Now()

	nodes, edges, err := r.selectSubgraph(ctx, opts)
	if err != nil {
		observability.Render().OnRenderComplete(ctx, string(opts.Layout), time.Since(started), err)
		return nil, err
	}
	observability.Render().OnRenderStart(ctx, string(opts.Layout), len(nodes))

	var positions map[string]Point
	switch opts.Layout {
	case LayoutTimeline:
		positions = timelineLayout(nodes, opts.Width, opts.Height)
	case LayoutHierarchical:
		positions = hierarchicalLayout(nodes, edges, opts.Width, opts.Height)
	default:
		positions, err = forceLayout(ctx, nodes, edges, opts.Width, opts.Height, r.maxIter)
		if err != nil {
			observability.Render().OnRenderComplete(ctx, string(opts.Layout), time.Since(started), err)
			return nil, err
		}
	}

	svg := writeSVG(nodes, edges, positions, opts.Width, opts.Height)
	observability.Render().OnRenderComplete(ctx, string(opts.Layout), time.Since(started), nil)
	return svg, nil
}

// normalize applies defaults and rejects invalid options. Validation runs
// before any store access so a bad request never touches the backend.
func normalize(opts Options) (Options, error) {
	if opts.Layout == "" {
		opts.Layout = LayoutForce
	}
	switch opts.Layout {
	case LayoutForce, LayoutTimeline, LayoutHierarchical:
	default:
		return opts, errors.New(errors.ErrCodeInvalidLayout, "unknown layout: %q", opts.Layout)
	}

	if opts.Width <= 0 || opts.Height <= 0 {
		return opts, errors.New(errors.ErrCodeValidation,
			"canvas dimensions must be positive, got %dx%d", opts.Width, opts.Height)
	}

	if opts.Scope != "" && !opts.Scope.Valid() {
		return opts, errors.New(errors.ErrCodeInvalidScope, "unknown scope: %q", opts.Scope)
	}

	if opts.Hours == 0 {
		opts.Hours = DefaultHours
	}
	return opts, nil
}

// selectSubgraph picks the nodes matching the filters, most recently updated
// first, and keeps only the edges with both endpoints selected.
func (r *Renderer) selectSubgraph(ctx context.Context, opts Options) ([]memory.GraphNode, []memory.RelationshipEdge, error) {
	nodes, err := r.store.List(ctx, memory.ListOptions{Scope: opts.Scope, Type: opts.NodeType})
	if err != nil {
		return nil, nil, err
	}

	if opts.Hours > 0 {
		cutoff := r.clk.Now().Add(-time.Duration(opts.Hours) * time.Hour)
		nodes = slices.DeleteFunc(nodes, func(n memory.GraphNode) bool {
			return n.CreatedAt.Before(cutoff)
		})
	}

	slices.SortFunc(nodes, func(a, b memory.GraphNode) int {
		if c := b.UpdatedAt.Compare(a.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	if opts.Limit >= 0 && len(nodes) > opts.Limit {
		nodes = nodes[:opts.Limit]
	}

	selected := make(map[string]struct{}, len(nodes))
	for _, n := range nodes {
		selected[n.ID] = struct{}{}
	}

	all, err := r.index.Edges(ctx)
	if err != nil {
		return nil, nil, err
	}
	var edges []memory.RelationshipEdge
	for _, e := range all {
		if _, ok := selected[e.SourceID]; !ok {
			continue
		}
		if _, ok := selected[e.TargetID]; !ok {
			continue
		}
		edges = append(edges, e)
	}

	return nodes, edges, nil
}
