package render

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"

	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/memory"
)

// ToDOT converts a subgraph to Graphviz DOT format as an alternative to the
// built-in layouts. Edges are labeled with their relationship type; nodes
// carry their scope color.
func ToDOT(nodes []memory.GraphNode, edges []memory.RelationshipEdge) string {
	var buf bytes.Buffer
	buf.WriteString("digraph memory {\n")
	buf.WriteString("  rankdir=LR;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  node [shape=ellipse, style=filled, fontsize=12, fontcolor=white];\n")
	buf.WriteString("\n")

	for _, n := range nodes {
		fill, ok := scopeFill[n.Scope]
		if !ok {
			fill = "#79706e"
		}
		fmt.Fprintf(&buf, "  %q [label=%q, fillcolor=%q];\n", n.ID, label(n), fill)
	}

	buf.WriteString("\n")
	for _, e := range edges {
		fmt.Fprintf(&buf, "  %q -> %q [label=%q];\n", e.SourceID, e.TargetID, e.RelationshipType)
	}

	buf.WriteString("}\n")
	return buf.String()
}

// RenderDOT selects the subgraph matching opts and returns it in DOT format.
// Layout is delegated to Graphviz, so the layout option is ignored.
func (r *Renderer) RenderDOT(ctx context.Context, opts Options) (string, error) {
	opts, err := normalize(opts)
	if err != nil {
		return "", err
	}
	nodes, edges, err := r.selectSubgraph(ctx, opts)
	if err != nil {
		return "", err
	}
	return ToDOT(nodes, edges), nil
}

// GraphvizSVG renders a DOT graph to SVG using Graphviz.
func GraphvizSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "init graphviz")
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "parse DOT")
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, errors.Wrap(errors.ErrCodeRender, err, "render DOT")
	}
	return buf.Bytes(), nil
}
