package render

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"github.com/graphmem/graphmem/pkg/memory"
)

const nodeRadius = 14.0

// scopeFill maps scopes to their canvas colors. Unknown scopes fall back to
// grey.
var scopeFill = map[memory.Scope]string{
	memory.ScopeLocal:       "#4e79a7",
	memory.ScopeIdentity:    "#f28e2b",
	memory.ScopeEnvironment: "#59a14f",
	memory.ScopeCommunity:   "#e15759",
}

// writeSVG emits a self-contained SVG document sized exactly width x height.
// Edges render under nodes, nodes under labels, so labels stay legible on
// dense graphs. An empty graph produces a valid empty canvas.
func writeSVG(nodes []memory.GraphNode, edges []memory.RelationshipEdge, pos map[string]Point, width, height int) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %d %d" width="%d" height="%d">`+"\n",
		width, height, width, height)
	fmt.Fprintf(&buf, "  <rect width=\"%d\" height=\"%d\" fill=\"#ffffff\"/>\n", width, height)

	for _, e := range edges {
		src, okS := pos[e.SourceID]
		dst, okD := pos[e.TargetID]
		if !okS || !okD {
			continue
		}
		stroke := "#bab0ac"
		if e.CrossScope {
			stroke = "#b07aa1"
		}
		fmt.Fprintf(&buf, "  <line x1=\"%.1f\" y1=\"%.1f\" x2=\"%.1f\" y2=\"%.1f\" stroke=\"%s\" stroke-width=\"%.1f\"/>\n",
			src.X, src.Y, dst.X, dst.Y, stroke, 1.0+e.Weight)
	}

	for _, n := range nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		fill, ok := scopeFill[n.Scope]
		if !ok {
			fill = "#79706e"
		}
		fmt.Fprintf(&buf, "  <circle id=\"node-%s\" cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\" fill=\"%s\" stroke=\"#333333\"/>\n",
			escape(n.ID), p.X, p.Y, nodeRadius, fill)
	}

	for _, n := range nodes {
		p, ok := pos[n.ID]
		if !ok {
			continue
		}
		fmt.Fprintf(&buf, "  <text x=\"%.1f\" y=\"%.1f\" font-size=\"11\" font-family=\"sans-serif\" text-anchor=\"middle\" fill=\"#333333\">%s</text>\n",
			p.X, p.Y+nodeRadius+12, escape(label(n)))
	}

	buf.WriteString("</svg>\n")
	return buf.Bytes()
}

// label truncates long IDs so text does not overrun neighboring nodes.
func label(n memory.GraphNode) string {
	const maxLabel = 24
	if len(n.ID) <= maxLabel {
		return n.ID
	}
	return n.ID[:maxLabel-1] + "…"
}

func escape(s string) string {
	var buf bytes.Buffer
	_ = xml.EscapeText(&buf, []byte(s))
	return buf.String()
}

// WrapHTML embeds an SVG document into a minimal standalone HTML page.
func WrapHTML(svg []byte, title string) []byte {
	var buf bytes.Buffer
	buf.WriteString("<!DOCTYPE html>\n<html>\n<head>\n")
	fmt.Fprintf(&buf, "  <meta charset=\"utf-8\">\n  <title>%s</title>\n", escape(title))
	buf.WriteString("  <style>body { margin: 0; display: flex; justify-content: center; background: #f4f4f4; }</style>\n")
	buf.WriteString("</head>\n<body>\n")
	buf.Write(svg)
	buf.WriteString("</body>\n</html>\n")
	return buf.Bytes()
}
