package render

import (
	"cmp"
	"context"
	"hash/fnv"
	"math"
	"slices"

	"github.com/graphmem/graphmem/pkg/errors"
	"github.com/graphmem/graphmem/pkg/memory"
)

// Point is a node position in canvas coordinates.
type Point struct {
	X float64
	Y float64
}

// margin keeps node centers away from the canvas edge so labels stay visible.
const margin = 40.0

// forceLayout positions nodes with a spring-and-repulsion simulation.
//
// Initial placement is seeded from a hash of each node ID, so the same graph
// always produces the same picture. The simulation runs at most maxIter
// rounds and checks ctx between rounds.
func forceLayout(ctx context.Context, nodes []memory.GraphNode, edges []memory.RelationshipEdge, width, height, maxIter int) (map[string]Point, error) {
	pos := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return pos, nil
	}

	w, h := float64(width), float64(height)
	for _, n := range nodes {
		pos[n.ID] = seedPoint(n.ID, w, h)
	}
	if len(nodes) == 1 {
		pos[nodes[0].ID] = Point{X: w / 2, Y: h / 2}
		return pos, nil
	}

	// Iteration order must be stable for determinism; map order is not.
	ids := make([]string, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n.ID)
	}
	slices.Sort(ids)

	area := (w - 2*margin) * (h - 2*margin)
	k := math.Sqrt(area / float64(len(nodes)))
	temperature := math.Min(w, h) / 10

	for iter := 0; iter < maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(errors.ErrCodeTimeout, err, "layout interrupted")
		}

		disp := make(map[string]Point, len(ids))

		// Pairwise repulsion.
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				dx, dy, dist := delta(pos[a], pos[b])
				force := k * k / dist
				disp[a] = Point{X: disp[a].X + dx/dist*force, Y: disp[a].Y + dy/dist*force}
				disp[b] = Point{X: disp[b].X - dx/dist*force, Y: disp[b].Y - dy/dist*force}
			}
		}

		// Spring attraction along edges.
		for _, e := range edges {
			dx, dy, dist := delta(pos[e.SourceID], pos[e.TargetID])
			force := dist * dist / k * e.Weight
			disp[e.SourceID] = Point{
				X: disp[e.SourceID].X - dx/dist*force,
				Y: disp[e.SourceID].Y - dy/dist*force,
			}
			disp[e.TargetID] = Point{
				X: disp[e.TargetID].X + dx/dist*force,
				Y: disp[e.TargetID].Y + dy/dist*force,
			}
		}

		for _, id := range ids {
			d := disp[id]
			mag := math.Hypot(d.X, d.Y)
			if mag > 0 {
				step := math.Min(mag, temperature)
				pos[id] = Point{
					X: clamp(pos[id].X+d.X/mag*step, margin, w-margin),
					Y: clamp(pos[id].Y+d.Y/mag*step, margin, h-margin),
				}
			}
		}
		temperature *= 0.95
	}

	return pos, nil
}

// seedPoint derives a stable pseudo-random position from a node ID.
func seedPoint(id string, w, h float64) Point {
	hx := fnv.New64a()
	hx.Write([]byte(id))
	hy := fnv.New64a()
	hy.Write([]byte(id))
	hy.Write([]byte{0})

	fx := float64(hx.Sum64()%10000) / 10000
	fy := float64(hy.Sum64()%10000) / 10000
	return Point{
		X: margin + fx*(w-2*margin),
		Y: margin + fy*(h-2*margin),
	}
}

func delta(a, b Point) (dx, dy, dist float64) {
	dx, dy = a.X-b.X, a.Y-b.Y
	dist = math.Hypot(dx, dy)
	if dist < 0.01 {
		// Coincident points repel along a fixed axis instead of dividing
		// by zero.
		return 0.01, 0.01, 0.01
	}
	return dx, dy, dist
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}

// timelineLayout places nodes left to right by creation time, with one
// horizontal lane per node type.
func timelineLayout(nodes []memory.GraphNode, width, height int) map[string]Point {
	pos := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return pos
	}

	w, h := float64(width), float64(height)

	minT, maxT := nodes[0].CreatedAt, nodes[0].CreatedAt
	laneSet := make(map[string]struct{})
	for _, n := range nodes {
		if n.CreatedAt.Before(minT) {
			minT = n.CreatedAt
		}
		if n.CreatedAt.After(maxT) {
			maxT = n.CreatedAt
		}
		laneSet[n.Type] = struct{}{}
	}

	lanes := make([]string, 0, len(laneSet))
	for t := range laneSet {
		lanes = append(lanes, t)
	}
	slices.Sort(lanes)
	laneOf := make(map[string]int, len(lanes))
	for i, t := range lanes {
		laneOf[t] = i
	}

	span := maxT.Sub(minT)
	laneGap := (h - 2*margin) / float64(len(lanes))

	for _, n := range nodes {
		fx := 0.5
		if span > 0 {
			fx = float64(n.CreatedAt.Sub(minT)) / float64(span)
		}
		pos[n.ID] = Point{
			X: margin + fx*(w-2*margin),
			Y: margin + (float64(laneOf[n.Type])+0.5)*laneGap,
		}
	}
	return pos
}

// hierarchicalLayout layers nodes by BFS depth from the roots (nodes with no
// incoming edges) and spreads each layer horizontally. Nodes unreachable from
// any root, including members of cycles, land on layer zero.
func hierarchicalLayout(nodes []memory.GraphNode, edges []memory.RelationshipEdge, width, height int) map[string]Point {
	pos := make(map[string]Point, len(nodes))
	if len(nodes) == 0 {
		return pos
	}

	children := make(map[string][]string)
	incoming := make(map[string]int, len(nodes))
	for _, n := range nodes {
		incoming[n.ID] = 0
	}
	for _, e := range edges {
		children[e.SourceID] = append(children[e.SourceID], e.TargetID)
		incoming[e.TargetID]++
	}

	depth := make(map[string]int, len(nodes))
	var queue []string
	for _, n := range nodes {
		if incoming[n.ID] == 0 {
			depth[n.ID] = 0
			queue = append(queue, n.ID)
		}
	}
	slices.Sort(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		next := slices.Clone(children[id])
		slices.Sort(next)
		for _, child := range next {
			if _, seen := depth[child]; !seen {
				depth[child] = depth[id] + 1
				queue = append(queue, child)
			}
		}
	}

	maxDepth := 0
	for _, d := range depth {
		maxDepth = max(maxDepth, d)
	}

	layers := make(map[int][]string)
	for _, n := range nodes {
		d := depth[n.ID]
		layers[d] = append(layers[d], n.ID)
	}

	w, h := float64(width), float64(height)
	layerGap := (h - 2*margin) / float64(maxDepth+1)

	for d, ids := range layers {
		slices.SortFunc(ids, func(a, b string) int { return cmp.Compare(a, b) })
		gap := (w - 2*margin) / float64(len(ids))
		for i, id := range ids {
			pos[id] = Point{
				X: margin + (float64(i)+0.5)*gap,
				Y: margin + (float64(d)+0.5)*layerGap,
			}
		}
	}
	return pos
}
