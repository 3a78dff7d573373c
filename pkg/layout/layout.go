package layout

import (
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
	"github.com/ammusto/tafarru3/pkg/store"
)

// Layout computes a position for every node.
//
// # Algorithm
//
//  1. Build the parent [Forest] and rank every node by depth.
//  2. Place ranks along the main axis: a rank starts where the previous one
//     ended (its tallest box along that axis) plus RankSep.
//  3. Ask the placer for raw cross-axis centers.
//  4. Re-lay every sibling group with NodeSep gaps around its centroid.
//  5. Translate the result so its minimum coordinates equal Margin.
//
// The returned map holds the top-left corner of every node in nodes.
func Layout(ctx context.Context, nodes []graph.Node, edges []graph.Edge, opts Options) (map[string]graph.Position, error) {
	opts = opts.withDefaults()
	if opts.Direction != TopBottom && opts.Direction != LeftRight {
		return nil, fmt.Errorf("unknown layout direction %q", opts.Direction)
	}
	out := make(map[string]graph.Position, len(nodes))
	if len(nodes) == 0 {
		return out, nil
	}

	f := NewForest(nodes, edges)
	mainPos := rankOffsets(f, opts)

	raw, err := opts.Placer.Place(ctx, f, opts)
	if err != nil {
		return nil, fmt.Errorf("place: %w", err)
	}
	for _, id := range f.Order {
		if _, ok := raw[id]; !ok {
			return nil, fmt.Errorf("place: no coordinate for %s", id)
		}
	}
	cross := correctSiblings(f, raw, opts)

	minMain, minCross := math.Inf(1), math.Inf(1)
	for _, id := range f.Order {
		minMain = math.Min(minMain, mainPos[id])
		minCross = math.Min(minCross, cross[id])
	}
	for _, id := range f.Order {
		m := mainPos[id] - minMain + opts.Margin
		c := cross[id] - minCross + opts.Margin
		if opts.Direction == LeftRight {
			out[id] = graph.Position{X: m, Y: c}
		} else {
			out[id] = graph.Position{X: c, Y: m}
		}
	}
	return out, nil
}

// rankOffsets returns the main-axis start of every node.
func rankOffsets(f *Forest, opts Options) map[string]float64 {
	extent := make([]float64, f.Ranks)
	for _, id := range f.Order {
		r := f.Rank[id]
		extent[r] = math.Max(extent[r], mainExtent(f, id, opts.Direction))
	}
	start := make([]float64, f.Ranks)
	for r := 1; r < f.Ranks; r++ {
		start[r] = start[r-1] + extent[r-1] + opts.RankSep
	}
	out := make(map[string]float64, len(f.Order))
	for _, id := range f.Order {
		out[id] = start[f.Rank[id]]
	}
	return out
}

// correctSiblings returns the cross-axis start (left or top edge) of every
// node after sibling groups are re-laid with NodeSep gaps.
func correctSiblings(f *Forest, raw map[string]float64, opts Options) map[string]float64 {
	groups := [][]string{f.Roots}
	for _, id := range f.Order {
		if kids := f.Children[id]; len(kids) > 0 {
			groups = append(groups, kids)
		}
	}

	out := make(map[string]float64, len(f.Order))
	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		members := slices.Clone(group)
		slices.SortStableFunc(members, func(a, b string) int {
			if raw[a] < raw[b] {
				return -1
			}
			if raw[a] > raw[b] {
				return 1
			}
			return ids.Compare(a, b)
		})

		total, centroid := 0.0, 0.0
		for i, id := range members {
			if i > 0 {
				total += opts.NodeSep
			}
			total += crossExtent(f, id, opts.Direction)
			centroid += raw[id]
		}
		centroid /= float64(len(members))

		cursor := centroid - total/2
		for _, id := range members {
			out[id] = cursor
			cursor += crossExtent(f, id, opts.Direction) + opts.NodeSep
		}
	}
	return out
}

// Apply lays out the store's current graph and commits the positions as one
// operation.
func Apply(ctx context.Context, s *store.Store, opts Options) error {
	st := s.State()
	positions, err := Layout(ctx, st.Nodes, st.Edges, opts)
	if err != nil {
		return err
	}
	s.ApplyPositions(positions)
	return nil
}
