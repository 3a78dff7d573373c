package store

import (
	"math"
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
)

// Alignment selects the edge or center line nodes are aligned to.
type Alignment string

// Alignments.
const (
	AlignLeft   Alignment = "left"
	AlignCenter Alignment = "center"
	AlignRight  Alignment = "right"
	AlignTop    Alignment = "top"
	AlignMiddle Alignment = "middle"
	AlignBottom Alignment = "bottom"
)

// Axis selects the direction of [Store.DistributeNodes].
type Axis string

// Axes.
const (
	AxisHorizontal Axis = "horizontal"
	AxisVertical   Axis = "vertical"
)

// AlignNodes lines up the listed nodes against the bounding box of the group.
// Fewer than two live nodes, or an unknown alignment, is a no-op.
func (s *Store) AlignNodes(idList []string, a Alignment) bool {
	return s.update("alignNodes", func(cur *State) *State {
		group := liveNodes(cur, idList)
		if len(group) < 2 {
			return nil
		}
		minX, minY := math.Inf(1), math.Inf(1)
		maxX, maxY := math.Inf(-1), math.Inf(-1)
		for _, n := range group {
			w, h := n.Dimensions()
			minX = math.Min(minX, n.Position.X)
			minY = math.Min(minY, n.Position.Y)
			maxX = math.Max(maxX, n.Position.X+w)
			maxY = math.Max(maxY, n.Position.Y+h)
		}

		positions := make(map[string]graph.Position, len(group))
		for _, n := range group {
			w, h := n.Dimensions()
			p := n.Position
			switch a {
			case AlignLeft:
				p.X = minX
			case AlignCenter:
				p.X = (minX+maxX)/2 - w/2
			case AlignRight:
				p.X = maxX - w
			case AlignTop:
				p.Y = minY
			case AlignMiddle:
				p.Y = (minY+maxY)/2 - h/2
			case AlignBottom:
				p.Y = maxY - h
			default:
				return nil
			}
			positions[n.ID] = p
		}
		return cur.withPositions(positions)
	})
}

// DistributeNodes spaces the listed nodes so the gaps between neighbouring
// boxes along axis are equal. The outermost nodes keep their positions.
// Fewer than three live nodes is a no-op.
func (s *Store) DistributeNodes(idList []string, axis Axis) bool {
	return s.update("distributeNodes", func(cur *State) *State {
		group := liveNodes(cur, idList)
		if len(group) < 3 || (axis != AxisHorizontal && axis != AxisVertical) {
			return nil
		}
		start := func(n graph.Node) float64 {
			if axis == AxisHorizontal {
				return n.Position.X
			}
			return n.Position.Y
		}
		extent := func(n graph.Node) float64 {
			w, h := n.Dimensions()
			if axis == AxisHorizontal {
				return w
			}
			return h
		}
		slices.SortStableFunc(group, func(a, b graph.Node) int {
			if d := start(a) - start(b); d != 0 {
				if d < 0 {
					return -1
				}
				return 1
			}
			return ids.Compare(a.ID, b.ID)
		})

		first, last := group[0], group[len(group)-1]
		span := start(last) + extent(last) - start(first)
		total := 0.0
		for _, n := range group {
			total += extent(n)
		}
		gap := (span - total) / float64(len(group)-1)

		positions := make(map[string]graph.Position, len(group))
		cursor := start(first)
		for _, n := range group {
			p := n.Position
			if axis == AxisHorizontal {
				p.X = cursor
			} else {
				p.Y = cursor
			}
			positions[n.ID] = p
			cursor += extent(n) + gap
		}
		return cur.withPositions(positions)
	})
}

func liveNodes(cur *State, idList []string) []graph.Node {
	want := toSet(idList)
	var out []graph.Node
	for _, n := range cur.Nodes {
		if want[n.ID] {
			out = append(out, n)
		}
	}
	return out
}
