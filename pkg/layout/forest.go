package layout

import (
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
)

// Forest is the parent relation of a diagram, reduced to a set of trees.
// Placers read it; they must not modify it.
type Forest struct {
	// Order lists every node id, sorted by numeric suffix.
	Order []string
	// Roots lists parentless nodes in Order.
	Roots []string
	// Parent maps a child id to its parent id. Roots are absent.
	Parent map[string]string
	// Children maps a parent id to its children in Order.
	Children map[string][]string
	// Rank is the depth of each node below its root.
	Rank map[string]int
	// Ranks is the number of distinct ranks.
	Ranks int

	sizes map[string][2]float64
}

// Size returns the box width and height of id.
func (f *Forest) Size(id string) (w, h float64) {
	s := f.sizes[id]
	return s[0], s[1]
}

// NewForest builds the forest for nodes and edges.
//
// A node's parent is its ParentID when that names another live node,
// otherwise the parent end of the first hierarchical edge targeting it.
// Ancestor loops, which cannot be created through the store but may come
// from imported files, are broken by making the node with the lowest id
// suffix in each loop a root.
func NewForest(nodes []graph.Node, edges []graph.Edge) *Forest {
	f := &Forest{
		Order:    make([]string, 0, len(nodes)),
		Parent:   make(map[string]string),
		Children: make(map[string][]string),
		Rank:     make(map[string]int, len(nodes)),
		sizes:    make(map[string][2]float64, len(nodes)),
	}
	live := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if live[n.ID] {
			continue
		}
		live[n.ID] = true
		f.Order = append(f.Order, n.ID)
		w, h := n.Dimensions()
		f.sizes[n.ID] = [2]float64{w, h}
	}
	slices.SortStableFunc(f.Order, ids.Compare)

	for _, n := range nodes {
		if n.ParentID != "" && n.ParentID != n.ID && live[n.ParentID] {
			f.Parent[n.ID] = n.ParentID
		}
	}
	for _, e := range edges {
		p, c, ok := e.ParentChild()
		if !ok || p == c || !live[p] || !live[c] {
			continue
		}
		if _, has := f.Parent[c]; !has {
			f.Parent[c] = p
		}
	}
	f.breakCycles()

	for _, id := range f.Order {
		if p, ok := f.Parent[id]; ok {
			f.Children[p] = append(f.Children[p], id)
		} else {
			f.Roots = append(f.Roots, id)
		}
	}

	queue := slices.Clone(f.Roots)
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		if r := f.Rank[curr] + 1; r > f.Ranks {
			f.Ranks = r
		}
		for _, child := range f.Children[curr] {
			f.Rank[child] = f.Rank[curr] + 1
			queue = append(queue, child)
		}
	}
	return f
}

func (f *Forest) breakCycles() {
	const (
		unvisited = iota
		onPath
		done
	)
	state := make(map[string]int, len(f.Order))
	for _, start := range f.Order {
		var path []string
		curr, ok := start, true
		for ok && state[curr] == unvisited {
			state[curr] = onPath
			path = append(path, curr)
			curr, ok = f.Parent[curr]
		}
		if ok && state[curr] == onPath {
			loop := path[slices.Index(path, curr):]
			delete(f.Parent, slices.MinFunc(loop, ids.Compare))
		}
		for _, id := range path {
			state[id] = done
		}
	}
}
