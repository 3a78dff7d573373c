// Package ids assigns and renumbers node identifiers.
//
// Node ids have the form "node-<n>" with n a positive integer. New nodes take
// the next number after the current maximum; after any deletion the live set
// is renumbered to the contiguous sequence node-1..node-N, preserving the
// relative order of the old numbers, and every reference (edge endpoints,
// parent links, selection) is rewritten through the old→new mapping.
//
// All functions are pure: inputs are never modified.
package ids

import (
	"slices"
	"strconv"
	"strings"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// Prefix is the fixed part of every node id.
const Prefix = "node-"

// Format returns the id for sequence number n.
func Format(n int) string { return Prefix + strconv.Itoa(n) }

// Suffix returns the numeric part of id. ok is false when id does not have
// the node-<positive integer> form.
func Suffix(id string) (n int, ok bool) {
	rest, found := strings.CutPrefix(id, Prefix)
	if !found || rest == "" {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// Compare orders ids by numeric suffix. Ids without a valid suffix sort after
// all numbered ids, lexically among themselves.
func Compare(a, b string) int {
	na, oka := Suffix(a)
	nb, okb := Suffix(b)
	switch {
	case oka && okb:
		return na - nb
	case oka:
		return -1
	case okb:
		return 1
	}
	return strings.Compare(a, b)
}

// NextID returns node-<max+1>, where max is the greatest numeric suffix among
// nodes (0 if none).
func NextID(nodes []graph.Node) string {
	max := 0
	for _, n := range nodes {
		if v, ok := Suffix(n.ID); ok && v > max {
			max = v
		}
	}
	return Format(max + 1)
}

// IsContiguous reports whether the node ids are exactly node-1..node-N.
func IsContiguous(nodes []graph.Node) bool {
	seen := make([]bool, len(nodes)+1)
	for _, n := range nodes {
		v, ok := Suffix(n.ID)
		if !ok || v > len(nodes) || seen[v] {
			return false
		}
		seen[v] = true
	}
	return true
}

// Mapping is an old→new id translation.
type Mapping map[string]string

// Identity reports whether the mapping renames nothing.
func (m Mapping) Identity() bool {
	for from, to := range m {
		if from != to {
			return false
		}
	}
	return true
}

// Result is the output of [Renumber].
type Result struct {
	Nodes     []graph.Node
	Edges     []graph.Edge
	Selection graph.Selection
	Mapping   Mapping
}

// Renumber sorts nodes by numeric suffix, assigns node-1..node-N in that order
// and rewrites every reference. Edge endpoints and parent links that do not
// name a node in the input are left unchanged; selected ids that do not name
// a node or edge are dropped. Running Renumber on an already contiguous set
// changes no id.
func Renumber(nodes []graph.Node, edges []graph.Edge, sel graph.Selection) Result {
	order := make([]int, len(nodes))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return Compare(nodes[a].ID, nodes[b].ID)
	})

	mapping := make(Mapping, len(nodes))
	for rank, idx := range order {
		mapping[nodes[idx].ID] = Format(rank + 1)
	}

	outNodes := make([]graph.Node, len(nodes))
	for rank, idx := range order {
		n := nodes[idx]
		n.ID = mapping[n.ID]
		if to, ok := mapping[n.ParentID]; ok {
			n.ParentID = to
		}
		outNodes[rank] = n
	}

	outEdges := make([]graph.Edge, len(edges))
	edgeIDs := make(map[string]bool, len(edges))
	for i, e := range edges {
		if to, ok := mapping[e.Source]; ok {
			e.Source = to
		}
		if to, ok := mapping[e.Target]; ok {
			e.Target = to
		}
		outEdges[i] = e
		edgeIDs[e.ID] = true
	}

	var outSel graph.Selection
	for _, id := range sel.Nodes {
		if to, ok := mapping[id]; ok {
			outSel.Nodes = append(outSel.Nodes, to)
		}
	}
	for _, id := range sel.Edges {
		if edgeIDs[id] {
			outSel.Edges = append(outSel.Edges, id)
		}
	}

	return Result{Nodes: outNodes, Edges: outEdges, Selection: outSel, Mapping: mapping}
}
