package store

import (
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
)

// State is an immutable snapshot of the store.
type State struct {
	Nodes          []graph.Node    `json:"nodes"`
	Edges          []graph.Edge    `json:"edges"`
	Selection      graph.Selection `json:"selection"`
	Mode           graph.Mode      `json:"mode"`
	GridEnabled    bool            `json:"gridEnabled"`
	UnsavedChanges bool            `json:"unsavedChanges"`
	ProjectName    string          `json:"projectName,omitempty"`
	// Version increases by one with every committed operation.
	Version uint64 `json:"version"`
}

// Document returns a deep copy of the nodes and edges.
func (s *State) Document() graph.Document {
	return graph.Document{Nodes: graph.CloneNodes(s.Nodes), Edges: graph.CloneEdges(s.Edges)}
}

// Node returns the live node with the given id.
func (s *State) Node(id string) (graph.Node, bool) {
	for _, n := range s.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return graph.Node{}, false
}

// Edge returns the edge with the given id.
func (s *State) Edge(id string) (graph.Edge, bool) {
	for _, e := range s.Edges {
		if e.ID == id {
			return e, true
		}
	}
	return graph.Edge{}, false
}

// HasNode reports whether id is a live node.
func (s *State) HasNode(id string) bool {
	_, ok := s.Node(id)
	return ok
}

// Children returns the ids of nodes whose ParentID is id, ordered by id.
func (s *State) Children(id string) []string {
	var out []string
	for _, n := range s.Nodes {
		if n.ParentID == id {
			out = append(out, n.ID)
		}
	}
	slices.SortFunc(out, ids.Compare)
	return out
}

// Ancestors returns the parent chain of id, nearest first. The walk stops at
// a root or when it would revisit a node.
func (s *State) Ancestors(id string) []string {
	parents := make(map[string]string, len(s.Nodes))
	for _, n := range s.Nodes {
		parents[n.ID] = n.ParentID
	}
	var out []string
	seen := map[string]bool{id: true}
	for p := parents[id]; p != "" && !seen[p]; p = parents[p] {
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// SelectedNodes returns the selected nodes in selection order.
func (s *State) SelectedNodes() []graph.Node {
	idx := graph.NodeIndex(s.Nodes)
	out := make([]graph.Node, 0, len(s.Selection.Nodes))
	for _, id := range s.Selection.Nodes {
		if i, ok := idx[id]; ok {
			out = append(out, s.Nodes[i])
		}
	}
	return out
}

// clone returns a shallow copy with fresh slice headers. Element values are
// copied when callers replace individual elements.
func (s *State) clone() *State {
	next := *s
	next.Nodes = slices.Clone(s.Nodes)
	next.Edges = slices.Clone(s.Edges)
	next.Selection = graph.Selection{
		Nodes: slices.Clone(s.Selection.Nodes),
		Edges: slices.Clone(s.Selection.Edges),
	}
	return &next
}

// pruneSelection drops selected ids that are no longer live.
func (s *State) pruneSelection() {
	live := make(map[string]bool, len(s.Nodes))
	for _, n := range s.Nodes {
		live[n.ID] = true
	}
	s.Selection.Nodes = slices.DeleteFunc(s.Selection.Nodes, func(id string) bool { return !live[id] })

	liveEdges := make(map[string]bool, len(s.Edges))
	for _, e := range s.Edges {
		liveEdges[e.ID] = true
	}
	s.Selection.Edges = slices.DeleteFunc(s.Selection.Edges, func(id string) bool { return !liveEdges[id] })
}

func emptyState() *State {
	return &State{
		Nodes: []graph.Node{},
		Edges: []graph.Edge{},
		Mode:  graph.ModeSelect,
	}
}
