package store

import (
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
)

// NodeSpec describes a node to add. A nil Data uses [graph.DefaultNodeData].
type NodeSpec struct {
	Position graph.Position
	Size     *graph.Size
	Data     *graph.NodeData
}

// AddNode appends a node with the next free id and returns that id. It
// returns "" only when the store is closed.
func (s *Store) AddNode(spec NodeSpec) string {
	var id string
	s.update("addNode", func(cur *State) *State {
		id = ids.NextID(cur.Nodes)
		data := graph.DefaultNodeData()
		if spec.Data != nil {
			data = *spec.Data
		}
		n := graph.Node{ID: id, Position: spec.Position, Data: data}
		if spec.Size != nil {
			sz := *spec.Size
			n.Size = &sz
		}
		next := cur.clone()
		next.Nodes = append(next.Nodes, n)
		next.UnsavedChanges = true
		return next
	})
	return id
}

// UpdateNode merges patch into the node's data.
func (s *Store) UpdateNode(id string, patch graph.NodePatch) bool {
	return s.UpdateNodes([]string{id}, patch)
}

// UpdateNodes applies the same patch to every listed node in one operation.
// This is the style broadcast used by a multi-selection inspector. Unknown
// ids are skipped.
func (s *Store) UpdateNodes(idList []string, patch graph.NodePatch) bool {
	return s.update("updateNodes", func(cur *State) *State {
		want := toSet(idList)
		var next *State
		for i, n := range cur.Nodes {
			if !want[n.ID] {
				continue
			}
			data := patch.Apply(n.Data)
			if data == n.Data {
				continue
			}
			if next == nil {
				next = cur.clone()
			}
			next.Nodes[i].Data = data
		}
		if next == nil {
			s.ignored("updateNodes", "ids", idList)
			return nil
		}
		next.UnsavedChanges = true
		return next
	})
}

// MoveNode sets a node's position. Moving a node to where it already is
// changes nothing, so repeated drag updates are idempotent.
func (s *Store) MoveNode(id string, pos graph.Position) bool {
	return s.MoveNodes(map[string]graph.Position{id: pos})
}

// MoveNodes sets several positions in one operation.
func (s *Store) MoveNodes(positions map[string]graph.Position) bool {
	return s.update("moveNodes", func(cur *State) *State {
		return cur.withPositions(positions)
	})
}

// ApplyPositions commits the output of an automatic layout.
func (s *Store) ApplyPositions(positions map[string]graph.Position) bool {
	return s.update("applyPositions", func(cur *State) *State {
		return cur.withPositions(positions)
	})
}

func (s *State) withPositions(positions map[string]graph.Position) *State {
	var next *State
	for i, n := range s.Nodes {
		pos, ok := positions[n.ID]
		if !ok || pos == n.Position {
			continue
		}
		if next == nil {
			next = s.clone()
		}
		next.Nodes[i].Position = pos
	}
	if next != nil {
		next.UnsavedChanges = true
	}
	return next
}

// ResizeNode sets an explicit box size. A nil size returns the node to
// automatic sizing.
func (s *Store) ResizeNode(id string, size *graph.Size) bool {
	return s.update("resizeNode", func(cur *State) *State {
		i := slices.IndexFunc(cur.Nodes, func(n graph.Node) bool { return n.ID == id })
		if i < 0 {
			s.ignored("resizeNode", "id", id)
			return nil
		}
		old := cur.Nodes[i].Size
		if (old == nil && size == nil) || (old != nil && size != nil && *old == *size) {
			return nil
		}
		next := cur.clone()
		if size == nil {
			next.Nodes[i].Size = nil
		} else {
			sz := *size
			next.Nodes[i].Size = &sz
		}
		next.UnsavedChanges = true
		return next
	})
}

// DeleteNodes removes the listed nodes together with every edge touching
// them, clears parent links that pointed at them, and renumbers the
// survivors to node-1..node-N. Unknown ids are skipped.
func (s *Store) DeleteNodes(idList []string) bool {
	return s.update("deleteNodes", func(cur *State) *State {
		return cur.withoutNodes(toSet(idList), nil)
	})
}

// DeleteSelected removes the selected nodes and edges in one operation.
func (s *Store) DeleteSelected() bool {
	return s.update("deleteSelected", func(cur *State) *State {
		if cur.Selection.Empty() {
			return nil
		}
		return cur.withoutNodes(toSet(cur.Selection.Nodes), toSet(cur.Selection.Edges))
	})
}

// withoutNodes builds the snapshot with the given nodes and edges removed.
// It returns nil when nothing would change.
func (s *State) withoutNodes(nodeSet, edgeSet map[string]bool) *State {
	removedNodes := false
	for _, n := range s.Nodes {
		if nodeSet[n.ID] {
			removedNodes = true
			break
		}
	}
	removedEdges := false
	for _, e := range s.Edges {
		if edgeSet[e.ID] {
			removedEdges = true
			break
		}
	}
	if !removedNodes && !removedEdges {
		return nil
	}

	next := s.clone()
	if removedEdges {
		next.Edges = dropEdges(next, edgeSet)
	}
	if removedNodes {
		kept := make([]graph.Node, 0, len(next.Nodes))
		for _, n := range next.Nodes {
			if nodeSet[n.ID] {
				continue
			}
			if nodeSet[n.ParentID] {
				n.ParentID = ""
			}
			kept = append(kept, n)
		}
		edges := make([]graph.Edge, 0, len(next.Edges))
		for _, e := range next.Edges {
			if !nodeSet[e.Source] && !nodeSet[e.Target] {
				edges = append(edges, e)
			}
		}
		next.pruneSelectionAgainst(kept, edges)
		res := ids.Renumber(kept, edges, next.Selection)
		next.Nodes = res.Nodes
		next.Edges = res.Edges
		next.Selection = res.Selection
	} else {
		next.pruneSelection()
	}
	next.UnsavedChanges = true
	return next
}

func (s *State) pruneSelectionAgainst(nodes []graph.Node, edges []graph.Edge) {
	s.Nodes, s.Edges = nodes, edges
	s.pruneSelection()
}

func toSet(list []string) map[string]bool {
	m := make(map[string]bool, len(list))
	for _, id := range list {
		m[id] = true
	}
	return m
}
