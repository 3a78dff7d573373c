package store

import (
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// ConnectSpec describes an edge to create. A nil Data uses
// [graph.DefaultEdgeData].
type ConnectSpec struct {
	Source       string
	Target       string
	SourceHandle graph.Handle
	TargetHandle graph.Handle
	Data         *graph.EdgeData
}

// Connect creates an edge and returns its id.
//
// When the handles form a hierarchical pair the child's ParentID is set to
// the parent. A child that already has a parent is re-parented: its previous
// hierarchical edge is replaced rather than duplicated. The operation is
// ignored (returning "", false) when either endpoint is not live, when source
// and target are the same node, or when the new parent link would close an
// ancestor cycle.
func (s *Store) Connect(spec ConnectSpec) (string, bool) {
	var id string
	ok := s.update("connect", func(cur *State) *State {
		if spec.Source == spec.Target {
			s.ignored("connect", "reason", "self loop", "id", spec.Source)
			return nil
		}
		if !cur.HasNode(spec.Source) || !cur.HasNode(spec.Target) {
			s.ignored("connect", "reason", "unknown node", "source", spec.Source, "target", spec.Target)
			return nil
		}

		data := graph.DefaultEdgeData()
		if spec.Data != nil {
			data = *spec.Data
			data.ControlPoints = slices.Clone(spec.Data.ControlPoints)
		}
		e := graph.Edge{
			ID:           s.edgeID(spec.Source, spec.Target),
			Source:       spec.Source,
			Target:       spec.Target,
			SourceHandle: spec.SourceHandle,
			TargetHandle: spec.TargetHandle,
			Data:         data,
		}

		next := cur.clone()
		if parent, child, hier := e.ParentChild(); hier {
			if slices.Contains(cur.Ancestors(parent), child) {
				s.ignored("connect", "reason", "ancestor cycle", "parent", parent, "child", child)
				return nil
			}
			next.Edges = slices.DeleteFunc(next.Edges, func(old graph.Edge) bool {
				_, c, ok := old.ParentChild()
				return ok && c == child
			})
			for i := range next.Nodes {
				if next.Nodes[i].ID == child {
					next.Nodes[i].ParentID = parent
				}
			}
			next.pruneSelection()
		}
		next.Edges = append(next.Edges, e)
		next.UnsavedChanges = true
		id = e.ID
		return next
	})
	return id, ok
}

// DeleteEdges removes the listed edges. Removing the hierarchical edge that
// backs a parent link clears the child's ParentID. Unknown ids are skipped.
func (s *Store) DeleteEdges(idList []string) bool {
	return s.update("deleteEdges", func(cur *State) *State {
		return cur.withoutNodes(nil, toSet(idList))
	})
}

// UpdateEdge merges patch into the edge's style. Unspecified fields keep
// their previous value.
func (s *Store) UpdateEdge(id string, patch graph.EdgePatch) bool {
	return s.UpdateEdges([]string{id}, patch)
}

// UpdateEdges applies the same patch to every listed edge in one operation.
func (s *Store) UpdateEdges(idList []string, patch graph.EdgePatch) bool {
	return s.update("updateEdges", func(cur *State) *State {
		want := toSet(idList)
		var next *State
		for i, e := range cur.Edges {
			if !want[e.ID] {
				continue
			}
			if next == nil {
				next = cur.clone()
			}
			next.Edges[i].Data = patch.Apply(e.Data)
		}
		if next == nil {
			s.ignored("updateEdges", "ids", idList)
			return nil
		}
		next.UnsavedChanges = true
		return next
	})
}

// dropEdges returns next.Edges without the edges in set and clears every
// parent link that was backed by a removed hierarchical edge and is not
// backed by a surviving one.
func dropEdges(next *State, set map[string]bool) []graph.Edge {
	kept := make([]graph.Edge, 0, len(next.Edges))
	cleared := make(map[string]string) // child -> parent
	for _, e := range next.Edges {
		if !set[e.ID] {
			kept = append(kept, e)
			continue
		}
		if p, c, ok := e.ParentChild(); ok {
			cleared[c] = p
		}
	}
	for _, e := range kept {
		if p, c, ok := e.ParentChild(); ok && cleared[c] == p {
			delete(cleared, c)
		}
	}
	for i, n := range next.Nodes {
		if p, ok := cleared[n.ID]; ok && n.ParentID == p {
			next.Nodes[i].ParentID = ""
		}
	}
	return kept
}
