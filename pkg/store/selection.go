package store

import (
	"slices"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// SetSelection replaces both selection sets. Ids that are not live are
// dropped; nothing else changes.
func (s *Store) SetSelection(sel graph.Selection) bool {
	return s.update("setSelection", func(cur *State) *State {
		return cur.withSelection(sel)
	})
}

// SelectNodes replaces the node selection and leaves the edge selection as is.
func (s *Store) SelectNodes(idList ...string) bool {
	return s.update("selectNodes", func(cur *State) *State {
		return cur.withSelection(graph.Selection{Nodes: idList, Edges: cur.Selection.Edges})
	})
}

// SelectEdges replaces the edge selection and leaves the node selection as is.
func (s *Store) SelectEdges(idList ...string) bool {
	return s.update("selectEdges", func(cur *State) *State {
		return cur.withSelection(graph.Selection{Nodes: cur.Selection.Nodes, Edges: idList})
	})
}

func (s *State) withSelection(sel graph.Selection) *State {
	next := s.clone()
	next.Selection = graph.Selection{
		Nodes: dedupe(sel.Nodes),
		Edges: dedupe(sel.Edges),
	}
	next.pruneSelection()
	if selectionEqual(next.Selection, s.Selection) {
		return nil
	}
	return next
}

// ClearSelection empties both selection sets.
func (s *Store) ClearSelection() bool {
	return s.SetSelection(graph.Selection{})
}

// SetMode switches the editor interaction mode. Unknown modes are ignored.
func (s *Store) SetMode(m graph.Mode) bool {
	return s.update("setMode", func(cur *State) *State {
		if !m.Valid() || cur.Mode == m {
			return nil
		}
		next := cur.clone()
		next.Mode = m
		return next
	})
}

// SetGridEnabled toggles snapping to the background grid.
func (s *Store) SetGridEnabled(on bool) bool {
	return s.update("setGridEnabled", func(cur *State) *State {
		if cur.GridEnabled == on {
			return nil
		}
		next := cur.clone()
		next.GridEnabled = on
		return next
	})
}

// ToggleGrid flips the grid flag.
func (s *Store) ToggleGrid() bool {
	return s.update("toggleGrid", func(cur *State) *State {
		next := cur.clone()
		next.GridEnabled = !cur.GridEnabled
		return next
	})
}

func dedupe(list []string) []string {
	var out []string
	seen := make(map[string]bool, len(list))
	for _, id := range list {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func selectionEqual(a, b graph.Selection) bool {
	return slices.Equal(a.Nodes, b.Nodes) && slices.Equal(a.Edges, b.Edges)
}
