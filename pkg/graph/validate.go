package graph

import (
	"errors"
	"fmt"
)

var (
	// ErrEmptyNodeID is returned by [Validate] when a node has no id.
	ErrEmptyNodeID = errors.New("node ID must not be empty")

	// ErrDuplicateNodeID is returned by [Validate] when two nodes share an id.
	ErrDuplicateNodeID = errors.New("duplicate node ID")

	// ErrDanglingEdge is returned by [Validate] when an edge endpoint is not a
	// live node.
	ErrDanglingEdge = errors.New("edge references unknown node")

	// ErrUnknownParent is returned by [Validate] when ParentID names a node
	// that does not exist.
	ErrUnknownParent = errors.New("parent references unknown node")

	// ErrSelfParent is returned by [Validate] when a node is its own parent.
	ErrSelfParent = errors.New("node is its own parent")

	// ErrDuplicateParentEdge is returned by [Validate] when a node is the
	// child end of more than one hierarchical edge.
	ErrDuplicateParentEdge = errors.New("node has more than one parent edge")

	// ErrParentMismatch is returned by [Validate] when a hierarchical edge
	// names a parent other than the child's ParentID.
	ErrParentMismatch = errors.New("parent edge disagrees with parent ID")
)

// Validate checks the structural invariants of a document: unique non-empty
// node ids, edges between live nodes, parent links to other live nodes, and at
// most one hierarchical edge per child, agreeing with its ParentID.
// It does not check id contiguity, ancestor cycles, or that every ParentID is
// backed by an edge.
func Validate(d Document) error {
	seen := make(map[string]bool, len(d.Nodes))
	for _, n := range d.Nodes {
		if n.ID == "" {
			return ErrEmptyNodeID
		}
		if seen[n.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicateNodeID, n.ID)
		}
		seen[n.ID] = true
	}
	for _, n := range d.Nodes {
		if n.ParentID == "" {
			continue
		}
		if n.ParentID == n.ID {
			return fmt.Errorf("%w: %s", ErrSelfParent, n.ID)
		}
		if !seen[n.ParentID] {
			return fmt.Errorf("%w: %s -> %s", ErrUnknownParent, n.ID, n.ParentID)
		}
	}
	parentOf := make(map[string]string, len(d.Nodes))
	for _, n := range d.Nodes {
		parentOf[n.ID] = n.ParentID
	}
	hasParentEdge := make(map[string]bool)
	for _, e := range d.Edges {
		if !seen[e.Source] || !seen[e.Target] {
			return fmt.Errorf("%w: %s (%s -> %s)", ErrDanglingEdge, e.ID, e.Source, e.Target)
		}
		parent, child, ok := e.ParentChild()
		if !ok {
			continue
		}
		if hasParentEdge[child] {
			return fmt.Errorf("%w: %s (%s)", ErrDuplicateParentEdge, child, e.ID)
		}
		hasParentEdge[child] = true
		if parentOf[child] != parent {
			return fmt.Errorf("%w: %s (%s -> %s, parentId %q)", ErrParentMismatch, e.ID, parent, child, parentOf[child])
		}
	}
	return nil
}

// NodeIndex maps node ids to their slice positions.
func NodeIndex(nodes []Node) map[string]int {
	m := make(map[string]int, len(nodes))
	for i, n := range nodes {
		m[n.ID] = i
	}
	return m
}

// NodeIDs extracts ids in slice order.
func NodeIDs(nodes []Node) []string {
	ids := make([]string, len(nodes))
	for i, n := range nodes {
		ids[i] = n.ID
	}
	return ids
}
