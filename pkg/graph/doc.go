// Package graph defines the diagram data model shared by every tafarru3 component.
//
// A diagram is a forest of person nodes connected by styled edges. Nodes carry
// a label or a set of onomastic name components (kunya, nasab, nisba, shuhra),
// a death-date annotation, a biography and box styling. Edges carry line,
// arrow and curve styling.
//
// # Hierarchy
//
// A node has at most one parent, stored in [Node.ParentID]. The parent link
// is backed by a hierarchical edge: an edge whose handles follow the fixed
// bottom→top convention (the parent's bottom handle connects to the child's
// top handle). The mirrored top→bottom pairing is also hierarchical, with the
// roles swapped. See [IsHierarchical] and [Edge.ParentChild].
//
// # Immutability
//
// Values of this package are handed out by the graph store as parts of an
// immutable snapshot. Slices are never shared between snapshots in a way that
// permits in-place mutation: callers must treat every [Node] and [Edge] they
// receive as read-only and change the diagram through store operations.
//
// # Serialization
//
// JSON tags mirror the live store shape exactly, so a snapshot marshals to the
// { "nodes": [...], "edges": [...] } backup format without transformation.
// BSON tags are provided for the MongoDB session backend.
package graph
