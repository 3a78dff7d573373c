// Package layout computes automatic positions for a family-tree diagram.
//
// # Overview
//
// The parent relation (each node's ParentID, or a hierarchical edge when the
// ParentID is unset) forms a forest. [Layout] assigns each node a rank equal
// to its depth below its root, places the ranks one after another along the
// main axis, and asks a [Placer] for a raw coordinate on the cross axis.
//
// Two placers are provided:
//
//   - [TidyPlacer] centers every parent over the block of its descendants.
//     It is pure Go and the default.
//   - [GraphvizPlacer] runs the Graphviz dot engine and reads node centers
//     back from the rendered SVG.
//
// # Sibling Correction
//
// Raw placements leave uneven gaps between siblings whose boxes differ in
// size. After placement, nodes sharing a parent (parentless nodes form one
// group) are sorted by their raw coordinate and laid out again with exactly
// [Options.NodeSep] pixels between adjacent boxes, centered on the group's
// original centroid.
//
// Finally the drawing is translated so that its minimum x and y both equal
// [Options.Margin]. Positions are the top-left corner of each box.
//
// # Determinism
//
// Given the same nodes, edges and options, Layout returns identical output.
// Siblings with equal raw coordinates are ordered by the numeric suffix of
// their id.
package layout
