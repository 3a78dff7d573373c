package layout

import "context"

// Placer computes the raw cross-axis coordinate of every node: the center x
// for [TopBottom] and the center y for [LeftRight]. Only the relative order
// and the centroid of each sibling group survive the correction pass, so
// placers need not respect box sizes exactly.
type Placer interface {
	Place(ctx context.Context, f *Forest, opts Options) (map[string]float64, error)
}

// crossExtent is the size of a box along the cross axis.
func crossExtent(f *Forest, id string, d Direction) float64 {
	w, h := f.Size(id)
	if d == LeftRight {
		return h
	}
	return w
}

// mainExtent is the size of a box along the main axis.
func mainExtent(f *Forest, id string, d Direction) float64 {
	w, h := f.Size(id)
	if d == LeftRight {
		return w
	}
	return h
}
