package graph

import (
	"strings"
)

// Box dimensions used when a node has no explicit size.
const (
	DefaultNodeWidth  = 150.0
	DefaultNodeHeight = 50.0
)

// =============================================================================
// Geometry
// =============================================================================

// Position is a point in diagram space. For nodes it is the top-left corner
// of the node's box.
type Position struct {
	X float64 `json:"x" bson:"x"`
	Y float64 `json:"y" bson:"y"`
}

// Size is an explicit node box size.
type Size struct {
	Width  float64 `json:"width" bson:"width"`
	Height float64 `json:"height" bson:"height"`
}

// =============================================================================
// Node
// =============================================================================

// NodeData holds the user-editable content and styling of a node.
type NodeData struct {
	Label     string `json:"label,omitempty" bson:"label,omitempty"`
	Kunya     string `json:"kunya,omitempty" bson:"kunya,omitempty"`
	Nasab     string `json:"nasab,omitempty" bson:"nasab,omitempty"`
	Nisba     string `json:"nisba,omitempty" bson:"nisba,omitempty"`
	Shuhra    string `json:"shuhra,omitempty" bson:"shuhra,omitempty"`
	DeathDate string `json:"deathDate,omitempty" bson:"death_date,omitempty"`
	Biography string `json:"biography,omitempty" bson:"biography,omitempty"`

	Shape       Shape       `json:"shape" bson:"shape"`
	FillColor   string      `json:"fillColor" bson:"fill_color"`
	BorderStyle BorderStyle `json:"borderStyle" bson:"border_style"`
	BorderWidth float64     `json:"borderWidth" bson:"border_width"`
	BorderColor string      `json:"borderColor" bson:"border_color"`
}

// DisplayName returns the label if set, otherwise the onomastic components
// joined in conventional order with the shuhra in parentheses.
func (d NodeData) DisplayName() string {
	if d.Label != "" {
		return d.Label
	}
	var parts []string
	for _, p := range []string{d.Kunya, d.Nasab, d.Nisba} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if s := strings.TrimSpace(d.Shuhra); s != "" {
		parts = append(parts, "("+s+")")
	}
	return strings.Join(parts, " ")
}

// Node is one person in the diagram.
type Node struct {
	ID       string   `json:"id" bson:"id"`
	Position Position `json:"position" bson:"position"`
	// Size is nil when the render layer sizes the box automatically.
	Size     *Size    `json:"size,omitempty" bson:"size,omitempty"`
	Data     NodeData `json:"data" bson:"data"`
	ParentID string   `json:"parentId,omitempty" bson:"parent_id,omitempty"`
}

// Dimensions returns the explicit size, or the default box when unset.
func (n Node) Dimensions() (w, h float64) {
	if n.Size == nil || n.Size.Width <= 0 || n.Size.Height <= 0 {
		return DefaultNodeWidth, DefaultNodeHeight
	}
	return n.Size.Width, n.Size.Height
}

// HasParent reports whether ParentID is set.
func (n Node) HasParent() bool { return n.ParentID != "" }

// =============================================================================
// Edge
// =============================================================================

// EdgeData holds the styling of an edge.
type EdgeData struct {
	Label      string     `json:"label,omitempty" bson:"label,omitempty"`
	LineStyle  LineStyle  `json:"lineStyle" bson:"line_style"`
	LineWidth  float64    `json:"lineWidth" bson:"line_width"`
	LineColor  string     `json:"lineColor" bson:"line_color"`
	ArrowStyle ArrowStyle `json:"arrowStyle" bson:"arrow_style"`
	CurveStyle CurveStyle `json:"curveStyle" bson:"curve_style"`
	// ControlPoints are curve-specific coordinates; bezier edges use two.
	ControlPoints []Position `json:"controlPoints,omitempty" bson:"control_points,omitempty"`
}

// Edge is a directed visual connection between two nodes.
type Edge struct {
	ID           string   `json:"id" bson:"id"`
	Source       string   `json:"source" bson:"source"`
	Target       string   `json:"target" bson:"target"`
	SourceHandle Handle   `json:"sourceHandle" bson:"source_handle"`
	TargetHandle Handle   `json:"targetHandle" bson:"target_handle"`
	Data         EdgeData `json:"data" bson:"data"`
}

// IsHierarchical reports whether the edge uses a parent/child handle pairing.
func (e Edge) IsHierarchical() bool { return IsHierarchical(e.SourceHandle, e.TargetHandle) }

// ParentChild returns the parent and child ids implied by a hierarchical
// edge. ok is false for ordinary connections.
func (e Edge) ParentChild() (parent, child string, ok bool) {
	switch {
	case e.SourceHandle == HandleBottom && e.TargetHandle == HandleTop:
		return e.Source, e.Target, true
	case e.SourceHandle == HandleTop && e.TargetHandle == HandleBottom:
		return e.Target, e.Source, true
	}
	return "", "", false
}

// Touches reports whether the edge has id as source or target.
func (e Edge) Touches(id string) bool { return e.Source == id || e.Target == id }

// IsHierarchical reports whether a handle pair encodes a parent/child link.
func IsHierarchical(source, target Handle) bool {
	return (source == HandleBottom && target == HandleTop) ||
		(source == HandleTop && target == HandleBottom)
}

// =============================================================================
// Selection & Mode
// =============================================================================

// Selection is the set of selected node and edge ids, in selection order.
type Selection struct {
	Nodes []string `json:"nodes" bson:"nodes"`
	Edges []string `json:"edges" bson:"edges"`
}

// Empty reports whether nothing is selected.
func (s Selection) Empty() bool { return len(s.Nodes) == 0 && len(s.Edges) == 0 }

// Mode is the editor interaction mode read by the render layer.
type Mode string

// Editor modes.
const (
	ModeSelect  Mode = "select"
	ModeAddNode Mode = "add"
	ModeConnect Mode = "connect"
	ModePan     Mode = "pan"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	switch m {
	case ModeSelect, ModeAddNode, ModeConnect, ModePan:
		return true
	}
	return false
}

// =============================================================================
// Document
// =============================================================================

// Document is the { nodes, edges } pair exchanged with codecs, the layout
// engine and session backends.
type Document struct {
	Nodes []Node `json:"nodes" bson:"nodes"`
	Edges []Edge `json:"edges" bson:"edges"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	return Document{Nodes: CloneNodes(d.Nodes), Edges: CloneEdges(d.Edges)}
}

// CloneNodes deep-copies a node slice, including Size pointers.
func CloneNodes(nodes []Node) []Node {
	if nodes == nil {
		return nil
	}
	out := make([]Node, len(nodes))
	for i, n := range nodes {
		if n.Size != nil {
			s := *n.Size
			n.Size = &s
		}
		out[i] = n
	}
	return out
}

// CloneEdges deep-copies an edge slice, including control points.
func CloneEdges(edges []Edge) []Edge {
	if edges == nil {
		return nil
	}
	out := make([]Edge, len(edges))
	for i, e := range edges {
		if e.Data.ControlPoints != nil {
			e.Data.ControlPoints = append([]Position(nil), e.Data.ControlPoints...)
		}
		out[i] = e
	}
	return out
}
