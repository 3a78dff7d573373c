package graph

import "fmt"

// Shape is the outline of a node box.
type Shape string

// Node shapes.
const (
	ShapeRectangle Shape = "rectangle"
	ShapeRounded   Shape = "rounded"
)

// BorderStyle is the stroke pattern of a node border.
type BorderStyle string

// Border styles.
const (
	BorderSolid  BorderStyle = "solid"
	BorderDashed BorderStyle = "dashed"
	BorderDotted BorderStyle = "dotted"
)

// LineStyle is the stroke pattern of an edge.
type LineStyle string

// Line styles.
const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

// ArrowStyle selects which edge ends carry an arrowhead.
type ArrowStyle string

// Arrow styles.
const (
	ArrowNone  ArrowStyle = "none"
	ArrowStart ArrowStyle = "start"
	ArrowEnd   ArrowStyle = "end"
	ArrowBoth  ArrowStyle = "both"
)

// CurveStyle selects the edge path geometry.
type CurveStyle string

// Curve styles.
const (
	CurveStraight CurveStyle = "straight"
	CurveCurve    CurveStyle = "curve"
	CurveBezier   CurveStyle = "bezier"
	CurveElbow    CurveStyle = "elbow"
)

// Handle names the side of a node an edge attaches to.
type Handle string

// Handles.
const (
	HandleTop    Handle = "top"
	HandleBottom Handle = "bottom"
	HandleLeft   Handle = "left"
	HandleRight  Handle = "right"
)

// Style defaults.
const (
	DefaultFillColor   = "#ffffff"
	DefaultBorderColor = "#333333"
	DefaultBorderWidth = 1.0
	DefaultLineColor   = "#555555"
	DefaultLineWidth   = 2.0
)

// DefaultNodeData returns the styling applied to newly placed nodes.
func DefaultNodeData() NodeData {
	return NodeData{
		Shape:       ShapeRectangle,
		FillColor:   DefaultFillColor,
		BorderStyle: BorderSolid,
		BorderWidth: DefaultBorderWidth,
		BorderColor: DefaultBorderColor,
	}
}

// DefaultEdgeData returns the styling applied to newly connected edges.
func DefaultEdgeData() EdgeData {
	return EdgeData{
		LineStyle:  LineSolid,
		LineWidth:  DefaultLineWidth,
		LineColor:  DefaultLineColor,
		ArrowStyle: ArrowNone,
		CurveStyle: CurveStraight,
	}
}

// =============================================================================
// Parsing
// =============================================================================

// ParseShape parses a shape name. The empty string yields the default.
func ParseShape(s string) (Shape, error) {
	switch Shape(s) {
	case "":
		return ShapeRectangle, nil
	case ShapeRectangle, ShapeRounded:
		return Shape(s), nil
	}
	return "", fmt.Errorf("unknown node shape %q", s)
}

// ParseBorderStyle parses a border style. The empty string yields the default.
func ParseBorderStyle(s string) (BorderStyle, error) {
	switch BorderStyle(s) {
	case "":
		return BorderSolid, nil
	case BorderSolid, BorderDashed, BorderDotted:
		return BorderStyle(s), nil
	}
	return "", fmt.Errorf("unknown border style %q", s)
}

// ParseLineStyle parses a line style. The empty string yields the default.
func ParseLineStyle(s string) (LineStyle, error) {
	switch LineStyle(s) {
	case "":
		return LineSolid, nil
	case LineSolid, LineDashed, LineDotted:
		return LineStyle(s), nil
	}
	return "", fmt.Errorf("unknown line style %q", s)
}

// ParseArrowStyle parses an arrow style. The empty string yields the default.
func ParseArrowStyle(s string) (ArrowStyle, error) {
	switch ArrowStyle(s) {
	case "":
		return ArrowNone, nil
	case ArrowNone, ArrowStart, ArrowEnd, ArrowBoth:
		return ArrowStyle(s), nil
	}
	return "", fmt.Errorf("unknown arrow style %q", s)
}

// ParseCurveStyle parses a curve style. The empty string yields the default.
func ParseCurveStyle(s string) (CurveStyle, error) {
	switch CurveStyle(s) {
	case "":
		return CurveStraight, nil
	case CurveStraight, CurveCurve, CurveBezier, CurveElbow:
		return CurveStyle(s), nil
	}
	return "", fmt.Errorf("unknown curve style %q", s)
}

// ParseHandle parses a handle name. The empty string is allowed and means
// "let the render layer choose".
func ParseHandle(s string) (Handle, error) {
	switch Handle(s) {
	case "", HandleTop, HandleBottom, HandleLeft, HandleRight:
		return Handle(s), nil
	}
	return "", fmt.Errorf("unknown handle %q", s)
}
