package codec

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// Connection is one tuple of the packed ConnectionData field.
type Connection struct {
	Target        string
	Curve         graph.CurveStyle
	SourceHandle  graph.Handle
	TargetHandle  graph.Handle
	LineStyle     graph.LineStyle
	LineColor     string
	ArrowStyle    graph.ArrowStyle
	Label         string
	ControlPoints []graph.Position
	// LineWidth is omitted from the tuple when zero.
	LineWidth float64
}

const baseFields = 8

var (
	escaper   = strings.NewReplacer("%", "%25", ",", "%2C", ";", "%3B")
	unescaper = strings.NewReplacer("%25", "%", "%2C", ",", "%2c", ",", "%3B", ";", "%3b", ";")
)

func escape(s string) string   { return escaper.Replace(s) }
func unescape(s string) string { return unescaper.Replace(s) }

// PackConnections serializes connections into a ConnectionData value.
func PackConnections(conns []Connection) string {
	tuples := make([]string, 0, len(conns))
	for _, c := range conns {
		fields := []string{
			escape(c.Target),
			escape(string(c.Curve)),
			escape(string(c.SourceHandle)),
			escape(string(c.TargetHandle)),
			escape(string(c.LineStyle)),
			escape(c.LineColor),
			escape(string(c.ArrowStyle)),
			escape(c.Label),
		}
		if c.Curve == graph.CurveBezier {
			if len(c.ControlPoints) >= 2 {
				p1, p2 := c.ControlPoints[0], c.ControlPoints[1]
				fields = append(fields, formatFloat(p1.X), formatFloat(p1.Y), formatFloat(p2.X), formatFloat(p2.Y))
			} else {
				fields = append(fields, "", "", "", "")
			}
		}
		if c.LineWidth != 0 {
			fields = append(fields, formatFloat(c.LineWidth))
		}
		tuples = append(tuples, strings.Join(fields, ","))
	}
	return strings.Join(tuples, ";")
}

// UnpackConnections parses a ConnectionData value. Tuples may be shorter
// than the full form; missing trailing fields take their defaults. Empty
// tuples are skipped.
func UnpackConnections(s string) ([]Connection, error) {
	var out []Connection
	for i, tuple := range strings.Split(s, ";") {
		if strings.TrimSpace(tuple) == "" {
			continue
		}
		c, err := unpackTuple(strings.Split(tuple, ","))
		if err != nil {
			return nil, fmt.Errorf("connection %d: %w", i+1, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func unpackTuple(raw []string) (Connection, error) {
	field := func(i int) string {
		if i >= len(raw) {
			return ""
		}
		return unescape(raw[i])
	}
	trimmed := func(i int) string { return strings.TrimSpace(field(i)) }

	c := Connection{
		Target:    trimmed(0),
		LineColor: trimmed(5),
		Label:     field(7),
	}
	if c.Target == "" {
		return c, fmt.Errorf("missing target")
	}

	var err error
	if c.Curve, err = graph.ParseCurveStyle(trimmed(1)); err != nil {
		return c, err
	}
	if c.SourceHandle, err = graph.ParseHandle(trimmed(2)); err != nil {
		return c, err
	}
	if c.TargetHandle, err = graph.ParseHandle(trimmed(3)); err != nil {
		return c, err
	}
	if c.LineStyle, err = graph.ParseLineStyle(trimmed(4)); err != nil {
		return c, err
	}
	if c.ArrowStyle, err = graph.ParseArrowStyle(trimmed(6)); err != nil {
		return c, err
	}

	rest := raw[min(len(raw), baseFields):]
	if c.Curve == graph.CurveBezier && len(rest) > 0 {
		if len(rest) < 4 {
			return c, fmt.Errorf("bezier connection needs 4 control-point fields, got %d", len(rest))
		}
		if c.ControlPoints, err = parseControlPoints(rest[:4]); err != nil {
			return c, err
		}
		rest = rest[4:]
	}
	switch len(rest) {
	case 0:
	case 1:
		if c.LineWidth, err = parseOptionalFloat(rest[0]); err != nil {
			return c, fmt.Errorf("line width: %w", err)
		}
	default:
		return c, fmt.Errorf("too many fields (%d)", len(raw))
	}
	return c, nil
}

// parseControlPoints parses c1x,c1y,c2x,c2y. All four empty means none.
func parseControlPoints(fields []string) ([]graph.Position, error) {
	empty := true
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			empty = false
		}
	}
	if empty {
		return nil, nil
	}
	var v [4]float64
	for i, f := range fields {
		n, err := strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, fmt.Errorf("control point: %w", err)
		}
		v[i] = n
	}
	return []graph.Position{{X: v[0], Y: v[1]}, {X: v[2], Y: v[3]}}, nil
}

func parseOptionalFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// connectionFromEdge describes e as a tuple of its source row.
func connectionFromEdge(e graph.Edge, target string) Connection {
	c := Connection{
		Target:       target,
		Curve:        e.Data.CurveStyle,
		SourceHandle: e.SourceHandle,
		TargetHandle: e.TargetHandle,
		LineStyle:    e.Data.LineStyle,
		LineColor:    e.Data.LineColor,
		ArrowStyle:   e.Data.ArrowStyle,
		Label:        e.Data.Label,
		LineWidth:    e.Data.LineWidth,
	}
	if c.Curve == graph.CurveBezier {
		c.ControlPoints = e.Data.ControlPoints
	}
	return c
}

// edgeData converts the styling part of a tuple.
func (c Connection) edgeData() graph.EdgeData {
	d := graph.DefaultEdgeData()
	d.CurveStyle = c.Curve
	d.LineStyle = c.LineStyle
	if c.LineColor != "" {
		d.LineColor = c.LineColor
	}
	d.ArrowStyle = c.ArrowStyle
	d.Label = c.Label
	if c.LineWidth > 0 {
		d.LineWidth = c.LineWidth
	}
	if len(c.ControlPoints) > 0 {
		d.ControlPoints = append([]graph.Position(nil), c.ControlPoints...)
	}
	return d
}
