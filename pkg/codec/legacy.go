package codec

import (
	"fmt"
	"strings"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// legacyConnections reads the Connections, ConnectionStyles and
// ConnectionLabels columns of an older file. The three columns are
// semicolon-separated lists in the same order; a style entry is
// "lineStyle,lineColor,arrowStyle". Missing style or label entries take the
// defaults. Legacy connections carry no handles.
func legacyConnections(r row) ([]Connection, error) {
	targets := splitList(r.text(ColConnections))
	if len(targets) == 0 {
		return nil, nil
	}
	styles := splitList(r.text(ColConnectionStyles))
	labels := splitList(r.text(ColConnectionLabels))

	out := make([]Connection, 0, len(targets))
	for i, t := range targets {
		t = strings.TrimSpace(unescape(t))
		if t == "" {
			continue
		}
		c := Connection{Target: t, Curve: graph.CurveStraight}
		var err error
		if i < len(styles) {
			if c.LineStyle, c.LineColor, c.ArrowStyle, err = parseLegacyStyle(styles[i]); err != nil {
				return nil, fmt.Errorf("connection %d: %w", i+1, err)
			}
		} else {
			c.LineStyle, c.ArrowStyle = graph.LineSolid, graph.ArrowNone
		}
		if i < len(labels) {
			c.Label = unescape(labels[i])
		}
		out = append(out, c)
	}
	return out, nil
}

func parseLegacyStyle(s string) (graph.LineStyle, string, graph.ArrowStyle, error) {
	parts := strings.Split(s, ",")
	get := func(i int) string {
		if i >= len(parts) {
			return ""
		}
		return strings.TrimSpace(unescape(parts[i]))
	}
	ls, err := graph.ParseLineStyle(get(0))
	if err != nil {
		return "", "", "", err
	}
	as, err := graph.ParseArrowStyle(get(2))
	if err != nil {
		return "", "", "", err
	}
	return ls, get(1), as, nil
}

// splitList splits a semicolon-separated column. An empty value yields no
// entries.
func splitList(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return strings.Split(s, ";")
}
