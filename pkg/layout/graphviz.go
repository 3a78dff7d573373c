package layout

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/goccy/go-graphviz"
)

// GraphvizPlacer places nodes with the Graphviz dot engine. Nodes are given
// fixed-size boxes matching their dimensions and the edges of the forest in
// id order, then the center of each box is read back from the rendered SVG.
type GraphvizPlacer struct{}

// Place implements [Placer].
func (GraphvizPlacer) Place(ctx context.Context, f *Forest, opts Options) (map[string]float64, error) {
	if len(f.Order) == 0 {
		return map[string]float64{}, nil
	}
	dot, names := toDOT(f, opts)

	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return parseCenters(buf.Bytes(), names, opts.Direction)
}

// toDOT emits the forest as a DOT digraph. Node names are n<index> so they
// survive SVG escaping unchanged. It returns the DOT text and the node id
// for every name.
func toDOT(f *Forest, opts Options) (string, map[string]string) {
	names := make(map[string]string, len(f.Order))
	index := make(map[string]string, len(f.Order))
	for i, id := range f.Order {
		name := "n" + strconv.Itoa(i)
		names[name] = id
		index[id] = name
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	fmt.Fprintf(&buf, "  rankdir=%s;\n", opts.Direction)
	buf.WriteString("  ordering=out;\n")
	fmt.Fprintf(&buf, "  ranksep=%s;\n", inches(opts.RankSep))
	fmt.Fprintf(&buf, "  nodesep=%s;\n", inches(opts.NodeSep))
	buf.WriteString("  node [shape=box, fixedsize=true, label=\"\"];\n")
	buf.WriteString("\n")
	for _, id := range f.Order {
		w, h := f.Size(id)
		fmt.Fprintf(&buf, "  %s [width=%s, height=%s];\n", index[id], inches(w), inches(h))
	}
	buf.WriteString("\n")
	for _, id := range f.Order {
		for _, c := range f.Children[id] {
			fmt.Fprintf(&buf, "  %s -> %s;\n", index[id], index[c])
		}
	}
	buf.WriteString("}\n")
	return buf.String(), names
}

func inches(px float64) string {
	return strconv.FormatFloat(px/72, 'f', 4, 64)
}

var nodeShapeRe = regexp.MustCompile(`<title>(n\d+)</title>\s*<polygon[^>]*points="([^"]+)"`)

// parseCenters extracts the cross-axis center of every node polygon.
func parseCenters(svg []byte, names map[string]string, d Direction) (map[string]float64, error) {
	centers := make(map[string]float64, len(names))
	for _, m := range nodeShapeRe.FindAllSubmatch(svg, -1) {
		id, ok := names[string(m[1])]
		if !ok {
			continue
		}
		lo, hi, err := pointRange(string(m[2]), d == LeftRight)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", id, err)
		}
		centers[id] = (lo + hi) / 2
	}
	if len(centers) != len(names) {
		return nil, fmt.Errorf("graphviz placed %d of %d nodes", len(centers), len(names))
	}
	return centers, nil
}

// pointRange returns the minimum and maximum x (or y) of an SVG points list.
func pointRange(points string, useY bool) (lo, hi float64, err error) {
	fields := strings.Fields(points)
	if len(fields) == 0 {
		return 0, 0, fmt.Errorf("empty polygon")
	}
	for i, p := range fields {
		xs, ys, ok := strings.Cut(p, ",")
		if !ok {
			return 0, 0, fmt.Errorf("bad point %q", p)
		}
		raw := xs
		if useY {
			raw = ys
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("bad point %q: %w", p, err)
		}
		if i == 0 || v < lo {
			lo = v
		}
		if i == 0 || v > hi {
			hi = v
		}
	}
	return lo, hi, nil
}
