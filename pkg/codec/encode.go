package codec

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/ammusto/tafarru3/pkg/graph"
)

// EncodeCSV writes doc to w in the current CSV format.
//
// Each node's parent link is taken from its ParentID. The edge backing that
// link is folded into the Line* columns when it uses the canonical
// bottom-to-top handles and a straight path; any other edge, including
// hierarchical edges that cannot be folded, is packed into ConnectionData
// on the row of its source node.
func EncodeCSV(w io.Writer, doc graph.Document) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	folded := foldedEdges(doc)
	outgoing := make(map[string][]Connection, len(doc.Nodes))
	for _, e := range doc.Edges {
		if f, ok := folded[e.Target]; ok && f.ID == e.ID {
			continue
		}
		outgoing[e.Source] = append(outgoing[e.Source], connectionFromEdge(e, e.Target))
	}

	for _, n := range doc.Nodes {
		rec := encodeNode(n)
		if e, ok := folded[n.ID]; ok {
			rec.set(ColLineStyle, string(e.Data.LineStyle))
			rec.set(ColLineWidth, formatFloat(e.Data.LineWidth))
			rec.set(ColLineColor, e.Data.LineColor)
			rec.set(ColArrowStyle, string(e.Data.ArrowStyle))
			rec.set(ColLineLabel, e.Data.Label)
		}
		rec.set(ColConnectionData, PackConnections(outgoing[n.ID]))
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write node %s: %w", n.ID, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// ExportCSV writes doc to a CSV file at path.
func ExportCSV(doc graph.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodeCSV(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// record is one output row in [Header] order.
type record []string

var headerIndex = func() map[string]int {
	m := make(map[string]int, len(Header))
	for i, col := range Header {
		m[col] = i
	}
	return m
}()

func (r record) set(col, v string) { r[headerIndex[col]] = v }

func encodeNode(n graph.Node) record {
	rec := make(record, len(Header))
	d := n.Data
	rec.set(ColID, n.ID)
	rec.set(ColParentID, n.ParentID)
	rec.set(ColLabel, d.Label)
	rec.set(ColDeathDate, d.DeathDate)
	rec.set(ColKunya, d.Kunya)
	rec.set(ColNasab, d.Nasab)
	rec.set(ColNisba, d.Nisba)
	rec.set(ColShuhra, d.Shuhra)
	rec.set(ColBiography, d.Biography)
	rec.set(ColNodeShape, string(d.Shape))
	rec.set(ColNodeFillColor, d.FillColor)
	rec.set(ColBorderStyle, string(d.BorderStyle))
	rec.set(ColBorderWidth, formatFloat(d.BorderWidth))
	rec.set(ColBorderColor, d.BorderColor)
	rec.set(ColX, formatPixels(n.Position.X))
	rec.set(ColY, formatPixels(n.Position.Y))
	if n.Size != nil {
		rec.set(ColWidth, formatPixels(n.Size.Width))
		rec.set(ColHeight, formatPixels(n.Size.Height))
	}
	return rec
}

// foldedEdges returns, per child id, the edge expressed by the ParentID and
// Line* columns of the child's row.
func foldedEdges(doc graph.Document) map[string]graph.Edge {
	parents := make(map[string]string, len(doc.Nodes))
	for _, n := range doc.Nodes {
		if n.ParentID != "" {
			parents[n.ID] = n.ParentID
		}
	}
	out := make(map[string]graph.Edge)
	for _, e := range doc.Edges {
		if e.Source != parents[e.Target] || !canonicalParentEdge(e) {
			continue
		}
		if _, dup := out[e.Target]; !dup {
			out[e.Target] = e
		}
	}
	return out
}

// canonicalParentEdge reports whether e can be rebuilt from a ParentID and
// the Line* columns alone.
func canonicalParentEdge(e graph.Edge) bool {
	return e.SourceHandle == graph.HandleBottom &&
		e.TargetHandle == graph.HandleTop &&
		(e.Data.CurveStyle == "" || e.Data.CurveStyle == graph.CurveStraight) &&
		len(e.Data.ControlPoints) == 0
}

// formatPixels rounds v to a whole pixel.
func formatPixels(v float64) string {
	v = math.Round(v)
	if v == 0 {
		v = 0 // drop the sign of -0
	}
	return formatFloat(v)
}
