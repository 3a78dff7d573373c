package codec

import (
	"bufio"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
	"github.com/ammusto/tafarru3/pkg/layout"
	"github.com/ammusto/tafarru3/pkg/store"
)

// DecodeOptions configures [DecodeCSV].
type DecodeOptions struct {
	// Layout is used when a row lacks coordinates.
	Layout layout.Options
	// EdgeID generates edge ids. Nil means [store.NewEdgeID].
	EdgeID store.EdgeIDFunc
}

// Result is a decoded diagram.
type Result struct {
	Document graph.Document
	// Legacy is true when connections were read from the legacy columns
	// because no row carried ConnectionData.
	Legacy bool
	// LaidOut is true when positions were computed because a row lacked X
	// or Y.
	LaidOut bool
	// Dropped counts hierarchical connections discarded because they
	// contradicted a row's ParentID, repeated a child's parent edge, or
	// closed an ancestor loop.
	Dropped int
}

// DecodeCSV reads a diagram written by [EncodeCSV] or by an older version of
// the format.
//
// Node ids are reassigned node-1..node-N in row order; ParentID and
// connection targets may use any ids as long as they name a row of the same
// file. Decoding is all-or-nothing: any malformed row fails the whole file
// with an [apperr.ErrCodeInvalidFormat] error wrapping an [apperr.RowError].
func DecodeCSV(ctx context.Context, r io.Reader, opts DecodeOptions) (*Result, error) {
	if opts.EdgeID == nil {
		opts.EdgeID = store.NewEdgeID
	}

	br := bufio.NewReader(r)
	if b, err := br.Peek(len(bom)); err == nil && string(b) == bom {
		_, _ = br.Discard(len(bom))
	}
	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "malformed CSV")
	}
	if len(records) == 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "file is empty")
	}

	index := headerIndexOf(records[0])
	if _, ok := index[ColID]; !ok {
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "missing required column %q", ColID)
	}

	var rows []row
	for i, fields := range records[1:] {
		if blank(fields) {
			continue
		}
		rows = append(rows, row{num: i + 1, index: index, fields: fields})
	}

	d := &decoder{opts: opts, rows: rows, newID: make(map[string]string, len(rows))}
	if err := d.decode(); err != nil {
		return nil, err
	}
	res := &Result{
		Document: graph.Document{Nodes: d.nodes, Edges: d.edges},
		Legacy:   d.legacy,
		Dropped:  d.dropped,
	}

	if d.missingXY {
		positions, err := layout.Layout(ctx, res.Document.Nodes, res.Document.Edges, opts.Layout)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInternal, err, "layout imported diagram")
		}
		for i := range res.Document.Nodes {
			res.Document.Nodes[i].Position = positions[res.Document.Nodes[i].ID]
		}
		res.LaidOut = true
	}

	if err := graph.Validate(res.Document); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "invalid diagram")
	}
	return res, nil
}

// ImportCSV decodes the CSV file at path.
func ImportCSV(ctx context.Context, path string, opts DecodeOptions) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", path)
		}
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return DecodeCSV(ctx, f, opts)
}

// knownColumns maps lower-cased column names to their canonical spelling.
var knownColumns = func() map[string]string {
	m := make(map[string]string)
	for _, col := range append(Header, ColConnections, ColConnectionStyles, ColConnectionLabels) {
		m[strings.ToLower(col)] = col
	}
	return m
}()

// headerIndexOf maps canonical column names to record positions. Column
// names are matched case-insensitively; unknown columns are ignored.
func headerIndexOf(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, bom))
		if col, ok := knownColumns[strings.ToLower(name)]; ok {
			if _, dup := index[col]; !dup {
				index[col] = i
			}
		}
	}
	return index
}

func blank(fields []string) bool {
	for _, f := range fields {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}

type decoder struct {
	opts  DecodeOptions
	rows  []row
	newID map[string]string

	nodes      []graph.Node
	edges      []graph.Edge
	parentEdge []graph.EdgeData // styling from the Line* columns, per row
	hasParent  map[string]bool  // children already given a hierarchical edge
	legacy     bool
	missingXY  bool
	dropped    int
}

func rowError(r row, col string, err error) error {
	return apperr.Wrap(apperr.ErrCodeInvalidFormat, &apperr.RowError{Row: r.num, Column: col, Err: err}, "invalid CSV")
}

func (d *decoder) decode() error {
	for i, r := range d.rows {
		id := r.get(ColID)
		if id == "" {
			return rowError(r, ColID, fmt.Errorf("empty id"))
		}
		if _, dup := d.newID[id]; dup {
			return rowError(r, ColID, fmt.Errorf("duplicate id %q", id))
		}
		d.newID[id] = ids.Format(i + 1)
	}

	d.nodes = make([]graph.Node, 0, len(d.rows))
	d.parentEdge = make([]graph.EdgeData, 0, len(d.rows))
	d.hasParent = make(map[string]bool)
	for _, r := range d.rows {
		n, style, err := d.decodeNode(r)
		if err != nil {
			return err
		}
		d.nodes = append(d.nodes, n)
		d.parentEdge = append(d.parentEdge, style)
	}

	d.legacy = true
	for _, r := range d.rows {
		if r.get(ColConnectionData) != "" {
			d.legacy = false
			break
		}
	}
	for i, r := range d.rows {
		var conns []Connection
		var err error
		if d.legacy {
			conns, err = legacyConnections(r)
		} else {
			conns, err = UnpackConnections(r.text(ColConnectionData))
		}
		if err != nil {
			col := ColConnectionData
			if d.legacy {
				col = ColConnections
			}
			return rowError(r, col, err)
		}
		for _, c := range conns {
			if err := d.addConnection(i, r, c); err != nil {
				return err
			}
		}
	}

	d.breakLoops()
	d.synthesizeParentEdges()
	return nil
}

func (d *decoder) decodeNode(r row) (graph.Node, graph.EdgeData, error) {
	n := graph.Node{ID: d.newID[r.get(ColID)], Data: graph.DefaultNodeData()}
	style := graph.DefaultEdgeData()

	if p := r.get(ColParentID); p != "" {
		mapped, ok := d.newID[p]
		if !ok {
			return n, style, rowError(r, ColParentID, fmt.Errorf("unknown parent %q", p))
		}
		if mapped == n.ID {
			return n, style, rowError(r, ColParentID, graph.ErrSelfParent)
		}
		n.ParentID = mapped
	}

	data := &n.Data
	data.Label = r.text(ColLabel)
	data.DeathDate = r.text(ColDeathDate)
	data.Kunya = r.text(ColKunya)
	data.Nasab = r.text(ColNasab)
	data.Nisba = r.text(ColNisba)
	data.Shuhra = r.text(ColShuhra)
	data.Biography = r.text(ColBiography)

	var err error
	if data.Shape, err = graph.ParseShape(r.get(ColNodeShape)); err != nil {
		return n, style, rowError(r, ColNodeShape, err)
	}
	if data.BorderStyle, err = graph.ParseBorderStyle(r.get(ColBorderStyle)); err != nil {
		return n, style, rowError(r, ColBorderStyle, err)
	}
	if v := r.get(ColNodeFillColor); v != "" {
		data.FillColor = v
	}
	if v := r.get(ColBorderColor); v != "" {
		data.BorderColor = v
	}

	if style.LineStyle, err = graph.ParseLineStyle(r.get(ColLineStyle)); err != nil {
		return n, style, rowError(r, ColLineStyle, err)
	}
	if style.ArrowStyle, err = graph.ParseArrowStyle(r.get(ColArrowStyle)); err != nil {
		return n, style, rowError(r, ColArrowStyle, err)
	}
	if v := r.get(ColLineColor); v != "" {
		style.LineColor = v
	}
	style.Label = r.text(ColLineLabel)

	nums := []struct {
		col string
		dst *float64
	}{
		{ColBorderWidth, &data.BorderWidth},
		{ColLineWidth, &style.LineWidth},
		{ColX, &n.Position.X},
		{ColY, &n.Position.Y},
	}
	for _, f := range nums {
		v, ok, err := parseNumber(r, f.col)
		if err != nil {
			return n, style, err
		}
		if ok {
			*f.dst = v
		} else if f.col == ColX || f.col == ColY {
			d.missingXY = true
		}
	}

	w, okW, err := parseNumber(r, ColWidth)
	if err != nil {
		return n, style, err
	}
	h, okH, err := parseNumber(r, ColHeight)
	if err != nil {
		return n, style, err
	}
	if okW && okH && w > 0 && h > 0 {
		n.Size = &graph.Size{Width: w, Height: h}
	}
	return n, style, nil
}

// parseNumber parses a numeric column. ok is false for an empty cell.
func parseNumber(r row, col string) (v float64, ok bool, err error) {
	s := r.get(col)
	if s == "" {
		return 0, false, nil
	}
	v, err = strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false, rowError(r, col, fmt.Errorf("not a number: %q", s))
	}
	return v, true, nil
}

// addConnection turns one tuple from row i into an edge. A hierarchical
// tuple sets the child's parent when the child's row left ParentID empty.
// It is dropped when it names a different parent or when the child already
// has a hierarchical edge.
func (d *decoder) addConnection(i int, r row, c Connection) error {
	target, ok := d.newID[c.Target]
	if !ok {
		return rowError(r, d.connectionColumn(), fmt.Errorf("unknown connection target %q", c.Target))
	}
	source := d.nodes[i].ID
	if target == source {
		return rowError(r, d.connectionColumn(), fmt.Errorf("connection from %q to itself", c.Target))
	}
	e := graph.Edge{
		ID:           d.opts.EdgeID(source, target),
		Source:       source,
		Target:       target,
		SourceHandle: c.SourceHandle,
		TargetHandle: c.TargetHandle,
		Data:         c.edgeData(),
	}
	if parent, child, hier := e.ParentChild(); hier {
		if d.hasParent[child] {
			d.dropped++
			return nil
		}
		ci := d.nodeIndex(child)
		switch d.nodes[ci].ParentID {
		case "":
			d.nodes[ci].ParentID = parent
		case parent:
		default:
			d.dropped++
			return nil
		}
		d.hasParent[child] = true
	}
	d.edges = append(d.edges, e)
	return nil
}

func (d *decoder) connectionColumn() string {
	if d.legacy {
		return ColConnections
	}
	return ColConnectionData
}

// nodeIndex returns the slice position of a decoded id; ids are node-<i+1>.
func (d *decoder) nodeIndex(id string) int {
	n, _ := ids.Suffix(id)
	return n - 1
}

// breakLoops clears the parent link of the lowest-numbered node in every
// ancestor loop, together with any edge that expressed it.
func (d *decoder) breakLoops() {
	forest := layout.NewForest(d.nodes, nil)
	for i, n := range d.nodes {
		if n.ParentID == "" || forest.Parent[n.ID] == n.ParentID {
			continue
		}
		parent := n.ParentID
		d.nodes[i].ParentID = ""
		d.dropped++
		kept := d.edges[:0]
		for _, e := range d.edges {
			if p, c, ok := e.ParentChild(); ok && p == parent && c == n.ID {
				continue
			}
			kept = append(kept, e)
		}
		d.edges = kept
	}
}

// synthesizeParentEdges adds the canonical hierarchical edge for every
// parent link not already expressed by a decoded connection.
func (d *decoder) synthesizeParentEdges() {
	expressed := make(map[[2]string]bool)
	for _, e := range d.edges {
		if p, c, ok := e.ParentChild(); ok {
			expressed[[2]string{p, c}] = true
		}
	}
	for i, n := range d.nodes {
		if n.ParentID == "" || expressed[[2]string{n.ParentID, n.ID}] {
			continue
		}
		d.edges = append(d.edges, graph.Edge{
			ID:           d.opts.EdgeID(n.ParentID, n.ID),
			Source:       n.ParentID,
			Target:       n.ID,
			SourceHandle: graph.HandleBottom,
			TargetHandle: graph.HandleTop,
			Data:         d.parentEdge[i],
		})
	}
	if d.edges == nil {
		d.edges = []graph.Edge{}
	}
}
