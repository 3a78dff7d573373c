// Package codec reads and writes diagrams as CSV and JSON.
//
// # CSV Format
//
// Files are UTF-8 with a byte-order mark and a header row. Each data row is
// one node:
//
//	ID, ParentID, Label, DeathDate, Kunya, Nasab, Nisba, Shuhra, Biography,
//	NodeShape, NodeFillColor, BorderStyle, BorderWidth, BorderColor,
//	LineStyle, LineWidth, LineColor, ArrowStyle, LineLabel,
//	X, Y, Width, Height, ConnectionData
//
// The Line* columns style the hierarchical edge that joins the node to its
// parent. Every other edge leaving the node is packed into ConnectionData as
// a semicolon-separated list of comma-separated tuples:
//
//	target,curve,sourceHandle,targetHandle,lineStyle,lineColor,arrowStyle,label[,c1x,c1y,c2x,c2y][,lineWidth]
//
// The four control-point fields are present only when curve is "bezier".
// Text inside a tuple escapes "%", "," and ";" as %25, %2C and %3B.
// Coordinates are written as whole pixels.
//
// # Legacy Files
//
// Older files have no ConnectionData column and describe connections with
// three parallel semicolon-separated columns: Connections (target ids),
// ConnectionStyles (lineStyle,lineColor,arrowStyle per connection) and
// ConnectionLabels. [DecodeCSV] picks one interpretation for the whole file:
// if any row carries ConnectionData the legacy columns are ignored.
//
// In both modes the parent link comes from ParentID. A hierarchical edge is
// synthesized for every parent link the connection data does not already
// express, so parent edges are neither duplicated nor lost.
//
// # Positioning
//
// If any row lacks X or Y, the decoded diagram is laid out with
// [layout.Layout] before it is returned; import always yields a fully
// positioned diagram.
//
// # JSON Format
//
// [WriteJSON] and [ReadJSON] use the live store shape {"nodes": [...],
// "edges": [...]} for full-fidelity backups.
package codec
