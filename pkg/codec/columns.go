package codec

import "strings"

// Column names of the CSV format.
const (
	ColID             = "ID"
	ColParentID       = "ParentID"
	ColLabel          = "Label"
	ColDeathDate      = "DeathDate"
	ColKunya          = "Kunya"
	ColNasab          = "Nasab"
	ColNisba          = "Nisba"
	ColShuhra         = "Shuhra"
	ColBiography      = "Biography"
	ColNodeShape      = "NodeShape"
	ColNodeFillColor  = "NodeFillColor"
	ColBorderStyle    = "BorderStyle"
	ColBorderWidth    = "BorderWidth"
	ColBorderColor    = "BorderColor"
	ColLineStyle      = "LineStyle"
	ColLineWidth      = "LineWidth"
	ColLineColor      = "LineColor"
	ColArrowStyle     = "ArrowStyle"
	ColLineLabel      = "LineLabel"
	ColX              = "X"
	ColY              = "Y"
	ColWidth          = "Width"
	ColHeight         = "Height"
	ColConnectionData = "ConnectionData"

	// Legacy connection columns, accepted on import only.
	ColConnections      = "Connections"
	ColConnectionStyles = "ConnectionStyles"
	ColConnectionLabels = "ConnectionLabels"
)

// Header is the column order written by [EncodeCSV].
var Header = []string{
	ColID, ColParentID, ColLabel, ColDeathDate, ColKunya, ColNasab, ColNisba,
	ColShuhra, ColBiography, ColNodeShape, ColNodeFillColor, ColBorderStyle,
	ColBorderWidth, ColBorderColor, ColLineStyle, ColLineWidth, ColLineColor,
	ColArrowStyle, ColLineLabel, ColX, ColY, ColWidth, ColHeight,
	ColConnectionData,
}

const bom = "\ufeff"

// row gives access to one record by column name.
type row struct {
	num    int
	index  map[string]int
	fields []string
}

// text returns the raw value of col, or "" when the column is absent or the
// record is short.
func (r row) text(col string) string {
	i, ok := r.index[col]
	if !ok || i >= len(r.fields) {
		return ""
	}
	return r.fields[i]
}

// get returns the value of col with surrounding whitespace removed. It is
// used for ids, numbers and enum values.
func (r row) get(col string) string {
	return strings.TrimSpace(r.text(col))
}
