package codec

import (
	"encoding/csv"
	"fmt"
	"io"
)

// templateRow is the example row written by [WriteTemplate].
var templateRow = map[string]string{
	ColID:            "1",
	ColLabel:         "Abu Bakr al-Razi",
	ColDeathDate:     "313/925",
	ColKunya:         "Abu Bakr",
	ColNasab:         "Muhammad b. Zakariyya",
	ColNisba:         "al-Razi",
	ColShuhra:        "Rhazes",
	ColBiography:     "Physician and philosopher of Rayy",
	ColNodeShape:     "rounded",
	ColNodeFillColor: "#ffffff",
	ColBorderStyle:   "solid",
	ColBorderWidth:   "1",
	ColBorderColor:   "#333333",
	ColX:             "50",
	ColY:             "50",
	ColWidth:         "150",
	ColHeight:        "50",
}

// WriteTemplate writes a one-row example file showing the expected columns.
// Leave ParentID empty for a root, or set it to the ID of another row; the
// Line* columns style the edge to that parent.
func WriteTemplate(w io.Writer) error {
	if _, err := io.WriteString(w, bom); err != nil {
		return fmt.Errorf("write BOM: %w", err)
	}
	cw := csv.NewWriter(w)
	rec := make(record, len(Header))
	for col, v := range templateRow {
		rec.set(col, v)
	}
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := cw.Write(rec); err != nil {
		return fmt.Errorf("write row: %w", err)
	}
	cw.Flush()
	return cw.Error()
}
