package graph

// NodePatch is a field-level update of [NodeData]. Nil fields keep their
// current value.
type NodePatch struct {
	Label     *string `json:"label,omitempty"`
	Kunya     *string `json:"kunya,omitempty"`
	Nasab     *string `json:"nasab,omitempty"`
	Nisba     *string `json:"nisba,omitempty"`
	Shuhra    *string `json:"shuhra,omitempty"`
	DeathDate *string `json:"deathDate,omitempty"`
	Biography *string `json:"biography,omitempty"`

	Shape       *Shape       `json:"shape,omitempty"`
	FillColor   *string      `json:"fillColor,omitempty"`
	BorderStyle *BorderStyle `json:"borderStyle,omitempty"`
	BorderWidth *float64     `json:"borderWidth,omitempty"`
	BorderColor *string      `json:"borderColor,omitempty"`
}

// Apply returns d with every non-nil patch field merged in.
func (p NodePatch) Apply(d NodeData) NodeData {
	setStr(&d.Label, p.Label)
	setStr(&d.Kunya, p.Kunya)
	setStr(&d.Nasab, p.Nasab)
	setStr(&d.Nisba, p.Nisba)
	setStr(&d.Shuhra, p.Shuhra)
	setStr(&d.DeathDate, p.DeathDate)
	setStr(&d.Biography, p.Biography)
	if p.Shape != nil {
		d.Shape = *p.Shape
	}
	setStr(&d.FillColor, p.FillColor)
	if p.BorderStyle != nil {
		d.BorderStyle = *p.BorderStyle
	}
	if p.BorderWidth != nil {
		d.BorderWidth = *p.BorderWidth
	}
	setStr(&d.BorderColor, p.BorderColor)
	return d
}

// IsEmpty reports whether the patch changes nothing.
func (p NodePatch) IsEmpty() bool { return p == NodePatch{} }

// EdgePatch is a field-level update of [EdgeData]. Nil fields keep their
// current value. A non-nil ControlPoints replaces the whole point list.
type EdgePatch struct {
	Label         *string     `json:"label,omitempty"`
	LineStyle     *LineStyle  `json:"lineStyle,omitempty"`
	LineWidth     *float64    `json:"lineWidth,omitempty"`
	LineColor     *string     `json:"lineColor,omitempty"`
	ArrowStyle    *ArrowStyle `json:"arrowStyle,omitempty"`
	CurveStyle    *CurveStyle `json:"curveStyle,omitempty"`
	ControlPoints *[]Position `json:"controlPoints,omitempty"`
}

// Apply returns d with every non-nil patch field merged in.
func (p EdgePatch) Apply(d EdgeData) EdgeData {
	setStr(&d.Label, p.Label)
	if p.LineStyle != nil {
		d.LineStyle = *p.LineStyle
	}
	if p.LineWidth != nil {
		d.LineWidth = *p.LineWidth
	}
	setStr(&d.LineColor, p.LineColor)
	if p.ArrowStyle != nil {
		d.ArrowStyle = *p.ArrowStyle
	}
	if p.CurveStyle != nil {
		d.CurveStyle = *p.CurveStyle
	}
	if p.ControlPoints != nil {
		d.ControlPoints = append([]Position(nil), (*p.ControlPoints)...)
	}
	return d
}

func setStr(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

// Ptr returns a pointer to v. It keeps patch literals short:
//
//	graph.NodePatch{Label: graph.Ptr("Ahmad")}
func Ptr[T any](v T) *T { return &v }
