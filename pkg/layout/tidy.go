package layout

import "context"

// TidyPlacer centers each parent over the span of its children's subtrees
// and packs sibling subtrees NodeSep apart. Trees are placed side by side in
// root order.
type TidyPlacer struct{}

// Place implements [Placer].
func (TidyPlacer) Place(_ context.Context, f *Forest, opts Options) (map[string]float64, error) {
	span := make(map[string]float64, len(f.Order))
	var measure func(id string) float64
	measure = func(id string) float64 {
		kids := f.Children[id]
		total := 0.0
		for i, c := range kids {
			if i > 0 {
				total += opts.NodeSep
			}
			total += measure(c)
		}
		if own := crossExtent(f, id, opts.Direction); own > total {
			total = own
		}
		span[id] = total
		return total
	}

	centers := make(map[string]float64, len(f.Order))
	var place func(id string, start float64)
	place = func(id string, start float64) {
		centers[id] = start + span[id]/2
		kids := f.Children[id]
		block := 0.0
		for i, c := range kids {
			if i > 0 {
				block += opts.NodeSep
			}
			block += span[c]
		}
		cursor := start + (span[id]-block)/2
		for _, c := range kids {
			place(c, cursor)
			cursor += span[c] + opts.NodeSep
		}
	}

	cursor := 0.0
	for _, r := range f.Roots {
		measure(r)
		place(r, cursor)
		cursor += span[r] + opts.NodeSep
	}
	return centers, nil
}
