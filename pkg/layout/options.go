package layout

import (
	"fmt"
	"strings"
)

// Defaults for [Options].
const (
	DefaultRankSep = 100.0
	DefaultNodeSep = 50.0
	DefaultMargin  = 50.0
)

// Direction selects the main axis along which ranks advance.
type Direction string

const (
	// TopBottom places children below their parent.
	TopBottom Direction = "TB"
	// LeftRight places children to the right of their parent.
	LeftRight Direction = "LR"
)

// ParseDirection parses "TB" or "LR" (case-insensitive). The empty string
// yields [TopBottom].
func ParseDirection(s string) (Direction, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "TB":
		return TopBottom, nil
	case "LR":
		return LeftRight, nil
	}
	return "", fmt.Errorf("unknown layout direction %q", s)
}

// Options configures [Layout]. Zero fields take their defaults.
type Options struct {
	// RankSep is the gap in pixels between consecutive ranks.
	RankSep float64
	// NodeSep is the gap in pixels between adjacent siblings.
	NodeSep float64
	// Margin is the minimum x and y of the result. A negative value means
	// no margin.
	Margin    float64
	Direction Direction
	Placer    Placer
}

func (o Options) withDefaults() Options {
	if o.RankSep <= 0 {
		o.RankSep = DefaultRankSep
	}
	if o.NodeSep <= 0 {
		o.NodeSep = DefaultNodeSep
	}
	if o.Margin < 0 {
		o.Margin = 0
	} else if o.Margin == 0 {
		o.Margin = DefaultMargin
	}
	if o.Direction == "" {
		o.Direction = TopBottom
	}
	if o.Placer == nil {
		o.Placer = TidyPlacer{}
	}
	return o
}

// ParsePlacer returns the placer registered under name: "tidy" (or empty)
// or "graphviz".
func ParsePlacer(name string) (Placer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "tidy":
		return TidyPlacer{}, nil
	case "graphviz", "dot":
		return GraphvizPlacer{}, nil
	}
	return nil, fmt.Errorf("unknown layout placer %q", name)
}
