// Package cache memoizes auto-layout results.
//
// Layout with the graphviz placer shells a full dot render, so repeated
// layouts of an unchanged diagram are served from a [Cache] keyed by
// [LayoutKey]. The key covers everything the layout reads (node ids, sizes,
// parent links, edges and options) and nothing it ignores, such as current
// positions or styling.
//
// A nil Cache disables caching. Implementations:
//   - [MemoryCache]: in-process, for the server and tests
//   - [FileCache]: entries under a directory, for the CLI
//   - [RedisCache]: shared between server instances
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/layout"
	"github.com/ammusto/tafarru3/pkg/observability"
)

// DefaultTTL is the lifetime of a cached layout.
const DefaultTTL = 24 * time.Hour

// Cache stores opaque byte values by key.
type Cache interface {
	// Get returns the value and whether it was found.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiry.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

type layoutNode struct {
	ID     string  `json:"id"`
	Parent string  `json:"p,omitempty"`
	W      float64 `json:"w"`
	H      float64 `json:"h"`
}

type layoutEdge struct {
	Source string       `json:"s"`
	Target string       `json:"t"`
	SH     graph.Handle `json:"sh"`
	TH     graph.Handle `json:"th"`
}

type layoutOpts struct {
	RankSep   float64 `json:"rankSep"`
	NodeSep   float64 `json:"nodeSep"`
	Margin    float64 `json:"margin"`
	Direction string  `json:"dir"`
	Placer    string  `json:"placer"`
}

// LayoutKey returns the cache key for laying out nodes and edges with opts.
func LayoutKey(nodes []graph.Node, edges []graph.Edge, opts layout.Options) string {
	ln := make([]layoutNode, len(nodes))
	for i, n := range nodes {
		w, h := n.Dimensions()
		ln[i] = layoutNode{ID: n.ID, Parent: n.ParentID, W: w, H: h}
	}
	le := make([]layoutEdge, 0, len(edges))
	for _, e := range edges {
		if !e.IsHierarchical() {
			continue
		}
		le = append(le, layoutEdge{Source: e.Source, Target: e.Target, SH: e.SourceHandle, TH: e.TargetHandle})
	}
	lo := layoutOpts{
		RankSep:   opts.RankSep,
		NodeSep:   opts.NodeSep,
		Margin:    opts.Margin,
		Direction: string(opts.Direction),
	}
	if opts.Placer != nil {
		lo.Placer = fmt.Sprintf("%T", opts.Placer)
	}
	return hashKey("layout", ln, le, lo)
}

// EncodePositions serializes a layout result for storage.
func EncodePositions(pos map[string]graph.Position) ([]byte, error) {
	return json.Marshal(pos)
}

// DecodePositions parses a value written by [EncodePositions].
func DecodePositions(data []byte) (map[string]graph.Position, error) {
	var pos map[string]graph.Position
	if err := json.Unmarshal(data, &pos); err != nil {
		return nil, fmt.Errorf("decode cached layout: %w", err)
	}
	return pos, nil
}

// Layout returns the cached layout for the input, computing and storing it on
// a miss. Cache failures fall back to computing the layout.
func Layout(ctx context.Context, c Cache, nodes []graph.Node, edges []graph.Edge, opts layout.Options) (map[string]graph.Position, bool, error) {
	if c == nil {
		pos, err := layout.Layout(ctx, nodes, edges, opts)
		return pos, false, err
	}
	key := LayoutKey(nodes, edges, opts)
	if data, ok, err := c.Get(ctx, key); err == nil && ok {
		if pos, err := DecodePositions(data); err == nil {
			observability.Cache().OnCacheHit(ctx, "layout")
			return pos, true, nil
		}
	}
	observability.Cache().OnCacheMiss(ctx, "layout")

	pos, err := layout.Layout(ctx, nodes, edges, opts)
	if err != nil {
		return nil, false, err
	}
	if data, err := EncodePositions(pos); err == nil {
		_ = c.Set(ctx, key, data, DefaultTTL)
	}
	return pos, false, nil
}
