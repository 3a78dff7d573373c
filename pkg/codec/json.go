package codec

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/layout"
)

// WriteJSON encodes doc in the live store shape and writes it to w.
// The output can be re-imported with [ReadJSON] without loss.
func WriteJSON(w io.Writer, doc graph.Document) error {
	if doc.Nodes == nil {
		doc.Nodes = []graph.Node{}
	}
	if doc.Edges == nil {
		doc.Edges = []graph.Edge{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a {"nodes": [...], "edges": [...]} snapshot from r.
//
// The snapshot must be in the shape the store keeps: every ParentID backed by
// exactly one hierarchical edge and no ancestor loops. Unlike [DecodeCSV],
// nothing is repaired. ReadJSON returns an [apperr.ErrCodeInvalidFormat]
// error if the JSON is malformed or the document breaks one of these rules or
// fails [graph.Validate]. ReadJSON does not close r.
func ReadJSON(r io.Reader) (graph.Document, error) {
	var doc graph.Document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return graph.Document{}, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "decode JSON")
	}
	if err := graph.Validate(doc); err != nil {
		return graph.Document{}, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "invalid diagram")
	}
	if err := checkParentLinks(doc); err != nil {
		return graph.Document{}, err
	}
	return doc, nil
}

// checkParentLinks rejects parent links without a hierarchical edge and
// ancestor loops. [graph.Validate] has already matched every hierarchical
// edge to its child's ParentID.
func checkParentLinks(doc graph.Document) error {
	backed := make(map[string]bool)
	for _, e := range doc.Edges {
		if _, child, ok := e.ParentChild(); ok {
			backed[child] = true
		}
	}
	for _, n := range doc.Nodes {
		if n.ParentID != "" && !backed[n.ID] {
			return apperr.New(apperr.ErrCodeInvalidFormat, "invalid diagram: %s has parent %s but no parent edge", n.ID, n.ParentID)
		}
	}

	// NewForest breaks loops by detaching one node per loop.
	forest := layout.NewForest(doc.Nodes, nil)
	for _, n := range doc.Nodes {
		if n.ParentID != "" && forest.Parent[n.ID] != n.ParentID {
			return apperr.New(apperr.ErrCodeInvalidFormat, "invalid diagram: %s is its own ancestor", n.ID)
		}
	}
	return nil
}

// ImportJSON reads a JSON snapshot from the file at path.
func ImportJSON(path string) (graph.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return graph.Document{}, apperr.Wrap(apperr.ErrCodeFileNotFound, err, "open %s", path)
		}
		return graph.Document{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadJSON(f)
}

// ExportJSON writes doc to a JSON file at path.
func ExportJSON(doc graph.Document, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := WriteJSON(f, doc); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
