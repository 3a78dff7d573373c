package neo4j

import (
	"context"
	"strings"
	"testing"

	apperr "github.com/ammusto/tafarru3/pkg/errors"
	"github.com/ammusto/tafarru3/pkg/graph"
)

func testDoc() graph.Document {
	node := func(id, parent, label string) graph.Node {
		d := graph.DefaultNodeData()
		d.Label = label
		return graph.Node{ID: id, ParentID: parent, Data: d}
	}
	edge := func(id, src, tgt string, sh, th graph.Handle) graph.Edge {
		return graph.Edge{ID: id, Source: src, Target: tgt, SourceHandle: sh, TargetHandle: th, Data: graph.DefaultEdgeData()}
	}
	return graph.Document{
		Nodes: []graph.Node{
			node("node-1", "", "Ali"),
			node("node-2", "node-1", "al-Hasan"),
			node("node-3", "node-1", "al-Husayn"),
		},
		Edges: []graph.Edge{
			edge("e1", "node-1", "node-2", graph.HandleBottom, graph.HandleTop),
			edge("e2", "node-1", "node-3", graph.HandleBottom, graph.HandleTop),
			edge("e3", "node-2", "node-3", graph.HandleRight, graph.HandleLeft),
		},
	}
}

func TestStatements(t *testing.T) {
	stmts := statements("Ahl al-Bayt", testDoc())
	if len(stmts) != 4 {
		t.Fatalf("got %d statements, want 4", len(stmts))
	}
	if !strings.HasPrefix(stmts[0].cypher, "MATCH") || !strings.Contains(stmts[0].cypher, "DETACH DELETE") {
		t.Errorf("first statement should clear the project: %s", stmts[0].cypher)
	}
	for _, st := range stmts {
		if st.params["project"] != "Ahl al-Bayt" {
			t.Errorf("project param = %v", st.params["project"])
		}
	}

	stats := countRows(stmts)
	if stats.People != 3 || stats.Parents != 2 || stats.Connections != 1 {
		t.Errorf("stats = %+v", stats)
	}

	parent := stmts[2].params["rows"].([]any)[0].(map[string]any)
	if parent["parent"] != "node-1" || parent["child"] != "node-2" {
		t.Errorf("parent row = %v", parent)
	}
	conn := stmts[3].params["rows"].([]any)[0].(map[string]any)
	if conn["id"] != "e3" || conn["source"] != "node-2" || conn["target"] != "node-3" {
		t.Errorf("connection row = %v", conn)
	}
	props := conn["props"].(map[string]any)
	if props["sourceHandle"] != "right" || props["lineStyle"] != string(graph.DefaultEdgeData().LineStyle) {
		t.Errorf("connection props = %v", props)
	}
}

func TestStatementsEmptyDocument(t *testing.T) {
	stmts := statements("Empty", graph.Document{})
	for i, st := range stmts[1:] {
		rows, ok := st.params["rows"].([]any)
		if !ok || rows == nil || len(rows) != 0 {
			t.Errorf("statement %d rows = %#v, want empty list", i+1, st.params["rows"])
		}
	}
}

func TestPersonProps(t *testing.T) {
	n := testDoc().Nodes[1]
	n.Data.Kunya = "Abu Muhammad"
	n.Size = &graph.Size{Width: 200, Height: 80}
	props := personProps(n)

	if props["label"] != "al-Hasan" || props["kunya"] != "Abu Muhammad" {
		t.Errorf("name props = %v", props)
	}
	if _, ok := props["nisba"]; ok {
		t.Error("empty onomastic fields should be omitted")
	}
	if props["width"] != 200.0 || props["height"] != 80.0 {
		t.Errorf("size props = %v, %v", props["width"], props["height"])
	}
	if props["name"] != n.Data.DisplayName() {
		t.Errorf("name = %v, want %q", props["name"], n.Data.DisplayName())
	}
}

func TestOpenRequiresURI(t *testing.T) {
	if _, err := Open(context.Background(), Config{}, nil); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("Open(empty) = %v, want INVALID_CONFIG", err)
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{People: 3, Parents: 2, Connections: 1}
	if got, want := s.String(), "3 people, 2 parent links, 1 connections"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
