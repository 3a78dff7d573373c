package store

import (
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/ammusto/tafarru3/pkg/graph"
	"github.com/ammusto/tafarru3/pkg/ids"
)

// counterIDs returns a deterministic edge id generator for tests.
func counterIDs() EdgeIDFunc {
	n := 0
	return func(string, string) string {
		n++
		return fmt.Sprintf("edge-%d", n)
	}
}

func newTestStore() *Store { return New(WithEdgeIDs(counterIDs())) }

func hierarchical(parent, child string) ConnectSpec {
	return ConnectSpec{Source: parent, Target: child, SourceHandle: graph.HandleBottom, TargetHandle: graph.HandleTop}
}

// checkInvariants fails the test if a snapshot violates a store invariant.
func checkInvariants(t *testing.T, st *State) {
	t.Helper()
	if err := graph.Validate(graph.Document{Nodes: st.Nodes, Edges: st.Edges}); err != nil {
		t.Fatalf("invalid snapshot: %v", err)
	}
	if !ids.IsContiguous(st.Nodes) {
		t.Fatalf("ids not contiguous: %v", graph.NodeIDs(st.Nodes))
	}
	pairs := map[[2]string]int{}
	for _, e := range st.Edges {
		if p, c, ok := e.ParentChild(); ok {
			if n, _ := st.Node(c); n.ParentID == p {
				pairs[[2]string{p, c}]++
			}
		}
	}
	for pair, n := range pairs {
		if n > 1 {
			t.Fatalf("%d hierarchical edges for %v", n, pair)
		}
	}
	for _, id := range st.Selection.Nodes {
		if !st.HasNode(id) {
			t.Fatalf("selection references deleted node %s", id)
		}
	}
}

func TestAddNodeSequentialIDs(t *testing.T) {
	s := newTestStore()
	var got []string
	for i := 0; i < 3; i++ {
		got = append(got, s.AddNode(NodeSpec{}))
	}
	if want := []string{"node-1", "node-2", "node-3"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("ids = %v, want %v", got, want)
	}

	s.DeleteNodes([]string{"node-2"})
	if ids := graph.NodeIDs(s.State().Nodes); !reflect.DeepEqual(ids, []string{"node-1", "node-2"}) {
		t.Fatalf("after delete ids = %v", ids)
	}
	if id := s.AddNode(NodeSpec{}); id != "node-3" {
		t.Errorf("AddNode after delete = %q, want node-3", id)
	}
	if !s.State().UnsavedChanges {
		t.Error("structural change must mark unsaved")
	}
}

func TestAddNodeDefaults(t *testing.T) {
	s := newTestStore()
	id := s.AddNode(NodeSpec{Position: graph.Position{X: 10, Y: 20}})
	n, ok := s.State().Node(id)
	if !ok {
		t.Fatal("node not found")
	}
	if n.Data != graph.DefaultNodeData() {
		t.Errorf("data = %+v, want defaults", n.Data)
	}
	if n.Size != nil {
		t.Error("size should be auto")
	}
	if n.Position != (graph.Position{X: 10, Y: 20}) {
		t.Errorf("position = %+v", n.Position)
	}
}

func TestDeleteRootScenario(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	if _, ok := s.Connect(hierarchical("node-1", "node-2")); !ok {
		t.Fatal("connect failed")
	}
	if n, _ := s.State().Node("node-2"); n.ParentID != "node-1" {
		t.Fatalf("parentId = %q, want node-1", n.ParentID)
	}

	s.DeleteNodes([]string{"node-1"})

	st := s.State()
	if got := graph.NodeIDs(st.Nodes); !reflect.DeepEqual(got, []string{"node-1"}) {
		t.Fatalf("nodes = %v, want [node-1]", got)
	}
	if st.Nodes[0].ParentID != "" {
		t.Errorf("parentId = %q, want empty", st.Nodes[0].ParentID)
	}
	if len(st.Edges) != 0 {
		t.Errorf("edges = %v, want none", st.Edges)
	}
	checkInvariants(t, st)
}

func TestCascadingDelete(t *testing.T) {
	s := newTestStore()
	root := s.AddNode(NodeSpec{})
	const k = 4
	for i := 0; i < k; i++ {
		child := s.AddNode(NodeSpec{})
		s.Connect(hierarchical(root, child))
	}
	s.AddNode(NodeSpec{})
	s.Connect(ConnectSpec{Source: "node-6", Target: root, SourceHandle: graph.HandleRight, TargetHandle: graph.HandleLeft})

	s.DeleteNodes([]string{root})

	st := s.State()
	if len(st.Nodes) != k+1 {
		t.Fatalf("nodes = %d, want %d", len(st.Nodes), k+1)
	}
	for _, n := range st.Nodes {
		if n.ParentID != "" {
			t.Errorf("%s still has parent %s", n.ID, n.ParentID)
		}
	}
	if len(st.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(st.Edges))
	}
	checkInvariants(t, st)
}

func TestDeleteMultiLevel(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 5; i++ {
		s.AddNode(NodeSpec{})
	}
	s.Connect(hierarchical("node-1", "node-2"))
	s.Connect(hierarchical("node-2", "node-3"))
	s.Connect(hierarchical("node-3", "node-4"))
	s.Connect(hierarchical("node-4", "node-5"))
	s.SelectNodes("node-5", "node-3")

	s.DeleteNodes([]string{"node-2", "node-3"})

	st := s.State()
	checkInvariants(t, st)
	if len(st.Nodes) != 3 {
		t.Fatalf("nodes = %v", graph.NodeIDs(st.Nodes))
	}
	// old node-4 is now node-2 and lost its deleted parent; old node-5 is node-3.
	n2, _ := st.Node("node-2")
	n3, _ := st.Node("node-3")
	if n2.ParentID != "" || n3.ParentID != "node-2" {
		t.Errorf("parents = %q, %q", n2.ParentID, n3.ParentID)
	}
	if !reflect.DeepEqual(st.Selection.Nodes, []string{"node-3"}) {
		t.Errorf("selection = %v, want [node-3]", st.Selection.Nodes)
	}
	if len(st.Edges) != 1 || st.Edges[0].Source != "node-2" || st.Edges[0].Target != "node-3" {
		t.Errorf("edges = %+v", st.Edges)
	}
}

func TestConnectReplacesParent(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		s.AddNode(NodeSpec{})
	}
	s.Connect(hierarchical("node-1", "node-3"))
	s.Connect(hierarchical("node-2", "node-3"))

	st := s.State()
	if n, _ := st.Node("node-3"); n.ParentID != "node-2" {
		t.Errorf("parent = %q, want node-2", n.ParentID)
	}
	if len(st.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(st.Edges))
	}
	if st.Edges[0].Source != "node-2" {
		t.Errorf("surviving edge = %+v", st.Edges[0])
	}
	checkInvariants(t, st)
}

func TestConnectTopToBottom(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	s.Connect(ConnectSpec{Source: "node-2", Target: "node-1", SourceHandle: graph.HandleTop, TargetHandle: graph.HandleBottom})
	if n, _ := s.State().Node("node-2"); n.ParentID != "node-1" {
		t.Errorf("parent = %q, want node-1", n.ParentID)
	}
}

func TestConnectIgnored(t *testing.T) {
	tests := []struct {
		name string
		spec ConnectSpec
	}{
		{name: "SelfLoop", spec: hierarchical("node-1", "node-1")},
		{name: "UnknownSource", spec: hierarchical("node-9", "node-1")},
		{name: "UnknownTarget", spec: ConnectSpec{Source: "node-1", Target: "node-9"}},
		{name: "ParentCycle", spec: hierarchical("node-2", "node-1")},
		{name: "GrandparentCycle", spec: hierarchical("node-3", "node-1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestStore()
			for i := 0; i < 3; i++ {
				s.AddNode(NodeSpec{})
			}
			s.Connect(hierarchical("node-1", "node-2"))
			s.Connect(hierarchical("node-2", "node-3"))
			before := s.State()

			id, ok := s.Connect(tt.spec)
			if ok || id != "" {
				t.Fatalf("Connect() = (%q, %v), want ignored", id, ok)
			}
			if s.State() != before {
				t.Error("ignored connect must not commit a snapshot")
			}
		})
	}
}

func TestDeleteHierarchicalEdgeClearsParent(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	hier, _ := s.Connect(hierarchical("node-1", "node-2"))
	side, _ := s.Connect(ConnectSpec{Source: "node-1", Target: "node-2", SourceHandle: graph.HandleRight, TargetHandle: graph.HandleLeft})

	s.DeleteEdges([]string{side})
	if n, _ := s.State().Node("node-2"); n.ParentID != "node-1" {
		t.Fatal("deleting a plain edge must keep the parent")
	}
	s.DeleteEdges([]string{hier})
	if n, _ := s.State().Node("node-2"); n.ParentID != "" {
		t.Errorf("parent = %q, want cleared", n.ParentID)
	}
}

func TestUpdateEdgeMerges(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	id, _ := s.Connect(ConnectSpec{Source: "node-1", Target: "node-2"})

	s.UpdateEdge(id, graph.EdgePatch{LineColor: graph.Ptr("#ff0000")})
	s.UpdateEdge(id, graph.EdgePatch{ArrowStyle: graph.Ptr(graph.ArrowBoth)})

	e, _ := s.State().Edge(id)
	if e.Data.LineColor != "#ff0000" || e.Data.ArrowStyle != graph.ArrowBoth {
		t.Errorf("data = %+v", e.Data)
	}
	if e.Data.LineWidth != graph.DefaultLineWidth {
		t.Errorf("line width = %v, want default", e.Data.LineWidth)
	}
	if s.UpdateEdge("missing", graph.EdgePatch{Label: graph.Ptr("x")}) {
		t.Error("update of unknown edge must be ignored")
	}
}

func TestUpdateNodesBroadcast(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		s.AddNode(NodeSpec{})
	}
	s.UpdateNode("node-1", graph.NodePatch{Label: graph.Ptr("Ali")})
	s.UpdateNodes([]string{"node-1", "node-2", "stale"}, graph.NodePatch{FillColor: graph.Ptr("#eeeeee")})

	st := s.State()
	for _, id := range []string{"node-1", "node-2"} {
		if n, _ := st.Node(id); n.Data.FillColor != "#eeeeee" {
			t.Errorf("%s fill = %q", id, n.Data.FillColor)
		}
	}
	if n, _ := st.Node("node-3"); n.Data.FillColor != graph.DefaultFillColor {
		t.Error("node-3 must not be touched")
	}
	if n, _ := st.Node("node-1"); n.Data.Label != "Ali" {
		t.Error("label must survive a style patch")
	}
}

func TestMoveNodeIdempotent(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	if !s.MoveNode("node-1", graph.Position{X: 5, Y: 5}) {
		t.Fatal("first move should commit")
	}
	v := s.State().Version
	if s.MoveNode("node-1", graph.Position{X: 5, Y: 5}) {
		t.Error("repeated move should be a no-op")
	}
	if s.State().Version != v {
		t.Error("version changed on no-op")
	}
}

func TestStaleIDsAreNoOps(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	before := s.State()

	ops := map[string]bool{
		"UpdateNode":  s.UpdateNode("node-7", graph.NodePatch{Label: graph.Ptr("x")}),
		"MoveNode":    s.MoveNode("node-7", graph.Position{X: 1}),
		"ResizeNode":  s.ResizeNode("node-7", &graph.Size{Width: 1, Height: 1}),
		"DeleteNodes": s.DeleteNodes([]string{"node-7"}),
		"DeleteEdges": s.DeleteEdges([]string{"edge-7"}),
	}
	for name, applied := range ops {
		if applied {
			t.Errorf("%s applied on stale id", name)
		}
	}
	if s.State() != before {
		t.Error("stale operations must not commit")
	}
}

func TestSelectionAndMode(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	s.MarkSaved()

	s.SelectNodes("node-2", "node-2", "node-9")
	st := s.State()
	if !reflect.DeepEqual(st.Selection.Nodes, []string{"node-2"}) {
		t.Errorf("selection = %v", st.Selection.Nodes)
	}
	if st.UnsavedChanges {
		t.Error("selection must not mark unsaved")
	}
	if !s.SetMode(graph.ModeConnect) || s.State().Mode != graph.ModeConnect {
		t.Error("SetMode failed")
	}
	if s.SetMode("bogus") {
		t.Error("unknown mode must be ignored")
	}
	s.ToggleGrid()
	if !s.State().GridEnabled {
		t.Error("grid should be enabled")
	}
	s.ClearSelection()
	if !s.State().Selection.Empty() {
		t.Error("selection should be empty")
	}
}

func TestDeleteSelected(t *testing.T) {
	s := newTestStore()
	for i := 0; i < 3; i++ {
		s.AddNode(NodeSpec{})
	}
	e1, _ := s.Connect(ConnectSpec{Source: "node-1", Target: "node-2"})
	s.Connect(ConnectSpec{Source: "node-2", Target: "node-3"})
	s.SetSelection(graph.Selection{Nodes: []string{"node-3"}, Edges: []string{e1}})

	s.DeleteSelected()

	st := s.State()
	checkInvariants(t, st)
	if len(st.Nodes) != 2 || len(st.Edges) != 0 {
		t.Errorf("nodes=%d edges=%d, want 2 and 0", len(st.Nodes), len(st.Edges))
	}
	if !st.Selection.Empty() {
		t.Errorf("selection = %+v, want empty", st.Selection)
	}
}

func TestImportDataAndClearAll(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.SelectNodes("node-1")

	doc := graph.Document{
		Nodes: []graph.Node{{ID: "node-4"}, {ID: "node-9", ParentID: "node-4"}},
		Edges: []graph.Edge{{ID: "e", Source: "node-4", Target: "node-9", SourceHandle: graph.HandleBottom, TargetHandle: graph.HandleTop}},
	}
	if err := s.ImportData(doc); err != nil {
		t.Fatalf("ImportData: %v", err)
	}
	st := s.State()
	if st.UnsavedChanges {
		t.Error("import must mark saved")
	}
	if !st.Selection.Empty() {
		t.Error("import must clear selection")
	}
	if got := graph.NodeIDs(st.Nodes); !reflect.DeepEqual(got, []string{"node-1", "node-2"}) {
		t.Errorf("ids = %v", got)
	}
	checkInvariants(t, st)

	bad := graph.Document{Nodes: []graph.Node{{ID: "node-1"}}, Edges: []graph.Edge{{ID: "x", Source: "node-1", Target: "node-2"}}}
	if err := s.ImportData(bad); err == nil {
		t.Error("dangling edge must be rejected")
	}
	if s.State() != st {
		t.Error("failed import must leave the store untouched")
	}
	if err := s.ImportData(graph.Document{Nodes: []graph.Node{{ID: "custom"}}}); err == nil {
		t.Error("foreign id must be rejected")
	}

	s.AddNode(NodeSpec{})
	s.ClearAll()
	st = s.State()
	if len(st.Nodes) != 0 || len(st.Edges) != 0 || st.UnsavedChanges {
		t.Errorf("ClearAll left %+v", st)
	}
}

func TestSnapshotsAreImmutable(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{Size: &graph.Size{Width: 10, Height: 10}})
	before := s.State()
	beforeNode := before.Nodes[0]

	s.MoveNode("node-1", graph.Position{X: 100})
	s.UpdateNode("node-1", graph.NodePatch{Label: graph.Ptr("changed")})
	s.ResizeNode("node-1", &graph.Size{Width: 20, Height: 20})

	if !reflect.DeepEqual(before.Nodes[0], beforeNode) {
		t.Errorf("earlier snapshot was mutated: %+v", before.Nodes[0])
	}
}

func TestSubscribe(t *testing.T) {
	s := newTestStore()
	var calls int
	var last *State
	cancel := s.Subscribe(func(prev, next *State) {
		calls++
		if prev == next {
			t.Error("listener got identical snapshots")
		}
		last = next
	})

	s.AddNode(NodeSpec{})
	s.MoveNode("node-1", graph.Position{})
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (second op was a no-op)", calls)
	}
	if last != s.State() {
		t.Error("listener did not receive the committed snapshot")
	}

	cancel()
	cancel()
	s.AddNode(NodeSpec{})
	if calls != 1 {
		t.Error("cancelled listener was called")
	}
}

func TestListenerMayReenter(t *testing.T) {
	s := newTestStore()
	s.Subscribe(func(prev, next *State) {
		if len(next.Nodes) == 1 && len(prev.Nodes) == 0 {
			s.SelectNodes(next.Nodes[0].ID)
		}
	})
	s.AddNode(NodeSpec{})
	if got := s.State().Selection.Nodes; !reflect.DeepEqual(got, []string{"node-1"}) {
		t.Errorf("selection = %v", got)
	}
}

func TestClose(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{})
	s.Close()
	if id := s.AddNode(NodeSpec{}); id != "" {
		t.Errorf("AddNode after Close = %q", id)
	}
	if err := s.ImportData(graph.Document{}); err != ErrClosed {
		t.Errorf("ImportData after Close = %v, want ErrClosed", err)
	}
	if len(s.State().Nodes) != 1 {
		t.Error("last snapshot should stay readable")
	}
}

func TestAlignAndDistribute(t *testing.T) {
	s := newTestStore()
	s.AddNode(NodeSpec{Position: graph.Position{X: 0, Y: 0}})
	s.AddNode(NodeSpec{Position: graph.Position{X: 400, Y: 30}})
	s.AddNode(NodeSpec{Position: graph.Position{X: 100, Y: 80}, Size: &graph.Size{Width: 50, Height: 20}})
	all := []string{"node-1", "node-2", "node-3"}

	s.AlignNodes(all, AlignTop)
	for _, n := range s.State().Nodes {
		if n.Position.Y != 0 {
			t.Errorf("%s y = %v, want 0", n.ID, n.Position.Y)
		}
	}

	s.AlignNodes(all, AlignRight)
	for _, n := range s.State().Nodes {
		w, _ := n.Dimensions()
		if n.Position.X+w != 550 {
			t.Errorf("%s right edge = %v, want 550", n.ID, n.Position.X+w)
		}
	}

	s.MoveNodes(map[string]graph.Position{
		"node-1": {X: 0}, "node-2": {X: 1000}, "node-3": {X: 100},
	})
	s.DistributeNodes(all, AxisHorizontal)
	st := s.State()
	n1, _ := st.Node("node-1")
	n2, _ := st.Node("node-2")
	n3, _ := st.Node("node-3")
	gapA := n3.Position.X - (n1.Position.X + 150)
	gapB := n2.Position.X - (n3.Position.X + 50)
	if gapA != gapB {
		t.Errorf("gaps = %v and %v, want equal", gapA, gapB)
	}
	if n1.Position.X != 0 || n2.Position.X != 1000 {
		t.Error("outermost nodes must stay in place")
	}

	if s.AlignNodes([]string{"node-1"}, AlignLeft) {
		t.Error("aligning one node must be a no-op")
	}
}

func TestRandomOperationsKeepInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	s := newTestStore()
	pick := func() string {
		st := s.State()
		if len(st.Nodes) == 0 || rng.Intn(10) == 0 {
			return fmt.Sprintf("node-%d", rng.Intn(30)+1)
		}
		return st.Nodes[rng.Intn(len(st.Nodes))].ID
	}
	handles := []graph.Handle{graph.HandleTop, graph.HandleBottom, graph.HandleLeft, graph.HandleRight}

	for i := 0; i < 2000; i++ {
		switch rng.Intn(7) {
		case 0, 1:
			s.AddNode(NodeSpec{Position: graph.Position{X: float64(rng.Intn(500))}})
		case 2, 3:
			s.Connect(ConnectSpec{
				Source:       pick(),
				Target:       pick(),
				SourceHandle: handles[rng.Intn(len(handles))],
				TargetHandle: handles[rng.Intn(len(handles))],
			})
		case 4:
			s.DeleteNodes([]string{pick(), pick()})
		case 5:
			st := s.State()
			if len(st.Edges) > 0 {
				s.DeleteEdges([]string{st.Edges[rng.Intn(len(st.Edges))].ID})
			}
		case 6:
			s.SelectNodes(pick(), pick())
		}
		st := s.State()
		checkInvariants(t, st)
		for _, n := range st.Nodes {
			top := n.ID
			if chain := st.Ancestors(n.ID); len(chain) > 0 {
				top = chain[len(chain)-1]
			}
			if root, _ := st.Node(top); root.ParentID != "" {
				t.Fatalf("parent chain of %s never reaches a root", n.ID)
			}
		}
	}
}

func TestNewEdgeIDUnique(t *testing.T) {
	s := New()
	s.AddNode(NodeSpec{})
	s.AddNode(NodeSpec{})
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		id, ok := s.Connect(ConnectSpec{Source: "node-1", Target: "node-2"})
		if !ok {
			t.Fatal("connect failed")
		}
		if !strings.HasPrefix(id, "enode-1-node-2-") {
			t.Fatalf("id = %q", id)
		}
		if seen[id] {
			t.Fatalf("duplicate edge id %q", id)
		}
		seen[id] = true
	}
}
