package graph

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"recall/claims/internal/datatype"
	"recall/claims/internal/db"
)

const (
	testNow     = int64(1_700_000_000_000)
	categoryOf  = int64(-3)
	relatedVerb = int64(10)
	partnerVerb = int64(11)
)

func daysAgo(d int64) int64 { return testNow - d*dayMs }

type testEdge struct {
	source, target, verb int64
	createdAt            int64
	symmetric            bool
}

func makeTestSnapshot(names map[int64]string, updated map[int64]int64, edges []testEdge) *GraphSnapshot {
	var nodes []*NodeInfo
	for id, name := range names {
		u, ok := updated[id]
		if !ok {
			u = testNow
		}
		nodes = append(nodes, &NodeInfo{ID: id, Name: name, CreatedAt: u, UpdatedAt: u})
	}
	var infos []EdgeInfo
	for i, e := range edges {
		infos = append(infos, EdgeInfo{
			ID: int64(1000 + i), Source: e.source, Target: e.target, VerbID: e.verb,
			Symmetric: e.symmetric, CreatedAt: e.createdAt, UpdatedAt: e.createdAt,
		})
	}
	return NewSnapshot(nodes, infos, categoryOf)
}

// Use a simpler helper for most tests
func quickSnapshot(ids []int64, edges [][2]int64) *GraphSnapshot {
	var nodes []*NodeInfo
	for _, id := range ids {
		nodes = append(nodes, &NodeInfo{
			ID: id, Name: fmt.Sprintf("Entity %d", id), CreatedAt: testNow, UpdatedAt: testNow,
		})
	}
	var infos []EdgeInfo
	for i, e := range edges {
		infos = append(infos, EdgeInfo{
			ID: int64(1000 + i), Source: e[0], Target: e[1], VerbID: relatedVerb, CreatedAt: testNow,
		})
	}
	return NewSnapshot(nodes, infos, categoryOf)
}

// --- Topology Tests ---

func TestTopology_EmptyGraph(t *testing.T) {
	snap := NewSnapshot(nil, nil, categoryOf)
	r := ComputeTopology(snap, 4, 10)
	if r.Entities != 0 || r.RelationLinks != 0 || r.NumComponents != 0 {
		t.Errorf("empty graph should have all zeros, got entities=%d links=%d components=%d",
			r.Entities, r.RelationLinks, r.NumComponents)
	}
}

func TestTopology_SingleComponent(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3, 4, 5},
		[][2]int64{{1, 2}, {2, 3}, {3, 4}, {4, 5}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.NumComponents != 1 {
		t.Errorf("expected 1 component, got %d", r.NumComponents)
	}
	if r.LargestComponent != 5 {
		t.Errorf("expected largest=5, got %d", r.LargestComponent)
	}
	if r.OrphanCount != 0 {
		t.Errorf("expected 0 orphans, got %d", r.OrphanCount)
	}
}

func TestTopology_TwoComponents(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3, 4, 5},
		[][2]int64{{1, 2}, {2, 3}, {4, 5}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.NumComponents != 2 {
		t.Errorf("expected 2 components, got %d", r.NumComponents)
	}
	if r.LargestComponent != 3 {
		t.Errorf("expected largest=3, got %d", r.LargestComponent)
	}
	if r.SmallestComponent != 2 {
		t.Errorf("expected smallest=2, got %d", r.SmallestComponent)
	}
}

func TestTopology_DropsEdgesToFacts(t *testing.T) {
	// 99 is a fact, not an entity
	snap := quickSnapshot([]int64{1, 2}, [][2]int64{{1, 2}, {1, 99}})
	r := ComputeTopology(snap, 4, 10)
	if r.RelationLinks != 1 {
		t.Errorf("expected 1 link, got %d", r.RelationLinks)
	}
}

func TestOrphan_Detection(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3},
		[][2]int64{{1, 2}},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.OrphanCount != 1 {
		t.Errorf("expected 1 orphan, got %d", r.OrphanCount)
	}
	if len(r.BareOrphans) != 1 || r.BareOrphans[0] != 3 {
		t.Errorf("3 should be the orphan, got %v", r.BareOrphans)
	}
}

func TestOrphan_DescribedVersusBare(t *testing.T) {
	snap := NewSnapshot([]*NodeInfo{
		{ID: 1, Name: "Homer", UpdatedAt: testNow},
		{ID: 2, Name: "Marge", UpdatedAt: testNow},
		{ID: 3, Name: "Duff", ScalarFacts: 2, UpdatedAt: testNow},
		{ID: 4, Name: "Blinky", UpdatedAt: testNow},
		{ID: 5, Name: "Beer", UpdatedAt: testNow},
	}, []EdgeInfo{
		{ID: 100, Source: 1, Target: 2, VerbID: relatedVerb},
		// category membership is a link: neither Beer nor its category is an orphan
		{ID: 101, Source: 5, Target: 4, VerbID: categoryOf},
	}, categoryOf)

	r := ComputeTopology(snap, 4, 10)
	if r.OrphanCount != 1 || r.BareCount != 0 {
		t.Fatalf("orphans = %d (bare %d), want 1 described", r.OrphanCount, r.BareCount)
	}
	if len(r.DescribedOrphans) != 1 || r.DescribedOrphans[0] != 3 {
		t.Errorf("described orphans = %v, want [3]", r.DescribedOrphans)
	}
	if r.RelationLinks != 1 || r.CategoryLinks != 1 {
		t.Errorf("links = %d relation, %d category; want 1 and 1", r.RelationLinks, r.CategoryLinks)
	}
}

func TestOrphan_ListsCappedCountsNot(t *testing.T) {
	snap := quickSnapshot([]int64{1, 2, 3, 4, 5}, nil)
	r := ComputeTopology(snap, 4, 2)
	if r.OrphanCount != 5 || r.BareCount != 5 {
		t.Errorf("orphan count = %d (bare %d), want 5", r.OrphanCount, r.BareCount)
	}
	if len(r.BareOrphans) != 2 {
		t.Errorf("orphan list = %v, want the first 2", r.BareOrphans)
	}
}

func TestHub_Detection(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3, 4, 5, 6},
		[][2]int64{{1, 2}, {1, 3}, {1, 4}, {1, 5}, {1, 6}},
	)
	r := ComputeTopology(snap, 4, 10)
	if len(r.Hubs) != 1 {
		t.Fatalf("expected 1 hub, got %d", len(r.Hubs))
	}
	if r.Hubs[0].ID != 1 {
		t.Errorf("expected 1 as hub, got %d", r.Hubs[0].ID)
	}
	if r.Hubs[0].Degree <= 4 {
		t.Errorf("hub degree should be > 4, got %d", r.Hubs[0].Degree)
	}
	if r.Hubs[0].Out != 5 || r.Hubs[0].In != 0 {
		t.Errorf("directed degrees = out %d in %d, want 5/0", r.Hubs[0].Out, r.Hubs[0].In)
	}
}

func TestHub_UndirectedCountedOnce(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Homer", 2: "Marge", 3: "Bart", 4: "Lisa"},
		nil,
		[]testEdge{
			{1, 2, partnerVerb, testNow, true},
			{3, 1, relatedVerb, testNow, false},
			{4, 1, relatedVerb, testNow, false},
		},
	)
	r := ComputeTopology(snap, 2, 10)
	if len(r.Hubs) != 1 {
		t.Fatalf("hubs = %v, want only Homer", r.Hubs)
	}
	h := r.Hubs[0]
	if h.ID != 1 || h.Degree != 3 || h.Out != 0 || h.In != 2 || h.Undirected != 1 {
		t.Errorf("Homer = %+v, want degree 3 (in 2, undirected 1)", h)
	}
}

func TestHub_CategoryIsNotAHub(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "People", 2: "Homer", 3: "Marge", 4: "Bart", 5: "Lisa", 6: "Maggie"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{3, 1, categoryOf, testNow, false},
			{4, 1, categoryOf, testNow, false},
			{5, 1, categoryOf, testNow, false},
			{6, 1, categoryOf, testNow, false},
		},
	)
	r := ComputeTopology(snap, 2, 10)
	if len(r.Hubs) != 0 {
		t.Errorf("category reported as hub: %v", r.Hubs)
	}
	if r.NumComponents != 1 || r.OrphanCount != 0 {
		t.Errorf("components = %d orphans = %d, want 1 and 0", r.NumComponents, r.OrphanCount)
	}
	if len(r.Categories) != 1 {
		t.Fatalf("categories = %v, want People", r.Categories)
	}
	if c := r.Categories[0]; c.ID != 1 || c.Direct != 5 || c.RegionSize != 5 {
		t.Errorf("People = %+v, want 5 direct members", c)
	}
}

func TestSnapshot_SymmetricAdjacency(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Homer", 2: "Marge", 3: "Bart"},
		nil,
		[]testEdge{
			{1, 2, partnerVerb, testNow, true},
			{3, 1, relatedVerb, testNow, false},
		},
	)
	if len(snap.OutAdj[2]) != 1 || snap.OutAdj[2][0] != 1 {
		t.Errorf("undirected edge not traversable from its object: %v", snap.OutAdj[2])
	}
	if len(snap.OutAdj[1]) != 1 {
		t.Errorf("directed edge leaked into the object's outgoing list: %v", snap.OutAdj[1])
	}
	if len(snap.InAdj[1]) != 2 {
		t.Errorf("Homer incoming = %v, want Marge and Bart", snap.InAdj[1])
	}
}

func TestTopology_CategoryStats(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "People", 2: "Family", 3: "Homer", 4: "Marge", 5: "Duff"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{3, 2, categoryOf, testNow, false},
			{4, 2, categoryOf, testNow, false},
			{3, 5, relatedVerb, testNow, false},
		},
	)
	r := ComputeTopology(snap, 4, 10)
	if r.Uncategorized != 1 {
		t.Errorf("uncategorized = %d, want 1 (Duff)", r.Uncategorized)
	}
	if len(r.Categories) != 1 {
		t.Fatalf("top-level categories = %v, want People only", r.Categories)
	}
	if c := r.Categories[0]; c.Direct != 1 || c.RegionSize != 3 {
		t.Errorf("People = %+v, want 1 direct member and a region of 3", c)
	}
	if !snap.IsCategory(2) || snap.IsCategory(3) {
		t.Error("Family is a category, Homer is not")
	}
	if len(snap.Adj[1]) != 0 {
		t.Errorf("category links leaked into relation adjacency: %v", snap.Adj[1])
	}
}

// --- Union-find Tests ---

func TestUnionFind(t *testing.T) {
	uf := NewUnionFind([]int64{1, 2, 3, 4})
	if !uf.Union(1, 2) {
		t.Error("first union should merge")
	}
	if uf.Union(2, 1) {
		t.Error("second union should be a no-op")
	}
	uf.Union(3, 4)
	uf.Union(2, 4)
	if uf.Find(1) != uf.Find(3) {
		t.Error("1 and 3 should share a root")
	}
	if uf.Size(4) != 4 {
		t.Errorf("size = %d, want 4", uf.Size(4))
	}
	if len(uf.Components()) != 1 {
		t.Errorf("components = %d, want 1", len(uf.Components()))
	}
}

// --- Tarjan Tests ---

func TestTarjan_Bridge(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3},
		[][2]int64{{1, 2}, {2, 3}},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 2 {
		t.Errorf("expected 2 bridges, got %d", r.BridgeCount)
	}
	foundB := false
	for _, ap := range r.ArticulationPoints {
		if ap.ID == 2 {
			foundB = true
		}
	}
	if !foundB {
		t.Errorf("2 should be an articulation point")
	}
	if r.BridgeEdges[0].FactID != 1000 || r.BridgeEdges[0].VerbID != relatedVerb {
		t.Errorf("first bridge = %+v, want fact 1000", r.BridgeEdges[0])
	}
}

func TestTarjan_ParallelFactsAreNotBridges(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Homer", 2: "Marge", 3: "Bart"},
		nil,
		[]testEdge{
			{1, 2, partnerVerb, testNow, true},
			{1, 2, relatedVerb, testNow, false},
			{2, 3, relatedVerb, testNow, false},
		},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 1 {
		t.Fatalf("bridges = %v, want only Marge-Bart", r.BridgeEdges)
	}
	if b := r.BridgeEdges[0]; b.SourceID != 2 || b.TargetID != 3 || b.FactID != 1002 {
		t.Errorf("bridge = %+v, want fact 1002 from 2 to 3", b)
	}
}

func TestTarjan_PiecesIfRemoved(t *testing.T) {
	// 1 is the center of a star, 5 joins a tail onto one of its arms
	snap := quickSnapshot(
		[]int64{1, 2, 3, 4, 5, 6},
		[][2]int64{{1, 2}, {1, 3}, {1, 4}, {4, 5}, {5, 6}},
	)
	r := ComputeBridges(snap)
	pieces := make(map[int64]int)
	for _, ap := range r.ArticulationPoints {
		pieces[ap.ID] = ap.Pieces
	}
	want := map[int64]int{1: 3, 4: 2, 5: 2}
	if len(pieces) != len(want) {
		t.Fatalf("articulation points = %v, want %v", pieces, want)
	}
	for id, n := range want {
		if pieces[id] != n {
			t.Errorf("removing %d leaves %d pieces, want %d", id, pieces[id], n)
		}
	}
	if r.ArticulationPoints[0].ID != 1 {
		t.Errorf("most cutting point first, got %d", r.ArticulationPoints[0].ID)
	}
}

func TestTarjan_IgnoresCategoryAndSelfLinks(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "People", 2: "Homer", 3: "Marge"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{3, 1, categoryOf, testNow, false},
			{2, 2, relatedVerb, testNow, false},
		},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 0 || r.APCount != 0 {
		t.Errorf("bridges = %v aps = %v, want none", r.BridgeEdges, r.ArticulationPoints)
	}
}

func TestTarjan_CycleNoBridges(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3},
		[][2]int64{{1, 2}, {2, 3}, {3, 1}},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 0 {
		t.Errorf("triangle should have 0 bridges, got %d", r.BridgeCount)
	}
	if r.APCount != 0 {
		t.Errorf("triangle should have 0 APs, got %d", r.APCount)
	}
}

func TestTarjan_TwoCyclesJoined(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3, 4, 5, 6},
		[][2]int64{
			{1, 2}, {2, 3}, {3, 1}, // triangle 1
			{4, 5}, {5, 6}, {6, 4}, // triangle 2
			{3, 4}, // bridge
		},
	)
	r := ComputeBridges(snap)
	if r.BridgeCount != 1 {
		t.Errorf("expected 1 bridge (3-4), got %d", r.BridgeCount)
	}
	apIDs := make(map[int64]bool)
	for _, ap := range r.ArticulationPoints {
		apIDs[ap.ID] = true
	}
	if !apIDs[3] || !apIDs[4] {
		t.Errorf("3 and 4 should be APs, got %v", apIDs)
	}
}

// --- Staleness Tests ---

func TestStaleness_Detected(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Abraham", 2: "Bart"},
		map[int64]int64{1: daysAgo(90)},
		[]testEdge{{2, 1, relatedVerb, daysAgo(1), false}},
	)
	r := ComputeStaleness(snap, 30, testNow)
	if r.StaleNodeCount != 1 {
		t.Fatalf("expected 1 stale node, got %d", r.StaleNodeCount)
	}
	if r.StaleNodes[0].ID != 1 {
		t.Errorf("expected 1 to be stale, got %d", r.StaleNodes[0].ID)
	}
	if r.StaleNodes[0].DaysSinceUpdate != 90 {
		t.Errorf("expected 90 days, got %d", r.StaleNodes[0].DaysSinceUpdate)
	}
}

func TestStaleness_SymmetricCountsBothEnds(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Homer", 2: "Marge"},
		map[int64]int64{1: daysAgo(90), 2: daysAgo(90)},
		[]testEdge{{1, 2, partnerVerb, daysAgo(1), true}},
	)
	r := ComputeStaleness(snap, 30, testNow)
	if r.StaleNodeCount != 2 {
		t.Errorf("expected both partners stale, got %d", r.StaleNodeCount)
	}
}

func TestStaleness_NoFalsePositive(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Abraham", 2: "Bart"},
		map[int64]int64{1: daysAgo(90), 2: daysAgo(60)},
		[]testEdge{{2, 1, relatedVerb, daysAgo(60), false}},
	)
	r := ComputeStaleness(snap, 30, testNow)
	if r.StaleNodeCount != 0 {
		t.Errorf("old entity with only old links should not be stale, got %d", r.StaleNodeCount)
	}
}

// --- Region Tests ---

func TestRegion_Computation(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "People", 2: "Family", 3: "Homer", 4: "Duff"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{3, 2, categoryOf, testNow, false},
		},
	)
	if snap.Regions[1] != 1 {
		t.Errorf("top category region should be itself, got %d", snap.Regions[1])
	}
	if snap.Regions[2] != 1 {
		t.Errorf("sub-category region should be 1, got %d", snap.Regions[2])
	}
	if snap.Regions[3] != 1 {
		t.Errorf("member region should be 1, got %d", snap.Regions[3])
	}
	if snap.Regions[4] != Unassigned {
		t.Errorf("uncategorized region should be unassigned, got %d", snap.Regions[4])
	}

	family := snap.FilterToRegion(1)
	if len(family.Nodes) != 3 {
		t.Errorf("region 1 has %d members, want 3", len(family.Nodes))
	}
}

func TestRegion_CategoryCycle(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "A", 2: "B"},
		nil,
		[]testEdge{
			{1, 2, categoryOf, testNow, false},
			{2, 1, categoryOf, testNow, false},
		},
	)
	if snap.Regions[1] != Unassigned || snap.Regions[2] != Unassigned {
		t.Errorf("cyclic categories should be unassigned, got %v", snap.Regions)
	}
}

func TestFragile_Connections(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Simpsons", 2: "Flanders", 3: "Homer", 4: "Ned"},
		nil,
		[]testEdge{
			{3, 1, categoryOf, testNow, false},
			{4, 2, categoryOf, testNow, false},
			{3, 4, relatedVerb, testNow, false},
		},
	)
	r := ComputeBridges(snap)
	if len(r.FragileConnections) != 1 {
		t.Fatalf("expected 1 fragile connection, got %v", r.FragileConnections)
	}
	fc := r.FragileConnections[0]
	if fc.CrossEdges != 1 {
		t.Errorf("expected 1 cross-edge, got %d", fc.CrossEdges)
	}
	if fc.RegionAName != "Simpsons" || fc.RegionBName != "Flanders" {
		t.Errorf("regions = %q, %q", fc.RegionAName, fc.RegionBName)
	}
}

func TestFragile_SkipsUncategorized(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "Simpsons", 2: "Homer", 3: "Duff"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{2, 3, relatedVerb, testNow, false},
		},
	)
	r := ComputeBridges(snap)
	if len(r.FragileConnections) != 0 {
		t.Errorf("uncategorized entity reported as a fragile region: %v", r.FragileConnections)
	}
}

// --- Health Tests ---

func TestHealthScore_Range(t *testing.T) {
	// All orphans
	snap := quickSnapshot([]int64{1, 2, 3}, nil)
	r := Analyze(snap, DefaultConfig())
	if r.HealthScore < 0 || r.HealthScore > 1 {
		t.Errorf("health out of range: %f", r.HealthScore)
	}

	// Connected
	snap2 := quickSnapshot([]int64{1, 2}, [][2]int64{{1, 2}})
	r2 := Analyze(snap2, DefaultConfig())
	if r2.HealthScore < 0 || r2.HealthScore > 1 {
		t.Errorf("health out of range: %f", r2.HealthScore)
	}
}

func TestHealthScore_Perfect(t *testing.T) {
	snap := quickSnapshot(
		[]int64{1, 2, 3},
		[][2]int64{{1, 2}, {2, 3}, {3, 1}},
	)
	r := Analyze(snap, &AnalyzerConfig{HubThreshold: 10, TopN: 50, StaleDays: 30, NowMs: testNow})
	if r.HealthScore < 0.95 {
		t.Errorf("perfect graph should have health ~1.0, got %f", r.HealthScore)
	}
	if r.HealthBreakdown.Categorization != 1 {
		t.Errorf("a graph without categories is not penalized, got %f", r.HealthBreakdown.Categorization)
	}
}

func TestHealthScore_DescribedOrphansWeighLess(t *testing.T) {
	cfg := &AnalyzerConfig{HubThreshold: 10, TopN: 50, StaleDays: 30, NowMs: testNow}
	build := func(scalars int) *GraphSnapshot {
		nodes := []*NodeInfo{{ID: 9, Name: "Duff", ScalarFacts: scalars, UpdatedAt: testNow}}
		var edges []EdgeInfo
		for i := int64(1); i <= 8; i++ {
			nodes = append(nodes, &NodeInfo{ID: i, Name: fmt.Sprintf("Entity %d", i), UpdatedAt: testNow})
			edges = append(edges, EdgeInfo{ID: 100 + i, Source: i, Target: i%8 + 1, VerbID: relatedVerb})
		}
		return NewSnapshot(nodes, edges, categoryOf)
	}
	bare := Analyze(build(0), cfg)
	described := Analyze(build(3), cfg)
	if described.HealthBreakdown.Connectivity <= bare.HealthBreakdown.Connectivity {
		t.Errorf("connectivity: described %f, bare %f; described should score higher",
			described.HealthBreakdown.Connectivity, bare.HealthBreakdown.Connectivity)
	}
}

func TestHealthScore_Categorization(t *testing.T) {
	snap := makeTestSnapshot(
		map[int64]string{1: "People", 2: "Homer", 3: "Marge", 4: "Duff"},
		nil,
		[]testEdge{
			{2, 1, categoryOf, testNow, false},
			{3, 1, categoryOf, testNow, false},
			{4, 2, relatedVerb, testNow, false},
		},
	)
	r := Analyze(snap, &AnalyzerConfig{HubThreshold: 10, TopN: 50, StaleDays: 30, NowMs: testNow})
	if got := r.HealthBreakdown.Categorization; got != 0.75 {
		t.Errorf("categorization = %f, want 0.75 (Duff uncategorized)", got)
	}
}

// --- Store Tests ---

func TestSnapshotFromDB(t *testing.T) {
	ctx := context.Background()
	d, err := db.OpenDB(filepath.Join(t.TempDir(), "claims.db"), db.Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	mk := func(name string) int64 {
		c, err := d.CreateRoot(ctx, 1, name)
		if err != nil {
			t.Fatal(err)
		}
		return c.ID
	}
	homer, marge, family := mk("Homer"), mk("Marge"), mk("Family")
	duff := mk("Duff")

	partner, err := d.CreateVerb(ctx, db.VerbSpec{Label: "partner of", DataType: datatype.UndirectedLink})
	if err != nil {
		t.Fatal(err)
	}
	link := func(s, v, o int64) int64 {
		c, err := d.CreateFact(ctx, 1, s, v, db.Object(o))
		if err != nil {
			t.Fatal(err)
		}
		return c.ID
	}
	brewed, err := d.CreateVerb(ctx, db.VerbSpec{Label: "brewed in", DataType: datatype.String})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := d.CreateFact(ctx, 1, duff, brewed.ID, db.Value("Springfield")); err != nil {
		t.Fatal(err)
	}
	marriage := link(homer, partner.ID, marge)
	link(homer, db.VerbCategory, family)
	// a link from a fact is not an entity edge
	link(marriage, db.VerbCategory, family)

	snap, err := SnapshotFromDB(ctx, d)
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Nodes) != 4 {
		t.Errorf("nodes = %d, want 4", len(snap.Nodes))
	}
	if len(snap.Edges) != 2 {
		t.Errorf("edges = %d, want 2", len(snap.Edges))
	}
	if len(snap.OutAdj[marge]) != 1 {
		t.Errorf("partner link not traversable from Marge: %v", snap.OutAdj[marge])
	}
	if snap.Regions[homer] != family {
		t.Errorf("Homer region = %d, want %d", snap.Regions[homer], family)
	}

	r := ComputeTopology(snap, 4, 10)
	if r.OrphanCount != 1 {
		t.Errorf("orphans = %d, want 1 (Duff)", r.OrphanCount)
	}
	if snap.Nodes[duff].ScalarFacts != 1 || snap.Nodes[homer].ScalarFacts != 0 {
		t.Errorf("scalar facts: Duff %d, Homer %d; want 1 and 0",
			snap.Nodes[duff].ScalarFacts, snap.Nodes[homer].ScalarFacts)
	}
	if len(r.DescribedOrphans) != 1 || r.DescribedOrphans[0] != duff {
		t.Errorf("described orphans = %v, want Duff", r.DescribedOrphans)
	}
}
