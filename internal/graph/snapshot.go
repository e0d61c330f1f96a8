package graph

import "sort"

// Unassigned is the region of entities that belong to no category
const Unassigned int64 = 0

// NodeInfo is a lightweight entity representation decoupled from DB types
type NodeInfo struct {
	ID          int64
	Name        string
	ScalarFacts int // value facts stated about the entity
	CreatedAt   int64
	UpdatedAt   int64
}

// EdgeInfo is a link fact between two entities
type EdgeInfo struct {
	ID        int64 // fact claim id
	Source    int64
	Target    int64
	VerbID    int64
	Symmetric bool // undirected_link: traversable from either end
	CreatedAt int64
	UpdatedAt int64
}

// GraphSnapshot holds a graph with precomputed adjacency lists and region map.
// CATEGORY facts are membership, not relationships: they shape Regions and
// Members but are left out of Adj.
type GraphSnapshot struct {
	Nodes   map[int64]*NodeInfo
	Edges   []EdgeInfo
	Adj     map[int64][]int64 // relation links, each fact once per endpoint
	OutAdj  map[int64][]int64 // traversable: source -> targets
	InAdj   map[int64][]int64 // traversable: target -> sources
	Members map[int64][]int64 // category -> direct members
	Regions map[int64]int64   // node -> top-level category, or Unassigned

	categoryVerb int64
}

// IsCategoryLink reports whether e places its source in a category
func (s *GraphSnapshot) IsCategoryLink(e EdgeInfo) bool {
	return e.VerbID == s.categoryVerb
}

// IsCategory reports whether id has at least one member
func (s *GraphSnapshot) IsCategory(id int64) bool {
	return len(s.Members[id]) > 0
}

// NewSnapshot builds a GraphSnapshot from entities and link facts. Edges
// with an endpoint outside nodes, such as links from a fact, are dropped.
// Facts under categoryVerb place their subject in the category named by
// their object.
func NewSnapshot(nodes []*NodeInfo, edges []EdgeInfo, categoryVerb int64) *GraphSnapshot {
	nodeMap := make(map[int64]*NodeInfo, len(nodes))
	adj := make(map[int64][]int64)
	outAdj := make(map[int64][]int64)
	inAdj := make(map[int64][]int64)
	members := make(map[int64][]int64)

	for _, n := range nodes {
		nodeMap[n.ID] = n
		adj[n.ID] = nil // ensure entry exists
		outAdj[n.ID] = nil
		inAdj[n.ID] = nil
	}

	var kept []EdgeInfo
	for _, e := range edges {
		if _, ok := nodeMap[e.Source]; !ok {
			continue
		}
		if _, ok := nodeMap[e.Target]; !ok {
			continue
		}
		kept = append(kept, e)
		if e.VerbID == categoryVerb {
			members[e.Target] = append(members[e.Target], e.Source)
		} else {
			adj[e.Source] = append(adj[e.Source], e.Target)
			adj[e.Target] = append(adj[e.Target], e.Source)
		}
		outAdj[e.Source] = append(outAdj[e.Source], e.Target)
		inAdj[e.Target] = append(inAdj[e.Target], e.Source)
		if e.Symmetric {
			outAdj[e.Target] = append(outAdj[e.Target], e.Source)
			inAdj[e.Source] = append(inAdj[e.Source], e.Target)
		}
	}

	return &GraphSnapshot{
		Nodes:        nodeMap,
		Edges:        kept,
		Adj:          adj,
		OutAdj:       outAdj,
		InAdj:        inAdj,
		Members:      members,
		Regions:      computeRegions(nodeMap, kept, categoryVerb),
		categoryVerb: categoryVerb,
	}
}

// FilterToRegion returns a new snapshot containing only the members of
// category region, the category itself included
func (s *GraphSnapshot) FilterToRegion(region int64) *GraphSnapshot {
	var nodes []*NodeInfo
	for _, id := range s.NodeIDs() {
		if s.Regions[id] == region {
			nodes = append(nodes, s.Nodes[id])
		}
	}
	return NewSnapshot(nodes, s.Edges, s.categoryVerb)
}

// NodeIDs returns a sorted list of all node IDs (for deterministic output)
func (s *GraphSnapshot) NodeIDs() []int64 {
	ids := make([]int64, 0, len(s.Nodes))
	for id := range s.Nodes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Name returns the display name of node id, or "" if it is not in the
// snapshot
func (s *GraphSnapshot) Name(id int64) string {
	if n, ok := s.Nodes[id]; ok {
		return n.Name
	}
	return ""
}

// computeRegions follows category facts upward until a category that has no
// category of its own. The first category fact of a node wins.
func computeRegions(nodes map[int64]*NodeInfo, edges []EdgeInfo, categoryVerb int64) map[int64]int64 {
	parent := make(map[int64]int64)
	isCategory := make(map[int64]bool)
	for _, e := range edges {
		if e.VerbID != categoryVerb {
			continue
		}
		isCategory[e.Target] = true
		if _, ok := parent[e.Source]; !ok && e.Source != e.Target {
			parent[e.Source] = e.Target
		}
	}

	regions := make(map[int64]int64, len(nodes))
	for id := range nodes {
		if _, ok := parent[id]; !ok {
			if isCategory[id] {
				regions[id] = id
			} else {
				regions[id] = Unassigned
			}
			continue
		}
		regions[id] = topCategory(id, parent)
	}
	return regions
}

func topCategory(id int64, parent map[int64]int64) int64 {
	current := id
	visited := make(map[int64]bool)
	for {
		if visited[current] {
			return Unassigned // cycle
		}
		visited[current] = true
		next, ok := parent[current]
		if !ok {
			return current
		}
		current = next
	}
}
