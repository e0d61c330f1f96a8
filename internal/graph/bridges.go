package graph

import "sort"

// ArticulationPoint is an entity whose removal splits its component
type ArticulationPoint struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	// Pieces is how many parts its component falls into without it
	Pieces int `json:"pieces_if_removed"`
}

// BridgeEdge is a link fact that is the only relation path between two
// parts of the graph. Two facts between the same pair never form a bridge.
type BridgeEdge struct {
	FactID     int64  `json:"fact_id"`
	VerbID     int64  `json:"verb_id"`
	SourceID   int64  `json:"source_id"`
	TargetID   int64  `json:"target_id"`
	SourceName string `json:"source_name"`
	TargetName string `json:"target_name"`
}

// FragileConnection represents two categories with very few relation links
// between their members
type FragileConnection struct {
	RegionA     int64  `json:"region_a"`
	RegionB     int64  `json:"region_b"`
	RegionAName string `json:"region_a_name"`
	RegionBName string `json:"region_b_name"`
	CrossEdges  int    `json:"cross_edges"`
}

// BridgeReport contains bridge analysis results
type BridgeReport struct {
	ArticulationPoints []ArticulationPoint `json:"articulation_points"`
	BridgeEdges        []BridgeEdge        `json:"bridge_edges"`
	FragileConnections []FragileConnection `json:"fragile_connections"`
	APCount            int                 `json:"ap_count"`
	BridgeCount        int                 `json:"bridge_count"`
}

// fragileMax is the most cross links two categories may share and still be
// reported as fragile
const fragileMax = 2

// incidence is one end of a relation link, keyed by the link's position in
// snap.Edges so parallel facts stay distinct
type incidence struct {
	to, edge int
}

// ComputeBridges finds articulation points, bridge facts and fragile links
// between categories. Only relation links count: category membership is
// hierarchy, and removing it does not cut a relationship.
func ComputeBridges(snap *GraphSnapshot) *BridgeReport {
	if len(snap.Nodes) == 0 {
		return &BridgeReport{}
	}

	nodeIDs := snap.NodeIDs()
	idToIdx := make(map[int64]int, len(nodeIDs))
	for i, id := range nodeIDs {
		idToIdx[id] = i
	}
	n := len(nodeIDs)

	adj := make([][]incidence, n)
	for i, e := range snap.Edges {
		if snap.IsCategoryLink(e) || e.Source == e.Target {
			continue
		}
		u, v := idToIdx[e.Source], idToIdx[e.Target]
		adj[u] = append(adj[u], incidence{v, i})
		adj[v] = append(adj[v], incidence{u, i})
	}

	disc := make([]int, n)
	low := make([]int, n)
	cuts := make([]int, n) // tree children whose subtree cannot reach above the node
	var bridges []int
	counter := 1

	const noEdge = -1

	type frame struct {
		node, via, next int
	}

	for start := 0; start < n; start++ {
		if disc[start] != 0 {
			continue
		}
		disc[start] = counter
		low[start] = counter
		counter++
		stack := []frame{{start, noEdge, 0}}

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			node := top.node
			if top.next < len(adj[node]) {
				inc := adj[node][top.next]
				top.next++
				if inc.edge == top.via {
					continue
				}
				if disc[inc.to] != 0 {
					low[node] = min(low[node], disc[inc.to])
					continue
				}
				disc[inc.to] = counter
				low[inc.to] = counter
				counter++
				stack = append(stack, frame{inc.to, inc.edge, 0})
				continue
			}

			via := top.via
			stack = stack[:len(stack)-1]
			if len(stack) == 0 {
				continue
			}
			pn := stack[len(stack)-1].node
			low[pn] = min(low[pn], low[node])
			if low[node] > disc[pn] {
				bridges = append(bridges, via)
			}
			if low[node] >= disc[pn] {
				cuts[pn]++
			}
		}

		// The DFS root has no part above it: every tree child is its own piece.
		if cuts[start] < 2 {
			cuts[start] = 0
		} else {
			cuts[start]--
		}
	}

	var aps []ArticulationPoint
	for i := 0; i < n; i++ {
		if cuts[i] == 0 {
			continue
		}
		id := nodeIDs[i]
		aps = append(aps, ArticulationPoint{
			ID:     id,
			Name:   snap.Nodes[id].Name,
			Pieces: cuts[i] + 1,
		})
	}
	sort.SliceStable(aps, func(i, j int) bool { return aps[i].Pieces > aps[j].Pieces })

	bridgeEdges := make([]BridgeEdge, 0, len(bridges))
	for _, i := range bridges {
		e := snap.Edges[i]
		bridgeEdges = append(bridgeEdges, BridgeEdge{
			FactID:     e.ID,
			VerbID:     e.VerbID,
			SourceID:   e.Source,
			TargetID:   e.Target,
			SourceName: snap.Name(e.Source),
			TargetName: snap.Name(e.Target),
		})
	}
	sort.Slice(bridgeEdges, func(i, j int) bool { return bridgeEdges[i].FactID < bridgeEdges[j].FactID })

	fragile := fragileConnections(snap)
	return &BridgeReport{
		ArticulationPoints: aps,
		BridgeEdges:        bridgeEdges,
		FragileConnections: fragile,
		APCount:            len(aps),
		BridgeCount:        len(bridgeEdges),
	}
}

// fragileConnections counts relation links between each pair of categories.
// Uncategorized entities have no region to be fragile about.
func fragileConnections(snap *GraphSnapshot) []FragileConnection {
	type regionPair struct{ a, b int64 }
	pairCounts := make(map[regionPair]int)
	for _, e := range snap.Edges {
		if snap.IsCategoryLink(e) {
			continue
		}
		ra := snap.Regions[e.Source]
		rb := snap.Regions[e.Target]
		if ra == rb || ra == Unassigned || rb == Unassigned {
			continue
		}
		key := regionPair{ra, rb}
		if ra > rb {
			key = regionPair{rb, ra}
		}
		pairCounts[key]++
	}

	var fragile []FragileConnection
	for pair, count := range pairCounts {
		if count > fragileMax {
			continue
		}
		fragile = append(fragile, FragileConnection{
			RegionA:     pair.a,
			RegionB:     pair.b,
			RegionAName: snap.Name(pair.a),
			RegionBName: snap.Name(pair.b),
			CrossEdges:  count,
		})
	}
	sort.Slice(fragile, func(i, j int) bool {
		if fragile[i].CrossEdges != fragile[j].CrossEdges {
			return fragile[i].CrossEdges < fragile[j].CrossEdges
		}
		if fragile[i].RegionA != fragile[j].RegionA {
			return fragile[i].RegionA < fragile[j].RegionA
		}
		return fragile[i].RegionB < fragile[j].RegionB
	})
	return fragile
}
