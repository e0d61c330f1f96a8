package graph

import "sort"

const dayMs = int64(86_400_000)

// StaleNode is an entity that has not changed in a while but is still being
// linked to
type StaleNode struct {
	ID              int64  `json:"id"`
	Name            string `json:"name"`
	DaysSinceUpdate int64  `json:"days_since_update"`
	RecentRefCount  int    `json:"recent_reference_count"`
}

// StalenessReport contains staleness analysis results
type StalenessReport struct {
	StaleNodes     []StaleNode `json:"stale_nodes"`
	StaleNodeCount int         `json:"stale_node_count"`
}

// ComputeStaleness finds entities not updated for staleDays that gained
// incoming links during the last week. nowMs is the reference time.
func ComputeStaleness(snap *GraphSnapshot, staleDays, nowMs int64) *StalenessReport {
	staleThresholdMs := staleDays * dayMs
	recentWindowMs := 7 * dayMs

	recent := make(map[int64]int)
	for _, e := range snap.Edges {
		if e.Source == e.Target || nowMs-e.CreatedAt >= recentWindowMs {
			continue
		}
		recent[e.Target]++
		if e.Symmetric {
			recent[e.Source]++
		}
	}

	var staleNodes []StaleNode
	for _, id := range snap.NodeIDs() {
		node := snap.Nodes[id]
		ageMs := nowMs - node.UpdatedAt
		if ageMs <= staleThresholdMs || recent[id] == 0 {
			continue
		}
		staleNodes = append(staleNodes, StaleNode{
			ID:              id,
			Name:            node.Name,
			DaysSinceUpdate: ageMs / dayMs,
			RecentRefCount:  recent[id],
		})
	}
	sort.SliceStable(staleNodes, func(i, j int) bool {
		return staleNodes[i].RecentRefCount > staleNodes[j].RecentRefCount
	})

	return &StalenessReport{
		StaleNodes:     staleNodes,
		StaleNodeCount: len(staleNodes),
	}
}
