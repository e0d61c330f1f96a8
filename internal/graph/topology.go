package graph

import "sort"

// HubNode is an entity with many relation links. An undirected link is
// counted once, under Undirected, never as both in and out.
type HubNode struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Degree     int    `json:"degree"`
	Out        int    `json:"out"`
	In         int    `json:"in"`
	Undirected int    `json:"undirected"`
}

// DegreeBucket is one bucket in the relation degree histogram
type DegreeBucket struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

// CategoryStat describes one top-level category
type CategoryStat struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Direct     int    `json:"direct_members"`
	RegionSize int    `json:"region_size"` // members reached through sub-categories, itself excluded
}

// TopologyReport contains topology analysis results.
//
// Orphans are entities with no link of any kind. Bare orphans hold nothing
// but a name; described orphans carry scalar facts and are only missing
// their relationships.
type TopologyReport struct {
	Entities          int            `json:"entities"`
	RelationLinks     int            `json:"relation_links"`
	CategoryLinks     int            `json:"category_links"`
	NumComponents     int            `json:"num_components"`
	LargestComponent  int            `json:"largest_component"`
	SmallestComponent int            `json:"smallest_component"`
	OrphanCount       int            `json:"orphan_count"`
	BareCount         int            `json:"bare_orphan_count"`
	BareOrphans       []int64        `json:"bare_orphans"`
	DescribedOrphans  []int64        `json:"described_orphans"`
	Uncategorized     int            `json:"uncategorized"`
	Categories        []CategoryStat `json:"categories"`
	DegreeHistogram   []DegreeBucket `json:"degree_histogram"`
	Hubs              []HubNode      `json:"hubs"`
}

// linkDegrees splits an entity's relation links by direction
type linkDegrees struct {
	out, in, undirected int
}

func (d linkDegrees) total() int {
	return d.out + d.in + d.undirected
}

// ComputeTopology analyzes the entity graph. Components join entities over
// any link, category membership included; degrees, hubs and the histogram
// count relation links only, so a populous category is reported under
// Categories rather than as a hub.
func ComputeTopology(snap *GraphSnapshot, hubThreshold, topN int) *TopologyReport {
	r := &TopologyReport{
		Entities:        len(snap.Nodes),
		DegreeHistogram: defaultHistogram(),
	}
	if r.Entities == 0 {
		return r
	}

	ids := snap.NodeIDs()
	uf := NewUnionFind(ids)
	degrees := make(map[int64]*linkDegrees, len(ids))
	for _, id := range ids {
		degrees[id] = &linkDegrees{}
	}
	touched := make(map[int64]bool)
	for _, e := range snap.Edges {
		uf.Union(e.Source, e.Target)
		touched[e.Source] = true
		touched[e.Target] = true
		if snap.IsCategoryLink(e) {
			r.CategoryLinks++
			continue
		}
		r.RelationLinks++
		if e.Symmetric {
			degrees[e.Source].undirected++
			if e.Target != e.Source {
				degrees[e.Target].undirected++
			}
			continue
		}
		degrees[e.Source].out++
		degrees[e.Target].in++
	}

	components := uf.Components()
	r.NumComponents = len(components)
	r.SmallestComponent = r.Entities
	for _, c := range components {
		r.LargestComponent = max(r.LargestComponent, len(c))
		r.SmallestComponent = min(r.SmallestComponent, len(c))
	}

	for _, id := range ids {
		if touched[id] {
			continue
		}
		r.OrphanCount++
		if snap.Nodes[id].ScalarFacts > 0 {
			r.DescribedOrphans = append(r.DescribedOrphans, id)
		} else {
			r.BareCount++
			r.BareOrphans = append(r.BareOrphans, id)
		}
	}
	r.BareOrphans = firstN(r.BareOrphans, topN)
	r.DescribedOrphans = firstN(r.DescribedOrphans, topN)

	r.Categories, r.Uncategorized = categoryStats(snap, ids)

	for _, id := range ids {
		deg := degrees[id]
		r.DegreeHistogram[degreeBucket(deg.total())].Count++
		if deg.total() > hubThreshold {
			r.Hubs = append(r.Hubs, HubNode{
				ID:         id,
				Name:       snap.Nodes[id].Name,
				Degree:     deg.total(),
				Out:        deg.out,
				In:         deg.in,
				Undirected: deg.undirected,
			})
		}
	}
	sort.SliceStable(r.Hubs, func(i, j int) bool { return r.Hubs[i].Degree > r.Hubs[j].Degree })
	r.Hubs = firstN(r.Hubs, topN)
	return r
}

// categoryStats sizes every top-level category and counts the entities
// that are neither categorized nor a category
func categoryStats(snap *GraphSnapshot, ids []int64) ([]CategoryStat, int) {
	sizes := make(map[int64]int)
	uncategorized := 0
	for _, id := range ids {
		region := snap.Regions[id]
		switch {
		case region == Unassigned:
			uncategorized++
		case region != id:
			sizes[region]++
		}
	}

	var stats []CategoryStat
	for _, id := range ids {
		if snap.Regions[id] != id {
			continue
		}
		stats = append(stats, CategoryStat{
			ID:         id,
			Name:       snap.Nodes[id].Name,
			Direct:     len(snap.Members[id]),
			RegionSize: sizes[id],
		})
	}
	sort.SliceStable(stats, func(i, j int) bool { return stats[i].RegionSize > stats[j].RegionSize })
	return stats, uncategorized
}

func firstN[T any](items []T, n int) []T {
	if n >= 0 && len(items) > n {
		return items[:n]
	}
	return items
}

func defaultHistogram() []DegreeBucket {
	return []DegreeBucket{
		{Label: "0"}, {Label: "1"}, {Label: "2-3"},
		{Label: "4-7"}, {Label: "8-15"}, {Label: "16-31"}, {Label: "32+"},
	}
}

func degreeBucket(degree int) int {
	switch {
	case degree == 0:
		return 0
	case degree == 1:
		return 1
	case degree <= 3:
		return 2
	case degree <= 7:
		return 3
	case degree <= 15:
		return 4
	case degree <= 31:
		return 5
	default:
		return 6
	}
}
