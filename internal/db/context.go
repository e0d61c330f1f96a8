package db

import (
	"container/heap"
	"context"
	"fmt"

	"recall/claims/internal/datatype"
)

// ContextNode is a claim reached by a weighted walk from a source claim
type ContextNode struct {
	Rank      int       `json:"rank"`
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Distance  float64   `json:"distance"`
	Relevance float64   `json:"relevance"`
	Hops      int       `json:"hops"`
	Path      []PathHop `json:"path"`
	IsRoot    bool      `json:"is_root"`
}

// PathHop is one link fact on the way from the source to a ContextNode
type PathHop struct {
	FactID int64  `json:"fact_id"`
	VerbID int64  `json:"verb_id"`
	ID     int64  `json:"id"`
	Name   string `json:"name"`
}

// ContextConfig holds parameters for the neighborhood walk
type ContextConfig struct {
	Budget       int
	MaxHops      int
	MaxCost      float64
	Verbs        VerbFilter        // allowlist; nil means all
	ExcludeVerbs []int64           // blocklist
	VerbCosts    map[int64]float64 // per-hop cost; verbs not listed cost 1
	RootsOnly    bool              // report entities only, still walk through facts
}

// DefaultContextConfig returns the CLI defaults. Category links are
// cheap to have and say little, so they cost more to cross.
func DefaultContextConfig() *ContextConfig {
	return &ContextConfig{
		Budget:    20,
		MaxHops:   4,
		MaxCost:   4.0,
		VerbCosts: map[int64]float64{VerbCategory: 2.0},
	}
}

// prevEntry tracks how a claim was reached (for path reconstruction)
type prevEntry struct {
	prevID int64
	factID int64
	verbID int64
}

type dijkstraEntry struct {
	distance float64
	id       int64
	hops     int
}

// dijkstraHeap is a min-heap. Ties are broken by id for deterministic
// output.
type dijkstraHeap []dijkstraEntry

func (h dijkstraHeap) Len() int { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool {
	if h[i].distance != h[j].distance {
		return h[i].distance < h[j].distance
	}
	return h[i].id < h[j].id
}
func (h dijkstraHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x any)   { *h = append(*h, x.(dijkstraEntry)) }
func (h *dijkstraHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Context walks link facts outward from source in both directions and
// returns up to config.Budget claims ordered by path cost.
func (d *DB) Context(ctx context.Context, source int64, config *ContextConfig) ([]ContextNode, error) {
	if config == nil {
		config = DefaultContextConfig()
	}
	def := DefaultContextConfig()
	budget := config.Budget
	if budget <= 0 {
		budget = def.Budget
	}
	maxHops := config.MaxHops
	if maxHops <= 0 {
		maxHops = def.MaxHops
	}
	maxCost := config.MaxCost
	if maxCost <= 0 {
		maxCost = def.MaxCost
	}
	if config.Verbs != nil && len(config.Verbs) == 0 {
		return nil, nil
	}
	if _, err := d.GetClaim(ctx, source); err != nil {
		return nil, err
	}

	var allowSet map[int64]bool
	if config.Verbs != nil {
		allowSet = make(map[int64]bool, len(config.Verbs))
		for _, v := range config.Verbs {
			allowSet[v] = true
		}
	}
	excludeSet := make(map[int64]bool, len(config.ExcludeVerbs))
	for _, v := range config.ExcludeVerbs {
		excludeSet[v] = true
	}

	dist := map[int64]float64{source: 0}
	prev := map[int64]prevEntry{}
	visited := map[int64]bool{}

	h := &dijkstraHeap{{distance: 0, id: source}}
	heap.Init(h)

	var results []ContextNode
	for h.Len() > 0 {
		entry := heap.Pop(h).(dijkstraEntry)
		current := entry.id
		if visited[current] {
			continue
		}
		visited[current] = true

		if current != source {
			node, err := d.contextNode(ctx, current, entry, prev, source, config.RootsOnly)
			if err != nil {
				return nil, err
			}
			if node != nil {
				results = append(results, *node)
				if len(results) >= budget {
					break
				}
			}
		}

		if entry.hops >= maxHops {
			continue
		}

		links, err := d.linksTouching(ctx, current)
		if err != nil {
			return nil, err
		}
		for _, l := range links {
			link := l.Row()
			if allowSet != nil && !allowSet[link.VerbID] {
				continue
			}
			if excludeSet[link.VerbID] {
				continue
			}
			neighbor := link.Other(current)
			if neighbor == 0 || visited[neighbor] {
				continue
			}

			cost := 1.0
			if c, ok := config.VerbCosts[link.VerbID]; ok && c > 0 {
				cost = c
			}
			newDist := entry.distance + cost
			if newDist > maxCost {
				continue
			}

			if prevDist, exists := dist[neighbor]; !exists || newDist < prevDist {
				dist[neighbor] = newDist
				prev[neighbor] = prevEntry{prevID: current, factID: link.ID, verbID: link.VerbID}
				heap.Push(h, dijkstraEntry{distance: newDist, id: neighbor, hops: entry.hops + 1})
			}
		}
	}

	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

func (d *DB) contextNode(ctx context.Context, id int64, entry dijkstraEntry, prev map[int64]prevEntry, source int64, rootsOnly bool) (*ContextNode, error) {
	c, err := d.GetClaim(ctx, id)
	if err != nil {
		return nil, err
	}
	if rootsOnly && !c.IsRoot() {
		return nil, nil
	}
	name, err := d.Name(ctx, id)
	if err != nil {
		return nil, err
	}
	path, err := d.reconstructPath(ctx, prev, source, id)
	if err != nil {
		return nil, err
	}
	return &ContextNode{
		ID:        id,
		Name:      name,
		Distance:  entry.distance,
		Relevance: 1.0 / (1.0 + entry.distance),
		Hops:      entry.hops,
		Path:      path,
		IsRoot:    c.IsRoot(),
	}, nil
}

// linksTouching returns the link facts with id on either side
func (d *DB) linksTouching(ctx context.Context, id int64) ([]*Claim, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT c.id, c.subject_id, c.verb_id, c.value, c.object_id, c.owner_id, c.created_at, c.updated_at
		 FROM claims c JOIN verbs v ON v.id = c.verb_id
		 WHERE (c.subject_id = ? OR c.object_id = ?) AND v.data_type IN (?, ?)
		 ORDER BY c.id`,
		id, id, datatype.DirectedLink, datatype.UndirectedLink)
	if err != nil {
		return nil, fmt.Errorf("listing links of %d: %w", id, err)
	}
	found, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("listing links of %d: %w", id, err)
	}
	return d.intern(found), nil
}

// reconstructPath walks prev backwards from target to source
func (d *DB) reconstructPath(ctx context.Context, prev map[int64]prevEntry, source, target int64) ([]PathHop, error) {
	var path []PathHop
	current := target
	for current != source {
		entry, ok := prev[current]
		if !ok {
			break
		}
		name, err := d.Name(ctx, current)
		if err != nil {
			return nil, err
		}
		path = append(path, PathHop{
			FactID: entry.factID,
			VerbID: entry.verbID,
			ID:     current,
			Name:   name,
		})
		current = entry.prevID
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path, nil
}
