package graph

import (
	"context"

	"recall/claims/internal/db"
)

// SnapshotFromDB loads every entity, its scalar fact count and every link
// fact between entities
func SnapshotFromDB(ctx context.Context, d *db.DB) (*GraphSnapshot, error) {
	roots, err := d.ListRoots(ctx, db.Page{})
	if err != nil {
		return nil, err
	}
	scalars, err := d.ScalarFactCounts(ctx)
	if err != nil {
		return nil, err
	}
	links, err := d.LinkFacts(ctx)
	if err != nil {
		return nil, err
	}

	nodes := make([]*NodeInfo, 0, len(roots))
	for _, root := range roots {
		r := root.Row()
		var name string
		if r.Value != nil {
			name = *r.Value
		}
		nodes = append(nodes, &NodeInfo{
			ID:          r.ID,
			Name:        name,
			ScalarFacts: scalars[r.ID],
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}

	edges := make([]EdgeInfo, 0, len(links))
	for _, link := range links {
		c := link.Row()
		verb, err := d.GetVerb(ctx, c.VerbID)
		if err != nil {
			return nil, err
		}
		edges = append(edges, EdgeInfo{
			ID:        c.ID,
			Source:    *c.SubjectID,
			Target:    *c.ObjectID,
			VerbID:    c.VerbID,
			Symmetric: verb.Symmetric(),
			CreatedAt: c.CreatedAt,
			UpdatedAt: c.UpdatedAt,
		})
	}

	return NewSnapshot(nodes, edges, db.VerbCategory), nil
}
