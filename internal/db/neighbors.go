package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recall/claims/internal/datatype"
)

// Neighbors returns the facts attached to claim id, ordered by fact id.
//
// Outgoing yields facts whose subject is id, plus facts over undirected
// verbs whose object is id: one stored row serves both endpoints. Incoming
// yields facts whose object is id over directed verbs only, since the
// undirected ones are already outgoing.
//
// filter is applied as given; see VerbFilter.
func (d *DB) Neighbors(ctx context.Context, id int64, dir Direction, filter VerbFilter, page Page) ([]*Claim, error) {
	if filter != nil && len(filter) == 0 {
		return nil, nil
	}
	if _, err := d.GetClaim(ctx, id); err != nil {
		return nil, err
	}

	var where string
	args := []any{}
	switch dir {
	case Incoming:
		where = `c.object_id = ? AND v.data_type <> ?`
		args = append(args, id, datatype.UndirectedLink)
	default:
		where = `(c.subject_id = ? OR (c.object_id = ? AND v.data_type = ?))`
		args = append(args, id, id, datatype.UndirectedLink)
	}
	if filter != nil {
		where += ` AND c.verb_id IN (` + placeholders(len(filter)) + `)`
		args = append(args, int64Args(filter)...)
	}
	limit, offset := page.limitOffset()
	args = append(args, limit, offset)

	rows, err := d.conn.QueryContext(ctx,
		`SELECT c.id, c.subject_id, c.verb_id, c.value, c.object_id, c.owner_id, c.created_at, c.updated_at
		 FROM claims c JOIN verbs v ON v.id = c.verb_id
		 WHERE `+where+`
		 ORDER BY c.id LIMIT ? OFFSET ?`,
		args...)
	if err != nil {
		return nil, fmt.Errorf("listing %s neighbors of %d: %w", dir, id, err)
	}
	found, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("listing %s neighbors of %d: %w", dir, id, err)
	}
	return d.intern(found), nil
}

// Counterpart returns the claim at the other end of link fact c as seen
// from claim from
func (d *DB) Counterpart(ctx context.Context, c *Claim, from int64) (*Claim, error) {
	return d.GetClaim(ctx, c.Other(from))
}

// Name returns a root's display name, or the rendered statement of a fact
func (d *DB) Name(ctx context.Context, id int64) (string, error) {
	c, err := d.GetClaim(ctx, id)
	if err != nil {
		return "", err
	}
	if r := c.Row(); r.IsRoot() && r.Value != nil {
		return *r.Value, nil
	}
	return d.Describe(ctx, id)
}

// Validity is the window stated by VALID_FROM / VALID_UNTIL meta-facts.
// A nil bound is open.
type Validity struct {
	From  *time.Time `json:"from,omitempty"`
	Until *time.Time `json:"until,omitempty"`
}

// Contains reports whether t falls inside the window
func (v Validity) Contains(t time.Time) bool {
	if v.From != nil && t.Before(*v.From) {
		return false
	}
	if v.Until != nil && t.After(*v.Until) {
		return false
	}
	return true
}

// Validity reads the validity window attached to claim id, which may be a
// root or a fact. When a bound is stated more than once the latest fact
// wins.
func (d *DB) Validity(ctx context.Context, id int64) (Validity, error) {
	var out Validity
	facts, err := d.Neighbors(ctx, id, Outgoing, VerbFilter{VerbValidFrom, VerbValidUntil}, Page{})
	if err != nil {
		return out, err
	}
	for _, fact := range facts {
		f := fact.Row()
		if f.Value == nil {
			continue
		}
		decoded, err := datatype.Decode(datatype.Date, *f.Value, datatype.Options{})
		if err != nil {
			return out, err
		}
		t := decoded.(time.Time)
		if f.VerbID == VerbValidFrom {
			out.From = &t
		} else {
			out.Until = &t
		}
	}
	return out, nil
}

// Comments returns the text of every COMMENT meta-fact on claim id
func (d *DB) Comments(ctx context.Context, id int64) ([]string, error) {
	facts, err := d.Neighbors(ctx, id, Outgoing, VerbFilter{VerbComment}, Page{})
	if err != nil {
		return nil, err
	}
	var out []string
	for _, fact := range facts {
		f := fact.Row()
		if f.Value != nil && strings.TrimSpace(*f.Value) != "" {
			out = append(out, *f.Value)
		}
	}
	return out, nil
}
