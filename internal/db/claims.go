package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"recall/claims/internal/apperr"
)

const claimColumns = `id, subject_id, verb_id, value, object_id, owner_id, created_at, updated_at`

// bulkChunk keeps IN lists well under SQLite's bound-parameter limit
const bulkChunk = 500

// scanClaim scans a row into a ClaimRow. The row must have claimColumns in order.
func scanClaim(scanner interface{ Scan(dest ...any) error }) (ClaimRow, error) {
	var c ClaimRow
	var subject, object sql.NullInt64
	var value sql.NullString
	err := scanner.Scan(
		&c.ID, &subject, &c.VerbID, &value, &object,
		&c.OwnerID, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return c, err
	}
	if subject.Valid {
		c.SubjectID = &subject.Int64
	}
	if object.Valid {
		c.ObjectID = &object.Int64
	}
	if value.Valid {
		c.Value = &value.String
	}
	return c, nil
}

func collectClaims(rows *sql.Rows) ([]ClaimRow, error) {
	defer rows.Close()
	var out []ClaimRow
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func int64Args(ids []int64) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}

// GetClaim returns the cached claim for id, loading it if needed
func (d *DB) GetClaim(ctx context.Context, id int64) (*Claim, error) {
	return d.claim(ctx, d.conn, id)
}

// EnsureClaimLoaded populates c from its row if it is still a placeholder.
// It fetches at most once; a missing row evicts c and returns NotFound.
func (d *DB) EnsureClaimLoaded(ctx context.Context, c *Claim) error {
	return d.ensureClaim(ctx, d.conn, c)
}

func (d *DB) claim(ctx context.Context, q querier, id int64) (*Claim, error) {
	c := d.cache.Claim(id)
	if err := d.ensureClaim(ctx, q, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (d *DB) ensureClaim(ctx context.Context, q querier, c *Claim) error {
	if c.Loaded() {
		return nil
	}
	d.loads.Add(1)
	row, err := scanClaim(q.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = ?`, c.ID))
	if errors.Is(err, sql.ErrNoRows) {
		d.cache.EvictClaim(c.ID)
		return apperr.NotFound("claim", c.ID)
	}
	if err != nil {
		return fmt.Errorf("loading claim %d: %w", c.ID, err)
	}
	d.cache.fillClaim(row, false)
	return nil
}

// BulkLoadClaims resolves ids with one query per chunk instead of one per
// claim, and prefetches every fact whose subject is among them so a
// following enumeration finds them cached. Results keep the order of ids.
func (d *DB) BulkLoadClaims(ctx context.Context, ids []int64) ([]*Claim, error) {
	out := make([]*Claim, len(ids))
	var pending []int64
	for i, id := range ids {
		out[i] = d.cache.Claim(id)
		if !out[i].Loaded() {
			pending = append(pending, id)
		}
	}

	var missing []int64
	for start := 0; start < len(pending); start += bulkChunk {
		chunk := pending[start:min(start+bulkChunk, len(pending))]
		d.loads.Add(1)
		rows, err := d.conn.QueryContext(ctx,
			`SELECT `+claimColumns+` FROM claims WHERE id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...)
		if err != nil {
			return nil, fmt.Errorf("bulk loading claims: %w", err)
		}
		loaded, err := collectClaims(rows)
		if err != nil {
			return nil, fmt.Errorf("bulk loading claims: %w", err)
		}
		found := make(map[int64]bool, len(loaded))
		for _, row := range loaded {
			d.cache.fillClaim(row, false)
			found[row.ID] = true
		}
		for _, id := range chunk {
			if !found[id] {
				missing = append(missing, id)
			}
		}
	}
	if len(missing) > 0 {
		for _, id := range missing {
			d.cache.EvictClaim(id)
		}
		return nil, apperr.NotFound("claim", missing[0])
	}

	if err := d.prefetchFacts(ctx, ids); err != nil {
		return nil, err
	}
	return out, nil
}

// prefetchFacts loads every claim whose subject is in ids
func (d *DB) prefetchFacts(ctx context.Context, ids []int64) error {
	for start := 0; start < len(ids); start += bulkChunk {
		chunk := ids[start:min(start+bulkChunk, len(ids))]
		rows, err := d.conn.QueryContext(ctx,
			`SELECT `+claimColumns+` FROM claims WHERE subject_id IN (`+placeholders(len(chunk))+`)`,
			int64Args(chunk)...)
		if err != nil {
			return fmt.Errorf("prefetching facts: %w", err)
		}
		facts, err := collectClaims(rows)
		if err != nil {
			return fmt.Errorf("prefetching facts: %w", err)
		}
		for _, f := range facts {
			d.cache.fillClaim(f, false)
		}
	}
	return nil
}

// ListRoots returns root claims ordered by id
func (d *DB) ListRoots(ctx context.Context, page Page) ([]*Claim, error) {
	limit, offset := page.limitOffset()
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE subject_id IS NULL AND verb_id = ?
		 ORDER BY id LIMIT ? OFFSET ?`,
		VerbRoot, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing roots: %w", err)
	}
	found, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("listing roots: %w", err)
	}
	return d.intern(found), nil
}

// LinkFacts returns every fact stored under a directed or undirected link
// verb, ordered by id.
func (d *DB) LinkFacts(ctx context.Context) ([]*Claim, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT c.id, c.subject_id, c.verb_id, c.value, c.object_id, c.owner_id, c.created_at, c.updated_at
		 FROM claims c JOIN verbs v ON v.id = c.verb_id
		 WHERE v.data_type IN ('directed_link', 'undirected_link') AND c.object_id IS NOT NULL
		 ORDER BY c.id`)
	if err != nil {
		return nil, fmt.Errorf("listing link facts: %w", err)
	}
	found, err := collectClaims(rows)
	if err != nil {
		return nil, fmt.Errorf("listing link facts: %w", err)
	}
	return d.intern(found), nil
}

// ScalarFactCounts returns, per entity, how many value facts have the
// entity as their subject. Entities without any are absent.
func (d *DB) ScalarFactCounts(ctx context.Context) (map[int64]int, error) {
	rows, err := d.conn.QueryContext(ctx,
		`SELECT f.subject_id, COUNT(*)
		 FROM claims f JOIN claims r ON r.id = f.subject_id
		 WHERE f.object_id IS NULL AND f.value IS NOT NULL
		   AND r.subject_id IS NULL AND r.verb_id = ?
		 GROUP BY f.subject_id`,
		VerbRoot)
	if err != nil {
		return nil, fmt.Errorf("counting scalar facts: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var id int64
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, fmt.Errorf("counting scalar facts: %w", err)
		}
		counts[id] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("counting scalar facts: %w", err)
	}
	return counts, nil
}

// intern routes freshly read rows through the identity map
func (d *DB) intern(rows []ClaimRow) []*Claim {
	out := make([]*Claim, len(rows))
	for i, row := range rows {
		out[i] = d.cache.fillClaim(row, false)
	}
	return out
}

// Describe renders a claim as text: a root by its name, a fact as
// "subject verb object". Claims already being rendered higher up the chain
// print as "#id", so self-referencing facts terminate.
func (d *DB) Describe(ctx context.Context, id int64) (string, error) {
	return d.describe(ctx, id, make(map[int64]bool))
}

func (d *DB) describe(ctx context.Context, id int64, visiting map[int64]bool) (string, error) {
	if visiting[id] {
		return fmt.Sprintf("#%d", id), nil
	}
	visiting[id] = true
	defer delete(visiting, id)

	cl, err := d.GetClaim(ctx, id)
	if err != nil {
		return "", err
	}
	c := cl.Row()
	if c.IsRoot() {
		if c.Value == nil {
			return fmt.Sprintf("#%d", id), nil
		}
		return *c.Value, nil
	}

	subject, err := d.describe(ctx, *c.SubjectID, visiting)
	if err != nil {
		return "", err
	}
	verb, err := d.GetVerb(ctx, c.VerbID)
	if err != nil {
		return "", err
	}
	var object string
	switch {
	case c.ObjectID != nil:
		if object, err = d.describe(ctx, *c.ObjectID, visiting); err != nil {
			return "", err
		}
	case c.Value != nil:
		object = *c.Value
	}
	return fmt.Sprintf("%s %s %s", subject, verb.Label(), object), nil
}
