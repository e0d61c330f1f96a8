package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
	"recall/claims/internal/infer"
)

const verbColumns = `id, label, data_type, internal, extra`

const inferenceVerbsKey = "inference-verbs"

// scanVerb scans a row into a VerbRow, decoding extra for its data type
func scanVerb(scanner interface{ Scan(dest ...any) error }) (VerbRow, error) {
	var v VerbRow
	var extra sql.NullString
	if err := scanner.Scan(&v.ID, &v.Label, &v.DataType, &v.Internal, &extra); err != nil {
		return v, err
	}
	v.Extra = DecodeExtra(v.DataType, extra)
	return v, nil
}

// VerbSpec describes a verb to create
type VerbSpec struct {
	Label    string
	DataType string
	Internal bool
	Extra    Extra // nil means NoExtra
}

// VerbUpdate lists the fields to change. Nil fields are left alone.
// DataType may only restate the current type.
type VerbUpdate struct {
	Label    *string
	Internal *bool
	Extra    Extra
	DataType *string
}

// GetVerb returns the cached verb for id, loading it if needed
func (d *DB) GetVerb(ctx context.Context, id int64) (*Verb, error) {
	return d.verb(ctx, d.conn, id)
}

// EnsureVerbLoaded populates v from its row if it is still a placeholder
func (d *DB) EnsureVerbLoaded(ctx context.Context, v *Verb) error {
	return d.ensureVerb(ctx, d.conn, v)
}

func (d *DB) verb(ctx context.Context, q querier, id int64) (*Verb, error) {
	v := d.cache.Verb(id)
	if err := d.ensureVerb(ctx, q, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (d *DB) ensureVerb(ctx context.Context, q querier, v *Verb) error {
	if v.Loaded() {
		return nil
	}
	d.loads.Add(1)
	row, err := scanVerb(q.QueryRowContext(ctx, `SELECT `+verbColumns+` FROM verbs WHERE id = ?`, v.ID))
	if errors.Is(err, sql.ErrNoRows) {
		d.cache.EvictVerb(v.ID)
		return apperr.NotFound("verb", v.ID)
	}
	if err != nil {
		return fmt.Errorf("loading verb %d: %w", v.ID, err)
	}
	d.cache.fillVerb(row, false)
	return nil
}

// VerbByLabel finds a non-internal verb by its label
func (d *DB) VerbByLabel(ctx context.Context, label string) (*Verb, error) {
	row, err := scanVerb(d.conn.QueryRowContext(ctx,
		`SELECT `+verbColumns+` FROM verbs WHERE label = ? AND internal = 0`, label))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperr.New(apperr.KindNotFound, "verb %q not found", label)
	}
	if err != nil {
		return nil, fmt.Errorf("finding verb %q: %w", label, err)
	}
	return d.cache.fillVerb(row, false), nil
}

// ListVerbs returns verbs ordered by id, built-ins first
func (d *DB) ListVerbs(ctx context.Context, page Page) ([]*Verb, error) {
	limit, offset := page.limitOffset()
	rows, err := d.conn.QueryContext(ctx,
		`SELECT `+verbColumns+` FROM verbs ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("listing verbs: %w", err)
	}
	defer rows.Close()

	var verbs []*Verb
	for rows.Next() {
		row, err := scanVerb(rows)
		if err != nil {
			return nil, err
		}
		verbs = append(verbs, d.cache.fillVerb(row, false))
	}
	return verbs, rows.Err()
}

// CreateVerb validates spec and inserts it. User verb ids start at 1, below
// them are the built-ins. Public labels are indexed for search; creating an
// inferred verb invalidates the inference verb set.
func (d *DB) CreateVerb(ctx context.Context, spec VerbSpec) (*Verb, error) {
	label := strings.TrimSpace(spec.Label)
	if label == "" {
		return nil, apperr.Encoding("verb label is empty")
	}
	if !datatype.Known(spec.DataType) {
		return nil, apperr.TypeMismatch("unknown data type %q", spec.DataType)
	}

	var created VerbRow
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if spec.DataType == datatype.Inferred {
			if err := d.checkRuleExtra(ctx, tx, spec.Extra); err != nil {
				return err
			}
		}
		extra, err := encodeExtra(spec.DataType, spec.Extra)
		if err != nil {
			return err
		}
		if !spec.Internal {
			if err := checkLabelFree(ctx, tx, label, 0); err != nil {
				return err
			}
		}

		res, err := tx.ExecContext(ctx,
			`INSERT INTO verbs (id, label, data_type, internal, extra)
			 VALUES ((SELECT MAX(COALESCE(MAX(id), 0), 0) + 1 FROM verbs), ?, ?, ?, ?)`,
			label, spec.DataType, spec.Internal, extra)
		if err != nil {
			return fmt.Errorf("inserting verb: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("reading verb id: %w", err)
		}
		created = VerbRow{
			ID:       id,
			Label:    label,
			DataType: spec.DataType,
			Internal: spec.Internal,
			Extra:    DecodeExtra(spec.DataType, extra),
		}
		if !spec.Internal {
			return d.indexDocument(ctx, tx, TableVerbs, id, label)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if created.DataType == datatype.Inferred {
		d.invalidateInference()
	}
	d.invalidateAvgDL()
	d.log.Debug("created verb",
		zap.Int64("id", created.ID),
		zap.String("label", created.Label),
		zap.String("data_type", created.DataType))
	return d.cache.fillVerb(created, true), nil
}

// UpdateVerb applies u to verb id. Changing the data type fails with
// TypeMismatch.
func (d *DB) UpdateVerb(ctx context.Context, id int64, u VerbUpdate) (*Verb, error) {
	var updated VerbRow
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		cur, err := d.verb(ctx, tx, id)
		if err != nil {
			return err
		}
		if id < 0 {
			return apperr.TypeMismatch("built-in verb %d cannot be changed", id)
		}
		next := cur.Row()
		if u.DataType != nil && *u.DataType != next.DataType {
			return apperr.TypeMismatch("verb %d data type is %s and cannot change to %s", id, next.DataType, *u.DataType)
		}
		if u.Label != nil {
			next.Label = strings.TrimSpace(*u.Label)
			if next.Label == "" {
				return apperr.Encoding("verb label is empty")
			}
		}
		if u.Internal != nil {
			next.Internal = *u.Internal
		}
		if u.Extra != nil {
			next.Extra = u.Extra
			if next.DataType == datatype.Inferred {
				if err := d.checkRuleExtra(ctx, tx, u.Extra); err != nil {
					return err
				}
			}
		}
		extra, err := encodeExtra(next.DataType, next.Extra)
		if err != nil {
			return err
		}
		if !next.Internal {
			if err := checkLabelFree(ctx, tx, next.Label, id); err != nil {
				return err
			}
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE verbs SET label = ?, internal = ?, extra = ? WHERE id = ?`,
			next.Label, next.Internal, extra, id)
		if err != nil {
			return fmt.Errorf("updating verb %d: %w", id, err)
		}
		next.Extra = DecodeExtra(next.DataType, extra)
		updated = next

		if next.Internal {
			return removeDocument(ctx, tx, TableVerbs, id)
		}
		return d.indexDocument(ctx, tx, TableVerbs, id, next.Label)
	})
	if err != nil {
		return nil, err
	}

	if updated.DataType == datatype.Inferred {
		d.invalidateInference()
	}
	d.invalidateAvgDL()
	return d.cache.fillVerb(updated, true), nil
}

// DeleteVerb removes a verb that no claim and no rule refers to
func (d *DB) DeleteVerb(ctx context.Context, id int64) error {
	if id < 0 {
		return apperr.ReferentialConflict("built-in verb %d cannot be deleted", id)
	}
	var wasInferred bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		v, err := d.verb(ctx, tx, id)
		if err != nil {
			return err
		}
		wasInferred = v.DataType() == datatype.Inferred

		var uses int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims WHERE verb_id = ?`, id).Scan(&uses); err != nil {
			return fmt.Errorf("counting uses of verb %d: %w", id, err)
		}
		if uses > 0 {
			return apperr.ReferentialConflict("verb %d is used by %d claims", id, uses)
		}
		if ruleVerb, err := ruleReferencing(ctx, tx, id); err != nil {
			return err
		} else if ruleVerb != 0 {
			return apperr.ReferentialConflict("verb %d is used by the rule of verb %d", id, ruleVerb)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM verbs WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting verb %d: %w", id, err)
		}
		return removeDocument(ctx, tx, TableVerbs, id)
	})
	if err != nil {
		return err
	}

	d.cache.EvictVerb(id)
	if wasInferred {
		d.invalidateInference()
	}
	d.invalidateAvgDL()
	return nil
}

// ruleReferencing returns the id of an inferred verb whose rule mentions
// verbID, or 0
func ruleReferencing(ctx context.Context, q querier, verbID int64) (int64, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, extra FROM verbs WHERE data_type = ? AND id <> ?`, datatype.Inferred, verbID)
	if err != nil {
		return 0, fmt.Errorf("scanning rules: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var id int64
		var extra sql.NullString
		if err := rows.Scan(&id, &extra); err != nil {
			return 0, err
		}
		re, ok := DecodeExtra(datatype.Inferred, extra).(RuleExtra)
		if !ok || re.Err != nil {
			continue
		}
		for _, v := range re.Rule.VerbIDs() {
			if v == verbID {
				return id, nil
			}
		}
	}
	return 0, rows.Err()
}

func checkLabelFree(ctx context.Context, q querier, label string, self int64) error {
	var other int64
	err := q.QueryRowContext(ctx,
		`SELECT id FROM verbs WHERE label = ? AND internal = 0 AND id <> ?`, label, self).Scan(&other)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("checking label %q: %w", label, err)
	}
	return apperr.Duplicate("verb label %q is already used by verb %d", label, other)
}

// checkRuleExtra validates the rule carried by e against current verbs
func (d *DB) checkRuleExtra(ctx context.Context, q querier, e Extra) error {
	re, ok := e.(RuleExtra)
	if !ok {
		return apperr.InvalidRule("inferred verb needs a rule")
	}
	if re.Err != nil {
		return re.Err
	}
	kinds, err := d.verbKinds(ctx, q, re.Rule.VerbIDs())
	if err != nil {
		return err
	}
	return infer.Validate(re.Rule, kinds)
}

// verbKinds maps each existing id to the kind the compiler needs. Unknown
// ids are left out, which Validate reports as InvalidRule.
func (d *DB) verbKinds(ctx context.Context, q querier, ids []int64) (map[int64]infer.VerbKind, error) {
	kinds := make(map[int64]infer.VerbKind, len(ids))
	for _, id := range ids {
		v, err := d.verb(ctx, q, id)
		if errors.Is(err, apperr.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		switch v.DataType() {
		case datatype.DirectedLink:
			kinds[id] = infer.KindDirected
		case datatype.UndirectedLink:
			kinds[id] = infer.KindUndirected
		default:
			kinds[id] = infer.KindOther
		}
	}
	return kinds, nil
}

// InferenceVerbs returns every inferred verb. The id set is cached until an
// inferred verb is created, changed or deleted.
func (d *DB) InferenceVerbs(ctx context.Context) ([]*Verb, error) {
	var ids []int64
	if cached, ok := d.memo.Get(inferenceVerbsKey); ok {
		ids = cached.([]int64)
	} else {
		rows, err := d.conn.QueryContext(ctx,
			`SELECT id FROM verbs WHERE data_type = ? ORDER BY id`, datatype.Inferred)
		if err != nil {
			return nil, fmt.Errorf("listing inference verbs: %w", err)
		}
		ids = []int64{}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, err
			}
			ids = append(ids, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
		d.memo.Set(inferenceVerbsKey, ids, gocache.NoExpiration)
	}

	verbs := make([]*Verb, 0, len(ids))
	for _, id := range ids {
		v, err := d.GetVerb(ctx, id)
		if err != nil {
			return nil, err
		}
		verbs = append(verbs, v)
	}
	return verbs, nil
}

func (d *DB) invalidateInference() {
	d.memo.Delete(inferenceVerbsKey)
}
