package db

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
)

// Target is what a fact points at: a scalar value or another claim
type Target struct {
	value  *string
	object *int64
}

// Value targets a scalar. raw is validated and canonicalized by the verb's
// codec.
func Value(raw string) Target {
	return Target{value: &raw}
}

// Object targets another claim
func Object(id int64) Target {
	return Target{object: &id}
}

func (t Target) String() string {
	if t.object != nil {
		return fmt.Sprintf("#%d", *t.object)
	}
	if t.value != nil {
		return fmt.Sprintf("%q", *t.value)
	}
	return "<none>"
}

// Field names a mutable claim column
type Field string

const (
	FieldValue   Field = "value"
	FieldObject  Field = "object"
	FieldSubject Field = "subject"
	FieldOwner   Field = "owner"
)

// CreateRoot inserts an entity claim named name and indexes the name for
// search in the same transaction.
func (d *DB) CreateRoot(ctx context.Context, owner int64, name string) (*Claim, error) {
	value, err := datatype.Canonical(datatype.String, name, datatype.Options{})
	if err != nil {
		return nil, err
	}

	now := d.nowMillis()
	row := ClaimRow{VerbID: VerbRoot, Value: &value, OwnerID: owner, CreatedAt: now, UpdatedAt: now}
	err = d.withTx(ctx, func(tx *sql.Tx) error {
		id, err := insertClaim(ctx, tx, row)
		if err != nil {
			return err
		}
		row.ID = id
		return d.indexDocument(ctx, tx, TableClaims, id, value)
	})
	if err != nil {
		return nil, err
	}

	d.invalidateAvgDL()
	d.log.Debug("created root", zap.Int64("id", row.ID), zap.String("name", value))
	return d.cache.fillClaim(row, true), nil
}

// CreateFact inserts a fact about subject. The target's shape must match the
// verb: a scalar verb takes Value, a link verb takes Object. Anything else,
// including the ROOT verb and inferred verbs, fails with TypeMismatch.
func (d *DB) CreateFact(ctx context.Context, owner, subject, verbID int64, target Target) (*Claim, error) {
	now := d.nowMillis()
	row := ClaimRow{SubjectID: &subject, VerbID: verbID, OwnerID: owner, CreatedAt: now, UpdatedAt: now}

	err := d.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := d.claim(ctx, tx, subject); err != nil {
			return err
		}
		v, err := d.verb(ctx, tx, verbID)
		if err != nil {
			return err
		}
		verb := v.Row()
		if verbID == VerbRoot {
			return apperr.TypeMismatch("the %s verb only names entities", verb.Label)
		}

		switch verb.Shape() {
		case datatype.ShapeDerived:
			return apperr.TypeMismatch("verb %d is inferred and cannot be stored", verbID)
		case datatype.ShapeLink:
			if target.object == nil {
				return apperr.TypeMismatch("verb %d is a %s and needs a claim, got %s", verbID, verb.DataType, target)
			}
			if _, err := d.claim(ctx, tx, *target.object); err != nil {
				return err
			}
			row.ObjectID = target.object
		default:
			if target.value == nil {
				return apperr.TypeMismatch("verb %d is %s and needs a value, got %s", verbID, verb.DataType, target)
			}
			opts, err := verb.CodecOptions()
			if err != nil {
				return err
			}
			value, err := datatype.Canonical(verb.DataType, *target.value, opts)
			if err != nil {
				return err
			}
			row.Value = &value
		}

		id, err := insertClaim(ctx, tx, row)
		if err != nil {
			return err
		}
		row.ID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	d.log.Debug("created fact",
		zap.Int64("id", row.ID),
		zap.Int64("subject", subject),
		zap.Int64("verb", verbID),
		zap.Stringer("target", target))
	return d.cache.fillClaim(row, true), nil
}

func insertClaim(ctx context.Context, tx *sql.Tx, c ClaimRow) (int64, error) {
	res, err := tx.ExecContext(ctx,
		`INSERT INTO claims (subject_id, verb_id, value, object_id, owner_id, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.SubjectID, c.VerbID, c.Value, c.ObjectID, c.OwnerID, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return 0, fmt.Errorf("inserting claim: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading claim id: %w", err)
	}
	return id, nil
}

// Mutate overwrites one field of claim id and bumps updated_at. There is no
// history: the previous value is gone. FieldValue takes a string,
// FieldObject, FieldSubject and FieldOwner take an id. Renaming a root
// re-indexes it for search.
func (d *DB) Mutate(ctx context.Context, id int64, field Field, value any) (*Claim, error) {
	var next ClaimRow
	var reindexed bool
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		c, err := d.claim(ctx, tx, id)
		if err != nil {
			return err
		}
		cur := c.Row()
		v, err := d.verb(ctx, tx, cur.VerbID)
		if err != nil {
			return err
		}
		verb := v.Row()
		next = cur
		next.UpdatedAt = d.nowMillis()

		var column string
		var arg any
		switch field {
		case FieldValue:
			raw, ok := value.(string)
			if !ok {
				return apperr.TypeMismatch("value must be text, got %T", value)
			}
			if verb.Shape() != datatype.ShapeScalar {
				return apperr.TypeMismatch("claim %d uses %s verb %d and holds no value", id, verb.DataType, verb.ID)
			}
			opts, err := verb.CodecOptions()
			if err != nil {
				return err
			}
			canonical, err := datatype.Canonical(verb.DataType, raw, opts)
			if err != nil {
				return err
			}
			next.Value = &canonical
			column, arg = "value", canonical

		case FieldObject:
			obj, err := asID(value)
			if err != nil {
				return err
			}
			if verb.Shape() != datatype.ShapeLink {
				return apperr.TypeMismatch("claim %d uses %s verb %d and holds no object", id, verb.DataType, verb.ID)
			}
			if _, err := d.claim(ctx, tx, obj); err != nil {
				return err
			}
			next.ObjectID = &obj
			column, arg = "object_id", obj

		case FieldSubject:
			subj, err := asID(value)
			if err != nil {
				return err
			}
			if cur.IsRoot() {
				return apperr.TypeMismatch("root claim %d cannot be given a subject", id)
			}
			if _, err := d.claim(ctx, tx, subj); err != nil {
				return err
			}
			next.SubjectID = &subj
			column, arg = "subject_id", subj

		case FieldOwner:
			owner, err := asID(value)
			if err != nil {
				return err
			}
			next.OwnerID = owner
			column, arg = "owner_id", owner

		default:
			return apperr.TypeMismatch("unknown claim field %q", field)
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE claims SET `+column+` = ?, updated_at = ? WHERE id = ?`,
			arg, next.UpdatedAt, id)
		if err != nil {
			return fmt.Errorf("updating claim %d: %w", id, err)
		}
		if field == FieldValue && cur.IsRoot() {
			reindexed = true
			return d.indexDocument(ctx, tx, TableClaims, id, *next.Value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if reindexed {
		d.invalidateAvgDL()
	}
	d.log.Debug("mutated claim", zap.Int64("id", id), zap.String("field", string(field)))
	return d.cache.fillClaim(next, true), nil
}

func asID(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	case *Claim:
		return v.ID, nil
	}
	return 0, apperr.TypeMismatch("expected a claim id, got %T", value)
}

// DeleteClaim removes fact id once nothing refers to it: no other fact may
// use it as subject or object. Roots name entities and are never deleted.
// The id is evicted from the cache and later lookups fail with NotFound.
func (d *DB) DeleteClaim(ctx context.Context, id int64) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		c, err := d.claim(ctx, tx, id)
		if err != nil {
			return err
		}
		if c.IsRoot() {
			return apperr.ReferentialConflict("claim %d is a root and cannot be deleted", id)
		}

		var refs int
		err = tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM claims WHERE subject_id = ? OR object_id = ?`, id, id).Scan(&refs)
		if err != nil {
			return fmt.Errorf("counting references to claim %d: %w", id, err)
		}
		if refs > 0 {
			return apperr.ReferentialConflict("claim %d is referenced by %d facts", id, refs)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM claims WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting claim %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	d.cache.EvictClaim(id)
	d.log.Debug("deleted claim", zap.Int64("id", id))
	return nil
}
