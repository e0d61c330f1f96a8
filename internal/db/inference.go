package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
	"recall/claims/internal/infer"
)

// ValidateRule checks a rule against the current verbs without storing it
func (d *DB) ValidateRule(ctx context.Context, rule infer.Rule) error {
	return d.checkRuleExtra(ctx, d.conn, RuleExtra{Rule: rule})
}

// Related evaluates inferred verb verbID with anchor bound to "this" and
// returns the claims bound to "that", ordered by id. The rule is compiled
// and run on every call; nothing is cached or stored.
func (d *DB) Related(ctx context.Context, anchor, verbID int64, page Page) ([]*Claim, error) {
	v, err := d.GetVerb(ctx, verbID)
	if err != nil {
		return nil, err
	}
	verb := v.Row()
	if verb.DataType != datatype.Inferred {
		return nil, apperr.TypeMismatch("verb %d is %s, not inferred", verbID, verb.DataType)
	}
	re, ok := verb.Extra.(RuleExtra)
	if !ok {
		return nil, apperr.InvalidRule("verb %d carries no rule", verbID)
	}
	if re.Err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRule, re.Err, "verb %d", verbID)
	}
	if _, err := d.GetClaim(ctx, anchor); err != nil {
		return nil, err
	}

	kinds, err := d.verbKinds(ctx, d.conn, re.Rule.VerbIDs())
	if err != nil {
		return nil, err
	}
	q, err := infer.Compile(re.Rule, kinds, anchor)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRule, err, "verb %d", verbID)
	}
	q = q.Paged(page.limitOffset())

	rows, err := d.conn.QueryContext(ctx, q.SQL, q.Args...)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInvalidRule, err, "evaluating verb %d", verbID)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading related ids: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading related ids: %w", err)
	}

	d.log.Debug("evaluated rule",
		zap.Int64("verb", verbID),
		zap.Int64("anchor", anchor),
		zap.Int("results", len(ids)))
	if len(ids) == 0 {
		return nil, nil
	}
	return d.BulkLoadClaims(ctx, ids)
}

// InferredFacts evaluates every inferred verb allowed by filter for anchor
// and returns the resulting triples grouped by verb id
func (d *DB) InferredFacts(ctx context.Context, anchor int64, filter VerbFilter) ([]InferredClaim, error) {
	verbs, err := d.InferenceVerbs(ctx)
	if err != nil {
		return nil, err
	}
	allowed := func(id int64) bool {
		if filter == nil {
			return true
		}
		for _, f := range filter {
			if f == id {
				return true
			}
		}
		return false
	}

	var out []InferredClaim
	for _, v := range verbs {
		if !allowed(v.ID) {
			continue
		}
		related, err := d.Related(ctx, anchor, v.ID, Page{})
		if err != nil {
			return nil, err
		}
		for _, c := range related {
			out = append(out, InferredClaim{SubjectID: anchor, VerbID: v.ID, ObjectID: c.ID})
		}
	}
	return out, nil
}
