package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"recall/claims/internal/apperr"
	"recall/claims/internal/datatype"
	"recall/claims/internal/infer"
)

func siblingConds(childOf int64) []infer.Condition {
	return []infer.Condition{
		{Subject: infer.This, VerbID: childOf, Object: "A"},
		{Subject: infer.That, VerbID: childOf, Object: "A"},
	}
}

type simpsons struct {
	homer, abraham, marge, bart, lisa *Claim
	childOf, partner                  *Verb
}

func seedSimpsons(t *testing.T, d *DB) simpsons {
	t.Helper()
	s := simpsons{
		homer:   mustRoot(t, d, "Homer"),
		abraham: mustRoot(t, d, "Abraham"),
		marge:   mustRoot(t, d, "Marge"),
		bart:    mustRoot(t, d, "Bart"),
		lisa:    mustRoot(t, d, "Lisa"),
		childOf: mustVerb(t, d, "child of", datatype.DirectedLink),
		partner: mustVerb(t, d, "partner of", datatype.UndirectedLink),
	}
	mustLink(t, d, s.bart.ID, s.childOf.ID, s.homer.ID)
	mustLink(t, d, s.lisa.ID, s.childOf.ID, s.homer.ID)
	mustLink(t, d, s.homer.ID, s.childOf.ID, s.abraham.ID)
	mustLink(t, d, s.homer.ID, s.partner.ID, s.marge.ID)
	return s
}

// Scenario: siblings share a parent and are never their own sibling.
func TestRelated_Siblings(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := seedSimpsons(t, d)
	sibling := mustRuleVerb(t, d, "sibling of", siblingConds(s.childOf.ID)...)

	got, err := d.Related(ctx, s.bart.ID, sibling.ID, Page{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	if got[0] != s.lisa {
		t.Errorf("siblings of Bart = %v, want Lisa", claimIDs(got))
	}

	got, err = d.Related(ctx, s.homer.ID, sibling.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)

	// inferred relations are never stored
	var rows int
	require.NoError(t, d.Conn().QueryRow(`SELECT COUNT(*) FROM claims WHERE verb_id = ?`, sibling.ID).Scan(&rows))
	assert.Zero(t, rows)
}

func TestRelated_ReflectsLatestFacts(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := seedSimpsons(t, d)
	sibling := mustRuleVerb(t, d, "sibling of", siblingConds(s.childOf.ID)...)
	maggie := mustRoot(t, d, "Maggie")

	got, err := d.Related(ctx, s.bart.ID, sibling.ID, Page{})
	require.NoError(t, err)
	assert.Len(t, got, 1)

	mustLink(t, d, maggie.ID, s.childOf.ID, s.homer.ID)
	got, err = d.Related(ctx, s.bart.ID, sibling.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{s.lisa.ID, maggie.ID}, claimIDs(got))

	// paginated like every other enumeration
	page, err := d.Related(ctx, s.bart.ID, sibling.ID, Page{Index: 1, Size: 1})
	require.NoError(t, err)
	assert.Equal(t, []int64{maggie.ID}, claimIDs(page))
}

func TestRelated_UndirectedCondition(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := seedSimpsons(t, d)
	// children of one's partner; the partner fact is stored from Homer's side
	stepchild := mustRuleVerb(t, d, "partner's child",
		infer.Condition{Subject: infer.This, VerbID: s.partner.ID, Object: "P"},
		infer.Condition{Subject: infer.That, VerbID: s.childOf.ID, Object: "P"},
	)

	got, err := d.Related(ctx, s.marge.ID, stepchild.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, []int64{s.bart.ID, s.lisa.ID}, claimIDs(got))

	got, err = d.Related(ctx, s.homer.ID, stepchild.ID, Page{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestRelated_Errors(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := seedSimpsons(t, d)
	sibling := mustRuleVerb(t, d, "sibling of", siblingConds(s.childOf.ID)...)

	// a rule corrupted in storage still loads, and fails on evaluation
	broken := mustRuleVerb(t, d, "broken", siblingConds(s.childOf.ID)...)
	_, err := d.Conn().Exec(`UPDATE verbs SET extra = '{not json' WHERE id = ?`, broken.ID)
	require.NoError(t, err)
	d.Cache().EvictVerb(broken.ID)
	_, err = d.GetVerb(ctx, broken.ID)
	require.NoError(t, err)

	tests := []struct {
		name   string
		anchor int64
		verb   int64
		kind   apperr.Kind
	}{
		{"not inferred", s.bart.ID, s.childOf.ID, apperr.KindTypeMismatch},
		{"malformed rule", s.bart.ID, broken.ID, apperr.KindInvalidRule},
		{"missing anchor", 999, sibling.ID, apperr.KindNotFound},
		{"missing verb", s.bart.ID, 999, apperr.KindNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Related(ctx, tt.anchor, tt.verb, Page{})
			if got := apperr.KindOf(err); got != tt.kind {
				t.Errorf("kind = %q (%v), want %q", got, err, tt.kind)
			}
		})
	}
}

func TestValidateRule(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	childOf := mustVerb(t, d, "child of", datatype.DirectedLink)
	nick := mustVerb(t, d, "nickname", datatype.String)

	tests := []struct {
		name  string
		conds []infer.Condition
		ok    bool
	}{
		{"sibling", siblingConds(childOf.ID), true},
		{"unknown verb", siblingConds(404), false},
		{"scalar verb", siblingConds(nick.ID), false},
		{"disconnected", []infer.Condition{
			{Subject: infer.This, VerbID: childOf.ID, Object: "A"},
			{Subject: "B", VerbID: childOf.ID, Object: infer.That},
		}, false},
		{"no that", []infer.Condition{
			{Subject: infer.This, VerbID: childOf.ID, Object: "A"},
		}, false},
		{"single condition", []infer.Condition{
			{Subject: infer.That, VerbID: childOf.ID, Object: infer.This},
		}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.ValidateRule(ctx, infer.Rule{Conditions: tt.conds})
			if tt.ok {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperr.ErrInvalidRule)
		})
	}
}

func TestInferredFacts(t *testing.T) {
	d := setupTestDB(t)
	ctx := context.Background()
	s := seedSimpsons(t, d)
	sibling := mustRuleVerb(t, d, "sibling of", siblingConds(s.childOf.ID)...)
	grandchild := mustRuleVerb(t, d, "grandchild of",
		infer.Condition{Subject: infer.This, VerbID: s.childOf.ID, Object: "P"},
		infer.Condition{Subject: "P", VerbID: s.childOf.ID, Object: infer.That},
	)

	got, err := d.InferredFacts(ctx, s.bart.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, []InferredClaim{
		{SubjectID: s.bart.ID, VerbID: sibling.ID, ObjectID: s.lisa.ID},
		{SubjectID: s.bart.ID, VerbID: grandchild.ID, ObjectID: s.abraham.ID},
	}, got)

	got, err = d.InferredFacts(ctx, s.bart.ID, VerbFilter{grandchild.ID})
	require.NoError(t, err)
	assert.Equal(t, []InferredClaim{
		{SubjectID: s.bart.ID, VerbID: grandchild.ID, ObjectID: s.abraham.ID},
	}, got)
}
