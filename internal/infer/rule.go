// Package infer compiles derived-predicate rules into SQL.
//
// A rule is an ordered list of conditions (subject label, verb id, object
// label) over stored link facts. The labels "this" and "that" are the two
// endpoints of the derived relation; every other label is a variable bound
// existentially per evaluation. Results are computed on read and never
// persisted.
package infer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"recall/claims/internal/apperr"
)

// Distinguished endpoint labels
const (
	This = "this"
	That = "that"
)

// MaxConditions bounds rule arity. Compilation emits 2^k union branches for
// k undirected conditions, which stays small at this size.
const MaxConditions = 8

// Condition is one (subject, verb, object) pattern of a rule
type Condition struct {
	Subject string
	VerbID  int64
	Object  string
}

type conditionObject struct {
	Subject string `json:"subject"`
	Verb    int64  `json:"verb"`
	Object  string `json:"object"`
}

// MarshalJSON encodes the condition as [subject, verb, object]
func (c Condition) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{c.Subject, c.VerbID, c.Object})
}

// UnmarshalJSON accepts [subject, verb, object] or
// {"subject":..,"verb":..,"object":..}
func (c *Condition) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var o conditionObject
		if err := json.Unmarshal(data, &o); err != nil {
			return err
		}
		*c = Condition{Subject: o.Subject, VerbID: o.Verb, Object: o.Object}
		return nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if len(raw) != 3 {
		return fmt.Errorf("condition must have 3 elements, got %d", len(raw))
	}
	if err := json.Unmarshal(raw[0], &c.Subject); err != nil {
		return fmt.Errorf("condition subject: %w", err)
	}
	if err := json.Unmarshal(raw[1], &c.VerbID); err != nil {
		return fmt.Errorf("condition verb: %w", err)
	}
	if err := json.Unmarshal(raw[2], &c.Object); err != nil {
		return fmt.Errorf("condition object: %w", err)
	}
	return nil
}

func (c Condition) String() string {
	return fmt.Sprintf("%s -[%d]-> %s", c.Subject, c.VerbID, c.Object)
}

// Rule is an ordered condition list
type Rule struct {
	Conditions []Condition
}

// MarshalJSON encodes the rule as a bare array of conditions
func (r Rule) MarshalJSON() ([]byte, error) {
	conds := r.Conditions
	if conds == nil {
		conds = []Condition{}
	}
	return json.Marshal(conds)
}

// UnmarshalJSON decodes a bare array of conditions
func (r *Rule) UnmarshalJSON(data []byte) error {
	return json.Unmarshal(data, &r.Conditions)
}

// ParseRule decodes a rule from its JSON form
func ParseRule(data []byte) (Rule, error) {
	var r Rule
	if err := json.Unmarshal(data, &r); err != nil {
		return Rule{}, apperr.Wrap(apperr.KindInvalidRule, err, "malformed rule")
	}
	return r, nil
}

func (r Rule) String() string {
	parts := make([]string, len(r.Conditions))
	for i, c := range r.Conditions {
		parts[i] = c.String()
	}
	return strings.Join(parts, "; ")
}

// Labels returns every distinct label in first-occurrence order
func (r Rule) Labels() []string {
	var labels []string
	seen := make(map[string]bool)
	for _, c := range r.Conditions {
		for _, l := range [2]string{c.Subject, c.Object} {
			if !seen[l] {
				seen[l] = true
				labels = append(labels, l)
			}
		}
	}
	return labels
}

// VerbIDs returns every distinct verb id in first-occurrence order
func (r Rule) VerbIDs() []int64 {
	var ids []int64
	seen := make(map[int64]bool)
	for _, c := range r.Conditions {
		if !seen[c.VerbID] {
			seen[c.VerbID] = true
			ids = append(ids, c.VerbID)
		}
	}
	return ids
}
