package infer

import (
	"strings"

	"recall/claims/internal/apperr"
)

// VerbKind is what the compiler needs to know about a verb
type VerbKind int

const (
	KindDirected   VerbKind = iota + 1 // directed_link
	KindUndirected                     // undirected_link
	KindOther                          // scalar or inferred, not joinable
)

// Validate checks that r can be compiled against the given verbs.
//
// Connectivity is positional: every condition after the first must share a
// label with some earlier condition. A single-condition rule has nothing to
// connect, but like every rule it must mention both "this" and "that".
func Validate(r Rule, kinds map[int64]VerbKind) error {
	if len(r.Conditions) == 0 {
		return apperr.InvalidRule("rule has no conditions")
	}
	if len(r.Conditions) > MaxConditions {
		return apperr.InvalidRule("rule has %d conditions, at most %d allowed", len(r.Conditions), MaxConditions)
	}

	for i, c := range r.Conditions {
		if strings.TrimSpace(c.Subject) == "" || strings.TrimSpace(c.Object) == "" {
			return apperr.InvalidRule("condition %d has an empty label", i+1)
		}
		kind, ok := kinds[c.VerbID]
		if !ok {
			return apperr.InvalidRule("condition %d references unknown verb %d", i+1, c.VerbID)
		}
		if kind != KindDirected && kind != KindUndirected {
			return apperr.InvalidRule("condition %d: verb %d is not a stored link", i+1, c.VerbID)
		}
	}

	seen := map[string]bool{
		r.Conditions[0].Subject: true,
		r.Conditions[0].Object:  true,
	}
	for i, c := range r.Conditions[1:] {
		if !seen[c.Subject] && !seen[c.Object] {
			return apperr.InvalidRule("condition %d (%s) shares no label with earlier conditions", i+2, c)
		}
		seen[c.Subject] = true
		seen[c.Object] = true
	}

	if !seen[This] {
		return apperr.InvalidRule("rule never binds %q", This)
	}
	if !seen[That] {
		return apperr.InvalidRule("rule never binds %q", That)
	}
	return nil
}
