package infer

import (
	"fmt"
	"strings"
)

// Query is compiled SQL with its positional arguments. It selects a single
// column, id, holding the claim ids bound to "that".
type Query struct {
	SQL  string
	Args []any
}

// Paged wraps q with a stable order and LIMIT/OFFSET. limit <= 0 means all.
func (q Query) Paged(limit, offset int) Query {
	if limit <= 0 {
		return Query{
			SQL:  "SELECT id FROM (" + q.SQL + ") ORDER BY id",
			Args: q.Args,
		}
	}
	args := make([]any, 0, len(q.Args)+2)
	args = append(args, q.Args...)
	args = append(args, limit, offset)
	return Query{
		SQL:  "SELECT id FROM (" + q.SQL + ") ORDER BY id LIMIT ? OFFSET ?",
		Args: args,
	}
}

// Compile turns r into a query for everything related to anchor.
//
// Every condition over an undirected verb may be traversed from either
// endpoint, so each one doubles the number of variants; the result is the
// UNION of all 2^k variants for k such conditions. Variants are enumerated
// by counting through a bitmask rather than by recursion.
func Compile(r Rule, kinds map[int64]VerbKind, anchor int64) (Query, error) {
	if err := Validate(r, kinds); err != nil {
		return Query{}, err
	}

	var symmetric []int
	for i, c := range r.Conditions {
		if kinds[c.VerbID] == KindUndirected {
			symmetric = append(symmetric, i)
		}
	}

	labels := r.Labels()
	var branches []string
	var args []any
	for mask := 0; mask < 1<<len(symmetric); mask++ {
		flipped := make([]bool, len(r.Conditions))
		for bit, idx := range symmetric {
			flipped[idx] = mask&(1<<bit) != 0
		}
		sql, branchArgs := compileVariant(r.Conditions, flipped, labels, anchor)
		branches = append(branches, sql)
		args = append(args, branchArgs...)
	}

	return Query{
		SQL:  strings.Join(branches, "\nUNION\n"),
		Args: args,
	}, nil
}

func compileVariant(conds []Condition, flipped []bool, labels []string, anchor int64) (string, []any) {
	from := make([]string, len(conds))
	var where []string
	var args []any

	// label -> first column it was bound to
	binding := make(map[string]string, len(labels))
	bind := func(label, col string) {
		if first, ok := binding[label]; ok {
			where = append(where, fmt.Sprintf("%s = %s", col, first))
			return
		}
		binding[label] = col
	}

	for i, c := range conds {
		alias := fmt.Sprintf("c%d", i)
		from[i] = "claims " + alias
		where = append(where, alias+".verb_id = ?")
		args = append(args, c.VerbID)

		subjCol, objCol := alias+".subject_id", alias+".object_id"
		if flipped[i] {
			subjCol, objCol = objCol, subjCol
		}
		bind(c.Subject, subjCol)
		bind(c.Object, objCol)
	}

	// distinct labels must bind distinct claims
	for i := 0; i < len(labels); i++ {
		for j := i + 1; j < len(labels); j++ {
			where = append(where, fmt.Sprintf("%s <> %s", binding[labels[i]], binding[labels[j]]))
		}
	}

	where = append(where, binding[This]+" = ?")
	args = append(args, anchor)

	sql := fmt.Sprintf("SELECT DISTINCT %s AS id FROM %s WHERE %s",
		binding[That], strings.Join(from, ", "), strings.Join(where, " AND "))
	return sql, args
}
