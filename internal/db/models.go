package db

import (
	"encoding/json"
	"sync"

	"recall/claims/internal/datatype"
)

// ClaimRow is the stored state of a claim. A root claim (SubjectID nil)
// names an entity; any other claim is a fact about its subject, which may
// itself be a fact. Exactly one of Value and ObjectID is set.
type ClaimRow struct {
	ID        int64   `json:"id"`
	SubjectID *int64  `json:"subject_id"`
	VerbID    int64   `json:"verb_id"`
	Value     *string `json:"value"`
	ObjectID  *int64  `json:"object_id"`
	OwnerID   int64   `json:"owner_id"`
	CreatedAt int64   `json:"created_at"` // Unix millis
	UpdatedAt int64   `json:"updated_at"` // Unix millis
}

// IsRoot reports whether r names an entity rather than stating a fact
func (r ClaimRow) IsRoot() bool {
	return r.SubjectID == nil
}

// Other returns the endpoint of a link fact that is not from. For a fact
// over an undirected verb this is the counterpart regardless of which side
// was stored as the subject.
func (r ClaimRow) Other(from int64) int64 {
	if r.SubjectID != nil && *r.SubjectID == from && r.ObjectID != nil {
		return *r.ObjectID
	}
	if r.SubjectID != nil {
		return *r.SubjectID
	}
	return 0
}

// Claim is the cached identity of one claim id. Its row is swapped whole
// under mu, so Row always returns a consistent copy even while a write on
// another goroutine refreshes the entry.
type Claim struct {
	ID int64

	mu     sync.RWMutex
	row    ClaimRow
	loaded bool
}

// Row returns a copy of the claim's stored state
func (c *Claim) Row() ClaimRow {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r := c.row
	r.ID = c.ID
	return r
}

// Loaded reports whether c has been populated from its row
func (c *Claim) Loaded() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loaded
}

// IsRoot reports whether c names an entity
func (c *Claim) IsRoot() bool {
	return c.Row().IsRoot()
}

// Other is ClaimRow.Other on the current row
func (c *Claim) Other(from int64) int64 {
	return c.Row().Other(from)
}

func (c *Claim) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Row())
}

// fill replaces the row if c is a placeholder or force is set
func (c *Claim) fill(row ClaimRow, force bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded && !force {
		return
	}
	row.ID = c.ID
	c.row = row
	c.loaded = true
}

// VerbRow is the stored state of a verb
type VerbRow struct {
	ID       int64  `json:"id"`
	Label    string `json:"label"`
	DataType string `json:"data_type"`
	Internal bool   `json:"internal"`
	Extra    Extra  `json:"-"`
}

// Shape returns the storage shape of the verb's data type
func (r VerbRow) Shape() datatype.Shape {
	s, err := datatype.ShapeOf(r.DataType)
	if err != nil {
		return datatype.ShapeScalar
	}
	return s
}

// Symmetric reports whether facts of the verb are unordered pairs
func (r VerbRow) Symmetric() bool {
	return datatype.IsSymmetric(r.DataType)
}

// CodecOptions returns the codec payload carried by the verb's extra. A
// choice verb whose stored option list failed to decode reports that
// failure here.
func (r VerbRow) CodecOptions() (datatype.Options, error) {
	switch e := r.Extra.(type) {
	case ChoiceExtra:
		if e.Err != nil {
			return datatype.Options{}, e.Err
		}
		return datatype.Options{Choices: e.Options}, nil
	case TemplateExtra:
		return datatype.Options{Template: e.Template}, nil
	}
	return datatype.Options{}, nil
}

// Verb is the cached identity of one verb id, guarded like Claim
type Verb struct {
	ID int64

	mu     sync.RWMutex
	row    VerbRow
	loaded bool
}

// Row returns a copy of the verb's stored state
func (v *Verb) Row() VerbRow {
	v.mu.RLock()
	defer v.mu.RUnlock()
	r := v.row
	r.ID = v.ID
	return r
}

// Loaded reports whether v has been populated from its row
func (v *Verb) Loaded() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.loaded
}

func (v *Verb) Label() string                           { return v.Row().Label }
func (v *Verb) DataType() string                        { return v.Row().DataType }
func (v *Verb) Extra() Extra                            { return v.Row().Extra }
func (v *Verb) Shape() datatype.Shape                   { return v.Row().Shape() }
func (v *Verb) Symmetric() bool                         { return v.Row().Symmetric() }
func (v *Verb) CodecOptions() (datatype.Options, error) { return v.Row().CodecOptions() }

func (v *Verb) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Row())
}

func (v *Verb) fill(row VerbRow, force bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.loaded && !force {
		return
	}
	row.ID = v.ID
	v.row = row
	v.loaded = true
}

// InferredClaim is a (subject, verb, object) triple computed by a rule.
// It is never stored and has no id, owner or timestamps.
type InferredClaim struct {
	SubjectID int64 `json:"subject_id"`
	VerbID    int64 `json:"verb_id"`
	ObjectID  int64 `json:"object_id"`
}

// Direction selects which side of a fact a claim must occupy
type Direction int

const (
	Outgoing Direction = iota // claim is the subject (or either side of a symmetric fact)
	Incoming                  // claim is the object of a directed fact
)

func (dir Direction) String() string {
	if dir == Incoming {
		return "incoming"
	}
	return "outgoing"
}

// VerbFilter limits enumeration to a set of verb ids. A nil filter allows
// every verb; a non-nil empty filter allows none. The store does not
// interpret it further.
type VerbFilter []int64

// Page selects a slice of an ordered result. Index is 0-based. Size <= 0
// returns everything. With Peek set the query returns one item past the
// page, at the same offset, so callers can tell whether another page exists
// (see Trim).
type Page struct {
	Index int
	Size  int
	Peek  bool
}

func (p Page) limitOffset() (limit, offset int) {
	if p.Size <= 0 {
		return -1, 0
	}
	idx := p.Index
	if idx < 0 {
		idx = 0
	}
	limit = p.Size
	if p.Peek {
		limit++
	}
	return limit, idx * p.Size
}

// Trim cuts a peeked result back to the page size and reports whether a
// further page exists.
func Trim[T any](items []T, p Page) ([]T, bool) {
	if p.Size <= 0 || !p.Peek || len(items) <= p.Size {
		return items, false
	}
	return items[:p.Size], true
}

// SearchHit is one ranked search result
type SearchHit struct {
	Table string  `json:"table"`
	ID    int64   `json:"id"`
	Score float64 `json:"score"`
}
