package db

import (
	"context"
	"fmt"

	"recall/claims/internal/datatype"
)

// Reserved verb ids. -2 is retired and never reused.
const (
	VerbRoot       int64 = -1
	VerbCategory   int64 = -3
	VerbValidFrom  int64 = -4
	VerbValidUntil int64 = -5
	VerbAvatar     int64 = -6
	VerbComment    int64 = -7
)

var builtinVerbs = []struct {
	id       int64
	label    string
	dataType string
}{
	{VerbRoot, "name", datatype.String},
	{VerbCategory, "category", datatype.DirectedLink},
	{VerbValidFrom, "valid from", datatype.Date},
	{VerbValidUntil, "valid until", datatype.Date},
	{VerbAvatar, "avatar", datatype.URL},
	{VerbComment, "comment", datatype.Text},
}

const schema = `
CREATE TABLE IF NOT EXISTS verbs (
	id INTEGER PRIMARY KEY,
	label TEXT NOT NULL,
	data_type TEXT NOT NULL,
	internal INTEGER NOT NULL DEFAULT 0,
	extra TEXT
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_verbs_public_label ON verbs(label) WHERE internal = 0;

CREATE TABLE IF NOT EXISTS claims (
	id INTEGER PRIMARY KEY,
	subject_id INTEGER,
	verb_id INTEGER NOT NULL,
	value TEXT,
	object_id INTEGER,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	owner_id INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_claims_subject ON claims(subject_id, verb_id);
CREATE INDEX IF NOT EXISTS idx_claims_object ON claims(object_id, verb_id);
CREATE INDEX IF NOT EXISTS idx_claims_verb ON claims(verb_id);

CREATE TABLE IF NOT EXISTS inverted_index (
	table_name TEXT NOT NULL,
	id INTEGER NOT NULL,
	ngram TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_inverted_ngram ON inverted_index(ngram);
CREATE INDEX IF NOT EXISTS idx_inverted_doc ON inverted_index(table_name, id);

CREATE TABLE IF NOT EXISTS forward_index (
	table_name TEXT NOT NULL,
	id INTEGER NOT NULL,
	length INTEGER NOT NULL,
	PRIMARY KEY (table_name, id)
);
`

// EnsureSchema creates missing tables and seeds the built-in verbs.
// Referential integrity between claims is enforced by the store, not by
// foreign keys.
func (d *DB) EnsureSchema(ctx context.Context) error {
	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	for _, v := range builtinVerbs {
		_, err := d.conn.ExecContext(ctx,
			`INSERT OR IGNORE INTO verbs (id, label, data_type, internal) VALUES (?, ?, ?, 1)`,
			v.id, v.label, v.dataType,
		)
		if err != nil {
			return fmt.Errorf("seeding verb %d: %w", v.id, err)
		}
	}
	return nil
}
