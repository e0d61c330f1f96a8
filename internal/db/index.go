package db

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"recall/claims/internal/apperr"
	"recall/claims/internal/ngram"
)

// Indexed tables. Root names are indexed under TableClaims, public verb
// labels under TableVerbs.
const (
	TableClaims = "claims"
	TableVerbs  = "verbs"
)

const avgDLKey = "avgdl"

// gramRowsPerInsert bounds the number of VALUES tuples per INSERT
const gramRowsPerInsert = 200

type docKey struct {
	table string
	id    int64
}

// indexDocument replaces every index row of (table, id) with rows for text.
// Each n-gram occurrence is its own inverted row; the forward row holds the
// total count. Text without any n-gram leaves the document unindexed.
func (d *DB) indexDocument(ctx context.Context, q querier, table string, id int64, text string) error {
	if err := removeDocument(ctx, q, table, id); err != nil {
		return err
	}
	grams := ngram.Tokenize(text, d.opts.NGramWidth)
	if len(grams) == 0 {
		return nil
	}

	for start := 0; start < len(grams); start += gramRowsPerInsert {
		chunk := grams[start:min(start+gramRowsPerInsert, len(grams))]
		args := make([]any, 0, 3*len(chunk))
		for _, g := range chunk {
			args = append(args, table, id, g)
		}
		values := strings.TrimSuffix(strings.Repeat("(?, ?, ?),", len(chunk)), ",")
		if _, err := q.ExecContext(ctx,
			`INSERT INTO inverted_index (table_name, id, ngram) VALUES `+values, args...); err != nil {
			return wrapIndexErr(err, "indexing %s %d", table, id)
		}
	}
	if _, err := q.ExecContext(ctx,
		`INSERT INTO forward_index (table_name, id, length) VALUES (?, ?, ?)`,
		table, id, len(grams)); err != nil {
		return wrapIndexErr(err, "indexing %s %d", table, id)
	}
	return nil
}

func removeDocument(ctx context.Context, q querier, table string, id int64) error {
	if _, err := q.ExecContext(ctx,
		`DELETE FROM inverted_index WHERE table_name = ? AND id = ?`, table, id); err != nil {
		return wrapIndexErr(err, "removing %s %d", table, id)
	}
	if _, err := q.ExecContext(ctx,
		`DELETE FROM forward_index WHERE table_name = ? AND id = ?`, table, id); err != nil {
		return wrapIndexErr(err, "removing %s %d", table, id)
	}
	return nil
}

// wrapIndexErr turns a missing index table into a typed failure
func wrapIndexErr(err error, format string, args ...any) error {
	if strings.Contains(err.Error(), "no such table") {
		return apperr.Wrap(apperr.KindNotFound, err, "search index is missing: "+format, args...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// IndexDocument (re)indexes text as document (table, id)
func (d *DB) IndexDocument(ctx context.Context, table string, id int64, text string) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		return d.indexDocument(ctx, tx, table, id, text)
	})
	if err != nil {
		return err
	}
	d.invalidateAvgDL()
	return nil
}

// RemoveDocument drops document (table, id) from the index
func (d *DB) RemoveDocument(ctx context.Context, table string, id int64) error {
	err := d.withTx(ctx, func(tx *sql.Tx) error {
		return removeDocument(ctx, tx, table, id)
	})
	if err != nil {
		return err
	}
	d.invalidateAvgDL()
	return nil
}

// AverageDocLength returns the mean n-gram count over indexed documents.
// The value is reused for the configured TTL; concurrent misses share one
// query.
func (d *DB) AverageDocLength(ctx context.Context) (float64, error) {
	if v, ok := d.memo.Get(avgDLKey); ok {
		return v.(float64), nil
	}
	v, err, _ := d.flight.Do(avgDLKey, func() (any, error) {
		var avg float64
		err := d.conn.QueryRowContext(ctx,
			`SELECT COALESCE(AVG(length), 0) FROM forward_index`).Scan(&avg)
		if err != nil {
			return 0.0, wrapIndexErr(err, "computing average document length")
		}
		d.memo.Set(avgDLKey, avg, d.opts.AvgDLTTL)
		return avg, nil
	})
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (d *DB) invalidateAvgDL() {
	d.memo.Delete(avgDLKey)
}

// Search ranks indexed documents against query. tables limits the result to
// the named tables; nil searches all. Hits are ordered by descending score,
// ties broken by table then id.
func (d *DB) Search(ctx context.Context, query string, tables []string, page Page) ([]SearchHit, error) {
	grams := ngram.Unique(ngram.Tokenize(query, d.opts.NGramWidth))
	if len(grams) == 0 {
		return nil, nil
	}
	avgdl, err := d.AverageDocLength(ctx)
	if err != nil {
		return nil, err
	}

	args := make([]any, 0, len(grams)+len(tables))
	for _, g := range grams {
		args = append(args, g)
	}
	where := `i.ngram IN (` + placeholders(len(grams)) + `)`
	if tables != nil {
		if len(tables) == 0 {
			return nil, nil
		}
		where += ` AND i.table_name IN (` + placeholders(len(tables)) + `)`
		for _, t := range tables {
			args = append(args, t)
		}
	}

	rows, err := d.conn.QueryContext(ctx,
		`SELECT i.table_name, i.id, i.ngram, COUNT(*), f.length
		 FROM inverted_index i
		 JOIN forward_index f ON f.table_name = i.table_name AND f.id = i.id
		 WHERE `+where+`
		 GROUP BY i.table_name, i.id, i.ngram`,
		args...)
	if err != nil {
		return nil, wrapIndexErr(err, "searching %q", query)
	}
	defer rows.Close()

	type posting struct {
		tf     map[string]int
		length int
	}
	docs := make(map[docKey]*posting)
	for rows.Next() {
		var k docKey
		var gram string
		var tf, length int
		if err := rows.Scan(&k.table, &k.id, &gram, &tf, &length); err != nil {
			return nil, fmt.Errorf("reading postings: %w", err)
		}
		p, ok := docs[k]
		if !ok {
			p = &posting{tf: make(map[string]int), length: length}
			docs[k] = p
		}
		p.tf[gram] = tf
	}
	if err := rows.Err(); err != nil {
		return nil, wrapIndexErr(err, "searching %q", query)
	}

	hits := make([]SearchHit, 0, len(docs))
	for k, p := range docs {
		hits = append(hits, SearchHit{
			Table: k.table,
			ID:    k.id,
			Score: ngram.Score(grams, p.tf, p.length, avgdl, d.opts.Params),
		})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if hits[i].Table != hits[j].Table {
			return hits[i].Table < hits[j].Table
		}
		return hits[i].ID < hits[j].ID
	})

	limit, offset := page.limitOffset()
	if offset >= len(hits) {
		return nil, nil
	}
	hits = hits[offset:]
	if limit >= 0 && limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

// RebuildStats reports what RebuildIndex did
type RebuildStats struct {
	Documents int `json:"documents"`
	Removed   int `json:"removed"`
	Batches   int `json:"batches"`
}

// RebuildIndex recomputes the whole index from root names and public verb
// labels. Documents are rewritten in batches, one transaction each, so
// concurrent searches may see a partly rebuilt index until it returns.
func (d *DB) RebuildIndex(ctx context.Context) (RebuildStats, error) {
	var stats RebuildStats
	var roots, verbs map[docKey]string
	var existing []docKey

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		roots, err = d.sourceTexts(gctx, TableClaims,
			`SELECT id, value FROM claims WHERE subject_id IS NULL AND verb_id = ? AND value IS NOT NULL`, VerbRoot)
		return err
	})
	g.Go(func() error {
		var err error
		verbs, err = d.sourceTexts(gctx, TableVerbs,
			`SELECT id, label FROM verbs WHERE internal = 0`)
		return err
	})
	g.Go(func() error {
		rows, err := d.conn.QueryContext(gctx,
			`SELECT table_name, id FROM forward_index
			 UNION SELECT DISTINCT table_name, id FROM inverted_index`)
		if err != nil {
			return wrapIndexErr(err, "listing indexed documents")
		}
		defer rows.Close()
		for rows.Next() {
			var k docKey
			if err := rows.Scan(&k.table, &k.id); err != nil {
				return err
			}
			existing = append(existing, k)
		}
		return rows.Err()
	})
	if err := g.Wait(); err != nil {
		return stats, err
	}

	var stale []docKey
	for _, k := range existing {
		if _, ok := roots[k]; ok {
			continue
		}
		if _, ok := verbs[k]; ok {
			continue
		}
		stale = append(stale, k)
	}
	if len(stale) > 0 {
		err := d.withTx(ctx, func(tx *sql.Tx) error {
			for _, k := range stale {
				if err := removeDocument(ctx, tx, k.table, k.id); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		stats.Removed = len(stale)
	}

	docs := make([]docKey, 0, len(roots)+len(verbs))
	texts := make(map[docKey]string, len(roots)+len(verbs))
	for _, src := range []map[docKey]string{roots, verbs} {
		for k, text := range src {
			docs = append(docs, k)
			texts[k] = text
		}
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].table != docs[j].table {
			return docs[i].table < docs[j].table
		}
		return docs[i].id < docs[j].id
	})

	for start := 0; start < len(docs); start += d.opts.RebuildBatch {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		batch := docs[start:min(start+d.opts.RebuildBatch, len(docs))]
		err := d.withTx(ctx, func(tx *sql.Tx) error {
			for _, k := range batch {
				if err := d.indexDocument(ctx, tx, k.table, k.id, texts[k]); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return stats, err
		}
		stats.Batches++
		stats.Documents += len(batch)
		d.invalidateAvgDL()
	}

	d.invalidateAvgDL()
	d.log.Info("rebuilt search index",
		zap.Int("documents", stats.Documents),
		zap.Int("removed", stats.Removed),
		zap.Int("batches", stats.Batches))
	return stats, nil
}

func (d *DB) sourceTexts(ctx context.Context, table, query string, args ...any) (map[docKey]string, error) {
	rows, err := d.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("loading %s labels: %w", table, err)
	}
	defer rows.Close()
	out := make(map[docKey]string)
	for rows.Next() {
		var id int64
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("loading %s labels: %w", table, err)
		}
		out[docKey{table: table, id: id}] = text
	}
	return out, rows.Err()
}
