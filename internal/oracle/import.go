package oracle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/knakk/rdf"
)

// FormatFor picks the RDF syntax of a reference dump from its file name.
func FormatFor(name string) rdf.Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".ttl":
		return rdf.Turtle
	default:
		return rdf.NTriples
	}
}

// ImportStats counts entities loaded by Import.
type ImportStats struct {
	Triples  int
	Entities map[Kind]int
}

// Import loads a reference dump. Every IRI in subject or object position
// whose path identifies an ontology term, property or resource is stored.
func (db *DB) Import(ctx context.Context, r io.Reader, format rdf.Format) (ImportStats, error) {
	stats := ImportStats{Entities: make(map[Kind]int, len(Kinds))}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return stats, fmt.Errorf("oracle: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	ins, err := prepareInsert(ctx, tx)
	if err != nil {
		return stats, err
	}
	defer ins.Close()

	add := func(term rdf.Term) error {
		if term == nil || term.Type() != rdf.TermIRI {
			return nil
		}
		uri := term.String()
		kind, ok := KindOf(uri)
		if !ok {
			return nil
		}
		res, err := ins.ExecContext(ctx, uri, string(kind))
		if err != nil {
			return fmt.Errorf("oracle: insert %s: %w", uri, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stats.Entities[kind]++
		}
		return nil
	}

	dec := rdf.NewTripleDecoder(r, format)
	for {
		tr, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return stats, fmt.Errorf("oracle: decode triple %d: %w", stats.Triples+1, err)
		}
		stats.Triples++
		if err := add(tr.Subj); err != nil {
			return stats, err
		}
		if err := add(tr.Obj); err != nil {
			return stats, err
		}
		if stats.Triples%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return stats, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return stats, fmt.Errorf("oracle: commit import: %w", err)
	}
	return stats, nil
}
