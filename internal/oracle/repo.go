package oracle

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

// OntologyClassExists reports whether uri is a known ontology identifier.
func (db *DB) OntologyClassExists(ctx context.Context, uri string) (bool, error) {
	return db.Exists(ctx, KindOntology, uri)
}

// PropertyExists reports whether uri is a known property.
func (db *DB) PropertyExists(ctx context.Context, uri string) (bool, error) {
	return db.Exists(ctx, KindProperty, uri)
}

// ResourceExists reports whether uri is a known resource.
func (db *DB) ResourceExists(ctx context.Context, uri string) (bool, error) {
	return db.Exists(ctx, KindResource, uri)
}

// Exists looks up a single entity of the given kind.
func (db *DB) Exists(ctx context.Context, kind Kind, uri string) (bool, error) {
	query, args, err := sq.Select("1").
		From("entities").
		Where(sq.Eq{"uri": Normalize(uri), "kind": string(kind)}).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("oracle: build exists: %w", err)
	}
	var one int
	err = db.conn.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("oracle: exists: %w", err)
	}
	return true, nil
}

// Add inserts entities of one kind, ignoring duplicates.
func (db *DB) Add(ctx context.Context, kind Kind, uris ...string) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("oracle: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	ins, err := prepareInsert(ctx, tx)
	if err != nil {
		return err
	}
	defer ins.Close()

	for _, uri := range uris {
		if _, err := ins.ExecContext(ctx, Normalize(uri), string(kind)); err != nil {
			return fmt.Errorf("oracle: insert %s: %w", uri, err)
		}
	}
	return tx.Commit()
}

// Counts returns the number of stored entities per kind.
func (db *DB) Counts(ctx context.Context) (map[Kind]int, error) {
	query, args, err := sq.Select("kind", "count(*)").
		From("entities").
		GroupBy("kind").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("oracle: build counts: %w", err)
	}
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("oracle: counts: %w", err)
	}
	defer rows.Close()

	out := make(map[Kind]int, len(Kinds))
	for _, k := range Kinds {
		out[k] = 0
	}
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		out[Kind(kind)] = n
	}
	return out, rows.Err()
}

func prepareInsert(ctx context.Context, tx *sql.Tx) (*sql.Stmt, error) {
	query, _, err := sq.Insert("entities").
		Options("OR IGNORE").
		Columns("uri", "kind").
		Values("", "").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("oracle: build insert: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("oracle: prepare insert: %w", err)
	}
	return stmt, nil
}
