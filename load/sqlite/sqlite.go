// Package sqlite publishes the final tables into a relational SQLite
// database, the primary distribution format.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Loader writes each table into a SQLite database file.
type Loader struct {
	db *sql.DB

	// Replace drops existing tables before creating them. Without it,
	// loading into a database that already has a table is an error.
	Replace bool
}

var _ pudl.Loader = (*Loader)(nil)

// NewLoader opens (creating if needed) the database at path.
func NewLoader(path string) (*Loader, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "opening database '%v'", path)
	}
	return &Loader{db: db}, nil
}

func (l *Loader) Load(ctx context.Context, tables map[string]*pudl.Table) error {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		start := time.Now()
		if err := l.loadTable(ctx, tables[name]); err != nil {
			return errors.Wrapf(err, "loading table %s", name)
		}
		log.Printf("sqlite: loaded %s, %d rows in %s", name, tables[name].Len(), time.Since(start))
	}
	return nil
}

func (l *Loader) loadTable(ctx context.Context, t *pudl.Table) error {
	if l.Replace {
		if _, err := l.db.ExecContext(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS "%s"`, t.Name)); err != nil {
			return errors.Wrap(err, "dropping table")
		}
	}
	if _, err := l.db.ExecContext(ctx, createStmt(t)); err != nil {
		return errors.Wrap(err, "creating table")
	}

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	stmt, err := tx.PrepareContext(ctx, insertStmt(t))
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "preparing insert")
	}
	for row := 0; row < t.Len(); row++ {
		if _, err := stmt.ExecContext(ctx, t.Row(row)...); err != nil {
			stmt.Close()
			tx.Rollback()
			return errors.Wrapf(err, "inserting row %d", row)
		}
	}
	if err := stmt.Close(); err != nil {
		tx.Rollback()
		return errors.Wrap(err, "closing statement")
	}
	return errors.Wrap(tx.Commit(), "committing")
}

func (l *Loader) Close() error {
	return l.db.Close()
}

// createStmt builds a typed CREATE TABLE from the table's fields.
func createStmt(t *pudl.Table) string {
	cols := make([]string, len(t.Fields()))
	for i, f := range t.Fields() {
		cols[i] = fmt.Sprintf(`"%s" %s`, f.Name(), sqlType(f))
	}
	return fmt.Sprintf(`CREATE TABLE "%s" (%s)`, t.Name, strings.Join(cols, ", "))
}

func insertStmt(t *pudl.Table) string {
	cols := make([]string, len(t.Fields()))
	marks := make([]string, len(t.Fields()))
	for i, f := range t.Fields() {
		cols[i] = fmt.Sprintf(`"%s"`, f.Name())
		marks[i] = "?"
	}
	return fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		t.Name, strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func sqlType(f pudl.Field) string {
	switch f.(type) {
	case pudl.IntField:
		return "INTEGER"
	case pudl.FloatField:
		return "REAL"
	case pudl.BoolField:
		return "BOOLEAN"
	case pudl.TimeField:
		return "TIMESTAMP"
	default:
		return "TEXT"
	}
}
