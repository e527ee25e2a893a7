package kafka

import (
	"context"
	"database/sql"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Main holds the options for the publish subcommand, which reads tables out
// of an already-built PUDL SQLite database and streams them to Kafka.
type Main struct {
	Hosts       []string `help:"Comma separated list of Kafka hosts."`
	TopicPrefix string   `help:"Prefix prepended to table names to form topic names."`
	Database    string   `help:"Path to the PUDL SQLite database to publish."`
	Tables      []string `help:"Tables to publish. Empty means every table."`
}

// NewMain returns a Main with default options.
func NewMain() *Main {
	return &Main{
		Hosts:       []string{"localhost:9092"},
		TopicPrefix: "pudl-",
		Database:    "pudl.sqlite",
	}
}

// Run reads the selected tables and publishes them.
func (m *Main) Run() error {
	db, err := sql.Open("sqlite3", m.Database)
	if err != nil {
		return errors.Wrapf(err, "opening database '%v'", m.Database)
	}
	defer db.Close()

	names := m.Tables
	if len(names) == 0 {
		names, err = listTables(db)
		if err != nil {
			return errors.Wrap(err, "listing tables")
		}
	}

	loader, err := NewLoader(m.Hosts, m.TopicPrefix)
	if err != nil {
		return errors.Wrap(err, "creating kafka loader")
	}
	defer loader.Close()

	tables := make(map[string]*pudl.Table, len(names))
	for _, name := range names {
		t, err := readTable(db, name)
		if err != nil {
			return errors.Wrapf(err, "reading table %s", name)
		}
		tables[name] = t
	}
	return loader.Load(context.Background(), tables)
}

func listTables(db *sql.DB) ([]string, error) {
	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// readTable reconstructs a pudl.Table from a relational table, mapping the
// declared column types back onto Fields.
func readTable(db *sql.DB, name string) (*pudl.Table, error) {
	cols, err := db.Query(`SELECT name, type FROM pragma_table_info(?)`, name)
	if err != nil {
		return nil, errors.Wrap(err, "reading table info")
	}
	var fields []pudl.Field
	for cols.Next() {
		var colName, declType string
		if err := cols.Scan(&colName, &declType); err != nil {
			cols.Close()
			return nil, err
		}
		fields = append(fields, fieldForDecl(colName, declType))
	}
	cols.Close()
	if err := cols.Err(); err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, errors.Errorf("no such table")
	}

	t := pudl.NewTable(name, fields...)
	rows, err := db.Query(`SELECT * FROM "` + name + `"`)
	if err != nil {
		return nil, errors.Wrap(err, "selecting rows")
	}
	defer rows.Close()
	for rows.Next() {
		vals := make([]interface{}, len(fields))
		ptrs := make([]interface{}, len(fields))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, f := range fields {
			vals[i] = fromSQL(f, vals[i])
		}
		if err := t.Append(vals...); err != nil {
			return nil, err
		}
	}
	return t, rows.Err()
}

func fieldForDecl(name, declType string) pudl.Field {
	switch strings.ToUpper(declType) {
	case "INTEGER":
		return pudl.IntField{NameVal: name}
	case "REAL":
		return pudl.FloatField{NameVal: name}
	case "BOOLEAN":
		return pudl.BoolField{NameVal: name}
	case "TIMESTAMP":
		return pudl.TimeField{NameVal: name}
	default:
		return pudl.StringField{NameVal: name}
	}
}

// fromSQL undoes the driver's widening so Normalize accepts the value.
func fromSQL(f pudl.Field, v interface{}) interface{} {
	if v == nil {
		return nil
	}
	switch f.(type) {
	case pudl.BoolField:
		if iv, ok := v.(int64); ok {
			return iv != 0
		}
	case pudl.StringField:
		if bs, ok := v.([]byte); ok {
			return string(bs)
		}
	case pudl.TimeField:
		if tv, ok := v.(time.Time); ok {
			return tv
		}
	}
	return v
}
