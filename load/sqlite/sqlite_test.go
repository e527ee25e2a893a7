package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/kevinsung/pudl"
)

func testTable(t *testing.T) *pudl.Table {
	t.Helper()
	tbl := pudl.NewTable("plants_eia",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "plant_name_eia"},
		pudl.FloatField{NameVal: "latitude"},
		pudl.BoolField{NameVal: "active"},
		pudl.TimeField{NameVal: "first_reported"},
	)
	rows := [][]interface{}{
		{3, "Comanche", 38.2, true, time.Date(2009, 1, 1, 0, 0, 0, 0, time.UTC)},
		{7, "Barry", nil, false, nil},
	}
	for _, r := range rows {
		if err := tbl.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestLoaderWritesRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pudl.sqlite")
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	tbl := testTable(t)
	if err := l.Load(context.Background(), map[string]*pudl.Table{tbl.Name: tbl}); err != nil {
		t.Fatal(err)
	}
	if err := l.Close(); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM plants_eia`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected 2 rows, got %d", count)
	}
	var name string
	var lat sql.NullFloat64
	err = db.QueryRow(`SELECT plant_name_eia, latitude FROM plants_eia WHERE plant_id_eia = 7`).
		Scan(&name, &lat)
	if err != nil {
		t.Fatal(err)
	}
	if name != "Barry" {
		t.Fatalf("expected Barry, got %q", name)
	}
	if lat.Valid {
		t.Fatalf("expected NULL latitude, got %v", lat.Float64)
	}
}

func TestLoaderReplace(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pudl.sqlite")
	l, err := NewLoader(path)
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()

	tbl := testTable(t)
	tables := map[string]*pudl.Table{tbl.Name: tbl}
	if err := l.Load(context.Background(), tables); err != nil {
		t.Fatal(err)
	}
	// without Replace, the second load hits the existing table
	if err := l.Load(context.Background(), tables); err == nil {
		t.Fatal("expected error loading into existing table")
	}
	l.Replace = true
	if err := l.Load(context.Background(), tables); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM plants_eia`).Scan(&count); err != nil {
		t.Fatal(err)
	}
	if count != 2 {
		t.Fatalf("expected table replaced with 2 rows, got %d", count)
	}
}
