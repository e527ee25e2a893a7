package pudl

import (
	"testing"
)

func testTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable("plants",
		IntField{NameVal: "plant_id_eia"},
		StringField{NameVal: "plant_name_eia"},
		FloatField{NameVal: "capacity_mw"},
	)
	for _, row := range [][]interface{}{
		{int64(3), "Barry", 2500.0},
		{int64(470), "Comanche", nil},
		{int64(117), "Four Corners", 1540.0},
	} {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestTableAppendNormalizes(t *testing.T) {
	tbl := testTable(t)
	// string values coerce to the column types
	if err := tbl.Append("56", []byte("Huntington"), "820.5"); err != nil {
		t.Fatal(err)
	}
	v, err := tbl.Value(3, "plant_id_eia")
	if err != nil {
		t.Fatal(err)
	}
	if v != int64(56) {
		t.Fatalf("expected int64 56, got %#v", v)
	}
	v, err = tbl.Value(3, "capacity_mw")
	if err != nil {
		t.Fatal(err)
	}
	if v != 820.5 {
		t.Fatalf("expected 820.5, got %#v", v)
	}

	if err := tbl.Append(int64(1)); err == nil {
		t.Fatal("expected an error appending a short row")
	}
	if err := tbl.Append("x", "name", 1.0); err == nil {
		t.Fatal("expected an error for an unparseable id")
	}
}

func TestTableAppendMap(t *testing.T) {
	tbl := testTable(t)
	err := tbl.AppendMap(map[string]interface{}{
		"plant_id_eia":   int64(99),
		"plant_name_eia": "Ninemile",
	})
	if err != nil {
		t.Fatal(err)
	}
	v, err := tbl.Value(3, "capacity_mw")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected missing column to be nil, got %#v", v)
	}

	err = tbl.AppendMap(map[string]interface{}{"no_such_column": 1})
	if err == nil {
		t.Fatal("expected an error for an unknown column")
	}
}

func TestTableFilter(t *testing.T) {
	tbl := testTable(t)
	big := tbl.Filter(func(row int) bool {
		v, err := tbl.Value(row, "capacity_mw")
		if err != nil {
			return false
		}
		mw, ok := v.(float64)
		return ok && mw > 2000
	})
	if big.Len() != 1 {
		t.Fatalf("expected 1 row, got %d", big.Len())
	}
	v, err := big.Value(0, "plant_name_eia")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Barry" {
		t.Fatalf("expected Barry, got %v", v)
	}
	// the original is untouched
	if tbl.Len() != 3 {
		t.Fatalf("expected original to keep 3 rows, got %d", tbl.Len())
	}
}

func TestTableSortBy(t *testing.T) {
	tbl := testTable(t)
	if err := tbl.SortBy("capacity_mw"); err != nil {
		t.Fatal(err)
	}
	// nils sort first
	v, err := tbl.Value(0, "plant_name_eia")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Comanche" {
		t.Fatalf("expected nil capacity row first, got %v", v)
	}
	v, err = tbl.Value(2, "plant_name_eia")
	if err != nil {
		t.Fatal(err)
	}
	if v != "Barry" {
		t.Fatalf("expected largest capacity last, got %v", v)
	}

	if err := tbl.SortBy("nope"); err == nil {
		t.Fatal("expected an error sorting by a missing column")
	}
}

func TestTableAddDropColumn(t *testing.T) {
	tbl := testTable(t)
	if err := tbl.AddField(StringField{NameVal: "state"}); err != nil {
		t.Fatal(err)
	}
	if err := tbl.AddField(StringField{NameVal: "state"}); err == nil {
		t.Fatal("expected an error adding a duplicate column")
	}
	v, err := tbl.Value(1, "state")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected new column to be nil, got %#v", v)
	}
	if err := tbl.Set(1, "state", "CO"); err != nil {
		t.Fatal(err)
	}

	tbl.DropColumn("capacity_mw")
	if tbl.HasColumn("capacity_mw") {
		t.Fatal("expected capacity_mw to be gone")
	}
	// index stays consistent after the drop
	v, err = tbl.Value(1, "state")
	if err != nil {
		t.Fatal(err)
	}
	if v != "CO" {
		t.Fatalf("expected CO, got %v", v)
	}
	// dropping a missing column is fine
	tbl.DropColumn("capacity_mw")
}

func TestTableRowMap(t *testing.T) {
	tbl := testTable(t)
	row := tbl.RowMap(0)
	if row["plant_id_eia"] != int64(3) || row["plant_name_eia"] != "Barry" {
		t.Fatalf("unexpected row: %#v", row)
	}
}
