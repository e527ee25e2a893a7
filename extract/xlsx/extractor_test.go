package xlsx

import (
	"context"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/kevinsung/pudl"
)

func mustWorkbook(t *testing.T, sheet string, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	if sheet != "Sheet1" {
		if err := f.SetSheetName("Sheet1", sheet); err != nil {
			t.Fatalf("renaming sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("computing cell name: %v", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("setting row: %v", err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		t.Fatalf("writing workbook: %v", err)
	}
	return buf.Bytes()
}

func TestExtractorAcrossYears(t *testing.T) {
	// 2018 uses different column headers and a junk banner row; both years
	// should land in one canonical table.
	wb2017 := mustWorkbook(t, "GenY17", [][]interface{}{
		{"PLANT_CODE", "NAMEPLATE", "IGNORED"},
		{"3", "100.5", "x"},
		{"7", ".", "y"},
	})
	wb2018 := mustWorkbook(t, "Generator", [][]interface{}{
		{"EIA-860 Generator Data"},
		{"Plant Code", "Nameplate Capacity (MW)"},
		{"9", "250"},
	})

	e := &Extractor{
		Dataset: "eia860",
		Pages: []Page{{
			Name: "generators_eia860",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.FloatField{NameVal: "capacity_mw"},
			},
			Sheet:    map[int]string{2017: "GenY17", 2018: "Generator"},
			SkipRows: map[int]int{2018: 1},
			Columns: map[int]map[string]string{
				2017: {"PLANT_CODE": "plant_id_eia", "NAMEPLATE": "capacity_mw"},
				2018: {"Plant Code": "plant_id_eia", "Nameplate Capacity (MW)": "capacity_mw"},
			},
		}},
		Workbooks: map[int][]byte{2017: wb2017, 2018: wb2018},
	}

	tables, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("extracting: %v", err)
	}
	table := tables["generators_eia860"]
	if table == nil {
		t.Fatal("missing generators_eia860")
	}
	if table.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", table.Len())
	}

	year, err := table.Value(0, "report_year")
	if err != nil {
		t.Fatalf("getting report_year: %v", err)
	}
	if year != int64(2017) {
		t.Fatalf("expected 2017, got %v", year)
	}

	// "." sentinel becomes nil
	cap1, err := table.Value(1, "capacity_mw")
	if err != nil {
		t.Fatalf("getting capacity: %v", err)
	}
	if cap1 != nil {
		t.Fatalf("expected nil capacity for '.', got %v", cap1)
	}

	plant, err := table.Value(2, "plant_id_eia")
	if err != nil {
		t.Fatalf("getting plant id: %v", err)
	}
	if plant != int64(9) {
		t.Fatalf("expected plant 9 from 2018 sheet, got %v", plant)
	}
	year, _ = table.Value(2, "report_year")
	if year != int64(2018) {
		t.Fatalf("expected 2018, got %v", year)
	}
}

func TestExtractorSkipsMissingYears(t *testing.T) {
	wb := mustWorkbook(t, "Sheet1", [][]interface{}{
		{"UTILITY_ID"},
		{"5"},
	})
	e := &Extractor{
		Dataset: "eia860",
		Pages: []Page{{
			Name:   "utilities_eia860",
			Fields: []pudl.Field{pudl.IntField{NameVal: "utility_id_eia"}},
			Sheet:  map[int]string{2018: "Sheet1"},
			Columns: map[int]map[string]string{
				2018: {"UTILITY_ID": "utility_id_eia"},
			},
		}},
		// 2001 has no sheet mapping: the page didn't exist yet
		Workbooks: map[int][]byte{2001: wb, 2018: wb},
	}
	tables, err := e.Extract(context.Background())
	if err != nil {
		t.Fatalf("extracting: %v", err)
	}
	if tables["utilities_eia860"].Len() != 1 {
		t.Fatalf("expected 1 row, got %d", tables["utilities_eia860"].Len())
	}
}
