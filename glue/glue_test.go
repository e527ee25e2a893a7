package glue

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/kevinsung/pudl"
)

func glueTables(t *testing.T) map[string]*pudl.Table {
	t.Helper()
	plants := pudl.NewTable("plants_entity_eia",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "plant_name_eia"},
		pudl.StringField{NameVal: "state"},
	)
	utils := pudl.NewTable("utilities_entity_eia",
		pudl.IntField{NameVal: "utility_id_eia"},
		pudl.StringField{NameVal: "utility_name_eia"},
	)
	steam := pudl.NewTable("plants_steam_ferc1",
		pudl.IntField{NameVal: "utility_id_ferc1"},
		pudl.StringField{NameVal: "plant_name_ferc1"},
	)
	resp := pudl.NewTable("respondents_ferc1",
		pudl.IntField{NameVal: "respondent_id_ferc1"},
		pudl.StringField{NameVal: "respondent_name_ferc1"},
	)
	for _, r := range [][]interface{}{
		{3, "Comanche", "CO"},
		{7, "Barry", "AL"},
	} {
		if err := plants.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range [][]interface{}{
		{100, "Duke Energy Corp"},
	} {
		if err := utils.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range [][]interface{}{
		{55, "COMANCHE"},      // matches EIA plant 3 by name
		{55, "Mystery Plant"}, // no EIA counterpart
		{55, "Mystery Plant"}, // duplicate row
	} {
		if err := steam.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	for _, r := range [][]interface{}{
		{55, "DUKE  ENERGY CORP."}, // matches EIA utility 100
		{56, "Lone Star Power"},
	} {
		if err := resp.Append(r...); err != nil {
			t.Fatal(err)
		}
	}
	return map[string]*pudl.Table{
		"plants_entity_eia":    plants,
		"utilities_entity_eia": utils,
		"plants_steam_ferc1":   steam,
		"respondents_ferc1":    resp,
	}
}

func findPudlID(t *testing.T, tbl *pudl.Table, keyCol string, key interface{}, idCol string) int64 {
	t.Helper()
	for row := 0; row < tbl.Len(); row++ {
		v, err := tbl.Value(row, keyCol)
		if err != nil {
			t.Fatal(err)
		}
		if v == key {
			id, err := tbl.Value(row, idCol)
			if err != nil {
				t.Fatal(err)
			}
			return id.(int64)
		}
	}
	t.Fatalf("no row with %s=%v in %s", keyCol, key, tbl.Name)
	return 0
}

func TestGlueAssignsStableIDs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glue.db")
	reg, err := NewBoltRegistry(path)
	if err != nil {
		t.Fatal(err)
	}

	out, err := NewGlue(reg).Transform(context.Background(), glueTables(t))
	if err != nil {
		t.Fatal(err)
	}

	plantsEIA := out["plants_eia"]
	plantsFERC := out["plants_ferc1"]
	if plantsEIA.Len() != 2 {
		t.Fatalf("expected 2 eia plants, got %d", plantsEIA.Len())
	}
	// duplicate ferc rows collapse
	if plantsFERC.Len() != 2 {
		t.Fatalf("expected 2 ferc plants, got %d", plantsFERC.Len())
	}

	// name-matched ferc plant shares the eia plant's pudl id
	comancheEIA := findPudlID(t, plantsEIA, "plant_id_eia", int64(3), "plant_id_pudl")
	comancheFERC := findPudlID(t, plantsFERC, "plant_name_ferc1", "COMANCHE", "plant_id_pudl")
	if comancheEIA != comancheFERC {
		t.Fatalf("expected matched plant to share pudl id: %d != %d", comancheEIA, comancheFERC)
	}
	mystery := findPudlID(t, plantsFERC, "plant_name_ferc1", "Mystery Plant", "plant_id_pudl")
	if mystery == comancheEIA {
		t.Fatal("unmatched ferc plant must get its own pudl id")
	}

	dukeEIA := findPudlID(t, out["utilities_eia"], "utility_id_eia", int64(100), "utility_id_pudl")
	dukeFERC := findPudlID(t, out["utilities_ferc1"], "utility_id_ferc1", int64(55), "utility_id_pudl")
	if dukeEIA != dukeFERC {
		t.Fatalf("expected name-matched utility to share pudl id: %d != %d", dukeEIA, dukeFERC)
	}

	if out["plants_pudl"].Len() == 0 || out["utilities_pudl"].Len() == 0 {
		t.Fatal("expected non-empty pudl id tables")
	}

	if err := reg.Close(); err != nil {
		t.Fatal(err)
	}

	// a second run against the same registry reuses every id
	reg, err = NewBoltRegistry(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	out2, err := NewGlue(reg).Transform(context.Background(), glueTables(t))
	if err != nil {
		t.Fatal(err)
	}
	again := findPudlID(t, out2["plants_eia"], "plant_id_eia", int64(3), "plant_id_pudl")
	if again != comancheEIA {
		t.Fatalf("pudl id changed across runs: %d != %d", again, comancheEIA)
	}
}
