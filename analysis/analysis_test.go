package analysis

import (
	"math"
	"strings"
	"testing"

	"github.com/kevinsung/pudl"
)

func genTable(t *testing.T, unitCol string, rows [][]interface{}) *pudl.Table {
	t.Helper()
	tbl := pudl.NewTable("generation",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: unitCol},
		pudl.FloatField{NameVal: "net_generation_mwh"},
	)
	for _, row := range rows {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func floatAt(t *testing.T, tbl *pudl.Table, row int, col string) float64 {
	t.Helper()
	v, err := tbl.Value(row, col)
	if err != nil {
		t.Fatal(err)
	}
	f, ok := v.(float64)
	if !ok {
		t.Fatalf("%s row %d: expected float, got %#v", col, row, v)
	}
	return f
}

func TestHeatRateByUnit(t *testing.T) {
	gen := genTable(t, "unit_id_pudl", [][]interface{}{
		{"2020-01-01", int64(3), "1", 100.0},
		{"2020-01-01", int64(3), "1", 50.0},
		{"2020-01-01", int64(4), "1", 200.0},
	})
	bf := pudl.NewTable("boiler_fuel",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "unit_id_pudl"},
		pudl.FloatField{NameVal: "fuel_consumed_mmbtu"},
	)
	for _, row := range [][]interface{}{
		{"2020-01-01", int64(3), "1", 900.0},
		{"2020-01-01", int64(3), "1", 600.0},
		{"2020-01-01", int64(4), "1", 2400.0},
	} {
		if err := bf.Append(row...); err != nil {
			t.Fatal(err)
		}
	}

	hr, err := HeatRateByUnit(DefaultOptions(Annual), gen, bf)
	if err != nil {
		t.Fatal(err)
	}
	if hr.Len() != 2 {
		t.Fatalf("expected 2 unit rows, got %d", hr.Len())
	}
	// Plant 3 unit 1: 1500 mmbtu over 150 MWh.
	if got := floatAt(t, hr, 0, "heat_rate_mmbtu_mwh"); got != 10.0 {
		t.Fatalf("expected heat rate 10, got %f", got)
	}
	if got := floatAt(t, hr, 1, "heat_rate_mmbtu_mwh"); got != 12.0 {
		t.Fatalf("expected heat rate 12, got %f", got)
	}
}

func TestHeatRateRequiresFreq(t *testing.T) {
	gen := genTable(t, "unit_id_pudl", nil)
	_, err := HeatRateByUnit(Options{}, gen, gen)
	if err == nil {
		t.Fatal("expected an error without a frequency")
	}
	if !strings.Contains(err.Error(), "frequency") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCapacityFactor(t *testing.T) {
	gen := genTable(t, "generator_id", [][]interface{}{
		{"2020-01-01", int64(3), "G1", 438000.0}, // 100 MW at half load all year
		{"2020-01-01", int64(3), "G2", 900000.0}, // implausibly high
	})
	caps := pudl.NewTable("generators",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "capacity_mw"},
	)
	for _, row := range [][]interface{}{
		{int64(3), "G1", 100.0},
		{int64(3), "G2", 50.0},
	} {
		if err := caps.Append(row...); err != nil {
			t.Fatal(err)
		}
	}

	cf, err := CapacityFactor(DefaultOptions(Annual), gen, caps)
	if err != nil {
		t.Fatal(err)
	}
	if got := floatAt(t, cf, 0, "capacity_factor"); got != 0.5 {
		t.Fatalf("expected capacity factor 0.5, got %f", got)
	}
	v, err := cf.Value(1, "capacity_factor")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected out-of-range capacity factor to be nulled, got %v", v)
	}
}

func TestMCOE(t *testing.T) {
	opts := DefaultOptions(Annual)
	gen := genTable(t, "unit_id_pudl", [][]interface{}{
		{"2020-01-01", int64(3), "G1", 100.0},
		{"2020-01-01", int64(3), "G2", 100.0}, // heat rate ends up below minimum
	})
	bf := pudl.NewTable("boiler_fuel",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "unit_id_pudl"},
		pudl.FloatField{NameVal: "fuel_consumed_mmbtu"},
	)
	for _, row := range [][]interface{}{
		{"2020-01-01", int64(3), "G1", 1000.0},
		{"2020-01-01", int64(3), "G2", 200.0},
	} {
		if err := bf.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	hr, err := HeatRateByUnit(opts, gen, bf)
	if err != nil {
		t.Fatal(err)
	}
	// Reuse the unit table as a generator table for the join.
	if err := renameColumn(hr, "unit_id_pudl", "generator_id"); err != nil {
		t.Fatal(err)
	}

	frc := pudl.NewTable("fuel_receipts_costs",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.FloatField{NameVal: "fuel_cost_per_mmbtu"},
	)
	if err := frc.Append(int64(3), 2.0); err != nil {
		t.Fatal(err)
	}
	fc, err := FuelCost(opts, hr, frc)
	if err != nil {
		t.Fatal(err)
	}
	// G1: 10 mmbtu/MWh at $2/mmbtu.
	if got := floatAt(t, fc, 0, "fuel_cost_per_mwh"); got != 20.0 {
		t.Fatalf("expected $20/MWh, got %f", got)
	}

	capGen := genTable(t, "generator_id", [][]interface{}{
		{"2020-01-01", int64(3), "G1", 100.0},
		{"2020-01-01", int64(3), "G2", 100.0},
	})
	caps := pudl.NewTable("generators",
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "capacity_mw"},
	)
	for _, row := range [][]interface{}{
		{int64(3), "G1", 1.0},
		{int64(3), "G2", 1.0},
	} {
		if err := caps.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	cf, err := CapacityFactor(opts, capGen, caps)
	if err != nil {
		t.Fatal(err)
	}

	mcoe, err := MCOE(opts, fc, cf)
	if err != nil {
		t.Fatal(err)
	}
	if mcoe.Len() != 2 {
		t.Fatalf("expected 2 mcoe rows, got %d", mcoe.Len())
	}
	if got := floatAt(t, mcoe, 0, "total_mmbtu"); got != 1000.0 {
		t.Fatalf("expected 1000 total mmbtu, got %f", got)
	}
	if got := floatAt(t, mcoe, 0, "total_fuel_cost"); got != 2000.0 {
		t.Fatalf("expected $2000 total fuel cost, got %f", got)
	}
	// G2's heat rate of 2 mmbtu/MWh is below the 5.5 minimum.
	v, err := mcoe.Value(1, "heat_rate_mmbtu_mwh")
	if err != nil {
		t.Fatal(err)
	}
	if v != nil {
		t.Fatalf("expected implausible heat rate to be nulled, got %v", v)
	}
	// Its total_mmbtu still reflects what was reported.
	if got := floatAt(t, mcoe, 1, "total_mmbtu"); got != 200.0 {
		t.Fatalf("expected 200 total mmbtu, got %f", got)
	}
}

func renameColumn(t *pudl.Table, from, to string) error {
	col, err := t.Column(from)
	if err != nil {
		return err
	}
	if err := t.AddField(pudl.StringField{NameVal: to}); err != nil {
		return err
	}
	for row, v := range col {
		if err := t.Set(row, to, v); err != nil {
			return err
		}
	}
	t.DropColumn(from)
	return nil
}

func allocGens(t *testing.T, rows [][]interface{}) *pudl.Table {
	t.Helper()
	tbl := pudl.NewTable("generation",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
		pudl.FloatField{NameVal: "capacity_mw"},
	)
	for _, row := range rows {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func allocTotals(t *testing.T, rows [][]interface{}) *pudl.Table {
	t.Helper()
	tbl := pudl.NewTable("generation_fuel",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
	)
	for _, row := range rows {
		if err := tbl.Append(row...); err != nil {
			t.Fatal(err)
		}
	}
	return tbl
}

func TestAllocateNetGenReportedShares(t *testing.T) {
	gf := allocTotals(t, [][]interface{}{
		{"2020-01-01", int64(3), 300.0},
	})
	// G1 reported twice as much as G2, G3 reported nothing.
	gens := allocGens(t, [][]interface{}{
		{"2020-01-01", int64(3), "G1", 100.0, 10.0},
		{"2020-01-01", int64(3), "G2", 50.0, 10.0},
		{"2020-01-01", int64(3), "G3", nil, 10.0},
	})

	out, err := AllocateNetGen(gf, gens)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{200.0, 100.0, 0.0}
	for row, w := range want {
		if got := floatAt(t, out, row, "net_generation_mwh"); math.Abs(got-w) > 1e-9 {
			t.Fatalf("row %d: expected %f MWh, got %f", row, w, got)
		}
	}
}

func TestAllocateNetGenCapacityFallback(t *testing.T) {
	gf := allocTotals(t, [][]interface{}{
		{"2020-01-01", int64(3), 300.0},
	})
	gens := allocGens(t, [][]interface{}{
		{"2020-01-01", int64(3), "G1", nil, 20.0},
		{"2020-01-01", int64(3), "G2", nil, 10.0},
	})

	out, err := AllocateNetGen(gf, gens)
	if err != nil {
		t.Fatal(err)
	}
	if got := floatAt(t, out, 0, "net_generation_mwh"); math.Abs(got-200.0) > 1e-9 {
		t.Fatalf("expected 200 MWh for G1, got %f", got)
	}
	if got := floatAt(t, out, 1, "net_generation_mwh"); math.Abs(got-100.0) > 1e-9 {
		t.Fatalf("expected 100 MWh for G2, got %f", got)
	}
}
