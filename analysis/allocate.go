package analysis

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// allocTolerance is how far, proportionally, the allocated totals may drift
// from the fuel-table totals before the allocation is considered broken.
const allocTolerance = 1e-5

type plantKey struct {
	date  string
	plant int64
}

// AllocateNetGen distributes the plant-level net generation reported in the
// generation_fuel table (gf) across that plant's generators (gens). When the
// generators reported their own generation, each one's share of the reported
// total sets its fraction; otherwise fractions come from capacity. The
// allocated values are checked against the plant totals before returning.
//
// gf needs report_date, plant_id_eia and net_generation_mwh. gens needs
// report_date, plant_id_eia, generator_id, capacity_mw and (possibly nil)
// net_generation_mwh.
func AllocateNetGen(gf, gens *pudl.Table) (*pudl.Table, error) {
	totals := make(map[plantKey]float64)
	gfGen, err := gf.Column("net_generation_mwh")
	if err != nil {
		return nil, errors.Wrap(err, "reading fuel table generation")
	}
	for row := 0; row < gf.Len(); row++ {
		key, ok := plantRowKey(gf, row)
		if !ok {
			continue
		}
		if v, ok := gfGen[row].(float64); ok {
			totals[key] += v
		}
	}

	type genRow struct {
		key      plantKey
		id       string
		reported interface{}
		capacity float64
	}
	var all []genRow
	reportedSum := make(map[plantKey]float64)
	anyReported := make(map[plantKey]bool)
	capacitySum := make(map[plantKey]float64)

	genCol, err := gens.Column("net_generation_mwh")
	if err != nil {
		return nil, errors.Wrap(err, "reading generator generation")
	}
	capCol, err := gens.Column("capacity_mw")
	if err != nil {
		return nil, errors.Wrap(err, "reading generator capacity")
	}
	for row := 0; row < gens.Len(); row++ {
		key, ok := plantRowKey(gens, row)
		if !ok {
			continue
		}
		id, err := gens.Value(row, "generator_id")
		if err != nil || id == nil {
			continue
		}
		r := genRow{key: key, id: fmt.Sprint(id), reported: genCol[row]}
		if mw, ok := capCol[row].(float64); ok {
			r.capacity = mw
		}
		if v, ok := r.reported.(float64); ok {
			reportedSum[key] += v
			anyReported[key] = true
		}
		capacitySum[key] += r.capacity
		all = append(all, r)
	}

	out := pudl.NewTable("net_generation_allocated",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "fraction"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
	)
	allocated := make(map[plantKey]float64)
	for _, r := range all {
		total, ok := totals[r.key]
		if !ok {
			continue
		}
		frac := allocationFraction(r.reported, r.capacity,
			anyReported[r.key], reportedSum[r.key], capacitySum[r.key])
		mwh := total * frac
		allocated[r.key] += mwh
		err := out.Append(r.key.date, r.key.plant, r.id, frac, mwh)
		if err != nil {
			return nil, err
		}
	}

	for key, total := range totals {
		got, ok := allocated[key]
		if !ok {
			continue
		}
		scale := math.Abs(total)
		if scale < 1 {
			scale = 1
		}
		if math.Abs(got-total)/scale > allocTolerance {
			return nil, errors.Errorf(
				"allocated %f MWh for plant %d in %s but fuel table reports %f",
				got, key.plant, key.date, total)
		}
	}
	return out, nil
}

// allocationFraction picks each generator's share of its plant total. Plants
// with any reported generation use the reported shares; generators that
// reported nothing at such a plant get zero. Plants with no reported
// generation at all fall back to capacity shares.
func allocationFraction(reported interface{}, capacity float64,
	anyReported bool, reportedSum, capacitySum float64) float64 {

	if anyReported {
		v, ok := reported.(float64)
		if !ok || reportedSum == 0 {
			return 0
		}
		return v / reportedSum
	}
	if capacitySum == 0 {
		return 0
	}
	return capacity / capacitySum
}

func plantRowKey(t *pudl.Table, row int) (plantKey, bool) {
	date, err := t.Value(row, "report_date")
	if err != nil || date == nil {
		return plantKey{}, false
	}
	plant, err := t.Value(row, "plant_id_eia")
	if err != nil {
		return plantKey{}, false
	}
	pid, ok := plant.(int64)
	if !ok {
		return plantKey{}, false
	}
	return plantKey{fmt.Sprint(date), pid}, true
}
