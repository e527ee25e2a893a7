// Package analysis derives generator-level values from the cleaned tables:
// heat rates, capacity factors, fuel costs and the marginal cost of
// electricity (MCOE) roll-up, plus the allocation of fuel-level net
// generation back onto individual generators.
package analysis

import (
	"fmt"
	"math"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Frequency is the time resolution the analysis runs at.
type Frequency string

const (
	Annual  Frequency = "annual"
	Monthly Frequency = "monthly"
)

func (f Frequency) hours() float64 {
	if f == Monthly {
		return 730
	}
	return 8760
}

// Options bound the derived values. Records outside the bounds are presumed
// to be reporting errors and get nulled.
type Options struct {
	// Freq is required; merging tables of different resolutions produces
	// garbage, so every derivation checks it.
	Freq Frequency

	// MinHeatRate is the lowest plausible heat rate in mmBTU/MWh.
	MinHeatRate float64

	MinCapFact, MaxCapFact float64

	MinFuelCostPerMWh float64
}

// DefaultOptions returns the bounds used for published PUDL outputs.
func DefaultOptions(freq Frequency) Options {
	return Options{
		Freq:        freq,
		MinHeatRate: 5.5,
		MinCapFact:  0,
		MaxCapFact:  1.5,
	}
}

func (o Options) check(derivation string) error {
	if o.Freq == "" {
		return errors.Errorf("a frequency is required for %s", derivation)
	}
	return nil
}

// unitKey identifies one generation unit in one reporting period.
type unitKey struct {
	date  string
	plant int64
	unit  string
}

func rowKey(t *pudl.Table, row int, unitCol string) (unitKey, bool) {
	date, err := t.Value(row, "report_date")
	if err != nil || date == nil {
		return unitKey{}, false
	}
	plant, err := t.Value(row, "plant_id_eia")
	if err != nil {
		return unitKey{}, false
	}
	pid, ok := plant.(int64)
	if !ok {
		return unitKey{}, false
	}
	unit, err := t.Value(row, unitCol)
	if err != nil || unit == nil {
		return unitKey{}, false
	}
	return unitKey{fmt.Sprint(date), pid, fmt.Sprint(unit)}, true
}

// sumByKey accumulates valueCol per unit key, skipping nil values.
func sumByKey(t *pudl.Table, unitCol, valueCol string) (map[unitKey]float64, []unitKey, error) {
	vals, err := t.Column(valueCol)
	if err != nil {
		return nil, nil, err
	}
	sums := make(map[unitKey]float64)
	var order []unitKey
	for row := 0; row < t.Len(); row++ {
		key, ok := rowKey(t, row, unitCol)
		if !ok {
			continue
		}
		v, ok := vals[row].(float64)
		if !ok {
			continue
		}
		if _, seen := sums[key]; !seen {
			order = append(order, key)
		}
		sums[key] += v
	}
	return sums, order, nil
}

// HeatRateByUnit computes mmBTU of fuel consumed per MWh generated for each
// (report_date, plant, unit). gen must carry net_generation_mwh and bf
// fuel_consumed_mmbtu, both keyed by unit_id_pudl.
func HeatRateByUnit(opts Options, gen, bf *pudl.Table) (*pudl.Table, error) {
	if err := opts.check("heat rate calculation"); err != nil {
		return nil, err
	}
	netGen, order, err := sumByKey(gen, "unit_id_pudl", "net_generation_mwh")
	if err != nil {
		return nil, errors.Wrap(err, "summing net generation")
	}
	fuel, _, err := sumByKey(bf, "unit_id_pudl", "fuel_consumed_mmbtu")
	if err != nil {
		return nil, errors.Wrap(err, "summing fuel consumed")
	}

	out := pudl.NewTable("heat_rate_by_unit",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "unit_id_pudl"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
		pudl.FloatField{NameVal: "fuel_consumed_mmbtu"},
		pudl.FloatField{NameVal: "heat_rate_mmbtu_mwh"},
	)
	for _, key := range order {
		ng := netGen[key]
		fc, ok := fuel[key]
		if !ok {
			continue
		}
		var hr interface{}
		if ng != 0 {
			hr = fc / ng
		}
		err := out.Append(key.date, key.plant, key.unit, ng, fc, hr)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// CapacityFactor computes each generator's output relative to what running
// flat out for the whole period would have produced. Values outside
// [MinCapFact, MaxCapFact] are nulled.
func CapacityFactor(opts Options, gen, caps *pudl.Table) (*pudl.Table, error) {
	if err := opts.check("capacity factor calculation"); err != nil {
		return nil, err
	}
	capacity := make(map[int64]map[string]float64)
	capPlants, err := caps.Column("plant_id_eia")
	if err != nil {
		return nil, err
	}
	capIDs, err := caps.Column("generator_id")
	if err != nil {
		return nil, err
	}
	capMW, err := caps.Column("capacity_mw")
	if err != nil {
		return nil, err
	}
	for row := range capPlants {
		plant, ok := capPlants[row].(int64)
		if !ok {
			continue
		}
		id, ok := capIDs[row].(string)
		if !ok {
			continue
		}
		mw, ok := capMW[row].(float64)
		if !ok {
			continue
		}
		if capacity[plant] == nil {
			capacity[plant] = make(map[string]float64)
		}
		capacity[plant][id] = mw
	}

	netGen, order, err := sumByKey(gen, "generator_id", "net_generation_mwh")
	if err != nil {
		return nil, errors.Wrap(err, "summing net generation")
	}

	hours := opts.Freq.hours()
	out := pudl.NewTable("capacity_factor",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
		pudl.FloatField{NameVal: "capacity_mw"},
		pudl.FloatField{NameVal: "capacity_factor"},
	)
	for _, key := range order {
		mw, ok := capacity[key.plant][key.unit]
		if !ok || mw == 0 {
			continue
		}
		ng := netGen[key]
		cf := pudl.OOBToNil(ng/(mw*hours), opts.MinCapFact, opts.MaxCapFact)
		if err := out.Append(key.date, key.plant, key.unit, ng, mw, cf); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// FuelCost attaches a per-MWh fuel cost to each generator record in hr,
// using each plant's average delivered fuel cost from the fuel receipts
// table frc (plant_id_eia, fuel_cost_per_mmbtu).
func FuelCost(opts Options, hr, frc *pudl.Table) (*pudl.Table, error) {
	if err := opts.check("fuel cost calculation"); err != nil {
		return nil, err
	}
	plantCost := make(map[int64]float64)
	plantN := make(map[int64]int)
	frcPlants, err := frc.Column("plant_id_eia")
	if err != nil {
		return nil, err
	}
	frcCost, err := frc.Column("fuel_cost_per_mmbtu")
	if err != nil {
		return nil, err
	}
	for row := range frcPlants {
		plant, ok := frcPlants[row].(int64)
		if !ok {
			continue
		}
		cost, ok := frcCost[row].(float64)
		if !ok {
			continue
		}
		plantCost[plant] += cost
		plantN[plant]++
	}

	out := pudl.NewTable("fuel_cost",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "heat_rate_mmbtu_mwh"},
		pudl.FloatField{NameVal: "fuel_cost_per_mmbtu"},
		pudl.FloatField{NameVal: "fuel_cost_per_mwh"},
	)
	rates, err := hr.Column("heat_rate_mmbtu_mwh")
	if err != nil {
		return nil, err
	}
	for row := 0; row < hr.Len(); row++ {
		key, ok := rowKey(hr, row, "generator_id")
		if !ok {
			continue
		}
		n := plantN[key.plant]
		if n == 0 {
			continue
		}
		avg := plantCost[key.plant] / float64(n)
		var rate, perMWh interface{}
		if r, ok := rates[row].(float64); ok {
			rate = r
			perMWh = r * avg
		}
		if err := out.Append(key.date, key.plant, key.unit, rate, avg, perMWh); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// MCOE joins the fuel cost and capacity factor derivations per generator and
// adds total fuel consumption and cost. Heat rates below MinHeatRate, fuel
// costs below MinFuelCostPerMWh and out-of-range capacity factors are
// implausible and get nulled.
func MCOE(opts Options, fuelCost, capFactor *pudl.Table) (*pudl.Table, error) {
	if err := opts.check("mcoe calculation"); err != nil {
		return nil, err
	}
	type mcoeRow struct {
		heatRate, costPerMMBTU, costPerMWh interface{}
		netGen, capFact                    interface{}
	}
	rows := make(map[unitKey]*mcoeRow)
	var order []unitKey

	get := func(t *pudl.Table, row int, col string) interface{} {
		v, _ := t.Value(row, col)
		return v
	}
	for row := 0; row < fuelCost.Len(); row++ {
		key, ok := rowKey(fuelCost, row, "generator_id")
		if !ok {
			continue
		}
		rows[key] = &mcoeRow{
			heatRate:     get(fuelCost, row, "heat_rate_mmbtu_mwh"),
			costPerMMBTU: get(fuelCost, row, "fuel_cost_per_mmbtu"),
			costPerMWh:   get(fuelCost, row, "fuel_cost_per_mwh"),
		}
		order = append(order, key)
	}
	for row := 0; row < capFactor.Len(); row++ {
		key, ok := rowKey(capFactor, row, "generator_id")
		if !ok {
			continue
		}
		r, ok := rows[key]
		if !ok {
			r = &mcoeRow{}
			rows[key] = r
			order = append(order, key)
		}
		r.netGen = get(capFactor, row, "net_generation_mwh")
		r.capFact = get(capFactor, row, "capacity_factor")
	}

	out := pudl.NewTable("mcoe",
		pudl.StringField{NameVal: "report_date"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "generator_id"},
		pudl.FloatField{NameVal: "heat_rate_mmbtu_mwh"},
		pudl.FloatField{NameVal: "fuel_cost_per_mmbtu"},
		pudl.FloatField{NameVal: "fuel_cost_per_mwh"},
		pudl.FloatField{NameVal: "net_generation_mwh"},
		pudl.FloatField{NameVal: "capacity_factor"},
		pudl.FloatField{NameVal: "total_mmbtu"},
		pudl.FloatField{NameVal: "total_fuel_cost"},
	)
	for _, key := range order {
		r := rows[key]
		var totalMMBTU, totalCost interface{}
		if ng, ok := r.netGen.(float64); ok {
			if hr, ok := r.heatRate.(float64); ok {
				mmbtu := ng * hr
				totalMMBTU = mmbtu
				if c, ok := r.costPerMMBTU.(float64); ok {
					totalCost = mmbtu * c
				}
			}
		}
		heatRate := pudl.OOBToNil(r.heatRate, opts.MinHeatRate, math.MaxFloat64)
		costPerMWh := pudl.OOBToNil(r.costPerMWh, opts.MinFuelCostPerMWh, math.MaxFloat64)
		capFact := pudl.OOBToNil(r.capFact, opts.MinCapFact, opts.MaxCapFact)
		err := out.Append(key.date, key.plant, key.unit,
			heatRate, r.costPerMMBTU, costPerMWh, r.netGen, capFact, totalMMBTU, totalCost)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
