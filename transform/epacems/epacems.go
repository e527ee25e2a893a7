// Package epacems cleans the EPA CEMS hourly emissions data. CEMS is by far
// the largest dataset in the pipeline, so the transforms here work column-wise
// and avoid building intermediate tables.
package epacems

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// HourlyTable is the canonical name of the CEMS hourly emissions table.
const HourlyTable = "hourly_emissions_epacems"

// standardOffsets maps IANA timezone names from the EIA plants entity table
// to their standard (winter) UTC offset. CEMS timestamps never observe DST,
// so the standard offset applies year round.
var standardOffsets = map[string]time.Duration{
	"America/Puerto_Rico":          -4 * time.Hour,
	"America/New_York":             -5 * time.Hour,
	"America/Detroit":              -5 * time.Hour,
	"America/Indiana/Indianapolis": -5 * time.Hour,
	"America/Kentucky/Louisville":  -5 * time.Hour,
	"America/Chicago":              -6 * time.Hour,
	"America/Menominee":            -6 * time.Hour,
	"America/North_Dakota/Center":  -6 * time.Hour,
	"America/Denver":               -7 * time.Hour,
	"America/Boise":                -7 * time.Hour,
	"America/Phoenix":              -7 * time.Hour,
	"America/Los_Angeles":          -8 * time.Hour,
	"America/Anchorage":            -9 * time.Hour,
	"America/Juneau":               -9 * time.Hour,
	"America/Sitka":                -9 * time.Hour,
	"Pacific/Honolulu":             -10 * time.Hour,
}

// OffsetsFromPlants derives each plant's UTC offset from the timezone column
// of the plants entity table. Plants without a timezone are skipped; an
// unrecognized timezone is an error.
func OffsetsFromPlants(plants *pudl.Table) (map[int64]time.Duration, error) {
	ids, err := plants.Column("plant_id_eia")
	if err != nil {
		return nil, err
	}
	zones, err := plants.Column("timezone")
	if err != nil {
		return nil, err
	}
	offsets := make(map[int64]time.Duration)
	for i := range ids {
		id, ok := ids[i].(int64)
		if !ok {
			continue
		}
		tz, ok := zones[i].(string)
		if !ok || tz == "" || tz == "None" {
			continue
		}
		off, ok := standardOffsets[tz]
		if !ok {
			return nil, errors.Errorf("plant %d: unrecognized timezone %q", id, tz)
		}
		offsets[id] = off
	}
	return offsets, nil
}

// Transformer cleans the CEMS hourly table. Offsets must cover every plant
// that appears in the data; build it with OffsetsFromPlants.
type Transformer struct {
	Offsets map[int64]time.Duration
}

var _ pudl.Transformer = (*Transformer)(nil)

func (tr *Transformer) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, ok := tables[HourlyTable]
	if !ok {
		return tables, nil
	}
	// ORISPL harmonization must run before the date fix, which looks up
	// timezones by plant ID.
	if err := HarmonizeORISPL(t); err != nil {
		return nil, err
	}
	if err := FixUpDates(t, tr.Offsets); err != nil {
		return nil, err
	}
	if err := AddFacilityIDUnitIDEPA(t); err != nil {
		return nil, err
	}
	if err := CorrectGrossLoad(t); err != nil {
		return nil, err
	}
	for _, col := range []string{"gross_load_mw", "heat_content_mmbtu"} {
		if err := FillNAZero(t, col); err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// HarmonizeORISPL reconciles CEMS ORISPL codes with EIA plant IDs. The codes
// almost match already; EPA publishes a crosswalk for the remainder at
// https://github.com/USEPA/camd-eia-crosswalk which is not integrated yet, so
// for now the codes pass through unchanged.
func HarmonizeORISPL(t *pudl.Table) error {
	return nil
}

// opDateLayout is how CEMS reports op_date.
const opDateLayout = "01-02-2006"

// FixUpDates replaces the local op_date and op_hour columns with a single
// operating_datetime_utc column. CEMS data never observes DST, so each
// plant's standard offset applies to every timestamp.
func FixUpDates(t *pudl.Table, offsets map[int64]time.Duration) error {
	ids, err := t.Column("plant_id_eia")
	if err != nil {
		return err
	}
	dates, err := t.Column("op_date")
	if err != nil {
		return err
	}
	hours, err := t.Column("op_hour")
	if err != nil {
		return err
	}

	missing := map[int64]bool{}
	utc := make([]interface{}, t.Len())
	for i := range ids {
		id, ok := ids[i].(int64)
		if !ok {
			continue
		}
		off, ok := offsets[id]
		if !ok {
			missing[id] = true
			continue
		}
		ds, ok := dates[i].(string)
		if !ok {
			continue
		}
		naive, err := time.Parse(opDateLayout, strings.TrimSpace(ds))
		if err != nil {
			return errors.Wrapf(err, "row %d op_date", i)
		}
		hour, _ := hours[i].(int64)
		utc[i] = naive.Add(time.Duration(hour)*time.Hour - off)
	}
	if len(missing) > 0 {
		plants := make([]int64, 0, len(missing))
		for id := range missing {
			plants = append(plants, id)
		}
		sort.Slice(plants, func(a, b int) bool { return plants[a] < plants[b] })
		return errors.Errorf("no utc offset for cems plants %v", plants)
	}

	if err := t.AddField(pudl.TimeField{NameVal: "operating_datetime_utc"}); err != nil {
		return err
	}
	col, err := t.Column("operating_datetime_utc")
	if err != nil {
		return err
	}
	copy(col, utc)
	t.DropColumn("op_date")
	t.DropColumn("op_hour")
	return nil
}

// AddFacilityIDUnitIDEPA ensures the facility_id and unit_id_epa columns
// exist. They only appear in files from August 2008 on, and downstream
// consumers expect a consistent schema.
func AddFacilityIDUnitIDEPA(t *pudl.Table) error {
	for _, name := range []string{"facility_id", "unit_id_epa"} {
		if t.HasColumn(name) {
			continue
		}
		if err := t.AddField(pudl.IntField{NameVal: name}); err != nil {
			return err
		}
	}
	return nil
}

// CorrectGrossLoad rescales gross load reported in kW. The largest unit in
// EIA 860 is under 1500 MW, so anything over 2000 is assumed misreported.
func CorrectGrossLoad(t *pudl.Table) error {
	col, err := t.Column("gross_load_mw")
	if err != nil {
		return err
	}
	for i, v := range col {
		f, ok := v.(float64)
		if ok && f > 2000 {
			col[i] = f / 1000
		}
	}
	return nil
}

// FillNAZero replaces nil values in the named column with 0.
func FillNAZero(t *pudl.Table, col string) error {
	c, err := t.Column(col)
	if err != nil {
		return err
	}
	for i, v := range c {
		if v == nil {
			c[i] = float64(0)
		}
	}
	return nil
}
