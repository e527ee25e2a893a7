// Package eia resolves EIA entities across report years. Plants and
// utilities report their supposedly-static attributes every year in several
// different forms, and the reports disagree. Harvesting collects every
// observation and keeps the most common value for each entity.
package eia

import (
	"context"
	"fmt"
	"log"
	"sort"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Harvester resolves one entity type's static attributes across all the raw
// tables that mention it.
type Harvester struct {
	// EntityTable is the name of the output table, e.g. plants_entity_eia.
	EntityTable string

	// IDColumn identifies the entity, e.g. plant_id_eia. Any input table
	// containing this column contributes observations.
	IDColumn string

	// YearColumn breaks ties between equally common values; the value seen
	// in the latest year wins.
	YearColumn string

	// Static are the attributes to resolve.
	Static []pudl.Field
}

var _ pudl.Transformer = (*Harvester)(nil)

// NewPlantHarvester harvests the static attributes of EIA plants.
func NewPlantHarvester() *Harvester {
	return &Harvester{
		EntityTable: "plants_entity_eia",
		IDColumn:    "plant_id_eia",
		YearColumn:  "report_year",
		Static: []pudl.Field{
			pudl.StringField{NameVal: "plant_name_eia"},
			pudl.StringField{NameVal: "street_address"},
			pudl.StringField{NameVal: "city"},
			pudl.StringField{NameVal: "county"},
			pudl.StringField{NameVal: "state"},
			pudl.StringField{NameVal: "zip_code"},
			pudl.FloatField{NameVal: "latitude"},
			pudl.FloatField{NameVal: "longitude"},
			pudl.StringField{NameVal: "timezone"},
		},
	}
}

// NewUtilityHarvester harvests the static attributes of EIA utilities.
func NewUtilityHarvester() *Harvester {
	return &Harvester{
		EntityTable: "utilities_entity_eia",
		IDColumn:    "utility_id_eia",
		YearColumn:  "report_year",
		Static: []pudl.Field{
			pudl.StringField{NameVal: "utility_name_eia"},
		},
	}
}

type observation struct {
	count      int
	latestYear int64
}

// Transform adds the resolved entity table to the table map. The input
// tables pass through untouched.
func (h *Harvester) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if _, ok := tables[h.EntityTable]; ok {
		return nil, errors.Errorf("table %q already exists", h.EntityTable)
	}

	// entity id -> attribute name -> observed value -> stats
	observed := make(map[int64]map[string]map[interface{}]*observation)
	// deterministic output ordering
	var idOrder []int64

	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	scanned := 0
	for _, name := range names {
		t := tables[name]
		if !t.HasColumn(h.IDColumn) {
			continue
		}
		scanned++
		ids, err := t.Column(h.IDColumn)
		if err != nil {
			return nil, err
		}
		var years []interface{}
		if t.HasColumn(h.YearColumn) {
			years, err = t.Column(h.YearColumn)
			if err != nil {
				return nil, err
			}
		}
		for _, f := range h.Static {
			if !t.HasColumn(f.Name()) {
				continue
			}
			col, err := t.Column(f.Name())
			if err != nil {
				return nil, err
			}
			for row, v := range col {
				if v == nil {
					continue
				}
				id, ok := ids[row].(int64)
				if !ok {
					continue
				}
				byAttr, ok := observed[id]
				if !ok {
					byAttr = make(map[string]map[interface{}]*observation)
					observed[id] = byAttr
					idOrder = append(idOrder, id)
				}
				byVal, ok := byAttr[f.Name()]
				if !ok {
					byVal = make(map[interface{}]*observation)
					byAttr[f.Name()] = byVal
				}
				obs, ok := byVal[v]
				if !ok {
					obs = &observation{}
					byVal[v] = obs
				}
				obs.count++
				if years != nil {
					if y, ok := years[row].(int64); ok && y > obs.latestYear {
						obs.latestYear = y
					}
				}
			}
		}
	}
	if scanned == 0 {
		return nil, errors.Errorf("no input tables contain column %q", h.IDColumn)
	}

	sort.Slice(idOrder, func(a, b int) bool { return idOrder[a] < idOrder[b] })

	fields := append([]pudl.Field{pudl.IntField{NameVal: h.IDColumn}}, h.Static...)
	out := pudl.NewTable(h.EntityTable, fields...)
	for _, id := range idOrder {
		rec := map[string]interface{}{h.IDColumn: id}
		for _, f := range h.Static {
			if v := resolve(observed[id][f.Name()]); v != nil {
				rec[f.Name()] = v
			}
		}
		if err := out.AppendMap(rec); err != nil {
			return nil, err
		}
	}
	log.Printf("%s: resolved %d entities from %d tables", h.EntityTable, out.Len(), scanned)

	tables[h.EntityTable] = out
	return tables, nil
}

// resolve picks the most frequently observed value; ties go to the value
// seen in the latest report year.
func resolve(byVal map[interface{}]*observation) interface{} {
	var best interface{}
	var bestObs observation
	for v, obs := range byVal {
		switch {
		case obs.count > bestObs.count:
			best, bestObs = v, *obs
		case obs.count == bestObs.count && obs.latestYear > bestObs.latestYear:
			best, bestObs = v, *obs
		}
	}
	return best
}

// HarvestAssociations compiles the unique fully-populated combinations of
// cols found across all tables that contain every one of them. An empty
// result is an error; it means the association tables upstream were never
// extracted.
func HarvestAssociations(tables map[string]*pudl.Table, out string, cols []string) (*pudl.Table, error) {
	names := make([]string, 0, len(tables))
	for name := range tables {
		names = append(names, name)
	}
	sort.Strings(names)

	var assn *pudl.Table
	seen := map[string]bool{}
	for _, name := range names {
		t := tables[name]
		hasAll := true
		for _, c := range cols {
			if !t.HasColumn(c) {
				hasAll = false
				break
			}
		}
		if !hasAll {
			continue
		}
		if assn == nil {
			fields := make([]pudl.Field, 0, len(cols))
			for _, c := range cols {
				for _, f := range t.Fields() {
					if f.Name() == c {
						fields = append(fields, f)
					}
				}
			}
			assn = pudl.NewTable(out, fields...)
		}
		for row := 0; row < t.Len(); row++ {
			rec := make([]interface{}, len(cols))
			key := ""
			full := true
			for i, c := range cols {
				v, err := t.Value(row, c)
				if err != nil {
					return nil, err
				}
				if v == nil {
					full = false
					break
				}
				rec[i] = v
				key += keyPart(v)
			}
			if !full || seen[key] {
				continue
			}
			seen[key] = true
			if err := assn.Append(rec...); err != nil {
				return nil, err
			}
		}
	}
	if assn == nil || assn.Len() == 0 {
		return nil, errors.Errorf("no associations found for columns %v", cols)
	}
	return assn, nil
}

func keyPart(v interface{}) string { return fmt.Sprintf("%v|", v) }
