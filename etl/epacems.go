package etl

import (
	"archive/zip"
	"bytes"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
	"github.com/kevinsung/pudl/extract/csv"
	"github.com/kevinsung/pudl/transform/epacems"
	"github.com/kevinsung/pudl/workspace"
)

// EPA ships CEMS as one zip per year and state, each holding monthly CSVs
// named like 2019co01.csv. The year and state only appear in the file name,
// so they ride along as constant file columns.
var cemsFileRE = regexp.MustCompile(`(\d{4})[-_]?([A-Za-z]{2})`)

var cemsColumns = map[string]string{
	"STATE":              "state",
	"ORISPL_CODE":        "plant_id_eia",
	"UNITID":             "unitid",
	"OP_DATE":            "op_date",
	"OP_HOUR":            "op_hour",
	"OP_TIME":            "operating_time_hours",
	"GLOAD":              "gross_load_mw",
	"GLOAD (MW)":         "gross_load_mw",
	"SO2_MASS":           "so2_mass_lbs",
	"SO2_MASS (lbs)":     "so2_mass_lbs",
	"NOX_MASS":           "nox_mass_lbs",
	"NOX_MASS (lbs)":     "nox_mass_lbs",
	"CO2_MASS":           "co2_mass_tons",
	"CO2_MASS (tons)":    "co2_mass_tons",
	"HEAT_INPUT":         "heat_content_mmbtu",
	"HEAT_INPUT (mmBtu)": "heat_content_mmbtu",
	"FAC_ID":             "facility_id",
	"UNIT_ID":            "unit_id_epa",
}

func cemsFields() []pudl.Field {
	return []pudl.Field{
		pudl.IntField{NameVal: "year"},
		pudl.StringField{NameVal: "state"},
		pudl.IntField{NameVal: "plant_id_eia"},
		pudl.StringField{NameVal: "unitid"},
		pudl.StringField{NameVal: "op_date"},
		pudl.IntField{NameVal: "op_hour"},
		pudl.FloatField{NameVal: "operating_time_hours"},
		pudl.FloatField{NameVal: "gross_load_mw"},
		pudl.FloatField{NameVal: "so2_mass_lbs"},
		pudl.FloatField{NameVal: "nox_mass_lbs"},
		pudl.FloatField{NameVal: "co2_mass_tons"},
		pudl.FloatField{NameVal: "heat_content_mmbtu"},
		pudl.IntField{NameVal: "facility_id"},
		pudl.IntField{NameVal: "unit_id_epa"},
	}
}

func cemsFileColumns(fileName string) (map[string]interface{}, error) {
	match := cemsFileRE.FindStringSubmatch(fileName)
	if match == nil {
		return nil, errors.Errorf("cannot find year and state in file name %q", fileName)
	}
	year, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"year":  year,
		"state": strings.ToUpper(match[2]),
	}, nil
}

func buildEPACEMS(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	years, err := m.years(ds, "epacems")
	if err != nil {
		return nil, err
	}

	src := csv.NewMultiSource()
	add := func(filters map[string]string) error {
		return ds.Resources("epacems", workspace.ResourceOptions{Filters: filters},
			func(key workspace.ResourceKey, content []byte) error {
				zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
				if err != nil {
					return errors.Wrapf(err, "opening %s", key)
				}
				src.Add(csv.NewZipSource(zr))
				return nil
			})
	}
	for _, year := range years {
		filters := map[string]string{"year": strconv.Itoa(year)}
		if len(m.States) == 0 {
			if err := add(filters); err != nil {
				return nil, err
			}
			continue
		}
		for _, state := range m.States {
			filters["state"] = strings.ToLower(state)
			if err := add(filters); err != nil {
				return nil, err
			}
		}
	}

	ext := &csv.Extractor{
		TableName:   epacems.HourlyTable,
		Source:      src,
		Fields:      cemsFields(),
		ColumnMap:   cemsColumns,
		FileColumns: cemsFileColumns,
	}
	// The timezone conversion runs as a finisher once the EIA plant entities
	// have been harvested; no per-dataset transforms here.
	return &pudl.DatasetETL{Dataset: "epacems", Extractor: ext}, nil
}
