package etl

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
	"github.com/kevinsung/pudl/extract/xlsx"
	"github.com/kevinsung/pudl/transform/eia861"
	"github.com/kevinsung/pudl/workspace"
)

// The EIA forms arrive as one Excel workbook per report year. Sheet names and
// header spellings drift between years, so each page carries per-year maps.
// The maps below cover the modern form layouts; adding an older year means
// adding its sheet name and header renames here.

// sameForYears fills one value in for every year of a range.
func sameForYears(from, to int, v string) map[int]string {
	m := make(map[int]string, to-from+1)
	for y := from; y <= to; y++ {
		m[y] = v
	}
	return m
}

func sameColsForYears(from, to int, cols map[string]string) map[int]map[string]string {
	m := make(map[int]map[string]string, to-from+1)
	for y := from; y <= to; y++ {
		m[y] = cols
	}
	return m
}

func sameSkipForYears(from, to, n int) map[int]int {
	m := make(map[int]int, to-from+1)
	for y := from; y <= to; y++ {
		m[y] = n
	}
	return m
}

// buildXLSXDataset fetches one workbook per report year and pairs them with
// the dataset's page metadata.
func buildXLSXDataset(m *Main, ds *workspace.Datastore, dataset string,
	pages []xlsx.Page, transformers ...pudl.Transformer) (*pudl.DatasetETL, error) {

	years, err := m.years(ds, dataset)
	if err != nil {
		return nil, err
	}
	workbooks := make(map[int][]byte, len(years))
	for _, year := range years {
		content, err := ds.UniqueResource(dataset, map[string]string{"year": strconv.Itoa(year)})
		if err != nil {
			return nil, errors.Wrapf(err, "fetching %s %d", dataset, year)
		}
		workbooks[year] = content
	}
	return &pudl.DatasetETL{
		Dataset:      dataset,
		Extractor:    &xlsx.Extractor{Dataset: dataset, Pages: pages, Workbooks: workbooks},
		Transformers: transformers,
	}, nil
}

func buildEIA860(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	pages := []xlsx.Page{
		{
			Name: "plants_eia860",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "plant_name_eia"},
				pudl.IntField{NameVal: "utility_id_eia"},
				pudl.StringField{NameVal: "street_address"},
				pudl.StringField{NameVal: "city"},
				pudl.StringField{NameVal: "county"},
				pudl.StringField{NameVal: "state"},
				pudl.StringField{NameVal: "zip_code"},
				pudl.FloatField{NameVal: "latitude"},
				pudl.FloatField{NameVal: "longitude"},
				pudl.StringField{NameVal: "timezone"},
			},
			Sheet:    sameForYears(2013, 2019, "Plant"),
			SkipRows: sameSkipForYears(2013, 2019, 1),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Code":     "plant_id_eia",
				"Plant Name":     "plant_name_eia",
				"Utility ID":     "utility_id_eia",
				"Street Address": "street_address",
				"City":           "city",
				"County":         "county",
				"State":          "state",
				"Zip":            "zip_code",
				"Zip Code":       "zip_code",
				"Latitude":       "latitude",
				"Longitude":      "longitude",
				"Time Zone":      "timezone",
			}),
		},
		{
			Name: "generators_eia860",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "generator_id"},
				pudl.IntField{NameVal: "utility_id_eia"},
				pudl.FloatField{NameVal: "capacity_mw"},
				pudl.StringField{NameVal: "prime_mover_code"},
				pudl.StringField{NameVal: "energy_source_code_1"},
				pudl.StringField{NameVal: "operational_status"},
			},
			Sheet:    sameForYears(2013, 2019, "Operable"),
			SkipRows: sameSkipForYears(2013, 2019, 1),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Code":              "plant_id_eia",
				"Generator ID":            "generator_id",
				"Utility ID":              "utility_id_eia",
				"Nameplate Capacity (MW)": "capacity_mw",
				"Prime Mover":             "prime_mover_code",
				"Energy Source 1":         "energy_source_code_1",
				"Status":                  "operational_status",
			}),
		},
		{
			Name: "utilities_eia860",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "utility_id_eia"},
				pudl.StringField{NameVal: "utility_name_eia"},
				pudl.StringField{NameVal: "street_address"},
				pudl.StringField{NameVal: "city"},
				pudl.StringField{NameVal: "state"},
				pudl.StringField{NameVal: "zip_code"},
			},
			Sheet:    sameForYears(2013, 2019, "Utility"),
			SkipRows: sameSkipForYears(2013, 2019, 1),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Utility ID":     "utility_id_eia",
				"Utility Name":   "utility_name_eia",
				"Street Address": "street_address",
				"City":           "city",
				"State":          "state",
				"Zip":            "zip_code",
				"Zip Code":       "zip_code",
			}),
		},
	}
	return buildXLSXDataset(m, ds, "eia860", pages)
}

func buildEIA861(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	salesCols := map[string]string{
		"Utility Number": "utility_id_eia",
		"Utility Name":   "utility_name_eia",
		"State":          "state",
		"BA Code":        "balancing_authority_code_eia",
		"BA_CODE":        "balancing_authority_code_eia",
		"Ownership":      "business_model",
		"Service Type":   "service_type",
		"Data Type":      "data_observed",
	}
	salesFields := []pudl.Field{
		pudl.IntField{NameVal: "utility_id_eia"},
		pudl.StringField{NameVal: "utility_name_eia"},
		pudl.StringField{NameVal: "state"},
		pudl.StringField{NameVal: "balancing_authority_code_eia"},
		pudl.StringField{NameVal: "business_model"},
		pudl.StringField{NameVal: "service_type"},
		pudl.StringField{NameVal: "data_observed"},
	}
	// The sales sheet repeats Revenues/Sales/Customers for each customer
	// class. The tidy transform melts these into one row per class.
	for _, class := range []string{"residential", "commercial", "industrial", "transportation", "other", "total"} {
		title := strings.ToUpper(class[:1]) + class[1:]
		salesCols[title+" Revenues"] = class + "_sales_revenue"
		salesCols[title+" Sales"] = class + "_sales_mwh"
		salesCols[title+" Customers"] = class + "_customers"
		salesFields = append(salesFields,
			pudl.FloatField{NameVal: class + "_sales_revenue"},
			pudl.FloatField{NameVal: class + "_sales_mwh"},
			pudl.FloatField{NameVal: class + "_customers"},
		)
	}

	pages := []xlsx.Page{
		{
			Name: "balancing_authority_eia861",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "utility_id_eia"},
				pudl.IntField{NameVal: "balancing_authority_id_eia"},
				pudl.StringField{NameVal: "balancing_authority_code_eia"},
				pudl.StringField{NameVal: "balancing_authority_name_eia"},
				pudl.StringField{NameVal: "state"},
			},
			Sheet:    sameForYears(2013, 2019, "Balancing_Authority"),
			SkipRows: sameSkipForYears(2013, 2019, 1),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Utility Number":           "utility_id_eia",
				"BA ID":                    "balancing_authority_id_eia",
				"Balancing Authority ID":   "balancing_authority_id_eia",
				"BA Code":                  "balancing_authority_code_eia",
				"Balancing Authority Code": "balancing_authority_code_eia",
				"Balancing Authority Name": "balancing_authority_name_eia",
				"State":                    "state",
			}),
		},
		{
			Name:     "sales_eia861",
			Fields:   salesFields,
			Sheet:    sameForYears(2013, 2019, "States"),
			SkipRows: sameSkipForYears(2013, 2019, 2),
			Columns:  sameColsForYears(2013, 2019, salesCols),
		},
		{
			Name: "service_territory_eia861",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "utility_id_eia"},
				pudl.StringField{NameVal: "utility_name_eia"},
				pudl.StringField{NameVal: "state"},
				pudl.StringField{NameVal: "county"},
				pudl.StringField{NameVal: "state_id_fips"},
				pudl.StringField{NameVal: "county_id_fips"},
			},
			Sheet:    sameForYears(2013, 2019, "Service_Territory"),
			SkipRows: sameSkipForYears(2013, 2019, 1),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Utility Number": "utility_id_eia",
				"Utility Name":   "utility_name_eia",
				"State":          "state",
				"County":         "county",
				"State FIPS":     "state_id_fips",
				"County FIPS":    "county_id_fips",
			}),
		},
	}
	return buildXLSXDataset(m, ds, "eia861", pages, eia861.Transformer{})
}

func buildEIA923(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	pages := []xlsx.Page{
		{
			Name: "generation_fuel_eia923",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "fuel_type"},
				pudl.StringField{NameVal: "prime_mover_code"},
				pudl.FloatField{NameVal: "fuel_consumed_mmbtu"},
				pudl.FloatField{NameVal: "net_generation_mwh"},
			},
			Sheet:    sameForYears(2013, 2019, "Page 1 Generation and Fuel Data"),
			SkipRows: sameSkipForYears(2013, 2019, 5),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Id":                       "plant_id_eia",
				"Reported Fuel Type Code":        "fuel_type",
				"Reported Prime Mover":           "prime_mover_code",
				"Total Fuel Consumption MMBtu":   "fuel_consumed_mmbtu",
				"Net Generation (Megawatthours)": "net_generation_mwh",
			}),
		},
		{
			Name: "boiler_fuel_eia923",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "boiler_id"},
				pudl.StringField{NameVal: "fuel_type"},
				pudl.FloatField{NameVal: "fuel_consumed_units"},
				pudl.FloatField{NameVal: "fuel_mmbtu_per_unit"},
			},
			Sheet:    sameForYears(2013, 2019, "Page 3 Boiler Fuel Data"),
			SkipRows: sameSkipForYears(2013, 2019, 5),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Id":                "plant_id_eia",
				"Boiler Id":               "boiler_id",
				"Reported Fuel Type Code": "fuel_type",
				"Total Fuel Consumption":  "fuel_consumed_units",
				"MMbtu Per Unit":          "fuel_mmbtu_per_unit",
			}),
		},
		{
			Name: "generation_eia923",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "generator_id"},
				pudl.FloatField{NameVal: "net_generation_mwh"},
			},
			Sheet:    sameForYears(2013, 2019, "Page 4 Generator Data"),
			SkipRows: sameSkipForYears(2013, 2019, 5),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Id":                       "plant_id_eia",
				"Generator Id":                   "generator_id",
				"Net Generation (Megawatthours)": "net_generation_mwh",
			}),
		},
		{
			Name: "fuel_receipts_costs_eia923",
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "plant_id_eia"},
				pudl.StringField{NameVal: "fuel_group_code"},
				pudl.FloatField{NameVal: "fuel_received_units"},
				pudl.FloatField{NameVal: "fuel_cost_per_mmbtu"},
			},
			Sheet:    sameForYears(2013, 2019, "Page 5 Fuel Receipts and Costs"),
			SkipRows: sameSkipForYears(2013, 2019, 4),
			Columns: sameColsForYears(2013, 2019, map[string]string{
				"Plant Id":   "plant_id_eia",
				"FUEL_GROUP": "fuel_group_code",
				"QUANTITY":   "fuel_received_units",
				"FUEL_COST":  "fuel_cost_per_mmbtu",
			}),
		},
	}
	return buildXLSXDataset(m, ds, "eia923", pages)
}
