package etl

import (
	"archive/zip"
	"bytes"
	"context"
	"path"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
	"github.com/kevinsung/pudl/extract/csv"
	"github.com/kevinsung/pudl/extract/legacydb"
	"github.com/kevinsung/pudl/transform/ferc1"
	"github.com/kevinsung/pudl/workspace"
)

// FERC Form 1 arrives as a zipped FoxPro database. Each year's archive holds
// the full respondent roster, so only the most recent selected year is read.
func buildFERC1(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	years, err := m.years(ds, "ferc1")
	if err != nil {
		return nil, err
	}
	year := years[len(years)-1]

	zr, err := ds.ZipResource("ferc1", map[string]string{"year": strconv.Itoa(year)})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching ferc1 %d", year)
	}
	content, err := zipMember(zr, "F1_1.DBF")
	if err != nil {
		return nil, errors.Wrapf(err, "ferc1 %d", year)
	}

	ext := &legacydb.DBFExtractor{
		Dataset: "ferc1",
		// FERC's FoxPro exports use codepage 1252
		Encoding: "CP1252",
		Tables: []legacydb.DBFTable{{
			Name: ferc1.RespondentTable,
			Fields: []pudl.Field{
				pudl.IntField{NameVal: "respondent_id_ferc1"},
				pudl.StringField{NameVal: "respondent_name_ferc1"},
				pudl.StringField{NameVal: "respondent_code_ferc1"},
			},
			ColumnMap: map[string]string{
				"RESPONDENT": "respondent_id_ferc1",
				"RESP_NAME":  "respondent_name_ferc1",
				"RESP_CODE":  "respondent_code_ferc1",
			},
			Content: content,
		}},
	}
	return &pudl.DatasetETL{
		Dataset:      "ferc1",
		Extractor:    ext,
		Transformers: []pudl.Transformer{ferc1.Transformer{}},
	}, nil
}

// FERC Form 714 is a single zip of CSVs covering all years.
func buildFERC714(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error) {
	zr, err := ds.ZipResource("ferc714", nil)
	if err != nil {
		return nil, errors.Wrap(err, "fetching ferc714")
	}

	respondents, err := zipMember(zr, "Respondent IDs.csv")
	if err != nil {
		return nil, errors.Wrap(err, "ferc714")
	}
	respondentExt := &csv.Extractor{
		TableName: "respondent_id_ferc714",
		Source:    csv.NewBytesSource().Add("Respondent IDs.csv", respondents),
		Fields: []pudl.Field{
			pudl.IntField{NameVal: "respondent_id_ferc714"},
			pudl.StringField{NameVal: "respondent_name_ferc714"},
			pudl.IntField{NameVal: "eia_code"},
		},
		ColumnMap: map[string]string{
			"respondent_id":   "respondent_id_ferc714",
			"respondent_name": "respondent_name_ferc714",
			"eia_code":        "eia_code",
		},
	}

	demand, err := zipMember(zr, "Part 3 Schedule 2 - Planning Area Hourly Demand.csv")
	if err != nil {
		return nil, errors.Wrap(err, "ferc714")
	}
	demandFields := []pudl.Field{
		pudl.IntField{NameVal: "respondent_id_ferc714"},
		pudl.IntField{NameVal: "report_year"},
		pudl.StringField{NameVal: "plan_date"},
		pudl.StringField{NameVal: "timezone"},
	}
	demandCols := map[string]string{
		"respondent_id": "respondent_id_ferc714",
		"report_yr":     "report_year",
		"plan_date":     "plan_date",
		"timezone":      "timezone",
	}
	for h := 1; h <= 24; h++ {
		col := "hour" + strconv.Itoa(h)
		demandCols[col] = col
		demandFields = append(demandFields, pudl.FloatField{NameVal: col})
	}
	demandExt := &csv.Extractor{
		TableName: "demand_hourly_pa_ferc714",
		Source:    csv.NewBytesSource().Add("demand.csv", demand),
		Fields:    demandFields,
		ColumnMap: demandCols,
	}

	return &pudl.DatasetETL{
		Dataset:   "ferc714",
		Extractor: multiExtractor{respondentExt, demandExt},
	}, nil
}

// multiExtractor merges the outputs of several extractors for one dataset.
type multiExtractor []pudl.Extractor

func (me multiExtractor) Extract(ctx context.Context) (map[string]*pudl.Table, error) {
	merged := make(map[string]*pudl.Table)
	for _, e := range me {
		tables, err := e.Extract(ctx)
		if err != nil {
			return nil, err
		}
		for name, t := range tables {
			if _, ok := merged[name]; ok {
				return nil, errors.Errorf("duplicate table %q", name)
			}
			merged[name] = t
		}
	}
	return merged, nil
}

// zipMember returns the content of the named file inside a zip archive.
// Matching ignores case and directory prefixes.
func zipMember(zr *zip.Reader, name string) ([]byte, error) {
	for _, zf := range zr.File {
		if !strings.EqualFold(path.Base(zf.Name), name) {
			continue
		}
		rc, err := zf.Open()
		if err != nil {
			return nil, errors.Wrapf(err, "opening %s", zf.Name)
		}
		defer rc.Close()
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			return nil, errors.Wrapf(err, "reading %s", zf.Name)
		}
		return buf.Bytes(), nil
	}
	return nil, errors.Errorf("archive has no member %q", name)
}
