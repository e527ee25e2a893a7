// Package legacydb extracts raw tables from the legacy database formats
// agencies still distribute: FoxPro DBF files (FERC Form 1) and SAS7BDAT
// datasets.
package legacydb

import (
	"context"
	"log"
	"strings"

	"github.com/LindsayBradford/go-dbf/godbf"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// DBFTable binds one DBF file to its canonical output table.
type DBFTable struct {
	// Name of the canonical output table.
	Name string

	// Fields of the canonical output table.
	Fields []pudl.Field

	// ColumnMap maps DBF field names (historically uppercase, 10 chars max)
	// to canonical column names. Unmapped fields are dropped.
	ColumnMap map[string]string

	// Content is the raw DBF file.
	Content []byte
}

// DBFExtractor extracts a set of DBF files into canonical raw tables.
type DBFExtractor struct {
	Dataset string
	Tables  []DBFTable

	// Encoding of character fields in the DBF files. Empty means UTF8.
	Encoding string
}

var _ pudl.Extractor = (*DBFExtractor)(nil)

func (e *DBFExtractor) Extract(ctx context.Context) (map[string]*pudl.Table, error) {
	encoding := e.Encoding
	if encoding == "" {
		encoding = "UTF8"
	}
	out := make(map[string]*pudl.Table, len(e.Tables))
	for i := range e.Tables {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		spec := &e.Tables[i]
		table, err := extractDBF(spec, encoding)
		if err != nil {
			return nil, errors.Wrapf(err, "table %s", spec.Name)
		}
		out[spec.Name] = table
	}
	return out, nil
}

func extractDBF(spec *DBFTable, encoding string) (*pudl.Table, error) {
	dbf, err := godbf.NewFromByteArray(spec.Content, encoding)
	if err != nil {
		return nil, errors.Wrap(err, "parsing dbf")
	}

	fileFields := dbf.FieldNames()
	names := make([]string, len(fileFields))
	mapped := 0
	for i, ff := range fileFields {
		canonical, ok := spec.ColumnMap[ff]
		if !ok {
			continue
		}
		names[i] = canonical
		mapped++
	}
	if mapped == 0 {
		return nil, errors.Errorf("no mapped fields among %v", fileFields)
	}
	if mapped < len(fileFields) {
		log.Printf("%s: dropping %d unmapped dbf fields", spec.Name, len(fileFields)-mapped)
	}

	table := pudl.NewTable(spec.Name, spec.Fields...)
	for row := 0; row < dbf.NumberOfRecords(); row++ {
		rec := make(map[string]interface{}, mapped)
		for i, name := range names {
			if name == "" {
				continue
			}
			v, err := dbf.FieldValueByName(row, fileFields[i])
			if err != nil {
				return nil, errors.Wrapf(err, "row %d field %s", row, fileFields[i])
			}
			// DBF pads character fields with spaces
			if v = strings.TrimSpace(v); v != "" {
				rec[name] = v
			}
		}
		if len(rec) == 0 {
			continue
		}
		if err := table.AppendMap(rec); err != nil {
			return nil, errors.Wrapf(err, "row %d", row)
		}
	}
	return table, nil
}
