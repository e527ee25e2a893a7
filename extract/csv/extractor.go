package csv

import (
	"context"
	"io"
	"log"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Extractor assembles one canonical raw table from a RawSource of CSV files.
// File columns are renamed through ColumnMap; columns the map doesn't mention
// are dropped (with one log line per file). Constant per-file columns - the
// year and state EPA encodes in CEMS file names rather than in the data - come
// from FileColumns.
type Extractor struct {
	TableName string
	Source    RawSource

	// Fields describe the canonical columns of the output table.
	Fields []pudl.Field

	// ColumnMap maps file header names to canonical column names.
	ColumnMap map[string]string

	// FileColumns, if non-nil, returns constant column values for every
	// record of the named file.
	FileColumns func(fileName string) (map[string]interface{}, error)
}

var _ pudl.Extractor = (*Extractor)(nil)

func (e *Extractor) Extract(ctx context.Context) (map[string]*pudl.Table, error) {
	table := pudl.NewTable(e.TableName, e.Fields...)
	src := NewSource(e.Source)

	// canonical column name for each position of the current file's header,
	// "" for dropped columns
	var colNames []string
	var fileCols map[string]interface{}

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rec, err := src.Record()
		if err == io.EOF {
			break
		}
		if err == pudl.ErrSchemaChange {
			colNames, err = e.mapHeader(src)
			if err != nil {
				return nil, err
			}
			if e.FileColumns != nil {
				fileCols, err = e.FileColumns(src.FileName())
				if err != nil {
					return nil, errors.Wrapf(err, "file %s", src.FileName())
				}
			}
		} else if err != nil {
			return nil, err
		}

		row := make(map[string]interface{}, len(colNames))
		data := rec.Data()
		for i, name := range colNames {
			if name == "" || i >= len(data) || data[i] == nil {
				continue
			}
			row[name] = data[i]
		}
		for k, v := range fileCols {
			row[k] = v
		}
		if err := table.AppendMap(row); err != nil {
			return nil, errors.Wrapf(err, "file %s", src.FileName())
		}
	}
	return map[string]*pudl.Table{e.TableName: table}, nil
}

func (e *Extractor) mapHeader(src *Source) ([]string, error) {
	schema := src.Schema()
	colNames := make([]string, len(schema))
	unmapped := 0
	for i, f := range schema {
		canonical, ok := e.ColumnMap[f.Name()]
		if !ok {
			unmapped++
			continue
		}
		colNames[i] = canonical
	}
	if unmapped > 0 {
		log.Printf("%s: dropping %d unmapped columns from %s", e.TableName, unmapped, src.FileName())
	}
	mapped := 0
	for _, n := range colNames {
		if n != "" {
			mapped++
		}
	}
	if mapped == 0 {
		return nil, errors.Errorf("%s: no mapped columns in %s", e.TableName, src.FileName())
	}
	return colNames, nil
}
