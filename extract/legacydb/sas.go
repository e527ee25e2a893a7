package legacydb

import (
	"bytes"
	"context"
	"io"
	"log"

	"github.com/kshedden/datareader"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// defaultSASChunk is the number of rows read per chunk from a SAS dataset.
const defaultSASChunk = 8192

// SASExtractor extracts one SAS7BDAT dataset into a canonical raw table.
type SASExtractor struct {
	TableName string
	Fields    []pudl.Field

	// ColumnMap maps SAS column names to canonical column names. Unmapped
	// columns are dropped.
	ColumnMap map[string]string

	// Content is the raw SAS7BDAT file.
	Content []byte

	// ChunkSize is rows per read. Zero means defaultSASChunk.
	ChunkSize int
}

var _ pudl.Extractor = (*SASExtractor)(nil)

func (e *SASExtractor) Extract(ctx context.Context) (map[string]*pudl.Table, error) {
	rdr, err := datareader.NewSAS7BDATReader(bytes.NewReader(e.Content))
	if err != nil {
		return nil, errors.Wrap(err, "opening sas dataset")
	}

	cols := rdr.ColumnNames()
	names := make([]string, len(cols))
	mapped := 0
	for i, c := range cols {
		canonical, ok := e.ColumnMap[c]
		if !ok {
			continue
		}
		names[i] = canonical
		mapped++
	}
	if mapped == 0 {
		return nil, errors.Errorf("%s: no mapped columns among %v", e.TableName, cols)
	}
	if mapped < len(cols) {
		log.Printf("%s: dropping %d unmapped sas columns", e.TableName, len(cols)-mapped)
	}

	chunk := e.ChunkSize
	if chunk <= 0 {
		chunk = defaultSASChunk
	}

	table := pudl.NewTable(e.TableName, e.Fields...)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, err := rdr.Read(chunk)
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "reading sas chunk")
		}
		if len(series) == 0 {
			break
		}
		if cerr := appendSeries(table, names, series); cerr != nil {
			return nil, cerr
		}
		if err == io.EOF {
			break
		}
	}
	out := map[string]*pudl.Table{e.TableName: table}
	return out, nil
}

// appendSeries transposes one chunk of column series into table rows.
func appendSeries(table *pudl.Table, names []string, series []*datareader.Series) error {
	if len(series) != len(names) {
		return errors.Errorf("got %d series for %d columns", len(series), len(names))
	}
	cols := make([][]interface{}, len(series))
	n := 0
	for i, s := range series {
		if names[i] == "" {
			continue
		}
		vals, miss, err := seriesValues(s)
		if err != nil {
			return errors.Wrapf(err, "column %s", names[i])
		}
		for j, m := range miss {
			if m {
				vals[j] = nil
			}
		}
		cols[i] = vals
		n = len(vals)
	}
	for row := 0; row < n; row++ {
		rec := make(map[string]interface{})
		for i, name := range names {
			if name == "" || cols[i][row] == nil {
				continue
			}
			rec[name] = cols[i][row]
		}
		if err := table.AppendMap(rec); err != nil {
			return errors.Wrapf(err, "row %d", row)
		}
	}
	return nil
}

func seriesValues(s *datareader.Series) ([]interface{}, []bool, error) {
	if fv, miss, err := s.AsFloat64Slice(); err == nil {
		vals := make([]interface{}, len(fv))
		for i, v := range fv {
			vals[i] = v
		}
		return vals, miss, nil
	}
	sv, miss, err := s.AsStringSlice()
	if err != nil {
		return nil, nil, err
	}
	vals := make([]interface{}, len(sv))
	for i, v := range sv {
		vals[i] = v
	}
	return vals, miss, nil
}
