// Package xlsx extracts raw tables from Excel workbooks the way EIA
// distributes Forms 860, 861 and 923: one workbook per report year, sheet
// names and column headers drifting between years. A Page carries the
// per-year metadata needed to read one logical table out of every year's
// workbook.
package xlsx

import (
	"bytes"
	"context"
	"log"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/kevinsung/pudl"
)

// Page describes one logical table spread across yearly workbooks.
type Page struct {
	// Name of the canonical output table.
	Name string

	// Fields of the canonical output table. A report_year int column is
	// added automatically.
	Fields []pudl.Field

	// Sheet maps report year to the worksheet holding this page that year.
	Sheet map[int]string

	// SkipRows maps report year to the number of junk rows above the
	// header. Missing years default to 0.
	SkipRows map[int]int

	// Columns maps report year to that year's file-column → canonical
	// renames. Columns the map doesn't mention are dropped.
	Columns map[int]map[string]string
}

// Extractor reads one dataset's yearly workbooks into canonical raw tables.
type Extractor struct {
	Dataset   string
	Pages     []Page
	Workbooks map[int][]byte
}

var _ pudl.Extractor = (*Extractor)(nil)

func (e *Extractor) Extract(ctx context.Context) (map[string]*pudl.Table, error) {
	years := make([]int, 0, len(e.Workbooks))
	for y := range e.Workbooks {
		years = append(years, y)
	}
	sort.Ints(years)

	out := make(map[string]*pudl.Table, len(e.Pages))
	for pi := range e.Pages {
		page := &e.Pages[pi]
		fields := append([]pudl.Field{}, page.Fields...)
		if !hasField(fields, "report_year") {
			fields = append(fields, pudl.IntField{NameVal: "report_year"})
		}
		table := pudl.NewTable(page.Name, fields...)

		for _, year := range years {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			sheet, ok := page.Sheet[year]
			if !ok {
				// the page doesn't exist in this year's form
				continue
			}
			if err := e.extractSheet(table, page, year, sheet); err != nil {
				return nil, errors.Wrapf(err, "%s %d", page.Name, year)
			}
		}
		out[page.Name] = table
	}
	return out, nil
}

func (e *Extractor) extractSheet(table *pudl.Table, page *Page, year int, sheet string) error {
	f, err := excelize.OpenReader(bytes.NewReader(e.Workbooks[year]))
	if err != nil {
		return errors.Wrap(err, "opening workbook")
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return errors.Wrapf(err, "reading sheet %q", sheet)
	}
	skip := page.SkipRows[year]
	if len(rows) <= skip {
		return errors.Errorf("sheet %q has %d rows, expected header after %d", sheet, len(rows), skip)
	}
	header := rows[skip]
	colMap := page.Columns[year]
	if colMap == nil {
		return errors.Errorf("no column map for year %d", year)
	}

	// canonical name per header position, "" for dropped
	names := make([]string, len(header))
	unmapped := 0
	mapped := 0
	for i, h := range header {
		canonical, ok := colMap[strings.TrimSpace(h)]
		if !ok {
			unmapped++
			continue
		}
		names[i] = canonical
		mapped++
	}
	if mapped == 0 {
		return errors.Errorf("no mapped columns in sheet %q", sheet)
	}
	if unmapped > 0 {
		log.Printf("%s %d: dropping %d unmapped columns", page.Name, year, unmapped)
	}

	for _, row := range rows[skip+1:] {
		if isBlank(row) {
			continue
		}
		rec := make(map[string]interface{}, mapped+1)
		for i, name := range names {
			if name == "" || i >= len(row) {
				continue
			}
			v := pudl.FixDotNA(row[i])
			if v == nil {
				continue
			}
			rec[name] = v
		}
		rec["report_year"] = year
		if err := table.AppendMap(rec); err != nil {
			return err
		}
	}
	return nil
}

func hasField(fields []pudl.Field, name string) bool {
	for _, f := range fields {
		if f.Name() == name {
			return true
		}
	}
	return false
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
