// Package eia861 cleans the raw EIA Form 861 tables: the annual utility
// census covering sales, service territories and balancing authority
// membership. Form 861 is the messiest of the EIA spreadsheets, so most of
// the generic cleaning helpers live here first and get borrowed by the other
// EIA transforms.
package eia861

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// CustomerClasses are the customer class suffixes EIA 861 reports wide
// columns for.
var CustomerClasses = []string{
	"commercial",
	"industrial",
	"direct_connection",
	"other",
	"residential",
	"total",
	"transportation",
}

// recognizedNERC is the set of NERC region acronyms that survive cleaning.
// Everything else becomes "UNK".
var recognizedNERC = map[string]bool{
	"BASN": true, "CALN": true, "CALS": true, "DSW": true, "ASCC": true,
	"ISONE": true, "ERCOT": true, "NORW": true, "NYISO": true, "PJM": true,
	"ROCK": true, "ECAR": true, "FRCC": true, "HICC": true, "MAAC": true,
	"MAIN": true, "MAPP": true, "MRO": true, "NPCC": true, "RFC": true,
	"SERC": true, "SPP": true, "TRE": true, "WECC": true, "WSCC": true,
	"MISO": true, "VI": true, "GU": true, "PR": true, "AS": true, "UNK": true,
}

// nercSpellcheck maps reported typos and surrogates onto real NERC regions.
var nercSpellcheck = map[string]string{
	"GUSTAVUSAK": "ASCC",
	"AK":         "ASCC",
	"HI":         "HICC",
	"ERCTO":      "ERCOT",
	"RFO":        "RFC",
	"RF":         "RFC",
	"SSP":        "SPP",
	"VACAR":      "SERC",
	"GATEWAY":    "SERC",
	"TERR":       "GU",
	"TX":         "TRE",
	"NY":         "NPCC",
	"NEW":        "NPCC",
	"YORK":       "NPCC",
}

var nercTokenRE = regexp.MustCompile(`[A-Z]+`)

// CleanNERC canonicalizes a reported NERC region string. Multi-region
// entries like "SPP & ERCOT" come back sorted and joined with "_";
// unrecognized regions become "UNK"; "SPP_UNK" collapses to "SPP".
func CleanNERC(raw interface{}) string {
	s, _ := raw.(string)
	tokens := nercTokenRE.FindAllString(strings.ToUpper(s), -1)
	if len(tokens) == 0 {
		return "UNK"
	}
	seen := make(map[string]bool)
	var regions []string
	for _, tok := range tokens {
		if fix, ok := nercSpellcheck[tok]; ok {
			tok = fix
		}
		if !recognizedNERC[tok] {
			tok = "UNK"
		}
		if !seen[tok] {
			seen[tok] = true
			regions = append(regions, tok)
		}
	}
	if len(regions) > 1 {
		for i, r := range regions {
			if r == "UNK" {
				regions = append(regions[:i], regions[i+1:]...)
				break
			}
		}
	}
	sort.Strings(regions)
	return strings.Join(regions, "_")
}

// CleanNERCColumn rewrites the named column through CleanNERC.
func CleanNERCColumn(t *pudl.Table, col string) error {
	c, err := t.Column(col)
	if err != nil {
		return err
	}
	for i, v := range c {
		c[i] = CleanNERC(v)
	}
	return nil
}

// BACodeBackfill fills missing balancing_authority_code_eia values from the
// nearest later report year with a code for the same BA ID. Codes only
// stabilized in later report years, so the fill runs backwards in time.
func BACodeBackfill(t *pudl.Table) error {
	ids, err := t.Column("balancing_authority_id_eia")
	if err != nil {
		return err
	}
	codes, err := t.Column("balancing_authority_code_eia")
	if err != nil {
		return err
	}
	years, err := t.Column("report_year")
	if err != nil {
		return err
	}

	type obs struct {
		year int64
		code string
	}
	byID := make(map[int64][]obs)
	for i := range ids {
		id, ok := ids[i].(int64)
		if !ok {
			continue
		}
		code, ok := codes[i].(string)
		if !ok {
			continue
		}
		year, ok := years[i].(int64)
		if !ok {
			continue
		}
		byID[id] = append(byID[id], obs{year, code})
	}
	for _, observed := range byID {
		sort.Slice(observed, func(a, b int) bool { return observed[a].year < observed[b].year })
	}

	missing, filled := 0, 0
	for i := range ids {
		if codes[i] != nil {
			continue
		}
		missing++
		id, ok := ids[i].(int64)
		if !ok {
			continue
		}
		year, _ := years[i].(int64)
		for _, o := range byID[id] {
			if o.year >= year {
				codes[i] = o.code
				filled++
				break
			}
		}
	}
	log.Printf("ba code backfill: filled %d of %d missing codes", filled, missing)
	return nil
}

// TidyClasses reshapes a wide table whose data columns are named
// "<class>_<value>" into a long table with one row per class. Rows with a
// nil utility_id_eia are dropped, and the "total" class rows are dropped
// unless keepTotals is set.
func TidyClasses(t *pudl.Table, idxCols, classes []string, classType string, keepTotals bool) (*pudl.Table, error) {
	// wide column name -> (class, value name)
	type wideCol struct {
		name  string
		class string
		value string
	}
	var wides []wideCol
	valueOrder := []string{}
	valueField := map[string]pudl.Field{}
	for _, f := range t.Fields() {
		for _, class := range classes {
			prefix := class + "_"
			if !strings.HasPrefix(f.Name(), prefix) {
				continue
			}
			value := strings.TrimPrefix(f.Name(), prefix)
			wides = append(wides, wideCol{f.Name(), class, value})
			if _, ok := valueField[value]; !ok {
				valueOrder = append(valueOrder, value)
				valueField[value] = renameField(f, value)
			}
			break
		}
	}
	if len(wides) == 0 {
		return nil, errors.Errorf("table %q has no class columns to tidy", t.Name)
	}

	// columns that are neither keys nor class columns ride along unchanged
	isIdx := make(map[string]bool, len(idxCols))
	for _, c := range idxCols {
		isIdx[c] = true
	}
	isWide := make(map[string]bool, len(wides))
	for _, w := range wides {
		isWide[w.name] = true
	}
	var denormCols []string
	for _, f := range t.Fields() {
		if !isIdx[f.Name()] && !isWide[f.Name()] {
			denormCols = append(denormCols, f.Name())
		}
	}

	fields := make([]pudl.Field, 0, len(idxCols)+len(denormCols)+1+len(valueOrder))
	for _, c := range idxCols {
		f, err := fieldByName(t, c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	for _, c := range denormCols {
		f, err := fieldByName(t, c)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	fields = append(fields, pudl.StringField{NameVal: classType})
	for _, v := range valueOrder {
		fields = append(fields, valueField[v])
	}
	out := pudl.NewTable(t.Name, fields...)

	utilIdx := -1
	for i, c := range idxCols {
		if c == "utility_id_eia" {
			utilIdx = i
		}
	}
	for row := 0; row < t.Len(); row++ {
		idxVals := make([]interface{}, len(idxCols))
		for i, c := range idxCols {
			v, err := t.Value(row, c)
			if err != nil {
				return nil, err
			}
			// codes only became part of the key in later years
			if c == "balancing_authority_code_eia" && v == nil {
				v = "UNK"
			}
			idxVals[i] = v
		}
		if utilIdx >= 0 && idxVals[utilIdx] == nil {
			continue
		}
		denormVals := make([]interface{}, len(denormCols))
		for i, c := range denormCols {
			v, err := t.Value(row, c)
			if err != nil {
				return nil, err
			}
			denormVals[i] = v
		}
		for _, class := range classes {
			if class == "total" && !keepTotals {
				continue
			}
			rec := make([]interface{}, 0, len(fields))
			rec = append(rec, idxVals...)
			rec = append(rec, denormVals...)
			rec = append(rec, class)
			vals := map[string]interface{}{}
			for _, w := range wides {
				if w.class != class {
					continue
				}
				v, err := t.Value(row, w.name)
				if err != nil {
					return nil, err
				}
				vals[w.value] = v
			}
			for _, v := range valueOrder {
				rec = append(rec, vals[v])
			}
			if err := out.Append(rec...); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// CheckDupes errors when any two rows share the same values in the subset
// columns.
func CheckDupes(t *pudl.Table, subset []string) error {
	seen := make(map[string]bool, t.Len())
	dupes := 0
	for row := 0; row < t.Len(); row++ {
		k, err := subsetKey(t, row, subset)
		if err != nil {
			return err
		}
		if seen[k] {
			dupes++
		}
		seen[k] = true
	}
	if dupes > 0 {
		return errors.Errorf("table %q: found %d duplicate rows on key %v", t.Name, dupes, subset)
	}
	return nil
}

// DropDupes keeps the first row for each subset key. Form 861 contains
// duplicated reports with conflicting values and no way to pick a winner.
func DropDupes(t *pudl.Table, subset []string) (*pudl.Table, error) {
	seen := make(map[string]bool, t.Len())
	var keyErr error
	out := t.Filter(func(row int) bool {
		k, err := subsetKey(t, row, subset)
		if err != nil {
			keyErr = err
			return false
		}
		if seen[k] {
			return false
		}
		seen[k] = true
		return true
	})
	if keyErr != nil {
		return nil, keyErr
	}
	if dropped := t.Len() - out.Len(); dropped > 0 {
		log.Printf("%s: dropped %d duplicate rows out of %d", t.Name, dropped, t.Len())
	}
	return out, nil
}

func subsetKey(t *pudl.Table, row int, subset []string) (string, error) {
	var b strings.Builder
	for _, c := range subset {
		v, err := t.Value(row, c)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "%v|", v)
	}
	return b.String(), nil
}

func fieldByName(t *pudl.Table, name string) (pudl.Field, error) {
	for _, f := range t.Fields() {
		if f.Name() == name {
			return f, nil
		}
	}
	return nil, errors.Errorf("table %q has no column %q", t.Name, name)
}

func renameField(f pudl.Field, name string) pudl.Field {
	switch ft := f.(type) {
	case pudl.StringField:
		return pudl.StringField{NameVal: name}
	case pudl.IntField:
		return pudl.IntField{NameVal: name, Min: ft.Min, Max: ft.Max}
	case pudl.FloatField:
		return pudl.FloatField{NameVal: name}
	case pudl.BoolField:
		return pudl.BoolField{NameVal: name}
	case pudl.TimeField:
		return pudl.TimeField{NameVal: name, Layout: ft.Layout}
	default:
		return pudl.StringField{NameVal: name}
	}
}

// Transformer runs the EIA 861 cleaning pipeline over the raw tables it
// knows about and passes everything else through untouched.
type Transformer struct{}

var _ pudl.Transformer = Transformer{}

func (Transformer) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, t := range tables {
		pudl.FixDotNATable(t)
	}
	if t, ok := tables["balancing_authority_eia861"]; ok {
		if err := transformBalancingAuthority(t); err != nil {
			return nil, errors.Wrap(err, "balancing_authority_eia861")
		}
	}
	if t, ok := tables["sales_eia861"]; ok {
		out, err := transformSales(t)
		if err != nil {
			return nil, errors.Wrap(err, "sales_eia861")
		}
		tables["sales_eia861"] = out
	}
	if t, ok := tables["service_territory_eia861"]; ok {
		if err := transformServiceTerritory(t); err != nil {
			return nil, errors.Wrap(err, "service_territory_eia861")
		}
	}
	return tables, nil
}
