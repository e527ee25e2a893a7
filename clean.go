package pudl

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/pkg/errors"
)

// Scalar cleaning helpers shared by the per-source transforms. Agencies use
// "." and empty strings as missing-value sentinels, report dollar amounts in
// thousands, and encode booleans as Y/N. These all return cleaned values
// suitable for Table.Set / Table.Append.

// FixDotNA maps the "." and "" missing-value sentinels to nil. Other values
// pass through unchanged.
func FixDotNA(val interface{}) interface{} {
	s, ok := val.(string)
	if !ok {
		return val
	}
	if t := strings.TrimSpace(s); t == "." || t == "" {
		return nil
	}
	return val
}

// FixDotNATable applies FixDotNA to every string cell of t.
func FixDotNATable(t *Table) {
	for _, f := range t.Fields() {
		col, err := t.Column(f.Name())
		if err != nil {
			continue
		}
		for i, v := range col {
			col[i] = FixDotNA(v)
		}
	}
}

// YNBool converts the Y/N style booleans the agencies report to bool. Nil
// and bool pass through. BoolField.Normalize calls this for string values.
func YNBool(val interface{}) (interface{}, error) {
	switch vt := val.(type) {
	case nil:
		return nil, nil
	case bool:
		return vt, nil
	case string:
		switch strings.ToUpper(strings.TrimSpace(vt)) {
		case "Y", "YES", "TRUE", "T", "1":
			return true, nil
		case "N", "NO", "FALSE", "F", "0":
			return false, nil
		}
		return nil, errors.Errorf("couldn't convert %q to bool", vt)
	default:
		return nil, errors.Errorf("couldn't convert %v of %[1]T to bool", vt)
	}
}

// ThousandToOne rescales a value reported in thousands to ones.
func ThousandToOne(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	f, err := toFloat64(val)
	if err != nil {
		return nil, errors.Wrap(err, "rescaling thousands")
	}
	return f * 1000.0, nil
}

// PctToMW converts a percent-of-capacity value to MW given the capacity.
// Either input being nil yields nil.
func PctToMW(pct, capacityMW interface{}) (interface{}, error) {
	if pct == nil || capacityMW == nil {
		return nil, nil
	}
	p, err := toFloat64(pct)
	if err != nil {
		return nil, errors.Wrap(err, "percent value")
	}
	c, err := toFloat64(capacityMW)
	if err != nil {
		return nil, errors.Wrap(err, "capacity value")
	}
	return p / 100.0 * c, nil
}

// OOBToNil nulls numeric values outside [lb, ub]. Non-numeric and nil values
// pass through.
func OOBToNil(val interface{}, lb, ub float64) interface{} {
	if val == nil {
		return nil
	}
	f, err := toFloat64(val)
	if err != nil {
		return val
	}
	if f < lb || f > ub {
		return nil
	}
	return val
}

// OOBToNilColumn applies OOBToNil to a whole column in place.
func OOBToNilColumn(t *Table, col string, lb, ub float64) error {
	c, err := t.Column(col)
	if err != nil {
		return err
	}
	for i, v := range c {
		c[i] = OOBToNil(v, lb, ub)
	}
	return nil
}

// NormalizeName canonicalizes an organization or plant name for matching:
// lowercased, punctuation stripped, whitespace collapsed. "Duke Energy Corp."
// and "DUKE  ENERGY CORP" normalize identically.
func NormalizeName(name string) string {
	var b strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case !lastSpace:
			b.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(b.String())
}

// ZeroPadFIPS left-pads a county or state FIPS code to width digits.
// Spreadsheet round-trips routinely strip leading zeros from them.
func ZeroPadFIPS(val interface{}, width int) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	var s string
	switch vt := val.(type) {
	case string:
		s = strings.TrimSpace(vt)
		if s == "" {
			return nil, nil
		}
	case int64:
		s = strconv.FormatInt(vt, 10)
	case float64:
		v, err := toInt64(vt)
		if err != nil {
			return nil, errors.Wrap(err, "FIPS code")
		}
		s = strconv.FormatInt(v, 10)
	default:
		return nil, errors.Errorf("couldn't interpret %v of %[1]T as a FIPS code", vt)
	}
	if len(s) > width {
		return nil, errors.Errorf("FIPS code %q longer than %d digits", s, width)
	}
	return strings.Repeat("0", width-len(s)) + s, nil
}
