package pudl

import (
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Field describes one column of a Table: its canonical name and how raw
// values from a Source are coerced into the column's type. Normalize is
// tolerant of the types that actually show up in government data files -
// numbers-as-strings, ints of every width, blank cells - and returns nil
// for nil so missing values flow through untouched.
type Field interface {
	Name() string
	Normalize(val interface{}) (interface{}, error)
}

type StringField struct {
	NameVal string
}

func (s StringField) Name() string { return s.NameVal }
func (s StringField) Normalize(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	switch vt := val.(type) {
	case string:
		return vt, nil
	case []byte:
		return string(vt), nil
	default:
		return "", errors.Errorf("couldn't convert %v of %[1]T to string", vt)
	}
}

type IntField struct {
	NameVal string

	// Min and Max, when set, bound valid values. Out of range is an error
	// rather than nil; nulling bad values is a transform decision, not a
	// decoding one.
	Min *int64
	Max *int64
}

func (f IntField) Name() string { return f.NameVal }
func (f IntField) Normalize(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	v, err := toInt64(val)
	if err != nil {
		return nil, err
	}
	if f.Min != nil && v < *f.Min {
		return nil, errors.Errorf("%s: %d below minimum %d", f.NameVal, v, *f.Min)
	}
	if f.Max != nil && v > *f.Max {
		return nil, errors.Errorf("%s: %d above maximum %d", f.NameVal, v, *f.Max)
	}
	return v, nil
}

type FloatField struct {
	NameVal string
}

func (f FloatField) Name() string { return f.NameVal }
func (f FloatField) Normalize(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	return toFloat64(val)
}

type BoolField struct {
	NameVal string
}

func (f BoolField) Name() string { return f.NameVal }
func (f BoolField) Normalize(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	if b, ok := val.(byte); ok {
		return b != 0, nil
	}
	return YNBool(val)
}

type TimeField struct {
	NameVal string

	// Layout used when parsing string values. Empty means "2006-01-02".
	Layout string
}

func (f TimeField) Name() string { return f.NameVal }
func (f TimeField) Normalize(val interface{}) (interface{}, error) {
	if val == nil {
		return nil, nil
	}
	switch vt := val.(type) {
	case time.Time:
		return vt, nil
	case string:
		layout := f.Layout
		if layout == "" {
			layout = "2006-01-02"
		}
		t, err := time.Parse(layout, strings.TrimSpace(vt))
		if err != nil {
			return nil, errors.Wrapf(err, "parsing %q as time", vt)
		}
		return t, nil
	default:
		return nil, errors.Errorf("couldn't convert %v of %[1]T to time", vt)
	}
}

func toInt64(val interface{}) (int64, error) {
	switch vt := val.(type) {
	case uint:
		return int64(vt), nil
	case uint8:
		return int64(vt), nil
	case uint16:
		return int64(vt), nil
	case uint32:
		return int64(vt), nil
	case uint64:
		return int64(vt), nil
	case int:
		return int64(vt), nil
	case int8:
		return int64(vt), nil
	case int16:
		return int64(vt), nil
	case int32:
		return int64(vt), nil
	case int64:
		return vt, nil
	case float64:
		if vt != float64(int64(vt)) {
			return 0, errors.Errorf("couldn't convert %v to int64 without truncation", vt)
		}
		return int64(vt), nil
	case string:
		v, err := strconv.ParseInt(strings.TrimSpace(vt), 10, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing %q as int", vt)
		}
		return v, nil
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to int64", vt)
	}
}

func toFloat64(val interface{}) (float64, error) {
	switch vt := val.(type) {
	case float32:
		return float64(vt), nil
	case float64:
		return vt, nil
	case int:
		return float64(vt), nil
	case int64:
		return float64(vt), nil
	case uint64:
		return float64(vt), nil
	case string:
		v, err := strconv.ParseFloat(strings.TrimSpace(vt), 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing %q as float", vt)
		}
		return v, nil
	default:
		return 0, errors.Errorf("couldn't convert %v of %[1]T to float64", vt)
	}
}
