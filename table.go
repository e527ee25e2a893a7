package pudl

import (
	"fmt"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Table is an in-memory column-major table. Rows are appended through the
// Fields' Normalize methods, so everything stored in a column is either nil
// or the column's canonical type.
type Table struct {
	Name string

	fields []Field
	index  map[string]int
	cols   [][]interface{}
}

func NewTable(name string, fields ...Field) *Table {
	t := &Table{
		Name:  name,
		index: make(map[string]int, len(fields)),
	}
	for _, f := range fields {
		if _, ok := t.index[f.Name()]; ok {
			panic(fmt.Sprintf("duplicate field %q in table %q", f.Name(), name))
		}
		t.index[f.Name()] = len(t.fields)
		t.fields = append(t.fields, f)
		t.cols = append(t.cols, nil)
	}
	return t
}

func (t *Table) Fields() []Field { return t.fields }

func (t *Table) Len() int {
	if len(t.cols) == 0 {
		return 0
	}
	return len(t.cols[0])
}

func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Column returns the backing slice for the named column. Callers may mutate
// values in place but must not grow the slice.
func (t *Table) Column(name string) ([]interface{}, error) {
	i, ok := t.index[name]
	if !ok {
		return nil, errors.Errorf("table %q has no column %q", t.Name, name)
	}
	return t.cols[i], nil
}

// Append normalizes row through each Field and appends it.
func (t *Table) Append(row ...interface{}) error {
	if len(row) != len(t.fields) {
		return errors.Errorf("table %q: appending %d values to %d columns", t.Name, len(row), len(t.fields))
	}
	norm := make([]interface{}, len(row))
	for i, v := range row {
		nv, err := t.fields[i].Normalize(v)
		if err != nil {
			return errors.Wrapf(err, "column %q", t.fields[i].Name())
		}
		norm[i] = nv
	}
	for i, v := range norm {
		t.cols[i] = append(t.cols[i], v)
	}
	return nil
}

// AppendMap appends a row given as a column name to value map. Columns absent
// from the map get nil; keys that aren't columns are an error.
func (t *Table) AppendMap(row map[string]interface{}) error {
	for k := range row {
		if _, ok := t.index[k]; !ok {
			return errors.Errorf("table %q has no column %q", t.Name, k)
		}
	}
	full := make([]interface{}, len(t.fields))
	for i, f := range t.fields {
		full[i] = row[f.Name()]
	}
	return t.Append(full...)
}

func (t *Table) Value(row int, col string) (interface{}, error) {
	c, err := t.Column(col)
	if err != nil {
		return nil, err
	}
	if row < 0 || row >= len(c) {
		return nil, errors.Errorf("table %q: row %d out of range", t.Name, row)
	}
	return c[row], nil
}

func (t *Table) Set(row int, col string, val interface{}) error {
	i, ok := t.index[col]
	if !ok {
		return errors.Errorf("table %q has no column %q", t.Name, col)
	}
	if row < 0 || row >= t.Len() {
		return errors.Errorf("table %q: row %d out of range", t.Name, row)
	}
	nv, err := t.fields[i].Normalize(val)
	if err != nil {
		return errors.Wrapf(err, "column %q", col)
	}
	t.cols[i][row] = nv
	return nil
}

// Row returns a copy of row i in column order.
func (t *Table) Row(i int) []interface{} {
	row := make([]interface{}, len(t.fields))
	for j := range t.fields {
		row[j] = t.cols[j][i]
	}
	return row
}

// RowMap returns row i keyed by column name. Nil values are omitted.
func (t *Table) RowMap(i int) map[string]interface{} {
	row := make(map[string]interface{}, len(t.fields))
	for j, f := range t.fields {
		if t.cols[j][i] != nil {
			row[f.Name()] = t.cols[j][i]
		}
	}
	return row
}

// AddField adds a new nil-filled column.
func (t *Table) AddField(f Field) error {
	if _, ok := t.index[f.Name()]; ok {
		return errors.Errorf("table %q already has column %q", t.Name, f.Name())
	}
	t.index[f.Name()] = len(t.fields)
	t.fields = append(t.fields, f)
	t.cols = append(t.cols, make([]interface{}, t.Len()))
	return nil
}

// DropColumn removes the named column. Dropping a column that doesn't exist
// is not an error; transforms routinely drop columns that only appear in
// some report years.
func (t *Table) DropColumn(name string) {
	i, ok := t.index[name]
	if !ok {
		return
	}
	t.fields = append(t.fields[:i], t.fields[i+1:]...)
	t.cols = append(t.cols[:i], t.cols[i+1:]...)
	delete(t.index, name)
	for n, j := range t.index {
		if j > i {
			t.index[n] = j - 1
		}
	}
}

// Filter returns a new Table containing the rows for which keep returns true.
func (t *Table) Filter(keep func(row int) bool) *Table {
	out := NewTable(t.Name, t.fields...)
	for i := 0; i < t.Len(); i++ {
		if !keep(i) {
			continue
		}
		for j := range t.fields {
			out.cols[j] = append(out.cols[j], t.cols[j][i])
		}
	}
	return out
}

// SortBy sorts rows in place by the given key columns, nils first, using a
// stable sort.
func (t *Table) SortBy(cols ...string) error {
	idxs := make([]int, len(cols))
	for i, c := range cols {
		j, ok := t.index[c]
		if !ok {
			return errors.Errorf("table %q has no column %q", t.Name, c)
		}
		idxs[i] = j
	}
	order := make([]int, t.Len())
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		for _, j := range idxs {
			va, vb := t.cols[j][order[a]], t.cols[j][order[b]]
			c := compareValues(va, vb)
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	for j := range t.cols {
		sorted := make([]interface{}, len(order))
		for i, o := range order {
			sorted[i] = t.cols[j][o]
		}
		t.cols[j] = sorted
	}
	return nil
}

func compareValues(a, b interface{}) int {
	if a == nil && b == nil {
		return 0
	}
	if a == nil {
		return -1
	}
	if b == nil {
		return 1
	}
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		if !ok {
			break
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case float64:
		bv, ok := b.(float64)
		if !ok {
			break
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case string:
		bv, ok := b.(string)
		if !ok {
			break
		}
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		}
		return 0
	case bool:
		bv, ok := b.(bool)
		if !ok {
			break
		}
		switch {
		case !av && bv:
			return -1
		case av && !bv:
			return 1
		}
		return 0
	case time.Time:
		bv, ok := b.(time.Time)
		if !ok {
			break
		}
		switch {
		case av.Before(bv):
			return -1
		case av.After(bv):
			return 1
		}
		return 0
	}
	// mixed types sort by their string form so ordering is at least total
	return compareValues(fmt.Sprint(a), fmt.Sprint(b))
}
