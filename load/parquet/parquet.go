// Package parquet publishes the final tables as columnar parquet files, one
// file per table, for the EPA CEMS scale data that outgrows SQLite.
package parquet

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/apache/arrow/go/v14/parquet"
	"github.com/apache/arrow/go/v14/parquet/pqarrow"
	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
)

// Loader writes one .parquet file per table under Dir.
type Loader struct {
	Dir string
}

var _ pudl.Loader = (*Loader)(nil)

func NewLoader(dir string) (*Loader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(err, "making output directory")
	}
	return &Loader{Dir: dir}, nil
}

func (l *Loader) Load(ctx context.Context, tables map[string]*pudl.Table) error {
	for name, t := range tables {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := filepath.Join(l.Dir, name+".parquet")
		if err := writeTable(t, path); err != nil {
			return errors.Wrapf(err, "writing %s", path)
		}
		log.Printf("parquet: wrote %s, %d rows", path, t.Len())
	}
	return nil
}

func (l *Loader) Close() error { return nil }

func writeTable(t *pudl.Table, path string) error {
	schema, err := arrowSchema(t)
	if err != nil {
		return err
	}
	rec, err := buildRecord(t, schema)
	if err != nil {
		return err
	}
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating file")
	}
	w, err := pqarrow.NewFileWriter(schema, f,
		parquet.NewWriterProperties(), pqarrow.DefaultWriterProps())
	if err != nil {
		f.Close()
		return errors.Wrap(err, "creating parquet writer")
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		return errors.Wrap(err, "writing record")
	}
	// the writer owns f and closes it
	return errors.Wrap(w.Close(), "closing parquet writer")
}

func arrowSchema(t *pudl.Table) (*arrow.Schema, error) {
	fields := make([]arrow.Field, len(t.Fields()))
	for i, f := range t.Fields() {
		var dt arrow.DataType
		switch f.(type) {
		case pudl.IntField:
			dt = arrow.PrimitiveTypes.Int64
		case pudl.FloatField:
			dt = arrow.PrimitiveTypes.Float64
		case pudl.BoolField:
			dt = arrow.FixedWidthTypes.Boolean
		case pudl.TimeField:
			dt = arrow.FixedWidthTypes.Timestamp_us
		case pudl.StringField:
			dt = arrow.BinaryTypes.String
		default:
			return nil, errors.Errorf("column %q: unsupported field type %T", f.Name(), f)
		}
		fields[i] = arrow.Field{Name: f.Name(), Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil), nil
}

func buildRecord(t *pudl.Table, schema *arrow.Schema) (arrow.Record, error) {
	b := array.NewRecordBuilder(memory.DefaultAllocator, schema)
	defer b.Release()

	for i, f := range t.Fields() {
		col, err := t.Column(f.Name())
		if err != nil {
			return nil, err
		}
		if err := appendColumn(b.Field(i), col); err != nil {
			return nil, errors.Wrapf(err, "column %q", f.Name())
		}
	}
	return b.NewRecord(), nil
}

func appendColumn(b array.Builder, col []interface{}) error {
	for _, v := range col {
		if v == nil {
			b.AppendNull()
			continue
		}
		switch bt := b.(type) {
		case *array.Int64Builder:
			iv, ok := v.(int64)
			if !ok {
				return errors.Errorf("expected int64, got %T", v)
			}
			bt.Append(iv)
		case *array.Float64Builder:
			fv, ok := v.(float64)
			if !ok {
				return errors.Errorf("expected float64, got %T", v)
			}
			bt.Append(fv)
		case *array.BooleanBuilder:
			bv, ok := v.(bool)
			if !ok {
				return errors.Errorf("expected bool, got %T", v)
			}
			bt.Append(bv)
		case *array.TimestampBuilder:
			tv, ok := v.(time.Time)
			if !ok {
				return errors.Errorf("expected time.Time, got %T", v)
			}
			bt.Append(arrow.Timestamp(tv.UnixMicro()))
		case *array.StringBuilder:
			sv, ok := v.(string)
			if !ok {
				return errors.Errorf("expected string, got %T", v)
			}
			bt.Append(sv)
		default:
			return errors.Errorf("unsupported builder type %T", b)
		}
	}
	return nil
}
