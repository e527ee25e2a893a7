// Package transform holds the shared plumbing for per-source table
// transformations. The real cleaning logic lives in the per-source
// subpackages (eia861, epacems, ferc1, eia); this package just gives them a
// common shape so the ETL runner can chain them.
package transform

import (
	"context"

	"github.com/kevinsung/pudl"
)

// Func adapts a plain function to pudl.Transformer.
type Func func(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error)

func (f Func) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	return f(ctx, tables)
}

// Chain composes transformers left to right.
type Chain []pudl.Transformer

func (c Chain) Transform(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
	var err error
	for _, t := range c {
		tables, err = t.Transform(ctx, tables)
		if err != nil {
			return nil, err
		}
	}
	return tables, nil
}

// TableFunc lifts a single-table mutation into a Transformer that applies it
// to the named table when present and passes everything else through.
func TableFunc(name string, fn func(t *pudl.Table) error) pudl.Transformer {
	return Func(func(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if t, ok := tables[name]; ok {
			if err := fn(t); err != nil {
				return nil, err
			}
		}
		return tables, nil
	})
}
