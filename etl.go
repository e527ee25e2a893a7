package pudl

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// Extractor reads one dataset's raw files and returns raw tables keyed by
// table name.
type Extractor interface {
	Extract(ctx context.Context) (map[string]*Table, error)
}

// Transformer turns one set of tables into another. Implementations should
// treat their input as disposable; they may mutate tables in place.
type Transformer interface {
	Transform(ctx context.Context, tables map[string]*Table) (map[string]*Table, error)
}

// Loader writes final tables to some output target.
type Loader interface {
	Load(ctx context.Context, tables map[string]*Table) error
	Close() error
}

// DatasetETL binds one dataset to its extractor and transform chain.
type DatasetETL struct {
	Dataset      string
	Extractor    Extractor
	Transformers []Transformer
}

// Runner executes a set of DatasetETLs with bounded concurrency, merges their
// outputs, runs cross-source finishing steps (entity resolution, enrichment),
// and hands the result to each Loader.
type Runner struct {
	Concurrency int

	datasets  []*DatasetETL
	finishers []Transformer
	loaders   []Loader
}

func NewRunner() *Runner {
	return &Runner{Concurrency: 1}
}

func (r *Runner) AddDataset(d *DatasetETL)  { r.datasets = append(r.datasets, d) }
func (r *Runner) AddFinisher(t Transformer) { r.finishers = append(r.finishers, t) }
func (r *Runner) AddLoader(l Loader)        { r.loaders = append(r.loaders, l) }

// Run executes the whole pipeline. Table names must be unique across
// datasets; a collision is an error rather than a silent overwrite.
func (r *Runner) Run(ctx context.Context) error {
	runID := uuid.New().String()
	start := time.Now()
	log.Printf("etl run %s: %d datasets, concurrency %d", runID, len(r.datasets), r.Concurrency)

	work := make(chan *DatasetETL)
	merged := make(map[string]*Table)
	var mu sync.Mutex

	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer close(work)
		for _, d := range r.datasets {
			select {
			case work <- d:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	for c := 0; c < r.Concurrency; c++ {
		eg.Go(func() error {
			for d := range work {
				tables, err := r.runDataset(ctx, d)
				if err != nil {
					return errors.Wrapf(err, "dataset %s", d.Dataset)
				}
				mu.Lock()
				for name, tbl := range tables {
					if _, ok := merged[name]; ok {
						mu.Unlock()
						return errors.Errorf("dataset %s: duplicate output table %q", d.Dataset, name)
					}
					merged[name] = tbl
				}
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return err
	}

	var err error
	for _, f := range r.finishers {
		merged, err = f.Transform(ctx, merged)
		if err != nil {
			return errors.Wrap(err, "finishing")
		}
	}

	for _, l := range r.loaders {
		if err := l.Load(ctx, merged); err != nil {
			return errors.Wrap(err, "loading")
		}
	}
	for _, l := range r.loaders {
		if err := l.Close(); err != nil {
			return errors.Wrap(err, "closing loader")
		}
	}

	log.Printf("etl run %s: done in %s, %d tables", runID, time.Since(start), len(merged))
	return nil
}

func (r *Runner) runDataset(ctx context.Context, d *DatasetETL) (map[string]*Table, error) {
	start := time.Now()
	tables, err := d.Extractor.Extract(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "extracting")
	}
	for _, t := range d.Transformers {
		tables, err = t.Transform(ctx, tables)
		if err != nil {
			return nil, errors.Wrap(err, "transforming")
		}
	}
	log.Printf("dataset %s: %d tables in %s", d.Dataset, len(tables), time.Since(start))
	return tables, nil
}
