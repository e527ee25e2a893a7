// Package etl wires the datastore, extractors, transforms, entity resolution
// and loaders into the pudl etl command.
package etl

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"

	"github.com/kevinsung/pudl"
	"github.com/kevinsung/pudl/geocode"
	"github.com/kevinsung/pudl/glue"
	"github.com/kevinsung/pudl/load/kafka"
	"github.com/kevinsung/pudl/load/parquet"
	"github.com/kevinsung/pudl/load/sqlite"
	"github.com/kevinsung/pudl/transform"
	"github.com/kevinsung/pudl/transform/eia"
	"github.com/kevinsung/pudl/transform/epacems"
	"github.com/kevinsung/pudl/workspace"
)

// Main contains the configuration for the etl command, which processes raw
// dataset archives into analysis-ready tables.
type Main struct {
	Datasets    []string      `help:"Datasets to process. Default is all supported datasets."`
	Years       []string      `help:"Report years to process. Default is every year in each archive."`
	States      []string      `help:"States to process for epacems. Default is all states."`
	PudlIn      string        `help:"Directory the raw datastore cache lives under."`
	PudlOut     string        `help:"Directory processed outputs are written under."`
	SQLite      bool          `help:"Write processed tables to a SQLite database."`
	Parquet     bool          `help:"Write processed tables to parquet files."`
	KafkaHosts  []string      `help:"If set, also stream processed tables to these Kafka brokers."`
	TopicPrefix string        `help:"Kafka topic prefix."`
	GlueDB      string        `help:"Bolt database holding stable cross-agency ID assignments. Default is glue.db under the output directory."`
	Concurrency int           `help:"Number of datasets to process in parallel."`
	Sandbox     bool          `help:"Use the Zenodo sandbox server. For testing purposes only."`
	Token       string        `help:"Zenodo read-only access token."`
	Timeout     time.Duration `help:"HTTP timeout for Zenodo requests."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		PudlIn:      "pudl-data",
		PudlOut:     "pudl-out",
		SQLite:      true,
		TopicPrefix: "pudl-",
		Concurrency: 2,
		Timeout:     15 * time.Second,
	}
}

// datasetBuilder assembles the extractor and transform chain for one dataset.
type datasetBuilder func(m *Main, ds *workspace.Datastore) (*pudl.DatasetETL, error)

var builders = map[string]datasetBuilder{
	"eia860":  buildEIA860,
	"eia861":  buildEIA861,
	"eia923":  buildEIA923,
	"epacems": buildEPACEMS,
	"ferc1":   buildFERC1,
	"ferc714": buildFERC714,
}

// SupportedDatasets returns the sorted names of the datasets the etl command
// can process.
func SupportedDatasets() []string {
	names := make([]string, 0, len(builders))
	for name := range builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Main) selected() ([]string, error) {
	if len(m.Datasets) == 0 {
		return SupportedDatasets(), nil
	}
	seen := make(map[string]bool)
	var names []string
	for _, name := range m.Datasets {
		if _, ok := builders[name]; !ok {
			return nil, errors.Errorf("unknown dataset %q, supported: %v", name, SupportedDatasets())
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Run runs the etl command.
func (m *Main) Run() error {
	datasets, err := m.selected()
	if err != nil {
		return err
	}
	if containsString(datasets, "epacems") && !containsString(datasets, "eia860") {
		return errors.New("epacems needs plant timezones from eia860; process both")
	}

	wm := workspace.NewMain()
	wm.PudlIn = m.PudlIn
	wm.Sandbox = m.Sandbox
	wm.Token = m.Token
	wm.Timeout = m.Timeout
	ds, err := wm.Datastore()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(m.PudlOut, 0o755); err != nil {
		return errors.Wrap(err, "creating output directory")
	}

	runner, closers, err := m.buildRunner(ds, datasets)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range closers {
			if cerr := c.Close(); cerr != nil {
				log.Printf("closing: %v", cerr)
			}
		}
	}()
	return runner.Run(context.Background())
}

func (m *Main) buildRunner(ds *workspace.Datastore, datasets []string) (*pudl.Runner, []interface{ Close() error }, error) {
	runner := pudl.NewRunner()
	runner.Concurrency = m.Concurrency

	for _, name := range datasets {
		d, err := builders[name](m, ds)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "preparing %s", name)
		}
		runner.AddDataset(d)
	}

	anyEIA := containsString(datasets, "eia860") ||
		containsString(datasets, "eia861") || containsString(datasets, "eia923")
	if anyEIA {
		runner.AddFinisher(eia.NewPlantHarvester())
		runner.AddFinisher(eia.NewUtilityHarvester())
		runner.AddFinisher(plantUtilityAssociations())
	}
	if containsString(datasets, "epacems") {
		runner.AddFinisher(cemsTimestamps())
	}

	var closers []interface{ Close() error }
	if anyEIA && containsString(datasets, "ferc1") {
		path := m.GlueDB
		if path == "" {
			path = filepath.Join(m.PudlOut, "glue.db")
		}
		reg, err := glue.NewBoltRegistry(path)
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening glue registry")
		}
		closers = append(closers, reg)
		runner.AddFinisher(glue.NewGlue(reg))
	}
	if containsString(datasets, "eia860") {
		runner.AddFinisher(geocode.NewTransformer())
	}

	if m.SQLite {
		l, err := sqlite.NewLoader(filepath.Join(m.PudlOut, "pudl.sqlite"))
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening sqlite output")
		}
		l.Replace = true
		runner.AddLoader(l)
	}
	if m.Parquet {
		l, err := parquet.NewLoader(filepath.Join(m.PudlOut, "parquet"))
		if err != nil {
			return nil, nil, errors.Wrap(err, "opening parquet output")
		}
		runner.AddLoader(l)
	}
	if len(m.KafkaHosts) > 0 {
		l, err := kafka.NewLoader(m.KafkaHosts, m.TopicPrefix)
		if err != nil {
			return nil, nil, errors.Wrap(err, "connecting to kafka")
		}
		runner.AddLoader(l)
	}
	return runner, closers, nil
}

// plantUtilityAssociations collects the unique plant/utility pairs seen
// anywhere in the EIA tables.
func plantUtilityAssociations() pudl.Transformer {
	return transform.Func(func(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
		assn, err := eia.HarvestAssociations(tables, "plant_utility_assn_eia",
			[]string{"plant_id_eia", "utility_id_eia"})
		if err != nil {
			// Not every run carries tables that link plants to utilities.
			log.Printf("skipping plant/utility associations: %v", err)
			return tables, nil
		}
		tables[assn.Name] = assn
		return tables, nil
	})
}

// cemsTimestamps converts CEMS local timestamps to UTC using the plant
// timezones harvested out of EIA 860.
func cemsTimestamps() pudl.Transformer {
	return transform.Func(func(ctx context.Context, tables map[string]*pudl.Table) (map[string]*pudl.Table, error) {
		plants, ok := tables["plants_entity_eia"]
		if !ok {
			return nil, errors.New("epacems needs the plants_entity_eia table for timezones")
		}
		offsets, err := epacems.OffsetsFromPlants(plants)
		if err != nil {
			return nil, err
		}
		tr := &epacems.Transformer{Offsets: offsets}
		return tr.Transform(ctx, tables)
	})
}

// years returns the report years to process for a dataset, defaulting to
// every year partition in its archive.
func (m *Main) years(ds *workspace.Datastore, dataset string) ([]int, error) {
	vals := m.Years
	if len(vals) == 0 {
		desc, err := ds.Descriptor(dataset)
		if err != nil {
			return nil, err
		}
		vals = desc.Partitions()["year"]
		if len(vals) == 0 {
			return nil, errors.Errorf("archive for %s has no year partitions", dataset)
		}
	}
	years := make([]int, 0, len(vals))
	for _, v := range vals {
		y, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Wrapf(err, "year %q for %s", v, dataset)
		}
		years = append(years, y)
	}
	sort.Ints(years)
	return years, nil
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}
