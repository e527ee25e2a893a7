package workspace

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// Main contains the configuration for the datastore command, which downloads
// and caches raw dataset archives.
type Main struct {
	Dataset        string        `help:"Fetch the specified dataset only. Default is all known datasets, which may take an hour or more."`
	PudlIn         string        `help:"Directory the local datastore cache lives under."`
	Validate       bool          `help:"Validate locally cached resources against their checksums, but don't download anything."`
	Sandbox        bool          `help:"Use the Zenodo sandbox server. For testing purposes only."`
	ListPartitions bool          `help:"List available partition keys and values for each dataset."`
	Partition      []string      `help:"Only retrieve resources matching these key=value conditions."`
	Token          string        `help:"Zenodo read-only access token."`
	Timeout        time.Duration `help:"HTTP timeout for Zenodo requests."`
	S3Bucket       string        `help:"If set, also cache resources in this S3 bucket."`
	S3Region       string        `help:"AWS region for the S3 cache bucket."`
	S3Prefix       string        `help:"Key prefix inside the S3 cache bucket."`
}

// NewMain gets a new Main with the default configuration.
func NewMain() *Main {
	return &Main{
		PudlIn:   "pudl-data",
		Timeout:  15 * time.Second,
		S3Region: "us-east-1",
	}
}

// Datastore constructs the datastore described by the configuration.
func (m *Main) Datastore() (*Datastore, error) {
	fopts := []FetcherOption{OptFetcherTimeout(m.Timeout)}
	if m.Sandbox {
		fopts = append(fopts, OptFetcherSandbox())
	}
	if m.Token != "" {
		fopts = append(fopts, OptFetcherToken(m.Token))
	}
	dopts := []DatastoreOption{OptLocalCache(m.PudlIn)}
	if m.S3Bucket != "" {
		s3c, err := NewS3Cache(m.S3Bucket, OptS3Region(m.S3Region), OptS3Prefix(m.S3Prefix))
		if err != nil {
			return nil, errors.Wrap(err, "creating s3 cache")
		}
		dopts = append(dopts, OptCacheLayer(s3c))
	}
	return NewDatastore(NewZenodoFetcher(fopts...), dopts...), nil
}

// Run runs the datastore command.
func (m *Main) Run() error {
	ds, err := m.Datastore()
	if err != nil {
		return err
	}
	filters, err := parsePartition(m.Partition)
	if err != nil {
		return err
	}

	datasets := ds.KnownDatasets()
	if m.Dataset != "" {
		datasets = []string{m.Dataset}
	}

	switch {
	case m.ListPartitions:
		for _, dataset := range datasets {
			desc, err := ds.Descriptor(dataset)
			if err != nil {
				return err
			}
			doi, _ := ds.DOI(dataset)
			fmt.Printf("\npartitions for %s (%s):\n", dataset, doi)
			parts := desc.Partitions()
			if len(parts) == 0 {
				fmt.Println("  -- no known partitions --")
			}
			for key, vals := range parts {
				fmt.Printf("  %s: %s\n", key, strings.Join(vals, ", "))
			}
		}
	case m.Validate:
		for _, dataset := range datasets {
			checked, removed, err := ds.ValidateCache(dataset, filters)
			if err != nil {
				return errors.Wrapf(err, "validating %s", dataset)
			}
			log.Printf("checked %d cached resources for %s, removed %d", checked, dataset, removed)
		}
	default:
		for _, dataset := range datasets {
			err := ds.Resources(dataset,
				ResourceOptions{Filters: filters, SkipOptimallyCached: true},
				func(key ResourceKey, content []byte) error {
					log.Printf("retrieved %s", key)
					return nil
				})
			if err != nil {
				return errors.Wrapf(err, "fetching %s", dataset)
			}
		}
	}
	return nil
}

func parsePartition(kvs []string) (map[string]string, error) {
	filters := make(map[string]string)
	for _, kv := range kvs {
		for _, one := range strings.Split(kv, ",") {
			parts := strings.SplitN(one, "=", 2)
			if len(parts) != 2 {
				return nil, errors.Errorf("partition %q is not key=value", one)
			}
			filters[parts[0]] = parts[1]
		}
	}
	return filters, nil
}
