package workspace

import (
	"archive/zip"
	"bytes"
	"log"

	"github.com/pkg/errors"
)

// Datastore handles retrieval of raw dataset resources, going to the cache
// first and Zenodo on a miss.
type Datastore struct {
	fetcher *ZenodoFetcher
	cache   *LayeredCache

	descriptors map[string]*Descriptor
}

// DatastoreOption is a functional option type for Datastore.
type DatastoreOption func(d *Datastore)

// OptLocalCache adds a local filesystem cache layer rooted at dir.
func OptLocalCache(dir string) DatastoreOption {
	return func(d *Datastore) {
		d.cache.AddLayer(NewLocalFileCache(dir))
	}
}

// OptCacheLayer adds an arbitrary cache layer (e.g. an S3Cache).
func OptCacheLayer(l CacheLayer) DatastoreOption {
	return func(d *Datastore) {
		d.cache.AddLayer(l)
	}
}

// NewDatastore returns a Datastore using the given fetcher with the options
// applied.
func NewDatastore(fetcher *ZenodoFetcher, opts ...DatastoreOption) *Datastore {
	d := &Datastore{
		fetcher:     fetcher,
		cache:       NewLayeredCache(),
		descriptors: make(map[string]*Descriptor),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// KnownDatasets returns the sorted list of supported datasets.
func (d *Datastore) KnownDatasets() []string { return d.fetcher.KnownDatasets() }

// DOI returns the archive DOI for a dataset.
func (d *Datastore) DOI(dataset string) (string, error) { return d.fetcher.DOI(dataset) }

// Descriptor returns the datapackage descriptor for a dataset, from cache
// when possible. The descriptor itself is cached under the resource name
// datapackage.json.
func (d *Datastore) Descriptor(dataset string) (*Descriptor, error) {
	doi, err := d.fetcher.DOI(dataset)
	if err != nil {
		return nil, err
	}
	if desc, ok := d.descriptors[doi]; ok {
		return desc, nil
	}
	key := ResourceKey{dataset, doi, "datapackage.json"}
	if d.cache.Contains(key) {
		content, err := d.cache.Get(key)
		if err != nil {
			return nil, err
		}
		desc, err := NewDescriptor(content, dataset, doi)
		if err != nil {
			return nil, err
		}
		d.descriptors[doi] = desc
		return desc, nil
	}
	desc, err := d.fetcher.Descriptor(dataset)
	if err != nil {
		return nil, err
	}
	d.descriptors[doi] = desc
	content, err := desc.JSON()
	if err != nil {
		return nil, err
	}
	if err := d.cache.Add(key, content); err != nil {
		return nil, err
	}
	return desc, nil
}

// ResourceOptions modify how Resources iterates.
type ResourceOptions struct {
	// Filters restrict iteration to resources whose parts match.
	Filters map[string]string
	// CachedOnly skips resources that aren't already cached.
	CachedOnly bool
	// SkipOptimallyCached skips resources the fastest cache layer already
	// holds. Used when prefetching.
	SkipOptimallyCached bool
}

// Resources calls fn with the key and content of each matching resource.
// Fetched resources are added to the cache on the way through.
func (d *Datastore) Resources(dataset string, opts ResourceOptions, fn func(key ResourceKey, content []byte) error) error {
	desc, err := d.Descriptor(dataset)
	if err != nil {
		return err
	}
	for _, key := range desc.Resources(opts.Filters) {
		if opts.SkipOptimallyCached && d.cache.IsOptimallyCached(key) {
			continue
		}
		var content []byte
		switch {
		case d.cache.Contains(key):
			content, err = d.cache.Get(key)
			if err != nil {
				return err
			}
		case opts.CachedOnly:
			continue
		default:
			content, err = d.fetcher.Resource(key)
			if err != nil {
				return err
			}
			if err := desc.ValidateChecksum(key.Name, content); err != nil {
				return err
			}
			if err := d.cache.Add(key, content); err != nil {
				return err
			}
		}
		if err := fn(key, content); err != nil {
			return err
		}
	}
	return nil
}

// UniqueResource returns the content of the resource matching the filters,
// erroring unless there is exactly one match.
func (d *Datastore) UniqueResource(dataset string, filters map[string]string) ([]byte, error) {
	var content []byte
	n := 0
	err := d.Resources(dataset, ResourceOptions{Filters: filters}, func(key ResourceKey, c []byte) error {
		n++
		content = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	switch n {
	case 0:
		return nil, errors.Errorf("no resources found for %s: %v", dataset, filters)
	case 1:
		return content, nil
	default:
		return nil, errors.Errorf("multiple resources found for %s: %v", dataset, filters)
	}
}

// ZipResource retrieves a unique resource and opens it as a zip archive.
func (d *Datastore) ZipResource(dataset string, filters map[string]string) (*zip.Reader, error) {
	content, err := d.UniqueResource(dataset, filters)
	if err != nil {
		return nil, err
	}
	zr, err := zip.NewReader(bytes.NewReader(content), int64(len(content)))
	return zr, errors.Wrapf(err, "opening %s resource as zip", dataset)
}

// RemoveFromCache drops a resource from every cache layer.
func (d *Datastore) RemoveFromCache(key ResourceKey) error {
	return d.cache.Delete(key)
}

// ValidateCache checks every cached resource of a dataset against its
// recorded checksum, removing the ones that fail. Returns checked and removed
// counts.
func (d *Datastore) ValidateCache(dataset string, filters map[string]string) (checked, removed int, err error) {
	desc, err := d.Descriptor(dataset)
	if err != nil {
		return 0, 0, err
	}
	err = d.Resources(dataset, ResourceOptions{Filters: filters, CachedOnly: true},
		func(key ResourceKey, content []byte) error {
			checked++
			if cerr := desc.ValidateChecksum(key.Name, content); cerr != nil {
				if !IsChecksumMismatch(cerr) {
					return cerr
				}
				log.Printf("resource %s has invalid checksum, removing from cache", key)
				removed++
				return d.cache.Delete(key)
			}
			return nil
		})
	return checked, removed, err
}
