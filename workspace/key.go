// Package workspace manages retrieval and caching of raw PUDL datasets.
//
// Each dataset (eia860, ferc1, epacems, ...) is archived on Zenodo under a
// DOI, with a datapackage.json describing its resources: the raw files, their
// md5 checksums, and partition labels like year and state. The Datastore
// fetches resources through a stack of cache layers (local filesystem, S3)
// and only goes to Zenodo on a miss.
package workspace

import (
	"fmt"
	"path/filepath"
	"strings"
)

// ResourceKey uniquely identifies one raw file within one versioned dataset
// archive.
type ResourceKey struct {
	Dataset string
	DOI     string
	Name    string
}

func (k ResourceKey) String() string {
	return fmt.Sprintf("%s/%s/%s", k.Dataset, k.DOI, k.Name)
}

// LocalPath is the relative filesystem path a cached copy of this resource
// lives at. DOI slashes become directory separators.
func (k ResourceKey) LocalPath() string {
	return filepath.Join(k.Dataset, strings.ReplaceAll(k.DOI, "/", "-"), k.Name)
}
