package workspace

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/pkg/errors"
)

// ChecksumMismatchError is returned when a resource's content doesn't match
// the md5 recorded in its datapackage descriptor.
type ChecksumMismatchError struct {
	Key      ResourceKey
	Expected string
	Got      string
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("checksum for resource %s does not match: expected %s, got %s",
		e.Key, e.Expected, e.Got)
}

// IsChecksumMismatch reports whether err is a ChecksumMismatchError.
func IsChecksumMismatch(err error) bool {
	_, ok := errors.Cause(err).(*ChecksumMismatchError)
	return ok
}

type resourceMeta struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	RemoteURL string `json:"remote_url,omitempty"`
	Hash      string `json:"hash"`

	// Parts values are numbers for years and strings for states, so they
	// stay interface{} and all comparisons go through fmt.Sprint.
	Parts map[string]interface{} `json:"parts,omitempty"`
}

type datapackage struct {
	Name      string         `json:"name"`
	Resources []resourceMeta `json:"resources"`
}

// Descriptor provides access to one dataset's datapackage.json contents.
type Descriptor struct {
	Dataset string
	DOI     string

	pkg datapackage
	raw json.RawMessage
}

// NewDescriptor parses datapackageJSON for the given dataset/doi.
func NewDescriptor(datapackageJSON []byte, dataset, doi string) (*Descriptor, error) {
	d := &Descriptor{Dataset: dataset, DOI: doi, raw: append([]byte(nil), datapackageJSON...)}
	if err := json.Unmarshal(datapackageJSON, &d.pkg); err != nil {
		return nil, errors.Wrapf(err, "parsing datapackage.json for %s/%s", dataset, doi)
	}
	if len(d.pkg.Resources) == 0 {
		return nil, errors.Errorf("datapackage for %s/%s has no resources", dataset, doi)
	}
	for i, res := range d.pkg.Resources {
		if res.Name == "" {
			return nil, errors.Errorf("datapackage for %s/%s: resource %d has no name", dataset, doi, i)
		}
	}
	return d, nil
}

func (d *Descriptor) resource(name string) (resourceMeta, error) {
	for _, res := range d.pkg.Resources {
		if res.Name == name {
			return res, nil
		}
	}
	return resourceMeta{}, errors.Errorf("resource %s not found for %s/%s", name, d.Dataset, d.DOI)
}

// ResourcePath returns the URL holding the contents of the named resource.
// remote_url is sometimes set on the locally cached copy of the descriptor
// and takes precedence over path.
func (d *Descriptor) ResourcePath(name string) (string, error) {
	res, err := d.resource(name)
	if err != nil {
		return "", err
	}
	if res.RemoteURL != "" {
		return res.RemoteURL, nil
	}
	return res.Path, nil
}

// ValidateChecksum verifies content against the named resource's md5. The
// upstream archives record md5 hashes, so md5 it is.
func (d *Descriptor) ValidateChecksum(name string, content []byte) error {
	res, err := d.resource(name)
	if err != nil {
		return err
	}
	sum := md5.Sum(content)
	got := hex.EncodeToString(sum[:])
	if got != res.Hash {
		return &ChecksumMismatchError{
			Key:      ResourceKey{d.Dataset, d.DOI, name},
			Expected: res.Hash,
			Got:      got,
		}
	}
	return nil
}

// Resources returns keys for resources matching the filters. Filters are
// matched against the resource's parts, with both sides compared as strings,
// so year=2018 matches whether the descriptor recorded a number or a string.
func (d *Descriptor) Resources(filters map[string]string) []ResourceKey {
	var keys []ResourceKey
	for _, res := range d.pkg.Resources {
		if !matches(res, filters) {
			continue
		}
		keys = append(keys, ResourceKey{d.Dataset, d.DOI, res.Name})
	}
	return keys
}

func matches(res resourceMeta, filters map[string]string) bool {
	for k, v := range filters {
		pv, ok := res.Parts[k]
		if !ok || fmt.Sprint(pv) != v {
			return false
		}
	}
	return true
}

// Partitions returns every known partition key mapped to its sorted values.
func (d *Descriptor) Partitions() map[string][]string {
	parts := make(map[string]map[string]struct{})
	for _, res := range d.pkg.Resources {
		for k, v := range res.Parts {
			if parts[k] == nil {
				parts[k] = make(map[string]struct{})
			}
			parts[k][partString(v)] = struct{}{}
		}
	}
	out := make(map[string][]string, len(parts))
	for k, vals := range parts {
		for v := range vals {
			out[k] = append(out[k], v)
		}
		sort.Strings(out[k])
	}
	return out
}

func partString(v interface{}) string {
	return fmt.Sprint(v)
}

// JSON returns the descriptor, normalized for stable caching.
func (d *Descriptor) JSON() ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(d.raw, &v); err != nil {
		return nil, errors.Wrap(err, "normalizing datapackage.json")
	}
	return json.MarshalIndent(v, "", "    ")
}
