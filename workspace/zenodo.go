package workspace

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/url"
	"regexp"
	"sort"
	"time"

	"github.com/pkg/errors"
)

var productionDOIs = map[string]string{
	"censusdp1tract": "10.5281/zenodo.4127049",
	"eia860":         "10.5281/zenodo.4127027",
	"eia860m":        "10.5281/zenodo.4540268",
	"eia861":         "10.5281/zenodo.4127029",
	"eia923":         "10.5281/zenodo.4127040",
	"epacems":        "10.5281/zenodo.4660268",
	"ferc1":          "10.5281/zenodo.4127044",
	"ferc714":        "10.5281/zenodo.4127101",
}

var sandboxDOIs = map[string]string{
	"censusdp1tract": "10.5072/zenodo.674992",
	"eia860":         "10.5072/zenodo.672210",
	"eia860m":        "10.5072/zenodo.692655",
	"eia861":         "10.5072/zenodo.687052",
	"eia923":         "10.5072/zenodo.687071",
	"epacems":        "10.5072/zenodo.672963",
	"ferc1":          "10.5072/zenodo.687072",
	"ferc714":        "10.5072/zenodo.672224",
}

const (
	productionAPIRoot = "https://zenodo.org/api"
	sandboxAPIRoot    = "https://sandbox.zenodo.org/api"
)

var doiRE = regexp.MustCompile(`zenodo\.([\d]+)`)

// FetcherOption is a functional option for ZenodoFetcher.
type FetcherOption func(f *ZenodoFetcher)

// OptFetcherSandbox points the fetcher at the Zenodo sandbox server and its
// DOIs. For testing purposes only.
func OptFetcherSandbox() FetcherOption {
	return func(f *ZenodoFetcher) {
		f.apiRoot = sandboxAPIRoot
		f.dois = sandboxDOIs
	}
}

// OptFetcherToken sets a Zenodo access token to send with each request. The
// token should be read-only.
func OptFetcherToken(token string) FetcherOption {
	return func(f *ZenodoFetcher) {
		f.token = token
	}
}

// OptFetcherTimeout sets the per-request HTTP timeout.
func OptFetcherTimeout(timeout time.Duration) FetcherOption {
	return func(f *ZenodoFetcher) {
		f.client.Timeout = timeout
	}
}

// OptFetcherAPIRoot overrides the API root. Used in tests to point at a local
// server.
func OptFetcherAPIRoot(root string) FetcherOption {
	return func(f *ZenodoFetcher) {
		f.apiRoot = root
	}
}

// ZenodoFetcher fetches datapackage descriptors and resource contents from
// Zenodo.
type ZenodoFetcher struct {
	apiRoot string
	token   string
	dois    map[string]string

	client      *http.Client
	retries     int
	backoff     time.Duration
	descriptors map[string]*Descriptor
}

// NewZenodoFetcher returns a fetcher for the production Zenodo archives with
// the options applied.
func NewZenodoFetcher(opts ...FetcherOption) *ZenodoFetcher {
	f := &ZenodoFetcher{
		apiRoot:     productionAPIRoot,
		dois:        productionDOIs,
		client:      &http.Client{Timeout: 15 * time.Second},
		retries:     3,
		backoff:     time.Second,
		descriptors: make(map[string]*Descriptor),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// KnownDatasets returns the sorted list of datasets this fetcher can serve.
func (f *ZenodoFetcher) KnownDatasets() []string {
	return sortedKeys(f.dois)
}

// DOI returns the archive DOI for the given dataset.
func (f *ZenodoFetcher) DOI(dataset string) (string, error) {
	doi, ok := f.dois[dataset]
	if !ok {
		return "", errors.Errorf("no doi found for dataset %s", dataset)
	}
	return doi, nil
}

// doiToURL returns the deposition URL holding the datapackage for a DOI.
func (f *ZenodoFetcher) doiToURL(doi string) (string, error) {
	m := doiRE.FindStringSubmatch(doi)
	if m == nil {
		return "", errors.Errorf("invalid doi %s", doi)
	}
	return f.apiRoot + "/deposit/depositions/" + m[1], nil
}

func (f *ZenodoFetcher) fetchURL(rawurl string) ([]byte, error) {
	u, err := url.Parse(rawurl)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing url %s", rawurl)
	}
	if f.token != "" {
		q := u.Query()
		q.Set("access_token", f.token)
		u.RawQuery = q.Encode()
	}
	log.Printf("retrieving %s from zenodo", rawurl)

	backoff := f.backoff
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			time.Sleep(backoff)
			backoff *= 2
		}
		resp, err := f.client.Get(u.String())
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		switch {
		case resp.StatusCode == http.StatusOK:
			return body, nil
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = errors.Errorf("status %d from %s", resp.StatusCode, rawurl)
			continue
		default:
			return nil, errors.Errorf("could not download %s: status %d", rawurl, resp.StatusCode)
		}
	}
	return nil, errors.Wrapf(lastErr, "could not download %s after %d attempts", rawurl, f.retries+1)
}

type depositionFile struct {
	Filename string `json:"filename"`
	Links    struct {
		Download string `json:"download"`
	} `json:"links"`
}

type deposition struct {
	Files []depositionFile `json:"files"`
}

// Descriptor fetches (and caches) the datapackage descriptor for a dataset.
func (f *ZenodoFetcher) Descriptor(dataset string) (*Descriptor, error) {
	doi, err := f.DOI(dataset)
	if err != nil {
		return nil, err
	}
	if d, ok := f.descriptors[doi]; ok {
		return d, nil
	}
	depURL, err := f.doiToURL(doi)
	if err != nil {
		return nil, err
	}
	body, err := f.fetchURL(depURL)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching deposition for %s", dataset)
	}
	var dep deposition
	if err := json.Unmarshal(body, &dep); err != nil {
		return nil, errors.Wrapf(err, "parsing deposition for %s", dataset)
	}
	for _, file := range dep.Files {
		if file.Filename != "datapackage.json" {
			continue
		}
		dpkg, err := f.fetchURL(file.Links.Download)
		if err != nil {
			return nil, errors.Wrapf(err, "fetching datapackage.json for %s", dataset)
		}
		d, err := NewDescriptor(dpkg, dataset, doi)
		if err != nil {
			return nil, err
		}
		f.descriptors[doi] = d
		return d, nil
	}
	return nil, errors.Errorf("zenodo deposition for %s/%s does not contain datapackage.json", dataset, doi)
}

// Resource retrieves and checksum-validates the contents of one resource.
func (f *ZenodoFetcher) Resource(key ResourceKey) ([]byte, error) {
	desc, err := f.Descriptor(key.Dataset)
	if err != nil {
		return nil, err
	}
	path, err := desc.ResourcePath(key.Name)
	if err != nil {
		return nil, err
	}
	content, err := f.fetchURL(path)
	if err != nil {
		return nil, err
	}
	if err := desc.ValidateChecksum(key.Name, content); err != nil {
		return nil, err
	}
	return content, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
