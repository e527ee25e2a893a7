package workspace

import (
	"archive/zip"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func mustTempDir(t *testing.T, prefix string) string {
	t.Helper()
	d, err := ioutil.TempDir("", prefix)
	if err != nil {
		t.Fatal("getting temp dir")
	}
	t.Cleanup(func() { os.RemoveAll(d) })
	return d
}

// fakeZenodo serves a deposition with a datapackage.json and one resource.
func fakeZenodo(t *testing.T, resourceName string, content []byte) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	mux := http.NewServeMux()
	var srv *httptest.Server
	mux.HandleFunc("/deposit/depositions/4127027", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"files": [{"filename": "datapackage.json", "links": {"download": %q}}]}`,
			srv.URL+"/dpkg")
	})
	mux.HandleFunc("/dpkg", func(w http.ResponseWriter, r *http.Request) {
		sum := md5.Sum(content)
		fmt.Fprintf(w, `{"name": "eia860", "resources": [{"name": %q, "path": %q, "hash": %q, "parts": {"year": 2018}}]}`,
			resourceName, srv.URL+"/files/"+resourceName, hex.EncodeToString(sum[:]))
	})
	mux.HandleFunc("/files/"+resourceName, func(w http.ResponseWriter, r *http.Request) {
		*hits++
		w.Write(content)
	})
	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestDatastoreFetchesAndCaches(t *testing.T) {
	content := []byte("raw generator data")
	srv, hits := fakeZenodo(t, "eia860-2018.zip", content)
	cacheDir := mustTempDir(t, "pudl-datastore")

	ds := NewDatastore(
		NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)),
		OptLocalCache(cacheDir),
	)

	got, err := ds.UniqueResource("eia860", map[string]string{"year": "2018"})
	if err != nil {
		t.Fatalf("getting resource: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got wrong content: %q", got)
	}
	if *hits != 1 {
		t.Fatalf("expected 1 download, got %d", *hits)
	}

	// cached descriptor should be on disk now
	descPath := filepath.Join(cacheDir, "eia860", "10.5281-zenodo.4127027", "datapackage.json")
	if _, err := os.Stat(descPath); err != nil {
		t.Fatalf("expected cached datapackage.json at %s: %v", descPath, err)
	}

	// a second datastore against the same cache should not hit the server
	ds2 := NewDatastore(
		NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)),
		OptLocalCache(cacheDir),
	)
	got, err = ds2.UniqueResource("eia860", map[string]string{"year": "2018"})
	if err != nil {
		t.Fatalf("getting cached resource: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got wrong cached content: %q", got)
	}
	if *hits != 1 {
		t.Fatalf("expected resource served from cache, but downloads = %d", *hits)
	}
}

func TestDatastoreChecksumFailure(t *testing.T) {
	content := []byte("raw generator data")
	srv, _ := fakeZenodo(t, "eia860-2018.zip", content)
	ds := NewDatastore(NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)))

	// corrupt the cache by poisoning the descriptor's hash through a
	// pre-seeded local cache layer
	cacheDir := mustTempDir(t, "pudl-poison")
	cache := NewLocalFileCache(cacheDir)
	key := ResourceKey{"eia860", "10.5281/zenodo.4127027", "datapackage.json"}
	err := cache.Add(key, []byte(fmt.Sprintf(
		`{"name": "eia860", "resources": [{"name": "eia860-2018.zip", "path": %q, "hash": "00000000000000000000000000000000", "parts": {"year": 2018}}]}`,
		srv.URL+"/files/eia860-2018.zip")))
	if err != nil {
		t.Fatalf("seeding cache: %v", err)
	}
	ds = NewDatastore(NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)), OptCacheLayer(cache))

	_, err = ds.UniqueResource("eia860", map[string]string{"year": "2018"})
	if err == nil {
		t.Fatal("expected checksum error")
	}
	if !IsChecksumMismatch(err) {
		t.Fatalf("expected checksum mismatch, got: %v", err)
	}
}

func TestDatastoreValidateCache(t *testing.T) {
	content := []byte("raw generator data")
	srv, _ := fakeZenodo(t, "eia860-2018.zip", content)
	cacheDir := mustTempDir(t, "pudl-validate")

	ds := NewDatastore(
		NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)),
		OptLocalCache(cacheDir),
	)
	if _, err := ds.UniqueResource("eia860", nil); err != nil {
		t.Fatalf("priming cache: %v", err)
	}

	checked, removed, err := ds.ValidateCache("eia860", nil)
	if err != nil {
		t.Fatalf("validating cache: %v", err)
	}
	if checked != 1 || removed != 0 {
		t.Fatalf("expected 1 checked 0 removed, got %d/%d", checked, removed)
	}

	// corrupt the cached file and validate again
	p := filepath.Join(cacheDir, "eia860", "10.5281-zenodo.4127027", "eia860-2018.zip")
	if err := ioutil.WriteFile(p, []byte("bitrot"), 0644); err != nil {
		t.Fatalf("corrupting cache: %v", err)
	}
	checked, removed, err = ds.ValidateCache("eia860", nil)
	if err != nil {
		t.Fatalf("validating corrupted cache: %v", err)
	}
	if checked != 1 || removed != 1 {
		t.Fatalf("expected 1 checked 1 removed, got %d/%d", checked, removed)
	}
	if _, err := os.Stat(p); !os.IsNotExist(err) {
		t.Fatalf("expected corrupted file to be removed, stat err: %v", err)
	}
}

func TestDatastoreZipResource(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("data.csv")
	if err != nil {
		t.Fatalf("creating zip entry: %v", err)
	}
	if _, err := f.Write([]byte("a,b\n1,2\n")); err != nil {
		t.Fatalf("writing zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("closing zip: %v", err)
	}

	srv, _ := fakeZenodo(t, "epacems-2018-tx.zip", buf.Bytes())
	ds := NewDatastore(NewZenodoFetcher(OptFetcherAPIRoot(srv.URL)))

	zr, err := ds.ZipResource("eia860", nil)
	if err != nil {
		t.Fatalf("opening zip resource: %v", err)
	}
	if len(zr.File) != 1 || zr.File[0].Name != "data.csv" {
		t.Fatalf("unexpected zip contents: %v", zr.File)
	}
}

func TestLayeredCache(t *testing.T) {
	d1 := mustTempDir(t, "layer1")
	d2 := mustTempDir(t, "layer2")
	c := NewLayeredCache(NewLocalFileCache(d1), NewLocalFileCache(d2))
	key := ResourceKey{"ferc1", "10.5281/zenodo.4127044", "f1.dbc"}

	if c.Contains(key) {
		t.Fatal("empty cache should not contain key")
	}
	if err := c.Add(key, []byte("hello")); err != nil {
		t.Fatalf("adding to cache: %v", err)
	}
	if !c.IsOptimallyCached(key) {
		t.Fatal("expected key in first layer")
	}
	// drop from the first layer only; layered get should still find it
	if err := NewLocalFileCache(d1).Delete(key); err != nil {
		t.Fatalf("deleting from first layer: %v", err)
	}
	if c.IsOptimallyCached(key) {
		t.Fatal("key should no longer be optimally cached")
	}
	got, err := c.Get(key)
	if err != nil {
		t.Fatalf("getting from second layer: %v", err)
	}
	if string(got) != "hello" {
		t.Fatalf("got wrong content %q", got)
	}
	if err := c.Delete(key); err != nil {
		t.Fatalf("deleting from all layers: %v", err)
	}
	if c.Contains(key) {
		t.Fatal("key should be gone")
	}
}
