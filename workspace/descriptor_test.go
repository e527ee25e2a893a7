package workspace

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"testing"
)

func testDatapackage(t *testing.T, contents map[string][]byte) []byte {
	t.Helper()
	dpkg := `{"name": "eia860", "resources": [`
	first := true
	for name, content := range contents {
		sum := md5.Sum(content)
		if !first {
			dpkg += ","
		}
		first = false
		dpkg += fmt.Sprintf(
			`{"name": %q, "path": "https://zenodo.org/record/1/files/%s", "hash": %q, "parts": {"year": 2018, "state": "tx"}}`,
			name, name, hex.EncodeToString(sum[:]))
	}
	dpkg += `]}`
	return []byte(dpkg)
}

func TestDescriptorResourcePath(t *testing.T) {
	d, err := NewDescriptor([]byte(`{"name": "eia860", "resources": [
		{"name": "f1.zip", "path": "https://example.com/path", "remote_url": "https://example.com/remote", "hash": "aa"},
		{"name": "f2.zip", "path": "https://example.com/path2", "hash": "bb"}
	]}`), "eia860", "10.5281/zenodo.4127027")
	if err != nil {
		t.Fatalf("creating descriptor: %v", err)
	}

	p, err := d.ResourcePath("f1.zip")
	if err != nil {
		t.Fatalf("getting resource path: %v", err)
	}
	if p != "https://example.com/remote" {
		t.Fatalf("expected remote_url to win, got %s", p)
	}

	p, err = d.ResourcePath("f2.zip")
	if err != nil {
		t.Fatalf("getting resource path: %v", err)
	}
	if p != "https://example.com/path2" {
		t.Fatalf("unexpected path %s", p)
	}

	if _, err := d.ResourcePath("nope.zip"); err == nil {
		t.Fatal("expected error for unknown resource")
	}
}

func TestDescriptorChecksum(t *testing.T) {
	content := []byte("some zipped up spreadsheets")
	dpkg := testDatapackage(t, map[string][]byte{"f1.zip": content})
	d, err := NewDescriptor(dpkg, "eia860", "10.5281/zenodo.4127027")
	if err != nil {
		t.Fatalf("creating descriptor: %v", err)
	}

	if err := d.ValidateChecksum("f1.zip", content); err != nil {
		t.Fatalf("validating checksum: %v", err)
	}

	err = d.ValidateChecksum("f1.zip", []byte("corrupted"))
	if err == nil {
		t.Fatal("expected checksum mismatch")
	}
	if !IsChecksumMismatch(err) {
		t.Fatalf("expected ChecksumMismatchError, got %T: %v", err, err)
	}
}

func TestDescriptorResourceFilters(t *testing.T) {
	d, err := NewDescriptor([]byte(`{"name": "epacems", "resources": [
		{"name": "a.zip", "path": "p", "hash": "aa", "parts": {"year": 2018, "state": "tx"}},
		{"name": "b.zip", "path": "p", "hash": "bb", "parts": {"year": 2018, "state": "ca"}},
		{"name": "c.zip", "path": "p", "hash": "cc", "parts": {"year": 2019, "state": "tx"}}
	]}`), "epacems", "10.5281/zenodo.4660268")
	if err != nil {
		t.Fatalf("creating descriptor: %v", err)
	}

	keys := d.Resources(map[string]string{"year": "2018"})
	if len(keys) != 2 {
		t.Fatalf("expected 2 resources for year=2018, got %d: %v", len(keys), keys)
	}

	keys = d.Resources(map[string]string{"year": "2018", "state": "tx"})
	if len(keys) != 1 || keys[0].Name != "a.zip" {
		t.Fatalf("expected just a.zip, got %v", keys)
	}

	keys = d.Resources(map[string]string{"year": "1999"})
	if len(keys) != 0 {
		t.Fatalf("expected no resources for year=1999, got %v", keys)
	}

	keys = d.Resources(nil)
	if len(keys) != 3 {
		t.Fatalf("expected all 3 resources with no filter, got %d", len(keys))
	}

	parts := d.Partitions()
	if len(parts["year"]) != 2 || parts["year"][0] != "2018" || parts["year"][1] != "2019" {
		t.Fatalf("unexpected year partitions: %v", parts["year"])
	}
	if len(parts["state"]) != 2 {
		t.Fatalf("unexpected state partitions: %v", parts["state"])
	}
}
