package workspace

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// flakyServer answers each request with the next status in statuses, then
// serves content with 200s from there on.
func flakyServer(t *testing.T, statuses []int, content []byte) (*httptest.Server, *int) {
	t.Helper()
	hits := new(int)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := *hits
		*hits++
		if n < len(statuses) {
			w.WriteHeader(statuses[n])
			return
		}
		w.Write(content)
	}))
	t.Cleanup(srv.Close)
	return srv, hits
}

func TestFetcherRetriesTransientErrors(t *testing.T) {
	content := []byte("eventually")
	srv, hits := flakyServer(t, []int{http.StatusTooManyRequests, http.StatusInternalServerError}, content)

	f := NewZenodoFetcher()
	f.backoff = time.Millisecond

	got, err := f.fetchURL(srv.URL + "/files/data.zip")
	if err != nil {
		t.Fatalf("fetching from flaky server: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Fatalf("got wrong content: %q", got)
	}
	if *hits != 3 {
		t.Fatalf("expected 3 requests, got %d", *hits)
	}
}

func TestFetcherExhaustsRetries(t *testing.T) {
	srv, hits := flakyServer(t, []int{503, 503, 503, 503, 503}, nil)

	f := NewZenodoFetcher()
	f.backoff = time.Millisecond

	_, err := f.fetchURL(srv.URL + "/files/data.zip")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !strings.Contains(err.Error(), fmt.Sprintf("after %d attempts", f.retries+1)) {
		t.Fatalf("unexpected error: %v", err)
	}
	if *hits != f.retries+1 {
		t.Fatalf("expected %d requests, got %d", f.retries+1, *hits)
	}
}

func TestFetcherDoesNotRetryClientErrors(t *testing.T) {
	srv, hits := flakyServer(t, []int{http.StatusNotFound}, nil)

	f := NewZenodoFetcher()
	f.backoff = time.Millisecond

	_, err := f.fetchURL(srv.URL + "/files/missing.zip")
	if err == nil {
		t.Fatal("expected error for 404")
	}
	if !strings.Contains(err.Error(), "status 404") {
		t.Fatalf("unexpected error: %v", err)
	}
	if *hits != 1 {
		t.Fatalf("expected a single request for a 404, got %d", *hits)
	}
}
