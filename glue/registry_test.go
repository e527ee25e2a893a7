package glue

import (
	"path/filepath"
	"testing"
)

func testRegistryRoundTrip(t *testing.T, open func() (Registry, error)) {
	t.Helper()
	reg, err := open()
	if err != nil {
		t.Fatalf("couldn't open registry: %v", err)
	}

	id1, err := reg.ID("plant", "eia/3")
	if err != nil {
		t.Fatalf("couldn't get id for eia/3: %v", err)
	}
	id2, err := reg.ID("plant", "eia/7")
	if err != nil {
		t.Fatalf("couldn't get id for eia/7: %v", err)
	}
	if id1 == id2 {
		t.Fatalf("distinct keys mapped to same id %d", id1)
	}
	// same key in another category is independent
	id3, err := reg.ID("utility", "eia/3")
	if err != nil {
		t.Fatalf("couldn't get id in new category: %v", err)
	}
	if id3 != 1 {
		t.Fatalf("expected fresh category to start at 1, got %d", id3)
	}

	key, err := reg.Key("plant", id1)
	if err != nil {
		t.Fatalf("couldn't get key for id %d: %v", id1, err)
	}
	if key != "eia/3" {
		t.Fatalf("expected key eia/3, got %q", key)
	}

	if err := reg.Close(); err != nil {
		t.Fatalf("closing registry: %v", err)
	}

	// reopen: same keys keep their ids, new keys keep going up
	reg, err = open()
	if err != nil {
		t.Fatalf("couldn't reopen registry: %v", err)
	}
	defer reg.Close()

	id1again, err := reg.ID("plant", "eia/3")
	if err != nil {
		t.Fatalf("couldn't get id again for eia/3: %v", err)
	}
	if id1again != id1 {
		t.Fatalf("id changed across reopen: %d != %d", id1again, id1)
	}
	idNew, err := reg.ID("plant", "eia/9")
	if err != nil {
		t.Fatalf("couldn't get id for eia/9: %v", err)
	}
	if idNew <= id2 {
		t.Fatalf("new id %d not above existing ids", idNew)
	}
}

func TestBoltRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "glue.db")
	testRegistryRoundTrip(t, func() (Registry, error) {
		return NewBoltRegistry(path)
	})
}

func TestLevelRegistry(t *testing.T) {
	dir := t.TempDir()
	testRegistryRoundTrip(t, func() (Registry, error) {
		return NewLevelRegistry(dir, "plant")
	})
}

func TestBoltRegistryUnknownLookups(t *testing.T) {
	reg, err := NewBoltRegistry(filepath.Join(t.TempDir(), "glue.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer reg.Close()
	if _, err := reg.Key("nope", 1); err == nil {
		t.Fatal("expected error for unknown category")
	}
	if _, err := reg.ID("plant", "eia/3"); err != nil {
		t.Fatal(err)
	}
	if _, err := reg.Key("plant", 99); err == nil {
		t.Fatal("expected error for unknown id")
	}
}
