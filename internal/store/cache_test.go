package store

import (
	"path/filepath"
	"testing"
	"time"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestGetMissing(t *testing.T) {
	c := openTemp(t)
	v, ok, err := c.Get("nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok || v != "" {
		t.Errorf("Get(nope) = %q, %v", v, ok)
	}
}

func TestPutOverwrites(t *testing.T) {
	c := openTemp(t)
	if err := c.Put("k", "one"); err != nil {
		t.Fatal(err)
	}
	if err := c.Put("k", "two"); err != nil {
		t.Fatal(err)
	}
	v, ok, err := c.Get("k")
	if err != nil || !ok || v != "two" {
		t.Errorf("Get(k) = %q, %v, %v; want two", v, ok, err)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Put("construction_projects_cache", `[{"id":"1"}]`); err != nil {
		t.Fatal(err)
	}
	_ = c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, ok, err := c.Get("construction_projects_cache")
	if err != nil || !ok || v != `[{"id":"1"}]` {
		t.Errorf("Get after reopen = %q, %v, %v", v, ok, err)
	}
}

func TestListAndDelete(t *testing.T) {
	c := openTemp(t)
	fixed := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	for _, k := range []string{"doc:b", "doc:a", "other"} {
		if err := c.Put(k, k); err != nil {
			t.Fatal(err)
		}
	}

	slots, err := c.List("doc:")
	if err != nil {
		t.Fatal(err)
	}
	if len(slots) != 2 || slots[0].Key != "doc:a" || slots[1].Key != "doc:b" {
		t.Fatalf("List = %+v", slots)
	}
	if !slots[0].UpdatedAt.Equal(fixed) {
		t.Errorf("UpdatedAt = %v, want %v", slots[0].UpdatedAt, fixed)
	}

	if err := c.Delete("doc:a"); err != nil {
		t.Fatal(err)
	}
	if _, ok, _ := c.Get("doc:a"); ok {
		t.Error("slot survived Delete")
	}
}

func TestCachePathHonorsXDG(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CACHE_HOME", dir)
	if got, want := CachePath(), filepath.Join(dir, "cbudget", "cache.db"); got != want {
		t.Errorf("CachePath = %q, want %q", got, want)
	}
}
