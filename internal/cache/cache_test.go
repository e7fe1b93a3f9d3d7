package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestKey(t *testing.T) {
	a := Key("backend", "", "claim text")
	if a != Key("backend", "", "claim text") {
		t.Error("key must be deterministic")
	}
	if a == Key("backend", "claim text", "") {
		t.Error("part boundaries must affect the key")
	}
	if len(a) != len(keyPrefix)+64 || a[:len(keyPrefix)] != keyPrefix {
		t.Errorf("unexpected key shape %s", a)
	}
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)

	value := []byte("hello")
	if err := c.Set("k", value, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value[0] = 'j'

	got, ok := c.Get("k")
	if !ok || string(got) != "hello" {
		t.Fatalf("expected stored copy, got %q %v", got, ok)
	}
	got[0] = 'y'
	if again, _ := c.Get("k"); string(again) != "hello" {
		t.Error("Get must return a copy")
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestMemoryCache_Expiry(t *testing.T) {
	c := NewMemoryCache(time.Minute, time.Minute)
	_ = c.Set("k", []byte("v"), 10*time.Millisecond)

	time.Sleep(30 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Error("expected entry to expire")
	}
}

func TestDiskCache(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "suggest")
	c := NewDiskCache(dir, time.Hour)

	key := Key("x")
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}
	if err := c.Set(key, []byte(`[1,2]`), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, ok := c.Get(key)
	if !ok || string(got) != `[1,2]` {
		t.Fatalf("unexpected value %q %v", got, ok)
	}

	// A second instance over the same dir sees the entry
	if _, ok := NewDiskCache(dir, time.Hour).Get(key); !ok {
		t.Error("entry must persist across instances")
	}

	if err := c.Delete(key); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := c.Delete(key); err != nil {
		t.Errorf("deleting a missing entry: %v", err)
	}
}

func TestDiskCache_ExpiredAndPrune(t *testing.T) {
	dir := t.TempDir()
	c := NewDiskCache(dir, time.Hour)

	_ = c.Set("old", []byte("a"), time.Millisecond)
	_ = c.Set("fresh", []byte("b"), time.Hour)
	if err := os.WriteFile(filepath.Join(dir, "junk"+diskSuffix), []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	time.Sleep(10 * time.Millisecond)

	removed, err := c.Prune()
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if removed != 2 {
		t.Errorf("expected 2 removed, got %d", removed)
	}
	if _, ok := c.Get("fresh"); !ok {
		t.Error("fresh entry must survive pruning")
	}
	if _, ok := c.Get("old"); ok {
		t.Error("expired entry must be gone")
	}
}

func TestDiskCache_PruneMissingDir(t *testing.T) {
	c := NewDiskCache(filepath.Join(t.TempDir(), "nope"), time.Hour)
	if n, err := c.Prune(); err != nil || n != 0 {
		t.Errorf("expected no-op, got %d %v", n, err)
	}
}

func TestLayeredCache_PromotesDiskHits(t *testing.T) {
	dir := t.TempDir()
	if err := NewDiskCache(dir, time.Hour).Set("k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}

	c := NewLayeredCache(time.Hour, dir, time.Hour)
	if got, ok := c.Get("k"); !ok || string(got) != "v" {
		t.Fatalf("expected disk hit, got %q %v", got, ok)
	}
	if _, ok := c.memory.Get("k"); !ok {
		t.Error("disk hit must be promoted to memory")
	}

	if err := c.Delete("k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok := c.Get("k"); ok {
		t.Error("expected miss after delete")
	}
}

func TestJSONHelpers(t *testing.T) {
	c := New(time.Hour, "")

	type item struct{ Title string }
	if err := SetJSON(c, "k", []item{{"A"}}, 0); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got []item
	if !GetJSON(c, "k", &got) || len(got) != 1 || got[0].Title != "A" {
		t.Fatalf("unexpected value %+v", got)
	}

	_ = c.Set("bad", []byte("{"), 0)
	if GetJSON(c, "bad", &got) {
		t.Error("corrupt entry must be a miss")
	}
	if _, ok := c.Get("bad"); ok {
		t.Error("corrupt entry must be deleted")
	}
}

func TestLayeredCache_Prune(t *testing.T) {
	dir := t.TempDir()
	c := New(time.Hour, dir)

	_ = c.Set("old", []byte("a"), time.Millisecond)
	_ = c.Set("fresh", []byte("b"), time.Hour)
	time.Sleep(10 * time.Millisecond)

	p, ok := c.(Pruner)
	if !ok {
		t.Fatal("layered cache must support pruning")
	}
	removed, err := p.Prune()
	if err != nil || removed != 1 {
		t.Fatalf("expected 1 removed, got %d %v", removed, err)
	}
	if _, ok := New(time.Hour, "").(Pruner); ok {
		t.Error("memory-only cache has nothing to prune")
	}
}
