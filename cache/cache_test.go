package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

type result struct {
	Dead []string `json:"dead"`
	N    int      `json:"n"`
}

func TestStoreLoad(t *testing.T) {
	c, err := New(Options{Dir: t.TempDir(), Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	hash := ContentHash([]byte("digraph G { a -> b; }"))
	opts := Fingerprint(map[string]any{"threshold": 0, "roots": []string{"main"}})

	var got result
	if c.Load(hash, "analyze", opts, &got) {
		t.Fatal("hit on empty cache")
	}

	want := result{Dead: []string{"unusedFunction"}, N: 13}
	if err := c.Store(hash, "analyze", opts, want); err != nil {
		t.Fatal(err)
	}
	if !c.Load(hash, "analyze", opts, &got) {
		t.Fatal("miss after store")
	}
	if got.N != 13 || len(got.Dead) != 1 || got.Dead[0] != "unusedFunction" {
		t.Errorf("loaded %+v", got)
	}

	if c.Load(hash, "analyze", Fingerprint(map[string]any{"threshold": 50}), &got) {
		t.Error("different options hit the same entry")
	}
	if c.Load(ContentHash([]byte("other")), "analyze", opts, &got) {
		t.Error("different content hit the same entry")
	}

	stats := c.Stats()
	if stats.Hits != 1 || stats.Misses != 3 || stats.Writes != 1 {
		t.Errorf("stats = %+v", stats)
	}
	if rate := c.HitRate(); rate != 0.25 {
		t.Errorf("hit rate = %v", rate)
	}
	if c.Size() != 1 {
		t.Errorf("size = %d", c.Size())
	}

	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 0 {
		t.Errorf("size after clear = %d", c.Size())
	}
}

func TestTTL(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir, TTL: time.Hour, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	payload, _ := json.Marshal(result{N: 1})
	old := &Entry{Key: MakeKey("h", "op", ""), ContentHash: "h", Payload: payload, CreatedAt: time.Now().Add(-2 * time.Hour)}
	fresh := &Entry{Key: MakeKey("h2", "op", ""), ContentHash: "h2", Payload: payload}
	for _, e := range []*Entry{old, fresh} {
		if err := c.Set(e); err != nil {
			t.Fatal(err)
		}
	}

	if err := c.Cleanup(); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 1 {
		t.Errorf("size after cleanup = %d, want 1", c.Size())
	}
	if _, ok := c.Get("", fresh.Key); !ok {
		t.Error("fresh entry evicted")
	}
	if _, ok := c.Get("", old.Key); ok {
		t.Error("expired entry served")
	}
}

func TestDisabled(t *testing.T) {
	c, err := New(Options{Enabled: false})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store("h", "op", "", result{N: 1}); err != nil {
		t.Fatal(err)
	}
	var got result
	if c.Load("h", "op", "", &got) {
		t.Error("disabled cache returned a hit")
	}
	if c.Enabled() || c.Size() != 0 {
		t.Error("disabled cache reports state")
	}
}

func TestHashFiles(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.go")
	b := filepath.Join(dir, "b.go")
	for _, p := range []string{a, b} {
		if err := os.WriteFile(p, []byte("package x\n"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	h1, err := HashFiles([]string{a, b})
	if err != nil {
		t.Fatal(err)
	}
	h2, _ := HashFiles([]string{a, b})
	if h1 != h2 {
		t.Error("hash not stable")
	}

	if err := os.WriteFile(b, []byte("package x\n\nfunc f() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}
	h3, _ := HashFiles([]string{a, b})
	if h3 == h1 {
		t.Error("hash did not change with content")
	}

	if _, err := HashFiles([]string{filepath.Join(dir, "missing.go")}); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMakeKey(t *testing.T) {
	k := MakeKey("hash", "analyze", "{}")
	if len(k) != 32 {
		t.Errorf("key length = %d", len(k))
	}
	if k == MakeKey("hash", "dead_code", "{}") {
		t.Error("operation not part of key")
	}
}

func TestEviction(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir, MaxEntries: 2, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}

	// Distinct mtimes, oldest first, so eviction order does not depend on
	// filesystem timestamp resolution.
	base := time.Now().Add(-time.Hour)
	for i, name := range []string{"a", "b"} {
		if err := c.Store(name, "analyze", "", result{N: i}); err != nil {
			t.Fatal(err)
		}
		ts := base.Add(time.Duration(i) * time.Minute)
		path := filepath.Join(dir, "analyze", MakeKey(name, "analyze", "")+".json")
		if err := os.Chtimes(path, ts, ts); err != nil {
			t.Fatal(err)
		}
	}

	// A hit makes "a" the most recently used.
	var got result
	if !c.Load("a", "analyze", "", &got) {
		t.Fatal("miss on a")
	}

	if err := c.Store("c", "analyze", "", result{N: 2}); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
	if c.Load("b", "analyze", "", &got) {
		t.Error("least recently used entry survived")
	}
	if !c.Load("a", "analyze", "", &got) || !c.Load("c", "analyze", "", &got) {
		t.Error("recent entries evicted")
	}
	if c.Stats().Evictions != 1 {
		t.Errorf("evictions = %d", c.Stats().Evictions)
	}

	if err := c.Delete("analyze", MakeKey("a", "analyze", "")); err != nil {
		t.Fatal(err)
	}
	if err := c.Delete("analyze", "missing"); err != nil {
		t.Errorf("delete missing: %v", err)
	}
	if c.Size() != 1 {
		t.Errorf("size after delete = %d", c.Size())
	}
}

func TestOperationsAreSeparate(t *testing.T) {
	dir := t.TempDir()
	c, err := New(Options{Dir: dir, Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store("h", "analyze", "", result{N: 1}); err != nil {
		t.Fatal(err)
	}
	if err := c.Store("h", "symbols", "", result{N: 2}); err != nil {
		t.Fatal(err)
	}
	for _, op := range []string{"analyze", "symbols"} {
		if _, err := os.Stat(filepath.Join(dir, op)); err != nil {
			t.Errorf("%s dir: %v", op, err)
		}
	}
	var got result
	if !c.Load("h", "symbols", "", &got) || got.N != 2 {
		t.Errorf("symbols entry = %+v", got)
	}
}

func TestLoadDropsUndecodableEntry(t *testing.T) {
	c, err := New(Options{Dir: t.TempDir(), Enabled: true})
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Store("h", "analyze", "", []string{"not", "a", "result"}); err != nil {
		t.Fatal(err)
	}
	if c.Size() != 1 {
		t.Fatalf("size = %d", c.Size())
	}

	var got result
	if c.Load("h", "analyze", "", &got) {
		t.Fatal("array payload decoded into a struct")
	}
	if c.Size() != 0 {
		t.Errorf("undecodable entry kept, size = %d", c.Size())
	}
}
