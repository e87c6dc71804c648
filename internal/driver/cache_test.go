package driver

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/vmihailenco/msgpack/v5"

	"tml/internal/project"
)

func TestCachePutGet(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	key := project.HashBytes([]byte("unit"))
	want := &CachePayload{Name: "main", IR: "define void @tml_main() {\nentry:\n  ret void\n}\n"}
	if err := cache.Put(key, want); err != nil {
		t.Fatalf("Put: %v", err)
	}

	var got CachePayload
	ok, err := cache.Get(key, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatal("expected a hit after Put")
	}
	if got.Name != want.Name || got.IR != want.IR || got.HasErrors {
		t.Errorf("payload mismatch: %+v", got)
	}
}

func TestCacheMissForUnknownKey(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	var got CachePayload
	ok, err := cache.Get(project.HashBytes([]byte("never stored")), &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss for an unknown key")
	}
}

func TestCacheMissOnSchemaMismatch(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir)
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	key := project.HashBytes([]byte("unit"))

	// Write an entry with a stale schema directly at the cache path.
	stale, err := msgpack.Marshal(&CachePayload{Schema: cacheSchemaVersion + 1, Name: "old"})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	p := cache.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, stale, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got CachePayload
	ok, err := cache.Get(key, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("stale schema should read as a miss")
	}
}

func TestCacheDropAll(t *testing.T) {
	cache, err := OpenCache(t.TempDir())
	if err != nil {
		t.Fatalf("OpenCache: %v", err)
	}
	key := project.HashBytes([]byte("unit"))
	if err := cache.Put(key, &CachePayload{Name: "main", IR: "x"}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := cache.DropAll(); err != nil {
		t.Fatalf("DropAll: %v", err)
	}
	var got CachePayload
	ok, err := cache.Get(key, &got)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if ok {
		t.Fatal("expected a miss after DropAll")
	}
}

func TestNilCacheIsNoOp(t *testing.T) {
	var cache *Cache
	key := project.HashBytes([]byte("unit"))
	if err := cache.Put(key, &CachePayload{}); err != nil {
		t.Errorf("nil Put: %v", err)
	}
	var got CachePayload
	ok, err := cache.Get(key, &got)
	if err != nil || ok {
		t.Errorf("nil Get = (%v, %v), want miss", ok, err)
	}
	if err := cache.DropAll(); err != nil {
		t.Errorf("nil DropAll: %v", err)
	}
}
