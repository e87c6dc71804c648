package driver

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"tml/internal/project"
)

// cacheSchemaVersion is bumped when CachePayload changes shape; older
// entries then read as misses.
const cacheSchemaVersion uint16 = 1

// CachePayload is one cached compilation artifact: the emitted module text
// for a unit, keyed by its input digest.
type CachePayload struct {
	Schema    uint16
	Name      string
	IR        string
	HasErrors bool
}

// Cache stores emitted module text on disk keyed by input digest.
// Thread-safe for concurrent access; a nil *Cache is a no-op.
type Cache struct {
	mu  sync.RWMutex
	dir string
}

// OpenCache initializes a disk cache rooted at dir.
func OpenCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Cache{dir: dir}, nil
}

// OpenUserCache initializes a disk cache at the user-level standard
// location, for invocations outside any project.
func OpenUserCache(app string) (*Cache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenCache(filepath.Join(base, app))
}

func (c *Cache) pathFor(key project.Digest) string {
	// The "ir" subdirectory keeps artifacts easy to inspect and wipe.
	return filepath.Join(c.dir, "ir", key.Hex()+".mp")
}

// Put serializes and writes a payload, replacing any previous entry
// atomically.
func (c *Cache) Put(key project.Digest, payload *CachePayload) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	payload.Schema = cacheSchemaVersion
	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(f.Name()) }()

	enc := msgpack.NewEncoder(f)
	if err := enc.Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(f.Name(), p)
}

// Get reads a payload by digest. A missing entry, an unreadable entry or a
// schema mismatch all report a plain miss.
func (c *Cache) Get(key project.Digest, out *CachePayload) (bool, error) {
	if c == nil {
		return false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer func() { _ = f.Close() }()

	dec := msgpack.NewDecoder(f)
	if err := dec.Decode(out); err != nil {
		return false, nil
	}
	if out.Schema != cacheSchemaVersion {
		return false, nil
	}
	return true, nil
}

// DropAll invalidates the whole cache, useful after format changes.
func (c *Cache) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		return err
	}
	return os.RemoveAll(old)
}
