// Package cache keeps optimized graphs between runs, keyed by the encoded
// input graph and the pipeline option fingerprint.
package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// Current schema version - increment when Payload format changes
const schemaVersion uint16 = 1

// Key addresses one cache entry.
type Key [sha256.Size]byte

func (k Key) String() string { return hex.EncodeToString(k[:]) }

// KeyFor hashes the encoded input graph together with the fingerprint.
func KeyFor(in *nir.Graph, fingerprint string) (Key, error) {
	data, err := nir.Marshal(in)
	if err != nil {
		return Key{}, err
	}
	h := sha256.New()
	h.Write(data)
	h.Write([]byte{0})
	h.Write([]byte(fingerprint))
	var k Key
	copy(k[:], h.Sum(nil))
	return k, nil
}

// Payload is the on-disk record.
type Payload struct {
	Schema      uint16
	Name        string
	Fingerprint string
	Graph       []byte // nir.Marshal of the optimized graph
}

// Disk stores payloads under <dir>/graphs/<key>.mp. Safe for concurrent use.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

// Open returns the cache under $XDG_CACHE_HOME/<app>, falling back to ~/.cache.
func Open(app string) (*Disk, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenDir(filepath.Join(base, app))
}

// OpenDir uses dir as the cache root.
func OpenDir(dir string) (*Disk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &Disk{dir: dir}, nil
}

// Dir reports the cache root.
func (c *Disk) Dir() string { return c.dir }

func (c *Disk) pathFor(key Key) string {
	return filepath.Join(c.dir, "graphs", key.String()+".mp")
}

// Get implements pipeline.GraphCache. Entries from another schema or
// fingerprint are misses, not errors.
func (c *Disk) Get(in *nir.Graph, fingerprint string) (*nir.Graph, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	key, err := KeyFor(in, fingerprint)
	if err != nil {
		return nil, false, err
	}
	var p Payload
	ok, err := c.load(key, &p)
	if err != nil || !ok {
		return nil, false, err
	}
	if p.Schema != schemaVersion || p.Fingerprint != fingerprint {
		return nil, false, nil
	}
	g, err := nir.Decode(bytes.NewReader(p.Graph))
	if err != nil {
		return nil, false, err
	}
	return g, true, nil
}

// Put implements pipeline.GraphCache.
func (c *Disk) Put(in *nir.Graph, fingerprint string, out *nir.Graph) error {
	if c == nil {
		return nil
	}
	key, err := KeyFor(in, fingerprint)
	if err != nil {
		return err
	}
	data, err := nir.Marshal(out)
	if err != nil {
		return err
	}
	return c.store(key, &Payload{
		Schema:      schemaVersion,
		Name:        out.Func.Name,
		Fingerprint: fingerprint,
		Graph:       data,
	})
}

func (c *Disk) store(key Key, payload *Payload) (err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		// After a successful rename the temp name is gone.
		if rmErr := os.Remove(tmp); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
			err = rmErr
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(payload); err != nil {
		_ = f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Atomic replace
	err = os.Rename(tmp, p)
	return err
}

func (c *Disk) load(key Key, out *Payload) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()
	if err := msgpack.NewDecoder(f).Decode(out); err != nil {
		return false, err
	}
	return true, nil
}

// DropAll removes every entry.
func (c *Disk) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	old := c.dir + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(c.dir, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	if err := os.RemoveAll(old); err != nil {
		return err
	}
	return os.MkdirAll(c.dir, 0o755)
}
