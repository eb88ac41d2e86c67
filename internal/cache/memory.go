package cache

import (
	"sync"

	"github.com/nebulastream/nebulastream-sub003/internal/nir"
)

// per-process cache by graph name + input key
type cached struct {
	key   Key
	graph *nir.Graph
}

// Memory keeps the latest optimized graph per function name.
type Memory struct {
	mu     sync.RWMutex
	byName map[string]cached
}

// NewMemory creates a Memory with the given capacity hint.
func NewMemory(capHint int) *Memory {
	return &Memory{byName: make(map[string]cached, capHint)}
}

// Get returns a copy of the cached graph when the input key still matches.
func (c *Memory) Get(in *nir.Graph, fingerprint string) (*nir.Graph, bool, error) {
	key, err := KeyFor(in, fingerprint)
	if err != nil {
		return nil, false, err
	}
	c.mu.RLock()
	rec, ok := c.byName[in.Func.Name]
	c.mu.RUnlock()
	if !ok || rec.key != key {
		return nil, false, nil
	}
	return rec.graph.Clone(), true, nil
}

// Put replaces the entry for the input's function name.
func (c *Memory) Put(in *nir.Graph, fingerprint string, out *nir.Graph) error {
	key, err := KeyFor(in, fingerprint)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.byName[in.Func.Name] = cached{key: key, graph: out.Clone()}
	c.mu.Unlock()
	return nil
}

// Len reports the number of entries.
func (c *Memory) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.byName)
}

// Tiered consults the memory cache before the disk cache and fills the
// memory cache on disk hits.
type Tiered struct {
	Mem  *Memory
	Disk *Disk
}

func (t *Tiered) Get(in *nir.Graph, fingerprint string) (*nir.Graph, bool, error) {
	if t.Mem != nil {
		if g, ok, err := t.Mem.Get(in, fingerprint); err != nil || ok {
			return g, ok, err
		}
	}
	if t.Disk == nil {
		return nil, false, nil
	}
	g, ok, err := t.Disk.Get(in, fingerprint)
	if err != nil || !ok {
		return nil, false, err
	}
	if t.Mem != nil {
		if err := t.Mem.Put(in, fingerprint, g); err != nil {
			return nil, false, err
		}
	}
	return g, true, nil
}

func (t *Tiered) Put(in *nir.Graph, fingerprint string, out *nir.Graph) error {
	if t.Mem != nil {
		if err := t.Mem.Put(in, fingerprint, out); err != nil {
			return err
		}
	}
	return t.Disk.Put(in, fingerprint, out)
}
