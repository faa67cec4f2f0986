package engine

import (
	"sync"

	"synnergy-core/types"
)

// PrecompileCache is the process-wide preprocessed_bytes -> *PreprocessedModule
// mapping spec §5/§9 calls for: a single mutex guards insertion, lookups
// take the lock only briefly. Construction (the expensive part) happens
// outside the lock; Get-or-set is still race-safe because the losing
// goroutine in a concurrent miss simply discards its own redundant result.
type PrecompileCache struct {
	mu      sync.Mutex
	entries map[types.Hash32]*PreprocessedModule
}

// NewPrecompileCache constructs an empty cache.
func NewPrecompileCache() *PrecompileCache {
	return &PrecompileCache{entries: make(map[types.Hash32]*PreprocessedModule)}
}

// GetOrPreprocess returns the cached PreprocessedModule for moduleHash (the
// blake2b digest of the raw bytes), preprocessing and inserting it if
// absent.
func (c *PrecompileCache) GetOrPreprocess(moduleHash types.Hash32, raw []byte, cfg WasmConfig) (*PreprocessedModule, error) {
	c.mu.Lock()
	if m, ok := c.entries[moduleHash]; ok {
		c.mu.Unlock()
		return m, nil
	}
	c.mu.Unlock()

	m, err := Preprocess(raw, cfg)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.entries[moduleHash]; ok {
		return existing, nil
	}
	c.entries[moduleHash] = m
	return m, nil
}
