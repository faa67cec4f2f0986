package engine

import (
	"testing"

	"synnergy-core/types"
)

func validTestModule() []byte {
	typeSec := section(byte(secType), []byte{0x01, 0x60, 0x00, 0x00})
	funcSec := section(byte(secFunction), []byte{0x01, 0x00})
	codeSec := section(byte(secCode), []byte{0x01, 0x02, 0x00, 0x0B})
	return buildModule(typeSec, funcSec, validMemorySection(), codeSec)
}

func TestPrecompileCacheMissThenHitReturnsSameModule(t *testing.T) {
	c := NewPrecompileCache()
	raw := validTestModule()
	hash := types.Hash32{0x01}

	first, err := c.GetOrPreprocess(hash, raw, DefaultWasmConfig())
	if err != nil {
		t.Fatalf("preprocess on miss: %v", err)
	}

	second, err := c.GetOrPreprocess(hash, nil, DefaultWasmConfig())
	if err != nil {
		t.Fatalf("preprocess on hit: %v", err)
	}
	if first != second {
		t.Fatal("want the cached *PreprocessedModule pointer returned on a hit, not a fresh value")
	}
}

func TestPrecompileCacheDistinctHashesGetDistinctEntries(t *testing.T) {
	c := NewPrecompileCache()
	raw := validTestModule()

	a, err := c.GetOrPreprocess(types.Hash32{0x01}, raw, DefaultWasmConfig())
	if err != nil {
		t.Fatalf("preprocess a: %v", err)
	}
	b, err := c.GetOrPreprocess(types.Hash32{0x02}, raw, DefaultWasmConfig())
	if err != nil {
		t.Fatalf("preprocess b: %v", err)
	}
	if a == b {
		t.Fatal("want distinct module hashes to produce distinct cache entries")
	}
}

func TestPrecompileCachePropagatesPreprocessError(t *testing.T) {
	c := NewPrecompileCache()
	raw := buildModule() // no memory section: invalid

	_, err := c.GetOrPreprocess(types.Hash32{0x03}, raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want the underlying Preprocess error surfaced, not swallowed")
	}

	// A failed preprocess must not poison the cache: retrying with valid
	// bytes under the same hash should still succeed.
	good, err := c.GetOrPreprocess(types.Hash32{0x03}, validTestModule(), DefaultWasmConfig())
	if err != nil {
		t.Fatalf("want retry after a failed preprocess to succeed: %v", err)
	}
	if good == nil {
		t.Fatal("want a non-nil module after a successful retry")
	}
}
