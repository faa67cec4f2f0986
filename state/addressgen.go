// Package state holds the execution-scoped layers that sit between the
// durable trie (package trie) and the runtime context (package exec): the
// tracking copy's buffered read/write/add journal, and the deploy-scoped
// address generator.
package state

import (
	"encoding/binary"
	"sync"

	"golang.org/x/crypto/blake2b"

	"synnergy-core/types"
)

// AddressGenerator produces a deterministic, collision-free stream of
// 32-byte addresses for one (deploy_hash, phase) pair (spec §4.3): the seed
// is blake2b(deploy_hash || phase_tag), and each call folds in a
// monotonically increasing counter before hashing again, so two phases of
// the same deploy never share an address even if their counters collide.
//
// Grounded on core/address_zero.go / core/address_from_common_tokens.go's
// deterministic-address convention, generalized from 20-byte chain
// addresses to the spec's 32-byte URef/hash address space.
type AddressGenerator struct {
	mu      sync.RWMutex
	seed    [33]byte // blake2b digest (32) + reserved tag byte kept at 0
	counter uint64
}

// NewAddressGenerator seeds a generator for one deploy phase. Distinct
// phases of the same deploy must each get their own generator instance
// (constructed with the same deployHash but a different phase) to produce
// disjoint streams.
func NewAddressGenerator(deployHash types.Hash32, phase types.Phase) *AddressGenerator {
	h, _ := blake2b.New256(nil)
	h.Write(deployHash[:])
	h.Write([]byte{phase.Tag()})
	sum := h.Sum(nil)
	g := &AddressGenerator{}
	copy(g.seed[:32], sum)
	return g
}

// NewAddress advances the counter and returns the next address in the
// stream: blake2b(seed || counter_be), where seed is the phase-scoped digest
// computed at construction time.
//
// Shared (mutably) across nested contract calls of the same deploy phase,
// per spec §4.3 — callers in exec hold this behind the same lock that
// guards the frame's RuntimeContext tree.
func (g *AddressGenerator) NewAddress() types.Hash32 {
	g.mu.Lock()
	defer g.mu.Unlock()

	var ctrBytes [8]byte
	binary.BigEndian.PutUint64(ctrBytes[:], g.counter)
	g.counter++

	h, _ := blake2b.New256(nil)
	h.Write(g.seed[:32])
	h.Write(ctrBytes[:])
	var out types.Hash32
	copy(out[:], h.Sum(nil))
	return out
}

// Counter reports the number of addresses produced so far, for tests and
// diagnostics.
func (g *AddressGenerator) Counter() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.counter
}
