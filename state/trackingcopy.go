package state

import (
	"fmt"
	"math/big"
	"sync"

	"synnergy-core/trie"
	"synnergy-core/types"
)

// SystemContractNames are the well-known keys the executor's native
// dispatch looks up via GetSystemContracts (spec §7): the mint, the handle
// payment purse-transfer contract, and the proof-of-stake auction.
const (
	SystemContractMint          = "mint"
	SystemContractHandlePayment = "handle_payment"
	SystemContractAuction       = "auction"
)

// TrackingCopy is the only path through which execution mutates global
// state (spec §4.2): it wraps a read handle at a fixed pre-state root and
// buffers every write/add as a journal entry, resolving reads against its
// own buffer before falling through to the trie.
//
// Held behind a single RWMutex per spec §7's concurrency notes: reads take
// the write lock too, since a read populates the local cache.
//
// There is no in-place rollback: a failed call's writes stay buffered in
// pending/journal like any other, and the executor recovers the pre-call
// state by slicing the journal back to the length recorded by JournalLen
// before the call started (see JournalUpTo).
type TrackingCopy struct {
	mu    sync.RWMutex
	store *trie.Store
	root  trie.Digest

	keys      map[string]types.Key
	pending   map[string]types.Transform
	readCache map[string]cachedRead
	journal   []types.JournalEntry
}

type cachedRead struct {
	value types.StoredValue
	found bool
}

// New opens a tracking copy over store, anchored at the given pre-state
// root (the zero Digest denotes an empty trie).
func New(store *trie.Store, root trie.Digest) *TrackingCopy {
	return &TrackingCopy{
		store:     store,
		root:      root,
		keys:      make(map[string]types.Key),
		pending:   make(map[string]types.Transform),
		readCache: make(map[string]cachedRead),
	}
}

// Root returns the pre-state root this tracking copy reads through to.
func (tc *TrackingCopy) Root() trie.Digest { return tc.root }

// Read returns the buffered write for key if one is pending, otherwise
// reads through to the trie and caches the result. found reports whether
// the key resolves to any value at all.
func (tc *TrackingCopy) Read(key types.Key) (value types.StoredValue, found bool, err error) {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	ck := key.CacheKey()
	if t, ok := tc.pending[ck]; ok {
		base, baseFound := tc.resolvedBase(ck)
		val, err := trie.ResolveTransform(base, baseFound, t)
		if err != nil {
			return types.StoredValue{}, false, fmt.Errorf("state: resolve pending transform for %s: %w", key, err)
		}
		return val, true, nil
	}
	if c, ok := tc.readCache[ck]; ok {
		return c.value, c.found, nil
	}
	val, ok, err := tc.store.Read(tc.root, key)
	if err != nil {
		return types.StoredValue{}, false, err
	}
	tc.readCache[ck] = cachedRead{value: val, found: ok}
	return val, ok, nil
}

// resolvedBase returns the underlying (pre-pending-transform) value for ck,
// consulting the read cache or the trie but never the pending map itself —
// used as the "current" value an Add* transform folds against.
func (tc *TrackingCopy) resolvedBase(ck string) (types.StoredValue, bool) {
	if c, ok := tc.readCache[ck]; ok {
		return c.value, c.found
	}
	key := tc.keys[ck]
	val, ok, err := tc.store.Read(tc.root, key)
	if err != nil {
		return types.StoredValue{}, false
	}
	tc.readCache[ck] = cachedRead{value: val, found: ok}
	return val, ok
}

// Write pushes an overwriting Write(value) transform for key.
func (tc *TrackingCopy) Write(key types.Key, value types.StoredValue) {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	tc.push(key, types.WriteTransform(value))
}

// AddUint64 pushes (or merges into an existing pending) an AddUint64
// transform.
func (tc *TrackingCopy) AddUint64(key types.Key, n uint64) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.pushMerging(key, types.AddUint64Transform(n))
}

// AddBigInt pushes (or merges into an existing pending) an AddBigInt
// transform.
func (tc *TrackingCopy) AddBigInt(key types.Key, delta *big.Int) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.pushMerging(key, types.AddBigIntTransform(delta))
}

// AddKeys pushes (or merges into an existing pending) an AddKeys transform.
func (tc *TrackingCopy) AddKeys(key types.Key, keys map[string]types.Key) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.pushMerging(key, types.AddKeysTransform(keys))
}

// push records a raw (unmerged) journal entry and folds it into the pending
// map for this key, replacing any prior pending transform outright (used
// for Write, which is absorbing).
func (tc *TrackingCopy) push(key types.Key, t types.Transform) {
	ck := key.CacheKey()
	tc.keys[ck] = key
	tc.journal = append(tc.journal, types.JournalEntry{Key: key, Transform: t})
	tc.pending[ck] = t
}

// pushMerging is like push but merges t into any existing pending
// transform for the same key via Transform.Merge, per spec §4.2's "merges
// with an existing pending Add for the same key".
func (tc *TrackingCopy) pushMerging(key types.Key, t types.Transform) error {
	ck := key.CacheKey()
	tc.keys[ck] = key
	tc.journal = append(tc.journal, types.JournalEntry{Key: key, Transform: t})
	existing, ok := tc.pending[ck]
	if !ok {
		tc.pending[ck] = t
		return nil
	}
	merged, err := existing.Merge(t)
	if err != nil {
		return fmt.Errorf("state: merge transform for %s: %w", key, err)
	}
	tc.pending[ck] = merged
	return nil
}

// ExecutionJournal returns a snapshot of the raw, insertion-ordered
// transforms recorded so far (not yet merged per key — merging for commit
// purposes happens in trie.Store.Commit).
func (tc *TrackingCopy) ExecutionJournal() []types.JournalEntry {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	out := make([]types.JournalEntry, len(tc.journal))
	copy(out, tc.journal)
	return out
}

// JournalLen reports how many journal entries have been recorded so far.
// An executor calls this before running a deploy or a native system-contract
// dispatch, then passes the result to JournalUpTo on failure to recover the
// journal as it stood before that call's own (now-discarded) writes.
func (tc *TrackingCopy) JournalLen() int {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	return len(tc.journal)
}

// JournalUpTo returns a snapshot of the journal truncated to its first n
// entries, i.e. the journal as it stood before whatever was recorded at and
// after index n. Pending/readCache are left untouched — the tracking copy
// itself never rolls back, only the journal handed to the caller does.
func (tc *TrackingCopy) JournalUpTo(n int) []types.JournalEntry {
	tc.mu.RLock()
	defer tc.mu.RUnlock()
	if n > len(tc.journal) {
		n = len(tc.journal)
	}
	out := make([]types.JournalEntry, n)
	copy(out, tc.journal[:n])
	return out
}

// GetContract is a typed convenience reader over Read for a contract hash.
func (tc *TrackingCopy) GetContract(hash types.Hash32) (*types.Contract, error) {
	val, found, err := tc.Read(types.NewHashKey(hash))
	if err != nil {
		return nil, err
	}
	if !found || val.Contract == nil {
		return nil, fmt.Errorf("state: contract %s not found", hash)
	}
	return val.Contract, nil
}

// GetSystemContracts resolves the well-known system contract names against
// the genesis account's named keys, returning hash -> name.
func (tc *TrackingCopy) GetSystemContracts(systemAccount types.Hash32) (map[string]types.Hash32, error) {
	val, found, err := tc.Read(types.NewAccountKey(systemAccount))
	if err != nil {
		return nil, err
	}
	if !found || val.Account == nil {
		return nil, fmt.Errorf("state: system account %s not found", systemAccount)
	}
	out := make(map[string]types.Hash32, 3)
	for _, name := range []string{SystemContractMint, SystemContractHandlePayment, SystemContractAuction} {
		k, ok := val.Account.NamedKeys[name]
		if !ok || k.Tag != types.KeyHash {
			continue
		}
		out[name] = k.Hash
	}
	return out, nil
}
