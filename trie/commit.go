package trie

import (
	"fmt"
	"math/big"

	"synnergy-core/types"
)

func uint64FromBytes(b []byte) uint64 {
	var n uint64
	for _, c := range b {
		n = n<<8 | uint64(c)
	}
	return n
}

func uint64ToBytesPublic(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}

func bigIntFromBytes(b []byte) *big.Int {
	if len(b) == 0 {
		return new(big.Int)
	}
	return new(big.Int).SetBytes(b)
}

// Commit applies journal, a deterministically ordered batch of
// key/transform pairs produced by a tracking copy, on top of the trie
// rooted at preRoot, and durably persists the result as a single atomic
// bbolt transaction (spec §4.3). It returns the new root digest.
//
// Per key, the effective Transform to apply is resolved by folding every
// entry for that key (in journal order) through Transform.Merge, then:
//   - TransformWrite overwrites the leaf outright.
//   - TransformAddUint64 / TransformAddBigInt read the current StoredValue
//     and add in place; a key with no current value fails the commit.
//   - TransformAddKeys reads the current Account/Contract's NamedKeys map
//     and merges the new entries in.
//
// A transform whose Kind cannot be resolved against the key's current
// stored value (type mismatch, add against a non-existent account, etc.)
// aborts the whole commit with a TrieError — no partial writes reach the
// store, matching the "all transforms succeed or none are persisted"
// invariant.
func (s *Store) Commit(preRoot Digest, preRootKnown bool, journal []types.JournalEntry) (Digest, error) {
	if preRootKnown && !preRoot.IsZero() {
		if ok, err := s.HasRoot(preRoot); err != nil {
			return Digest{}, err
		} else if !ok {
			return Digest{}, types.NewTrieError(types.TrieRootNotFound, fmt.Sprintf("trie: unknown pre-state-hash %s", preRoot))
		}
	}

	merged := make(map[string]types.Transform)
	order := make([]string, 0, len(journal))
	keys := make(map[string]types.Key)
	for _, e := range journal {
		ck := e.Key.CacheKey()
		existing, seen := merged[ck]
		if !seen {
			merged[ck] = e.Transform
			order = append(order, ck)
			keys[ck] = e.Key
			continue
		}
		combined, err := existing.Merge(e.Transform)
		if err != nil {
			return Digest{}, types.NewTrieError(types.TrieTransformError, err.Error())
		}
		merged[ck] = combined
	}

	scratch := NewScratch(s)
	root := preRoot
	for _, ck := range order {
		key := keys[ck]
		t := merged[ck]
		newVal, err := s.resolveTransform(scratch, root, key, t)
		if err != nil {
			return Digest{}, err
		}
		root, err = scratch.Put(root, key, newVal)
		if err != nil {
			return Digest{}, types.NewTrieError(types.TrieTransformError, err.Error())
		}
	}
	return scratch.Flush(root)
}

func (s *Store) resolveTransform(scratch *Scratch, root Digest, key types.Key, t types.Transform) (types.StoredValue, error) {
	current, found, err := s.readThrough(scratch, root, key)
	if err != nil {
		return types.StoredValue{}, err
	}
	val, err := ResolveTransform(current, found, t)
	if err != nil {
		return types.StoredValue{}, types.NewTrieError(types.TrieTransformError, err.Error())
	}
	return val, nil
}

// readThrough looks up key first in the scratch overlay's buffered nodes
// (values written earlier in the same commit), then falls back to the
// durable store at root.
func (s *Store) readThrough(scratch *Scratch, root Digest, key types.Key) (types.StoredValue, bool, error) {
	if root.IsZero() {
		return types.StoredValue{}, false, nil
	}
	path := key.Bytes()
	cur := root
	depth := 0
	for {
		node, err := scratch.getNode(cur)
		if err != nil {
			return types.StoredValue{}, false, nil
		}
		switch node.Tag {
		case TagLeaf:
			if node.Key.Equal(key) {
				return node.Value, true, nil
			}
			return types.StoredValue{}, false, nil
		case TagExtension:
			rest := path[depth:]
			if !matchesAffix(rest, node.Affix) {
				return types.StoredValue{}, false, nil
			}
			depth += len(node.Affix)
			cur = node.Pointer
		case TagNode:
			if depth >= len(path) {
				return types.StoredValue{}, false, nil
			}
			next := node.Pointers[path[depth]]
			if next.IsZero() {
				return types.StoredValue{}, false, nil
			}
			cur = next
			depth++
		}
	}
}

// ResolveTransform folds t against current (the key's present value, with
// found indicating whether the key exists at all) and returns the
// StoredValue that should be written. Exported so both Store.Commit (which
// reads "current" from the scratch-overlaid trie) and state.TrackingCopy
// (which reads "current" from its own read-cache) share one resolution
// rule.
func ResolveTransform(current types.StoredValue, found bool, t types.Transform) (types.StoredValue, error) {
	switch t.Tag {
	case types.TransformWrite:
		return *t.Write, nil
	case types.TransformAddUint64, types.TransformAddBigInt, types.TransformAddKeys:
		if !found {
			return types.StoredValue{}, fmt.Errorf("trie: add transform against missing key")
		}
		return ApplyAddTransform(current, t)
	default:
		return types.StoredValue{}, fmt.Errorf("trie: unresolvable transform kind %v", t.Tag)
	}
}

// ApplyAddTransform folds a single Add* transform into current's existing
// numeric or named-keys payload.
func ApplyAddTransform(current types.StoredValue, t types.Transform) (types.StoredValue, error) {
	switch t.Tag {
	case types.TransformAddUint64:
		if current.CLValue == nil {
			return types.StoredValue{}, fmt.Errorf("trie: AddUint64 against non-CLValue stored value")
		}
		n := uint64FromBytes(current.CLValue.Bytes)
		n += t.AddUint64
		cl := *current.CLValue
		cl.Bytes = uint64ToBytesPublic(n)
		current.CLValue = &cl
		return current, nil
	case types.TransformAddBigInt:
		if current.CLValue == nil {
			return types.StoredValue{}, fmt.Errorf("trie: AddBigInt against non-CLValue stored value")
		}
		cl := *current.CLValue
		existing := bigIntFromBytes(cl.Bytes)
		existing.Add(existing, t.AddBig)
		cl.Bytes = existing.Bytes()
		current.CLValue = &cl
		return current, nil
	case types.TransformAddKeys:
		if current.Account == nil && current.Contract == nil {
			return types.StoredValue{}, fmt.Errorf("trie: AddKeys against a stored value with no named keys")
		}
		if current.Account != nil {
			acct := *current.Account
			merged := make(map[string]types.Key, len(acct.NamedKeys)+len(t.AddKeys))
			for k, v := range acct.NamedKeys {
				merged[k] = v
			}
			for k, v := range t.AddKeys {
				merged[k] = v
			}
			acct.NamedKeys = merged
			current.Account = &acct
			return current, nil
		}
		contract := *current.Contract
		merged := make(map[string]types.Key, len(contract.NamedKeys)+len(t.AddKeys))
		for k, v := range contract.NamedKeys {
			merged[k] = v
		}
		for k, v := range t.AddKeys {
			merged[k] = v
		}
		contract.NamedKeys = merged
		current.Contract = &contract
		return current, nil
	default:
		return types.StoredValue{}, fmt.Errorf("trie: unsupported add transform kind %v", t.Tag)
	}
}
