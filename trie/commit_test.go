package trie

import (
	"math/big"
	"path/filepath"
	"testing"

	"synnergy-core/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := OpenStore(filepath.Join(t.TempDir(), "trie.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func u64Value(n uint64) types.StoredValue {
	return types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU64, Bytes: uint64ToBytesPublic(n)}}
}

func TestCommitWriteThenRead(t *testing.T) {
	store := openTestStore(t)
	key := types.NewAccountKey(types.Hash32{1})

	journal := []types.JournalEntry{{Key: key, Transform: types.WriteTransform(u64Value(42))}}
	root, err := store.Commit(Digest{}, true, journal)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if root.IsZero() {
		t.Fatal("commit of a non-empty journal must not produce the zero root")
	}

	val, found, err := store.Read(root, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found {
		t.Fatal("want key found after commit")
	}
	if got := uint64FromBytes(val.CLValue.Bytes); got != 42 {
		t.Fatalf("want 42, got %d", got)
	}
}

func TestCommitUnknownPreRootRejected(t *testing.T) {
	store := openTestStore(t)
	var bogus Digest
	bogus[0] = 0xFF

	_, err := store.Commit(bogus, true, nil)
	if err == nil {
		t.Fatal("want error committing on top of an unrecorded pre-root")
	}
}

func TestCommitAddBigIntOnFreshKey(t *testing.T) {
	store := openTestStore(t)
	key := types.NewBalanceKey(types.Hash32{2})

	first := []types.JournalEntry{{Key: key, Transform: types.AddBigIntTransform(big.NewInt(100))}}
	if _, err := store.Commit(Digest{}, true, first); err == nil {
		t.Fatal("want an Add against a key absent from the trie to fail the commit")
	}

	seed := types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU512, Bytes: big.NewInt(100).Bytes()}}
	root, err := store.Commit(Digest{}, true, []types.JournalEntry{{Key: key, Transform: types.WriteTransform(seed)}})
	if err != nil {
		t.Fatalf("commit 1: %v", err)
	}

	second := []types.JournalEntry{{Key: key, Transform: types.AddBigIntTransform(big.NewInt(25))}}
	root2, err := store.Commit(root, true, second)
	if err != nil {
		t.Fatalf("commit 2: %v", err)
	}

	val, found, err := store.Read(root2, key)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !found {
		t.Fatal("want key found")
	}
	got := new(big.Int).SetBytes(val.CLValue.Bytes)
	if got.Cmp(big.NewInt(125)) != 0 {
		t.Fatalf("want 125, got %v", got)
	}

	// The earlier root must still resolve to the pre-add balance: commits
	// never mutate existing nodes.
	oldVal, found, err := store.Read(root, key)
	if err != nil {
		t.Fatalf("read old root: %v", err)
	}
	if !found {
		t.Fatal("want key found at old root")
	}
	oldAmt := new(big.Int).SetBytes(oldVal.CLValue.Bytes)
	if oldAmt.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("want old root to still read 100, got %v", oldAmt)
	}
}

func TestCommitMultipleKeysInOneJournal(t *testing.T) {
	store := openTestStore(t)
	keyA := types.NewAccountKey(types.Hash32{0xA})
	keyB := types.NewAccountKey(types.Hash32{0xB})

	journal := []types.JournalEntry{
		{Key: keyA, Transform: types.WriteTransform(u64Value(1))},
		{Key: keyB, Transform: types.WriteTransform(u64Value(2))},
	}
	root, err := store.Commit(Digest{}, true, journal)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	for key, want := range map[types.Key]uint64{keyA: 1, keyB: 2} {
		val, found, err := store.Read(root, key)
		if err != nil || !found {
			t.Fatalf("read %v: found=%v err=%v", key, found, err)
		}
		if got := uint64FromBytes(val.CLValue.Bytes); got != want {
			t.Fatalf("key %v: want %d, got %d", key, want, got)
		}
	}
}

func TestReadMissingKeyNotFound(t *testing.T) {
	store := openTestStore(t)
	_, found, err := store.Read(Digest{}, types.NewAccountKey(types.Hash32{9}))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if found {
		t.Fatal("want not-found against the empty trie")
	}
}
