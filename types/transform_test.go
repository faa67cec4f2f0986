package types

import (
	"math/big"
	"testing"
)

func TestTransformMergeAddUint64(t *testing.T) {
	a := AddUint64Transform(5)
	b := AddUint64Transform(7)
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Tag != TransformAddUint64 || merged.AddUint64 != 12 {
		t.Fatalf("want AddUint64(12), got %+v", merged)
	}
}

func TestTransformMergeAddBigInt(t *testing.T) {
	a := AddBigIntTransform(big.NewInt(10))
	b := AddBigIntTransform(big.NewInt(-3))
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.AddBig.Cmp(big.NewInt(7)) != 0 {
		t.Fatalf("want 7, got %v", merged.AddBig)
	}
}

func TestTransformWriteAbsorbsEverything(t *testing.T) {
	pending := AddUint64Transform(100)
	write := WriteTransform(StoredValue{Tag: SVCLValue, CLValue: &CLValue{Type: CLU64, Bytes: uint64ToBytes(1)}})
	merged, err := pending.Merge(write)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Tag != TransformWrite {
		t.Fatalf("want a Write to absorb a pending Add, got %+v", merged)
	}
}

func TestTransformAddOntoWriteFoldsNumericPayload(t *testing.T) {
	write := WriteTransform(StoredValue{Tag: SVCLValue, CLValue: &CLValue{Type: CLU64, Bytes: uint64ToBytes(10)}})
	add := AddUint64Transform(5)
	merged, err := write.Merge(add)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if merged.Tag != TransformWrite {
		t.Fatalf("want Write, got %+v", merged)
	}
	if got := bytesToUint64(merged.Write.CLValue.Bytes); got != 15 {
		t.Fatalf("want 15, got %d", got)
	}
}

func TestTransformMergeIncompatibleKindsFails(t *testing.T) {
	a := AddUint64Transform(1)
	b := AddBigIntTransform(big.NewInt(1))
	if _, err := a.Merge(b); err == nil {
		t.Fatal("want error merging AddUint64 with AddBigInt")
	}
}

func TestTransformMergeAddKeys(t *testing.T) {
	a := AddKeysTransform(map[string]Key{"one": NewAccountKey(Hash32{1})})
	b := AddKeysTransform(map[string]Key{"two": NewAccountKey(Hash32{2})})
	merged, err := a.Merge(b)
	if err != nil {
		t.Fatalf("merge: %v", err)
	}
	if len(merged.AddKeys) != 2 {
		t.Fatalf("want 2 merged keys, got %d", len(merged.AddKeys))
	}
}
