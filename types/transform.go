package types

import (
	"fmt"
	"math/big"
)

// TransformTag identifies a commit-time operation on a Key.
type TransformTag byte

const (
	TransformIdentity TransformTag = iota
	TransformWrite
	TransformAddInt32
	TransformAddInt64
	TransformAddUint64
	TransformAddBigInt
	TransformAddKeys
	TransformFailure
)

// Transform is a single commit-time operation. Add* variants form a
// commutative monoid (order-independent merge); Write is absorbing (a later
// Write replaces any prior transform entirely).
type Transform struct {
	Tag       TransformTag
	Write     *StoredValue
	AddInt32  int32
	AddInt64  int64
	AddUint64 uint64
	AddBig    *big.Int
	AddKeys   map[string]Key
	Failure   error
}

func WriteTransform(v StoredValue) Transform { return Transform{Tag: TransformWrite, Write: &v} }
func AddUint64Transform(n uint64) Transform  { return Transform{Tag: TransformAddUint64, AddUint64: n} }
func AddBigIntTransform(n *big.Int) Transform {
	return Transform{Tag: TransformAddBigInt, AddBig: new(big.Int).Set(n)}
}
func AddKeysTransform(keys map[string]Key) Transform {
	return Transform{Tag: TransformAddKeys, AddKeys: keys}
}

// Merge combines t (the existing pending transform for a key) with next (a
// newly requested transform for the same key), honoring the monoid laws: a
// Write absorbs everything before it; two Add* transforms of a compatible
// kind combine; anything else is a TransformError surfaced as Failure.
func (t Transform) Merge(next Transform) (Transform, error) {
	if next.Tag == TransformWrite {
		return next, nil
	}
	switch t.Tag {
	case TransformIdentity:
		return next, nil
	case TransformWrite:
		return applyAddToWrite(t, next)
	case TransformAddUint64:
		if next.Tag != TransformAddUint64 {
			return Transform{}, fmt.Errorf("transform: cannot merge AddUint64 with %v", next.Tag)
		}
		return Transform{Tag: TransformAddUint64, AddUint64: t.AddUint64 + next.AddUint64}, nil
	case TransformAddBigInt:
		if next.Tag != TransformAddBigInt {
			return Transform{}, fmt.Errorf("transform: cannot merge AddBigInt with %v", next.Tag)
		}
		return Transform{Tag: TransformAddBigInt, AddBig: new(big.Int).Add(t.AddBig, next.AddBig)}, nil
	case TransformAddKeys:
		if next.Tag != TransformAddKeys {
			return Transform{}, fmt.Errorf("transform: cannot merge AddKeys with %v", next.Tag)
		}
		merged := make(map[string]Key, len(t.AddKeys)+len(next.AddKeys))
		for k, v := range t.AddKeys {
			merged[k] = v
		}
		for k, v := range next.AddKeys {
			merged[k] = v
		}
		return Transform{Tag: TransformAddKeys, AddKeys: merged}, nil
	default:
		return Transform{}, fmt.Errorf("transform: cannot merge transform of kind %v", t.Tag)
	}
}

// applyAddToWrite folds an Add* transform directly into a pending Write's
// numeric payload, since Write is absorbing but must still reflect later adds
// made against the same not-yet-committed key.
func applyAddToWrite(pendingWrite, add Transform) (Transform, error) {
	if pendingWrite.Write == nil || pendingWrite.Write.CLValue == nil {
		return Transform{}, fmt.Errorf("transform: cannot add to non-numeric stored value")
	}
	switch add.Tag {
	case TransformAddUint64:
		var n uint64
		if len(pendingWrite.Write.CLValue.Bytes) >= 8 {
			n = bytesToUint64(pendingWrite.Write.CLValue.Bytes)
		}
		n += add.AddUint64
		v := *pendingWrite.Write
		cl := *v.CLValue
		cl.Bytes = uint64ToBytes(n)
		v.CLValue = &cl
		return Transform{Tag: TransformWrite, Write: &v}, nil
	case TransformAddBigInt:
		n := new(big.Int).SetBytes(pendingWrite.Write.CLValue.Bytes)
		n.Add(n, add.AddBig)
		v := *pendingWrite.Write
		cl := *v.CLValue
		cl.Bytes = n.Bytes()
		v.CLValue = &cl
		return Transform{Tag: TransformWrite, Write: &v}, nil
	default:
		return Transform{}, fmt.Errorf("transform: unsupported add-to-write kind %v", add.Tag)
	}
}

func bytesToUint64(b []byte) uint64 {
	var n uint64
	for _, c := range b[:8] {
		n = n<<8 | uint64(c)
	}
	return n
}

func uint64ToBytes(n uint64) []byte {
	b := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		b[i] = byte(n)
		n >>= 8
	}
	return b
}

// JournalEntry pairs a Key with the Transform pending against it, in the
// order it was first produced (insertion order is retained for
// observability per spec §4.2).
type JournalEntry struct {
	Key       Key
	Transform Transform
}
