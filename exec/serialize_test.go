package exec

import (
	"encoding/binary"
	"testing"

	"synnergy-core/types"
)

func TestKeyWireRoundTrip(t *testing.T) {
	cases := []types.Key{
		types.NewAccountKey(types.Hash32{1, 2, 3}),
		types.NewHashKey(types.Hash32{4, 5, 6}),
		types.NewURefKey(types.NewURef(types.Hash32{7}, types.RightsReadAddWrite)),
		types.NewEraInfoKey(42),
		types.NewBalanceKey(types.Hash32{9}),
	}
	for _, k := range cases {
		wire := EncodeKeyWire(k)
		got, err := DecodeKeyWire(wire)
		if err != nil {
			t.Fatalf("decode %v: %v", k, err)
		}
		if !got.Equal(k) {
			t.Fatalf("round trip mismatch: want %+v, got %+v", k, got)
		}
	}
}

func TestCLValueWireRoundTrip(t *testing.T) {
	v := types.CLValue{Type: types.CLU512, Bytes: []byte{1, 2, 3, 4, 5}}
	wire := EncodeCLValueWire(v)
	got, err := DecodeCLValueWire(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.Type != v.Type || string(got.Bytes) != string(v.Bytes) {
		t.Fatalf("round trip mismatch: want %+v, got %+v", v, got)
	}
}

func TestURefWireRoundTrip(t *testing.T) {
	u := types.NewURef(types.Hash32{0xAB}, types.RightsReadWrite)
	wire := EncodeURefWire(u)
	got, err := DecodeURefWire(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got != u {
		t.Fatalf("round trip mismatch: want %+v, got %+v", u, got)
	}
}

func TestRuntimeArgsWireRoundTrip(t *testing.T) {
	args := types.RuntimeArgs{
		"amount": {Type: types.CLU512, Bytes: []byte{1, 2}},
		"target": {Type: types.CLByteArray, Bytes: []byte{3, 4, 5}},
	}
	wire := EncodeRuntimeArgsWire(args)
	got, err := DecodeRuntimeArgsWire(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(args) {
		t.Fatalf("want %d args, got %d", len(args), len(got))
	}
	for name, want := range args {
		v, ok := got[name]
		if !ok {
			t.Fatalf("missing arg %q after round trip", name)
		}
		if v.Type != want.Type || string(v.Bytes) != string(want.Bytes) {
			t.Fatalf("arg %q mismatch: want %+v, got %+v", name, want, v)
		}
	}
}

func TestNamedKeysWireRoundTrip(t *testing.T) {
	keys := map[string]types.Key{
		"foo": types.NewHashKey(types.Hash32{1}),
		"bar": types.NewURefKey(types.NewURef(types.Hash32{2}, types.RightsRead)),
	}
	wire, err := EncodeNamedKeysWire(keys)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	got, err := DecodeNamedKeysWire(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != len(keys) {
		t.Fatalf("want %d keys, got %d", len(keys), len(got))
	}
	for name, want := range keys {
		k, ok := got[name]
		if !ok || !k.Equal(want) {
			t.Fatalf("key %q mismatch: want %+v, got %+v (found=%v)", name, want, k, ok)
		}
	}
}

func TestEntryPointsWireRoundTrip(t *testing.T) {
	ep := types.EntryPoint{
		Name:    "transfer",
		Args:    []types.Parameter{{Name: "amount", Type: types.CLU512}},
		RetType: types.CLUnit,
		Access:  types.EntryPointAccess{Public: true},
		Type:    types.EntryPointContract,
	}
	epWire := EncodeEntryPointWire(ep)

	var blob []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], 1)
	blob = append(blob, count[:]...)
	var nameLen [4]byte
	binary.LittleEndian.PutUint32(nameLen[:], uint32(len(ep.Name)))
	blob = append(blob, nameLen[:]...)
	blob = append(blob, ep.Name...)
	blob = append(blob, epWire...)

	decoded, err := DecodeEntryPointsWire(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := decoded["transfer"]
	if !ok {
		t.Fatal("want \"transfer\" entry point present after round trip")
	}
	if !got.Access.Public || got.Type != types.EntryPointContract || got.RetType != types.CLUnit {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if len(got.Args) != 1 || got.Args[0].Name != "amount" || got.Args[0].Type != types.CLU512 {
		t.Fatalf("want one arg named amount of type u512, got %+v", got.Args)
	}
}

func TestDecodeKeyWireRejectsEmptyInput(t *testing.T) {
	if _, err := DecodeKeyWire(nil); err == nil {
		t.Fatal("want error decoding an empty key wire")
	}
}

func TestDecodeRuntimeArgsWireRejectsTruncatedInput(t *testing.T) {
	if _, err := DecodeRuntimeArgsWire([]byte{1, 2}); err == nil {
		t.Fatal("want error decoding truncated runtime args wire bytes")
	}
}
