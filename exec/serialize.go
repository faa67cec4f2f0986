package exec

import (
	"encoding/binary"
	"fmt"
	"sort"

	"synnergy-core/engine"
	"synnergy-core/types"
)

// This file implements the ABI-facing wire codec the host functions use to
// read/write values in the guest's linear memory. It is deliberately
// simpler than trie/storedvalue_codec.go's internal encoding: the guest
// only ever exchanges CLValues and Keys/URefs across the boundary (never a
// whole Account/Contract/ContractPackage), and pointers carry explicit
// lengths, so a fixed tagged-bytes layout is both sufficient and matches
// spec §6's "length-prefixed vectors, tagged unions" wire description.

func readMem(ctx engine.FunctionContext, ptr, size int32) ([]byte, error) {
	if ptr < 0 || size < 0 {
		return nil, types.NewExecutionError(types.ErrInterpreter, "exec: negative memory pointer/size")
	}
	return ctx.MemoryRead(uint32(ptr), uint32(size))
}

func writeMem(ctx engine.FunctionContext, ptr int32, data []byte) error {
	if ptr < 0 {
		return types.NewExecutionError(types.ErrInterpreter, "exec: negative memory pointer")
	}
	return ctx.MemoryWrite(uint32(ptr), data)
}

func writeU32(ctx engine.FunctionContext, ptr int32, v uint32) error {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	return writeMem(ctx, ptr, b[:])
}

// EncodeKeyWire serializes a Key for ABI exchange, including URef rights
// bits (trie.Key.Bytes omits them since lookup equality ignores them, but
// the guest needs to see the exact rights it was granted).
func EncodeKeyWire(k types.Key) []byte {
	switch k.Tag {
	case types.KeyURef:
		out := make([]byte, 1+32+1)
		out[0] = byte(k.Tag)
		copy(out[1:33], k.URef.Addr[:])
		out[33] = byte(k.URef.Rights)
		return out
	case types.KeyEraInfo:
		out := make([]byte, 1+8)
		out[0] = byte(k.Tag)
		binary.BigEndian.PutUint64(out[1:], k.Era)
		return out
	default:
		out := make([]byte, 1+32)
		out[0] = byte(k.Tag)
		copy(out[1:], k.Hash[:])
		return out
	}
}

// DecodeKeyWire is EncodeKeyWire's inverse.
func DecodeKeyWire(b []byte) (types.Key, error) {
	if len(b) < 1 {
		return types.Key{}, fmt.Errorf("exec: empty key wire bytes")
	}
	tag := types.KeyTag(b[0])
	rest := b[1:]
	switch tag {
	case types.KeyURef:
		if len(rest) < 33 {
			return types.Key{}, fmt.Errorf("exec: short uref key wire bytes")
		}
		var addr types.Hash32
		copy(addr[:], rest[:32])
		return types.Key{Tag: tag, URef: types.URef{Addr: addr, Rights: types.AccessRights(rest[32])}}, nil
	case types.KeyEraInfo:
		if len(rest) < 8 {
			return types.Key{}, fmt.Errorf("exec: short era key wire bytes")
		}
		return types.Key{Tag: tag, Era: binary.BigEndian.Uint64(rest[:8])}, nil
	default:
		if len(rest) < 32 {
			return types.Key{}, fmt.Errorf("exec: short key wire bytes")
		}
		var h types.Hash32
		copy(h[:], rest[:32])
		return types.Key{Tag: tag, Hash: h}, nil
	}
}

// EncodeCLValueWire serializes a CLValue as [tag:1][len:u32 LE][bytes].
func EncodeCLValueWire(v types.CLValue) []byte {
	out := make([]byte, 1+4+len(v.Bytes))
	out[0] = byte(v.Type)
	binary.LittleEndian.PutUint32(out[1:5], uint32(len(v.Bytes)))
	copy(out[5:], v.Bytes)
	return out
}

// DecodeCLValueWire is EncodeCLValueWire's inverse.
func DecodeCLValueWire(b []byte) (types.CLValue, error) {
	if len(b) < 5 {
		return types.CLValue{}, fmt.Errorf("exec: truncated clvalue wire bytes")
	}
	n := binary.LittleEndian.Uint32(b[1:5])
	if uint32(len(b)-5) < n {
		return types.CLValue{}, fmt.Errorf("exec: clvalue length mismatch")
	}
	return types.CLValue{Type: types.CLType(b[0]), Bytes: b[5 : 5+n]}, nil
}

func EncodeURefWire(u types.URef) []byte {
	out := make([]byte, 33)
	copy(out[:32], u.Addr[:])
	out[32] = byte(u.Rights)
	return out
}

func DecodeURefWire(b []byte) (types.URef, error) {
	if len(b) < 33 {
		return types.URef{}, fmt.Errorf("exec: short uref wire bytes")
	}
	var addr types.Hash32
	copy(addr[:], b[:32])
	return types.URef{Addr: addr, Rights: types.AccessRights(b[32])}, nil
}

// EncodeStoredValueWire serializes the one StoredValue variant the guest
// ABI actually exchanges directly — a plain CLValue (spec §4.6: reads/writes
// through the ABI only ever carry CLValues; Account/Contract/ContractPackage
// values are host-side only and never cross into guest memory). Any other
// tag is an internal-only value and is never offered to a module, so
// encoding it here is a programming error, not a guest-triggerable fault.
func EncodeStoredValueWire(v types.StoredValue) ([]byte, error) {
	if v.Tag != types.SVCLValue || v.CLValue == nil {
		return nil, fmt.Errorf("exec: %s is not guest-exchangeable", v.TypeName())
	}
	return EncodeCLValueWire(*v.CLValue), nil
}

// DecodeStoredValueWire is EncodeStoredValueWire's inverse: every value a
// guest writes into global state arrives as a CLValue.
func DecodeStoredValueWire(b []byte) (types.StoredValue, error) {
	cl, err := DecodeCLValueWire(b)
	if err != nil {
		return types.StoredValue{}, err
	}
	return types.StoredValue{Tag: types.SVCLValue, CLValue: &cl}, nil
}

// EncodeRuntimeArgsWire serializes a RuntimeArgs bag for the call_contract/
// call_versioned_contract ABI entries as [count:u32 LE] followed by that
// many [namelen:u32][name][clvalue wire] entries.
func EncodeRuntimeArgsWire(args types.RuntimeArgs) []byte {
	names := make([]string, 0, len(args))
	for name := range args {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(names)))
	out = append(out, count[:]...)
	for _, name := range names {
		var nameLen [4]byte
		binary.LittleEndian.PutUint32(nameLen[:], uint32(len(name)))
		out = append(out, nameLen[:]...)
		out = append(out, name...)
		out = append(out, EncodeCLValueWire(args[name])...)
	}
	return out
}

// DecodeRuntimeArgsWire is EncodeRuntimeArgsWire's inverse.
func DecodeRuntimeArgsWire(b []byte) (types.RuntimeArgs, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("exec: truncated runtime args wire bytes")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	args := types.NewRuntimeArgs()
	for i := uint32(0); i < count; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("exec: truncated runtime args wire bytes")
		}
		nameLen := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < nameLen {
			return nil, fmt.Errorf("exec: truncated runtime args wire bytes")
		}
		name := string(b[:nameLen])
		b = b[nameLen:]
		cl, err := DecodeCLValueWire(b)
		if err != nil {
			return nil, err
		}
		args[name] = cl
		consumed := 1 + 4 + len(cl.Bytes)
		if len(b) < consumed {
			return nil, fmt.Errorf("exec: truncated runtime args wire bytes")
		}
		b = b[consumed:]
	}
	return args, nil
}

// EncodeEntryPointWire serializes one EntryPoint as
// [retType:1][accessTag:1][paramCount:u32][name:u32+bytes,type:1]*
// [groupCount:u32][group:u32+bytes]* (accessTag 0 = Public, 1 = group-gated)
// [epType:1].
func EncodeEntryPointWire(ep types.EntryPoint) []byte {
	var out []byte
	out = append(out, byte(ep.RetType))
	if ep.Access.Public {
		out = append(out, 0)
	} else {
		out = append(out, 1)
	}
	var n [4]byte
	binary.LittleEndian.PutUint32(n[:], uint32(len(ep.Args)))
	out = append(out, n[:]...)
	for _, p := range ep.Args {
		var nl [4]byte
		binary.LittleEndian.PutUint32(nl[:], uint32(len(p.Name)))
		out = append(out, nl[:]...)
		out = append(out, p.Name...)
		out = append(out, byte(p.Type))
	}
	groups := make([]string, 0, len(ep.Access.Groups))
	for g := range ep.Access.Groups {
		groups = append(groups, g)
	}
	sort.Strings(groups)
	var gn [4]byte
	binary.LittleEndian.PutUint32(gn[:], uint32(len(groups)))
	out = append(out, gn[:]...)
	for _, g := range groups {
		var gl [4]byte
		binary.LittleEndian.PutUint32(gl[:], uint32(len(g)))
		out = append(out, gl[:]...)
		out = append(out, g...)
	}
	out = append(out, byte(ep.Type))
	return out
}

// DecodeEntryPointsWire decodes a [count:u32][name:u32+bytes, entry point
// wire]* blob of entry-point definitions, the shape add_contract_version
// expects for its entryPoints argument.
func DecodeEntryPointsWire(b []byte) (map[string]types.EntryPoint, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("exec: truncated entry points wire bytes")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	out := make(map[string]types.EntryPoint, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("exec: truncated entry points wire bytes")
		}
		nameLen := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		if uint32(len(b)) < nameLen {
			return nil, fmt.Errorf("exec: truncated entry points wire bytes")
		}
		name := string(b[:nameLen])
		b = b[nameLen:]

		if len(b) < 10 {
			return nil, fmt.Errorf("exec: truncated entry point wire bytes")
		}
		ep := types.EntryPoint{Name: name, RetType: types.CLType(b[0])}
		isGroupGated := b[1] != 0
		b = b[2:]
		argCount := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		ep.Args = make([]types.Parameter, 0, argCount)
		for j := uint32(0); j < argCount; j++ {
			pNameLen := binary.LittleEndian.Uint32(b[:4])
			b = b[4:]
			pName := string(b[:pNameLen])
			b = b[pNameLen:]
			ep.Args = append(ep.Args, types.Parameter{Name: pName, Type: types.CLType(b[0])})
			b = b[1:]
		}
		groupCount := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		groups := make(map[string]struct{}, groupCount)
		for j := uint32(0); j < groupCount; j++ {
			gLen := binary.LittleEndian.Uint32(b[:4])
			b = b[4:]
			groups[string(b[:gLen])] = struct{}{}
			b = b[gLen:]
		}
		ep.Access = types.EntryPointAccess{Public: !isGroupGated, Groups: groups}
		ep.Type = types.EntryPointType(b[0])
		b = b[1:]
		out[name] = ep
	}
	return out, nil
}

// EncodeHashListWire serializes a list of 32-byte hashes for
// load_authorization_keys as [count:u32 LE] followed by that many 32-byte
// addresses, in the order given.
func EncodeHashListWire(hashes []types.Hash32) []byte {
	out := make([]byte, 0, 4+len(hashes)*32)
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(hashes)))
	out = append(out, count[:]...)
	for _, h := range hashes {
		out = append(out, h[:]...)
	}
	return out
}

// EncodeCallStackWire serializes the active call stack for load_call_stack
// as [count:u32 LE] followed by that many [frame type:1 byte][key wire]
// entries, bottom frame first (matching CallStack's own append order).
func EncodeCallStackWire(stack []CallStackElement) []byte {
	var out []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(stack)))
	out = append(out, count[:]...)
	for _, frame := range stack {
		out = append(out, byte(frame.Type))
		out = append(out, EncodeKeyWire(frame.Key)...)
	}
	return out
}

// EncodeNamedKeysWire serializes a named-key map for load_named_keys as
// [count:u32 LE] followed by that many [namelen:u32][name][key wire] entries.
func EncodeNamedKeysWire(keys map[string]types.Key) ([]byte, error) {
	names := make([]string, 0, len(keys))
	for name := range keys {
		names = append(names, name)
	}
	sort.Strings(names)

	var out []byte
	var count [4]byte
	binary.LittleEndian.PutUint32(count[:], uint32(len(names)))
	out = append(out, count[:]...)
	for _, name := range names {
		var nameLen [4]byte
		binary.LittleEndian.PutUint32(nameLen[:], uint32(len(name)))
		out = append(out, nameLen[:]...)
		out = append(out, name...)
		out = append(out, EncodeKeyWire(keys[name])...)
	}
	return out, nil
}

// DecodeNamedKeysWire is EncodeNamedKeysWire's inverse, used to decode the
// namedKeys argument a guest passes to add_contract_version.
func DecodeNamedKeysWire(b []byte) (map[string]types.Key, error) {
	if len(b) < 4 {
		return nil, fmt.Errorf("exec: truncated named keys wire bytes")
	}
	count := binary.LittleEndian.Uint32(b[:4])
	b = b[4:]
	out := make(map[string]types.Key, count)
	for i := uint32(0); i < count; i++ {
		if len(b) < 4 {
			return nil, fmt.Errorf("exec: truncated named keys wire bytes")
		}
		nameLen := binary.LittleEndian.Uint32(b[:4])
		b = b[4:]
		name := string(b[:nameLen])
		b = b[nameLen:]
		key, err := DecodeKeyWire(b)
		if err != nil {
			return nil, err
		}
		out[name] = key
		consumed := 1 + 32
		if key.Tag == types.KeyURef {
			consumed = 1 + 32 + 1
		} else if key.Tag == types.KeyEraInfo {
			consumed = 1 + 8
		}
		if len(b) < consumed {
			return nil, fmt.Errorf("exec: truncated named keys wire bytes")
		}
		b = b[consumed:]
	}
	return out, nil
}
