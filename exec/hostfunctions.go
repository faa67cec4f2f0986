package exec

import (
	"encoding/binary"
	"math/big"

	"synnergy-core/engine"
	"synnergy-core/types"
)

// This file builds the "env" import namespace a module is instantiated
// against (spec §4.5/§4.6): every function decodes its i32 pointer/size
// arguments out of guest memory, calls the matching Runtime method, and
// either stages an oversized result in the host buffer or writes a
// fixed-size result directly to a caller-provided out-pointer — the same
// split the ABI description in spec §6 calls for. Most functions first
// charge their tabulated cost through chargeHostCall, and `gas` charges its
// own argument; has_key, remove_key, get_caller, get_blocktime, get_phase,
// is_valid_uref, get_balance, dictionary_get, read_host_buffer,
// get_named_arg, load_named_keys, random_bytes, revert and ret charge no
// gas.

const (
	apiSuccess int32 = 0
	apiBuffer  int32 = -1
)

// apiErrorOf maps a trapped *types.ExecutionError back to its recoverable
// ApiError code when one applies, so host functions that are allowed to
// return an error code instead of trapping (spec §4.6's three-tier model)
// can do so. Kinds with no natural ApiError counterpart still trap.
func apiErrorOf(err error) (types.ApiError, bool) {
	ee, ok := err.(*types.ExecutionError)
	if !ok {
		return 0, false
	}
	switch ee.Kind {
	case types.ErrInvalidArgument:
		return types.ApiInvalidArgument, true
	case types.ErrMissingArgument:
		return types.ApiMissingArgument, true
	case types.ErrForgedReference:
		return types.ApiForgedReference, true
	case types.ErrNoSuchMethod:
		return types.ApiContractNotFound, true
	case types.ErrHostBufferFull:
		return types.ApiHostBufferFull, true
	case types.ErrBufferTooSmall:
		return types.ApiBufferTooSmall, true
	case types.ErrDictionaryItemKeyExceedsLength:
		return types.ApiDictionaryItemKeyExceedsLength, true
	case types.ErrInvalidContext:
		return types.ApiInvalidContext, true
	default:
		return 0, false
	}
}

// asApiReturn converts a host-method error into (i32 return value, trap
// error): callers that can recover pass back the ApiError code as a
// positive i32, everything else propagates as a Go error and traps the
// instance.
func asApiReturn(err error) (int32, error) {
	if err == nil {
		return apiSuccess, nil
	}
	if code, ok := apiErrorOf(err); ok {
		return int32(code), nil
	}
	return 0, err
}

// BuildHostFunctionTable wires rt's domain methods into the ABI namespace.
func BuildHostFunctionTable(rt *Runtime) engine.HostFunctionTable {
	t := engine.HostFunctionTable{}

	t["gas"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(_ engine.FunctionContext, args []int32) (int32, error) {
		if err := rt.Context.ChargeGas(uint64(uint32(args[0]))); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["read"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		keyPtr, keySize, outSizePtr := args[0], args[1], args[2]
		keyBytes, err := readMem(ctx, keyPtr, keySize)
		if err != nil {
			return 0, err
		}
		key, err := DecodeKeyWire(keyBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("read", len(keyBytes)); err != nil {
			return 0, err
		}
		val, found, err := rt.ReadValue(key)
		if code, recovered := asApiReturn(err); err != nil && recovered {
			return code, nil
		} else if err != nil {
			return 0, err
		}
		if !found {
			return int32(types.ApiValueNotFound), nil
		}
		wire, err := EncodeStoredValueWire(val)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, outSizePtr, uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["write"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		keyPtr, keySize, valPtr, valSize := args[0], args[1], args[2], args[3]
		keyBytes, err := readMem(ctx, keyPtr, keySize)
		if err != nil {
			return 0, err
		}
		key, err := DecodeKeyWire(keyBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		valBytes, err := readMem(ctx, valPtr, valSize)
		if err != nil {
			return 0, err
		}
		value, err := DecodeStoredValueWire(valBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("write", len(keyBytes), len(valBytes)); err != nil {
			return 0, err
		}
		if err := rt.WriteValue(key, value); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["add"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		keyBytes, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		key, err := DecodeKeyWire(keyBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		valBytes, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		cl, err := DecodeCLValueWire(valBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("add", len(valBytes)); err != nil {
			return 0, err
		}
		if err := rt.AddValue(key, cl); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["new_uref"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		outPtr, valPtr, valSize := args[0], args[1], args[2]
		valBytes, err := readMem(ctx, valPtr, valSize)
		if err != nil {
			return 0, err
		}
		sv, err := DecodeStoredValueWire(valBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("new_uref", len(valBytes)); err != nil {
			return 0, err
		}
		u, err := rt.NewURef(sv)
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, outPtr, EncodeURefWire(u)); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["get_key"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		namePtr, nameSize, outSizePtr := args[0], args[1], args[2]
		name, err := readMem(ctx, namePtr, nameSize)
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("get_key", len(name)); err != nil {
			return 0, err
		}
		key, ok := rt.GetKey(string(name))
		if !ok {
			return int32(types.ApiGetKey), nil
		}
		wire := EncodeKeyWire(key)
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, outSizePtr, uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["has_key"] = engine.HostFunctionSpec{ParamCount: 2, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		name, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		if rt.HasKey(string(name)) {
			return 1, nil
		}
		return 0, nil
	}}

	t["remove_key"] = engine.HostFunctionSpec{ParamCount: 2, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		name, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		rt.RemoveKey(string(name))
		return apiSuccess, nil
	}}

	t["put_key"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		name, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		keyBytes, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		key, err := DecodeKeyWire(keyBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("put_key", len(name)); err != nil {
			return 0, err
		}
		if err := rt.PutKey(string(name), key); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["get_caller"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		caller := rt.GetCaller()
		if err := writeMem(ctx, args[0], caller[:]); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["get_blocktime"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		var b [8]byte
		binary.LittleEndian.PutUint64(b[:], rt.GetBlocktime())
		if err := writeMem(ctx, args[0], b[:]); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["get_phase"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		if err := writeMem(ctx, args[0], []byte{byte(rt.GetPhase())}); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["is_valid_uref"] = engine.HostFunctionSpec{ParamCount: 2, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		b, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		u, err := DecodeURefWire(b)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if rt.IsValidURef(u) {
			return 1, nil
		}
		return 0, nil
	}}

	t["create_purse"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		if err := rt.chargeHostCall("create_purse"); err != nil {
			return 0, err
		}
		u, err := rt.CreatePurse()
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[0], EncodeURefWire(u)); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["get_balance"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		b, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		purse, err := DecodeURefWire(b)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		bal, err := rt.GetBalance(purse)
		if err != nil {
			return asApiReturn(err)
		}
		wire := EncodeCLValueWire(types.CLValue{Type: types.CLU512, Bytes: bal.Bytes()})
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[2], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["transfer_from_purse_to_purse"] = engine.HostFunctionSpec{ParamCount: 5, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		sb, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		source, err := DecodeURefWire(sb)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		tb, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		target, err := DecodeURefWire(tb)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		amount, err := readAmount(ctx, args[4])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("transfer_from_purse_to_purse"); err != nil {
			return 0, err
		}
		if err := rt.TransferFromPurseToPurse(source, target, amount); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["transfer_to_account"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		ab, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var target types.Hash32
		copy(target[:], ab)
		amount, err := readAmount(ctx, args[1])
		if err != nil {
			return 0, err
		}
		id, err := readOptionalID(ctx, args[2])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("transfer_to_account"); err != nil {
			return 0, err
		}
		addr, err := rt.TransferToAccount(target, amount, id)
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[3], addr[:]); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["transfer_from_purse_to_account"] = engine.HostFunctionSpec{ParamCount: 6, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		sb, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		source, err := DecodeURefWire(sb)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		ab, err := readMem(ctx, args[2], 32)
		if err != nil {
			return 0, err
		}
		var target types.Hash32
		copy(target[:], ab)
		amount, err := readAmount(ctx, args[3])
		if err != nil {
			return 0, err
		}
		id, err := readOptionalID(ctx, args[4])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("transfer_from_purse_to_account"); err != nil {
			return 0, err
		}
		addr, err := rt.TransferFromPurseToAccount(source, target, amount, id)
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[5], addr[:]); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["new_dictionary"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		if err := rt.chargeHostCall("new_dictionary"); err != nil {
			return 0, err
		}
		u, err := rt.NewDictionary()
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[0], EncodeURefWire(u)); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["dictionary_put"] = engine.HostFunctionSpec{ParamCount: 5, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		ub, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		seed, err := DecodeURefWire(ub)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		itemKey, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		// args[4] would be the value ptr/size pair in a 6-arg ABI variant;
		// kept at 5 params by staging the value through the host buffer
		// instead, matching read/get_key's pattern.
		val, ok := rt.takeHostBuffer()
		if !ok {
			return 0, types.NewExecutionError(types.ErrMissingArgument, "exec: dictionary_put: no staged value")
		}
		sv, err := DecodeStoredValueWire(val)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("dictionary_put", len(val)); err != nil {
			return 0, err
		}
		if err := rt.DictionaryPut(seed, itemKey, sv); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["dictionary_get"] = engine.HostFunctionSpec{ParamCount: 5, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		ub, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		seed, err := DecodeURefWire(ub)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		itemKey, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		val, found, err := rt.DictionaryGet(seed, itemKey)
		if err != nil {
			return asApiReturn(err)
		}
		if !found {
			return int32(types.ApiValueNotFound), nil
		}
		wire, err := EncodeStoredValueWire(val)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[4], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["dictionary_read"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		keyBytes, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		key, err := DecodeKeyWire(keyBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("dictionary_read", len(keyBytes)); err != nil {
			return 0, err
		}
		val, found, err := rt.DictionaryRead(key)
		if err != nil {
			return asApiReturn(err)
		}
		if !found {
			return int32(types.ApiValueNotFound), nil
		}
		wire, err := EncodeStoredValueWire(val)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[2], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["read_host_buffer"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		destPtr, destSize, bytesWrittenPtr := args[0], args[1], args[2]
		val, ok := rt.takeHostBuffer()
		if !ok {
			return int32(types.ApiHostBufferEmpty), nil
		}
		if uint32(len(val)) > uint32(destSize) {
			return int32(types.ApiBufferTooSmall), nil
		}
		if err := writeMem(ctx, destPtr, val); err != nil {
			return 0, err
		}
		if err := writeU32(ctx, bytesWrittenPtr, uint32(len(val))); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["get_named_arg"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		name, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		cl, ok := rt.Context.Args.Get(string(name))
		if !ok {
			return int32(types.ApiMissingArgument), nil
		}
		wire := EncodeCLValueWire(cl)
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[2], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["load_named_keys"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		wire, err := EncodeNamedKeysWire(rt.LoadNamedKeys())
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[0], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["load_authorization_keys"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		wire := EncodeHashListWire(rt.LoadAuthorizationKeys())
		if err := rt.chargeHostCall("load_authorization_keys", len(wire)); err != nil {
			return 0, err
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[0], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["load_call_stack"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		wire := EncodeCallStackWire(rt.LoadCallStack())
		if err := rt.chargeHostCall("load_call_stack", len(wire)); err != nil {
			return 0, err
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[0], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["blake2b"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		input, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("blake2b", len(input)); err != nil {
			return 0, err
		}
		out := rt.Blake2b(input)
		if err := writeMem(ctx, args[2], out[:]); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["random_bytes"] = engine.HostFunctionSpec{ParamCount: 2, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		n := int(uint32(args[1]))
		out, err := rt.RandomBytes(n)
		if err != nil {
			return 0, err
		}
		if err := writeMem(ctx, args[0], out); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["call_contract"] = engine.HostFunctionSpec{ParamCount: 6, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		hashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var contractHash types.Hash32
		copy(contractHash[:], hashBytes)
		entryName, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		argsBytes, err := readMem(ctx, args[3], args[4])
		if err != nil {
			return 0, err
		}
		callArgs, err := DecodeRuntimeArgsWire(argsBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("call_contract", len(argsBytes)); err != nil {
			return 0, err
		}
		value, _, err := rt.CallContract(contractHash, string(entryName), callArgs)
		if err != nil {
			return asApiReturn(err)
		}
		if err := rt.stageHostBuffer(value); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[5], uint32(len(value))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["call_versioned_contract"] = engine.HostFunctionSpec{ParamCount: 7, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		hashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], hashBytes)
		var version *uint32
		if args[1] >= 0 {
			v := uint32(args[1])
			version = &v
		}
		entryName, err := readMem(ctx, args[2], args[3])
		if err != nil {
			return 0, err
		}
		argsBytes, err := readMem(ctx, args[4], args[5])
		if err != nil {
			return 0, err
		}
		callArgs, err := DecodeRuntimeArgsWire(argsBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("call_versioned_contract", len(argsBytes)); err != nil {
			return 0, err
		}
		value, _, err := rt.CallVersionedContract(pkgHash, version, string(entryName), callArgs)
		if err != nil {
			return asApiReturn(err)
		}
		if err := rt.stageHostBuffer(value); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[6], uint32(len(value))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["create_contract_package_at_hash"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		isLocked := args[0] != 0
		if err := rt.chargeHostCall("create_contract_package_at_hash"); err != nil {
			return 0, err
		}
		pkgHash, accessURef, err := rt.CreateContractPackageAtHash(isLocked)
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[1], pkgHash[:]); err != nil {
			return 0, err
		}
		if err := writeMem(ctx, args[2], EncodeURefWire(accessURef)); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["add_contract_version"] = engine.HostFunctionSpec{ParamCount: 7, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		pkgHashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], pkgHashBytes)
		epBytes, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		entryPoints, err := DecodeEntryPointsWire(epBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		nkBytes, err := readMem(ctx, args[3], args[4])
		if err != nil {
			return 0, err
		}
		namedKeys, err := DecodeNamedKeysWire(nkBytes)
		if err != nil {
			return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
		}
		if err := rt.chargeHostCall("add_contract_version", len(epBytes), len(nkBytes)); err != nil {
			return 0, err
		}
		contractHash, version, err := rt.AddContractVersion(pkgHash, entryPoints, namedKeys)
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[5], contractHash[:]); err != nil {
			return 0, err
		}
		if err := writeU32(ctx, args[6], version); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["create_contract_user_group"] = engine.HostFunctionSpec{ParamCount: 5, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		pkgHashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], pkgHashBytes)
		label, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		numNew := uint8(uint32(args[3]))
		if err := rt.chargeHostCall("create_contract_user_group"); err != nil {
			return 0, err
		}
		fresh, err := rt.CreateContractUserGroup(pkgHash, string(label), numNew, nil)
		if err != nil {
			return asApiReturn(err)
		}
		var wire []byte
		for _, u := range fresh {
			wire = append(wire, EncodeURefWire(u)...)
		}
		if err := rt.stageHostBuffer(wire); err != nil {
			code, _ := asApiReturn(err)
			return code, nil
		}
		if err := writeU32(ctx, args[4], uint32(len(wire))); err != nil {
			return 0, err
		}
		return apiBuffer, nil
	}}

	t["provision_contract_user_group_uref"] = engine.HostFunctionSpec{ParamCount: 4, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		pkgHashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], pkgHashBytes)
		label, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("provision_contract_user_group_uref"); err != nil {
			return 0, err
		}
		u, err := rt.ProvisionContractUserGroupURef(pkgHash, string(label))
		if err != nil {
			return asApiReturn(err)
		}
		if err := writeMem(ctx, args[3], EncodeURefWire(u)); err != nil {
			return 0, err
		}
		return apiSuccess, nil
	}}

	t["remove_contract_user_group"] = engine.HostFunctionSpec{ParamCount: 3, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		pkgHashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], pkgHashBytes)
		label, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		if err := rt.chargeHostCall("remove_contract_user_group"); err != nil {
			return 0, err
		}
		if err := rt.RemoveContractUserGroup(pkgHash, string(label)); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["remove_contract_user_group_urefs"] = engine.HostFunctionSpec{ParamCount: 5, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		pkgHashBytes, err := readMem(ctx, args[0], 32)
		if err != nil {
			return 0, err
		}
		var pkgHash types.Hash32
		copy(pkgHash[:], pkgHashBytes)
		label, err := readMem(ctx, args[1], args[2])
		if err != nil {
			return 0, err
		}
		urefBytes, err := readMem(ctx, args[3], args[4])
		if err != nil {
			return 0, err
		}
		if len(urefBytes)%33 != 0 {
			return 0, types.NewExecutionError(types.ErrInterpreter, "exec: remove_contract_user_group_urefs: malformed uref list")
		}
		urefs := make([]types.URef, 0, len(urefBytes)/33)
		for i := 0; i < len(urefBytes); i += 33 {
			u, err := DecodeURefWire(urefBytes[i : i+33])
			if err != nil {
				return 0, types.NewExecutionError(types.ErrInterpreter, err.Error())
			}
			urefs = append(urefs, u)
		}
		if err := rt.chargeHostCall("remove_contract_user_group_urefs"); err != nil {
			return 0, err
		}
		if err := rt.RemoveContractUserGroupURefs(pkgHash, string(label), urefs); err != nil {
			return asApiReturn(err)
		}
		return apiSuccess, nil
	}}

	t["revert"] = engine.HostFunctionSpec{ParamCount: 1, Func: func(_ engine.FunctionContext, args []int32) (int32, error) {
		return 0, rt.Revert(types.ApiError(args[0]))
	}}

	t["ret"] = engine.HostFunctionSpec{ParamCount: 2, Func: func(ctx engine.FunctionContext, args []int32) (int32, error) {
		val, err := readMem(ctx, args[0], args[1])
		if err != nil {
			return 0, err
		}
		return 0, rt.Ret(val, nil)
	}}

	return t
}

// readAmount decodes a fixed 32-byte big-endian U512 amount argument,
// the fixed-width encoding transfer entry points use for the one numeric
// argument that is always present (spec §6: fixed-size ABI values skip the
// host-buffer staging protocol entirely).
func readAmount(ctx engine.FunctionContext, ptr int32) (*big.Int, error) {
	b, err := readMem(ctx, ptr, 32)
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(b), nil
}

// readOptionalID decodes a 9-byte [present:1][id:u64 LE] optional transfer
// ID argument.
func readOptionalID(ctx engine.FunctionContext, ptr int32) (*uint64, error) {
	b, err := readMem(ctx, ptr, 9)
	if err != nil {
		return nil, err
	}
	if b[0] == 0 {
		return nil, nil
	}
	v := binary.LittleEndian.Uint64(b[1:9])
	return &v, nil
}
