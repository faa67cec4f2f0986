package engine

import (
	"fmt"

	"github.com/wasmerio/wasmer-go/wasmer"

	"synnergy-core/types"
)

// FunctionContext is the capability a host function receives to touch the
// running instance's linear memory (spec §4.5 item 4).
type FunctionContext interface {
	MemoryRead(offset, size uint32) ([]byte, error)
	MemoryWrite(offset uint32, data []byte) error
}

// HostFunc is a single ABI entry point. Every host function in this engine
// takes a fixed number of i32 (pointer/size/handle) arguments and returns a
// single i32 following the ABI-wide convention documented in spec §6:
// 0 = success, -1 = success-with-host-buffer, >0 = ApiError code. A non-nil
// error traps the instance; *types.ExecutionError traps carry a typed
// kind the caller recovers, anything else is wrapped as Interpreter.
type HostFunc func(ctx FunctionContext, args []int32) (int32, error)

// HostFunctionSpec pairs a HostFunc with its WASM-visible arity.
type HostFunctionSpec struct {
	ParamCount int
	Func       HostFunc
}

// HostFunctionTable is the full "env" import namespace a module is
// instantiated against.
type HostFunctionTable map[string]HostFunctionSpec

// WasmModule is a preprocessed, not-yet-instantiated module. Grounded on
// core/virtual_machine.go's HeavyVM, which holds a *wasmer.Engine and
// builds a fresh *wasmer.Store/Module per execution; this abstraction
// generalizes that one concrete (wasmer AOT) path into the
// Interpreted|Compiled|JIT|Singlepass variant set spec §9 calls for.
type WasmModule interface {
	Instantiate(hosts HostFunctionTable) (WasmInstance, error)
}

// WasmInstance is a module bound to one set of host functions and one
// linear memory, ready to invoke an export.
type WasmInstance interface {
	Invoke(entryPoint string) error
	FunctionContext
	GasRemaining() uint64
}

// CompiledModule is the wasmer-go-backed WasmModule variant (engine's
// default Compiled execution mode; wasmer-go's own Cranelift compiler does
// the AOT compilation casper-node would otherwise hand to wasmtime/Wasmer's
// equivalent backend).
type CompiledModule struct {
	pre          *PreprocessedModule
	wasmerEngine *wasmer.Engine
	gasRemaining func() uint64
}

// NewCompiledModule wraps pre for instantiation against wasmerEngine.
// gasRemaining is supplied by the caller (the exec package's Runtime,
// which owns the authoritative gas ledger via RuntimeContext.ChargeGas) so
// WasmInstance.GasRemaining reports the same number the executor's
// ExecutionResult.GasUsed is built from.
func NewCompiledModule(pre *PreprocessedModule, wasmerEngine *wasmer.Engine, gasRemaining func() uint64) *CompiledModule {
	return &CompiledModule{pre: pre, wasmerEngine: wasmerEngine, gasRemaining: gasRemaining}
}

func (m *CompiledModule) Instantiate(hosts HostFunctionTable) (WasmInstance, error) {
	store := wasmer.NewStore(m.wasmerEngine)
	mod, err := wasmer.NewModule(store, m.pre.Bytes)
	if err != nil {
		return nil, types.NewPreprocessingError(types.PreDeserialize, fmt.Sprintf("engine: wasmer compile: %v", err))
	}

	inst := &CompiledInstance{gasRemaining: m.gasRemaining}
	imports := wasmer.NewImportObject()
	nsFuncs := make(map[string]wasmer.IntoExtern, len(hosts))
	for name, spec := range hosts {
		spec := spec
		params := make([]wasmer.ValueKind, spec.ParamCount)
		for i := range params {
			params[i] = wasmer.I32
		}
		fnType := wasmer.NewFunctionType(wasmer.NewValueTypes(params...), wasmer.NewValueTypes(wasmer.I32))
		fn := wasmer.NewFunction(store, fnType, func(vals []wasmer.Value) ([]wasmer.Value, error) {
			args := make([]int32, len(vals))
			for i, v := range vals {
				args[i] = v.I32()
			}
			ret, err := spec.Func(inst, args)
			if err != nil {
				return nil, err
			}
			return []wasmer.Value{wasmer.NewI32(ret)}, nil
		})
		nsFuncs[name] = fn
	}
	imports.Register("env", nsFuncs)

	instance, err := wasmer.NewInstance(mod, imports)
	if err != nil {
		return nil, types.NewExecutionError(types.ErrInterpreter, fmt.Sprintf("engine: instantiate: %v", err))
	}
	mem, err := instance.Exports.GetMemory("memory")
	if err != nil {
		return nil, types.NewPreprocessingError(types.PreMissingMemorySection, "engine: instance exports no memory")
	}
	inst.instance = instance
	inst.memory = mem
	return inst, nil
}

// CompiledInstance is the wasmer-go-backed WasmInstance.
type CompiledInstance struct {
	instance     *wasmer.Instance
	memory       *wasmer.Memory
	gasRemaining func() uint64
}

func (i *CompiledInstance) Invoke(entryPoint string) error {
	fn, err := i.instance.Exports.GetFunction(entryPoint)
	if err != nil {
		return types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("engine: export %q not found", entryPoint))
	}
	_, err = fn()
	return err
}

func (i *CompiledInstance) MemoryRead(offset, size uint32) ([]byte, error) {
	data := i.memory.Data()
	if uint64(offset)+uint64(size) > uint64(len(data)) {
		return nil, types.NewExecutionError(types.ErrInterpreter, "engine: memory_read out of bounds")
	}
	out := make([]byte, size)
	copy(out, data[offset:offset+size])
	return out, nil
}

func (i *CompiledInstance) MemoryWrite(offset uint32, b []byte) error {
	data := i.memory.Data()
	if uint64(offset)+uint64(len(b)) > uint64(len(data)) {
		return types.NewExecutionError(types.ErrInterpreter, "engine: memory_write out of bounds")
	}
	copy(data[offset:], b)
	return nil
}

func (i *CompiledInstance) GasRemaining() uint64 { return i.gasRemaining() }
