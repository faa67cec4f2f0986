// Package engine implements the WASM engine abstraction described in spec
// §4.5: preprocessing/validation, instrumentation bookkeeping, and the
// pluggable WasmModule/WasmInstance capability that hides the concrete
// backend (interpreted, AOT, JIT, singlepass) from the executor.
package engine

// ExecutionMode selects which concrete WasmModule/WasmInstance backend a
// preprocessed module is instantiated with.
type ExecutionMode byte

const (
	Interpreted ExecutionMode = iota
	Compiled                  // ahead-of-time, via wasmer-go's default (Cranelift) compiler
	JIT
	Singlepass
)

func (m ExecutionMode) String() string {
	switch m {
	case Interpreted:
		return "interpreted"
	case Compiled:
		return "compiled"
	case JIT:
		return "jit"
	case Singlepass:
		return "singlepass"
	default:
		return "unknown-execution-mode"
	}
}

// WasmConfig bounds the shape of an acceptable module and selects the
// execution backend (spec §6's "configuration surface").
type WasmConfig struct {
	MaxMemory         uint32 // pages (64KiB units)
	MaxStackHeight    uint32
	MaxTableSize      uint32
	BrTableMaxSize    uint32
	MaxGlobals        uint32
	MaxParameterCount uint32
	OpcodeCosts       map[Opcode]uint64
	HostFunctionCosts map[string]HostFunctionCost
	ExecutionMode     ExecutionMode
}

// HostFunctionCost is a base cost plus a per-argument-byte linear weight,
// the shape spec §6 calls out for the gas cost table.
type HostFunctionCost struct {
	Base         uint64
	PerByteArg   uint64
}

// DefaultWasmConfig returns conservative production-sized limits, grounded
// on casper-node's published defaults (see original_source/ if present) and
// kept in the same ballpark the teacher's own gas_table.go uses for its
// DefaultGasCost fallback (punitive-but-not-absurd).
func DefaultWasmConfig() WasmConfig {
	return WasmConfig{
		MaxMemory:         64,
		MaxStackHeight:    65536,
		MaxTableSize:      4096,
		BrTableMaxSize:    256,
		MaxGlobals:        256,
		MaxParameterCount: 32,
		OpcodeCosts:       DefaultOpcodeCosts(),
		HostFunctionCosts: DefaultHostFunctionCosts(),
		ExecutionMode:     Compiled,
	}
}

// ChainKind distinguishes a permissionless Public network from a
// permissioned Private one, affecting fee/delegation policy.
type ChainKind byte

const (
	ChainPublic ChainKind = iota
	ChainPrivate
)

// FeeHandling selects what happens to payment fees collected at
// FinalizePayment.
type FeeHandling byte

const (
	PayToProposer FeeHandling = iota
	Accumulate
	Burn
)

// SystemConfig prices the native system contracts' entry points.
type SystemConfig struct {
	MintCosts          map[string]uint64
	AuctionCosts       map[string]uint64
	HandlePaymentCosts map[string]uint64
	StandardPaymentCost uint64
}

// DefaultSystemConfig mirrors the teacher's gas_table.go shape (a flat
// map plus a documented fallback) applied to the four native contracts'
// entry points instead of opcodes.
func DefaultSystemConfig() SystemConfig {
	return SystemConfig{
		MintCosts: map[string]uint64{
			"mint":     2_500_000_000,
			"create":   2_500_000_000,
			"transfer": 100_000_000,
			"balance":  10_000_000,
		},
		AuctionCosts: map[string]uint64{
			"run_auction": 10_000_000_000,
			"delegate":    2_500_000_000,
			"undelegate":  2_500_000_000,
			"slash":       2_500_000_000,
		},
		HandlePaymentCosts: map[string]uint64{
			"finalize_payment": 200_000_000,
		},
		StandardPaymentCost: 100_000_000,
	}
}

// EngineConfig is the top-level configuration object the executor is built
// from (spec §6).
type EngineConfig struct {
	Wasm                    WasmConfig
	System                  SystemConfig
	MaxQueryDepth           uint32
	StrictArgumentChecking  bool
	MinimumDelegationAmount uint64
	ChainKind               ChainKind
	FeeHandling             FeeHandling
}

// DefaultEngineConfig returns the engine's out-of-the-box configuration.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Wasm:                    DefaultWasmConfig(),
		System:                  DefaultSystemConfig(),
		MaxQueryDepth:           5,
		StrictArgumentChecking:  true,
		MinimumDelegationAmount: 500_000_000_000,
		ChainKind:               ChainPublic,
		FeeHandling:             PayToProposer,
	}
}
