package engine

import (
	"testing"

	"synnergy-core/types"
)

// section builds a WASM section (id byte, ULEB128 size, body) for hand
// assembled test modules. Every body used in this file is well under 128
// bytes, so a single-byte ULEB128 size suffices.
func section(id byte, body []byte) []byte {
	if len(body) >= 128 {
		panic("test section body too large for single-byte ULEB128 size")
	}
	out := []byte{id, byte(len(body))}
	return append(out, body...)
}

func wasmHeader() []byte {
	return []byte{0x00, 0x61, 0x73, 0x6D, 0x01, 0x00, 0x00, 0x00}
}

func buildModule(sections ...[]byte) []byte {
	out := wasmHeader()
	for _, s := range sections {
		out = append(out, s...)
	}
	return out
}

func validMemorySection() []byte {
	return section(byte(secMemory), []byte{0x01, 0x00, 0x01}) // count=1, flag=0, min=1
}

func preErrKind(t *testing.T, err error) types.PreprocessingErrorKind {
	t.Helper()
	pe, ok := err.(*types.PreprocessingError)
	if !ok {
		t.Fatalf("want *types.PreprocessingError, got %T (%v)", err, err)
	}
	return pe.Kind
}

func TestPreprocessAcceptsMinimalValidModule(t *testing.T) {
	typeSec := section(byte(secType), []byte{0x01, 0x60, 0x00, 0x00}) // 1 func type, no params/results
	funcSec := section(byte(secFunction), []byte{0x01, 0x00})         // 1 func, type index 0
	codeSec := section(byte(secCode), []byte{0x01, 0x02, 0x00, 0x0B}) // 1 body: 0 locals, end

	raw := buildModule(typeSec, funcSec, validMemorySection(), codeSec)

	mod, err := Preprocess(raw, DefaultWasmConfig())
	if err != nil {
		t.Fatalf("preprocess: %v", err)
	}
	if mod.MemoryPages != 1 {
		t.Fatalf("want MemoryPages=1, got %d", mod.MemoryPages)
	}
	if mod.HasStart {
		t.Fatal("want HasStart=false")
	}
	if len(mod.FunctionTypes) != 1 || mod.FunctionTypes[0].paramCount != 0 {
		t.Fatalf("want one zero-arg function type, got %+v", mod.FunctionTypes)
	}
}

func TestPreprocessRejectsBadMagic(t *testing.T) {
	raw := buildModule()
	raw[0] = 0xFF

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for corrupt magic bytes")
	}
	if kind := preErrKind(t, err); kind != types.PreDeserialize {
		t.Fatalf("want PreDeserialize, got %v", kind)
	}
}

func TestPreprocessRejectsMissingMemorySection(t *testing.T) {
	raw := buildModule()

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for a module with no memory section")
	}
	if kind := preErrKind(t, err); kind != types.PreMissingMemorySection {
		t.Fatalf("want PreMissingMemorySection, got %v", kind)
	}
}

func TestPreprocessRejectsStartSection(t *testing.T) {
	startSec := section(byte(secStart), nil)
	raw := buildModule(validMemorySection(), startSec)

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for a module declaring a start section")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsReservedGasImport(t *testing.T) {
	importBody := []byte{0x01, 0x03, 'e', 'n', 'v', 0x03, 'g', 'a', 's', 0x00, 0x00}
	importSec := section(byte(secImport), importBody)
	raw := buildModule(validMemorySection(), importSec)

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error importing the reserved env.gas name")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsGlobalCountExceedingMax(t *testing.T) {
	globalEntry := []byte{0x7F, 0x00, 0x41, 0x00, 0x0B} // i32, immutable, i32.const 0, end
	globalBody := append([]byte{0x02}, append(append([]byte{}, globalEntry...), globalEntry...)...)
	globalSec := section(byte(secGlobal), globalBody)
	raw := buildModule(validMemorySection(), globalSec)

	cfg := DefaultWasmConfig()
	cfg.MaxGlobals = 1

	_, err := Preprocess(raw, cfg)
	if err == nil {
		t.Fatal("want error when global count exceeds max_globals")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsForbiddenFloatOpcode(t *testing.T) {
	codeSec := section(byte(secCode), []byte{0x01, 0x02, 0x00, 0x92}) // 0 locals, f32.add-ish float opcode
	raw := buildModule(codeSec)

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for a forbidden float opcode")
	}
	if kind := preErrKind(t, err); kind != types.PreOperationForbiddenByGasRules {
		t.Fatalf("want PreOperationForbiddenByGasRules, got %v", kind)
	}
}

func TestPreprocessRejectsBrTableExceedingMax(t *testing.T) {
	// 0 locals, br_table with arity 2 (n+1=3 targets), each target index 0.
	body := []byte{0x00, byte(OpBrTable), 0x02, 0x00, 0x00, 0x00}
	codeSec := section(byte(secCode), append([]byte{0x01, byte(len(body))}, body...))
	raw := buildModule(codeSec)

	cfg := DefaultWasmConfig()
	cfg.BrTableMaxSize = 1

	_, err := Preprocess(raw, cfg)
	if err == nil {
		t.Fatal("want error when br_table arity exceeds br_table_max_size")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsMultipleTableEntries(t *testing.T) {
	tableSec := section(byte(secTable), []byte{0x02})
	raw := buildModule(tableSec)

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for a module declaring more than one table")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsMemoryExceedingMax(t *testing.T) {
	memSec := section(byte(secMemory), []byte{0x01, 0x01, 0x01, 0x64}) // count=1, flag=1, min=1, max=100
	raw := buildModule(memSec)

	cfg := DefaultWasmConfig() // MaxMemory defaults to 64
	_, err := Preprocess(raw, cfg)
	if err == nil {
		t.Fatal("want error when declared memory max exceeds max_memory")
	}
	if kind := preErrKind(t, err); kind != types.PreWasmValidation {
		t.Fatalf("want PreWasmValidation, got %v", kind)
	}
}

func TestPreprocessRejectsTruncatedModule(t *testing.T) {
	raw := wasmHeader()
	raw = append(raw, byte(secMemory)) // section id with no size or body

	_, err := Preprocess(raw, DefaultWasmConfig())
	if err == nil {
		t.Fatal("want error for a module truncated mid-section-header")
	}
	if kind := preErrKind(t, err); kind != types.PreDeserialize {
		t.Fatalf("want PreDeserialize, got %v", kind)
	}
}
