package engine

import (
	"encoding/binary"
	"fmt"

	"synnergy-core/types"
)

const (
	wasmMagic   = 0x6D736100 // "\0asm"
	wasmVersion = 1
)

type sectionID byte

const (
	secCustom   sectionID = 0
	secType     sectionID = 1
	secImport   sectionID = 2
	secFunction sectionID = 3
	secTable    sectionID = 4
	secMemory   sectionID = 5
	secGlobal   sectionID = 6
	secExport   sectionID = 7
	secStart    sectionID = 8
	secElement  sectionID = 9
	secCode     sectionID = 10
	secData     sectionID = 11
)

// funcType is a minimal parse of the Type section's entries: parameter and
// result counts, which is all preprocessing needs to enforce
// MaxParameterCount.
type funcType struct {
	paramCount  uint32
	resultCount uint32
}

// PreprocessedModule is the artifact preprocess returns: the original
// module bytes (kept for instantiation — this preprocessor validates and
// prices the module rather than rewriting its bytecode, so no `gas()` calls
// and no stack-height checks are injected into the function bodies; the only
// gas charged while a module runs is the RuntimeContext's ChargeGas around
// host calls, and opcode execution itself is not metered) plus the
// metadata the engine needs to reject a module before spending any gas.
type PreprocessedModule struct {
	Bytes         []byte
	MemoryPages   uint32
	TableSize     uint32
	GlobalCount   uint32
	FunctionTypes []funcType
	ImportNames   []string
	ExportNames   map[string]uint32
	HasStart      bool
}

// Preprocess validates raw module bytes against cfg and returns a
// PreprocessedModule artifact, or one of the typed PreprocessingError kinds
// spec §4.5 names (Deserialize, MissingMemorySection, WasmValidation,
// OperationForbiddenByGasRules). The StackLimiter kind is never returned:
// no stack-height limiter is injected.
//
// This is hand-rolled rather than backed by a third-party WASM validation
// library: none of the example repos in the retrieved pack import one (the
// teacher's own WASM support in core/virtual_machine.go hands raw bytes
// straight to wasmer-go, which validates structurally but has no Go-level
// hook for this engine's domain-specific limits — max globals, forbidden
// opcodes, br_table arity — so those checks are necessarily native code).
func Preprocess(raw []byte, cfg WasmConfig) (*PreprocessedModule, error) {
	r := &byteReader{buf: raw}

	magic, ok := r.readU32LE()
	if !ok || magic != wasmMagic {
		return nil, types.NewPreprocessingError(types.PreDeserialize, "engine: bad wasm magic")
	}
	version, ok := r.readU32LE()
	if !ok || version != wasmVersion {
		return nil, types.NewPreprocessingError(types.PreDeserialize, "engine: unsupported wasm version")
	}

	mod := &PreprocessedModule{Bytes: raw, ExportNames: make(map[string]uint32)}
	haveMemory := false

	for !r.atEnd() {
		id, ok := r.readByte()
		if !ok {
			return nil, types.NewPreprocessingError(types.PreDeserialize, "engine: truncated section header")
		}
		size, ok := r.readULEB32()
		if !ok {
			return nil, types.NewPreprocessingError(types.PreDeserialize, "engine: truncated section size")
		}
		body, ok := r.slice(int(size))
		if !ok {
			return nil, types.NewPreprocessingError(types.PreDeserialize, "engine: section body overruns module")
		}
		sr := &byteReader{buf: body}

		switch sectionID(id) {
		case secType:
			if err := parseTypeSection(sr, mod, cfg); err != nil {
				return nil, err
			}
		case secImport:
			if err := parseImportSection(sr, mod); err != nil {
				return nil, err
			}
		case secTable:
			if err := parseTableSection(sr, mod, cfg); err != nil {
				return nil, err
			}
		case secMemory:
			haveMemory = true
			if err := parseMemorySection(sr, mod, cfg); err != nil {
				return nil, err
			}
		case secGlobal:
			if err := parseGlobalSection(sr, mod, cfg); err != nil {
				return nil, err
			}
		case secExport:
			if err := parseExportSection(sr, mod); err != nil {
				return nil, err
			}
		case secStart:
			mod.HasStart = true
		case secCode:
			if err := validateCodeSection(sr, cfg); err != nil {
				return nil, err
			}
		}
	}

	if !haveMemory {
		return nil, types.NewPreprocessingError(types.PreMissingMemorySection, "engine: module declares no memory section")
	}
	if mod.HasStart {
		return nil, types.NewPreprocessingError(types.PreWasmValidation, "engine: start section is forbidden")
	}
	for _, name := range mod.ImportNames {
		if name == "env.gas" {
			return nil, types.NewPreprocessingError(types.PreWasmValidation, "engine: import of reserved name env.gas is forbidden")
		}
	}
	if mod.GlobalCount > cfg.MaxGlobals {
		return nil, types.NewPreprocessingError(types.PreWasmValidation,
			fmt.Sprintf("engine: global count %d exceeds max_globals %d", mod.GlobalCount, cfg.MaxGlobals))
	}
	return mod, nil
}

func parseTypeSection(r *byteReader, mod *PreprocessedModule, cfg WasmConfig) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated type section")
	}
	mod.FunctionTypes = make([]funcType, 0, count)
	for i := uint32(0); i < count; i++ {
		form, ok := r.readByte()
		if !ok || form != 0x60 {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: malformed func type")
		}
		paramCount, ok := r.readULEB32()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated param count")
		}
		if paramCount > cfg.MaxParameterCount {
			return types.NewPreprocessingError(types.PreWasmValidation,
				fmt.Sprintf("engine: function has %d parameters, exceeds max %d", paramCount, cfg.MaxParameterCount))
		}
		if !r.skip(int(paramCount)) {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated param types")
		}
		resultCount, ok := r.readULEB32()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated result count")
		}
		if !r.skip(int(resultCount)) {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated result types")
		}
		mod.FunctionTypes = append(mod.FunctionTypes, funcType{paramCount: paramCount, resultCount: resultCount})
	}
	return nil
}

func parseImportSection(r *byteReader, mod *PreprocessedModule) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import section")
	}
	for i := uint32(0); i < count; i++ {
		module, ok := r.readName()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import module name")
		}
		field, ok := r.readName()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import field name")
		}
		kind, ok := r.readByte()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import kind")
		}
		mod.ImportNames = append(mod.ImportNames, module+"."+field)
		switch kind {
		case 0x00: // func
			if !r.skipULEB() {
				return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import func type index")
			}
		case 0x01: // table
			if !r.skip(1) || !r.skipLimits() {
				return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import table")
			}
		case 0x02: // memory
			if !r.skipLimits() {
				return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import memory")
			}
		case 0x03: // global
			if !r.skip(2) {
				return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated import global")
			}
		default:
			return types.NewPreprocessingError(types.PreDeserialize, "engine: unknown import kind")
		}
	}
	return nil
}

func parseTableSection(r *byteReader, mod *PreprocessedModule, cfg WasmConfig) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated table section")
	}
	if count > 1 {
		return types.NewPreprocessingError(types.PreWasmValidation, "engine: at most one table entry is permitted")
	}
	for i := uint32(0); i < count; i++ {
		if !r.skip(1) {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated table elemtype")
		}
		min, _, ok := r.readLimits()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated table limits")
		}
		mod.TableSize = min
		if min > cfg.MaxTableSize {
			return types.NewPreprocessingError(types.PreWasmValidation,
				fmt.Sprintf("engine: table size %d exceeds max_table_size %d", min, cfg.MaxTableSize))
		}
	}
	return nil
}

func parseMemorySection(r *byteReader, mod *PreprocessedModule, cfg WasmConfig) error {
	count, ok := r.readULEB32()
	if !ok || count == 0 {
		return types.NewPreprocessingError(types.PreMissingMemorySection, "engine: empty memory section")
	}
	min, max, ok := r.readLimits()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated memory limits")
	}
	mod.MemoryPages = min
	effectiveMax := max
	if effectiveMax == 0 {
		effectiveMax = min
	}
	if effectiveMax > cfg.MaxMemory {
		return types.NewPreprocessingError(types.PreWasmValidation,
			fmt.Sprintf("engine: memory max %d pages exceeds max_memory %d", effectiveMax, cfg.MaxMemory))
	}
	return nil
}

func parseGlobalSection(r *byteReader, mod *PreprocessedModule, cfg WasmConfig) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated global section")
	}
	mod.GlobalCount += count
	// Global init expressions are skipped structurally: each is a single
	// constant instruction (i32.const/i64.const/global.get) followed by
	// 0x0B (end); we don't need their values for validation.
	for i := uint32(0); i < count; i++ {
		if !r.skip(2) { // valtype + mutability
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated global header")
		}
		if !r.skipConstExpr() {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated global init expr")
		}
	}
	return nil
}

func parseExportSection(r *byteReader, mod *PreprocessedModule) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated export section")
	}
	for i := uint32(0); i < count; i++ {
		name, ok := r.readName()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated export name")
		}
		if !r.skip(1) {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated export kind")
		}
		idx, ok := r.readULEB32()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated export index")
		}
		mod.ExportNames[name] = idx
	}
	return nil
}

// validateCodeSection walks every function body looking for forbidden
// (float) opcodes and a br_table whose arity exceeds the configured limit.
// It does not build a control-flow graph and injects nothing: no
// stack-height limit is applied to the module, and the only gas charged at
// run time is the RuntimeContext's own ChargeGas ledger, consulted by the
// host ABI on host calls.
func validateCodeSection(r *byteReader, cfg WasmConfig) error {
	count, ok := r.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated code section")
	}
	for i := uint32(0); i < count; i++ {
		bodySize, ok := r.readULEB32()
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated function body size")
		}
		body, ok := r.slice(int(bodySize))
		if !ok {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: function body overruns code section")
		}
		if err := scanFunctionBody(body, cfg); err != nil {
			return err
		}
	}
	return nil
}

func scanFunctionBody(body []byte, cfg WasmConfig) error {
	br := &byteReader{buf: body}
	localDeclCount, ok := br.readULEB32()
	if !ok {
		return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated local decl count")
	}
	for i := uint32(0); i < localDeclCount; i++ {
		if !br.skipULEB() || !br.skip(1) {
			return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated local decl")
		}
	}
	for !br.atEnd() {
		b, ok := br.readByte()
		if !ok {
			break
		}
		op := Opcode(b)
		if op.IsFloat() {
			return types.NewPreprocessingError(types.PreOperationForbiddenByGasRules,
				fmt.Sprintf("engine: forbidden non-deterministic opcode 0x%02x", b))
		}
		if op == OpBrTable {
			n, ok := br.readULEB32()
			if !ok {
				return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated br_table")
			}
			if n > cfg.BrTableMaxSize {
				return types.NewPreprocessingError(types.PreWasmValidation,
					fmt.Sprintf("engine: br_table arity %d exceeds br_table_max_size %d", n, cfg.BrTableMaxSize))
			}
			for j := uint32(0); j <= n; j++ {
				if !br.skipULEB() {
					return types.NewPreprocessingError(types.PreDeserialize, "engine: truncated br_table targets")
				}
			}
		}
	}
	return nil
}

// byteReader is a minimal forward-only cursor over a WASM binary section,
// implementing just the LEB128 and fixed-width reads preprocessing needs.
type byteReader struct {
	buf []byte
	pos int
}

func (r *byteReader) atEnd() bool { return r.pos >= len(r.buf) }

func (r *byteReader) readByte() (byte, bool) {
	if r.pos >= len(r.buf) {
		return 0, false
	}
	b := r.buf[r.pos]
	r.pos++
	return b, true
}

func (r *byteReader) readU32LE() (uint32, bool) {
	if r.pos+4 > len(r.buf) {
		return 0, false
	}
	v := binary.LittleEndian.Uint32(r.buf[r.pos:])
	r.pos += 4
	return v, true
}

func (r *byteReader) readULEB32() (uint32, bool) {
	var result uint32
	var shift uint
	for {
		if r.pos >= len(r.buf) {
			return 0, false
		}
		b := r.buf[r.pos]
		r.pos++
		result |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
		if shift >= 35 {
			return 0, false
		}
	}
}

func (r *byteReader) skipULEB() bool {
	_, ok := r.readULEB32()
	return ok
}

func (r *byteReader) skip(n int) bool {
	if r.pos+n > len(r.buf) {
		return false
	}
	r.pos += n
	return true
}

func (r *byteReader) slice(n int) ([]byte, bool) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, false
	}
	s := r.buf[r.pos : r.pos+n]
	r.pos += n
	return s, true
}

func (r *byteReader) readName() (string, bool) {
	n, ok := r.readULEB32()
	if !ok {
		return "", false
	}
	s, ok := r.slice(int(n))
	if !ok {
		return "", false
	}
	return string(s), true
}

// readLimits parses a WASM "limits" structure (0x00 min | 0x01 min max).
func (r *byteReader) readLimits() (min, max uint32, ok bool) {
	flag, ok := r.readByte()
	if !ok {
		return 0, 0, false
	}
	min, ok = r.readULEB32()
	if !ok {
		return 0, 0, false
	}
	if flag == 1 {
		max, ok = r.readULEB32()
		if !ok {
			return 0, 0, false
		}
		return min, max, true
	}
	return min, 0, true
}

func (r *byteReader) skipLimits() bool {
	_, _, ok := r.readLimits()
	return ok
}

// skipConstExpr skips a single-instruction constant expression terminated
// by 0x0B (end): i32.const/i64.const take a signed LEB immediate,
// global.get takes an index, and f32.const/f64.const are skipped over their
// 4- or 8-byte immediates and accepted (global init expressions are not
// covered by validateCodeSection's forbidden-opcode scan). Any other opcode
// is read with no immediate, so it passes only if the next byte is end.
func (r *byteReader) skipConstExpr() bool {
	op, ok := r.readByte()
	if !ok {
		return false
	}
	switch Opcode(op) {
	case OpI32Const, OpI64Const, OpGlobalGet:
		if !r.skipULEB() {
			return false
		}
	case OpF32Const:
		if !r.skip(4) {
			return false
		}
	case OpF64Const:
		if !r.skip(8) {
			return false
		}
	}
	end, ok := r.readByte()
	return ok && end == byte(OpEnd)
}
