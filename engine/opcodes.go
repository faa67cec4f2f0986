package engine

import "github.com/sirupsen/logrus"

// Opcode identifies a WASM instruction by its single-byte (or, for the
// handful of multi-byte extension opcodes, its first-byte) encoding, the
// same granularity the injected gas() counter charges against.
//
// Grounded on core/vm_opcodes.go / core/opcode_dispatcher.go's
// `type Opcode uint32` + iota-enumerated constant block convention,
// narrowed to uint8 to match the WASM binary format's actual opcode width.
type Opcode byte

const (
	OpUnreachable Opcode = 0x00
	OpNop         Opcode = 0x01
	OpBlock       Opcode = 0x02
	OpLoop        Opcode = 0x03
	OpIf          Opcode = 0x04
	OpElse        Opcode = 0x05
	OpEnd         Opcode = 0x0B
	OpBr          Opcode = 0x0C
	OpBrIf        Opcode = 0x0D
	OpBrTable     Opcode = 0x0E
	OpReturn      Opcode = 0x0F
	OpCall        Opcode = 0x10
	OpCallIndirect Opcode = 0x11
	OpDrop        Opcode = 0x1A
	OpSelect      Opcode = 0x1B
	OpLocalGet    Opcode = 0x20
	OpLocalSet    Opcode = 0x21
	OpLocalTee    Opcode = 0x22
	OpGlobalGet   Opcode = 0x23
	OpGlobalSet   Opcode = 0x24
	OpI32Load     Opcode = 0x28
	OpI64Load     Opcode = 0x29
	OpI32Store    Opcode = 0x36
	OpI64Store    Opcode = 0x37
	OpMemorySize  Opcode = 0x3F
	OpMemoryGrow  Opcode = 0x40
	OpI32Const    Opcode = 0x41
	OpI64Const    Opcode = 0x42
	OpF32Const    Opcode = 0x43
	OpF64Const    Opcode = 0x44
	OpI32Eqz      Opcode = 0x45
	OpI32Add      Opcode = 0x6A
	OpI32Sub      Opcode = 0x6B
	OpI32Mul      Opcode = 0x6C
	OpI64Add      Opcode = 0x7C
	OpI64Sub      Opcode = 0x7D
	OpI64Mul      Opcode = 0x7E

	// Float opcode range: f32.* and f64.* numeric instructions are
	// forbidden by spec §6 as non-deterministic. 0x8B..0xBF holds the float
	// arithmetic and the conversions that take or produce a float; the
	// three integer-only conversions inside it (0xA7, 0xAC, 0xAD) are
	// excluded by IsFloat. Float loads/stores (0x2A, 0x2B, 0x38, 0x39),
	// f32.const/f64.const (0x43, 0x44) and the float comparisons
	// (0x5B..0x66) lie outside the range and are not reported as float.
	opFloatRangeStart Opcode = 0x8B
	opFloatRangeEnd   Opcode = 0xBF
)

// IsFloat reports whether op falls in the forbidden float numeric-opcode
// range (spec §1's non-goals and §6's "forbidden features"), minus the
// integer-only conversions that sit inside it.
func (op Opcode) IsFloat() bool {
	switch op {
	case 0xA7, 0xAC, 0xAD: // i32.wrap_i64, i64.extend_i32_s, i64.extend_i32_u
		return false
	}
	return op >= opFloatRangeStart && op <= opFloatRangeEnd
}

// DefaultGasCost is charged for any opcode encountered that has no entry in
// the cost table — set deliberately high, matching the teacher's
// gas_table.go policy of a punitive fallback plus a single log line per
// miss.
const DefaultGasCost uint64 = 1000

var loggedMissingOpcodes = make(map[Opcode]bool)

// OpcodeCost returns costs[op]'s base cost, logging (once per opcode) and
// falling back to DefaultGasCost when op has no tabulated entry.
func OpcodeCost(costs map[Opcode]uint64, op Opcode) uint64 {
	if cost, ok := costs[op]; ok {
		return cost
	}
	if !loggedMissingOpcodes[op] {
		loggedMissingOpcodes[op] = true
		logrus.WithField("opcode", op).Warn("engine: missing gas cost for opcode, charging default")
	}
	return DefaultGasCost
}

// DefaultOpcodeCosts mirrors core/gas_table.go's flat map-literal shape,
// priced per WASM instruction instead of per chain opcode.
func DefaultOpcodeCosts() map[Opcode]uint64 {
	return map[Opcode]uint64{
		OpUnreachable:  1,
		OpNop:          1,
		OpBlock:        1,
		OpLoop:         1,
		OpIf:           1,
		OpElse:         1,
		OpEnd:          1,
		OpBr:           2,
		OpBrIf:         3,
		OpBrTable:      4,
		OpReturn:       1,
		OpCall:         100,
		OpCallIndirect: 200,
		OpDrop:         1,
		OpSelect:       2,
		OpLocalGet:     1,
		OpLocalSet:     1,
		OpLocalTee:     1,
		OpGlobalGet:    2,
		OpGlobalSet:    3,
		OpI32Load:      10,
		OpI64Load:      12,
		OpI32Store:     10,
		OpI64Store:     12,
		OpMemorySize:    5,
		OpMemoryGrow:    500,
		OpI32Const:      1,
		OpI64Const:      1,
		OpI32Eqz:        1,
		OpI32Add:        2,
		OpI32Sub:        2,
		OpI32Mul:        3,
		OpI64Add:        2,
		OpI64Sub:        2,
		OpI64Mul:        3,
	}
}

// DefaultHostFunctionCosts prices the ABI surface described in spec §4.6.
func DefaultHostFunctionCosts() map[string]HostFunctionCost {
	return map[string]HostFunctionCost{
		"read":                             {Base: 2_500_000, PerByteArg: 10},
		"write":                            {Base: 14_000_000, PerByteArg: 30},
		"add":                              {Base: 10_000_000, PerByteArg: 30},
		"new_uref":                         {Base: 2_500_000, PerByteArg: 10},
		"get_key":                          {Base: 1_500_000, PerByteArg: 10},
		"put_key":                          {Base: 2_000_000, PerByteArg: 10},
		"remove_key":                       {Base: 1_500_000},
		"has_key":                          {Base: 500_000},
		"get_caller":                       {Base: 500_000},
		"get_blocktime":                    {Base: 300_000},
		"get_phase":                        {Base: 300_000},
		"is_valid_uref":                    {Base: 300_000},
		"create_purse":                     {Base: 2_500_000_000},
		"transfer_from_purse_to_purse":     {Base: 10_000_000},
		"transfer_from_purse_to_account":   {Base: 2_500_000_000},
		"transfer_to_account":              {Base: 2_500_000_000},
		"get_balance":                      {Base: 3_000_000},
		"load_named_keys":                  {Base: 2_000_000, PerByteArg: 10},
		"load_authorization_keys":          {Base: 2_000_000, PerByteArg: 10},
		"load_call_stack":                  {Base: 2_000_000, PerByteArg: 10},
		"create_contract_package_at_hash":  {Base: 200_000_000},
		"add_contract_version":             {Base: 2_500_000_000, PerByteArg: 10},
		"create_contract_user_group":       {Base: 200_000_000},
		"provision_contract_user_group_uref": {Base: 50_000_000},
		"remove_contract_user_group":       {Base: 50_000_000},
		"remove_contract_user_group_urefs": {Base: 50_000_000},
		"call_contract":                    {Base: 2_500_000_000, PerByteArg: 10},
		"call_versioned_contract":          {Base: 2_500_000_000, PerByteArg: 10},
		"new_dictionary":                   {Base: 2_500_000},
		"dictionary_get":                   {Base: 5_000_000, PerByteArg: 10},
		"dictionary_put":                   {Base: 14_000_000, PerByteArg: 30},
		"dictionary_read":                  {Base: 5_000_000, PerByteArg: 10},
		"blake2b":                          {Base: 1_000_000, PerByteArg: 10},
		"random_bytes":                     {Base: 500_000, PerByteArg: 5},
		"revert":                           {Base: 500_000},
		"ret":                              {Base: 500_000, PerByteArg: 10},
		"read_host_buffer":                 {Base: 1_500_000, PerByteArg: 5},
	}
}
