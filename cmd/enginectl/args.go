package main

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"synnergy-core/types"
)

// parseRuntimeArgs turns a list of "name=type:value" flags into a
// types.RuntimeArgs bag. Supported types: u64, u512 (decimal big.Int),
// bytes (hex), string, bool, hash (32-byte hex, used for account/contract
// references).
func parseRuntimeArgs(raw []string) (types.RuntimeArgs, error) {
	args := types.NewRuntimeArgs()
	for _, entry := range raw {
		name, spec, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("enginectl: malformed --arg %q, want name=type:value", entry)
		}
		typ, value, ok := strings.Cut(spec, ":")
		if !ok {
			return nil, fmt.Errorf("enginectl: malformed --arg %q, want name=type:value", entry)
		}

		switch typ {
		case "u64":
			n, err := strconv.ParseUint(value, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("enginectl: --arg %s: %w", name, err)
			}
			args[name] = types.CLValue{Type: types.CLU64, Bytes: new(big.Int).SetUint64(n).Bytes()}
		case "u512":
			n, ok := new(big.Int).SetString(value, 10)
			if !ok {
				return nil, fmt.Errorf("enginectl: --arg %s: invalid decimal integer %q", name, value)
			}
			args[name] = types.CLValue{Type: types.CLU512, Bytes: n.Bytes()}
		case "bytes":
			b, err := hex.DecodeString(value)
			if err != nil {
				return nil, fmt.Errorf("enginectl: --arg %s: %w", name, err)
			}
			args[name] = types.CLValue{Type: types.CLByteArray, Bytes: b}
		case "hash":
			b, err := hex.DecodeString(value)
			if err != nil || len(b) != 32 {
				return nil, fmt.Errorf("enginectl: --arg %s: want 32-byte hex hash", name)
			}
			args[name] = types.CLValue{Type: types.CLKey, Bytes: b}
		case "string":
			args[name] = types.CLValue{Type: types.CLString, Bytes: []byte(value)}
		case "bool":
			b, err := strconv.ParseBool(value)
			if err != nil {
				return nil, fmt.Errorf("enginectl: --arg %s: %w", name, err)
			}
			v := byte(0)
			if b {
				v = 1
			}
			args[name] = types.CLValue{Type: types.CLBool, Bytes: []byte{v}}
		default:
			return nil, fmt.Errorf("enginectl: --arg %s: unknown type %q", name, typ)
		}
	}
	return args, nil
}

func parseHash(hexStr string) (types.Hash32, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil || len(b) != 32 {
		return types.Hash32{}, fmt.Errorf("enginectl: want 32-byte hex hash, got %q", hexStr)
	}
	var h types.Hash32
	copy(h[:], b)
	return h, nil
}
