package trie

import (
	"encoding/json"
	"fmt"

	"synnergy-core/types"
)

// storedValueWire is the on-disk shape for a StoredValue. encoding/json is
// used rather than a hand-rolled binary layout because Go's encoder already
// guarantees deterministic key ordering for map[string]T (object keys are
// sorted), which is the only determinism property the trie's hashing needs
// from this internal (non-ABI) encoding; the WASM-facing wire format used by
// the host functions is a separate, simpler tagged-bytes layout (see
// exec/serialize.go) and is unaffected by this choice.
type storedValueWire struct {
	Tag             types.StoredValueTag
	CLValue         *types.CLValue         `json:",omitempty"`
	Account         *types.Account         `json:",omitempty"`
	Contract        *types.Contract        `json:",omitempty"`
	ContractPackage *types.ContractPackage `json:",omitempty"`
	ContractWasm    []byte                 `json:",omitempty"`
	Transfer        *types.TransferRecord  `json:",omitempty"`
	DeployInfo      *types.DeployInfo      `json:",omitempty"`
	EraInfo         *types.EraInfo         `json:",omitempty"`
	Bid             *types.Bid             `json:",omitempty"`
	Withdraw        *types.Withdraw        `json:",omitempty"`
}

func marshalStoredValue(v types.StoredValue) ([]byte, error) {
	w := storedValueWire{
		Tag:             v.Tag,
		CLValue:         v.CLValue,
		Account:         v.Account,
		Contract:        v.Contract,
		ContractPackage: v.ContractPackage,
		ContractWasm:    v.ContractWasm,
		Transfer:        v.Transfer,
		DeployInfo:      v.DeployInfo,
		EraInfo:         v.EraInfo,
		Bid:             v.Bid,
		Withdraw:        v.Withdraw,
	}
	return json.Marshal(w)
}

func unmarshalStoredValue(b []byte) (types.StoredValue, error) {
	var w storedValueWire
	if err := json.Unmarshal(b, &w); err != nil {
		return types.StoredValue{}, fmt.Errorf("trie: decode stored value: %w", err)
	}
	return types.StoredValue{
		Tag:             w.Tag,
		CLValue:         w.CLValue,
		Account:         w.Account,
		Contract:        w.Contract,
		ContractPackage: w.ContractPackage,
		ContractWasm:    w.ContractWasm,
		Transfer:        w.Transfer,
		DeployInfo:      w.DeployInfo,
		EraInfo:         w.EraInfo,
		Bid:             w.Bid,
		Withdraw:        w.Withdraw,
	}, nil
}
