package types

import (
	"fmt"
	"math/big"
)

// RuntimeArgs is the named, typed argument bag passed into a deploy's
// session/payment code or a contract call (spec §4.4/§4.8).
type RuntimeArgs map[string]CLValue

// NewRuntimeArgs builds an empty argument bag.
func NewRuntimeArgs() RuntimeArgs { return make(RuntimeArgs) }

// Get returns the named argument, if present.
func (a RuntimeArgs) Get(name string) (CLValue, bool) {
	v, ok := a[name]
	return v, ok
}

// Amount extracts the "amount" argument as a big.Int, the precondition
// check the executor runs before building a RuntimeContext (spec §4.8: "it
// extracts amount from args as the spending limit (precondition failure if
// absent/malformed)").
func (a RuntimeArgs) Amount() (*big.Int, error) {
	v, ok := a["amount"]
	if !ok {
		return nil, fmt.Errorf("types: missing required \"amount\" argument")
	}
	if v.Type != CLU512 && v.Type != CLU64 && v.Type != CLU128 && v.Type != CLU256 {
		return nil, fmt.Errorf("types: \"amount\" argument has non-numeric type %v", v.Type)
	}
	return new(big.Int).SetBytes(v.Bytes), nil
}
