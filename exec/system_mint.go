package exec

import (
	"fmt"
	"math/big"

	"synnergy-core/types"
)

// The mint system contract owns purse creation, balance queries, transfers
// and the one genuinely privileged operation: minting new supply. Grounded
// on the teacher's Coin supply-cap manager (a mutex-guarded totalMinted
// counter checked against MaxSupply on every Mint call); this mint keeps no
// minted-total counter and enforces no supply cap.

// runMint dispatches one mint entry point.
func (rt *Runtime) runMint(entryPoint string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	cost, ok := rt.EngineConfig.System.MintCosts[entryPoint]
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("exec: mint has no entry point %q", entryPoint))
	}
	if !rt.reentrantSystemCall() {
		if err := rt.Context.ChargeGas(cost); err != nil {
			return nil, nil, err
		}
	}

	switch entryPoint {
	case "mint":
		return rt.mintMint(args)
	case "create":
		u, err := rt.CreatePurse()
		if err != nil {
			return nil, nil, err
		}
		return EncodeURefWire(u), []types.URef{u}, nil
	case "balance":
		return rt.mintBalance(args)
	case "transfer":
		return rt.mintTransfer(args)
	default:
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("exec: mint has no entry point %q", entryPoint))
	}
}

// mintMint implements the privileged supply-expansion entry point: credits
// a fresh purse with amount motes out of nothing; no supply cap bounds the
// amount. Only
// reachable from the auction system contract's own seigniorage code path in
// a production deployment; this engine does not itself enforce that
// caller restriction, leaving it to how the genesis process wires
// entry-point group access (spec's Open Question: "mint access control is a
// deployment concern, not a protocol one").
func (rt *Runtime) mintMint(args types.RuntimeArgs) ([]byte, []types.URef, error) {
	amountArg, ok := args.Get("amount")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: mint: missing \"amount\"")
	}
	amount := new(big.Int).SetBytes(amountArg.Bytes)

	purse, err := rt.CreatePurse()
	if err != nil {
		return nil, nil, err
	}
	if err := rt.Context.TrackingCopy.AddBigInt(types.NewBalanceKey(purse.Addr), amount); err != nil {
		return nil, nil, err
	}
	return EncodeURefWire(purse), []types.URef{purse}, nil
}

func (rt *Runtime) mintBalance(args types.RuntimeArgs) ([]byte, []types.URef, error) {
	purseArg, ok := args.Get("purse")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: mint: missing \"purse\"")
	}
	purse, err := DecodeURefWire(purseArg.Bytes)
	if err != nil {
		return nil, nil, types.NewExecutionError(types.ErrInvalidArgument, err.Error())
	}
	bal, err := rt.GetBalance(purse)
	if err != nil {
		return nil, nil, err
	}
	return EncodeCLValueWire(types.CLValue{Type: types.CLU512, Bytes: bal.Bytes()}), nil, nil
}

func (rt *Runtime) mintTransfer(args types.RuntimeArgs) ([]byte, []types.URef, error) {
	sourceArg, ok := args.Get("source")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: mint: missing \"source\"")
	}
	targetArg, ok := args.Get("target")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: mint: missing \"target\"")
	}
	amountArg, ok := args.Get("amount")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: mint: missing \"amount\"")
	}
	source, err := DecodeURefWire(sourceArg.Bytes)
	if err != nil {
		return nil, nil, types.NewExecutionError(types.ErrInvalidArgument, err.Error())
	}
	target, err := DecodeURefWire(targetArg.Bytes)
	if err != nil {
		return nil, nil, types.NewExecutionError(types.ErrInvalidArgument, err.Error())
	}
	amount := new(big.Int).SetBytes(amountArg.Bytes)
	if err := rt.TransferFromPurseToPurse(source, target, amount); err != nil {
		return nil, nil, err
	}
	return nil, nil, nil
}
