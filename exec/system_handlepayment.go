package exec

import (
	"fmt"
	"math/big"

	"synnergy-core/engine"
	"synnergy-core/state"
	"synnergy-core/types"
)

// The handle_payment system contract accumulates deploy payment into one
// purse during execution and routes it at FinalizePayment according to the
// chain's configured FeeHandling policy. Grounded on the teacher's
// distribution.go shape (iterate configured recipients, credit ledger
// balances) applied to the three-way PayToProposer|Accumulate|Burn switch
// spec §6 defines.

const paymentPurseNamedKey = "payment_purse"

// paymentPurse returns the handle_payment contract's accumulating purse,
// creating one (and recording it under the contract's own named keys) on
// first use.
func (rt *Runtime) paymentPurse(handlePaymentHash types.Hash32) (types.URef, error) {
	contract, err := rt.Context.TrackingCopy.GetContract(handlePaymentHash)
	if err != nil {
		return types.URef{}, types.NewExecutionError(types.ErrInvalidContext, err.Error())
	}
	if key, ok := contract.NamedKeys[paymentPurseNamedKey]; ok && key.Tag == types.KeyURef {
		rt.Context.GrantAccess(key.URef.Addr, types.RightsReadAddWrite)
		return key.URef, nil
	}

	purse, err := rt.CreatePurse()
	if err != nil {
		return types.URef{}, err
	}
	updated := *contract
	updated.NamedKeys = make(map[string]types.Key, len(contract.NamedKeys)+1)
	for k, v := range contract.NamedKeys {
		updated.NamedKeys[k] = v
	}
	updated.NamedKeys[paymentPurseNamedKey] = types.NewURefKey(purse)
	rt.Context.TrackingCopy.Write(types.NewHashKey(handlePaymentHash), types.StoredValue{Tag: types.SVContract, Contract: &updated})
	return purse, nil
}

// runHandlePayment dispatches one handle_payment entry point.
func (rt *Runtime) runHandlePayment(entryPoint string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	cost, ok := rt.EngineConfig.System.HandlePaymentCosts[entryPoint]
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("exec: handle_payment has no entry point %q", entryPoint))
	}
	if !rt.reentrantSystemCall() {
		if err := rt.Context.ChargeGas(cost); err != nil {
			return nil, nil, err
		}
	}

	switch entryPoint {
	case "finalize_payment":
		return rt.finalizePayment(args)
	default:
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("exec: handle_payment has no entry point %q", entryPoint))
	}
}

// finalizePayment implements `finalize_payment`: refunds the unspent
// portion of the deploy's payment purse back to the account, then routes
// the spent portion per rt.EngineConfig.FeeHandling.
func (rt *Runtime) finalizePayment(args types.RuntimeArgs) ([]byte, []types.URef, error) {
	handlePaymentHash, ok := rt.SystemContracts[state.SystemContractHandlePayment]
	if !ok {
		panic("exec: finalize_payment: handle_payment missing from system contract registry")
	}
	purse, err := rt.paymentPurse(handlePaymentHash)
	if err != nil {
		return nil, nil, err
	}

	spentArg, ok := args.Get("spent_amount")
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: finalize_payment: missing \"spent_amount\"")
	}
	spent := new(big.Int).SetBytes(spentArg.Bytes)

	total, err := rt.readBalance(purse.Addr)
	if err != nil {
		return nil, nil, err
	}
	refund := new(big.Int).Sub(total, spent)
	if refund.Sign() < 0 {
		return nil, nil, types.NewExecutionError(types.ErrInvalidArgument, "exec: finalize_payment: spent_amount exceeds collected payment")
	}

	if refund.Sign() > 0 {
		if err := rt.transferBalance(purse.Addr, rt.Context.Account.MainPurse.Addr, refund); err != nil {
			return nil, nil, err
		}
	}
	if spent.Sign() == 0 {
		return nil, nil, nil
	}

	switch rt.EngineConfig.FeeHandling {
	case engine.Burn:
		return nil, nil, rt.Context.TrackingCopy.AddBigInt(types.NewBalanceKey(purse.Addr), new(big.Int).Neg(spent))
	case engine.Accumulate:
		// Spent motes stay put in the payment purse; a separate reward
		// distribution step (outside this engine's scope) drains it
		// periodically.
		return nil, nil, nil
	case engine.PayToProposer:
		fallthrough
	default:
		proposerArg, ok := args.Get("proposer")
		if !ok {
			return nil, nil, types.NewExecutionError(types.ErrMissingArgument, "exec: finalize_payment: missing \"proposer\"")
		}
		var proposer types.Hash32
		copy(proposer[:], proposerArg.Bytes)
		proposerPurse, err := rt.ensureAccount(proposer)
		if err != nil {
			return nil, nil, err
		}
		return nil, nil, rt.transferBalance(purse.Addr, proposerPurse.Addr, spent)
	}
}
