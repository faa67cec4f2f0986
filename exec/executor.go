package exec

import (
	"fmt"
	"math/big"

	"synnergy-core/engine"
	"synnergy-core/state"
	"synnergy-core/types"
)

// This file implements the top-level executor (spec §4.8): one call to Exec
// runs a single request (a deploy's own module, or one entry point of a
// stored contract) against one TrackingCopy. ExecStandardPayment is the
// separate, WASM-less payment path; Exec itself does not run payment,
// session and finalize-payment in sequence.
//
// Grounded on core/execution_management.go's ExecutionManager, which pairs a
// ledger with a VM and runs a batch of transactions end to end; narrowed
// here to one request per call.

// ExecutionKind distinguishes running a deploy's own WASM module (Session
// phase of a fresh deploy) from invoking an already-stored Contract.
type ExecutionKind byte

const (
	ExecModule ExecutionKind = iota
	ExecStoredContract
)

// ExecutionRequest is everything Exec needs to run one deploy phase.
type ExecutionRequest struct {
	Kind ExecutionKind

	ModuleBytes    []byte        // ExecModule
	ContractHash   types.Hash32  // ExecStoredContract
	EntryPointName string        // ExecStoredContract, and the module's own export name

	Account           *types.Account
	AuthorizationKeys []types.Hash32
	Args              types.RuntimeArgs
	GasLimit          uint64

	Phase           types.Phase
	Blocktime       uint64
	DeployHash       types.Hash32
	ProtocolVersion types.ProtocolVersion
}

// ExecutionResult is Exec's outcome: Success retains the full journal
// produced by the call; Failure retains exactly the journal as it stood
// before the call started, discarding any partial writes the failing call
// itself made (spec §4.8/§7's "a failed execution's journal equals its
// pre-execution state" — only gas, charged straight onto the shared gas
// counter rather than through the journal, survives a failure).
type ExecutionResult struct {
	Success bool
	Error   error

	Journal   []types.JournalEntry
	GasUsed   uint64
	Transfers []types.Hash32

	ReturnValue []byte
}

// Exec runs req against tc (a single deploy phase's execution), resolving
// system contracts from systemAccount's named keys, charging gas against
// gasLimit, and returning an ExecutionResult whose Journal is ready to pass
// to trie.Store.Commit.
func Exec(
	req ExecutionRequest,
	tc *state.TrackingCopy,
	systemAccount types.Hash32,
	cfg engine.EngineConfig,
	cache *engine.PrecompileCache,
) ExecutionResult {
	systemContracts, err := tc.GetSystemContracts(systemAccount)
	if err != nil {
		// Absence of the system-contract registry is unrecoverable: nothing
		// in this engine can run without mint/auction/handle_payment
		// resolved, so this is a fatal panic rather than a returned error
		// (spec §7: "absence of the system-contract registry is a fatal
		// condition, not a recoverable execution failure").
		panic(fmt.Sprintf("exec: system contracts not resolvable from %s: %v", systemAccount, err))
	}

	spendingLimit, err := req.Args.Amount()
	if err != nil {
		return ExecutionResult{Success: false, Error: err}
	}

	addrGen := state.NewAddressGenerator(req.DeployHash, req.Phase)
	ctx := NewRootContext(
		req.Account,
		req.AuthorizationKeys,
		req.Args,
		req.GasLimit,
		spendingLimit,
		addrGen,
		tc,
		req.Phase,
		req.Blocktime,
		req.DeployHash,
		req.ProtocolVersion,
	)
	rt := NewRuntime(ctx, cfg, systemContracts, cache)
	preLen := tc.JournalLen()

	var execErr error
	var retValue []byte
	switch req.Kind {
	case ExecModule:
		rt.ModuleBytes = req.ModuleBytes
		retValue, _, execErr = rt.runModule(rt, req.ModuleBytes, req.EntryPointName)
	case ExecStoredContract:
		retValue, _, execErr = rt.CallContract(req.ContractHash, req.EntryPointName, req.Args)
	default:
		execErr = fmt.Errorf("exec: unknown execution kind %v", req.Kind)
	}

	if execErr != nil {
		return ExecutionResult{
			Success: false,
			Error:   execErr,
			Journal: tc.JournalUpTo(preLen),
			GasUsed: ctx.GasUsed(),
		}
	}
	return ExecutionResult{
		Success:     true,
		Journal:     tc.ExecutionJournal(),
		GasUsed:     ctx.GasUsed(),
		Transfers:   ctx.Transfers,
		ReturnValue: retValue,
	}
}

// ExecStandardPayment implements `exec_standard_payment` (spec §4.8): the
// built-in, WASM-less payment code path used when a deploy supplies no
// custom payment module — it simply debits the account's main purse by
// amount into the handle_payment contract's accumulating purse.
func ExecStandardPayment(
	account *types.Account,
	authKeys []types.Hash32,
	amount *big.Int,
	tc *state.TrackingCopy,
	systemAccount types.Hash32,
	cfg engine.EngineConfig,
	cache *engine.PrecompileCache,
	deployHash types.Hash32,
	blocktime uint64,
	protocolVersion types.ProtocolVersion,
) ExecutionResult {
	systemContracts, err := tc.GetSystemContracts(systemAccount)
	if err != nil {
		panic(fmt.Sprintf("exec: system contracts not resolvable from %s: %v", systemAccount, err))
	}
	handlePaymentHash, ok := systemContracts[state.SystemContractHandlePayment]
	if !ok {
		panic("exec: handle_payment system contract missing from registry")
	}

	addrGen := state.NewAddressGenerator(deployHash, types.PhasePayment)
	args := types.RuntimeArgs{"amount": {Type: types.CLU512, Bytes: amount.Bytes()}}
	ctx := NewRootContext(account, authKeys, args, cfg.System.StandardPaymentCost, amount, addrGen, tc, types.PhasePayment, blocktime, deployHash, protocolVersion)
	rt := NewRuntime(ctx, cfg, systemContracts, cache)
	preLen := tc.JournalLen()

	if err := rt.chargeHostCall("exec_standard_payment"); err != nil {
		return ExecutionResult{Success: false, Error: err, Journal: tc.JournalUpTo(preLen), GasUsed: ctx.GasUsed()}
	}
	paymentPurse, err := rt.paymentPurse(handlePaymentHash)
	if err != nil {
		return ExecutionResult{Success: false, Error: err, Journal: tc.JournalUpTo(preLen), GasUsed: ctx.GasUsed()}
	}
	if err := rt.transferBalance(account.MainPurse.Addr, paymentPurse.Addr, amount); err != nil {
		return ExecutionResult{Success: false, Error: err, Journal: tc.JournalUpTo(preLen), GasUsed: ctx.GasUsed()}
	}
	return ExecutionResult{Success: true, Journal: tc.ExecutionJournal(), GasUsed: ctx.GasUsed(), Transfers: ctx.Transfers}
}

// CallSystemContract implements `call_system_contract`: direct dispatch to
// one of the three native contracts (mint/auction/handle_payment) by name,
// bypassing the WASM call path entirely. A frame for the called contract is
// pushed for the duration of the call, so a system contract it reaches
// natively sees it as the immediate caller (see reentrantSystemCall).
// Panics if name is not a registered system contract — callers are
// expected to have resolved the name against
// state.TrackingCopy.GetSystemContracts first.
func (rt *Runtime) CallSystemContract(name, entryPoint string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	hash, ok := rt.SystemContracts[name]
	if !ok {
		panic(fmt.Sprintf("exec: call_system_contract: %q is not a registered system contract", name))
	}
	rt.Context.PushFrame(FrameContract, types.NewHashKey(hash))
	defer rt.Context.PopFrame()
	return dispatchSystemContract(rt, name, entryPoint, args)
}

// dispatchSystemContract routes to the native Go implementation for one of
// the three system contracts. Each implementation charges its own
// entry-point cost, except when reentrantSystemCall reports that this
// dispatch was reached from another system contract's own native code
// rather than a fresh WASM- or host-triggered call.
func dispatchSystemContract(rt *Runtime, name, entryPoint string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	switch name {
	case state.SystemContractMint:
		return rt.runMint(entryPoint, args)
	case state.SystemContractAuction:
		return rt.runAuction(entryPoint, args)
	case state.SystemContractHandlePayment:
		return rt.runHandlePayment(entryPoint, args)
	default:
		return nil, nil, fmt.Errorf("exec: unknown system contract %q", name)
	}
}

// callSystemContractNative invokes another system contract's entry point
// directly against rt's own context: no sandboxed child RuntimeContext, no
// gas-counter snapshot, just a call-stack frame pushed for the duration of
// the call so the callee's native dispatch can tell it was entered by a
// system contract's own code (see reentrantSystemCall) rather than by a
// fresh WASM guest or host function. Used by run_auction to route
// seigniorage through mint's transfer entry point.
func (rt *Runtime) callSystemContractNative(name, entryPoint string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	hash, ok := rt.SystemContracts[name]
	if !ok {
		return nil, nil, fmt.Errorf("exec: unknown system contract %q", name)
	}
	rt.Context.PushFrame(FrameContract, types.NewHashKey(hash))
	defer rt.Context.PopFrame()
	return dispatchSystemContract(rt, name, entryPoint, args)
}

// reentrantSystemCall reports whether the frame directly below the current
// one on the call stack belongs to another system contract — i.e. this
// dispatch was reached by one system contract's own native code calling into
// another (run_auction minting seigniorage through mint, for instance), not
// by a fresh externally-triggered call. The enclosing call's entry-point gas
// already covers this step, so the inner dispatch does not charge again.
func (rt *Runtime) reentrantSystemCall() bool {
	caller, ok := rt.Context.ImmediateCaller()
	if !ok || caller.Tag != types.KeyHash {
		return false
	}
	_, isSystem := rt.systemContractName(caller.Hash)
	return isSystem
}
