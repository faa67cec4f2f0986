package exec

import (
	"fmt"

	"synnergy-core/engine"
	"synnergy-core/types"
)

// This file implements the contract call protocol (spec §4.7): resolving a
// stored Contract (directly or through its ContractPackage's active
// version), checking entry-point access and protocol compatibility,
// enforcing the Session/Contract frame-transition rule, and dispatching
// either to a native system contract or to a freshly instantiated nested
// WASM instance.
//
// Grounded on the teacher's ContractRegistry.Invoke/InvokeWithReceipt
// pipeline (resolve -> build a fresh VMContext -> vm.Execute), generalized
// into the resolve -> entry-point-check -> group-check -> argument-check ->
// dispatch sequence this spec calls for.

// CallContract implements `call_contract`: resolves contractHash directly.
func (rt *Runtime) CallContract(contractHash types.Hash32, entryPointName string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	contract, err := rt.Context.TrackingCopy.GetContract(contractHash)
	if err != nil {
		h := contractHash
		return nil, nil, &types.ExecutionError{Kind: types.ErrNoSuchMethod, Hash: &h, Message: fmt.Sprintf("exec: contract %s not found", contractHash)}
	}
	return rt.invokeContract(contractHash, contract, entryPointName, args)
}

// CallVersionedContract implements `call_versioned_contract`: resolves the
// package's active (non-disabled, highest-numbered within the current
// protocol major) version, or a pinned version if version is non-nil.
func (rt *Runtime) CallVersionedContract(pkgHash types.Hash32, version *uint32, entryPointName string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	pkg, err := rt.readPackage(pkgHash)
	if err != nil {
		return nil, nil, err
	}

	major := rt.Context.ProtocolVersion.Major
	var chosen types.ContractVersionKey
	var contractHash types.Hash32
	found := false
	if version != nil {
		chosen = types.ContractVersionKey{ProtocolMajor: major, Version: *version}
		contractHash, found = pkg.Versions[chosen]
	} else {
		var best uint32
		for vk, ch := range pkg.Versions {
			if vk.ProtocolMajor != major || pkg.DisabledVersions[vk] {
				continue
			}
			if !found || vk.Version > best {
				best = vk.Version
				chosen = vk
				contractHash = ch
				found = true
			}
		}
	}
	if !found {
		return nil, nil, types.NewExecutionError(types.ErrNoActiveContractVersions,
			fmt.Sprintf("exec: no active version for package %s at protocol major %d", pkgHash, major))
	}
	if pkg.DisabledVersions[chosen] {
		h := contractHash
		return nil, nil, &types.ExecutionError{Kind: types.ErrDisabledContract, Hash: &h, Message: fmt.Sprintf("exec: contract version %+v is disabled", chosen)}
	}

	contract, err := rt.Context.TrackingCopy.GetContract(contractHash)
	if err != nil {
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, err.Error())
	}
	if contract.ProtocolVersion.Major != major {
		return nil, nil, types.NewExecutionError(types.ErrIncompatibleProtocolMajorVersion,
			fmt.Sprintf("exec: contract protocol major %d incompatible with current %d", contract.ProtocolVersion.Major, major))
	}
	return rt.invokeContract(contractHash, contract, entryPointName, args)
}

func (rt *Runtime) invokeContract(contractHash types.Hash32, contract *types.Contract, entryPointName string, args types.RuntimeArgs) ([]byte, []types.URef, error) {
	ep, ok := contract.EntryPoints[entryPointName]
	if !ok {
		return nil, nil, types.NewExecutionError(types.ErrNoSuchMethod, fmt.Sprintf("exec: no such entry point %q", entryPointName))
	}

	if !ep.Access.Public {
		pkg, err := rt.readPackage(contract.ContractPackageHash)
		if err != nil {
			return nil, nil, err
		}
		if !pkg.CallerHasAnyGroup(ep.Access.Groups, rt.Context.AccessRights) {
			return nil, nil, types.NewExecutionError(types.ErrInvalidContext,
				fmt.Sprintf("exec: caller is not a member of any group gating %q", entryPointName))
		}
	}

	if rt.EngineConfig.StrictArgumentChecking {
		if err := checkArgs(ep, args); err != nil {
			return nil, nil, err
		}
	}

	// Session->Contract is always allowed; Contract->Session is forbidden
	// (spec §4.7: once inside stored contract code, a nested call can never
	// re-enter the caller's own session context).
	if rt.Context.EntryPointType == FrameContract && ep.Type == types.EntryPointSession {
		return nil, nil, types.NewExecutionError(types.ErrInvalidContext, "exec: a contract frame cannot call into a session entry point")
	}

	// A Session entry point calling another Session entry point retains the
	// caller's own base key; every other transition (Session->Contract,
	// Contract->Contract) addresses the callee by its own contract hash
	// (spec §4.7 step 5).
	sessionToSession := rt.Context.EntryPointType == FrameSession && ep.Type == types.EntryPointSession
	baseKey := types.NewHashKey(contractHash)
	if sessionToSession {
		baseKey = rt.Context.BaseKey
	}
	childAccessRights := map[types.Hash32]types.AccessRights{}
	// Attenuate the caller's main purse to WRITE-only before exposing it to
	// untrusted stored-contract code (spec §4.7/§8 scenario 5): the child
	// frame never inherits the READ bit needed to read its own balance back.
	if rt.Context.Account != nil {
		mp := rt.Context.Account.MainPurse
		childAccessRights[mp.Addr] = types.RightsWrite
	}

	childEntryType := FrameContract
	if ep.Type == types.EntryPointSession {
		childEntryType = FrameSession
	}

	childNamedKeys := make(map[string]types.Key, len(contract.NamedKeys))
	for k, v := range contract.NamedKeys {
		childNamedKeys[k] = v
	}
	child := rt.Context.NewFromSelf(baseKey, childEntryType, childNamedKeys, childAccessRights, args)
	// Attenuate the caller's main purse to WRITE-only before exposing it to
	// untrusted stored-contract code (spec §4.7/§8 scenario 5): NewFromSelf
	// ORs the parent's rights into the child, so the entry is overwritten
	// here and the child frame never holds the READ bit needed to read its
	// balance back. A system-contract callee keeps the caller's rights.
	if _, calleeIsSystem := rt.systemContractName(contractHash); !calleeIsSystem && rt.Context.Account != nil {
		child.AccessRights[rt.Context.Account.MainPurse.Addr] = types.RightsWrite
	}
	childRuntime := NewRuntime(child, rt.EngineConfig, rt.SystemContracts, rt.Cache)

	var value []byte
	var retURefs []types.URef
	var callErr error

	if sysName, isSystem := rt.systemContractName(contractHash); isSystem {
		value, retURefs, callErr = dispatchSystemContract(childRuntime, sysName, entryPointName, args)
	} else {
		wasmVal, found, err := rt.Context.TrackingCopy.Read(types.NewHashKey(contract.ContractWasmHash))
		if err != nil {
			return nil, nil, err
		}
		if !found || wasmVal.ContractWasm == nil {
			h := contract.ContractWasmHash
			return nil, nil, &types.ExecutionError{Kind: types.ErrNoSuchMethod, Hash: &h, Message: "exec: contract wasm not found"}
		}
		childRuntime.ModuleBytes = wasmVal.ContractWasm
		value, retURefs, callErr = rt.runModule(childRuntime, wasmVal.ContractWasm, entryPointName)
	}

	viaRet := false
	if ret, ok := callErr.(*types.ExecutionError); ok && ret.Kind == types.ErrRet {
		value, retURefs, callErr = ret.RetValue, ret.RetURefs, nil
		viaRet = true
	}
	if callErr != nil {
		return nil, nil, callErr
	}

	rt.Context.AbsorbChild(child)
	if sessionToSession {
		if err := rt.Context.MergeNamedKeysFromSessionChild(child, viaRet); err != nil {
			return nil, nil, err
		}
	}
	for _, u := range retURefs {
		rt.Context.GrantAccess(u.Addr, u.Rights)
	}
	return value, retURefs, nil
}

// systemContractName reverse-looks-up contractHash in rt.SystemContracts.
func (rt *Runtime) systemContractName(contractHash types.Hash32) (string, bool) {
	for name, h := range rt.SystemContracts {
		if h == contractHash {
			return name, true
		}
	}
	return "", false
}

// checkArgs enforces entry-point argument arity/type under strict checking.
func checkArgs(ep types.EntryPoint, args types.RuntimeArgs) error {
	for _, p := range ep.Args {
		v, ok := args[p.Name]
		if !ok {
			return types.NewExecutionError(types.ErrMissingArgument, fmt.Sprintf("exec: missing argument %q", p.Name))
		}
		if v.Type != p.Type {
			return types.NewExecutionError(types.ErrTypeMismatch, fmt.Sprintf("exec: argument %q expected type %v, got %v", p.Name, p.Type, v.Type))
		}
	}
	return nil
}

// runModule preprocesses (via the shared PrecompileCache), instantiates and
// invokes entryPoint against wasm bytes under childRuntime's host function
// table, returning the value staged via `ret` if any.
func (rt *Runtime) runModule(childRuntime *Runtime, wasm []byte, entryPoint string) ([]byte, []types.URef, error) {
	hash := rt.Blake2b(wasm)
	pre, err := rt.Cache.GetOrPreprocess(hash, wasm, rt.EngineConfig.Wasm)
	if err != nil {
		return nil, nil, err
	}
	mod, err := engine.NewModule(pre, rt.EngineConfig.Wasm, func() uint64 { return childRuntime.Context.GasLimit() - childRuntime.Context.GasUsed() })
	if err != nil {
		return nil, nil, err
	}
	instance, err := mod.Instantiate(BuildHostFunctionTable(childRuntime))
	if err != nil {
		return nil, nil, err
	}
	if err := instance.Invoke(entryPoint); err != nil {
		if ret, ok := err.(*types.ExecutionError); ok && ret.Kind == types.ErrRet {
			return ret.RetValue, ret.RetURefs, nil
		}
		return nil, nil, err
	}
	return nil, nil, nil
}
