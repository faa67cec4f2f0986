package exec

import (
	"math/big"
	"testing"

	"synnergy-core/state"
	"synnergy-core/types"
)

// wrapSystemContractAsCallable registers a public entry point on the native
// mint contract's own Contract value so CallContract's full resolve ->
// entry-point-check -> dispatch pipeline can be exercised without a WASM
// engine: invokeContract detects the contract hash is a registered system
// contract and routes natively, exactly as it would for a stored contract
// wrapping a system call.
func wrapSystemContractAsCallable(t *testing.T, rt *Runtime, mintHash types.Hash32, entryPoint string, public bool, epType types.EntryPointType) {
	t.Helper()
	contract, err := rt.Context.TrackingCopy.GetContract(mintHash)
	if err != nil {
		t.Fatalf("get mint contract: %v", err)
	}
	updated := *contract
	updated.EntryPoints = map[string]types.EntryPoint{
		entryPoint: {Name: entryPoint, Access: types.EntryPointAccess{Public: public}, Type: epType},
	}
	rt.Context.TrackingCopy.Write(types.NewHashKey(mintHash), types.StoredValue{Tag: types.SVContract, Contract: &updated})
}

func TestCallContractDispatchesIntoSystemContract(t *testing.T) {
	rt := newSystemRuntime(t, types.Hash32{0x50}, 1_000_000_000_000)
	mintHash := rt.SystemContracts[state.SystemContractMint]
	wrapSystemContractAsCallable(t, rt, mintHash, "balance", true, types.EntryPointContract)

	mintArgs := types.RuntimeArgs{"amount": {Type: types.CLU512, Bytes: big.NewInt(777).Bytes()}}
	_, urefs, err := rt.CallSystemContract(state.SystemContractMint, "mint", mintArgs)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	purse := urefs[0]

	balArgs := types.RuntimeArgs{"purse": {Type: types.CLByteArray, Bytes: EncodeURefWire(purse)}}
	retValue, _, err := rt.CallContract(mintHash, "balance", balArgs)
	if err != nil {
		t.Fatalf("call_contract balance: %v", err)
	}
	balVal, err := DecodeCLValueWire(retValue)
	if err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	got := new(big.Int).SetBytes(balVal.Bytes)
	if got.Cmp(big.NewInt(777)) != 0 {
		t.Fatalf("want 777, got %v", got)
	}
}

func TestCallContractRejectsUnknownEntryPoint(t *testing.T) {
	rt := newSystemRuntime(t, types.Hash32{0x51}, 1_000_000_000_000)
	mintHash := rt.SystemContracts[state.SystemContractMint]
	wrapSystemContractAsCallable(t, rt, mintHash, "balance", true, types.EntryPointContract)

	if _, _, err := rt.CallContract(mintHash, "no_such_entry_point", types.NewRuntimeArgs()); err == nil {
		t.Fatal("want error calling an entry point the contract never registered")
	}
}

func TestCallContractRejectsContractFrameCallingSessionEntryPoint(t *testing.T) {
	rt := newSystemRuntime(t, types.Hash32{0x52}, 1_000_000_000_000)
	rt.Context.EntryPointType = FrameContract

	mintHash := rt.SystemContracts[state.SystemContractMint]
	wrapSystemContractAsCallable(t, rt, mintHash, "balance", true, types.EntryPointSession)

	if _, _, err := rt.CallContract(mintHash, "balance", types.NewRuntimeArgs()); err == nil {
		t.Fatal("want error: a contract frame must never call into a session entry point")
	}
}

// TestCallContractSessionToSessionMergesNamedKeys exercises the
// Session->Session branch of invokeContract end to end: the branch that
// retains the caller's base key instead of rebasing onto the callee's
// contract hash is the same branch that gates the named-keys merge tested
// below, so a successful run here also exercises the base-key retention.
func TestCallContractSessionToSessionMergesNamedKeys(t *testing.T) {
	rt := newSystemRuntime(t, types.Hash32{0x54}, 1_000_000_000_000)
	rt.Context.EntryPointType = FrameSession
	callerBaseKey := rt.Context.BaseKey

	mintHash := rt.SystemContracts[state.SystemContractMint]
	wrapSystemContractAsCallable(t, rt, mintHash, "balance", true, types.EntryPointSession)

	createdKey := types.NewAccountKey(types.Hash32{0x55})
	contract, err := rt.Context.TrackingCopy.GetContract(mintHash)
	if err != nil {
		t.Fatalf("get mint contract: %v", err)
	}
	updated := *contract
	updated.NamedKeys = map[string]types.Key{"from_child": createdKey}
	rt.Context.TrackingCopy.Write(types.NewHashKey(mintHash), types.StoredValue{Tag: types.SVContract, Contract: &updated})

	mintArgs := types.RuntimeArgs{"amount": {Type: types.CLU512, Bytes: big.NewInt(1).Bytes()}}
	_, urefs, err := rt.CallSystemContract(state.SystemContractMint, "mint", mintArgs)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	purse := urefs[0]
	balArgs := types.RuntimeArgs{"purse": {Type: types.CLByteArray, Bytes: EncodeURefWire(purse)}}

	if _, _, err := rt.CallContract(mintHash, "balance", balArgs); err != nil {
		t.Fatalf("call_contract balance: %v", err)
	}

	if rt.Context.BaseKey != callerBaseKey {
		t.Fatal("want a session->session call to leave the caller's base key untouched")
	}
	got, ok := rt.Context.GetKey("from_child")
	if !ok || !got.Equal(createdKey) {
		t.Fatalf("want the session->session child's named keys merged back into the caller, got %+v ok=%v", got, ok)
	}
}

func TestCallContractEnforcesGroupGating(t *testing.T) {
	rt := newSystemRuntime(t, types.Hash32{0x53}, 1_000_000_000_000)
	mintHash := rt.SystemContracts[state.SystemContractMint]
	wrapSystemContractAsCallable(t, rt, mintHash, "balance", false, types.EntryPointContract)

	if _, _, err := rt.CallContract(mintHash, "balance", types.NewRuntimeArgs()); err == nil {
		t.Fatal("want error: caller holds no access to any gating group")
	}
}
