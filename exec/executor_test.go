package exec

import (
	"math/big"
	"path/filepath"
	"testing"

	"synnergy-core/engine"
	"synnergy-core/genesis"
	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

func newTestGenesis(t *testing.T, users ...genesis.Account) (*trie.Store, genesis.Result) {
	t.Helper()
	store, err := trie.OpenStore(filepath.Join(t.TempDir(), "trie.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	result, err := genesis.Bootstrap(store, users)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return store, result
}

func TestCallSystemContractMintRoundTrip(t *testing.T) {
	alice := genesis.Account{Name: "alice", Hash: genesis.AccountHashFromSeed("alice"), Balance: big.NewInt(0)}
	store, gen := newTestGenesis(t, alice)

	tc := state.New(store, gen.Root)
	systemContracts, err := tc.GetSystemContracts(gen.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}

	account := &types.Account{AccountHash: alice.Hash, NamedKeys: map[string]types.Key{}}
	addrGen := state.NewAddressGenerator(types.Hash32{0x7}, types.PhaseSession)
	ctx := NewRootContext(account, []types.Hash32{alice.Hash}, types.NewRuntimeArgs(), 1_000_000_000_000, big.NewInt(0), addrGen, tc, types.PhaseSession, 0, types.Hash32{0x7}, types.ProtocolVersion{Major: 1})
	cfg := engine.DefaultEngineConfig()
	rt := NewRuntime(ctx, cfg, systemContracts, engine.NewPrecompileCache())

	mintArgs := types.RuntimeArgs{"amount": {Type: types.CLU512, Bytes: big.NewInt(500).Bytes()}}
	retValue, urefs, err := rt.CallSystemContract(state.SystemContractMint, "mint", mintArgs)
	if err != nil {
		t.Fatalf("mint: %v", err)
	}
	if len(urefs) != 1 {
		t.Fatalf("want one minted purse uref, got %d", len(urefs))
	}
	purse, err := DecodeURefWire(retValue)
	if err != nil {
		t.Fatalf("decode purse: %v", err)
	}
	if purse != urefs[0] {
		t.Fatal("want return value to encode the same uref granted")
	}

	balArgs := types.RuntimeArgs{"purse": {Type: types.CLByteArray, Bytes: EncodeURefWire(purse)}}
	balRet, _, err := rt.CallSystemContract(state.SystemContractMint, "balance", balArgs)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	balVal, err := DecodeCLValueWire(balRet)
	if err != nil {
		t.Fatalf("decode balance: %v", err)
	}
	got := new(big.Int).SetBytes(balVal.Bytes)
	if got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("want minted balance 500, got %v", got)
	}
}

func TestCallSystemContractUnknownNamePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("want panic calling an unregistered system contract")
		}
	}()

	store, gen := newTestGenesis(t)
	tc := state.New(store, gen.Root)
	systemContracts, err := tc.GetSystemContracts(gen.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}
	account := &types.Account{AccountHash: gen.SystemAccount, NamedKeys: map[string]types.Key{}}
	addrGen := state.NewAddressGenerator(types.Hash32{0x1}, types.PhaseSession)
	ctx := NewRootContext(account, []types.Hash32{gen.SystemAccount}, types.NewRuntimeArgs(), 1000, big.NewInt(0), addrGen, tc, types.PhaseSession, 0, types.Hash32{0x1}, types.ProtocolVersion{Major: 1})
	rt := NewRuntime(ctx, engine.DefaultEngineConfig(), systemContracts, engine.NewPrecompileCache())

	_, _, _ = rt.CallSystemContract("not_a_real_contract", "whatever", types.NewRuntimeArgs())
}

// TestExecFailureJournalExcludesPartialWrites exercises finalize_payment's
// refund-then-route sequence: a refund with no "proposer" argument writes
// the refund transfer before failing on the missing argument. Exec's
// returned Journal on that failure must equal the journal as it stood
// before the call, not the buffered journal including the refund writes.
func TestExecFailureJournalExcludesPartialWrites(t *testing.T) {
	alice := genesis.Account{Name: "alice", Hash: genesis.AccountHashFromSeed("alice"), Balance: big.NewInt(0)}
	store, gen := newTestGenesis(t, alice)

	tc := state.New(store, gen.Root)
	systemContracts, err := tc.GetSystemContracts(gen.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}
	handlePaymentHash := systemContracts[state.SystemContractHandlePayment]

	accVal, found, err := tc.Read(types.NewAccountKey(alice.Hash))
	if err != nil || !found {
		t.Fatalf("read alice account: found=%v err=%v", found, err)
	}

	addrGen := state.NewAddressGenerator(types.Hash32{0x40}, types.PhaseSession)
	ctx := NewRootContext(accVal.Account, []types.Hash32{alice.Hash}, types.NewRuntimeArgs(), 1_000_000_000_000, big.NewInt(0), addrGen, tc, types.PhaseSession, 0, types.Hash32{0x40}, types.ProtocolVersion{Major: 1})
	cfg := engine.DefaultEngineConfig()
	setupRt := NewRuntime(ctx, cfg, systemContracts, engine.NewPrecompileCache())

	purse, err := setupRt.paymentPurse(handlePaymentHash)
	if err != nil {
		t.Fatalf("create payment purse: %v", err)
	}
	if err := tc.AddBigInt(types.NewBalanceKey(purse.Addr), big.NewInt(1_000)); err != nil {
		t.Fatalf("fund payment purse: %v", err)
	}

	contract, err := tc.GetContract(handlePaymentHash)
	if err != nil {
		t.Fatalf("get handle_payment contract: %v", err)
	}
	updated := *contract
	updated.EntryPoints = map[string]types.EntryPoint{
		"finalize_payment": {Name: "finalize_payment", Access: types.EntryPointAccess{Public: true}, Type: types.EntryPointContract},
	}
	tc.Write(types.NewHashKey(handlePaymentHash), types.StoredValue{Tag: types.SVContract, Contract: &updated})

	preLen := tc.JournalLen()

	// spent_amount < total balance leaves a refund to route; no "proposer" is
	// supplied, so finalize_payment writes the refund transfer and then fails
	// on the missing argument needed to route the spent remainder.
	args := types.RuntimeArgs{
		"amount":       {Type: types.CLU512, Bytes: big.NewInt(1_000).Bytes()},
		"spent_amount": {Type: types.CLU512, Bytes: big.NewInt(400).Bytes()},
	}
	result := Exec(ExecutionRequest{
		Kind:              ExecStoredContract,
		ContractHash:      handlePaymentHash,
		EntryPointName:    "finalize_payment",
		Account:           accVal.Account,
		AuthorizationKeys: []types.Hash32{alice.Hash},
		Args:              args,
		GasLimit:          1_000_000_000_000,
		Phase:             types.PhaseSession,
		DeployHash:        types.Hash32{0x41},
		ProtocolVersion:   types.ProtocolVersion{Major: 1},
	}, tc, gen.SystemAccount, cfg, engine.NewPrecompileCache())

	if result.Success {
		t.Fatal("want finalize_payment to fail without a proposer argument")
	}
	if len(result.Journal) != preLen {
		t.Fatalf("want failed execution's journal to equal its pre-execution length %d, got %d", preLen, len(result.Journal))
	}
	if tc.JournalLen() <= preLen {
		t.Fatal("want the refund write to still have landed in the tracking copy's own buffered journal (only the returned slice is truncated)")
	}
}

func TestExecStandardPaymentDebitsMainPurse(t *testing.T) {
	alice := genesis.Account{Name: "alice", Hash: genesis.AccountHashFromSeed("alice"), Balance: big.NewInt(1_000_000)}
	store, gen := newTestGenesis(t, alice)

	tc := state.New(store, gen.Root)
	accVal, found, err := tc.Read(types.NewAccountKey(alice.Hash))
	if err != nil || !found {
		t.Fatalf("read alice account: found=%v err=%v", found, err)
	}

	cfg := engine.DefaultEngineConfig()
	result := ExecStandardPayment(accVal.Account, []types.Hash32{alice.Hash}, big.NewInt(1000), tc, gen.SystemAccount, cfg, engine.NewPrecompileCache(), types.Hash32{0x9}, 0, types.ProtocolVersion{Major: 1})
	if !result.Success {
		t.Fatalf("want standard payment to succeed, got error: %v", result.Error)
	}
	if result.GasUsed == 0 {
		t.Fatal("want non-zero gas usage for standard payment")
	}

	root, err := store.Commit(gen.Root, true, result.Journal)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}

	postTC := state.New(store, root)
	balVal, found, err := postTC.Read(types.NewBalanceKey(accVal.Account.MainPurse.Addr))
	if err != nil || !found {
		t.Fatalf("read main purse balance: found=%v err=%v", found, err)
	}
	got := new(big.Int).SetBytes(balVal.CLValue.Bytes)
	if got.Cmp(big.NewInt(999_000)) != 0 {
		t.Fatalf("want 999000 remaining after a 1000 payment, got %v", got)
	}
}
