package exec

import (
	"math/big"
	"testing"

	"synnergy-core/engine"
	"synnergy-core/genesis"
	"synnergy-core/state"
	"synnergy-core/types"
)

func TestFinalizePaymentBurnsSpentAmount(t *testing.T) {
	alice := genesis.Account{Name: "alice", Hash: genesis.AccountHashFromSeed("alice"), Balance: big.NewInt(1_000_000)}
	store, gen := newTestGenesis(t, alice)

	tc := state.New(store, gen.Root)
	accVal, found, err := tc.Read(types.NewAccountKey(alice.Hash))
	if err != nil || !found {
		t.Fatalf("read alice account: found=%v err=%v", found, err)
	}

	cfg := engine.DefaultEngineConfig()
	cfg.FeeHandling = engine.Burn
	payResult := ExecStandardPayment(accVal.Account, []types.Hash32{alice.Hash}, big.NewInt(2_000), tc, gen.SystemAccount, cfg, engine.NewPrecompileCache(), types.Hash32{0x41}, 0, types.ProtocolVersion{Major: 1})
	if !payResult.Success {
		t.Fatalf("standard payment: %v", payResult.Error)
	}

	systemContracts, err := tc.GetSystemContracts(gen.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}
	addrGen := state.NewAddressGenerator(types.Hash32{0x42}, types.PhasePayment)
	ctx := NewRootContext(accVal.Account, []types.Hash32{alice.Hash}, types.NewRuntimeArgs(), 1_000_000_000, big.NewInt(0), addrGen, tc, types.PhasePayment, 0, types.Hash32{0x42}, types.ProtocolVersion{Major: 1})
	rt := NewRuntime(ctx, cfg, systemContracts, engine.NewPrecompileCache())

	finalizeArgs := types.RuntimeArgs{"spent_amount": {Type: types.CLU512, Bytes: big.NewInt(1_500).Bytes()}}
	if _, _, err := rt.CallSystemContract(state.SystemContractHandlePayment, "finalize_payment", finalizeArgs); err != nil {
		t.Fatalf("finalize_payment: %v", err)
	}

	handlePaymentHash := systemContracts[state.SystemContractHandlePayment]
	purse, err := rt.paymentPurse(handlePaymentHash)
	if err != nil {
		t.Fatalf("payment purse: %v", err)
	}
	remaining, err := rt.readBalance(purse.Addr)
	if err != nil {
		t.Fatalf("read payment purse balance: %v", err)
	}
	if remaining.Sign() != 0 {
		t.Fatalf("want payment purse drained to zero after refund + burn, got %v", remaining)
	}

	mainBal, err := rt.readBalance(accVal.Account.MainPurse.Addr)
	if err != nil {
		t.Fatalf("read main purse: %v", err)
	}
	// 1,000,000 funded - 2,000 paid + 500 refunded = 998,500.
	if mainBal.Cmp(big.NewInt(998_500)) != 0 {
		t.Fatalf("want main purse 998500 after refund, got %v", mainBal)
	}
}

func TestFinalizePaymentRejectsSpendingMoreThanCollected(t *testing.T) {
	alice := genesis.Account{Name: "alice", Hash: genesis.AccountHashFromSeed("alice"), Balance: big.NewInt(1_000_000)}
	store, gen := newTestGenesis(t, alice)

	tc := state.New(store, gen.Root)
	accVal, _, err := tc.Read(types.NewAccountKey(alice.Hash))
	if err != nil {
		t.Fatalf("read alice account: %v", err)
	}

	cfg := engine.DefaultEngineConfig()
	payResult := ExecStandardPayment(accVal.Account, []types.Hash32{alice.Hash}, big.NewInt(1_000), tc, gen.SystemAccount, cfg, engine.NewPrecompileCache(), types.Hash32{0x43}, 0, types.ProtocolVersion{Major: 1})
	if !payResult.Success {
		t.Fatalf("standard payment: %v", payResult.Error)
	}

	systemContracts, err := tc.GetSystemContracts(gen.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}
	addrGen := state.NewAddressGenerator(types.Hash32{0x44}, types.PhasePayment)
	ctx := NewRootContext(accVal.Account, []types.Hash32{alice.Hash}, types.NewRuntimeArgs(), 1_000_000_000, big.NewInt(0), addrGen, tc, types.PhasePayment, 0, types.Hash32{0x44}, types.ProtocolVersion{Major: 1})
	rt := NewRuntime(ctx, cfg, systemContracts, engine.NewPrecompileCache())

	finalizeArgs := types.RuntimeArgs{"spent_amount": {Type: types.CLU512, Bytes: big.NewInt(5_000).Bytes()}}
	if _, _, err := rt.CallSystemContract(state.SystemContractHandlePayment, "finalize_payment", finalizeArgs); err == nil {
		t.Fatal("want error finalizing with spent_amount exceeding the collected payment")
	}
}
