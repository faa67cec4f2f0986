package exec

import (
	"math/big"
	"path/filepath"
	"testing"

	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

func newTestRootContext(t *testing.T, gasLimit uint64, spendingLimit *big.Int) *RuntimeContext {
	t.Helper()
	store, err := trie.OpenStore(filepath.Join(t.TempDir(), "trie.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	tc := state.New(store, trie.Digest{})
	account := &types.Account{
		AccountHash: types.Hash32{1},
		NamedKeys:   map[string]types.Key{},
		MainPurse:   types.NewURef(types.Hash32{0xF0}, types.RightsReadAddWrite),
	}
	addrGen := state.NewAddressGenerator(types.Hash32{0xD}, types.PhaseSession)
	return NewRootContext(account, []types.Hash32{account.AccountHash}, types.NewRuntimeArgs(), gasLimit, spendingLimit, addrGen, tc, types.PhaseSession, 0, types.Hash32{0xD}, types.ProtocolVersion{Major: 1})
}

func TestChargeGasMonotonicAndLimitEnforced(t *testing.T) {
	rc := newTestRootContext(t, 100, big.NewInt(0))

	if err := rc.ChargeGas(40); err != nil {
		t.Fatalf("charge 40: %v", err)
	}
	if err := rc.ChargeGas(40); err != nil {
		t.Fatalf("charge 40: %v", err)
	}
	if rc.GasUsed() != 80 {
		t.Fatalf("want 80, got %d", rc.GasUsed())
	}

	if err := rc.ChargeGas(30); err == nil {
		t.Fatal("want gas-limit error charging past the limit")
	}
	if rc.GasUsed() != 100 {
		t.Fatalf("want gas counter clamped to limit (100), got %d", rc.GasUsed())
	}
}

func TestSpendFromLimitMonotonicDecrease(t *testing.T) {
	rc := newTestRootContext(t, 1000, big.NewInt(50))

	if err := rc.SpendFromLimit(big.NewInt(30)); err != nil {
		t.Fatalf("spend 30: %v", err)
	}
	if rc.RemainingSpendingLimit().Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("want 20 remaining, got %v", rc.RemainingSpendingLimit())
	}
	if err := rc.SpendFromLimit(big.NewInt(21)); err == nil {
		t.Fatal("want error spending past the remaining limit")
	}
	if rc.RemainingSpendingLimit().Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("want remaining limit unchanged after a rejected spend, got %v", rc.RemainingSpendingLimit())
	}
}

func TestValidateURefRejectsForgedRights(t *testing.T) {
	rc := newTestRootContext(t, 1000, big.NewInt(0))
	addr := types.Hash32{0x55}
	rc.GrantAccess(addr, types.RightsRead)

	if err := rc.ValidateURef(types.NewURef(addr, types.RightsRead)); err != nil {
		t.Fatalf("want granted subset to validate, got %v", err)
	}
	if err := rc.ValidateURef(types.NewURef(addr, types.RightsReadWrite)); err == nil {
		t.Fatal("want error validating a URef whose rights exceed what was granted")
	}
	if err := rc.ValidateURef(types.NewURef(types.Hash32{0x99}, types.RightsRead)); err == nil {
		t.Fatal("want error validating a URef for an address never granted")
	}
}

func TestNewURefGrantsAccessAndWritesValue(t *testing.T) {
	rc := newTestRootContext(t, 1000, big.NewInt(0))
	value := types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU64, Bytes: []byte{1}}}

	u, err := rc.NewURef(value)
	if err != nil {
		t.Fatalf("new uref: %v", err)
	}
	if err := rc.ValidateURef(types.NewURef(u.Addr, types.RightsReadAddWrite)); err != nil {
		t.Fatalf("want full rights granted on a freshly allocated uref: %v", err)
	}

	got, found, err := rc.TrackingCopy.Read(types.NewURefKey(u))
	if err != nil || !found {
		t.Fatalf("read back: found=%v err=%v", found, err)
	}
	if got.CLValue.Bytes[0] != 1 {
		t.Fatalf("unexpected stored bytes: %v", got.CLValue.Bytes)
	}
}

func TestNewFromSelfMergesAccessRightsAndSnapshotsGas(t *testing.T) {
	rc := newTestRootContext(t, 1000, big.NewInt(0))
	if err := rc.ChargeGas(10); err != nil {
		t.Fatalf("charge: %v", err)
	}
	addr := types.Hash32{0x33}
	rc.GrantAccess(addr, types.RightsRead)

	childAddr := types.Hash32{0x44}
	child := rc.NewFromSelf(types.NewHashKey(types.Hash32{0x1}), FrameContract, map[string]types.Key{}, map[types.Hash32]types.AccessRights{childAddr: types.RightsWrite}, types.NewRuntimeArgs())

	if child.GasUsed() != 10 {
		t.Fatalf("want child to start from parent's gas usage, got %d", child.GasUsed())
	}
	if err := child.ValidateURef(types.NewURef(addr, types.RightsRead)); err != nil {
		t.Fatalf("want child to inherit parent access rights: %v", err)
	}
	if err := child.ValidateURef(types.NewURef(childAddr, types.RightsWrite)); err != nil {
		t.Fatalf("want child to have its own granted rights: %v", err)
	}

	if err := child.ChargeGas(15); err != nil {
		t.Fatalf("child charge: %v", err)
	}
	rc.AbsorbChild(child)
	if rc.GasUsed() != 25 {
		t.Fatalf("want parent gas usage to reflect absorbed child (25), got %d", rc.GasUsed())
	}
}
