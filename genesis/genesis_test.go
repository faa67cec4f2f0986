package genesis

import (
	"math/big"
	"path/filepath"
	"testing"

	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

func TestBootstrapRegistersSystemContracts(t *testing.T) {
	store, err := trie.OpenStore(filepath.Join(t.TempDir(), "trie.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	result, err := Bootstrap(store, nil)
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if result.Root.IsZero() {
		t.Fatal("want a non-zero root after genesis")
	}

	tc := state.New(store, result.Root)
	contracts, err := tc.GetSystemContracts(result.SystemAccount)
	if err != nil {
		t.Fatalf("get system contracts: %v", err)
	}
	for _, name := range []string{state.SystemContractMint, state.SystemContractAuction, state.SystemContractHandlePayment} {
		if _, ok := contracts[name]; !ok {
			t.Errorf("want %q registered under the system account", name)
		}
	}
}

func TestBootstrapFundsUserAccounts(t *testing.T) {
	store, err := trie.OpenStore(filepath.Join(t.TempDir(), "trie.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer store.Close()

	alice := Account{Name: "alice", Hash: AccountHashFromSeed("alice"), Balance: big.NewInt(1000)}
	result, err := Bootstrap(store, []Account{alice})
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	tc := state.New(store, result.Root)
	accVal, found, err := tc.Read(types.NewAccountKey(alice.Hash))
	if err != nil {
		t.Fatalf("read account: %v", err)
	}
	if !found || accVal.Account == nil {
		t.Fatal("want alice's account present after genesis")
	}

	bal, found, err := tc.Read(types.NewBalanceKey(accVal.Account.MainPurse.Addr))
	if err != nil {
		t.Fatalf("read balance: %v", err)
	}
	if !found {
		t.Fatal("want alice's main purse balance present")
	}
	amt := new(big.Int).SetBytes(bal.CLValue.Bytes)
	if amt.Cmp(big.NewInt(1000)) != 0 {
		t.Fatalf("want balance 1000, got %v", amt)
	}
}

func TestAccountHashFromSeedDeterministic(t *testing.T) {
	a := AccountHashFromSeed("same-seed")
	b := AccountHashFromSeed("same-seed")
	if a != b {
		t.Fatal("want identical hashes for identical seeds")
	}
	if a == AccountHashFromSeed("different-seed") {
		t.Fatal("want distinct hashes for distinct seeds")
	}
}
