// Package genesis builds the initial global-state commit a fresh enginectl
// instance needs before any deploy can run: the system account carrying the
// three native contracts' named keys (spec §7's "system contracts are
// resolved from the genesis account"), and zero or more funded user
// accounts.
//
// Grounded on the teacher's ledger.go LedgerConfig.GenesisBlock path (load
// a genesis block once, at startup, before accepting transactions),
// narrowed here to the one thing this engine's genesis actually needs to
// seed: accounts and their main purses, not a full block.
package genesis

import (
	"math/big"

	"golang.org/x/crypto/blake2b"

	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

// Account describes one account to fund at genesis.
type Account struct {
	Name    string // human label; also seeds the main purse address
	Hash    types.Hash32
	Balance *big.Int
}

// AccountHashFromSeed derives a deterministic account hash from an
// arbitrary seed string (a public key hex string, a CLI-supplied label,
// anything) by blake2b-hashing it. Genesis accounts need no unforgeability
// guarantee beyond "distinct seeds produce distinct hashes", unlike the
// AddressGenerator's deploy-scoped stream.
func AccountHashFromSeed(seed string) types.Hash32 {
	sum := blake2b.Sum256([]byte(seed))
	var out types.Hash32
	copy(out[:], sum[:])
	return out
}

// Result is what Bootstrap produces: the new root digest plus the resolved
// system account hash, ready to pass to exec.Exec's systemAccount
// parameter on every subsequent deploy.
type Result struct {
	Root          trie.Digest
	SystemAccount types.Hash32
}

// Bootstrap writes a fresh system account (with mint/auction/handle_payment
// contracts registered under its named keys) plus every account in users
// into store, committing one genesis journal, and returns the resulting
// root.
//
// The three system contracts are stored as Contract values with empty
// EntryPoints maps and a zero ContractWasmHash: they are dispatched
// natively by exec.dispatchSystemContract, which never loads or runs WASM
// for them, so no ContractWasm blob is needed at genesis.
func Bootstrap(store *trie.Store, users []Account) (Result, error) {
	tc := state.New(store, trie.Digest{})

	systemAccountHash := AccountHashFromSeed("genesis-system-account")
	systemNamedKeys := make(map[string]types.Key, 3)
	for _, name := range []string{state.SystemContractMint, state.SystemContractAuction, state.SystemContractHandlePayment} {
		contractHash := AccountHashFromSeed("genesis-contract-" + name)
		tc.Write(types.NewHashKey(contractHash), types.StoredValue{
			Tag: types.SVContract,
			Contract: &types.Contract{
				ContractPackageHash: contractHash,
				NamedKeys:           map[string]types.Key{},
				EntryPoints:         map[string]types.EntryPoint{},
				ProtocolVersion:     types.ProtocolVersion{Major: 1},
			},
		})
		systemNamedKeys[name] = types.NewHashKey(contractHash)
	}

	systemPurse := types.NewURef(AccountHashFromSeed("genesis-system-purse"), types.RightsReadAddWrite)
	tc.Write(types.NewBalanceKey(systemPurse.Addr), zeroBalance())
	tc.Write(types.NewAccountKey(systemAccountHash), types.StoredValue{
		Tag: types.SVAccount,
		Account: &types.Account{
			AccountHash: systemAccountHash,
			NamedKeys:   systemNamedKeys,
			MainPurse:   systemPurse,
			ActionThresholds: types.ActionThresholds{
				Deployment: 1,
				KeyManagement: 1,
			},
		},
	})

	for _, u := range users {
		purse := types.NewURef(AccountHashFromSeed("genesis-purse-"+u.Name), types.RightsReadAddWrite)
		tc.Write(types.NewBalanceKey(purse.Addr), zeroBalance())
		tc.Write(types.NewAccountKey(u.Hash), types.StoredValue{
			Tag: types.SVAccount,
			Account: &types.Account{
				AccountHash: u.Hash,
				NamedKeys:   map[string]types.Key{},
				MainPurse:   purse,
				ActionThresholds: types.ActionThresholds{
					Deployment: 1,
					KeyManagement: 1,
				},
			},
		})
		if u.Balance != nil && u.Balance.Sign() > 0 {
			if err := tc.AddBigInt(types.NewBalanceKey(purse.Addr), u.Balance); err != nil {
				return Result{}, err
			}
		}
	}

	root, err := store.Commit(trie.Digest{}, true, tc.ExecutionJournal())
	if err != nil {
		return Result{}, err
	}
	return Result{Root: root, SystemAccount: systemAccountHash}, nil
}

// zeroBalance mirrors exec.Runtime.CreatePurse's zero-value CLValue: a
// purse's balance key must exist before anything can Add against it.
func zeroBalance() types.StoredValue {
	return types.StoredValue{Tag: types.SVCLValue, CLValue: &types.CLValue{Type: types.CLU512, Bytes: new(big.Int).Bytes()}}
}
