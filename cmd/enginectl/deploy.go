package main

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"os"

	"github.com/spf13/cobra"

	"synnergy-core/engine"
	"synnergy-core/exec"
	"synnergy-core/genesis"
	"synnergy-core/state"
	"synnergy-core/trie"
	"synnergy-core/types"
)

var (
	deployWasmPath    string
	deployEntryPoint  string
	deployArgs        []string
	deployAccountSeed string
	deployGasLimit    uint64
	deployPayment     uint64
)

// randomDeployHash mints a fresh 32-byte deploy identifier so that two
// deploys of the same WASM file never share an AddressGenerator seed.
func randomDeployHash() (types.Hash32, error) {
	var h types.Hash32
	if _, err := rand.Read(h[:]); err != nil {
		return types.Hash32{}, err
	}
	return h, nil
}

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Run a WASM module as a fresh deploy's session code and commit the result",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		code, err := os.ReadFile(deployWasmPath)
		if err != nil {
			return err
		}
		args, err := parseRuntimeArgs(deployArgs)
		if err != nil {
			return err
		}
		if _, ok := args["amount"]; !ok {
			args["amount"] = types.CLValue{Type: types.CLU512, Bytes: new(big.Int).SetUint64(deployPayment).Bytes()}
		}
		deployHash, err := randomDeployHash()
		if err != nil {
			return err
		}

		store, path, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		root, err := readCurrentRoot(path)
		if err != nil {
			return err
		}
		tc := state.New(store, root)

		accountHash := genesis.AccountHashFromSeed(deployAccountSeed)
		accountVal, found, err := tc.Read(types.NewAccountKey(accountHash))
		if err != nil {
			return err
		}
		if !found || accountVal.Account == nil {
			return fmt.Errorf("enginectl: account %q (%s) not found; run genesis --account first", deployAccountSeed, accountHash)
		}

		result := exec.Exec(exec.ExecutionRequest{
			Kind:              exec.ExecModule,
			ModuleBytes:       code,
			EntryPointName:    deployEntryPoint,
			Account:           accountVal.Account,
			AuthorizationKeys: []types.Hash32{accountHash},
			Args:              args,
			GasLimit:          deployGasLimit,
			Phase:             types.PhaseSession,
			DeployHash:        deployHash,
			ProtocolVersion:   types.ProtocolVersion{Major: 1},
		}, tc, genesis.AccountHashFromSeed("genesis-system-account"), engine.DefaultEngineConfig(), engine.NewPrecompileCache())

		return commitAndReport(cmd, store, path, root, result)
	},
}

// commitAndReport persists result's journal (on success) and prints a short
// summary (gas used, the new root, and the return value when there is one),
// sharing the preRoot/commit logic between deploy and call.
func commitAndReport(cmd *cobra.Command, store *trie.Store, path string, preRoot trie.Digest, result exec.ExecutionResult) error {
	if !result.Success {
		fmt.Fprintf(cmd.OutOrStdout(), "execution failed: %v (gas used: %d)\n", result.Error, result.GasUsed)
		return nil
	}

	newRoot, err := store.Commit(preRoot, true, result.Journal)
	if err != nil {
		return err
	}
	if err := writeCurrentRoot(path, newRoot); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ok (gas used: %d)\nnew root: %s\n", result.GasUsed, newRoot)
	if len(result.ReturnValue) > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "return: %x\n", result.ReturnValue)
	}
	return nil
}

func init() {
	deployCmd.Flags().StringVar(&deployWasmPath, "wasm", "", "path to the WASM module to run")
	deployCmd.Flags().StringVar(&deployEntryPoint, "entry-point", "call", "module export to invoke")
	deployCmd.Flags().StringArrayVar(&deployArgs, "arg", nil, "name=type:value runtime argument (repeatable)")
	deployCmd.Flags().StringVar(&deployAccountSeed, "account", "", "seed string identifying the deploying account (see genesis --account)")
	deployCmd.Flags().Uint64Var(&deployGasLimit, "gas-limit", 1_000_000_000, "gas limit for this deploy")
	deployCmd.Flags().Uint64Var(&deployPayment, "payment", 0, "motes to set as the spending limit (\"amount\" arg) if --arg amount:... is not given")
	_ = deployCmd.MarkFlagRequired("wasm")
	_ = deployCmd.MarkFlagRequired("account")
}
