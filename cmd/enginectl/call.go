package main

import (
	"fmt"
	"math/big"

	"github.com/spf13/cobra"

	"synnergy-core/engine"
	"synnergy-core/exec"
	"synnergy-core/genesis"
	"synnergy-core/state"
	"synnergy-core/types"
)

var (
	callContractHash string
	callEntryPoint   string
	callArgs         []string
	callAccountSeed  string
	callGasLimit     uint64
	callPayment      uint64
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Invoke an entry point on an already-stored contract",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		contractHash, err := parseHash(callContractHash)
		if err != nil {
			return err
		}
		args, err := parseRuntimeArgs(callArgs)
		if err != nil {
			return err
		}
		if _, ok := args["amount"]; !ok {
			args["amount"] = types.CLValue{Type: types.CLU512, Bytes: new(big.Int).SetUint64(callPayment).Bytes()}
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

		accountHash := genesis.AccountHashFromSeed(callAccountSeed)
		accountVal, found, err := tc.Read(types.NewAccountKey(accountHash))
		if err != nil {
			return err
		}
		if !found || accountVal.Account == nil {
			return fmt.Errorf("enginectl: account %q (%s) not found; run genesis --account first", callAccountSeed, accountHash)
		}

		result := exec.Exec(exec.ExecutionRequest{
			Kind:              exec.ExecStoredContract,
			ContractHash:      contractHash,
			EntryPointName:    callEntryPoint,
			Account:           accountVal.Account,
			AuthorizationKeys: []types.Hash32{accountHash},
			Args:              args,
			GasLimit:          callGasLimit,
			Phase:             types.PhaseSession,
			DeployHash:        deployHash,
			ProtocolVersion:   types.ProtocolVersion{Major: 1},
		}, tc, genesis.AccountHashFromSeed("genesis-system-account"), engine.DefaultEngineConfig(), engine.NewPrecompileCache())

		return commitAndReport(cmd, store, path, root, result)
	},
}

func init() {
	callCmd.Flags().StringVar(&callContractHash, "contract", "", "32-byte hex contract hash to invoke")
	callCmd.Flags().StringVar(&callEntryPoint, "entry-point", "", "entry point name")
	callCmd.Flags().StringArrayVar(&callArgs, "arg", nil, "name=type:value runtime argument (repeatable)")
	callCmd.Flags().StringVar(&callAccountSeed, "account", "", "seed string identifying the calling account (see genesis --account)")
	callCmd.Flags().Uint64Var(&callGasLimit, "gas-limit", 1_000_000_000, "gas limit for this call")
	callCmd.Flags().Uint64Var(&callPayment, "payment", 0, "motes to set as the spending limit (\"amount\" arg) if --arg amount:... is not given")
	_ = callCmd.MarkFlagRequired("contract")
	_ = callCmd.MarkFlagRequired("entry-point")
	_ = callCmd.MarkFlagRequired("account")
}
