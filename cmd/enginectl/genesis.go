package main

import (
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-core/genesis"
)

var genesisAccountSeeds []string
var genesisAccountBalance uint64

var genesisCmd = &cobra.Command{
	Use:   "genesis",
	Short: "Bootstrap a fresh trie store with the system account and any funded users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, path, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if root, err := readCurrentRoot(path); err == nil && !root.IsZero() {
			return fmt.Errorf("enginectl: %s already has a committed root %s; refusing to re-run genesis", path, root)
		}

		users := make([]genesis.Account, 0, len(genesisAccountSeeds))
		for _, seed := range genesisAccountSeeds {
			users = append(users, genesis.Account{
				Name:    seed,
				Hash:    genesis.AccountHashFromSeed(seed),
				Balance: new(big.Int).SetUint64(genesisAccountBalance),
			})
		}

		result, err := genesis.Bootstrap(store, users)
		if err != nil {
			return err
		}
		if err := writeCurrentRoot(path, result.Root); err != nil {
			return err
		}

		ctlLogger.WithFields(logrus.Fields{
			"root":           result.Root.String(),
			"system_account": result.SystemAccount.String(),
			"users":          len(users),
		}).Info("genesis committed")
		fmt.Fprintf(cmd.OutOrStdout(), "root: %s\nsystem_account: %s\n", result.Root, result.SystemAccount)
		for _, u := range users {
			fmt.Fprintf(cmd.OutOrStdout(), "account %q: %s\n", u.Name, u.Hash)
		}
		return nil
	},
}

func init() {
	genesisCmd.Flags().StringSliceVar(&genesisAccountSeeds, "account", nil, "seed string for a user account to fund at genesis (repeatable)")
	genesisCmd.Flags().Uint64Var(&genesisAccountBalance, "balance", 0, "starting balance (motes) for each --account")
}
