// Command enginectl is the CLI front end for the execution engine: genesis
// bootstrap, one-shot deploy/call against a persistent trie store, state
// root inspection, and an HTTP daemon mode for submitting deploys remotely.
//
// Structure mirrors the teacher's cmd/cli package (a lazily-initialised,
// sync.Once-guarded global context shared by every subcommand's RunE), with
// the persistent state narrowed from a full node down to this engine's own
// trie store and configuration.
package main

import (
	"fmt"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"synnergy-core/pkg/config"
	"synnergy-core/trie"
)

var (
	ctlOnce   sync.Once
	ctlLogger = logrus.StandardLogger()
	ctlConfig *config.Config
)

// ctlInit loads .env, configures logging, and loads configuration once per
// process, regardless of how many PersistentPreRunE hooks fire.
func ctlInit(cmd *cobra.Command, _ []string) error {
	var err error
	ctlOnce.Do(func() {
		_ = godotenv.Load()

		lvl := os.Getenv("LOG_LEVEL")
		if lvl == "" {
			lvl = "info"
		}
		lv, e := logrus.ParseLevel(lvl)
		if e != nil {
			err = e
			return
		}
		ctlLogger.SetLevel(lv)
		ctlLogger.SetFormatter(&logrus.JSONFormatter{})

		ctlConfig = config.LoadOptional()
	})
	return err
}

// openStore opens the bbolt-backed trie store at the configured path,
// falling back to "enginectl.db" in the working directory when no
// TrieStorePath is set.
func openStore() (*trie.Store, string, error) {
	path := ctlConfig.TrieStorePath
	if path == "" {
		path = "enginectl.db"
	}
	st, err := trie.OpenStore(path)
	return st, path, err
}

var rootCmd = &cobra.Command{
	Use:               "enginectl",
	Short:             "Deterministic WASM execution engine control plane",
	PersistentPreRunE: ctlInit,
}

func main() {
	rootCmd.AddCommand(genesisCmd, deployCmd, callCmd, stateRootCmd, serveCmd)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
