package main

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"synnergy-core/trie"
)

// rootFile returns the sidecar file enginectl uses to remember the latest
// committed root digest between invocations — the bbolt store itself holds
// every historical root, but a CLI process has no other way to know which
// one is "current" the next time it runs.
func rootFile(storePath string) string {
	return storePath + ".root"
}

func readCurrentRoot(storePath string) (trie.Digest, error) {
	b, err := os.ReadFile(rootFile(storePath))
	if err != nil {
		if os.IsNotExist(err) {
			return trie.Digest{}, nil
		}
		return trie.Digest{}, err
	}
	raw, err := hex.DecodeString(strings.TrimSpace(string(b)))
	if err != nil {
		return trie.Digest{}, fmt.Errorf("enginectl: corrupt root file %s: %w", rootFile(storePath), err)
	}
	var d trie.Digest
	copy(d[:], raw)
	return d, nil
}

func writeCurrentRoot(storePath string, d trie.Digest) error {
	return os.WriteFile(rootFile(storePath), []byte(d.String()+"\n"), 0644)
}

var stateRootCmd = &cobra.Command{
	Use:   "state-root",
	Short: "Print the currently committed state root",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		store, path, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		root, err := readCurrentRoot(path)
		if err != nil {
			return err
		}
		if root.IsZero() {
			fmt.Fprintln(cmd.OutOrStdout(), "(empty trie, no commits yet)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), root.String())
		return nil
	},
}
