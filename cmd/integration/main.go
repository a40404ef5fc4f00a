// Command integration is this module's operator CLI (SPEC_FULL.md §6):
// a cobra root command (teacher go.mod: github.com/spf13/cobra,
// matching cmd/headers/commands/download.go's Flags()/RunE pattern)
// exposing the external configuration surface spec.md §6 names —
// chaindata path, commit thresholds, byte-sized map limits — without
// any JSON-RPC or p2p surface (spec.md §1 Non-goals).
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ledgerwatch/erigon-core/log"
)

var (
	chaindataPath string
	inMem         bool
)

var rootCmd = &cobra.Command{
	Use:   "integration",
	Short: "Staged-sync pipeline operator CLI",
}

func main() {
	rootCmd.PersistentFlags().StringVar(&chaindataPath, "chaindata", "chaindata", "path to the chaindata database directory")
	rootCmd.PersistentFlags().BoolVar(&inMem, "inmem", false, "use an in-memory store instead of the LMDB-backed one")
	rootCmd.PersistentFlags().Uint64Var(&mapSizeMB, "mapsize", 0, "LMDB map size in MB (0 uses kv/lmdb's default)")

	if err := rootCmd.Execute(); err != nil {
		log.Error(fmt.Sprintf("integration: %v", err))
		os.Exit(1)
	}
}
