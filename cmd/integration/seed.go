package main

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/turbo/snapshot"
)

var (
	seedDataDir   string
	seedPath      string
	seedFromBlock uint64
	seedToBlock   uint64
)

func init() {
	seedCmd.Flags().StringVar(&seedDataDir, "datadir", "", "torrent client data directory")
	seedCmd.Flags().StringVar(&seedPath, "file", "", "snapshot file to seed")
	seedCmd.Flags().Uint64Var(&seedFromBlock, "from", 0, "first block covered by the snapshot")
	seedCmd.Flags().Uint64Var(&seedToBlock, "to", 0, "last block covered by the snapshot")
	rootCmd.AddCommand(seedCmd)
}

// noopBodySource is seedCmd's BodyDownloader fallback: seeding only
// publishes a file over torrent and never serves a live request.
type noopBodySource struct{}

func (noopBodySource) RequestBodies(ctx context.Context, headers []*types.Header) (<-chan *types.Body, error) {
	return nil, errors.New("seed: no live body source configured")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed a snapshot file over torrent for a covered block range",
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedDataDir == "" || seedPath == "" {
			return errors.New("seed: --datadir and --file are required")
		}
		store, err := snapshot.NewStore(seedDataDir, noopBodySource{})
		if err != nil {
			return err
		}
		defer store.Close()
		return store.Seed(seedPath, seedFromBlock, seedToBlock)
	},
}
