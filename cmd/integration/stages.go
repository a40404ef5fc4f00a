package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ledgerwatch/erigon-core/eth/stagedsync"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
)

func init() {
	rootCmd.AddCommand(stagesCmd)
}

var stagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "Print every stage's last-committed checkpoint",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		return db.View(context.Background(), func(tx kv.Tx) error {
			for _, id := range stages.AllStages() {
				progress, err := stagedsync.GetStageProgress(tx, id)
				if err != nil {
					return err
				}
				fmt.Printf("%-20s %d\n", id, progress)
			}
			return nil
		})
	},
}
