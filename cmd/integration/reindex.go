package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/log"
)

var reindexTable string

func init() {
	reindexCmd.Flags().StringVar(&reindexTable, "index", "account", "which index to regenerate: account or storage")
	rootCmd.AddCommand(reindexCmd)
}

// reindexCmd drops and rebuilds one history index table from its
// changeset from scratch, adapting the teacher's
// cmd/state/generate/regenerate_index.go (RegenerateIndex: drop the
// index bucket, then GenerateIndex(0, csBucket)) to this module's
// sharded bitmapdb index and the AccountHistoryIndex/StorageHistoryIndex
// stage functions that already walk changesets block by block.
var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Drop and regenerate a history index table from its changeset",
	RunE: func(cmd *cobra.Command, args []string) error {
		var table string
		var stageID stages.SyncStage
		switch reindexTable {
		case "account":
			table, stageID = dbutils.AccountHistory, stages.AccountHistoryIndex
		case "storage":
			table, stageID = dbutils.StorageHistory, stages.StorageHistoryIndex
		default:
			return errors.New("reindex: --index must be account or storage")
		}

		db, closeDB, err := openDB()
		if err != nil {
			return err
		}
		defer closeDB()

		start := time.Now()
		log.Info("reindex: started", "index", reindexTable)
		err = db.Update(context.Background(), func(tx kv.RwTx) error {
			if err := dropTable(tx, table); err != nil {
				return err
			}
			toBlock, err := stagedsync.GetStageProgress(tx, stages.Execution)
			if err != nil {
				return err
			}
			s := &stagedsync.StageState{ID: stageID, BlockNumber: 0}
			if reindexTable == "account" {
				return stagedsync.SpawnAccountHistoryIndex(s, nil, tx, toBlock)
			}
			return stagedsync.SpawnStorageHistoryIndex(s, nil, tx, toBlock)
		})
		if err != nil {
			return err
		}
		log.Info("reindex: finished", "index", reindexTable, "took", time.Since(start))
		return nil
	},
}

func dropTable(tx kv.RwTx, table string) error {
	c, err := tx.RwCursor(table)
	if err != nil {
		return err
	}
	defer c.Close()
	for k, _, err := c.First(); k != nil; k, _, err = c.First() {
		if err != nil {
			return err
		}
		if err := c.Delete(k); err != nil {
			return err
		}
	}
	return nil
}
