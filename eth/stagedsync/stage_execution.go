package stagedsync

import (
	"context"

	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/core/state"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/log"
)

// ExecutionCfg bundles the Execution stage's EVM collaborator and its
// two commit-threshold dimensions (spec.md §4.8: "max_blocks blocks OR
// max_changes state mutations, whichever first"), grounded on
// other_examples/79cd0c37_..._stage_execute.go's SpawnExecuteBlocksStage
// commit/flush loop.
type ExecutionCfg struct {
	Executor   EVMExecutor
	MaxBlocks  uint64
	MaxChanges int
	// Cache, if set, is invalidated for every address/slot PostState
	// touches right after the block's write commits — the same
	// write-then-invalidate ordering db_state_writer.go keeps between a
	// table write and its fastcache entry.
	Cache *state.ReadCache
}

// SpawnExecution replays blocks (s.BlockNumber, toBlock] through
// cfg.Executor and persists each block's PostState, committing whenever
// either commit-threshold dimension is hit (spec.md §4.8, §5 "single
// writer" rule — PostState.WriteToDB is the only mutation path here).
func SpawnExecution(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64, cfg ExecutionCfg) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	maxBlocks := cfg.MaxBlocks
	if maxBlocks == 0 {
		maxBlocks = 1 << 20
	}

	var blocksInBatch uint64
	var changesInBatch int
	written := s.BlockNumber

	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		block, senders, err := rawdb.BlockWithSenders(tx, b)
		if err != nil {
			return err
		}
		ps, err := cfg.Executor.ExecuteBlock(context.Background(), block, senders)
		if err != nil {
			return err
		}
		if ps.Block != b {
			ps.Block = b
		}
		if err := ps.WriteToDB(tx); err != nil {
			return err
		}
		if cfg.Cache != nil {
			for addr := range ps.Accounts {
				cfg.Cache.InvalidateAccount(addr)
			}
			for addr, slots := range ps.Storage {
				for key, slot := range slots {
					cfg.Cache.InvalidateStorage(addr, slot.Incarnation, key)
				}
			}
		}

		written = b
		blocksInBatch++
		changesInBatch += len(ps.Accounts)
		for _, slots := range ps.Storage {
			changesInBatch += len(slots)
		}

		atThreshold := blocksInBatch >= maxBlocks || (cfg.MaxChanges > 0 && changesInBatch >= cfg.MaxChanges)
		if atThreshold && b < toBlock {
			if err := s.Update(tx, written); err != nil {
				return err
			}
			log.Info("[Execution] committed batch", "block", written, "changes", changesInBatch)
			return nil
		}
	}
	return s.DoneAndUpdate(tx, written)
}

// UnwindExecution reconstructs and discards every block's PostState in
// (u.UnwindPoint, s.BlockNumber] via
// state.GetTakeBlockExecutionResultRange(take=true), restoring
// PlainAccountState/PlainStorageState/Receipts to their image as of
// u.UnwindPoint (spec.md §4.5 reverse path, §4.8 Execution unwind).
func UnwindExecution(u *UnwindState, s *StageState, tx kv.RwTx) error {
	if s.BlockNumber <= u.UnwindPoint {
		return u.Done(tx)
	}
	if _, err := state.GetTakeBlockExecutionResultRange(tx, u.UnwindPoint+1, s.BlockNumber, true); err != nil {
		return err
	}
	return u.Done(tx)
}
