package stagedsync

import (
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
)

// StagedSyncCfg bundles every external collaborator and tunable this
// module's pipeline needs, grounded on the teacher's eth/stagedsync
// pattern of a single Cfg-per-stage wired together by one assembly
// function (stage_log_index.go's LogIndexCfg is the narrow teacher
// precedent this generalizes).
type StagedSyncCfg struct {
	Headers    HeadersCfg
	Bodies     BodiesCfg
	Senders    SendersCfg
	Execution  ExecutionCfg
	Merkle     MerkleCfg
}

// DefaultStages assembles the full ordered pipeline named in spec.md
// §4.8: Headers, TotalDifficulty, Bodies, SenderRecovery, Execution,
// MerkleUnwind, AccountHashing, StorageHashing, MerkleExecute,
// AccountHistoryIndex, StorageHistoryIndex, Finish.
func DefaultStages(cfg StagedSyncCfg) []*Stage {
	return []*Stage{
		{
			ID:          stages.Headers,
			Description: "Download headers",
			Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
				return SpawnHeaders(s, u, tx, toBlock, cfg.Headers)
			},
			Unwind: UnwindHeaders,
		},
		{
			ID:          stages.TotalDifficulty,
			Description: "Accumulate total difficulty",
			Exec:        SpawnTotalDifficulty,
			Unwind:      UnwindTotalDifficulty,
		},
		{
			ID:          stages.Bodies,
			Description: "Download block bodies",
			Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
				return SpawnBodies(s, u, tx, toBlock, cfg.Bodies)
			},
			Unwind: UnwindBodies,
		},
		{
			ID:          stages.SenderRecovery,
			Description: "Recover transaction senders",
			Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
				return SpawnSenderRecovery(s, u, tx, toBlock, cfg.Senders)
			},
			Unwind: UnwindSenderRecovery,
		},
		{
			ID:          stages.Execution,
			Description: "Execute blocks",
			Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
				return SpawnExecution(s, u, tx, toBlock, cfg.Execution)
			},
			Unwind: UnwindExecution,
		},
		{
			ID:          stages.MerkleUnwind,
			Description: "Prepare trie for rebuild",
			Exec:        SpawnMerkleUnwind,
			Unwind: func(u *UnwindState, s *StageState, tx kv.RwTx) error {
				return UnwindMerkleUnwind(u, s, tx, cfg.Merkle)
			},
		},
		{
			ID:          stages.AccountHashing,
			Description: "Project plain account state to hashed state",
			Exec:        SpawnAccountHashing,
			Unwind:      UnwindAccountHashing,
		},
		{
			ID:          stages.StorageHashing,
			Description: "Project plain storage state to hashed state",
			Exec:        SpawnStorageHashing,
			Unwind:      UnwindStorageHashing,
		},
		{
			ID:          stages.MerkleExecute,
			Description: "Recompute and validate the state root",
			Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
				return SpawnMerkleExecute(s, u, tx, toBlock, cfg.Merkle)
			},
			Unwind: UnwindMerkleExecute,
		},
		{
			ID:          stages.AccountHistoryIndex,
			Description: "Index account history",
			Exec:        SpawnAccountHistoryIndex,
			Unwind:      UnwindAccountHistoryIndex,
		},
		{
			ID:          stages.StorageHistoryIndex,
			Description: "Index storage history",
			Exec:        SpawnStorageHistoryIndex,
			Unwind:      UnwindStorageHistoryIndex,
		},
		{
			ID:          stages.Finish,
			Description: "Publish the finished checkpoint",
			Exec:        SpawnFinish,
			Unwind:      UnwindFinish,
		},
	}
}
