// Package stagedsync is the pipeline driver of spec.md §4.7 (C7): an
// ordered list of stages, each persisting its own checkpoint in
// SyncStage, run forward to a target block and unwound in reverse
// order when a later stage (or the caller) detects a reorg past an
// already-processed point (I7: no stage's checkpoint may exceed the
// checkpoint of any stage before it in the list).
//
// Grounded on the teacher's eth/stagedsync/stage_log_index.go
// (StageState.BlockNumber/ExecutionAt/Done/DoneAndUpdate, UnwindState
// .UnwindPoint/Done) generalized toward the fuller driver contract
// shown by other_examples/79cd0c37_..._stage_execute.go (StageState
// .LogPrefix/Update, UnwindState.LogPrefix, Unwinder.UnwindTo) — the
// erigon-lineage shape the teacher's own stagedsync package evolved
// into.
package stagedsync

import (
	"fmt"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
)

// StageState is the read view a running stage gets of its own
// checkpoint.
type StageState struct {
	ID          stages.SyncStage
	BlockNumber uint64
}

func (s *StageState) LogPrefix() string { return fmt.Sprintf("[%s]", s.ID) }

// ExecutionAt returns the checkpoint of the Execution stage, the
// canonical "how far is there verified state" watermark most stages
// key their own progress off (spec.md §4.7: each stage "processes up
// to the block number the prior stage has reached").
func (s *StageState) ExecutionAt(tx kv.Tx) (uint64, error) {
	return GetStageProgress(tx, stages.Execution)
}

// Done marks the stage as having made no forward progress this cycle.
func (s *StageState) Done() {}

// Update persists the stage's new checkpoint without signaling
// completion (used mid-stage, e.g. after each commit-threshold batch).
func (s *StageState) Update(tx kv.RwTx, block uint64) error {
	return SaveStageProgress(tx, s.ID, block)
}

// DoneAndUpdate persists the stage's new checkpoint and marks the
// cycle's work as finished.
func (s *StageState) DoneAndUpdate(tx kv.RwTx, block uint64) error {
	s.BlockNumber = block
	return s.Update(tx, block)
}

// UnwindState is the view a stage's UnwindFunc gets: where it must
// rewind its own tables to.
type UnwindState struct {
	ID          stages.SyncStage
	UnwindPoint uint64
}

func (u *UnwindState) LogPrefix() string { return fmt.Sprintf("[%s]", u.ID) }

// Done persists the stage's checkpoint after a successful unwind.
func (u *UnwindState) Done(tx kv.RwTx) error {
	return SaveStageProgress(tx, u.ID, u.UnwindPoint)
}

// Unwinder lets a stage (typically Execution, on detecting a bad
// block or a deeper canonical reorg) request that the whole pipeline
// rewind to an earlier block before continuing forward.
type Unwinder interface {
	UnwindTo(block uint64, reason string)
}

// GetStageProgress reads a stage's last-committed checkpoint; an
// unseen stage starts at block 0 (spec.md §4.7, §3's SyncStage table).
func GetStageProgress(tx kv.Tx, id stages.SyncStage) (uint64, error) {
	v, err := tx.GetOne(dbutils.SyncStage, []byte(id))
	if err != nil {
		return 0, err
	}
	if len(v) == 0 {
		return 0, nil
	}
	return dbutils.DecodeBlockNumber(v), nil
}

func SaveStageProgress(tx kv.RwTx, id stages.SyncStage, block uint64) error {
	return tx.Put(dbutils.SyncStage, []byte(id), dbutils.EncodeBlockNumber(block))
}
