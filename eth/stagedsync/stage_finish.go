package stagedsync

import "github.com/ledgerwatch/erigon-core/kv"

// SpawnFinish is the pipeline's terminal stage: once every other stage
// has committed through toBlock, Finish's own checkpoint is the single
// number a caller polls to learn "the node is caught up to toBlock"
// (spec.md §4.8).
func SpawnFinish(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindFinish just drops the checkpoint; Finish has no state of its
// own to roll back.
func UnwindFinish(u *UnwindState, s *StageState, tx kv.RwTx) error {
	return u.Done(tx)
}
