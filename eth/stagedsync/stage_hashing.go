package stagedsync

import (
	"github.com/ledgerwatch/erigon-core/core/state"
	"github.com/ledgerwatch/erigon-core/kv"
)

// SpawnAccountHashing projects PlainAccountState -> HashedAccount for
// every block in (s.BlockNumber, toBlock] (spec.md §4.8, C4).
func SpawnAccountHashing(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		if err := state.ProjectAccountChanges(tx, b); err != nil {
			return err
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// SpawnStorageHashing projects PlainStorageState -> HashedStorage for
// every block in (s.BlockNumber, toBlock].
func SpawnStorageHashing(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		if err := state.ProjectStorageChanges(tx, b); err != nil {
			return err
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindAccountHashing re-projects the hashed mirror for every block
// being unwound: after Execution's unwind has restored
// PlainAccountState to its pre-unwind-point image, re-running the same
// projection brings HashedAccount back in sync with it.
func UnwindAccountHashing(u *UnwindState, s *StageState, tx kv.RwTx) error {
	for b := u.UnwindPoint + 1; b <= s.BlockNumber; b++ {
		if err := state.ProjectAccountChanges(tx, b); err != nil {
			return err
		}
	}
	return u.Done(tx)
}

func UnwindStorageHashing(u *UnwindState, s *StageState, tx kv.RwTx) error {
	for b := u.UnwindPoint + 1; b <= s.BlockNumber; b++ {
		if err := state.ProjectStorageChanges(tx, b); err != nil {
			return err
		}
	}
	return u.Done(tx)
}
