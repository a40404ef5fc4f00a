package stagedsync

import (
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/changeset"
	"github.com/ledgerwatch/erigon-core/core/state"
	"github.com/ledgerwatch/erigon-core/kv"
)

// SpawnAccountHistoryIndex appends, for every block in
// (s.BlockNumber, toBlock], one shard entry per address touched in
// that block's AccountChangeSet (spec.md §3, C3 sharded history
// index), so a later as-of query can answer "what was this account's
// state at block N" without replaying every block since genesis.
func SpawnAccountHistoryIndex(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	cs, err := tx.CursorDupSort(dbutils.AccountChangeSet)
	if err != nil {
		return err
	}
	defer cs.Close()

	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		blockKey := dbutils.EncodeBlockNumber(b)
		k, v, err := cs.SeekBothRange(blockKey, nil)
		for ; k != nil; k, v, err = cs.NextDup() {
			if err != nil {
				return err
			}
			addr, _ := changeset.DecodeAccountRow(v)
			if err := state.IndexAppend(tx, dbutils.AccountHistory, addr[:], b); err != nil {
				return err
			}
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindAccountHistoryIndex removes the index entries recorded for
// every block above u.UnwindPoint, walking the same changesets in
// reverse to recover the touched-addresses set for each block.
func UnwindAccountHistoryIndex(u *UnwindState, s *StageState, tx kv.RwTx) error {
	cs, err := tx.CursorDupSort(dbutils.AccountChangeSet)
	if err != nil {
		return err
	}
	defer cs.Close()

	for b := s.BlockNumber; b > u.UnwindPoint; b-- {
		blockKey := dbutils.EncodeBlockNumber(b)
		k, v, err := cs.SeekBothRange(blockKey, nil)
		for ; k != nil; k, v, err = cs.NextDup() {
			if err != nil {
				return err
			}
			addr, _ := changeset.DecodeAccountRow(v)
			if err := state.IndexUnwind(tx, dbutils.AccountHistory, addr[:], b); err != nil {
				return err
			}
		}
	}
	return u.Done(tx)
}

// storageLogicalKey builds the logical key a storage slot's history
// index entries are filed under: address followed by storage key, so
// FindByIndex can answer "what was this slot's value at block N" for
// one specific (address, slot) pair (spec.md §3).
func storageLogicalKey(addr [20]byte, key [32]byte) []byte {
	out := make([]byte, 0, 52)
	out = append(out, addr[:]...)
	out = append(out, key[:]...)
	return out
}

// SpawnStorageHistoryIndex is StorageHistoryIndex's forward half,
// mirroring SpawnAccountHistoryIndex over StorageChangeSet.
func SpawnStorageHistoryIndex(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	c, err := tx.Cursor(dbutils.StorageChangeSet)
	if err != nil {
		return err
	}
	defer c.Close()

	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		prefix := dbutils.EncodeBlockNumber(b)
		for k, v, err := c.Seek(prefix); k != nil; k, v, err = c.Next() {
			if err != nil {
				return err
			}
			block, addr := dbutils.SplitStorageChangeSetKey(k)
			if block != b {
				break
			}
			_, storageKey, _ := changeset.DecodeStorageRow(v)
			logicalKey := storageLogicalKey(addr, storageKey)
			if err := state.IndexAppend(tx, dbutils.StorageHistory, logicalKey, b); err != nil {
				return err
			}
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindStorageHistoryIndex is StorageHistoryIndex's reverse half.
func UnwindStorageHistoryIndex(u *UnwindState, s *StageState, tx kv.RwTx) error {
	c, err := tx.Cursor(dbutils.StorageChangeSet)
	if err != nil {
		return err
	}
	defer c.Close()

	for b := s.BlockNumber; b > u.UnwindPoint; b-- {
		prefix := dbutils.EncodeBlockNumber(b)
		for k, v, err := c.Seek(prefix); k != nil; k, v, err = c.Next() {
			if err != nil {
				return err
			}
			block, addr := dbutils.SplitStorageChangeSetKey(k)
			if block != b {
				break
			}
			_, storageKey, _ := changeset.DecodeStorageRow(v)
			logicalKey := storageLogicalKey(addr, storageKey)
			if err := state.IndexUnwind(tx, dbutils.StorageHistory, logicalKey, b); err != nil {
				return err
			}
		}
	}
	return u.Done(tx)
}
