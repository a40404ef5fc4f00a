package stagedsync

import (
	"math/big"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/kv"
)

// SpawnTotalDifficulty accumulates HeaderTD[b] = HeaderTD[b-1] +
// Headers[b].difficulty for every block up to toBlock (spec.md §4.8).
func SpawnTotalDifficulty(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	td := new(big.Int)
	if s.BlockNumber > 0 {
		prev, err := rawdb.HeaderTDByNumber(tx, s.BlockNumber, 0)
		if err == nil {
			td = prev
		}
	}

	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		header, err := rawdb.Header(tx, b)
		if err != nil {
			return err
		}
		if header.Difficulty != nil {
			td = new(big.Int).Add(td, header.Difficulty)
		}
		if err := tx.Put(dbutils.HeaderTD, common.EncodeBlockNumber(b), td.Bytes()); err != nil {
			return err
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindTotalDifficulty deletes HeaderTD rows above u.UnwindPoint.
func UnwindTotalDifficulty(u *UnwindState, s *StageState, tx kv.RwTx) error {
	c, err := tx.RwCursor(dbutils.HeaderTD)
	if err != nil {
		return err
	}
	defer c.Close()
	for k, _, err := c.Seek(common.EncodeBlockNumber(u.UnwindPoint + 1)); k != nil; k, _, err = c.Next() {
		if err != nil {
			return err
		}
		if err := c.DeleteCurrent(); err != nil {
			return err
		}
	}
	return u.Done(tx)
}
