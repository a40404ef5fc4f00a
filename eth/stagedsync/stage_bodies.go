package stagedsync

import (
	"context"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/kv"
)

// BodiesCfg bundles the Bodies stage's streaming collaborator. Hasher
// is optional; when set, each body is checked against its header's
// transactionsRoot/ommersHash/withdrawalsRoot before being written.
type BodiesCfg struct {
	Downloader BodyDownloader
	Hasher     BodyHasher
}

// SpawnBodies consumes cfg.Downloader's body stream for the
// contiguous range (s.BlockNumber, toBlock], validates each body
// against cfg.Hasher (spec.md §4.9), and writes
// Transactions/TransactionBlock/BlockBodyIndices/BlockWithdrawals via
// rawdb.InsertBlock (spec.md §4.8); ommers and tx-hash lookups are not
// stored. It advances the global tx counter
// that every subsequent tx-keyed table depends on (I2). A body that
// fails validation is never written: SpawnBodies returns a
// *StageValidation naming the offending block instead (S5), aborting
// this batch's write transaction so none of its blocks — valid
// predecessors included — land until Run has unwound below it.
func SpawnBodies(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64, cfg BodiesCfg) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	headers := make([]*types.Header, 0, toBlock-s.BlockNumber)
	for b := s.BlockNumber + 1; b <= toBlock; b++ {
		h, err := rawdb.Header(tx, b)
		if err != nil {
			return err
		}
		headers = append(headers, h)
	}

	bodies, err := cfg.Downloader.RequestBodies(context.Background(), headers)
	if err != nil {
		return err
	}

	txBase, err := nextTxNum(tx)
	if err != nil {
		return err
	}

	written := s.BlockNumber
	for _, h := range headers {
		body, ok := <-bodies
		if !ok {
			break
		}
		if cfg.Hasher != nil {
			if err := validateBody(cfg.Hasher, h, body); err != nil {
				return err
			}
		}
		block := types.NewBlock(h, body)
		if err := rawdb.InsertBlock(tx, block, nil, txBase); err != nil {
			return err
		}
		txBase += uint64(len(body.Transactions))
		written = h.NumberU64()
	}
	return s.DoneAndUpdate(tx, written)
}

// validateBody checks a downloaded body against the three root
// commitments its header carries (spec.md §4.9). A mismatch means the
// body does not belong to this header and must not be persisted; the
// caller turns this into an unwind to the block below it (S5).
func validateBody(hasher BodyHasher, h *types.Header, body *types.Body) error {
	txRoot, ommersHash, withdrawalsRoot, err := hasher.HashBody(context.Background(), body)
	if err != nil {
		return err
	}
	if txRoot != h.TxHash || ommersHash != h.UncleHash {
		return &StageValidation{Block: h.NumberU64()}
	}
	if h.WithdrawalsHash != nil && (withdrawalsRoot == nil || *withdrawalsRoot != *h.WithdrawalsHash) {
		return &StageValidation{Block: h.NumberU64()}
	}
	return nil
}

// nextTxNum is the first unused global tx number: one past the last
// block's FirstTxNum+TxCount, or 0 if no block has been inserted yet.
func nextTxNum(tx kv.Tx) (uint64, error) {
	c, err := tx.Cursor(dbutils.BlockBodyIndices)
	if err != nil {
		return 0, err
	}
	defer c.Close()
	_, v, err := c.Last()
	if err != nil {
		return 0, err
	}
	if v == nil {
		return 0, nil
	}
	idx, err := rawdb.DecodeBodyIndices(v)
	if err != nil {
		return 0, err
	}
	return idx.FirstTxNum + uint64(idx.TxCount), nil
}

// UnwindBodies deletes body-side tables above u.UnwindPoint.
func UnwindBodies(u *UnwindState, s *StageState, tx kv.RwTx) error {
	c, err := tx.RwCursor(dbutils.BlockBodyIndices)
	if err != nil {
		return err
	}
	defer c.Close()

	for k, v, err := c.Seek(common.EncodeBlockNumber(u.UnwindPoint + 1)); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		idx, err := rawdb.DecodeBodyIndices(v)
		if err != nil {
			return err
		}
		for i := uint32(0); i < idx.TxCount; i++ {
			txKey := common.EncodeBlockNumber(idx.FirstTxNum + uint64(i))
			if err := tx.Delete(dbutils.Transactions, txKey); err != nil {
				return err
			}
			if err := tx.Delete(dbutils.TxSenders, txKey); err != nil {
				return err
			}
			if err := tx.Delete(dbutils.TransactionBlock, txKey); err != nil {
				return err
			}
		}
		if err := tx.Delete(dbutils.BlockWithdrawals, k); err != nil {
			return err
		}
		if err := c.DeleteCurrent(); err != nil {
			return err
		}
	}
	return u.Done(tx)
}
