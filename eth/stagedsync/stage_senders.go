package stagedsync

import (
	"context"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/kv"
	"golang.org/x/sync/errgroup"
)

// SendersCfg bundles the SenderRecovery stage's cryptographic
// collaborator and its worker fan-out width. Recovery is the one
// CPU-bound pure function this stage offloads to parallel workers
// before funneling results back through the single writer (spec.md
// §5), grounded on other_examples/79cd0c37_..._stage_execute.go's
// blocksReadAhead use of golang.org/x/sync/errgroup (teacher go.mod).
type SendersCfg struct {
	Recoverer SenderRecoverer
	Workers   int
}

// SpawnSenderRecovery recovers and writes TxSenders for every
// transaction in (s.BlockNumber, toBlock], one goroutine per block
// recovering that block's senders concurrently, joined and written in
// block order so TxSenders stays strictly block-ordered (spec.md §5
// ordering guarantee).
func SpawnSenderRecovery(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64, cfg SendersCfg) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	workers := cfg.Workers
	if workers <= 0 {
		workers = 1
	}

	for b := s.BlockNumber + 1; b <= toBlock; b += uint64(workers) {
		batchEnd := b + uint64(workers) - 1
		if batchEnd > toBlock {
			batchEnd = toBlock
		}
		results := make([][]common.Address, batchEnd-b+1)
		bases := make([]uint64, batchEnd-b+1)

		g, ctx := errgroup.WithContext(context.Background())
		for i := b; i <= batchEnd; i++ {
			i := i
			idx, err := blockTxIndices(tx, i)
			if err != nil {
				return err
			}
			txs, err := rawdb.TransactionsByTxRange(tx, idx.FirstTxNum, idx.TxCount)
			if err != nil {
				return err
			}
			bases[i-b] = idx.FirstTxNum
			g.Go(func() error {
				senders, err := cfg.Recoverer.RecoverSenders(ctx, txs)
				if err != nil {
					return err
				}
				results[i-b] = senders
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for i := b; i <= batchEnd; i++ {
			senders := results[i-b]
			base := bases[i-b]
			for j, addr := range senders {
				if err := tx.Put(dbutils.TxSenders, common.EncodeBlockNumber(base+uint64(j)), addr.Bytes()); err != nil {
					return err
				}
			}
		}
		if err := s.Update(tx, batchEnd); err != nil {
			return err
		}
	}
	return s.DoneAndUpdate(tx, toBlock)
}

func blockTxIndices(tx kv.Tx, block uint64) (rawdb.BodyIndices, error) {
	v, err := tx.GetOne(dbutils.BlockBodyIndices, common.EncodeBlockNumber(block))
	if err != nil {
		return rawdb.BodyIndices{}, err
	}
	return rawdb.DecodeBodyIndices(v)
}

// UnwindSenderRecovery deletes TxSenders rows above u.UnwindPoint.
func UnwindSenderRecovery(u *UnwindState, s *StageState, tx kv.RwTx) error {
	for b := s.BlockNumber; b > u.UnwindPoint; b-- {
		idx, err := blockTxIndices(tx, b)
		if err != nil {
			continue
		}
		for i := uint32(0); i < idx.TxCount; i++ {
			if err := tx.Delete(dbutils.TxSenders, common.EncodeBlockNumber(idx.FirstTxNum+uint64(i))); err != nil {
				return err
			}
		}
	}
	return u.Done(tx)
}
