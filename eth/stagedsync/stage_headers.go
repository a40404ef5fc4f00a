package stagedsync

import (
	"context"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/log"
)

// HeadersCfg bundles the Headers stage's collaborator and per-commit
// budget (spec.md §4.8: "Commit threshold: commit_threshold headers").
type HeadersCfg struct {
	Downloader     ReverseHeaderDownloader
	CommitThreshold int
	Hasher         types.Hasher
}

// SpawnHeaders pulls headers from the local tip's parent back to a
// known ancestor via cfg.Downloader and writes them forward, matching
// the teacher's SpawnLogIndex shape (single stage function taking
// *StageState, advancing to toBlock, persisting via
// s.DoneAndUpdate) generalized from index-building to header ingestion.
func SpawnHeaders(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64, cfg HeadersCfg) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	tipHash, err := canonicalHash(tx, s.BlockNumber)
	if err != nil {
		return err
	}

	written := s.BlockNumber
	for written < toBlock {
		limit := cfg.CommitThreshold
		if limit <= 0 {
			limit = 1024
		}
		headers, err := cfg.Downloader.RequestHeaders(context.Background(), tipHash, limit)
		if err != nil {
			return err
		}
		if len(headers) == 0 {
			log.Info("[Headers] no headers available from downloader this cycle", "at", written)
			break
		}
		for _, h := range headers {
			if h.NumberU64() <= written {
				continue
			}
			if err := insertHeader(tx, h, cfg.Hasher); err != nil {
				return err
			}
			written = h.NumberU64()
			tipHash = cfg.Hasher.HashHeader(h)
			if written >= toBlock {
				break
			}
		}
	}
	return s.DoneAndUpdate(tx, written)
}

func insertHeader(tx kv.RwTx, h *types.Header, hasher types.Hasher) error {
	numKey := common.EncodeBlockNumber(h.NumberU64())
	hash := hasher.HashHeader(h)
	if err := tx.Put(dbutils.Headers, numKey, rawdb.EncodeHeaderStub(h)); err != nil {
		return err
	}
	if err := tx.Put(dbutils.CanonicalHeaders, numKey, hash[:]); err != nil {
		return err
	}
	return tx.Put(dbutils.HeaderNumbers, hash[:], numKey)
}

func canonicalHash(tx kv.Tx, number uint64) (common.Hash, error) {
	v, err := tx.GetOne(dbutils.CanonicalHeaders, common.EncodeBlockNumber(number))
	if err != nil {
		return common.Hash{}, err
	}
	return common.BytesToHash(v), nil
}

// UnwindHeaders deletes Headers/CanonicalHeaders/HeaderNumbers above
// u.UnwindPoint, the reverse of SpawnHeaders' forward writes.
func UnwindHeaders(u *UnwindState, s *StageState, tx kv.RwTx) error {
	c, err := tx.RwCursor(dbutils.CanonicalHeaders)
	if err != nil {
		return err
	}
	defer c.Close()

	for k, v, err := c.Seek(common.EncodeBlockNumber(u.UnwindPoint + 1)); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		if err := tx.Delete(dbutils.Headers, k); err != nil {
			return err
		}
		if err := tx.Delete(dbutils.HeaderNumbers, v); err != nil {
			return err
		}
		if err := c.DeleteCurrent(); err != nil {
			return err
		}
	}
	return u.Done(tx)
}
