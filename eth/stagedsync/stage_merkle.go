package stagedsync

import (
	"context"
	"fmt"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/kv"
)

// ancestorHash returns blockNum's canonical hash for the diagnostic
// UnwindStateRootMismatch carries, falling back to the zero hash if
// the row isn't there (e.g. blockNum is the pre-genesis ancestor).
func ancestorHash(tx kv.Tx, blockNum uint64) common.Hash {
	hash, err := rawdb.CanonicalHash(tx, blockNum)
	if err != nil {
		return common.Hash{}
	}
	return hash
}

// MerkleCfg bundles the Merkle stages' external trie collaborator
// (spec.md §1 Out-of-scope — no trie implementation lives in this
// module, only the root-validation contract around it). Headers is
// optional; when set, the boundary header each root check reads is
// served from its LRU instead of a fresh GetOne, which matters because
// CommitEvery keeps re-touching the same handful of recently committed
// block numbers across successive incremental pipeline runs.
type MerkleCfg struct {
	Hasher  TrieHasher
	Headers *rawdb.HeaderCache
}

func (cfg MerkleCfg) header(tx kv.Tx, number uint64) (*types.Header, error) {
	if cfg.Headers != nil {
		return cfg.Headers.Header(tx, number)
	}
	return rawdb.Header(tx, number)
}

// SpawnMerkleUnwind is the forward half of the pipeline's
// MerkleUnwind stage (spec.md §4.8 pipeline order: it sits right after
// Execution and before the hashing stages). Its job on the forward
// path is bookkeeping only: it has nothing to validate yet since
// AccountHashing/StorageHashing haven't run for the new blocks, so it
// simply advances its checkpoint to track Execution's progress. The
// real root-recheck work for a reorg lives in UnwindMerkleUnwind,
// which runs last among the Merkle-related stages on the reverse walk
// and therefore sees the fully-unwound hashed state.
func SpawnMerkleUnwind(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindMerkleUnwind recomputes the root after AccountHashing and
// StorageHashing have been rewound to u.UnwindPoint, and rejects the
// unwind if it disagrees with the ancestor header's stateRoot (spec.md
// §4.8: "on unwind, must match Headers[lo-1].stateRoot"; S6).
func UnwindMerkleUnwind(u *UnwindState, s *StageState, tx kv.RwTx, cfg MerkleCfg) error {
	if s.BlockNumber <= u.UnwindPoint {
		return u.Done(tx)
	}
	root, err := cfg.Hasher.UnwindRoot(context.Background(), u.UnwindPoint)
	if err != nil {
		return err
	}
	if u.UnwindPoint > 0 {
		header, err := cfg.header(tx, u.UnwindPoint)
		if err != nil {
			return err
		}
		if header.Root != root {
			return &UnwindStateRootMismatch{
				Got:      root,
				Expected: header.Root,
				Block:    u.UnwindPoint,
				Hash:     ancestorHash(tx, u.UnwindPoint),
			}
		}
	}
	return u.Done(tx)
}

// SpawnMerkleExecute recomputes the state root once AccountHashing and
// StorageHashing have brought the hashed tables up to date for toBlock,
// and rejects the stage if it disagrees with the header's stateRoot
// (spec.md §4.8: "on execute, must match Headers[hi].stateRoot").
func SpawnMerkleExecute(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64, cfg MerkleCfg) error {
	if toBlock <= s.BlockNumber {
		return s.DoneAndUpdate(tx, s.BlockNumber)
	}

	root, err := cfg.Hasher.RecalculateRoot(context.Background(), toBlock)
	if err != nil {
		return err
	}
	header, err := cfg.header(tx, toBlock)
	if err != nil {
		return err
	}
	if header.Root != root {
		u.UnwindTo(s.BlockNumber, fmt.Sprintf("state root mismatch at block %d: computed %x, header %x", toBlock, root, header.Root))
		return nil
	}
	return s.DoneAndUpdate(tx, toBlock)
}

// UnwindMerkleExecute is the reverse half of the MerkleExecute stage.
// It runs before StorageHashing/AccountHashing/MerkleUnwind have been
// rewound on the reverse walk, so the hashed tables still reflect the
// pre-unwind image; the authoritative root recheck happens later, in
// UnwindMerkleUnwind. Here we only drop the checkpoint.
func UnwindMerkleExecute(u *UnwindState, s *StageState, tx kv.RwTx) error {
	return u.Done(tx)
}
