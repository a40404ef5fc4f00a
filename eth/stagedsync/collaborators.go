package stagedsync

import (
	"context"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/core/state"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/turbo/stages/headerdownload"
)

// TrieHasher is the external Merkle-Patricia trie collaborator
// (spec.md §1 Out of scope): it computes the incremental state root
// from the hashed-state tables this module maintains. No trie
// implementation lives in this module.
type TrieHasher interface {
	// RecalculateRoot computes the state root after HashedAccount and
	// HashedStorage have been brought up to date for blockNum.
	RecalculateRoot(ctx context.Context, blockNum uint64) (common.Hash, error)
	// UnwindRoot recomputes the state root after a rewind to blockNum.
	UnwindRoot(ctx context.Context, blockNum uint64) (common.Hash, error)
}

// EVMExecutor is the external block-execution collaborator (spec.md
// §1): it replays a block's transactions and returns the PostState the
// Execution stage persists. No EVM interpreter lives in this module.
type EVMExecutor interface {
	ExecuteBlock(ctx context.Context, block *types.Block, senders []common.Address) (*state.PostState, error)
}

// SenderRecoverer recovers the sender address of each transaction in a
// block from its signature. This is a narrow cryptographic collaborator
// (ECDSA public-key recovery), kept outside this module the same way
// trie hashing and EVM execution are, since it concerns transaction
// signature scheme details rather than staged-sync orchestration.
type SenderRecoverer interface {
	RecoverSenders(ctx context.Context, txs []*types.Transaction) ([]common.Address, error)
}

// CanonicalSource supplies canonical chain decisions: this module does
// not choose the canonical chain (spec.md §1 Non-goals) but consumes
// import/reorg notifications from a collaborator that does.
type CanonicalSource interface {
	// NextImport returns the next block to append to the canonical
	// chain above fromBlock, or ok=false if none is available yet.
	NextImport(ctx context.Context, fromBlock uint64) (block *types.Block, senders []common.Address, ok bool, err error)
}

// ReverseHeaderDownloader streams headers from a sync tip backward to
// an ancestor (spec.md §4.9/§4.8a), restartable from any ancestor.
type ReverseHeaderDownloader interface {
	// RequestHeaders asks for up to limit headers ending at (and
	// including) tip, walking backward via parentHash.
	RequestHeaders(ctx context.Context, tip common.Hash, limit int) ([]*types.Header, error)
	// PenalizePeer reports a peer whose headers failed to chain.
	PenalizePeer(peer headerdownload.PeerHandle, penalty headerdownload.Penalty)
}

// BodyDownloader produces bodies for a contiguous ascending block range
// (spec.md §4.9/§4.8a). It makes no claim about a body's correctness —
// the Bodies stage validates each one against its header's commitments
// via BodyHasher before persisting it.
type BodyDownloader interface {
	RequestBodies(ctx context.Context, headers []*types.Header) (<-chan *types.Body, error)
}

// BodyHasher computes the root commitments a downloaded body must
// match against its header (spec.md §4.9): transactionsRoot,
// ommersHash, and, post-Shanghai, withdrawalsRoot. Like TrieHasher, no
// Merkle-Patricia trie or RLP encoding lives in this module (spec.md
// §1 Non-goals) — only the validation contract around it.
type BodyHasher interface {
	HashBody(ctx context.Context, body *types.Body) (txRoot, ommersHash common.Hash, withdrawalsRoot *common.Hash, err error)
}
