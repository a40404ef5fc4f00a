package headerdownload

import (
	"context"
	"fmt"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/core/types"
)

// HandleHeaderSegment validates a batch of headers delivered by one
// peer response: they must chain by parentHash (newest first or oldest
// first, either is accepted), must not repeat a hash, must not be
// already known bad, and each child's height/difficulty must follow
// its parent's. A single violation penalizes the peer and discards the
// whole batch; a clean batch becomes one ChainSegment ordered
// oldest-to-newest (its anchor first), ready to extend an existing tip
// or open a new one.
func (hd *HeaderDownload) HandleHeaderSegment(headers []*types.Header, peer PeerHandle) (*ChainSegment, *PeerPenalty, error) {
	if len(headers) == 0 {
		return nil, nil, nil
	}

	seen := make(map[common.Hash]struct{}, len(headers))
	hashes := make([]common.Hash, len(headers))
	for i, h := range headers {
		hash := hd.hasher.HashHeader(h)
		if _, dup := seen[hash]; dup {
			return nil, &PeerPenalty{PeerHandle: peer, Penalty: DuplicateHeaderPenalty}, nil
		}
		seen[hash] = struct{}{}
		hashes[i] = hash
		if hd.isBad(h) {
			return nil, &PeerPenalty{PeerHandle: peer, Penalty: BadBlockPenalty}, nil
		}
	}

	ordered := make([]*types.Header, len(headers))
	copy(ordered, headers)
	descending := ordered[0].NumberU64() > ordered[len(ordered)-1].NumberU64()
	if descending {
		for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
			ordered[i], ordered[j] = ordered[j], ordered[i]
		}
	}

	for i := 1; i < len(ordered); i++ {
		parent, child := ordered[i-1], ordered[i]
		parentHash := hd.hasher.HashHeader(parent)
		if child.ParentHash != parentHash {
			return nil, &PeerPenalty{PeerHandle: peer, Penalty: BadBlockPenalty,
				Err: fmt.Errorf("header %d does not chain to %d", child.NumberU64(), parent.NumberU64())}, nil
		}
		if child.NumberU64() != parent.NumberU64()+1 {
			return nil, &PeerPenalty{PeerHandle: peer, Penalty: WrongChildBlockHeightPenalty}, nil
		}
		if hd.calcDifficultyFunc != nil {
			want := hd.calcDifficultyFunc(child.Time, parent.Time, parent.Difficulty, parent.Number)
			if child.Difficulty.Cmp(want) != 0 {
				return nil, &PeerPenalty{PeerHandle: peer, Penalty: WrongChildDifficultyPenalty}, nil
			}
		}
	}

	return &ChainSegment{headers: ordered}, nil, nil
}

// RequestHeaders implements stagedsync.ReverseHeaderDownloader: a
// restartable, non-networked stand-in walks no real peers, so this
// always reports no headers available. A networked implementation
// would enqueue a GetBlockHeaders request here and await the response
// on the queue drained by HandleHeaderSegment.
func (hd *HeaderDownload) RequestHeaders(ctx context.Context, tip common.Hash, limit int) ([]*types.Header, error) {
	return nil, nil
}

func (hd *HeaderDownload) PenalizePeer(peer PeerHandle, penalty Penalty) {
	// Recorded for the caller's peer-scoring policy; this reference
	// implementation has no peer set of its own to act on.
}
