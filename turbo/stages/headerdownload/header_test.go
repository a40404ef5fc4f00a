package headerdownload

import (
	"math/big"
	"testing"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/stretchr/testify/require"
)

type stubHasher struct{}

func (stubHasher) HashHeader(h *types.Header) common.Hash {
	return common.BytesToHash(append([]byte{byte(h.NumberU64())}, h.ParentHash[:]...))
}

func addOneThousand(childTime, parentTime uint64, parentDifficulty, parentNumber *big.Int) *big.Int {
	return new(big.Int).Add(parentDifficulty, big.NewInt(1000))
}

func newTestDownload() *HeaderDownload {
	return NewHeaderDownload(stubHasher{}, 10, addOneThousand)
}

func TestHandleHeaderSegmentEmpty(t *testing.T) {
	hd := newTestDownload()
	seg, penalty, err := hd.HandleHeaderSegment(nil, PeerHandle(1))
	require.NoError(t, err)
	require.Nil(t, seg)
	require.Nil(t, penalty)
}

func TestHandleHeaderSegmentChains(t *testing.T) {
	hd := newTestDownload()
	h1 := &types.Header{Number: big.NewInt(1), Difficulty: big.NewInt(10)}
	h2 := &types.Header{Number: big.NewInt(2), Difficulty: big.NewInt(1010), ParentHash: stubHasher{}.HashHeader(h1)}

	seg, penalty, err := hd.HandleHeaderSegment([]*types.Header{h1, h2}, PeerHandle(1))
	require.NoError(t, err)
	require.Nil(t, penalty)
	require.Len(t, seg.headers, 2)
	require.Equal(t, h1, seg.headers[0])
	require.Equal(t, h2, seg.headers[1])
}

func TestHandleHeaderSegmentAcceptsDescendingOrder(t *testing.T) {
	hd := newTestDownload()
	h1 := &types.Header{Number: big.NewInt(1), Difficulty: big.NewInt(10)}
	h2 := &types.Header{Number: big.NewInt(2), Difficulty: big.NewInt(1010), ParentHash: stubHasher{}.HashHeader(h1)}

	seg, penalty, err := hd.HandleHeaderSegment([]*types.Header{h2, h1}, PeerHandle(1))
	require.NoError(t, err)
	require.Nil(t, penalty)
	require.Equal(t, h1, seg.headers[0])
}

func TestHandleHeaderSegmentWrongHeightPenalizes(t *testing.T) {
	hd := newTestDownload()
	h1 := &types.Header{Number: big.NewInt(1), Difficulty: big.NewInt(10)}
	h3 := &types.Header{Number: big.NewInt(3), Difficulty: big.NewInt(1010), ParentHash: stubHasher{}.HashHeader(h1)}

	seg, penalty, err := hd.HandleHeaderSegment([]*types.Header{h1, h3}, PeerHandle(7))
	require.NoError(t, err)
	require.Nil(t, seg)
	require.Equal(t, WrongChildBlockHeightPenalty, penalty.Penalty)
	require.Equal(t, PeerHandle(7), penalty.PeerHandle)
}

func TestHandleHeaderSegmentWrongDifficultyPenalizes(t *testing.T) {
	hd := newTestDownload()
	h1 := &types.Header{Number: big.NewInt(1), Difficulty: big.NewInt(10)}
	h2 := &types.Header{Number: big.NewInt(2), Difficulty: big.NewInt(2000), ParentHash: stubHasher{}.HashHeader(h1)}

	_, penalty, err := hd.HandleHeaderSegment([]*types.Header{h1, h2}, PeerHandle(1))
	require.NoError(t, err)
	require.Equal(t, WrongChildDifficultyPenalty, penalty.Penalty)
}

func TestHandleHeaderSegmentDuplicateAndBadHeader(t *testing.T) {
	hd := newTestDownload()
	h1 := &types.Header{Number: big.NewInt(1)}

	_, penalty, err := hd.HandleHeaderSegment([]*types.Header{h1, h1}, PeerHandle(1))
	require.NoError(t, err)
	require.Equal(t, DuplicateHeaderPenalty, penalty.Penalty)

	hd.MarkBad(stubHasher{}.HashHeader(h1))
	_, penalty, err = hd.HandleHeaderSegment([]*types.Header{h1}, PeerHandle(1))
	require.NoError(t, err)
	require.Equal(t, BadBlockPenalty, penalty.Penalty)
}
