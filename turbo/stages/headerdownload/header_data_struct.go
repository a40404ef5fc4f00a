// Package headerdownload is the concrete (non-networked) reference
// implementation backing stagedsync.ReverseHeaderDownloader (spec.md
// §4.9, §4.8a): HandleHeaderSegment validates a peer's batch of headers
// into a ChainSegment whose first header is its anchor (the oldest
// header, whose parent is not yet known). The anchor and tip maps are
// allocated but not filled by HandleHeaderSegment, and RequestHeaders
// returns no headers.
//
// Grounded on the teacher's turbo/stages/headerdownload/header_data_struct.go
// (Anchor, Tip, ChainSegment, Penalty enum, PeerHandle, RequestQueue) —
// kept as the data model this package's HandleHeaderSegment builds on.
// The teacher's fuller Prepend/tip-reconciliation algorithm (matching
// segments against every existing tip by cumulative difficulty) was
// never retrieved into this module's reference set beyond its struct
// layout, so it is not reproduced here; this package keeps the
// segment-validation and peer-penalty part on top of the same data
// structures.
package headerdownload

import (
	"container/heap"
	"math/big"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/petar/GoLLRB/llrb"
)

type Anchor struct {
	powDepth        int
	totalDifficulty uint256.Int
	tips            []common.Hash
	difficulty      uint256.Int
	hash            common.Hash
	blockHeight     uint64
	timestamp       uint64
}

type Tip struct {
	anchor               *Anchor
	cumulativeDifficulty uint256.Int
	timestamp            uint64
	difficulty           uint256.Int
	blockHeight          uint64
	uncleHash            common.Hash
	noPrepend            bool
}

type TipItem struct {
	tipHash              common.Hash
	cumulativeDifficulty uint256.Int
}

func (a *TipItem) Less(b llrb.Item) bool {
	bi := b.(*TipItem)
	return a.cumulativeDifficulty.Lt(&bi.cumulativeDifficulty)
}

// ChainSegment is contiguous by parentHash and contains no bad headers.
// Its first element is the anchor (the header whose parent is unknown).
type ChainSegment struct {
	headers []*types.Header
}

type PeerHandle int

type Penalty int

const (
	NoPenalty Penalty = iota
	BadBlockPenalty
	DuplicateHeaderPenalty
	WrongChildBlockHeightPenalty
	WrongChildDifficultyPenalty
	InvalidSealPenalty
	TooFarFuturePenalty
	TooFarPastPenalty
)

func (p Penalty) String() string {
	switch p {
	case NoPenalty:
		return "None"
	case BadBlockPenalty:
		return "BadBlock"
	case DuplicateHeaderPenalty:
		return "DuplicateHeader"
	case WrongChildBlockHeightPenalty:
		return "WrongChildBlockHeight"
	case WrongChildDifficultyPenalty:
		return "WrongChildDifficulty"
	case InvalidSealPenalty:
		return "InvalidSeal"
	case TooFarFuturePenalty:
		return "TooFarFuture"
	case TooFarPastPenalty:
		return "TooFarPast"
	default:
		return "Unknown"
	}
}

type PeerPenalty struct {
	PeerHandle PeerHandle
	Penalty    Penalty
	Err        error
}

type RequestQueueItem struct {
	anchorParent common.Hash
	waitUntil    uint64
}

type RequestQueue []RequestQueueItem

func (rq RequestQueue) Len() int            { return len(rq) }
func (rq RequestQueue) Less(i, j int) bool  { return rq[i].waitUntil < rq[j].waitUntil }
func (rq RequestQueue) Swap(i, j int)       { rq[i], rq[j] = rq[j], rq[i] }
func (rq *RequestQueue) Push(x interface{}) { *rq = append(*rq, x.(RequestQueueItem)) }
func (rq *RequestQueue) Pop() interface{} {
	old := *rq
	n := len(old)
	x := old[n-1]
	*rq = old[0 : n-1]
	return x
}

type CalcDifficultyFunc func(childTimestamp uint64, parentTime uint64, parentDifficulty, parentNumber *big.Int) *big.Int

// HeaderDownload holds the hasher, bad-header set and difficulty rule
// HandleHeaderSegment validates against, plus anchor and tip maps keyed
// by hash; no method in this package adds entries to the anchor or tip
// maps.
type HeaderDownload struct {
	hasher             types.Hasher
	badHeaders         map[common.Hash]struct{}
	anchors            map[common.Hash]*Anchor
	tips               map[common.Hash]*Tip
	tipLimiter         *llrb.LLRB
	tipLimit           int
	requestQueue       *RequestQueue
	calcDifficultyFunc CalcDifficultyFunc
}

func NewHeaderDownload(hasher types.Hasher, tipLimit int, calcDifficultyFunc CalcDifficultyFunc) *HeaderDownload {
	hd := &HeaderDownload{
		hasher:             hasher,
		badHeaders:         make(map[common.Hash]struct{}),
		anchors:            make(map[common.Hash]*Anchor),
		tips:               make(map[common.Hash]*Tip),
		tipLimiter:         llrb.New(),
		tipLimit:           tipLimit,
		requestQueue:       &RequestQueue{},
		calcDifficultyFunc: calcDifficultyFunc,
	}
	heap.Init(hd.requestQueue)
	return hd
}

func (hd *HeaderDownload) MarkBad(hash common.Hash) { hd.badHeaders[hash] = struct{}{} }

func (hd *HeaderDownload) isBad(h *types.Header) bool {
	_, bad := hd.badHeaders[hd.hasher.HashHeader(h)]
	return bad
}
