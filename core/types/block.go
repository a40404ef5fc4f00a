// Package types holds the minimal block/transaction/receipt shapes the
// sync pipeline moves around. Hashing, RLP wire encoding and the EVM
// interpreter are external-collaborator concerns (spec.md Non-goals);
// this package only carries the fields the pipeline's own stages
// read or write.
package types

import (
	"math/big"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/erigon-core/common"
)

// Header is the subset of block-header fields the pipeline persists
// and reasons about: enough to walk canonical chain, recompute total
// difficulty, and hand hashing/trie-root verification to an external
// TrieHasher.
type Header struct {
	ParentHash  common.Hash
	UncleHash   common.Hash
	Coinbase    common.Address
	Root        common.Hash // state root, produced by the external TrieHasher
	TxHash      common.Hash
	ReceiptHash common.Hash
	Bloom       [256]byte
	Difficulty  *big.Int
	Number      *big.Int
	GasLimit    uint64
	GasUsed     uint64
	Time        uint64
	Extra       []byte
	MixDigest   common.Hash
	Nonce       [8]byte

	// WithdrawalsHash is non-nil from the Shanghai fork onward.
	WithdrawalsHash *common.Hash
}

func (h *Header) NumberU64() uint64 {
	if h.Number == nil {
		return 0
	}
	return h.Number.Uint64()
}

// Hasher is the header-hashing seam: real header hashing is RLP+keccak,
// delegated to an external collaborator per spec.md Non-goals. Callers
// that need the canonical hash take a Hasher from that collaborator,
// e.g. the Headers stage's insertHeader, which keys each header it
// writes by HashHeader.
type Hasher interface {
	HashHeader(h *Header) common.Hash
}

// Transaction carries only the fields SenderRecovery and Execution
// consume; signature verification and wire decoding are external.
type Transaction struct {
	Nonce    uint64
	GasPrice *uint256.Int
	Gas      uint64
	To       *common.Address // nil for contract creation
	Value    *uint256.Int
	Data     []byte

	V, R, S *big.Int
}

// Withdrawal is the Shanghai-fork validator withdrawal record.
type Withdrawal struct {
	Index          uint64
	ValidatorIndex uint64
	Address        common.Address
	Amount         uint64 // gwei
}

// Body groups the per-block collections that BlockBodyIndices points
// into (spec.md §3 Transactions/BlockOmmers/BlockWithdrawals).
type Body struct {
	Transactions []*Transaction
	Uncles       []*Header
	Withdrawals  []*Withdrawal
}

type Log struct {
	Address common.Address
	Topics   []common.Hash
	Data     []byte
}

// Receipt is the execution outcome Execution writes and downstream
// readers (ReceiptsByBlock) fetch; no bloom/consensus encoding logic
// lives here, only the fields the pipeline itself needs.
type Receipt struct {
	TxHash            common.Hash
	PostState         []byte
	Status            uint64
	CumulativeGasUsed uint64
	Logs              []*Log
	GasUsed           uint64
	ContractAddress   common.Address
}

// Block pairs a Header with its Body. Assembly only — it carries no
// hashing or validation logic of its own.
type Block struct {
	header *Header
	body   *Body
}

func NewBlock(header *Header, body *Body) *Block {
	return &Block{header: header, body: body}
}

func (b *Block) Header() *Header                 { return b.header }
func (b *Block) Body() *Body                      { return b.body }
func (b *Block) NumberU64() uint64                { return b.header.NumberU64() }
func (b *Block) Transactions() []*Transaction     { return b.body.Transactions }
func (b *Block) Uncles() []*Header                { return b.body.Uncles }
func (b *Block) Withdrawals() []*Withdrawal       { return b.body.Withdrawals }
