// Package rawdb is the block provider (C6): reads and writes of the
// body-side tables (Headers, Transactions, BlockBodyIndices,
// Receipts, ...), grounded on the teacher's core/rawdb accessor style
// referenced from core/state/db_state_writer.go (rawdb.DeleteAccount)
// and generalized to the block/body/receipt surface spec.md §4.6 names.
package rawdb

import (
	"encoding/binary"
	"errors"
	"math/big"

	lru "github.com/hashicorp/golang-lru"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/kv"
)

var ErrNotFound = errors.New("rawdb: not found")

// headerCacheLimit bounds HeaderCache the way the broader pack's
// headerchain caches size their recent-header LRU: a fixed number of
// entries covering the working set a stage walks over a single run,
// not the whole chain.
const headerCacheLimit = 1 << 13

// HeaderCache fronts Header (lookups by block number) with an LRU of
// recently read headers; HeaderByHash is not cached, cutting repeated GetOne round trips when a stage (Merkle
// root recheck, body assembly, TD lookups) rereads the same small
// window of canonical headers many times in one pass. Safe for
// concurrent use; callers keep their own kv.Tx for the miss path.
type HeaderCache struct {
	byNumber *lru.Cache
}

// NewHeaderCache allocates a HeaderCache. The underlying lru.Cache
// constructor only fails on a non-positive size, which headerCacheLimit
// never is, so the error is discarded the way the pack's lru.New(...)
// call sites do at a fixed compile-time limit.
func NewHeaderCache() *HeaderCache {
	c, _ := lru.New(headerCacheLimit)
	return &HeaderCache{byNumber: c}
}

// Header reads Headers[number] through the cache, falling back to the
// uncached accessor and populating the cache on miss.
func (hc *HeaderCache) Header(tx kv.Tx, number uint64) (*types.Header, error) {
	if v, ok := hc.byNumber.Get(number); ok {
		return v.(*types.Header), nil
	}
	h, err := Header(tx, number)
	if err != nil {
		return nil, err
	}
	hc.byNumber.Add(number, h)
	return h, nil
}

// Invalidate drops number from the cache; callers holding a
// HeaderCache across an unwind must call this for every block number
// the unwind rewrites so a stale header can't be served afterward.
func (hc *HeaderCache) Invalidate(number uint64) {
	hc.byNumber.Remove(number)
}

// BodyIndices is the value stored under BlockBodyIndices[b]: the first
// global tx number this block's transactions occupy, and how many.
type BodyIndices struct {
	FirstTxNum uint64
	TxCount    uint32
}

func (b BodyIndices) Encode() []byte {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], b.FirstTxNum)
	binary.BigEndian.PutUint64(buf[8:], uint64(b.TxCount))
	return buf
}

func DecodeBodyIndices(v []byte) (BodyIndices, error) {
	if len(v) < 16 {
		return BodyIndices{}, ErrNotFound
	}
	return BodyIndices{
		FirstTxNum: binary.BigEndian.Uint64(v[:8]),
		TxCount:    uint32(binary.BigEndian.Uint64(v[8:])),
	}, nil
}

// ParisTerminalTotalDifficulty is the terminal total difficulty of the
// Ethereum mainnet merge transition; header_td_by_number returns this
// constant for every block after the Paris (merge) block, matching the
// real chain's fixed post-merge difficulty of zero contribution.
var ParisTerminalTotalDifficulty, _ = new(big.Int).SetString("58750000000000000000000", 10)

// Header reads Headers[number], resolving the canonical hash first.
func Header(tx kv.Tx, number uint64) (*types.Header, error) {
	hash, err := CanonicalHash(tx, number)
	if err != nil {
		return nil, err
	}
	return HeaderByHash(tx, hash)
}

// CanonicalHash returns the canonical block hash at number.
func CanonicalHash(tx kv.Tx, number uint64) (common.Hash, error) {
	hash, err := tx.GetOne(dbutils.CanonicalHeaders, common.EncodeBlockNumber(number))
	if err != nil {
		return common.Hash{}, err
	}
	if hash == nil {
		return common.Hash{}, ErrNotFound
	}
	return common.BytesToHash(hash), nil
}

func HeaderByHash(tx kv.Tx, hash common.Hash) (*types.Header, error) {
	numEnc, err := tx.GetOne(dbutils.HeaderNumbers, hash[:])
	if err != nil {
		return nil, err
	}
	if numEnc == nil {
		return nil, ErrNotFound
	}
	v, err := tx.GetOne(dbutils.Headers, numEnc)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return decodeHeaderStub(v), nil
}

// Body reads the transactions, uncles and withdrawals for block
// number using BlockBodyIndices to locate the tx range.
func Body(tx kv.Tx, number uint64) (*types.Body, error) {
	idxEnc, err := tx.GetOne(dbutils.BlockBodyIndices, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, err
	}
	if idxEnc == nil {
		return nil, ErrNotFound
	}
	idx, err := DecodeBodyIndices(idxEnc)
	if err != nil {
		return nil, err
	}
	txs, err := TransactionsByTxRange(tx, idx.FirstTxNum, idx.TxCount)
	if err != nil {
		return nil, err
	}
	withdrawals, err := WithdrawalsByBlock(tx, number, 0)
	if err != nil {
		return nil, err
	}
	var wList []*types.Withdrawal
	if withdrawals != nil {
		wList = *withdrawals
	}
	return &types.Body{Transactions: txs, Withdrawals: wList}, nil
}

// Block assembles Header+Body for number.
func Block(tx kv.Tx, number uint64) (*types.Block, error) {
	h, err := Header(tx, number)
	if err != nil {
		return nil, err
	}
	b, err := Body(tx, number)
	if err != nil {
		return nil, err
	}
	return types.NewBlock(h, b), nil
}

// BlockWithSenders reads the block alongside the recovered sender for
// each transaction (TxSenders, populated by the SenderRecovery stage).
func BlockWithSenders(tx kv.Tx, number uint64) (*types.Block, []common.Address, error) {
	block, err := Block(tx, number)
	if err != nil {
		return nil, nil, err
	}
	idxEnc, err := tx.GetOne(dbutils.BlockBodyIndices, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, nil, err
	}
	idx, err := DecodeBodyIndices(idxEnc)
	if err != nil {
		return nil, nil, err
	}
	senders, err := SendersByTxRange(tx, idx.FirstTxNum, idx.TxCount)
	if err != nil {
		return nil, nil, err
	}
	return block, senders, nil
}

func TransactionsByBlock(tx kv.Tx, number uint64) ([]*types.Transaction, error) {
	idxEnc, err := tx.GetOne(dbutils.BlockBodyIndices, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, err
	}
	idx, err := DecodeBodyIndices(idxEnc)
	if err != nil {
		return nil, err
	}
	return TransactionsByTxRange(tx, idx.FirstTxNum, idx.TxCount)
}

func TransactionsByTxRange(tx kv.Tx, first uint64, count uint32) ([]*types.Transaction, error) {
	out := make([]*types.Transaction, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := tx.GetOne(dbutils.Transactions, common.EncodeBlockNumber(first+uint64(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, decodeTransactionStub(v))
	}
	return out, nil
}

func SendersByTxRange(tx kv.Tx, first uint64, count uint32) ([]common.Address, error) {
	out := make([]common.Address, 0, count)
	for i := uint32(0); i < count; i++ {
		v, err := tx.GetOne(dbutils.TxSenders, common.EncodeBlockNumber(first+uint64(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, common.BytesToAddress(v))
	}
	return out, nil
}

func ReceiptsByBlock(tx kv.Tx, number uint64) ([]*types.Receipt, error) {
	idxEnc, err := tx.GetOne(dbutils.BlockBodyIndices, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, err
	}
	idx, err := DecodeBodyIndices(idxEnc)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Receipt, 0, idx.TxCount)
	for i := uint32(0); i < idx.TxCount; i++ {
		v, err := tx.GetOne(dbutils.Receipts, common.EncodeBlockNumber(idx.FirstTxNum+uint64(i)))
		if err != nil {
			return nil, err
		}
		out = append(out, decodeReceiptStub(v))
	}
	return out, nil
}

// WithdrawalsByBlock returns Some(empty) post-Shanghai and None
// otherwise, per spec.md §4.6. shanghaiTime == 0 disables the check
// (treated as always-post-Shanghai), matching chains without a
// configured fork schedule.
func WithdrawalsByBlock(tx kv.Tx, number uint64, shanghaiTime uint64) (*[]*types.Withdrawal, error) {
	header, err := Header(tx, number)
	if err != nil {
		return nil, err
	}
	if shanghaiTime != 0 && header.Time < shanghaiTime {
		return nil, nil
	}
	v, err := tx.GetOne(dbutils.BlockWithdrawals, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, err
	}
	list := decodeWithdrawalsStub(v)
	return &list, nil
}

// HeaderTDByNumber returns the stored total difficulty, or the fixed
// post-merge terminal value once number is past parisBlock (spec.md
// §4.6: "returns the post-merge terminal difficulty for all blocks
// beyond the Paris block").
func HeaderTDByNumber(tx kv.Tx, number, parisBlock uint64) (*big.Int, error) {
	if parisBlock != 0 && number > parisBlock {
		return new(big.Int).Set(ParisTerminalTotalDifficulty), nil
	}
	v, err := tx.GetOne(dbutils.HeaderTD, common.EncodeBlockNumber(number))
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, ErrNotFound
	}
	return new(big.Int).SetBytes(v), nil
}

// InsertBlock writes a block's Headers row, its Transactions (and
// TxSenders, for each tx that has a sender in senders), the
// TransactionBlock row of its last tx, its BlockWithdrawals (only when
// non-empty), and extends BlockBodyIndices by appending to the global
// tx counter (spec.md §4.6, I2 tx-body alignment). It does not write
// BlockOmmers, TxHashNumber, CanonicalHeaders or HeaderNumbers.
func InsertBlock(tx kv.RwTx, block *types.Block, senders []common.Address, txBase uint64) error {
	number := block.NumberU64()
	numKey := common.EncodeBlockNumber(number)

	if err := tx.Put(dbutils.Headers, numKey, EncodeHeaderStub(block.Header())); err != nil {
		return err
	}

	txs := block.Transactions()
	for i, txn := range txs {
		txKey := common.EncodeBlockNumber(txBase + uint64(i))
		if err := tx.Put(dbutils.Transactions, txKey, encodeTransactionStub(txn)); err != nil {
			return err
		}
		if i < len(senders) {
			if err := tx.Put(dbutils.TxSenders, txKey, senders[i].Bytes()); err != nil {
				return err
			}
		}
	}
	if len(txs) > 0 {
		lastKey := common.EncodeBlockNumber(txBase + uint64(len(txs)) - 1)
		if err := tx.Put(dbutils.TransactionBlock, lastKey, numKey); err != nil {
			return err
		}
	}

	idx := BodyIndices{FirstTxNum: txBase, TxCount: uint32(len(txs))}
	if err := tx.Put(dbutils.BlockBodyIndices, numKey, idx.Encode()); err != nil {
		return err
	}

	if withdrawals := block.Withdrawals(); len(withdrawals) > 0 {
		if err := tx.Put(dbutils.BlockWithdrawals, numKey, encodeWithdrawalsStub(withdrawals)); err != nil {
			return err
		}
	}
	return nil
}

// ---- minimal stub codecs ----
//
// Full RLP/consensus encoding of headers, transactions, receipts and
// withdrawals is out of scope (spec.md Non-goals: no wire encoding);
// these round-trip only the fields this module itself reads back.

// EncodeHeaderStub is the shared Headers-table wire format: every
// writer (InsertBlock here, the Headers stage's insertHeader) goes
// through this so Header/HeaderByHash can decode either's rows.
// Fixed-width number/parentHash/root/time, followed by TxHash/
// UncleHash and an optional WithdrawalsHash (spec.md §4.9's three body
// commitments) flagged by a presence byte.
func EncodeHeaderStub(h *types.Header) []byte {
	buf := make([]byte, 8)
	if h.Number != nil {
		binary.BigEndian.PutUint64(buf, h.NumberU64())
	}
	buf = append(buf, h.ParentHash[:]...)
	buf = append(buf, h.Root[:]...)
	var t [8]byte
	binary.BigEndian.PutUint64(t[:], h.Time)
	buf = append(buf, t[:]...)
	buf = append(buf, h.TxHash[:]...)
	buf = append(buf, h.UncleHash[:]...)
	if h.WithdrawalsHash != nil {
		buf = append(buf, 1)
		buf = append(buf, h.WithdrawalsHash[:]...)
	} else {
		buf = append(buf, 0)
		buf = append(buf, make([]byte, 32)...)
	}
	return buf
}

func decodeHeaderStub(v []byte) *types.Header {
	if len(v) < 8+32+32+8 {
		return &types.Header{Number: new(big.Int)}
	}
	n := binary.BigEndian.Uint64(v[:8])
	var parent, root common.Hash
	copy(parent[:], v[8:40])
	copy(root[:], v[40:72])
	t := binary.BigEndian.Uint64(v[72:80])
	h := &types.Header{Number: new(big.Int).SetUint64(n), ParentHash: parent, Root: root, Time: t}

	const withExtras = 8 + 32 + 32 + 8 + 32 + 32 + 1 + 32
	if len(v) >= withExtras {
		off := 80
		copy(h.TxHash[:], v[off:off+32])
		off += 32
		copy(h.UncleHash[:], v[off:off+32])
		off += 32
		present := v[off]
		off++
		if present == 1 {
			var w common.Hash
			copy(w[:], v[off:off+32])
			h.WithdrawalsHash = &w
		}
	}
	return h
}

func encodeTransactionStub(t *types.Transaction) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, t.Nonce)
	return append(buf, t.Data...)
}

func decodeTransactionStub(v []byte) *types.Transaction {
	if len(v) < 8 {
		return &types.Transaction{}
	}
	return &types.Transaction{Nonce: binary.BigEndian.Uint64(v[:8]), Data: v[8:]}
}

func decodeReceiptStub(v []byte) *types.Receipt {
	if len(v) < 1+common.HashLength {
		return &types.Receipt{}
	}
	var h common.Hash
	copy(h[:], v[1:])
	return &types.Receipt{Status: uint64(v[0]), TxHash: h}
}

func encodeWithdrawalsStub(ws []*types.Withdrawal) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(len(ws)))
	for _, w := range ws {
		var row [8 + 8 + common.AddressLength + 8]byte
		binary.BigEndian.PutUint64(row[:8], w.Index)
		binary.BigEndian.PutUint64(row[8:16], w.ValidatorIndex)
		copy(row[16:16+common.AddressLength], w.Address[:])
		binary.BigEndian.PutUint64(row[16+common.AddressLength:], w.Amount)
		buf = append(buf, row[:]...)
	}
	return buf
}

func decodeWithdrawalsStub(v []byte) []*types.Withdrawal {
	if len(v) < 4 {
		return nil
	}
	n := binary.BigEndian.Uint32(v[:4])
	out := make([]*types.Withdrawal, 0, n)
	rowLen := 8 + 8 + common.AddressLength + 8
	pos := 4
	for i := uint32(0); i < n && pos+rowLen <= len(v); i++ {
		row := v[pos : pos+rowLen]
		w := &types.Withdrawal{
			Index:          binary.BigEndian.Uint64(row[:8]),
			ValidatorIndex: binary.BigEndian.Uint64(row[8:16]),
			Amount:         binary.BigEndian.Uint64(row[16+common.AddressLength:]),
		}
		copy(w.Address[:], row[16:16+common.AddressLength])
		out = append(out, w)
		pos += rowLen
	}
	return out
}
