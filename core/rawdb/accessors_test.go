package rawdb

import (
	"context"
	"math/big"
	"testing"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
	"github.com/stretchr/testify/require"
)

func newTestDB() kv.RwDB { return memdb.New(dbutils.AllTables()) }

func TestInsertBlockAndReadBack(t *testing.T) {
	db := newTestDB()
	header := &types.Header{Number: big.NewInt(5), ParentHash: common.BytesToHash([]byte{1}), Time: 100}
	tx1 := &types.Transaction{Nonce: 1, Data: []byte("a")}
	tx2 := &types.Transaction{Nonce: 2, Data: []byte("bb")}
	block := types.NewBlock(header, &types.Body{Transactions: []*types.Transaction{tx1, tx2}})
	senders := []common.Address{common.BytesToAddress([]byte{0xA}), common.BytesToAddress([]byte{0xB})}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		require.NoError(t, tx.Put(dbutils.CanonicalHeaders, common.EncodeBlockNumber(5), common.BytesToHash([]byte{0xFF}).Bytes()))
		require.NoError(t, tx.Put(dbutils.HeaderNumbers, common.BytesToHash([]byte{0xFF}).Bytes(), common.EncodeBlockNumber(5)))
		return InsertBlock(tx, block, senders, 10)
	})
	require.NoError(t, err)

	err = db.View(context.Background(), func(tx kv.Tx) error {
		got, err := Header(tx, 5)
		require.NoError(t, err)
		require.Equal(t, uint64(5), got.NumberU64())
		require.Equal(t, uint64(100), got.Time)

		txs, err := TransactionsByBlock(tx, 5)
		require.NoError(t, err)
		require.Len(t, txs, 2)
		require.Equal(t, uint64(1), txs[0].Nonce)
		require.Equal(t, uint64(2), txs[1].Nonce)

		gotBlock, gotSenders, err := BlockWithSenders(tx, 5)
		require.NoError(t, err)
		require.Len(t, gotBlock.Transactions(), 2)
		require.Equal(t, senders, gotSenders)
		return nil
	})
	require.NoError(t, err)
}

func TestHeaderTDByNumberPostMergeConstant(t *testing.T) {
	db := newTestDB()
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Put(dbutils.HeaderTD, common.EncodeBlockNumber(4), big.NewInt(123).Bytes())
	})
	require.NoError(t, err)

	err = db.View(context.Background(), func(tx kv.Tx) error {
		td, err := HeaderTDByNumber(tx, 4, 10)
		require.NoError(t, err)
		require.Equal(t, big.NewInt(123), td)

		td, err = HeaderTDByNumber(tx, 11, 10)
		require.NoError(t, err)
		require.Equal(t, ParisTerminalTotalDifficulty, td)
		return nil
	})
	require.NoError(t, err)
}

func TestWithdrawalsByBlockPrePostShanghai(t *testing.T) {
	db := newTestDB()
	header := &types.Header{Number: big.NewInt(1), Time: 50}
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		require.NoError(t, tx.Put(dbutils.CanonicalHeaders, common.EncodeBlockNumber(1), common.BytesToHash([]byte{2}).Bytes()))
		require.NoError(t, tx.Put(dbutils.HeaderNumbers, common.BytesToHash([]byte{2}).Bytes(), common.EncodeBlockNumber(1)))
		return InsertBlock(tx, types.NewBlock(header, &types.Body{}), nil, 0)
	})
	require.NoError(t, err)

	err = db.View(context.Background(), func(tx kv.Tx) error {
		w, err := WithdrawalsByBlock(tx, 1, 100) // shanghai at t=100, block at t=50: pre-Shanghai
		require.NoError(t, err)
		require.Nil(t, w)

		w, err = WithdrawalsByBlock(tx, 1, 10) // shanghai at t=10, block at t=50: post-Shanghai
		require.NoError(t, err)
		require.NotNil(t, w)
		require.Empty(t, *w)
		return nil
	})
	require.NoError(t, err)
}

func TestHeaderCacheServesStaleUntilInvalidated(t *testing.T) {
	db := newTestDB()
	put := func(number uint64, parent byte, ts uint64) {
		err := db.Update(context.Background(), func(tx kv.RwTx) error {
			h := common.BytesToHash([]byte{parent})
			require.NoError(t, tx.Put(dbutils.CanonicalHeaders, common.EncodeBlockNumber(number), h.Bytes()))
			require.NoError(t, tx.Put(dbutils.HeaderNumbers, h.Bytes(), common.EncodeBlockNumber(number)))
			return tx.Put(dbutils.Headers, common.EncodeBlockNumber(number), EncodeHeaderStub(&types.Header{Number: big.NewInt(int64(number)), Time: ts}))
		})
		require.NoError(t, err)
	}
	put(7, 0xAA, 100)

	hc := NewHeaderCache()
	err := db.View(context.Background(), func(tx kv.Tx) error {
		got, err := hc.Header(tx, 7)
		require.NoError(t, err)
		require.Equal(t, uint64(100), got.Time)
		return nil
	})
	require.NoError(t, err)

	// Rewrite block 7 with a different timestamp; the cache should still
	// serve the stale value until explicitly invalidated.
	put(7, 0xAA, 200)
	err = db.View(context.Background(), func(tx kv.Tx) error {
		got, err := hc.Header(tx, 7)
		require.NoError(t, err)
		require.Equal(t, uint64(100), got.Time)
		return nil
	})
	require.NoError(t, err)

	hc.Invalidate(7)
	err = db.View(context.Background(), func(tx kv.Tx) error {
		got, err := hc.Header(tx, 7)
		require.NoError(t, err)
		require.Equal(t, uint64(200), got.Time)
		return nil
	})
	require.NoError(t, err)
}
