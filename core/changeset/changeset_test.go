package changeset

import (
	"context"
	"testing"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/types/accounts"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
	"github.com/stretchr/testify/require"
)

func TestAccountRowEncodeDecode(t *testing.T) {
	addr := common.BytesToAddress([]byte{1, 2, 3})
	row := EncodeAccountRow(addr, []byte("prior"))
	gotAddr, gotPrior := DecodeAccountRow(row)
	require.Equal(t, addr, gotAddr)
	require.Equal(t, []byte("prior"), gotPrior)
}

func TestStorageRowEncodeDecode(t *testing.T) {
	key := common.BytesToHash([]byte{9, 9})
	row := EncodeStorageRow(3, key, []byte("old"))
	inc, gotKey, gotPrior := DecodeStorageRow(row)
	require.Equal(t, uint64(3), inc)
	require.Equal(t, key, gotKey)
	require.Equal(t, []byte("old"), gotPrior)
}

func TestWriterFlushesDupSortedRows(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	addr1 := common.BytesToAddress([]byte{1})
	addr2 := common.BytesToAddress([]byte{2})

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		w := NewWriter(7)
		original := &accounts.Account{Initialised: true, Nonce: 1}
		require.NoError(t, w.UpdateAccountData(context.Background(), addr1, original, &accounts.Account{}))
		require.NoError(t, w.DeleteAccount(context.Background(), addr2, &accounts.Account{Initialised: true, Nonce: 2}))
		return w.Flush(tx)
	})
	require.NoError(t, err)

	err = db.View(context.Background(), func(tx kv.Tx) error {
		c, err := tx.CursorDupSort(dbutils.AccountChangeSet)
		require.NoError(t, err)
		defer c.Close()
		blockKey := common.EncodeBlockNumber(7)
		k, v, err := c.SeekBothRange(blockKey, nil)
		require.NoError(t, err)
		require.Equal(t, blockKey, k)
		gotAddr, _ := DecodeAccountRow(v)
		require.Equal(t, addr1, gotAddr)

		k, v, err = c.NextDup()
		require.NoError(t, err)
		require.NotNil(t, v)
		gotAddr, _ = DecodeAccountRow(v)
		require.Equal(t, addr2, gotAddr)
		return nil
	})
	require.NoError(t, err)
}
