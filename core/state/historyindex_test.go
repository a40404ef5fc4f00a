package state

import (
	"context"
	"testing"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/bitmapdb"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
	"github.com/stretchr/testify/require"
)

func withTx(t *testing.T, f func(tx kv.RwTx)) {
	t.Helper()
	db := memdb.New(dbutils.AllTables())
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		f(tx)
		return nil
	})
	require.NoError(t, err)
}

func TestIndexAppendAndFind(t *testing.T) {
	oldSize := bitmapdb.ShardSize
	bitmapdb.ShardSize = 4
	defer func() { bitmapdb.ShardSize = oldSize }()

	logicalKey := []byte("addr-1")
	withTx(t, func(tx kv.RwTx) {
		for _, b := range []uint64{1, 2, 3, 4, 5, 6, 9} {
			require.NoError(t, IndexAppend(tx, dbutils.AccountHistory, logicalKey, b))
		}

		highest, ok, err := FindByIndex(tx, dbutils.AccountHistory, logicalKey, 5)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(5), highest)

		highest, ok, err = FindByIndex(tx, dbutils.AccountHistory, logicalKey, 9)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(9), highest)

		_, ok, err = FindByIndex(tx, dbutils.AccountHistory, logicalKey, 0)
		require.NoError(t, err)
		require.False(t, ok)
	})
}

func TestIndexUnwindRemovesTailAndDemotesShard(t *testing.T) {
	oldSize := bitmapdb.ShardSize
	bitmapdb.ShardSize = 4
	defer func() { bitmapdb.ShardSize = oldSize }()

	logicalKey := []byte("addr-2")
	withTx(t, func(tx kv.RwTx) {
		for _, b := range []uint64{1, 2, 3, 4, 5, 6} {
			require.NoError(t, IndexAppend(tx, dbutils.AccountHistory, logicalKey, b))
		}
		// unwind back to block 3: blocks 4,5,6 must disappear, 1-3 remain
		// findable, including the ones that were sealed into a closed
		// shard before the unwind.
		require.NoError(t, IndexUnwind(tx, dbutils.AccountHistory, logicalKey, 4))

		highest, ok, err := FindByIndex(tx, dbutils.AccountHistory, logicalKey, 100)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(3), highest)

		highest, ok, err = FindByIndex(tx, dbutils.AccountHistory, logicalKey, 3)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(3), highest)
	})
}

func TestIndexUnwindPromotesFullySurvivingBoundaryShard(t *testing.T) {
	oldSize := bitmapdb.ShardSize
	bitmapdb.ShardSize = 4
	defer func() { bitmapdb.ShardSize = oldSize }()

	logicalKey := []byte("addr-3")
	withTx(t, func(tx kv.RwTx) {
		// Two full closed shards, no open shard: [1,2,3,4] (highest 4)
		// and [5,6,7,8] (highest 8).
		for _, b := range []uint64{1, 2, 3, 4, 5, 6, 7, 8} {
			require.NoError(t, IndexAppend(tx, dbutils.AccountHistory, logicalKey, b))
		}

		// Unwind to a point past the top shard's highest member (8 < 9):
		// that whole shard must survive, and as the shard adjacent to the
		// unwind point it is promoted to the open key.
		require.NoError(t, IndexUnwind(tx, dbutils.AccountHistory, logicalKey, 9))

		highest, ok, err := FindByIndex(tx, dbutils.AccountHistory, logicalKey, 100)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(8), highest)

		// The lower shard, never visited by the walk, must be untouched.
		highest, ok, err = FindByIndex(tx, dbutils.AccountHistory, logicalKey, 4)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(4), highest)
	})
}
