package state

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
)

func TestReadCacheAccountServesStaleUntilInvalidated(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	addr := common.BytesToAddress([]byte{1})

	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Put(dbutils.PlainAccountState, addr[:], []byte("v1"))
	}))

	rc := NewReadCache(1 << 20)
	err := db.View(context.Background(), func(tx kv.Tx) error {
		v, err := rc.Account(tx, addr)
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), v)
		return nil
	})
	require.NoError(t, err)

	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Put(dbutils.PlainAccountState, addr[:], []byte("v2"))
	}))

	err = db.View(context.Background(), func(tx kv.Tx) error {
		v, err := rc.Account(tx, addr)
		require.NoError(t, err)
		require.Equal(t, []byte("v1"), v, "still serving the cached value")
		return nil
	})
	require.NoError(t, err)

	rc.InvalidateAccount(addr)
	err = db.View(context.Background(), func(tx kv.Tx) error {
		v, err := rc.Account(tx, addr)
		require.NoError(t, err)
		require.Equal(t, []byte("v2"), v)
		return nil
	})
	require.NoError(t, err)
}

func TestReadCacheCodeSizeWithoutLoadingCode(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	hash := common.BytesToHash([]byte{2})

	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Put(dbutils.Code, hash[:], []byte("deadbeefdeadbeef"))
	}))

	rc := NewReadCache(1 << 20)
	err := db.View(context.Background(), func(tx kv.Tx) error {
		size, err := rc.CodeSize(tx, hash)
		require.NoError(t, err)
		require.Equal(t, 16, size)
		return nil
	})
	require.NoError(t, err)

	// A second call must be servable from codeSize alone even if the
	// underlying code row disappears.
	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Delete(dbutils.Code, hash[:])
	}))
	err = db.View(context.Background(), func(tx kv.Tx) error {
		size, err := rc.CodeSize(tx, hash)
		require.NoError(t, err)
		require.Equal(t, 16, size)
		return nil
	})
	require.NoError(t, err)
}

func TestReadCacheStorageKeyedByIncarnation(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	addr := common.BytesToAddress([]byte{3})
	key := common.BytesToHash([]byte{4})

	plainKey1 := dbutils.PlainStorageKey(addr, 1, key)
	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		return tx.Put(dbutils.PlainStorageState, plainKey1, []byte("slot-inc1"))
	}))

	rc := NewReadCache(1 << 20)
	err := db.View(context.Background(), func(tx kv.Tx) error {
		v, err := rc.Storage(tx, addr, 1, key)
		require.NoError(t, err)
		require.Equal(t, []byte("slot-inc1"), v)

		// A different incarnation of the same address/key is a distinct
		// cache entry, not a stale hit on incarnation 1's value.
		v2, err := rc.Storage(tx, addr, 2, key)
		require.NoError(t, err)
		require.Empty(t, v2)
		return nil
	})
	require.NoError(t, err)
}
