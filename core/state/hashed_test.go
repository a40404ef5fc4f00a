package state

import (
	"context"
	"testing"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/types/accounts"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/stretchr/testify/require"
)

func TestProjectAccountChangesMirrorsPlainState(t *testing.T) {
	db := newDB()
	addr := common.BytesToAddress([]byte{0xCC})

	ps := NewPostState(1)
	ps.Accounts[addr] = &AccountUpdate{New: &accounts.Account{Initialised: true, Balance: *uint256.NewInt(42)}}

	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		if err := ps.WriteToDB(tx); err != nil {
			return err
		}
		return ProjectAccountChanges(tx, 1)
	}))

	hashed, err := common.HashData(addr[:])
	require.NoError(t, err)

	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		plain, err := tx.GetOne(dbutils.PlainAccountState, addr[:])
		require.NoError(t, err)
		got, err := tx.GetOne(dbutils.HashedAccount, hashed[:])
		require.NoError(t, err)
		require.Equal(t, plain, got)
		require.NotEmpty(t, got)
		return nil
	}))
}

func TestProjectAccountChangesDeletesWhenAccountGone(t *testing.T) {
	db := newDB()
	addr := common.BytesToAddress([]byte{0xDD})

	ps1 := NewPostState(1)
	ps1.Accounts[addr] = &AccountUpdate{New: &accounts.Account{Initialised: true, Balance: *uint256.NewInt(1)}}
	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		if err := ps1.WriteToDB(tx); err != nil {
			return err
		}
		return ProjectAccountChanges(tx, 1)
	}))

	ps2 := NewPostState(2)
	prior := &accounts.Account{Initialised: true, Balance: *uint256.NewInt(1)}
	ps2.Accounts[addr] = &AccountUpdate{Prior: prior, New: nil}
	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		if err := ps2.WriteToDB(tx); err != nil {
			return err
		}
		return ProjectAccountChanges(tx, 2)
	}))

	hashed, err := common.HashData(addr[:])
	require.NoError(t, err)
	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		got, err := tx.GetOne(dbutils.HashedAccount, hashed[:])
		require.NoError(t, err)
		require.Empty(t, got)
		return nil
	}))
}

func TestProjectStorageChangesMirrorsPlainStorage(t *testing.T) {
	db := newDB()
	addr := common.BytesToAddress([]byte{0xEE})
	slotKey := common.BytesToHash([]byte{1})

	ps := NewPostState(1)
	ps.Accounts[addr] = &AccountUpdate{New: &accounts.Account{Initialised: true, Incarnation: 1}}
	ps.Storage[addr] = map[common.Hash]*StorageUpdate{
		slotKey: {Incarnation: 1, New: uint256.NewInt(7)},
	}

	require.NoError(t, db.Update(context.Background(), func(tx kv.RwTx) error {
		if err := ps.WriteToDB(tx); err != nil {
			return err
		}
		return ProjectStorageChanges(tx, 1)
	}))

	hashedAddr, err := common.HashData(addr[:])
	require.NoError(t, err)
	hashedKey, err := common.HashData(slotKey[:])
	require.NoError(t, err)
	outer := dbutils.HashedStorageKey(hashedAddr, 1)

	require.NoError(t, db.View(context.Background(), func(tx kv.Tx) error {
		c, err := tx.CursorDupSort(dbutils.HashedStorage)
		require.NoError(t, err)
		defer c.Close()
		_, v, err := c.SeekBothExact(outer, hashedKey[:])
		require.NoError(t, err)
		require.NotNil(t, v)
		require.Equal(t, hashedKey[:], v[:common.HashLength])
		return nil
	}))
}
