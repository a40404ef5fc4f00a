package changeset

import (
	"context"

	"github.com/holiman/uint256"
	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/types/accounts"
	"github.com/ledgerwatch/erigon-core/kv"
)

// Writer accumulates the prior-value rows for a single block as state
// is mutated, then flushes them into AccountChangeSet/StorageChangeSet
// on Flush. Mirrors the teacher's ChangeSetWriter accumulator used
// from DbStateWriter.UpdateAccountData/DeleteAccount/WriteAccountStorage,
// adapted to write dup-sorted rows rather than one serialized blob.
type Writer struct {
	blockNr  uint64
	accounts []accountEntry
	storage  []storageEntry
}

type accountEntry struct {
	address common.Address
	row     []byte
}

type storageEntry struct {
	address common.Address
	row     []byte
}

func NewWriter(blockNr uint64) *Writer {
	return &Writer{blockNr: blockNr}
}

// UpdateAccountData records the account's PRE-block value. original
// may be uninitialised (new account): in that case an empty byte
// slice is recorded, signalling "did not exist" on replay.
func (w *Writer) UpdateAccountData(_ context.Context, address common.Address, original, _ *accounts.Account) error {
	w.recordAccount(address, original)
	return nil
}

func (w *Writer) DeleteAccount(_ context.Context, address common.Address, original *accounts.Account) error {
	w.recordAccount(address, original)
	return nil
}

func (w *Writer) recordAccount(address common.Address, original *accounts.Account) {
	var v []byte
	if original.Initialised {
		v = make([]byte, original.EncodingLengthForStorage())
		original.EncodeForStorage(v)
	}
	w.accounts = append(w.accounts, accountEntry{address: address, row: EncodeAccountRow(address, v)})
}

func (w *Writer) WriteAccountStorage(_ context.Context, address common.Address, incarnation uint64, key *common.Hash, original, value *uint256.Int) error {
	if original.Eq(value) {
		return nil
	}
	w.storage = append(w.storage, storageEntry{address: address, row: EncodeStorageRow(incarnation, *key, original.Bytes())})
	return nil
}

// Flush writes every accumulated row into AccountChangeSet /
// StorageChangeSet, dup-sorted under the block's key (accounts) or the
// block+address key (storage), per spec.md §3.
func (w *Writer) Flush(tx kv.RwTx) error {
	blockKey := common.EncodeBlockNumber(w.blockNr)
	if len(w.accounts) > 0 {
		c, err := tx.RwCursorDupSort(dbutils.AccountChangeSet)
		if err != nil {
			return err
		}
		defer c.Close()
		for _, e := range w.accounts {
			if err := c.Put(blockKey, e.row); err != nil {
				return err
			}
		}
	}
	if len(w.storage) > 0 {
		c, err := tx.RwCursorDupSort(dbutils.StorageChangeSet)
		if err != nil {
			return err
		}
		defer c.Close()
		for _, e := range w.storage {
			key := dbutils.StorageChangeSetKey(w.blockNr, e.address)
			if err := c.Put(key, e.row); err != nil {
				return err
			}
		}
	}
	return nil
}
