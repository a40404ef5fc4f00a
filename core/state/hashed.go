// Plain-to-hashed state projection (spec.md §4.4, C4): HashedAccount and
// HashedStorage mirror PlainAccountState/PlainStorageState keyed by
// keccak(address) (and keccak(storageKey) for the inner dup-sort key)
// rather than the raw address, so a trie builder can walk state in
// hash order without touching the authoritative plain tables.
//
// Grounded on the teacher's common/dbutils/bucket.go comment block
// describing PlainStateBucket (unhashed, authoritative) vs
// CurrentStateBucket (hashed, trie input) as two projections of the
// same account/storage set, and on db_state_writer.go's pattern of
// deriving the hashed key with common.HashData right before the write
// that follows the plain one.
package state

import (
	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/changeset"
	"github.com/ledgerwatch/erigon-core/kv"
)

// ProjectAccountChanges walks the AccountChangeSet rows recorded for
// blockNum and, for each touched address, copies PlainAccountState's
// current value (or absence) into HashedAccount under keccak(address).
// A zero value is represented by absence in both tables (spec.md §4.4).
func ProjectAccountChanges(tx kv.RwTx, blockNum uint64) error {
	cs, err := tx.CursorDupSort(dbutils.AccountChangeSet)
	if err != nil {
		return err
	}
	defer cs.Close()

	seen := map[common.Address]struct{}{}
	blockKey := dbutils.EncodeBlockNumber(blockNum)
	var k, v []byte
	k, v, err = cs.SeekBothRange(blockKey, nil)
	for ; k != nil; k, v, err = cs.NextDup() {
		if err != nil {
			return err
		}
		addr, _ := changeset.DecodeAccountRow(v)
		if _, ok := seen[addr]; ok {
			continue
		}
		seen[addr] = struct{}{}
		if err := projectAccount(tx, addr); err != nil {
			return err
		}
	}
	return nil
}

func projectAccount(tx kv.RwTx, addr common.Address) error {
	hashed, err := common.HashData(addr[:])
	if err != nil {
		return err
	}
	plain, err := tx.GetOne(dbutils.PlainAccountState, addr[:])
	if err != nil {
		return err
	}
	if len(plain) == 0 {
		return tx.Delete(dbutils.HashedAccount, hashed[:])
	}
	return tx.Put(dbutils.HashedAccount, hashed[:], common.CopyBytes(plain))
}

// ProjectStorageChanges walks the StorageChangeSet rows for blockNum
// and mirrors each touched (address, incarnation, storageKey) slot's
// current PlainStorageState value into HashedStorage, dup-sorted under
// keccak(address)+incarnation by keccak(storageKey).
func ProjectStorageChanges(tx kv.RwTx, blockNum uint64) error {
	c, err := tx.Cursor(dbutils.StorageChangeSet)
	if err != nil {
		return err
	}
	defer c.Close()

	type slot struct {
		addr        common.Address
		incarnation uint64
		key         common.Hash
	}
	seen := map[slot]struct{}{}

	prefix := dbutils.EncodeBlockNumber(blockNum)
	for k, v, err := c.Seek(prefix); k != nil; k, v, err = c.Next() {
		if err != nil {
			return err
		}
		block, addr := dbutils.SplitStorageChangeSetKey(k)
		if block != blockNum {
			break
		}
		incarnation, storageKey, _ := changeset.DecodeStorageRow(v)
		s := slot{addr: addr, incarnation: incarnation, key: storageKey}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		if err := projectStorageSlot(tx, addr, incarnation, storageKey); err != nil {
			return err
		}
	}
	return nil
}

func projectStorageSlot(tx kv.RwTx, addr common.Address, incarnation uint64, key common.Hash) error {
	hashedAddr, err := common.HashData(addr[:])
	if err != nil {
		return err
	}
	hashedKey, err := common.HashData(key[:])
	if err != nil {
		return err
	}
	plainKey := dbutils.PlainStorageKey(addr, incarnation, key)
	value, err := tx.GetOne(dbutils.PlainStorageState, plainKey)
	if err != nil {
		return err
	}
	hashedOuter := dbutils.HashedStorageKey(hashedAddr, incarnation)

	dc, err := tx.RwCursorDupSort(dbutils.HashedStorage)
	if err != nil {
		return err
	}
	defer dc.Close()

	if _, v, err := dc.SeekBothExact(hashedOuter, hashedKey[:]); err != nil {
		return err
	} else if v != nil {
		if err := dc.DeleteCurrentDup(); err != nil {
			return err
		}
	}
	if len(value) == 0 {
		return nil
	}
	row := make([]byte, common.HashLength+len(value))
	copy(row, hashedKey[:])
	copy(row[common.HashLength:], value)
	return dc.Put(hashedOuter, row)
}
