// Package changeset implements the reversible changeset rows of
// spec.md §3: AccountChangeSet (BlockNumber -> {address, prior_account?},
// dup-sorted) and StorageChangeSet ((BlockNumber, Address) ->
// (StorageKey, prior_value), dup-sorted on StorageKey). Each row
// records the value a key held immediately BEFORE the block that
// produced it, so a range of blocks can be replayed backwards (I3).
//
// Grounded on the teacher's common/changeset package — referenced from
// core/state/db_state_writer.go (changeset.EncodeAccounts,
// ChangeSetWriter) and core/state/history.go
// (changeset.AccountChangeSetPlainBytes.Find) — generalized from its
// one-blob-per-block encoding to per-row dup-sorted values, the layout
// spec.md §3 names explicitly.
package changeset

import (
	"encoding/binary"
	"errors"

	"github.com/ledgerwatch/erigon-core/common"
)

var ErrNotFound = errors.New("changeset: key not found")

// EncodeAccountRow builds one AccountChangeSet dup value: address (20
// bytes, so dup-sort order is address order) followed by the prior
// account's storage encoding (empty if the account did not exist
// before the block).
func EncodeAccountRow(address common.Address, priorEncoded []byte) []byte {
	row := make([]byte, common.AddressLength+len(priorEncoded))
	copy(row, address[:])
	copy(row[common.AddressLength:], priorEncoded)
	return row
}

func DecodeAccountRow(row []byte) (address common.Address, priorEncoded []byte) {
	copy(address[:], row[:common.AddressLength])
	priorEncoded = row[common.AddressLength:]
	return
}

// EncodeStorageRow builds one StorageChangeSet dup value: the
// account's incarnation at the time of the change (so the physical
// PlainStorageState/HashedStorage key can be rebuilt on unwind),
// followed by the storage key (32 bytes, giving dup-sort order by
// storage key within one incarnation) and the prior value.
func EncodeStorageRow(incarnation uint64, key common.Hash, priorValue []byte) []byte {
	row := make([]byte, 8+common.HashLength+len(priorValue))
	binary.BigEndian.PutUint64(row, incarnation)
	copy(row[8:], key[:])
	copy(row[8+common.HashLength:], priorValue)
	return row
}

func DecodeStorageRow(row []byte) (incarnation uint64, key common.Hash, priorValue []byte) {
	incarnation = binary.BigEndian.Uint64(row[:8])
	copy(key[:], row[8:8+common.HashLength])
	priorValue = row[8+common.HashLength:]
	return
}
