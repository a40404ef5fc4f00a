package dbutils

import (
	"encoding/binary"

	"github.com/ledgerwatch/erigon-core/common"
)

// EncodeBlockNumber big-endian-encodes a block number as an 8-byte key
// prefix, the way the teacher's dbutils.EncodeTimestamp keys
// AccountChangeSetBucket/StorageChangeSetBucket.
func EncodeBlockNumber(n uint64) []byte { return common.EncodeBlockNumber(n) }

func DecodeBlockNumber(b []byte) uint64 { return common.DecodeBlockNumber(b) }

// PlainStorageKey builds the PlainStorageState row key: address +
// incarnation + storage key, matching the teacher's
// dbutils.PlainGenerateCompositeStorageKey layout (common/dbutils).
func PlainStorageKey(address common.Address, incarnation uint64, storageKey common.Hash) []byte {
	key := make([]byte, common.AddressLength+common.IncarnationLength+common.HashLength)
	copy(key, address[:])
	binary.BigEndian.PutUint64(key[common.AddressLength:], incarnation)
	copy(key[common.AddressLength+common.IncarnationLength:], storageKey[:])
	return key
}

// SplitPlainStorageKey reverses PlainStorageKey.
func SplitPlainStorageKey(key []byte) (address common.Address, incarnation uint64, storageKey common.Hash) {
	copy(address[:], key[:common.AddressLength])
	incarnation = binary.BigEndian.Uint64(key[common.AddressLength : common.AddressLength+common.IncarnationLength])
	copy(storageKey[:], key[common.AddressLength+common.IncarnationLength:])
	return
}

// StorageChangeSetKey builds the StorageChangeSet outer key:
// BlockNumber + Address (spec.md §3: "(BlockNumber, Address) ->
// (StorageKey, prior_value)").
func StorageChangeSetKey(block uint64, address common.Address) []byte {
	key := make([]byte, 8+common.AddressLength)
	binary.BigEndian.PutUint64(key, block)
	copy(key[8:], address[:])
	return key
}

func SplitStorageChangeSetKey(key []byte) (block uint64, address common.Address) {
	block = binary.BigEndian.Uint64(key[:8])
	copy(address[:], key[8:])
	return
}

// HashedStorageKey builds the HashedStorage outer (dup-sort) key:
// keccak(address) + incarnation, mirroring PlainStorageKey's layout
// one level up in the hashed projection (spec.md §4.4).
func HashedStorageKey(hashedAddress common.Hash, incarnation uint64) []byte {
	key := make([]byte, common.HashLength+common.IncarnationLength)
	copy(key, hashedAddress[:])
	binary.BigEndian.PutUint64(key[common.HashLength:], incarnation)
	return key
}
