package bitmapdb

import "encoding/binary"

// EncodeShardKey builds the ShardKey{address [, storage_key], highest}
// key from spec.md §3: a logical key (address, or address+storage_key)
// followed by the big-endian highest_block_number sentinel that orders
// shards for one logical key contiguously, with OpenShardSentinel last.
// Mirrors the teacher's lastShardKey/shardKey construction in
// ethdb/bitmapdb/dbutils.go (AppendMergeByOr, writeBitmapSharded), which
// appends a 4-byte big-endian member instead of 8.
func EncodeShardKey(logicalKey []byte, highest uint64) []byte {
	out := make([]byte, len(logicalKey)+8)
	copy(out, logicalKey)
	binary.BigEndian.PutUint64(out[len(logicalKey):], highest)
	return out
}

// DecodeShardKey splits a shard key back into its logical key (of the
// given length) and highest_block_number.
func DecodeShardKey(key []byte, logicalKeyLen int) (logicalKey []byte, highest uint64) {
	logicalKey = key[:logicalKeyLen]
	highest = binary.BigEndian.Uint64(key[logicalKeyLen:])
	return
}

// OpenShardKey is EncodeShardKey(logicalKey, OpenShardSentinel) — the
// key under which the still-growing tail shard lives.
func OpenShardKey(logicalKey []byte) []byte {
	return EncodeShardKey(logicalKey, OpenShardSentinel)
}
