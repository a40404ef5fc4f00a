// Package bitmapdb implements the sharded integer-list codec described
// in spec.md §4.2 (C2): a compressed ascending list of uint64 block
// numbers bounded by a shard-size target, supporting construction from a
// sorted slice, lower-bound iteration, and serialization under a fixed
// byte ceiling.
//
// It generalizes the teacher's ethdb/bitmapdb/dbutils.go, which shards a
// github.com/RoaringBitmap/roaring bitmap by *serialized-byte* budget
// (ShardLimit = 3*datasize.KB) under a (key, highestMember) keying
// scheme. Because spec.md fixes the sharding unit as a *count*
// (NUM_OF_INDICES_IN_SHARD), this package shards by cardinality instead
// of by byte size, but keeps the teacher's actual bitmap representation
// (github.com/RoaringBitmap/roaring/v2/roaring64) and its Write/Read
// serialization — the teacher's roaring dependency is exercised, not
// replaced.
package bitmapdb

import (
	"errors"

	"github.com/RoaringBitmap/roaring/v2/roaring64"
)

// ShardSize is NUM_OF_INDICES_IN_SHARD (spec.md §4.2): the exact length
// of every non-tail shard. 2000 uint64 block numbers roaring-encode to
// well under 2KB in the worst (non run-length-compressible) case.
var ShardSize = 2000

// OpenShardSentinel is the "still growing" shard's highest_block_number
// (spec.md §4.2: "the open ... shard always at u64::MAX").
const OpenShardSentinel = ^uint64(0)

var (
	ErrUnsorted = errors.New("bitmapdb: input must be strictly sorted ascending")
	ErrEmpty    = errors.New("bitmapdb: input must be non-empty")
)

// Shard is a bounded, sorted packed list of block numbers (spec.md
// Glossary). It never holds more than ShardSize elements by
// construction (callers partition before calling NewShard).
type Shard struct {
	bm *roaring64.Bitmap
}

// NewShard constructs a Shard from an already-sorted, duplicate-free
// slice. Mirrors the precondition the teacher relies on in
// writeBitmapSharded: callers supply already-merged, ascending input.
func NewShard(sorted []uint64) (*Shard, error) {
	if len(sorted) == 0 {
		return nil, ErrEmpty
	}
	for i := 1; i < len(sorted); i++ {
		if sorted[i] <= sorted[i-1] {
			return nil, ErrUnsorted
		}
	}
	bm := roaring64.New()
	bm.AddMany(sorted)
	return &Shard{bm: bm}, nil
}

// LoadShard deserializes a Shard previously produced by Serialize.
func LoadShard(b []byte) (*Shard, error) {
	bm := roaring64.New()
	if err := bm.UnmarshalBinary(b); err != nil {
		return nil, err
	}
	return &Shard{bm: bm}, nil
}

// Serialize encodes the shard to its compact on-disk representation.
// For ShardSize-bounded shards this stays far below the ~2KB ceiling
// spec.md §4.2 requires.
func (s *Shard) Serialize() ([]byte, error) {
	return s.bm.MarshalBinary()
}

// Len is the count of block numbers held (spec.md: "constant-time len").
func (s *Shard) Len() int { return int(s.bm.GetCardinality()) }

// Last is the shard's maximum element (spec.md: "cheap last").
func (s *Shard) Last() uint64 {
	if s.bm.IsEmpty() {
		return 0
	}
	return s.bm.Maximum()
}

// First is the shard's minimum element (0 for an empty shard).
func (s *Shard) First() uint64 {
	if s.bm.IsEmpty() {
		return 0
	}
	return s.bm.Minimum()
}

// ToSlice materializes the shard's contents in ascending order.
func (s *Shard) ToSlice() []uint64 { return s.bm.ToArray() }

// IterateFrom returns the elements >= lo, ascending (spec.md §4.2:
// "iterate from a lower bound, used for range pruning").
func (s *Shard) IterateFrom(lo uint64) []uint64 {
	it := s.bm.Iterator()
	it.AdvanceIfNeeded(lo)
	out := make([]uint64, 0, s.Len())
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

// Prefix returns the elements <= hi, ascending — used by unwind to
// reconstruct the surviving prefix of a shard that straddles the
// target block (spec.md §4.3 step 3).
func (s *Shard) Prefix(hi uint64) []uint64 {
	all := s.ToSlice()
	out := make([]uint64, 0, len(all))
	for _, v := range all {
		if v > hi {
			break
		}
		out = append(out, v)
	}
	return out
}

// Partition splits a sorted, duplicate-free list into full chunks of
// exactly ShardSize plus a possibly-empty final partial chunk — the
// chunking rule of spec.md §4.3 step 3.
func Partition(sorted []uint64) (full [][]uint64, partial []uint64) {
	for len(sorted) >= ShardSize {
		full = append(full, sorted[:ShardSize])
		sorted = sorted[ShardSize:]
	}
	return full, sorted
}
