package bitmapdb

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShardRejectsUnsortedAndEmpty(t *testing.T) {
	_, err := NewShard(nil)
	require.ErrorIs(t, err, ErrEmpty)

	_, err = NewShard([]uint64{5, 3, 7})
	require.ErrorIs(t, err, ErrUnsorted)

	_, err = NewShard([]uint64{5, 5, 7})
	require.ErrorIs(t, err, ErrUnsorted)
}

func TestShardRoundTrip(t *testing.T) {
	in := []uint64{1, 2, 3, 100, 100000, 100000000}
	s, err := NewShard(in)
	require.NoError(t, err)
	require.Equal(t, len(in), s.Len())
	require.Equal(t, in[len(in)-1], s.Last())
	require.Equal(t, in[0], s.First())

	ser, err := s.Serialize()
	require.NoError(t, err)
	require.LessOrEqual(t, len(ser), 2048)

	loaded, err := LoadShard(ser)
	require.NoError(t, err)
	require.Equal(t, in, loaded.ToSlice())
}

func TestShardIterateFromAndPrefix(t *testing.T) {
	s, err := NewShard([]uint64{1, 2, 3, 4, 5})
	require.NoError(t, err)
	require.Equal(t, []uint64{3, 4, 5}, s.IterateFrom(3))
	require.Equal(t, []uint64{1, 2, 3}, s.Prefix(3))
	require.Empty(t, s.Prefix(0))
	require.Equal(t, []uint64{1, 2, 3, 4, 5}, s.Prefix(5))
}

func TestPartition(t *testing.T) {
	old := ShardSize
	ShardSize = 3
	defer func() { ShardSize = old }()

	full, partial := Partition([]uint64{1, 2, 3, 4, 5, 6, 7})
	require.Len(t, full, 2)
	require.Equal(t, []uint64{1, 2, 3}, full[0])
	require.Equal(t, []uint64{4, 5, 6}, full[1])
	require.Equal(t, []uint64{7}, partial)

	full, partial = Partition([]uint64{1, 2, 3})
	require.Len(t, full, 1)
	require.Empty(t, partial)
}

func TestShardKeyRoundTrip(t *testing.T) {
	addr := make([]byte, 20)
	addr[0] = 0xAB
	k := EncodeShardKey(addr, 42)
	lk, hi := DecodeShardKey(k, 20)
	require.Equal(t, addr, lk)
	require.Equal(t, uint64(42), hi)

	open := OpenShardKey(addr)
	_, hi2 := DecodeShardKey(open, 20)
	require.Equal(t, OpenShardSentinel, hi2)
}
