package stagedsync

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
)

type fakeHasher struct {
	root    common.Hash
	err     error
	calls   []uint64
	unwinds []uint64
}

func (f *fakeHasher) RecalculateRoot(ctx context.Context, blockNum uint64) (common.Hash, error) {
	f.calls = append(f.calls, blockNum)
	return f.root, f.err
}

func (f *fakeHasher) UnwindRoot(ctx context.Context, blockNum uint64) (common.Hash, error) {
	f.unwinds = append(f.unwinds, blockNum)
	return f.root, f.err
}

type fakeUnwinder struct {
	calledBlock uint64
	reason      string
	called      bool
}

func (u *fakeUnwinder) UnwindTo(block uint64, reason string) {
	u.called = true
	u.calledBlock = block
	u.reason = reason
}

// headerStubBytes writes rawdb's shorter header stub layout
// (number[8] | parentHash[32] | root[32] | time[8]), without the body
// commitment extension that rawdb.EncodeHeaderStub appends; rawdb's
// decoder accepts both.
func headerStubBytes(number uint64, root common.Hash) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, number)
	buf = append(buf, make([]byte, 32)...)
	buf = append(buf, root[:]...)
	buf = append(buf, make([]byte, 8)...)
	return buf
}

func putHeader(t *testing.T, db kv.RwDB, number uint64, root common.Hash) {
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		h := common.BytesToHash([]byte{byte(number)})
		if err := tx.Put(dbutils.CanonicalHeaders, common.EncodeBlockNumber(number), h.Bytes()); err != nil {
			return err
		}
		if err := tx.Put(dbutils.HeaderNumbers, h.Bytes(), common.EncodeBlockNumber(number)); err != nil {
			return err
		}
		return tx.Put(dbutils.Headers, common.EncodeBlockNumber(number), headerStubBytes(number, root))
	})
	require.NoError(t, err)
}

func TestSpawnMerkleExecuteMatchingRootAdvances(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	putHeader(t, db, 10, common.BytesToHash([]byte{0xAB}))

	hasher := &fakeHasher{root: common.BytesToHash([]byte{0xAB})}
	u := &fakeUnwinder{}
	s := &StageState{ID: stages.MerkleExecute, BlockNumber: 5}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnMerkleExecute(s, u, tx, 10, MerkleCfg{Hasher: hasher})
	})
	require.NoError(t, err)
	require.False(t, u.called)
	require.Equal(t, uint64(10), s.BlockNumber)
	require.Equal(t, []uint64{10}, hasher.calls)
}

func TestSpawnMerkleExecuteMismatchTriggersUnwind(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	putHeader(t, db, 10, common.BytesToHash([]byte{0xAB}))

	hasher := &fakeHasher{root: common.BytesToHash([]byte{0xCD})}
	u := &fakeUnwinder{}
	s := &StageState{ID: stages.MerkleExecute, BlockNumber: 5}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnMerkleExecute(s, u, tx, 10, MerkleCfg{Hasher: hasher})
	})
	require.NoError(t, err)
	require.True(t, u.called)
	require.Equal(t, uint64(5), u.calledBlock)
	require.Equal(t, uint64(5), s.BlockNumber, "unwind does not advance the checkpoint itself")
}

func TestUnwindMerkleUnwindMismatchErrors(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	putHeader(t, db, 3, common.BytesToHash([]byte{0xEF}))

	hasher := &fakeHasher{root: common.BytesToHash([]byte{0x11})}
	us := &UnwindState{ID: stages.MerkleUnwind, UnwindPoint: 3}
	s := &StageState{ID: stages.MerkleUnwind, BlockNumber: 10}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return UnwindMerkleUnwind(us, s, tx, MerkleCfg{Hasher: hasher})
	})
	require.Error(t, err)
}

func TestUnwindMerkleUnwindNoopWhenAlreadyAtPoint(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	hasher := &fakeHasher{}
	us := &UnwindState{ID: stages.MerkleUnwind, UnwindPoint: 10}
	s := &StageState{ID: stages.MerkleUnwind, BlockNumber: 10}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return UnwindMerkleUnwind(us, s, tx, MerkleCfg{Hasher: hasher})
	})
	require.NoError(t, err)
	require.Empty(t, hasher.unwinds, "no root recheck needed when nothing actually unwound")
}

func TestMerkleHeaderCacheServesLookups(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	putHeader(t, db, 10, common.BytesToHash([]byte{0xAB}))

	hc := rawdb.NewHeaderCache()
	hasher := &fakeHasher{root: common.BytesToHash([]byte{0xAB})}
	u := &fakeUnwinder{}
	s := &StageState{ID: stages.MerkleExecute, BlockNumber: 5}

	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnMerkleExecute(s, u, tx, 10, MerkleCfg{Hasher: hasher, Headers: hc})
	})
	require.NoError(t, err)
	require.False(t, u.called)
}
