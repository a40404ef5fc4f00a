package stagedsync

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/core/rawdb"
	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
)

// fakeBodyDownloader hands back one body per header, in order, off a
// pre-seeded slice.
type fakeBodyDownloader struct {
	bodies []*types.Body
}

func (f *fakeBodyDownloader) RequestBodies(ctx context.Context, headers []*types.Header) (<-chan *types.Body, error) {
	ch := make(chan *types.Body, len(f.bodies))
	for _, b := range f.bodies {
		ch <- b
	}
	close(ch)
	return ch, nil
}

// fakeBodyHasher returns a fixed (txRoot, ommersHash, withdrawalsRoot)
// triple regardless of the body it's handed, so tests control the
// match/mismatch outcome directly instead of computing real roots.
type fakeBodyHasher struct {
	txRoot          common.Hash
	ommersHash      common.Hash
	withdrawalsRoot *common.Hash
}

func (f *fakeBodyHasher) HashBody(ctx context.Context, body *types.Body) (common.Hash, common.Hash, *common.Hash, error) {
	return f.txRoot, f.ommersHash, f.withdrawalsRoot, nil
}

func putBodyHeader(t *testing.T, db kv.RwDB, number uint64, txHash, uncleHash common.Hash, withdrawalsHash *common.Hash) {
	t.Helper()
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		h := common.BytesToHash([]byte{byte(number)})
		header := &types.Header{
			Number:          new(big.Int).SetUint64(number),
			TxHash:          txHash,
			UncleHash:       uncleHash,
			WithdrawalsHash: withdrawalsHash,
		}
		if err := tx.Put(dbutils.CanonicalHeaders, common.EncodeBlockNumber(number), h.Bytes()); err != nil {
			return err
		}
		if err := tx.Put(dbutils.HeaderNumbers, h.Bytes(), common.EncodeBlockNumber(number)); err != nil {
			return err
		}
		return tx.Put(dbutils.Headers, common.EncodeBlockNumber(number), rawdb.EncodeHeaderStub(header))
	})
	require.NoError(t, err)
}

func TestSpawnBodiesMatchingRootsAdvances(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	txHash := common.BytesToHash([]byte{0x11})
	uncleHash := common.BytesToHash([]byte{0x22})
	putBodyHeader(t, db, 1, txHash, uncleHash, nil)

	cfg := BodiesCfg{
		Downloader: &fakeBodyDownloader{bodies: []*types.Body{{}}},
		Hasher:     &fakeBodyHasher{txRoot: txHash, ommersHash: uncleHash},
	}
	s := &StageState{ID: stages.Bodies, BlockNumber: 0}
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnBodies(s, nil, tx, 1, cfg)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.BlockNumber)
}

func TestSpawnBodiesMismatchedTxRootFailsValidation(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	txHash := common.BytesToHash([]byte{0x11})
	uncleHash := common.BytesToHash([]byte{0x22})
	putBodyHeader(t, db, 1, txHash, uncleHash, nil)

	cfg := BodiesCfg{
		Downloader: &fakeBodyDownloader{bodies: []*types.Body{{}}},
		Hasher:     &fakeBodyHasher{txRoot: common.BytesToHash([]byte{0xFF}), ommersHash: uncleHash},
	}
	s := &StageState{ID: stages.Bodies, BlockNumber: 0}
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnBodies(s, nil, tx, 1, cfg)
	})
	require.Error(t, err)
	var sv *StageValidation
	require.True(t, errors.As(err, &sv))
	require.Equal(t, uint64(1), sv.Block)

	// the write rolled back: nothing observable for block 1.
	err = db.View(context.Background(), func(tx kv.Tx) error {
		_, gotErr := rawdb.Body(tx, 1)
		require.Error(t, gotErr)
		return nil
	})
	require.NoError(t, err)
}

func TestSpawnBodiesMismatchedWithdrawalsRootFailsValidation(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	txHash := common.BytesToHash([]byte{0x11})
	uncleHash := common.BytesToHash([]byte{0x22})
	want := common.BytesToHash([]byte{0x33})
	putBodyHeader(t, db, 1, txHash, uncleHash, &want)

	cfg := BodiesCfg{
		Downloader: &fakeBodyDownloader{bodies: []*types.Body{{}}},
		Hasher:     &fakeBodyHasher{txRoot: txHash, ommersHash: uncleHash, withdrawalsRoot: nil},
	}
	s := &StageState{ID: stages.Bodies, BlockNumber: 0}
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnBodies(s, nil, tx, 1, cfg)
	})
	require.Error(t, err)
	var sv *StageValidation
	require.True(t, errors.As(err, &sv))
}

func TestSpawnBodiesWithoutHasherSkipsValidation(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	putBodyHeader(t, db, 1, common.Hash{}, common.Hash{}, nil)

	cfg := BodiesCfg{
		Downloader: &fakeBodyDownloader{bodies: []*types.Body{{}}},
	}
	s := &StageState{ID: stages.Bodies, BlockNumber: 0}
	err := db.Update(context.Background(), func(tx kv.RwTx) error {
		return SpawnBodies(s, nil, tx, 1, cfg)
	})
	require.NoError(t, err)
	require.Equal(t, uint64(1), s.BlockNumber)
}
