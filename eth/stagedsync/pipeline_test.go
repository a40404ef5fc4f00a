package stagedsync

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
)

func TestRunForwardUnwindsOnStageValidation(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	calls := 0
	stage := &Stage{
		ID: stages.Bodies,
		Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
			calls++
			return &StageValidation{Block: 5}
		},
	}
	p := NewPipeline([]*Stage{stage}, 0)
	err := p.runForward(context.Background(), db, 10)
	require.NoError(t, err)
	require.Equal(t, 1, calls, "a validation failure must not be retried in place")
	require.True(t, p.unwindSet)
	require.Equal(t, uint64(4), p.unwindTo)
}

func TestRunForwardUnwindsToZeroOnGenesisValidationFailure(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	stage := &Stage{
		ID: stages.Bodies,
		Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
			return &StageValidation{Block: 0}
		},
	}
	p := NewPipeline([]*Stage{stage}, 0)
	err := p.runForward(context.Background(), db, 10)
	require.NoError(t, err)
	require.True(t, p.unwindSet)
	require.Equal(t, uint64(0), p.unwindTo)
}

func TestRunForwardRetriesOnDownloaderTransient(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	attempts := 0
	stage := &Stage{
		ID: stages.Bodies,
		Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
			attempts++
			if attempts == 1 {
				return &DownloaderTransient{Err: errors.New("peer timeout")}
			}
			return s.DoneAndUpdate(tx, toBlock)
		},
	}
	p := NewPipeline([]*Stage{stage}, 0)
	err := p.runForward(context.Background(), db, 10)
	require.NoError(t, err)
	require.Equal(t, 2, attempts, "a transient downloader error retries the same stage")
	require.False(t, p.unwindSet)
}

func TestRunForwardHaltsOnFatalError(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	boom := errors.New("boom")
	stage := &Stage{
		ID: stages.Bodies,
		Exec: func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error {
			return boom
		},
	}
	p := NewPipeline([]*Stage{stage}, 0)
	err := p.runForward(context.Background(), db, 10)
	require.Error(t, err)
	require.True(t, errors.Is(err, boom), "fatal errors bubble up wrapped, not swallowed")
}

func TestRunReturnsCancelledWhenContextDone(t *testing.T) {
	db := memdb.New(dbutils.AllTables())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewPipeline(nil, 0)
	err := p.Run(ctx, db, 10)
	require.Error(t, err)
	var c *Cancelled
	require.True(t, errors.As(err, &c))
}
