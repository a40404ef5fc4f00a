package stagedsync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ledgerwatch/erigon-core/eth/stagedsync/stages"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/log"
	"github.com/ledgerwatch/erigon-core/metrics"
)

// transientBackoff is how long runForward waits before retrying a
// stage after a DownloaderTransient error.
const transientBackoff = 2 * time.Second

// ExecFunc runs one forward pass of a stage, advancing it towards
// toBlock. It must call s.Update/s.DoneAndUpdate to persist progress
// before returning.
type ExecFunc func(s *StageState, u Unwinder, tx kv.RwTx, toBlock uint64) error

// UnwindFunc rewinds a stage's own tables down to u.UnwindPoint.
type UnwindFunc func(u *UnwindState, s *StageState, tx kv.RwTx) error

type Stage struct {
	ID          stages.SyncStage
	Description string
	Exec        ExecFunc
	Unwind      UnwindFunc
}

// Pipeline runs an ordered list of stages forward to a target block,
// committing every CommitEvery blocks, and unwinds them in reverse
// order when a stage requests it mid-cycle (spec.md §4.7: "a later
// stage that detects it must discard work below some block number
// triggers an unwind of every stage down to that point, in reverse
// pipeline order, before the forward pass resumes").
type Pipeline struct {
	Stages     []*Stage
	CommitEvery uint64

	unwindTo     uint64
	unwindReason string
	unwindSet    bool
}

func NewPipeline(stageList []*Stage, commitEvery uint64) *Pipeline {
	if commitEvery == 0 {
		commitEvery = 10_000
	}
	return &Pipeline{Stages: stageList, CommitEvery: commitEvery}
}

// UnwindTo implements Unwinder: any stage's Exec can call u.UnwindTo
// to schedule a pipeline-wide rewind once the current stage returns.
func (p *Pipeline) UnwindTo(block uint64, reason string) {
	if p.unwindSet && p.unwindTo <= block {
		return
	}
	p.unwindTo, p.unwindReason, p.unwindSet = block, reason, true
}

// Run drives one full cycle: forward passes of every stage up to
// toBlock, interleaved with any unwind the cycle requests, each
// committed to db as its own transaction so a crash mid-cycle loses at
// most one stage's batch of work (spec.md §4.7, §5).
func (p *Pipeline) Run(ctx context.Context, db kv.RwDB, toBlock uint64) error {
	for {
		if err := ctx.Err(); err != nil {
			return &Cancelled{Reason: err.Error()}
		}
		if err := p.runForward(ctx, db, toBlock); err != nil {
			return err
		}
		if !p.unwindSet {
			return nil
		}
		if err := p.runUnwind(ctx, db); err != nil {
			return err
		}
		p.unwindSet = false
	}
}

func (p *Pipeline) runForward(ctx context.Context, db kv.RwDB, toBlock uint64) error {
	for _, stage := range p.Stages {
		for {
			var progress uint64
			var done bool
			started := time.Now()
			err := db.Update(ctx, func(tx kv.RwTx) error {
				cur, err := GetStageProgress(tx, stage.ID)
				if err != nil {
					return err
				}
				if cur >= toBlock {
					done = true
					progress = cur
					return nil
				}
				target := toBlock
				if target-cur > p.CommitEvery {
					target = cur + p.CommitEvery
				}
				s := &StageState{ID: stage.ID, BlockNumber: cur}
				if err := stage.Exec(s, p, tx, target); err != nil {
					return err
				}
				progress, err = GetStageProgress(tx, stage.ID)
				return err
			})
			if err != nil {
				// spec.md §7: only StageValidation and
				// DownloaderTransient recover locally. Every other
				// kind bubbles up and halts the pipeline, the tx
				// having already rolled back in db.Update.
				var sv *StageValidation
				if errors.As(err, &sv) {
					unwindTo := uint64(0)
					if sv.Block > 0 {
						unwindTo = sv.Block - 1
					}
					log.Warn(fmt.Sprintf("[%s] validation failed, unwinding", stage.ID), "block", sv.Block, "unwindTo", unwindTo)
					p.UnwindTo(unwindTo, sv.Error())
					return nil
				}
				var dt *DownloaderTransient
				if errors.As(err, &dt) {
					log.Warn(fmt.Sprintf("[%s] downloader unavailable, retrying", stage.ID), "err", dt.Err)
					time.Sleep(transientBackoff)
					continue
				}
				return fmt.Errorf("%s: %w", stage.ID, err)
			}
			metrics.ObserveStageCommit(string(stage.ID), progress, started)
			if p.unwindSet {
				return nil
			}
			if done || progress >= toBlock {
				break
			}
			log.Info(fmt.Sprintf("[%s] progress", stage.ID), "block", progress)
		}
	}
	return nil
}

// runUnwind walks the stage list in reverse, rewinding every stage
// whose checkpoint is above p.unwindTo.
func (p *Pipeline) runUnwind(ctx context.Context, db kv.RwDB) error {
	reason := p.unwindReason
	target := p.unwindTo
	for i := len(p.Stages) - 1; i >= 0; i-- {
		stage := p.Stages[i]
		err := db.Update(ctx, func(tx kv.RwTx) error {
			cur, err := GetStageProgress(tx, stage.ID)
			if err != nil {
				return err
			}
			if cur <= target {
				return nil
			}
			s := &StageState{ID: stage.ID, BlockNumber: cur}
			u := &UnwindState{ID: stage.ID, UnwindPoint: target}
			log.Info(fmt.Sprintf("[%s] unwinding", stage.ID), "from", cur, "to", target, "reason", reason)
			return stage.Unwind(u, s, tx)
		})
		if err != nil {
			return fmt.Errorf("unwind %s: %w", stage.ID, err)
		}
	}
	return nil
}
