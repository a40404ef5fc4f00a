package stagedsync

import (
	"fmt"

	"github.com/ledgerwatch/erigon-core/common"
)

// StageValidation means a stage rejected data it was given — a body
// that doesn't hash to its header's commitments, a header that doesn't
// chain to its claimed parent. Recoverable: Run unwinds to Block-1 and
// retries (spec.md §7).
type StageValidation struct {
	Block uint64
}

func (e *StageValidation) Error() string {
	return fmt.Sprintf("validation failed at block %d", e.Block)
}

// DownloaderTransient wraps a network/peer-level failure from a
// ReverseHeaderDownloader or BodyDownloader collaborator — a dropped
// peer, a timed-out request. Recoverable: Run retries the same stage
// after a backoff instead of halting (spec.md §7).
type DownloaderTransient struct {
	Err error
}

func (e *DownloaderTransient) Error() string {
	return fmt.Sprintf("downloader: %v", e.Err)
}

func (e *DownloaderTransient) Unwrap() error { return e.Err }

// Cancelled reports the pipeline's context was cancelled mid-run.
// Fatal: the current write transaction rolls back and Run returns it
// unchanged (spec.md §7).
type Cancelled struct {
	Reason string
}

func (e *Cancelled) Error() string {
	return fmt.Sprintf("cancelled: %s", e.Reason)
}

// UnwindStateRootMismatch means the state root recomputed after an
// unwind disagrees with the ancestor header it must match (spec.md
// §4.8, §7). Despite the name this is fatal, not locally recoverable —
// an unwind that can't reach an internally consistent state leaves
// nothing for Run to retry, so it bubbles up and halts the pipeline
// like any other corruption.
type UnwindStateRootMismatch struct {
	Got, Expected common.Hash
	Block         uint64
	Hash          common.Hash
}

func (e *UnwindStateRootMismatch) Error() string {
	return fmt.Sprintf("state root mismatch unwinding to block %d (%x): computed %x, header %x", e.Block, e.Hash, e.Got, e.Expected)
}
