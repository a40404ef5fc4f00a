// Package kv is the typed ordered key/value abstraction described in
// spec.md §4.1 (C1): tables, read/write cursors, duplicate-sorted
// cursors and range walkers with delete-current. It generalizes the
// teacher's ethdb.Database/ethdb.Tx/ethdb.Cursor contracts
// (ethdb/bitmapdb/dbutils.go, core/state/history.go) to the fuller
// typed-table surface the teacher's lineage (erigon) settled on —
// AKJUS-bsc-erigon/erigon-lib/kv/tables.go names the same bucket set
// this package's kv/memdb and kv/lmdb implementations back.
package kv

import "context"

// Errors returned by every implementation of this package; operations
// never panic on data presence (spec.md §4.1).
type Error string

func (e Error) Error() string { return string(e) }

const (
	ErrTableNotFound Error = "kv: table not found"
	ErrKeyDecoding   Error = "kv: key decoding"
	ErrValueDecoding Error = "kv: value decoding"
	ErrIo            Error = "kv: io"
	ErrNotFound      Error = "kv: not found"
)

// TableCfg describes a table's physical layout. DupSort tables store
// multiple values per key, sorted by value, the way the teacher's
// PlainStateBucket/CurrentStateBucket pack account+storage rows
// (common/dbutils/bucket.go).
type TableCfg struct {
	DupSort bool
}

type TableFlags map[string]TableCfg

// RoDB is a read-only handle to the store: it can only begin read
// transactions, each a consistent snapshot (spec.md §4.1: "a transaction
// ... provides snapshot isolation versus other read transactions").
type RoDB interface {
	View(ctx context.Context, f func(tx Tx) error) error
	BeginRo(ctx context.Context) (Tx, error)
	Close()
}

// RwDB additionally allows exactly one write transaction at a time
// (spec.md §5: "single-threaded per write transaction").
type RwDB interface {
	RoDB
	Update(ctx context.Context, f func(tx RwTx) error) error
	BeginRw(ctx context.Context) (RwTx, error)
}

// Tx is a read-only view over the store.
type Tx interface {
	GetOne(table string, key []byte) ([]byte, error)
	Has(table string, key []byte) (bool, error)
	Cursor(table string) (Cursor, error)
	CursorDupSort(table string) (CursorDupSort, error)
	Commit() error
	Rollback()
}

// RwTx is a single-threaded, atomically-committing write transaction
// (spec.md §4.1).
type RwTx interface {
	Tx
	Put(table string, key, value []byte) error
	Delete(table string, key []byte) error
	RwCursor(table string) (RwCursor, error)
	RwCursorDupSort(table string) (RwCursorDupSort, error)
}

// Cursor walks a table in key order (spec.md: seek, seek_exact, first,
// last, next, prev, walk(from), walk_range(bounds), walk_back).
type Cursor interface {
	First() (k, v []byte, err error)
	Seek(seek []byte) (k, v []byte, err error)
	SeekExact(key []byte) (v []byte, err error)
	Next() (k, v []byte, err error)
	Prev() (k, v []byte, err error)
	Last() (k, v []byte, err error)
	Current() (k, v []byte, err error)
	Close()
}

// RwCursor additionally supports delete-current, the only legal
// mid-walk mutation of the same table (spec.md §4.1).
type RwCursor interface {
	Cursor
	Put(k, v []byte) error
	Delete(k []byte) error
	DeleteCurrent() error
}

// CursorDupSort adds the dup-sorted primitives: seek_by_key_subkey and
// walk_dup, iterating the multiple values stored under one key.
type CursorDupSort interface {
	Cursor
	SeekBothExact(key, subkey []byte) (k, v []byte, err error)
	SeekBothRange(key, subkey []byte) (k, v []byte, err error)
	FirstDup() (v []byte, err error)
	NextDup() (k, v []byte, err error)
	LastDup() (v []byte, err error)
}

type RwCursorDupSort interface {
	CursorDupSort
	RwCursor
	PutNoDupData(k, v []byte) error
	DeleteCurrentDup() error
	AppendDup(k, v []byte) error
}

// WalkFunc is applied to each key/value pair visited by Walk. Returning
// false stops the walk early without error, exactly like the teacher's
// Cursor.Walk(func(k, v []byte) (bool, error)) callback
// (core/state/history.go's buildChangeset).
type WalkFunc func(k, v []byte) (more bool, err error)

// Walk is a lazy producer over [from, ...) that supports mutation via
// its own cursor (spec.md §4.1: "walk_range must be a lazy producer
// that supports mutation via its cursor").
func Walk(c Cursor, from []byte, walker WalkFunc) error {
	var k, v []byte
	var err error
	if from == nil {
		k, v, err = c.First()
	} else {
		k, v, err = c.Seek(from)
	}
	if err != nil {
		return err
	}
	for k != nil {
		more, err := walker(k, v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		k, v, err = c.Next()
		if err != nil {
			return err
		}
	}
	return nil
}

// WalkBack iterates a table from the given key (or the last key if
// from is nil) down towards the first key, descending in key order.
// The history-index unwind (core/state's IndexUnwind) does its own
// descending shard walk with Seek/Last/Prev rather than calling this.
func WalkBack(c Cursor, from []byte, walker WalkFunc) error {
	var k, v []byte
	var err error
	if from == nil {
		k, v, err = c.Last()
	} else {
		k, v, err = c.Seek(from)
		if err == nil && k == nil {
			k, v, err = c.Last()
		}
	}
	if err != nil {
		return err
	}
	for k != nil {
		more, err := walker(k, v)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
		k, v, err = c.Prev()
		if err != nil {
			return err
		}
	}
	return nil
}
