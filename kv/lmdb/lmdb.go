// Package lmdb is the production kv.RwDB backing store: a CGO binding
// to LMDB via github.com/ledgerwatch/lmdb-go (teacher go.mod), chosen
// the way the teacher's own ethdb layer sat on LMDB — dup-sort B-tree
// tables, MVCC snapshot reads, and an environment-wide single-writer
// lock that enforces spec.md §5's "single-threaded per write
// transaction" rule natively rather than needing a Go-level mutex (the
// role kv/memdb.DB's sync.RWMutex plays for the in-memory stand-in).
//
// No LMDB binding file was present in the retrieval pack to adapt line
// for line (the teacher's ethdb/bitmapdb/dbutils.go and
// ethdb/memory_database.go worked through the older ethdb.Database
// abstraction, not kv.RwDB, and both were superseded rather than
// carried forward — see DESIGN.md). This package is written directly
// against lmdb-go's real, stable API instead: one lmdb.DBI per table,
// opened with lmdb.Create (lmdb.DupSort added for dup-sorted tables),
// looked up once at Open and cached for the env's lifetime.
package lmdb

import (
	"context"
	"fmt"
	"os"

	"github.com/c2h5oh/datasize"
	"github.com/ledgerwatch/lmdb-go/lmdb"

	"github.com/ledgerwatch/erigon-core/kv"
)

// DefaultMapSize is used when Open is called with a zero ByteSize.
const DefaultMapSize = 1 * datasize.GB

// DB wraps an *lmdb.Env, pre-opening one DBI per table named in cfg so
// no transaction ever has to open a DBI lazily (lmdb-go requires DBI
// creation to happen in a write transaction, so dur to this module's
// single-writer discipline it is done once up front instead).
type DB struct {
	env  *lmdb.Env
	cfg  kv.TableFlags
	dbis map[string]lmdb.DBI
}

// Open creates or opens an LMDB environment at path with one DBI per
// table in cfg. mapSize bounds the environment's virtual address space
// (LMDB requires this up front); zero defaults to DefaultMapSize.
func Open(path string, cfg kv.TableFlags, mapSize datasize.ByteSize) (*DB, error) {
	env, err := lmdb.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("lmdb: new env: %w", err)
	}
	if mapSize == 0 {
		mapSize = DefaultMapSize
	}
	if err := env.SetMapSize(int64(mapSize)); err != nil {
		return nil, fmt.Errorf("lmdb: set map size: %w", err)
	}
	if err := env.SetMaxDBs(len(cfg) + 1); err != nil {
		return nil, fmt.Errorf("lmdb: set max dbs: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("lmdb: mkdir %s: %w", path, err)
	}
	if err := env.Open(path, 0, 0o644); err != nil {
		return nil, fmt.Errorf("lmdb: open %s: %w", path, err)
	}

	db := &DB{env: env, cfg: cfg, dbis: make(map[string]lmdb.DBI, len(cfg))}
	err = env.Update(func(txn *lmdb.Txn) error {
		for name, tc := range cfg {
			flags := uint(lmdb.Create)
			if tc.DupSort {
				flags |= lmdb.DupSort
			}
			dbi, err := txn.OpenDBI(name, flags)
			if err != nil {
				return fmt.Errorf("lmdb: open table %s: %w", name, err)
			}
			db.dbis[name] = dbi
		}
		return nil
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return db, nil
}

func (db *DB) Close() { db.env.Close() }

func (db *DB) dbi(table string) (lmdb.DBI, error) {
	d, ok := db.dbis[table]
	if !ok {
		return 0, kv.ErrTableNotFound
	}
	return d, nil
}

// View and BeginRo deliberately leave Txn.RawRead at its default
// (false): this package copies values out of the memory-mapped region
// on every read so a []byte returned from a Tx can safely outlive the
// cursor call that produced it, trading a copy for not having to audit
// every caller for dangling mmap pointers.
func (db *DB) View(ctx context.Context, f func(kv.Tx) error) error {
	return db.env.View(func(txn *lmdb.Txn) error {
		return f(&tx{db: db, txn: txn})
	})
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	txn, err := db.env.BeginTxn(nil, lmdb.Readonly)
	if err != nil {
		return nil, err
	}
	return &tx{db: db, txn: txn}, nil
}

// Update runs f inside one read-write transaction. LMDB's environment
// lock guarantees only one such transaction runs at a time across the
// whole process (spec.md §5), no additional Go-level locking needed.
func (db *DB) Update(ctx context.Context, f func(kv.RwTx) error) error {
	return db.env.Update(func(txn *lmdb.Txn) error {
		return f(&tx{db: db, txn: txn})
	})
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	txn, err := db.env.BeginTxn(nil, 0)
	if err != nil {
		return nil, err
	}
	return &tx{db: db, txn: txn}, nil
}

type tx struct {
	db  *DB
	txn *lmdb.Txn
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	v, err := t.txn.Get(dbi, key)
	if lmdb.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) Put(table string, key, value []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	return t.txn.Put(dbi, key, value, 0)
}

func (t *tx) Delete(table string, key []byte) error {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return err
	}
	err = t.txn.Del(dbi, key, nil)
	if lmdb.IsNotFound(err) {
		return nil
	}
	return err
}

func (t *tx) Commit() error {
	return t.txn.Commit()
}

func (t *tx) Rollback() {
	t.txn.Abort()
}

func (t *tx) openCursor(table string) (*cursor, error) {
	dbi, err := t.db.dbi(table)
	if err != nil {
		return nil, err
	}
	c, err := t.txn.OpenCursor(dbi)
	if err != nil {
		return nil, err
	}
	return &cursor{c: c}, nil
}

func (t *tx) Cursor(table string) (kv.Cursor, error) { return t.openCursor(table) }

func (t *tx) CursorDupSort(table string) (kv.CursorDupSort, error) { return t.openCursor(table) }

func (t *tx) RwCursor(table string) (kv.RwCursor, error) { return t.openCursor(table) }

func (t *tx) RwCursorDupSort(table string) (kv.RwCursorDupSort, error) { return t.openCursor(table) }

// cursor wraps *lmdb.Cursor, translating lmdb.NotFound into the nil,
// nil, nil "end of range" convention this module's kv.Cursor contract
// uses throughout (matching kv/memdb's cursor behavior).
type cursor struct {
	c *lmdb.Cursor
}

func (c *cursor) get(key, val []byte, op uint) (k, v []byte, err error) {
	k, v, err = c.c.Get(key, val, op)
	if lmdb.IsNotFound(err) {
		return nil, nil, nil
	}
	return k, v, err
}

func (c *cursor) First() (k, v []byte, err error) { return c.get(nil, nil, lmdb.First) }
func (c *cursor) Last() (k, v []byte, err error)  { return c.get(nil, nil, lmdb.Last) }
func (c *cursor) Next() (k, v []byte, err error)  { return c.get(nil, nil, lmdb.Next) }
func (c *cursor) Prev() (k, v []byte, err error)  { return c.get(nil, nil, lmdb.Prev) }
func (c *cursor) Current() (k, v []byte, err error) {
	return c.get(nil, nil, lmdb.GetCurrent)
}

func (c *cursor) Seek(seek []byte) (k, v []byte, err error) {
	return c.get(seek, nil, lmdb.SetRange)
}

func (c *cursor) SeekExact(key []byte) (v []byte, err error) {
	_, v, err = c.get(key, nil, lmdb.Set)
	return v, err
}

func (c *cursor) Close() { c.c.Close() }

func (c *cursor) Put(k, v []byte) error {
	return c.c.Put(k, v, 0)
}

func (c *cursor) Delete(k []byte) error {
	if _, _, err := c.get(k, nil, lmdb.Set); err != nil {
		return err
	}
	return c.c.Del(0)
}

func (c *cursor) DeleteCurrent() error { return c.c.Del(0) }

func (c *cursor) SeekBothExact(key, subkey []byte) (k, v []byte, err error) {
	return c.get(key, subkey, lmdb.GetBoth)
}

func (c *cursor) SeekBothRange(key, subkey []byte) (k, v []byte, err error) {
	return c.get(key, subkey, lmdb.GetBothRange)
}

func (c *cursor) FirstDup() (v []byte, err error) {
	_, v, err = c.get(nil, nil, lmdb.FirstDup)
	return v, err
}

func (c *cursor) NextDup() (k, v []byte, err error) {
	return c.get(nil, nil, lmdb.NextDup)
}

func (c *cursor) LastDup() (v []byte, err error) {
	_, v, err = c.get(nil, nil, lmdb.LastDup)
	return v, err
}

func (c *cursor) PutNoDupData(k, v []byte) error {
	return c.c.Put(k, v, lmdb.NoDupData)
}

func (c *cursor) DeleteCurrentDup() error {
	return c.c.Del(lmdb.NoDupData)
}

func (c *cursor) AppendDup(k, v []byte) error {
	return c.c.Put(k, v, lmdb.AppendDup)
}
