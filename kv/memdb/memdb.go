// Package memdb is an in-memory kv.RwDB used by tests and by the
// `--inmem` CLI flag (cmd/integration). It plays the role the
// teacher's ethdb.NewLMDB().InMem() variant plays in
// ethdb/memory_database.go's NewMemDatabase — a drop-in, dependency-free
// stand-in for the production LMDB engine (kv/lmdb) that the KV
// interface (kv.RwDB) makes swappable.
package memdb

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/ledgerwatch/erigon-core/kv"
)

type kvPair struct {
	k, v []byte
}

type table struct {
	dupSort bool
	rows    []kvPair // sorted by (k) for plain tables, by (k, v) for dup-sorted tables
}

func (t *table) less(i, j kvPair) bool {
	c := bytes.Compare(i.k, j.k)
	if c != 0 {
		return c < 0
	}
	if t.dupSort {
		return bytes.Compare(i.v, j.v) < 0
	}
	return false
}

func (t *table) find(k []byte) int {
	return sort.Search(len(t.rows), func(i int) bool {
		return bytes.Compare(t.rows[i].k, k) >= 0
	})
}

func (t *table) findDup(k, v []byte) int {
	return sort.Search(len(t.rows), func(i int) bool {
		c := bytes.Compare(t.rows[i].k, k)
		if c != 0 {
			return c >= 0
		}
		return bytes.Compare(t.rows[i].v, v) >= 0
	})
}

type DB struct {
	mu     sync.RWMutex
	tables map[string]*table
	cfg    kv.TableFlags
}

func New(cfg kv.TableFlags) *DB {
	db := &DB{tables: make(map[string]*table), cfg: cfg}
	for name, c := range cfg {
		db.tables[name] = &table{dupSort: c.DupSort}
	}
	return db
}

func (db *DB) table(name string) *table {
	t, ok := db.tables[name]
	if !ok {
		t = &table{}
		db.tables[name] = t
	}
	return t
}

func (db *DB) Close() {}

func (db *DB) View(ctx context.Context, f func(tx kv.Tx) error) error {
	tx, err := db.BeginRo(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	return f(tx)
}

func (db *DB) Update(ctx context.Context, f func(tx kv.RwTx) error) error {
	tx, err := db.BeginRw(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

func (db *DB) BeginRo(ctx context.Context) (kv.Tx, error) {
	db.mu.RLock()
	snap := db.snapshot()
	db.mu.RUnlock()
	return &tx{db: db, snapshot: snap, readOnly: true}, nil
}

func (db *DB) BeginRw(ctx context.Context) (kv.RwTx, error) {
	db.mu.Lock() // single writer at a time, per spec.md §5
	snap := db.snapshot()
	return &tx{db: db, snapshot: snap, readOnly: false}, nil
}

// snapshot deep-copies table rows so readers observe an isolated
// point-in-time view (spec.md §4.1 snapshot isolation) even while a
// writer mutates db.tables concurrently.
func (db *DB) snapshot() map[string]*table {
	out := make(map[string]*table, len(db.tables))
	for name, t := range db.tables {
		rows := make([]kvPair, len(t.rows))
		copy(rows, t.rows)
		out[name] = &table{dupSort: t.dupSort, rows: rows}
	}
	return out
}

type tx struct {
	db       *DB
	snapshot map[string]*table
	readOnly bool
	done     bool
}

func (t *tx) tableOf(name string) *table {
	tb, ok := t.snapshot[name]
	if !ok {
		tb = &table{dupSort: t.db.cfg[name].DupSort}
		t.snapshot[name] = tb
	}
	return tb
}

func (t *tx) GetOne(table string, key []byte) ([]byte, error) {
	tb := t.tableOf(table)
	i := tb.find(key)
	if i < len(tb.rows) && bytes.Equal(tb.rows[i].k, key) {
		return tb.rows[i].v, nil
	}
	return nil, nil
}

func (t *tx) Has(table string, key []byte) (bool, error) {
	v, err := t.GetOne(table, key)
	return v != nil, err
}

func (t *tx) Put(table string, key, value []byte) error {
	tb := t.tableOf(table)
	if tb.dupSort {
		i := tb.findDup(key, value)
		row := kvPair{k: append([]byte(nil), key...), v: append([]byte(nil), value...)}
		if i < len(tb.rows) && bytes.Equal(tb.rows[i].k, key) && bytes.Equal(tb.rows[i].v, value) {
			tb.rows[i] = row
			return nil
		}
		tb.rows = insertAt(tb.rows, i, row)
		return nil
	}
	i := tb.find(key)
	row := kvPair{k: append([]byte(nil), key...), v: append([]byte(nil), value...)}
	if i < len(tb.rows) && bytes.Equal(tb.rows[i].k, key) {
		tb.rows[i] = row
		return nil
	}
	tb.rows = insertAt(tb.rows, i, row)
	return nil
}

func insertAt(rows []kvPair, i int, row kvPair) []kvPair {
	rows = append(rows, kvPair{})
	copy(rows[i+1:], rows[i:])
	rows[i] = row
	return rows
}

func (t *tx) Delete(table string, key []byte) error {
	tb := t.tableOf(table)
	i := tb.find(key)
	for i < len(tb.rows) && bytes.Equal(tb.rows[i].k, key) {
		tb.rows = append(tb.rows[:i], tb.rows[i+1:]...)
	}
	return nil
}

// Commit publishes this transaction's snapshot as the new table state.
// The single writer lock taken in BeginRw is held for the whole
// transaction lifetime and released exactly once here (or in Rollback).
func (t *tx) Commit() error {
	if t.readOnly {
		t.done = true
		return nil
	}
	t.db.tables = t.snapshot
	t.done = true
	t.db.mu.Unlock()
	return nil
}

func (t *tx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	if !t.readOnly {
		t.db.mu.Unlock()
	}
}

func (t *tx) Cursor(table string) (kv.Cursor, error) {
	return &cursor{tab: t.tableOf(table), pos: -1}, nil
}

func (t *tx) CursorDupSort(table string) (kv.CursorDupSort, error) {
	return &cursor{tab: t.tableOf(table), pos: -1}, nil
}

func (t *tx) RwCursor(table string) (kv.RwCursor, error) {
	return &cursor{tab: t.tableOf(table), pos: -1}, nil
}

func (t *tx) RwCursorDupSort(table string) (kv.RwCursorDupSort, error) {
	return &cursor{tab: t.tableOf(table), pos: -1}, nil
}

type cursor struct {
	tab *table
	pos int
}

func (c *cursor) Close() {}

func (c *cursor) at(i int) (k, v []byte, err error) {
	if i < 0 || i >= len(c.tab.rows) {
		c.pos = len(c.tab.rows)
		return nil, nil, nil
	}
	c.pos = i
	return c.tab.rows[i].k, c.tab.rows[i].v, nil
}

func (c *cursor) First() (k, v []byte, err error) { return c.at(0) }
func (c *cursor) Last() (k, v []byte, err error)  { return c.at(len(c.tab.rows) - 1) }

func (c *cursor) Seek(seek []byte) (k, v []byte, err error) {
	return c.at(c.tab.find(seek))
}

func (c *cursor) SeekExact(key []byte) (v []byte, err error) {
	i := c.tab.find(key)
	if i < len(c.tab.rows) && bytes.Equal(c.tab.rows[i].k, key) {
		_, v, err = c.at(i)
		return v, err
	}
	c.pos = len(c.tab.rows)
	return nil, nil
}

func (c *cursor) Next() (k, v []byte, err error) { return c.at(c.pos + 1) }
func (c *cursor) Prev() (k, v []byte, err error) { return c.at(c.pos - 1) }

func (c *cursor) Current() (k, v []byte, err error) {
	return c.at(c.pos)
}

func (c *cursor) Put(k, v []byte) error {
	if c.tab.dupSort {
		i := c.tab.findDup(k, v)
		row := kvPair{k: append([]byte(nil), k...), v: append([]byte(nil), v...)}
		c.tab.rows = insertAt(c.tab.rows, i, row)
		c.pos = i
		return nil
	}
	i := c.tab.find(k)
	row := kvPair{k: append([]byte(nil), k...), v: append([]byte(nil), v...)}
	if i < len(c.tab.rows) && bytes.Equal(c.tab.rows[i].k, k) {
		c.tab.rows[i] = row
		c.pos = i
		return nil
	}
	c.tab.rows = insertAt(c.tab.rows, i, row)
	c.pos = i
	return nil
}

func (c *cursor) AppendDup(k, v []byte) error { return c.Put(k, v) }
func (c *cursor) PutNoDupData(k, v []byte) error { return c.Put(k, v) }

func (c *cursor) Delete(k []byte) error {
	i := c.tab.find(k)
	for i < len(c.tab.rows) && bytes.Equal(c.tab.rows[i].k, k) {
		c.tab.rows = append(c.tab.rows[:i], c.tab.rows[i+1:]...)
	}
	return nil
}

func (c *cursor) DeleteCurrent() error {
	if c.pos < 0 || c.pos >= len(c.tab.rows) {
		return nil
	}
	c.tab.rows = append(c.tab.rows[:c.pos], c.tab.rows[c.pos+1:]...)
	c.pos--
	return nil
}

func (c *cursor) DeleteCurrentDup() error { return c.DeleteCurrent() }

func (c *cursor) SeekBothExact(key, subkey []byte) (k, v []byte, err error) {
	i := c.tab.findDup(key, subkey)
	if i < len(c.tab.rows) && bytes.Equal(c.tab.rows[i].k, key) && bytes.Equal(c.tab.rows[i].v, subkey) {
		return c.at(i)
	}
	c.pos = len(c.tab.rows)
	return nil, nil, nil
}

func (c *cursor) SeekBothRange(key, subkey []byte) (k, v []byte, err error) {
	i := c.tab.findDup(key, subkey)
	if i < len(c.tab.rows) && bytes.Equal(c.tab.rows[i].k, key) {
		return c.at(i)
	}
	c.pos = len(c.tab.rows)
	return nil, nil, nil
}

func (c *cursor) FirstDup() (v []byte, err error) {
	if c.pos < 0 || c.pos >= len(c.tab.rows) {
		return nil, nil
	}
	key := c.tab.rows[c.pos].k
	i := c.tab.find(key)
	_, v, err = c.at(i)
	return v, err
}

func (c *cursor) NextDup() (k, v []byte, err error) {
	if c.pos < 0 || c.pos >= len(c.tab.rows) {
		return nil, nil, nil
	}
	key := c.tab.rows[c.pos].k
	nk, nv, err := c.at(c.pos + 1)
	if err != nil || nk == nil || !bytes.Equal(nk, key) {
		c.pos = len(c.tab.rows)
		return nil, nil, err
	}
	return nk, nv, nil
}

func (c *cursor) LastDup() (v []byte, err error) {
	if c.pos < 0 || c.pos >= len(c.tab.rows) {
		return nil, nil
	}
	key := c.tab.rows[c.pos].k
	i := c.pos
	for i+1 < len(c.tab.rows) && bytes.Equal(c.tab.rows[i+1].k, key) {
		i++
	}
	_, v, err = c.at(i)
	return v, err
}
