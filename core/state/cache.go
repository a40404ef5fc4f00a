// Read-through caching in front of PlainAccountState/PlainStorageState,
// grounded on the teacher's core/state/db_state_writer.go
// (DbStateWriter.accountCache/storageCache/codeCache/codeSizeCache,
// each a *fastcache.Cache set via Set*Cache) generalized from a
// per-writer field into a standalone cache an execution-stage reader
// can share across blocks within one pipeline run.
package state

import (
	"github.com/VictoriaMetrics/fastcache"

	"github.com/ledgerwatch/erigon-core/common"
	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/kv"
)

// ReadCache wraps PlainAccountState/PlainStorageState/Code reads with
// fastcache.Cache instances sized independently per table, the same
// split the teacher keeps between accountCache/storageCache/codeCache/
// codeSizeCache rather than one shared cache for every table.
type ReadCache struct {
	account  *fastcache.Cache
	storage  *fastcache.Cache
	code     *fastcache.Cache
	codeSize *fastcache.Cache
}

// NewReadCache builds a ReadCache with maxBytes split evenly across
// its four tables.
func NewReadCache(maxBytes int) *ReadCache {
	per := maxBytes / 4
	if per < 1<<16 {
		per = 1 << 16
	}
	return &ReadCache{
		account:  fastcache.New(per),
		storage:  fastcache.New(per),
		code:     fastcache.New(per),
		codeSize: fastcache.New(per),
	}
}

// Account returns addr's PlainAccountState row, serving from cache when
// present and populating the cache on a miss.
func (rc *ReadCache) Account(tx kv.Tx, addr common.Address) ([]byte, error) {
	if v, ok := rc.account.HasGet(nil, addr[:]); ok {
		return v, nil
	}
	v, err := tx.GetOne(dbutils.PlainAccountState, addr[:])
	if err != nil {
		return nil, err
	}
	rc.account.Set(addr[:], v)
	return v, nil
}

// InvalidateAccount drops addr's cached row; callers invoke this right
// after writing a new value for addr, the same ordering
// db_state_writer.go keeps between a table write and its cache update.
func (rc *ReadCache) InvalidateAccount(addr common.Address) {
	rc.account.Del(addr[:])
}

// Storage returns the (address, incarnation, key) slot's
// PlainStorageState row.
func (rc *ReadCache) Storage(tx kv.Tx, addr common.Address, incarnation uint64, key common.Hash) ([]byte, error) {
	plainKey := dbutils.PlainStorageKey(addr, incarnation, key)
	if v, ok := rc.storage.HasGet(nil, plainKey); ok {
		return v, nil
	}
	v, err := tx.GetOne(dbutils.PlainStorageState, plainKey)
	if err != nil {
		return nil, err
	}
	rc.storage.Set(plainKey, v)
	return v, nil
}

func (rc *ReadCache) InvalidateStorage(addr common.Address, incarnation uint64, key common.Hash) {
	rc.storage.Del(dbutils.PlainStorageKey(addr, incarnation, key))
}

// Code returns codeHash's contract code, and CodeSize its length
// without paging the whole body in, mirroring the teacher's split
// between codeCache and codeSizeCache.
func (rc *ReadCache) Code(tx kv.Tx, codeHash common.Hash) ([]byte, error) {
	if v, ok := rc.code.HasGet(nil, codeHash[:]); ok {
		return v, nil
	}
	v, err := tx.GetOne(dbutils.Code, codeHash[:])
	if err != nil {
		return nil, err
	}
	rc.code.Set(codeHash[:], v)
	return v, nil
}

func (rc *ReadCache) CodeSize(tx kv.Tx, codeHash common.Hash) (int, error) {
	if v, ok := rc.codeSize.HasGet(nil, codeHash[:]); ok {
		if len(v) == 8 {
			return int(common.DecodeBlockNumber(v)), nil
		}
	}
	code, err := rc.Code(tx, codeHash)
	if err != nil {
		return 0, err
	}
	size := len(code)
	rc.codeSize.Set(codeHash[:], common.EncodeBlockNumber(uint64(size)))
	return size, nil
}
