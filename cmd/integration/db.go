package main

import (
	"github.com/c2h5oh/datasize"

	"github.com/ledgerwatch/erigon-core/common/dbutils"
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/lmdb"
	"github.com/ledgerwatch/erigon-core/kv/memdb"
)

var mapSizeMB uint64

// openDB opens the configured store: kv/memdb for --inmem, otherwise
// the LMDB-backed kv/lmdb, both implementing the same kv.RwDB contract
// every stage function is written against.
func openDB() (kv.RwDB, func(), error) {
	if inMem {
		return memdb.New(dbutils.AllTables()), func() {}, nil
	}
	mapSize := datasize.ByteSize(mapSizeMB) * datasize.MB
	db, err := lmdb.Open(chaindataPath, dbutils.AllTables(), mapSize)
	if err != nil {
		return nil, nil, err
	}
	return db, db.Close, nil
}
