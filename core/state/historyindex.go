package state

import (
	"github.com/ledgerwatch/erigon-core/kv"
	"github.com/ledgerwatch/erigon-core/kv/bitmapdb"
	"github.com/ledgerwatch/erigon-core/metrics"
)

// IndexAppend records that blockNum touched logicalKey (an address, or
// address+storageKey), appending it to the open (tail) shard of the
// history index named by table. This generalizes the teacher's
// writeIndex (core/state/history.go) from its byte-bounded chunk
// format to bitmapdb's count-bounded roaring64 shards: the open shard
// is loaded, the new block number is appended in order, and once its
// length crosses bitmapdb.ShardSize it is repartitioned into closed
// shards (keyed by their own highest member) plus a new open shard.
func IndexAppend(tx kv.RwTx, table string, logicalKey []byte, blockNum uint64) error {
	openKey := bitmapdb.OpenShardKey(logicalKey)
	existing, err := tx.GetOne(table, openKey)
	if err != nil {
		return err
	}

	var members []uint64
	if len(existing) > 0 {
		shard, err := bitmapdb.LoadShard(existing)
		if err != nil {
			return err
		}
		members = shard.ToSlice()
	}
	members = append(members, blockNum)

	full, partial := bitmapdb.Partition(members)
	for _, chunk := range full {
		closedShard, err := bitmapdb.NewShard(chunk)
		if err != nil {
			return err
		}
		ser, err := closedShard.Serialize()
		if err != nil {
			return err
		}
		closedKey := bitmapdb.EncodeShardKey(logicalKey, chunk[len(chunk)-1])
		if err := tx.Put(table, closedKey, ser); err != nil {
			return err
		}
		metrics.HistoryShardCount.WithLabelValues(table).Inc()
	}

	if len(partial) == 0 {
		// the open shard emptied out entirely into closed shards; delete
		// the stale open-shard row if one existed.
		if len(existing) > 0 {
			if c, err := tx.RwCursor(table); err == nil {
				defer c.Close()
				if err := c.Delete(openKey); err != nil {
					return err
				}
			}
		}
		return nil
	}

	openShard, err := bitmapdb.NewShard(partial)
	if err != nil {
		return err
	}
	ser, err := openShard.Serialize()
	if err != nil {
		return err
	}
	return tx.Put(table, openKey, ser)
}

// IndexUnwind removes blockNum (and anything above it — callers unwind
// from the tip downward so only the current tip block is ever passed,
// but the walk is written to cope with a gap) from logicalKey's index,
// walking shards from the tail backward exactly as the teacher's
// header-downloader / stage unwind paths walk buckets in reverse.
//
// Unwinding a closed shard whose key-derived "highest" member is the
// one being removed demotes the shard: its remaining members are
// reinserted as the new open shard (or merged with whatever open shard
// already exists), and the closed row is deleted. This is the
// "prefix reinsertion" behavior spec.md's shard-unwind invariant
// names: removing the newest member of a shard can never change the
// relative order of the members that remain.
func IndexUnwind(tx kv.RwTx, table string, logicalKey []byte, blockNum uint64) error {
	openKey := bitmapdb.OpenShardKey(logicalKey)
	existing, err := tx.GetOne(table, openKey)
	if err != nil {
		return err
	}

	c, err := tx.RwCursor(table)
	if err != nil {
		return err
	}
	defer c.Close()

	var openMembers []uint64
	if len(existing) > 0 {
		shard, err := bitmapdb.LoadShard(existing)
		if err != nil {
			return err
		}
		openMembers = shard.Prefix(blockNum - 1)
		// the open shard is handled here, not by the closed-shard walk
		// below, so delete its row now and seek strictly below it.
		if err := c.Delete(openKey); err != nil {
			return err
		}
	}

	// Walk closed shards for this logicalKey from the highest key
	// downward, demoting any shard whose highest member is >= blockNum.
	seekKey := bitmapdb.EncodeShardKey(logicalKey, bitmapdb.OpenShardSentinel-1)
	k, v, err := c.Seek(seekKey)
	if err != nil {
		return err
	}
	if k == nil {
		k, v, err = c.Last()
		if err != nil {
			return err
		}
	}
	for k != nil {
		lk, highest := bitmapdb.DecodeShardKey(k, len(logicalKey))
		if string(lk) != string(logicalKey) {
			k, v, err = c.Prev()
			if err != nil {
				return err
			}
			continue
		}
		shard, err := bitmapdb.LoadShard(v)
		if err != nil {
			return err
		}
		if highest < blockNum {
			// This shard survives whole — nothing in it is >= blockNum —
			// but P2 allows only one shard per logical key to carry the
			// open (u64::MAX) key, and it must be the shard adjacent to
			// the unwind point. Promote it in full and stop; shards
			// further back are already closed under lower keys and stay
			// untouched.
			if err := c.DeleteCurrent(); err != nil {
				return err
			}
			metrics.HistoryShardCount.WithLabelValues(table).Dec()
			openMembers = append(shard.ToSlice(), openMembers...)
			break
		}
		if err := c.DeleteCurrent(); err != nil {
			return err
		}
		metrics.HistoryShardCount.WithLabelValues(table).Dec()
		kept := shard.Prefix(blockNum - 1)
		openMembers = append(kept, openMembers...)
		k, v, err = c.Prev()
		if err != nil {
			return err
		}
	}

	if len(openMembers) == 0 {
		return nil
	}
	openShard, err := bitmapdb.NewShard(openMembers)
	if err != nil {
		return err
	}
	ser, err := openShard.Serialize()
	if err != nil {
		return err
	}
	return tx.Put(table, openKey, ser)
}

// FindByIndex returns the highest block number <= asOf at which
// logicalKey was touched, per spec.md's history-as-of query. Like
// FindByHistory (core/state/history.go) it seeks the first shard whose
// key covers asOf; when that shard has no member <= asOf (or no such
// shard exists), the answer is the last member of the shard just below.
func FindByIndex(tx kv.Tx, table string, logicalKey []byte, asOf uint64) (uint64, bool, error) {
	c, err := tx.Cursor(table)
	if err != nil {
		return 0, false, err
	}
	defer c.Close()

	seekKey := bitmapdb.EncodeShardKey(logicalKey, asOf)
	k, v, err := c.Seek(seekKey)
	if err != nil {
		return 0, false, err
	}
	if k != nil {
		lk, _ := bitmapdb.DecodeShardKey(k, len(logicalKey))
		if string(lk) == string(logicalKey) {
			shard, err := bitmapdb.LoadShard(v)
			if err != nil {
				return 0, false, err
			}
			if found := shard.Prefix(asOf); len(found) > 0 {
				return found[len(found)-1], true, nil
			}
		}
		k, v, err = c.Prev()
	} else {
		k, v, err = c.Last()
	}
	if err != nil || len(k) != len(logicalKey)+8 {
		return 0, false, err
	}
	if lk, _ := bitmapdb.DecodeShardKey(k, len(logicalKey)); string(lk) != string(logicalKey) {
		return 0, false, nil
	}
	shard, err := bitmapdb.LoadShard(v)
	if err != nil {
		return 0, false, err
	}
	return shard.Last(), true, nil
}
