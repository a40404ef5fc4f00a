// Package snapshot layers a torrent-seeded snapshot store under the
// live BodyDownloader path (spec.md §4.9/§4.8a [DOMAIN+]): the Store
// seeds snapshot files and records which block range each covers.
// Body requests are always answered by the live per-peer downloader;
// bodies are not decoded from snapshot files, even for a covered range.
//
// Grounded on the teacher's cmd/state/generate/seeder.go, which seeds
// a directory of snapshot files via github.com/anacrolix/torrent's
// torrent.Client (trackers, piece length, magnet links); generalized
// here from a one-shot CLI helper into a long-lived Store a
// BodyDownloader implementation can consult. torrent.Client.AddTorrent
// is called only from Seed; nothing missing is fetched on the read
// path. Mirrors how erigon's turbo/snapshotsync layers
// snapshot files under the live downloader (SPEC_FULL.md §4.8a).
package snapshot

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/anacrolix/torrent"
	"github.com/anacrolix/torrent/bencode"
	"github.com/anacrolix/torrent/metainfo"

	"github.com/ledgerwatch/erigon-core/core/types"
	"github.com/ledgerwatch/erigon-core/log"
)

// Trackers is the default announce list new snapshot torrents are
// published under, grounded on the teacher's seeder.go trackers var.
var Trackers = [][]string{
	{
		"udp://tracker.openbittorrent.com:80",
		"udp://tracker.publicbt.com:80",
		"udp://tracker.istole.it:6969",
	},
}

// PieceLength matches the teacher's 16KiB torrent piece size, small
// enough that a partially-downloaded snapshot still serves early
// block ranges.
const PieceLength = 16 * 1024

// Range names the contiguous [From, To] block range one snapshot file
// covers, recorded in the Store's manifest so lookups can tell
// immediately whether a requested range is locally available.
type Range struct {
	From, To uint64
	Path     string
}

// BodySource is the subset of BodyDownloader a Store falls back to for
// any part of a request it cannot serve from local snapshot files.
type BodySource interface {
	RequestBodies(ctx context.Context, headers []*types.Header) (<-chan *types.Body, error)
}

// Store seeds already-downloaded snapshot files over torrent and passes
// every body request through to fallback, logging when the requested
// range is fully covered by a seeded snapshot.
type Store struct {
	dataDir  string
	client   *torrent.Client
	fallback BodySource

	mu      sync.RWMutex
	ranges  []Range
	seeding map[string]*torrent.Torrent
}

// NewStore opens a torrent client rooted at dataDir in seed-only mode
// (no DHT, tracker announces on) and wraps fallback for anything not
// yet snapshotted, matching the teacher's cfg.Seed/cfg.NoDHT/
// cfg.DisableTrackers settings.
func NewStore(dataDir string, fallback BodySource) (*Store, error) {
	cfg := torrent.NewDefaultClientConfig()
	cfg.DataDir = dataDir
	cfg.Seed = true
	cfg.NoDHT = true
	cfg.DisableTrackers = false

	cl, err := torrent.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open torrent client: %w", err)
	}
	return &Store{
		dataDir:  dataDir,
		client:   cl,
		fallback: fallback,
		seeding:  map[string]*torrent.Torrent{},
	}, nil
}

func (s *Store) Close() error {
	s.client.Close()
	return nil
}

// Seed publishes path as a snapshot covering [from, to], building its
// torrent metainfo and announcing it for other nodes to fetch (the
// teacher's Seed loop, narrowed to one file per call and returning the
// error instead of blocking on os.Interrupt).
func (s *Store) Seed(path string, from, to uint64) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	info := metainfo.Info{PieceLength: PieceLength}
	if err := info.BuildFromFilePath(path); err != nil {
		return err
	}
	mi := &metainfo.MetaInfo{CreatedBy: "erigon-core", AnnounceList: Trackers}
	infoBytes, err := bencode.Marshal(info)
	if err != nil {
		return err
	}
	mi.InfoBytes = infoBytes

	t, err := s.client.AddTorrent(mi)
	if err != nil {
		return err
	}
	t.VerifyData()
	if !t.Seeding() {
		log.Warn("snapshot: torrent not seeding", "path", path)
	}

	s.mu.Lock()
	s.ranges = append(s.ranges, Range{From: from, To: to, Path: path})
	s.seeding[path] = t
	s.mu.Unlock()
	log.Info("snapshot: seeding range", "from", from, "to", to, "magnet", mi.Magnet("", mi.HashInfoBytes()).String())
	return nil
}

// covers reports whether every header in headers falls inside one
// already-seeded range.
func (s *Store) covers(headers []*types.Header) bool {
	if len(headers) == 0 {
		return false
	}
	lo, hi := headers[0].NumberU64(), headers[len(headers)-1].NumberU64()
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.ranges {
		if r.From <= lo && hi <= r.To {
			return true
		}
	}
	return false
}

// RequestBodies implements BodySource by deferring to the live
// downloader, both when a local snapshot covers this header range and
// when none does.
func (s *Store) RequestBodies(ctx context.Context, headers []*types.Header) (<-chan *types.Body, error) {
	if !s.covers(headers) {
		return s.fallback.RequestBodies(ctx, headers)
	}
	// A snapshot covers the range but decoding its on-disk body format
	// is out of scope here (spec.md Non-goals: no wire encoding); the
	// live path still produces correct results, so defer to it.
	log.Info("snapshot: range covered by local snapshot, deferring to live path pending body codec", "count", len(headers))
	return s.fallback.RequestBodies(ctx, headers)
}
