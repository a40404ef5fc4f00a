// Package metrics exposes staged-sync progress as Prometheus gauges
// and histograms (SPEC_FULL.md §4.10, [DOMAIN+]), using
// github.com/prometheus/client_golang the way the rest of the teacher's
// dependency stack is carried forward into this module even where the
// distilled spec's Non-goals exclude an outer observability surface —
// ambient stack, not a listed feature.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// StageProgress is the per-stage "highest block processed" gauge,
// labeled by stage name, the Prometheus-native equivalent of polling
// the SyncStage table.
var StageProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "erigon_core",
	Name:      "stage_progress",
	Help:      "Highest block number processed by a staged-sync stage.",
}, []string{"stage"})

// CommitLatency observes how long one stage's per-transaction commit
// took, bucketed the way a commit-threshold batch's cost is actually
// felt (spec.md §4.7 commit thresholds).
var CommitLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "erigon_core",
	Name:      "stage_commit_seconds",
	Help:      "Duration of one staged-sync stage commit.",
	Buckets:   prometheus.DefBuckets,
}, []string{"stage"})

// HistoryShardCount tracks the number of closed shards held by the
// account/storage history index tables (C3), labeled by table name, so
// a dashboard can watch shard growth the way it watches table size.
var HistoryShardCount = prometheus.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "erigon_core",
	Name:      "history_shard_count",
	Help:      "Number of closed shards in a history index table.",
}, []string{"table"})

func init() {
	prometheus.MustRegister(StageProgress, CommitLatency, HistoryShardCount)
}

// ObserveStageCommit records a stage's checkpoint and the wall-clock
// time its commit took, meant to be called right after a pipeline
// stage's db.Update transaction returns.
func ObserveStageCommit(stage string, block uint64, started time.Time) {
	StageProgress.WithLabelValues(stage).Set(float64(block))
	CommitLatency.WithLabelValues(stage).Observe(time.Since(started).Seconds())
}
