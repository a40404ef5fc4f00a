// Package stages names the stage identifiers of spec.md §4.8's ordered
// pipeline, keyed into the SyncStage table. Grounded on the teacher's
// eth/stagedsync package convention of a short all-caps-free SyncStage
// string per stage (the same convention dbutils.SyncStage's row key
// follows).
package stages

type SyncStage string

const (
	Headers            SyncStage = "Headers"
	TotalDifficulty     SyncStage = "TotalDifficulty"
	Bodies              SyncStage = "Bodies"
	SenderRecovery      SyncStage = "Senders"
	Execution           SyncStage = "Execution"
	MerkleUnwind        SyncStage = "MerkleUnwind"
	AccountHashing      SyncStage = "AccountHashing"
	StorageHashing      SyncStage = "StorageHashing"
	MerkleExecute       SyncStage = "MerkleExecute"
	AccountHistoryIndex SyncStage = "AccountHistoryIndex"
	StorageHistoryIndex SyncStage = "StorageHistoryIndex"
	Finish              SyncStage = "Finish"
)

// AllStages lists every stage in forward pipeline order (spec.md §4.7).
func AllStages() []SyncStage {
	return []SyncStage{
		Headers, TotalDifficulty, Bodies, SenderRecovery, Execution,
		MerkleUnwind, AccountHashing, StorageHashing, MerkleExecute,
		AccountHistoryIndex, StorageHistoryIndex, Finish,
	}
}
