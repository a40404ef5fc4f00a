// Package dbutils names the tables of spec.md §3 and their physical
// dup-sort layout, the way the teacher's common/dbutils/bucket.go names
// LMDB buckets and their BucketsConfigs flags.
package dbutils

import "github.com/ledgerwatch/erigon-core/kv"

// Table names. Kept short, matching the teacher's all-caps/short-prefix
// naming convention (PLAIN-CST2, hAT, hST, ACS, SCS, ...).
const (
	// CanonicalHeaders: BlockNumber -> BlockHash
	CanonicalHeaders = "CanonicalHeader"
	// HeaderNumbers: BlockHash -> BlockNumber
	HeaderNumbers = "HeaderNumber"
	// Headers: BlockNumber -> Header
	Headers = "Header"
	// HeaderTD: BlockNumber -> U256
	HeaderTD = "HeadersTotalDifficulty"
	// BlockBodyIndices: BlockNumber -> {first_tx_num, tx_count}
	BlockBodyIndices = "BlockBody"
	// Transactions: TxNumber -> Transaction
	Transactions = "BlockTransaction"
	// TxSenders: TxNumber -> Address
	TxSenders = "TxSender"
	// TxHashNumber: TxHash -> TxNumber
	TxHashNumber = "TxLookup"
	// TransactionBlock: TxNumber -> BlockNumber, sparse (one row per block's last tx)
	TransactionBlock = "TransactionBlock"
	// BlockOmmers: BlockNumber -> []Header
	BlockOmmers = "BlockOmmers"
	// BlockWithdrawals: BlockNumber -> []Withdrawal
	BlockWithdrawals = "BlockWithdrawals"
	// Receipts: TxNumber -> Receipt
	Receipts = "Receipt"

	// PlainAccountState: Address -> Account
	PlainAccountState = "PLAIN-AccountState"
	// PlainStorageState: Address+Incarnation -> (StorageKey -> StorageValue), dup-sorted
	PlainStorageState = "PLAIN-StorageState"

	// AccountChangeSet: BlockNumber -> (address, prior_account?), dup-sorted
	AccountChangeSet = "PLAIN-ACS"
	// StorageChangeSet: (BlockNumber, Address) -> (StorageKey, prior_value), dup-sorted
	StorageChangeSet = "PLAIN-SCS"

	// HashedAccount: keccak(Address) -> Account
	HashedAccount = "HashedAccount"
	// HashedStorage: keccak(Address)+Incarnation -> (keccak(StorageKey) -> StorageValue), dup-sorted
	HashedStorage = "HashedStorage"

	// AccountHistory: ShardKey{address, highest} -> PackedList<u64>
	AccountHistory = "AccountHistory"
	// StorageHistory: StorageShardKey{address, storageKey, highest} -> PackedList<u64>
	StorageHistory = "StorageHistory"

	// SyncStage: StageId -> {block_number, progress?}
	SyncStage = "SyncStage"
	// SyncStageProgress: StageId -> bytes, opaque stage-private cursor
	SyncStageProgress = "SyncStageUnwind"

	// IncarnationMap: Address -> incarnation of account when it was last deleted
	IncarnationMap = "IncarnationMap"
	// PlainContractCode: Address+Incarnation -> CodeHash
	PlainContractCode = "PLAIN-ContractCode"
	// Code: CodeHash -> code
	Code = "Code"
)

// AllTables lists every table this module owns and its dup-sort
// configuration; kv.RwDB implementations use it to initialize storage.
func AllTables() kv.TableFlags {
	return kv.TableFlags{
		CanonicalHeaders:  {},
		HeaderNumbers:     {},
		Headers:           {},
		HeaderTD:          {},
		BlockBodyIndices:  {},
		Transactions:      {},
		TxSenders:         {},
		TxHashNumber:      {},
		TransactionBlock:  {},
		BlockOmmers:       {},
		BlockWithdrawals:  {},
		Receipts:          {},
		PlainAccountState: {},
		// PlainStorageState, the two changesets and HashedStorage are
		// dup-sorted: multiple values share one outer key, exactly as the
		// teacher's PlainStateBucket/CurrentStateBucket pack
		// account+storage rows (common/dbutils/bucket.go comment block).
		// HashedAccount and the two history tables are plain tables.
		PlainStorageState: {DupSort: true},
		AccountChangeSet:  {DupSort: true},
		StorageChangeSet:  {DupSort: true},
		HashedAccount:     {},
		HashedStorage:     {DupSort: true},
		AccountHistory:    {},
		StorageHistory:    {},
		SyncStage:         {},
		SyncStageProgress: {},
		IncarnationMap:    {},
		PlainContractCode: {},
		Code:              {},
	}
}
