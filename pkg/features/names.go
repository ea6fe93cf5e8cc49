package features

import "github.com/six78/feature-negotiation/pkg/protocol"

// Compiled-in features. Names are advertised to peers and persisted,
// they must never change.
const (
	UDF                             = "UDF"
	MDSSTableFormat                 = "MD_SSTABLE_FORMAT"
	MESSTableFormat                 = "ME_SSTABLE_FORMAT"
	ViewVirtualColumns              = "VIEW_VIRTUAL_COLUMNS"
	DigestInsensitiveToExpiry       = "DIGEST_INSENSITIVE_TO_EXPIRY"
	ComputedColumns                 = "COMPUTED_COLUMNS"
	CDC                             = "CDC"
	NonfrozenUDTs                   = "NONFROZEN_UDTS"
	HintedHandoffSeparateConnection = "HINTED_HANDOFF_SEPARATE_CONNECTION"
	LWT                             = "LWT"
	PerTablePartitioners            = "PER_TABLE_PARTITIONERS"
	PerTableCaching                 = "PER_TABLE_CACHING"
	DigestForNullValues             = "DIGEST_FOR_NULL_VALUES"
	CorrectIdxTokenInSecondaryIndex = "CORRECT_IDX_TOKEN_IN_SECONDARY_INDEX"
	AlternatorStreams               = "ALTERNATOR_STREAMS"
	AlternatorTTL                   = "ALTERNATOR_TTL"
	RangeScanDataVariant            = "RANGE_SCAN_DATA_VARIANT"
	CDCGenerationsV2                = "CDC_GENERATIONS_V2"
	UDA                             = "UDA"
	SeparatePageSizeAndSafetyLimit  = "SEPARATE_PAGE_SIZE_AND_SAFETY_LIMIT"
	SupportsRaftClusterManagement   = "SUPPORTS_RAFT_CLUSTER_MANAGEMENT"
	UsesRaftClusterManagement       = "USES_RAFT_CLUSTER_MANAGEMENT"
	TombstoneGCOptions              = "TOMBSTONE_GC_OPTIONS"
	ParallelizedAggregation         = "PARALLELIZED_AGGREGATION"
	KeyspaceStorageOptions          = "KEYSPACE_STORAGE_OPTIONS"
)

// Deprecated features are still advertised to peers, but assumed true in the code.
const (
	LASSTableFormat = "LA_SSTABLE_FORMAT"
	MCSSTableFormat = "MC_SSTABLE_FORMAT"
)

var deprecatedFeatures = protocol.NewFeatureSet(
	"RANGE_TOMBSTONES",
	"LARGE_PARTITIONS",
	"COUNTERS",
	"DIGEST_MULTIPARTITION_READ",
	"CORRECT_COUNTER_ORDER",
	"SCHEMA_TABLES_V3",
	"CORRECT_NON_COMPOUND_RANGE_TOMBSTONES",
	"WRITE_FAILURE_REPLY",
	"XXHASH",
	"ROLES",
	LASSTableFormat,
	"STREAM_WITH_RPC_STREAM",
	"MATERIALIZED_VIEWS",
	"INDEXES",
	"ROW_LEVEL_REPAIR",
	"TRUNCATION_TABLE",
	"CORRECT_STATIC_COMPACT_IN_MC",
	"UNBOUNDED_RANGE_TOMBSTONES",
	MCSSTableFormat,
)

// DeprecatedFeatures returns a copy of the always-assumed-true catalog.
func DeprecatedFeatures() protocol.FeatureSet {
	return deprecatedFeatures.Clone()
}

// IsDeprecatedFeature reports whether the name is in the deprecated catalog.
func IsDeprecatedFeature(name string) bool {
	return deprecatedFeatures.Contains(name)
}
