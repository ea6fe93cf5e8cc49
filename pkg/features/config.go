package features

import (
	"github.com/pkg/errors"

	"github.com/six78/feature-negotiation/pkg/protocol"
)

type ExperimentalFeature string

const (
	ExperimentalUDF                    ExperimentalFeature = "udf"
	ExperimentalAlternatorStreams      ExperimentalFeature = "alternator-streams"
	ExperimentalAlternatorTTL          ExperimentalFeature = "alternator-ttl"
	ExperimentalRaft                   ExperimentalFeature = "raft"
	ExperimentalKeyspaceStorageOptions ExperimentalFeature = "keyspace-storage-options"
)

var ErrUDFRequiresExperimental = errors.New(
	"you must use both enable_user_defined_functions and experimental_features:udf " +
		"to enable user-defined functions")

// NodeConfig is the part of the node configuration features depend on.
type NodeConfig interface {
	SSTableFormat() string
	EnableUserDefinedFunctions() bool
	CheckExperimental(feature ExperimentalFeature) bool
}

// Config lists features that must never be enabled (Disabled) and features
// that may be enabled locally but are not advertised to peers (Masked).
type Config struct {
	Disabled protocol.FeatureSet
	Masked   protocol.FeatureSet
}

func NewConfig() Config {
	return Config{
		Disabled: protocol.NewFeatureSet(),
		Masked:   protocol.NewFeatureSet(),
	}
}

func (c Config) Clone() Config {
	return Config{
		Disabled: c.Disabled.Clone(),
		Masked:   c.Masked.Clone(),
	}
}

// ConfigFromNodeConfig derives the feature config from node configuration.
// disabled seeds the disabled set with operator-forced features.
func ConfigFromNodeConfig(cfg NodeConfig, disabled ...string) (Config, error) {
	c := NewConfig()
	c.Disabled.Add(disabled...)

	version, err := ParseSSTableVersion(cfg.SSTableFormat())
	if err != nil {
		return Config{}, errors.Wrap(err, "failed to parse sstable_format")
	}

	// Disable every format newer than the configured one, newest first.
	for v := LatestSSTableVersion(); v > version; v-- {
		if name, ok := v.FormatFeature(); ok {
			c.Disabled.Add(name)
		}
	}

	if !cfg.EnableUserDefinedFunctions() {
		c.Disabled.Add(UDF)
	} else if !cfg.CheckExperimental(ExperimentalUDF) {
		return Config{}, ErrUDFRequiresExperimental
	}

	if !cfg.CheckExperimental(ExperimentalAlternatorStreams) {
		c.Disabled.Add(AlternatorStreams)
	}
	if !cfg.CheckExperimental(ExperimentalAlternatorTTL) {
		c.Disabled.Add(AlternatorTTL)
	}

	if !cfg.CheckExperimental(ExperimentalRaft) {
		c.Disabled.Add(SupportsRaftClusterManagement, UsesRaftClusterManagement)
	} else {
		// Keep USES_RAFT_CLUSTER_MANAGEMENT out of advertisement until an
		// operator promotes it, so it cannot be enabled cluster-wide by accident.
		c.Masked.Add(UsesRaftClusterManagement)
	}

	if !cfg.CheckExperimental(ExperimentalKeyspaceStorageOptions) {
		c.Disabled.Add(KeyspaceStorageOptions)
	}

	return c, nil
}
