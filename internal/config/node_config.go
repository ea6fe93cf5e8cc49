package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/six78/feature-negotiation/pkg/features"
)

const DefaultSSTableFormat = "me"

// NodeConfig is the node configuration file.
type NodeConfig struct {
	SSTableFormatName    string   `yaml:"sstable_format"`
	UserDefinedFunctions bool     `yaml:"enable_user_defined_functions"`
	ExperimentalFeatures []string `yaml:"experimental_features"`
	DisabledFeatures     []string `yaml:"disabled_features"`
}

func DefaultNodeConfig() *NodeConfig {
	return &NodeConfig{
		SSTableFormatName: DefaultSSTableFormat,
	}
}

// LoadNodeConfig reads the node configuration from path.
// An empty path yields the defaults.
func LoadNodeConfig(path string) (*NodeConfig, error) {
	cfg := DefaultNodeConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read node config")
	}

	return cfg, ParseNodeConfig(data, cfg)
}

// ParseNodeConfig decodes YAML data on top of cfg.
func ParseNodeConfig(data []byte, cfg *NodeConfig) error {
	err := yaml.Unmarshal(data, cfg)
	if err != nil {
		return errors.Wrap(err, "failed to parse node config")
	}
	if cfg.SSTableFormatName == "" {
		cfg.SSTableFormatName = DefaultSSTableFormat
	}
	return nil
}

func (c *NodeConfig) SSTableFormat() string {
	return c.SSTableFormatName
}

func (c *NodeConfig) EnableUserDefinedFunctions() bool {
	return c.UserDefinedFunctions
}

func (c *NodeConfig) CheckExperimental(feature features.ExperimentalFeature) bool {
	for _, name := range c.ExperimentalFeatures {
		if features.ExperimentalFeature(name) == feature {
			return true
		}
	}
	return false
}

// FeaturesConfig derives the features configuration of this node.
func (c *NodeConfig) FeaturesConfig() (features.Config, error) {
	return features.ConfigFromNodeConfig(c, c.DisabledFeatures...)
}
