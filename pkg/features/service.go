// Package features tracks which cluster features a node has compiled in,
// which of them it advertises to peers and which are durably enabled.
//
// A Service is owned by a single execution unit and is not safe for
// concurrent use. Processes running several units create one Service per
// unit and fan activation out to all of them (see pkg/shard).
package features

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"

	"github.com/six78/feature-negotiation/pkg/protocol"
)

var ErrUnsupportedEnabledFeature = errors.New("feature was enabled before but is not supported by this node")

// builtinFeatures is the fixed order in which EnableSet applies features.
var builtinFeatures = []string{
	UDF,
	MDSSTableFormat,
	MESSTableFormat,
	ViewVirtualColumns,
	DigestInsensitiveToExpiry,
	ComputedColumns,
	CDC,
	NonfrozenUDTs,
	HintedHandoffSeparateConnection,
	LWT,
	PerTablePartitioners,
	PerTableCaching,
	DigestForNullValues,
	CorrectIdxTokenInSecondaryIndex,
	AlternatorStreams,
	AlternatorTTL,
	RangeScanDataVariant,
	CDCGenerationsV2,
	UDA,
	SeparatePageSizeAndSafetyLimit,
	SupportsRaftClusterManagement,
	UsesRaftClusterManagement,
	TombstoneGCOptions,
	ParallelizedAggregation,
	KeyspaceStorageOptions,
}

type Service struct {
	logger *zap.Logger
	record *Record
	shard  int

	config     Config
	registered map[string]*Feature
}

func NewService(cfg Config, opts ...Option) *Service {
	s := &Service{
		config:     cfg.Clone(),
		registered: make(map[string]*Feature, len(builtinFeatures)),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("features").With(zap.Int("shard", s.shard))

	if s.config.Disabled == nil {
		s.config.Disabled = protocol.NewFeatureSet()
	}
	if s.config.Masked == nil {
		s.config.Masked = protocol.NewFeatureSet()
	}

	for _, name := range builtinFeatures {
		NewFeature(s, name)
	}

	return s
}

// Stop drops all registrations. Features outlive the service and
// closing them afterwards is a no-op.
func (s *Service) Stop() {
	for _, f := range s.registered {
		f.service = nil
	}
	s.registered = make(map[string]*Feature)
}

func (s *Service) Shard() int {
	return s.shard
}

func (s *Service) register(f *Feature) {
	if _, exists := s.registered[f.name]; exists {
		panic(fmt.Sprintf("feature %s registered twice", f.name))
	}
	s.registered[f.name] = f
}

func (s *Service) unregister(f *Feature) {
	if s.registered[f.name] == f {
		delete(s.registered, f.name)
	}
}

// Feature returns the registered feature with the given name.
func (s *Service) Feature(name string) (*Feature, bool) {
	f, ok := s.registered[name]
	return f, ok
}

// RegisteredFeatures returns a copy of the registrations.
func (s *Service) RegisteredFeatures() map[string]*Feature {
	return maps.Clone(s.registered)
}

func (s *Service) Config() Config {
	return s.config.Clone()
}

// KnownFeatureSet returns all features this node could expose:
// deprecated ones and registered ones, minus disabled.
func (s *Service) KnownFeatureSet() protocol.FeatureSet {
	features := DeprecatedFeatures()
	for name := range s.registered {
		features.Add(name)
	}
	for name := range s.config.Disabled {
		features.Remove(name)
	}
	return features
}

// SupportedFeatureSet returns the features advertised to peers:
// known features minus masked ones.
func (s *Service) SupportedFeatureSet() protocol.FeatureSet {
	features := s.KnownFeatureSet()
	for name := range s.config.Masked {
		features.Remove(name)
	}
	return features
}

// Enable durably records and enables a single feature.
// Unknown and disabled names are ignored.
func (s *Service) Enable(ctx context.Context, name string) error {
	f, ok := s.registered[name]
	if !ok {
		s.logger.Debug("ignoring unknown feature", zap.String("feature", name))
		return nil
	}
	return s.enable(ctx, f)
}

// EnableSet enables every registered feature whose name is in features.
// Built-in features go first in their fixed order, then others sorted by name.
func (s *Service) EnableSet(ctx context.Context, features protocol.FeatureSet) error {
	for _, f := range s.enumerate() {
		if !features.Contains(f.name) {
			continue
		}
		if err := s.enable(ctx, f); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) enable(ctx context.Context, f *Feature) error {
	if f.enabled {
		return nil
	}

	logger := s.logger.With(zap.String("feature", f.name))

	if s.config.Disabled.Contains(f.name) {
		logger.Debug("ignoring disabled feature")
		return nil
	}

	if s.record != nil {
		err := s.record.AddEnabledFeature(ctx, f.name)
		if err != nil {
			logger.Error("failed to persist enabled feature", zap.Error(err))
			return errors.Wrapf(err, "failed to enable feature %s", f.name)
		}
	} else {
		logger.Debug("no feature record, enabling in memory only")
	}

	f.Enable()
	return nil
}

func (s *Service) enumerate() []*Feature {
	result := make([]*Feature, 0, len(s.registered))
	seen := make(map[string]struct{}, len(builtinFeatures))

	for _, name := range builtinFeatures {
		if f, ok := s.registered[name]; ok {
			result = append(result, f)
			seen[name] = struct{}{}
		}
	}

	others := make([]string, 0, len(s.registered)-len(seen))
	for name := range s.registered {
		if _, ok := seen[name]; !ok {
			others = append(others, name)
		}
	}
	slices.Sort(others)

	for _, name := range others {
		result = append(result, s.registered[name])
	}
	return result
}

// Support stops masking a feature, so that it gets advertised to peers.
// Must only be called on explicit operator request.
func (s *Service) Support(ctx context.Context, name string) error {
	if !s.config.Masked.Contains(name) {
		return nil
	}

	s.config.Masked.Remove(name)
	s.logger.Info("feature unmasked", zap.String("feature", name))

	if s.record == nil {
		return nil
	}

	err := s.record.SaveSupportedFeatures(ctx, s.SupportedFeatureSet())
	return errors.Wrapf(err, "failed to support feature %s", name)
}

// SupportPersisted restores promotions made by Support in a previous run:
// masked features found in the persisted supported set are unmasked.
func (s *Service) SupportPersisted(ctx context.Context) error {
	if s.record == nil {
		return nil
	}

	supported, ok, err := s.record.SupportedFeatures(ctx)
	if err != nil || !ok {
		return err
	}

	for _, name := range supported.Intersect(s.config.Masked).Sorted() {
		err = s.Support(ctx, name)
		if err != nil {
			return err
		}
	}
	return nil
}

// PersistedFeatures returns the durably enabled features.
// Without a record nothing is persisted.
func (s *Service) PersistedFeatures(ctx context.Context) (protocol.FeatureSet, error) {
	if s.record == nil {
		return protocol.NewFeatureSet(), nil
	}
	return s.record.EnabledFeatures(ctx)
}

// EnablePersisted enables the features recorded as enabled by a previous run.
// It fails if one of them is no longer known to this node.
func (s *Service) EnablePersisted(ctx context.Context) error {
	persisted, err := s.PersistedFeatures(ctx)
	if err != nil {
		return err
	}

	unsupported := persisted.Difference(s.KnownFeatureSet())
	if len(unsupported) > 0 {
		return errors.Wrapf(ErrUnsupportedEnabledFeature, "%s", unsupported.String())
	}

	for _, f := range s.enumerate() {
		if persisted.Contains(f.name) {
			f.Enable()
		}
	}

	s.logger.Debug("enabled persisted features", zap.Strings("features", persisted.Sorted()))
	return nil
}

func (s *Service) isEnabled(name string) bool {
	f, ok := s.registered[name]
	return ok && f.enabled
}

// ClusterSchemaFeatures computes schema features from current feature state.
func (s *Service) ClusterSchemaFeatures() SchemaFeatures {
	var f SchemaFeatures
	f.SetIf(SchemaViewVirtualColumns, s.isEnabled(ViewVirtualColumns))
	f.SetIf(SchemaDigestInsensitiveToExpiry, s.isEnabled(DigestInsensitiveToExpiry))
	f.SetIf(SchemaComputedColumns, s.isEnabled(ComputedColumns))
	f.SetIf(SchemaCDCOptions, s.isEnabled(CDC))
	f.SetIf(SchemaPerTablePartitioners, s.isEnabled(PerTablePartitioners))
	f.SetIf(SchemaScyllaKeyspaces, s.isEnabled(KeyspaceStorageOptions))
	return f
}

func (s *Service) ClusterSupportsCDC() bool {
	return s.isEnabled(CDC)
}

func (s *Service) ClusterSupportsLWT() bool {
	return s.isEnabled(LWT)
}

func (s *Service) ClusterSupportsUserDefinedFunctions() bool {
	return s.isEnabled(UDF)
}

func (s *Service) ClusterUsesRaftClusterManagement() bool {
	return s.isEnabled(UsesRaftClusterManagement)
}

// ClusterSSTableFormat returns the newest format all nodes can read.
func (s *Service) ClusterSSTableFormat() SSTableVersion {
	switch {
	case s.isEnabled(MESSTableFormat):
		return SSTableVersionME
	case s.isEnabled(MDSSTableFormat):
		return SSTableVersionMD
	default:
		return SSTableVersionMC
	}
}
