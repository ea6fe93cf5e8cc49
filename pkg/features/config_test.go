package features

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type nodeConfig struct {
	format       string
	udf          bool
	experimental map[ExperimentalFeature]bool
}

func (c nodeConfig) SSTableFormat() string {
	return c.format
}

func (c nodeConfig) EnableUserDefinedFunctions() bool {
	return c.udf
}

func (c nodeConfig) CheckExperimental(feature ExperimentalFeature) bool {
	return c.experimental[feature]
}

func allExperimental() map[ExperimentalFeature]bool {
	return map[ExperimentalFeature]bool{
		ExperimentalUDF:                    true,
		ExperimentalAlternatorStreams:      true,
		ExperimentalAlternatorTTL:          true,
		ExperimentalRaft:                   true,
		ExperimentalKeyspaceStorageOptions: true,
	}
}

func TestSSTableFormatCascade(t *testing.T) {
	testCases := []struct {
		format   string
		disabled []string
	}{
		{"ka", []string{MDSSTableFormat, MESSTableFormat}},
		{"la", []string{MDSSTableFormat, MESSTableFormat}},
		{"mc", []string{MDSSTableFormat, MESSTableFormat}},
		{"md", []string{MESSTableFormat}},
		{"me", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.format, func(t *testing.T) {
			cfg, err := ConfigFromNodeConfig(nodeConfig{
				format:       tc.format,
				experimental: allExperimental(),
			})
			require.NoError(t, err)

			for _, name := range []string{MDSSTableFormat, MESSTableFormat} {
				expected := false
				for _, disabled := range tc.disabled {
					expected = expected || disabled == name
				}
				require.Equal(t, expected, cfg.Disabled.Contains(name), name)
			}

			// Deprecated formats are always on.
			require.False(t, cfg.Disabled.Contains(LASSTableFormat))
			require.False(t, cfg.Disabled.Contains(MCSSTableFormat))
		})
	}
}

func TestNewestFormatDisablesNothing(t *testing.T) {
	cfg, err := ConfigFromNodeConfig(nodeConfig{
		format:       LatestSSTableVersion().String(),
		udf:          true,
		experimental: allExperimental(),
	})
	require.NoError(t, err)
	require.Empty(t, cfg.Disabled)
	require.Equal(t, []string{UsesRaftClusterManagement}, cfg.Masked.Sorted())
}

func TestUnknownSSTableFormat(t *testing.T) {
	_, err := ConfigFromNodeConfig(nodeConfig{format: "zz"})
	require.ErrorIs(t, err, ErrUnknownSSTableFormat)
}

func TestUDFConfig(t *testing.T) {
	cfg, err := ConfigFromNodeConfig(nodeConfig{format: "me", udf: false})
	require.NoError(t, err)
	require.True(t, cfg.Disabled.Contains(UDF))

	_, err = ConfigFromNodeConfig(nodeConfig{format: "me", udf: true})
	require.ErrorIs(t, err, ErrUDFRequiresExperimental)

	cfg, err = ConfigFromNodeConfig(nodeConfig{
		format:       "me",
		udf:          true,
		experimental: map[ExperimentalFeature]bool{ExperimentalUDF: true},
	})
	require.NoError(t, err)
	require.False(t, cfg.Disabled.Contains(UDF))
}

func TestExperimentalFeaturesOff(t *testing.T) {
	cfg, err := ConfigFromNodeConfig(nodeConfig{format: "me"})
	require.NoError(t, err)

	for _, name := range []string{
		UDF,
		AlternatorStreams,
		AlternatorTTL,
		KeyspaceStorageOptions,
		SupportsRaftClusterManagement,
		UsesRaftClusterManagement,
	} {
		require.True(t, cfg.Disabled.Contains(name), name)
	}
	require.Empty(t, cfg.Masked)
}

func TestRaftMasksOnlyUsesVariant(t *testing.T) {
	cfg, err := ConfigFromNodeConfig(nodeConfig{
		format:       "me",
		experimental: map[ExperimentalFeature]bool{ExperimentalRaft: true},
	})
	require.NoError(t, err)

	require.False(t, cfg.Disabled.Contains(SupportsRaftClusterManagement))
	require.False(t, cfg.Disabled.Contains(UsesRaftClusterManagement))
	require.False(t, cfg.Masked.Contains(SupportsRaftClusterManagement))
	require.True(t, cfg.Masked.Contains(UsesRaftClusterManagement))
}

func TestDisabledSeed(t *testing.T) {
	cfg, err := ConfigFromNodeConfig(nodeConfig{
		format:       "me",
		udf:          true,
		experimental: allExperimental(),
	}, LWT, CDC)
	require.NoError(t, err)
	require.Equal(t, []string{CDC, LWT}, cfg.Disabled.Sorted())
}

func TestParseSSTableVersion(t *testing.T) {
	for _, name := range []string{"ka", "la", "mc", "md", "me"} {
		version, err := ParseSSTableVersion(name)
		require.NoError(t, err)
		require.Equal(t, name, version.String())
	}

	_, ok := SSTableVersionMC.FormatFeature()
	require.False(t, ok)

	name, ok := SSTableVersionME.FormatFeature()
	require.True(t, ok)
	require.Equal(t, MESSTableFormat, name)

	require.Equal(t, "unknown", SSTableVersion(42).String())
}
