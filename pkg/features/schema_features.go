package features

import "strings"

// SchemaFeature selects how schema mutations are encoded.
type SchemaFeature uint

const (
	SchemaViewVirtualColumns SchemaFeature = iota
	SchemaDigestInsensitiveToExpiry
	SchemaComputedColumns
	SchemaCDCOptions
	SchemaPerTablePartitioners
	SchemaScyllaKeyspaces
)

var schemaFeatureNames = []string{
	SchemaViewVirtualColumns:        "VIEW_VIRTUAL_COLUMNS",
	SchemaDigestInsensitiveToExpiry: "DIGEST_INSENSITIVE_TO_EXPIRY",
	SchemaComputedColumns:           "COMPUTED_COLUMNS",
	SchemaCDCOptions:                "CDC_OPTIONS",
	SchemaPerTablePartitioners:      "PER_TABLE_PARTITIONERS",
	SchemaScyllaKeyspaces:           "SCYLLA_KEYSPACES",
}

func (f SchemaFeature) String() string {
	if int(f) >= len(schemaFeatureNames) {
		return "UNKNOWN"
	}
	return schemaFeatureNames[f]
}

// SchemaFeatures is a bitset of SchemaFeature.
type SchemaFeatures uint64

func (s *SchemaFeatures) Set(f SchemaFeature) {
	*s |= 1 << f
}

func (s *SchemaFeatures) SetIf(f SchemaFeature, condition bool) {
	if condition {
		s.Set(f)
	}
}

func (s SchemaFeatures) Contains(f SchemaFeature) bool {
	return s&(1<<f) != 0
}

func (s SchemaFeatures) String() string {
	var names []string
	for f := range schemaFeatureNames {
		if s.Contains(SchemaFeature(f)) {
			names = append(names, SchemaFeature(f).String())
		}
	}
	return "{" + strings.Join(names, ",") + "}"
}
