package features

import (
	"github.com/pkg/errors"
)

// SSTableVersion is an on-disk storage format version, ordered oldest first.
type SSTableVersion int

const (
	SSTableVersionKA SSTableVersion = iota
	SSTableVersionLA
	SSTableVersionMC
	SSTableVersionMD
	SSTableVersionME
)

var ErrUnknownSSTableFormat = errors.New("unknown sstable format")

var sstableVersionNames = []string{
	SSTableVersionKA: "ka",
	SSTableVersionLA: "la",
	SSTableVersionMC: "mc",
	SSTableVersionMD: "md",
	SSTableVersionME: "me",
}

// sstableFormatFeatures maps a format version to the feature gating it.
// Versions up to mc are covered by deprecated, always-on features.
var sstableFormatFeatures = map[SSTableVersion]string{
	SSTableVersionMD: MDSSTableFormat,
	SSTableVersionME: MESSTableFormat,
}

func ParseSSTableVersion(value string) (SSTableVersion, error) {
	for version, name := range sstableVersionNames {
		if name == value {
			return SSTableVersion(version), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownSSTableFormat, "%q", value)
}

func LatestSSTableVersion() SSTableVersion {
	return SSTableVersion(len(sstableVersionNames) - 1)
}

func (v SSTableVersion) String() string {
	if v < 0 || int(v) >= len(sstableVersionNames) {
		return "unknown"
	}
	return sstableVersionNames[v]
}

// FormatFeature returns the feature that gates writing this version, if any.
func (v SSTableVersion) FormatFeature() (string, bool) {
	name, ok := sstableFormatFeatures[v]
	return name, ok
}
