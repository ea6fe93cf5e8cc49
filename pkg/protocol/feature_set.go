package protocol

import (
	"encoding/json"
	"strings"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

const featureSeparator = ","

// FeatureSet is a set of feature names.
type FeatureSet map[string]struct{}

func NewFeatureSet(names ...string) FeatureSet {
	set := make(FeatureSet, len(names))
	set.Add(names...)
	return set
}

// ParseFeatureSet splits a comma-separated list of features.
// Empty items are dropped, so "" and ",," both yield an empty set.
func ParseFeatureSet(value string) FeatureSet {
	set := NewFeatureSet()
	for _, name := range strings.Split(value, featureSeparator) {
		if name == "" {
			continue
		}
		set[name] = struct{}{}
	}
	return set
}

func (s FeatureSet) Add(names ...string) {
	for _, name := range names {
		s[name] = struct{}{}
	}
}

func (s FeatureSet) Remove(names ...string) {
	for _, name := range names {
		delete(s, name)
	}
}

func (s FeatureSet) Contains(name string) bool {
	_, ok := s[name]
	return ok
}

func (s FeatureSet) Clone() FeatureSet {
	result := make(FeatureSet, len(s))
	for name := range s {
		result[name] = struct{}{}
	}
	return result
}

func (s FeatureSet) Union(other FeatureSet) FeatureSet {
	result := s.Clone()
	for name := range other {
		result[name] = struct{}{}
	}
	return result
}

func (s FeatureSet) Intersect(other FeatureSet) FeatureSet {
	result := NewFeatureSet()
	for name := range s {
		if other.Contains(name) {
			result[name] = struct{}{}
		}
	}
	return result
}

// Difference returns names of s that are not in other.
func (s FeatureSet) Difference(other FeatureSet) FeatureSet {
	result := NewFeatureSet()
	for name := range s {
		if !other.Contains(name) {
			result[name] = struct{}{}
		}
	}
	return result
}

func (s FeatureSet) IsSubsetOf(other FeatureSet) bool {
	for name := range s {
		if !other.Contains(name) {
			return false
		}
	}
	return true
}

func (s FeatureSet) Equal(other FeatureSet) bool {
	return len(s) == len(other) && s.IsSubsetOf(other)
}

func (s FeatureSet) Sorted() []string {
	names := maps.Keys(s)
	slices.Sort(names)
	return names
}

// String returns the sorted comma-separated form used for persistence.
func (s FeatureSet) String() string {
	return strings.Join(s.Sorted(), featureSeparator)
}

func (s FeatureSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

func (s *FeatureSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	*s = NewFeatureSet(names...)
	return nil
}
