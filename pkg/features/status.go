package features

type FeatureStatus struct {
	Name       string
	Registered bool
	Deprecated bool
	Enabled    bool
	Disabled   bool
	Masked     bool
	Supported  bool
}

// Status describes every registered, deprecated, disabled or masked feature, sorted by name.
func (s *Service) Status() []FeatureStatus {
	supported := s.SupportedFeatureSet()

	names := DeprecatedFeatures()
	for name := range s.registered {
		names.Add(name)
	}
	names = names.Union(s.config.Disabled).Union(s.config.Masked)

	result := make([]FeatureStatus, 0, len(names))
	for _, name := range names.Sorted() {
		f, registered := s.registered[name]
		deprecated := IsDeprecatedFeature(name)
		disabled := s.config.Disabled.Contains(name)
		result = append(result, FeatureStatus{
			Name:       name,
			Registered: registered,
			Deprecated: deprecated,
			Enabled:    (registered && f.enabled) || (deprecated && !disabled),
			Disabled:   disabled,
			Masked:     s.config.Masked.Contains(name),
			Supported:  supported.Contains(name),
		})
	}
	return result
}
