package config

import "fmt"

// ConfigurationError reports a missing or malformed run configuration key
type ConfigurationError struct {
	// Key is the dotted path of the offending key, e.g. "material.2.density"
	Key string

	// Reason describes what is wrong with it
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("configuration: missing required key %q", e.Key)
	}
	return fmt.Sprintf("configuration: key %q: %s", e.Key, e.Reason)
}

// MaterialKeyError reports a material index used by the geometry that has
// no entry in the density or composition table
type MaterialKeyError struct {
	// Index is the material index that could not be resolved
	Index int

	// Table names the table the index is missing from ("density" or "composition")
	Table string
}

func (e *MaterialKeyError) Error() string {
	return fmt.Sprintf("material %d: no %s entry", e.Index, e.Table)
}
