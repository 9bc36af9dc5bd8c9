// Package config provides run configuration loading for ct2mcnp.
// It reads TOML or YAML documents into order-preserving tables, because
// material numbering and card order follow the order keys appear in the file.
package config

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Top-level keys of a run configuration
const (
	KeyCT         = "ct"
	KeyMaterial   = "material"
	KeyMode       = "mode"
	KeySource     = "source"
	KeyTally      = "tally"
	KeyOutControl = "outcontrol"
)

// RunConfig is a parsed run configuration
type RunConfig struct {
	// CT lists the image files or directories to convert
	CT []string

	// Material maps a material index string to its
	// {hu_interval, nucleon, fraction, density} table
	Material *Map

	// Mode lists the particle types to transport, e.g. ["n", "p"]
	Mode []string

	// Source, Tally and OutControl are optional free-form sections; nil when absent
	Source     *Map
	Tally      *Map
	OutControl *Map
}

// Validate checks that the sections every deck needs are present
func (c *RunConfig) Validate() error {
	if c.Material == nil {
		return &ConfigurationError{Key: KeyMaterial}
	}
	if len(c.Mode) == 0 {
		return &ConfigurationError{Key: KeyMode}
	}
	return nil
}

// Parse builds a RunConfig from a decoded document. Missing optional
// sections are left nil; Validate reports missing mandatory ones.
func Parse(doc *Map) (*RunConfig, error) {
	cfg := &RunConfig{}

	if v, ok := doc.Get(KeyCT); ok {
		for _, p := range AsList(v) {
			s, isStr := p.(string)
			if !isStr {
				return nil, &ConfigurationError{Key: KeyCT, Reason: "expected a path or list of paths"}
			}
			cfg.CT = append(cfg.CT, s)
		}
	}

	if v, ok := doc.Get(KeyMaterial); ok {
		t, isTable := v.(*Map)
		if !isTable {
			return nil, &ConfigurationError{Key: KeyMaterial, Reason: "expected a table"}
		}
		cfg.Material = t
	}

	if v, ok := doc.Get(KeyMode); ok {
		cfg.Mode = Strings(AsList(v))
	}

	sections := []struct {
		key string
		dst **Map
	}{
		{KeySource, &cfg.Source},
		{KeyTally, &cfg.Tally},
		{KeyOutControl, &cfg.OutControl},
	}
	for _, s := range sections {
		v, ok := doc.Get(s.key)
		if !ok {
			continue
		}
		t, isTable := v.(*Map)
		if !isTable {
			return nil, &ConfigurationError{Key: s.key, Reason: "expected a table"}
		}
		*s.dst = t
	}

	return cfg, nil
}

// LoadConfig loads a run configuration from a TOML or YAML file, chosen by
// extension (.yaml and .yml are YAML, anything else is TOML)
func LoadConfig(configPath string) (*RunConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var doc *Map
	switch strings.ToLower(filepath.Ext(configPath)) {
	case ".yaml", ".yml":
		doc, err = DecodeYAML(data)
	default:
		doc, err = DecodeTOML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return Parse(doc)
}

// DecodeTOML decodes a TOML document, ordering every table by the
// position its keys were first seen in the document
func DecodeTOML(data []byte) (*Map, error) {
	var raw map[string]interface{}
	md, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&raw)
	if err != nil {
		return nil, err
	}

	order := make(map[string]int)
	for i, key := range md.Keys() {
		for n := 1; n <= len(key); n++ {
			path := strings.Join(key[:n], "\x00")
			if _, seen := order[path]; !seen {
				order[path] = i
			}
		}
	}

	return tomlTable(raw, nil, order), nil
}

func tomlTable(raw map[string]interface{}, prefix []string, order map[string]int) *Map {
	rank := func(k string) int {
		path := strings.Join(append(append([]string{}, prefix...), k), "\x00")
		if pos, ok := order[path]; ok {
			return pos
		}
		return math.MaxInt
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ri, rj := rank(keys[i]), rank(keys[j])
		if ri != rj {
			return ri < rj
		}
		return keys[i] < keys[j]
	})

	m := NewMap()
	for _, k := range keys {
		path := append(append([]string{}, prefix...), k)
		m.Set(k, tomlValue(raw[k], path, order))
	}
	return m
}

func tomlValue(v interface{}, path []string, order map[string]int) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return tomlTable(t, path, order)
	case []map[string]interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = tomlTable(t[i], path, order)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i := range t {
			out[i] = tomlValue(t[i], path, order)
		}
		return out
	default:
		return v
	}
}

// DecodeYAML decodes a YAML document whose root is a mapping
func DecodeYAML(data []byte) (*Map, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if node.Kind == 0 {
		return NewMap(), nil
	}

	root := &node
	if root.Kind == yaml.DocumentNode && len(root.Content) > 0 {
		root = root.Content[0]
	}
	v, err := yamlValue(root)
	if err != nil {
		return nil, err
	}
	m, ok := v.(*Map)
	if !ok {
		return nil, fmt.Errorf("line %d: document root must be a mapping", root.Line)
	}
	return m, nil
}

func yamlValue(n *yaml.Node) (interface{}, error) {
	switch n.Kind {
	case yaml.MappingNode:
		m := NewMap()
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := yamlValue(n.Content[i+1])
			if err != nil {
				return nil, err
			}
			m.Set(n.Content[i].Value, v)
		}
		return m, nil
	case yaml.SequenceNode:
		out := make([]interface{}, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := yamlValue(c)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	case yaml.AliasNode:
		return yamlValue(n.Alias)
	case yaml.ScalarNode:
		var v interface{}
		if err := n.Decode(&v); err != nil {
			return nil, fmt.Errorf("line %d: %w", n.Line, err)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("line %d: unsupported YAML node", n.Line)
	}
}

// CreateDefaultConfigFile writes an example TOML run configuration to
// configPath, creating parent directories as needed
func CreateDefaultConfigFile(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	if err := os.WriteFile(configPath, []byte(ExampleTOML), 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// ExampleTOML is a complete run configuration for a photon run over a
// four-material (air, lung, soft tissue, bone) CT classification
const ExampleTOML = `# CT images to convert: a file, a directory, or a list of files
ct = "./ct"

# particle types to transport
mode = ["p"]

[material.1]
hu_interval = [-1000, -950]
nucleon = ["6000", "7014", "8016", "18000"]
fraction = [-0.000124, -0.755268, -0.231781, -0.012827]
density = -0.00129

[material.2]
hu_interval = [-950, -200]
nucleon = ["1001", "6000", "7014", "8016", "11023", "15031", "16032", "17000", "19000"]
fraction = [-0.103, -0.105, -0.031, -0.749, -0.002, -0.002, -0.003, -0.003, -0.002]
density = -0.26

[material.3]
hu_interval = [-200, 200]
nucleon = ["1001", "6000", "7014", "8016", "11023", "15031", "16032", "17000", "19000"]
fraction = [-0.102, -0.143, -0.034, -0.708, -0.002, -0.003, -0.003, -0.002, -0.003]
density = -1.03

[material.4]
hu_interval = [200, 3000]
nucleon = ["1001", "6000", "7014", "8016", "11023", "12000", "15031", "16032", "20000"]
fraction = [-0.034, -0.155, -0.042, -0.435, -0.001, -0.002, -0.103, -0.003, -0.225]
density = -1.85

[source]
par = 2
pos = [0, 0, 0]
erg = { si = [0.1, 0.5, 1.0], sp = [0.2, 0.5, 0.3] }

[tally.1]
particle = "p"
de = [0.01, 0.1, 1.0]
df = [3.96e-06, 5.82e-07, 1.47e-06]

[outcontrol]
nps = 1000000
prdmp = [0, 0, 1, 1]
`
