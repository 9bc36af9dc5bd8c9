package voxel

import (
	"fmt"
	"strconv"

	"ct2mcnp/pkg/config"
)

// Material configuration keys
const (
	keyInterval = "hu_interval"
	keyNucleon  = "nucleon"
	keyFraction = "fraction"
	keyDensity  = "density"
)

// Component is one nuclide of a material and its mass or atom fraction,
// both as they appear on the M card
type Component struct {
	Nuclide  string
	Fraction string
}

// Table is the material threshold table built from the run configuration.
// It is immutable once returned by ParseTable.
type Table struct {
	// Boundaries are the unique intensity boundaries in order of first appearance
	Boundaries []float64

	// Keys are the material indices in configuration order
	Keys []int

	// Density maps a material index to its cell density as written in the
	// configuration: an integer stays an integer on the cell card
	Density map[int]string

	// Composition maps a material index to its nuclides
	Composition map[int][]Component
}

// ParseTable builds a Table from the material section of a run configuration
func ParseTable(materials *config.Map) (*Table, error) {
	t := &Table{
		Density:     make(map[int]string),
		Composition: make(map[int][]Component),
	}
	seen := make(map[float64]bool)

	for _, key := range materials.Keys() {
		path := config.KeyMaterial + "." + key
		idx, err := strconv.Atoi(key)
		if err != nil {
			return nil, &config.ConfigurationError{Key: path, Reason: "material index must be an integer"}
		}
		m, ok := materials.Table(key)
		if !ok {
			return nil, &config.ConfigurationError{Key: path, Reason: "expected a table"}
		}

		interval, ok := m.List(keyInterval)
		if !ok {
			return nil, &config.ConfigurationError{Key: path + "." + keyInterval}
		}
		bounds, err := config.Floats(path+"."+keyInterval, interval)
		if err != nil {
			return nil, err
		}
		for _, b := range bounds {
			if !seen[b] {
				seen[b] = true
				t.Boundaries = append(t.Boundaries, b)
			}
		}
		t.Keys = append(t.Keys, idx)

		if v, ok := m.Get(keyDensity); ok {
			if _, err := config.Floats(path+"."+keyDensity, []interface{}{v}); err != nil {
				return nil, err
			}
			t.Density[idx] = config.Format(v)
		}

		nucleons, hasN := m.List(keyNucleon)
		fractions, hasF := m.List(keyFraction)
		if !hasN || !hasF {
			continue
		}
		if len(nucleons) != len(fractions) {
			return nil, &config.ConfigurationError{
				Key:    path + "." + keyFraction,
				Reason: fmt.Sprintf("%d fractions for %d nucleons", len(fractions), len(nucleons)),
			}
		}
		if _, err := config.Floats(path+"."+keyFraction, fractions); err != nil {
			return nil, err
		}
		comp := make([]Component, len(nucleons))
		for i := range nucleons {
			comp[i] = Component{Nuclide: config.Format(nucleons[i]), Fraction: config.Format(fractions[i])}
		}
		t.Composition[idx] = comp
	}

	return t, nil
}

// Lookup returns the density and composition of a material, failing with a
// MaterialKeyError naming the table the index is missing from
func (t *Table) Lookup(idx int) (string, []Component, error) {
	d, ok := t.Density[idx]
	if !ok {
		return "", nil, &config.MaterialKeyError{Index: idx, Table: "density"}
	}
	c, ok := t.Composition[idx]
	if !ok {
		return "", nil, &config.MaterialKeyError{Index: idx, Table: "composition"}
	}
	return d, c, nil
}

// Has reports whether idx is one of the configured material keys
func (t *Table) Has(idx int) bool {
	for _, k := range t.Keys {
		if k == idx {
			return true
		}
	}
	return false
}

// Search returns the material index for an intensity: the leftmost
// insertion point among the boundaries, never below 1
func (t *Table) Search(value float64) uint32 {
	lo, hi := 0, len(t.Boundaries)
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		if t.Boundaries[mid] < value {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo == 0 {
		lo = 1
	}
	return uint32(lo)
}
