// Package voxel classifies CT intensities into material indices using the
// ordered threshold table of a run configuration.
package voxel

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"ct2mcnp/internal/models"
	"ct2mcnp/pkg/config"
)

// SpacingScale converts a voxel pitch in mm to its half-width in cm
const SpacingScale = 20.0

// Result is the output of Classify
type Result struct {
	// Index holds one material index per voxel
	Index *models.IndexVolume

	// Clipped holds the intensities clipped to the boundary range
	Clipped *models.Volume

	// Table is the threshold table the volume was classified against
	Table *Table

	// Spacing is the lattice unit-cell half-extent per axis in cm
	Spacing [3]float64
}

// Classify assigns every voxel of vol a material index from the material
// section of a run configuration. vol is not modified.
func Classify(vol *models.Volume, materials *config.Map) (*Result, error) {
	if vol == nil {
		return nil, fmt.Errorf("classify: nil volume")
	}
	if len(vol.Data) != vol.Len() {
		return nil, fmt.Errorf("classify: volume has %d samples for size %v", len(vol.Data), vol.Size)
	}

	table, err := ParseTable(materials)
	if err != nil {
		return nil, err
	}

	clipped := &models.Volume{
		Data:    make([]float64, len(vol.Data)),
		Size:    vol.Size,
		Spacing: vol.Spacing,
		Origin:  vol.Origin,
	}
	copy(clipped.Data, vol.Data)
	if len(table.Boundaries) > 0 {
		lo, hi := floats.Min(table.Boundaries), floats.Max(table.Boundaries)
		for i, v := range clipped.Data {
			clipped.Data[i] = math.Min(math.Max(v, lo), hi)
		}
	}

	index := models.NewIndexVolume(vol.Size)
	for i, v := range clipped.Data {
		index.Data[i] = table.Search(v)
	}

	res := &Result{
		Index:   index,
		Clipped: clipped,
		Table:   table,
	}
	for axis, s := range vol.Spacing {
		res.Spacing[axis] = math.RoundToEven(s/SpacingScale*1000) / 1000
	}
	return res, nil
}

// Summary describes a classified volume
type Summary struct {
	// Mean and StdDev are computed over the clipped intensities
	Mean   float64
	StdDev float64

	// Counts is the number of voxels assigned to each material index
	Counts map[uint32]int
}

// Summarize computes intensity statistics and per-material voxel counts
func Summarize(res *Result) Summary {
	s := Summary{Counts: make(map[uint32]int)}
	if len(res.Clipped.Data) > 0 {
		s.Mean, s.StdDev = stat.MeanStdDev(res.Clipped.Data, nil)
	}
	for _, idx := range res.Index.Data {
		s.Counts[idx]++
	}
	return s
}
