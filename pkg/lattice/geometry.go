// Package lattice builds the repeated-structure geometry that embeds a
// material-index volume in an MCNP deck: one unit-cell universe per
// material, a lattice cell filled voxel by voxel, the bounding phantom
// cell, and the world sphere around it.
package lattice

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"ct2mcnp/internal/models"
	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/voxel"
)

const (
	// WorldMargin is added in cm to the largest voxel extent to give the world sphere radius
	WorldMargin = 100.0

	// LatticeUniverse is the universe number of the lattice cell
	LatticeUniverse = 999

	// AirMaterial is the material filling the world around the phantom
	AirMaterial = 1

	// airDensity is the mass density of air in g/cm3, written as a negative cell density
	airDensity = "-0.00129"

	baseCellGeom    = "-11 12 -13 14 -15 16"
	phantomCellGeom = "-111 112 -113 114 -115 116"
)

var axisNames = [3]string{"x", "y", "z"}

// DimensionalityError reports a size or spacing vector that cannot
// describe a 3D lattice
type DimensionalityError struct {
	Name   string
	Reason string
}

func (e *DimensionalityError) Error() string {
	return fmt.Sprintf("lattice %s: %s", e.Name, e.Reason)
}

// AxisExtent is the phantom box and lattice fill range along one axis
type AxisExtent struct {
	// Origin and Limit are the lower and upper box planes in cm
	Origin float64
	Limit  float64

	// FillLow and FillHigh bound the lattice indices along the axis
	FillLow  int
	FillHigh int
}

// PhantomExtent computes the box holding n unit cells of half-width spacing
// centred on lattice index 0. A centred integer range cannot hold an even
// count, so for even n the box is shifted up by one half-width and the
// range starts at -n/2+1.
func PhantomExtent(n int, spacing float64) AxisExtent {
	half := n / 2
	if n%2 == 0 {
		return AxisExtent{
			Origin:   float64(-n+1) * spacing,
			Limit:    float64(n+1) * spacing,
			FillLow:  -half + 1,
			FillHigh: half,
		}
	}
	return AxisExtent{
		Origin:   float64(-n) * spacing,
		Limit:    float64(n) * spacing,
		FillLow:  -half,
		FillHigh: half,
	}
}

// Geometry is the lattice description of one classified volume
type Geometry struct {
	// Size is the voxel count per axis
	Size [3]int

	// Spacing is the unit-cell half-extent per axis in cm
	Spacing [3]float64

	// Phantom holds the box and fill range per axis
	Phantom [3]AxisExtent

	// WorldRadius is the radius of the sphere bounding the simulated world
	WorldRadius float64

	// Mode is the comma-joined particle list used on importance cards
	Mode string

	keys    []int
	density map[int]string
	index   *models.IndexVolume
}

// Build computes the lattice geometry for a classified volume
func Build(size []int, spacing []float64, index *models.IndexVolume, table *voxel.Table, mode []string) (*Geometry, error) {
	if len(size) != 3 {
		return nil, &DimensionalityError{Name: "size", Reason: fmt.Sprintf("expected 3 components, got %d", len(size))}
	}
	if len(spacing) != 3 {
		return nil, &DimensionalityError{Name: "spacing", Reason: fmt.Sprintf("expected 3 components, got %d", len(spacing))}
	}

	g := &Geometry{
		Mode:    strings.Join(mode, ","),
		density: make(map[int]string),
		index:   index,
	}
	for axis := 0; axis < 3; axis++ {
		if size[axis] <= 0 {
			return nil, &DimensionalityError{Name: "size", Reason: fmt.Sprintf("%s count %d is not positive", axisNames[axis], size[axis])}
		}
		if !(spacing[axis] > 0) {
			return nil, &DimensionalityError{Name: "spacing", Reason: fmt.Sprintf("%s spacing %g is not positive", axisNames[axis], spacing[axis])}
		}
		g.Size[axis] = size[axis]
		g.Spacing[axis] = spacing[axis]
	}
	if index == nil || index.Size != g.Size || len(index.Data) != index.Len() {
		return nil, &DimensionalityError{Name: "size", Reason: fmt.Sprintf("%v does not match the index volume", size)}
	}

	for _, k := range table.Keys {
		d, _, err := table.Lookup(k)
		if err != nil {
			return nil, err
		}
		g.keys = append(g.keys, k)
		g.density[k] = d
	}
	if _, ok := table.Composition[AirMaterial]; !ok {
		return nil, &config.MaterialKeyError{Index: AirMaterial, Table: "composition"}
	}
	if err := checkIndices(index, table); err != nil {
		return nil, err
	}

	extent := 0.0
	for axis := 0; axis < 3; axis++ {
		g.Phantom[axis] = PhantomExtent(g.Size[axis], g.Spacing[axis])
		extent = math.Max(extent, float64(g.Size[axis])*g.Spacing[axis])
	}
	g.WorldRadius = extent + WorldMargin

	return g, nil
}

// checkIndices fails on the first material index in the volume that is
// not a configured material
func checkIndices(index *models.IndexVolume, table *voxel.Table) error {
	seen := make(map[uint32]bool)
	for _, idx := range index.Data {
		if seen[idx] {
			continue
		}
		seen[idx] = true
		if !table.Has(int(idx)) {
			return &config.MaterialKeyError{Index: int(idx), Table: "density"}
		}
	}
	return nil
}

// Fill returns the lattice fill range directive, e.g. "fill=0:1 -1:1 0:1"
func (g *Geometry) Fill() string {
	parts := make([]string, 3)
	for axis, e := range g.Phantom {
		parts[axis] = fmt.Sprintf("%d:%d", e.FillLow, e.FillHigh)
	}
	return "fill=" + strings.Join(parts, " ")
}

// PhantomOrigin returns the lower corner of the phantom box
func (g *Geometry) PhantomOrigin() [3]float64 {
	return [3]float64{g.Phantom[0].Origin, g.Phantom[1].Origin, g.Phantom[2].Origin}
}

// PhantomLimit returns the upper corner of the phantom box
func (g *Geometry) PhantomLimit() [3]float64 {
	return [3]float64{g.Phantom[0].Limit, g.Phantom[1].Limit, g.Phantom[2].Limit}
}

// Write emits the cell cards, a blank line, and the surface cards
func (g *Geometry) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	for _, k := range g.keys {
		fmt.Fprintf(bw, "%d  %d  %s  %s  u=%d  imp:%s=1\n", k, k, g.density[k], baseCellGeom, k, g.Mode)
		fmt.Fprintf(bw, "88%d  0  #%d  u=%d  imp:%s=1\n", k, k, k, g.Mode)
	}
	fmt.Fprintf(bw, "998  0  %s u=%d imp:%s=1\n", baseCellGeom, LatticeUniverse, g.Mode)
	fmt.Fprintf(bw, "     lat=1  %s\n", g.Fill())

	fw := NewFillWriter(bw)
	for _, idx := range g.index.Data {
		if err := fw.Write(idx); err != nil {
			return err
		}
	}
	if err := fw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(bw, "999  0  %s  fill=%d imp:%s=1\n", phantomCellGeom, LatticeUniverse, g.Mode)
	fmt.Fprintf(bw, "1000  %d  %s  -1000 #999 imp:%s=1\n", AirMaterial, airDensity, g.Mode)
	fmt.Fprintf(bw, "9999  0  1000  imp:%s=0\n", g.Mode)
	bw.WriteString("\n")

	planes := [3]string{"px", "py", "pz"}
	for axis, s := range g.Spacing {
		fmt.Fprintf(bw, "%d    %s    %.3f\n", 11+2*axis, planes[axis], s)
		fmt.Fprintf(bw, "%d    %s    %.3f\n", 12+2*axis, planes[axis], -s)
	}
	for axis, e := range g.Phantom {
		fmt.Fprintf(bw, "%d  %s  %.3f\n", 111+2*axis, planes[axis], e.Limit)
		fmt.Fprintf(bw, "%d  %s  %.3f\n", 112+2*axis, planes[axis], e.Origin)
	}
	fmt.Fprintf(bw, "1000  so  %s\n", config.FormatFloat(g.WorldRadius))

	return bw.Flush()
}
