// Package deck assembles a complete MCNP input deck from a CT volume and a
// run configuration.
package deck

import (
	"bufio"
	"io"

	"ct2mcnp/internal/models"
	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/lattice"
	"ct2mcnp/pkg/voxel"
)

// Deck is a fully built input deck, ready to be written
type Deck struct {
	// Voxels is the classification the geometry was built from
	Voxels *voxel.Result

	// Geometry is the lattice geometry of the volume
	Geometry *lattice.Geometry

	sections []Section
}

// Build classifies vol and builds every section of the deck. Nothing is
// written; all configuration and material errors surface here.
func Build(vol *models.Volume, cfg *config.RunConfig) (*Deck, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := voxel.Classify(vol, cfg.Material)
	if err != nil {
		return nil, err
	}

	geom, err := lattice.Build(res.Index.Size[:], res.Spacing[:], res.Index, res.Table, cfg.Mode)
	if err != nil {
		return nil, err
	}

	source, err := NewSource(cfg.Source)
	if err != nil {
		return nil, err
	}
	tally, err := NewTally(geom, cfg.Tally)
	if err != nil {
		return nil, err
	}

	return &Deck{
		Voxels:   res,
		Geometry: geom,
		sections: []Section{
			NewComposition(res.Table),
			source,
			tally,
			NewOutControl(cfg.OutControl),
		},
	}, nil
}

// Write emits the geometry block followed by the data block
func (d *Deck) Write(w io.Writer) error {
	bw := bufio.NewWriter(w)

	bw.WriteString("c Geometry\n")
	if err := d.Geometry.Write(bw); err != nil {
		return err
	}
	bw.WriteString("\n")

	bw.WriteString("c Data\n")
	for _, s := range d.sections {
		if err := s.Write(bw); err != nil {
			return err
		}
	}
	bw.WriteString("\n")

	return bw.Flush()
}

// Generate builds the deck for vol and writes it to w
func Generate(vol *models.Volume, cfg *config.RunConfig, w io.Writer) error {
	d, err := Build(vol, cfg)
	if err != nil {
		return err
	}
	return d.Write(w)
}
