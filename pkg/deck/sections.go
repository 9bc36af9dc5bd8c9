package deck

import (
	"fmt"
	"io"
	"strings"

	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/lattice"
	"ct2mcnp/pkg/voxel"
)

// Section is one block of cards of the deck
type Section interface {
	Write(w io.Writer) error
}

// cardIndent starts continuation lines and table rows
const cardIndent = "     "

// Composition writes one M card per material
type Composition struct {
	table *voxel.Table
}

// NewComposition returns the composition section for a threshold table
func NewComposition(table *voxel.Table) *Composition {
	return &Composition{table: table}
}

func (c *Composition) Write(w io.Writer) error {
	var b strings.Builder
	for _, k := range c.table.Keys {
		comp, ok := c.table.Composition[k]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "M%d\n", k)
		for _, n := range comp {
			fmt.Fprintf(&b, "%s%s %s\n", cardIndent, n.Nuclide, n.Fraction)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// Source writes the SDEF card and its SI/SP distributions. Scalar keys
// become direct settings; table-valued keys become numbered distributions.
type Source struct {
	text string
}

// NewSource builds the source section. A nil config yields a bare SDEF card.
func NewSource(cfg *config.Map) (*Source, error) {
	var sdef, dist strings.Builder
	sdef.WriteString("SDEF\n")

	n := 0
	for _, key := range cfg.Keys() {
		v, _ := cfg.Get(key)
		t, isTable := v.(*config.Map)
		if !isTable {
			fmt.Fprintf(&sdef, "%s%s=%s\n", cardIndent, key, config.Format(v))
			continue
		}
		n++
		path := config.KeySource + "." + key
		si, ok := t.List("si")
		if !ok {
			return nil, &config.ConfigurationError{Key: path + ".si"}
		}
		sp, ok := t.List("sp")
		if !ok {
			return nil, &config.ConfigurationError{Key: path + ".sp"}
		}
		fmt.Fprintf(&sdef, "%s%s=D%d\n", cardIndent, key, n)
		writeTable(&dist, fmt.Sprintf("SI%d", n), fmt.Sprintf("SP%d", n), si, sp)
	}

	return &Source{text: sdef.String() + dist.String()}, nil
}

func (s *Source) Write(w io.Writer) error {
	_, err := io.WriteString(w, s.text)
	return err
}

// writeTable writes a two-column distribution table headed by its card names
func writeTable(b *strings.Builder, left, right string, a, c []interface{}) {
	fmt.Fprintf(b, "#%s%s%s%s\n", cardIndent, left, cardIndent, right)
	for i := 0; i < len(a) && i < len(c); i++ {
		fmt.Fprintf(b, "%s%s%s%s\n", cardIndent, config.Format(a[i]), cardIndent, config.Format(c[i]))
	}
}

// Tally writes one rectangular mesh tally per configured id, laid over the
// phantom box with one mesh interval per voxel
type Tally struct {
	text string
}

// NewTally builds the tally section. A nil config yields no cards.
func NewTally(geom *lattice.Geometry, cfg *config.Map) (*Tally, error) {
	var b strings.Builder
	origin, limit := geom.PhantomOrigin(), geom.PhantomLimit()
	meshes := [3]string{"imesh", "jmesh", "kmesh"}
	ints := [3]string{"iints", "jints", "kints"}

	for _, id := range cfg.Keys() {
		path := config.KeyTally + "." + id
		t, ok := cfg.Table(id)
		if !ok {
			return nil, &config.ConfigurationError{Key: path, Reason: "expected a table"}
		}
		particle, ok := t.Get("particle")
		if !ok {
			return nil, &config.ConfigurationError{Key: path + ".particle"}
		}

		fmt.Fprintf(&b, "fmesh%s4:%s geom=XYZ origin=%.3f %.3f %.3f\n", id, config.Format(particle), origin[0], origin[1], origin[2])
		for axis := 0; axis < 3; axis++ {
			fmt.Fprintf(&b, "%s%s=%.3f %s=%d\n", cardIndent, meshes[axis], limit[axis], ints[axis], geom.Size[axis])
		}

		de, hasDE := t.List("de")
		df, hasDF := t.List("df")
		if hasDE && hasDF {
			writeTable(&b, "DE"+id+"4", "DF"+id+"4", de, df)
		}
		if fm, ok := t.Get("fm"); ok {
			fmt.Fprintf(&b, "FM%s4  %s\n", id, config.Format(fm))
		}
	}

	return &Tally{text: b.String()}, nil
}

func (t *Tally) Write(w io.Writer) error {
	_, err := io.WriteString(w, t.text)
	return err
}

// OutControl writes one data card per configured key
type OutControl struct {
	text string
}

// NewOutControl builds the output-control section. A nil config yields no cards.
func NewOutControl(cfg *config.Map) *OutControl {
	var b strings.Builder
	for _, key := range cfg.Keys() {
		v, _ := cfg.Get(key)
		fmt.Fprintf(&b, "%s %s\n", key, config.Format(v))
	}
	return &OutControl{text: b.String()}
}

func (o *OutControl) Write(w io.Writer) error {
	_, err := io.WriteString(w, o.text)
	return err
}
