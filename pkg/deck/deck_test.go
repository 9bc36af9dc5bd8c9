package deck

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"ct2mcnp/internal/models"
	"ct2mcnp/pkg/config"
	"ct2mcnp/pkg/lattice"
)

const baseConfig = `
mode = ["n", "p"]

[material.1]
hu_interval = [-1000, 0]
nucleon = ["1001", "8016"]
fraction = [0.111, 0.889]
density = -1.0

[material.2]
hu_interval = [0, 3000]
nucleon = ["20000"]
fraction = [1.0]
density = -1.85
`

func loadRunConfig(t *testing.T, doc string) *config.RunConfig {
	t.Helper()
	m, err := config.DecodeTOML([]byte(doc))
	if err != nil {
		t.Fatalf("Failed to decode config: %v", err)
	}
	cfg, err := config.Parse(m)
	if err != nil {
		t.Fatalf("Failed to parse config: %v", err)
	}
	return cfg
}

// createTestVolume returns the 2x2x2 scenario volume with 20 mm voxels
func createTestVolume() *models.Volume {
	vol := models.NewVolume([3]int{2, 2, 2}, [3]float64{20, 20, 20})
	values := []float64{-1500, -500, 500, 2000}
	for i := range vol.Data {
		vol.Data[i] = values[i%len(values)]
	}
	return vol
}

// TestGenerateMinimalDeck checks the full deck when only materials and mode are configured
func TestGenerateMinimalDeck(t *testing.T) {
	var buf bytes.Buffer
	if err := Generate(createTestVolume(), loadRunConfig(t, baseConfig), &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	want := `c Geometry
1  1  -1.0  -11 12 -13 14 -15 16  u=1  imp:n,p=1
881  0  #1  u=1  imp:n,p=1
2  2  -1.85  -11 12 -13 14 -15 16  u=2  imp:n,p=1
882  0  #2  u=2  imp:n,p=1
998  0  -11 12 -13 14 -15 16 u=999 imp:n,p=1
     lat=1  fill=0:1 0:1 0:1
     1 1 2 2 1 1 2 2
999  0  -111 112 -113 114 -115 116  fill=999 imp:n,p=1
1000  1  -0.00129  -1000 #999 imp:n,p=1
9999  0  1000  imp:n,p=0

11    px    1.000
12    px    -1.000
13    py    1.000
14    py    -1.000
15    pz    1.000
16    pz    -1.000
111  px  3.000
112  px  -1.000
113  py  3.000
114  py  -1.000
115  pz  3.000
116  pz  -1.000
1000  so  102.0

c Data
M1
     1001 0.111
     8016 0.889
M2
     20000 1.0
SDEF

`
	got := buf.String()
	if got != want {
		t.Errorf("Unexpected deck.\nExpected:\n%s\nGot:\n%s", want, got)
	}
	if strings.Contains(got, "fmesh") {
		t.Errorf("Deck without a tally section contains an fmesh card")
	}
}

// TestGenerateFullDeck checks the optional sections are written in order
func TestGenerateFullDeck(t *testing.T) {
	cfg := loadRunConfig(t, baseConfig+`
[source]
par = 2
pos = [0, 0, 0]
erg = { si = [0.1, 1.0], sp = [0.4, 0.6] }
dir = { si = [-1, 1], sp = [0, 1] }

[tally.1]
particle = "p"
de = [0.01, 1.0]
df = [2.0, 3.0]
fm = [1, -2]

[tally.3]
particle = "n"

[outcontrol]
nps = 100000
prdmp = [0, 0, 1]
`)

	var buf bytes.Buffer
	if err := Generate(createTestVolume(), cfg, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	data := buf.String()[strings.Index(buf.String(), "c Data\n"):]
	want := `c Data
M1
     1001 0.111
     8016 0.889
M2
     20000 1.0
SDEF
     par=2
     pos=0 0 0
     erg=D1
     dir=D2
#     SI1     SP1
     0.1     0.4
     1.0     0.6
#     SI2     SP2
     -1     0
     1     1
fmesh14:p geom=XYZ origin=-1.000 -1.000 -1.000
     imesh=3.000 iints=2
     jmesh=3.000 jints=2
     kmesh=3.000 kints=2
#     DE14     DF14
     0.01     2.0
     1.0     3.0
FM14  1 -2
fmesh34:n geom=XYZ origin=-1.000 -1.000 -1.000
     imesh=3.000 iints=2
     jmesh=3.000 jints=2
     kmesh=3.000 kints=2
nps 100000
prdmp 0 0 1

`
	if data != want {
		t.Errorf("Unexpected data block.\nExpected:\n%s\nGot:\n%s", want, data)
	}
}

// TestGenerateMissingSections verifies the mandatory keys are checked before anything is written
func TestGenerateMissingSections(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		key  string
	}{
		{"no material", `mode = ["n"]`, config.KeyMaterial},
		{"no mode", "[material.1]\nhu_interval = [0]\ndensity = 1.0\nnucleon = [1001]\nfraction = [1.0]\n", config.KeyMode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			err := Generate(createTestVolume(), loadRunConfig(t, tt.doc), &buf)
			var cfgErr *config.ConfigurationError
			if !errors.As(err, &cfgErr) || cfgErr.Key != tt.key {
				t.Fatalf("Expected ConfigurationError for %q, got %v", tt.key, err)
			}
			if buf.Len() != 0 {
				t.Errorf("Expected no output on failure, got %d bytes", buf.Len())
			}
		})
	}
}

// TestGenerateMissingDensity verifies a material without density fails before output
func TestGenerateMissingDensity(t *testing.T) {
	cfg := loadRunConfig(t, `
mode = ["n"]
[material.1]
hu_interval = [-1000, 0]
nucleon = ["7014"]
fraction = [1.0]
density = -0.00129
[material.2]
hu_interval = [0, 3000]
nucleon = ["20000"]
fraction = [1.0]
`)

	var buf bytes.Buffer
	err := Generate(createTestVolume(), cfg, &buf)
	var keyErr *config.MaterialKeyError
	if !errors.As(err, &keyErr) {
		t.Fatalf("Expected MaterialKeyError, got %v", err)
	}
	if keyErr.Index != 2 || keyErr.Table != "density" {
		t.Errorf("Expected missing density for material 2, got %+v", keyErr)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output on failure, got %d bytes", buf.Len())
	}
}

// TestSectionErrors verifies malformed optional sections name their key
func TestSectionErrors(t *testing.T) {
	geom := buildTestGeometry(t)

	src := loadRunConfig(t, baseConfig+"[source]\nerg = { si = [1.0] }\n")
	if _, err := NewSource(src.Source); !isConfigKey(err, "source.erg.sp") {
		t.Errorf("Expected missing source.erg.sp, got %v", err)
	}

	tal := loadRunConfig(t, baseConfig+"[tally.4]\nde = [1.0]\n")
	if _, err := NewTally(geom, tal.Tally); !isConfigKey(err, "tally.4.particle") {
		t.Errorf("Expected missing tally.4.particle, got %v", err)
	}
}

// TestAbsentSections verifies nil sections write nothing except the SDEF card
func TestAbsentSections(t *testing.T) {
	geom := buildTestGeometry(t)

	var buf bytes.Buffer
	src, err := NewSource(nil)
	if err != nil {
		t.Fatalf("NewSource failed: %v", err)
	}
	tally, err := NewTally(geom, nil)
	if err != nil {
		t.Fatalf("NewTally failed: %v", err)
	}
	for _, s := range []Section{src, tally, NewOutControl(nil)} {
		if err := s.Write(&buf); err != nil {
			t.Fatalf("Write failed: %v", err)
		}
	}
	if buf.String() != "SDEF\n" {
		t.Errorf("Expected only an SDEF card, got %q", buf.String())
	}
}

func buildTestGeometry(t *testing.T) *lattice.Geometry {
	t.Helper()
	d, err := Build(createTestVolume(), loadRunConfig(t, baseConfig))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	return d.Geometry
}

func isConfigKey(err error, key string) bool {
	var cfgErr *config.ConfigurationError
	return errors.As(err, &cfgErr) && cfgErr.Key == key
}

// TestGenerateIntegerValues verifies integer densities and fractions are
// written as integers
func TestGenerateIntegerValues(t *testing.T) {
	cfg := loadRunConfig(t, `
mode = ["p"]
[material.1]
hu_interval = [-1000, 0]
nucleon = ["1001", "8016"]
fraction = [2, 1]
density = -1
[material.2]
hu_interval = [0, 3000]
nucleon = ["20000"]
fraction = [1]
density = -2
`)

	var buf bytes.Buffer
	if err := Generate(createTestVolume(), cfg, &buf); err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	got := buf.String()
	for _, card := range []string{
		"1  1  -1  -11 12 -13 14 -15 16  u=1  imp:p=1\n",
		"2  2  -2  -11 12 -13 14 -15 16  u=2  imp:p=1\n",
		"M1\n     1001 2\n     8016 1\nM2\n     20000 1\nSDEF\n",
	} {
		if !strings.Contains(got, card) {
			t.Errorf("Expected deck to contain %q.\nGot:\n%s", card, got)
		}
	}
}
