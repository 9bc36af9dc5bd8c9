package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"

	"github.com/nfnt/resize"

	"ct2mcnp/internal/models"
)

// PreviewSize is the minimum length in pixels of the longer side of a
// preview image. Smaller slices are enlarged with nearest-neighbour
// sampling so material boundaries stay sharp.
const PreviewSize = 256

// Viewer renders slices of a material-index volume as grayscale images,
// so a classification can be checked by eye before running the deck
type Viewer struct {
	// index holds the classified volume
	index *models.IndexVolume

	// maxIndex maps to white; index 0 maps to black
	maxIndex uint32
}

// NewViewer creates a viewer over a material-index volume
func NewViewer(index *models.IndexVolume) *Viewer {
	v := &Viewer{index: index, maxIndex: index.Max()}
	if v.maxIndex == 0 {
		v.maxIndex = 1
	}
	return v
}

func (v *Viewer) gray(idx uint32) color.Gray16 {
	return color.Gray16{Y: uint16(uint64(idx) * 65535 / uint64(v.maxIndex))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (image.Image, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	width, height, depth := v.index.Size[0], v.index.Size[1], v.index.Size[2]
	var img *image.Gray16

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, width)
		}
		img = image.NewGray16(image.Rect(0, 0, depth, height))
		for y := 0; y < height; y++ {
			for z := 0; z < depth; z++ {
				img.SetGray16(z, y, v.gray(v.index.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, height)
		}
		img = image.NewGray16(image.Rect(0, 0, width, depth))
		for z := 0; z < depth; z++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, z, v.gray(v.index.At(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, depth)
		}
		img = image.NewGray16(image.Rect(0, 0, width, height))
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				img.SetGray16(x, y, v.gray(v.index.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a JPEG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}

	if err := jpeg.Encode(file, img, &jpeg.Options{Quality: 90}); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// SavePreview saves the middle slice along each axis as
// <name>_<axis>.jpg in outputDir and returns the written paths
func (v *Viewer) SavePreview(outputDir, name string) ([]string, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, err
	}

	var paths []string
	for i, axis := range []string{"x", "y", "z"} {
		img, err := v.ExtractSlice(axis, v.index.Size[i]/2)
		if err != nil {
			return paths, err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("%s_%s.jpg", name, axis))
		if err := v.SaveSlice(enlarge(img), filename); err != nil {
			return paths, err
		}
		paths = append(paths, filename)
	}

	return paths, nil
}

// enlarge scales img up so its longer side is at least PreviewSize
func enlarge(img image.Image) image.Image {
	b := img.Bounds()
	long := max(b.Dx(), b.Dy())
	if long == 0 || long >= PreviewSize {
		return img
	}
	scale := (PreviewSize + long - 1) / long
	return resize.Resize(uint(b.Dx()*scale), uint(b.Dy()*scale), img, resize.NearestNeighbor)
}
