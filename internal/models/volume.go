package models

// Volume represents a CT volume of radiodensity samples
type Volume struct {
	// Data is the 3D volume data as a 1D array with x varying fastest,
	// then y, then z
	Data []float64

	// Size is the number of voxels along x, y and z
	Size [3]int

	// Spacing is the physical size of each voxel in mm
	Spacing [3]float64

	// Origin is the physical position of the first voxel in mm
	Origin [3]float64
}

// NewVolume allocates a zero-filled volume of the given size
func NewVolume(size [3]int, spacing [3]float64) *Volume {
	return &Volume{
		Data:    make([]float64, size[0]*size[1]*size[2]),
		Size:    size,
		Spacing: spacing,
	}
}

// Len returns the number of voxels in the volume
func (v *Volume) Len() int {
	return v.Size[0] * v.Size[1] * v.Size[2]
}

// Offset returns the position of voxel (x, y, z) in Data
func (v *Volume) Offset(x, y, z int) int {
	return x + v.Size[0]*(y+v.Size[1]*z)
}

// At returns the sample at voxel (x, y, z)
func (v *Volume) At(x, y, z int) float64 {
	return v.Data[v.Offset(x, y, z)]
}

// Set stores a sample at voxel (x, y, z)
func (v *Volume) Set(x, y, z int, value float64) {
	v.Data[v.Offset(x, y, z)] = value
}

// IndexVolume holds one material index per voxel, laid out like Volume
type IndexVolume struct {
	// Data is the 3D index data as a 1D array in the same order as Volume.Data
	Data []uint32

	// Size is the number of voxels along x, y and z
	Size [3]int
}

// NewIndexVolume allocates a zero-filled index volume of the given size
func NewIndexVolume(size [3]int) *IndexVolume {
	return &IndexVolume{
		Data: make([]uint32, size[0]*size[1]*size[2]),
		Size: size,
	}
}

// Len returns the number of voxels in the volume
func (v *IndexVolume) Len() int {
	return v.Size[0] * v.Size[1] * v.Size[2]
}

// At returns the material index at voxel (x, y, z)
func (v *IndexVolume) At(x, y, z int) uint32 {
	return v.Data[x+v.Size[0]*(y+v.Size[1]*z)]
}

// Max returns the largest index present in the volume
func (v *IndexVolume) Max() uint32 {
	var m uint32
	for _, idx := range v.Data {
		if idx > m {
			m = idx
		}
	}
	return m
}
