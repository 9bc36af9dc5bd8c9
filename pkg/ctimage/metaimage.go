// Package ctimage reads and writes CT volumes in the MetaImage format
// (.mha with inline data, .mhd with a separate raw file).
package ctimage

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"ct2mcnp/internal/models"
)

// Extensions lists the file extensions Read understands
var Extensions = []string{".mha", ".mhd"}

// elementTypes maps MetaImage element types to their size in bytes
var elementTypes = map[string]int{
	"MET_CHAR":   1,
	"MET_UCHAR":  1,
	"MET_SHORT":  2,
	"MET_USHORT": 2,
	"MET_INT":    4,
	"MET_UINT":   4,
	"MET_FLOAT":  4,
	"MET_DOUBLE": 8,
}

// header holds the MetaImage fields used to decode the voxel data
type header struct {
	dims        [3]int
	spacing     [3]float64
	origin      [3]float64
	elementType string
	bigEndian   bool
	compressed  bool
	dataFile    string
}

// Supported reports whether path has a MetaImage extension
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Read loads a 3D MetaImage volume
func Read(path string) (*models.Volume, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readHeader(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var data io.Reader = r
	if !strings.EqualFold(h.dataFile, "LOCAL") {
		raw, err := os.Open(filepath.Join(filepath.Dir(path), h.dataFile))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer raw.Close()
		data = bufio.NewReader(raw)
	}
	if h.compressed {
		zr, err := zlib.NewReader(data)
		if err != nil {
			return nil, fmt.Errorf("%s: compressed data: %w", path, err)
		}
		defer zr.Close()
		data = zr
	}

	vol := models.NewVolume(h.dims, h.spacing)
	vol.Origin = h.origin
	if err := decodeSamples(data, h, vol.Data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return vol, nil
}

func readHeader(r *bufio.Reader) (*header, error) {
	h := &header{spacing: [3]float64{1, 1, 1}}
	ndims := 0
	for {
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return nil, fmt.Errorf("reading header: %w", err)
		}
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("malformed header line %q", strings.TrimSpace(line))
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		switch key {
		case "NDims":
			if ndims, err = strconv.Atoi(value); err != nil {
				return nil, fmt.Errorf("NDims: %w", err)
			}
			if ndims != 3 {
				return nil, fmt.Errorf("expected a 3D image, got NDims = %d", ndims)
			}
		case "DimSize":
			v, err := parseInts(value)
			if err != nil {
				return nil, fmt.Errorf("DimSize: %w", err)
			}
			copy(h.dims[:], v)
		case "ElementSpacing", "ElementSize":
			v, err := parseFloats(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			copy(h.spacing[:], v)
		case "Offset", "Origin", "Position":
			v, err := parseFloats(value)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			copy(h.origin[:], v)
		case "ElementType":
			if _, ok := elementTypes[value]; !ok {
				return nil, fmt.Errorf("unsupported ElementType %s", value)
			}
			h.elementType = value
		case "ElementByteOrderMSB", "BinaryDataByteOrderMSB":
			h.bigEndian = strings.EqualFold(value, "True")
		case "CompressedData":
			h.compressed = strings.EqualFold(value, "True")
		case "ElementNumberOfChannels":
			if value != "1" {
				return nil, fmt.Errorf("multi-channel images are not supported")
			}
		case "ElementDataFile":
			h.dataFile = value
			if ndims == 0 || h.elementType == "" {
				return nil, fmt.Errorf("header is missing NDims or ElementType")
			}
			for axis, n := range h.dims {
				if n <= 0 {
					return nil, fmt.Errorf("DimSize %d along axis %d", n, axis)
				}
			}
			return h, nil
		}
	}
}

func decodeSamples(r io.Reader, h *header, out []float64) error {
	size := elementTypes[h.elementType]
	var order binary.ByteOrder = binary.LittleEndian
	if h.bigEndian {
		order = binary.BigEndian
	}

	buf := make([]byte, size*len(out))
	if _, err := io.ReadFull(r, buf); err != nil {
		return fmt.Errorf("reading %d voxels: %w", len(out), err)
	}
	for i := range out {
		b := buf[i*size : (i+1)*size]
		switch h.elementType {
		case "MET_CHAR":
			out[i] = float64(int8(b[0]))
		case "MET_UCHAR":
			out[i] = float64(b[0])
		case "MET_SHORT":
			out[i] = float64(int16(order.Uint16(b)))
		case "MET_USHORT":
			out[i] = float64(order.Uint16(b))
		case "MET_INT":
			out[i] = float64(int32(order.Uint32(b)))
		case "MET_UINT":
			out[i] = float64(order.Uint32(b))
		case "MET_FLOAT":
			out[i] = float64(math.Float32frombits(order.Uint32(b)))
		case "MET_DOUBLE":
			out[i] = math.Float64frombits(order.Uint64(b))
		}
	}
	return nil
}

// Write stores vol as a single-file .mha image with MET_SHORT samples,
// optionally zlib-compressed. Samples are rounded to the nearest integer.
func Write(path string, vol *models.Volume, compress bool) error {
	var body bytes.Buffer
	var dst io.Writer = &body
	var zw *zlib.Writer
	if compress {
		zw = zlib.NewWriter(&body)
		dst = zw
	}
	sample := make([]byte, 2)
	for _, v := range vol.Data {
		binary.LittleEndian.PutUint16(sample, uint16(int16(math.Round(v))))
		if _, err := dst.Write(sample); err != nil {
			return err
		}
	}
	if zw != nil {
		if err := zw.Close(); err != nil {
			return err
		}
	}

	var hdr strings.Builder
	hdr.WriteString("ObjectType = Image\nNDims = 3\nBinaryData = True\nBinaryDataByteOrderMSB = False\n")
	fmt.Fprintf(&hdr, "CompressedData = %s\n", pyBool(compress))
	if compress {
		fmt.Fprintf(&hdr, "CompressedDataSize = %d\n", body.Len())
	}
	fmt.Fprintf(&hdr, "Offset = %s\n", joinFloats(vol.Origin[:]))
	fmt.Fprintf(&hdr, "ElementSpacing = %s\n", joinFloats(vol.Spacing[:]))
	fmt.Fprintf(&hdr, "DimSize = %d %d %d\n", vol.Size[0], vol.Size[1], vol.Size[2])
	hdr.WriteString("ElementType = MET_SHORT\nElementDataFile = LOCAL\n")

	return os.WriteFile(path, append([]byte(hdr.String()), body.Bytes()...), 0644)
}

func pyBool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

func joinFloats(v []float64) string {
	parts := make([]string, len(v))
	for i, f := range v {
		parts[i] = strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strings.Join(parts, " ")
}

func parseInts(s string) ([]int, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	out := make([]int, len(fields))
	for i, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func parseFloats(s string) ([]float64, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return nil, fmt.Errorf("expected 3 values, got %d", len(fields))
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
