package lattice

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// FillWidth is the number of lattice fill values written per line
const FillWidth = 20

// fillIndent starts every line of the fill list
const fillIndent = "    "

// FillWriter writes lattice fill values as indented, space-prefixed
// integers, FillWidth per line. Every line, including a short final one,
// ends with a newline once Flush is called.
type FillWriter struct {
	w     *bufio.Writer
	width int
	n     int
	buf   []byte
}

// NewFillWriter returns a FillWriter writing to w
func NewFillWriter(w io.Writer) *FillWriter {
	return &FillWriter{w: bufio.NewWriter(w), width: FillWidth}
}

// Write appends one value to the current line, ending the line when it is full
func (f *FillWriter) Write(v uint32) error {
	if f.n == 0 {
		f.buf = append(f.buf[:0], fillIndent...)
	}
	f.buf = append(f.buf, ' ')
	f.buf = strconv.AppendUint(f.buf, uint64(v), 10)
	f.n++
	if f.n == f.width {
		return f.endLine()
	}
	return nil
}

// Flush ends a partially filled line and flushes the underlying writer
func (f *FillWriter) Flush() error {
	if f.n > 0 {
		if err := f.endLine(); err != nil {
			return err
		}
	}
	return f.w.Flush()
}

func (f *FillWriter) endLine() error {
	f.buf = append(f.buf, '\n')
	f.n = 0
	_, err := f.w.Write(f.buf)
	return err
}

// ParseFill reads back a fill list written by FillWriter
func ParseFill(text string) ([]uint32, error) {
	fields := strings.Fields(text)
	out := make([]uint32, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return nil, err
		}
		out[i] = uint32(v)
	}
	return out, nil
}
