package lattice

import (
	"bytes"
	"strings"
	"testing"
)

// TestFillWriterWrapping verifies line breaks at the wrap width and at the last value
func TestFillWriterWrapping(t *testing.T) {
	tests := []struct {
		name  string
		count int
		lines int
	}{
		{"single value", 1, 1},
		{"short line", 8, 1},
		{"exact line", FillWidth, 1},
		{"one over", FillWidth + 1, 2},
		{"two lines", 2 * FillWidth, 2},
		{"partial third line", 2*FillWidth + 7, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			fw := NewFillWriter(&buf)
			for i := 0; i < tt.count; i++ {
				if err := fw.Write(uint32(i%4 + 1)); err != nil {
					t.Fatalf("Write failed: %v", err)
				}
			}
			if err := fw.Flush(); err != nil {
				t.Fatalf("Flush failed: %v", err)
			}

			text := buf.String()
			if !strings.HasSuffix(text, "\n") || strings.HasSuffix(text, "\n\n") {
				t.Errorf("Expected exactly one trailing newline, got %q", text)
			}
			lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
			if len(lines) != tt.lines {
				t.Fatalf("Expected %d lines, got %d: %q", tt.lines, len(lines), text)
			}
			for i, line := range lines {
				if !strings.HasPrefix(line, fillIndent+" ") {
					t.Errorf("Line %d is not indented: %q", i, line)
				}
				n := len(strings.Fields(line))
				if i < len(lines)-1 && n != FillWidth {
					t.Errorf("Line %d holds %d values, expected %d", i, n, FillWidth)
				}
				if n > FillWidth {
					t.Errorf("Line %d holds %d values", i, n)
				}
			}

			values, err := ParseFill(text)
			if err != nil {
				t.Fatalf("ParseFill failed: %v", err)
			}
			if len(values) != tt.count {
				t.Fatalf("Expected %d values back, got %d", tt.count, len(values))
			}
			for i, v := range values {
				if v != uint32(i%4+1) {
					t.Fatalf("Value %d: expected %d, got %d", i, i%4+1, v)
				}
			}
		})
	}
}

// TestFillWriterExactBytes pins the text of a wrapped list
func TestFillWriterExactBytes(t *testing.T) {
	var buf bytes.Buffer
	fw := NewFillWriter(&buf)
	for i := 0; i < 22; i++ {
		fw.Write(uint32(i%2 + 1))
	}
	fw.Flush()

	want := "     1 2 1 2 1 2 1 2 1 2 1 2 1 2 1 2 1 2 1 2\n     1 2\n"
	if buf.String() != want {
		t.Errorf("Expected %q, got %q", want, buf.String())
	}
}

// TestFillWriterEmpty verifies an empty list writes nothing
func TestFillWriterEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := NewFillWriter(&buf).Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("Expected no output, got %q", buf.String())
	}
}
