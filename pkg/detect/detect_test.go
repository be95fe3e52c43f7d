package detect

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

const asciiCube = `solid cube
  facet normal 0 0 1
    outer loop
      vertex 0 0 0
      vertex 1 0 0
      vertex 0 1 0
    endloop
  endfacet
endsolid cube
`

func binarySTL(header string, count int) []byte {
	data := make([]byte, STLDataOffset+STLRecordSize*count)
	copy(data, header)
	binary.LittleEndian.PutUint32(data[STLHeaderSize:], uint32(count))
	return data
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func write3MF(t *testing.T, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.3mf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := zip.NewWriter(f)
	for name, body := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := w.Write([]byte(body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDetect(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
		want mesh.Format
	}{
		{"ascii stl", "a.stl", []byte(asciiCube), mesh.FormatSTL},
		{"binary stl", "b.stl", binarySTL("exported", 2), mesh.FormatSTL},
		{"binary stl with solid header", "c.dat", binarySTL("solid but binary", 1), mesh.FormatSTL},
		{"obj", "m.obj", []byte("# comment\nv 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"), mesh.FormatOBJ},
		{"step", "p.step", []byte("ISO-10303-21;\nHEADER;\nENDSEC;\nDATA;\n#1=CARTESIAN_POINT('',(0.,0.,0.));\nENDSEC;\nEND-ISO-10303-21;\n"), mesh.FormatSTEP},
		{"unknown text", "x.txt", []byte("hello world\n"), mesh.FormatUnknown},
		{"mismatched binary", "d.stl", binarySTL("exported", 2)[:100], mesh.FormatUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, tt.file, tt.data)
			got, err := Detect(path)
			if err != nil {
				t.Fatalf("Detect() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Detect() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDetectIgnoresExtension(t *testing.T) {
	path := writeFile(t, "model.obj", []byte(asciiCube))
	got, err := Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != mesh.FormatSTL {
		t.Errorf("Detect() = %v, want STL", got)
	}
}

func TestDetect3MF(t *testing.T) {
	path := write3MF(t, map[string]string{
		"[Content_Types].xml": "<Types/>",
		ThreeMFModelPath:      "<model/>",
	})
	got, err := Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != mesh.Format3MF {
		t.Errorf("Detect() = %v, want 3MF", got)
	}

	other := write3MF(t, map[string]string{"readme.txt": "not a model"})
	got, err = Detect(other)
	if err != nil {
		t.Fatal(err)
	}
	if got != mesh.FormatUnknown {
		t.Errorf("Detect() on plain zip = %v, want Unknown", got)
	}
}

func TestDetectLargeOBJFaceBeyondSample(t *testing.T) {
	var sb strings.Builder
	for sb.Len() < SampleSize+1024 {
		sb.WriteString("v 1.000000 2.000000 3.000000\n")
	}
	sb.WriteString("f 1 2 3\n")

	path := writeFile(t, "big.obj", []byte(sb.String()))
	got, err := Detect(path)
	if err != nil {
		t.Fatal(err)
	}
	if got != mesh.FormatOBJ {
		t.Errorf("Detect() = %v, want OBJ", got)
	}
}

func TestDetectMissingFile(t *testing.T) {
	_, err := Detect(filepath.Join(t.TempDir(), "missing.stl"))
	if !errors.Is(err, parse.ErrNotFound) {
		t.Errorf("Detect() error = %v, want ErrNotFound", err)
	}
}

func TestSniffSTL(t *testing.T) {
	tests := []struct {
		name   string
		sample []byte
		size   int64
		want   STLEncoding
	}{
		{"ascii", []byte(asciiCube), int64(len(asciiCube)), STLASCII},
		{"empty solid", []byte("solid empty\nendsolid empty\n"), 27, STLASCII},
		{"binary", binarySTL("", 1), 134, STLBinary},
		{"binary size mismatch", binarySTL("", 1), 200, STLNone},
		{"too small", []byte{1, 2, 3}, 3, STLNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffSTL(tt.sample, tt.size); got != tt.want {
				t.Errorf("SniffSTL() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSniffSTLPrefersTextOverSizeMatch(t *testing.T) {
	// Pad an ASCII file so its size happens to satisfy 84 + 50*count for
	// the little-endian count read from bytes 80..84.
	data := []byte(asciiCube)
	for len(data) < STLDataOffset {
		data = append(data, ' ')
	}
	count, _ := BinarySTLCount(data, int64(len(data)))
	size := int64(STLDataOffset) + STLRecordSize*int64(count)
	if _, ok := BinarySTLCount(data, size); !ok {
		t.Fatal("expected size to match binary layout")
	}
	if got := SniffSTL(data, size); got != STLASCII {
		t.Errorf("SniffSTL() = %v, want ascii", got)
	}
}

func TestIsText(t *testing.T) {
	if !IsText([]byte("v 1 2 3\r\n\tf 1 2 3\n")) {
		t.Error("expected text")
	}
	if IsText([]byte{'s', 'o', 0, 'l'}) {
		t.Error("NUL byte should not be text")
	}
}
