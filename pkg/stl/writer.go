package stl

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
)

// record is the on-disk layout of one binary STL triangle
type record struct {
	N, V1, V2, V3 [3]float32
	Attribute     uint16
}

func components(v geometry.Vector3) [3]float32 {
	return [3]float32{v.X, v.Y, v.Z}
}

// WriteBinary writes the model as binary STL. The header is truncated to
// 80 bytes.
func WriteBinary(w io.Writer, m *mesh.Model) error {
	if m.Kind() == mesh.KindMetadataOnly {
		return fmt.Errorf("model has no geometry to write")
	}

	bw := bufio.NewWriter(w)
	var header [headerSize]byte
	copy(header[:], m.Header())
	if _, err := bw.Write(header[:]); err != nil {
		return fmt.Errorf("error writing header: %w", err)
	}
	if err := binary.Write(bw, binary.LittleEndian, uint32(m.TriangleCount())); err != nil {
		return fmt.Errorf("error writing triangle count: %w", err)
	}

	for i, t := range m.Triangles() {
		rec := record{
			N:         components(t.Normal),
			V1:        components(t.V1),
			V2:        components(t.V2),
			V3:        components(t.V3),
			Attribute: t.Attribute,
		}
		if err := binary.Write(bw, binary.LittleEndian, &rec); err != nil {
			return fmt.Errorf("write triangle %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// WriteASCII writes the model as ASCII STL using the header as solid name.
// Numbers are written with the shortest representation that round-trips
// through float32.
func WriteASCII(w io.Writer, m *mesh.Model) error {
	if m.Kind() == mesh.KindMetadataOnly {
		return fmt.Errorf("model has no geometry to write")
	}

	bw := bufio.NewWriter(w)
	name := strings.Join(strings.Fields(m.Header()), " ")
	fmt.Fprintf(bw, "solid %s\n", name)
	for _, t := range m.Triangles() {
		fmt.Fprintf(bw, "  facet normal %s\n", formatVector(t.Normal))
		bw.WriteString("    outer loop\n")
		for _, v := range [3]geometry.Vector3{t.V1, t.V2, t.V3} {
			fmt.Fprintf(bw, "      vertex %s\n", formatVector(v))
		}
		bw.WriteString("    endloop\n")
		bw.WriteString("  endfacet\n")
	}
	fmt.Fprintf(bw, "endsolid %s\n", name)
	return bw.Flush()
}

// WriteFile writes the model to path in the requested encoding
func WriteFile(path string, m *mesh.Model, ascii bool) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	if ascii {
		err = WriteASCII(f, m)
	} else {
		err = WriteBinary(f, m)
	}
	if err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'e', -1, 32)
}

func formatVector(v geometry.Vector3) string {
	return formatFloat(v.X) + " " + formatFloat(v.Y) + " " + formatFloat(v.Z)
}
