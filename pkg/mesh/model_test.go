package mesh

import (
	"math"
	"testing"

	"github.com/philipparndt/gomesh/pkg/geometry"
)

func unitCube() []geometry.Triangle {
	v := func(x, y, z float32) geometry.Vector3 { return geometry.NewVector3(x, y, z) }
	quads := [][4]geometry.Vector3{
		{v(0, 0, 0), v(0, 1, 0), v(1, 1, 0), v(1, 0, 0)}, // bottom
		{v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1)}, // top
		{v(0, 0, 0), v(1, 0, 0), v(1, 0, 1), v(0, 0, 1)}, // front
		{v(0, 1, 0), v(0, 1, 1), v(1, 1, 1), v(1, 1, 0)}, // back
		{v(0, 0, 0), v(0, 0, 1), v(0, 1, 1), v(0, 1, 0)}, // left
		{v(1, 0, 0), v(1, 1, 0), v(1, 1, 1), v(1, 0, 1)}, // right
	}
	var tris []geometry.Triangle
	for _, q := range quads {
		n := geometry.FaceNormal(q[0], q[1], q[2])
		tris = append(tris,
			geometry.NewTriangle(n, q[0], q[1], q[2]),
			geometry.NewTriangle(n, q[0], q[2], q[3]),
		)
	}
	return tris
}

func TestNewObjectListInvariants(t *testing.T) {
	tris := unitCube()
	var stats Stats
	stats.Format = FormatSTL
	stats.SetBounds(TriangleBounds(tris))

	m := NewObjectList("cube", tris, stats)

	if m.Kind() != KindObjectList {
		t.Errorf("expected kind %v, got %v", KindObjectList, m.Kind())
	}
	s := m.Stats()
	if s.TriangleCount != 12 {
		t.Errorf("expected 12 triangles, got %d", s.TriangleCount)
	}
	if s.VertexCount != 3*s.TriangleCount {
		t.Errorf("expected vertex count %d, got %d", 3*s.TriangleCount, s.VertexCount)
	}
	if s.MinBounds != (geometry.Vector3{}) || s.MaxBounds != geometry.NewVector3(1, 1, 1) {
		t.Errorf("unexpected bounds %v..%v", s.MinBounds, s.MaxBounds)
	}
	if m.Header() != "cube" || m.Format() != FormatSTL {
		t.Errorf("unexpected header/format %q/%v", m.Header(), m.Format())
	}
}

func TestFlatArraysIterator(t *testing.T) {
	tris := unitCube()
	vertices := make([]geometry.Vector3, 0, 3*len(tris))
	normals := make([]geometry.Vector3, 0, 3*len(tris))
	for _, tri := range tris {
		vertices = append(vertices, tri.V1, tri.V2, tri.V3)
		normals = append(normals, tri.Normal, tri.Normal, tri.Normal)
	}

	m, err := NewFlatArrays("", vertices, normals, Stats{Format: FormatSTL})
	if err != nil {
		t.Fatalf("NewFlatArrays failed: %v", err)
	}
	if m.TriangleCount() != len(tris) {
		t.Fatalf("expected %d triangles, got %d", len(tris), m.TriangleCount())
	}

	count := 0
	for i, tri := range m.Triangles() {
		if tri != tris[i] {
			t.Errorf("triangle %d mismatch: expected %v, got %v", i, tris[i], tri)
		}
		count++
	}
	if count != len(tris) {
		t.Errorf("iterator yielded %d triangles, expected %d", count, len(tris))
	}
}

func TestNewFlatArraysRejectsMismatch(t *testing.T) {
	vertices := make([]geometry.Vector3, 6)
	if _, err := NewFlatArrays("", vertices, make([]geometry.Vector3, 3), Stats{}); err == nil {
		t.Error("expected error for normal/vertex length mismatch")
	}
	if _, err := NewFlatArrays("", make([]geometry.Vector3, 4), make([]geometry.Vector3, 4), Stats{}); err == nil {
		t.Error("expected error for vertex count not divisible by 3")
	}
}

func TestMetadataOnly(t *testing.T) {
	m := NewMetadataOnly("hdr", Stats{TriangleCount: 5})
	if m.Kind() != KindMetadataOnly {
		t.Errorf("expected metadata-only kind, got %v", m.Kind())
	}
	if m.Stats().VertexCount != 15 {
		t.Errorf("expected vertex count 15, got %d", m.Stats().VertexCount)
	}
	for range m.Triangles() {
		t.Fatal("metadata-only model must not yield triangles")
	}
}

func TestSurfaceAreaAndVolume(t *testing.T) {
	m := NewObjectList("", unitCube(), Stats{})

	if area := m.SurfaceArea(); math.Abs(area-6) > 1e-6 {
		t.Errorf("SurfaceArea failed: expected 6, got %v", area)
	}
	if volume := m.Volume(); math.Abs(volume-1) > 1e-6 {
		t.Errorf("Volume failed: expected 1, got %v", volume)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{
		"stl":  FormatSTL,
		".STL": FormatSTL,
		"obj":  FormatOBJ,
		"3mf":  Format3MF,
		"stp":  FormatSTEP,
		"step": FormatSTEP,
		"dxf":  FormatUnknown,
	}
	for name, want := range tests {
		if got := ParseFormat(name); got != want {
			t.Errorf("ParseFormat(%q) = %v, want %v", name, got, want)
		}
	}
}
