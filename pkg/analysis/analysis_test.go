package analysis

import (
	"math"
	"testing"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
)

func v(x, y, z float32) geometry.Vector3 {
	return geometry.NewVector3(x, y, z)
}

// cube returns a closed unit cube
func cube() []geometry.Triangle {
	p := [8]geometry.Vector3{
		v(0, 0, 0), v(1, 0, 0), v(1, 1, 0), v(0, 1, 0),
		v(0, 0, 1), v(1, 0, 1), v(1, 1, 1), v(0, 1, 1),
	}
	faces := [][3]int{
		{0, 2, 1}, {0, 3, 2}, // bottom
		{4, 5, 6}, {4, 6, 7}, // top
		{0, 1, 5}, {0, 5, 4}, // front
		{1, 2, 6}, {1, 6, 5}, // right
		{2, 3, 7}, {2, 7, 6}, // back
		{3, 0, 4}, {3, 4, 7}, // left
	}
	out := make([]geometry.Triangle, len(faces))
	for i, f := range faces {
		a, b, c := p[f[0]], p[f[1]], p[f[2]]
		out[i] = geometry.NewTriangle(geometry.FaceNormal(a, b, c), a, b, c)
	}
	return out
}

func objectList(tris []geometry.Triangle) *mesh.Model {
	var stats mesh.Stats
	stats.SetBounds(mesh.TriangleBounds(tris))
	return mesh.NewObjectList("test", tris, stats)
}

func flatArrays(t *testing.T, tris []geometry.Triangle) *mesh.Model {
	t.Helper()
	var vertices, normals []geometry.Vector3
	for _, tri := range tris {
		vertices = append(vertices, tri.V1, tri.V2, tri.V3)
		normals = append(normals, tri.Normal, tri.Normal, tri.Normal)
	}
	var stats mesh.Stats
	stats.SetBounds(mesh.PointBounds(vertices))
	m, err := mesh.NewFlatArrays("test", vertices, normals, stats)
	if err != nil {
		t.Fatalf("NewFlatArrays() error = %v", err)
	}
	return m
}

func TestAnalyzeModel(t *testing.T) {
	for name, model := range map[string]*mesh.Model{
		"object list": objectList(cube()),
		"flat arrays": flatArrays(t, cube()),
	} {
		t.Run(name, func(t *testing.T) {
			result := AnalyzeModel(model)

			if result.TriangleCount != 12 {
				t.Errorf("expected 12 triangles, got %d", result.TriangleCount)
			}
			if result.EdgeCount != 36 {
				t.Errorf("expected 36 edges, got %d", result.EdgeCount)
			}
			if math.Abs(result.SurfaceArea-6) > 1e-6 {
				t.Errorf("expected surface area 6, got %v", result.SurfaceArea)
			}
			if math.Abs(result.Volume-1) > 1e-6 {
				t.Errorf("expected volume 1, got %v", result.Volume)
			}
			if result.MinEdgeLength != 1 {
				t.Errorf("expected min edge 1, got %v", result.MinEdgeLength)
			}
			if math.Abs(result.MaxEdgeLength-math.Sqrt2) > 1e-6 {
				t.Errorf("expected max edge sqrt(2), got %v", result.MaxEdgeLength)
			}
			if result.Dimensions != v(1, 1, 1) {
				t.Errorf("expected dimensions (1,1,1), got %v", result.Dimensions)
			}
		})
	}
}

func TestFindEdges(t *testing.T) {
	result := AnalyzeModel(objectList(cube()))

	longest := FindLongestEdges(result, 3)
	if len(longest) != 3 {
		t.Fatalf("expected 3 edges, got %d", len(longest))
	}
	for _, e := range longest {
		if math.Abs(e.Length-math.Sqrt2) > 1e-6 {
			t.Errorf("expected diagonal edge, got length %v", e.Length)
		}
	}

	shortest := FindShortestEdges(result, 100)
	if len(shortest) != 36 || shortest[0].Length != 1 {
		t.Errorf("expected all 36 edges sorted ascending, got %d starting at %v", len(shortest), shortest[0].Length)
	}

	unit := FindEdgesByLength(result, 0.9, 1.1)
	if len(unit) != 24 {
		t.Errorf("expected 24 unit edges, got %d", len(unit))
	}
}

func TestFindNearestVertex(t *testing.T) {
	nearest, distance := FindNearestVertex(objectList(cube()), v(2, 2, 2))
	if nearest != v(1, 1, 1) {
		t.Errorf("expected (1,1,1), got %v", nearest)
	}
	if math.Abs(distance-math.Sqrt(3)) > 1e-6 {
		t.Errorf("expected distance sqrt(3), got %v", distance)
	}

	if _, d := FindNearestVertex(objectList(nil), v(0, 0, 0)); !math.IsInf(d, 1) {
		t.Errorf("expected infinite distance for an empty model, got %v", d)
	}
}

func TestValidate(t *testing.T) {
	tris := cube()
	tris = append(tris, geometry.NewTriangle(geometry.Vector3{}, v(0, 0, 0), v(1, 0, 0), v(2, 0, 0)))
	report := Validate(objectList(tris), ValidateOptions{})

	if report.FaceCount != 13 || report.VertexCount != 39 || report.EdgeCount != 39 {
		t.Errorf("unexpected counts: faces %d, vertices %d, edges %d", report.FaceCount, report.VertexCount, report.EdgeCount)
	}
	if report.Sampled != 13 {
		t.Errorf("expected every triangle sampled, got %d", report.Sampled)
	}
	if report.DegenerateCount != 1 || report.DegenerateSample[0] != 12 {
		t.Errorf("expected degenerate triangle 12, got %v", report.DegenerateSample)
	}
	if !report.Manifold {
		t.Error("expected optimistic manifold flag")
	}
	if report.Valid() {
		t.Error("expected report to be invalid")
	}
}

func TestValidateBoundedSample(t *testing.T) {
	var tris []geometry.Triangle
	for i := 0; i < 50; i++ {
		tris = append(tris, cube()...)
	}
	report := Validate(objectList(tris), ValidateOptions{SampleSize: 10})

	if report.Sampled != 10 {
		t.Errorf("expected 10 sampled triangles, got %d", report.Sampled)
	}
	if !report.Valid() {
		t.Errorf("expected valid report, got %+v", report)
	}
}
