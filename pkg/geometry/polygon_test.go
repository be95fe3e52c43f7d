package geometry

import (
	"math"
	"testing"
)

func TestFanIndices(t *testing.T) {
	tests := []struct {
		n    int
		want [][3]int
	}{
		{2, nil},
		{3, [][3]int{{0, 1, 2}}},
		{4, [][3]int{{0, 1, 2}, {0, 2, 3}}},
		{5, [][3]int{{0, 1, 2}, {0, 2, 3}, {0, 3, 4}}},
	}

	for _, tt := range tests {
		got := FanIndices(tt.n)
		if len(got) != len(tt.want) {
			t.Fatalf("FanIndices(%d): expected %d triangles, got %d", tt.n, len(tt.want), len(got))
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("FanIndices(%d)[%d]: expected %v, got %v", tt.n, i, tt.want[i], got[i])
			}
		}
	}
}

func polygonArea(points []Vector3, tris [][3]int) float64 {
	total := 0.0
	for _, tri := range tris {
		total += NewTriangle(Vector3{}, points[tri[0]], points[tri[1]], points[tri[2]]).Area()
	}
	return total
}

func TestTriangulateConcavePolygon(t *testing.T) {
	// L-shaped polygon in the XY plane, area 3
	points := []Vector3{
		NewVector3(0, 0, 0),
		NewVector3(2, 0, 0),
		NewVector3(2, 1, 0),
		NewVector3(1, 1, 0),
		NewVector3(1, 2, 0),
		NewVector3(0, 2, 0),
	}

	tris := TriangulatePolygon(points, NewVector3(0, 0, 1))
	if len(tris) != 4 {
		t.Fatalf("expected 4 triangles, got %d", len(tris))
	}
	if area := polygonArea(points, tris); math.Abs(area-3) > 1e-6 {
		t.Errorf("expected total area 3, got %v", area)
	}
	for _, tri := range tris {
		n := FaceNormal(points[tri[0]], points[tri[1]], points[tri[2]])
		if n.Z <= 0 {
			t.Errorf("triangle %v flipped winding: normal %v", tri, n)
		}
	}
}

func TestTriangulateClockwisePolygonInYZPlane(t *testing.T) {
	points := []Vector3{
		NewVector3(5, 0, 0),
		NewVector3(5, 0, 1),
		NewVector3(5, 1, 1),
		NewVector3(5, 1, 0),
	}

	tris := TriangulatePolygon(points, Vector3{})
	if len(tris) != 2 {
		t.Fatalf("expected 2 triangles, got %d", len(tris))
	}
	if area := polygonArea(points, tris); math.Abs(area-1) > 1e-6 {
		t.Errorf("expected total area 1, got %v", area)
	}
}

func TestBridgeHoles(t *testing.T) {
	outer := []Vector3{
		NewVector3(0, 0, 0),
		NewVector3(4, 0, 0),
		NewVector3(4, 4, 0),
		NewVector3(0, 4, 0),
	}
	// clockwise hole
	hole := []Vector3{
		NewVector3(1, 1, 0),
		NewVector3(1, 3, 0),
		NewVector3(3, 3, 0),
		NewVector3(3, 1, 0),
	}

	poly := BridgeHoles(outer, [][]Vector3{hole})
	if len(poly) != len(outer)+len(hole)+2 {
		t.Fatalf("expected %d bridged vertices, got %d", len(outer)+len(hole)+2, len(poly))
	}

	tris := TriangulatePolygon(poly, NewVector3(0, 0, 1))
	if len(tris) != len(poly)-2 {
		t.Errorf("expected %d triangles, got %d", len(poly)-2, len(tris))
	}
	if area := polygonArea(poly, tris); math.Abs(area-12) > 1e-6 {
		t.Errorf("expected area 12 with the hole removed, got %v", area)
	}
}
