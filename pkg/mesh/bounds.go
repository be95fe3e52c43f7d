package mesh

import "github.com/philipparndt/gomesh/pkg/geometry"

// SetBounds records b in the stats. An empty box (no vertices) is stored
// as zero vectors.
func (s *Stats) SetBounds(b geometry.BoundingBox) {
	if b.IsEmpty() {
		s.MinBounds = geometry.Vector3{}
		s.MaxBounds = geometry.Vector3{}
		return
	}
	s.MinBounds = b.Min
	s.MaxBounds = b.Max
}

// TriangleBounds reduces every vertex of the triangles into one box
func TriangleBounds(triangles []geometry.Triangle) geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, triangle := range triangles {
		bbox.Extend(triangle.V1)
		bbox.Extend(triangle.V2)
		bbox.Extend(triangle.V3)
	}
	return bbox
}

// PointBounds reduces a point list into one box
func PointBounds(points []geometry.Vector3) geometry.BoundingBox {
	bbox := geometry.NewBoundingBox()
	for _, p := range points {
		bbox.Extend(p)
	}
	return bbox
}
