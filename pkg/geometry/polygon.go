package geometry

import "math"

// FanIndices returns the fan triangulation of an n-gon anchored at its
// first vertex: (0,1,2), (0,2,3), ... Fewer than three vertices yield nil.
func FanIndices(n int) [][3]int {
	if n < 3 {
		return nil
	}
	out := make([][3]int, 0, n-2)
	for i := 1; i < n-1; i++ {
		out = append(out, [3]int{0, i, i + 1})
	}
	return out
}

// NewellNormal computes a robust unit normal of a possibly non-convex
// planar polygon.
func NewellNormal(points []Vector3) Vector3 {
	var nx, ny, nz float64
	for i := range points {
		cur := points[i]
		next := points[(i+1)%len(points)]
		nx += float64(cur.Y-next.Y) * float64(cur.Z+next.Z)
		ny += float64(cur.Z-next.Z) * float64(cur.X+next.X)
		nz += float64(cur.X-next.X) * float64(cur.Y+next.Y)
	}
	return Vector3{X: float32(nx), Y: float32(ny), Z: float32(nz)}.Normalize()
}

// TriangulatePolygon splits a planar polygon into triangles by ear
// clipping in the plane most aligned with normal. Output triangles index
// into points and keep the polygon's winding. If no ear can be found
// (self-intersecting input) the remainder is fanned.
func TriangulatePolygon(points []Vector3, normal Vector3) [][3]int {
	n := len(points)
	if n < 3 {
		return nil
	}
	if n == 3 {
		return [][3]int{{0, 1, 2}}
	}
	if normal.Length() == 0 {
		normal = NewellNormal(points)
	}

	// Drop the dominant axis of the normal.
	u, v := 0, 1
	ax, ay, az := math.Abs(float64(normal.X)), math.Abs(float64(normal.Y)), math.Abs(float64(normal.Z))
	switch {
	case ax >= ay && ax >= az:
		u, v = 1, 2
	case ay >= ax && ay >= az:
		u, v = 2, 0
	}
	pts := make([][2]float64, n)
	for i, p := range points {
		pts[i] = [2]float64{float64(p.Component(u)), float64(p.Component(v))}
	}

	var area float64
	for i := range pts {
		j := (i + 1) % n
		area += pts[i][0]*pts[j][1] - pts[j][0]*pts[i][1]
	}
	sign := 1.0
	if area < 0 {
		sign = -1.0
	}

	remaining := make([]int, n)
	for i := range remaining {
		remaining[i] = i
	}
	out := make([][3]int, 0, n-2)

	for len(remaining) > 3 {
		found := false
		m := len(remaining)
		for i := 0; i < m; i++ {
			a := remaining[(i+m-1)%m]
			b := remaining[i]
			c := remaining[(i+1)%m]
			if sign*cross2(pts[a], pts[b], pts[c]) <= 1e-12 {
				continue
			}
			if anyInside(pts, remaining, a, b, c) {
				continue
			}
			out = append(out, [3]int{a, b, c})
			remaining = append(remaining[:i], remaining[i+1:]...)
			found = true
			break
		}
		if !found {
			for _, f := range FanIndices(len(remaining)) {
				out = append(out, [3]int{remaining[f[0]], remaining[f[1]], remaining[f[2]]})
			}
			return out
		}
	}
	return append(out, [3]int{remaining[0], remaining[1], remaining[2]})
}

func cross2(a, b, c [2]float64) float64 {
	return (b[0]-a[0])*(c[1]-a[1]) - (b[1]-a[1])*(c[0]-a[0])
}

func anyInside(pts [][2]float64, remaining []int, a, b, c int) bool {
	for _, idx := range remaining {
		if idx == a || idx == b || idx == c {
			continue
		}
		p := pts[idx]
		// bridge vertices repeat corners of the ear
		if p == pts[a] || p == pts[b] || p == pts[c] {
			continue
		}
		d1 := cross2(pts[a], pts[b], p)
		d2 := cross2(pts[b], pts[c], p)
		d3 := cross2(pts[c], pts[a], p)
		hasNeg := d1 < 0 || d2 < 0 || d3 < 0
		hasPos := d1 > 0 || d2 > 0 || d3 > 0
		if !(hasNeg && hasPos) {
			return true
		}
	}
	return false
}

// BridgeHoles merges hole loops into the outer loop by connecting each
// hole to the nearest outer vertex with a zero-width bridge. Holes must
// wind opposite to the outer loop. The bridge vertices appear twice in
// the result.
func BridgeHoles(outer []Vector3, holes [][]Vector3) []Vector3 {
	poly := append([]Vector3(nil), outer...)
	for _, hole := range holes {
		if len(hole) < 3 {
			continue
		}
		bi, bj := 0, 0
		best := math.Inf(1)
		for i, p := range poly {
			for j, q := range hole {
				if d := p.Distance(q); d < best {
					best, bi, bj = d, i, j
				}
			}
		}

		merged := make([]Vector3, 0, len(poly)+len(hole)+2)
		merged = append(merged, poly[:bi+1]...)
		for k := 0; k <= len(hole); k++ {
			merged = append(merged, hole[(bj+k)%len(hole)])
		}
		merged = append(merged, poly[bi:]...)
		poly = merged
	}
	return poly
}
