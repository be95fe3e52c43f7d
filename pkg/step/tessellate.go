package step

import (
	"fmt"
	"math"

	"github.com/philipparndt/gomesh/pkg/geometry"
)

// CircleSegments is the number of chords used for a full circle
const CircleSegments = 32

// refError is a reference to a missing entity or to an entity of the
// wrong type. It makes the file unusable.
type refError struct {
	from int
	to   int
	want string
}

func (e *refError) Error() string {
	return fmt.Sprintf("#%d references #%d, which is not a %s", e.from, e.to, e.want)
}

// unsupportedError marks a face that uses geometry the tessellator cannot
// represent. The face is skipped.
type unsupportedError struct {
	face   int
	reason string
}

func (e *unsupportedError) Error() string {
	return fmt.Sprintf("face #%d: %s", e.face, e.reason)
}

type tessellator struct {
	store *Store
}

func (t *tessellator) typeName(id int) string {
	e, ok := t.store.Entity(id)
	switch {
	case !ok:
		return "missing entity"
	case e.Type == "":
		return "complex entity"
	default:
		return e.Type
	}
}

func (t *tessellator) point(from, id int) (Vec3, error) {
	p, ok := t.store.Points[id]
	if !ok {
		return Vec3{}, &refError{from, id, "CARTESIAN_POINT"}
	}
	return p, nil
}

func (t *tessellator) vertex(from, id int) (Vec3, error) {
	pt, ok := t.store.VertexPoints[id]
	if !ok {
		return Vec3{}, &refError{from, id, "VERTEX_POINT"}
	}
	return t.point(id, pt)
}

func (t *tessellator) direction(from, id int, fallback Vec3) (Vec3, error) {
	if id == 0 {
		return fallback, nil
	}
	d, ok := t.store.Directions[id]
	if !ok {
		return Vec3{}, &refError{from, id, "DIRECTION"}
	}
	if d = normalize(d); d == (Vec3{}) {
		return fallback, nil
	}
	return d, nil
}

// frame is an orthonormal placement
type frame struct {
	origin Vec3
	x, y   Vec3
	z      Vec3
}

func (t *tessellator) frame(from, id int) (frame, error) {
	pl, ok := t.store.Placements[id]
	if !ok {
		return frame{}, &refError{from, id, "AXIS2_PLACEMENT_3D"}
	}
	origin, err := t.point(id, pl.Location)
	if err != nil {
		return frame{}, err
	}
	z, err := t.direction(id, pl.Axis, Vec3{0, 0, 1})
	if err != nil {
		return frame{}, err
	}
	x, err := t.direction(id, pl.RefDirection, Vec3{1, 0, 0})
	if err != nil {
		return frame{}, err
	}
	x = normalize(sub(x, scale(z, dot(x, z))))
	if x == (Vec3{}) {
		x = normalize(sub(Vec3{0, 1, 0}, scale(z, z[1])))
		if x == (Vec3{}) {
			x = normalize(sub(Vec3{1, 0, 0}, scale(z, z[0])))
		}
	}
	return frame{origin: origin, x: x, y: cross(z, x), z: z}, nil
}

// loop returns the points of an edge loop in traversal order. Each edge
// contributes its start point; circular arcs add intermediate points.
func (t *tessellator) loop(face, id int) ([]Vec3, error) {
	edges, ok := t.store.EdgeLoops[id]
	if !ok {
		return nil, &refError{face, id, "EDGE_LOOP"}
	}

	var points []Vec3
	for _, oeID := range edges {
		oe, ok := t.store.OrientedEdges[oeID]
		if !ok {
			return nil, &refError{id, oeID, "ORIENTED_EDGE"}
		}
		ec, ok := t.store.EdgeCurves[oe.Edge]
		if !ok {
			return nil, &refError{oeID, oe.Edge, "EDGE_CURVE"}
		}
		start, err := t.vertex(oe.Edge, ec.Start)
		if err != nil {
			return nil, err
		}
		end, err := t.vertex(oe.Edge, ec.End)
		if err != nil {
			return nil, err
		}
		if !oe.Orientation {
			start, end = end, start
		}

		switch {
		case isLine(t.store, ec.Curve):
			points = append(points, start)
		case isCircle(t.store, ec.Curve):
			c := t.store.Circles[ec.Curve]
			f, err := t.frame(ec.Curve, c.Position)
			if err != nil {
				return nil, err
			}
			points = append(points, arc(f, c.Radius, start, end, ec.SameSense == oe.Orientation)...)
		default:
			return nil, &unsupportedError{face, fmt.Sprintf("edge curve #%d is a %s", ec.Curve, t.typeName(ec.Curve))}
		}
	}
	return dedupe(points), nil
}

func isLine(s *Store, id int) bool {
	_, ok := s.Lines[id]
	return ok
}

func isCircle(s *Store, id int) bool {
	_, ok := s.Circles[id]
	return ok
}

// arc samples a circular arc from start towards end, excluding end. A
// closed edge (start == end) yields the full circle.
func arc(f frame, radius float64, start, end Vec3, ccw bool) []Vec3 {
	angle := func(p Vec3) float64 {
		d := sub(p, f.origin)
		return math.Atan2(dot(d, f.y), dot(d, f.x))
	}
	a0, a1 := angle(start), angle(end)

	sweep := a1 - a0
	if ccw {
		for sweep <= 1e-9 {
			sweep += 2 * math.Pi
		}
	} else {
		for sweep >= -1e-9 {
			sweep -= 2 * math.Pi
		}
	}
	if distance(start, end) < 1e-9 {
		sweep = math.Copysign(2*math.Pi, sweep)
	}

	n := int(math.Ceil(math.Abs(sweep) / (2 * math.Pi) * CircleSegments))
	n = max(n, 1)
	out := make([]Vec3, 0, n)
	out = append(out, start)
	for k := 1; k < n; k++ {
		a := a0 + sweep*float64(k)/float64(n)
		p := add(f.origin, add(scale(f.x, radius*math.Cos(a)), scale(f.y, radius*math.Sin(a))))
		out = append(out, p)
	}
	return out
}

// face tessellates one planar face. Bounds are wound counterclockwise
// about the face normal for the outer loop and clockwise for holes, then
// holes are bridged into the outer loop and the result ear clipped.
func (t *tessellator) face(id int) ([]geometry.Triangle, error) {
	f, ok := t.store.Faces[id]
	if !ok {
		return nil, &unsupportedError{id, "not a face entity"}
	}
	plane, ok := t.store.Planes[f.Surface]
	if !ok {
		if _, exists := t.store.Entity(f.Surface); !exists {
			return nil, &refError{id, f.Surface, "surface"}
		}
		return nil, &unsupportedError{id, fmt.Sprintf("surface #%d is a %s", f.Surface, t.typeName(f.Surface))}
	}
	fr, err := t.frame(f.Surface, plane.Position)
	if err != nil {
		return nil, err
	}
	normal := fr.z
	if !f.SameSense {
		normal = scale(normal, -1)
	}

	var outer []Vec3
	var holes [][]Vec3
	outerArea := -1.0
	for _, boundID := range f.Bounds {
		b, ok := t.store.FaceBounds[boundID]
		if !ok {
			return nil, &refError{id, boundID, "FACE_BOUND"}
		}
		pts, err := t.loop(boundID, b.Loop)
		if err != nil {
			if u, ok := err.(*unsupportedError); ok {
				u.face = id
			}
			return nil, err
		}
		if len(pts) < 3 {
			return nil, &unsupportedError{id, fmt.Sprintf("bound #%d has %d distinct points", boundID, len(pts))}
		}
		if !b.Orientation {
			reverse(pts)
		}
		area := math.Abs(signedArea(pts, normal))
		switch {
		case b.Outer && outerArea < math.Inf(1):
			if outer != nil {
				holes = append(holes, outer)
			}
			outer, outerArea = pts, math.Inf(1)
		case area > outerArea:
			if outer != nil {
				holes = append(holes, outer)
			}
			outer, outerArea = pts, area
		default:
			holes = append(holes, pts)
		}
	}
	if outer == nil {
		return nil, &unsupportedError{id, "face has no bounds"}
	}

	if signedArea(outer, normal) < 0 {
		reverse(outer)
	}
	loops := make([][]geometry.Vector3, 0, len(holes))
	for _, h := range holes {
		if signedArea(h, normal) > 0 {
			reverse(h)
		}
		loops = append(loops, toVectors(h))
	}

	n := toVector(normal)
	polygon := geometry.BridgeHoles(toVectors(outer), loops)
	indices := geometry.TriangulatePolygon(polygon, n)
	out := make([]geometry.Triangle, 0, len(indices))
	for _, idx := range indices {
		out = append(out, geometry.NewTriangle(n, polygon[idx[0]], polygon[idx[1]], polygon[idx[2]]))
	}
	return out, nil
}

// signedArea is the polygon area projected onto normal, positive for
// counterclockwise winding
func signedArea(pts []Vec3, normal Vec3) float64 {
	var sum Vec3
	for i := range pts {
		sum = add(sum, cross(pts[i], pts[(i+1)%len(pts)]))
	}
	return dot(sum, normal) / 2
}

// dedupe drops consecutive duplicates and a closing point equal to the
// first
func dedupe(pts []Vec3) []Vec3 {
	out := pts[:0]
	for _, p := range pts {
		if len(out) > 0 && distance(out[len(out)-1], p) < 1e-9 {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && distance(out[0], out[len(out)-1]) < 1e-9 {
		out = out[:len(out)-1]
	}
	return out
}

func reverse(pts []Vec3) {
	for i, j := 0, len(pts)-1; i < j; i, j = i+1, j-1 {
		pts[i], pts[j] = pts[j], pts[i]
	}
}

func toVector(v Vec3) geometry.Vector3 {
	return geometry.Vector3{X: float32(v[0]), Y: float32(v[1]), Z: float32(v[2])}
}

func toVectors(pts []Vec3) []geometry.Vector3 {
	out := make([]geometry.Vector3, len(pts))
	for i, p := range pts {
		out[i] = toVector(p)
	}
	return out
}

func add(a, b Vec3) Vec3 { return Vec3{a[0] + b[0], a[1] + b[1], a[2] + b[2]} }

func sub(a, b Vec3) Vec3 { return Vec3{a[0] - b[0], a[1] - b[1], a[2] - b[2]} }

func scale(a Vec3, s float64) Vec3 { return Vec3{a[0] * s, a[1] * s, a[2] * s} }

func dot(a, b Vec3) float64 { return a[0]*b[0] + a[1]*b[1] + a[2]*b[2] }

func cross(a, b Vec3) Vec3 {
	return Vec3{
		a[1]*b[2] - a[2]*b[1],
		a[2]*b[0] - a[0]*b[2],
		a[0]*b[1] - a[1]*b[0],
	}
}

func distance(a, b Vec3) float64 { return math.Sqrt(dot(sub(a, b), sub(a, b))) }

func normalize(a Vec3) Vec3 {
	l := math.Sqrt(dot(a, a))
	if l == 0 {
		return Vec3{}
	}
	return scale(a, 1/l)
}
