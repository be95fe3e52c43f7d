package step

import (
	"fmt"
	"sort"
)

// Vec3 is a double precision point or direction
type Vec3 [3]float64

// Entity is one instance record of the DATA section
type Entity struct {
	ID int
	// Type is the upper case entity name, empty for complex records
	Type   string
	Params []Value
	// Parts holds the typed partial records of a complex record
	Parts []Value
	Line  int
}

// Placement is an AXIS2_PLACEMENT_3D. Axis and RefDirection are 0 when
// unset.
type Placement struct {
	Location     int
	Axis         int
	RefDirection int
}

// VectorDef is a VECTOR entity
type VectorDef struct {
	Direction int
	Magnitude float64
}

// Line is a LINE curve
type Line struct {
	Point  int
	Vector int
}

// Circle is a CIRCLE curve
type Circle struct {
	Position int
	Radius   float64
}

// Plane is a PLANE surface
type Plane struct {
	Position int
}

// EdgeCurve is an EDGE_CURVE between two VERTEX_POINTs
type EdgeCurve struct {
	Start     int
	End       int
	Curve     int
	SameSense bool
}

// OrientedEdge is an ORIENTED_EDGE
type OrientedEdge struct {
	Edge        int
	Orientation bool
}

// FaceBound is a FACE_BOUND or FACE_OUTER_BOUND
type FaceBound struct {
	Loop        int
	Orientation bool
	Outer       bool
}

// Face is an ADVANCED_FACE or FACE_SURFACE
type Face struct {
	Bounds    []int
	Surface   int
	SameSense bool
}

// Store is the entity table of one file, with the entity types used for
// tessellation indexed into typed tables
type Store struct {
	entities map[int]*Entity
	byType   map[string][]int

	Points        map[int]Vec3
	Directions    map[int]Vec3
	Vectors       map[int]VectorDef
	Placements    map[int]Placement
	Lines         map[int]Line
	Circles       map[int]Circle
	Planes        map[int]Plane
	VertexPoints  map[int]int
	EdgeCurves    map[int]EdgeCurve
	OrientedEdges map[int]OrientedEdge
	EdgeLoops     map[int][]int
	FaceBounds    map[int]FaceBound
	Faces         map[int]Face
}

func newStore() *Store {
	return &Store{
		entities:      map[int]*Entity{},
		byType:        map[string][]int{},
		Points:        map[int]Vec3{},
		Directions:    map[int]Vec3{},
		Vectors:       map[int]VectorDef{},
		Placements:    map[int]Placement{},
		Lines:         map[int]Line{},
		Circles:       map[int]Circle{},
		Planes:        map[int]Plane{},
		VertexPoints:  map[int]int{},
		EdgeCurves:    map[int]EdgeCurve{},
		OrientedEdges: map[int]OrientedEdge{},
		EdgeLoops:     map[int][]int{},
		FaceBounds:    map[int]FaceBound{},
		Faces:         map[int]Face{},
	}
}

// Len returns the number of entities
func (s *Store) Len() int {
	return len(s.entities)
}

// Entity looks up an entity by id
func (s *Store) Entity(id int) (*Entity, bool) {
	e, ok := s.entities[id]
	return e, ok
}

// IDs returns the ids of all entities of a type in file order
func (s *Store) IDs(typeName string) []int {
	return s.byType[typeName]
}

// TypeCounts returns the number of entities per type. Complex records
// are counted under their part types.
func (s *Store) TypeCounts() map[string]int {
	counts := make(map[string]int, len(s.byType))
	for t, ids := range s.byType {
		counts[t] = len(ids)
	}
	return counts
}

// Types returns the entity type names in sorted order
func (s *Store) Types() []string {
	types := make([]string, 0, len(s.byType))
	for t := range s.byType {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// fieldError reports a parameter that does not match its entity schema
type fieldError struct {
	index    int
	expected string
	found    string
}

func (e *fieldError) Error() string {
	return fmt.Sprintf("parameter %d: expected %s, found %s", e.index+1, e.expected, e.found)
}

func describe(params []Value, i int) string {
	if i >= len(params) {
		return "nothing"
	}
	return params[i].Kind.String() + " " + params[i].String()
}

func ref(params []Value, i int) (int, error) {
	if i < len(params) && params[i].Kind == KindRef {
		return params[i].Ref, nil
	}
	return 0, &fieldError{i, "entity reference", describe(params, i)}
}

func optRef(params []Value, i int) (int, error) {
	if i < len(params) && !params[i].IsSet() {
		return 0, nil
	}
	return ref(params, i)
}

// num accepts a plain number or a typed measure such as
// POSITIVE_LENGTH_MEASURE(2.)
func num(params []Value, i int) (float64, error) {
	if i < len(params) {
		v := params[i]
		if v.Kind == KindTyped && len(v.List) == 1 {
			v = v.List[0]
		}
		if v.Kind == KindNumber {
			return v.Num, nil
		}
	}
	return 0, &fieldError{i, "number", describe(params, i)}
}

func boolean(params []Value, i int) (bool, error) {
	if i < len(params) {
		if b, ok := params[i].Bool(); ok {
			return b, nil
		}
	}
	return false, &fieldError{i, "boolean .T. or .F.", describe(params, i)}
}

func refList(params []Value, i int) ([]int, error) {
	if i >= len(params) || params[i].Kind != KindList {
		return nil, &fieldError{i, "list of entity references", describe(params, i)}
	}
	out := make([]int, len(params[i].List))
	for k, v := range params[i].List {
		if v.Kind != KindRef {
			return nil, &fieldError{i, "list of entity references", describe(params, i)}
		}
		out[k] = v.Ref
	}
	return out, nil
}

// coords reads a list of one to three numbers, padding with zeros
func coords(params []Value, i int) (Vec3, error) {
	var c Vec3
	if i >= len(params) || params[i].Kind != KindList || len(params[i].List) == 0 || len(params[i].List) > 3 {
		return c, &fieldError{i, "list of 1 to 3 numbers", describe(params, i)}
	}
	for k, v := range params[i].List {
		if v.Kind != KindNumber {
			return c, &fieldError{i, "list of 1 to 3 numbers", describe(params, i)}
		}
		c[k] = v.Num
	}
	return c, nil
}

// add stores an entity and indexes it into the typed tables
func (s *Store) add(e *Entity) error {
	if _, dup := s.entities[e.ID]; dup {
		return fmt.Errorf("duplicate entity id #%d", e.ID)
	}
	s.entities[e.ID] = e

	if e.Type == "" {
		for _, part := range e.Parts {
			s.byType[part.Str] = append(s.byType[part.Str], e.ID)
		}
		return nil
	}
	s.byType[e.Type] = append(s.byType[e.Type], e.ID)
	return s.index(e)
}

func (s *Store) index(e *Entity) error {
	p := e.Params
	var err error
	switch e.Type {
	case "CARTESIAN_POINT":
		var c Vec3
		if c, err = coords(p, 1); err == nil {
			s.Points[e.ID] = c
		}
	case "DIRECTION":
		var c Vec3
		if c, err = coords(p, 1); err == nil {
			s.Directions[e.ID] = c
		}
	case "VECTOR":
		var v VectorDef
		if v.Direction, err = ref(p, 1); err == nil {
			if v.Magnitude, err = num(p, 2); err == nil {
				s.Vectors[e.ID] = v
			}
		}
	case "AXIS2_PLACEMENT_3D":
		var pl Placement
		if pl.Location, err = ref(p, 1); err != nil {
			break
		}
		if pl.Axis, err = optRef(p, 2); err != nil {
			break
		}
		if pl.RefDirection, err = optRef(p, 3); err == nil {
			s.Placements[e.ID] = pl
		}
	case "LINE":
		var l Line
		if l.Point, err = ref(p, 1); err == nil {
			if l.Vector, err = ref(p, 2); err == nil {
				s.Lines[e.ID] = l
			}
		}
	case "CIRCLE":
		var c Circle
		if c.Position, err = ref(p, 1); err == nil {
			if c.Radius, err = num(p, 2); err == nil {
				s.Circles[e.ID] = c
			}
		}
	case "PLANE":
		var pl Plane
		if pl.Position, err = ref(p, 1); err == nil {
			s.Planes[e.ID] = pl
		}
	case "VERTEX_POINT":
		var pt int
		if pt, err = ref(p, 1); err == nil {
			s.VertexPoints[e.ID] = pt
		}
	case "EDGE_CURVE":
		var ec EdgeCurve
		if ec.Start, err = ref(p, 1); err != nil {
			break
		}
		if ec.End, err = ref(p, 2); err != nil {
			break
		}
		if ec.Curve, err = ref(p, 3); err != nil {
			break
		}
		if ec.SameSense, err = boolean(p, 4); err == nil {
			s.EdgeCurves[e.ID] = ec
		}
	case "ORIENTED_EDGE":
		var oe OrientedEdge
		if oe.Edge, err = ref(p, 3); err == nil {
			if oe.Orientation, err = boolean(p, 4); err == nil {
				s.OrientedEdges[e.ID] = oe
			}
		}
	case "EDGE_LOOP":
		var edges []int
		if edges, err = refList(p, 1); err == nil {
			s.EdgeLoops[e.ID] = edges
		}
	case "FACE_BOUND", "FACE_OUTER_BOUND":
		fb := FaceBound{Outer: e.Type == "FACE_OUTER_BOUND"}
		if fb.Loop, err = ref(p, 1); err == nil {
			if fb.Orientation, err = boolean(p, 2); err == nil {
				s.FaceBounds[e.ID] = fb
			}
		}
	case "ADVANCED_FACE", "FACE_SURFACE":
		var f Face
		if f.Bounds, err = refList(p, 1); err != nil {
			break
		}
		if f.Surface, err = ref(p, 2); err != nil {
			break
		}
		if f.SameSense, err = boolean(p, 3); err == nil {
			s.Faces[e.ID] = f
		}
	}
	return err
}

// FaceIDs returns the ids of every face entity in file order
func (s *Store) FaceIDs() []int {
	ids := append([]int(nil), s.byType["ADVANCED_FACE"]...)
	ids = append(ids, s.byType["FACE_SURFACE"]...)
	sort.Ints(ids)
	return ids
}
