package mesh

import (
	"fmt"
	"iter"
	"time"

	"github.com/philipparndt/gomesh/pkg/geometry"
)

// Stats summarizes a parsed model
type Stats struct {
	VertexCount   int
	TriangleCount int
	MinBounds     geometry.Vector3
	MaxBounds     geometry.Vector3
	FileSize      uint64
	Format        Format
	ParseDuration time.Duration
}

// Bounds returns the stats bounds as a bounding box
func (s Stats) Bounds() geometry.BoundingBox {
	return geometry.BoundingBox{Min: s.MinBounds, Max: s.MaxBounds}
}

// Kind names the representation variant a model holds
type Kind int

const (
	KindMetadataOnly Kind = iota
	KindObjectList
	KindFlatArrays
)

// String returns the display name of the representation kind
func (k Kind) String() string {
	switch k {
	case KindObjectList:
		return "object-list"
	case KindFlatArrays:
		return "flat-arrays"
	default:
		return "metadata-only"
	}
}

// Representation is the geometry payload of a Model. It is one of
// *ObjectList, *FlatArrays or MetadataOnly; consumers switch on the
// concrete type rather than assuming one shape.
type Representation interface {
	Kind() Kind
	representation()
}

// ObjectList holds one Triangle value per facet
type ObjectList struct {
	Triangles []geometry.Triangle
}

// Kind implements Representation
func (*ObjectList) Kind() Kind { return KindObjectList }

func (*ObjectList) representation() {}

// FlatArrays holds per-vertex positions and normals with no triangle
// objects. Vertices[3i:3i+3] form triangle i and Normals repeats the
// facet normal for each of its three vertices.
type FlatArrays struct {
	Vertices []geometry.Vector3
	Normals  []geometry.Vector3
}

// Kind implements Representation
func (*FlatArrays) Kind() Kind { return KindFlatArrays }

func (*FlatArrays) representation() {}

// MetadataOnly carries no geometry, only stats
type MetadataOnly struct{}

// Kind implements Representation
func (MetadataOnly) Kind() Kind { return KindMetadataOnly }

func (MetadataOnly) representation() {}

// Model is a parsed 3D model. It is built once by a parser and never
// mutated afterwards; callers must treat the returned slices as read-only.
type Model struct {
	header         string
	representation Representation
	stats          Stats
	materials      map[string]Material
	groups         []MaterialGroup
}

// Option configures optional model parts at construction time
type Option func(*Model)

// WithMaterials attaches a material library and the usemtl ranges that
// reference it
func WithMaterials(materials map[string]Material, groups []MaterialGroup) Option {
	return func(m *Model) {
		m.materials = materials
		m.groups = groups
	}
}

// NewObjectList creates a model that owns the given triangles. Counts are
// derived from the slice; bounds must already cover every vertex.
func NewObjectList(header string, triangles []geometry.Triangle, stats Stats, opts ...Option) *Model {
	stats.TriangleCount = len(triangles)
	stats.VertexCount = 3 * len(triangles)
	return newModel(header, &ObjectList{Triangles: triangles}, stats, opts)
}

// NewFlatArrays creates a model backed by flat vertex and normal arrays
func NewFlatArrays(header string, vertices, normals []geometry.Vector3, stats Stats, opts ...Option) (*Model, error) {
	if len(vertices)%3 != 0 {
		return nil, fmt.Errorf("flat vertex array length %d is not a multiple of 3", len(vertices))
	}
	if len(normals) != len(vertices) {
		return nil, fmt.Errorf("normal array length %d does not match vertex array length %d", len(normals), len(vertices))
	}
	stats.VertexCount = len(vertices)
	stats.TriangleCount = len(vertices) / 3
	return newModel(header, &FlatArrays{Vertices: vertices, Normals: normals}, stats, opts), nil
}

// NewMetadataOnly creates a model that carries only stats
func NewMetadataOnly(header string, stats Stats) *Model {
	stats.VertexCount = 3 * stats.TriangleCount
	return newModel(header, MetadataOnly{}, stats, nil)
}

func newModel(header string, rep Representation, stats Stats, opts []Option) *Model {
	m := &Model{
		header:         header,
		representation: rep,
		stats:          stats,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Header returns the free-text header or solid/object name
func (m *Model) Header() string {
	return m.header
}

// Format returns the source format
func (m *Model) Format() Format {
	return m.stats.Format
}

// Stats returns the model statistics
func (m *Model) Stats() Stats {
	return m.stats
}

// Representation returns the geometry payload
func (m *Model) Representation() Representation {
	return m.representation
}

// Kind returns the representation variant held by the model
func (m *Model) Kind() Kind {
	return m.representation.Kind()
}

// TriangleCount returns the number of triangles in the model
func (m *Model) TriangleCount() int {
	return m.stats.TriangleCount
}

// Materials returns the material library, if the source format had one
func (m *Model) Materials() map[string]Material {
	return m.materials
}

// MaterialGroups returns the contiguous triangle ranges per material
func (m *Model) MaterialGroups() []MaterialGroup {
	return m.groups
}

// BoundingBox returns the bounding box recorded at parse time
func (m *Model) BoundingBox() geometry.BoundingBox {
	return m.stats.Bounds()
}

// Triangles iterates over every triangle regardless of representation.
// FlatArrays triangles are materialized on the fly with a zero attribute;
// MetadataOnly models yield nothing.
func (m *Model) Triangles() iter.Seq2[int, geometry.Triangle] {
	return func(yield func(int, geometry.Triangle) bool) {
		switch rep := m.representation.(type) {
		case *ObjectList:
			for i, t := range rep.Triangles {
				if !yield(i, t) {
					return
				}
			}
		case *FlatArrays:
			for i := 0; i+2 < len(rep.Vertices); i += 3 {
				t := geometry.Triangle{
					Normal: rep.Normals[i],
					V1:     rep.Vertices[i],
					V2:     rep.Vertices[i+1],
					V3:     rep.Vertices[i+2],
				}
				if !yield(i/3, t) {
					return
				}
			}
		}
	}
}

// SurfaceArea calculates the total surface area of the model
func (m *Model) SurfaceArea() float64 {
	totalArea := 0.0
	for _, triangle := range m.Triangles() {
		totalArea += triangle.Area()
	}
	return totalArea
}

// Volume calculates the volume of a closed mesh using the signed volume method.
// This assumes the mesh is closed and properly oriented.
func (m *Model) Volume() float64 {
	volume := 0.0
	for _, triangle := range m.Triangles() {
		volume += triangle.SignedVolume()
	}
	if volume < 0 {
		return -volume
	}
	return volume
}
