package threemf

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// CoreNamespace is the XML namespace of the 3MF core specification
const CoreNamespace = "http://schemas.microsoft.com/3dmanufacturing/core/2015/02"

// DefaultUnit applies when the model element has no unit attribute
const DefaultUnit = "millimeter"

// Document is the decoded model part of a package
type Document struct {
	Unit     string
	Metadata map[string]string
	Objects  map[int]*Object
	Build    []Item
}

// Title returns the Title metadata, falling back to the name of the first
// built object
func (d *Document) Title() string {
	if t := d.Metadata["Title"]; t != "" {
		return t
	}
	for _, item := range d.Build {
		if obj, ok := d.Objects[item.ObjectID]; ok && obj.Name != "" {
			return obj.Name
		}
	}
	return ""
}

// Object is a mesh or a component assembly. Vertices and triangles are
// only kept when the document was decoded with geometry.
type Object struct {
	ID            int
	Name          string
	Type          string
	Vertices      []geometry.Vector3
	Triangles     [][3]int
	VertexCount   int
	TriangleCount int
	Components    []Component
	Line          int
}

// Component places another object inside an assembly
type Component struct {
	ObjectID  int
	Transform geometry.Mat4
	Line      int
}

// Item places an object on the build platform
type Item struct {
	ObjectID  int
	Transform geometry.Mat4
	Line      int
}

// decoder streams the model XML into a Document
type decoder struct {
	ctx      context.Context
	path     string
	opts     parse.Options
	xd       *xml.Decoder
	geometry bool
	onPoll   func()

	doc      *Document
	current  *Object
	sawBuild bool
	elements int
}

func decodeDocument(ctx context.Context, r io.Reader, path string, opts parse.Options, withGeometry bool, onPoll func()) (*Document, error) {
	d := &decoder{
		ctx:      ctx,
		path:     path,
		opts:     opts,
		xd:       xml.NewDecoder(r),
		geometry: withGeometry,
		onPoll:   onPoll,
		doc: &Document{
			Unit:     DefaultUnit,
			Metadata: map[string]string{},
			Objects:  map[int]*Object{},
		},
	}
	if err := d.run(); err != nil {
		return nil, err
	}
	if !d.sawBuild {
		return nil, parse.Parsef(path, "model has no build element").Expecting("<build>", "EOF")
	}
	if err := d.doc.resolve(path); err != nil {
		return nil, err
	}
	return d.doc, nil
}

func (d *decoder) line() int {
	line, _ := d.xd.InputPos()
	return line
}

func (d *decoder) errorf(format string, args ...any) *parse.Error {
	return parse.Parsef(d.path, format, args...).AtLine(d.line())
}

func (d *decoder) run() error {
	root := true
	for {
		tok, err := d.xd.Token()
		if errors.Is(err, io.EOF) {
			if root {
				return parse.Formatf(d.path, "model part is empty")
			}
			return nil
		}
		if err != nil {
			var syn *xml.SyntaxError
			if errors.As(err, &syn) {
				return parse.Parsef(d.path, "malformed XML: %s", syn.Msg).AtLine(syn.Line)
			}
			return parse.Parsef(d.path, "failed to read model part").Wrap(err)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if root {
				if t.Name.Local != "model" || t.Name.Space != CoreNamespace {
					return parse.Formatf(d.path, "root element is not a 3MF core model").
						Expecting("{"+CoreNamespace+"}model", "{"+t.Name.Space+"}"+t.Name.Local)
				}
				root = false
				if unit := attr(t, "unit"); unit != "" {
					d.doc.Unit = unit
				}
				continue
			}
			if t.Name.Space != CoreNamespace {
				if err := d.xd.Skip(); err != nil {
					return d.errorf("malformed XML").Wrap(err)
				}
				continue
			}
			if err := d.start(t); err != nil {
				return err
			}
		case xml.EndElement:
			if t.Name.Space == CoreNamespace && t.Name.Local == "object" && d.current != nil {
				d.doc.Objects[d.current.ID] = d.current
				d.current = nil
			}
		}
	}
}

func (d *decoder) poll() error {
	d.elements++
	if d.elements%d.opts.PollInterval != 0 {
		return nil
	}
	if err := parse.Check(d.ctx, d.path); err != nil {
		return err
	}
	if d.onPoll != nil {
		d.onPoll()
	}
	return nil
}

func (d *decoder) start(t xml.StartElement) error {
	switch t.Name.Local {
	case "metadata":
		if d.current != nil {
			return d.xd.Skip()
		}
		var value string
		if err := d.xd.DecodeElement(&value, &t); err != nil {
			return d.errorf("malformed metadata").Wrap(err)
		}
		if name := attr(t, "name"); name != "" {
			d.doc.Metadata[name] = strings.TrimSpace(value)
		}

	case "object":
		id, err := d.intAttr(t, "id")
		if err != nil {
			return err
		}
		if _, dup := d.doc.Objects[id]; dup {
			return d.errorf("duplicate object id %d", id)
		}
		d.current = &Object{ID: id, Name: attr(t, "name"), Type: attr(t, "type"), Line: d.line()}

	case "vertex":
		if d.current == nil {
			return d.errorf("vertex outside of an object")
		}
		var v [3]float32
		for i, name := range [3]string{"x", "y", "z"} {
			f, err := d.floatAttr(t, name)
			if err != nil {
				return err
			}
			v[i] = float32(f)
		}
		if d.geometry {
			d.current.Vertices = append(d.current.Vertices, geometry.NewVector3(v[0], v[1], v[2]))
		}
		d.current.VertexCount++
		return d.poll()

	case "triangle":
		if d.current == nil {
			return d.errorf("triangle outside of an object")
		}
		var tri [3]int
		for i, name := range [3]string{"v1", "v2", "v3"} {
			idx, err := d.intAttr(t, name)
			if err != nil {
				return err
			}
			tri[i] = idx
		}
		for _, idx := range tri {
			if idx < 0 || idx >= d.current.VertexCount {
				return d.errorf("object %d: triangle vertex index %d out of range", d.current.ID, idx).
					Expecting(fmt.Sprintf("index below %d", d.current.VertexCount), strconv.Itoa(idx))
			}
		}
		if d.geometry {
			d.current.Triangles = append(d.current.Triangles, tri)
		}
		d.current.TriangleCount++
		return d.poll()

	case "component":
		if d.current == nil {
			return d.errorf("component outside of an object")
		}
		id, err := d.intAttr(t, "objectid")
		if err != nil {
			return err
		}
		d.current.Components = append(d.current.Components, Component{
			ObjectID:  id,
			Transform: d.transform(attr(t, "transform")),
			Line:      d.line(),
		})

	case "build":
		d.sawBuild = true

	case "item":
		id, err := d.intAttr(t, "objectid")
		if err != nil {
			return err
		}
		d.doc.Build = append(d.doc.Build, Item{
			ObjectID:  id,
			Transform: d.transform(attr(t, "transform")),
			Line:      d.line(),
		})
	}
	return nil
}

func attr(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name && a.Name.Space == "" {
			return a.Value
		}
	}
	return ""
}

func (d *decoder) intAttr(t xml.StartElement, name string) (int, error) {
	s := attr(t, name)
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, d.errorf("invalid %s attribute of <%s>", name, t.Name.Local).Expecting("integer", strconv.Quote(s))
	}
	return v, nil
}

func (d *decoder) floatAttr(t xml.StartElement, name string) (float64, error) {
	s := attr(t, name)
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, d.errorf("invalid %s attribute of <%s>", name, t.Name.Local).Expecting("number", strconv.Quote(s))
	}
	return v, nil
}

// transform parses the twelve values of a transform attribute. A missing
// or malformed transform is the identity.
func (d *decoder) transform(s string) geometry.Mat4 {
	if s == "" {
		return geometry.Identity()
	}
	m, ok := ParseTransform(s)
	if !ok {
		d.opts.Logger.Debug("ignoring malformed 3MF transform",
			zap.String("path", d.path),
			zap.Int("line", d.line()),
			zap.String("transform", s),
		)
		return geometry.Identity()
	}
	return m
}

// ParseTransform parses "m00 m01 m02 m10 m11 m12 m20 m21 m22 m30 m31 m32"
func ParseTransform(s string) (geometry.Mat4, bool) {
	fields := strings.Fields(s)
	if len(fields) != 12 {
		return geometry.Identity(), false
	}
	var v [12]float64
	for i, f := range fields {
		x, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return geometry.Identity(), false
		}
		v[i] = x
	}
	return geometry.Affine(v), true
}

// resolve checks that every build item and component references a known
// object and that components do not form a cycle
func (doc *Document) resolve(path string) error {
	for _, item := range doc.Build {
		if _, ok := doc.Objects[item.ObjectID]; !ok {
			return parse.Parsef(path, "build item references unknown object %d", item.ObjectID).AtLine(item.Line)
		}
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[int]int, len(doc.Objects))
	var visit func(obj *Object) error
	visit = func(obj *Object) error {
		switch state[obj.ID] {
		case visiting:
			return parse.Parsef(path, "component cycle through object %d", obj.ID).AtLine(obj.Line)
		case done:
			return nil
		}
		state[obj.ID] = visiting
		for _, c := range obj.Components {
			child, ok := doc.Objects[c.ObjectID]
			if !ok {
				return parse.Parsef(path, "component of object %d references unknown object %d", obj.ID, c.ObjectID).AtLine(c.Line)
			}
			if err := visit(child); err != nil {
				return err
			}
		}
		state[obj.ID] = done
		return nil
	}
	for _, obj := range doc.Objects {
		if err := visit(obj); err != nil {
			return err
		}
	}
	return nil
}

// EmittedTriangles returns the number of triangles the build produces,
// counting every component instance. Counting stops at limit: when the
// build emits more, the result is limit+1 and ok is false.
func (doc *Document) EmittedTriangles(limit int) (n int, ok bool) {
	over := limit + 1
	add := func(a, b int) int {
		if a > limit-b {
			return over
		}
		return a + b
	}

	memo := map[int]int{}
	var count func(id int) int
	count = func(id int) int {
		if n, ok := memo[id]; ok {
			return n
		}
		obj := doc.Objects[id]
		n := min(obj.TriangleCount, over)
		for _, c := range obj.Components {
			if n = add(n, count(c.ObjectID)); n == over {
				break
			}
		}
		memo[id] = n
		return n
	}

	total := 0
	for _, item := range doc.Build {
		if total = add(total, count(item.ObjectID)); total == over {
			return over, false
		}
	}
	return total, true
}
