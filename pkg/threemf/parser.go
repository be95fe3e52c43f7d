// Package threemf reads the core mesh content of 3MF packages: objects,
// component assemblies and the build item list.
package threemf

import (
	"archive/zip"
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/detect"
	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// Parser decodes 3MF packages
type Parser struct {
	opts parse.Options
}

var _ parse.Parser = (*Parser)(nil)

// New creates a 3MF parser
func New(opts parse.Options) *Parser {
	return &Parser{opts: opts.Normalize()}
}

// Format implements parse.Parser
func (p *Parser) Format() mesh.Format {
	return mesh.Format3MF
}

// countingReader tracks how many bytes of the model part were read
type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.n += int64(n)
	return n, err
}

// open decodes the model part of the package at path
func (p *Parser) open(ctx context.Context, path string, withGeometry bool, progress parse.Progress) (*Document, error) {
	if _, err := parse.Stat(path); err != nil {
		return nil, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, parse.Formatf(path, "not a ZIP archive").Wrap(err)
	}
	defer zr.Close()

	entry := findModel(zr.File)
	if entry == nil {
		return nil, parse.Formatf(path, "archive has no %s entry", detect.ThreeMFModelPath)
	}
	rc, err := entry.Open()
	if err != nil {
		return nil, parse.Parsef(path, "failed to open %s", entry.Name).Wrap(err)
	}
	defer rc.Close()

	cr := &countingReader{r: rc}
	total := int64(entry.UncompressedSize64)
	return decodeDocument(ctx, cr, path, p.opts, withGeometry, func() {
		progress.Report(parse.Percent(cr.n, total)*0.8, "reading model")
	})
}

// findModel returns the model part. Entry names are matched
// case-insensitively since some writers vary the case.
func findModel(files []*zip.File) *zip.File {
	for _, f := range files {
		if f.Name == detect.ThreeMFModelPath {
			return f
		}
	}
	for _, f := range files {
		if strings.EqualFold(strings.TrimPrefix(f.Name, "/"), detect.ThreeMFModelPath) {
			return f
		}
	}
	return nil
}

// Parse implements parse.Parser. Each build item emits its object's
// triangles with the item transform applied; component assemblies are
// expanded recursively with the transforms composed child first.
func (p *Parser) Parse(ctx context.Context, path string, progress parse.Progress) (*mesh.Model, error) {
	started := time.Now()
	fi, err := parse.Stat(path)
	if err != nil {
		return nil, err
	}

	doc, err := p.open(ctx, path, true, progress)
	if err != nil {
		return nil, err
	}

	total, err := p.emitted(path, doc)
	if err != nil {
		return nil, err
	}

	e := &emitter{
		ctx:       ctx,
		path:      path,
		doc:       doc,
		poll:      p.opts.PollInterval,
		total:     total,
		progress:  progress,
		triangles: make([]geometry.Triangle, 0, total),
	}
	for _, item := range doc.Build {
		if err := e.emit(doc.Objects[item.ObjectID], item.Transform); err != nil {
			return nil, err
		}
	}
	if err := parse.Check(ctx, path); err != nil {
		return nil, err
	}

	var stats mesh.Stats
	stats.SetBounds(mesh.TriangleBounds(e.triangles))
	parse.Finish(&stats, mesh.Format3MF, fi, started)
	model := mesh.NewObjectList(doc.Title(), e.triangles, stats)

	progress.Report(100, "done")
	p.opts.Logger.Debug("parsed 3MF",
		zap.String("path", path),
		zap.String("unit", doc.Unit),
		zap.Int("objects", len(doc.Objects)),
		zap.Int("items", len(doc.Build)),
		zap.Int("triangles", model.TriangleCount()),
		zap.Duration("duration", stats.ParseDuration),
	)
	return model, nil
}

// emitted counts the triangles the build emits, failing with a resource
// error once the count passes MaxTriangles
func (p *Parser) emitted(path string, doc *Document) (int, error) {
	total, ok := doc.EmittedTriangles(p.opts.MaxTriangles)
	if !ok {
		return 0, parse.Resourcef(path, "build emits more than %d triangles", p.opts.MaxTriangles)
	}
	return total, nil
}

type emitter struct {
	ctx       context.Context
	path      string
	doc       *Document
	poll      int
	total     int
	progress  parse.Progress
	triangles []geometry.Triangle
}

func (e *emitter) emit(obj *Object, m geometry.Mat4) error {
	identity := m.IsIdentity()
	for _, tri := range obj.Triangles {
		v1, v2, v3 := obj.Vertices[tri[0]], obj.Vertices[tri[1]], obj.Vertices[tri[2]]
		if !identity {
			v1, v2, v3 = m.TransformPoint(v1), m.TransformPoint(v2), m.TransformPoint(v3)
		}
		e.triangles = append(e.triangles, geometry.NewTriangle(geometry.FaceNormal(v1, v2, v3), v1, v2, v3))

		if len(e.triangles)%e.poll == 0 {
			if err := parse.Check(e.ctx, e.path); err != nil {
				return err
			}
			e.progress.Report(80+parse.Percent(int64(len(e.triangles)), int64(e.total))*0.2, "building triangles")
		}
	}
	for _, c := range obj.Components {
		if err := e.emit(e.doc.Objects[c.ObjectID], c.Transform.Mul(m)); err != nil {
			return err
		}
	}
	return nil
}

// Validate decodes the model part without keeping geometry and checks
// the object graph
func (p *Parser) Validate(path string) error {
	_, err := p.open(context.Background(), path, false, nil)
	return err
}

// Info reports the unit, title, object count and the number of triangles
// the build emits
func (p *Parser) Info(path string) (*parse.Info, error) {
	fi, err := parse.Stat(path)
	if err != nil {
		return nil, err
	}
	doc, err := p.open(context.Background(), path, false, nil)
	if err != nil {
		return nil, err
	}

	info := parse.NewInfo(path, mesh.Format3MF, fi)
	info.Encoding = "zip+xml"
	info.Header = doc.Title()
	if info.TriangleCount, err = p.emitted(path, doc); err != nil {
		return nil, err
	}
	info.Details["unit"] = doc.Unit
	info.Details["objects"] = strconv.Itoa(len(doc.Objects))
	info.Details["items"] = strconv.Itoa(len(doc.Build))
	for _, key := range []string{"Designer", "Application", "CreationDate"} {
		if v := doc.Metadata[key]; v != "" {
			info.Details[strings.ToLower(key)] = v
		}
	}
	return info, nil
}
