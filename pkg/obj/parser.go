// Package obj reads Wavefront OBJ files with their MTL material libraries.
package obj

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

const maxLineLength = 4 << 20

// Parser decodes OBJ files
type Parser struct {
	opts parse.Options
}

var _ parse.Parser = (*Parser)(nil)

// New creates an OBJ parser
func New(opts parse.Options) *Parser {
	return &Parser{opts: opts.Normalize()}
}

// Format implements parse.Parser
func (p *Parser) Format() mesh.Format {
	return mesh.FormatOBJ
}

// Parse implements parse.Parser. Files up to OBJStreamBytes are read into
// memory and parsed in two passes; larger files are parsed in one forward
// streaming pass. Both produce the same model.
func (p *Parser) Parse(ctx context.Context, path string, progress parse.Progress) (*mesh.Model, error) {
	started := time.Now()

	f, fi, err := parse.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if fi.Size() == 0 {
		return nil, parse.Parsef(path, "empty file")
	}

	b := newBuilder(ctx, path, fi.Size(), p.opts, progress)
	streaming := fi.Size() > p.opts.OBJStreamBytes
	p.opts.Logger.Debug("parsing OBJ",
		zap.String("path", path),
		zap.Int64("size", fi.Size()),
		zap.Bool("streaming", streaming),
	)

	if streaming {
		err = b.stream(f)
	} else {
		err = b.buffered(f)
	}
	if err != nil {
		return nil, err
	}

	var stats mesh.Stats
	stats.SetBounds(b.bbox)
	parse.Finish(&stats, mesh.FormatOBJ, fi, started)
	b.closeGroup()
	model := mesh.NewObjectList(b.header, b.triangles, stats, mesh.WithMaterials(b.materials, b.groups))

	progress.Report(100, "done")
	p.opts.Logger.Debug("parsed OBJ",
		zap.String("path", path),
		zap.Int("triangles", model.TriangleCount()),
		zap.Int("vertices", len(b.vertices)),
		zap.Int("materials", len(b.materials)),
		zap.Duration("duration", stats.ParseDuration),
	)
	return model, nil
}

// Validate walks the grammar and index references without building
// triangles
func (p *Parser) Validate(path string) error {
	f, fi, err := parse.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if fi.Size() == 0 {
		return parse.Parsef(path, "empty file")
	}

	b := newBuilder(context.Background(), path, fi.Size(), p.opts, nil)
	b.validateOnly = true
	return b.stream(f)
}

// Info counts statements by keyword without parsing numbers
func (p *Parser) Info(path string) (*parse.Info, error) {
	f, fi, err := parse.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := parse.NewInfo(path, mesh.FormatOBJ, fi)
	counts := map[string]int{}
	triangles := 0
	var libs []string

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64<<10), maxLineLength)
	for scanner.Scan() {
		fields := strings.Fields(stripComment(scanner.Text()))
		if len(fields) == 0 {
			continue
		}
		counts[fields[0]]++
		switch fields[0] {
		case "f":
			if len(fields) >= 4 {
				triangles += len(fields) - 3
			}
		case "o":
			if info.Header == "" {
				info.Header = strings.Join(fields[1:], " ")
			}
		case "mtllib":
			libs = append(libs, fields[1:]...)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, parse.Formatf(path, "failed to read file").Wrap(err)
	}

	info.Encoding = "text"
	info.TriangleCount = triangles
	for _, k := range []string{"v", "vn", "vt", "f", "o", "g", "usemtl"} {
		info.Details[k] = strconv.Itoa(counts[k])
	}
	if len(libs) > 0 {
		info.Details["mtllib"] = strings.Join(libs, " ")
	}
	return info, nil
}

// face is a polygon with resolved zero-based indices
type face struct {
	line     int
	vertices []int
	// normal is the first normal index listed on the face, -1 if none
	normal int
}

// builder holds all mutable state of one parse call
type builder struct {
	ctx      context.Context
	path     string
	dir      string
	size     int64
	opts     parse.Options
	progress parse.Progress

	validateOnly bool

	header    string
	vertices  []geometry.Vector3
	normals   []geometry.Vector3
	texcoords int
	faces     []face
	triangles []geometry.Triangle
	bbox      geometry.BoundingBox

	materials  map[string]mesh.Material
	groups     []mesh.MaterialGroup
	current    string
	groupStart int
	// emitted counts triangles as faces are read, so material groups line
	// up in both modes
	emitted int

	read  int64
	lines int
}

func newBuilder(ctx context.Context, path string, size int64, opts parse.Options, progress parse.Progress) *builder {
	return &builder{
		ctx:       ctx,
		path:      path,
		dir:       filepath.Dir(path),
		size:      size,
		opts:      opts,
		progress:  progress,
		bbox:      geometry.NewBoundingBox(),
		materials: map[string]mesh.Material{},
	}
}

// buffered reads every line into memory, records faces in pass 1 and
// triangulates them in pass 2
func (b *builder) buffered(r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return parse.Formatf(b.path, "failed to read file").Wrap(err)
	}

	lines := joinContinuations(bytes.Split(data, []byte{'\n'}))
	for i, line := range lines {
		if err := b.statement(i+1, line, false); err != nil {
			return err
		}
		b.read += int64(len(line)) + 1
		if err := b.poll(0, 50); err != nil {
			return err
		}
	}

	b.triangles = make([]geometry.Triangle, 0, b.emitted)
	for i, f := range b.faces {
		b.triangulate(f)
		if (i+1)%b.opts.PollInterval == 0 {
			if err := parse.Check(b.ctx, b.path); err != nil {
				return err
			}
			b.progress.Report(50+50*float64(i+1)/float64(len(b.faces)), "triangulating faces")
		}
	}
	b.faces = nil
	return parse.Check(b.ctx, b.path)
}

// stream parses in a single forward pass, triangulating faces as they
// are read
func (b *builder) stream(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineLength)

	lineNo := 0
	var pending []byte
	start := 0
	for scanner.Scan() {
		lineNo++
		raw := scanner.Bytes()
		b.read += int64(len(raw)) + 1
		if pending == nil {
			start = lineNo
		}
		if trimmed := bytes.TrimRight(raw, " \t\r"); bytes.HasSuffix(trimmed, []byte{'\\'}) {
			pending = append(pending, trimmed[:len(trimmed)-1]...)
			pending = append(pending, ' ')
			continue
		}
		line := raw
		if pending != nil {
			line = append(pending, raw...)
			pending = nil
		}
		if err := b.statement(start, line, true); err != nil {
			return err
		}
		if err := b.poll(0, 100); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return parse.Parsef(b.path, "failed to read line").AtLine(lineNo + 1).Wrap(err)
	}
	if pending != nil {
		if err := b.statement(start, pending, true); err != nil {
			return err
		}
	}
	return parse.Check(b.ctx, b.path)
}

// poll checks for cancellation and reports read progress scaled into
// [from, to] every PollInterval lines
func (b *builder) poll(from, to float64) error {
	b.lines++
	if b.lines%b.opts.PollInterval != 0 {
		return nil
	}
	if err := parse.Check(b.ctx, b.path); err != nil {
		return err
	}
	b.progress.Report(from+(to-from)*parse.Percent(b.read, b.size)/100, "reading OBJ statements")
	return nil
}

// joinContinuations merges lines ending in a backslash with the next one.
// Each returned entry keeps the line number of its first physical line;
// merged lines leave empty entries behind so numbering is preserved.
func joinContinuations(lines [][]byte) [][]byte {
	for i := 0; i < len(lines)-1; i++ {
		trimmed := bytes.TrimRight(lines[i], " \t\r")
		if !bytes.HasSuffix(trimmed, []byte{'\\'}) {
			continue
		}
		j := i
		joined := append([]byte{}, trimmed[:len(trimmed)-1]...)
		for j+1 < len(lines) {
			j++
			joined = append(joined, ' ')
			next := bytes.TrimRight(lines[j], " \t\r")
			lines[j] = nil
			if bytes.HasSuffix(next, []byte{'\\'}) {
				joined = append(joined, next[:len(next)-1]...)
				continue
			}
			joined = append(joined, next...)
			break
		}
		lines[i] = joined
		i = j
	}
	return lines
}

// statement handles one logical line. With immediate set, faces are
// triangulated right away instead of being recorded.
func (b *builder) statement(lineNo int, line []byte, immediate bool) error {
	fields := strings.Fields(stripComment(string(line)))
	if len(fields) == 0 {
		return nil
	}
	args := fields[1:]

	switch fields[0] {
	case "v":
		v, err := b.vector(lineNo, "v", args, 3)
		if err != nil {
			return err
		}
		b.vertices = append(b.vertices, v)
	case "vn":
		v, err := b.vector(lineNo, "vn", args, 3)
		if err != nil {
			return err
		}
		b.normals = append(b.normals, v)
	case "vt":
		if _, err := b.vector(lineNo, "vt", args, 1); err != nil {
			return err
		}
		b.texcoords++
	case "f":
		f, err := b.face(lineNo, args)
		if err != nil {
			return err
		}
		b.emitted += len(f.vertices) - 2
		switch {
		case b.validateOnly:
		case immediate:
			b.triangulate(f)
		default:
			b.faces = append(b.faces, f)
		}
	case "usemtl":
		b.useMaterial(strings.Join(args, " "))
	case "mtllib":
		if !b.validateOnly {
			b.loadLibraries(args)
		}
	case "o":
		if b.header == "" {
			b.header = strings.Join(args, " ")
		}
	}
	return nil
}

// vector parses at least want and at most three leading numbers
func (b *builder) vector(lineNo int, keyword string, args []string, want int) (geometry.Vector3, error) {
	if len(args) < want {
		return geometry.Vector3{}, parse.Parsef(b.path, "too few coordinates").AtLine(lineNo).
			Expecting(keyword+" with "+strconv.Itoa(want)+" numbers", keyword+" "+strings.Join(args, " "))
	}
	var c [3]float32
	for i := 0; i < len(args) && i < 3; i++ {
		f, err := strconv.ParseFloat(args[i], 32)
		if err != nil {
			return geometry.Vector3{}, parse.Parsef(b.path, "invalid number").AtLine(lineNo).Expecting("number", args[i])
		}
		c[i] = float32(f)
	}
	return geometry.NewVector3(c[0], c[1], c[2]), nil
}

// face parses "f v1[/vt1[/vn1]] ..." and resolves indices against the
// lists read so far
func (b *builder) face(lineNo int, args []string) (face, error) {
	if len(args) < 3 {
		return face{}, parse.Parsef(b.path, "face has too few vertices").AtLine(lineNo).
			Expecting("at least 3 vertices", strconv.Itoa(len(args)))
	}
	f := face{line: lineNo, vertices: make([]int, len(args)), normal: -1}
	for i, token := range args {
		parts := strings.Split(token, "/")
		if len(parts) > 3 {
			return face{}, parse.Parsef(b.path, "malformed face vertex").AtLine(lineNo).Expecting("v/vt/vn", token)
		}
		v, err := b.index(lineNo, parts[0], len(b.vertices), "vertex")
		if err != nil {
			return face{}, err
		}
		f.vertices[i] = v

		if len(parts) > 1 && parts[1] != "" {
			if _, err := b.index(lineNo, parts[1], b.texcoords, "texture coordinate"); err != nil {
				return face{}, err
			}
		}
		if len(parts) > 2 && parts[2] != "" {
			n, err := b.index(lineNo, parts[2], len(b.normals), "normal")
			if err != nil {
				return face{}, err
			}
			if f.normal < 0 {
				f.normal = n
			}
		}
	}
	return f, nil
}

// index resolves a 1-based or negative (relative to the list end) index.
// Only lines read so far count, in buffered mode too, so forward
// references fail the same way in both modes.
func (b *builder) index(lineNo int, token string, n int, what string) (int, error) {
	i, err := strconv.Atoi(token)
	if err != nil {
		return 0, parse.Parsef(b.path, "invalid %s index", what).AtLine(lineNo).Expecting("integer", token)
	}
	resolved := i - 1
	if i < 0 {
		resolved = n + i
	}
	if i == 0 || resolved < 0 || resolved >= n {
		return 0, parse.Parsef(b.path, "%s index out of range", what).AtLine(lineNo).
			Expecting("index in 1.."+strconv.Itoa(n)+" or -1..-"+strconv.Itoa(n), token)
	}
	return resolved, nil
}

// triangulate fans the face from its first vertex. When the face lists
// normals, the first listed normal is used for every triangle of the fan
// even if later corners name different normals; otherwise each triangle
// gets its geometric normal.
func (b *builder) triangulate(f face) {
	for _, idx := range geometry.FanIndices(len(f.vertices)) {
		v1 := b.vertices[f.vertices[idx[0]]]
		v2 := b.vertices[f.vertices[idx[1]]]
		v3 := b.vertices[f.vertices[idx[2]]]

		var normal geometry.Vector3
		if f.normal >= 0 {
			normal = b.normals[f.normal]
		} else {
			normal = geometry.FaceNormal(v1, v2, v3)
		}

		b.bbox.Extend(v1)
		b.bbox.Extend(v2)
		b.bbox.Extend(v3)
		b.triangles = append(b.triangles, geometry.NewTriangle(normal, v1, v2, v3))
	}
}

// useMaterial closes the running material group and opens a new one
func (b *builder) useMaterial(name string) {
	b.closeGroup()
	b.current = name
}

// closeGroup ends the running material group. Triangles emitted before
// the first usemtl belong to no group.
func (b *builder) closeGroup() {
	if b.current != "" && b.emitted > b.groupStart {
		b.groups = append(b.groups, mesh.MaterialGroup{
			Material: b.current,
			Start:    b.groupStart,
			Count:    b.emitted - b.groupStart,
		})
	}
	b.current = ""
	b.groupStart = b.emitted
}

// loadLibraries side-parses material libraries. A missing or unreadable
// library is logged and skipped.
func (b *builder) loadLibraries(names []string) {
	for _, name := range names {
		path := name
		if !filepath.IsAbs(path) {
			path = filepath.Join(b.dir, name)
		}
		if _, err := os.Stat(path); err != nil {
			b.opts.Logger.Warn("material library not found, continuing without it",
				zap.String("obj", b.path),
				zap.String("mtllib", path),
			)
			continue
		}
		materials, err := ParseMTLFile(path)
		if err != nil {
			b.opts.Logger.Warn("failed to parse material library, continuing without it",
				zap.String("obj", b.path),
				zap.String("mtllib", path),
				zap.Error(err),
			)
			continue
		}
		for k, m := range materials {
			b.materials[k] = m
		}
	}
}
