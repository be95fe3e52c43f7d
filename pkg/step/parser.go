// Package step reads the geometry of ISO 10303-21 exchange files. Planar
// faces bounded by lines and circles are tessellated; every other surface
// type is skipped.
package step

import (
	"context"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// headerReadSize bounds how much of a file Info reads
const headerReadSize = 256 << 10

// Header is the content of the HEADER section
type Header struct {
	Description       []string
	Name              string
	TimeStamp         string
	Author            []string
	Organization      []string
	Preprocessor      string
	OriginatingSystem string
	Schemas           []string
}

// Title returns the best display name for the model
func (h Header) Title() string {
	if h.Name != "" {
		return h.Name
	}
	for _, d := range h.Description {
		if d != "" {
			return d
		}
	}
	return ""
}

// File is a decoded exchange file
type File struct {
	Header Header
	Store  *Store
}

// Parser decodes STEP files
type Parser struct {
	opts parse.Options
}

var _ parse.Parser = (*Parser)(nil)

// New creates a STEP parser
func New(opts parse.Options) *Parser {
	return &Parser{opts: opts.Normalize()}
}

// Format implements parse.Parser
func (p *Parser) Format() mesh.Format {
	return mesh.FormatSTEP
}

func (p *Parser) read(path string) ([]byte, os.FileInfo, error) {
	fi, err := parse.Stat(path)
	if err != nil {
		return nil, nil, err
	}
	if fi.Size() > p.opts.STEPMaxBytes {
		return nil, nil, parse.Resourcef(path, "file size %d exceeds limit of %d bytes", fi.Size(), p.opts.STEPMaxBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, parse.Formatf(path, "failed to read file").Wrap(err)
	}
	if len(data) == 0 {
		return nil, nil, parse.Parsef(path, "empty file")
	}
	return data, fi, nil
}

// Parse implements parse.Parser
func (p *Parser) Parse(ctx context.Context, path string, progress parse.Progress) (*mesh.Model, error) {
	started := time.Now()
	data, fi, err := p.read(path)
	if err != nil {
		return nil, err
	}

	file, err := decode(ctx, data, path, p.opts, func(done int) {
		progress.Report(parse.Percent(int64(done), int64(len(data)))*0.6, "reading entities")
	})
	if err != nil {
		return nil, err
	}

	triangles, err := p.tessellate(ctx, path, file.Store, progress)
	if err != nil {
		return nil, err
	}

	var stats mesh.Stats
	stats.SetBounds(mesh.TriangleBounds(triangles))
	parse.Finish(&stats, mesh.FormatSTEP, fi, started)
	model := mesh.NewObjectList(file.Header.Title(), triangles, stats)

	progress.Report(100, "done")
	p.opts.Logger.Debug("parsed STEP",
		zap.String("path", path),
		zap.Int("entities", file.Store.Len()),
		zap.Int("triangles", model.TriangleCount()),
		zap.Duration("duration", stats.ParseDuration),
	)
	return model, nil
}

func (p *Parser) tessellate(ctx context.Context, path string, store *Store, progress parse.Progress) ([]geometry.Triangle, error) {
	t := &tessellator{store: store}
	faces := store.FaceIDs()
	var triangles []geometry.Triangle
	skipped := 0

	for i, id := range faces {
		if err := parse.Check(ctx, path); err != nil {
			return nil, err
		}
		tris, err := t.face(id)
		var unsupported *unsupportedError
		switch {
		case errors.As(err, &unsupported):
			skipped++
			p.opts.Logger.Debug("skipping STEP face", zap.String("path", path), zap.Error(err))
		case err != nil:
			var ref *refError
			line := 0
			if errors.As(err, &ref) {
				if e, ok := store.Entity(ref.from); ok {
					line = e.Line
				}
			}
			return nil, parse.Parsef(path, "unresolved reference").AtLine(line).Wrap(err)
		default:
			triangles = append(triangles, tris...)
		}
		progress.Report(60+parse.Percent(int64(i+1), int64(len(faces)))*0.4, "tessellating faces")
	}

	if skipped > 0 {
		p.opts.Logger.Warn("skipped STEP faces with unsupported geometry",
			zap.String("path", path),
			zap.Int("skipped", skipped),
			zap.Int("faces", len(faces)),
		)
	}
	if len(triangles) == 0 {
		return nil, parse.Formatf(path, "unsupported geometry: none of %d faces is a planar face bounded by lines or circles", len(faces))
	}
	return triangles, nil
}

// Validate tokenizes the file and builds the entity store without
// tessellating
func (p *Parser) Validate(path string) error {
	data, _, err := p.read(path)
	if err != nil {
		return err
	}
	_, err = decode(context.Background(), data, path, p.opts, nil)
	return err
}

// Info reads the HEADER section only. The triangle count is unknown
// without tessellation.
func (p *Parser) Info(path string) (*parse.Info, error) {
	f, fi, err := parse.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, headerReadSize))
	if err != nil {
		return nil, parse.Formatf(path, "failed to read file").Wrap(err)
	}
	r := &reader{path: path, sp: newSplitter(data)}
	if err := r.magic(); err != nil {
		return nil, err
	}
	header, err := r.header()
	if err != nil && len(data) < headerReadSize {
		return nil, err
	}

	info := parse.NewInfo(path, mesh.FormatSTEP, fi)
	info.Encoding = "iso-10303-21"
	info.Header = header.Title()
	if len(header.Schemas) > 0 {
		info.Details["schema"] = strings.Join(header.Schemas, ", ")
	}
	if header.OriginatingSystem != "" {
		info.Details["originating_system"] = header.OriginatingSystem
	}
	if header.Preprocessor != "" {
		info.Details["preprocessor"] = header.Preprocessor
	}
	if len(header.Author) > 0 {
		info.Details["author"] = strings.Join(header.Author, ", ")
	}
	if header.TimeStamp != "" {
		info.Details["timestamp"] = header.TimeStamp
	}
	return info, nil
}

// Decode reads exchange file text into its header and entity store
func Decode(ctx context.Context, data []byte, path string, opts parse.Options) (*File, error) {
	return decode(ctx, data, path, opts.Normalize(), nil)
}

func decode(ctx context.Context, data []byte, path string, opts parse.Options, onProgress func(done int)) (*File, error) {
	r := &reader{path: path, sp: newSplitter(data)}
	if err := r.magic(); err != nil {
		return nil, err
	}
	header, err := r.header()
	if err != nil {
		return nil, err
	}

	store := newStore()
	sections := 0
	count := 0
	for {
		st, ok, err := r.next("DATA;")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		upper := strings.ToUpper(st.text)
		if upper == "END-ISO-10303-21" {
			break
		}
		if upper != "DATA" && !strings.HasPrefix(upper, "DATA(") {
			return nil, parse.Parsef(path, "unexpected statement").AtLine(st.line).Expecting("DATA;", clip(st.text))
		}
		sections++

		for {
			st, ok, err := r.next("ENDSEC;")
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, parse.Parsef(path, "unterminated DATA section").AtLine(r.sp.line).Expecting("ENDSEC;", "EOF")
			}
			if strings.EqualFold(st.text, "ENDSEC") {
				break
			}
			if err := r.record(store, st); err != nil {
				return nil, err
			}

			count++
			if count%opts.PollInterval == 0 {
				if err := parse.Check(ctx, path); err != nil {
					return nil, err
				}
				if onProgress != nil {
					onProgress(r.sp.offset())
				}
			}
		}
	}
	if sections == 0 {
		return nil, parse.Parsef(path, "missing DATA section").Expecting("DATA;", "EOF")
	}
	if err := parse.Check(ctx, path); err != nil {
		return nil, err
	}
	if onProgress != nil {
		onProgress(len(data))
	}
	opts.Logger.Debug("decoded STEP entities",
		zap.String("path", path),
		zap.Int("entities", store.Len()),
		zap.Int("sections", sections),
	)
	return &File{Header: header, Store: store}, nil
}

// reader walks the statements of one file
type reader struct {
	path string
	sp   *splitter
}

// next returns the next statement. A trailing fragment without ';' is a
// parse error.
func (r *reader) next(expected string) (statement, bool, error) {
	st, ok, unterminated := r.sp.next()
	if unterminated {
		return st, false, parse.Parsef(r.path, "unterminated statement").AtLine(st.line).Expecting(expected, clip(st.text))
	}
	return st, ok, nil
}

func (r *reader) magic() error {
	st, ok, _ := r.sp.next()
	if !ok || !strings.EqualFold(st.text, "ISO-10303-21") {
		return parse.Formatf(r.path, "not an ISO-10303-21 exchange file")
	}
	return nil
}

func (r *reader) header() (Header, error) {
	var h Header
	st, ok, err := r.next("HEADER;")
	if err != nil {
		return h, err
	}
	if !ok || !strings.EqualFold(st.text, "HEADER") {
		return h, parse.Parsef(r.path, "missing HEADER section").AtLine(st.line).Expecting("HEADER;", clip(st.text))
	}

	for {
		st, ok, err := r.next("ENDSEC;")
		if err != nil {
			return h, err
		}
		if !ok {
			return h, parse.Parsef(r.path, "unterminated HEADER section").AtLine(r.sp.line).Expecting("ENDSEC;", "EOF")
		}
		if strings.EqualFold(st.text, "ENDSEC") {
			return h, nil
		}

		name, body, ok := splitCall(st.text)
		if !ok {
			return h, parse.Parsef(r.path, "malformed header entity").AtLine(st.line).Expecting("NAME(...)", clip(st.text))
		}
		params, err := parseList(body)
		if err != nil {
			return h, parse.Parsef(r.path, "malformed %s parameters", name).AtLine(st.line).Wrap(err)
		}
		switch name {
		case "FILE_DESCRIPTION":
			h.Description = strings0(params, 0)
		case "FILE_NAME":
			h.Name = string0(params, 0)
			h.TimeStamp = string0(params, 1)
			h.Author = strings0(params, 2)
			h.Organization = strings0(params, 3)
			h.Preprocessor = string0(params, 4)
			h.OriginatingSystem = string0(params, 5)
		case "FILE_SCHEMA":
			h.Schemas = strings0(params, 0)
		}
	}
}

// record parses one "#id = TYPE(params)" instance into the store
func (r *reader) record(store *Store, st statement) error {
	idText, typeName, body, ok := splitRecord(st.text)
	if !ok {
		return parse.Parsef(r.path, "malformed entity record").AtLine(st.line).Expecting("#id = TYPE(...)", clip(st.text))
	}
	id, err := strconv.Atoi(idText)
	if err != nil {
		return parse.Parsef(r.path, "invalid entity id").AtLine(st.line).Expecting("entity id", idText)
	}

	e := &Entity{ID: id, Type: typeName, Line: st.line}
	if typeName == "" {
		e.Parts, err = parseComplex(body)
		for i := range e.Parts {
			e.Parts[i].Str = strings.ToUpper(e.Parts[i].Str)
		}
	} else {
		e.Params, err = parseList(body)
	}
	if err != nil {
		var syn *syntaxError
		if errors.As(err, &syn) {
			return parse.Parsef(r.path, "malformed parameters of #%d", id).AtLine(st.line).Expecting(syn.expected, syn.found)
		}
		return parse.Parsef(r.path, "malformed parameters of #%d", id).AtLine(st.line).Wrap(err)
	}

	if err := store.add(e); err != nil {
		var field *fieldError
		if errors.As(err, &field) {
			return parse.Parsef(r.path, "invalid %s #%d parameter %d", e.Type, id, field.index+1).AtLine(st.line).Expecting(field.expected, field.found)
		}
		return parse.Parsef(r.path, "invalid entity").AtLine(st.line).Wrap(err)
	}
	return nil
}

func string0(params []Value, i int) string {
	if i < len(params) && params[i].Kind == KindString {
		return params[i].Str
	}
	return ""
}

func strings0(params []Value, i int) []string {
	if i >= len(params) || params[i].Kind != KindList {
		return nil
	}
	var out []string
	for _, v := range params[i].List {
		if v.Kind == KindString && v.Str != "" {
			out = append(out, v.Str)
		}
	}
	return out
}

// clip shortens statement text for error messages
func clip(s string) string {
	const limit = 40
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
