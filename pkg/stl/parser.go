// Package stl reads and writes STL files in both the ASCII and the binary
// encoding.
package stl

import (
	"bytes"
	"context"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/detect"
	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// Parser decodes STL files. It is safe for concurrent use; each call keeps
// its own state.
type Parser struct {
	opts parse.Options
}

var _ parse.Parser = (*Parser)(nil)

// New creates an STL parser
func New(opts parse.Options) *Parser {
	return &Parser{opts: opts.Normalize()}
}

// Parse reads an STL file with default options.
// It automatically detects whether the file is ASCII or binary format.
func Parse(path string) (*mesh.Model, error) {
	return New(parse.Options{}).Parse(context.Background(), path, nil)
}

// Format implements parse.Parser
func (p *Parser) Format() mesh.Format {
	return mesh.FormatSTL
}

// Parse implements parse.Parser
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

	sample, err := readSample(f, path)
	if err != nil {
		return nil, err
	}
	r := io.MultiReader(bytes.NewReader(sample), f)

	encoding := detect.SniffSTL(sample, fi.Size())
	p.opts.Logger.Debug("parsing STL",
		zap.String("path", path),
		zap.Int64("size", fi.Size()),
		zap.Stringer("encoding", encoding),
	)

	var res *result
	if encoding == detect.STLASCII {
		res, err = p.parseASCII(ctx, path, r, fi.Size(), progress)
	} else {
		res, err = p.parseBinary(ctx, path, r, fi.Size(), progress)
	}
	if err != nil {
		return nil, err
	}

	var stats mesh.Stats
	stats.SetBounds(res.bbox)
	parse.Finish(&stats, mesh.FormatSTL, fi, started)
	model, err := res.model(stats)
	if err != nil {
		return nil, parse.Parsef(path, "inconsistent geometry").Wrap(err)
	}

	progress.Report(100, "done")
	p.opts.Logger.Debug("parsed STL",
		zap.String("path", path),
		zap.Int("triangles", stats.TriangleCount),
		zap.Stringer("representation", model.Kind()),
		zap.Duration("duration", stats.ParseDuration),
	)
	return model, nil
}

// Validate checks the binary size invariant or walks the ASCII grammar
// without keeping any geometry
func (p *Parser) Validate(path string) error {
	f, fi, err := parse.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if fi.Size() == 0 {
		return parse.Parsef(path, "empty file")
	}
	sample, err := readSample(f, path)
	if err != nil {
		return err
	}

	if detect.SniffSTL(sample, fi.Size()) == detect.STLASCII {
		r := io.MultiReader(bytes.NewReader(sample), f)
		_, _, err := scanASCII(context.Background(), path, r, fi.Size(), p.opts.PollInterval, nil, func(geometry.Triangle) {})
		return err
	}
	_, _, err = p.checkBinary(path, sample, fi.Size())
	return err
}

// Info returns the header, encoding and triangle count. Binary files
// report the declared count; ASCII files are counted by facet keyword.
func (p *Parser) Info(path string) (*parse.Info, error) {
	f, fi, err := parse.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info := parse.NewInfo(path, mesh.FormatSTL, fi)
	if fi.Size() == 0 {
		return nil, parse.Parsef(path, "empty file")
	}
	sample, err := readSample(f, path)
	if err != nil {
		return nil, err
	}

	if detect.SniffSTL(sample, fi.Size()) == detect.STLASCII {
		info.Encoding = detect.STLASCII.String()
		name, count, err := countASCII(io.MultiReader(bytes.NewReader(sample), f))
		if err != nil {
			return nil, parse.Formatf(path, "failed to read file").Wrap(err)
		}
		info.Header = name
		info.TriangleCount = count
		return info, nil
	}

	header, count, err := p.checkBinary(path, sample, fi.Size())
	if err != nil {
		return nil, err
	}
	info.Encoding = detect.STLBinary.String()
	info.Header = header
	info.TriangleCount = count
	info.Details["strategy"] = p.opts.SelectStrategy(count).String()
	return info, nil
}

func readSample(r io.Reader, path string) ([]byte, error) {
	buf := make([]byte, detect.SampleSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, parse.Formatf(path, "failed to read file").Wrap(err)
	}
	return buf[:n], nil
}

// result is the geometry decoded by one call, before stats are final
type result struct {
	header    string
	triangles []geometry.Triangle
	vertices  []geometry.Vector3
	normals   []geometry.Vector3
	flat      bool
	bbox      geometry.BoundingBox
}

func (r *result) model(stats mesh.Stats) (*mesh.Model, error) {
	if r.flat {
		return mesh.NewFlatArrays(r.header, r.vertices, r.normals, stats)
	}
	return mesh.NewObjectList(r.header, r.triangles, stats), nil
}
