// Package loader detects the format of a model file, dispatches it to the
// matching parser and caches the result by path and modification time.
package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/detect"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/obj"
	"github.com/philipparndt/gomesh/pkg/openscad"
	"github.com/philipparndt/gomesh/pkg/parse"
	"github.com/philipparndt/gomesh/pkg/step"
	"github.com/philipparndt/gomesh/pkg/stl"
	"github.com/philipparndt/gomesh/pkg/threemf"
	"github.com/philipparndt/gomesh/pkg/watcher"
)

// Loader is the entry point for reading models of any supported format
type Loader struct {
	opts     parse.Options
	cache    Cache
	renderer *openscad.Renderer
	parsers  map[mesh.Format]parse.Parser
}

// Option configures a Loader
type Option func(*Loader)

// WithCache enables result caching
func WithCache(cache Cache) Option {
	return func(l *Loader) {
		l.cache = cache
	}
}

// WithRenderer enables loading OpenSCAD sources through r
func WithRenderer(r *openscad.Renderer) Option {
	return func(l *Loader) {
		l.renderer = r
	}
}

// New creates a loader with one parser per format
func New(opts parse.Options, options ...Option) *Loader {
	opts = opts.Normalize()
	l := &Loader{
		opts: opts,
		parsers: map[mesh.Format]parse.Parser{
			mesh.FormatSTL:  stl.New(opts),
			mesh.FormatOBJ:  obj.New(opts),
			mesh.FormatSTEP: step.New(opts),
			mesh.Format3MF:  threemf.New(opts),
		},
	}
	for _, o := range options {
		o(l)
	}
	return l
}

// Options returns the normalized parser options
func (l *Loader) Options() parse.Options {
	return l.opts
}

// Renderer returns the OpenSCAD renderer, nil when .scad input is disabled
func (l *Loader) Renderer() *openscad.Renderer {
	return l.renderer
}

// Parser returns the parser for a format
func (l *Loader) Parser(format mesh.Format) (parse.Parser, error) {
	p, ok := l.parsers[format]
	if !ok {
		return nil, fmt.Errorf("no parser for format %s", format)
	}
	return p, nil
}

// Detect returns the content format of path. Unrecognized content is a
// format error.
func (l *Loader) Detect(path string) (mesh.Format, error) {
	format, err := detect.Detect(path)
	if err != nil {
		return mesh.FormatUnknown, err
	}
	if format == mesh.FormatUnknown {
		return format, parse.Formatf(path, "unrecognized model format")
	}
	return format, nil
}

func (l *Loader) parserFor(path string) (parse.Parser, error) {
	format, err := l.Detect(path)
	if err != nil {
		return nil, err
	}
	return l.Parser(format)
}

// Load parses path, or returns the cached model if the file has not
// changed since it was parsed
func (l *Loader) Load(ctx context.Context, path string, progress parse.Progress) (*mesh.Model, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	fi, err := parse.Stat(abs)
	if err != nil {
		return nil, err
	}

	key := Key{Path: abs, ModTime: fi.ModTime()}
	if l.cache != nil {
		if m, ok := l.cache.Get(key); ok {
			l.opts.Logger.Debug("model cache hit", zap.String("path", abs))
			progress.Report(100, "cached")
			return m, nil
		}
	}

	var model *mesh.Model
	if openscad.IsSource(abs) {
		model, err = l.loadSCAD(ctx, abs, progress)
	} else {
		var p parse.Parser
		if p, err = l.parserFor(abs); err == nil {
			model, err = p.Parse(ctx, abs, progress)
		}
	}
	if err != nil {
		return nil, err
	}

	if l.cache != nil {
		l.cache.Put(key, model)
	}
	return model, nil
}

// loadSCAD renders an OpenSCAD source to a temporary STL and parses it
func (l *Loader) loadSCAD(ctx context.Context, path string, progress parse.Progress) (*mesh.Model, error) {
	if l.renderer == nil {
		return nil, parse.Formatf(path, "OpenSCAD sources need a renderer")
	}

	dir, err := os.MkdirTemp("", "gomesh-scad-")
	if err != nil {
		return nil, parse.Formatf(path, "failed to create temp dir").Wrap(err)
	}
	defer os.RemoveAll(dir)

	out := filepath.Join(dir, "render.stl")
	progress.Report(0, "rendering OpenSCAD source")
	if err := l.renderer.RenderToSTL(ctx, path, out); err != nil {
		if ctx.Err() != nil {
			return nil, parse.Cancelled(path)
		}
		return nil, parse.Formatf(path, "failed to render OpenSCAD source").Wrap(err)
	}
	return l.parsers[mesh.FormatSTL].Parse(ctx, out, progress)
}

// Validate runs the structural check of the detected format
func (l *Loader) Validate(path string) error {
	p, err := l.parserFor(path)
	if err != nil {
		return err
	}
	return p.Validate(path)
}

// Info returns light metadata of the detected format
func (l *Loader) Info(path string) (*parse.Info, error) {
	p, err := l.parserFor(path)
	if err != nil {
		return nil, err
	}
	return p.Info(path)
}

// Invalidate drops cached results for path
func (l *Loader) Invalidate(path string) {
	if l.cache == nil {
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	l.cache.Invalidate(abs)
	l.opts.Logger.Debug("invalidated cached model", zap.String("path", abs))
}

// Sources returns the files whose change affects the model at path: the
// file itself, plus every use/include dependency of an OpenSCAD source
func (l *Loader) Sources(path string) ([]string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	if openscad.IsSource(abs) && l.renderer != nil {
		return l.renderer.ResolveDependencies(abs)
	}
	return []string{abs}, nil
}

// Watch invalidates the cached model of path whenever one of its sources
// changes, then calls onChange with path
func (l *Loader) Watch(fw *watcher.FileWatcher, path string, onChange func(string)) error {
	sources, err := l.Sources(path)
	if err != nil {
		return err
	}
	return fw.Watch(sources, func(string) {
		l.Invalidate(path)
		if onChange != nil {
			onChange(path)
		}
	})
}
