package catalog

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/detect"
	"github.com/philipparndt/gomesh/pkg/loader"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// ScanOptions controls a directory scan.
type ScanOptions struct {
	Workers  int
	Validate analysis.ValidateOptions
	// Force parses every file even if its modification time is unchanged
	Force  bool
	Logger *zap.Logger
}

// ScanResult counts what a scan did.
type ScanResult struct {
	Parsed    int64
	Failed    int64
	Unchanged int64
	Ignored   int64
	Removed   int64
}

// NewEntry builds the catalog entry of a parsed model.
func NewEntry(path string, modTime time.Time, m *mesh.Model, report *analysis.Report) Entry {
	stats := m.Stats()
	e := Entry{
		Path:      path,
		Format:    m.Format().String(),
		ModTime:   modTime,
		Size:      int64(stats.FileSize),
		Header:    m.Header(),
		Triangles: stats.TriangleCount,
		Vertices:  stats.VertexCount,
		Min:       [3]float64{float64(stats.MinBounds.X), float64(stats.MinBounds.Y), float64(stats.MinBounds.Z)},
		Max:       [3]float64{float64(stats.MaxBounds.X), float64(stats.MaxBounds.Y), float64(stats.MaxBounds.Z)},
		ParseTime: Millis(stats.ParseDuration.Milliseconds()),
	}
	if report != nil {
		e.Degenerate = report.DegenerateCount
	}
	return e
}

// Scan walks root, parses every recognized model file whose modification
// time differs from the catalog and records the result. Entries below root
// whose file no longer exists are removed. Parse failures are recorded on
// the entry and do not stop the scan; cancellation does.
func Scan(ctx context.Context, cat Catalog, l *loader.Loader, root string, opts ScanOptions) (*ScanResult, error) {
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}

	known, err := cat.ModTimes()
	if err != nil {
		return nil, err
	}

	var res ScanResult
	seen := make(map[string]struct{})

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("scan: walk failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		if gctx.Err() != nil {
			return gctx.Err()
		}
		if d.IsDir() {
			if path != root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			return nil
		}
		seen[path] = struct{}{}

		if mt, ok := known[path]; ok && mt.Equal(fi.ModTime()) && !opts.Force {
			res.Unchanged++
			return nil
		}

		format, err := detect.Detect(path)
		if err != nil || format == mesh.FormatUnknown {
			res.Ignored++
			return nil
		}

		modTime := fi.ModTime()
		g.Go(func() error {
			return scanFile(gctx, cat, l, path, format, modTime, fi.Size(), opts.Validate, logger, &res)
		})
		return nil
	})

	if err := g.Wait(); err != nil {
		return &res, err
	}
	if walkErr != nil {
		return &res, walkErr
	}

	prefix := root + string(filepath.Separator)
	for p := range known {
		if _, ok := seen[p]; ok || !strings.HasPrefix(p, prefix) {
			continue
		}
		if err := cat.Delete(p); err != nil {
			logger.Warn("scan: delete failed", zap.String("path", p), zap.Error(err))
			continue
		}
		res.Removed++
		logger.Debug("scan: removed stale", zap.String("path", p))
	}
	return &res, nil
}

func scanFile(ctx context.Context, cat Catalog, l *loader.Loader, path string, format mesh.Format, modTime time.Time, size int64, vopts analysis.ValidateOptions, logger *zap.Logger, res *ScanResult) error {
	m, err := l.Load(ctx, path, nil)
	if errors.Is(err, parse.ErrCancelled) {
		return err
	}

	var e Entry
	if err != nil {
		atomic.AddInt64(&res.Failed, 1)
		logger.Warn("scan: parse failed", zap.String("path", path), zap.Error(err))
		e = Entry{Path: path, Format: format.String(), ModTime: modTime, Size: size, Error: err.Error()}
	} else {
		atomic.AddInt64(&res.Parsed, 1)
		logger.Debug("scan: parsed", zap.String("path", path), zap.Int("triangles", m.TriangleCount()))
		e = NewEntry(path, modTime, m, analysis.Validate(m, vopts))
	}
	return cat.Upsert(e)
}
