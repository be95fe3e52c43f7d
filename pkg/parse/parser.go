// Package parse holds the contract shared by every format parser:
// cancellation, progress reporting, file checks, the error taxonomy,
// decode strategy thresholds and the ordered row-range worker pool.
package parse

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"time"

	"github.com/philipparndt/gomesh/pkg/mesh"
)

// Parser is implemented by every format parser. A Parser holds only
// configuration; all mutable state is scoped to a single call.
type Parser interface {
	// Format returns the format this parser reads
	Format() mesh.Format
	// Parse fully decodes path. Cancelling ctx aborts with ErrCancelled.
	// On error no model is returned.
	Parse(ctx context.Context, path string, progress Progress) (*mesh.Model, error)
	// Validate performs a structural check without building geometry
	Validate(path string) error
	// Info returns light metadata without a full decode
	Info(path string) (*Info, error)
}

// Info is light metadata gathered without decoding geometry
type Info struct {
	Path     string
	Format   mesh.Format
	Size     int64
	ModTime  time.Time
	Header   string
	Encoding string
	// TriangleCount is the declared or cheaply counted triangle count,
	// -1 when it cannot be known without a full decode
	TriangleCount int
	Details       map[string]string
}

// Stat checks that path exists and is a regular file
func Stat(path string) (fs.FileInfo, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, NotFound(path, err)
		}
		return nil, Formatf(path, "failed to stat file").Wrap(err)
	}
	if info.IsDir() {
		return nil, Formatf(path, "path is a directory")
	}
	return info, nil
}

// Open opens path for reading after the existence check
func Open(path string) (*os.File, fs.FileInfo, error) {
	info, err := Stat(path)
	if err != nil {
		return nil, nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, NotFound(path, err)
		}
		return nil, nil, Formatf(path, "failed to open file").Wrap(err)
	}
	return f, info, nil
}

// NewInfo fills the file-level fields of an Info
func NewInfo(path string, format mesh.Format, fi fs.FileInfo) *Info {
	return &Info{
		Path:          path,
		Format:        format,
		Size:          fi.Size(),
		ModTime:       fi.ModTime(),
		TriangleCount: -1,
		Details:       map[string]string{},
	}
}

// Finish stamps the file-level fields of a model's stats
func Finish(stats *mesh.Stats, format mesh.Format, fi fs.FileInfo, started time.Time) {
	stats.Format = format
	stats.FileSize = uint64(fi.Size())
	stats.ParseDuration = time.Since(started)
}
