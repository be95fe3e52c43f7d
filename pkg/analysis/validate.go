package analysis

import (
	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
)

// Validator defaults
const (
	DefaultSampleSize = 1000
	DefaultEpsilon    = 1e-10
)

// ValidateOptions bounds the degeneracy check
type ValidateOptions struct {
	// SampleSize is the maximum number of triangles inspected
	SampleSize int
	// Epsilon is the area below which a triangle counts as degenerate
	Epsilon float64
}

// Report is the result of a geometry check
type Report struct {
	VertexCount int
	FaceCount   int
	// EdgeCount is three per face; shared edges are not deduplicated
	EdgeCount int
	Bounds    geometry.BoundingBox

	Sampled          int
	DegenerateCount  int
	DegenerateSample []int
	NonFiniteCount   int

	// Manifold is always true. Establishing it needs an edge adjacency
	// pass that is not performed.
	Manifold bool
}

// Valid reports whether the sample found no degenerate or non-finite
// triangles
func (r *Report) Valid() bool {
	return r.DegenerateCount == 0 && r.NonFiniteCount == 0
}

// Validate collects counts and bounds and samples triangles for
// degeneracy. The sample is spread evenly over the whole model.
func Validate(model *mesh.Model, opts ValidateOptions) *Report {
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Epsilon <= 0 {
		opts.Epsilon = DefaultEpsilon
	}

	stats := model.Stats()
	report := &Report{
		VertexCount: stats.VertexCount,
		FaceCount:   stats.TriangleCount,
		EdgeCount:   3 * stats.TriangleCount,
		Bounds:      model.BoundingBox(),
		Manifold:    true,
	}

	stride := max(1, stats.TriangleCount/opts.SampleSize)
	for i, t := range model.Triangles() {
		if report.Sampled >= opts.SampleSize {
			break
		}
		if i%stride != 0 {
			continue
		}
		report.Sampled++

		if !t.V1.IsFinite() || !t.V2.IsFinite() || !t.V3.IsFinite() {
			report.NonFiniteCount++
			continue
		}
		if t.Area() < opts.Epsilon {
			report.DegenerateCount++
			report.DegenerateSample = append(report.DegenerateSample, i)
		}
	}
	return report
}
