package parse

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// Strategy selects how a binary STL triangle block is decoded
type Strategy int

const (
	// StrategyAuto picks a strategy from the declared triangle count
	StrategyAuto Strategy = iota
	// StrategyScalar decodes record by record into triangle objects
	StrategyScalar
	// StrategyBulk decodes the whole block at once and builds triangle
	// objects on a worker pool
	StrategyBulk
	// StrategyFlat decodes the whole block into flat vertex/normal arrays
	StrategyFlat
)

// String returns the strategy name used in flags and config files
func (s Strategy) String() string {
	switch s {
	case StrategyScalar:
		return "scalar"
	case StrategyBulk:
		return "bulk"
	case StrategyFlat:
		return "flat"
	default:
		return "auto"
	}
}

// ParseStrategy maps a strategy name to a Strategy
func ParseStrategy(name string) (Strategy, error) {
	switch name {
	case "", "auto":
		return StrategyAuto, nil
	case "scalar":
		return StrategyScalar, nil
	case "bulk":
		return StrategyBulk, nil
	case "flat":
		return StrategyFlat, nil
	default:
		return StrategyAuto, fmt.Errorf("unknown strategy %q (expected auto, scalar, bulk or flat)", name)
	}
}

// Default thresholds. They tune performance only; every strategy produces
// the same triangles and bounds.
const (
	DefaultScalarMaxTriangles    = 20_000
	DefaultFlatArrayMinTriangles = 2_000_000
	DefaultMaxTriangles          = 100_000_000
	DefaultChunkRows             = 65_536
	DefaultPollInterval          = 10_000
	DefaultOBJStreamBytes        = 64 << 20
	DefaultSTEPMaxBytes          = 1 << 30
)

// Options tunes parser behavior. The zero value is valid; unset fields
// fall back to the defaults above.
type Options struct {
	Strategy              Strategy
	ScalarMaxTriangles    int
	FlatArrayMinTriangles int
	MaxTriangles          int
	ChunkRows             int
	Workers               int
	PollInterval          int
	OBJStreamBytes        int64
	STEPMaxBytes          int64
	Logger                *zap.Logger
}

// DefaultOptions returns options with every default filled in
func DefaultOptions() Options {
	return Options{}.Normalize()
}

// Normalize fills unset fields with their defaults
func (o Options) Normalize() Options {
	if o.ScalarMaxTriangles <= 0 {
		o.ScalarMaxTriangles = DefaultScalarMaxTriangles
	}
	if o.FlatArrayMinTriangles <= 0 {
		o.FlatArrayMinTriangles = DefaultFlatArrayMinTriangles
	}
	if o.MaxTriangles <= 0 {
		o.MaxTriangles = DefaultMaxTriangles
	}
	if o.ChunkRows <= 0 {
		o.ChunkRows = DefaultChunkRows
	}
	if o.Workers <= 0 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
	if o.PollInterval <= 0 {
		o.PollInterval = DefaultPollInterval
	}
	if o.OBJStreamBytes <= 0 {
		o.OBJStreamBytes = DefaultOBJStreamBytes
	}
	if o.STEPMaxBytes <= 0 {
		o.STEPMaxBytes = DefaultSTEPMaxBytes
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// SelectStrategy resolves StrategyAuto for a block of n triangles
func (o Options) SelectStrategy(n int) Strategy {
	if o.Strategy != StrategyAuto {
		return o.Strategy
	}
	switch {
	case n >= o.FlatArrayMinTriangles:
		return StrategyFlat
	case n >= o.ScalarMaxTriangles:
		return StrategyBulk
	default:
		return StrategyScalar
	}
}
