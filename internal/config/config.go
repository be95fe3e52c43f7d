// Package config handles gomesh configuration loading and management.
package config

import (
	"fmt"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// Config holds all gomesh settings.
type Config struct {
	Parser     ParserConfig     `yaml:"parser"`
	Validation ValidationConfig `yaml:"validation"`
	Logging    LoggingConfig    `yaml:"logging"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Server     ServerConfig     `yaml:"server"`
	Watch      WatchConfig      `yaml:"watch"`
}

// ParserConfig holds strategy thresholds and resource limits.
type ParserConfig struct {
	Strategy              string `yaml:"strategy"`
	ScalarMaxTriangles    int    `yaml:"scalar_max_triangles"`
	FlatArrayMinTriangles int    `yaml:"flat_array_min_triangles"`
	MaxTriangles          int    `yaml:"max_triangles"`
	ChunkRows             int    `yaml:"chunk_rows"`
	Workers               int    `yaml:"workers"` // 0 uses GOMAXPROCS
	OBJStreamBytes        int64  `yaml:"obj_stream_bytes"`
	STEPMaxBytes          int64  `yaml:"step_max_bytes"`
	OpenSCAD              string `yaml:"openscad"` // renderer binary, empty disables .scad input
}

// Validate checks the parser section.
func (c *ParserConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Strategy, validation.In("auto", "scalar", "bulk", "flat")),
		validation.Field(&c.ScalarMaxTriangles, validation.Required, validation.Min(1)),
		validation.Field(&c.FlatArrayMinTriangles, validation.Required, validation.Min(c.ScalarMaxTriangles)),
		validation.Field(&c.MaxTriangles, validation.Required, validation.Min(1)),
		validation.Field(&c.ChunkRows, validation.Required, validation.Min(1)),
		validation.Field(&c.Workers, validation.Min(0)),
		validation.Field(&c.OBJStreamBytes, validation.Required, validation.Min(int64(1))),
		validation.Field(&c.STEPMaxBytes, validation.Required, validation.Min(int64(1))),
	)
}

// ValidationConfig holds geometry validator settings.
type ValidationConfig struct {
	SampleSize int     `yaml:"sample_size"`
	Epsilon    float64 `yaml:"epsilon"`
}

// Validate checks the validation section.
func (c *ValidationConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SampleSize, validation.Required, validation.Min(1)),
		validation.Field(&c.Epsilon, validation.Required, validation.Min(0.0)),
	)
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Validate checks the logging section.
func (c *LoggingConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Level, validation.In("debug", "info", "warn", "error")),
	)
}

// CatalogConfig holds the SQLite catalog location.
type CatalogConfig struct {
	Path string `yaml:"path"`
}

// Validate checks the catalog section.
func (c *CatalogConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int    `yaml:"port"`
	Root string `yaml:"root"` // directory model paths are resolved against
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate checks the server section.
func (c *ServerConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
		validation.Field(&c.Root, validation.Required),
	)
}

// WatchConfig holds file watcher settings.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// Validate checks the watch section.
func (c *WatchConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Required, validation.Min(time.Millisecond)),
	)
}

// Validate checks every section.
func (c *Config) Validate() error {
	sections := []struct {
		name string
		v    validation.Validatable
	}{
		{"parser", &c.Parser},
		{"validation", &c.Validation},
		{"logging", &c.Logging},
		{"catalog", &c.Catalog},
		{"server", &c.Server},
		{"watch", &c.Watch},
	}
	for _, s := range sections {
		if err := s.v.Validate(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}
	return nil
}

// Default returns a Config with the parser defaults filled in.
func Default() *Config {
	return &Config{
		Parser: ParserConfig{
			Strategy:              "auto",
			ScalarMaxTriangles:    parse.DefaultScalarMaxTriangles,
			FlatArrayMinTriangles: parse.DefaultFlatArrayMinTriangles,
			MaxTriangles:          parse.DefaultMaxTriangles,
			ChunkRows:             parse.DefaultChunkRows,
			OBJStreamBytes:        parse.DefaultOBJStreamBytes,
			STEPMaxBytes:          parse.DefaultSTEPMaxBytes,
			OpenSCAD:              "openscad",
		},
		Validation: ValidationConfig{
			SampleSize: analysis.DefaultSampleSize,
			Epsilon:    analysis.DefaultEpsilon,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Catalog: CatalogConfig{
			Path: "gomesh.db",
		},
		Server: ServerConfig{
			Port: 8080,
			Root: ".",
		},
		Watch: WatchConfig{
			Debounce: 300 * time.Millisecond,
		},
	}
}

// ParserOptions converts the parser section into parse.Options.
func (c *Config) ParserOptions(logger *zap.Logger) (parse.Options, error) {
	strategy, err := parse.ParseStrategy(c.Parser.Strategy)
	if err != nil {
		return parse.Options{}, err
	}
	return parse.Options{
		Strategy:              strategy,
		ScalarMaxTriangles:    c.Parser.ScalarMaxTriangles,
		FlatArrayMinTriangles: c.Parser.FlatArrayMinTriangles,
		MaxTriangles:          c.Parser.MaxTriangles,
		ChunkRows:             c.Parser.ChunkRows,
		Workers:               c.Parser.Workers,
		OBJStreamBytes:        c.Parser.OBJStreamBytes,
		STEPMaxBytes:          c.Parser.STEPMaxBytes,
		Logger:                logger,
	}.Normalize(), nil
}

// ValidateOptions converts the validation section for the geometry
// validator.
func (c *Config) ValidateOptions() analysis.ValidateOptions {
	return analysis.ValidateOptions{
		SampleSize: c.Validation.SampleSize,
		Epsilon:    c.Validation.Epsilon,
	}
}
