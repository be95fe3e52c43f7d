// Package mesh defines the immutable triangle-mesh Model produced by every
// format parser.
package mesh

import "strings"

// Format identifies the source file format of a model
type Format int

const (
	FormatUnknown Format = iota
	FormatSTL
	FormatOBJ
	Format3MF
	FormatSTEP
)

// String returns the display name of the format
func (f Format) String() string {
	switch f {
	case FormatSTL:
		return "STL"
	case FormatOBJ:
		return "OBJ"
	case Format3MF:
		return "3MF"
	case FormatSTEP:
		return "STEP"
	default:
		return "unknown"
	}
}

// ParseFormat maps a format name (case-insensitive) to a Format
func ParseFormat(name string) Format {
	switch strings.ToLower(strings.TrimPrefix(name, ".")) {
	case "stl":
		return FormatSTL
	case "obj":
		return FormatOBJ
	case "3mf":
		return Format3MF
	case "step", "stp":
		return FormatSTEP
	default:
		return FormatUnknown
	}
}
