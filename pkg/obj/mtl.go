package obj

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/philipparndt/gomesh/pkg/mesh"
)

// ParseMTLFile reads a material library from disk
func ParseMTLFile(path string) (map[string]mesh.Material, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open material library: %w", err)
	}
	defer f.Close()
	return ParseMTL(f)
}

// ParseMTL reads a material library. Unknown statements are ignored.
func ParseMTL(r io.Reader) (map[string]mesh.Material, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineLength)

	materials := map[string]mesh.Material{}
	var current *mesh.Material
	lineNo := 0

	flush := func() {
		if current != nil {
			materials[current.Name] = *current
		}
	}

	for scanner.Scan() {
		lineNo++
		fields := strings.Fields(stripComment(scanner.Text()))
		if len(fields) == 0 {
			continue
		}

		keyword := fields[0]
		if keyword == "newmtl" {
			flush()
			current = &mesh.Material{Name: strings.Join(fields[1:], " "), Dissolve: 1}
			continue
		}
		if current == nil {
			continue
		}

		var err error
		switch strings.ToLower(keyword) {
		case "ka":
			current.Ambient, err = parseColor(fields[1:])
		case "kd":
			current.Diffuse, err = parseColor(fields[1:])
		case "ks":
			current.Specular, err = parseColor(fields[1:])
		case "ke":
			current.Emissive, err = parseColor(fields[1:])
		case "ns":
			current.Shininess, err = parseScalar(fields[1:])
			current.HasShininess = err == nil
		case "d":
			current.Dissolve, err = parseScalar(lastNumber(fields[1:]))
			current.HasDissolve = err == nil
		case "tr":
			var tr float32
			tr, err = parseScalar(lastNumber(fields[1:]))
			if err == nil && !current.HasDissolve {
				current.Dissolve = 1 - tr
				current.HasDissolve = true
			}
		case "illum":
			var v float32
			v, err = parseScalar(fields[1:])
			current.Illumination = int(v)
			current.HasIllumModel = err == nil
		case "map_ka":
			current.AmbientMap = mapFile(fields[1:])
		case "map_kd":
			current.DiffuseMap = mapFile(fields[1:])
		case "map_ks":
			current.SpecularMap = mapFile(fields[1:])
		case "map_bump", "bump":
			current.BumpMap = mapFile(fields[1:])
		case "map_d":
			current.DissolveMap = mapFile(fields[1:])
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid %s statement: %w", lineNo, keyword, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read material library: %w", err)
	}
	flush()
	return materials, nil
}

func parseScalar(args []string) (float32, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("missing value")
	}
	f, err := strconv.ParseFloat(args[0], 32)
	if err != nil {
		return 0, err
	}
	return float32(f), nil
}

// parseColor reads "r g b". A single value is used for all three channels.
func parseColor(args []string) (mesh.Color, error) {
	var c mesh.Color
	if len(args) == 0 {
		return c, fmt.Errorf("missing color")
	}
	if args[0] == "spectral" || args[0] == "xyz" {
		return c, nil
	}
	for i := range 3 {
		s := args[0]
		if i < len(args) {
			s = args[i]
		}
		f, err := strconv.ParseFloat(s, 32)
		if err != nil {
			return c, err
		}
		c[i] = float32(f)
	}
	return c, nil
}

// lastNumber skips option flags like "-halo" before the value
func lastNumber(args []string) []string {
	if len(args) == 0 {
		return args
	}
	return args[len(args)-1:]
}

// mapFile returns the file name of a map statement, skipping options
func mapFile(args []string) string {
	if len(args) == 0 {
		return ""
	}
	return args[len(args)-1]
}

func stripComment(line string) string {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		return line[:i]
	}
	return line
}
