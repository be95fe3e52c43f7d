package stl

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/parse"
)

const maxLineLength = 1 << 20

// parseASCII parses an ASCII STL file into an object list
func (p *Parser) parseASCII(ctx context.Context, path string, r io.Reader, size int64, progress parse.Progress) (*result, error) {
	var triangles []geometry.Triangle
	name, bbox, err := scanASCII(ctx, path, r, size, p.opts.PollInterval, progress, func(t geometry.Triangle) {
		triangles = append(triangles, t)
	})
	if err != nil {
		return nil, err
	}
	return &result{header: name, triangles: triangles, bbox: bbox}, nil
}

// asciiReader yields the whitespace separated fields of each non-blank line
type asciiReader struct {
	path    string
	scanner *bufio.Scanner
	line    int
	read    int64
	fields  []string
}

func newASCIIReader(path string, r io.Reader) *asciiReader {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineLength)
	return &asciiReader{path: path, scanner: scanner}
}

// next advances to the next non-blank line. It returns false at EOF.
func (a *asciiReader) next() (bool, error) {
	for a.scanner.Scan() {
		a.line++
		text := a.scanner.Text()
		a.read += int64(len(text)) + 1
		a.fields = strings.Fields(text)
		if len(a.fields) > 0 {
			return true, nil
		}
	}
	if err := a.scanner.Err(); err != nil {
		return false, parse.Parsef(a.path, "failed to read line").AtLine(a.line + 1).Wrap(err)
	}
	a.fields = nil
	return false, nil
}

func (a *asciiReader) found() string {
	found := strings.Join(a.fields, " ")
	if len(found) > 40 {
		found = found[:40] + "..."
	}
	return found
}

func (a *asciiReader) unexpected(expected string) error {
	if a.fields == nil {
		return parse.Parsef(a.path, "unexpected end of file").AtLine(a.line).Expecting(expected, "EOF")
	}
	return parse.Parsef(a.path, "unexpected token").AtLine(a.line).Expecting(expected, a.found())
}

// keywords reports whether the current line starts with the given words
func (a *asciiReader) keywords(words ...string) bool {
	if len(a.fields) < len(words) {
		return false
	}
	for i, w := range words {
		if a.fields[i] != w {
			return false
		}
	}
	return true
}

// expect reads the next line and requires it to be exactly words
func (a *asciiReader) expect(words ...string) error {
	if _, err := a.next(); err != nil {
		return err
	}
	if !a.keywords(words...) || len(a.fields) != len(words) {
		return a.unexpected(strings.Join(words, " "))
	}
	return nil
}

// vector parses the three numbers following the leading keywords
func (a *asciiReader) vector(skip int) (geometry.Vector3, error) {
	var v [3]float32
	if len(a.fields) != skip+3 {
		return geometry.Vector3{}, a.unexpected(strings.Join(a.fields[:min(skip, len(a.fields))], " ") + " x y z")
	}
	for i := range 3 {
		f, err := strconv.ParseFloat(a.fields[skip+i], 32)
		if err != nil {
			return geometry.Vector3{}, parse.Parsef(a.path, "invalid number").AtLine(a.line).Expecting("number", a.fields[skip+i])
		}
		v[i] = float32(f)
	}
	return geometry.NewVector3(v[0], v[1], v[2]), nil
}

// facet reads the body of one facet after its "facet normal" line
func (a *asciiReader) facet() (geometry.Triangle, error) {
	var t geometry.Triangle
	normal, err := a.vector(2)
	if err != nil {
		return t, err
	}
	t.Normal = normal

	if err := a.expect("outer", "loop"); err != nil {
		return t, err
	}
	for _, dst := range []*geometry.Vector3{&t.V1, &t.V2, &t.V3} {
		if _, err := a.next(); err != nil {
			return t, err
		}
		if !a.keywords("vertex") {
			return t, a.unexpected("vertex")
		}
		v, err := a.vector(1)
		if err != nil {
			return t, err
		}
		*dst = v
	}
	if err := a.expect("endloop"); err != nil {
		return t, err
	}
	if err := a.expect("endfacet"); err != nil {
		return t, err
	}
	return t, nil
}

// scanASCII walks the ASCII STL grammar and hands every facet to emit. The
// normal is kept as written. Several solids in one file are concatenated;
// the name of the first one is returned.
func scanASCII(ctx context.Context, path string, r io.Reader, size int64, poll int, progress parse.Progress, emit func(geometry.Triangle)) (string, geometry.BoundingBox, error) {
	a := newASCIIReader(path, r)
	bbox := geometry.NewBoundingBox()
	name := ""
	solids := 0
	facets := 0

	for {
		ok, err := a.next()
		if err != nil {
			return "", bbox, err
		}
		if !ok {
			break
		}
		if !a.keywords("solid") {
			return "", bbox, a.unexpected("solid")
		}
		if solids == 0 {
			name = strings.Join(a.fields[1:], " ")
		}
		solids++

	body:
		for {
			ok, err := a.next()
			if err != nil {
				return "", bbox, err
			}
			switch {
			case !ok:
				return "", bbox, a.unexpected("endsolid")
			case a.keywords("endsolid"):
				break body
			case a.keywords("facet", "normal"):
				t, err := a.facet()
				if err != nil {
					return "", bbox, err
				}
				bbox.Extend(t.V1)
				bbox.Extend(t.V2)
				bbox.Extend(t.V3)
				emit(t)

				facets++
				if facets%poll == 0 {
					if err := parse.Check(ctx, path); err != nil {
						return "", bbox, err
					}
					progress.Report(parse.Percent(a.read, size), "parsing ASCII STL")
				}
			default:
				return "", bbox, a.unexpected("facet normal")
			}
		}
	}

	if solids == 0 {
		return "", bbox, parse.Parsef(path, "no solid found").Expecting("solid", "EOF")
	}
	if err := parse.Check(ctx, path); err != nil {
		return "", bbox, err
	}
	return name, bbox, nil
}

// countASCII reads the solid name and counts facets by keyword without
// parsing numbers
func countASCII(r io.Reader) (string, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), maxLineLength)
	name := ""
	named := false
	count := 0
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		switch fields[0] {
		case "solid":
			if !named {
				name = strings.Join(fields[1:], " ")
				named = true
			}
		case "facet":
			count++
		}
	}
	return name, count, scanner.Err()
}
