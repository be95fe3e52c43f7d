// Package detect classifies model files by content, independent of their
// extension.
package detect

import (
	"archive/zip"
	"bufio"
	"bytes"
	"encoding/binary"
	"io"
	"regexp"

	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

// SampleSize is the number of leading bytes inspected by content checks
const SampleSize = 64 << 10

// ThreeMFModelPath is the archive entry every 3MF package must contain
const ThreeMFModelPath = "3D/3dmodel.model"

// STL binary layout constants
const (
	STLHeaderSize = 80
	STLDataOffset = STLHeaderSize + 4
	STLRecordSize = 50
)

// STLEncoding is the result of sniffing an STL sample
type STLEncoding int

const (
	STLNone STLEncoding = iota
	STLASCII
	STLBinary
)

// String returns the encoding name
func (e STLEncoding) String() string {
	switch e {
	case STLASCII:
		return "ascii"
	case STLBinary:
		return "binary"
	default:
		return "none"
	}
}

var (
	facetNormalRe = regexp.MustCompile(`facet\s+normal`)
	objVertexRe   = regexp.MustCompile(`(?m)^[ \t]*v[ \t]`)
	objFaceRe     = regexp.MustCompile(`(?m)^[ \t]*f[ \t]`)
	zipMagic      = []byte("PK\x03\x04")
)

// Detect returns the format of the file at path, or FormatUnknown when no
// format matches. Errors are reserved for I/O failures.
func Detect(path string) (mesh.Format, error) {
	f, fi, err := parse.Open(path)
	if err != nil {
		return mesh.FormatUnknown, err
	}
	defer f.Close()

	sample, err := readSample(f)
	if err != nil {
		return mesh.FormatUnknown, parse.Formatf(path, "failed to read sample").Wrap(err)
	}

	if bytes.HasPrefix(sample, zipMagic) {
		if Has3MFModel(f, fi.Size()) {
			return mesh.Format3MF, nil
		}
		return mesh.FormatUnknown, nil
	}

	format := DetectSample(sample, fi.Size())
	if format != mesh.FormatUnknown || int64(len(sample)) == fi.Size() {
		return format, nil
	}

	// Large OBJ files list every vertex before the first face, so the
	// face token may lie beyond the sample.
	if IsText(sample) && objVertexRe.Match(sample) {
		if hasFaceLine(io.MultiReader(bytes.NewReader(sample), f)) {
			return mesh.FormatOBJ, nil
		}
	}
	return mesh.FormatUnknown, nil
}

// DetectSample classifies a leading sample of a file of the given total
// size. It cannot recognize 3MF, which needs the archive directory.
func DetectSample(sample []byte, size int64) mesh.Format {
	if len(sample) == 0 {
		return mesh.FormatUnknown
	}
	if SniffSTL(sample, size) != STLNone {
		return mesh.FormatSTL
	}
	if IsText(sample) {
		if bytes.Contains(sample, []byte("ISO-10303-21")) && bytes.Contains(sample, []byte("DATA;")) {
			return mesh.FormatSTEP
		}
		if objVertexRe.Match(sample) && objFaceRe.Match(sample) {
			return mesh.FormatOBJ
		}
	}
	return mesh.FormatUnknown
}

// SniffSTL decides between ASCII and binary STL. A sample that starts with
// "solid", is textual and contains a "facet normal" token is ASCII even
// if the file size happens to match the binary layout.
func SniffSTL(sample []byte, size int64) STLEncoding {
	text := IsText(sample)
	solid := startsWithSolid(sample)

	if solid && text && (facetNormalRe.Match(sample) || bytes.Contains(sample, []byte("endsolid"))) {
		return STLASCII
	}
	if _, ok := BinarySTLCount(sample, size); ok {
		return STLBinary
	}
	if solid && text {
		return STLASCII
	}
	return STLNone
}

// BinarySTLCount reads the declared triangle count from a binary STL
// sample and reports whether the file size matches 84 + 50*count exactly.
func BinarySTLCount(sample []byte, size int64) (uint32, bool) {
	if len(sample) < STLDataOffset || size < STLDataOffset {
		return 0, false
	}
	count := binary.LittleEndian.Uint32(sample[STLHeaderSize:STLDataOffset])
	return count, size == STLDataOffset+STLRecordSize*int64(count)
}

// Has3MFModel reports whether r is a ZIP archive with a 3D model part
func Has3MFModel(r io.ReaderAt, size int64) bool {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return false
	}
	for _, f := range zr.File {
		if f.Name == ThreeMFModelPath || f.Name == "/"+ThreeMFModelPath {
			return true
		}
	}
	return false
}

// IsText reports whether the sample contains no control bytes other than
// common whitespace
func IsText(sample []byte) bool {
	for _, b := range sample {
		if b == 0 || (b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f') || b == 0x7f {
			return false
		}
	}
	return true
}

func startsWithSolid(sample []byte) bool {
	trimmed := bytes.TrimLeft(sample, " \t\r\n\f")
	return bytes.HasPrefix(trimmed, []byte("solid"))
}

func readSample(r io.Reader) ([]byte, error) {
	buf := make([]byte, SampleSize)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}

func hasFaceLine(r io.Reader) bool {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64<<10), 1<<20)
	for scanner.Scan() {
		line := bytes.TrimLeft(scanner.Bytes(), " \t")
		if len(line) > 1 && line[0] == 'f' && (line[1] == ' ' || line[1] == '\t') {
			return true
		}
	}
	return false
}
