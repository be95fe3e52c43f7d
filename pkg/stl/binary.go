package stl

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/pkg/detect"
	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/parse"
)

const (
	headerSize      = detect.STLHeaderSize
	dataOffset      = detect.STLDataOffset
	recordSize      = detect.STLRecordSize
	fieldsPerRecord = 12
)

// checkBinary validates the binary header against the file size and
// returns the header text and declared triangle count
func (p *Parser) checkBinary(path string, sample []byte, size int64) (string, int, error) {
	if size < dataOffset || len(sample) < dataOffset {
		return "", 0, parse.Parsef(path, "file too small for binary STL").
			Expecting("at least 84 bytes", formatSize(size))
	}
	count, match := detect.BinarySTLCount(sample, size)
	if int64(count) > int64(p.opts.MaxTriangles) {
		return "", 0, parse.Resourcef(path, "declared triangle count %d exceeds limit %d", count, p.opts.MaxTriangles)
	}
	if !match {
		expected := dataOffset + recordSize*int64(count)
		return "", 0, parse.Parsef(path, "file size does not match declared triangle count %d", count).
			Expecting(formatSize(expected), formatSize(size))
	}
	return headerText(sample[:headerSize]), int(count), nil
}

// headerText trims padding from the 80 byte header
func headerText(b []byte) string {
	return strings.TrimRight(string(b), "\x00 \t\r\n")
}

func formatSize(n int64) string {
	return strconv.FormatInt(n, 10) + " bytes"
}

// parseBinary decodes a binary STL file. r must be positioned at the start
// of the file.
func (p *Parser) parseBinary(ctx context.Context, path string, r io.Reader, size int64, progress parse.Progress) (*result, error) {
	head := make([]byte, dataOffset)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, parse.Parsef(path, "file too small for binary STL").
			Expecting("at least 84 bytes", formatSize(size))
	}
	header, n, err := p.checkBinary(path, head, size)
	if err != nil {
		return nil, err
	}

	strategy := p.opts.SelectStrategy(n)
	p.opts.Logger.Debug("decoding binary STL",
		zap.String("path", path),
		zap.Int("triangles", n),
		zap.Stringer("strategy", strategy),
		zap.Int("workers", p.opts.Workers),
	)

	d := &decoder{path: path, opts: p.opts, progress: progress}
	res := &result{header: header}
	switch strategy {
	case parse.StrategyFlat:
		res.flat = true
		res.vertices, res.normals, res.bbox, err = d.decodeFlat(ctx, r, n)
	case parse.StrategyBulk:
		res.triangles, res.bbox, err = d.decodeBulk(ctx, r, n)
	default:
		res.triangles, res.bbox, err = d.decodeScalar(ctx, r, n)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

// decoder carries the per-call state of one binary decode
type decoder struct {
	path     string
	opts     parse.Options
	progress parse.Progress
}

func f32(b []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b))
}

func vec(b []byte) geometry.Vector3 {
	return geometry.Vector3{X: f32(b[0:4]), Y: f32(b[4:8]), Z: f32(b[8:12])}
}

// decodeRecord decodes one 50 byte triangle record
func decodeRecord(b []byte) geometry.Triangle {
	return geometry.Triangle{
		Normal:    vec(b[0:12]),
		V1:        vec(b[12:24]),
		V2:        vec(b[24:36]),
		V3:        vec(b[36:48]),
		Attribute: binary.LittleEndian.Uint16(b[48:50]),
	}
}

// truncated reports a short read of the triangle block at record i
func (d *decoder) truncated(i int, err error) error {
	return parse.Parsef(d.path, "truncated triangle data at record %d", i).
		AtOffset(dataOffset + int64(i)*recordSize).Wrap(err)
}

// cancelled maps a worker pool error to the parse error taxonomy
func (d *decoder) cancelled(ctx context.Context, err error) error {
	var pe *parse.Error
	if errors.As(err, &pe) {
		return err
	}
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return parse.Cancelled(d.path)
	}
	return parse.Parsef(d.path, "decode failed").Wrap(err)
}

// decodeScalar reads records one at a time
func (d *decoder) decodeScalar(ctx context.Context, r io.Reader, n int) ([]geometry.Triangle, geometry.BoundingBox, error) {
	bbox := geometry.NewBoundingBox()
	triangles := make([]geometry.Triangle, n)
	br := bufio.NewReaderSize(r, 64<<10)
	var rec [recordSize]byte

	for i := range n {
		if i%d.opts.PollInterval == 0 {
			if err := parse.Check(ctx, d.path); err != nil {
				return nil, bbox, err
			}
			if i > 0 {
				d.progress.Report(parse.Percent(int64(i), int64(n)), "decoding triangles")
			}
		}
		if _, err := io.ReadFull(br, rec[:]); err != nil {
			return nil, bbox, d.truncated(i, err)
		}
		t := decodeRecord(rec[:])
		bbox.Extend(t.V1)
		bbox.Extend(t.V2)
		bbox.Extend(t.V3)
		triangles[i] = t
	}
	if err := parse.Check(ctx, d.path); err != nil {
		return nil, bbox, err
	}
	return triangles, bbox, nil
}

// readBlock fills block from r in chunk sized reads, checking for
// cancellation and reporting progress scaled into [from, to]
func (d *decoder) readBlock(ctx context.Context, r io.Reader, block []byte, from, to float64) error {
	chunk := d.opts.ChunkRows * recordSize
	for off := 0; off < len(block); off += chunk {
		if err := parse.Check(ctx, d.path); err != nil {
			return err
		}
		end := min(off+chunk, len(block))
		if _, err := io.ReadFull(r, block[off:end]); err != nil {
			return d.truncated(off/recordSize, err)
		}
		d.progress.Report(from+(to-from)*float64(end)/float64(len(block)), "reading triangle data")
	}
	return nil
}

// decodeBulk reads the whole triangle block, decodes it into one float
// array in sub-chunks, reduces bounds once and builds triangle objects on
// the worker pool
func (d *decoder) decodeBulk(ctx context.Context, r io.Reader, n int) ([]geometry.Triangle, geometry.BoundingBox, error) {
	bbox := geometry.NewBoundingBox()
	block := make([]byte, n*recordSize)
	if err := d.readBlock(ctx, r, block, 0, 40); err != nil {
		return nil, bbox, err
	}

	fields := make([]float32, n*fieldsPerRecord)
	attrs := make([]uint16, n)
	for _, c := range parse.Partition(n, d.opts.ChunkRows) {
		if err := parse.Check(ctx, d.path); err != nil {
			return nil, bbox, err
		}
		for i := c.Start; i < c.End; i++ {
			rec := block[i*recordSize : (i+1)*recordSize]
			row := fields[i*fieldsPerRecord : (i+1)*fieldsPerRecord]
			for k := range row {
				row[k] = f32(rec[4*k:])
			}
			attrs[i] = binary.LittleEndian.Uint16(rec[48:])
		}
		d.progress.Report(40+30*float64(c.End)/float64(n), "decoding triangles")
	}

	for i := range n {
		row := fields[i*fieldsPerRecord:]
		for v := 1; v <= 3; v++ {
			bbox.Extend(geometry.Vector3{X: row[3*v], Y: row[3*v+1], Z: row[3*v+2]})
		}
	}

	ranges := parse.Partition(n, rowsPerWorker(n, d.opts.Workers))
	chunks, err := parse.RunOrdered(ctx, ranges, d.opts.Workers,
		func(_ context.Context, rr parse.RowRange) ([]geometry.Triangle, error) {
			out := make([]geometry.Triangle, rr.Len())
			for i := rr.Start; i < rr.End; i++ {
				row := fields[i*fieldsPerRecord : (i+1)*fieldsPerRecord]
				out[i-rr.Start] = geometry.Triangle{
					Normal:    geometry.Vector3{X: row[0], Y: row[1], Z: row[2]},
					V1:        geometry.Vector3{X: row[3], Y: row[4], Z: row[5]},
					V2:        geometry.Vector3{X: row[6], Y: row[7], Z: row[8]},
					V3:        geometry.Vector3{X: row[9], Y: row[10], Z: row[11]},
					Attribute: attrs[i],
				}
			}
			return out, nil
		},
		func(done, total int) {
			d.progress.Report(70+30*float64(done)/float64(total), "building triangles")
		},
	)
	if err != nil {
		return nil, bbox, d.cancelled(ctx, err)
	}
	if err := parse.Check(ctx, d.path); err != nil {
		return nil, bbox, err
	}

	triangles := make([]geometry.Triangle, 0, n)
	for _, c := range chunks {
		triangles = append(triangles, c...)
	}
	return triangles, bbox, nil
}

// decodeFlat streams the triangle block in batches of ChunkRows*Workers
// records. Each batch is decoded on the worker pool straight into the
// preallocated vertex and normal arrays; workers write disjoint regions and
// return per-range bounds that are merged in range order.
func (d *decoder) decodeFlat(ctx context.Context, r io.Reader, n int) ([]geometry.Vector3, []geometry.Vector3, geometry.BoundingBox, error) {
	bbox := geometry.NewBoundingBox()
	vertices := make([]geometry.Vector3, 3*n)
	normals := make([]geometry.Vector3, 3*n)

	batchRows := d.opts.ChunkRows * d.opts.Workers
	buf := make([]byte, min(n, batchRows)*recordSize)

	for start := 0; start < n; start += batchRows {
		if err := parse.Check(ctx, d.path); err != nil {
			return nil, nil, bbox, err
		}
		end := min(start+batchRows, n)
		block := buf[:(end-start)*recordSize]
		if _, err := io.ReadFull(r, block); err != nil {
			return nil, nil, bbox, d.truncated(start, err)
		}

		ranges := parse.Partition(end-start, d.opts.ChunkRows)
		boxes, err := parse.RunOrdered(ctx, ranges, d.opts.Workers,
			func(_ context.Context, rr parse.RowRange) (geometry.BoundingBox, error) {
				box := geometry.NewBoundingBox()
				for i := rr.Start; i < rr.End; i++ {
					rec := block[i*recordSize : (i+1)*recordSize]
					t := 3 * (start + i)
					normal := vec(rec[0:12])
					v1, v2, v3 := vec(rec[12:24]), vec(rec[24:36]), vec(rec[36:48])
					vertices[t], vertices[t+1], vertices[t+2] = v1, v2, v3
					normals[t], normals[t+1], normals[t+2] = normal, normal, normal
					box.Extend(v1)
					box.Extend(v2)
					box.Extend(v3)
				}
				return box, nil
			}, nil)
		if err != nil {
			return nil, nil, bbox, d.cancelled(ctx, err)
		}
		for _, box := range boxes {
			bbox.Merge(box)
		}
		d.progress.Report(parse.Percent(int64(end), int64(n)), "decoding triangles")
	}
	if err := parse.Check(ctx, d.path); err != nil {
		return nil, nil, bbox, err
	}
	return vertices, normals, bbox, nil
}

// rowsPerWorker splits n rows evenly over workers
func rowsPerWorker(n, workers int) int {
	if workers <= 1 {
		return n
	}
	return (n + workers - 1) / workers
}
