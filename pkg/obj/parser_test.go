package obj

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/mesh"
	"github.com/philipparndt/gomesh/pkg/parse"
)

func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, body := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	return dir
}

func collect(m *mesh.Model) []geometry.Triangle {
	var out []geometry.Triangle
	for _, t := range m.Triangles() {
		out = append(out, t)
	}
	return out
}

const quad = `# unit square
o square
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3 4
`

func TestParseQuadFan(t *testing.T) {
	dir := writeFiles(t, map[string]string{"quad.obj": quad})

	model, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "quad.obj"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	tris := collect(model)
	if len(tris) != 2 {
		t.Fatalf("expected 2 triangles, got %d", len(tris))
	}
	v := []geometry.Vector3{
		geometry.NewVector3(0, 0, 0),
		geometry.NewVector3(1, 0, 0),
		geometry.NewVector3(1, 1, 0),
		geometry.NewVector3(0, 1, 0),
	}
	if tris[0].V1 != v[0] || tris[0].V2 != v[1] || tris[0].V3 != v[2] {
		t.Errorf("first triangle = %v, want fan (0,1,2)", tris[0])
	}
	if tris[1].V1 != v[0] || tris[1].V2 != v[2] || tris[1].V3 != v[3] {
		t.Errorf("second triangle = %v, want fan (0,2,3)", tris[1])
	}
	for i, tri := range tris {
		if tri.Normal != geometry.NewVector3(0, 0, 1) {
			t.Errorf("triangle %d normal = %v, want (0,0,1)", i, tri.Normal)
		}
	}

	stats := model.Stats()
	if stats.VertexCount != 3*stats.TriangleCount {
		t.Errorf("VertexCount = %d, want %d", stats.VertexCount, 3*stats.TriangleCount)
	}
	if stats.MaxBounds != geometry.NewVector3(1, 1, 0) {
		t.Errorf("MaxBounds = %v, want (1,1,0)", stats.MaxBounds)
	}
	if model.Header() != "square" {
		t.Errorf("Header() = %q, want %q", model.Header(), "square")
	}
	if model.Format() != mesh.FormatOBJ {
		t.Errorf("Format() = %v, want OBJ", model.Format())
	}
}

func TestParseNegativeIndices(t *testing.T) {
	src := "v 0 0 0\nv 2 0 0\nv 0 2 0\nf -3 -2 -1\n"
	dir := writeFiles(t, map[string]string{"neg.obj": src})

	model, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "neg.obj"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	tris := collect(model)
	if len(tris) != 1 {
		t.Fatalf("expected 1 triangle, got %d", len(tris))
	}
	if tris[0].V2 != geometry.NewVector3(2, 0, 0) {
		t.Errorf("V2 = %v, want (2,0,0)", tris[0].V2)
	}
}

func TestFirstNormalAppliesToWholeFan(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vn 0 0 -1
vn 1 0 0
f 1//1 2//2 3//2 4//2
`
	dir := writeFiles(t, map[string]string{"n.obj": src})

	model, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "n.obj"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	for i, tri := range collect(model) {
		if tri.Normal != geometry.NewVector3(0, 0, -1) {
			t.Errorf("triangle %d normal = %v, want first listed normal", i, tri.Normal)
		}
	}
}

func TestParseMaterials(t *testing.T) {
	mtl := `newmtl red
Ka 0.1 0.1 0.1
Kd 1 0 0
Ks 0.5 0.5 0.5
Ns 32
d 0.5
illum 2
map_Kd red.png

newmtl blue
Kd 0 0 1
Tr 0.25
`
	src := `mtllib colors.mtl
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
f 1 2 3
usemtl red
f 1 2 3 4
usemtl blue
f 1 3 4
`
	dir := writeFiles(t, map[string]string{"colors.mtl": mtl, "m.obj": src})

	model, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "m.obj"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	materials := model.Materials()
	if len(materials) != 2 {
		t.Fatalf("expected 2 materials, got %d", len(materials))
	}
	red := materials["red"]
	if red.Diffuse != (mesh.Color{1, 0, 0}) || red.Shininess != 32 || red.Dissolve != 0.5 || red.Illumination != 2 {
		t.Errorf("red = %+v", red)
	}
	if red.DiffuseMap != "red.png" {
		t.Errorf("red.DiffuseMap = %q, want red.png", red.DiffuseMap)
	}
	if blue := materials["blue"]; blue.Dissolve != 0.75 || !blue.HasDissolve {
		t.Errorf("blue dissolve = %v (%v), want 0.75", blue.Dissolve, blue.HasDissolve)
	}

	groups := model.MaterialGroups()
	want := []mesh.MaterialGroup{
		{Material: "red", Start: 1, Count: 2},
		{Material: "blue", Start: 3, Count: 1},
	}
	if len(groups) != len(want) {
		t.Fatalf("groups = %+v, want %+v", groups, want)
	}
	for i := range want {
		if groups[i] != want[i] {
			t.Errorf("group %d = %+v, want %+v", i, groups[i], want[i])
		}
	}
}

func TestMissingMaterialLibraryDegrades(t *testing.T) {
	src := "mtllib missing.mtl\nusemtl nothing\n" + strings.TrimPrefix(quad, "# unit square\n")
	dir := writeFiles(t, map[string]string{"m.obj": src})

	model, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "m.obj"), nil)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if model.TriangleCount() != 2 {
		t.Errorf("TriangleCount() = %d, want 2", model.TriangleCount())
	}
	if len(model.Materials()) != 0 {
		t.Errorf("expected no materials, got %v", model.Materials())
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		line int
	}{
		{"index out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 4\n", 4},
		{"zero index", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 0 1 2\n", 4},
		{"forward reference", "v 0 0 0\nf 1 2 3\nv 1 0 0\nv 0 1 0\n", 2},
		{"bad number", "v 0 x 0\n", 1},
		{"too few coordinates", "v 0 0\n", 1},
		{"two vertex face", "v 0 0 0\nv 1 0 0\nf 1 2\n", 3},
		{"normal out of range", "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1//1 2//1 3//1\n", 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := writeFiles(t, map[string]string{"bad.obj": tt.src})
			for _, streamBytes := range []int64{0, 1} {
				p := New(parse.Options{OBJStreamBytes: streamBytes})
				model, err := p.Parse(context.Background(), filepath.Join(dir, "bad.obj"), nil)
				if model != nil {
					t.Error("expected no model on error")
				}
				var pe *parse.Error
				if !errors.As(err, &pe) || !errors.Is(err, parse.ErrParse) {
					t.Fatalf("Parse() error = %v, want ErrParse", err)
				}
				if pe.Line != tt.line {
					t.Errorf("Line = %d, want %d (stream threshold %d)", pe.Line, tt.line, streamBytes)
				}
			}
		})
	}
}

func TestStreamingMatchesBuffered(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("o grid\n")
	const n = 20
	for y := 0; y <= n; y++ {
		for x := 0; x <= n; x++ {
			sb.WriteString("v " + strconv.Itoa(x) + " " + strconv.Itoa(y) + " " + strconv.Itoa((x*y)%3) + "\n")
		}
	}
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			a := y*(n+1) + x + 1
			sb.WriteString("f " + strconv.Itoa(a) + " " + strconv.Itoa(a+1) + " \\\n  " + strconv.Itoa(a+n+2) + " " + strconv.Itoa(a+n+1) + "\n")
		}
	}
	dir := writeFiles(t, map[string]string{"grid.obj": sb.String()})
	path := filepath.Join(dir, "grid.obj")

	buffered, err := New(parse.Options{PollInterval: 7}).Parse(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("buffered Parse() error = %v", err)
	}
	streamed, err := New(parse.Options{OBJStreamBytes: 1, PollInterval: 7}).Parse(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("streamed Parse() error = %v", err)
	}

	a, b := collect(buffered), collect(streamed)
	if len(a) != 2*n*n || len(a) != len(b) {
		t.Fatalf("triangle counts: buffered %d, streamed %d, want %d", len(a), len(b), 2*n*n)
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("triangle %d differs: %v vs %v", i, a[i], b[i])
		}
	}
	if buffered.BoundingBox() != streamed.BoundingBox() {
		t.Errorf("bounds differ: %v vs %v", buffered.BoundingBox(), streamed.BoundingBox())
	}
}

func TestParseCancelled(t *testing.T) {
	dir := writeFiles(t, map[string]string{"quad.obj": quad})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, streamBytes := range []int64{0, 1} {
		model, err := New(parse.Options{OBJStreamBytes: streamBytes}).Parse(ctx, filepath.Join(dir, "quad.obj"), nil)
		if !errors.Is(err, parse.ErrCancelled) {
			t.Errorf("Parse() error = %v, want ErrCancelled", err)
		}
		if model != nil {
			t.Error("expected no model after cancel")
		}
	}
}

func TestParseCancelledFromProgress(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("o strip\n")
	for i := 0; i <= 100; i++ {
		sb.WriteString("v " + strconv.Itoa(i) + " 0 0\nv " + strconv.Itoa(i) + " 1 0\n")
	}
	for i := 0; i < 100; i++ {
		a := 2*i + 1
		sb.WriteString("f " + strconv.Itoa(a) + " " + strconv.Itoa(a+2) + " " + strconv.Itoa(a+3) + " " + strconv.Itoa(a+1) + "\n")
	}
	dir := writeFiles(t, map[string]string{"strip.obj": sb.String()})
	path := filepath.Join(dir, "strip.obj")

	tests := []struct {
		name        string
		streamBytes int64
		final       bool
	}{
		{"buffered first report", 0, false},
		{"buffered final report", 0, true},
		{"streaming first report", 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			cancelled := false
			p := New(parse.Options{OBJStreamBytes: tt.streamBytes, PollInterval: 10})
			model, err := p.Parse(ctx, path, func(percent float64, message string) {
				if message == "done" || (tt.final && percent < 100) {
					return
				}
				cancelled = true
				cancel()
			})
			if !cancelled {
				t.Fatal("progress never triggered the cancel")
			}
			if !errors.Is(err, parse.ErrCancelled) {
				t.Errorf("Parse() error = %v, want ErrCancelled", err)
			}
			if model != nil {
				t.Error("expected no model after cancel")
			}
		})
	}
}

func TestEmptyFile(t *testing.T) {
	dir := writeFiles(t, map[string]string{"empty.obj": ""})
	_, err := New(parse.Options{}).Parse(context.Background(), filepath.Join(dir, "empty.obj"), nil)
	if !errors.Is(err, parse.ErrParse) {
		t.Errorf("Parse() error = %v, want ErrParse", err)
	}
}

func TestValidateAndInfo(t *testing.T) {
	dir := writeFiles(t, map[string]string{
		"quad.obj": quad,
		"bad.obj":  "v 0 0 0\nf 1 2 3\n",
	})
	p := New(parse.Options{})

	if err := p.Validate(filepath.Join(dir, "quad.obj")); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if err := p.Validate(filepath.Join(dir, "bad.obj")); !errors.Is(err, parse.ErrParse) {
		t.Errorf("Validate() error = %v, want ErrParse", err)
	}

	info, err := p.Info(filepath.Join(dir, "quad.obj"))
	if err != nil {
		t.Fatalf("Info() error = %v", err)
	}
	if info.TriangleCount != 2 || info.Header != "square" || info.Details["v"] != "4" {
		t.Errorf("Info() = %+v", info)
	}
}
