package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/philipparndt/gomesh/internal/catalog"
	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/geometry"
	"github.com/philipparndt/gomesh/pkg/parse"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
	Line  int    `json:"line,omitempty"`
}

// statusFor maps a parse error kind to an HTTP status.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, parse.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, parse.ErrFormat):
		return http.StatusUnsupportedMediaType, "format"
	case errors.Is(err, parse.ErrParse):
		return http.StatusUnprocessableEntity, "parse"
	case errors.Is(err, parse.ErrResource):
		return http.StatusRequestEntityTooLarge, "resource"
	case errors.Is(err, parse.ErrCancelled):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, ""
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusFor(err)
	body := errResponse{Error: err.Error(), Kind: kind}
	var perr *parse.Error
	if errors.As(err, &perr) {
		body.Line = perr.Line
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

type vectorDTO [3]float32

func vector(v geometry.Vector3) vectorDTO {
	return vectorDTO{v.X, v.Y, v.Z}
}

// InfoResponse is the body of GET /api/info.
type InfoResponse struct {
	Path          string            `json:"path"`
	Format        string            `json:"format"`
	Size          int64             `json:"size"`
	ModTime       time.Time         `json:"mod_time"`
	Header        string            `json:"header,omitempty"`
	Encoding      string            `json:"encoding,omitempty"`
	TriangleCount int               `json:"triangle_count"`
	Details       map[string]string `json:"details,omitempty"`
}

func infoResponse(rel string, info *parse.Info) InfoResponse {
	return InfoResponse{
		Path:          rel,
		Format:        info.Format.String(),
		Size:          info.Size,
		ModTime:       info.ModTime,
		Header:        info.Header,
		Encoding:      info.Encoding,
		TriangleCount: info.TriangleCount,
		Details:       info.Details,
	}
}

// ReportResponse is the validator result.
type ReportResponse struct {
	Valid            bool      `json:"valid"`
	VertexCount      int       `json:"vertex_count"`
	FaceCount        int       `json:"face_count"`
	EdgeCount        int       `json:"edge_count"`
	Min              vectorDTO `json:"min"`
	Max              vectorDTO `json:"max"`
	Sampled          int       `json:"sampled"`
	DegenerateCount  int       `json:"degenerate_count"`
	DegenerateSample []int     `json:"degenerate_sample,omitempty"`
	NonFiniteCount   int       `json:"non_finite_count"`
	Manifold         bool      `json:"manifold"`
}

func reportResponse(r *analysis.Report) ReportResponse {
	return ReportResponse{
		Valid:            r.Valid(),
		VertexCount:      r.VertexCount,
		FaceCount:        r.FaceCount,
		EdgeCount:        r.EdgeCount,
		Min:              vector(r.Bounds.Min),
		Max:              vector(r.Bounds.Max),
		Sampled:          r.Sampled,
		DegenerateCount:  r.DegenerateCount,
		DegenerateSample: r.DegenerateSample,
		NonFiniteCount:   r.NonFiniteCount,
		Manifold:         r.Manifold,
	}
}

// StatsResponse is the body of GET /api/stats.
type StatsResponse struct {
	Path           string         `json:"path"`
	Format         string         `json:"format"`
	Header         string         `json:"header,omitempty"`
	Representation string         `json:"representation"`
	Triangles      int            `json:"triangles"`
	Vertices       int            `json:"vertices"`
	Min            vectorDTO      `json:"min"`
	Max            vectorDTO      `json:"max"`
	SurfaceArea    float64        `json:"surface_area"`
	Volume         float64        `json:"volume"`
	ParseMS        int64          `json:"parse_ms"`
	Report         ReportResponse `json:"report"`
}

// CatalogListResponse is the body of GET /api/catalog.
type CatalogListResponse struct {
	Models []catalog.Entry `json:"models"`
	Total  int             `json:"total"`
}
