package server

import (
	"errors"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/philipparndt/gomesh/internal/catalog"
	"github.com/philipparndt/gomesh/pkg/analysis"
	"github.com/philipparndt/gomesh/pkg/mesh"
)

// modelPath extracts the model path from the URL wildcard and resolves it
// below the server root. Paths leaving the root are rejected.
func (s *Server) modelPath(r *http.Request) (rel, abs string, ok bool) {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if decoded, err := url.PathUnescape(raw); err == nil {
		raw = decoded
	}
	rel = filepath.FromSlash(raw)
	if rel == "" || !filepath.IsLocal(rel) {
		return "", "", false
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return "", "", false
	}
	return filepath.ToSlash(rel), filepath.Join(root, rel), true
}

func badPath(w http.ResponseWriter) {
	writeJSON(w, http.StatusBadRequest, errResponse{Error: "invalid model path"})
}

// Detect handles GET /api/detect/*.
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	rel, abs, ok := s.modelPath(r)
	if !ok {
		badPath(w)
		return
	}
	format, err := s.loader.Detect(abs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"path": rel, "format": format.String()})
}

// Info handles GET /api/info/*.
func (s *Server) Info(w http.ResponseWriter, r *http.Request) {
	rel, abs, ok := s.modelPath(r)
	if !ok {
		badPath(w)
		return
	}
	info, err := s.loader.Info(abs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, infoResponse(rel, info))
}

// Validate handles GET /api/validate/*. It runs the structural check
// only, without building a model.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	rel, abs, ok := s.modelPath(r)
	if !ok {
		badPath(w)
		return
	}
	if err := s.loader.Validate(abs); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"path": rel, "valid": true})
}

// Stats handles GET /api/stats/*. The model is parsed (or taken from the
// loader cache), checked by the geometry validator and recorded in the
// catalog when one is configured.
func (s *Server) Stats(w http.ResponseWriter, r *http.Request) {
	rel, abs, ok := s.modelPath(r)
	if !ok {
		badPath(w)
		return
	}

	m, err := s.loader.Load(r.Context(), abs, nil)
	if err != nil {
		s.logger.Debug("load failed", zap.String("path", abs), zap.Error(err))
		writeError(w, err)
		return
	}
	s.watch(abs)

	report := analysis.Validate(m, s.validate)
	if s.catalog != nil {
		s.record(abs, m, report)
	}

	stats := m.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{
		Path:           rel,
		Format:         m.Format().String(),
		Header:         m.Header(),
		Representation: m.Kind().String(),
		Triangles:      stats.TriangleCount,
		Vertices:       stats.VertexCount,
		Min:            vector(stats.MinBounds),
		Max:            vector(stats.MaxBounds),
		SurfaceArea:    m.SurfaceArea(),
		Volume:         m.Volume(),
		ParseMS:        stats.ParseDuration.Milliseconds(),
		Report:         reportResponse(report),
	})
}

func (s *Server) record(abs string, m *mesh.Model, report *analysis.Report) {
	info, err := s.loader.Info(abs)
	if err != nil {
		return
	}
	if err := s.catalog.Upsert(catalog.NewEntry(abs, info.ModTime, m, report)); err != nil {
		s.logger.Warn("catalog upsert failed", zap.String("path", abs), zap.Error(err))
	}
}

// ListCatalog handles GET /api/catalog.
func (s *Server) ListCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "catalog disabled"})
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	format := ""
	if f := q.Get("format"); f != "" {
		format = mesh.ParseFormat(f).String()
	}

	entries, total, err := s.catalog.List(format, limit, offset)
	if err != nil {
		s.logger.Error("list catalog failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
		return
	}
	if entries == nil {
		entries = []catalog.Entry{}
	}
	writeJSON(w, http.StatusOK, CatalogListResponse{Models: entries, Total: total})
}

// GetCatalog handles GET /api/catalog/*.
func (s *Server) GetCatalog(w http.ResponseWriter, r *http.Request) {
	if s.catalog == nil {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "catalog disabled"})
		return
	}
	_, abs, ok := s.modelPath(r)
	if !ok {
		badPath(w)
		return
	}
	e, err := s.catalog.Get(abs)
	if errors.Is(err, catalog.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errResponse{Error: "not cataloged", Kind: "not_found"})
		return
	}
	if err != nil {
		s.logger.Error("get catalog entry failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errResponse{Error: "internal error"})
		return
	}
	writeJSON(w, http.StatusOK, e)
}
