// Package server exposes a Pipeline over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/shpitdev/prospect-pipeline/internal/export"
	"github.com/shpitdev/prospect-pipeline/internal/journal"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
	"github.com/shpitdev/prospect-pipeline/internal/version"
)

// RunStore is the read side of the run journal.
type RunStore interface {
	List(ctx context.Context, limit int) ([]journal.Run, error)
	Get(ctx context.Context, id string) (*journal.Run, error)
}

type Options struct {
	AllowedOrigins []string

	// Runs serves /api/runs. Nil disables those routes.
	Runs RunStore

	Logger *zap.Logger
}

type Server struct {
	pipeline *pipeline.Pipeline
	runs     RunStore
	origins  []string
	log      *zap.Logger

	// pollLog samples GET /api/pipeline debug logs; UIs poll it continuously.
	pollLog *rate.Limiter
}

func New(p *pipeline.Pipeline, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.L()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &Server{
		pipeline: p,
		runs:     opts.Runs,
		origins:  origins,
		log:      logger,
		pollLog:  rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/pipeline", s.handleStart)
		r.Get("/pipeline", s.handleSnapshot)
		r.Get("/pipeline/export", s.handleExport)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": version.Current})
}

type startRequest struct {
	Keyword string `json:"keyword"`
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" {
		writeError(w, http.StatusBadRequest, "keyword is required")
		return
	}

	if !s.pipeline.Start(r.Context(), req.Keyword) {
		snap := s.pipeline.Snapshot()
		s.log.Info("pipeline busy; start rejected",
			zap.String("run_id", snap.RunID),
			zap.Stringer("status", snap.Status),
		)
		writeJSON(w, http.StatusConflict, snap)
		return
	}
	writeJSON(w, http.StatusAccepted, s.pipeline.Snapshot())
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap := s.pipeline.Snapshot()
	if s.pollLog.Allow() {
		s.log.Debug("pipeline polled",
			zap.String("run_id", snap.RunID),
			zap.Stringer("status", snap.Status),
			zap.Int("leads", len(snap.Leads)),
		)
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	snap := s.pipeline.Snapshot()
	var buf bytes.Buffer
	if err := export.Write(&buf, format, snap.Leads); err != nil {
		if errors.Is(err, export.ErrNothingToExport) {
			writeError(w, http.StatusNotFound, "no leads to export")
			return
		}
		s.log.Error("export failed", zap.String("format", string(format)), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "export failed")
		return
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", attachment(export.Filename(snap.Keyword, format)))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// attachment builds a Content-Disposition value. Non-ASCII names are sent in the
// RFC 2231 filename* form.
func attachment(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run journal is disabled")
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	runs, err := s.runs.List(r.Context(), limit)
	if err != nil {
		s.log.Error("list runs failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "list runs failed")
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusNotFound, "run journal is disabled")
		return
	}
	run, err := s.runs.Get(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, journal.ErrNotFound) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	if err != nil {
		s.log.Error("get run failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "get run failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
