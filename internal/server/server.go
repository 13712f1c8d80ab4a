// Package server exposes a Session over a small HTTP JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/KaramelBytes/sameday-cli/internal/report"
	"github.com/KaramelBytes/sameday-cli/internal/schema"
	"github.com/KaramelBytes/sameday-cli/internal/session"
	"github.com/KaramelBytes/sameday-cli/internal/table"
)

// MaxUploadBytes is the default bound on an uploaded table.
const MaxUploadBytes = 64 << 20

// Server serves range, analyze, upload, health and metrics routes.
type Server struct {
	httpServer *http.Server
	sess       *session.Session
	reportOpt  report.Options
	maxUpload  int64
	logger     *slog.Logger
}

// Options configures a Server.
type Options struct {
	Addr   string
	Report report.Options
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
	// MaxUploadBytes bounds upload bodies; <= 0 selects MaxUploadBytes.
	MaxUploadBytes int64
	Logger         *slog.Logger
}

// New creates a server for sess.
func New(sess *session.Session, opt Options) *Server {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Gatherer == nil {
		opt.Gatherer = prometheus.DefaultGatherer
	}
	if opt.MaxUploadBytes <= 0 {
		opt.MaxUploadBytes = MaxUploadBytes
	}
	mux := http.NewServeMux()
	s := &Server{
		httpServer: &http.Server{
			Addr:         opt.Addr,
			Handler:      mux,
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		sess:      sess,
		reportOpt: opt.Report,
		maxUpload: opt.MaxUploadBytes,
		logger:    opt.Logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/range", s.handleRange)
	mux.HandleFunc("GET /api/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /api/upload", s.handleUpload)
	mux.HandleFunc("DELETE /api/cache", s.handleClearCache)
	mux.HandleFunc("DELETE /api/cache/{fingerprint}", s.handleInvalidate)
	mux.Handle("GET /metrics", promhttp.HandlerFor(opt.Gatherer, promhttp.HandlerOpts{}))

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

type rangeResponse struct {
	Dataset *session.Dataset `json:"dataset"`
	First   schema.Date      `json:"first"`
	Last    schema.Date      `json:"last"`
	Rows    schema.Stats     `json:"rows"`
}

func (s *Server) handleRange(w http.ResponseWriter, _ *http.Request) {
	ds := s.sess.Current()
	if ds == nil {
		writeError(w, http.StatusNotFound, "no_dataset", session.ErrNoDataset.Error(), nil)
		return
	}
	first, last, ok := ds.Period()
	if !ok {
		writeError(w, http.StatusNotFound, "no_data", "dataset has no observations", nil)
		return
	}
	writeJSON(w, http.StatusOK, rangeResponse{Dataset: ds, First: first, Last: last, Rows: ds.Table.Stats})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	ds := s.sess.Current()
	if ds == nil {
		writeError(w, http.StatusNotFound, "no_dataset", session.ErrNoDataset.Error(), nil)
		return
	}
	var date schema.Date
	if q := r.URL.Query().Get("date"); q != "" {
		d, err := schema.ParseDate(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_date", err.Error(), nil)
			return
		}
		date = d
	} else if _, last, ok := ds.Period(); ok {
		date = last
	}

	res, ok, err := s.sess.AnalyzeDataset(ds, date)
	if err != nil {
		s.logger.Error("analyze failed", "date", date.String(), "error", err)
		writeError(w, http.StatusUnprocessableEntity, "analysis_failed", err.Error(), nil)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "no_data", fmt.Sprintf("no observation recorded for %s", date), nil)
		return
	}
	writeJSON(w, http.StatusOK, report.Build(res, ds.Table, s.reportOpt))
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	name, content, err := readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "too_large",
				fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit), nil)
			return
		}
		writeError(w, http.StatusBadRequest, "bad_upload", err.Error(), nil)
		return
	}
	ds, err := s.sess.Load(table.BytesSource(name, content))
	if err != nil {
		s.writeLoadError(w, err)
		return
	}
	first, last, _ := ds.Period()
	writeJSON(w, http.StatusCreated, rangeResponse{Dataset: ds, First: first, Last: last, Rows: ds.Table.Stats})
}

// readUpload accepts a multipart form with a "file" part. Any other content
// type is read as the raw table, named by the "name" query parameter.
func readUpload(r *http.Request) (string, []byte, error) {
	if isMultipart(r.Header.Get("Content-Type")) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			return "", nil, fmt.Errorf("read form: %w", err)
		}
		defer f.Close()
		b, err := io.ReadAll(f)
		if err != nil {
			return "", nil, fmt.Errorf("read upload: %w", err)
		}
		return hdr.Filename, b, nil
	}
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", nil, fmt.Errorf("read body: %w", err)
	}
	if len(b) == 0 {
		return "", nil, errors.New("empty upload")
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
	}
	return name, b, nil
}

func isMultipart(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	return err == nil && mt == "multipart/form-data"
}

func (s *Server) handleClearCache(w http.ResponseWriter, _ *http.Request) {
	n := s.sess.Cached()
	s.sess.Clear()
	s.logger.Info("dataset cache cleared", "entries", n)
	writeJSON(w, http.StatusOK, map[string]int{"cleared": n})
}

func (s *Server) handleInvalidate(w http.ResponseWriter, r *http.Request) {
	fp := r.PathValue("fingerprint")
	if !s.sess.Invalidate(fp) {
		writeError(w, http.StatusNotFound, "not_cached", fmt.Sprintf("no cached dataset with fingerprint %q", fp), nil)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) writeLoadError(w http.ResponseWriter, err error) {
	var se *schema.SchemaError
	var de *table.DecodeError
	switch {
	case errors.As(err, &se):
		writeError(w, http.StatusUnprocessableEntity, "schema", err.Error(), map[string]any{
			"columns": se.Columns,
			"hint":    HeaderHint,
		})
	case errors.As(err, &de):
		writeError(w, http.StatusUnprocessableEntity, "decode", err.Error(), map[string]any{
			"encodings": de.Encodings,
		})
	default:
		writeError(w, http.StatusBadRequest, "load", err.Error(), nil)
	}
	s.logger.Warn("upload rejected", "error", err)
}

// HeaderHint is shown when no date column is found.
const HeaderHint = "check that the header row comes right after the skipped metadata lines (header_skip)"

type errorResponse struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details map[string]any) {
	writeJSON(w, status, errorResponse{Status: code, Message: msg, Details: details})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
