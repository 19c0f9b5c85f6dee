// Package api provides the REST API for parsing reservation text and
// browsing the parse log.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"gds_parser/internal/diag"
	"gds_parser/internal/gds"
	"gds_parser/internal/metrics"
	"gds_parser/internal/pipeline"
	"gds_parser/internal/registry"
	"gds_parser/internal/storage"
)

// maxBodyBytes caps a submitted reservation text.
const maxBodyBytes = 1 << 20

// ParseLogReader is the read side of the parse log.
type ParseLogReader interface {
	Query(p storage.QueryParams) ([]storage.ParseLogEntry, error)
	GetByID(id int64) (*storage.ParseLogEntry, error)
	GetStats() (*storage.LogStats, error)
}

// Server provides REST API access to the parser.
type Server struct {
	pipeline    *pipeline.Pipeline
	parseLog    ParseLogReader
	logger      *slog.Logger
	port        int
	authEnabled bool
	apiKeys     map[string]bool // Simple API key auth (when enabled).
}

// Config holds configuration for the API server.
type Config struct {
	Port        int
	AuthEnabled bool
	APIKeys     []string // List of valid API keys.
}

// NewServer creates a new API server. parseLog may be nil, which disables
// the /parses endpoints.
func NewServer(p *pipeline.Pipeline, parseLog ParseLogReader, logger *slog.Logger, cfg Config) *Server {
	keys := make(map[string]bool)
	for _, k := range cfg.APIKeys {
		if k != "" {
			keys[k] = true
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Server{
		pipeline:    p,
		parseLog:    parseLog,
		logger:      logger,
		port:        cfg.Port,
		authEnabled: cfg.AuthEnabled,
		apiKeys:     keys,
	}
}

// Handler returns the full HTTP handler: middleware, CORS and routes.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	// Standard middleware.
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	// Health and metrics need no auth.
	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Mount("/api/v1", s.Router())

	// CORS for browser access.
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
	})
	return c.Handler(r)
}

// Router returns the API routes for embedding in other servers.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	// Optional authentication.
	if s.authEnabled {
		r.Use(s.authMiddleware)
	}

	r.Get("/health", s.handleHealth)
	r.Post("/parse", s.handleParse)
	r.Post("/explain", s.handleExplain)
	r.Get("/parses", s.handleListParses)
	r.Get("/parses/{id}", s.handleGetParse)
	r.Get("/stats", s.handleStats)

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + strconv.Itoa(s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("api listening", slog.String("addr", srv.Addr), slog.Bool("auth", s.authEnabled))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// requestLogger logs each request and records it in metrics under its route pattern.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		d := time.Since(start)
		metrics.ObserveHTTPRequest(r.Method, route, status, d)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("route", route),
			slog.Int("status", status),
			slog.Duration("duration", d),
			slog.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// authMiddleware validates API key authentication.
func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Check X-API-Key header first.
		apiKey := r.Header.Get("X-API-Key")

		// Fall back to Authorization: Bearer <key>.
		if apiKey == "" {
			auth := r.Header.Get("Authorization")
			if strings.HasPrefix(auth, "Bearer ") {
				apiKey = strings.TrimPrefix(auth, "Bearer ")
			}
		}

		// Fall back to query parameter (for simple testing).
		if apiKey == "" {
			apiKey = r.URL.Query().Get("api_key")
		}

		if apiKey == "" {
			writeError(w, http.StatusUnauthorized, "API key required")
			return
		}

		if !s.apiKeys[apiKey] {
			writeError(w, http.StatusForbidden, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// readMessage accepts either a JSON message ({"dialect", "text", ...} or
// the feed envelope) or a plain-text body with ?dialect=.
func readMessage(w http.ResponseWriter, r *http.Request) (*gds.Message, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}

	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		msg := gds.Decode(body)
		if msg == nil {
			return nil, errors.New("no reservation text in body")
		}
		if d := r.URL.Query().Get("dialect"); d != "" {
			msg.Dialect = gds.ParseDialect(d)
		}
		return msg, nil
	}

	if strings.TrimSpace(string(body)) == "" {
		return nil, errors.New("empty body")
	}
	return &gds.Message{
		Dialect: gds.ParseDialect(r.URL.Query().Get("dialect")),
		Text:    string(body),
		Source:  "api",
	}, nil
}

func (s *Server) handleParse(w http.ResponseWriter, r *http.Request) {
	msg, err := readMessage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ext, err := s.pipeline.Process(r.Context(), msg)
	var fatal *diag.FatalError
	switch {
	case errors.As(err, &fatal):
		writeError(w, http.StatusUnprocessableEntity, fatal.Error())
		return
	case errors.Is(err, registry.ErrNoParser):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, ext)
}

func (s *Server) handleExplain(w http.ResponseWriter, r *http.Request) {
	msg, err := readMessage(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	traces := s.pipeline.Extractor().Trace(msg)
	if len(traces) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "no traceable parser for dialect")
		return
	}
	writeJSON(w, http.StatusOK, traces)
}

func (s *Server) handleListParses(w http.ResponseWriter, r *http.Request) {
	if s.parseLog == nil {
		writeError(w, http.StatusNotImplemented, "parse log is not configured")
		return
	}

	q := r.URL.Query()
	params := storage.QueryParams{
		Dialect:         q.Get("dialect"),
		ReservationCode: q.Get("code"),
		Flight:          q.Get("flight"),
		Warning:         q.Get("warning"),
		FullText:        q.Get("q"),
		Failed:          q.Get("failed") == "true",
		OrderDesc:       true,
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 1000 {
			writeError(w, http.StatusBadRequest, "limit must be between 1 and 1000")
			return
		}
		params.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		params.Offset = n
	}

	entries, err := s.parseLog.Query(params)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []storage.ParseLogEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleGetParse(w http.ResponseWriter, r *http.Request) {
	if s.parseLog == nil {
		writeError(w, http.StatusNotImplemented, "parse log is not configured")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	entry, err := s.parseLog.GetByID(id)
	if errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusNotFound, "parse not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if s.parseLog == nil {
		writeError(w, http.StatusNotImplemented, "parse log is not configured")
		return
	}

	stats, err := s.parseLog.GetStats()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// Helper functions.

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
