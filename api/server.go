// Package api provides the HTTP API for the annual report downloader.
//
// It exposes download jobs, the name → ticker resolver, the recent filings
// feed and a WebSocket stream of job narration.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/seenimoa/annualreport/internal/config"
	"github.com/seenimoa/annualreport/internal/engine"
	"github.com/seenimoa/annualreport/internal/feed"
	"github.com/seenimoa/annualreport/pkg/models"
	"github.com/seenimoa/annualreport/pkg/utils"
	"github.com/seenimoa/annualreport/web"
)

// RecentFeed lists recent filings.
type RecentFeed interface {
	Recent(ctx context.Context, q feed.Query) ([]feed.Filing, error)
}

// Options configures a Server.
type Options struct {
	Config  *config.Config
	Engine  *engine.Engine
	Feed    RecentFeed // optional; /recent answers 503 without it
	Logger  *zap.Logger
	Version string
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	engine  *engine.Engine
	feed    RecentFeed
	jobs    *JobStore
	wsHub   *WSHub
	slots   *semaphore.Weighted // jobs allowed to download at once
	log     *zap.Logger
	version string

	// jobCtx outlives requests; it is cancelled on shutdown.
	jobCtx    context.Context
	cancelJob context.CancelFunc
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	version := opts.Version
	if version == "" {
		version = "dev"
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		cfg:       cfg,
		engine:    opts.Engine,
		feed:      opts.Feed,
		jobs:      NewJobStore(maxJobs),
		wsHub:     NewWSHub(logger),
		slots:     semaphore.NewWeighted(int64(max(cfg.API.MaxJobs, 1))),
		log:       logger.Named("api"),
		version:   version,
		jobCtx:    ctx,
		cancelJob: cancel,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully and cancels running jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go s.wsHub.Run(s.jobCtx)

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.cancelJob()
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	s.cancelJob()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)

	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/health", s.handleHealth)

	// WebSocket connections are long-lived and stay outside the timeout.
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))

		r.Get("/health", s.handleHealth)

		r.Post("/jobs", s.handleCreateJob)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)

		r.Get("/resolve", s.handleResolve)
		r.Get("/recent", s.handleRecent)
	})

	s.mountUI(r, web.DistFS())

	return r
}

// mountUI serves the embedded front end. Unknown paths fall back to
// index.html so the page survives reloads on any URL.
func (s *Server) mountUI(r chi.Router, distFS fs.FS) {
	fileServer := http.FileServerFS(distFS)

	r.Get("/*", func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(r.URL.Path, "/")
		if name == "" {
			name = "index.html"
		}
		if _, err := fs.Stat(distFS, name); err != nil {
			serveIndexHTML(w, distFS)
			return
		}
		if strings.HasSuffix(name, ".html") {
			w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
		}
		fileServer.ServeHTTP(w, r)
	})
}

func serveIndexHTML(w http.ResponseWriter, distFS fs.FS) {
	data, err := fs.ReadFile(distFS, "index.html")
	if err != nil {
		http.Error(w, "web UI not available", http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(http.StatusOK)
	w.Write(data) //nolint:errcheck
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("took", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// JobRequest is the body for POST /api/v1/jobs.
type JobRequest struct {
	Companies     []string `json:"companies"`
	Company       string   `json:"company,omitempty"` // comma-separated, like the CLI
	Year          int      `json:"year,omitempty"`    // default: current year (IST)
	Exchange      string   `json:"exchange,omitempty"` // bse, nse or both (default)
	ResolveSymbol bool     `json:"resolve_symbol,omitempty"`
}

// ResolveResponse is returned by GET /api/v1/resolve.
type ResolveResponse struct {
	Query  string `json:"query"`
	Symbol string `json:"symbol"`
}

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]any{
			"status":    "ok",
			"version":   s.version,
			"time_ist":  utils.FormatDateTimeIST(utils.NowIST()),
			"jobs":      s.jobs.Len(),
			"ws_client": s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		writeError(w, http.StatusServiceUnavailable, "download engine not configured")
		return
	}

	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	companies := normalizeCompanies(req)
	if len(companies) == 0 {
		writeError(w, http.StatusBadRequest, "at least one company is required")
		return
	}
	exchanges, err := models.ParseExchanges(req.Exchange)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	year := req.Year
	if year == 0 {
		year = utils.CurrentYearIST()
	}
	if year < 1000 || year > 9999 {
		writeError(w, http.StatusBadRequest, "year must be a 4-digit year")
		return
	}

	job := s.jobs.Create(companies, year, exchanges)
	go s.runJob(job)

	writeJSON(w, http.StatusAccepted, APIResponse{Success: true, Data: job.View()})
}

func normalizeCompanies(req JobRequest) []string {
	var out []string
	for _, c := range append(req.Companies, req.Company) {
		for _, name := range utils.SplitList(c) {
			if req.ResolveSymbol {
				name = utils.ResolveSymbol(name)
			}
			out = append(out, name)
		}
	}
	return out
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: s.jobs.List()})
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, ok := s.jobs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: job.View()})
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    ResolveResponse{Query: q, Symbol: utils.ResolveSymbol(q)},
	})
}

func (s *Server) handleRecent(w http.ResponseWriter, r *http.Request) {
	if s.feed == nil {
		writeError(w, http.StatusServiceUnavailable, "filings feed not configured")
		return
	}
	q := feed.Query{Company: strings.TrimSpace(r.URL.Query().Get("company")), Limit: 20}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		q.Limit = n
	}
	if v := r.URL.Query().Get("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1000 || n > 9999 {
			writeError(w, http.StatusBadRequest, "year must be a 4-digit year")
			return
		}
		q.Year = n
	}
	q.Refresh, _ = strconv.ParseBool(r.URL.Query().Get("refresh"))

	filings, err := s.feed.Recent(r.Context(), q)
	if err != nil {
		s.log.Warn("feed fetch failed", zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to read filings feed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: filings})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client went away
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
