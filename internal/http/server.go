package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"bokforing/internal/cache"
	"bokforing/internal/core"
	"bokforing/internal/log"
	"bokforing/internal/middleware/ratelimit"
	"bokforing/internal/middleware/security"
	"bokforing/internal/middleware/trace"
	"bokforing/internal/normalize"
	"bokforing/internal/services"
)

// DefaultMaxBodyBytes caps import request bodies.
const DefaultMaxBodyBytes = 8 << 20

// Reports is the read side used by the report and document handlers.
type Reports interface {
	Report(ctx context.Context, w core.Window) (*services.Report, error)
	Breakdown(ctx context.Context, w core.Window, year string) ([]core.BreakdownEntry, error)
	Documents(ctx context.Context, w core.Window, f core.DocumentFilter) ([]core.Document, error)
}

// Importer is the write side used by the import handler.
type Importer interface {
	Import(ctx context.Context, kind normalize.Kind, payload []byte) (services.ImportResult, error)
	Enqueue(ctx context.Context, kind normalize.Kind, payload []byte) (services.ImportResult, error)
	QueueEnabled() bool
}

// DocumentStore counts and removes stored documents.
type DocumentStore interface {
	CountDocuments(ctx context.Context) (int64, error)
	DeleteDocument(ctx context.Context, id string) error
}

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options wires the server's collaborators.
type Options struct {
	Reports            Reports
	Importer           Importer
	Documents          DocumentStore
	Ready              map[string]Pinger
	Logger             *log.Logger
	RateLimitPerMinute int
	MaxBodyBytes       int64
	CacheStats         func() cache.Stats
}

type Server struct {
	http.Server
	reports      Reports
	importer     Importer
	documents    DocumentStore
	ready        map[string]Pinger
	logger       *log.Logger
	limiter      *ratelimit.Limiter
	trace        *trace.Middleware
	maxBodyBytes int64
	cacheStats   func() cache.Stats
	started      time.Time
	now          func() time.Time

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}

	s := &Server{
		reports:      opts.Reports,
		importer:     opts.Importer,
		documents:    opts.Documents,
		ready:        opts.Ready,
		logger:       logger.WithComponent(log.ComponentHTTP),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		trace:        trace.NewMiddleware(security.ClientIP),
		maxBodyBytes: maxBody,
		cacheStats:   opts.CacheStats,
		started:      time.Now(),
		now:          time.Now,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /api/reports/yearly", s.handleYearlyReport)
	mux.HandleFunc("GET /api/reports/chart", s.handleChart)
	mux.HandleFunc("GET /api/reports/breakdown", s.handleBreakdown)
	mux.Handle("GET /api/documents", security.NoStore(http.HandlerFunc(s.handleDocuments)))
	mux.Handle("GET /api/documents/export.csv", security.NoStore(http.HandlerFunc(s.handleExportCSV)))
	mux.HandleFunc("DELETE /api/documents/{id}", s.handleDeleteDocument)
	mux.HandleFunc("POST /api/imports/{kind}", s.handleImport)

	var handler http.Handler = mux
	handler = s.limiter.Middleware(security.ClientIP, s.onRateLimit)(handler)
	handler = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(handler)
	handler = log.Middleware(s.logger, trace.RequestID)(handler)
	handler = s.trace.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) onRateLimit(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, security.ClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded").Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
