package http

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"bokforing/internal/core"
	"bokforing/internal/export"
	"bokforing/internal/log"
	"bokforing/internal/middleware/security"
	"bokforing/internal/normalize"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]any{
		"status":    "ok",
		"timestamp": s.now().Format(time.RFC3339),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
	}).Write(w)
}

// handleReady checks every registered dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	code := http.StatusOK
	checks := make(map[string]string, len(s.ready))
	for name, p := range s.ready {
		if err := p.Ping(ctx); err != nil {
			checks[name] = fmt.Sprintf("failed: %v", err)
			status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}
	if s.importer != nil {
		if s.importer.QueueEnabled() {
			checks["import_queue"] = "ok"
		} else {
			checks["import_queue"] = "not_configured"
		}
	}

	NewJSONResponse().Status(code).Body(map[string]any{
		"status":    status,
		"timestamp": s.now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request, rate limit and cache counters in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.trace.GetMetrics()
	rateLimitMetrics := s.limiter.GetMetrics()

	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP http_requests_in_flight Requests being served\n")
	fmt.Fprintf(w, "# TYPE http_requests_in_flight gauge\n")
	fmt.Fprintf(w, "http_requests_in_flight %d\n\n", traceMetrics.InFlight)

	fmt.Fprintf(w, "# HELP rate_limit_hits_total Total rate limit hits\n")
	fmt.Fprintf(w, "# TYPE rate_limit_hits_total counter\n")
	fmt.Fprintf(w, "rate_limit_hits_total %d\n\n", rateLimitMetrics.TotalHits)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	if s.cacheStats != nil {
		stats := s.cacheStats()
		fmt.Fprintf(w, "# HELP report_cache_hits_total Report cache hits\n")
		fmt.Fprintf(w, "# TYPE report_cache_hits_total counter\n")
		fmt.Fprintf(w, "report_cache_hits_total %d\n\n", stats.Hits)
		fmt.Fprintf(w, "# HELP report_cache_misses_total Report cache misses\n")
		fmt.Fprintf(w, "# TYPE report_cache_misses_total counter\n")
		fmt.Fprintf(w, "report_cache_misses_total %d\n\n", stats.Misses)
	}

	if s.documents != nil {
		if n, err := s.documents.CountDocuments(r.Context()); err == nil {
			fmt.Fprintf(w, "# HELP documents_stored Documents held by the store\n")
			fmt.Fprintf(w, "# TYPE documents_stored gauge\n")
			fmt.Fprintf(w, "documents_stored %d\n\n", n)
		} else {
			s.logger.WarnContext(r.Context(), "Counting documents failed", log.FieldError, err)
		}
	}

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", time.Since(s.started).Seconds())
}

func (s *Server) handleYearlyReport(w http.ResponseWriter, r *http.Request) {
	win, err := ParseWindow(r.URL.Query())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	report, err := s.reports.Report(r.Context(), win)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(report).Write(w)
}

func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	win, err := ParseWindow(r.URL.Query())
	if err != nil {
		FromError(err).Write(w)
		return
	}
	report, err := s.reports.Report(r.Context(), win)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(report.Chart).Write(w)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	win, err := ParseWindow(query)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	year, err := ParseYear(query)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	entries, err := s.reports.Breakdown(r.Context(), win, year)
	if err != nil {
		s.fail(w, r, log.OpAggregate, err)
		return
	}
	NewJSONResponse().Body(entries).Write(w)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) ([]core.Document, bool) {
	query := r.URL.Query()
	win, err := ParseWindow(query)
	if err != nil {
		FromError(err).Write(w)
		return nil, false
	}
	filter, err := ParseDocumentFilter(query)
	if err != nil {
		FromError(err).Write(w)
		return nil, false
	}
	docs, err := s.reports.Documents(r.Context(), win, filter)
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return nil, false
	}
	return docs, true
}

func (s *Server) handleDocuments(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.listDocuments(w, r)
	if !ok {
		return
	}
	NewJSONResponse().
		Header("X-Total-Count", strconv.Itoa(len(docs))).
		Body(docs).
		Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	docs, ok := s.listDocuments(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := export.WriteDocumentsCSV(&buf, docs); err != nil {
		s.fail(w, r, log.OpExport, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.FileName(s.now())))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// handleDeleteDocument removes one stored document. Reports pick the change
// up through the store's data version.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if s.documents == nil {
		ErrorResponse(http.StatusServiceUnavailable, "document store is not configured").Write(w)
		return
	}
	id := sanitizeInput(r.PathValue("id"))
	if id == "" {
		ErrorResponse(http.StatusBadRequest, "document id is required").Write(w)
		return
	}
	if err := s.documents.DeleteDocument(r.Context(), id); err != nil {
		s.fail(w, r, log.OpDelete, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleImport stores a provider payload. With a queue configured the
// payload is queued (202) unless ?sync=true asks for inline processing.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if s.importer == nil {
		ErrorResponse(http.StatusServiceUnavailable, "imports are disabled").Write(w)
		return
	}

	kind, err := normalize.ParseKind(r.PathValue("kind"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	body, err := ReadBody(w, r, s.maxBodyBytes)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	inline, _ := strconv.ParseBool(r.URL.Query().Get("sync"))
	if s.importer.QueueEnabled() && !inline {
		res, err := s.importer.Enqueue(r.Context(), kind, body)
		if err != nil {
			s.fail(w, r, log.OpImport, err)
			return
		}
		NewJSONResponse().Status(http.StatusAccepted).Body(res).Write(w)
		return
	}

	res, err := s.importer.Import(r.Context(), kind, body)
	if err != nil {
		s.fail(w, r, log.OpImport, err)
		return
	}
	NewJSONResponse().Status(http.StatusCreated).Body(res).Write(w)
}

// fail logs err at a level matching its status and writes the response.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	logger := log.FromContext(r.Context())
	if statusFor(err) >= http.StatusInternalServerError {
		log.NewStructuredLogger(logger).LogError(r.Context(), "Request failed", err, log.ComponentHTTP, op,
			log.NewFields().WithClientIP(security.ClientIP(r)))
	} else {
		logger.WarnContext(r.Context(), "Request rejected", log.FieldOperation, op, log.FieldError, err)
	}
	FromError(err).Write(w)
}
