package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"financeai/internal/auth"
	"financeai/internal/cache"
	"financeai/internal/core"
	"financeai/internal/insights"
	"financeai/internal/ledger"
	"financeai/internal/log"
	"financeai/internal/services"
)

// MaxListLimit caps ?limit on the transaction list.
const MaxListLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Data(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).Round(time.Second).String(),
	}).Write(w)
}

// handleReady probes every configured dependency.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]string, len(s.ready))
	for _, c := range s.ready {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = "failed: " + err.Error()
			status = "not_ready"
			httpStatus = http.StatusServiceUnavailable
			s.logger.WarnContext(ctx, "Readiness check failed", "check", c.Name, log.FieldError, err)
			continue
		}
		checks[c.Name] = "ok"
	}

	NewJSONResponse().Status(httpStatus).Data(map[string]any{
		"status":    status,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics writes counters in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	securityMetrics := s.securityDetector.GetMetrics()
	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	var cacheStats cache.Stats
	if s.svc.Insights != nil && s.svc.Insights.Cache() != nil {
		cacheStats = s.svc.Insights.Cache().Stats()
	}

	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "counter", "Total number of HTTP requests", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "counter", "Responses with a 5xx status", traceMetrics.ServerErrors)
	metric("http_response_time_microseconds", "gauge", "Smoothed response time", traceMetrics.AverageResponseTime)
	metric("transactions_created_total", "counter", "Transactions stored through the API", atomic.LoadInt64(&s.appMetrics.transactionsCreated))
	metric("insight_requests_total", "counter", "Insight requests served", atomic.LoadInt64(&s.appMetrics.insightRequests))
	metric("insight_failures_total", "counter", "Insight requests that failed", atomic.LoadInt64(&s.appMetrics.insightFailures))
	metric("insight_cache_entries", "gauge", "Cached insight results", cacheStats.Entries)
	metric("insight_cache_hits_total", "counter", "Insight cache hits", cacheStats.Hits)
	metric("insight_cache_misses_total", "counter", "Insight cache misses", cacheStats.Misses)
	metric("rate_limit_hits_total", "counter", "Total rate limit hits", rateLimitMetrics.TotalHits)
	metric("active_rate_limit_clients", "gauge", "Currently tracked rate limit clients", rateLimitMetrics.ClientCount)
	metric("suspicious_requests_total", "counter", "Total suspicious requests detected", securityMetrics.SuspiciousRequests)
	metric("uptime_seconds", "gauge", "Application uptime in seconds", fmt.Sprintf("%.0f", time.Since(s.appMetrics.uptime).Seconds()))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	d, err := s.svc.Dashboard.Build(r.Context(), user)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	NewJSONResponse().Data(d).Write(w)
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	limit, err := ParseLimit(r.URL.Query(), services.DefaultListLimit, MaxListLimit)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	txs, err := s.svc.Ledger.ListTransactions(r.Context(), user, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if txs == nil {
		txs = []core.Transaction{}
	}
	NewJSONResponse().Data(map[string]any{"transactions": txs}).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	in, err := ParseNewTransaction(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	user, _ := auth.UserFromContext(r.Context())
	tx, err := s.svc.Ledger.AddTransaction(r.Context(), user, in)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.transactionsCreated, 1)
	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/transactions/"+tx.ID).
		Data(map[string]any{"transaction": tx}).
		Write(w)
}

// handleInsights analyses the caller's stored ledger. An upstream failure
// that is neither a rate limit nor a quota error is reported as 502.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	atomic.AddInt64(&s.appMetrics.insightRequests, 1)
	out, err := s.svc.Insights.ForUser(r.Context(), user)
	if err != nil {
		s.writeInsightError(w, r, err, http.StatusBadGateway)
		return
	}
	NewJSONResponse().Data(map[string]any{"insights": out}).Write(w)
}

// handleInsightsFromBody analyses the transactions sent by the caller.
func (s *Server) handleInsightsFromBody(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	txs, err := ParseInsightsRequest(r, user.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.insightRequests, 1)
	out, err := s.svc.Insights.Generate(r.Context(), user.ID, txs)
	if err != nil {
		s.writeInsightError(w, r, err, http.StatusInternalServerError)
		return
	}
	NewJSONResponse().Data(map[string]any{"insights": out}).Write(w)
}

func (s *Server) handleInsightStatus(w http.ResponseWriter, r *http.Request) {
	user, _ := auth.UserFromContext(r.Context())
	NewJSONResponse().Data(s.svc.Insights.Status(user.ID)).Write(w)
}

func (s *Server) writeInsightError(w http.ResponseWriter, r *http.Request, err error, failedStatus int) {
	var f *insights.Failure
	if !errors.As(err, &f) {
		s.writeError(w, r, err)
		return
	}
	atomic.AddInt64(&s.appMetrics.insightFailures, 1)

	status := failedStatus
	switch f.Kind {
	case insights.RateLimited:
		status = http.StatusTooManyRequests
	case insights.QuotaExhausted:
		status = http.StatusPaymentRequired
	}
	NewJSONResponse().
		Status(status).
		Data(ErrorBody{Error: f.Message(), Kind: f.Kind.String()}).
		Write(w)
}

// writeError maps the error taxonomy onto status codes. Store and unknown
// errors are logged; their details never reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		FieldError(verr.Field, verr.Err.Error()).Write(w)
	case errors.Is(err, errMalformedBody):
		BadRequestError(err.Error()).Write(w)
	case errors.Is(err, auth.ErrAuthRequired):
		UnauthorizedError().Write(w)
	case errors.Is(err, ledger.ErrStore):
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogFailure(r.Context(), "Ledger store failure", err, log.ErrorTypeDatabase, r.Method+" "+r.URL.Path)
		InternalServerError("failed to access ledger").Write(w)
	default:
		log.NewStructuredLogger(log.FromContext(r.Context())).
			LogFailure(r.Context(), "Request failed", err, log.ErrorTypeInternal, r.Method+" "+r.URL.Path)
		InternalServerError("internal error").Write(w)
	}
}
