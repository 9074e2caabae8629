package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"financeai/internal/auth"
	"financeai/internal/log"
	"financeai/internal/middleware/ratelimit"
	"financeai/internal/middleware/security"
	"financeai/internal/middleware/trace"
	"financeai/internal/services"
)

// ReadinessCheck is one dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Options tunes the server around its handlers.
type Options struct {
	RateLimitPerMin int
	AllowedOrigins  []string
	Readiness       []ReadinessCheck
}

// Services are the operations the API exposes.
type Services struct {
	Ledger    *services.LedgerService
	Dashboard *services.DashboardService
	Insights  *services.InsightService
}

type appMetrics struct {
	uptime              time.Time
	transactionsCreated int64
	insightRequests     int64
	insightFailures     int64
}

type Server struct {
	http.Server
	verifier *auth.Verifier
	svc      Services
	ready    []ReadinessCheck
	logger   *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, verifier *auth.Verifier, svc Services, opts Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	detector := security.NewDetector(logger)

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			// Insight generation can take most of a minute upstream.
			WriteTimeout: 90 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		verifier:         verifier,
		svc:              svc,
		ready:            opts.Readiness,
		logger:           logger.WithComponent(log.ComponentHTTP),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMin}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(detector.ExtractClientIP, logger),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	headersCfg := security.DefaultHeadersConfig()
	headersCfg.AllowedOrigins = opts.AllowedOrigins
	headers := security.NewHeadersMiddleware(headersCfg)

	api := http.NewServeMux()
	api.HandleFunc("GET /api/dashboard", s.handleDashboard)
	api.HandleFunc("GET /api/transactions", s.handleListTransactions)
	api.HandleFunc("POST /api/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/insights", s.handleInsights)
	api.HandleFunc("POST /api/insights", s.handleInsightsFromBody)
	api.HandleFunc("GET /api/insights/status", s.handleInsightStatus)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)
	authed := verifier.Middleware(s.onAuthFailed)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("/api/", limited(authed(api)))
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("not found").Write(w)
	})

	s.Handler = s.traceMiddleware.Middleware(
		detector.Middleware(
			headers.Middleware(mux)))

	return s
}

func (s *Server) onAuthFailed(w http.ResponseWriter, r *http.Request, err error) {
	log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected unauthenticated request",
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	UnauthorizedError().Write(w)
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldErrorType, log.ErrorTypeRateLimited)
	ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
}

// Shutdown stops the rate limiter and drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
