// Package http serves the ledger operations as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"kakeibo/internal/cache"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/services"
	"kakeibo/internal/slack"
)

const maxBodyBytes = 1 << 20

// Options tunes the server. Zero values select defaults.
type Options struct {
	RateLimitPerMinute int
	Logger             *log.Logger
}

type Server struct {
	http.Server
	ledgers  *services.LedgerService
	reports  *services.ReportService
	verifier *slack.Verifier

	logger   *log.Logger
	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware
	caches   *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
// verifier may be nil, in which case slash commands answer 503.
func NewServer(addr string, ledgers *services.LedgerService, reports *services.ReportService, verifier *slack.Verifier, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	if verifier == nil {
		verifier = slack.NewVerifier("", "")
	}
	// Amounts are served as JSON numbers.
	decimal.MarshalJSONWithoutQuotes = true

	rlCfg := ratelimit.DefaultConfig()
	if opts.RateLimitPerMinute > 0 {
		rlCfg.RequestsPerMinute = opts.RateLimitPerMinute
	}

	s := &Server{
		ledgers:  ledgers,
		reports:  reports,
		verifier: verifier,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(rlCfg),
		detector: security.NewDetector(),
		caches:   cache.NewManager(logger.WithComponent(log.ComponentApp)),
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	s.caches.Register(verifier.ReplayCache())
	s.caches.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /read_csv", s.handleReadCSV)
	mux.HandleFunc("POST /summarize", s.handleSummarize)
	mux.HandleFunc("POST /report", s.handleReport)
	mux.HandleFunc("POST /slack/command", s.handleSlackCommand)
	mux.HandleFunc("GET /deliveries", s.handleDeliveries)

	var h http.Handler = mux
	h = s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(h)
	h = s.flagSuspicious(h)
	h = s.tracer.Middleware(h)
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// flagSuspicious logs requests that look like scans. They are still served.
func (s *Server) flagSuspicious(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WithComponent(log.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldPath, r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
}

// Shutdown gracefully shuts down the server and its background routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
