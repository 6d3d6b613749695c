package trace

import (
	"context"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"kakeibo/internal/log"
)

// ContextKey type for context keys
type ContextKey string

const (
	// RequestIDKey is the context key for request ID
	RequestIDKey ContextKey = "request_id"

	// HeaderRequestID is echoed on every response.
	HeaderRequestID = "X-Request-ID"
)

// Middleware assigns a request ID, puts a request-scoped logger in the
// context and logs request start and completion.
type Middleware struct {
	extractIP func(*http.Request) string
	logger    *log.Logger
	metrics   *Metrics
}

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests  int64
	LastResponseUs int64
	ServerErrors   int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware(logger *log.Logger, extractIP func(*http.Request) string) *Middleware {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &Middleware{
		extractIP: extractIP,
		logger:    logger.WithComponent(log.ComponentHTTP),
		metrics:   &Metrics{},
	}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := ""
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = GenerateRequestID()
		}
		w.Header().Set(HeaderRequestID, requestID)

		logger := m.logger.With(log.FieldRequestID, requestID)
		ctx := context.WithValue(r.Context(), RequestIDKey, requestID)
		ctx = log.NewContext(ctx, logger)
		r = r.WithContext(ctx)

		logger.DebugContext(ctx, "HTTP request started",
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldClientIP, clientIP,
			"user_agent", r.Header.Get("User-Agent"),
			"content_length", r.ContentLength)

		atomic.AddInt64(&m.metrics.TotalRequests, 1)

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		duration := time.Since(start)
		atomic.StoreInt64(&m.metrics.LastResponseUs, duration.Microseconds())

		level := slog.LevelInfo
		switch {
		case rw.statusCode >= 500:
			level = slog.LevelError
			atomic.AddInt64(&m.metrics.ServerErrors, 1)
		case rw.statusCode >= 400:
			level = slog.LevelWarn
		}

		logger.Log(ctx, level, "HTTP request completed",
			log.FieldComponent, log.ComponentHTTP,
			log.FieldMethod, r.Method,
			log.FieldPath, r.URL.Path,
			log.FieldStatusCode, rw.statusCode,
			log.FieldDuration, duration.Milliseconds(),
			log.FieldClientIP, clientIP,
			log.FieldSuccess, rw.statusCode < 400)
	})
}

// responseWriter wraps http.ResponseWriter to capture the status code
type responseWriter struct {
	http.ResponseWriter
	statusCode  int
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.statusCode = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

// GenerateRequestID creates a unique request ID for tracing
func GenerateRequestID() string {
	return uuid.NewString()
}

// GetRequestID extracts the request ID from context
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	return Metrics{
		TotalRequests:  atomic.LoadInt64(&m.metrics.TotalRequests),
		LastResponseUs: atomic.LoadInt64(&m.metrics.LastResponseUs),
		ServerErrors:   atomic.LoadInt64(&m.metrics.ServerErrors),
	}
}
