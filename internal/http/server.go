package http

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"kitty/internal/cache"
	"kitty/internal/services"
)

type Server struct {
	http.Server
	expenses    *services.ExpenseService
	handovers   *services.HandoverService
	rateLimiter *rateLimiter
	metrics     *securityMetrics

	// Cached JSON for the live views, flushed on every mutation.
	viewCache    *cache.LRUCache[[]byte]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, expenses *services.ExpenseService, handovers *services.HandoverService) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		expenses:     expenses,
		handovers:    handovers,
		rateLimiter:  newRateLimiter(),
		metrics:      &securityMetrics{},
		viewCache:    cache.NewLRUCache[[]byte](64, 30*time.Second),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.viewCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.HandleFunc("GET /api/house", s.withSecurity(s.handleHouse))
	mux.HandleFunc("GET /api/expenses", s.withSecurity(s.handleListExpenses))
	mux.HandleFunc("POST /api/expenses", s.withSecurity(s.handleCreateExpense))
	mux.HandleFunc("PUT /api/expenses/{id}", s.withSecurity(s.handleUpdateExpense))
	mux.HandleFunc("DELETE /api/expenses/{id}", s.withSecurity(s.handleDeleteExpense))

	mux.HandleFunc("GET /api/summary", s.withSecurity(s.handleSummary))
	mux.HandleFunc("GET /api/categories", s.withSecurity(s.handleCategories))
	mux.HandleFunc("GET /api/settlement", s.withSecurity(s.handleSettlement))

	mux.HandleFunc("GET /api/periods", s.withSecurity(s.handleListPeriods))
	mux.HandleFunc("GET /api/periods/{id}", s.withSecurity(s.handleGetPeriod))
	mux.HandleFunc("GET /api/periods/{id}/expenses", s.withSecurity(s.handlePeriodExpenses))
	mux.HandleFunc("POST /api/handover/preview", s.withSecurity(s.handleHandoverPreview))
	mux.HandleFunc("POST /api/handover/confirm", s.withSecurity(s.handleHandoverConfirm))

	return s
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		if s.cacheManager != nil {
			s.cacheManager.Stop()
		}
		if s.rateLimiter != nil {
			s.rateLimiter.stop()
		}
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}

// withSecurity adds security headers, rate limiting, a request ID and
// request logging to every API handler.
func (s *Server) withSecurity(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		clientIP := extractClientIP(r)
		requestID := generateRequestID()
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"client_ip", clientIP)

		// Rate limit mutating requests only, reads are cached anyway.
		if isMutating(r.Method) && !s.rateLimiter.allow(clientIP, s.metrics) {
			slog.WarnContext(ctx, "Rate limit exceeded", "client_ip", clientIP, "method", r.Method, "url", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		duration := time.Since(start)
		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"url", r.URL.Path,
			"status", rw.statusCode,
			"duration_ms", duration.Milliseconds(),
			"client_ip", clientIP)
	}
}

type requestIDKey struct{}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	}
	return false
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
