// Package dashboard exposes the latest run over HTTP for humans and tools.
package dashboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/jbouvier/intelwatch/internal/report"
	"github.com/jbouvier/intelwatch/internal/scrape"
)

// Server serves the most recent run result. It holds at most one result;
// each finished run replaces the previous one.
type Server struct {
	mu     sync.RWMutex
	latest *scrape.RunResult

	router chi.Router
	http   *http.Server
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(addr string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{logger: logger}

	r := chi.NewRouter()
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(timeoutMiddleware(30 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/runs/latest", func(r chi.Router) {
			r.Get("/", s.getLatestRun)
			r.Get("/articles", s.getLatestArticles)
			r.Get("/outcomes", s.getLatestOutcomes)
			r.Get("/digest", s.getLatestDigest)
		})
	})

	s.router = r
	s.http = &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the router for use with httptest or a custom http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Publish replaces the result served by the dashboard.
func (s *Server) Publish(result *scrape.RunResult) {
	s.mu.Lock()
	s.latest = result
	s.mu.Unlock()
}

// Start listens on the configured address until ctx is canceled, then
// shuts down gracefully. Blocks for the lifetime of the server.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", zap.String("addr", s.http.Addr))
		errCh <- s.http.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.http.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("dashboard shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("dashboard serve: %w", err)
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getLatestRun(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no run completed yet")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getLatestArticles(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no run completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   result.RunID,
		"articles": result.Articles,
	})
}

func (s *Server) getLatestOutcomes(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no run completed yet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":     result.RunID,
		"incomplete": result.Incomplete,
		"stats":      result.Stats,
		"outcomes":   result.Outcomes,
	})
}

// getLatestDigest renders the Markdown report on the fly, handy for
// piping into a pager.
func (s *Server) getLatestDigest(w http.ResponseWriter, _ *http.Request) {
	result, ok := s.snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no run completed yet")
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	if _, err := report.NewMarkdownWriter(w).Write(result); err != nil {
		s.logger.Error("digest render failed", zap.Error(err))
	}
}

func (s *Server) snapshot() (*scrape.RunResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type requestIDKey struct{}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}

// Addr reports the listen address, useful in logs when the port is 0.
func Addr(host string, port int) string {
	return net.JoinHostPort(host, fmt.Sprintf("%d", port))
}
