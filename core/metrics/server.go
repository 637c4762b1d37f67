package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/recipebot/core/logger"
)

const shutdownTimeout = 5 * time.Second

// Server exposes the metrics registry and a liveness check over HTTP.
type Server struct {
	srv       *http.Server
	startedAt time.Time
	done      chan struct{}
}

// NewServer builds a server listening on addr. path is where metrics are served.
func NewServer(addr, path string, m *Metrics) *Server {
	if m == nil {
		m = Default()
	}
	s := &Server{startedAt: time.Now(), done: make(chan struct{})}
	s.srv = &http.Server{
		Addr:              addr,
		Handler:           s.router(path, m),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) router(path string, m *Metrics) http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Handle(path, promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":         "ok",
		"uptime_seconds": int64(time.Since(s.startedAt).Seconds()),
	})
}

// Start serves in the background until ctx is done or Stop is called.
func (s *Server) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		logger.Info(ctx, logger.CompMetrics, "metrics.listen",
			slog.String("listen", s.srv.Addr),
		)
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, logger.CompMetrics, "metrics.serve",
				slog.String("status", "fail"),
				slog.String("err", err.Error()),
			)
		}
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = s.Stop()
		case <-s.done:
		}
	}()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// Handler returns the underlying router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}
