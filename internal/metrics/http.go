package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter serves the registry at /metrics and a liveness probe at /healthz.
func NewRouter(gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	return r
}

// HTTPServer runs the metrics endpoint next to the FTP server.
type HTTPServer struct {
	srv    *http.Server
	logger *slog.Logger
}

// NewHTTPServer returns a server for addr. It does not listen until Serve.
func NewHTTPServer(addr string, gatherer prometheus.Gatherer, logger *slog.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(gatherer),
			ReadHeaderTimeout: 10 * time.Second,
		},
		logger: logger,
	}
}

// Serve accepts on l until Shutdown. It returns nil after a clean shutdown.
func (s *HTTPServer) Serve(l net.Listener) error {
	s.logger.Info("metrics_listening", "addr", l.Addr().String())
	if err := s.srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and serves.
func (s *HTTPServer) ListenAndServe() error {
	l, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return err
	}
	return s.Serve(l)
}

// Shutdown stops the endpoint gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
