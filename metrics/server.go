package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const readHeaderTimeout = 10 * time.Second

// Server serves the collected metrics over HTTP.
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *zap.Logger
}

// Start listens on addr and serves the metrics of gatherer under /metrics.
func Start(addr string, gatherer prometheus.Gatherer, logger *zap.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s := &Server{
		httpServer: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		listener: listener,
		logger:   logger,
	}

	go func() {
		s.logger.Info("metrics server is serving", zap.String("addr", s.Addr()))
		if err := s.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server stopped unexpectedly", zap.Error(err))
		}
	}()

	return s, nil
}

// Addr is the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("metrics server shutdown failed", zap.Error(err))
		return
	}
	s.logger.Info("metrics server stopped")
}
