// Package metrics implements an HTTP server that exposes the Prometheus
// collectors of the application.
package metrics

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"go.dedis.ch/duet"
	"golang.org/x/xerrors"
)

type key int

const (
	requestIDKey key = 0

	// Path is the path where the metrics are served.
	Path = "/metrics"

	shutdownTimeout = 10 * time.Second
)

// Server is an HTTP server for the metrics.
type Server struct {
	server   *http.Server
	registry *prometheus.Registry
	logger   zerolog.Logger
	addr     string
	ln       net.Listener
	done     chan struct{}
}

// NewServer creates a new server that will listen on the address. An empty
// address uses a random free port.
func NewServer(addr string) *Server {
	logger := duet.Logger.With().Str("role", "metrics").Logger()

	registry := prometheus.NewRegistry()

	mux := http.NewServeMux()
	mux.Handle(Path, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	return &Server{
		server: &http.Server{
			Handler: tracing(logging(logger)(mux)),
		},
		registry: registry,
		logger:   logger,
		addr:     addr,
		done:     make(chan struct{}),
	}
}

// Register registers the collectors to the server.
func (s *Server) Register(collectors ...prometheus.Collector) error {
	for _, c := range collectors {
		err := s.registry.Register(c)
		if err != nil {
			return xerrors.Errorf("failed to register: %v", err)
		}
	}

	return nil
}

// Start opens the listener and serves the requests in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return xerrors.Errorf("failed to create conn '%s': %v", s.addr, err)
	}

	s.ln = ln

	go func() {
		defer close(s.done)

		err := s.server.Serve(ln)
		if err != nil && err != http.ErrServerClosed {
			s.logger.Err(err).Msg("server stopped unexpectedly")
		}
	}()

	s.logger.Info().Stringer("addr", ln.Addr()).Msg("metrics server started")

	return nil
}

// GetAddr returns the address of the listener, or nil if the server is not
// started.
func (s *Server) GetAddr() net.Addr {
	if s.ln == nil {
		return nil
	}

	return s.ln.Addr()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.ln == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	s.server.SetKeepAlivesEnabled(false)

	err := s.server.Shutdown(ctx)
	if err != nil {
		return xerrors.Errorf("failed to shutdown: %v", err)
	}

	<-s.done

	s.logger.Info().Msg("metrics server stopped")

	return nil
}

// logging is a utility function that logs the http server events
func logging(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				requestID, ok := r.Context().Value(requestIDKey).(string)
				if !ok {
					requestID = "unknown"
				}

				logger.Debug().Str("requestID", requestID).
					Str("method", r.Method).
					Str("url", r.URL.Path).
					Str("remoteAddr", r.RemoteAddr).
					Msg("request served")
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// tracing is a utility function that adds header tracing
func tracing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-Id")
		if requestID == "" {
			requestID = xid.New().String()
		}

		ctx := context.WithValue(r.Context(), requestIDKey, requestID)
		w.Header().Set("X-Request-Id", requestID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
