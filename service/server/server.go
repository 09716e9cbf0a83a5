package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/brojonat/arproxy/service/config"
	"github.com/brojonat/arproxy/service/lookup"
	"github.com/brojonat/arproxy/service/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// lookupRoute is the pattern of the transaction lookup endpoint.
const lookupRoute = "/api/arweave/{transactionHash}"

// TransactionLookup resolves a transaction id. *lookup.Service implements it.
type TransactionLookup interface {
	Lookup(ctx context.Context, id string) (lookup.Result, error)
}

// Server represents the HTTP server for the Arweave lookup proxy.
type Server struct {
	addr    string
	cfg     *config.Config
	lookup  TransactionLookup
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu     sync.Mutex
	server *http.Server
}

// New creates a new HTTP server with the given dependencies.
// The cfg is optional - if nil, the metrics endpoint follows whether m is set.
// The metrics is optional - if nil, metrics endpoints won't be available.
func New(addr string, cfg *config.Config, lookup TransactionLookup, m *metrics.Metrics, logger *slog.Logger) *Server {
	return &Server{
		addr:    addr,
		cfg:     cfg,
		lookup:  lookup,
		metrics: m,
		logger:  logger,
	}
}

// Handler builds the routed handler with all middleware applied.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// Transaction lookup
	lookupHandler := recoverMiddleware(handleLookupTransaction(s.lookup, s.logger), s.logger)
	mux.Handle("GET "+lookupRoute, metrics.HTTPMetricsMiddleware(s.metrics, lookupRoute)(lookupHandler))

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Prometheus metrics endpoint (if metrics collector is configured)
	if s.metricsEnabled() {
		mux.Handle("GET /metrics", promhttp.Handler())
		s.logger.Info("Prometheus metrics endpoint enabled")
	}

	return corsMiddleware(mux)
}

func (s *Server) metricsEnabled() bool {
	if s.metrics == nil {
		return false
	}
	return s.cfg == nil || s.cfg.MetricsEnabled
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	return s.Serve(ln)
}

// Serve serves HTTP on ln and blocks until the server stops.
func (s *Server) Serve(ln net.Listener) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.writeTimeout(),
		IdleTimeout:  60 * time.Second,
	}
	s.mu.Lock()
	s.server = srv
	s.mu.Unlock()

	s.logger.Info("starting HTTP server", "addr", ln.Addr().String())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// writeTimeout leaves room for a lookup that makes four sequential gateway calls.
func (s *Server) writeTimeout() time.Duration {
	timeout := 15 * time.Second
	if s.cfg != nil && s.cfg.ArweaveTimeout > 0 {
		if t := 4*s.cfg.ArweaveTimeout + 5*time.Second; t > timeout {
			timeout = t
		}
	}
	return timeout
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()

	if srv != nil {
		return srv.Shutdown(ctx)
	}
	return nil
}

// corsMiddleware adds CORS headers to all responses and handles OPTIONS preflight requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Set CORS headers for all requests
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Max-Age", "3600")

		// Handle preflight OPTIONS requests
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// recoverMiddleware turns a panic into the same 500 response a returned
// error produces. A panic value that is not an error becomes "Unknown Error".
func recoverMiddleware(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			if v == http.ErrAbortHandler {
				panic(v)
			}
			logger.ErrorContext(r.Context(), "panic while handling request",
				"path", r.URL.Path,
				"panic", fmt.Sprint(v),
			)
			writeJSON(w, lookup.FailureMessage(v), http.StatusInternalServerError)
		}()
		next.ServeHTTP(w, r)
	})
}
