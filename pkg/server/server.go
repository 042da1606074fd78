package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Layr-Labs/secora-signer-go/pkg/metrics"
	"github.com/Layr-Labs/secora-signer-go/pkg/orchestrator"
	"github.com/Layr-Labs/secora-signer-go/pkg/persistence"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

/*
Server is the HTTP request source of the signer.

Endpoints:
  POST /sign:
    - Request: types.SignRequestV1
    - Always answers 200 with types.SignResponseV1, either approved with the
      result and signature or rejected with "<ErrorKind>: <message>"
    - 400 for undecodable bodies, 429 when rate limited

  GET /pubkey?keyHandle=N:
    - Uncompressed public key and the address it controls

  GET /journal, GET /journal/{id}:
    - Signing records in creation order

  GET /metrics, GET /health
*/
type Server struct {
	orchestrator *orchestrator.Orchestrator
	journal      persistence.ISigningJournal
	metrics      *metrics.Metrics
	limiter      *rate.Limiter
	logger       *zap.Logger
	httpServer   *http.Server
}

type Config struct {
	Port int

	// RateLimit is the sustained number of /sign requests per second; 0 disables limiting
	RateLimit      float64
	RateLimitBurst int

	// Gatherer backs /metrics, prometheus.DefaultGatherer when nil
	Gatherer prometheus.Gatherer
}

// NewServer creates a new server instance. journal and m may be nil.
func NewServer(o *orchestrator.Orchestrator, journal persistence.ISigningJournal, m *metrics.Metrics, cfg *Config, logger *zap.Logger) *Server {
	s := &Server{
		orchestrator: o,
		journal:      journal,
		metrics:      m,
		logger:       logger,
	}
	if cfg.RateLimit > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateLimitBurst)
	}
	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/sign", s.rateLimited(http.HandlerFunc(s.handleSign)))
	mux.HandleFunc("/pubkey", s.handleGetPublicKey)
	mux.HandleFunc("/journal", s.handleListJournal)
	mux.HandleFunc("/journal/", s.handleGetJournalRecord)
	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	go func() {
		s.logger.Sugar().Infow("Starting HTTP server", "port", s.httpServer.Addr, "chainId", s.orchestrator.ChainID().String())
		if err := s.httpServer.ListenAndServe(); err != http.ErrServerClosed {
			s.logger.Sugar().Errorw("HTTP server error", "error", err)
		}
	}()
	return nil
}

// Stop waits for in-flight requests until ctx ends, then closes the server
func (s *Server) Stop(ctx context.Context) error {
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return s.httpServer.Close()
	}
	return nil
}

// GetHandler returns the HTTP handler (for testing)
func (s *Server) GetHandler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) rateLimited(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			if s.metrics != nil {
				s.metrics.RateLimitedTotal.Inc()
			}
			s.logger.Sugar().Debugw("Rate limited request", "remote", r.RemoteAddr)
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
