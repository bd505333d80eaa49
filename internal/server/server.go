package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"claim-rag/internal/models"
)

// Service is what the HTTP API needs from the RAG pipeline.
type Service interface {
	Decide(ctx context.Context, query string, k int) (*models.Decision, error)
	Summarize(ctx context.Context, text string) (*models.ClauseSummary, error)
	Chat(ctx context.Context, messages []models.ChatMessage) (string, error)
	Ready() bool
}

// Server is the claim adjudication HTTP server.
type Server struct {
	httpServer *http.Server
	svc        Service
	topK       int
	maxUpload  int64

	mu      sync.RWMutex
	running bool
}

// Config holds server configuration.
type Config struct {
	// Host is the address to bind to (default: 0.0.0.0)
	Host string
	// Port is the port to listen on (default: 8000)
	Port string
	// TopK is the number of clauses retrieved per query (default: 5)
	TopK int
	// WriteTimeout bounds a whole request including model calls (default: 5m)
	WriteTimeout time.Duration
	// MaxUploadBytes caps the optional file on /query (default: 32 MiB)
	MaxUploadBytes int64
	Service        Service
}

// New creates a new Server with the given configuration.
func New(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("server requires a service")
	}
	if cfg.Host == "" {
		cfg.Host = "0.0.0.0"
	}
	if cfg.Port == "" {
		cfg.Port = "8000"
	}
	if cfg.TopK <= 0 {
		cfg.TopK = models.DefaultTopK
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 32 << 20
	}

	s := &Server{svc: cfg.Service, topK: cfg.TopK, maxUpload: cfg.MaxUploadBytes}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Handler:      s.withMiddleware(mux),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("server already running")
	}
	s.running = true
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			s.setNotRunning()
			return fmt.Errorf("HTTP server error: %w", err)
		}
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	err := s.httpServer.Shutdown(shutdownCtx)
	if err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}
	s.setNotRunning()
	log.Info().Msg("Server stopped")
	return err
}

func (s *Server) setNotRunning() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}
