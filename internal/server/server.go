package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Fumiaki0604/ga4-analytics-chat/internal/analyzer"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/anomaly"
	"github.com/Fumiaki0604/ga4-analytics-chat/internal/config"
)

type Server struct {
	cfg      config.ServerConfig
	server   *http.Server
	analyzer *analyzer.Analyzer
	insights *anomaly.Insights
}

func New(cfg config.Config, analyzer *analyzer.Analyzer, insights *anomaly.Insights) *Server {
	s := &Server{
		cfg:      cfg.Server,
		analyzer: analyzer,
		insights: insights,
	}

	// Create router and register handlers
	mux := http.NewServeMux()

	// API routes
	mux.HandleFunc("/api/v1/chat", s.withMiddleware(s.handleChat))
	mux.HandleFunc("/api/v1/insights", s.withMiddleware(s.handleInsights))
	mux.HandleFunc("/api/v1/health", s.withMiddleware(s.handleHealth))

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) Run() error {
	// Create a channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		slog.Info("starting server", "address", s.server.Addr)
		serverErrors <- s.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		slog.Info("starting shutdown", "signal", sig)

		// Give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
