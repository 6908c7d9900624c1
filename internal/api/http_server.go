package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"bengkel/internal/config"

	"github.com/rs/zerolog"
)

// HTTPServer serves the REST API.
type HTTPServer struct {
	server *http.Server
	logger *zerolog.Logger
}

func NewHTTPServer(cfg config.APIHTTPConfig, handler http.Handler, logger *zerolog.Logger) *HTTPServer {
	return &HTTPServer{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.ReadTimeout,
			WriteTimeout:      cfg.WriteTimeout,
		},
		logger: logger,
	}
}

// Start blocks until the server stops. A graceful shutdown returns nil.
func (s *HTTPServer) Start() error {
	s.logger.Info().Str("addr", s.server.Addr).Msg("HTTP API listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
