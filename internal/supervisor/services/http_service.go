// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// HTTPServer matches the *http.Server lifecycle methods the wrapper
// needs, which keeps the service testable with mocks.
type HTTPServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPService runs an HTTP server as a supervised service, translating
// the blocking ListenAndServe pattern into suture's context-aware one:
// the server runs in a goroutine, and context cancellation triggers a
// graceful Shutdown bounded by the shutdown timeout.
type HTTPService struct {
	server          HTTPServer
	name            string
	shutdownTimeout time.Duration
}

// NewHTTPService wraps server for supervision. The name labels the
// service in supervisor logs.
func NewHTTPService(server HTTPServer, name string, shutdownTimeout time.Duration) *HTTPService {
	if name == "" {
		name = "http-server"
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 10 * time.Second
	}

	return &HTTPService{
		server:          server,
		name:            name,
		shutdownTimeout: shutdownTimeout,
	}
}

// Serve implements suture.Service. It returns nil after a graceful
// shutdown; http.ErrServerClosed is expected then and swallowed.
func (s *HTTPService) Serve(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
		return nil

	case <-ctx.Done():
		// The serve context is already canceled; shutdown needs its own.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()

		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("%s shutdown: %w", s.name, err)
		}

		<-errCh
		return ctx.Err()
	}
}

// String returns the service name for supervisor logs.
func (s *HTTPService) String() string {
	return s.name
}
