// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package services

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/thejerf/suture/v4"
)

// mockHTTPServer is a test double for the HTTPServer interface.
type mockHTTPServer struct {
	listenErr   error
	shutdownErr error
	listenCount atomic.Int32
	stopCount   atomic.Int32
	started     chan struct{}
	stopCh      chan struct{}
}

func newMockHTTPServer() *mockHTTPServer {
	return &mockHTTPServer{
		started: make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

func (m *mockHTTPServer) ListenAndServe() error {
	m.listenCount.Add(1)

	select {
	case m.started <- struct{}{}:
	default:
	}

	if m.listenErr != nil {
		return m.listenErr
	}

	<-m.stopCh
	return http.ErrServerClosed
}

func (m *mockHTTPServer) Shutdown(_ context.Context) error {
	m.stopCount.Add(1)
	close(m.stopCh)
	return m.shutdownErr
}

func TestHTTPServiceInterface(t *testing.T) {
	var _ suture.Service = (*HTTPService)(nil)
}

func TestNewHTTPServiceDefaults(t *testing.T) {
	svc := NewHTTPService(newMockHTTPServer(), "", 0)

	if got := svc.String(); got != "http-server" {
		t.Errorf("String() = %q, want %q", got, "http-server")
	}
	if svc.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v, want %v", svc.shutdownTimeout, 10*time.Second)
	}

	svc = NewHTTPService(newMockHTTPServer(), "ops-http", 5*time.Second)
	if got := svc.String(); got != "ops-http" {
		t.Errorf("String() = %q, want %q", got, "ops-http")
	}
}

func TestHTTPServiceServe(t *testing.T) {
	t.Run("shuts down gracefully on context cancellation", func(t *testing.T) {
		server := newMockHTTPServer()
		svc := NewHTTPService(server, "ops-http", time.Second)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		select {
		case <-server.started:
		case <-time.After(time.Second):
			t.Fatal("server did not start")
		}

		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, context.Canceled) {
				t.Errorf("Serve() = %v, want context.Canceled", err)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return after cancellation")
		}

		if got := server.listenCount.Load(); got != 1 {
			t.Errorf("ListenAndServe called %d times, want 1", got)
		}
		if got := server.stopCount.Load(); got != 1 {
			t.Errorf("Shutdown called %d times, want 1", got)
		}
	})

	t.Run("returns error on startup failure", func(t *testing.T) {
		wantErr := errors.New("bind: address already in use")
		server := newMockHTTPServer()
		server.listenErr = wantErr
		svc := NewHTTPService(server, "ops-http", time.Second)

		if err := svc.Serve(context.Background()); !errors.Is(err, wantErr) {
			t.Errorf("Serve() = %v, want %v", err, wantErr)
		}
	})

	t.Run("returns shutdown error when shutdown fails", func(t *testing.T) {
		wantErr := errors.New("shutdown timeout")
		server := newMockHTTPServer()
		server.shutdownErr = wantErr
		svc := NewHTTPService(server, "ops-http", time.Second)

		ctx, cancel := context.WithCancel(context.Background())

		errCh := make(chan error, 1)
		go func() {
			errCh <- svc.Serve(ctx)
		}()

		<-server.started
		cancel()

		select {
		case err := <-errCh:
			if !errors.Is(err, wantErr) {
				t.Errorf("Serve() = %v, want %v", err, wantErr)
			}
		case <-time.After(2 * time.Second):
			t.Fatal("Serve did not return")
		}
	})
}
