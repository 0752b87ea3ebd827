// Vicinus - Collaborative Filtering Recommendation Service
// Copyright 2026 T. Markell (tmarkell)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tmarkell/vicinus

package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestSlogHandlerLevels(t *testing.T) {
	zerolog.SetGlobalLevel(zerolog.TraceLevel)

	tests := []struct {
		name      string
		slogLevel slog.Level
		wantLevel string
	}{
		{"debug", slog.LevelDebug, "debug"},
		{"info", slog.LevelInfo, "info"},
		{"warn", slog.LevelWarn, "warn"},
		{"error", slog.LevelError, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			handler := NewSlogHandlerWithLogger(zerolog.New(&buf).Level(zerolog.TraceLevel))
			logger := slog.New(handler)

			logger.Log(context.Background(), tt.slogLevel, "adapter message")

			output := buf.String()
			if !strings.Contains(output, `"level":"`+tt.wantLevel+`"`) {
				t.Errorf("expected level %q in output: %s", tt.wantLevel, output)
			}
			if !strings.Contains(output, "adapter message") {
				t.Errorf("expected message in output: %s", output)
			}
		})
	}
}

func TestSlogHandlerAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler)

	logger.Info("with attrs",
		slog.String("algorithm", "itemcf"),
		slog.Int("k", 10),
		slog.Bool("fallback", true),
	)

	output := buf.String()
	for _, want := range []string{`"algorithm":"itemcf"`, `"k":10`, `"fallback":true`} {
		if !strings.Contains(output, want) {
			t.Errorf("expected %s in output: %s", want, output)
		}
	}
}

func TestSlogHandlerWithAttrs(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler).With(slog.String("service", "trainer"))

	logger.Info("preconfigured")

	output := buf.String()
	if !strings.Contains(output, `"service":"trainer"`) {
		t.Errorf("expected preconfigured attr in output: %s", output)
	}
}

func TestSlogHandlerWithGroup(t *testing.T) {
	var buf bytes.Buffer
	handler := NewSlogHandlerWithLogger(zerolog.New(&buf))
	logger := slog.New(handler).WithGroup("supervisor")

	logger.Info("grouped", slog.String("state", "running"))

	output := buf.String()
	if !strings.Contains(output, `"supervisor.state":"running"`) {
		t.Errorf("expected dotted group key in output: %s", output)
	}
}

func TestSlogHandlerEnabled(t *testing.T) {
	t.Parallel()

	handler := NewSlogHandlerWithLogger(zerolog.Nop().Level(zerolog.WarnLevel))

	if handler.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug to be disabled at warn level")
	}
	if !handler.Enabled(context.Background(), slog.LevelError) {
		t.Error("expected error to be enabled at warn level")
	}
}

func TestSlogToZerologLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   slog.Level
		want zerolog.Level
	}{
		{slog.LevelDebug, zerolog.DebugLevel},
		{slog.LevelInfo, zerolog.InfoLevel},
		{slog.LevelWarn, zerolog.WarnLevel},
		{slog.LevelError, zerolog.ErrorLevel},
	}

	for _, tt := range tests {
		if got := slogToZerologLevel(tt.in); got != tt.want {
			t.Errorf("slogToZerologLevel(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
