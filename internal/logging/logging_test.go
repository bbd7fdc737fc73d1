package logging

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" INFO ", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"verbose", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestNewLoggerWithConfig_FiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithConfig(LogConfig{Level: "warn", Console: true, Output: &buf})

	logger.Info().Msg("below threshold")
	logger.Warn().Str("model", "gpt-4o-mini").Msg("provider slow")

	out := buf.String()
	if strings.Contains(out, "below threshold") {
		t.Errorf("info message should be filtered: %q", out)
	}
	if !strings.Contains(out, "provider slow") || !strings.Contains(out, "gpt-4o-mini") {
		t.Errorf("warn message missing: %q", out)
	}
}

func TestNewLoggerWithConfig_WritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "tradecoach.log")
	logger := NewLoggerWithConfig(LogConfig{
		Level:    "info",
		File:     true,
		FilePath: path,
		MaxSize:  1,
	})

	logger.Info().Msg("analysis stored")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"analysis stored"`) {
		t.Errorf("log file = %q", data)
	}
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	if RequestIDFromContext(ctx) != "" {
		t.Error("empty context should carry no request ID")
	}

	var buf bytes.Buffer
	base := zerolog.New(&buf)
	ctx = WithLogger(ContextWithRequestID(ctx, "req-1"), base)

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Errorf("RequestIDFromContext() = %q", got)
	}

	logger := WithRequestID(FromContext(ctx), RequestIDFromContext(ctx))
	LogAnalysis(logger, "narrative", "gpt-4o-mini", 72, 0)

	out := buf.String()
	for _, want := range []string{`"request_id":"req-1"`, `"path":"narrative"`, `"overall":72`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line missing %s: %q", want, out)
		}
	}
}
