package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"
	"testing"

	"autotrader/internal/trace"
)

func captureLogs(t *testing.T, config LogConfig) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	if err := InitWithWriter(config, &buf); err != nil {
		t.Fatalf("InitWithWriter failed: %v", err)
	}
	t.Cleanup(func() {
		globalLogger = slog.New(slog.NewTextHandler(io.Discard, nil))
		detailedLogging = false
	})
	return &buf
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		rec := map[string]any{}
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("Expected JSON log line, got %q: %v", line, err)
		}
		out = append(out, rec)
	}
	return out
}

func TestLevelFiltering(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: "WARN", Format: "json"})
	ctx := context.Background()

	Info(ctx, "below threshold")
	Warn(ctx, "at threshold", "symbol", "TCS")

	recs := records(t, buf)
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d: %s", len(recs), buf.String())
	}
	if recs[0]["msg"] != "at threshold" || recs[0]["level"] != "WARN" {
		t.Errorf("Expected WARN at threshold, got %v", recs[0])
	}
	if recs[0]["service"] != trace.ServiceName {
		t.Errorf("Expected service %s, got %v", trace.ServiceName, recs[0]["service"])
	}
	if recs[0]["symbol"] != "TCS" {
		t.Errorf("Expected symbol TCS, got %v", recs[0]["symbol"])
	}
}

func TestDebugNeedsDetailedLogging(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: "DEBUG", Format: "json"})
	Debug(context.Background(), "quiet")
	if buf.Len() != 0 {
		t.Errorf("Expected no debug output without detailed logging, got %s", buf.String())
	}

	buf = captureLogs(t, LogConfig{Level: "INFO", Format: "json", DetailedLogging: true})
	Debug(context.Background(), "loud")
	recs := records(t, buf)
	if len(recs) != 1 || recs[0]["msg"] != "loud" {
		t.Fatalf("Expected the debug record, got %s", buf.String())
	}
	if _, ok := recs[0]["source"].(map[string]any); !ok {
		t.Errorf("Expected source in detailed mode, got %v", recs[0])
	}
}

//go:noinline
func warnFromDecorator(ctx context.Context) {
	WarnSkip(ctx, 1, "decorated")
}

func TestWarnSkipPointsAtCaller(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: "INFO", Format: "json", DetailedLogging: true})
	warnFromDecorator(context.Background())

	recs := records(t, buf)
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	src, _ := recs[0]["source"].(map[string]any)
	fn, _ := src["function"].(string)
	if !strings.HasSuffix(fn, "TestWarnSkipPointsAtCaller") {
		t.Errorf("Expected the caller of the decorator, got %q", fn)
	}
}

func TestErrorWithErrAddsError(t *testing.T) {
	buf := captureLogs(t, LogConfig{Level: "INFO", Format: "text"})
	ErrorWithErr(context.Background(), "failed", io.ErrUnexpectedEOF, "symbol", "INFY")

	out := buf.String()
	if !strings.Contains(out, "level=ERROR") || !strings.Contains(out, "error=\"unexpected EOF\"") {
		t.Errorf("Expected an ERROR record carrying the error, got %s", out)
	}
}
