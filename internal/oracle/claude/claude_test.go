package claude

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"autotrader/internal/interfaces"
	"autotrader/internal/types"
)

func TestOpine(t *testing.T) {
	var got messagesRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "key" {
			t.Errorf("Expected api key header, got %q", r.Header.Get("x-api-key"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"content":[{"type":"text","text":"{\"signal\":\"SELL\",\"confidence\":70,\"reasoning\":\"overbought\",\"risk_level\":\"high\",\"target_price\":90,\"stop_loss\":110}"}]}`))
	}))
	defer srv.Close()

	o := New("key", srv.URL, "test-model", 256, 5*time.Second)
	op, err := o.Opine(context.Background(), interfaces.OracleRequest{Symbol: "AAPL", Prompt: "analyze"})
	if err != nil {
		t.Fatalf("Opine failed: %v", err)
	}
	if op.Signal != "SELL" || op.Confidence != 70 {
		t.Errorf("Expected SELL 70, got %+v", op)
	}
	if got.Model != "test-model" || got.MaxTokens != 256 || len(got.Messages) != 1 || got.System == "" {
		t.Errorf("Unexpected request: %+v", got)
	}
}

func TestOpineHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	o := New("key", srv.URL, "", 256, 5*time.Second)
	if _, err := o.Opine(context.Background(), interfaces.OracleRequest{Prompt: "x"}); !errors.Is(err, types.ErrOracle) {
		t.Errorf("Expected ErrOracle, got %v", err)
	}
}

func TestOpineWithoutKey(t *testing.T) {
	o := New("", "http://127.0.0.1:1", "", 256, time.Second)
	if _, err := o.Opine(context.Background(), interfaces.OracleRequest{}); !errors.Is(err, types.ErrOracleDisabled) {
		t.Errorf("Expected ErrOracleDisabled, got %v", err)
	}
}
