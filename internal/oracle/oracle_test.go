package oracle

import (
	"errors"
	"testing"

	"autotrader/internal/types"
)

func TestParseOpinion(t *testing.T) {
	text := "Sure, here you go:\n```json\n{\"signal\":\"buy\",\"confidence\":140,\"reasoning\":\"trend\",\"risk_level\":\"Medium\",\"target_price\":120,\"stop_loss\":95}\n```"
	op, err := ParseOpinion(text)
	if err != nil {
		t.Fatalf("ParseOpinion failed: %v", err)
	}
	if op.Signal != "BUY" {
		t.Errorf("Expected BUY, got %s", op.Signal)
	}
	if op.Confidence != 100 {
		t.Errorf("Expected confidence clamped to 100, got %f", op.Confidence)
	}
	if op.RiskLevel != "medium" || op.TargetPrice != 120 || op.StopLoss != 95 {
		t.Errorf("Unexpected opinion: %+v", op)
	}
}

func TestParseOpinionFailures(t *testing.T) {
	for _, text := range []string{
		"",
		"no json here",
		`{"signal": "BUY", "confidence": }`,
		`{"signal": "MOON", "confidence": 50}`,
	} {
		if _, err := ParseOpinion(text); !errors.Is(err, types.ErrOracle) {
			t.Errorf("ParseOpinion(%q): expected ErrOracle, got %v", text, err)
		}
	}
}
