// Package oracle holds what every reasoning-oracle provider shares: the
// default system prompt and the tolerant parser for its JSON answer.
package oracle

import (
	"encoding/json"
	"fmt"
	"strings"

	"autotrader/internal/types"
)

const DefaultSystemPrompt = `You are a disciplined equities analyst. You receive computed technical indicators for one symbol.
Answer with ONE compact JSON object and nothing else:
{"signal":"BUY|SELL|HOLD","confidence":0-100,"reasoning":"<one sentence>","risk_level":"low|medium|high","target_price":<number>,"stop_loss":<number>}`

// ParseOpinion extracts the first JSON object from text. The signal must
// be BUY, SELL or HOLD; confidence is clamped to [0, 100].
func ParseOpinion(text string) (types.OracleOpinion, error) {
	var op types.OracleOpinion
	t := strings.TrimSpace(text)
	start := strings.Index(t, "{")
	end := strings.LastIndex(t, "}")
	if start < 0 || end <= start {
		return op, fmt.Errorf("%w: no JSON object in response", types.ErrOracle)
	}
	if err := json.Unmarshal([]byte(t[start:end+1]), &op); err != nil {
		return op, fmt.Errorf("%w: unparsable opinion: %v", types.ErrOracle, err)
	}

	op.Signal = strings.ToUpper(strings.TrimSpace(op.Signal))
	switch types.Action(op.Signal) {
	case types.ActionBuy, types.ActionSell, types.ActionHold:
	default:
		return types.OracleOpinion{}, fmt.Errorf("%w: invalid signal %q", types.ErrOracle, op.Signal)
	}
	op.Confidence = types.Clamp(op.Confidence, 0, 100)
	op.RiskLevel = strings.ToLower(strings.TrimSpace(op.RiskLevel))
	return op, nil
}

// Truncate shortens provider error bodies for logs.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
