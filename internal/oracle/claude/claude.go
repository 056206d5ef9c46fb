// Package claude queries the Anthropic Messages API for an opinion.
package claude

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"autotrader/internal/interfaces"
	"autotrader/internal/oracle"
	"autotrader/internal/types"
)

const (
	DefaultBaseURL = "https://api.anthropic.com"
	DefaultModel   = "claude-3-5-haiku-latest"
	apiVersion     = "2023-06-01"
)

type Oracle struct {
	client    *resty.Client
	apiKey    string
	model     string
	maxTokens int
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(apiKey, baseURL, model string, maxTokens int, timeout time.Duration) *Oracle {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	client := resty.New()
	client.SetBaseURL(baseURL)
	client.SetTimeout(timeout)
	client.SetHeader("anthropic-version", apiVersion)
	client.SetHeader("Content-Type", "application/json")
	return &Oracle{client: client, apiKey: apiKey, model: model, maxTokens: maxTokens}
}

func (o *Oracle) Name() string { return "claude" }

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	System    string    `json:"system,omitempty"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

func (o *Oracle) Opine(ctx context.Context, req interfaces.OracleRequest) (types.OracleOpinion, error) {
	if o.apiKey == "" {
		return types.OracleOpinion{}, types.ErrOracleDisabled
	}
	system := req.System
	if system == "" {
		system = oracle.DefaultSystemPrompt
	}

	var out messagesResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetHeader("x-api-key", o.apiKey).
		SetBody(messagesRequest{
			Model:     o.model,
			System:    system,
			MaxTokens: o.maxTokens,
			Messages:  []message{{Role: "user", Content: req.Prompt}},
		}).
		SetResult(&out).
		Post("/v1/messages")
	if err != nil {
		return types.OracleOpinion{}, fmt.Errorf("%w: claude request: %v", types.ErrOracle, err)
	}
	if resp.StatusCode() >= 300 {
		return types.OracleOpinion{}, fmt.Errorf("%w: claude http %d: %s", types.ErrOracle, resp.StatusCode(), oracle.Truncate(resp.String(), 200))
	}

	var sb strings.Builder
	for _, c := range out.Content {
		if c.Type == "text" {
			sb.WriteString(c.Text)
		}
	}
	return oracle.ParseOpinion(sb.String())
}
