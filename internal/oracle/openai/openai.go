// Package openai queries any OpenAI-compatible chat endpoint through an
// eino ChatModel.
package openai

import (
	"context"
	"fmt"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"autotrader/internal/interfaces"
	"autotrader/internal/oracle"
	"autotrader/internal/types"
)

const DefaultModel = "gpt-4o-mini"

type generator interface {
	Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Oracle struct {
	chat generator
}

var _ interfaces.Oracle = (*Oracle)(nil)

func New(ctx context.Context, apiKey, baseURL, modelName string, maxTokens int, timeout time.Duration) (*Oracle, error) {
	if modelName == "" {
		modelName = DefaultModel
	}
	chat, err := einoopenai.NewChatModel(ctx, &einoopenai.ChatModelConfig{
		BaseURL:   baseURL,
		APIKey:    apiKey,
		Model:     modelName,
		MaxTokens: &maxTokens,
		Timeout:   timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: openai chat model: %v", types.ErrConfiguration, err)
	}
	return &Oracle{chat: chat}, nil
}

func (o *Oracle) Name() string { return "openai" }

func (o *Oracle) Opine(ctx context.Context, req interfaces.OracleRequest) (types.OracleOpinion, error) {
	system := req.System
	if system == "" {
		system = oracle.DefaultSystemPrompt
	}
	msg, err := o.chat.Generate(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(req.Prompt),
	})
	if err != nil {
		return types.OracleOpinion{}, fmt.Errorf("%w: openai generate: %v", types.ErrOracle, err)
	}
	if msg == nil {
		return types.OracleOpinion{}, fmt.Errorf("%w: empty response", types.ErrOracle)
	}
	return oracle.ParseOpinion(msg.Content)
}
