package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type anthropicConfig struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url"`
	MaxTokens int64  `json:"max_tokens"`
}

type anthropicProvider struct {
	client    anthropic.Client
	hasKey    bool
	maxTokens int64
}

func (p *anthropicProvider) Name() string {
	return "anthropic"
}

func (p *anthropicProvider) Generate(ctx context.Context, model string, prompt string) (string, error) {
	if !p.hasKey {
		return "", ErrUnavailable
	}
	resp, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: p.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(prompt))},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}
	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	text := strings.TrimSpace(sb.String())
	if text == "" {
		return "", fmt.Errorf("anthropic response has no text")
	}
	return text, nil
}

func (p *anthropicProvider) Embed(ctx context.Context, model string, text string, taskType string) ([]float32, error) {
	return nil, ErrUnavailable
}

func createAnthropicFactory(args interface{}) (IProvider, error) {
	cfg := &anthropicConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if baseURL := strings.TrimSpace(cfg.BaseURL); baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &anthropicProvider{
		client:    anthropic.NewClient(opts...),
		hasKey:    apiKey != "",
		maxTokens: maxTokens,
	}, nil
}

func init() {
	Register("anthropic", createAnthropicFactory)
}
