package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	lcopenai "github.com/tmc/langchaingo/llms/openai"

	"medicopilot/src/core/rag"
)

const (
	DefaultMaxTokens   = 1000
	DefaultTemperature = 0.7
)

// Config points the generator at any OpenAI compatible chat completions API.
type Config struct {
	BaseURL     string
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Generator implements rag.Generator on top of langchaingo.
type Generator struct {
	llm         llms.Model
	maxTokens   int
	temperature float64
}

var _ rag.Generator = (*Generator)(nil)

func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = rag.DefaultGenerationTimeout
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = DefaultTemperature
	}

	opts := []lcopenai.Option{
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, lcopenai.WithBaseURL(strings.TrimSuffix(cfg.BaseURL, "/")))
	}
	if cfg.Model != "" {
		opts = append(opts, lcopenai.WithModel(cfg.Model))
	}

	llm, err := lcopenai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create openai client: %w", err)
	}
	return &Generator{llm: llm, maxTokens: cfg.MaxTokens, temperature: cfg.Temperature}, nil
}

func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, error) {
	return g.complete(ctx, rag.BuildPrompt(question, contextText))
}

// Ping sends a trivial prompt.
func (g *Generator) Ping(ctx context.Context) error {
	_, err := g.complete(ctx, rag.PingPrompt)
	return err
}

func (g *Generator) complete(ctx context.Context, prompt string) (string, error) {
	resp, err := g.llm.GenerateContent(ctx,
		[]llms.MessageContent{
			llms.TextParts(llms.ChatMessageTypeSystem, rag.SystemPersona),
			llms.TextParts(llms.ChatMessageTypeHuman, prompt),
		},
		llms.WithMaxTokens(g.maxTokens),
		llms.WithTemperature(g.temperature),
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("completion has no choices")
	}

	answer := strings.TrimSpace(resp.Choices[0].Content)
	if answer == "" {
		return "", fmt.Errorf("completion is empty")
	}
	return answer, nil
}
