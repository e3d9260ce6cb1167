package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"

	"medicopilot/src/core/rag"
)

const (
	DefaultURL            = "http://localhost:11434"
	DefaultEmbeddingModel = "nomic-embed-text"
	DefaultChatModel      = "llama3.1"
)

// Client wraps the Ollama API client
type Client struct {
	api *api.Client
}

// NewClient creates a new Ollama API client
func NewClient(baseURL string, c *http.Client) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultURL
	}
	// Older configs point at the /api prefix; the SDK adds it itself.
	baseURL = strings.TrimSuffix(strings.TrimSuffix(baseURL, "/"), "/api")

	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama url %q: %w", baseURL, err)
	}
	if c == nil {
		c = &http.Client{Timeout: 120 * time.Second}
	}

	return &Client{api: api.NewClient(u, c)}, nil
}

// Heartbeat checks the server is reachable
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.api.Heartbeat(ctx)
}

// Embedder implements rag.Embedder with the batch /api/embed endpoint.
type Embedder struct {
	client *Client
	model  string
}

var _ rag.Embedder = (*Embedder)(nil)

func NewEmbedder(client *Client, model string) *Embedder {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &Embedder{client: client, model: model}
}

// Embed returns one vector per input text, in order
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	resp, err := e.client.api.Embed(ctx, &api.EmbedRequest{
		Model: e.model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed with %s: %w", e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", len(resp.Embeddings), len(texts))
	}

	dims := len(resp.Embeddings[0])
	for i, v := range resp.Embeddings {
		if len(v) == 0 || len(v) != dims {
			return nil, fmt.Errorf("embedding %d has %d dimensions, want %d", i, len(v), dims)
		}
	}
	return resp.Embeddings, nil
}

// GeneratorOptions tune chat generation
type GeneratorOptions struct {
	Temperature float64
	MaxTokens   int
}

// Generator implements rag.Generator with the /api/chat endpoint.
type Generator struct {
	client  *Client
	model   string
	options GeneratorOptions
}

var _ rag.Generator = (*Generator)(nil)

func NewGenerator(client *Client, model string, options GeneratorOptions) *Generator {
	if model == "" {
		model = DefaultChatModel
	}
	return &Generator{client: client, model: model, options: options}
}

func (g *Generator) Generate(ctx context.Context, question, contextText string) (string, error) {
	return g.chat(ctx, rag.BuildPrompt(question, contextText))
}

// Ping sends a trivial prompt, mirroring how the answer path reaches the model.
func (g *Generator) Ping(ctx context.Context) error {
	if err := g.client.Heartbeat(ctx); err != nil {
		return fmt.Errorf("ollama unreachable: %w", err)
	}
	_, err := g.chat(ctx, rag.PingPrompt)
	return err
}

func (g *Generator) chat(ctx context.Context, prompt string) (string, error) {
	stream := false
	options := map[string]interface{}{}
	if g.options.Temperature > 0 {
		options["temperature"] = g.options.Temperature
	}
	if g.options.MaxTokens > 0 {
		options["num_predict"] = g.options.MaxTokens
	}

	var sb strings.Builder
	err := g.client.api.Chat(ctx, &api.ChatRequest{
		Model: g.model,
		Messages: []api.Message{
			{Role: "system", Content: rag.SystemPersona},
			{Role: "user", Content: prompt},
		},
		Stream:  &stream,
		Options: options,
	}, func(resp api.ChatResponse) error {
		sb.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to chat with %s: %w", g.model, err)
	}

	answer := strings.TrimSpace(sb.String())
	if answer == "" {
		return "", fmt.Errorf("%s returned an empty answer", g.model)
	}
	return answer, nil
}
