package openai_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopilot/src/core/rag"
	"medicopilot/src/infrastructure/integrations/openai"
)

type chatRequest struct {
	Model       string  `json:"model"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func completion(content string) string {
	return `{"id":"c1","object":"chat.completion","created":1,"model":"saptiva-turbo",` +
		`"choices":[{"index":0,"message":{"role":"assistant","content":` + mustJSON(content) + `},"finish_reason":"stop"}],` +
		`"usage":{"prompt_tokens":1,"completion_tokens":1,"total_tokens":2}}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestGenerate(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(completion("  La dosis es 500 mg.  ")))
	}))
	defer srv.Close()

	gen, err := openai.NewGenerator(openai.Config{BaseURL: srv.URL + "/v1", APIKey: "secret", Model: "saptiva-turbo"})
	require.NoError(t, err)

	answer, err := gen.Generate(context.Background(), "¿dosis?", "")
	require.NoError(t, err)

	assert.Equal(t, "La dosis es 500 mg.", answer)
	assert.Equal(t, "saptiva-turbo", got.Model)
	assert.InDelta(t, openai.DefaultTemperature, got.Temperature, 1e-9)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, rag.SystemPersona, got.Messages[0].Content)
	assert.Equal(t, "user", got.Messages[1].Role)
	assert.Equal(t, rag.BuildPrompt("¿dosis?", ""), got.Messages[1].Content)
}

func TestGenerateFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "empty content", status: http.StatusOK, body: completion("   ")},
		{name: "server error", status: http.StatusBadRequest, body: `{"error":{"message":"bad model","type":"invalid_request_error"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			gen, err := openai.NewGenerator(openai.Config{BaseURL: srv.URL, APIKey: "secret", Model: "m"})
			require.NoError(t, err)

			_, err = gen.Generate(context.Background(), "q", "ctx")
			assert.Error(t, err)
			assert.Error(t, gen.Ping(context.Background()))
		})
	}
}
