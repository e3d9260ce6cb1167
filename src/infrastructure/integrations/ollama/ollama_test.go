package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"medicopilot/src/core/rag"
	"medicopilot/src/infrastructure/integrations/ollama"
)

func newServer(t *testing.T, handler http.HandlerFunc) *ollama.Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := ollama.NewClient(srv.URL+"/api", srv.Client())
	require.NoError(t, err)
	return client
}

func TestEmbed(t *testing.T) {
	tests := []struct {
		name     string
		response string
		status   int
		wantErr  bool
	}{
		{name: "batch", response: `{"model":"m","embeddings":[[0.1,0.2],[0.3,0.4]]}`, status: http.StatusOK},
		{name: "short batch", response: `{"model":"m","embeddings":[[0.1,0.2]]}`, status: http.StatusOK, wantErr: true},
		{name: "ragged", response: `{"model":"m","embeddings":[[0.1,0.2],[0.3]]}`, status: http.StatusOK, wantErr: true},
		{name: "model missing", response: `{"error":"model not found"}`, status: http.StatusNotFound, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got struct {
				Model string   `json:"model"`
				Input []string `json:"input"`
			}
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/api/embed", r.URL.Path)
				require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			})

			vectors, err := ollama.NewEmbedder(client, "nomic-embed-text").Embed(context.Background(), []string{"uno", "dos"})

			assert.Equal(t, "nomic-embed-text", got.Model)
			assert.Equal(t, []string{"uno", "dos"}, got.Input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, [][]float32{{0.1, 0.2}, {0.3, 0.4}}, vectors)
		})
	}
}

func TestEmbedNoInput(t *testing.T) {
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	vectors, err := ollama.NewEmbedder(client, "").Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestGenerate(t *testing.T) {
	var got struct {
		Model    string `json:"model"`
		Stream   bool   `json:"stream"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
		Options map[string]interface{} `json:"options"`
	}
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"model":"llama3.1","message":{"role":"assistant","content":" Tome 500 mg. "},"done":true}`))
	})

	gen := ollama.NewGenerator(client, "llama3.1", ollama.GeneratorOptions{Temperature: 0.7, MaxTokens: 1000})
	answer, err := gen.Generate(context.Background(), "¿dosis?", "Fuente 1: a.txt (fragmento 0)\nTexto\n")

	require.NoError(t, err)
	assert.Equal(t, "Tome 500 mg.", answer)
	assert.False(t, got.Stream)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, rag.SystemPersona, got.Messages[0].Content)
	assert.Equal(t, rag.BuildPrompt("¿dosis?", "Fuente 1: a.txt (fragmento 0)\nTexto\n"), got.Messages[1].Content)
	assert.Equal(t, 0.7, got.Options["temperature"])
	assert.Equal(t, float64(1000), got.Options["num_predict"])
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		response string
	}{
		{name: "empty answer", status: http.StatusOK, response: `{"message":{"role":"assistant","content":"  "},"done":true}`},
		{name: "server error", status: http.StatusInternalServerError, response: `{"error":"out of memory"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.response))
			})
			_, err := ollama.NewGenerator(client, "", ollama.GeneratorOptions{}).Generate(context.Background(), "q", "")
			assert.Error(t, err)
		})
	}
}

func TestPing(t *testing.T) {
	var prompts []string
	client := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/chat" {
			var req struct {
				Messages []struct {
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			prompts = append(prompts, req.Messages[len(req.Messages)-1].Content)
			_, _ = w.Write([]byte(`{"message":{"role":"assistant","content":"ok"},"done":true}`))
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, ollama.NewGenerator(client, "", ollama.GeneratorOptions{}).Ping(context.Background()))
	assert.Equal(t, []string{rag.PingPrompt}, prompts)
}
