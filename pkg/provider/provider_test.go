package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactoryNewCompleter(t *testing.T) {
	var f Factory

	t.Run("openai", func(t *testing.T) {
		c, err := f.NewCompleter(AuthProfile{Provider: "openai", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, "openai", c.Provider())
	})

	t.Run("anthropic", func(t *testing.T) {
		c, err := f.NewCompleter(AuthProfile{Provider: "anthropic", APIKey: "sk-ant-test"})
		require.NoError(t, err)
		assert.Equal(t, "anthropic", c.Provider())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := f.NewCompleter(AuthProfile{Provider: "cohere"})
		assert.ErrorContains(t, err, "unsupported provider")
	})
}

func TestFactoryNewEmbedder(t *testing.T) {
	var f Factory

	t.Run("openai", func(t *testing.T) {
		e, err := f.NewEmbedder(AuthProfile{Provider: "openai", APIKey: "sk-test"})
		require.NoError(t, err)
		assert.Equal(t, 1536, e.Dimension())
	})

	t.Run("unsupported", func(t *testing.T) {
		_, err := f.NewEmbedder(AuthProfile{Provider: "anthropic"})
		assert.ErrorContains(t, err, "unsupported embedding provider")
	})
}

func TestOpenAIEmbedderDimension(t *testing.T) {
	assert.Equal(t, 1536, NewOpenAIEmbedder("sk-test", "").Dimension())
	assert.Equal(t, 1536, NewOpenAIEmbedder("sk-test", "text-embedding-3-small").Dimension())
	assert.Equal(t, 3072, NewOpenAIEmbedder("sk-test", "text-embedding-3-large").Dimension())
}

func TestOpenAIEmbedderEmbed(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/embeddings", r.URL.Path)
			assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

			var req struct {
				Input []string `json:"input"`
				Model string   `json:"model"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "text-embedding-3-small", req.Model)

			type item struct {
				Embedding []float32 `json:"embedding"`
			}
			resp := struct {
				Data []item `json:"data"`
			}{}
			for range req.Input {
				resp.Data = append(resp.Data, item{Embedding: []float32{0.1, 0.2, 0.3}})
			}
			json.NewEncoder(w).Encode(resp)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder("sk-test", "")
		e.baseURL = srv.URL

		embeddings, err := e.Embed(context.Background(), []string{"hola", "factura"})
		require.NoError(t, err)
		require.Len(t, embeddings, 2)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, embeddings[0])
	})

	t.Run("api error surfaces status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder("sk-test", "")
		e.baseURL = srv.URL

		_, err := e.Embed(context.Background(), []string{"hola"})
		assert.ErrorContains(t, err, "status 429")
	})

	t.Run("context cancellation", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(time.Second)
		}))
		defer srv.Close()

		e := NewOpenAIEmbedder("sk-test", "")
		e.baseURL = srv.URL

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, err := e.Embed(ctx, []string{"hola"})
		assert.Error(t, err)
	})
}

func TestCompleterDefaults(t *testing.T) {
	assert.Equal(t, "gpt-4o-mini", NewOpenAICompleter("sk-test", "").model)
	assert.Equal(t, "claude-3-5-haiku-20241022", NewAnthropicCompleter("sk-ant-test", "").model)
}
