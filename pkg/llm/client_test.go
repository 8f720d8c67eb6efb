package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	var captured chatRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"hello there"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "test-key")

	content, err := client.Generate(context.Background(), "gpt-4o-mini", "say hello")
	require.NoError(t, err)
	assert.Equal(t, "hello there", content)

	assert.Equal(t, "gpt-4o-mini", captured.Model)
	require.Len(t, captured.Messages, 1)
	assert.Equal(t, "user", captured.Messages[0].Role)
	assert.Equal(t, "say hello", captured.Messages[0].Content)
}

func TestGenerate_APIErrorBecomesContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")

	content, err := client.Generate(context.Background(), "gpt-4o-mini", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "[llm error] HTTP 429: rate limited", content)
}

func TestGenerate_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")

	content, err := client.Generate(context.Background(), "gpt-4o-mini", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "[llm error] empty response", content)
}

func TestGenerate_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
	server.Close()

	client := NewHTTPClient(server.URL, "")

	_, err := client.Generate(context.Background(), "gpt-4o-mini", "prompt")
	require.Error(t, err)
}

func TestGenerate_NoAuthHeaderWithoutKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, "")

	content, err := client.Generate(context.Background(), "gpt-4o-mini", "prompt")
	require.NoError(t, err)
	assert.Equal(t, "ok", content)
}
