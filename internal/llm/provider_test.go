package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Harshitk-cp/swarm/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testPrompt = []domain.Message{
	{Role: "system", Content: "be brief"},
	{Role: "user", Content: "What is 2+2?"},
}

func fastRetry(t *transport) {
	t.retryBase = time.Millisecond
}

func TestNewGenerator(t *testing.T) {
	tests := []struct {
		provider string
		apiKey   string
		wantErr  bool
		wantType any
	}{
		{ProviderOpenAI, "k", false, &ChatClient{}},
		{ProviderCerebras, "k", false, &ChatClient{}},
		{ProviderAnthropic, "k", false, &AnthropicClient{}},
		{ProviderGemini, "k", false, &GeminiClient{}},
		{ProviderMock, "", false, &MockClient{}},
		{ProviderOpenAI, "", true, nil},
		{"llama.cpp", "k", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			g, err := NewGenerator(tt.provider, tt.apiKey)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, g)
		})
	}
}

func TestChatClient_MultiChoice(t *testing.T) {
	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":" 4 "}},{"message":{"content":"four"}}]}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("secret")
	c.url = srv.URL

	out, err := c.Generate(context.Background(), testPrompt, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "four"}, out)
	assert.Equal(t, 2, got.N)
	assert.Equal(t, testPrompt, got.Messages)
}

func TestChatClient_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer srv.Close()

	c := NewCerebrasClient("k")
	c.url = srv.URL
	fastRetry(&c.transport)

	out, err := c.Generate(context.Background(), testPrompt, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"ok", "ok"}, out)
	assert.Equal(t, int32(3), calls.Load())
}

func TestChatClient_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"bad key"}}`))
	}))
	defer srv.Close()

	c := NewOpenAIClient("k")
	c.url = srv.URL
	fastRetry(&c.transport)

	_, err := c.Generate(context.Background(), testPrompt, 1)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "bad key")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAnthropicClient_SystemField(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-Api-Key"))
		assert.Equal(t, anthropicVersion, r.Header.Get("Anthropic-Version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"4"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("k")
	c.url = srv.URL

	out, err := c.Generate(context.Background(), testPrompt, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"4"}, out)
	assert.Equal(t, "be brief", got.System)
	assert.Equal(t, []domain.Message{{Role: "user", Content: "What is 2+2?"}}, got.Messages)
}

func TestAnthropicClient_SystemOnlyPrompt(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"x"}]}`))
	}))
	defer srv.Close()

	c := NewAnthropicClient("k")
	c.url = srv.URL

	_, err := c.Generate(context.Background(), []domain.Message{{Role: "system", Content: "q"}, {Role: "system", Content: "p"}}, 1)
	require.NoError(t, err)
	assert.Empty(t, got.System)
	assert.Equal(t, []domain.Message{{Role: "user", Content: "q\n\np"}}, got.Messages)
}

func TestGeminiClient_Candidates(t *testing.T) {
	var got geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "k", r.Header.Get("X-Goog-Api-Key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"4"}]}},{"content":{"parts":[{"text":"fo"},{"text":"ur"}]}}]}`))
	}))
	defer srv.Close()

	c := NewGeminiClient("k")
	c.url = srv.URL

	out, err := c.Generate(context.Background(), testPrompt, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"4", "four"}, out)
	assert.Equal(t, 2, got.GenerationConfig.CandidateCount)
	require.NotNil(t, got.SystemInstruction)
	assert.Equal(t, "be brief", got.SystemInstruction.Parts[0].Text)
	require.Len(t, got.Contents, 1)
	assert.Equal(t, "user", got.Contents[0].Role)
}
