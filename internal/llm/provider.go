package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderCerebras  = "cerebras"
	ProviderMock      = "mock"
)

var remoteProviders = map[string]func(apiKey string) domain.Generator{
	ProviderOpenAI:    func(k string) domain.Generator { return NewOpenAIClient(k) },
	ProviderAnthropic: func(k string) domain.Generator { return NewAnthropicClient(k) },
	ProviderGemini:    func(k string) domain.Generator { return NewGeminiClient(k) },
	ProviderCerebras:  func(k string) domain.Generator { return NewCerebrasClient(k) },
}

// NewGenerator builds the completion generator for provider. Every provider
// except mock needs an API key.
func NewGenerator(provider, apiKey string) (domain.Generator, error) {
	if provider == ProviderMock {
		return NewMockClient(0), nil
	}
	newFn, ok := remoteProviders[provider]
	if !ok {
		names := []string{ProviderMock}
		for name := range remoteProviders {
			names = append(names, name)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("unknown LLM provider %q (valid: %s)", provider, strings.Join(names, ", "))
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s_API_KEY is required for the %s provider", strings.ToUpper(provider), provider)
	}
	return newFn(apiKey), nil
}

// generateN calls complete n times, for endpoints that return one
// completion per request.
func generateN(ctx context.Context, n int, complete func(context.Context) (string, error)) ([]string, error) {
	if n <= 0 {
		n = 1
	}
	out := make([]string, 0, n)
	for i := 0; i < n; i++ {
		c, err := complete(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
