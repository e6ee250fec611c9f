package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const (
	anthropicMessagesURL = "https://api.anthropic.com/v1/messages"
	anthropicModel       = "claude-3-5-haiku-20241022"
	anthropicVersion     = "2023-06-01"
	anthropicMaxTokens   = 1024
)

type AnthropicClient struct {
	transport
	url    string
	apiKey string
}

func NewAnthropicClient(apiKey string) *AnthropicClient {
	return &AnthropicClient{
		transport: newTransport(ProviderAnthropic),
		url:       anthropicMessagesURL,
		apiKey:    apiKey,
	}
}

type anthropicRequest struct {
	Model       string           `json:"model"`
	MaxTokens   int              `json:"max_tokens"`
	System      string           `json:"system,omitempty"`
	Messages    []domain.Message `json:"messages"`
	Temperature float32          `json:"temperature"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

// Generate samples n completions. The messages API takes system text in its
// own field and wants at least one user turn.
func (c *AnthropicClient) Generate(ctx context.Context, prompt []domain.Message, n int) ([]string, error) {
	req := anthropicRequest{
		Model:       anthropicModel,
		MaxTokens:   anthropicMaxTokens,
		Temperature: generationTemperature,
	}
	var system []string
	for _, m := range prompt {
		if m.Role == "system" {
			system = append(system, m.Content)
			continue
		}
		req.Messages = append(req.Messages, m)
	}
	req.System = strings.Join(system, "\n\n")
	if len(req.Messages) == 0 {
		req.Messages = []domain.Message{{Role: "user", Content: req.System}}
		req.System = ""
	}

	header := http.Header{
		"X-Api-Key":         []string{c.apiKey},
		"Anthropic-Version": []string{anthropicVersion},
	}
	return generateN(ctx, n, func(ctx context.Context) (string, error) {
		var resp anthropicResponse
		if err := c.postJSON(ctx, c.url, header, req, &resp); err != nil {
			return "", err
		}
		for _, part := range resp.Content {
			if part.Type == "text" {
				return strings.TrimSpace(part.Text), nil
			}
		}
		return "", fmt.Errorf("anthropic API returned no text content")
	})
}
