package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const (
	openAIChatURL   = "https://api.openai.com/v1/chat/completions"
	openAIModel     = "gpt-4o-mini"
	cerebrasChatURL = "https://api.cerebras.ai/v1/chat/completions"
	cerebrasModel   = "llama-3.3-70b"

	generationTemperature = 0.8
)

// ChatClient speaks the OpenAI chat completions protocol, which Cerebras
// also serves.
type ChatClient struct {
	transport
	url    string
	model  string
	apiKey string
	// multiChoice is set when the endpoint honours n > 1 in one request.
	multiChoice bool
}

func NewOpenAIClient(apiKey string) *ChatClient {
	return &ChatClient{
		transport:   newTransport(ProviderOpenAI),
		url:         openAIChatURL,
		model:       openAIModel,
		apiKey:      apiKey,
		multiChoice: true,
	}
}

func NewCerebrasClient(apiKey string) *ChatClient {
	return &ChatClient{
		transport: newTransport(ProviderCerebras),
		url:       cerebrasChatURL,
		model:     cerebrasModel,
		apiKey:    apiKey,
	}
}

type chatRequest struct {
	Model       string           `json:"model"`
	Messages    []domain.Message `json:"messages"`
	Temperature float32          `json:"temperature"`
	N           int              `json:"n,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c *ChatClient) complete(ctx context.Context, prompt []domain.Message, n int) ([]string, error) {
	req := chatRequest{Model: c.model, Messages: prompt, Temperature: generationTemperature}
	if n > 1 {
		req.N = n
	}
	header := http.Header{"Authorization": []string{"Bearer " + c.apiKey}}

	var resp chatResponse
	if err := c.postJSON(ctx, c.url, header, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s API returned no choices", c.provider)
	}
	out := make([]string, 0, len(resp.Choices))
	for _, ch := range resp.Choices {
		out = append(out, strings.TrimSpace(ch.Message.Content))
	}
	return out, nil
}

// Generate samples n completions, in one request where the endpoint allows.
func (c *ChatClient) Generate(ctx context.Context, prompt []domain.Message, n int) ([]string, error) {
	if c.multiChoice && n > 1 {
		return c.complete(ctx, prompt, n)
	}
	return generateN(ctx, n, func(ctx context.Context) (string, error) {
		out, err := c.complete(ctx, prompt, 1)
		if err != nil {
			return "", err
		}
		return out[0], nil
	})
}
