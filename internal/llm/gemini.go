package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Harshitk-cp/swarm/internal/domain"
)

const geminiURL = "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"

type GeminiClient struct {
	transport
	url    string
	apiKey string
}

func NewGeminiClient(apiKey string) *GeminiClient {
	return &GeminiClient{
		transport: newTransport(ProviderGemini),
		url:       geminiURL,
		apiKey:    apiKey,
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
	Contents          []geminiContent `json:"contents"`
	GenerationConfig  struct {
		Temperature    float32 `json:"temperature"`
		CandidateCount int     `json:"candidateCount"`
	} `json:"generationConfig"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

// Generate asks for n candidates in one request. System messages become the
// system instruction; assistant turns map to the "model" role.
func (c *GeminiClient) Generate(ctx context.Context, prompt []domain.Message, n int) ([]string, error) {
	if n <= 0 {
		n = 1
	}

	var req geminiRequest
	req.GenerationConfig.Temperature = generationTemperature
	req.GenerationConfig.CandidateCount = n
	var system []geminiPart
	for _, m := range prompt {
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant":
			req.Contents = append(req.Contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}
	if len(system) > 0 {
		req.SystemInstruction = &geminiContent{Parts: system}
	}
	if len(req.Contents) == 0 {
		req.Contents = []geminiContent{{Role: "user", Parts: system}}
		req.SystemInstruction = nil
	}

	header := http.Header{"X-Goog-Api-Key": []string{c.apiKey}}
	var resp geminiResponse
	if err := c.postJSON(ctx, c.url, header, req, &resp); err != nil {
		return nil, err
	}

	out := make([]string, 0, len(resp.Candidates))
	for _, cand := range resp.Candidates {
		var sb strings.Builder
		for _, p := range cand.Content.Parts {
			sb.WriteString(p.Text)
		}
		out = append(out, strings.TrimSpace(sb.String()))
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("gemini API returned no candidates")
	}
	return out, nil
}
