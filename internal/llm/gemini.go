package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// DefaultGeminiBaseURL is the Gemini REST API root. Generate appends
// /v1beta/models/{model}:generateContent.
const DefaultGeminiBaseURL = "https://generativelanguage.googleapis.com"

// GeminiProvider talks to the Gemini generateContent endpoint.
//
// Gemini differs from the OpenAI shape in a few ways: assistant turns use the
// role "model", text lives in "parts", the system prompt is a separate
// top-level field, and the key goes in the x-goog-api-key header.
type GeminiProvider struct {
	apiKey       string
	baseURL      string
	systemPrompt string
	httpClient   *http.Client
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// NewGeminiProvider creates a Gemini adapter from cfg.
func NewGeminiProvider(cfg ProviderConfig) *GeminiProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultGeminiBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &GeminiProvider{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   client,
	}
}

// Name implements Provider.
func (g *GeminiProvider) Name() string {
	return ProviderGemini
}

// Generate implements Provider.
func (g *GeminiProvider) Generate(ctx context.Context, model string, turns []Turn) (string, error) {
	if g.apiKey == "" {
		return "", &ProviderError{Provider: ProviderGemini, Model: model, Err: ErrAPIKeyMissing}
	}

	body, err := json.Marshal(g.buildRequest(turns))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", g.baseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Model: model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readProviderError(ProviderGemini, model, resp)
	}

	var parsed geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ProviderError{Provider: ProviderGemini, Model: model, Message: "failed to parse response", Err: err}
	}

	if len(parsed.Candidates) == 0 {
		msg := "no candidates in response"
		if parsed.PromptFeedback != nil && parsed.PromptFeedback.BlockReason != "" {
			msg = "prompt blocked: " + parsed.PromptFeedback.BlockReason
		}
		return "", &ProviderError{Provider: ProviderGemini, Model: model, Message: msg}
	}

	var text strings.Builder
	for _, part := range parsed.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}
	if text.Len() == 0 {
		return "", &ProviderError{
			Provider: ProviderGemini,
			Model:    model,
			Message:  "empty response, finish reason " + parsed.Candidates[0].FinishReason,
		}
	}
	return text.String(), nil
}

func (g *GeminiProvider) buildRequest(turns []Turn) geminiRequest {
	req := geminiRequest{Contents: make([]geminiContent, 0, len(turns))}
	for _, t := range turns {
		role := "user"
		if t.Role == RoleAssistant {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: t.Content}},
		})
	}
	if g.systemPrompt != "" {
		req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: g.systemPrompt}}}
	}
	return req
}
