package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/antonovme52/vaibim-main/pkg/utils"
)

// DefaultOpenAIBaseURL is the root of the OpenAI-compatible API. Any service
// speaking the chat/completions dialect (OpenRouter, Ollama, vLLM) can be
// reached by overriding it.
const DefaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider talks to an OpenAI-compatible chat/completions endpoint.
type OpenAIProvider struct {
	apiKey       string
	baseURL      string
	systemPrompt string
	httpClient   *http.Client
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	Temperature float64         `json:"temperature"`
	TopP        float64         `json:"top_p"`
	MaxTokens   int             `json:"max_tokens"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      openAIMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
		Index        int           `json:"index"`
	} `json:"choices"`
}

// NewOpenAIProvider creates an OpenAI-compatible adapter from cfg.
func NewOpenAIProvider(cfg ProviderConfig) *OpenAIProvider {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &OpenAIProvider{
		apiKey:       cfg.APIKey,
		baseURL:      baseURL,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   client,
	}
}

// Name implements Provider.
func (o *OpenAIProvider) Name() string {
	return ProviderOpenAI
}

// Generate implements Provider.
func (o *OpenAIProvider) Generate(ctx context.Context, model string, turns []Turn) (string, error) {
	if o.apiKey == "" {
		return "", &ProviderError{Provider: ProviderOpenAI, Model: model, Err: ErrAPIKeyMissing}
	}

	payload := openAIRequest{
		Model:       model,
		Messages:    make([]openAIMessage, 0, len(turns)+1),
		Temperature: 0.7,
		TopP:        1,
		MaxTokens:   4096,
	}
	if o.systemPrompt != "" {
		payload.Messages = append(payload.Messages, openAIMessage{Role: "system", Content: o.systemPrompt})
	}
	for _, t := range turns {
		payload.Messages = append(payload.Messages, openAIMessage{Role: string(t.Role), Content: t.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)
	req.Header.Set("X-Request-ID", utils.NewRequestID())

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Model: model, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", readProviderError(ProviderOpenAI, model, resp)
	}

	var parsed openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", &ProviderError{Provider: ProviderOpenAI, Model: model, Message: "failed to parse response", Err: err}
	}
	if len(parsed.Choices) == 0 {
		return "", &ProviderError{Provider: ProviderOpenAI, Model: model, Message: "no choices in response"}
	}

	content := parsed.Choices[0].Message.Content
	if strings.TrimSpace(content) == "" {
		return "", &ProviderError{
			Provider: ProviderOpenAI,
			Model:    model,
			Message:  "empty response, finish reason " + parsed.Choices[0].FinishReason,
		}
	}
	return content, nil
}
