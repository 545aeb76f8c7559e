package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Provider is the single capability the relay needs from an LLM vendor. The
// relay only ever talks to this interface; each vendor gets its own adapter.
type Provider interface {
	// Name identifies the vendor in logs and errors.
	Name() string
	// Generate sends the turns to the given model and returns the reply text.
	// Implementations must honour ctx cancellation.
	Generate(ctx context.Context, model string, turns []Turn) (string, error)
}

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var (
	// ErrUnknownProvider is returned by NewProvider for unsupported names.
	ErrUnknownProvider = errors.New("unknown LLM provider")

	// ErrAPIKeyMissing is reported (wrapped in a ProviderError) when an adapter
	// has no API key configured.
	ErrAPIKeyMissing = errors.New("API key not configured")
)

// ProviderConfig is passed to an adapter at construction. There is no global
// provider state; two adapters with different keys can coexist.
type ProviderConfig struct {
	Name         string
	APIKey       string
	BaseURL      string
	SystemPrompt string
	HTTPClient   *http.Client
}

// NewProvider builds the adapter named in cfg.
func NewProvider(cfg ProviderConfig) (Provider, error) {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 2 * time.Minute}
	}
	switch strings.ToLower(cfg.Name) {
	case ProviderGemini, "":
		return NewGeminiProvider(cfg), nil
	case ProviderOpenAI:
		return NewOpenAIProvider(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Name)
	}
}

// maxErrorBody bounds how much of an upstream error body is kept.
const maxErrorBody = 4 << 10

// upstreamError is the error envelope shared by the Gemini and OpenAI APIs:
// {"error": {"message": "...", "status"|"type": "...", "code": ...}}.
type upstreamError struct {
	Error struct {
		Message string          `json:"message"`
		Status  string          `json:"status"`
		Type    string          `json:"type"`
		Code    json.RawMessage `json:"code"`
	} `json:"error"`
}

// readProviderError turns a non-2xx response into a ProviderError, preferring
// the structured message when the body has one.
func readProviderError(provider, model string, resp *http.Response) *ProviderError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	message := strings.TrimSpace(string(body))
	var envelope upstreamError
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Error.Message != "" {
		message = envelope.Error.Message
		if tag := envelope.Error.Status + envelope.Error.Type; tag != "" {
			message = tag + ": " + message
		}
	}
	if message == "" {
		message = resp.Status
	}

	return &ProviderError{
		Provider:   provider,
		Model:      model,
		StatusCode: resp.StatusCode,
		Message:    message,
	}
}
