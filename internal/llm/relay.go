package llm

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/antonovme52/vaibim-main/internal/auth"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

// Failure describes why a relay request did not produce text.
type Failure struct {
	Kind    ErrorKind
	Message string
	Details string
}

// Result is either a success carrying the reply text or a failure. Exactly one
// of Text and Failure is meaningful: Failure is nil on success.
type Result struct {
	Text    string
	Model   string
	Failure *Failure
}

// OK reports whether the result is a success.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Succeeded builds a success result.
func Succeeded(text, model string) Result {
	return Result{Text: text, Model: model}
}

// Failed builds a failure result from a classification.
func Failed(c Classification) Result {
	return Result{Failure: &Failure{Kind: c.Kind, Message: c.Message, Details: c.Details}}
}

func failedWith(kind ErrorKind) Result {
	return Failed(newClassification(kind, ""))
}

// Request is the inbound relay payload.
type Request struct {
	Message string         `json:"message"`
	History []HistoryEntry `json:"history"`
}

// Authorizer resolves a session token to an identity.
type Authorizer interface {
	Authorize(ctx context.Context, token string) (auth.Identity, error)
}

// Completer runs a window through a model chain.
type Completer interface {
	Complete(ctx context.Context, window Window) Result
}

// Relay wires the session gate, the history windower and the fallback chain
// together. It holds no per-request state and is safe for concurrent use.
type Relay struct {
	gate       Authorizer
	chain      Completer
	windowSize int
	secrets    []string
}

// RelayOption configures a Relay.
type RelayOption func(*Relay)

// WithWindowSize sets the number of history turns kept per request.
func WithWindowSize(n int) RelayOption {
	return func(r *Relay) {
		r.windowSize = n
	}
}

// WithRedactedSecrets lists values that must never appear in failure details,
// typically the provider API key.
func WithRedactedSecrets(secrets ...string) RelayOption {
	return func(r *Relay) {
		r.secrets = append(r.secrets, secrets...)
	}
}

// NewRelay creates a relay. The window size defaults to DefaultHistoryWindow.
func NewRelay(gate Authorizer, chain Completer, opts ...RelayOption) *Relay {
	r := &Relay{
		gate:       gate,
		chain:      chain,
		windowSize: DefaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle authorizes the token, builds the window and runs the chain. Each stage
// either advances or ends the request with a failure; nothing is retried here.
func (r *Relay) Handle(ctx context.Context, token string, req Request) Result {
	identity, err := r.gate.Authorize(ctx, token)
	if err != nil {
		return failedWith(KindUnauthenticated)
	}
	return r.HandleAuthorized(ctx, identity, req)
}

// HandleAuthorized runs the relay for a caller the gate has already accepted.
func (r *Relay) HandleAuthorized(ctx context.Context, identity auth.Identity, req Request) Result {
	window, err := BuildWindow(req.History, req.Message, r.windowSize)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			return failedWith(KindInvalidInput)
		}
		return failedWith(KindProviderUnknownError)
	}

	result := r.chain.Complete(ctx, window)
	if result.Failure != nil {
		result.Failure.Details = utils.Redact(result.Failure.Details, r.secrets...)
		log.Info().
			Int64("user_id", identity.UserID).
			Str("kind", string(result.Failure.Kind)).
			Msg("relay failed")
		return result
	}

	log.Debug().
		Int64("user_id", identity.UserID).
		Str("model", result.Model).
		Int("turns", window.Len()).
		Msg("relay completed")
	return result
}
