package llm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// DefaultAttemptTimeout bounds a single provider call.
const DefaultAttemptTimeout = 30 * time.Second

const tracerName = "github.com/antonovme52/vaibim-main/internal/llm"

// Chain tries an ordered list of models against one provider until one of them
// answers. Each model is attempted at most once per call.
type Chain struct {
	provider       Provider
	candidates     []ModelCandidate
	attemptTimeout time.Duration
	tracer         trace.Tracer
}

// NewChain validates the candidates and returns a chain. A non-positive timeout
// selects DefaultAttemptTimeout.
func NewChain(provider Provider, candidates []ModelCandidate, attemptTimeout time.Duration) (*Chain, error) {
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	ordered, err := NormalizeCandidates(candidates)
	if err != nil {
		return nil, err
	}
	if attemptTimeout <= 0 {
		attemptTimeout = DefaultAttemptTimeout
	}
	return &Chain{
		provider:       provider,
		candidates:     ordered,
		attemptTimeout: attemptTimeout,
		tracer:         otel.Tracer(tracerName),
	}, nil
}

// Candidates returns a copy of the chain in the order it is tried.
func (c *Chain) Candidates() []ModelCandidate {
	out := make([]ModelCandidate, len(c.candidates))
	copy(out, c.candidates)
	return out
}

// Complete runs the window through the chain.
//
// The first success is returned immediately. A failure that concerns the
// credential (auth, quota, rate limit) stops the chain, since every other model
// would fail the same way. Any other failure moves on to the next model. When
// every model has failed the result is ProviderModelUnavailable carrying the
// last error.
func (c *Chain) Complete(ctx context.Context, window Window) Result {
	var last Classification

	for i, candidate := range c.candidates {
		if callerGone(ctx) {
			return Failed(newClassification(KindProviderUnknownError, ctx.Err().Error()))
		}

		text, err := c.attempt(ctx, i+1, candidate, window)
		if err == nil {
			return Succeeded(text, candidate.ID)
		}

		if callerGone(ctx) {
			log.Debug().Str("model", candidate.ID).Err(err).Msg("relay cancelled by caller")
			return Failed(newClassification(KindProviderUnknownError, err.Error()))
		}

		last = Classify(err)
		log.Warn().
			Str("provider", c.provider.Name()).
			Str("model", candidate.ID).
			Str("kind", string(last.Kind)).
			Err(err).
			Msg("model attempt failed")

		if last.Kind.SessionWide() {
			return Failed(last)
		}
	}

	return Failed(Classification{
		Kind:    KindProviderModelUnavailable,
		Message: KindProviderModelUnavailable.UserMessage(),
		Details: fmt.Sprintf("all %d models failed, last error: %s", len(c.candidates), last.Details),
	})
}

func (c *Chain) attempt(ctx context.Context, n int, candidate ModelCandidate, window Window) (string, error) {
	ctx, span := c.tracer.Start(ctx, "relay.attempt", trace.WithAttributes(
		attribute.String("llm.provider", c.provider.Name()),
		attribute.String("llm.model", candidate.ID),
		attribute.Int("llm.attempt", n),
		attribute.Int("llm.turns", window.Len()),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.attemptTimeout)
	defer cancel()

	text, err := c.provider.Generate(ctx, candidate.ID, window.Turns)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "attempt failed")
		span.SetAttributes(attribute.String("error.kind", string(Classify(err).Kind)))
		return "", err
	}
	return text, nil
}
