package llm

import (
	"context"
	"sync"

	"github.com/antonovme52/vaibim-main/internal/auth"
)

type generateFunc func(ctx context.Context, turns []Turn) (string, error)

// fakeProvider answers per model and records every call.
type fakeProvider struct {
	mu      sync.Mutex
	answers map[string]generateFunc
	calls   []string
}

func newFakeProvider(answers map[string]generateFunc) *fakeProvider {
	return &fakeProvider{answers: answers}
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Generate(ctx context.Context, model string, turns []Turn) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, model)
	answer := f.answers[model]
	f.mu.Unlock()

	if answer == nil {
		return "", &ProviderError{Provider: "fake", Model: model, StatusCode: 404, Message: "model not found"}
	}
	return answer(ctx, turns)
}

func (f *fakeProvider) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

func reply(text string) generateFunc {
	return func(context.Context, []Turn) (string, error) { return text, nil }
}

func fail(status int, message string) generateFunc {
	return func(context.Context, []Turn) (string, error) {
		return "", &ProviderError{Provider: "fake", StatusCode: status, Message: message}
	}
}

// fakeAuthorizer accepts exactly one token.
type fakeAuthorizer struct {
	token    string
	identity auth.Identity
}

func (f fakeAuthorizer) Authorize(_ context.Context, token string) (auth.Identity, error) {
	if token == "" || token != f.token {
		return auth.Identity{}, auth.ErrUnauthenticated
	}
	return f.identity, nil
}

func chainOf(t interface{ Fatalf(string, ...interface{}) }, p Provider, ids ...string) *Chain {
	chain, err := NewChain(p, CandidatesFromIDs(ids), 0)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	return chain
}
