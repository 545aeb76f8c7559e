package llm

import (
	"context"
	"net/http"
	"strings"
	"testing"

	"github.com/antonovme52/vaibim-main/internal/auth"
)

const testToken = "valid-token"

func newTestRelay(t *testing.T, p *fakeProvider, opts ...RelayOption) *Relay {
	t.Helper()
	gate := fakeAuthorizer{token: testToken, identity: auth.Identity{UserID: 1, Username: "ivan"}}
	return NewRelay(gate, chainOf(t, p, "a", "b"), opts...)
}

func TestRelayRejectsUnauthenticated(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{"a": reply("secret answer")})
	relay := newTestRelay(t, p)

	for _, token := range []string{"", "forged", "valid-token-but-not-quite"} {
		result := relay.Handle(context.Background(), token, Request{Message: "hello"})
		if result.OK() || result.Failure.Kind != KindUnauthenticated {
			t.Errorf("Handle(%q) = %+v, want %v", token, result, KindUnauthenticated)
		}
	}
	if calls := p.Calls(); len(calls) != 0 {
		t.Errorf("provider calls = %v, want none", calls)
	}
}

func TestRelayRejectsEmptyMessage(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{"a": reply("answer")})
	relay := newTestRelay(t, p)

	result := relay.Handle(context.Background(), testToken, Request{Message: "   ", History: makeHistory(5)})
	if result.OK() || result.Failure.Kind != KindInvalidInput {
		t.Errorf("Handle() = %+v, want %v", result, KindInvalidInput)
	}
	if result.Failure.Message != KindInvalidInput.UserMessage() {
		t.Errorf("Handle() message = %q", result.Failure.Message)
	}
	if calls := p.Calls(); len(calls) != 0 {
		t.Errorf("provider calls = %v, want none", calls)
	}
}

func TestRelaySuccess(t *testing.T) {
	var turns []Turn
	p := newFakeProvider(map[string]generateFunc{
		"a": func(_ context.Context, got []Turn) (string, error) {
			turns = got
			return "Hi there", nil
		},
	})
	relay := newTestRelay(t, p, WithWindowSize(2))

	result := relay.Handle(context.Background(), testToken, Request{Message: "Hello", History: makeHistory(6)})
	if !result.OK() {
		t.Fatalf("Handle() failure = %+v", result.Failure)
	}
	if result.Text != "Hi there" || result.Model != "a" {
		t.Errorf("Handle() = %+v", result)
	}
	if len(turns) != 3 {
		t.Errorf("provider got %d turns, want 3", len(turns))
	}
}

func TestRelayRedactsSecrets(t *testing.T) {
	const apiKey = "AIzaSyD-very-secret-key-1234"
	p := newFakeProvider(map[string]generateFunc{
		"a": fail(http.StatusBadRequest, "API key not valid: "+apiKey),
	})
	relay := newTestRelay(t, p, WithRedactedSecrets(apiKey))

	result := relay.Handle(context.Background(), testToken, Request{Message: "Hello"})
	if result.OK() {
		t.Fatal("Handle() succeeded, want failure")
	}
	if result.Failure.Kind != KindProviderAuthError {
		t.Errorf("Handle() kind = %v, want %v", result.Failure.Kind, KindProviderAuthError)
	}
	if strings.Contains(result.Failure.Details, apiKey) {
		t.Errorf("Handle() details leak the key: %q", result.Failure.Details)
	}
	if strings.Contains(result.Failure.Message, apiKey) {
		t.Errorf("Handle() message leaks the key: %q", result.Failure.Message)
	}
}

func TestRelayConcurrentRequests(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{"a": reply("ok")})
	relay := newTestRelay(t, p)

	done := make(chan Result)
	for i := 0; i < 20; i++ {
		go func() {
			done <- relay.Handle(context.Background(), testToken, Request{Message: "ping"})
		}()
	}
	for i := 0; i < 20; i++ {
		if result := <-done; !result.OK() {
			t.Errorf("Handle() failure = %+v", result.Failure)
		}
	}
	if calls := p.Calls(); len(calls) != 20 {
		t.Errorf("provider calls = %d, want 20", len(calls))
	}
}
