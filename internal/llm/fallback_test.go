package llm

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"testing"
	"time"
)

func testWindow(t *testing.T) Window {
	t.Helper()
	window, err := BuildWindow(nil, "Привет", DefaultHistoryWindow)
	if err != nil {
		t.Fatalf("BuildWindow() error = %v", err)
	}
	return window
}

func TestNewChain(t *testing.T) {
	p := newFakeProvider(nil)

	if _, err := NewChain(nil, CandidatesFromIDs([]string{"a"}), 0); err == nil {
		t.Error("NewChain(nil provider) error = nil")
	}
	if _, err := NewChain(p, nil, 0); !errors.Is(err, ErrNoCandidates) {
		t.Errorf("NewChain(no candidates) error = %v, want %v", err, ErrNoCandidates)
	}

	chain, err := NewChain(p, []ModelCandidate{{ID: "b", Priority: 2}, {ID: "a", Priority: 1}}, 0)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}
	if chain.attemptTimeout != DefaultAttemptTimeout {
		t.Errorf("attemptTimeout = %v, want %v", chain.attemptTimeout, DefaultAttemptTimeout)
	}
	got := chain.Candidates()
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("Candidates() = %v, want a then b", got)
	}
}

func TestChainFirstSuccessWins(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"a": reply("from a"),
		"b": reply("from b"),
	})
	chain := chainOf(t, p, "a", "b")

	result := chain.Complete(context.Background(), testWindow(t))
	if !result.OK() {
		t.Fatalf("Complete() failure = %+v", result.Failure)
	}
	if result.Text != "from a" || result.Model != "a" {
		t.Errorf("Complete() = %q from %q, want %q from %q", result.Text, result.Model, "from a", "a")
	}
	if calls := p.Calls(); !reflect.DeepEqual(calls, []string{"a"}) {
		t.Errorf("calls = %v, want [a]", calls)
	}
}

func TestChainFallsThroughCandidateErrors(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"a": fail(http.StatusNotFound, "models/a is not found"),
		"b": reply("Hi there"),
		"c": reply("never"),
	})
	chain := chainOf(t, p, "a", "b", "c")

	result := chain.Complete(context.Background(), testWindow(t))
	if !result.OK() {
		t.Fatalf("Complete() failure = %+v", result.Failure)
	}
	if result.Text != "Hi there" || result.Model != "b" {
		t.Errorf("Complete() = %q from %q", result.Text, result.Model)
	}
	if calls := p.Calls(); !reflect.DeepEqual(calls, []string{"a", "b"}) {
		t.Errorf("calls = %v, want [a b]", calls)
	}
}

func TestChainUnknownErrorFallsThrough(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"a": fail(http.StatusBadGateway, "upstream connect error"),
		"b": reply("ok"),
	})
	chain := chainOf(t, p, "a", "b")

	result := chain.Complete(context.Background(), testWindow(t))
	if !result.OK() || result.Model != "b" {
		t.Errorf("Complete() = %+v, want success from b", result)
	}
}

func TestChainShortCircuitsSessionWideErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		message string
		want    ErrorKind
	}{
		{name: "auth", status: http.StatusUnauthorized, message: "invalid credentials", want: KindProviderAuthError},
		{name: "quota", status: http.StatusPaymentRequired, message: "billing hard limit", want: KindProviderQuotaExceeded},
		{name: "rate limit", status: http.StatusTooManyRequests, message: "slow down", want: KindProviderRateLimited},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(map[string]generateFunc{
				"a": fail(tt.status, tt.message),
				"b": reply("never"),
				"c": reply("never"),
			})
			chain := chainOf(t, p, "a", "b", "c")

			result := chain.Complete(context.Background(), testWindow(t))
			if result.OK() {
				t.Fatal("Complete() succeeded, want failure")
			}
			if result.Failure.Kind != tt.want {
				t.Errorf("Complete() kind = %v, want %v", result.Failure.Kind, tt.want)
			}
			if calls := p.Calls(); len(calls) != 1 {
				t.Errorf("calls = %v, want exactly one", calls)
			}
		})
	}
}

func TestChainExhaustion(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"a": fail(http.StatusNotFound, "a is not found"),
		"b": fail(http.StatusServiceUnavailable, "overloaded"),
		"c": fail(http.StatusNotFound, "c is not found"),
	})
	chain := chainOf(t, p, "a", "b", "c")

	result := chain.Complete(context.Background(), testWindow(t))
	if result.OK() {
		t.Fatal("Complete() succeeded, want failure")
	}
	if result.Text != "" {
		t.Errorf("Complete() text = %q on failure", result.Text)
	}
	if result.Failure.Kind != KindProviderModelUnavailable {
		t.Errorf("Complete() kind = %v, want %v", result.Failure.Kind, KindProviderModelUnavailable)
	}
	if !strings.Contains(result.Failure.Details, "all 3 models failed") ||
		!strings.Contains(result.Failure.Details, "c is not found") {
		t.Errorf("Complete() details = %q, want count and last error", result.Failure.Details)
	}
	if calls := p.Calls(); !reflect.DeepEqual(calls, []string{"a", "b", "c"}) {
		t.Errorf("calls = %v, want each model once", calls)
	}
}

func TestChainAttemptTimeoutMovesOn(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"slow": func(ctx context.Context, _ []Turn) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		"fast": reply("quick answer"),
	})
	chain, err := NewChain(p, CandidatesFromIDs([]string{"slow", "fast"}), 20*time.Millisecond)
	if err != nil {
		t.Fatalf("NewChain() error = %v", err)
	}

	result := chain.Complete(context.Background(), testWindow(t))
	if !result.OK() || result.Model != "fast" {
		t.Errorf("Complete() = %+v, want success from fast", result)
	}
}

func TestChainStopsWhenCallerCancels(t *testing.T) {
	t.Run("before first attempt", func(t *testing.T) {
		p := newFakeProvider(map[string]generateFunc{"a": reply("never")})
		chain := chainOf(t, p, "a")

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		result := chain.Complete(ctx, testWindow(t))
		if result.OK() {
			t.Fatal("Complete() succeeded on cancelled context")
		}
		if len(p.Calls()) != 0 {
			t.Errorf("calls = %v, want none", p.Calls())
		}
	})

	t.Run("during an attempt", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		p := newFakeProvider(map[string]generateFunc{
			"a": func(attemptCtx context.Context, _ []Turn) (string, error) {
				cancel()
				<-attemptCtx.Done()
				return "", attemptCtx.Err()
			},
			"b": reply("never"),
		})
		chain := chainOf(t, p, "a", "b")

		result := chain.Complete(ctx, testWindow(t))
		if result.OK() {
			t.Fatal("Complete() succeeded after cancel")
		}
		if result.Failure.Kind != KindProviderUnknownError {
			t.Errorf("Complete() kind = %v, want %v", result.Failure.Kind, KindProviderUnknownError)
		}
		if calls := p.Calls(); !reflect.DeepEqual(calls, []string{"a"}) {
			t.Errorf("calls = %v, want [a]", calls)
		}
	})
}

func TestChainPassesWindowThrough(t *testing.T) {
	var got []Turn
	p := newFakeProvider(map[string]generateFunc{
		"a": func(_ context.Context, turns []Turn) (string, error) {
			got = turns
			return "ok", nil
		},
	})
	chain := chainOf(t, p, "a")

	window, err := BuildWindow([]HistoryEntry{{Content: "hi", IsUser: true}, {Content: "hello", IsUser: false}}, "how are you", 10)
	if err != nil {
		t.Fatalf("BuildWindow() error = %v", err)
	}
	chain.Complete(context.Background(), window)

	if !reflect.DeepEqual(got, window.Turns) {
		t.Errorf("provider got %+v, want %+v", got, window.Turns)
	}
}
