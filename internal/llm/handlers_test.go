package llm

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/antonovme52/vaibim-main/internal/auth"
)

func newTestServer(t *testing.T, p *fakeProvider) (*ServerState, *http.ServeMux) {
	t.Helper()
	relay := newTestRelay(t, p, WithRedactedSecrets("super-secret-key"))
	state := NewServerState(relay, CandidatesFromIDs([]string{"a", "b"}))
	mux := http.NewServeMux()
	state.RegisterHandlers(mux)
	return state, mux
}

func postChat(mux *http.ServeMux, token, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	if token != "" {
		r.AddCookie(&http.Cookie{Name: auth.CookieName, Value: token})
	}
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		body       string
		wantStatus int
		wantKind   ErrorKind
		wantCalls  int
	}{
		{
			name:       "no session",
			body:       `{"message":"Hello"}`,
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindUnauthenticated,
		},
		{
			name:       "no session and broken body",
			body:       `{not json`,
			wantStatus: http.StatusUnauthorized,
			wantKind:   KindUnauthenticated,
		},
		{
			name:       "empty message",
			token:      testToken,
			body:       `{"message":"  ","history":[]}`,
			wantStatus: http.StatusBadRequest,
			wantKind:   KindInvalidInput,
		},
		{
			name:       "broken body",
			token:      testToken,
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
			wantKind:   KindInvalidInput,
		},
		{
			name:       "success",
			token:      testToken,
			body:       `{"message":"Hello","history":[{"content":"hi","isUser":true},{"content":"hey","isUser":false}]}`,
			wantStatus: http.StatusOK,
			wantCalls:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newFakeProvider(map[string]generateFunc{"a": reply("Hi there")})
			_, mux := newTestServer(t, p)

			w := postChat(mux, tt.token, tt.body)
			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if got := len(p.Calls()); got != tt.wantCalls {
				t.Errorf("provider calls = %d, want %d", got, tt.wantCalls)
			}

			if tt.wantStatus == http.StatusOK {
				var resp ChatResponse
				if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
					t.Fatalf("invalid JSON: %v", err)
				}
				if resp.Response != "Hi there" || resp.Model != "a" {
					t.Errorf("response = %+v", resp)
				}
				return
			}

			var resp ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("kind = %v, want %v", resp.Kind, tt.wantKind)
			}
			if resp.Error != tt.wantKind.UserMessage() {
				t.Errorf("error = %q, want %q", resp.Error, tt.wantKind.UserMessage())
			}
		})
	}
}

func TestHandleChatMethodNotAllowed(t *testing.T) {
	_, mux := newTestServer(t, newFakeProvider(nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/chat", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", w.Code, http.StatusMethodNotAllowed)
	}
}

func TestHandleChatProviderFailure(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{
		"a": fail(http.StatusUnauthorized, "API key super-secret-key rejected"),
	})

	t.Run("details hidden by default", func(t *testing.T) {
		_, mux := newTestServer(t, p)
		w := postChat(mux, testToken, `{"message":"Hello"}`)
		if w.Code != http.StatusInternalServerError {
			t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if resp.Kind != KindProviderAuthError || resp.Details != "" {
			t.Errorf("response = %+v, want auth error without details", resp)
		}
	})

	t.Run("details exposed and redacted", func(t *testing.T) {
		state, mux := newTestServer(t, p)
		state.ExposeDetails = true
		w := postChat(mux, testToken, `{"message":"Hello"}`)

		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if resp.Details == "" {
			t.Error("details missing")
		}
		if strings.Contains(w.Body.String(), "super-secret-key") {
			t.Errorf("body leaks the key: %s", w.Body.String())
		}
	})
}

func TestHandleChatRateLimitedSetsRetryAfter(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{"a": fail(http.StatusTooManyRequests, "slow down")})
	_, mux := newTestServer(t, p)

	w := postChat(mux, testToken, `{"message":"Hello"}`)
	if w.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header missing")
	}
}

func TestHandleChatBodyTooLarge(t *testing.T) {
	p := newFakeProvider(map[string]generateFunc{"a": reply("ok")})
	state, mux := newTestServer(t, p)
	state.MaxBodyBytes = 32

	w := postChat(mux, testToken, `{"message":"`+strings.Repeat("x", 100)+`"}`)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if len(p.Calls()) != 0 {
		t.Errorf("provider called for oversized body")
	}
}

func TestHandleListModels(t *testing.T) {
	_, mux := newTestServer(t, newFakeProvider(nil))

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/models", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status without session = %d, want %d", w.Code, http.StatusUnauthorized)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/models", nil)
	r.Header.Set("Authorization", "Bearer "+testToken)
	w = httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}

	var resp ListModelsResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(resp.Models) != 2 || resp.Models[0].ID != "a" {
		t.Errorf("models = %+v", resp.Models)
	}
}
