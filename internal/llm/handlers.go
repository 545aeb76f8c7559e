package llm

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/antonovme52/vaibim-main/internal/auth"
)

// DefaultMaxBodyBytes caps relay request bodies when no limit is configured.
const DefaultMaxBodyBytes = 1 << 20

// ServerState holds what the relay endpoints need.
type ServerState struct {
	Relay         *Relay
	Models        []ModelCandidate
	ExposeDetails bool
	MaxBodyBytes  int64
}

// NewServerState creates the relay HTTP state.
func NewServerState(relay *Relay, models []ModelCandidate) *ServerState {
	return &ServerState{
		Relay:        relay,
		Models:       models,
		MaxBodyBytes: DefaultMaxBodyBytes,
	}
}

// ChatResponse is the success body of POST /api/chat.
type ChatResponse struct {
	Response string `json:"response"`
	Model    string `json:"model,omitempty"`
}

// ErrorResponse is the failure body of the relay endpoints.
type ErrorResponse struct {
	Error   string    `json:"error"`
	Kind    ErrorKind `json:"kind"`
	Details string    `json:"details,omitempty"`
}

// ListModelsResponse is the response for the list models endpoint
type ListModelsResponse struct {
	Models []ModelCandidate `json:"models"`
}

// HandleChat relays one user message to the model chain.
func (s *ServerState) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	identity, err := s.Relay.gate.Authorize(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		s.writeFailure(w, failedWith(KindUnauthenticated).Failure)
		return
	}

	maxBody := s.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = DefaultMaxBodyBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBody)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		log.Debug().Err(err).Bool("too_large", errors.As(err, &tooLarge)).Msg("invalid relay payload")
		s.writeFailure(w, failedWith(KindInvalidInput).Failure)
		return
	}

	result := s.Relay.HandleAuthorized(r.Context(), identity, req)
	if r.Context().Err() != nil {
		log.Debug().Int64("user_id", identity.UserID).Msg("client went away before relay finished")
		return
	}
	if !result.OK() {
		s.writeFailure(w, result.Failure)
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{Response: result.Text, Model: result.Model})
}

// HandleListModels returns the fallback chain in the order it is tried.
func (s *ServerState) HandleListModels(w http.ResponseWriter, r *http.Request) {
	if _, err := s.Relay.gate.Authorize(r.Context(), auth.TokenFromRequest(r)); err != nil {
		s.writeFailure(w, failedWith(KindUnauthenticated).Failure)
		return
	}
	writeJSON(w, http.StatusOK, ListModelsResponse{Models: s.Models})
}

// RegisterHandlers registers the relay handlers with a router
func (s *ServerState) RegisterHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/api/chat", s.HandleChat)
	mux.HandleFunc("/api/models", s.HandleListModels)
}

func (s *ServerState) writeFailure(w http.ResponseWriter, f *Failure) {
	resp := ErrorResponse{Error: f.Message, Kind: f.Kind}
	if f.Kind == KindProviderRateLimited {
		w.Header().Set("Retry-After", "60")
	}
	if s.ExposeDetails {
		resp.Details = f.Details
	}
	writeJSON(w, f.Kind.HTTPStatus(), resp)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
