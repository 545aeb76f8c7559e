package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/antonovme52/vaibim-main/internal/auth"
	"github.com/antonovme52/vaibim-main/internal/config"
	"github.com/antonovme52/vaibim-main/internal/llm"
	"github.com/antonovme52/vaibim-main/internal/users"
)

// User-facing messages of the account endpoints.
const (
	msgFieldsRequired   = "Все поля обязательны для заполнения"
	msgPasswordMismatch = "Пароли не совпадают"
	msgUserExists       = "Пользователь уже существует"
	msgRegistered       = "Регистрация успешна!"
	msgLoggedIn         = "Вход успешен"
	msgLoginFailed      = "Ошибка входа"
	msgLoggedOut        = "Выход выполнен"
	msgAuthRequired     = "Требуется авторизация"
	msgInternalError    = "Внутренняя ошибка сервера"
)

// App represents the main application with its router and services.
type App struct {
	Router   *http.ServeMux
	Users    *users.Store
	Sessions *auth.Store
	Gate     *auth.Gate
	Relay    *llm.ServerState

	config *config.Config
}

// NewApp wires the account endpoints and the relay around the given chain.
func NewApp(cfg *config.Config, userStore *users.Store, sessions *auth.Store, chain llm.Completer) *App {
	gate := auth.NewGate(sessions, cfg.SecretKey)

	relay := llm.NewRelay(gate, chain,
		llm.WithWindowSize(cfg.HistoryWindow),
		llm.WithRedactedSecrets(cfg.APIKey),
	)
	state := llm.NewServerState(relay, cfg.Models)
	state.ExposeDetails = cfg.ExposeErrorDetails
	if cfg.MaxBodyBytes > 0 {
		state.MaxBodyBytes = cfg.MaxBodyBytes
	}

	app := &App{
		Router:   http.NewServeMux(),
		Users:    userStore,
		Sessions: sessions,
		Gate:     gate,
		Relay:    state,
		config:   cfg,
	}

	app.initializeRoutes()
	return app
}

// Handler returns the router wrapped in the common middleware.
func (a *App) Handler() http.Handler {
	return requestLogger(withDefaultHeaders(withCORS(a.config.CORSOrigins, a.Router)))
}

func (a *App) initializeRoutes() {
	a.Router.HandleFunc("/status", a.handleStatus)
	a.Router.HandleFunc("/api/register", a.handleRegister)
	a.Router.HandleFunc("/api/login", a.handleLogin)
	a.Router.HandleFunc("/api/logout", a.handleLogout)
	a.Router.HandleFunc("/api/check-auth", a.handleCheckAuth)
	a.Router.Handle("/api/dashboard", a.Gate.Middleware(unauthorized, http.HandlerFunc(a.handleDashboard)))
	a.Relay.RegisterHandlers(a.Router)
}

type registerRequest struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type loginResponse struct {
	Message string     `json:"message"`
	User    users.User `json:"user"`
	Token   string     `json:"token"`
}

type checkAuthResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *users.User `json:"user,omitempty"`
}

type userResponse struct {
	User users.User `json:"user"`
}

type statusResponse struct {
	Status string   `json:"status"`
	Models []string `json:"models"`
}

func (a *App) handleStatus(w http.ResponseWriter, r *http.Request) {
	models := make([]string, 0, len(a.config.Models))
	for _, m := range a.config.Models {
		models = append(models, m.ID)
	}
	writeJSON(w, http.StatusOK, statusResponse{Status: "ok", Models: models})
}

func (a *App) handleRegister(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, msgFieldsRequired)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)

	if req.Username == "" || req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, msgFieldsRequired)
		return
	}
	if req.Password != req.ConfirmPassword {
		writeError(w, http.StatusBadRequest, msgPasswordMismatch)
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		log.Error().Err(err).Msg("failed to hash password")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	user, err := a.Users.Create(r.Context(), req.Username, req.Email, hash)
	if errors.Is(err, users.ErrUserExists) {
		writeError(w, http.StatusBadRequest, msgUserExists)
		return
	}
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("failed to create user")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user registered")
	writeJSON(w, http.StatusCreated, messageResponse{Message: msgRegistered})
}

func (a *App) handleLogin(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}

	user, err := a.Users.ByUsername(r.Context(), strings.TrimSpace(req.Username))
	if err != nil {
		if !errors.Is(err, users.ErrUserNotFound) {
			log.Error().Err(err).Msg("user lookup failed")
		}
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		log.Debug().Str("username", user.Username).Msg("wrong password")
		writeError(w, http.StatusUnauthorized, msgLoginFailed)
		return
	}

	session := a.Sessions.Create(user.ID, user.Username)
	token, err := auth.CreateSessionToken(session, a.config.SecretKey)
	if err != nil {
		a.Sessions.Delete(session.ID)
		log.Error().Err(err).Msg("failed to sign session token")
		writeError(w, http.StatusInternalServerError, msgInternalError)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	log.Info().Int64("user_id", user.ID).Msg("user logged in")
	writeJSON(w, http.StatusOK, loginResponse{Message: msgLoggedIn, User: user, Token: token})
}

func (a *App) handleLogout(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	if identity, err := a.Gate.Authorize(r.Context(), auth.TokenFromRequest(r)); err == nil {
		a.Sessions.Delete(identity.SessionID)
		log.Info().Int64("user_id", identity.UserID).Msg("user logged out")
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		Expires:  time.Unix(0, 0),
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   a.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, messageResponse{Message: msgLoggedOut})
}

func (a *App) handleCheckAuth(w http.ResponseWriter, r *http.Request) {
	identity, err := a.Gate.Authorize(r.Context(), auth.TokenFromRequest(r))
	if err != nil {
		writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: false})
		return
	}

	user, err := a.Users.ByID(r.Context(), identity.UserID)
	if err != nil {
		writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: false})
		return
	}
	writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: true, User: &user})
}

func (a *App) handleDashboard(w http.ResponseWriter, r *http.Request) {
	identity, _ := auth.IdentityFromContext(r.Context())

	user, err := a.Users.ByID(r.Context(), identity.UserID)
	if err != nil {
		// The session outlived its user.
		unauthorized(w, r)
		return
	}
	writeJSON(w, http.StatusOK, userResponse{User: user})
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusUnauthorized, msgAuthRequired)
}

func requireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeError(w, http.StatusMethodNotAllowed, http.StatusText(http.StatusMethodNotAllowed))
	return false
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug().Err(err).Msg("failed to write response")
	}
}
