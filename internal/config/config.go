// Package config loads server configuration from the environment, an optional
// .env file and an optional YAML model chain file.
package config

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/antonovme52/vaibim-main/internal/llm"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

// DefaultModels is the Gemini chain used when neither LLM_MODELS nor
// MODELS_FILE is set: newest first, older generations as fallbacks.
var DefaultModels = []string{"gemini-2.5-flash", "gemini-2.0-flash", "gemini-1.5-flash"}

// DefaultCORSOrigins are the frontend origins allowed when CORS_ORIGINS is unset.
var DefaultCORSOrigins = []string{
	"http://localhost:3000",
	"http://frontend:3000",
	"http://127.0.0.1:3000",
}

// Config is the complete server configuration. It is built once at startup and
// passed to constructors; nothing reads the environment after Load returns.
type Config struct {
	// Port is the HTTP listen port.
	Port int
	// SecretKey signs session tokens.
	SecretKey string
	// SecretGenerated is true when SECRET_KEY was absent and a random one was made.
	SecretGenerated bool
	// DatabasePath is the SQLite file holding the users table.
	DatabasePath string

	// Provider selects the LLM adapter ("gemini" or "openai").
	Provider string
	// APIKey is the provider credential.
	APIKey string
	// BaseURL overrides the provider endpoint.
	BaseURL string
	// SystemPrompt is sent with every conversation when set.
	SystemPrompt string
	// Models is the fallback chain, sorted by priority.
	Models []llm.ModelCandidate

	// HistoryWindow is the number of past turns forwarded per request.
	HistoryWindow int
	// ProviderTimeout bounds one model attempt.
	ProviderTimeout time.Duration
	// SessionTTL is the lifetime of a login.
	SessionTTL time.Duration

	// CORSOrigins lists allowed browser origins.
	CORSOrigins []string
	// CookieSecure sets the Secure flag on the session cookie.
	CookieSecure bool
	// ExposeErrorDetails includes redacted provider diagnostics in error responses.
	ExposeErrorDetails bool
	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64
	// TraceStdout exports OpenTelemetry spans to stdout.
	TraceStdout bool
}

// modelsFile is the YAML layout of MODELS_FILE:
//
//	models:
//	  - id: gemini-2.5-flash
//	    priority: 1
type modelsFile struct {
	Models []llm.ModelCandidate `yaml:"models"`
}

// Load reads the configuration. It loads a .env file first (see LoadEnvFile),
// so values in the real environment win over the file.
func Load() (*Config, error) {
	LoadEnvFile()

	cfg := &Config{
		Port:               utils.GetEnvInt("PORT", 5000),
		SecretKey:          utils.GetEnvWithDefault("SECRET_KEY", ""),
		DatabasePath:       utils.GetEnvWithDefault("DATABASE_PATH", "vaibim.db"),
		Provider:           utils.GetEnvWithDefault("LLM_PROVIDER", llm.ProviderGemini),
		APIKey:             utils.GetEnvWithDefault("LLM_API_KEY", ""),
		BaseURL:            utils.GetEnvWithDefault("LLM_BASE_URL", ""),
		SystemPrompt:       utils.GetEnvWithDefault("SYSTEM_PROMPT", ""),
		HistoryWindow:      utils.GetEnvInt("HISTORY_WINDOW", llm.DefaultHistoryWindow),
		ProviderTimeout:    utils.GetEnvDuration("PROVIDER_TIMEOUT", llm.DefaultAttemptTimeout),
		SessionTTL:         utils.GetEnvDuration("SESSION_TTL", 24*time.Hour),
		CORSOrigins:        utils.SplitList(os.Getenv("CORS_ORIGINS")),
		CookieSecure:       utils.GetEnvBool("COOKIE_SECURE"),
		ExposeErrorDetails: utils.GetEnvBool("EXPOSE_ERROR_DETAILS"),
		MaxBodyBytes:       int64(utils.GetEnvInt("MAX_BODY_BYTES", 1<<20)),
		TraceStdout:        utils.GetEnvBool("TRACE_STDOUT"),
	}

	if cfg.SecretKey == "" {
		cfg.SecretKey = randomSecret()
		cfg.SecretGenerated = true
	}
	if len(cfg.CORSOrigins) == 0 {
		cfg.CORSOrigins = DefaultCORSOrigins
	}
	if cfg.HistoryWindow < 0 {
		return nil, fmt.Errorf("HISTORY_WINDOW must not be negative, got %d", cfg.HistoryWindow)
	}

	models, err := loadModels()
	if err != nil {
		return nil, err
	}
	cfg.Models = models

	return cfg, nil
}

// Addr returns the listen address for the configured port.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// ProviderConfig returns the adapter settings for llm.NewProvider.
func (c *Config) ProviderConfig() llm.ProviderConfig {
	return llm.ProviderConfig{
		Name:         c.Provider,
		APIKey:       c.APIKey,
		BaseURL:      c.BaseURL,
		SystemPrompt: c.SystemPrompt,
	}
}

// loadModels resolves the chain from MODELS_FILE, then LLM_MODELS, then the
// defaults.
func loadModels() ([]llm.ModelCandidate, error) {
	if path := utils.GetEnvWithDefault("MODELS_FILE", ""); path != "" {
		return LoadModelsFile(path)
	}
	if ids := utils.SplitList(os.Getenv("LLM_MODELS")); len(ids) > 0 {
		return llm.NormalizeCandidates(llm.CandidatesFromIDs(ids))
	}
	return llm.NormalizeCandidates(llm.CandidatesFromIDs(DefaultModels))
}

// LoadModelsFile reads a YAML model chain and validates it.
func LoadModelsFile(path string) ([]llm.ModelCandidate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read models file: %w", err)
	}

	var file modelsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse models file %s: %w", path, err)
	}

	models, err := llm.NormalizeCandidates(file.Models)
	if err != nil {
		return nil, fmt.Errorf("invalid models file %s: %w", path, err)
	}
	return models, nil
}

// LoadEnvFile loads environment variables from a .env file if present.
// It attempts to load from the current directory and parent directories
// up to the root directory.
func LoadEnvFile() {
	workDir, err := os.Getwd()
	if err != nil {
		log.Warn().Err(err).Msg("could not determine current directory")
		return
	}

	for dir := workDir; ; dir = filepath.Dir(dir) {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				log.Warn().Err(err).Str("path", envPath).Msg("failed to load .env file")
				return
			}
			log.Debug().Str("path", envPath).Msg("loaded environment variables")
			return
		} else if !errors.Is(err, os.ErrNotExist) {
			log.Warn().Err(err).Str("path", envPath).Msg("cannot stat .env file")
			return
		}

		if parent := filepath.Dir(dir); parent == dir {
			break
		}
	}

	log.Debug().Msg("no .env file found, using existing environment variables")
}

func randomSecret() string {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		panic(fmt.Sprintf("crypto/rand failed: %v", err))
	}
	return hex.EncodeToString(b)
}
