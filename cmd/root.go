package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/antonovme52/vaibim-main/internal/config"
	"github.com/antonovme52/vaibim-main/internal/llm"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

var (
	verbose bool
	version = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "vaibim",
	Short: "Chat relay with session auth and model fallback",
	Long: `Vaibim relays chat messages from logged-in users to a language model.

Each message is sent with the most recent turns of its conversation. If the
first model in the chain fails, the next one is tried; credential problems
(bad key, exhausted quota, rate limits) stop the chain immediately.

Quick Start:
  vaibim serve                       # Start the HTTP server
  vaibim ask "Привет!"               # Try the model chain from the terminal
  vaibim token inspect <token>       # Decode a session token`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(verbose)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}

// setupLogging configures the global zerolog logger from LOG_LEVEL and
// LOG_FORMAT. --verbose forces debug level.
func setupLogging(verbose bool) {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(strings.ToLower(utils.GetEnvWithDefault("LOG_LEVEL", "info")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	if verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)

	if strings.EqualFold(utils.GetEnvWithDefault("LOG_FORMAT", "console"), "json") {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
		return
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
}

// newChain builds the provider adapter and fallback chain described by cfg.
func newChain(cfg *config.Config) (*llm.Chain, error) {
	provider, err := llm.NewProvider(cfg.ProviderConfig())
	if err != nil {
		return nil, err
	}
	return llm.NewChain(provider, cfg.Models, cfg.ProviderTimeout)
}
