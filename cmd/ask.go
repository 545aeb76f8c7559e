package main

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/antonovme52/vaibim-main/internal/config"
	"github.com/antonovme52/vaibim-main/internal/llm"
	"github.com/antonovme52/vaibim-main/pkg/utils"
)

var askCmd = &cobra.Command{
	Use:   "ask <prompt>",
	Short: "Send one prompt through the model chain",
	Long: `Send a single prompt through the configured fallback chain and print the
answer. No session is needed; this talks to the provider directly.

Examples:
  vaibim ask "Что такое Go?"
  LLM_MODELS=gemini-2.0-flash vaibim ask "hello"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		chain, err := newChain(cfg)
		if err != nil {
			return fmt.Errorf("failed to configure model chain: %w", err)
		}

		window, err := llm.BuildWindow(nil, strings.Join(args, " "), cfg.HistoryWindow)
		if err != nil {
			return err
		}

		result := chain.Complete(cmd.Context(), window)
		if !result.OK() {
			log.Debug().
				Str("kind", string(result.Failure.Kind)).
				Str("details", utils.Redact(result.Failure.Details, cfg.APIKey)).
				Msg("chain failed")
			return fmt.Errorf("%s: %s", result.Failure.Kind, result.Failure.Message)
		}

		log.Debug().Str("model", result.Model).Msg("answered")
		fmt.Fprintln(cmd.OutOrStdout(), result.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
