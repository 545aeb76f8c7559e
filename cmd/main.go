// Vaibim chat relay
//
// This application serves the Vaibim chat backend: user accounts with
// server-side sessions, and a relay that forwards each authenticated chat
// message, with a bounded slice of its history, to a language model. When a
// model fails the relay falls back to the next configured model.
//
// CLI Usage:
//
//	vaibim serve [--port 5000]
//	  Runs the HTTP server until SIGINT or SIGTERM.
//
//	vaibim ask "prompt"
//	  Sends one prompt through the configured model chain and prints the answer.
//
//	vaibim token inspect <token>
//	  Verifies a session token and prints its claims.
//
// Environment Variables:
//   - SECRET_KEY: Signs session tokens
//   - DATABASE_PATH: SQLite file with registered users
//   - LLM_PROVIDER: "gemini" (default) or "openai"
//   - LLM_API_KEY: Provider API key
//   - LLM_MODELS: Comma-separated fallback chain, tried in order
//   - MODELS_FILE: YAML fallback chain with explicit priorities
//   - LOG_LEVEL, LOG_FORMAT: Logging verbosity and "json" or "console" output
package main

func main() {
	Execute()
}
