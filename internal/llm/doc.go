/*
Package llm relays chat messages from authenticated users to a language model.

# Architecture Overview

A relay request passes through four stages, each of which either advances the
request or ends it with a typed failure:

1. Session gate (internal/auth)
  - Resolves the session token to a user before any other work is done
  - Unauthenticated requests never reach the windower or a provider

2. History windower (window.go)
  - Keeps the most recent turns of the submitted transcript
  - Appends the new user message as the final turn

3. Fallback chain (fallback.go)
  - Tries the configured models in priority order, each at most once
  - Stops early on failures that concern the credential rather than the model

4. Error classifier (errors.go)
  - Maps raw provider errors onto a small set of ErrorKind values
  - Every kind carries a fixed user-facing message

# Providers

Vendor APIs sit behind the Provider interface. GeminiProvider speaks the
generateContent API and OpenAIProvider speaks the chat/completions dialect.
Adapters receive their key and endpoint through ProviderConfig; there is no
package-level provider state.

# HTTP API

ServerState exposes:

  - POST /api/chat: relay one message with its history
  - GET /api/models: list the fallback chain in the order it is tried

Failures are returned as {"error", "kind"} with 401 for Unauthenticated, 400
for InvalidInput and 500 for provider failures. Provider diagnostics are only
included when explicitly enabled and always have configured secrets masked.
*/
package llm
