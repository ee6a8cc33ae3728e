// Package ollama provides a generation.Completer backed by a local Ollama
// server. Prompts and response decoding are shared with the other providers
// through generation.PromptProvider.
package ollama
