// Package gemini connects the article pipeline to Google's Gemini API.
//
// GeminiGenerator implements generation.Completer for text, so it plugs into
// generation.PromptProvider, and generation.ImageGenerator for Imagen
// illustrations that are written to a local directory and served from a
// public base URL.
//
// Transient API failures are retried with exponential backoff and jitter.
// Safety blocks and malformed responses are permanent and returned at once.
package gemini
