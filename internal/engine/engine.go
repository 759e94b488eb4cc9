// Package engine runs autoregressive text generation against a quantized
// local model. It is the only package that touches native inference
// resources; every other component consumes the Engine contract.
package engine

import "context"

// Engine is the generative-AI contract implemented by every tier the
// resolver can hand out (embedded, local llama, no-op fallback).
//
// Generate streams text fragments to onToken until the budget, an
// end-of-generation token, cancellation, or an internal failure ends the
// stream. The stream is finite and not restartable. Internal failures close
// the stream early without an error: callers must treat "no output" as a
// normal state, not a distinguishable failure.
type Engine interface {
	// Available reports whether the engine can serve generative requests.
	Available() bool
	// Generate streams fragments of the completion for prompt. onToken
	// returning an error stops the stream.
	Generate(ctx context.Context, prompt string, maxTokens int, onToken func(string) error)
	// Classify returns exactly one of categories for the given text.
	Classify(ctx context.Context, text string, categories []string) (string, error)
	// Embed returns an embedding vector for text.
	Embed(ctx context.Context, text string) ([]float32, error)
	// Unload releases any resources held by the engine. Safe to call when
	// nothing is loaded.
	Unload()
}
