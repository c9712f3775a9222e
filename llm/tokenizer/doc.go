// Package tokenizer provides model-aware token counting for the prompt
// budget: exact counts via tiktoken for OpenAI-family encodings and a
// character-class estimator fallback for everything else.
package tokenizer
