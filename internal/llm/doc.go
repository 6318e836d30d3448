// Package llm provides language model clients for Schedule C classification.
// It supports the Anthropic and OpenAI-compatible HTTP APIs, with retry on
// transient upstream failures and tolerant parsing of model output.
package llm
