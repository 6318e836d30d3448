package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// Client is a raw text completion endpoint.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (Completion, error)
}

// CompletionRequest is a single system + user prompt exchange.
type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Completion holds the first text block of a response and its token usage.
type Completion struct {
	Text         string
	InputTokens  int
	OutputTokens int
}

// APIError is a non-200 response from a provider.
type APIError struct {
	Provider   string
	Body       string
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Body)
}

// IsTransient reports whether err is worth retrying: rate limits, gateway
// errors, timeouts and network failures. Status codes decide when they are
// available; the message is only consulted for errors that carry none.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout,
			529:
			return true
		}
		return false
	}

	var malformed *MalformedResponseError
	if errors.As(err, &malformed) {
		return false
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, hint := range []string{"rate limit", "overloaded", "connection refused", "connection reset", "timeout", "eof"} {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
