package llm

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
)

type scriptedClient struct {
	responses []scriptedResponse
	requests  []CompletionRequest
	mu        sync.Mutex
}

type scriptedResponse struct {
	err        error
	completion Completion
	block      bool
}

func (c *scriptedClient) Complete(ctx context.Context, req CompletionRequest) (Completion, error) {
	c.mu.Lock()
	i := len(c.requests)
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	r := c.responses[i]
	if r.block {
		<-ctx.Done()
		return Completion{}, ctx.Err()
	}
	return r.completion, r.err
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

func fastConfig() Config {
	return Config{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func testReps() []model.Representative {
	return []model.Representative{
		{ID: "a", Vendor: "Delta", Amount: decimal.NewFromInt(-420), Date: time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
}

func TestClassifier_Classify(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{{
		completion: Completion{
			Text:         `[{"id":"a","category":"Travel","scheduleCLine":"24a","confidence":0.95,"quickLabels":["Client Visit","Conference"],"isTravel":true}]`,
			InputTokens:  200,
			OutputTokens: 50,
		},
	}}}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	batch, err := c.Classify(context.Background(), testReps())
	require.NoError(t, err)
	assert.Equal(t, 200, batch.InputTokens)
	assert.Equal(t, 50, batch.OutputTokens)
	assert.Equal(t, "24a", batch.Results["a"].ScheduleCLine)

	require.Equal(t, 1, client.calls())
	assert.Equal(t, systemPrompt, client.requests[0].System)
	assert.Equal(t, 4096, client.requests[0].MaxTokens)
	assert.Contains(t, client.requests[0].Prompt, "a|Delta|$420.00|2025-01-02")
}

func TestClassifier_RetriesTransientFailures(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &APIError{Provider: "anthropic", StatusCode: 429}},
		{err: &APIError{Provider: "anthropic", StatusCode: 503}},
		{completion: Completion{Text: `[{"id":"a","category":"Travel","scheduleCLine":"24a"}]`}},
	}}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	batch, err := c.Classify(context.Background(), testReps())
	require.NoError(t, err)
	assert.Equal(t, 3, client.calls())
	assert.Contains(t, batch.Results, "a")
}

func TestClassifier_GivesUpAfterMaxAttempts(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &APIError{Provider: "anthropic", StatusCode: 500}},
	}}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	_, err := c.Classify(context.Background(), testReps())
	require.ErrorIs(t, err, common.ErrMaxRetries)
	assert.Equal(t, 3, client.calls())
}

func TestClassifier_DoesNotRetryClientErrors(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{err: &APIError{Provider: "anthropic", StatusCode: 400, Body: "invalid request"}},
	}}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	_, err := c.Classify(context.Background(), testReps())
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 400, apiErr.StatusCode)
	assert.Equal(t, 1, client.calls())
}

func TestClassifier_DoesNotRetryMalformedOutput(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{completion: Completion{Text: "I cannot help with that", InputTokens: 7, OutputTokens: 3}},
	}}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	batch, err := c.Classify(context.Background(), testReps())
	var malformed *MalformedResponseError
	require.ErrorAs(t, err, &malformed)
	assert.Equal(t, 1, client.calls())
	assert.Equal(t, 7, batch.InputTokens, "usage is kept for malformed output")
}

func TestClassifier_TimeoutIsRetried(t *testing.T) {
	client := &scriptedClient{responses: []scriptedResponse{
		{block: true},
		{completion: Completion{Text: `[{"id":"a","category":"Travel","scheduleCLine":"24a"}]`}},
	}}
	cfg := fastConfig()
	cfg.Timeout = 10 * time.Millisecond
	c := NewClassifierWithClient(client, cfg, nil)

	_, err := c.Classify(context.Background(), testReps())
	require.NoError(t, err)
	assert.Equal(t, 2, client.calls())
}

func TestClassifier_EmptyInput(t *testing.T) {
	client := &scriptedClient{}
	c := NewClassifierWithClient(client, fastConfig(), nil)

	batch, err := c.Classify(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, batch.Results)
	assert.Equal(t, 0, client.calls())
}
