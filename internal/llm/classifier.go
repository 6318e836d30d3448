package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Nate-Smithline/LedgerTerminal/internal/common"
	"github.com/Nate-Smithline/LedgerTerminal/internal/model"
	"github.com/Nate-Smithline/LedgerTerminal/internal/service"
)

// DefaultTimeout bounds a single classification attempt.
const DefaultTimeout = 60 * time.Second

// Config holds configuration for the LLM classifier.
type Config struct {
	Provider     string
	APIKey       string
	Model        string
	BaseURL      string
	MaxTokens    int
	Temperature  float64
	Timeout      time.Duration
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Classifier assigns Schedule C categories to batches of representative
// transactions with one completion call per batch.
type Classifier struct {
	client    Client
	logger    *slog.Logger
	retryOpts service.RetryOptions
	timeout   time.Duration
	maxTokens int
	temp      float64
}

// NewClassifier creates a classifier for the configured provider.
func NewClassifier(cfg Config, logger *slog.Logger) (*Classifier, error) {
	client, err := NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create LLM client: %w", err)
	}
	return NewClassifierWithClient(client, cfg, logger), nil
}

// NewClassifierWithClient wraps an existing client.
func NewClassifierWithClient(client Client, cfg Config, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}

	retryOpts := common.DefaultRetryOptions()
	if cfg.MaxAttempts > 0 {
		retryOpts.MaxAttempts = cfg.MaxAttempts
	}
	if cfg.InitialDelay > 0 {
		retryOpts.InitialDelay = cfg.InitialDelay
	}
	if cfg.MaxDelay > 0 {
		retryOpts.MaxDelay = cfg.MaxDelay
	}
	retryOpts.ShouldRetry = IsTransient

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	return &Classifier{
		client:    client,
		logger:    logger,
		retryOpts: retryOpts,
		timeout:   timeout,
		maxTokens: maxTokens,
		temp:      cfg.Temperature,
	}
}

// Classify sends one prompt covering reps and returns the parsed results
// keyed by representative id. Results for ids the model omitted are simply
// absent. Token usage is reported even when the output is malformed.
func (c *Classifier) Classify(ctx context.Context, reps []model.Representative) (model.ClassificationBatch, error) {
	if len(reps) == 0 {
		return model.ClassificationBatch{Results: map[string]model.ClassificationResult{}}, nil
	}

	req := CompletionRequest{
		System:      systemPrompt,
		Prompt:      buildBatchPrompt(reps),
		MaxTokens:   c.maxTokens,
		Temperature: c.temp,
	}

	var completion Completion
	err := common.WithRetry(ctx, func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
		defer cancel()

		var err error
		completion, err = c.client.Complete(attemptCtx, req)
		if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return fmt.Errorf("classification call timed out after %s: %w", c.timeout, context.DeadlineExceeded)
		}
		return err
	}, c.retryOpts)
	if err != nil {
		c.logger.Error("classification request failed", "representatives", len(reps), "error", err)
		return model.ClassificationBatch{}, err
	}

	batch := model.ClassificationBatch{
		InputTokens:  completion.InputTokens,
		OutputTokens: completion.OutputTokens,
	}

	results, err := parseResults(completion.Text)
	if err != nil {
		var malformed *MalformedResponseError
		if errors.As(err, &malformed) {
			c.logger.Warn("malformed classification response",
				"representatives", len(reps),
				"preview", malformed.Preview,
				"reason", malformed.Reason)
		}
		return batch, err
	}
	batch.Results = results

	c.logger.Debug("classified batch",
		"representatives", len(reps),
		"results", len(results),
		"input_tokens", batch.InputTokens,
		"output_tokens", batch.OutputTokens)
	return batch, nil
}
