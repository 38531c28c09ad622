// Package extract selects and runs target-extraction strategies. The
// rule-based strategy is always available; the LLM-assisted strategy
// wraps it and falls back to it whenever the model cannot be reached
// or answers with something other than a target array.
package extract

import (
	"context"
	"log/slog"
	"time"

	"github.com/quangtrung-dev/planparse/internal/chunker"
	"github.com/quangtrung-dev/planparse/internal/target"
)

// Extractor turns section text into targets.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]target.Target, error)
}

// Options selects and configures a strategy.
type Options struct {
	UseLLM bool
	APIKey string
	Model  string
	Logger *slog.Logger
}

// New returns the configured strategy. Requesting LLM assistance
// without an API key is not an error: every call just takes the
// rule-based path.
func New(opts Options) Extractor {
	if !opts.UseLLM {
		return RuleBased{}
	}
	return NewLlmAssisted(opts)
}

// RuleBased runs the regex pipeline. It never fails.
type RuleBased struct{}

func (RuleBased) Extract(_ context.Context, text string) ([]target.Target, error) {
	return target.Extract(text), nil
}

// LlmAssisted asks Claude first and silently degrades to rules on any
// failure: missing credentials, transport errors, non-2xx statuses,
// or an undecodable response.
type LlmAssisted struct {
	rules   RuleBased
	client  *ClaudeClient
	log     *slog.Logger
	retries int
	backoff func(int) time.Duration
}

func NewLlmAssisted(opts Options) *LlmAssisted {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	l := &LlmAssisted{log: log, retries: maxLLMAttempts, backoff: Backoff}
	if opts.APIKey != "" {
		l.client = NewClaudeClient(opts.APIKey, opts.Model)
	}
	return l
}

// Client exposes the underlying API client, nil when credentials were
// absent. The stats endpoint reads latencies through it.
func (l *LlmAssisted) Client() *ClaudeClient {
	return l.client
}

func (l *LlmAssisted) Extract(ctx context.Context, text string) ([]target.Target, error) {
	if l.client == nil {
		return l.rules.Extract(ctx, text)
	}

	// Oversized sections go to the model in pieces; the shared overlap
	// plus dedup keeps targets on a cut whole and unduplicated.
	pieces := chunker.Split(text, chunker.Config{
		MaxBytes:     MaxPromptChars,
		OverlapBytes: PromptOverlap,
	})

	var all []target.Target
	for _, piece := range pieces {
		targets, err := l.askWithRetry(ctx, BuildPrompt(piece))
		if err != nil {
			l.log.Warn("llm extraction failed, falling back to rules", "error", err)
			fallback, _ := l.rules.Extract(ctx, piece)
			all = append(all, fallback...)
			continue
		}
		all = append(all, targets...)
	}
	return target.Dedup(all), nil
}

func (l *LlmAssisted) askWithRetry(ctx context.Context, prompt string) ([]target.Target, error) {
	var targets []target.Target
	var err error
	for attempt := range l.retries {
		targets, err = l.client.ExtractTargets(ctx, prompt)
		if err == nil || !IsRetryable(err) {
			break
		}
		l.log.Warn("retryable llm error", "attempt", attempt, "error", err)
		select {
		case <-time.After(l.backoff(attempt)):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return targets, err
}
