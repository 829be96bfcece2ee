// Package llm implements the LLM Adapter: a stateless,
// retrying wrapper around a provider call that translates provider-shaped
// responses into the engine's uniform {text, usage} contract and classifies
// provider failures into the closed error taxonomy.
package llm

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dbhealthcheck/engine/internal/errs"
	"github.com/dbhealthcheck/engine/internal/resilience"
)

// Request is exactly the record the engine hands the provider adapter.
type Request struct {
	Endpoint        string
	Model           string
	Auth            string
	MaxOutputTokens int
	Temperature     float64
	Prompt          string
}

// Response is the uniform shape every provider call normalizes to.
type Response struct {
	Text                 string
	InputTokensReported  int
	OutputTokensReported int
	WallMS               int64
}

// Completer is the narrow boundary the Adapter calls through. The
// concrete AnthropicCompleter below is the production implementation;
// tests substitute a fake.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

// Adapter drives retries and error classification around a Completer.
// It holds no state across calls.
type Adapter struct {
	Completer Completer
	Retry     resilience.RetryConfig
}

// New builds an Adapter with the standard retry schedule (1s, 3s, 9s, max
// 3 attempts).
func New(completer Completer) *Adapter {
	return &Adapter{Completer: completer, Retry: resilience.LLMRetryConfig()}
}

// Complete sends req and returns a classified Response or a classified
// *errs.Error. Only {rate_limit, network, timeout, provider_error} are
// retried; {auth, bad_request, quota} fail immediately.
func (a *Adapter) Complete(ctx context.Context, req Request) (Response, error) {
	start := time.Now()
	var resp Response
	var classified *errs.Error

	err := resilience.Retry(ctx, a.Retry, func(attempt int) error {
		r, err := a.Completer.Complete(ctx, req)
		if err == nil {
			resp = r
			return nil
		}
		classified = Classify(err)
		if !retryable(classified.Kind) {
			return nil // stop retrying; surfaced below via classified
		}
		return classified
	})

	resp.WallMS = time.Since(start).Milliseconds()

	if classified != nil && !retryable(classified.Kind) {
		return Response{}, classified
	}
	if err != nil {
		if classified != nil {
			return Response{}, classified
		}
		return Response{}, errs.Wrap(errs.LLMNetwork, "llm call failed", err)
	}
	return resp, nil
}

func retryable(kind errs.Kind) bool {
	switch kind {
	case errs.LLMRateLimit, errs.LLMNetwork, errs.LLMTimeout, errs.LLMProvider:
		return true
	}
	return false
}

// Classify maps a raw provider error into the closed LLM error taxonomy.
// Unrecognized errors default to llm_provider.
func Classify(err error) *errs.Error {
	if err == nil {
		return nil
	}
	if e, ok := errs.As(err); ok {
		return e
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.LLMTimeout, "llm call timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.LLMTimeout, "llm call canceled", err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "unauthorized") || strings.Contains(msg, "invalid api key") || strings.Contains(msg, "authentication"):
		return errs.Wrap(errs.LLMAuth, "llm authentication failed", err)
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "429"):
		return errs.Wrap(errs.LLMRateLimit, "llm rate limited", err)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		return errs.Wrap(errs.LLMTimeout, "llm call timed out", err)
	case strings.Contains(msg, "quota") || strings.Contains(msg, "insufficient_quota"):
		return errs.Wrap(errs.LLMQuota, "llm quota exceeded", err)
	case strings.Contains(msg, "bad request") || strings.Contains(msg, "invalid_request") || strings.Contains(msg, "400"):
		return errs.Wrap(errs.LLMBadRequest, "llm rejected the request", err)
	case strings.Contains(msg, "network") || strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host"):
		return errs.Wrap(errs.LLMNetwork, "llm network error", err)
	default:
		return errs.Wrap(errs.LLMProvider, "llm provider error", err)
	}
}
