package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbhealthcheck/engine/internal/errs"
	"github.com/dbhealthcheck/engine/internal/resilience"
)

func fastRetry() resilience.RetryConfig {
	return resilience.RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond, Multiplier: 2}
}

type fakeCompleter struct {
	calls     int
	responses []Response
	errs      []error
}

func (f *fakeCompleter) Complete(ctx context.Context, req Request) (Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return Response{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return Response{}, errors.New("fakeCompleter: no more scripted calls")
}

func TestComplete_SucceedsOnFirstTry(t *testing.T) {
	completer := &fakeCompleter{responses: []Response{{Text: "ok"}}}
	a := &Adapter{Completer: completer, Retry: fastRetry()}

	resp, err := a.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text)
	assert.Equal(t, 1, completer.calls)
}

func TestComplete_RetriesOnRateLimitThenSucceeds(t *testing.T) {
	completer := &fakeCompleter{
		errs:      []error{errors.New("429 rate limit exceeded")},
		responses: []Response{{}, {Text: "second try worked"}},
	}
	a := &Adapter{Completer: completer, Retry: fastRetry()}

	resp, err := a.Complete(context.Background(), Request{Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "second try worked", resp.Text)
	assert.Equal(t, 2, completer.calls)
}

func TestComplete_AuthErrorFailsImmediatelyWithoutRetrying(t *testing.T) {
	completer := &fakeCompleter{errs: []error{errors.New("401 unauthorized: invalid api key")}}
	a := &Adapter{Completer: completer, Retry: fastRetry()}

	_, err := a.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	classified, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.LLMAuth, classified.Kind)
	assert.Equal(t, 1, completer.calls)
}

func TestComplete_ExhaustsRetriesAndSurfacesClassifiedError(t *testing.T) {
	completer := &fakeCompleter{errs: []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
		errors.New("connection refused"),
	}}
	a := &Adapter{Completer: completer, Retry: fastRetry()}

	_, err := a.Complete(context.Background(), Request{Prompt: "hi"})
	require.Error(t, err)
	classified, ok := errs.As(err)
	require.True(t, ok)
	assert.Equal(t, errs.LLMNetwork, classified.Kind)
	assert.Equal(t, 3, completer.calls)
}

func TestClassify_MapsProviderMessagesToTaxonomy(t *testing.T) {
	cases := []struct {
		msg  string
		kind errs.Kind
	}{
		{"401 Unauthorized", errs.LLMAuth},
		{"rate limit hit, slow down", errs.LLMRateLimit},
		{"context deadline exceeded while waiting", errs.LLMTimeout},
		{"insufficient_quota for this account", errs.LLMQuota},
		{"400 bad request: invalid_request", errs.LLMBadRequest},
		{"dial tcp: connection refused", errs.LLMNetwork},
		{"something the provider invented", errs.LLMProvider},
	}
	for _, c := range cases {
		got := Classify(errors.New(c.msg))
		assert.Equal(t, c.kind, got.Kind, "message %q", c.msg)
	}
}

func TestClassify_ContextDeadlineExceededIsTimeout(t *testing.T) {
	got := Classify(context.DeadlineExceeded)
	assert.Equal(t, errs.LLMTimeout, got.Kind)
}

func TestClassify_AlreadyClassifiedErrorPassesThroughUnchanged(t *testing.T) {
	original := errs.New(errs.LLMQuota, "quota used up")
	got := Classify(original)
	assert.Same(t, original, got)
}
