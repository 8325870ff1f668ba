// Copyright 2026 The Nyx Orchestrator Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package llm

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/httpclient"
	"github.com/nyxcore/orchestrator/pkg/observability"
	"github.com/nyxcore/orchestrator/pkg/tokens"
)

// Client is the cached call path (§4.1). One Client wraps one Provider; its
// CircuitBreaker and CacheStats are expected to be process-global (built
// once and shared by every agent that calls through this client).
type Client struct {
	provider Provider
	policy   *BreakpointPolicy
	breaker  *CircuitBreaker
	stats    *CacheStats
	sink     LogSink

	defaultModel       string
	defaultMaxTokens   int
	defaultTemperature float64

	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// Option configures a Client.
type Option func(*Client)

func WithSink(sink LogSink) Option {
	return func(c *Client) { c.sink = sink }
}

func WithRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.baseDelay = baseDelay
		c.maxDelay = maxDelay
	}
}

// NewClient builds a Client around provider, sharing breaker and stats
// across every Client constructed against the same pair (the runtime builds
// one breaker and one CacheStats at startup and passes them to every model
// client it wires).
func NewClient(provider Provider, defaultModel string, maxTokens int, temperature float64, minCacheableTokens, maxBreakpoints int, breaker *CircuitBreaker, stats *CacheStats, opts ...Option) *Client {
	var counter *tokens.Counter
	if c, err := tokens.NewCounter(defaultModel); err == nil {
		counter = c
	}

	c := &Client{
		provider:           provider,
		policy:             NewBreakpointPolicy(minCacheableTokens, maxBreakpoints, counter),
		breaker:            breaker,
		stats:              stats,
		sink:               NopLogSink{},
		defaultModel:       defaultModel,
		defaultMaxTokens:   maxTokens,
		defaultTemperature: temperature,
		maxRetries:         3,
		baseDelay:          1 * time.Second,
		maxDelay:           60 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Call issues the cached call path: annotate cache breakpoints (if the
// provider supports them and the caller asked for caching), run the retry
// loop under the circuit breaker, compute cost, and asynchronously log the
// interaction regardless of outcome.
func (c *Client) Call(ctx context.Context, req CallRequest) (Response, error) {
	if req.Model == "" {
		req.Model = c.defaultModel
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = c.defaultMaxTokens
	}
	if req.Temperature == 0 {
		req.Temperature = c.defaultTemperature
	}

	if req.UseCache && c.provider.SupportsCaching() {
		req.System, req.User = c.policy.Annotate(req.System, req.User, req.SharedContext)
	}

	start := time.Now()
	resp, retryCount, callErr := c.callWithRetry(ctx, req)
	duration := time.Since(start)

	estimatedTokens := tokens.Estimate(flattenBlocks(req.System)) + tokens.Estimate(flattenBlocks(req.User))

	rec := InteractionRecord{
		ThoughtTreeID: req.ThoughtTreeID,
		AgentID:       req.AgentID,
		Model:         req.Model,
		Provider:      c.provider.Name(),
		RetryCount:    retryCount,
		Duration:      duration,
	}

	recorder := observability.GetGlobalRecorder()

	if callErr != nil {
		// Estimated token counts are still filled in for failed calls so
		// cost ledgers remain approximately consistent (§4.1).
		rec.Success = false
		rec.Usage = Usage{InputTokens: estimatedTokens}
		rec.CostUSD, rec.CostWithoutCacheUSD = computeCost(req.Model, rec.Usage)
		rec.ErrorKind = errorKind(callErr)
		c.logAsync(rec)
		recorder.RecordLLMCall(req.Model, c.provider.Name(), duration)
		recorder.RecordLLMError(req.Model, c.provider.Name(), rec.ErrorKind)
		return Response{}, callErr
	}

	resp.RetryCount = retryCount
	resp.Duration = duration
	resp.CostUSD, resp.CostWithoutCacheUSD = computeCost(req.Model, resp.Usage)
	recorder.RecordLLMCall(req.Model, c.provider.Name(), duration)
	recorder.RecordLLMTokens(req.Model, c.provider.Name(), resp.Usage.InputTokens, resp.Usage.OutputTokens)

	if c.stats != nil {
		c.stats.Record(resp.Usage, resp.CostUSD, resp.CostWithoutCacheUSD)
	}

	rec.Success = true
	rec.Usage = resp.Usage
	rec.CostUSD = resp.CostUSD
	rec.CostWithoutCacheUSD = resp.CostWithoutCacheUSD
	c.logAsync(rec)

	return resp, nil
}

// callWithRetry applies the circuit breaker and the retry/backoff policy
// (§4.1: up to N retries, base 1s factor 2 cap 60s, retry only on rate-limit
// or transport/timeout signals, never on a semantic 4xx).
func (c *Client) callWithRetry(ctx context.Context, req CallRequest) (Response, int, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return Response{}, 0, errs.New(errs.KindCircuitOpen, "circuit breaker open")
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		resp, err := c.provider.Call(ctx, req)
		if err == nil {
			if c.breaker != nil {
				c.breaker.RecordSuccess()
			}
			return resp, attempt, nil
		}

		lastErr = err
		kind, retryable := classify(err)
		if !retryable {
			if c.breaker != nil {
				c.breaker.RecordFailure()
			}
			return Response{}, attempt, errs.Wrap(kind, "llm call failed", err)
		}

		if attempt >= c.maxRetries {
			break
		}

		delay := backoffDelay(c.baseDelay, c.maxDelay, attempt)
		select {
		case <-ctx.Done():
			if c.breaker != nil {
				c.breaker.RecordFailure()
			}
			return Response{}, attempt, errs.Wrap(errs.KindTimeout, "context cancelled during retry backoff", ctx.Err())
		case <-time.After(delay):
		}
	}

	if c.breaker != nil {
		c.breaker.RecordFailure()
	}
	kind, _ := classify(lastErr)
	return Response{}, c.maxRetries, errs.Wrap(kind, "llm call exhausted retries", lastErr)
}

func backoffDelay(base, max time.Duration, attempt int) time.Duration {
	delay := time.Duration(math.Pow(2, float64(attempt))) * base
	jitter := time.Duration(rand.Float64() * float64(delay) * 0.1)
	d := delay + jitter
	if d > max {
		d = max
	}
	return d
}

// classify maps a provider/transport error to an errs.Kind and reports
// whether the retry loop should try again.
func classify(err error) (errs.Kind, bool) {
	if err == nil {
		return "", false
	}

	var retryable *httpclient.RetryableError
	if errors.As(err, &retryable) {
		switch {
		case retryable.StatusCode == http.StatusTooManyRequests:
			return errs.KindRateLimited, true
		case retryable.StatusCode == http.StatusServiceUnavailable,
			retryable.StatusCode == http.StatusRequestTimeout,
			retryable.StatusCode == http.StatusInternalServerError,
			retryable.StatusCode == http.StatusBadGateway,
			retryable.StatusCode == http.StatusGatewayTimeout:
			return errs.KindConnection, true
		case retryable.StatusCode == 0:
			return errs.KindConnection, true
		default:
			// Any other 4xx is a semantic model error: never retried.
			return errs.KindProviderError, false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return errs.KindTimeout, true
	}

	// Unclassified transport errors (DNS failures, connection refused) are
	// treated as connection errors and retried.
	return errs.KindConnection, true
}

func errorKind(err error) string {
	var e *errs.Error
	if errors.As(err, &e) {
		return string(e.Kind)
	}
	return string(errs.KindProviderError)
}

func (c *Client) logAsync(rec InteractionRecord) {
	sink := c.sink
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("llm interaction sink panicked", "panic", r)
			}
		}()
		sink.LogInteraction(context.Background(), rec)
	}()
}
