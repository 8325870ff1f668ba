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
	"sync"
	"testing"
	"time"

	"github.com/nyxcore/orchestrator/pkg/errs"
	"github.com/nyxcore/orchestrator/pkg/httpclient"
)

type fakeProvider struct {
	calls     int
	responses []Response
	errs      []error
	caching   bool
}

func (p *fakeProvider) Name() string         { return "fake" }
func (p *fakeProvider) SupportsCaching() bool { return p.caching }

func (p *fakeProvider) Call(ctx context.Context, req CallRequest) (Response, error) {
	i := p.calls
	p.calls++
	if i < len(p.errs) && p.errs[i] != nil {
		return Response{}, p.errs[i]
	}
	if i < len(p.responses) {
		return p.responses[i], nil
	}
	return Response{}, errors.New("fakeProvider: no canned response")
}

type recordingSink struct {
	mu   sync.Mutex
	recs []InteractionRecord
}

func (s *recordingSink) LogInteraction(ctx context.Context, rec InteractionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs = append(s.recs, rec)
}

func (s *recordingSink) wait(t *testing.T, n int) []InteractionRecord {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		got := len(s.recs)
		recs := append([]InteractionRecord(nil), s.recs...)
		s.mu.Unlock()
		if got >= n {
			return recs
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("sink did not receive %d records in time", n)
	return nil
}

func TestClient_Call_SuccessRecordsCostAndLogsAsync(t *testing.T) {
	provider := &fakeProvider{
		responses: []Response{{Text: "hi", Usage: Usage{InputTokens: 10, OutputTokens: 5}}},
	}
	sink := &recordingSink{}
	stats := NewCacheStats()
	client := NewClient(provider, "claude-sonnet-4-20250514", 512, 0.5, 1024, 4, NewCircuitBreaker(5, time.Minute), stats, WithSink(sink))

	resp, err := client.Call(context.Background(), CallRequest{
		System: blocks("sys"), User: blocks("hello"),
	})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.Text != "hi" {
		t.Errorf("Text = %q, want %q", resp.Text, "hi")
	}
	if resp.CostUSD <= 0 {
		t.Error("expected positive cost")
	}

	recs := sink.wait(t, 1)
	if !recs[0].Success {
		t.Error("expected a successful interaction record")
	}

	if stats.Snapshot().TotalCalls != 1 {
		t.Error("cache stats should record one call")
	}
}

func TestClient_Call_RetriesRateLimitThenSucceeds(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{&httpclient.RetryableError{StatusCode: 429, Message: "slow down"}},
		responses: []Response{
			{}, // index 0 unused (error path consumes it)
			{Text: "ok", Usage: Usage{InputTokens: 1, OutputTokens: 1}},
		},
	}
	client := NewClient(provider, "gpt-4o", 256, 0.5, 1024, 4, NewCircuitBreaker(5, time.Minute), NewCacheStats(),
		WithRetryPolicy(3, time.Millisecond, 10*time.Millisecond))

	resp, err := client.Call(context.Background(), CallRequest{System: blocks("s"), User: blocks("u")})
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if resp.RetryCount != 1 {
		t.Errorf("RetryCount = %d, want 1", resp.RetryCount)
	}
}

func TestClient_Call_DoesNotRetrySemantic4xx(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{&httpclient.RetryableError{StatusCode: 400, Message: "bad request"}},
	}
	client := NewClient(provider, "gpt-4o", 256, 0.5, 1024, 4, NewCircuitBreaker(5, time.Minute), NewCacheStats(),
		WithRetryPolicy(3, time.Millisecond, 10*time.Millisecond))

	_, err := client.Call(context.Background(), CallRequest{System: blocks("s"), User: blocks("u")})
	if err == nil {
		t.Fatal("expected error for semantic 4xx")
	}
	if provider.calls != 1 {
		t.Errorf("expected exactly 1 call (no retry on semantic 4xx), got %d", provider.calls)
	}
	if !errs.Is(err, errs.KindProviderError) {
		t.Errorf("expected KindProviderError, got %v", err)
	}
}

func TestClient_Call_FailurePathFillsEstimatedTokens(t *testing.T) {
	provider := &fakeProvider{
		errs: []error{&httpclient.RetryableError{StatusCode: 400, Message: "bad request"}},
	}
	sink := &recordingSink{}
	client := NewClient(provider, "gpt-4o", 256, 0.5, 1024, 4, NewCircuitBreaker(5, time.Minute), NewCacheStats(), WithSink(sink))

	_, err := client.Call(context.Background(), CallRequest{System: blocks("some system text"), User: blocks("some user text")})
	if err == nil {
		t.Fatal("expected error")
	}

	recs := sink.wait(t, 1)
	if recs[0].Success {
		t.Error("expected a failed interaction record")
	}
	if recs[0].Usage.InputTokens == 0 {
		t.Error("failed calls should still estimate input tokens for the cost ledger")
	}
}

func TestClient_Call_CircuitOpenFailsFast(t *testing.T) {
	breaker := NewCircuitBreaker(1, time.Minute)
	breaker.RecordFailure()

	provider := &fakeProvider{}
	client := NewClient(provider, "gpt-4o", 256, 0.5, 1024, 4, breaker, NewCacheStats())

	_, err := client.Call(context.Background(), CallRequest{System: blocks("s"), User: blocks("u")})
	if !errs.Is(err, errs.KindCircuitOpen) {
		t.Errorf("expected KindCircuitOpen, got %v", err)
	}
	if provider.calls != 0 {
		t.Error("provider should never be called while the breaker is open")
	}
}
