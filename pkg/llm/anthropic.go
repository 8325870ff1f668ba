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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/httpclient"
)

// AnthropicProvider speaks the Claude Messages API wire contract, including
// the ephemeral cache_control breakpoint annotations (§6: "the core
// consumes exactly" input_tokens/output_tokens/cache_creation_input_tokens/
// cache_read_input_tokens).
type AnthropicProvider struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

// NewAnthropicProvider builds a provider using the shared retrying HTTP
// client, with Anthropic's own rate-limit header parser wired in so 429s
// carry a precise retry delay.
func NewAnthropicProvider(apiKey, baseURL string) *AnthropicProvider {
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseAnthropicHeaders),
			httpclient.WithMaxRetries(0), // Client owns the retry loop; this transport makes one attempt.
		),
	}
}

func (p *AnthropicProvider) Name() string         { return "anthropic" }
func (p *AnthropicProvider) SupportsCaching() bool { return true }

type anthropicContentBlock struct {
	Type         string              `json:"type"`
	Text         string              `json:"text"`
	CacheControl *anthropicCacheMark `json:"cache_control,omitempty"`
}

type anthropicCacheMark struct {
	Type string `json:"type"`
}

type anthropicMessage struct {
	Role    string                  `json:"role"`
	Content []anthropicContentBlock `json:"content"`
}

type anthropicRequest struct {
	Model       string                  `json:"model"`
	MaxTokens   int                     `json:"max_tokens"`
	Temperature float64                 `json:"temperature,omitempty"`
	System      []anthropicContentBlock `json:"system,omitempty"`
	Messages    []anthropicMessage      `json:"messages"`
}

type anthropicUsage struct {
	InputTokens              int `json:"input_tokens"`
	OutputTokens             int `json:"output_tokens"`
	CacheCreationInputTokens int `json:"cache_creation_input_tokens"`
	CacheReadInputTokens     int `json:"cache_read_input_tokens"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Usage   anthropicUsage          `json:"usage"`
	Error   *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func toAnthropicBlocks(blocks []ContentBlock) []anthropicContentBlock {
	out := make([]anthropicContentBlock, len(blocks))
	for i, b := range blocks {
		out[i] = anthropicContentBlock{Type: "text", Text: b.Text}
		if b.CacheControl {
			out[i].CacheControl = &anthropicCacheMark{Type: "ephemeral"}
		}
	}
	return out
}

func (p *AnthropicProvider) Call(ctx context.Context, req CallRequest) (Response, error) {
	body := anthropicRequest{
		Model:       req.Model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		System:      toAnthropicBlocks(req.System),
		Messages: []anthropicMessage{
			{Role: "user", Content: toAnthropicBlocks(req.User)},
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	// For a non-2xx reply the transport returns the response alongside an
	// error; fall through so the status is reported as a RetryableError
	// carrying the status code, which classify uses to refuse 4xx retries.
	resp, err := p.http.Do(httpReq)
	if err != nil && resp == nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read anthropic response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &httpclient.RetryableError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var parsed anthropicResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode anthropic response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("anthropic API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	var text string
	for _, block := range parsed.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}

	return Response{
		Text:  text,
		Model: req.Model,
		Usage: Usage{
			InputTokens:              parsed.Usage.InputTokens,
			OutputTokens:             parsed.Usage.OutputTokens,
			CacheCreationInputTokens: parsed.Usage.CacheCreationInputTokens,
			CacheReadInputTokens:     parsed.Usage.CacheReadInputTokens,
		},
	}, nil
}
