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
	"strings"
	"time"

	"github.com/nyxcore/orchestrator/pkg/httpclient"
)

// OpenAIProvider speaks the Chat Completions wire contract. OpenAI has no
// prompt-cache-control annotation in this API, so SupportsCaching is false
// and the client skips breakpoint annotation for this provider entirely.
type OpenAIProvider struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
}

// NewOpenAIProvider builds a provider sharing the same retrying transport
// shape as Anthropic's, parameterized with OpenAI's own header parser.
func NewOpenAIProvider(apiKey, baseURL string) *OpenAIProvider {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIProvider{
		apiKey:  apiKey,
		baseURL: baseURL,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 120 * time.Second}),
			httpclient.WithHeaderParser(httpclient.ParseOpenAIHeaders),
			httpclient.WithMaxRetries(0),
		),
	}
}

func (p *OpenAIProvider) Name() string         { return "openai" }
func (p *OpenAIProvider) SupportsCaching() bool { return false }

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float64         `json:"temperature,omitempty"`
}

type openAIUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

type openAIResponse struct {
	Choices []struct {
		Message openAIMessage `json:"message"`
	} `json:"choices"`
	Usage openAIUsage `json:"usage"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

func flattenBlocks(blocks []ContentBlock) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n\n")
}

func (p *OpenAIProvider) Call(ctx context.Context, req CallRequest) (Response, error) {
	messages := []openAIMessage{}
	if sys := flattenBlocks(req.System); sys != "" {
		messages = append(messages, openAIMessage{Role: "system", Content: sys})
	}
	messages = append(messages, openAIMessage{Role: "user", Content: flattenBlocks(req.User)})

	body := openAIRequest{
		Model:       req.Model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return Response{}, fmt.Errorf("marshal openai request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("build openai request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.apiKey)

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
		return Response{}, fmt.Errorf("read openai response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Response{}, &httpclient.RetryableError{StatusCode: resp.StatusCode, Message: string(raw)}
	}

	var parsed openAIResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return Response{}, fmt.Errorf("decode openai response: %w", err)
	}
	if parsed.Error != nil {
		return Response{}, fmt.Errorf("openai API error (%s): %s", parsed.Error.Type, parsed.Error.Message)
	}

	var text string
	if len(parsed.Choices) > 0 {
		text = parsed.Choices[0].Message.Content
	}

	return Response{
		Text:  text,
		Model: req.Model,
		Usage: Usage{
			InputTokens:  parsed.Usage.PromptTokens,
			OutputTokens: parsed.Usage.CompletionTokens,
		},
	}, nil
}
