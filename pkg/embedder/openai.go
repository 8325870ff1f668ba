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

package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/nyxcore/orchestrator/pkg/config"
)

// OpenAIEmbedder implements Embedder against the OpenAI embeddings API. It
// backs the memory agent's vector index: entries are embedded on `store`
// and queries are embedded on `search`.
type OpenAIEmbedder struct {
	client    *http.Client
	apiKey    string
	baseURL   string
	model     string
	dimension int
	batchSize int
}

type openAIEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

type openAIErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// dimensionForModel maps known OpenAI embedding models to their vector size.
func dimensionForModel(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default: // text-embedding-3-small, text-embedding-ada-002
		return 1536
	}
}

// NewOpenAIEmbedder builds an embedder from configuration.
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key is required for the OpenAI embedder")
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAIEmbedder{
		client:    &http.Client{Timeout: 30 * time.Second},
		apiKey:    cfg.APIKey,
		baseURL:   "https://api.openai.com/v1",
		model:     model,
		dimension: dimensionForModel(model),
		batchSize: 100,
	}, nil
}

// Embed implements Embedder.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embeddings: empty response")
	}
	return vectors[0], nil
}

// EmbedBatch implements Embedder.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))
		batch, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		results = append(results, batch...)
	}
	return results, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody, err := json.Marshal(openAIEmbedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send embed request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp openAIErrorResponse
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("openai embeddings error (%s): %s", errResp.Error.Type, errResp.Error.Message)
		}
		return nil, fmt.Errorf("openai embeddings returned status %d", resp.StatusCode)
	}

	var parsed openAIEmbedResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	out := make([][]float32, len(texts))
	for _, item := range parsed.Data {
		if item.Index < len(out) {
			out[item.Index] = item.Embedding
		}
	}
	return out, nil
}

// Dimension implements Embedder.
func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

// Model implements Embedder.
func (e *OpenAIEmbedder) Model() string { return e.model }

// Close implements Embedder.
func (e *OpenAIEmbedder) Close() error { return nil }

var _ Embedder = (*OpenAIEmbedder)(nil)
