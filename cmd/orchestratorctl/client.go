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

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"
)

// apiClient is a minimal JSON client for pkg/apiserver's envelope: every
// non-2xx response is decoded as an errorEnvelope and returned as a Go
// error, so callers only ever handle the success shape.
type apiClient struct {
	baseURL string
	token   string
	http    *http.Client
}

func newAPIClient(cli *CLI) *apiClient {
	return &apiClient{
		baseURL: cli.Server,
		token:   cli.Token,
		http:    &http.Client{Timeout: 2 * time.Minute},
	}
}

type errorEnvelope struct {
	Error     bool           `json:"error"`
	ErrorCode string         `json:"error_code"`
	Detail    string         `json:"detail"`
	Metadata  map[string]any `json:"metadata"`
	Timestamp time.Time      `json:"timestamp"`
	Path      string         `json:"path"`
}

func (e *errorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.ErrorCode, e.Detail)
}

func (c *apiClient) do(method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reqBody = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.baseURL+"/api/v1"+path, reqBody)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var envelope errorEnvelope
		if jsonErr := json.Unmarshal(raw, &envelope); jsonErr == nil && envelope.ErrorCode != "" {
			return &envelope
		}
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, string(raw))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) get(path string, out any) error  { return c.do(http.MethodGet, path, nil, out) }
func (c *apiClient) post(path string, body, out any) error {
	return c.do(http.MethodPost, path, body, out)
}
func (c *apiClient) put(path string, body, out any) error {
	return c.do(http.MethodPut, path, body, out)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
