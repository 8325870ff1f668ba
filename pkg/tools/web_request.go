package tools

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/nyxcore/orchestrator/pkg/httpclient"
)

const (
	defaultWebRequestTimeout = 30 * time.Second
	defaultMaxRequestBytes   = 1 << 20  // 1MB
	defaultMaxResponseBytes  = 10 << 20 // 10MB
)

// WebRequestTool issues outbound HTTP requests on an agent's behalf. It has
// no write_enabled gate: an outbound GET/POST carries far less local blast
// radius than a shell command or file write, and worker agents researching
// or validating external state need it unconditionally.
type WebRequestTool struct {
	userAgent  string
	httpClient *httpclient.Client
}

// NewWebRequestTool creates a web_request tool with retrying transport.
func NewWebRequestTool() *WebRequestTool {
	hc := httpclient.New(
		httpclient.WithHTTPClient(&http.Client{Timeout: defaultWebRequestTimeout}),
		httpclient.WithMaxRetries(2),
	)
	return &WebRequestTool{userAgent: "nyx-orchestrator/1.0", httpClient: hc}
}

func (t *WebRequestTool) Execute(ctx context.Context, args map[string]interface{}) (ToolResult, error) {
	start := time.Now()

	urlStr, ok := args["url"].(string)
	if !ok || urlStr == "" {
		return t.errorResult("url parameter is required", start), fmt.Errorf("url parameter is required")
	}

	if _, err := url.Parse(urlStr); err != nil {
		return t.errorResult(fmt.Sprintf("invalid URL: %v", err), start), err
	}

	method := "GET"
	if m, ok := args["method"].(string); ok && m != "" {
		method = strings.ToUpper(m)
	}

	headers := make(map[string]string)
	if h, ok := args["headers"].(map[string]interface{}); ok {
		for k, v := range h {
			if strVal, ok := v.(string); ok {
				headers[k] = strVal
			}
		}
	}

	var body io.Reader
	if bodyData, ok := args["body"]; ok {
		var bodyBytes []byte
		switch v := bodyData.(type) {
		case string:
			bodyBytes = []byte(v)
		case []byte:
			bodyBytes = v
		default:
			return t.errorResult("body must be string or bytes", start), fmt.Errorf("invalid body type")
		}
		if len(bodyBytes) > defaultMaxRequestBytes {
			return t.errorResult(fmt.Sprintf("request body too large: %d bytes (max: %d)", len(bodyBytes), defaultMaxRequestBytes), start),
				fmt.Errorf("request body exceeds max size")
		}
		body = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return t.errorResult(fmt.Sprintf("failed to create request: %v", err), start), err
	}
	req.Header.Set("User-Agent", t.userAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return t.errorResult(fmt.Sprintf("request failed: %v", err), start), err
	}
	defer resp.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(resp.Body, defaultMaxResponseBytes+1))
	if err != nil {
		return t.errorResult(fmt.Sprintf("failed to read response: %v", err), start), err
	}
	if len(responseBody) > defaultMaxResponseBytes {
		return t.errorResult(fmt.Sprintf("response too large: exceeds %d bytes", defaultMaxResponseBytes), start),
			fmt.Errorf("response exceeds max size")
	}

	respHeaders := make(map[string]string)
	for k, v := range resp.Header {
		if len(v) > 0 {
			respHeaders[k] = v[0]
		}
	}

	return ToolResult{
		Success:       resp.StatusCode >= 200 && resp.StatusCode < 300,
		Content:       string(responseBody),
		ToolName:      "web_request",
		ExecutionTime: time.Since(start),
		Metadata: map[string]interface{}{
			"url":          urlStr,
			"method":       method,
			"status_code":  resp.StatusCode,
			"status":       resp.Status,
			"headers":      respHeaders,
			"content_type": resp.Header.Get("Content-Type"),
			"size":         len(responseBody),
		},
	}, nil
}

func (t *WebRequestTool) errorResult(message string, start time.Time) ToolResult {
	return ToolResult{Success: false, Error: message, ToolName: "web_request", ExecutionTime: time.Since(start)}
}

func (t *WebRequestTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        "web_request",
		Description: "Make HTTP requests to external APIs and web services",
		Parameters: []ToolParameter{
			{Name: "url", Type: "string", Description: "The URL to request", Required: true},
			{Name: "method", Type: "string", Description: "HTTP method (GET, POST, PUT, DELETE, etc.). Default: GET", Required: false, Enum: []string{"GET", "POST", "PUT", "DELETE", "PATCH", "HEAD", "OPTIONS"}},
			{Name: "headers", Type: "object", Description: "HTTP headers as key-value pairs", Required: false},
			{Name: "body", Type: "string", Description: "Request body (for POST, PUT, PATCH)", Required: false},
		},
		ServerURL: "local",
	}
}

func (t *WebRequestTool) GetName() string { return "web_request" }

func (t *WebRequestTool) GetDescription() string {
	return "Make HTTP requests to external APIs and web services. Supports all HTTP methods, custom headers, and request bodies."
}
