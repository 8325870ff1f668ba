package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWebRequestTool_GetInfo(t *testing.T) {
	tool := NewWebRequestTool()

	info := tool.GetInfo()
	if info.Name != "web_request" {
		t.Errorf("Expected name 'web_request', got '%s'", info.Name)
	}
	if len(info.Parameters) != 4 {
		t.Errorf("Expected 4 parameters, got %d", len(info.Parameters))
	}
}

func TestWebRequestTool_Execute_GET(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "GET" {
			t.Errorf("Expected GET request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("Hello, World!"))
	}))
	defer server.Close()

	tool := NewWebRequestTool()

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"url": server.URL,
	})

	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Content != "Hello, World!" {
		t.Errorf("Expected 'Hello, World!', got '%s'", result.Content)
	}
	if result.Metadata["status_code"] != http.StatusOK {
		t.Errorf("Expected status code 200, got %v", result.Metadata["status_code"])
	}
}

func TestWebRequestTool_Execute_POST(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST request, got %s", r.Method)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte("Created"))
	}))
	defer server.Close()

	tool := NewWebRequestTool()

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"url":    server.URL,
		"method": "POST",
		"body":   `{"key":"value"}`,
		"headers": map[string]interface{}{
			"Content-Type": "application/json",
		},
	})

	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !result.Success {
		t.Error("Expected success=true")
	}
	if result.Content != "Created" {
		t.Errorf("Expected 'Created', got '%s'", result.Content)
	}
}

func TestWebRequestTool_MaxResponseSize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		data := make([]byte, defaultMaxResponseBytes+1)
		_, _ = w.Write(data)
	}))
	defer server.Close()

	tool := NewWebRequestTool()

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"url": server.URL,
	})

	if err == nil {
		t.Error("Expected error for response exceeding max size")
	}
	if result.Success {
		t.Error("Expected success=false for oversized response")
	}
}

func TestWebRequestTool_InvalidBodyType(t *testing.T) {
	tool := NewWebRequestTool()

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"url":  "http://example.com",
		"body": 42,
	})

	if err == nil {
		t.Error("Expected error for non-string/bytes body")
	}
	if result.Success {
		t.Error("Expected success=false for invalid body type")
	}
}
