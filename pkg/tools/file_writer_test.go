package tools

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestFileWriterTool_GetInfo(t *testing.T) {
	tool := NewFileWriterTool(t.TempDir())
	info := tool.GetInfo()

	if info.Name != "write_file" {
		t.Errorf("GetInfo().Name = %v, want 'write_file'", info.Name)
	}
	if info.Description == "" {
		t.Error("Expected non-empty description")
	}

	hasPathParam, hasContentParam := false, false
	for _, param := range info.Parameters {
		if param.Name == "path" && param.Required {
			hasPathParam = true
		}
		if param.Name == "content" && param.Required {
			hasContentParam = true
		}
	}
	if !hasPathParam {
		t.Error("Expected 'path' parameter to be required")
	}
	if !hasContentParam {
		t.Error("Expected 'content' parameter to be required")
	}
}

func TestFileWriterTool_ValidatePath(t *testing.T) {
	tool := NewFileWriterTool(t.TempDir())

	tests := []struct {
		name    string
		path    string
		wantErr bool
		errMsg  string
	}{
		{name: "valid relative path", path: "test.txt"},
		{name: "valid nested path", path: "subdir/test.txt"},
		{name: "absolute path not allowed", path: "/absolute/path.txt", wantErr: true, errMsg: "absolute paths not allowed"},
		{name: "directory traversal not allowed", path: "../outside.txt", wantErr: true, errMsg: "directory traversal not allowed"},
		{name: "double directory traversal", path: "subdir/../../outside.txt", wantErr: true, errMsg: "directory traversal not allowed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tool.validatePath(tt.path)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected validation error, got nil")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errMsg, err)
				}
			} else if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestFileWriterTool_Execute_ValidationOnly(t *testing.T) {
	tool := NewFileWriterTool(t.TempDir())

	tests := []struct {
		name    string
		args    map[string]interface{}
		wantErr bool
		errMsg  string
	}{
		{
			name:    "missing path parameter",
			args:    map[string]interface{}{"content": "test content"},
			wantErr: true,
			errMsg:  "path parameter is required",
		},
		{
			name:    "missing content parameter",
			args:    map[string]interface{}{"path": "test.txt"},
			wantErr: true,
			errMsg:  "content parameter is required",
		},
		{
			name:    "content too large",
			args:    map[string]interface{}{"path": "test.txt", "content": strings.Repeat("a", defaultMaxWriteBytes+1)},
			wantErr: true,
			errMsg:  "content exceeds max file size",
		},
		{
			name: "valid parameters",
			args: map[string]interface{}{"path": "test.txt", "content": "test content"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tool.Execute(context.Background(), tt.args)
			if tt.wantErr {
				if err == nil {
					t.Error("Expected validation error, got nil")
				} else if tt.errMsg != "" && !strings.Contains(err.Error(), tt.errMsg) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errMsg, err)
				}
			} else if err != nil {
				t.Errorf("Expected no error, got: %v", err)
			}
		})
	}
}

func TestFileWriterTool_ErrorResult(t *testing.T) {
	tool := NewFileWriterTool(t.TempDir())
	result := tool.errorResult("test error message", time.Now())

	if result.Success {
		t.Error("Expected error result to have Success=false")
	}
	if result.Error != "test error message" {
		t.Errorf("Expected error message 'test error message', got: %s", result.Error)
	}
	if result.ToolName != "write_file" {
		t.Errorf("Expected tool name 'write_file', got: %s", result.ToolName)
	}
}

func TestFileWriterTool_CreateOverwriteAndBackup(t *testing.T) {
	tempDir := t.TempDir()
	tool := NewFileWriterTool(tempDir)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "test.txt",
		"content": "Hello, World!",
		"backup":  false,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || !strings.Contains(result.Content, "created") {
		t.Errorf("expected created success result, got %+v", result)
	}

	result, err = tool.Execute(context.Background(), map[string]interface{}{
		"path":    "test.txt",
		"content": "Updated content",
		"backup":  true,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success || !strings.Contains(result.Content, "overwritten") {
		t.Errorf("expected overwritten success result, got %+v", result)
	}

	content, err := os.ReadFile(filepath.Join(tempDir, "test.txt"))
	if err != nil {
		t.Fatalf("failed to read file: %v", err)
	}
	if string(content) != "Updated content" {
		t.Errorf("expected 'Updated content', got %q", string(content))
	}
	if _, err := os.Stat(filepath.Join(tempDir, "test.txt.bak")); err != nil {
		t.Errorf("expected backup file to exist: %v", err)
	}
}

func TestFileWriterTool_CreatesNestedDirectories(t *testing.T) {
	tempDir := t.TempDir()
	tool := NewFileWriterTool(tempDir)

	result, err := tool.Execute(context.Background(), map[string]interface{}{
		"path":    "subdir/nested.txt",
		"content": "Nested content",
		"backup":  false,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !result.Success {
		t.Errorf("expected success, got %+v", result)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "subdir", "nested.txt")); err != nil {
		t.Errorf("expected nested file to be created: %v", err)
	}
}
