package tool

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// resolveWorkspacePath joins rel onto workspace and rejects escapes via
// ".." when restrict is set, matching the sandboxing a single-tenant
// CLI run needs without a container boundary.
func resolveWorkspacePath(workspace, rel string, restrict bool) (string, error) {
	if filepath.IsAbs(rel) {
		if restrict {
			return "", fmt.Errorf("path %q must be relative to the workspace", rel)
		}
		return rel, nil
	}
	abs := filepath.Join(workspace, rel)
	if restrict && !strings.HasPrefix(abs, filepath.Clean(workspace)+string(filepath.Separator)) && abs != filepath.Clean(workspace) {
		return "", fmt.Errorf("path %q escapes workspace", rel)
	}
	return abs, nil
}

// ReadFileTool reads a file's contents from the agent's workspace.
type ReadFileTool struct {
	workspace string
	restrict  bool
}

func NewReadFileTool(workspace string, restrict bool) *ReadFileTool {
	return &ReadFileTool{workspace: workspace, restrict: restrict}
}

func (t *ReadFileTool) Name() string        { return "read_file" }
func (t *ReadFileTool) Description() string { return "Read the contents of a text file." }
func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "file path, relative to the workspace"},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	rel, _ := args["path"].(string)
	abs, err := resolveWorkspacePath(t.workspace, rel, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return ErrorResult(fmt.Sprintf("read_file: %v", err)), nil
	}
	return NewResult(string(data)), nil
}

// WriteFileTool writes (creating or overwriting) a file in the workspace.
type WriteFileTool struct {
	workspace string
	restrict  bool
}

func NewWriteFileTool(workspace string, restrict bool) *WriteFileTool {
	return &WriteFileTool{workspace: workspace, restrict: restrict}
}

func (t *WriteFileTool) Name() string        { return "write_file" }
func (t *WriteFileTool) Description() string { return "Write content to a file, creating it or any missing parent directories." }
func (t *WriteFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path":    map[string]interface{}{"type": "string"},
			"content": map[string]interface{}{"type": "string"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *WriteFileTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	rel, _ := args["path"].(string)
	content, _ := args["content"].(string)
	abs, err := resolveWorkspacePath(t.workspace, rel, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return ErrorResult(fmt.Sprintf("write_file: mkdir: %v", err)), nil
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return ErrorResult(fmt.Sprintf("write_file: %v", err)), nil
	}
	return NewResult(fmt.Sprintf("wrote %d bytes to %s", len(content), rel)), nil
}

// ListFilesTool lists directory entries under the workspace.
type ListFilesTool struct {
	workspace string
	restrict  bool
}

func NewListFilesTool(workspace string, restrict bool) *ListFilesTool {
	return &ListFilesTool{workspace: workspace, restrict: restrict}
}

func (t *ListFilesTool) Name() string        { return "list_files" }
func (t *ListFilesTool) Description() string { return "List files and directories at a path." }
func (t *ListFilesTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{"type": "string", "description": "directory path, relative to the workspace; defaults to \".\""},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	rel, _ := args["path"].(string)
	if rel == "" {
		rel = "."
	}
	abs, err := resolveWorkspacePath(t.workspace, rel, t.restrict)
	if err != nil {
		return ErrorResult(err.Error()), nil
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return ErrorResult(fmt.Sprintf("list_files: %v", err)), nil
	}
	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
		} else {
			fmt.Fprintf(&b, "%s\n", e.Name())
		}
	}
	return NewResult(b.String()), nil
}
