package tool

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"time"
)

// ExecTool runs a shell command in the workspace directory with a
// bounded timeout. There is no sandbox here — this is the single-tenant
// CLI entrypoint's trust boundary, same as running the command
// yourself in that directory.
type ExecTool struct {
	workspace  string
	restrict   bool
	timeout    time.Duration
	maxOutput  int
}

func NewExecTool(workspace string, restrict bool) *ExecTool {
	return &ExecTool{workspace: workspace, restrict: restrict, timeout: 60 * time.Second, maxOutput: 200_000}
}

func (t *ExecTool) Name() string        { return "exec" }
func (t *ExecTool) Description() string { return "Run a shell command in the workspace directory." }
func (t *ExecTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"command": map[string]interface{}{"type": "string"},
		},
		"required": []string{"command"},
	}
}

func (t *ExecTool) Execute(ctx context.Context, args map[string]interface{}) (*Result, error) {
	command, _ := args["command"].(string)
	if command == "" {
		return ErrorResult("exec: missing command"), nil
	}

	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "/bin/sh", "-c", command)
	cmd.Dir = t.workspace

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	output := out.String()
	if len(output) > t.maxOutput {
		output = output[:t.maxOutput] + "\n... (truncated)"
	}

	if err != nil {
		if runCtx.Err() != nil {
			return ErrorResult(fmt.Sprintf("exec: timed out after %s\n%s", t.timeout, output)), nil
		}
		return &Result{ForLLM: fmt.Sprintf("exit error: %v\n%s", err, output), IsError: true}, nil
	}
	return NewResult(output), nil
}
