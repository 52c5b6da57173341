package turn

import (
	"context"

	"github.com/nextlevelbuilder/agentrt/internal/permission"
)

// ApprovalRequest is one pending tool call the inspection pipeline
// could not resolve to Allow or Deny on its own.
type ApprovalRequest struct {
	RequestID string
	ToolName  string
	Arguments map[string]interface{}
}

// Approver is consulted once per turn with every request needing a
// live decision, and must return exactly one Permission per request
// ID (or an error, which ends the turn and is returned by Reply). It is the caller's
// "approval channel": a CLI implementation prompts the operator and
// blocks; a headless implementation can auto-resolve from policy.
type Approver func(ctx context.Context, requests []ApprovalRequest) (map[string]permission.Permission, error)
