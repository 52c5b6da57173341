package inspect

import (
	"context"

	"github.com/nextlevelbuilder/agentrt/internal/permission"
)

// PermissionInspector is always the first inspector in a pipeline: it
// establishes the baseline verdict for every request from recorded
// approvals, falling back to RequireApproval on a miss so an unknown
// call never runs without either a recorded decision or a live prompt.
//
// In auto mode it skips the store entirely and allows every request.
// Other inspectors in the pipeline are unaffected and can still escalate
// an auto-approved request to RequireApproval or Deny.
type PermissionInspector struct {
	store *permission.Store
	auto  bool
}

// PermissionOption configures a PermissionInspector.
type PermissionOption func(*PermissionInspector)

// WithAutoApprove puts the inspector in auto mode: every request is
// allowed without consulting the store.
func WithAutoApprove() PermissionOption {
	return func(p *PermissionInspector) { p.auto = true }
}

func NewPermissionInspector(store *permission.Store, opts ...PermissionOption) *PermissionInspector {
	p := &PermissionInspector{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *PermissionInspector) Name() string { return "permission" }

func (p *PermissionInspector) Inspect(ctx context.Context, requests []ToolRequest) ([]Result, error) {
	results := make([]Result, 0, len(requests))
	for _, req := range requests {
		if p.auto {
			results = append(results, Result{RequestID: req.ID, Decision: DecisionAllow, Reason: "auto mode"})
			continue
		}
		rec, ok, err := p.store.Lookup(req.ToolName, req.Arguments)
		if err != nil {
			return nil, err
		}
		if !ok {
			results = append(results, Result{RequestID: req.ID, Decision: DecisionRequireApproval, Reason: "no recorded decision"})
			continue
		}
		if rec.Allowed {
			results = append(results, Result{RequestID: req.ID, Decision: DecisionAllow, Reason: "recorded approval"})
		} else {
			results = append(results, Result{RequestID: req.ID, Decision: DecisionDeny, Reason: "recorded denial"})
		}
	}
	return results, nil
}
