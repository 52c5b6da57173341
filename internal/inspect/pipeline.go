// Package inspect runs every registered inspector over the model's
// pending tool requests and aggregates their verdicts into a single
// decision per request, before any tool actually executes.
package inspect

import "context"

// Decision is the per-request outcome of inspection.
type Decision string

const (
	DecisionAllow          Decision = "allow"
	DecisionRequireApproval Decision = "require_approval"
	DecisionDeny           Decision = "deny"
)

// ToolRequest is a single pending tool call awaiting inspection.
type ToolRequest struct {
	ID        string
	ToolName  string
	Arguments map[string]interface{}
}

// Result is one inspector's verdict on one request.
type Result struct {
	RequestID    string
	InspectorName string
	Decision     Decision
	Reason       string
}

// Inspector produces verdicts for a batch of pending requests. The
// permission inspector (PermissionInspector, in this package) is expected to run first
// and establish the baseline verdict for every request; inspectors
// that run after it (security policy, rate limiting, custom rules)
// can only escalate that baseline, never silently relax it.
type Inspector interface {
	Name() string
	Inspect(ctx context.Context, requests []ToolRequest) ([]Result, error)
}

// aggregate folds Decision b onto the current Decision a under the
// rule: Deny always wins; RequireApproval beats Allow but never loses
// to a later Allow; Allow never downgrades an existing
// RequireApproval or Deny.
func aggregate(a, b Decision) Decision {
	switch {
	case a == DecisionDeny || b == DecisionDeny:
		return DecisionDeny
	case a == DecisionRequireApproval || b == DecisionRequireApproval:
		return DecisionRequireApproval
	default:
		return DecisionAllow
	}
}

// ProcessInspectionResults folds every inspector's results for every
// remaining request into one final Decision per request ID. Requests
// with no results from any inspector default to DecisionRequireApproval —
// an inspector that never rules on a request is not a reason to run it
// unattended.
func ProcessInspectionResults(remainingRequests []ToolRequest, results []Result) map[string]Decision {
	final := make(map[string]Decision, len(remainingRequests))
	for _, r := range remainingRequests {
		final[r.ID] = DecisionRequireApproval
	}

	seen := make(map[string]bool)
	for _, res := range results {
		if _, tracked := final[res.RequestID]; !tracked {
			continue
		}
		if !seen[res.RequestID] {
			final[res.RequestID] = res.Decision
			seen[res.RequestID] = true
			continue
		}
		final[res.RequestID] = aggregate(final[res.RequestID], res.Decision)
	}
	return final
}

// Pipeline runs inspectors in order and aggregates their results.
type Pipeline struct {
	inspectors []Inspector
}

func NewPipeline(inspectors ...Inspector) *Pipeline {
	return &Pipeline{inspectors: inspectors}
}

// Run executes every inspector over requests and returns the final
// aggregated decision per request ID, along with the per-inspector
// results for audit logging.
func (p *Pipeline) Run(ctx context.Context, requests []ToolRequest) (map[string]Decision, []Result, error) {
	var all []Result
	for _, insp := range p.inspectors {
		results, err := insp.Inspect(ctx, requests)
		if err != nil {
			return nil, nil, err
		}
		for i := range results {
			results[i].InspectorName = insp.Name()
		}
		all = append(all, results...)
	}
	return ProcessInspectionResults(requests, all), all, nil
}
