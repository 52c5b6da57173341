package inspect

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/permission"
)

func newTestStore(t *testing.T) *permission.Store {
	t.Helper()
	store, err := permission.NewStore(filepath.Join(t.TempDir(), "permissions.json"))
	if err != nil {
		t.Fatal(err)
	}
	return store
}

func TestPermissionInspectorRequiresApprovalOnMiss(t *testing.T) {
	insp := NewPermissionInspector(newTestStore(t))
	results, err := insp.Inspect(context.Background(), []ToolRequest{{ID: "r1", ToolName: "exec"}})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Decision != DecisionRequireApproval {
		t.Fatalf("expected require_approval on a store miss, got %s", results[0].Decision)
	}
}

func TestPermissionInspectorHonorsRecordedDecisions(t *testing.T) {
	store := newTestStore(t)
	if err := store.Record("exec", map[string]interface{}{"cmd": "ls"}, true, 0); err != nil {
		t.Fatal(err)
	}
	if err := store.Record("write_file", map[string]interface{}{"path": "a.go"}, false, 0); err != nil {
		t.Fatal(err)
	}

	insp := NewPermissionInspector(store)
	results, err := insp.Inspect(context.Background(), []ToolRequest{
		{ID: "r1", ToolName: "exec", Arguments: map[string]interface{}{"cmd": "ls"}},
		{ID: "r2", ToolName: "write_file", Arguments: map[string]interface{}{"path": "a.go"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Decision != DecisionAllow {
		t.Fatalf("expected recorded allow, got %s", results[0].Decision)
	}
	if results[1].Decision != DecisionDeny {
		t.Fatalf("expected recorded deny, got %s", results[1].Decision)
	}
}

func TestPermissionInspectorAutoModeAllowsEverythingWithoutTheStore(t *testing.T) {
	insp := NewPermissionInspector(newTestStore(t), WithAutoApprove())
	results, err := insp.Inspect(context.Background(), []ToolRequest{
		{ID: "r1", ToolName: "exec", Arguments: map[string]interface{}{"cmd": "rm -rf /tmp/x"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if results[0].Decision != DecisionAllow {
		t.Fatalf("expected auto mode to allow unconditionally, got %s", results[0].Decision)
	}
}

func TestPermissionInspectorAutoModeStillSubjectToLaterEscalation(t *testing.T) {
	auto := NewPermissionInspector(newTestStore(t), WithAutoApprove())
	requests := []ToolRequest{{ID: "r1", ToolName: "exec"}}

	autoResults, err := auto.Inspect(context.Background(), requests)
	if err != nil {
		t.Fatal(err)
	}

	securityResults := []Result{{RequestID: "r1", InspectorName: "security", Decision: DecisionDeny}}
	for i := range autoResults {
		autoResults[i].InspectorName = "permission"
	}
	final := ProcessInspectionResults(requests, append(autoResults, securityResults...))
	if final["r1"] != DecisionDeny {
		t.Fatalf("expected a later inspector to still be able to deny an auto-approved request, got %s", final["r1"])
	}
}
