package toolvalidate

import (
	"context"
	"testing"

	"github.com/nextlevelbuilder/agentrt/internal/tool"
)

type fakeTool struct {
	name   string
	params map[string]interface{}
}

func (f fakeTool) Name() string                        { return f.name }
func (f fakeTool) Description() string                  { return "fake" }
func (f fakeTool) Parameters() map[string]interface{}  { return f.params }
func (f fakeTool) Execute(ctx context.Context, args map[string]interface{}) (*tool.Result, error) {
	return tool.NewResult("ok"), nil
}

func withPathParam() fakeTool {
	return fakeTool{
		name: "read_file",
		params: map[string]interface{}{
			"type":     "object",
			"required": []interface{}{"path"},
			"properties": map[string]interface{}{
				"path": map[string]interface{}{"type": "string"},
			},
		},
	}
}

func TestValidateAcceptsWellFormedArgs(t *testing.T) {
	v := NewValidator()
	err := v.Validate(withPathParam(), map[string]interface{}{"path": "/tmp/x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsMissingRequiredField(t *testing.T) {
	v := NewValidator()
	err := v.Validate(withPathParam(), map[string]interface{}{})
	if err == nil {
		t.Fatal("expected error for missing required field")
	}
}

func TestValidateRejectsWrongType(t *testing.T) {
	v := NewValidator()
	err := v.Validate(withPathParam(), map[string]interface{}{"path": 5})
	if err == nil {
		t.Fatal("expected error for wrong type")
	}
}

func TestValidateWithNoDeclaredPropertiesAcceptsAnything(t *testing.T) {
	v := NewValidator()
	t2 := fakeTool{name: "noop", params: nil}
	if err := v.Validate(t2, map[string]interface{}{"anything": true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCompiledSchemaIsCachedAcrossCalls(t *testing.T) {
	v := NewValidator()
	tl := withPathParam()
	if err := v.Validate(tl, map[string]interface{}{"path": "a"}); err != nil {
		t.Fatal(err)
	}
	if _, ok := v.schemas["read_file"]; !ok {
		t.Fatal("expected schema to be cached")
	}
	v.Forget("read_file")
	if _, ok := v.schemas["read_file"]; ok {
		t.Fatal("expected Forget to evict cached schema")
	}
}
